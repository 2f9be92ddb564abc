// Package batch fans per-recording feature extraction across a fixed
// worker pool. Workers pull whole recordings off a task queue, process
// every motion segment of a recording end to end, and never communicate
// with each other; the merged output is re-sorted by record identifier
// afterwards because completion order follows worker scheduling, not
// submission order.
package batch

import (
	"context"
	"runtime"
	"sort"
	"sync"

	"github.com/arytontediarjo/mpower-analysis/internal/log"
	"github.com/arytontediarjo/mpower-analysis/internal/types"
)

// Extractor turns one recording input into a feature result. A
// structural failure aborts only the recording it belongs to.
type Extractor interface {
	Process(input types.RecordingInput) (types.FeatureResult, error)
}

// Runner distributes recordings over a pool of extraction workers.
type Runner struct {
	extractor Extractor
	workers   int
	queue     int
}

// NewRunner builds a runner with the given pool size; a non-positive
// size falls back to one worker per CPU.
func NewRunner(extractor Extractor, workers int) *Runner {
	if workers < 1 {
		workers = runtime.NumCPU()
	}
	return &Runner{extractor: extractor, workers: workers}
}

// SetQueueDepth adjusts how many recordings the task queue buffers
// ahead of the workers. The default of 0 keeps hand-off unbuffered.
func (r *Runner) SetQueueDepth(n int) {
	if n > 0 {
		r.queue = n
	}
}

// Run extracts features for every segment of every row and returns the
// merged rows sorted by record identifier, with segment order preserved
// within each record. Recordings that fail structurally are logged and
// emitted as missing rows so the output stays complete. Cancelling the
// context stops feeding the queue and returns the context's error.
func (r *Runner) Run(ctx context.Context, runID string, rows []types.RecordRow) ([]types.FeatureRow, error) {
	if len(rows) == 0 {
		return nil, nil
	}

	workers := r.workers
	if workers > len(rows) {
		workers = len(rows)
	}

	tasks := make(chan types.RecordRow, r.queue)
	results := make(chan []types.FeatureRow, len(rows))

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for row := range tasks {
				results <- r.processRecord(runID, row)
			}
		}()
	}

	go func() {
		defer close(tasks)
		for _, row := range rows {
			select {
			case <-ctx.Done():
				return
			case tasks <- row:
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	var out []types.FeatureRow
	for chunk := range results {
		out = append(out, chunk...)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].RecordID < out[j].RecordID
	})
	return out, nil
}

// processRecord runs the extractor over each segment of one recording.
func (r *Runner) processRecord(runID string, row types.RecordRow) []types.FeatureRow {
	out := make([]types.FeatureRow, 0, len(row.Segments))
	for _, seg := range row.Segments {
		res, err := r.extractor.Process(seg.Input)
		if err != nil {
			log.Errorf("featurizing record %s segment %s: %v", row.RecordID, seg.Name, err)
			res = types.FeatureResult{Missing: true}
		}
		out = append(out, types.FeatureRow{
			RunID:      runID,
			RecordID:   row.RecordID,
			HealthCode: row.HealthCode,
			AppVersion: row.AppVersion,
			PhoneInfo:  row.PhoneInfo,
			CreatedOn:  row.CreatedOn,
			Segment:    seg.Name,
			Missing:    res.Missing,
			Features:   res.Features,
		})
	}
	return out
}

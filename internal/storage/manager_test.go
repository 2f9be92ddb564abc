package storage

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/arytontediarjo/mpower-analysis/internal/types"
	"github.com/arytontediarjo/mpower-analysis/pkg/config"
)

// captureSink is a FeatureSink that records everything it receives.
type captureSink struct {
	mu   sync.Mutex
	rows []types.FeatureRow
}

func (c *captureSink) StartStorageEngine(ctx context.Context, wg *sync.WaitGroup) chan<- types.FeatureRow {
	rowChan := make(chan types.FeatureRow, 10)
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case r, ok := <-rowChan:
				if !ok {
					return
				}
				c.mu.Lock()
				c.rows = append(c.rows, r)
				c.mu.Unlock()
			case <-ctx.Done():
				return
			}
		}
	}()
	return rowChan
}

func (c *captureSink) received() []types.FeatureRow {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]types.FeatureRow, len(c.rows))
	copy(out, c.rows)
	return out
}

func testRow(recordID string) types.FeatureRow {
	return types.FeatureRow{
		RunID:    "run-1",
		RecordID: recordID,
		Segment:  "walk_motion.json",
	}
}

func TestDistributorFansOut(t *testing.T) {
	ctx := context.Background()
	wg := &sync.WaitGroup{}

	m := &Manager{FeatureDistributor: make(chan types.FeatureRow, 20)}
	wg.Add(1)
	go m.startFeatureDistributor(ctx, wg)

	first := &captureSink{}
	second := &captureSink{}
	for _, sink := range []*captureSink{first, second} {
		m.Engines = append(m.Engines, Engine{Engine: sink, C: sink.StartStorageEngine(ctx, wg)})
	}

	ids := []string{"rec-1", "rec-2", "rec-3"}
	for _, id := range ids {
		m.FeatureDistributor <- testRow(id)
	}
	m.Close()
	wg.Wait()

	for name, sink := range map[string]*captureSink{"first": first, "second": second} {
		rows := sink.received()
		if len(rows) != len(ids) {
			t.Fatalf("%s sink got %d rows, want %d", name, len(rows), len(ids))
		}
		for i, id := range ids {
			if rows[i].RecordID != id {
				t.Errorf("%s sink row %d = %q, want %q", name, i, rows[i].RecordID, id)
			}
		}
	}
}

func TestDistributorStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	wg := &sync.WaitGroup{}

	m := &Manager{FeatureDistributor: make(chan types.FeatureRow, 20)}
	wg.Add(1)
	go m.startFeatureDistributor(ctx, wg)

	cancel()
	wg.Wait()
}

func TestDistributorWithoutEngines(t *testing.T) {
	ctx := context.Background()
	wg := &sync.WaitGroup{}

	m := &Manager{FeatureDistributor: make(chan types.FeatureRow, 20)}
	wg.Add(1)
	go m.startFeatureDistributor(ctx, wg)

	// Rows with no configured backends are discarded, not a deadlock.
	m.FeatureDistributor <- testRow("rec-1")
	m.Close()
	wg.Wait()
}

func TestNewManagerFromConfig(t *testing.T) {
	ctx := context.Background()
	wg := &sync.WaitGroup{}

	c := &config.Config{}
	c.Storage.CSV.Path = filepath.Join(t.TempDir(), "features.csv")

	m, err := NewManager(ctx, wg, c)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	if len(m.Engines) != 1 {
		t.Fatalf("got %d engines, want just the CSV sink", len(m.Engines))
	}

	m.GetFeatureDistributor() <- testRow("rec-1")
	m.Close()
	wg.Wait()
}

func TestNewManagerWithoutBackends(t *testing.T) {
	ctx := context.Background()
	wg := &sync.WaitGroup{}

	m, err := NewManager(ctx, wg, &config.Config{})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	if len(m.Engines) != 0 {
		t.Fatalf("got %d engines, want none", len(m.Engines))
	}
	m.Close()
	wg.Wait()
}

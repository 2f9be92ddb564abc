// Package csvfile streams extracted feature rows to a CSV file, matching
// the layout of the files this pipeline publishes for downstream analysis.
package csvfile

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"sync"

	"github.com/arytontediarjo/mpower-analysis/internal/constants"
	"github.com/arytontediarjo/mpower-analysis/internal/log"
	"github.com/arytontediarjo/mpower-analysis/internal/types"
)

// Header is the fixed column set: record metadata followed by the six
// feature keys. Column order is part of the published file format.
var Header = append([]string{
	"recordId",
	"healthCode",
	"appVersion",
	"phoneInfo",
	"createdOn",
	"segment",
}, types.FeatureKeys...)

// Storage holds the open output file for a CSV storage backend
type Storage struct {
	path string
	f    *os.File
	w    *csv.Writer
}

// New creates the output file and writes the header row
func New(path string) (*Storage, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("could not create output file: %w", err)
	}

	s := &Storage{
		path: path,
		f:    f,
		w:    csv.NewWriter(f),
	}

	if err := s.w.Write(Header); err != nil {
		f.Close()
		return nil, fmt.Errorf("could not write CSV header: %w", err)
	}
	s.w.Flush()
	if err := s.w.Error(); err != nil {
		f.Close()
		return nil, fmt.Errorf("could not write CSV header: %w", err)
	}

	return s, nil
}

// Path returns the location of the output file
func (s *Storage) Path() string {
	return s.path
}

// StartStorageEngine creates a goroutine loop to receive feature rows and
// append them to the CSV file
func (s *Storage) StartStorageEngine(ctx context.Context, wg *sync.WaitGroup) chan<- types.FeatureRow {
	log.Info("starting CSV storage engine...")
	rowChan := make(chan types.FeatureRow, 10)
	wg.Add(1)
	go s.processRows(ctx, wg, rowChan)
	return rowChan
}

func (s *Storage) processRows(ctx context.Context, wg *sync.WaitGroup, rchan <-chan types.FeatureRow) {
	defer wg.Done()

	for {
		select {
		case r, ok := <-rchan:
			if !ok {
				if err := s.Close(); err != nil {
					log.Error("could not close CSV output:", err)
				}
				return
			}
			if err := s.StoreRow(r); err != nil {
				log.Error("could not store feature row:", err)
			}
		case <-ctx.Done():
			log.Info("cancellation request received, shutting down CSV storage engine")
			if err := s.Close(); err != nil {
				log.Error("could not close CSV output:", err)
			}
			return
		}
	}
}

// StoreRow appends one feature row and flushes it to disk
func (s *Storage) StoreRow(r types.FeatureRow) error {
	if err := s.w.Write(encodeRow(r)); err != nil {
		return err
	}
	s.w.Flush()
	return s.w.Error()
}

// Close flushes buffered rows and closes the output file
func (s *Storage) Close() error {
	s.w.Flush()
	if err := s.w.Error(); err != nil {
		s.f.Close()
		return err
	}
	return s.f.Close()
}

// encodeRow renders a feature row in Header column order. Rows from
// recordings that could not be processed carry the missing sentinel in
// every feature cell.
func encodeRow(r types.FeatureRow) []string {
	cells := []string{
		r.RecordID,
		r.HealthCode,
		r.AppVersion,
		r.PhoneInfo,
		strconv.FormatInt(r.CreatedOn, 10),
		r.Segment,
	}

	if r.Missing {
		for range types.FeatureKeys {
			cells = append(cells, constants.MissingSource)
		}
		return cells
	}

	m := r.Features.Map()
	for _, k := range types.FeatureKeys {
		cells = append(cells, strconv.FormatFloat(m[k], 'g', -1, 64))
	}
	return cells
}

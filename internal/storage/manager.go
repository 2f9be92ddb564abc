package storage

import (
	"context"
	"fmt"
	"sync"

	"github.com/arytontediarjo/mpower-analysis/internal/log"
	"github.com/arytontediarjo/mpower-analysis/internal/storage/csvfile"
	"github.com/arytontediarjo/mpower-analysis/internal/storage/postgres"
	"github.com/arytontediarjo/mpower-analysis/internal/types"
	"github.com/arytontediarjo/mpower-analysis/pkg/config"
)

// Manager holds our active storage backends
type Manager struct {
	Engines            []Engine
	FeatureDistributor chan types.FeatureRow
}

// Engine holds a backend storage engine's interface as well as
// a channel for passing feature rows to the engine
type Engine struct {
	Engine FeatureSink
	C      chan<- types.FeatureRow
}

// NewManager creates a Manager object, populated with all configured sinks
func NewManager(ctx context.Context, wg *sync.WaitGroup, c *config.Config) (*Manager, error) {
	var err error

	m := Manager{}

	// Initialize our channel for passing feature rows to the distributor
	m.FeatureDistributor = make(chan types.FeatureRow, 20)

	// Start our distributor to fan received rows out to storage backends
	wg.Add(1)
	go m.startFeatureDistributor(ctx, wg)

	// Check the configuration for supported storage backends and enable
	// them if found

	if c.Storage.CSV.Path != "" {
		err = m.AddEngine(ctx, wg, "csv", c)
		if err != nil {
			return &m, fmt.Errorf("could not add CSV storage backend: %v", err)
		}
	}

	if c.Storage.Postgres.ConnectionString != "" {
		err = m.AddEngine(ctx, wg, "postgres", c)
		if err != nil {
			return &m, fmt.Errorf("could not add Postgres storage backend: %v", err)
		}
	}

	return &m, nil
}

// GetFeatureDistributor returns the feature distributor channel
func (m *Manager) GetFeatureDistributor() chan<- types.FeatureRow {
	return m.FeatureDistributor
}

// Close signals end of input. Rows already submitted are still delivered
// to every backend before their goroutines exit; pair with wg.Wait.
func (m *Manager) Close() {
	close(m.FeatureDistributor)
}

// AddEngine adds a new storage engine of name engineName to the Manager
func (m *Manager) AddEngine(ctx context.Context, wg *sync.WaitGroup, engineName string, c *config.Config) error {
	var err error

	switch engineName {
	case "csv":
		e := Engine{}
		e.Engine, err = csvfile.New(c.Storage.CSV.Path)
		if err != nil {
			return err
		}
		e.C = e.Engine.StartStorageEngine(ctx, wg)
		m.Engines = append(m.Engines, e)
	case "postgres":
		e := Engine{}
		e.Engine, err = postgres.New(ctx, c.Storage.Postgres.ConnectionString)
		if err != nil {
			return err
		}
		e.C = e.Engine.StartStorageEngine(ctx, wg)
		m.Engines = append(m.Engines, e)
	}

	return nil
}

// startFeatureDistributor receives feature rows from the extraction run and
// fans them out to the various storage backends
func (m *Manager) startFeatureDistributor(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()

	rowCount := 0
	for {
		select {
		case r, ok := <-m.FeatureDistributor:
			if !ok {
				// End of input: let the backends drain and exit
				for _, e := range m.Engines {
					close(e.C)
				}
				log.Infof("feature distributor finished after %d rows", rowCount)
				return
			}
			rowCount++

			if len(m.Engines) == 0 {
				// No storage engines configured - row discarded silently
			} else {
				for _, e := range m.Engines {
					e.C <- r
				}
			}
		case <-ctx.Done():
			log.Infof("cancellation request received, shutting down feature distributor after %d rows", rowCount)
			return
		}
	}
}

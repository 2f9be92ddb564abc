// Package postgres stores extracted feature rows in a Postgres table.
package postgres

import (
	"context"
	"fmt"
	"sync"

	"github.com/arytontediarjo/mpower-analysis/internal/database"
	"github.com/arytontediarjo/mpower-analysis/internal/log"
	"github.com/arytontediarjo/mpower-analysis/internal/types"
	"gorm.io/gorm"
)

// Storage holds the configuration for a Postgres storage backend
type Storage struct {
	PostgresConn *gorm.DB
}

// StartStorageEngine creates a goroutine loop to receive feature rows and
// send them off to Postgres
func (p *Storage) StartStorageEngine(ctx context.Context, wg *sync.WaitGroup) chan<- types.FeatureRow {
	log.Info("starting Postgres storage engine...")
	rowChan := make(chan types.FeatureRow, 10)
	wg.Add(1)
	go p.processRows(ctx, wg, rowChan)
	return rowChan
}

func (p *Storage) processRows(ctx context.Context, wg *sync.WaitGroup, rchan <-chan types.FeatureRow) {
	defer wg.Done()

	for {
		select {
		case r, ok := <-rchan:
			if !ok {
				return
			}
			if err := p.StoreRow(r); err != nil {
				log.Error("could not store feature row:", err)
			}
		case <-ctx.Done():
			log.Info("cancellation request received, shutting down Postgres storage engine")
			return
		}
	}
}

// StoreRow stores a feature row in Postgres
func (p *Storage) StoreRow(r types.FeatureRow) error {
	rec, err := newFeatureRecord(r)
	if err != nil {
		return err
	}
	if err := p.PostgresConn.Create(rec).Error; err != nil {
		return fmt.Errorf("could not insert feature row: %w", err)
	}
	return nil
}

// newFeatureRecord converts a feature row into its database representation.
// Missing rows keep zeroed feature values; the missing column is what
// downstream queries filter on.
func newFeatureRecord(r types.FeatureRow) (*database.FeatureRecord, error) {
	rec := &database.FeatureRecord{
		RunID:      r.RunID,
		RecordID:   r.RecordID,
		HealthCode: r.HealthCode,
		AppVersion: r.AppVersion,
		PhoneInfo:  r.PhoneInfo,
		CreatedOn:  r.CreatedOn,
		Segment:    r.Segment,
		Missing:    r.Missing,
	}
	if err := rec.Features.Set(r.Features.Map()); err != nil {
		return nil, fmt.Errorf("could not encode features: %w", err)
	}
	return rec, nil
}

// New sets up a new Postgres storage backend
func New(ctx context.Context, connectionString string) (*Storage, error) {
	p := Storage{}

	var err error
	p.PostgresConn, err = database.CreateConnection(connectionString)
	if err != nil {
		return &Storage{}, err
	}

	// Create the feature table
	log.Info("creating database table...")
	err = p.PostgresConn.WithContext(ctx).AutoMigrate(database.FeatureRecord{})
	if err != nil {
		return &Storage{}, fmt.Errorf("error creating or migrating feature record database table: %v", err)
	}

	return &p, nil
}

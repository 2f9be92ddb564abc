// Package app wires one feature-extraction run end to end: table query,
// cached downloads, the worker pool, storage fan-out, and the optional
// provenance upload.
package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/arytontediarjo/mpower-analysis/internal/batch"
	"github.com/arytontediarjo/mpower-analysis/internal/gait"
	"github.com/arytontediarjo/mpower-analysis/internal/log"
	"github.com/arytontediarjo/mpower-analysis/internal/sensor"
	"github.com/arytontediarjo/mpower-analysis/internal/storage"
	"github.com/arytontediarjo/mpower-analysis/internal/synapse"
	"github.com/arytontediarjo/mpower-analysis/internal/types"
	"github.com/arytontediarjo/mpower-analysis/pkg/config"
	"go.uber.org/zap"
)

// Options are the per-run knobs the extract CLI collects from its flags.
type Options struct {
	RunID      string
	Generation synapse.Generation
	TableID    string
	Workers    int
	Chunks     int
	RecordIDs  []string
	Filtered   bool
	DryRun     bool
}

// App represents one extraction run
type App struct {
	cfg    *config.Config
	opts   Options
	logger *zap.SugaredLogger
}

// New creates a new application instance
func New(cfg *config.Config, opts Options, logger *zap.SugaredLogger) *App {
	return &App{
		cfg:    cfg,
		opts:   opts,
		logger: logger,
	}
}

// Run executes the extraction and blocks until it completes or is
// interrupted.
func (a *App) Run(ctx context.Context) error {
	start := time.Now()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Turn shutdown signals into a context cancellation so every stage
	// unwinds the same way.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigs)
	go func() {
		select {
		case <-sigs:
			log.Info("shutdown signal received, aborting run...")
			cancel()
		case <-ctx.Done():
		}
	}()

	token := a.cfg.Token()
	if token == "" {
		return fmt.Errorf("no Synapse access token found in $%v", a.cfg.Synapse.TokenEnv)
	}
	client := synapse.NewClient(a.cfg.Synapse.Endpoint, token)

	cache, err := synapse.NewCache(a.cfg.Synapse.CacheDir)
	if err != nil {
		return fmt.Errorf("could not open download cache: %w", err)
	}
	defer cache.Close()

	log.Infof("querying table %v...", a.opts.TableID)
	rs, err := client.QueryTable(ctx, a.opts.TableID, synapse.TableSQL(a.opts.TableID, a.opts.RecordIDs))
	if err != nil {
		return fmt.Errorf("table query failed: %w", err)
	}
	log.Infof("table query returned %d rows", len(rs.Rows))

	records, err := client.BuildRecordRows(ctx, cache, rs, a.opts.Generation)
	if err != nil {
		return fmt.Errorf("could not assemble recording rows: %w", err)
	}

	if a.opts.Filtered {
		records, err = a.filterToCohort(ctx, client, records)
		if err != nil {
			return err
		}
	}

	pipeline, err := gait.NewPipeline(sensor.Axis(a.cfg.Extract.Axis))
	if err != nil {
		return err
	}
	runner := batch.NewRunner(pipeline, a.opts.Workers)
	runner.SetQueueDepth(a.opts.Chunks)
	featureRows, err := runner.Run(ctx, a.opts.RunID, records)
	if err != nil {
		return err
	}
	log.Infof("extracted %d feature rows from %d records", len(featureRows), len(records))

	if err := a.storeRows(ctx, featureRows); err != nil {
		return err
	}

	// Publish the CSV with provenance unless this is a dry run
	if !a.opts.DryRun && a.cfg.Extract.ParentID != "" && a.cfg.Storage.CSV.Path != "" {
		entityID, err := a.publish(ctx, client)
		if err != nil {
			return fmt.Errorf("could not publish results: %w", err)
		}
		log.Infof("published results as %v", entityID)
	}

	a.logger.Infow("run complete",
		"runId", a.opts.RunID,
		"records", len(records),
		"rows", len(featureRows),
		"elapsed", time.Since(start).String(),
	)
	return nil
}

// filterToCohort drops records whose health code is outside the matched
// demographics cohort.
func (a *App) filterToCohort(ctx context.Context, client *synapse.Client, records []types.RecordRow) ([]types.RecordRow, error) {
	if a.cfg.Synapse.CohortFile == "" {
		return nil, fmt.Errorf("filtered run requested but no cohort-file configured")
	}

	cohort, err := client.FetchCohort(ctx, a.cfg.Synapse.CohortFile)
	if err != nil {
		return nil, fmt.Errorf("could not fetch cohort: %w", err)
	}

	var kept []types.RecordRow
	for _, r := range records {
		if cohort[r.HealthCode] {
			kept = append(kept, r)
		}
	}
	log.Infof("cohort filter kept %d of %d records", len(kept), len(records))
	return kept, nil
}

// storeRows pushes every feature row through the storage fan-out and
// waits for all sinks to drain.
func (a *App) storeRows(ctx context.Context, rows []types.FeatureRow) error {
	var wg sync.WaitGroup

	manager, err := storage.NewManager(ctx, &wg, a.cfg)
	if err != nil {
		return err
	}

	distributor := manager.GetFeatureDistributor()
	for _, row := range rows {
		select {
		case distributor <- row:
		case <-ctx.Done():
			// The cancellation also unwinds the sinks; wait for them
			// before reporting the abort.
			wg.Wait()
			return ctx.Err()
		}
	}
	manager.Close()

	wg.Wait()
	return nil
}

// publish uploads the CSV to the configured Synapse folder with an
// activity recording the source table and the code that produced it.
func (a *App) publish(ctx context.Context, client *synapse.Client) (string, error) {
	act := synapse.Activity{
		Name: "gait feature extraction " + a.opts.RunID,
		Used: []string{a.opts.TableID},
	}
	if a.cfg.Extract.ScriptURL != "" {
		act.Executed = []string{a.cfg.Extract.ScriptURL}
	}
	return client.StoreFile(ctx, a.cfg.Storage.CSV.Path, a.cfg.Extract.ParentID, act)
}

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/arytontediarjo/mpower-analysis/internal/app"
	"github.com/arytontediarjo/mpower-analysis/internal/constants"
	"github.com/arytontediarjo/mpower-analysis/internal/log"
	"github.com/arytontediarjo/mpower-analysis/internal/synapse"
	"github.com/arytontediarjo/mpower-analysis/pkg/config"
	"github.com/google/uuid"
)

func main() {
	cfgFile := flag.String("config", "config.yaml", "Path to YAML configuration file")
	debug := flag.Bool("debug", false, "Turn on debugging output")
	showVersion := flag.Bool("version", false, "Show version and exit")
	tableVersion := flag.String("table-version", "MPOWER_V2", "Study table to process: MPOWER_V1, MPOWER_V2, PASSIVE or ELEVATE_MS")
	filename := flag.String("filename", "", "Output CSV file name (overrides the configured default)")
	workers := flag.Int("workers", 0, "Worker pool size (0 uses the configured default, then the CPU count)")
	chunks := flag.Int("chunks", 0, "Task queue buffering hint (0 uses the configured default)")
	filtered := flag.Bool("filtered", false, "Restrict the run to the matched-demographics cohort")
	recordIDs := flag.String("record-ids", "", "Comma-separated record IDs to process (default: the whole table)")
	dryRun := flag.Bool("dry-run", false, "Skip the provenance upload of the results CSV")
	flag.Parse()

	if *showVersion {
		fmt.Printf("gait-extract %s\n", constants.Version)
		os.Exit(0)
	}

	// Set up logging
	if err := log.Init(*debug); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// Load configuration
	cfg, err := loadConfig(*cfgFile)
	if err != nil {
		log.Errorf("Failed to load configuration: %v", err)
		os.Exit(1)
	}

	// Per-run flag overrides on top of the configured defaults
	if *filename != "" {
		cfg.Extract.Filename = *filename
	}
	if cfg.Storage.CSV.Path == "" {
		cfg.Storage.CSV.Path = cfg.Extract.Filename
	}
	if *workers == 0 {
		*workers = cfg.Extract.Workers
	}
	if *chunks == 0 {
		*chunks = cfg.Extract.Chunks
	}

	tableID, ok := cfg.TableID(*tableVersion)
	if !ok {
		log.Errorf("No table ID configured for %v; check the synapse.tables section", *tableVersion)
		os.Exit(1)
	}

	opts := app.Options{
		RunID:      uuid.NewString(),
		Generation: synapse.Generation(*tableVersion),
		TableID:    tableID,
		Workers:    *workers,
		Chunks:     *chunks,
		RecordIDs:  splitIDs(*recordIDs),
		Filtered:   *filtered,
		DryRun:     *dryRun,
	}
	if _, err := opts.Generation.MotionColumnMarker(); err != nil {
		log.Errorf("Invalid -table-version: %v", err)
		os.Exit(1)
	}

	log.Infof("starting run %v against %v (%v)", opts.RunID, tableID, *tableVersion)

	// Create and run the application
	application := app.New(cfg, opts, log.GetSugaredLogger())
	if err := application.Run(context.Background()); err != nil {
		log.Errorf("Application error: %v", err)
		os.Exit(1)
	}
}

func loadConfig(cfgFile string) (*config.Config, error) {
	filename, _ := filepath.Abs(cfgFile)

	cfg, err := config.NewYAMLProvider(filename).LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("error reading config file. Did you pass the -config flag? Run with -h for help: %w", err)
	}

	return cfg, nil
}

func splitIDs(csv string) []string {
	if csv == "" {
		return nil
	}
	var ids []string
	for _, id := range strings.Split(csv, ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

// Command gait-server serves stored gait features over a read-only HTTP API.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"

	"github.com/arytontediarjo/mpower-analysis/internal/constants"
	"github.com/arytontediarjo/mpower-analysis/internal/log"
	"github.com/arytontediarjo/mpower-analysis/internal/server"
	"github.com/arytontediarjo/mpower-analysis/pkg/config"
)

func main() {
	cfgFile := flag.String("config", "config.yaml", "Path to YAML configuration file")
	debug := flag.Bool("debug", false, "Turn on debugging output")
	showVersion := flag.Bool("version", false, "Show version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("gait-server %s\n", constants.Version)
		os.Exit(0)
	}

	// Set up logging
	if err := log.Init(*debug); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	cfg, err := loadConfig(*cfgFile)
	if err != nil {
		log.Errorf("%v", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	wg := &sync.WaitGroup{}

	srv, err := server.NewServer(ctx, wg, cfg, log.GetSugaredLogger())
	if err != nil {
		log.Errorf("could not create results API server: %v", err)
		os.Exit(1)
	}

	if err := srv.StartServer(); err != nil {
		log.Errorf("could not start results API server: %v", err)
		os.Exit(1)
	}
	log.Infof("results API server listening on %v", srv.Server.Addr)

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs

	log.Info("shutdown signal received")
	cancel()
	wg.Wait()
}

func loadConfig(cfgFile string) (*config.Config, error) {
	filename, _ := filepath.Abs(cfgFile)

	cfg, err := config.NewYAMLProvider(filename).LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("error reading config file. Did you pass the -config flag? Run with -h for help: %w", err)
	}

	return cfg, nil
}

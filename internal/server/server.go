// Package server exposes stored gait features over a small read-only
// HTTP API backed by the Postgres feature store.
package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/arytontediarjo/mpower-analysis/internal/database"
	"github.com/arytontediarjo/mpower-analysis/internal/log"
	"github.com/arytontediarjo/mpower-analysis/pkg/config"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// Server represents the results API server
type Server struct {
	ctx      context.Context
	wg       *sync.WaitGroup
	cfg      *config.Config
	Server   http.Server
	DB       *database.Client
	logger   *zap.SugaredLogger
	handlers *Handlers
}

// NewServer creates a new results API server
func NewServer(ctx context.Context, wg *sync.WaitGroup, cfg *config.Config, logger *zap.SugaredLogger) (*Server, error) {
	s := &Server{
		ctx:    ctx,
		wg:     wg,
		cfg:    cfg,
		logger: logger,
	}

	if cfg.Storage.Postgres.ConnectionString == "" {
		return nil, fmt.Errorf("the results API needs storage.postgres.connection-string to be configured")
	}

	s.DB = database.NewClient(cfg.Storage.Postgres.ConnectionString, logger)
	if err := s.DB.Connect(); err != nil {
		return nil, fmt.Errorf("results API could not connect to database: %v", err)
	}

	// If a listen address was not provided, listen on all interfaces
	listenAddr := cfg.Server.ListenAddr
	if listenAddr == "" {
		logger.Info("server.listen-addr not provided; defaulting to 0.0.0.0 (all interfaces)")
		listenAddr = "0.0.0.0"
	}
	port := cfg.Server.Port
	if port == 0 {
		logger.Info("server.port not provided; defaulting to 8080")
		port = 8080
	}

	s.handlers = NewHandlers(s.DB)

	router := s.setupRouter()
	s.Server.Addr = fmt.Sprintf("%v:%v", listenAddr, port)
	s.Server.Handler = router

	return s, nil
}

// StartServer starts the HTTP listener
func (s *Server) StartServer() error {
	log.Info("Starting results API server...")
	s.wg.Add(1)

	go func() {
		defer s.wg.Done()

		if err := s.Server.ListenAndServe(); err != http.ErrServerClosed {
			log.Errorf("results API server error: %v", err)
		}
	}()

	go func() {
		<-s.ctx.Done()
		log.Info("Shutting down the results API server...")
		s.Server.Shutdown(context.Background())
	}()

	return nil
}

// setupRouter configures the HTTP router with all endpoints
func (s *Server) setupRouter() *mux.Router {
	router := mux.NewRouter()

	router.Use(s.requestLogger)

	router.HandleFunc("/api/features", s.handlers.GetFeatures).Methods(http.MethodGet)
	router.HandleFunc("/api/features/{recordId}", s.handlers.GetFeaturesByRecordID).Methods(http.MethodGet)
	router.HandleFunc("/api/stats", s.handlers.GetStats).Methods(http.MethodGet)

	return router
}

// requestLogger logs one line per request
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Infow("request",
			"method", r.Method,
			"path", r.URL.Path,
			"remote", r.RemoteAddr,
			"elapsed", time.Since(start).String(),
		)
	})
}

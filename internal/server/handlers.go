package server

import (
	"net/http"
	"strconv"

	"github.com/arytontediarjo/mpower-analysis/internal/database"
	"github.com/arytontediarjo/mpower-analysis/internal/log"
	"github.com/arytontediarjo/mpower-analysis/pkg/responseformat"
	"github.com/gorilla/mux"
)

// Default and ceiling for the number of rows one /api/features call returns.
const (
	defaultFeatureRows = 100
	maxFeatureRows     = 1000
)

// featureStore is the slice of the database client the handlers need.
type featureStore interface {
	GetFeatures(healthCode string, limit int) ([]database.FeatureRecord, error)
	GetFeaturesByRecordID(recordID string) ([]database.FeatureRecord, error)
	GetFeatureStats() (database.FetchedFeatureStats, error)
}

// Handlers contains all of the HTTP handlers for the results API
type Handlers struct {
	store     featureStore
	formatter *responseformat.Formatter
}

// NewHandlers creates a new handlers instance
func NewHandlers(store featureStore) *Handlers {
	return &Handlers{
		store:     store,
		formatter: responseformat.NewFormatter(),
	}
}

// GetFeatures handles requests for stored feature rows, newest first,
// optionally filtered by health code
func (h *Handlers) GetFeatures(w http.ResponseWriter, req *http.Request) {
	healthCode := req.URL.Query().Get("healthCode")

	limit := defaultFeatureRows
	if raw := req.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			h.formatter.WriteError(w, req, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		if parsed > maxFeatureRows {
			parsed = maxFeatureRows
		}
		limit = parsed
	}

	rows, err := h.store.GetFeatures(healthCode, limit)
	if err != nil {
		log.Errorf("error fetching feature rows: %v", err)
		h.formatter.WriteError(w, req, http.StatusInternalServerError, "error fetching feature rows")
		return
	}

	h.formatter.WriteResponse(w, req, toFeaturePayloads(rows), nil)
}

// GetFeaturesByRecordID handles requests for every segment of a single record
func (h *Handlers) GetFeaturesByRecordID(w http.ResponseWriter, req *http.Request) {
	recordID := mux.Vars(req)["recordId"]
	if recordID == "" {
		h.formatter.WriteError(w, req, http.StatusBadRequest, "recordId must be supplied")
		return
	}

	rows, err := h.store.GetFeaturesByRecordID(recordID)
	if err != nil {
		log.Errorf("error fetching feature rows for record %v: %v", recordID, err)
		h.formatter.WriteError(w, req, http.StatusInternalServerError, "error fetching feature rows")
		return
	}
	if len(rows) == 0 {
		h.formatter.WriteError(w, req, http.StatusNotFound, "record not found")
		return
	}

	h.formatter.WriteResponse(w, req, toFeaturePayloads(rows), nil)
}

// GetStats handles requests for aggregate statistics over the feature store
func (h *Handlers) GetStats(w http.ResponseWriter, req *http.Request) {
	stats, err := h.store.GetFeatureStats()
	if err != nil {
		log.Errorf("error fetching feature statistics: %v", err)
		h.formatter.WriteError(w, req, http.StatusInternalServerError, "error fetching feature statistics")
		return
	}

	h.formatter.WriteResponse(w, req, toStatsPayload(stats), nil)
}

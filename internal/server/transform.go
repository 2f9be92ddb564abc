package server

import (
	"encoding/json"

	"github.com/arytontediarjo/mpower-analysis/internal/database"
	"github.com/arytontediarjo/mpower-analysis/internal/log"
)

// FeaturePayload is the API rendering of one stored feature row.
type FeaturePayload struct {
	RunID      string             `json:"runId"`
	RecordID   string             `json:"recordId"`
	HealthCode string             `json:"healthCode"`
	AppVersion string             `json:"appVersion,omitempty"`
	PhoneInfo  string             `json:"phoneInfo,omitempty"`
	CreatedOn  int64              `json:"createdOn"`
	Segment    string             `json:"segment"`
	Missing    bool               `json:"missing"`
	Features   map[string]float64 `json:"features"`
}

// StatsPayload is the API rendering of the aggregate feature statistics.
type StatsPayload struct {
	TotalRows          int64   `json:"totalRows"`
	TotalRecords       int64   `json:"totalRecords"`
	TotalHealthCodes   int64   `json:"totalHealthCodes"`
	MissingRows        int64   `json:"missingRows"`
	MeanTurns          float64 `json:"meanTurns"`
	MeanTurnDuration   float64 `json:"meanTurnDuration"`
	MeanWindowedRate   float64 `json:"meanWindowedRate"`
	MeanUnwindowedRate float64 `json:"meanUnwindowedRate"`
}

// toFeaturePayloads converts stored feature records into their API form.
func toFeaturePayloads(rows []database.FeatureRecord) []FeaturePayload {
	payloads := make([]FeaturePayload, 0, len(rows))

	for _, r := range rows {
		var features map[string]float64
		if len(r.Features.Bytes) > 0 {
			if err := json.Unmarshal(r.Features.Bytes, &features); err != nil {
				log.Warnf("feature row for record %v has malformed features JSON: %v", r.RecordID, err)
			}
		}

		payloads = append(payloads, FeaturePayload{
			RunID:      r.RunID,
			RecordID:   r.RecordID,
			HealthCode: r.HealthCode,
			AppVersion: r.AppVersion,
			PhoneInfo:  r.PhoneInfo,
			CreatedOn:  r.CreatedOn,
			Segment:    r.Segment,
			Missing:    r.Missing,
			Features:   features,
		})
	}

	return payloads
}

// toStatsPayload converts the aggregate scan into its API form.
func toStatsPayload(stats database.FetchedFeatureStats) StatsPayload {
	return StatsPayload{
		TotalRows:          stats.TotalRows,
		TotalRecords:       stats.TotalRecords,
		TotalHealthCodes:   stats.TotalHealthCodes,
		MissingRows:        stats.MissingRows,
		MeanTurns:          stats.MeanTurns,
		MeanTurnDuration:   stats.MeanTurnDuration,
		MeanWindowedRate:   stats.MeanWindowedRate,
		MeanUnwindowedRate: stats.MeanUnwindowedRate,
	}
}

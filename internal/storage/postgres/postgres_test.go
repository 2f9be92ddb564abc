package postgres

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/arytontediarjo/mpower-analysis/internal/types"
)

func TestNewFeatureRecord(t *testing.T) {
	row := types.FeatureRow{
		RunID:      "7f1c8a9e-0000-0000-0000-000000000001",
		RecordID:   "rec-1",
		HealthCode: "hc-1",
		AppVersion: "version 2.0",
		PhoneInfo:  "iPhone 8",
		CreatedOn:  1596000000000,
		Segment:    "walk_motion.json",
		Features: types.GaitFeatures{
			WindowedMeanStepsPerSec:   1.5,
			UnwindowedMeanStepsPerSec: 1.25,
			NumberOfTurns:             3,
			MeanTurnDuration:          2.5,
			MinTurnDuration:           1,
			MaxTurnDuration:           4,
		},
	}

	rec, err := newFeatureRecord(row)
	if err != nil {
		t.Fatalf("newFeatureRecord: %v", err)
	}

	if rec.RunID != row.RunID || rec.RecordID != "rec-1" || rec.HealthCode != "hc-1" {
		t.Errorf("identity columns = %q %q %q", rec.RunID, rec.RecordID, rec.HealthCode)
	}
	if rec.CreatedOn != 1596000000000 {
		t.Errorf("created_on = %d", rec.CreatedOn)
	}
	if rec.Segment != "walk_motion.json" {
		t.Errorf("segment = %q", rec.Segment)
	}
	if rec.Missing {
		t.Error("missing should be false")
	}

	var features map[string]float64
	if err := json.Unmarshal(rec.Features.Bytes, &features); err != nil {
		t.Fatalf("decoding features JSONB: %v", err)
	}
	if len(features) != len(types.FeatureKeys) {
		t.Fatalf("features JSONB has %d keys, want %d", len(features), len(types.FeatureKeys))
	}
	want := row.Features.Map()
	for _, k := range types.FeatureKeys {
		if math.Abs(features[k]-want[k]) > 1e-12 {
			t.Errorf("features[%q] = %v, want %v", k, features[k], want[k])
		}
	}
}

func TestNewFeatureRecordMissing(t *testing.T) {
	rec, err := newFeatureRecord(types.FeatureRow{
		RunID:    "run-1",
		RecordID: "rec-2",
		Segment:  "balance_motion.json",
		Missing:  true,
	})
	if err != nil {
		t.Fatalf("newFeatureRecord: %v", err)
	}

	if !rec.Missing {
		t.Error("missing column should be set")
	}

	var features map[string]float64
	if err := json.Unmarshal(rec.Features.Bytes, &features); err != nil {
		t.Fatalf("decoding features JSONB: %v", err)
	}
	for _, k := range types.FeatureKeys {
		if features[k] != 0 {
			t.Errorf("features[%q] = %v, want 0 for a missing row", k, features[k])
		}
	}
}

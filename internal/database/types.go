package database

// FetchedFeatureStats represents cohort-level aggregates fetched from the
// database in a single pass over gait_features. Missing rows are excluded
// from the feature averages but counted separately.
type FetchedFeatureStats struct {
	TotalRows          int64   `gorm:"column:total_rows"`
	TotalRecords       int64   `gorm:"column:total_records"`
	TotalHealthCodes   int64   `gorm:"column:total_health_codes"`
	MissingRows        int64   `gorm:"column:missing_rows"`
	MeanTurns          float64 `gorm:"column:mean_turns"`
	MeanTurnDuration   float64 `gorm:"column:mean_turn_duration"`
	MeanWindowedRate   float64 `gorm:"column:mean_windowed_rate"`
	MeanUnwindowedRate float64 `gorm:"column:mean_unwindowed_rate"`
}

package database

import (
	"time"

	"github.com/jackc/pgtype"
)

// FeatureRecord is one extracted segment's feature row as stored in
// Postgres. The six feature values live in the JSONB column keyed by
// the external feature names; record metadata gets its own columns so
// the API and offline tooling can filter without unpacking JSON.
type FeatureRecord struct {
	ID         int64        `gorm:"primaryKey;autoIncrement;column:id"`
	RunID      string       `gorm:"type:uuid;column:run_id;not null;index"`
	RecordID   string       `gorm:"column:record_id;not null;index"`
	HealthCode string       `gorm:"column:health_code;not null;index"`
	AppVersion string       `gorm:"column:app_version"`
	PhoneInfo  string       `gorm:"column:phone_info"`
	CreatedOn  int64        `gorm:"column:created_on"`
	Segment    string       `gorm:"column:segment;not null"`
	Missing    bool         `gorm:"column:missing;not null;default:false"`
	Features   pgtype.JSONB `gorm:"type:jsonb;not null;column:features"`
	StoredAt   time.Time    `gorm:"column:stored_at;default:CURRENT_TIMESTAMP"`
}

// TableName specifies the table name for FeatureRecord
func (FeatureRecord) TableName() string {
	return "gait_features"
}

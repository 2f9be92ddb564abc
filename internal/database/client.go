package database

import (
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/arytontediarjo/mpower-analysis/internal/log"
	"go.uber.org/zap"
)

// Client holds the connection to the Postgres feature store
type Client struct {
	connectionString string
	DB               *gorm.DB // Exported so it can be accessed from other packages
	logger           *zap.SugaredLogger
}

// NewClient creates a new database client
func NewClient(connectionString string, logger *zap.SugaredLogger) *Client {
	return &Client{
		connectionString: connectionString,
		logger:           logger,
	}
}

// Connect connects to the Postgres feature store
func (c *Client) Connect() error {
	var err error
	c.DB, err = CreateConnection(c.connectionString)
	return err
}

const statsSQL = `
SELECT COUNT(*)                                    AS total_rows,
       COUNT(DISTINCT record_id)                   AS total_records,
       COUNT(DISTINCT health_code)                 AS total_health_codes,
       COUNT(*) FILTER (WHERE missing)             AS missing_rows,
       COALESCE(AVG((features->>'rotation.no_of_turns')::double precision)
                FILTER (WHERE NOT missing), 0)     AS mean_turns,
       COALESCE(AVG((features->>'rotation.mean_duration')::double precision)
                FILTER (WHERE NOT missing), 0)     AS mean_turn_duration,
       COALESCE(AVG((features->>'wchunk.mean_no_of_steps_per_secs')::double precision)
                FILTER (WHERE NOT missing), 0)     AS mean_windowed_rate,
       COALESCE(AVG((features->>'no_wchunk.mean_no_of_steps_per_secs')::double precision)
                FILTER (WHERE NOT missing), 0)     AS mean_unwindowed_rate
FROM gait_features`

// GetFeatures retrieves stored feature rows, newest first, optionally
// restricted to a single health code. A limit of 0 means no limit.
func (c *Client) GetFeatures(healthCode string, limit int) ([]FeatureRecord, error) {
	q := c.DB.Order("created_on DESC, record_id, segment")
	if healthCode != "" {
		q = q.Where("health_code = ?", healthCode)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}

	var rows []FeatureRecord
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("error querying database for feature rows: %+v", err)
	}
	return rows, nil
}

// GetFeaturesByRecordID retrieves every stored segment row for one record
func (c *Client) GetFeaturesByRecordID(recordID string) ([]FeatureRecord, error) {
	var rows []FeatureRecord
	if err := c.DB.Where("record_id = ?", recordID).Order("segment").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("error querying database for record %v: %+v", recordID, err)
	}
	return rows, nil
}

// GetFeatureStats computes cohort-level aggregates over the feature table
func (c *Client) GetFeatureStats() (FetchedFeatureStats, error) {
	var stats FetchedFeatureStats
	if err := c.DB.Raw(statsSQL).Scan(&stats).Error; err != nil {
		return FetchedFeatureStats{}, fmt.Errorf("error querying database for feature stats: %+v", err)
	}
	return stats, nil
}

// CreateConnection is a helper function to create a database connection with standard GORM configuration
func CreateConnection(connectionString string) (*gorm.DB, error) {
	// Create a logger for gorm
	dbLogger := logger.New(
		zap.NewStdLog(log.GetZapLogger()),
		logger.Config{
			SlowThreshold:             time.Second, // Slow SQL threshold
			LogLevel:                  logger.Warn, // Log level
			IgnoreRecordNotFoundError: true,        // Ignore ErrRecordNotFound error for logger
			Colorful:                  true,
		},
	)

	log.Info("connecting to Postgres...")
	db, err := gorm.Open(postgres.Open(connectionString), &gorm.Config{Logger: dbLogger})
	if err != nil {
		log.Warn("warning: unable to create a Postgres connection:", err)
		return nil, err
	}

	return db, nil
}

package main

import (
	"database/sql"
	"encoding/csv"
	"flag"
	"fmt"
	"os"
	"sort"

	_ "github.com/lib/pq"
	"gonum.org/v1/gonum/stat"
)

// FeatureReading represents one stored non-missing feature row
type FeatureReading struct {
	RecordID         string
	HealthCode       string
	Segment          string
	WindowedRate     float64
	UnwindowedRate   float64
	Turns            float64
	MeanTurnDuration float64
	RateGap          float64 // UnwindowedRate - WindowedRate
}

func main() {
	// Command line flags
	var (
		dbHost     = flag.String("db-host", "localhost", "Database host")
		dbPort     = flag.Int("db-port", 5432, "Database port")
		dbUser     = flag.String("db-user", "postgres", "Database user")
		dbPass     = flag.String("db-pass", "", "Database password")
		dbName     = flag.String("db-name", "mpower", "Database name")
		runID      = flag.String("run-id", "", "Restrict the report to one extraction run")
		healthCode = flag.String("health-code", "", "Restrict the report to one participant")
		csvOutput  = flag.String("csv", "", "Optional CSV output file path")
	)
	flag.Parse()

	// Connect to database
	connStr := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		*dbHost, *dbPort, *dbUser, *dbPass, *dbName)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error connecting to database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	// Test connection
	if err := db.Ping(); err != nil {
		fmt.Fprintf(os.Stderr, "Error pinging database: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Gait Feature Extraction Report\n")
	fmt.Printf("==============================\n\n")
	fmt.Printf("Configuration:\n")
	if *runID != "" {
		fmt.Printf("  Run: %s\n", *runID)
	} else {
		fmt.Printf("  Run: all\n")
	}
	if *healthCode != "" {
		fmt.Printf("  Participant: %s\n", *healthCode)
	} else {
		fmt.Printf("  Participant: all\n")
	}
	fmt.Println()

	// Count everything first, then fetch the usable rows
	total, missing := fetchStoreCounts(db, *runID, *healthCode)
	readings := fetchFeatureRows(db, *runID, *healthCode)

	if len(readings) < 10 {
		fmt.Fprintf(os.Stderr, "Error: Not enough feature rows (%d). Need at least 10.\n", len(readings))
		os.Exit(1)
	}

	records := make(map[string]bool)
	participants := make(map[string]bool)
	for _, r := range readings {
		records[r.RecordID] = true
		participants[r.HealthCode] = true
	}
	fmt.Printf("Collected %d usable feature rows (%d records, %d participants)\n",
		len(readings), len(records), len(participants))
	fmt.Printf("Store holds %d rows in scope, %d missing (%.1f%%)\n\n",
		total, missing, 100*float64(missing)/float64(total))

	// Per-feature summary statistics
	displaySummary(readings)

	// How well the two step-rate estimators agree
	displayAgreement(readings)

	// Turning behavior across the cohort's recordings
	displayTurningProfile(readings)

	// Optionally export to CSV
	if *csvOutput != "" {
		if err := exportCSV(*csvOutput, readings); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing CSV: %v\n", err)
		} else {
			fmt.Printf("\nData exported to: %s\n", *csvOutput)
		}
	}
}

func fetchStoreCounts(db *sql.DB, runID, healthCode string) (int64, int64) {
	query := `SELECT COUNT(*), COUNT(*) FILTER (WHERE missing) FROM gait_features WHERE TRUE`

	var args []interface{}
	if runID != "" {
		args = append(args, runID)
		query += fmt.Sprintf(" AND run_id = $%d", len(args))
	}
	if healthCode != "" {
		args = append(args, healthCode)
		query += fmt.Sprintf(" AND health_code = $%d", len(args))
	}

	var total, missing int64
	if err := db.QueryRow(query, args...).Scan(&total, &missing); err != nil {
		fmt.Fprintf(os.Stderr, "Error counting rows: %v\n", err)
		os.Exit(1)
	}
	return total, missing
}

func fetchFeatureRows(db *sql.DB, runID, healthCode string) []FeatureReading {
	query := `
		SELECT
			record_id,
			health_code,
			segment,
			(features->>'wchunk.mean_no_of_steps_per_secs')::double precision,
			(features->>'no_wchunk.mean_no_of_steps_per_secs')::double precision,
			(features->>'rotation.no_of_turns')::double precision,
			(features->>'rotation.mean_duration')::double precision
		FROM gait_features
		WHERE NOT missing
	`

	var args []interface{}
	if runID != "" {
		args = append(args, runID)
		query += fmt.Sprintf(" AND run_id = $%d", len(args))
	}
	if healthCode != "" {
		args = append(args, healthCode)
		query += fmt.Sprintf(" AND health_code = $%d", len(args))
	}
	query += " ORDER BY created_on, record_id, segment"

	rows, err := db.Query(query, args...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error querying data: %v\n", err)
		os.Exit(1)
	}
	defer rows.Close()

	var readings []FeatureReading
	for rows.Next() {
		var r FeatureReading
		if err := rows.Scan(&r.RecordID, &r.HealthCode, &r.Segment,
			&r.WindowedRate, &r.UnwindowedRate, &r.Turns, &r.MeanTurnDuration); err != nil {
			fmt.Fprintf(os.Stderr, "Error scanning row: %v\n", err)
			continue
		}
		r.RateGap = r.UnwindowedRate - r.WindowedRate
		readings = append(readings, r)
	}

	return readings
}

func displaySummary(readings []FeatureReading) {
	fmt.Printf("Feature Summary\n")
	fmt.Printf("===============\n\n")

	features := []struct {
		name   string
		values []float64
	}{
		{"Windowed steps/sec", column(readings, func(r FeatureReading) float64 { return r.WindowedRate })},
		{"Continuous steps/sec", column(readings, func(r FeatureReading) float64 { return r.UnwindowedRate })},
		{"Turns per recording", column(readings, func(r FeatureReading) float64 { return r.Turns })},
		{"Mean turn duration (s)", column(readings, func(r FeatureReading) float64 { return r.MeanTurnDuration })},
	}

	fmt.Printf("%-22s | %8s | %8s | %8s | %8s | %8s | %8s | %8s\n",
		"Feature", "Mean", "StdDev", "Min", "P25", "Median", "P75", "Max")
	fmt.Printf("-----------------------+----------+----------+----------+----------+----------+----------+----------\n")

	for _, f := range features {
		sorted := append([]float64(nil), f.values...)
		sort.Float64s(sorted)
		min, max := minMax(f.values)

		fmt.Printf("%-22s | %8.4f | %8.4f | %8.4f | %8.4f | %8.4f | %8.4f | %8.4f\n",
			f.name,
			stat.Mean(f.values, nil),
			stat.StdDev(f.values, nil),
			min,
			stat.Quantile(0.25, stat.Empirical, sorted, nil),
			stat.Quantile(0.50, stat.Empirical, sorted, nil),
			stat.Quantile(0.75, stat.Empirical, sorted, nil),
			max)
	}
	fmt.Println()
}

func displayAgreement(readings []FeatureReading) {
	windowed := column(readings, func(r FeatureReading) float64 { return r.WindowedRate })
	continuous := column(readings, func(r FeatureReading) float64 { return r.UnwindowedRate })
	gaps := column(readings, func(r FeatureReading) float64 { return r.RateGap })

	corr := stat.Correlation(windowed, continuous, nil)
	intercept, slope := stat.LinearRegression(windowed, continuous, nil, false)

	var zeroWindowed, zeroContinuous int
	for _, r := range readings {
		if r.WindowedRate == 0 {
			zeroWindowed++
		}
		if r.UnwindowedRate == 0 {
			zeroContinuous++
		}
	}

	fmt.Printf("Estimator Agreement (windowed vs continuous step rate)\n")
	fmt.Printf("=======================================================\n\n")
	fmt.Printf("  Pearson correlation: %.4f (R² = %.4f)\n", corr, corr*corr)
	fmt.Printf("  Agreement line: continuous = %.4f + %.4f × windowed\n", intercept, slope)
	fmt.Printf("  Rate gap (continuous - windowed): mean %+.4f, stddev %.4f steps/sec\n",
		stat.Mean(gaps, nil), stat.StdDev(gaps, nil))
	fmt.Printf("  Zero-rate rows: %d windowed, %d continuous (of %d)\n", zeroWindowed, zeroContinuous, len(readings))

	if corr < 0.3 {
		fmt.Printf("\n  ⚠ Low agreement (r=%.4f) - inspect the zero-rate rows before trusting either estimator\n", corr)
	} else if corr < 0.7 {
		fmt.Printf("\n  ℹ Moderate agreement (r=%.4f) - the estimators diverge on part of the cohort\n", corr)
	} else {
		fmt.Printf("\n  ✓ Strong agreement (r=%.4f) - the estimators track each other closely\n", corr)
	}
	fmt.Println()
}

func displayTurningProfile(readings []FeatureReading) {
	var noTurns int
	var durations []float64
	for _, r := range readings {
		if r.Turns == 0 {
			noTurns++
			continue
		}
		durations = append(durations, r.MeanTurnDuration)
	}

	fmt.Printf("Turning Profile\n")
	fmt.Printf("===============\n\n")
	fmt.Printf("  Rows without a qualifying turn: %d of %d (%.1f%%)\n",
		noTurns, len(readings), 100*float64(noTurns)/float64(len(readings)))

	if len(durations) > 0 {
		min, max := minMax(durations)
		fmt.Printf("  Mean turn duration across turning rows: %.4f s (min %.4f, max %.4f)\n",
			stat.Mean(durations, nil), min, max)
	}
	fmt.Println()
}

func column(readings []FeatureReading, pick func(FeatureReading) float64) []float64 {
	values := make([]float64, len(readings))
	for i, r := range readings {
		values[i] = pick(r)
	}
	return values
}

func minMax(values []float64) (float64, float64) {
	if len(values) == 0 {
		return 0, 0
	}
	min, max := values[0], values[0]
	for _, v := range values {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	return min, max
}

func exportCSV(filename string, readings []FeatureReading) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	// Write header
	header := []string{"RecordID", "HealthCode", "Segment", "Windowed_StepsPerSec",
		"Continuous_StepsPerSec", "Turns", "MeanTurnDuration_s", "RateGap"}
	if err := writer.Write(header); err != nil {
		return err
	}

	// Write data
	for _, r := range readings {
		record := []string{
			r.RecordID,
			r.HealthCode,
			r.Segment,
			fmt.Sprintf("%.4f", r.WindowedRate),
			fmt.Sprintf("%.4f", r.UnwindowedRate),
			fmt.Sprintf("%.0f", r.Turns),
			fmt.Sprintf("%.4f", r.MeanTurnDuration),
			fmt.Sprintf("%.4f", r.RateGap),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	return nil
}

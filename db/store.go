// Package db persists the prediction log in SQLite. The log is an external
// collaborator of the scoring path: writes are best-effort and reads serve
// the monitoring surface only.
package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// PredictionRecord is one appended row of the prediction log.
type PredictionRecord struct {
	ID               int64              `json:"id,omitempty"`
	Timestamp        time.Time          `json:"timestamp"`
	Features         map[string]float64 `json:"features"`
	FraudProbability float64            `json:"fraud_probability"`
	Prediction       int                `json:"prediction"`
	ModelVersion     string             `json:"model_version"`
	ModelName        string             `json:"model_name"`
	LatencyMs        float64            `json:"latency_ms"`
}

// Store wraps the SQLite database holding prediction logs.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the prediction log database.
func Open(path string) (*Store, error) {
	database, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	query := `
    CREATE TABLE IF NOT EXISTS predictions (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        timestamp DATETIME NOT NULL,
        features TEXT NOT NULL,
        fraud_probability REAL NOT NULL,
        prediction INTEGER NOT NULL,
        model_version VARCHAR(50),
        model_name VARCHAR(100),
        latency_ms REAL
    );
    CREATE INDEX IF NOT EXISTS idx_predictions_timestamp ON predictions(timestamp);
    CREATE INDEX IF NOT EXISTS idx_predictions_version ON predictions(model_version);
    `
	if _, err := database.Exec(query); err != nil {
		database.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	return &Store{db: database}, nil
}

// LogPrediction appends one record. Rows are append-only; nothing in this
// subsystem mutates or deletes them.
func (s *Store) LogPrediction(ctx context.Context, record PredictionRecord) error {
	features, err := json.Marshal(record.Features)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
        INSERT INTO predictions (
            timestamp, features, fraud_probability, prediction,
            model_version, model_name, latency_ms
        ) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		record.Timestamp, string(features), record.FraudProbability, record.Prediction,
		record.ModelVersion, record.ModelName, record.LatencyMs)
	return err
}

// RecentPredictions returns records newer than since, newest first.
func (s *Store) RecentPredictions(ctx context.Context, since time.Time, limit int) ([]PredictionRecord, error) {
	if limit <= 0 {
		limit = 1000
	}
	rows, err := s.db.QueryContext(ctx, `
        SELECT id, timestamp, features, fraud_probability, prediction,
               model_version, model_name, latency_ms
        FROM predictions
        WHERE timestamp >= ?
        ORDER BY timestamp DESC
        LIMIT ?`, since, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := make([]PredictionRecord, 0)
	for rows.Next() {
		var r PredictionRecord
		var features string
		var version, name sql.NullString
		var latency sql.NullFloat64
		if err := rows.Scan(&r.ID, &r.Timestamp, &features, &r.FraudProbability,
			&r.Prediction, &version, &name, &latency); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(features), &r.Features); err != nil {
			return nil, fmt.Errorf("decode features for row %d: %w", r.ID, err)
		}
		r.ModelVersion = version.String
		r.ModelName = name.String
		r.LatencyMs = latency.Float64
		records = append(records, r)
	}
	return records, rows.Err()
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

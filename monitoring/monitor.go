package monitoring

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"fraudguard/db"
	"fraudguard/ml"
)

// Alert thresholds for the production summary.
const (
	maxHealthyLatencyMs = 1000.0
	maxHealthyFraudRate = 0.10
)

// PredictionSource reads back the prediction log.
type PredictionSource interface {
	RecentPredictions(ctx context.Context, since time.Time, limit int) ([]db.PredictionRecord, error)
}

// Summary aggregates production health over a time window.
type Summary struct {
	WindowHours    float64        `json:"window_hours"`
	Total          int            `json:"total_predictions"`
	FraudRate      float64        `json:"fraud_rate"`
	AvgProbability float64        `json:"avg_probability"`
	AvgLatencyMs   float64        `json:"avg_latency_ms"`
	VersionCounts  map[string]int `json:"version_counts"`
	Alerts         []string       `json:"alerts,omitempty"`
}

// Summarize computes the production summary for the last window of activity.
func Summarize(ctx context.Context, source PredictionSource, window time.Duration) (*Summary, error) {
	records, err := source.RecentPredictions(ctx, time.Now().Add(-window), 0)
	if err != nil {
		return nil, fmt.Errorf("fetch recent predictions: %w", err)
	}

	summary := &Summary{
		WindowHours:   window.Hours(),
		Total:         len(records),
		VersionCounts: make(map[string]int),
	}
	if len(records) == 0 {
		return summary, nil
	}

	var frauds int
	var probabilitySum, latencySum float64
	for _, r := range records {
		if r.Prediction == 1 {
			frauds++
		}
		probabilitySum += r.FraudProbability
		latencySum += r.LatencyMs
		summary.VersionCounts[r.ModelVersion]++
	}
	n := float64(len(records))
	summary.FraudRate = float64(frauds) / n
	summary.AvgProbability = probabilitySum / n
	summary.AvgLatencyMs = latencySum / n

	if summary.AvgLatencyMs > maxHealthyLatencyMs {
		summary.Alerts = append(summary.Alerts,
			fmt.Sprintf("high latency: %.2f ms", summary.AvgLatencyMs))
	}
	if summary.FraudRate > maxHealthyFraudRate {
		summary.Alerts = append(summary.Alerts,
			fmt.Sprintf("high fraud rate: %.2f%%", summary.FraudRate*100))
	}
	return summary, nil
}

// DriftJob periodically compares recent production traffic against the
// training reference sample and publishes the result as gauges.
type DriftJob struct {
	Source    PredictionSource
	Reference *ml.Dataset
	Interval  time.Duration
	Threshold float64
	Window    time.Duration
	Log       *zap.Logger
}

// Run blocks until ctx is cancelled, performing one check per interval.
func (j *DriftJob) Run(ctx context.Context) {
	log := j.Log
	if log == nil {
		log = zap.NewNop()
	}
	window := j.Window
	if window <= 0 {
		window = 24 * time.Hour
	}

	ticker := time.NewTicker(j.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			report, err := j.check(ctx, window)
			if err != nil {
				log.Warn("drift check skipped", zap.Error(err))
				continue
			}
			DriftedFeatures.Set(float64(report.DriftedCount))
			if report.DatasetDrift {
				DatasetDrift.Set(1)
				log.Warn("data drift detected",
					zap.Int("drifted_features", report.DriftedCount),
					zap.Int("features", len(report.Features)))
			} else {
				DatasetDrift.Set(0)
				log.Info("no significant drift",
					zap.Int("drifted_features", report.DriftedCount),
					zap.Int("current_rows", report.CurrentRows))
			}
		}
	}
}

func (j *DriftJob) check(ctx context.Context, window time.Duration) (*DriftReport, error) {
	records, err := j.Source.RecentPredictions(ctx, time.Now().Add(-window), 0)
	if err != nil {
		return nil, err
	}
	current := DatasetFromRecords(records, j.Reference.Features)
	return ComputeDrift(j.Reference, current, j.Threshold)
}

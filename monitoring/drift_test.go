package monitoring

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"fraudguard/db"
	"fraudguard/ml"
)

func gaussianDataset(features []string, n int, mean, std float64, seed int64) *ml.Dataset {
	rnd := rand.New(rand.NewSource(seed))
	ds := &ml.Dataset{Features: features}
	for i := 0; i < n; i++ {
		row := make([]float64, len(features))
		for j := range row {
			row[j] = mean + std*rnd.NormFloat64()
		}
		ds.X = append(ds.X, row)
		ds.Y = append(ds.Y, 0)
	}
	return ds
}

func TestNoDriftOnSameDistribution(t *testing.T) {
	features := []string{"V1", "V2", "Amount"}
	reference := gaussianDataset(features, 2000, 0, 1, 1)
	current := gaussianDataset(features, 2000, 0, 1, 2)

	report, err := ComputeDrift(reference, current, 0.2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.DatasetDrift {
		t.Errorf("same distribution flagged as drifted: %+v", report.Features)
	}
	for _, f := range report.Features {
		if f.PSI > 0.1 {
			t.Errorf("feature %s PSI %v unexpectedly high", f.Feature, f.PSI)
		}
	}
}

func TestDriftOnShiftedDistribution(t *testing.T) {
	features := []string{"V1", "V2"}
	reference := gaussianDataset(features, 2000, 0, 1, 1)
	current := gaussianDataset(features, 2000, 3, 1, 2)

	report, err := ComputeDrift(reference, current, 0.2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !report.DatasetDrift {
		t.Error("shifted distribution not flagged as drifted")
	}
	if report.DriftedCount != len(features) {
		t.Errorf("expected all features drifted, got %d", report.DriftedCount)
	}
}

func TestDriftEmptyCurrent(t *testing.T) {
	reference := gaussianDataset([]string{"V1"}, 100, 0, 1, 1)
	if _, err := ComputeDrift(reference, &ml.Dataset{Features: []string{"V1"}}, 0.2); err == nil {
		t.Fatal("expected error for empty current sample")
	}
}

func TestDatasetFromRecords(t *testing.T) {
	records := []db.PredictionRecord{
		{Features: map[string]float64{"V1": 1, "Amount": 10}, Prediction: 0},
		{Features: map[string]float64{"V1": 2, "Amount": 20}, Prediction: 1},
		{Features: map[string]float64{"V1": 3}, Prediction: 0}, // incomplete, skipped
	}
	ds := DatasetFromRecords(records, []string{"V1", "Amount"})
	if len(ds.X) != 2 {
		t.Fatalf("expected 2 complete rows, got %d", len(ds.X))
	}
	if ds.X[1][1] != 20 {
		t.Errorf("unexpected row: %v", ds.X[1])
	}
	if ds.Y[1] != 1 {
		t.Errorf("expected label 1, got %d", ds.Y[1])
	}
}

type fakeSummarySource struct {
	records []db.PredictionRecord
}

func (f *fakeSummarySource) RecentPredictions(_ context.Context, _ time.Time, _ int) ([]db.PredictionRecord, error) {
	return f.records, nil
}

func TestSummarize(t *testing.T) {
	source := &fakeSummarySource{records: []db.PredictionRecord{
		{Prediction: 1, FraudProbability: 0.9, LatencyMs: 2, ModelVersion: "7"},
		{Prediction: 0, FraudProbability: 0.1, LatencyMs: 4, ModelVersion: "7"},
		{Prediction: 0, FraudProbability: 0.2, LatencyMs: 3, ModelVersion: "6"},
	}}

	summary, err := Summarize(context.Background(), source, 24*time.Hour)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.Total != 3 {
		t.Errorf("expected 3 predictions, got %d", summary.Total)
	}
	if summary.VersionCounts["7"] != 2 {
		t.Errorf("unexpected version counts: %v", summary.VersionCounts)
	}
	// 1/3 fraud rate crosses the 10% alert threshold.
	if len(summary.Alerts) == 0 {
		t.Error("expected a fraud-rate alert")
	}
}

func TestSummarizeEmpty(t *testing.T) {
	summary, err := Summarize(context.Background(), &fakeSummarySource{}, time.Hour)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.Total != 0 || len(summary.Alerts) != 0 {
		t.Errorf("unexpected summary for empty window: %+v", summary)
	}
}

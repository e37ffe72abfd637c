package monitoring

import (
	"errors"
	"math"
	"sort"
	"time"

	"fraudguard/db"
	"fraudguard/ml"
)

const driftBins = 10

// FeatureDrift is the drift verdict for one feature.
type FeatureDrift struct {
	Feature string  `json:"feature"`
	PSI     float64 `json:"psi"`
	Drifted bool    `json:"drifted"`
}

// DriftReport compares a production sample against the training reference.
// Dataset drift is declared when at least half of the shared features drift.
type DriftReport struct {
	GeneratedAt   time.Time      `json:"generated_at"`
	ReferenceRows int            `json:"reference_rows"`
	CurrentRows   int            `json:"current_rows"`
	Features      []FeatureDrift `json:"features"`
	DriftedCount  int            `json:"drifted_count"`
	DatasetDrift  bool           `json:"dataset_drift"`
}

// ComputeDrift calculates the Population Stability Index for every feature
// present in both datasets. A feature drifts when its PSI exceeds threshold.
func ComputeDrift(reference, current *ml.Dataset, threshold float64) (*DriftReport, error) {
	if reference == nil || len(reference.X) == 0 {
		return nil, errors.New("reference sample is empty")
	}
	if current == nil || len(current.X) == 0 {
		return nil, errors.New("current sample is empty")
	}
	if threshold <= 0 {
		threshold = 0.2
	}

	report := &DriftReport{
		GeneratedAt:   time.Now().UTC(),
		ReferenceRows: len(reference.X),
		CurrentRows:   len(current.X),
	}

	for _, feature := range reference.Features {
		currentValues, err := current.Column(feature)
		if err != nil {
			continue // feature absent from production payloads
		}
		referenceValues, err := reference.Column(feature)
		if err != nil {
			continue
		}
		psi := populationStabilityIndex(referenceValues, currentValues)
		drifted := psi > threshold
		report.Features = append(report.Features, FeatureDrift{
			Feature: feature,
			PSI:     psi,
			Drifted: drifted,
		})
		if drifted {
			report.DriftedCount++
		}
	}
	if len(report.Features) == 0 {
		return nil, errors.New("no shared features between reference and current samples")
	}

	report.DatasetDrift = float64(report.DriftedCount) >= float64(len(report.Features))/2
	return report, nil
}

// populationStabilityIndex bins by reference quantiles and compares the share
// of mass per bin. Empty bins are smoothed so the log term stays finite.
func populationStabilityIndex(reference, current []float64) float64 {
	edges := quantileEdges(reference, driftBins)
	refShare := binShares(reference, edges)
	curShare := binShares(current, edges)

	const eps = 1e-4
	psi := 0.0
	for i := range refShare {
		r := math.Max(refShare[i], eps)
		c := math.Max(curShare[i], eps)
		psi += (c - r) * math.Log(c/r)
	}
	return psi
}

func quantileEdges(values []float64, bins int) []float64 {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	edges := make([]float64, 0, bins-1)
	for i := 1; i < bins; i++ {
		idx := i * len(sorted) / bins
		if idx >= len(sorted) {
			idx = len(sorted) - 1
		}
		edges = append(edges, sorted[idx])
	}
	return edges
}

func binShares(values []float64, edges []float64) []float64 {
	counts := make([]float64, len(edges)+1)
	for _, v := range values {
		idx := sort.SearchFloat64s(edges, v)
		// SearchFloat64s puts v == edge into the left bin's right neighbor;
		// any slot is fine as long as both samples use the same rule.
		counts[idx]++
	}
	total := float64(len(values))
	for i := range counts {
		counts[i] /= total
	}
	return counts
}

// DatasetFromRecords rebuilds a feature matrix from logged predictions so the
// production sample can be compared against the training reference.
func DatasetFromRecords(records []db.PredictionRecord, features []string) *ml.Dataset {
	ds := &ml.Dataset{Features: features}
	for _, record := range records {
		row := make([]float64, len(features))
		complete := true
		for j, name := range features {
			value, ok := record.Features[name]
			if !ok {
				complete = false
				break
			}
			row[j] = value
		}
		if !complete {
			continue
		}
		ds.X = append(ds.X, row)
		ds.Y = append(ds.Y, record.Prediction)
	}
	return ds
}

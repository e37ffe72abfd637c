package ml

import (
	"encoding/csv"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"os"
	"strconv"
)

// Dataset is a labelled feature matrix with a named column schema.
type Dataset struct {
	Features []string
	X        [][]float64
	Y        []int
}

// LoadCSV reads a labelled dataset. The label column becomes Y, and any
// columns listed in drop are excluded from the feature schema (the fraud
// dataset carries a Time column that is record-keeping only).
func LoadCSV(path, labelColumn string, drop ...string) (*Dataset, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	dropped := make(map[string]bool, len(drop))
	for _, name := range drop {
		dropped[name] = true
	}

	labelIdx := -1
	featureIdx := make([]int, 0, len(header))
	features := make([]string, 0, len(header))
	for i, name := range header {
		switch {
		case name == labelColumn:
			labelIdx = i
		case dropped[name]:
		default:
			featureIdx = append(featureIdx, i)
			features = append(features, name)
		}
	}
	if labelIdx == -1 {
		return nil, fmt.Errorf("label column %q not found", labelColumn)
	}

	ds := &Dataset{Features: features}
	for line := 2; ; line++ {
		record, err := reader.Read()
		if err != nil {
			break
		}
		row := make([]float64, len(featureIdx))
		for j, idx := range featureIdx {
			v, err := strconv.ParseFloat(record[idx], 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: bad value for %s: %w", line, features[j], err)
			}
			row[j] = v
		}
		label, err := strconv.Atoi(record[labelIdx])
		if err != nil {
			return nil, fmt.Errorf("line %d: bad label: %w", line, err)
		}
		ds.X = append(ds.X, row)
		ds.Y = append(ds.Y, label)
	}
	if len(ds.X) == 0 {
		return nil, errors.New("dataset is empty")
	}
	return ds, nil
}

// Split shuffles and partitions the dataset into train and test sets.
func (d *Dataset) Split(testRatio float64, seed int64) (train, test *Dataset) {
	if testRatio <= 0 || testRatio >= 1 {
		testRatio = 0.2
	}
	rnd := rand.New(rand.NewSource(seed))
	indices := rnd.Perm(len(d.X))

	split := int(math.Round(float64(len(d.X)) * (1 - testRatio)))
	train = &Dataset{Features: d.Features}
	test = &Dataset{Features: d.Features}
	for i, idx := range indices {
		if i < split {
			train.X = append(train.X, d.X[idx])
			train.Y = append(train.Y, d.Y[idx])
		} else {
			test.X = append(test.X, d.X[idx])
			test.Y = append(test.Y, d.Y[idx])
		}
	}
	return train, test
}

// Sample returns up to n rows drawn without replacement, for drift baselines.
func (d *Dataset) Sample(n int, seed int64) *Dataset {
	if n >= len(d.X) {
		return d
	}
	rnd := rand.New(rand.NewSource(seed))
	indices := rnd.Perm(len(d.X))[:n]
	out := &Dataset{Features: d.Features}
	for _, idx := range indices {
		out.X = append(out.X, d.X[idx])
		out.Y = append(out.Y, d.Y[idx])
	}
	return out
}

// Column extracts a single feature column by name.
func (d *Dataset) Column(name string) ([]float64, error) {
	for j, feature := range d.Features {
		if feature == name {
			values := make([]float64, len(d.X))
			for i, row := range d.X {
				values[i] = row[j]
			}
			return values, nil
		}
	}
	return nil, fmt.Errorf("feature %q not found", name)
}

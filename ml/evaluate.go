package ml

import (
	"errors"
	"sort"
)

// Metrics summarizes binary-classification quality on a held-out set.
type Metrics struct {
	AUC       float64 `json:"auc"`
	Accuracy  float64 `json:"accuracy"`
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
}

// Evaluate scores every test row and computes AUC plus thresholded metrics.
func Evaluate(model *LogisticRegression, test *Dataset, threshold float64) (Metrics, error) {
	if len(test.X) == 0 {
		return Metrics{}, errors.New("test set is empty")
	}
	if threshold <= 0 || threshold > 1 {
		threshold = 0.5
	}

	probs := make([]float64, len(test.X))
	for i, row := range test.X {
		record := make(map[string]float64, len(test.Features))
		for j, name := range test.Features {
			record[name] = row[j]
		}
		p, err := model.ScoreProbability(record)
		if err != nil {
			return Metrics{}, err
		}
		probs[i] = p
	}

	var correct, truePositive, predictedPositive, actualPositive int
	for i, p := range probs {
		pred := 0
		if p >= threshold {
			pred = 1
		}
		if pred == test.Y[i] {
			correct++
		}
		if pred == 1 {
			predictedPositive++
		}
		if test.Y[i] == 1 {
			actualPositive++
			if pred == 1 {
				truePositive++
			}
		}
	}

	m := Metrics{
		AUC:      rocAUC(probs, test.Y),
		Accuracy: float64(correct) / float64(len(probs)),
	}
	if predictedPositive > 0 {
		m.Precision = float64(truePositive) / float64(predictedPositive)
	}
	if actualPositive > 0 {
		m.Recall = float64(truePositive) / float64(actualPositive)
	}
	return m, nil
}

// rocAUC computes area under the ROC curve via the rank statistic.
// Tied scores share their average rank.
func rocAUC(probs []float64, labels []int) float64 {
	type scored struct {
		p float64
		y int
	}
	items := make([]scored, len(probs))
	for i := range probs {
		items[i] = scored{probs[i], labels[i]}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].p < items[j].p })

	var positives, negatives int
	ranks := make([]float64, len(items))
	for i := 0; i < len(items); {
		j := i
		for j < len(items) && items[j].p == items[i].p {
			j++
		}
		avgRank := float64(i+j+1) / 2 // ranks are 1-based
		for k := i; k < j; k++ {
			ranks[k] = avgRank
		}
		i = j
	}

	rankSum := 0.0
	for i, item := range items {
		if item.y == 1 {
			positives++
			rankSum += ranks[i]
		} else {
			negatives++
		}
	}
	if positives == 0 || negatives == 0 {
		return 0
	}
	np := float64(positives)
	return (rankSum - np*(np+1)/2) / (np * float64(negatives))
}

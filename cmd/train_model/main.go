package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"fraudguard/ml"
	"fraudguard/registry"
)

func main() {
	dataPath := flag.String("data", "data/processed/creditcard.csv", "training dataset path")
	labelColumn := flag.String("label", "Class", "label column name")
	modelPath := flag.String("model_path", "./models/latest.json", "model output path")
	testRatio := flag.Float64("test_ratio", 0.2, "test ratio")
	epochs := flag.Int("epochs", 200, "training epochs")
	learningRate := flag.Float64("lr", 0.1, "learning rate")
	seed := flag.Int64("seed", 42, "split shuffle seed")
	register := flag.Bool("register", false, "register the trained model as a new version")
	registryURI := flag.String("registry", "http://localhost:5000", "model registry URI")
	modelName := flag.String("model_name", "credit-fraud", "registered model name")
	flag.Parse()

	dataset, err := ml.LoadCSV(*dataPath, *labelColumn, "Time")
	if err != nil {
		log.Fatalf("failed to load dataset: %v", err)
	}
	log.Printf("loaded %d rows with %d features", len(dataset.X), len(dataset.Features))

	train, test := dataset.Split(*testRatio, *seed)

	cfg := ml.DefaultTrainConfig()
	cfg.Epochs = *epochs
	cfg.LearningRate = *learningRate

	model := &ml.LogisticRegression{}
	if err := model.Train(train.Features, train.X, train.Y, cfg); err != nil {
		log.Fatalf("failed to train model: %v", err)
	}

	metrics, err := ml.Evaluate(model, test, 0.5)
	if err != nil {
		log.Fatalf("failed to evaluate model: %v", err)
	}
	log.Printf("auc=%.4f accuracy=%.4f precision=%.4f recall=%.4f",
		metrics.AUC, metrics.Accuracy, metrics.Precision, metrics.Recall)

	if err := os.MkdirAll(filepath.Dir(*modelPath), 0o755); err != nil {
		log.Fatalf("failed to create model dir: %v", err)
	}
	if err := ml.SaveModel(model, metrics.AUC, *modelPath); err != nil {
		log.Fatalf("failed to save model: %v", err)
	}
	fmt.Printf("model saved to %s\n", *modelPath)

	if *register {
		version, err := registerModel(*registryURI, *modelName, *modelPath, metrics)
		if err != nil {
			log.Fatalf("failed to register model: %v", err)
		}
		fmt.Printf("registered %s version %s\n", *modelName, version)
	}
}

func registerModel(uri, name, modelPath string, metrics ml.Metrics) (string, error) {
	artifact, err := os.ReadFile(modelPath)
	if err != nil {
		return "", err
	}
	if !json.Valid(artifact) {
		return "", fmt.Errorf("artifact %s is not valid JSON", modelPath)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	client := registry.NewClient(uri, 30*time.Second)
	version, err := client.CreateVersion(ctx, name, artifact, map[string]float64{
		"auc":       metrics.AUC,
		"accuracy":  metrics.Accuracy,
		"precision": metrics.Precision,
		"recall":    metrics.Recall,
	})
	if err != nil {
		return "", err
	}
	return version.Version, nil
}

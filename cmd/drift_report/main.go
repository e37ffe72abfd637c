package main

import (
	"encoding/json"
	"flag"
	"log"
	"os"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"fraudguard/ml"
	"fraudguard/monitoring"
)

func main() {
	referencePath := flag.String("reference", "data/processed/reference.csv", "training reference dataset")
	currentPath := flag.String("current", "", "production sample dataset")
	labelColumn := flag.String("label", "Class", "label column name")
	threshold := flag.Float64("threshold", 0.2, "PSI threshold per feature")
	asJSON := flag.Bool("json", false, "emit the report as JSON")
	flag.Parse()

	if *currentPath == "" {
		log.Fatal("current is required")
	}

	reference, err := ml.LoadCSV(*referencePath, *labelColumn, "Time")
	if err != nil {
		log.Fatalf("failed to load reference dataset: %v", err)
	}
	current, err := ml.LoadCSV(*currentPath, *labelColumn, "Time")
	if err != nil {
		log.Fatalf("failed to load current dataset: %v", err)
	}

	report, err := monitoring.ComputeDrift(reference, current, *threshold)
	if err != nil {
		log.Fatalf("failed to compute drift: %v", err)
	}

	if *asJSON {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(report); err != nil {
			log.Fatalf("failed to encode report: %v", err)
		}
	} else {
		printReport(report, *threshold)
	}

	if report.DatasetDrift {
		os.Exit(2)
	}
}

// printReport renders a human-readable table with locale-aware thousands
// separators for the row counts.
func printReport(report *monitoring.DriftReport, threshold float64) {
	p := message.NewPrinter(language.English)

	p.Printf("Drift report generated at %s\n", report.GeneratedAt.Format("2006-01-02 15:04:05 MST"))
	p.Printf("Reference sample: %d rows\n", report.ReferenceRows)
	p.Printf("Current sample:   %d rows\n", report.CurrentRows)
	p.Printf("PSI threshold:    %.2f\n\n", threshold)

	p.Printf("%-12s %10s  %s\n", "FEATURE", "PSI", "STATUS")
	for _, feature := range report.Features {
		status := "ok"
		if feature.Drifted {
			status = "DRIFTED"
		}
		p.Printf("%-12s %10.4f  %s\n", feature.Feature, feature.PSI, status)
	}

	p.Printf("\n%d of %d features drifted\n", report.DriftedCount, len(report.Features))
	if report.DatasetDrift {
		p.Printf("DATASET DRIFT DETECTED\n")
	} else {
		p.Printf("no dataset-level drift\n")
	}
}

package ml

import (
	"os"
	"path/filepath"
	"testing"
)

func writeCSV(t *testing.T) string {
	t.Helper()
	content := "Time,V1,V2,Amount,Class\n" +
		"1,0.1,0.2,100.5,0\n" +
		"2,0.3,0.1,20.0,0\n" +
		"3,2.5,3.1,900.0,1\n" +
		"4,0.2,0.4,55.0,0\n"
	path := filepath.Join(t.TempDir(), "transactions.csv")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadCSV(t *testing.T) {
	ds, err := LoadCSV(writeCSV(t), "Class", "Time")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ds.X) != 4 {
		t.Fatalf("expected 4 rows, got %d", len(ds.X))
	}
	want := []string{"V1", "V2", "Amount"}
	if len(ds.Features) != len(want) {
		t.Fatalf("expected features %v, got %v", want, ds.Features)
	}
	for i, name := range want {
		if ds.Features[i] != name {
			t.Errorf("feature %d: expected %s, got %s", i, name, ds.Features[i])
		}
	}
	if ds.Y[2] != 1 {
		t.Errorf("expected label 1 for third row, got %d", ds.Y[2])
	}
}

func TestLoadCSVMissingLabel(t *testing.T) {
	if _, err := LoadCSV(writeCSV(t), "Fraud"); err == nil {
		t.Fatal("expected error for missing label column")
	}
}

func TestSplit(t *testing.T) {
	ds, err := LoadCSV(writeCSV(t), "Class", "Time")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	train, test := ds.Split(0.25, 42)
	if len(train.X)+len(test.X) != len(ds.X) {
		t.Errorf("split lost rows: %d + %d != %d", len(train.X), len(test.X), len(ds.X))
	}
	if len(test.X) == 0 {
		t.Error("expected non-empty test set")
	}
}

func TestColumn(t *testing.T) {
	ds, err := LoadCSV(writeCSV(t), "Class", "Time")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	amounts, err := ds.Column("Amount")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if amounts[0] != 100.5 {
		t.Errorf("expected 100.5, got %v", amounts[0])
	}
	if _, err := ds.Column("nope"); err == nil {
		t.Fatal("expected error for unknown column")
	}
}

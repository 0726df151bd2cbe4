package model_test

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/ezoic/sealedml/core/model"
)

func sampleWeights() *model.ModelWeights {
	return &model.ModelWeights{
		ModelType:    "LogisticRegression",
		Version:      "1",
		Coefficients: []float64{0.25, -1.5, 3},
		Intercept:    0.125,
		Hyperparameters: map[string]string{
			"epochs":   "3",
			"sig_type": "sr",
		},
	}
}

func TestSaveLoadWeights(t *testing.T) {
	w := sampleWeights()
	path := filepath.Join(t.TempDir(), "weights.gob")

	if err := model.SaveWeights(w, path); err != nil {
		t.Fatalf("Failed to save weights: %v", err)
	}

	loaded, err := model.LoadWeights(path)
	if err != nil {
		t.Fatalf("Failed to load weights: %v", err)
	}

	if loaded.Hash() != w.Hash() {
		t.Errorf("Hash mismatch after round trip: %s != %s", loaded.Hash(), w.Hash())
	}

	want, _ := w.Decision([]float64{1, 1, 1})
	got, err := loaded.Decision([]float64{1, 1, 1})
	if err != nil {
		t.Fatalf("Decision failed: %v", err)
	}
	if got != want {
		t.Errorf("Decision mismatch: want %v, got %v", want, got)
	}
}

func TestWriteReadWeights(t *testing.T) {
	var buf bytes.Buffer
	if err := model.WriteWeights(sampleWeights(), &buf); err != nil {
		t.Fatalf("Failed to write weights: %v", err)
	}
	loaded, err := model.ReadWeights(&buf)
	if err != nil {
		t.Fatalf("Failed to read weights: %v", err)
	}
	if loaded.Hyperparameters["sig_type"] != "sr" {
		t.Errorf("Expected sig_type sr, got %q", loaded.Hyperparameters["sig_type"])
	}
}

func TestWriteWeightsNil(t *testing.T) {
	if err := model.WriteWeights(nil, &bytes.Buffer{}); err == nil {
		t.Error("Expected error for nil weights")
	}
}

func TestDecisionDimensionMismatch(t *testing.T) {
	if _, err := sampleWeights().Decision([]float64{1}); err == nil {
		t.Error("Expected dimension error")
	}
}

func TestLoadWeightsFileNotFound(t *testing.T) {
	_, err := model.LoadWeights("nonexistent_file.gob")
	if err == nil {
		t.Fatal("Expected error for nonexistent file, got nil")
	}
	if !bytes.Contains([]byte(err.Error()), []byte("failed to open file")) {
		t.Errorf("Expected error to contain 'failed to open file', got: %v", err)
	}
}

func TestSaveWeightsInvalidPath(t *testing.T) {
	err := model.SaveWeights(sampleWeights(), "/invalid/path/weights.gob")
	if err == nil {
		t.Fatal("Expected error for invalid path, got nil")
	}
	if !bytes.Contains([]byte(err.Error()), []byte("failed to create file")) {
		t.Errorf("Expected error to contain 'failed to create file', got: %v", err)
	}
}

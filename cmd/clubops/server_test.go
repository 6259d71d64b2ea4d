package main

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/clubhouse247/clubops/internal/enrich"
	"github.com/clubhouse247/clubops/internal/storage"
)

func TestPIDFileRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := pidFilePath(dir)

	if err := writePIDFile(path); err != nil {
		t.Fatalf("writePIDFile: %v", err)
	}
	pid, err := readPIDFile(path)
	if err != nil {
		t.Fatalf("readPIDFile: %v", err)
	}
	if pid <= 0 {
		t.Errorf("pid = %d", pid)
	}

	removePIDFile(path)
	if _, err := readPIDFile(path); err == nil {
		t.Error("expected error after removal")
	}
}

func TestPIDFileCreatesDataDir(t *testing.T) {
	path := pidFilePath(filepath.Join(t.TempDir(), "nested", "data"))
	if err := writePIDFile(path); err != nil {
		t.Fatalf("writePIDFile: %v", err)
	}
}

type fakePredictor struct {
	prediction enrich.Prediction
	gotRecent  []enrich.IssueSummary
}

func (f *fakePredictor) Predict(_ context.Context, recent []enrich.IssueSummary) enrich.Prediction {
	f.gotRecent = recent
	return f.prediction
}

func TestRunPredictionJobStoresResult(t *testing.T) {
	store, err := storage.Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })

	for _, desc := range []string{"trackman drift in bay 1", "trackman drift in bay 2"} {
		if _, err := store.SaveIncident(storage.Incident{Description: desc, Category: "equipment"}); err != nil {
			t.Fatal(err)
		}
	}

	p := &fakePredictor{prediction: enrich.Prediction{
		Status: enrich.PredictionOK,
		Predictions: []enrich.PredictedIssue{
			{Issue: "TrackMan sensor failures spreading", Likelihood: 0.7},
		},
		GeneratedAt: time.Now().UTC(),
	}}

	if err := runPredictionJob(context.Background(), store, p); err != nil {
		t.Fatalf("runPredictionJob: %v", err)
	}
	if len(p.gotRecent) != 2 {
		t.Errorf("recent issues = %d", len(p.gotRecent))
	}

	rec, err := store.LatestPrediction()
	if err != nil {
		t.Fatalf("LatestPrediction: %v", err)
	}
	if rec.Status != enrich.PredictionOK {
		t.Errorf("status = %q", rec.Status)
	}

	var stored enrich.Prediction
	if err := json.Unmarshal([]byte(rec.Summary), &stored); err != nil {
		t.Fatalf("parsing summary: %v", err)
	}
	if len(stored.Predictions) != 1 || stored.Predictions[0].Issue == "" {
		t.Errorf("stored = %+v", stored)
	}
}

func TestRunPredictionJobNoData(t *testing.T) {
	store, err := storage.Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })

	p := &fakePredictor{prediction: enrich.Prediction{
		Status:      enrich.PredictionNoData,
		GeneratedAt: time.Now().UTC(),
	}}
	if err := runPredictionJob(context.Background(), store, p); err != nil {
		t.Fatalf("runPredictionJob: %v", err)
	}

	rec, err := store.LatestPrediction()
	if err != nil {
		t.Fatal(err)
	}
	if rec.Status != enrich.PredictionNoData {
		t.Errorf("status = %q", rec.Status)
	}
}

func TestColorizeRespectsNoColor(t *testing.T) {
	old := noColor
	defer func() { noColor = old }()

	noColor = true
	if got := colorize(colorGreen, "ok"); got != "ok" {
		t.Errorf("colorize = %q", got)
	}

	noColor = false
	if got := colorize(colorGreen, "ok"); got == "ok" {
		t.Error("expected color codes")
	}
}

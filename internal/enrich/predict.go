package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// maxPredictIssues caps how many recent issues feed the prediction prompt.
const maxPredictIssues = 10

// Prediction statuses. Predict never returns an error.
const (
	PredictionOK     = "ok"
	PredictionNoData = "no_data"
	PredictionFailed = "prediction_failed"
)

// PredictedIssue is one speculative issue from the model.
type PredictedIssue struct {
	Issue            string  `json:"issue"`
	Likelihood       float64 `json:"likelihood"`
	Rationale        string  `json:"rationale"`
	PreventiveAction string  `json:"preventive_action"`
}

// Prediction is the outcome of a predictive-analysis run.
type Prediction struct {
	Status      string           `json:"status"`
	Predictions []PredictedIssue `json:"predictions,omitempty"`
	Error       string           `json:"error,omitempty"`
	GeneratedAt time.Time        `json:"generated_at"`
}

// Predict produces speculative issue predictions from the most recent issues
// (at most ten are used). An empty input yields status no_data; any chat or
// parse failure yields prediction_failed with the error retained.
func (e *Enricher) Predict(ctx context.Context, recent []IssueSummary) Prediction {
	now := time.Now().UTC()
	if len(recent) == 0 {
		return Prediction{Status: PredictionNoData, GeneratedAt: now}
	}
	if len(recent) > maxPredictIssues {
		recent = recent[:maxPredictIssues]
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	raw, err := e.chatter.Chat(ctx, predictSystemPrompt, buildPredictPrompt(recent))
	if err != nil {
		slog.Warn("prediction chat failed", "error", err)
		return Prediction{Status: PredictionFailed, Error: err.Error(), GeneratedAt: now}
	}

	predictions, err := parsePredictions(raw)
	if err != nil {
		slog.Warn("prediction response rejected", "error", err)
		return Prediction{Status: PredictionFailed, Error: err.Error(), GeneratedAt: now}
	}

	return Prediction{Status: PredictionOK, Predictions: predictions, GeneratedAt: now}
}

func parsePredictions(raw string) ([]PredictedIssue, error) {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")
	raw = strings.TrimSpace(raw)

	var out struct {
		Predictions []PredictedIssue `json:"predictions"`
	}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, fmt.Errorf("parsing prediction response: %w", err)
	}
	return out.Predictions, nil
}

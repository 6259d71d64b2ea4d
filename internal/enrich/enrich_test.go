package enrich

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

// fakeChatter returns a canned response or error and records the last prompts.
type fakeChatter struct {
	response   string
	err        error
	lastSystem string
	lastUser   string
}

func (f *fakeChatter) Chat(_ context.Context, system, user string) (string, error) {
	f.lastSystem = system
	f.lastUser = user
	if f.err != nil {
		return "", f.err
	}
	return f.response, nil
}

const validResponse = `{
	"analysis": "TrackMan camera likely needs a restart",
	"category": "equipment",
	"severity": 4,
	"immediate_actions": ["Remote-restart the Bay 3 simulator PC"],
	"customer_communication": "We are restarting the system in your bay now.",
	"resolution_steps": ["Restart unit", "Verify alignment box"],
	"estimated_time": "15 minutes",
	"escalation_needed": false,
	"prevention": ["Weekly lens cleaning"],
	"confidence": 0.88
}`

func TestEnrichValidResponse(t *testing.T) {
	chatter := &fakeChatter{response: validResponse}
	e := NewEnricher(chatter, "test-model")

	got := e.Enrich(context.Background(), "TrackMan in Bay 3 not working", nil, nil)
	if got.Fallback {
		t.Fatalf("unexpected fallback: reason=%s error=%s", got.Reason, got.Error)
	}
	if got.Data.Category != "equipment" {
		t.Errorf("Category = %q, want equipment", got.Data.Category)
	}
	if got.Data.Severity != 4 {
		t.Errorf("Severity = %d, want 4", got.Data.Severity)
	}
	if got.Model != "test-model" {
		t.Errorf("Model = %q, want test-model", got.Model)
	}
	if got.Timestamp.IsZero() {
		t.Error("Timestamp not set")
	}
}

func TestEnrichStripsCodeFences(t *testing.T) {
	chatter := &fakeChatter{response: "```json\n" + validResponse + "\n```"}
	e := NewEnricher(chatter, "test-model")

	got := e.Enrich(context.Background(), "projector black screen", nil, nil)
	if got.Fallback {
		t.Fatalf("unexpected fallback: %s", got.Error)
	}
}

func TestEnrichMalformedJSON(t *testing.T) {
	chatter := &fakeChatter{response: "Sure! The issue is probably the projector."}
	e := NewEnricher(chatter, "test-model")

	got := e.Enrich(context.Background(), "projector down", nil, nil)
	if !got.Fallback {
		t.Fatal("expected fallback for non-JSON response")
	}
	if got.Reason != ReasonBadJSON {
		t.Errorf("Reason = %q, want %q", got.Reason, ReasonBadJSON)
	}
	if got.Data.Category != FallbackCategory {
		t.Errorf("Category = %q, want %q", got.Data.Category, FallbackCategory)
	}
	if got.Data.Severity != 3 {
		t.Errorf("Severity = %d, want 3", got.Data.Severity)
	}
	if !got.Data.EscalationNeeded {
		t.Error("fallback must require escalation")
	}
	if got.Data.Confidence != 0.0 {
		t.Errorf("Confidence = %v, want 0.0", got.Data.Confidence)
	}
	if got.Error == "" {
		t.Error("fallback must retain the parse error text")
	}
}

func TestEnrichTransportFailure(t *testing.T) {
	chatter := &fakeChatter{err: errors.New("connection refused")}
	e := NewEnricher(chatter, "test-model")

	got := e.Enrich(context.Background(), "hvac broken", nil, nil)
	if !got.Fallback {
		t.Fatal("expected fallback on transport failure")
	}
	if got.Reason != ReasonTransport {
		t.Errorf("Reason = %q, want %q", got.Reason, ReasonTransport)
	}
	if !strings.Contains(got.Error, "connection refused") {
		t.Errorf("Error = %q, want original error text retained", got.Error)
	}
}

func TestEnrichClampsRanges(t *testing.T) {
	chatter := &fakeChatter{response: `{"category":"equipment","severity":9,"confidence":1.7}`}
	e := NewEnricher(chatter, "test-model")

	got := e.Enrich(context.Background(), "x", nil, nil)
	if got.Fallback {
		t.Fatalf("unexpected fallback: %s", got.Error)
	}
	if got.Data.Severity != 5 {
		t.Errorf("Severity = %d, want clamped to 5", got.Data.Severity)
	}
	if got.Data.Confidence != 1.0 {
		t.Errorf("Confidence = %v, want clamped to 1.0", got.Data.Confidence)
	}
}

func TestEnrichRejectsMissingCategory(t *testing.T) {
	chatter := &fakeChatter{response: `{"severity":3}`}
	e := NewEnricher(chatter, "test-model")

	got := e.Enrich(context.Background(), "x", nil, nil)
	if !got.Fallback {
		t.Fatal("expected fallback when category is missing")
	}
}

func TestEnrichPromptIncludesContext(t *testing.T) {
	chatter := &fakeChatter{response: validResponse}
	e := NewEnricher(chatter, "test-model")

	sop := []string{"one", "two", "three", "four", "five", "six", "seven"}
	recent := []IssueSummary{{Description: "projector flicker in bay 2", Category: "equipment", CreatedAt: time.Now()}}
	e.Enrich(context.Background(), "trackman not reading", sop, recent)

	if !strings.Contains(chatter.lastUser, "trackman not reading") {
		t.Error("prompt missing issue description")
	}
	if !strings.Contains(chatter.lastUser, "five") {
		t.Error("prompt missing fifth SOP step")
	}
	if strings.Contains(chatter.lastUser, "six") {
		t.Error("prompt should embed only the first five SOP steps")
	}
	if !strings.Contains(chatter.lastUser, "projector flicker in bay 2") {
		t.Error("prompt missing recent similar issue")
	}
}

func TestPlanCompensationPolicy(t *testing.T) {
	tests := []struct {
		name     string
		severity int
		estimate string
		urgency  Urgency
		kind     CompensationKind
	}{
		{"severity five", 5, "4 hours", UrgencyUrgent, CompensationFullRefund},
		{"severity four", 4, "10 minutes", UrgencyUrgent, CompensationFullRefund},
		{"severity three hours", 3, "2 hours", UrgencyUrgent, CompensationPartialRefund},
		{"severity three minutes", 3, "10 minutes", UrgencyUrgent, CompensationTimeCredit},
		{"severity one", 1, "5 minutes", UrgencyLow, CompensationNone},
		{"severity two", 2, "3 hours", UrgencyLow, CompensationNone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan := Plan(StructuredAnalysis{Severity: tt.severity, EstimatedTime: tt.estimate})
			if plan.Urgency != tt.urgency {
				t.Errorf("Urgency = %q, want %q", plan.Urgency, tt.urgency)
			}
			if plan.Compensation.Kind != tt.kind {
				t.Errorf("Compensation = %q, want %q", plan.Compensation.Kind, tt.kind)
			}
		})
	}
}

func TestPlanChannels(t *testing.T) {
	low := Plan(StructuredAnalysis{Severity: 2})
	if len(low.Channels) != 1 || low.Channels[0] != ChannelEmail {
		t.Errorf("low-severity channels = %v, want [email]", low.Channels)
	}

	urgent := Plan(StructuredAnalysis{Severity: 4})
	if len(urgent.Channels) != 2 {
		t.Errorf("urgent channels = %v, want multi-channel", urgent.Channels)
	}
}

func TestPlanPartialRefundPercent(t *testing.T) {
	plan := Plan(StructuredAnalysis{Severity: 3, EstimatedTime: "2 hours"})
	if plan.Compensation.Percent != 50 {
		t.Errorf("Percent = %d, want 50", plan.Compensation.Percent)
	}
}

func TestPredictNoData(t *testing.T) {
	e := NewEnricher(&fakeChatter{}, "test-model")
	got := e.Predict(context.Background(), nil)
	if got.Status != PredictionNoData {
		t.Errorf("Status = %q, want %q", got.Status, PredictionNoData)
	}
}

func TestPredictFailure(t *testing.T) {
	e := NewEnricher(&fakeChatter{err: errors.New("boom")}, "test-model")
	got := e.Predict(context.Background(), []IssueSummary{{Description: "x"}})
	if got.Status != PredictionFailed {
		t.Errorf("Status = %q, want %q", got.Status, PredictionFailed)
	}
	if got.Error == "" {
		t.Error("failed prediction must retain the error text")
	}
}

func TestPredictParsesResponse(t *testing.T) {
	chatter := &fakeChatter{response: `{"predictions":[{"issue":"trackman drift","likelihood":0.7,"rationale":"three reports this week","preventive_action":"recalibrate"}]}`}
	e := NewEnricher(chatter, "test-model")

	issues := make([]IssueSummary, 15)
	for i := range issues {
		issues[i] = IssueSummary{Description: "issue", Category: "equipment", CreatedAt: time.Now()}
	}
	got := e.Predict(context.Background(), issues)
	if got.Status != PredictionOK {
		t.Fatalf("Status = %q, want ok (error: %s)", got.Status, got.Error)
	}
	if len(got.Predictions) != 1 || got.Predictions[0].Issue != "trackman drift" {
		t.Errorf("Predictions = %+v", got.Predictions)
	}
	// At most ten issues go into the prompt.
	if n := strings.Count(chatter.lastUser, "- ["); n != 10 {
		t.Errorf("prompt embeds %d issues, want 10", n)
	}
}

// Package enrich augments rule-based classifications with a structured
// analysis from an external LLM. The model is held to a fixed JSON contract;
// malformed responses and transport failures degrade to a fixed fallback
// analysis instead of surfacing an error to the caller.
package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/clubhouse247/clubops/internal/llm"
)

// enrichTimeout bounds every outbound LLM call. No retries.
const enrichTimeout = 30 * time.Second

// FallbackCategory is the category reported when enrichment degrades.
const FallbackCategory = "system_error"

// FallbackReason says why an Analysis carries the degraded payload.
type FallbackReason string

const (
	ReasonBadJSON   FallbackReason = "malformed_response"
	ReasonTransport FallbackReason = "transport_failure"
)

// StructuredAnalysis is the JSON contract the model must satisfy.
type StructuredAnalysis struct {
	Analysis              string   `json:"analysis"`
	Category              string   `json:"category"`
	Severity              int      `json:"severity"`
	ImmediateActions      []string `json:"immediate_actions"`
	CustomerCommunication string   `json:"customer_communication"`
	ResolutionSteps       []string `json:"resolution_steps"`
	EstimatedTime         string   `json:"estimated_time"`
	EscalationNeeded      bool     `json:"escalation_needed"`
	Prevention            []string `json:"prevention"`
	Confidence            float64  `json:"confidence"`
}

// Analysis is the closed result of an enrichment call: either a validated
// StructuredAnalysis from the model (Fallback == false) or the fixed degraded
// payload with the failure reason and original error text retained.
type Analysis struct {
	Data      StructuredAnalysis `json:"data"`
	Fallback  bool               `json:"fallback"`
	Reason    FallbackReason     `json:"reason,omitempty"`
	Error     string             `json:"error,omitempty"`
	Model     string             `json:"model,omitempty"`
	Timestamp time.Time          `json:"timestamp"`
}

// IssueSummary is a compact view of a recent incident, fed back into prompts
// as similar-issue context.
type IssueSummary struct {
	Description string    `json:"description"`
	Category    string    `json:"category"`
	CreatedAt   time.Time `json:"created_at"`
}

// Enricher builds prompts, calls the model, and parses responses.
type Enricher struct {
	chatter llm.Chatter
	model   string
	timeout time.Duration
}

// NewEnricher creates an Enricher over the given chat client. The model name
// is recorded on successful analyses for diagnostics only.
func NewEnricher(chatter llm.Chatter, model string) *Enricher {
	return &Enricher{chatter: chatter, model: model, timeout: enrichTimeout}
}

// Enrich analyses one issue description. sopSteps (first five are used) and
// recent similar issues are embedded in the prompt when present. Enrich never
// returns an error: all failures produce a fallback Analysis.
func (e *Enricher) Enrich(ctx context.Context, description string, sopSteps []string, recent []IssueSummary) Analysis {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	system := buildSystemPrompt()
	user := buildIssuePrompt(description, sopSteps, recent)

	raw, err := e.chatter.Chat(ctx, system, user)
	if err != nil {
		slog.Warn("enrichment chat failed", "error", err)
		return fallbackAnalysis(ReasonTransport, err.Error())
	}

	parsed, err := parseAnalysis(raw)
	if err != nil {
		slog.Warn("enrichment response rejected", "error", err)
		return fallbackAnalysis(ReasonBadJSON, err.Error())
	}

	return Analysis{
		Data:      parsed,
		Model:     e.model,
		Timestamp: time.Now().UTC(),
	}
}

// fallbackAnalysis is the fixed degraded payload: category system_error,
// severity 3, escalation required, zero confidence.
func fallbackAnalysis(reason FallbackReason, errText string) Analysis {
	return Analysis{
		Data: StructuredAnalysis{
			Analysis:              "Automated analysis unavailable; manual review required.",
			Category:              FallbackCategory,
			Severity:              3,
			ImmediateActions:      []string{"Escalate to on-call manager"},
			CustomerCommunication: "We are looking into your issue and will follow up shortly.",
			ResolutionSteps:       []string{"Review the issue manually", "Contact the assigned staff member"},
			EstimatedTime:         "unknown",
			EscalationNeeded:      true,
			Prevention:            nil,
			Confidence:            0.0,
		},
		Fallback:  true,
		Reason:    reason,
		Error:     errText,
		Timestamp: time.Now().UTC(),
	}
}

// parseAnalysis strips optional markdown fences, unmarshals the contract, and
// clamps severity/confidence into their documented ranges.
func parseAnalysis(raw string) (StructuredAnalysis, error) {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")
	raw = strings.TrimSpace(raw)

	var out StructuredAnalysis
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return StructuredAnalysis{}, fmt.Errorf("parsing analysis response: %w (response: %s)", err, truncate(raw, 200))
	}
	if out.Category == "" {
		return StructuredAnalysis{}, fmt.Errorf("analysis response missing category")
	}
	if out.Severity < 1 {
		out.Severity = 1
	}
	if out.Severity > 5 {
		out.Severity = 5
	}
	if out.Confidence < 0 {
		out.Confidence = 0
	}
	if out.Confidence > 1 {
		out.Confidence = 1
	}
	return out, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// Package classify assigns a category, severity, and confidence to free-text
// issue descriptions by matching them against the static knowledge base. It
// is deterministic and never fails: descriptions matching nothing fall back
// to the general category at a documented baseline confidence.
package classify

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/clubhouse247/clubops/internal/knowledge"
)

// Baseline values for descriptions that match no knowledge entry.
const (
	noMatchConfidence = 0.5
	noMatchSeverity   = 2
	matchConfidence   = 0.7
)

// Result is the outcome of classifying one description.
type Result struct {
	Description  string             `json:"description"`
	Category     knowledge.Category `json:"category"`
	Severity     int                `json:"severity"`
	Confidence   float64            `json:"confidence"`
	Actions      []string           `json:"actions"`
	TimeEstimate string             `json:"time_estimate"`
	Escalate     bool               `json:"escalate"`
	Matched      []string           `json:"matched_keywords,omitempty"`
	Equipment    []string           `json:"equipment,omitempty"`
	Bay          int                `json:"bay,omitempty"`
}

// Classifier matches descriptions against an immutable knowledge base.
type Classifier struct {
	base *knowledge.Base
}

// New creates a Classifier over the given knowledge base.
func New(base *knowledge.Base) *Classifier {
	return &Classifier{base: base}
}

var bayPattern = regexp.MustCompile(`bay\s*(\d+)`)

var equipmentTerms = []string{"trackman", "projector", "simulator", "screen"}

var problemIndicators = []string{"not working", "broken", "error", "down", "failed"}

// Classify scores every knowledge entry by keyword-overlap count against the
// lower-cased description. The highest overlap wins; ties go to the entry
// declared first. A pure function of the description and the knowledge base.
func (c *Classifier) Classify(description string) Result {
	text := strings.ToLower(description)

	var best *knowledge.Entry
	bestScore := 0
	var bestMatched []string
	for i, e := range c.base.Entries() {
		var matched []string
		for _, kw := range e.Keywords {
			if strings.Contains(text, kw) {
				matched = append(matched, kw)
			}
		}
		if len(matched) > bestScore {
			best = &c.base.Entries()[i]
			bestScore = len(matched)
			bestMatched = matched
		}
	}

	result := Result{
		Description: description,
		Equipment:   extractEquipment(text),
		Bay:         extractBay(text),
	}

	if best == nil {
		result.Category = knowledge.CategoryGeneral
		result.Severity = noMatchSeverity
		result.Confidence = noMatchConfidence
		result.Actions = generalActions()
		result.TimeEstimate = "5-10 minutes"
		return result
	}

	result.Category = best.Category
	result.Severity = best.Severity
	result.Confidence = confidence(text)
	result.Actions = best.Resolution
	result.TimeEstimate = best.TimeEstimate
	result.Matched = bestMatched
	result.Escalate = best.Category == knowledge.CategoryEmergency
	return result
}

// confidence starts at the match baseline and is boosted by specific
// equipment mentions and clear problem indicators, capped at 1.0.
func confidence(text string) float64 {
	score := matchConfidence
	for _, term := range []string{"trackman", "projector", "simulator"} {
		if strings.Contains(text, term) {
			score += 0.2
			break
		}
	}
	for _, ind := range problemIndicators {
		if strings.Contains(text, ind) {
			score += 0.1
			break
		}
	}
	if score > 1.0 {
		score = 1.0
	}
	return score
}

func extractEquipment(text string) []string {
	var out []string
	for _, term := range equipmentTerms {
		if strings.Contains(text, term) {
			out = append(out, term)
		}
	}
	return out
}

func extractBay(text string) int {
	m := bayPattern.FindStringSubmatch(text)
	if m == nil {
		return 0
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0
	}
	return n
}

func generalActions() []string {
	return []string{
		"Gather more specific information about the issue",
		"Check relevant documentation or procedures",
		"Escalate to appropriate staff member",
		"Document any actions taken",
	}
}

// PriorityForSeverity maps the 1..5 severity ordinal onto the ticket
// priority vocabulary.
func PriorityForSeverity(severity int) string {
	switch {
	case severity >= 5:
		return "critical"
	case severity == 4:
		return "high"
	case severity == 3:
		return "medium"
	default:
		return "low"
	}
}

package enrich

import (
	"fmt"
	"strings"
)

const maxSOPSteps = 5

const systemPrompt = `You are the operations assistant for Clubhouse 24/7 Golf, an unmanned golf-simulator facility. Staff are remote; every recommendation must be executable without anyone on site.

Analyze the reported issue and respond with ONLY a single valid JSON object (no markdown, no prose) containing:
- analysis: concise diagnosis of what is likely wrong
- category: one of equipment, facilities, emergency, access, billing, booking, general
- severity: integer 1-5 (5 = facility-wide outage or safety risk)
- immediate_actions: array of remote actions to take now
- customer_communication: one message to send the affected customer
- resolution_steps: array of steps for the assigned staff member
- estimated_time: expected time to resolution (e.g. "20 minutes", "2 hours")
- escalation_needed: boolean, true if a human must intervene beyond the listed steps
- prevention: array of measures to stop recurrence
- confidence: float between 0 and 1`

// buildIssuePrompt embeds the description with optional SOP steps (first
// five) and recent similar issues.
func buildIssuePrompt(description string, sopSteps []string, recent []IssueSummary) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Issue reported:\n%s\n", strings.TrimSpace(description))

	if len(sopSteps) > 0 {
		steps := sopSteps
		if len(steps) > maxSOPSteps {
			steps = steps[:maxSOPSteps]
		}
		sb.WriteString("\nRelevant SOP steps:\n")
		for i, step := range steps {
			fmt.Fprintf(&sb, "%d. %s\n", i+1, strings.TrimSpace(step))
		}
	}

	if len(recent) > 0 {
		sb.WriteString("\nRecent similar issues:\n")
		for _, issue := range recent {
			fmt.Fprintf(&sb, "- [%s] %s\n", issue.Category, strings.TrimSpace(issue.Description))
		}
	}

	sb.WriteString("\nProvide your analysis in the required JSON format.")
	return sb.String()
}

func buildSystemPrompt() string { return systemPrompt }

const predictSystemPrompt = `You are the operations assistant for Clubhouse 24/7 Golf. Given a list of recent issues, predict which problems are likely to occur next so staff can act before customers are affected.

Respond with ONLY a single valid JSON object:
{"predictions": [{"issue": "...", "likelihood": 0.0-1.0, "rationale": "...", "preventive_action": "..."}]}`

func buildPredictPrompt(recent []IssueSummary) string {
	var sb strings.Builder
	sb.WriteString("Recent issues, newest first:\n")
	for _, issue := range recent {
		fmt.Fprintf(&sb, "- [%s] %s (%s)\n", issue.Category, strings.TrimSpace(issue.Description), issue.CreatedAt.Format("2006-01-02 15:04"))
	}
	sb.WriteString("\nPredict the next likely issues in the required JSON format.")
	return sb.String()
}

package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/clubhouse247/clubops/internal/classify"
	"github.com/clubhouse247/clubops/internal/enrich"
	"github.com/clubhouse247/clubops/internal/knowledge"
	"github.com/clubhouse247/clubops/internal/notify"
	"github.com/clubhouse247/clubops/internal/storage"
	"github.com/clubhouse247/clubops/internal/ticket"
)

// recentIssueLimit caps the similar-issue context fed into enrichment.
const recentIssueLimit = 10

// ProcessRequest is one issue report from the dashboard or phone bridge.
type ProcessRequest struct {
	Description  string `json:"description"`
	Priority     string `json:"priority,omitempty"`
	Category     string `json:"category,omitempty"`
	CreateTicket bool   `json:"create_ticket,omitempty"`
	Notify       bool   `json:"notify,omitempty"`
	Enrich       bool   `json:"enrich,omitempty"`
}

// ProcessResponse carries the full pipeline outcome for one request.
type ProcessResponse struct {
	RequestID      string                   `json:"request_id"`
	Blocked        bool                     `json:"blocked,omitempty"`
	Reason         string                   `json:"reason,omitempty"`
	Recommendation string                   `json:"recommendation,omitempty"`
	Classification *classify.Result         `json:"classification,omitempty"`
	Analysis       *enrich.Analysis         `json:"analysis,omitempty"`
	Plan           *enrich.NotificationPlan `json:"notification_plan,omitempty"`
	SOPSteps       []string                 `json:"sop_steps,omitempty"`
	Ticket         *ticketView              `json:"ticket,omitempty"`
	NotifySent     bool                     `json:"notify_sent"`
}

// handleProcess runs the full pipeline: boundary rules, classification,
// optional LLM analysis, optional ticket creation, optional notification,
// and the incident log.
func handleProcess(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		var req ProcessRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if req.Description == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "description is required")
			return
		}

		requestID := uuid.New().String()
		log := slog.With("request_id", requestID)

		if verdict := deps.Frontier.Check(req.Description); verdict.Blocked {
			log.Info("request blocked by boundary rule", "reason", verdict.Reason)
			writeJSON(w, ProcessResponse{
				RequestID:      requestID,
				Blocked:        true,
				Reason:         verdict.Reason,
				Recommendation: verdict.Recommendation,
			})
			return
		}

		res := deps.Classifier.Classify(req.Description)
		log.Info("issue classified",
			"category", res.Category, "severity", res.Severity, "confidence", res.Confidence)

		sopSteps := deps.SOPs.StepsFor(req.Description)

		resp := ProcessResponse{
			RequestID:      requestID,
			Classification: &res,
			SOPSteps:       sopSteps,
		}

		if req.Enrich && deps.Enricher != nil {
			recent := recentIssues(deps, req.Description)
			analysis := deps.Enricher.Enrich(r.Context(), req.Description, sopSteps, recent)
			plan := enrich.Plan(analysis.Data)
			resp.Analysis = &analysis
			resp.Plan = &plan

			// A validated LLM severity refines the keyword match.
			if !analysis.Fallback {
				res.Severity = analysis.Data.Severity
				if len(analysis.Data.ResolutionSteps) > 0 {
					res.Actions = analysis.Data.ResolutionSteps
				}
			}
		}

		if req.CreateTicket {
			t, err := deps.Tickets.Create(res, ticket.Overrides{
				Category: req.Category,
				Priority: req.Priority,
			})
			if err != nil {
				httpError(w, http.StatusInternalServerError, "api_error", "failed to create ticket: %v", err)
				return
			}
			view := viewTicket(t)
			resp.Ticket = &view

			if req.Notify && deps.Notifier != nil {
				resp.NotifySent = dispatchTicket(deps, r, resp, t)
				if resp.NotifySent {
					if err := deps.Store.MarkTicketNotified(t.ID); err != nil {
						log.Warn("failed to mark ticket notified", "ticket", t.ID, "error", err)
					}
				}
			}
		}

		logIncident(deps, log, res, resp)
		writeJSON(w, resp)
	}
}

// dispatchTicket sends the ticket notification, using the analysis plan
// when one exists and the plain email path otherwise.
func dispatchTicket(deps Deps, r *http.Request, resp ProcessResponse, t storage.Ticket) bool {
	subject := notify.TicketSubject(t)
	body := notify.TicketBody(t)
	// Contact lookup falls back to the general contact for unknown values.
	category := knowledge.Category(t.Category)

	if resp.Plan != nil {
		return deps.Notifier.Execute(r.Context(), *resp.Plan, category, subject, body)
	}
	return deps.Notifier.Send(category, subject, body)
}

// logIncident appends the processed request to the incident log. Failures
// are logged and swallowed; the log is advisory context, not the source of
// truth for tickets.
func logIncident(deps Deps, log *slog.Logger, res classify.Result, resp ProcessResponse) {
	status := "open"
	if resp.Ticket != nil {
		status = "assigned"
	}
	_, err := deps.Store.SaveIncident(storage.Incident{
		Description: res.Description,
		Category:    string(res.Category),
		Priority:    classify.PriorityForSeverity(res.Severity),
		Confidence:  res.Confidence,
		Status:      status,
	})
	if err != nil {
		log.Warn("failed to record incident", "error", err)
	}
}

// recentIssues loads the latest incidents as similar-issue prompt context.
func recentIssues(deps Deps, description string) []enrich.IssueSummary {
	incidents, err := deps.Store.RecentIncidents(recentIssueLimit)
	if err != nil {
		slog.Warn("failed to load recent incidents", "error", err)
		return nil
	}
	summaries := make([]enrich.IssueSummary, 0, len(incidents))
	for _, inc := range incidents {
		if inc.Description == description {
			continue
		}
		summaries = append(summaries, enrich.IssueSummary{
			Description: inc.Description,
			Category:    inc.Category,
			CreatedAt:   inc.CreatedAt,
		})
	}
	return summaries
}

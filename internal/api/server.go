// Package api exposes the operations backend over HTTP: issue processing,
// ticket management, the incident log, the SOP library, and the embedded
// staff dashboard.
package api

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/clubhouse247/clubops/internal/actions"
	"github.com/clubhouse247/clubops/internal/classify"
	"github.com/clubhouse247/clubops/internal/enrich"
	"github.com/clubhouse247/clubops/internal/knowledge"
	"github.com/clubhouse247/clubops/internal/sop"
	"github.com/clubhouse247/clubops/internal/storage"
	"github.com/clubhouse247/clubops/internal/ticket"
)

const maxRequestBodySize = 1 << 20 // 1MB

//go:embed web
var webFS embed.FS

// IssueEnricher abstracts LLM analysis for the API layer.
// *enrich.Enricher satisfies it.
type IssueEnricher interface {
	Enrich(ctx context.Context, description string, sopSteps []string, recent []enrich.IssueSummary) enrich.Analysis
}

// Notifier abstracts notification dispatch for the API layer.
// *notify.Dispatcher satisfies it.
type Notifier interface {
	Send(category knowledge.Category, subject, body string) bool
	Execute(ctx context.Context, plan enrich.NotificationPlan, category knowledge.Category, subject, body string) bool
}

// Deps holds the wired subsystems for the HTTP handlers.
type Deps struct {
	Store      *storage.Store
	Classifier *classify.Classifier
	Tickets    *ticket.Engine
	Enricher   IssueEnricher // optional; if nil, /process skips LLM analysis
	Notifier   Notifier      // optional; if nil, notifications are skipped
	SOPs       *sop.Library
	Actions    *actions.Registry
	Frontier   *Frontier
	Facility   string
}

// NewHandler builds the HTTP router.
func NewHandler(deps Deps) http.Handler {
	if deps.Frontier == nil {
		deps.Frontier = NewFrontier()
	}
	if deps.Actions == nil {
		deps.Actions = actions.NewRegistry(deps.Tickets)
	}

	r := chi.NewRouter()
	r.Use(allowCORS)

	r.Post("/process", handleProcess(deps))
	r.Get("/tickets", handleListTickets(deps))
	r.Post("/tickets", handleCreateTicket(deps))
	r.Post("/tickets/{id}/toggle", handleToggleTicket(deps))
	r.Get("/incidents", handleListIncidents(deps))
	r.Get("/sops", handleListSOPs(deps))
	r.Get("/sops/{id}", handleGetSOP(deps))
	r.Post("/sops/{id}/execute", handleExecuteSOP(deps))
	r.Get("/predictions/latest", handleLatestPrediction(deps))
	r.Get("/health", handleHealth(deps))

	webRoot, err := fs.Sub(webFS, "web")
	if err != nil {
		panic(err)
	}
	r.Handle("/", http.FileServer(http.FS(webRoot)))

	return r
}

// allowCORS permits browser calls from any origin. The service runs on a
// private facility network; the dashboard may be served from another host.
func allowCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type ticketView struct {
	ID           string   `json:"id"`
	Category     string   `json:"category"`
	Priority     string   `json:"priority"`
	Description  string   `json:"description"`
	AssignedTo   string   `json:"assigned_to"`
	ContactPhone string   `json:"contact_phone"`
	ContactEmail string   `json:"contact_email"`
	NextSteps    []string `json:"next_steps"`
	Status       string   `json:"status"`
	NotifySent   bool     `json:"notify_sent"`
	CreatedAt    string   `json:"created_at"`
}

func viewTicket(t storage.Ticket) ticketView {
	return ticketView{
		ID:           t.ID,
		Category:     t.Category,
		Priority:     t.Priority,
		Description:  t.Description,
		AssignedTo:   t.AssignedTo,
		ContactPhone: t.ContactPhone,
		ContactEmail: t.ContactEmail,
		NextSteps:    ticket.Steps(t),
		Status:       t.Status,
		NotifySent:   t.NotifySent,
		CreatedAt:    t.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}

func handleListTickets(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tickets, err := deps.Tickets.List()
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list tickets: %v", err)
			return
		}

		views := make([]ticketView, len(tickets))
		for i, t := range tickets {
			views[i] = viewTicket(t)
		}
		writeJSON(w, map[string]any{"tickets": views, "count": len(views)})
	}
}

// CreateTicketRequest opens a ticket directly from the dashboard form,
// bypassing LLM analysis.
type CreateTicketRequest struct {
	Description string `json:"description"`
	Category    string `json:"category"`
	Priority    string `json:"priority"`
}

func handleCreateTicket(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		var req CreateTicketRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if req.Description == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "description is required")
			return
		}

		res := deps.Classifier.Classify(req.Description)
		t, err := deps.Tickets.Create(res, ticket.Overrides{
			Category: req.Category,
			Priority: req.Priority,
		})
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to create ticket: %v", err)
			return
		}

		writeJSONStatus(w, http.StatusCreated, viewTicket(t))
	}
}

func handleToggleTicket(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		writeJSON(w, map[string]bool{"success": deps.Tickets.Toggle(id)})
	}
}

type incidentView struct {
	ID          int64   `json:"id"`
	Description string  `json:"description"`
	Category    string  `json:"category"`
	Priority    string  `json:"priority"`
	Confidence  float64 `json:"confidence"`
	Status      string  `json:"status"`
	CreatedAt   string  `json:"created_at"`
}

func handleListIncidents(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := parseIntParam(r, "limit", 20, 100)

		incidents, err := deps.Store.RecentIncidents(limit)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list incidents: %v", err)
			return
		}

		views := make([]incidentView, len(incidents))
		for i, inc := range incidents {
			views[i] = incidentView{
				ID:          inc.ID,
				Description: inc.Description,
				Category:    inc.Category,
				Priority:    inc.Priority,
				Confidence:  inc.Confidence,
				Status:      inc.Status,
				CreatedAt:   inc.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
			}
		}
		writeJSON(w, map[string]any{"incidents": views, "count": len(views)})
	}
}

func handleListSOPs(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		docs := deps.SOPs.All()
		if docs == nil {
			docs = []sop.Document{}
		}
		writeJSON(w, map[string]any{"sops": docs, "count": len(docs)})
	}
}

func handleGetSOP(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doc, ok := deps.SOPs.Get(chi.URLParam(r, "id"))
		if !ok {
			httpError(w, http.StatusNotFound, "not_found", "sop not found")
			return
		}
		writeJSON(w, doc)
	}
}

// handleExecuteSOP runs every step of a procedure through the action
// registry and reports the per-step results.
func handleExecuteSOP(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doc, ok := deps.SOPs.Get(chi.URLParam(r, "id"))
		if !ok {
			httpError(w, http.StatusNotFound, "not_found", "sop not found")
			return
		}

		results := deps.Actions.ExecuteAll(r.Context(), doc.Steps)
		succeeded := 0
		for _, res := range results {
			if res.Success {
				succeeded++
			}
		}
		writeJSON(w, map[string]any{
			"sop":       doc.ID,
			"results":   results,
			"executed":  len(results),
			"succeeded": succeeded,
		})
	}
}

func handleLatestPrediction(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec, err := deps.Store.LatestPrediction()
		if errors.Is(err, storage.ErrNotFound) {
			writeJSON(w, map[string]string{"status": "no_data"})
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to load prediction: %v", err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		// Summary is the stored prediction JSON; pass it through as-is.
		fmt.Fprint(w, rec.Summary)
	}
}

func handleHealth(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := "ok"
		code := http.StatusOK
		if err := deps.Store.Ping(); err != nil {
			status = "degraded"
			code = http.StatusServiceUnavailable
		}
		writeJSONStatus(w, code, map[string]any{
			"status":      status,
			"facility":    deps.Facility,
			"llm_enabled": deps.Enricher != nil,
		})
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func writeJSONStatus(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	msg := fmt.Sprintf(format, args...)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}

func parseIntParam(r *http.Request, key string, defaultVal, maxVal int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 {
		return defaultVal
	}
	if maxVal > 0 && v > maxVal {
		return maxVal
	}
	return v
}

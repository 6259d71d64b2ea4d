// Package ticket turns classification results into persisted tickets with a
// contact assignment, and manages the active/inactive lifecycle.
package ticket

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/clubhouse247/clubops/internal/classify"
	"github.com/clubhouse247/clubops/internal/knowledge"
	"github.com/clubhouse247/clubops/internal/storage"
)

// Overrides are the form fields a caller may set over classification
// defaults.
type Overrides struct {
	Category string `json:"category,omitempty"`
	Priority string `json:"priority,omitempty"`
}

// Engine creates and manages tickets. Ticket identifiers are derived from
// the creation time plus a process-wide counter, so concurrent creates never
// collide.
type Engine struct {
	store *storage.Store
	base  *knowledge.Base
	seq   atomic.Uint64
	now   func() time.Time
}

// NewEngine creates an Engine over the given store and knowledge base.
func NewEngine(store *storage.Store, base *knowledge.Base) *Engine {
	return &Engine{store: store, base: base, now: time.Now}
}

// Create persists a ticket built from the classification result with the
// given overrides applied. Categories outside the knowledge base's known set
// are coerced to general so every ticket routes to a real contact.
func (e *Engine) Create(res classify.Result, ov Overrides) (storage.Ticket, error) {
	category := res.Category
	if ov.Category != "" {
		category = knowledge.Category(strings.ToLower(strings.TrimSpace(ov.Category)))
	}
	if !e.base.KnownCategory(category) {
		category = knowledge.CategoryGeneral
	}

	priority := ov.Priority
	if priority == "" {
		priority = classify.PriorityForSeverity(res.Severity)
	}

	contact := e.base.Contact(category)

	steps := res.Actions
	if len(steps) == 0 {
		steps = []string{"Contact manager for assistance"}
	}
	stepsJSON, err := json.Marshal(steps)
	if err != nil {
		return storage.Ticket{}, fmt.Errorf("encoding next steps: %w", err)
	}

	description := res.Description
	if description == "" {
		description = "No description provided"
	}

	now := e.now().UTC()
	t := storage.Ticket{
		ID:           fmt.Sprintf("TKT-%d-%d", now.Unix(), e.seq.Add(1)),
		Category:     string(category),
		Priority:     priority,
		Description:  description,
		AssignedTo:   contact.Name,
		ContactPhone: contact.Phone,
		ContactEmail: contact.Email,
		NextSteps:    string(stepsJSON),
		Status:       storage.TicketActive,
		CreatedAt:    now,
	}

	if err := e.store.SaveTicket(t); err != nil {
		return storage.Ticket{}, fmt.Errorf("saving ticket: %w", err)
	}
	slog.Info("ticket created", "id", t.ID, "category", t.Category, "priority", t.Priority, "assigned_to", t.AssignedTo)
	return t, nil
}

// List returns all tickets in creation order.
func (e *Engine) List() ([]storage.Ticket, error) {
	return e.store.ListTickets()
}

// Get returns one ticket by id.
func (e *Engine) Get(id string) (storage.Ticket, error) {
	return e.store.GetTicket(id)
}

// Toggle flips a ticket between active and inactive. Unknown ids return
// false; storage failures are logged and also reported as false. Toggle
// never raises a missing id as an error.
func (e *Engine) Toggle(id string) bool {
	status, err := e.store.ToggleTicketStatus(id)
	if err != nil {
		if err != storage.ErrNotFound {
			slog.Error("toggling ticket failed", "id", id, "error", err)
		}
		return false
	}
	slog.Info("ticket status toggled", "id", id, "status", status)
	return true
}

// Steps decodes a persisted ticket's next-step list.
func Steps(t storage.Ticket) []string {
	var out []string
	if err := json.Unmarshal([]byte(t.NextSteps), &out); err != nil {
		return nil
	}
	return out
}

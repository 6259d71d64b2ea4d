package api

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/clubhouse247/clubops/internal/ticket"
)

// NewMCPServer exposes the operations backend as MCP tools so an AI
// assistant can triage issues and manage tickets on behalf of staff.
func NewMCPServer(deps Deps) *server.MCPServer {
	s := server.NewMCPServer(
		"clubops",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("clubops is the operations backend for an unmanned golf simulator facility: issue triage, tickets, and standard operating procedures."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("classify_issue",
			mcp.WithDescription("Classify an issue description against the facility knowledge base: category, severity, confidence, and recommended actions."),
			mcp.WithString("description", mcp.Description("The issue description"), mcp.Required()),
		),
		mcpClassifyIssue(deps),
	)

	s.AddTool(
		mcp.NewTool("create_ticket",
			mcp.WithDescription("Create a maintenance ticket from an issue description. The ticket is assigned to the contact responsible for the matched category."),
			mcp.WithString("description", mcp.Description("The issue description"), mcp.Required()),
			mcp.WithString("category", mcp.Description("Optional category override")),
			mcp.WithString("priority", mcp.Description("Optional priority override (low, medium, high, critical)")),
		),
		mcpCreateTicket(deps),
	)

	s.AddTool(
		mcp.NewTool("list_tickets",
			mcp.WithDescription("List all tickets in creation order."),
		),
		mcpListTickets(deps),
	)

	s.AddTool(
		mcp.NewTool("toggle_ticket",
			mcp.WithDescription("Toggle a ticket between active and inactive."),
			mcp.WithString("id", mcp.Description("Ticket ID, e.g. TKT-1700000000-1"), mcp.Required()),
		),
		mcpToggleTicket(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"ops://sops",
			"Standard Operating Procedures",
			mcp.WithResourceDescription("The facility SOP library as JSON"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceSOPs(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"ops://incidents/recent",
			"Recent Incidents",
			mcp.WithResourceDescription("Last 10 incidents from the incident log"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceIncidents(deps),
	)

	return s
}

func mcpClassifyIssue(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		description, err := req.RequireString("description")
		if err != nil {
			return mcpError("description is required"), nil
		}

		if verdict := deps.Frontier.Check(description); verdict.Blocked {
			b, _ := json.Marshal(verdict)
			return mcpText(string(b)), nil
		}

		res := deps.Classifier.Classify(description)
		b, err := json.Marshal(res)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal result: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpCreateTicket(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		description, err := req.RequireString("description")
		if err != nil {
			return mcpError("description is required"), nil
		}

		res := deps.Classifier.Classify(description)
		t, err := deps.Tickets.Create(res, ticket.Overrides{
			Category: req.GetString("category", ""),
			Priority: req.GetString("priority", ""),
		})
		if err != nil {
			return mcpError(fmt.Sprintf("failed to create ticket: %v", err)), nil
		}

		b, err := json.Marshal(viewTicket(t))
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal ticket: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpListTickets(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		tickets, err := deps.Tickets.List()
		if err != nil {
			return mcpError(fmt.Sprintf("failed to list tickets: %v", err)), nil
		}

		views := make([]ticketView, len(tickets))
		for i, t := range tickets {
			views[i] = viewTicket(t)
		}
		b, err := json.Marshal(views)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal tickets: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpToggleTicket(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := req.RequireString("id")
		if err != nil {
			return mcpError("id is required"), nil
		}

		if !deps.Tickets.Toggle(id) {
			return mcpError(fmt.Sprintf("ticket %s not found", id)), nil
		}

		t, err := deps.Tickets.Get(id)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to reload ticket: %v", err)), nil
		}
		return mcpText(fmt.Sprintf("Ticket %s is now %s", id, t.Status)), nil
	}
}

func mcpResourceSOPs(deps Deps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		b, err := json.Marshal(deps.SOPs.All())
		if err != nil {
			return nil, fmt.Errorf("failed to marshal sops: %w", err)
		}

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

func mcpResourceIncidents(deps Deps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		incidents, err := deps.Store.RecentIncidents(10)
		if err != nil {
			return nil, fmt.Errorf("failed to load incidents: %w", err)
		}

		type incidentSummary struct {
			ID          int64  `json:"id"`
			CreatedAt   string `json:"created_at"`
			Category    string `json:"category"`
			Description string `json:"description"`
		}

		summaries := make([]incidentSummary, len(incidents))
		for i, inc := range incidents {
			summaries[i] = incidentSummary{
				ID:          inc.ID,
				CreatedAt:   inc.CreatedAt.Format(time.RFC3339),
				Category:    inc.Category,
				Description: inc.Description,
			}
		}

		b, err := json.Marshal(summaries)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal incidents: %w", err)
		}

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}

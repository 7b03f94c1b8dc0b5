package api

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kalambet/frontdesk/internal/access"
	"github.com/kalambet/frontdesk/internal/resolver"
)

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Resolver *resolver.Resolver
	Tenants  access.Tenants
}

// NewMCPServer creates an MCP server exposing the resolver to assistants.
// MCP calls are server-to-server and carry no browser origin.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	s := server.NewMCPServer(
		"frontdesk",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("frontdesk answers customer questions for registered clients from their knowledge base."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("ask",
			mcp.WithDescription("Answer a customer message for a client, from its knowledge base or the fallback model."),
			mcp.WithString("client", mcp.Description("Client slug"), mcp.Required()),
			mcp.WithString("message", mcp.Description("The customer's message"), mcp.Required()),
		),
		mcpAsk(deps),
	)

	s.AddTool(
		mcp.NewTool("search_kb",
			mcp.WithDescription("Rank a client's knowledge base against a query and return matching entries."),
			mcp.WithString("client", mcp.Description("Client slug"), mcp.Required()),
			mcp.WithString("query", mcp.Description("Search query"), mcp.Required()),
			mcp.WithNumber("limit", mcp.Description("Maximum number of results (default 5)")),
		),
		mcpSearchKB(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"frontdesk://clients",
			"Registered Clients",
			mcp.WithResourceDescription("Slugs of all registered clients"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceClients(deps),
	)

	return s
}

func mcpAsk(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		client, err := req.RequireString("client")
		if err != nil {
			return mcpError("client is required"), nil
		}
		message, err := req.RequireString("message")
		if err != nil {
			return mcpError("message is required"), nil
		}

		reply, err := deps.Resolver.Resolve(ctx, resolver.Request{
			Client:    client,
			Message:   message,
			RequestID: uuid.NewString(),
		})
		if err != nil {
			return mcpError(fmt.Sprintf("%s: %s", resolver.ErrorCode(err), reply.Text)), nil
		}

		b, err := json.Marshal(reply)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal reply: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpSearchKB(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		client, err := req.RequireString("client")
		if err != nil {
			return mcpError("client is required"), nil
		}
		query, err := req.RequireString("query")
		if err != nil {
			return mcpError("query is required"), nil
		}

		limit := req.GetInt("limit", 5)
		if limit <= 0 {
			limit = 5
		}
		if limit > 50 {
			limit = 50
		}

		hits, err := deps.Resolver.Search(ctx, client, query, limit)
		if err != nil {
			return mcpError(fmt.Sprintf("search failed: %v", err)), nil
		}
		if len(hits) == 0 {
			return mcpText("[]"), nil
		}

		type hit struct {
			Question string `json:"question"`
			Answer   string `json:"answer"`
			Score    int    `json:"score"`
		}
		results := make([]hit, len(hits))
		for i, h := range hits {
			results[i] = hit{Question: h.Question, Answer: h.Answer, Score: h.Score}
		}

		b, err := json.Marshal(results)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal results: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpResourceClients(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		slugs := deps.Tenants.Current().Slugs()
		if slugs == nil {
			slugs = []string{}
		}
		b, err := json.Marshal(slugs)
		if err != nil {
			return nil, fmt.Errorf("marshaling clients: %w", err)
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

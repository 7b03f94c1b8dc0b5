package api

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/kalambet/frontdesk/internal/kb"
	"github.com/kalambet/frontdesk/internal/proxy"
	"github.com/kalambet/frontdesk/internal/resolver"
	"github.com/kalambet/frontdesk/internal/tenant"
)

type memSource map[string]string

func (m memSource) Read(_ context.Context, slug string) ([]byte, error) {
	return []byte(m[slug]), nil
}

type stubLLM struct{ text string }

func (s stubLLM) HasCredential() bool { return true }

func (s stubLLM) Complete(context.Context, proxy.ChatRequest) (proxy.ChatResponse, error) {
	return proxy.ChatResponse{Choices: []proxy.Choice{{Message: proxy.Message{Content: s.text}}}}, nil
}

func newTestMCPDeps(t *testing.T) MCPDeps {
	t.Helper()
	reg, err := tenant.Parse([]byte(testRegistryJSON))
	if err != nil {
		t.Fatal(err)
	}
	holder := tenant.NewStaticHolder(reg)
	store := kb.NewStore(memSource{
		"acme": `[{"question":"Opening hours","answer":"Mon–Fri 09–17"},{"question":"Parking","answer":"Free parking behind the shop"},{"question":"Parking for bikes","answer":"Racks by the door"}]`,
	}, time.Minute)

	return MCPDeps{
		Resolver: resolver.New(resolver.Deps{Tenants: holder, KB: store, LLM: stubLLM{text: "from the model"}}),
		Tenants:  holder,
	}
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

func TestMCPTool_Ask(t *testing.T) {
	handler := mcpAsk(newTestMCPDeps(t))

	result, err := handler(context.Background(), makeCallToolRequest("ask", map[string]interface{}{
		"client":  "acme",
		"message": "when are your opening hours?",
	}))
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if result.IsError {
		t.Fatalf("tool error: %s", toolText(t, result))
	}

	var reply resolver.Reply
	if err := json.Unmarshal([]byte(toolText(t, result)), &reply); err != nil {
		t.Fatalf("decoding reply: %v", err)
	}
	if reply.Text != "Mon–Fri 09–17" || reply.Unsure {
		t.Errorf("reply = %+v", reply)
	}
}

func TestMCPTool_AskFallback(t *testing.T) {
	handler := mcpAsk(newTestMCPDeps(t))

	result, _ := handler(context.Background(), makeCallToolRequest("ask", map[string]interface{}{
		"client":  "acme",
		"message": "wedding cakes",
	}))
	if !strings.Contains(toolText(t, result), `"reply":"from the model","unsure":true`) {
		t.Errorf("result = %s", toolText(t, result))
	}
}

func TestMCPTool_AskErrors(t *testing.T) {
	handler := mcpAsk(newTestMCPDeps(t))

	cases := []struct {
		args map[string]interface{}
		want string
	}{
		{map[string]interface{}{"message": "hi"}, "client is required"},
		{map[string]interface{}{"client": "acme"}, "message is required"},
		{map[string]interface{}{"client": "ghost", "message": "hi"}, "unknown_client"},
	}
	for _, c := range cases {
		result, err := handler(context.Background(), makeCallToolRequest("ask", c.args))
		if err != nil {
			t.Fatalf("handler error: %v", err)
		}
		if !result.IsError {
			t.Errorf("args %v: expected tool error", c.args)
			continue
		}
		if got := toolText(t, result); !strings.Contains(got, c.want) {
			t.Errorf("args %v: text = %q, want it to contain %q", c.args, got, c.want)
		}
	}
}

func TestMCPTool_SearchKB(t *testing.T) {
	handler := mcpSearchKB(newTestMCPDeps(t))

	result, err := handler(context.Background(), makeCallToolRequest("search_kb", map[string]interface{}{
		"client": "acme",
		"query":  "parking",
		"limit":  float64(1),
	}))
	if err != nil || result.IsError {
		t.Fatalf("search_kb failed: %v %s", err, toolText(t, result))
	}

	var hits []struct {
		Question string `json:"question"`
		Score    int    `json:"score"`
	}
	if err := json.Unmarshal([]byte(toolText(t, result)), &hits); err != nil {
		t.Fatalf("decoding hits: %v", err)
	}
	if len(hits) != 1 || hits[0].Question != "Parking" || hits[0].Score != 3 {
		t.Errorf("hits = %+v", hits)
	}

	result, _ = handler(context.Background(), makeCallToolRequest("search_kb", map[string]interface{}{
		"client": "acme",
		"query":  "pizza",
	}))
	if toolText(t, result) != "[]" {
		t.Errorf("no-match result = %q, want []", toolText(t, result))
	}
}

func TestMCPResource_Clients(t *testing.T) {
	handler := mcpResourceClients(newTestMCPDeps(t))

	contents, err := handler(context.Background(), mcp.ReadResourceRequest{
		Params: mcp.ReadResourceParams{URI: "frontdesk://clients"},
	})
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	tc, ok := contents[0].(mcp.TextResourceContents)
	if !ok {
		t.Fatalf("expected TextResourceContents, got %T", contents[0])
	}
	if tc.Text != `["acme","beta"]` {
		t.Errorf("clients = %s", tc.Text)
	}
}

func TestMCPServer_ConcurrentCalls(t *testing.T) {
	deps := newTestMCPDeps(t)
	ask := mcpAsk(deps)
	search := mcpSearchKB(deps)

	var wg sync.WaitGroup
	errs := make(chan error, 20)

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			var err error
			if i%2 == 0 {
				_, err = ask(context.Background(), makeCallToolRequest("ask", map[string]interface{}{
					"client": "acme", "message": "parking",
				}))
			} else {
				_, err = search(context.Background(), makeCallToolRequest("search_kb", map[string]interface{}{
					"client": "acme", "query": "opening",
				}))
			}
			if err != nil {
				errs <- err
			}
		}(i)
	}

	wg.Wait()
	close(errs)

	for err := range errs {
		t.Fatalf("concurrent call failed: %v", err)
	}
}

func TestNewMCPServer_RegistersTools(t *testing.T) {
	if NewMCPServer(newTestMCPDeps(t)) == nil {
		t.Fatal("nil server")
	}
}

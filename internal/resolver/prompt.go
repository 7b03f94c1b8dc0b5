package resolver

import (
	"fmt"
	"strings"

	"github.com/kalambet/frontdesk/internal/kb"
	"github.com/kalambet/frontdesk/internal/proxy"
)

// maxContextChars bounds the knowledge-base block sent to the provider.
const maxContextChars = 8000

const instructionTemplate = `You are the customer service assistant for %[1]s. Only help with questions about %[1]s.
Always answer in the same language as the user's message.
Keep answers short and friendly.
Prefer the facts in the knowledge base. Do not invent prices, opening hours, policies or contact details that are not listed there.
If you are unsure, or the knowledge base does not cover the question, say so and invite the user to leave their name and email address so someone from %[1]s can follow up.`

func systemInstruction(name string) string {
	return fmt.Sprintf(instructionTemplate, name)
}

// kbContext renders entries as numbered Q/A pairs, cut to maxContextChars.
func kbContext(entries []kb.Entry) string {
	var sb strings.Builder
	for i, e := range entries {
		fmt.Fprintf(&sb, "Q%d: %s\nA%d: %s\n\n", i+1, e.Question, i+1, e.Answer)
		if sb.Len() > maxContextChars*4 {
			break
		}
	}
	return truncateRunes(sb.String(), maxContextChars)
}

// buildRequest assembles the three-message completion request.
func buildRequest(tenantName string, entries []kb.Entry, message string) proxy.ChatRequest {
	ctx := kbContext(entries)
	if ctx == "" {
		ctx = "(empty)"
	}
	return proxy.ChatRequest{
		Messages: []proxy.Message{
			{Role: proxy.RoleSystem, Content: systemInstruction(tenantName)},
			{Role: proxy.RoleSystem, Content: "Knowledge base:\n\n" + ctx},
			{Role: proxy.RoleUser, Content: message},
		},
	}
}

func truncateRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}

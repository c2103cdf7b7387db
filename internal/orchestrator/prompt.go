package orchestrator

import (
	"os"
	"strings"

	"support-agent/internal/conversation"
	"support-agent/internal/llm"
	"support-agent/internal/message"
)

const defaultSystemPrompt = `You are the support assistant for a community
volunteering site. Answer visitor questions about the site, its events,
chapters, and programs. Ground answers in search_site results instead of
guessing. File bug reports with create_github_issue when a visitor reports
broken behavior and you have concrete reproduction steps. Use
handoff_to_human when the visitor asks for a person or you cannot help,
then collect contact details and call submit_handoff_request. Use
navigate_site to move the visitor to a relevant page. Keep replies short
and friendly. Never invent URLs, issue numbers, or policy.`

// buildSystemPrompt appends the authentication-context line. It changes
// issue attribution downstream, not control flow.
func buildSystemPrompt(promptFile, userHandle string) string {
	prompt := defaultSystemPrompt
	if strings.TrimSpace(promptFile) != "" {
		if raw, err := os.ReadFile(promptFile); err == nil && strings.TrimSpace(string(raw)) != "" {
			prompt = strings.TrimSpace(string(raw))
		}
	}
	if strings.TrimSpace(userHandle) != "" {
		prompt += "\n\nThe visitor is authenticated as @" + strings.TrimSpace(userHandle) + "."
	} else {
		prompt += "\n\nThe visitor is an anonymous guest."
	}
	return prompt
}

// buildChatMessages assembles the model context: system prompt plus a
// window of persisted history. Insertion order is preserved; it is the
// model's context window.
func buildChatMessages(systemPrompt string, c conversation.Conversation, window int) []llm.ChatMessage {
	msgs := make([]llm.ChatMessage, 0, len(c.Messages)+1)
	msgs = append(msgs, llm.ChatMessage{Role: "system", Content: systemPrompt})

	start := 0
	if window > 0 && len(c.Messages) > window {
		start = len(c.Messages) - window
		// Never let the window start on a tool message: its tool_call_id
		// would dangle without the assistant message that issued it.
		for start > 0 && c.Messages[start].Role == message.RoleTool {
			start--
		}
	}
	for _, m := range c.Messages[start:] {
		msgs = append(msgs, toChatMessage(m))
	}
	return msgs
}

func toChatMessage(m message.Message) llm.ChatMessage {
	cm := llm.ChatMessage{
		Role:       string(m.Role),
		Content:    m.Content,
		ToolCallID: m.ToolCallID,
	}
	for _, tc := range m.ToolCalls {
		cm.ToolCalls = append(cm.ToolCalls, llm.ToolCall{
			ID:   tc.ID,
			Name: tc.Name,
			Args: tc.Args,
		})
	}
	return cm
}

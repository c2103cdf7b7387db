package transcript

import (
	"strings"

	"support-agent/internal/conversation"
	"support-agent/internal/message"
)

const maxLineRunes = 500

// Render formats a conversation as plain text for issue and handoff
// bodies. It reads the state without mutating it; tool messages are
// skipped because their JSON payloads add noise without context.
func Render(c conversation.Conversation) string {
	var b strings.Builder
	for _, m := range c.Messages {
		switch m.Role {
		case message.RoleUser:
			writeLine(&b, "Visitor", m.Content)
		case message.RoleAssistant:
			if strings.TrimSpace(m.Content) == "" {
				continue
			}
			writeLine(&b, "Agent", m.Content)
		}
	}
	return strings.TrimSpace(b.String())
}

func writeLine(b *strings.Builder, speaker, content string) {
	content = strings.TrimSpace(strings.ReplaceAll(content, "\n", " "))
	if content == "" {
		return
	}
	r := []rune(content)
	if len(r) > maxLineRunes {
		content = string(r[:maxLineRunes]) + "..."
	}
	b.WriteString(speaker)
	b.WriteString(": ")
	b.WriteString(content)
	b.WriteString("\n")
}

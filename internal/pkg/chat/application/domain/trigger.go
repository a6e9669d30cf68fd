package chat

import (
	"regexp"
	"strings"
)

// TriggerMarker invokes the AI assistant when present in a user message.
const TriggerMarker = "@ai"

var triggerPattern = regexp.MustCompile(`(?i)@ai`)

// DetectTrigger reports whether m invokes the assistant and, if so, returns
// the prompt with every marker occurrence stripped and whitespace trimmed.
// Only user messages are eligible. An empty prompt is still a valid trigger;
// the generation step handles it.
func DetectTrigger(m *Message) (prompt string, ok bool) {
	if m == nil || m.SenderType != SenderUser {
		return "", false
	}
	if !strings.Contains(strings.ToLower(m.Text), TriggerMarker) {
		return "", false
	}
	return strings.TrimSpace(triggerPattern.ReplaceAllString(m.Text, "")), true
}

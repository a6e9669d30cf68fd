// Package wire defines the JSON frames exchanged over the websocket.
package wire

import (
	"encoding/json"

	chat "devrelay/internal/pkg/chat/application/domain"
)

// Inbound is a client frame. Exactly one of the optional groups is used
// depending on Type: "join", "leave" or "message".
type Inbound struct {
	Type        string            `json:"type"`
	ProjectID   string            `json:"projectId,omitempty"`
	MemberID    string            `json:"memberId,omitempty"`
	MemberName  string            `json:"memberName,omitempty"`
	Text        string            `json:"text,omitempty"`
	Attachments []chat.Attachment `json:"attachments,omitempty"`
}

type ackFrame struct {
	Type      string `json:"type"`
	ProjectID string `json:"projectId,omitempty"`
}

type errorFrame struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type historyFrame struct {
	Type     string         `json:"type"`
	Messages []chat.Message `json:"messages"`
}

type messageFrame struct {
	Type    string       `json:"type"`
	Message chat.Message `json:"message"`
}

// Ack encodes a lifecycle acknowledgement ("connected", "joined", "left").
func Ack(kind, projectID string) []byte {
	b, _ := json.Marshal(ackFrame{Type: kind, ProjectID: projectID})
	return b
}

// Error encodes a connection-scoped error event.
func Error(msg string) []byte {
	b, _ := json.Marshal(errorFrame{Type: "error", Message: msg})
	return b
}

// History encodes the oldest-first backlog delivered to a joining connection.
func History(msgs []chat.Message) []byte {
	if msgs == nil {
		msgs = []chat.Message{}
	}
	b, _ := json.Marshal(historyFrame{Type: "history", Messages: msgs})
	return b
}

// Message encodes one broadcast message event.
func Message(m chat.Message) ([]byte, error) {
	return json.Marshal(messageFrame{Type: "message", Message: m})
}

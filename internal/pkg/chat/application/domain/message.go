package chat

import (
	"errors"
	"strings"
	"time"
)

// SenderType tells who authored a message and governs rendering plus
// AI-trigger eligibility: only user messages are scanned for the marker.
type SenderType string

const (
	SenderUser   SenderType = "user"
	SenderAI     SenderType = "ai"
	SenderSystem SenderType = "system"
)

// Fixed display names for non-user senders.
const (
	AISenderName      = "AI Assistant"
	SystemSenderName  = "System"
	UnknownSenderName = "Unknown"
)

// Canonical texts emitted by the AI pipeline.
const (
	PlaceholderText      = "AI is generating response..."
	GenerationFailedText = "AI generation failed."
)

// Attachment is an inline generated file carried by a message.
type Attachment struct {
	Filename string `json:"filename"`
	Code     string `json:"code"`
	Language string `json:"language"`
	MimeType string `json:"mimeType"`
}

// Message is an immutable log entry in a project room. ID and Seq are
// assigned at persistence time; Seq is the authoritative history sort key
// (wall clocks cannot tie-break a placeholder and its replacement created
// within the same millisecond).
type Message struct {
	ID          string       `json:"id"`
	ProjectID   string       `json:"projectId"`
	SenderID    *string      `json:"senderId,omitempty"`
	SenderName  string       `json:"senderName"`
	SenderType  SenderType   `json:"senderType"`
	Text        string       `json:"text"`
	Attachments []Attachment `json:"attachments"`
	Seq         int64        `json:"-"`
	CreatedAt   time.Time    `json:"createdAt"`
	Edited      bool         `json:"edited"`
	Deleted     bool         `json:"deleted"`
}

var (
	ErrMissingProject = errors.New("chat: projectId is required")
	ErrEmptyMessage   = errors.New("chat: message has neither text nor attachments")
	ErrNotMember      = errors.New("chat: member does not belong to the project")
)

// NewUserMessage validates and normalizes an inbound user message.
// Empty text is allowed when attachments are present.
func NewUserMessage(projectID string, senderID *string, senderName, text string, attachments []Attachment) (*Message, error) {
	if projectID == "" {
		return nil, ErrMissingProject
	}
	text = strings.TrimSpace(text)
	if text == "" && len(attachments) == 0 {
		return nil, ErrEmptyMessage
	}
	if senderName == "" {
		senderName = UnknownSenderName
	}
	if attachments == nil {
		attachments = []Attachment{}
	}
	return &Message{
		ProjectID:   projectID,
		SenderID:    senderID,
		SenderName:  senderName,
		SenderType:  SenderUser,
		Text:        text,
		Attachments: attachments,
		CreatedAt:   time.Now().UTC(),
	}, nil
}

// NewAIMessage builds an assistant-authored message. Used for both the
// placeholder and the final parsed result.
func NewAIMessage(projectID, text string, attachments []Attachment) *Message {
	if attachments == nil {
		attachments = []Attachment{}
	}
	return &Message{
		ProjectID:   projectID,
		SenderName:  AISenderName,
		SenderType:  SenderAI,
		Text:        text,
		Attachments: attachments,
		CreatedAt:   time.Now().UTC(),
	}
}

// NewSystemMessage builds a system notice visible to the whole room.
func NewSystemMessage(projectID, text string) *Message {
	return &Message{
		ProjectID:   projectID,
		SenderName:  SystemSenderName,
		SenderType:  SenderSystem,
		Text:        text,
		Attachments: []Attachment{},
		CreatedAt:   time.Now().UTC(),
	}
}

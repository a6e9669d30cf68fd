package repository

import (
	"context"

	chat "devrelay/internal/pkg/chat/application/domain"
)

// MessageRepository is the append-only message log port. The store assigns
// ID, insertion sequence and authoritative CreatedAt on save; messages are
// immutable afterwards except for the soft edited/deleted flags.
type MessageRepository interface {
	// SaveMessage appends m and returns the persisted copy with ID, Seq
	// and CreatedAt filled in by the store.
	SaveMessage(ctx context.Context, m chat.Message) (chat.Message, error)

	// RecentByProject returns up to limit messages for the project in
	// reverse-chronological order (newest first, ties broken by insertion
	// sequence).
	RecentByProject(ctx context.Context, projectID string, limit int) ([]chat.Message, error)
}

// ProjectRepository exposes the membership read the relay consumes before
// admitting a connection to a room. Project CRUD lives elsewhere.
type ProjectRepository interface {
	IsMember(ctx context.Context, projectID, memberID string) (bool, error)
}

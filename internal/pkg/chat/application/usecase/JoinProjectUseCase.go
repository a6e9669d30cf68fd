package usecase

import (
	"context"
	"fmt"

	chat "devrelay/internal/pkg/chat/application/domain"
	repository "devrelay/internal/pkg/chat/persistence/repository/port"
)

// JoinProjectInput validates a request to attach a connection to a project room.
type JoinProjectInput struct {
	ProjectID string
	MemberID  string
}

// JoinProjectUseCase checks membership before a connection joins a room.
// A persistence failure surfaces as ErrPersistence so the gateway can
// degrade (admit the join) instead of rejecting the connection.
type JoinProjectUseCase struct {
	Repo repository.ProjectRepository
}

func NewJoinProjectUseCase(repo repository.ProjectRepository) *JoinProjectUseCase {
	return &JoinProjectUseCase{Repo: repo}
}

func (uc *JoinProjectUseCase) Execute(ctx context.Context, in JoinProjectInput) error {
	if in.ProjectID == "" {
		return chat.ErrMissingProject
	}
	if in.MemberID == "" {
		// Anonymous connections are admitted; attribution falls back to
		// the display name only.
		return nil
	}

	ok, err := uc.Repo.IsMember(ctx, in.ProjectID, in.MemberID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if !ok {
		return chat.ErrNotMember
	}
	return nil
}

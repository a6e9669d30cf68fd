package usecase

import (
	"context"
	"fmt"

	"devrelay/internal/infrastructure/cache/port"
	chat "devrelay/internal/pkg/chat/application/domain"
	repository "devrelay/internal/pkg/chat/persistence/repository/port"
)

// PostMessageUseCase appends an already-validated message to the log and
// keeps the cached history for its project coherent. It is the single
// persistence path for user, ai and system messages alike.
type PostMessageUseCase struct {
	Repo  repository.MessageRepository
	Cache port.Cache // optional; nil disables history caching
}

func NewPostMessageUseCase(repo repository.MessageRepository, cache port.Cache) *PostMessageUseCase {
	return &PostMessageUseCase{Repo: repo, Cache: cache}
}

// Execute persists m and returns the stored copy carrying the log-assigned
// ID, sequence and timestamp.
func (uc *PostMessageUseCase) Execute(ctx context.Context, m chat.Message) (*chat.Message, error) {
	saved, err := uc.Repo.SaveMessage(ctx, m)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	if uc.Cache != nil {
		// Best-effort invalidation; a stale entry only survives until TTL.
		_, _ = uc.Cache.Del(ctx, historyCacheKey(saved.ProjectID))
	}
	return &saved, nil
}

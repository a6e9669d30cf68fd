package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"devrelay/internal/infrastructure/cache/port"
	chat "devrelay/internal/pkg/chat/application/domain"
	repository "devrelay/internal/pkg/chat/persistence/repository/port"
)

// DefaultHistoryLimit is the join-time history depth. Ad-hoc refreshes
// typically ask for less.
const DefaultHistoryLimit = 200

const historyCacheTTL = 5 * time.Minute

// LoadHistoryInput carries parameters for a history fetch.
type LoadHistoryInput struct {
	ProjectID string
	Limit     int
}

// LoadHistoryUseCase returns the most recent messages of a project,
// oldest-first, ready to deliver to a joining connection. Fetches at the
// configured join depth go through the cache when one is configured;
// PostMessageUseCase invalidates the entry on every append.
type LoadHistoryUseCase struct {
	Repo  repository.MessageRepository
	Cache port.Cache // optional

	cacheDepth int // the join-time depth; the only fetch size that is cached
}

func NewLoadHistoryUseCase(repo repository.MessageRepository, cache port.Cache, cacheDepth int) *LoadHistoryUseCase {
	if cacheDepth <= 0 {
		cacheDepth = DefaultHistoryLimit
	}
	return &LoadHistoryUseCase{Repo: repo, Cache: cache, cacheDepth: cacheDepth}
}

func (uc *LoadHistoryUseCase) Execute(ctx context.Context, in LoadHistoryInput) ([]chat.Message, error) {
	if in.ProjectID == "" {
		return nil, fmt.Errorf("projectId is required")
	}
	limit := in.Limit
	if limit <= 0 {
		limit = uc.cacheDepth
	}

	useCache := uc.Cache != nil && limit == uc.cacheDepth
	key := historyCacheKey(in.ProjectID)

	if useCache {
		if raw, err := uc.Cache.Get(ctx, key); err == nil {
			var cached []chat.Message
			if json.Unmarshal([]byte(raw), &cached) == nil {
				return cached, nil
			}
		}
	}

	recent, err := uc.Repo.RecentByProject(ctx, in.ProjectID, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	// The log answers newest-first; clients render oldest-first.
	msgs := make([]chat.Message, 0, len(recent))
	for i := len(recent) - 1; i >= 0; i-- {
		msgs = append(msgs, recent[i])
	}

	if useCache {
		if raw, err := json.Marshal(msgs); err == nil {
			_ = uc.Cache.Set(ctx, key, string(raw), historyCacheTTL)
		}
	}
	return msgs, nil
}

func historyCacheKey(projectID string) string {
	return "chat:history:" + projectID
}

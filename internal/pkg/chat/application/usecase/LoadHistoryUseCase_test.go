package usecase

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"devrelay/internal/infrastructure/cache/port"
	chat "devrelay/internal/pkg/chat/application/domain"
)

// memMessageRepo is an in-memory message log assigning ids and a monotonic
// insertion sequence, mirroring the store contract.
type memMessageRepo struct {
	mu   sync.Mutex
	seq  int64
	msgs []chat.Message

	failSave   bool
	failRecent bool
}

func (r *memMessageRepo) SaveMessage(ctx context.Context, m chat.Message) (chat.Message, error) {
	if r.failSave {
		return chat.Message{}, fmt.Errorf("boom")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	m.Seq = r.seq
	m.ID = fmt.Sprintf("m%d", r.seq)
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	r.msgs = append(r.msgs, m)
	return m, nil
}

func (r *memMessageRepo) RecentByProject(ctx context.Context, projectID string, limit int) ([]chat.Message, error) {
	if r.failRecent {
		return nil, fmt.Errorf("boom")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []chat.Message
	for i := len(r.msgs) - 1; i >= 0 && len(out) < limit; i-- {
		if r.msgs[i].ProjectID == projectID {
			out = append(out, r.msgs[i])
		}
	}
	return out, nil
}

// memCache is a minimal in-memory port.Cache.
type memCache struct {
	mu   sync.Mutex
	data map[string]string
}

func newMemCache() *memCache { return &memCache{data: make(map[string]string)} }

func (c *memCache) Get(ctx context.Context, key string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	if !ok {
		return "", port.ErrMiss
	}
	return v, nil
}

func (c *memCache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
	return nil
}

func (c *memCache) Del(ctx context.Context, keys ...string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var n int64
	for _, k := range keys {
		if _, ok := c.data[k]; ok {
			delete(c.data, k)
			n++
		}
	}
	return n, nil
}

func (c *memCache) Ping(ctx context.Context) error { return nil }
func (c *memCache) Close() error                   { return nil }

func seedMessages(t *testing.T, repo *memMessageRepo, projectID string, n int) {
	t.Helper()
	for i := 1; i <= n; i++ {
		_, err := repo.SaveMessage(context.Background(), chat.Message{
			ProjectID:  projectID,
			SenderName: "Ana",
			SenderType: chat.SenderUser,
			Text:       fmt.Sprintf("msg %d", i),
		})
		if err != nil {
			t.Fatalf("seed %d: %v", i, err)
		}
	}
}

func TestLoadHistory_AllWhenUnderLimit(t *testing.T) {
	repo := &memMessageRepo{}
	seedMessages(t, repo, "p1", 3)

	uc := NewLoadHistoryUseCase(repo, nil, 0)
	msgs, err := uc.Execute(context.Background(), LoadHistoryInput{ProjectID: "p1", Limit: 10})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(msgs) != 3 {
		t.Fatalf("expected all 3 messages, got %d", len(msgs))
	}
	for i, m := range msgs {
		if want := fmt.Sprintf("msg %d", i+1); m.Text != want {
			t.Fatalf("expected oldest-first order, index %d = %q", i, m.Text)
		}
	}
}

func TestLoadHistory_MostRecentWhenOverLimit(t *testing.T) {
	repo := &memMessageRepo{}
	seedMessages(t, repo, "p1", 10)

	uc := NewLoadHistoryUseCase(repo, nil, 0)
	msgs, err := uc.Execute(context.Background(), LoadHistoryInput{ProjectID: "p1", Limit: 4})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(msgs) != 4 {
		t.Fatalf("expected 4 messages, got %d", len(msgs))
	}
	// the 4 most recent, still oldest-first
	for i, m := range msgs {
		if want := fmt.Sprintf("msg %d", i+7); m.Text != want {
			t.Fatalf("index %d = %q, want %q", i, m.Text, want)
		}
	}
}

func TestLoadHistory_CacheInvalidatedOnPost(t *testing.T) {
	repo := &memMessageRepo{}
	cache := newMemCache()
	seedMessages(t, repo, "p1", 2)

	history := NewLoadHistoryUseCase(repo, cache, DefaultHistoryLimit)
	post := NewPostMessageUseCase(repo, cache)

	first, err := history.Execute(context.Background(), LoadHistoryInput{ProjectID: "p1", Limit: DefaultHistoryLimit})
	if err != nil {
		t.Fatalf("first fetch: %v", err)
	}
	if len(first) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(first))
	}

	if _, err := post.Execute(context.Background(), *chat.NewSystemMessage("p1", "notice")); err != nil {
		t.Fatalf("post: %v", err)
	}

	second, err := history.Execute(context.Background(), LoadHistoryInput{ProjectID: "p1", Limit: DefaultHistoryLimit})
	if err != nil {
		t.Fatalf("second fetch: %v", err)
	}
	if len(second) != 3 {
		t.Fatalf("cached entry should have been invalidated, got %d messages", len(second))
	}
}

func TestLoadHistory_CacheFollowsConfiguredDepth(t *testing.T) {
	repo := &memMessageRepo{}
	cache := newMemCache()
	seedMessages(t, repo, "p1", 2)

	// Join depth configured away from the package default.
	uc := NewLoadHistoryUseCase(repo, cache, 100)

	first, err := uc.Execute(context.Background(), LoadHistoryInput{ProjectID: "p1", Limit: 100})
	if err != nil {
		t.Fatalf("first fetch: %v", err)
	}
	if len(first) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(first))
	}

	// Append behind the cache's back: a join-depth fetch must be served
	// from the cached entry.
	seedMessages(t, repo, "p1", 1)
	second, err := uc.Execute(context.Background(), LoadHistoryInput{ProjectID: "p1", Limit: 100})
	if err != nil {
		t.Fatalf("second fetch: %v", err)
	}
	if len(second) != 2 {
		t.Fatalf("configured join depth should hit the cache, got %d messages", len(second))
	}

	// Other depths bypass the cache and see the new message.
	third, err := uc.Execute(context.Background(), LoadHistoryInput{ProjectID: "p1", Limit: 50})
	if err != nil {
		t.Fatalf("third fetch: %v", err)
	}
	if len(third) != 3 {
		t.Fatalf("non-join depth should bypass the cache, got %d messages", len(third))
	}
}

func TestSendMessage_AssignsIdentityAndPersists(t *testing.T) {
	repo := &memMessageRepo{}
	sender := "u1"
	uc := NewSendMessageUseCase(NewPostMessageUseCase(repo, nil))

	msg, err := uc.Execute(context.Background(), SendMessageInput{
		ProjectID:  "p1",
		SenderID:   &sender,
		SenderName: "Ana",
		Text:       "hello",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msg.ID == "" || msg.Seq == 0 {
		t.Fatalf("expected log-assigned id and seq, got %+v", msg)
	}
	if msg.SenderType != chat.SenderUser {
		t.Fatalf("expected user sender type, got %q", msg.SenderType)
	}
}

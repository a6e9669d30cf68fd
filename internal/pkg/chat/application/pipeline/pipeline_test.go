package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	qport "devrelay/internal/infrastructure/queue/port"
	chat "devrelay/internal/pkg/chat/application/domain"
	"devrelay/internal/pkg/chat/application/task"
	"devrelay/internal/pkg/chat/application/usecase"
)

type memMessageRepo struct {
	mu   sync.Mutex
	seq  int64
	msgs []chat.Message
}

func (r *memMessageRepo) SaveMessage(ctx context.Context, m chat.Message) (chat.Message, error) {
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

func (r *memMessageRepo) stored() []chat.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]chat.Message(nil), r.msgs...)
}

type recordingBroadcaster struct {
	mu       sync.Mutex
	payloads [][]byte
}

func (b *recordingBroadcaster) Broadcast(projectID string, payload []byte) int {
	b.mu.Lock()
	b.payloads = append(b.payloads, payload)
	b.mu.Unlock()
	return 1
}

func (b *recordingBroadcaster) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.payloads)
}

type capturingQueue struct {
	mu    sync.Mutex
	tasks []qport.Task
}

func (q *capturingQueue) Enqueue(ctx context.Context, t qport.Task, opts ...qport.EnqueueOption) (string, error) {
	q.mu.Lock()
	q.tasks = append(q.tasks, t)
	q.mu.Unlock()
	return fmt.Sprintf("task%d", len(q.tasks)), nil
}

func (q *capturingQueue) Close() error { return nil }

type fakeProvider struct {
	completion string
	err        error
	waitForCtx bool
}

func (p *fakeProvider) Generate(ctx context.Context, prompt string) (string, error) {
	if p.waitForCtx {
		<-ctx.Done()
		return "", ctx.Err()
	}
	if p.err != nil {
		return "", p.err
	}
	return p.completion, nil
}

func newTestPipeline(repo *memMessageRepo, provider *fakeProvider, rooms *recordingBroadcaster, queue *capturingQueue, timeout time.Duration) *Pipeline {
	post := usecase.NewPostMessageUseCase(repo, nil)
	return New(post, provider, rooms, queue, timeout, zerolog.Nop())
}

func userMessage(text string) *chat.Message {
	sender := "u1"
	return &chat.Message{
		ID:         "user1",
		ProjectID:  "p1",
		SenderID:   &sender,
		SenderName: "Ana",
		SenderType: chat.SenderUser,
		Text:       text,
	}
}

func TestTrigger_NoMarkerIsNoOp(t *testing.T) {
	repo := &memMessageRepo{}
	rooms := &recordingBroadcaster{}
	queue := &capturingQueue{}
	p := newTestPipeline(repo, &fakeProvider{}, rooms, queue, time.Second)

	if err := p.Trigger(context.Background(), userMessage("no marker here")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(repo.stored()) != 0 || rooms.count() != 0 || len(queue.tasks) != 0 {
		t.Fatalf("non-trigger message must not touch log, room or queue")
	}
}

func TestTrigger_PlaceholderPrecedesEnqueue(t *testing.T) {
	repo := &memMessageRepo{}
	rooms := &recordingBroadcaster{}
	queue := &capturingQueue{}
	p := newTestPipeline(repo, &fakeProvider{}, rooms, queue, time.Second)

	if err := p.Trigger(context.Background(), userMessage("@ai write a hello world in python")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	stored := repo.stored()
	if len(stored) != 1 {
		t.Fatalf("expected 1 placeholder persisted, got %d", len(stored))
	}
	placeholder := stored[0]
	if placeholder.SenderType != chat.SenderAI || placeholder.Text != chat.PlaceholderText {
		t.Fatalf("unexpected placeholder: %+v", placeholder)
	}
	if placeholder.SenderName != chat.AISenderName {
		t.Fatalf("unexpected placeholder sender name: %q", placeholder.SenderName)
	}
	if rooms.count() != 1 {
		t.Fatalf("placeholder must be broadcast before enqueue, got %d broadcasts", rooms.count())
	}

	if len(queue.tasks) != 1 {
		t.Fatalf("expected 1 queued invocation, got %d", len(queue.tasks))
	}
	var payload task.AIGeneratePayload
	if err := json.Unmarshal(queue.tasks[0].Payload, &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if payload.Prompt != "write a hello world in python" {
		t.Fatalf("marker should be stripped from prompt, got %q", payload.Prompt)
	}
	if payload.PlaceholderMessageID != placeholder.ID {
		t.Fatalf("payload should reference the placeholder, got %q", payload.PlaceholderMessageID)
	}
}

func TestProcess_SuccessEmitsParsedMessage(t *testing.T) {
	repo := &memMessageRepo{}
	rooms := &recordingBroadcaster{}
	queue := &capturingQueue{}
	provider := &fakeProvider{
		completion: "Here you go.\n[filename: main.py]\n```python\nprint('Hello World')\n```",
	}
	p := newTestPipeline(repo, provider, rooms, queue, time.Second)

	err := p.Process(context.Background(), task.AIGeneratePayload{
		InvocationID: "inv1",
		ProjectID:    "p1",
		Prompt:       "write a hello world in python",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	stored := repo.stored()
	if len(stored) != 1 {
		t.Fatalf("expected 1 result message, got %d", len(stored))
	}
	result := stored[0]
	if result.SenderType != chat.SenderAI {
		t.Fatalf("expected ai sender type, got %q", result.SenderType)
	}
	if result.Text != "Here you go." {
		t.Fatalf("expected prose only, got %q", result.Text)
	}
	if len(result.Attachments) != 1 {
		t.Fatalf("expected 1 attachment, got %d", len(result.Attachments))
	}
	att := result.Attachments[0]
	if att.Filename != "main.py" || att.Language != "python" || att.Code != "print('Hello World')\n" {
		t.Fatalf("unexpected attachment: %+v", att)
	}
	if rooms.count() != 1 {
		t.Fatalf("result must be broadcast exactly once, got %d", rooms.count())
	}
}

func TestProcess_FailureEmitsSingleSystemMessage(t *testing.T) {
	repo := &memMessageRepo{}
	rooms := &recordingBroadcaster{}
	provider := &fakeProvider{err: fmt.Errorf("upstream down")}
	p := newTestPipeline(repo, provider, rooms, &capturingQueue{}, time.Second)

	err := p.Process(context.Background(), task.AIGeneratePayload{InvocationID: "inv1", ProjectID: "p1", Prompt: "x"})
	if err != nil {
		t.Fatalf("failure must be terminal, not retried: %v", err)
	}

	stored := repo.stored()
	if len(stored) != 1 {
		t.Fatalf("expected exactly one failure message, got %d", len(stored))
	}
	if stored[0].SenderType != chat.SenderSystem || stored[0].Text != chat.GenerationFailedText {
		t.Fatalf("unexpected failure message: %+v", stored[0])
	}
	for _, m := range stored {
		if m.SenderType == chat.SenderAI && !strings.Contains(m.Text, chat.PlaceholderText) {
			t.Fatalf("no success message may follow a failure")
		}
	}
}

func TestProcess_TimeoutTreatedAsFailure(t *testing.T) {
	repo := &memMessageRepo{}
	rooms := &recordingBroadcaster{}
	provider := &fakeProvider{waitForCtx: true}
	p := newTestPipeline(repo, provider, rooms, &capturingQueue{}, 10*time.Millisecond)

	err := p.Process(context.Background(), task.AIGeneratePayload{InvocationID: "inv1", ProjectID: "p1", Prompt: "x"})
	if err != nil {
		t.Fatalf("timeout must be terminal: %v", err)
	}

	stored := repo.stored()
	if len(stored) != 1 || stored[0].SenderType != chat.SenderSystem {
		t.Fatalf("expected one system failure message, got %+v", stored)
	}
}

func TestProcess_EmptyPromptStillGenerates(t *testing.T) {
	repo := &memMessageRepo{}
	rooms := &recordingBroadcaster{}
	provider := &fakeProvider{completion: "What can I help you build?"}
	p := newTestPipeline(repo, provider, rooms, &capturingQueue{}, time.Second)

	err := p.Process(context.Background(), task.AIGeneratePayload{InvocationID: "inv1", ProjectID: "p1", Prompt: ""})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	stored := repo.stored()
	if len(stored) != 1 || stored[0].Text != "What can I help you build?" {
		t.Fatalf("empty prompt should still produce a response, got %+v", stored)
	}
}

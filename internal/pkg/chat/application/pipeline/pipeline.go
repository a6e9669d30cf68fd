// Package pipeline drives one AI invocation from trigger detection to its
// final room-visible outcome: a parsed assistant message or a system
// failure notice. Invocations run as queued tasks so a slow generation call
// never blocks other rooms or other messages in the same room.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"devrelay/internal/ai"
	qport "devrelay/internal/infrastructure/queue/port"
	"devrelay/internal/metrics"
	chat "devrelay/internal/pkg/chat/application/domain"
	"devrelay/internal/pkg/chat/application/parser"
	"devrelay/internal/pkg/chat/application/task"
	"devrelay/internal/pkg/chat/application/usecase"
	"devrelay/internal/pkg/chat/wire"
)

const attachmentMimeType = "text/plain"

// Broadcaster fans a payload out to every connection in a project room.
// realtime.Registry satisfies it.
type Broadcaster interface {
	Broadcast(projectID string, payload []byte) int
}

// Pipeline owns the placeholder-then-replace flow. The placeholder is
// persisted and broadcast strictly before the generation call is enqueued;
// the final success or failure message strictly after the call completes.
// The placeholder is never mutated: clients reconcile by message id.
type Pipeline struct {
	post     *usecase.PostMessageUseCase
	provider ai.Provider
	rooms    Broadcaster
	queue    qport.Client
	timeout  time.Duration
	logger   zerolog.Logger
}

func New(post *usecase.PostMessageUseCase, provider ai.Provider, rooms Broadcaster, queue qport.Client, timeout time.Duration, logger zerolog.Logger) *Pipeline {
	if timeout <= 0 {
		timeout = 90 * time.Second
	}
	return &Pipeline{
		post:     post,
		provider: provider,
		rooms:    rooms,
		queue:    queue,
		timeout:  timeout,
		logger:   logger,
	}
}

// Trigger inspects a persisted user message and, when it carries the
// assistant marker, starts an invocation: persist and broadcast the
// placeholder, then enqueue the generation task. Returns nil when the
// message is not a trigger.
func (p *Pipeline) Trigger(ctx context.Context, userMsg *chat.Message) error {
	prompt, ok := chat.DetectTrigger(userMsg)
	if !ok {
		return nil
	}

	invocationID := ulid.Make().String()

	placeholder, err := p.post.Execute(ctx, *chat.NewAIMessage(userMsg.ProjectID, chat.PlaceholderText, nil))
	if err != nil {
		return fmt.Errorf("persist placeholder: %w", err)
	}
	p.broadcast(*placeholder)

	payload, err := json.Marshal(task.AIGeneratePayload{
		InvocationID:         invocationID,
		ProjectID:            userMsg.ProjectID,
		Prompt:               prompt,
		PlaceholderMessageID: placeholder.ID,
	})
	if err != nil {
		return err
	}

	_, err = p.queue.Enqueue(ctx, qport.Task{Type: task.AIGenerateTaskType, Payload: payload},
		qport.EnqueueOption{Queue: "ai"})
	if err != nil {
		return fmt.Errorf("enqueue invocation: %w", err)
	}

	p.logger.Info().
		Str("invocation_id", invocationID).
		Str("project_id", userMsg.ProjectID).
		Str("placeholder_id", placeholder.ID).
		Msg("ai invocation enqueued")
	return nil
}

// Process runs one queued invocation to completion. It always returns nil
// after emitting an outcome: a retry by the queue would re-run the
// generation call and emit a second result after a failure notice.
func (p *Pipeline) Process(ctx context.Context, in task.AIGeneratePayload) error {
	genCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	start := time.Now()
	raw, err := p.provider.Generate(genCtx, in.Prompt)
	metrics.AIGenerationDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		metrics.AIInvocations.WithLabelValues("failed").Inc()
		p.logger.Warn().
			Err(err).
			Str("invocation_id", in.InvocationID).
			Str("project_id", in.ProjectID).
			Msg("ai generation failed")
		p.emit(ctx, *chat.NewSystemMessage(in.ProjectID, chat.GenerationFailedText), in.InvocationID)
		return nil
	}

	res := parser.Parse(raw)
	attachments := make([]chat.Attachment, 0, len(res.Files))
	for _, f := range res.Files {
		attachments = append(attachments, chat.Attachment{
			Filename: f.Filename,
			Code:     f.Code,
			Language: f.Language,
			MimeType: attachmentMimeType,
		})
	}

	p.emit(ctx, *chat.NewAIMessage(in.ProjectID, res.Text, attachments), in.InvocationID)
	metrics.AIInvocations.WithLabelValues("succeeded").Inc()
	return nil
}

// emit persists and broadcasts the invocation outcome. Persistence failures
// are logged rather than returned: surfacing them to the queue would
// schedule a retry and with it a duplicate generation.
func (p *Pipeline) emit(ctx context.Context, m chat.Message, invocationID string) {
	saved, err := p.post.Execute(ctx, m)
	if err != nil {
		p.logger.Error().
			Err(err).
			Str("invocation_id", invocationID).
			Str("project_id", m.ProjectID).
			Msg("persist invocation outcome failed")
		return
	}
	p.broadcast(*saved)
}

func (p *Pipeline) broadcast(m chat.Message) {
	payload, err := wire.Message(m)
	if err != nil {
		p.logger.Error().Err(err).Str("message_id", m.ID).Msg("encode broadcast failed")
		return
	}
	delivered := p.rooms.Broadcast(m.ProjectID, payload)
	metrics.BroadcastFanout.Observe(float64(delivered))
	metrics.MessagesRelayed.WithLabelValues(string(m.SenderType)).Inc()
}

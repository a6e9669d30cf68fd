package task

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog"

	qport "devrelay/internal/infrastructure/queue/port"
)

// AIGenerateTaskType is the queue task name for one AI invocation.
const AIGenerateTaskType = "chat:ai_generate"

// AIGeneratePayload is the JSON payload transported via the queue. It is the
// full transient invocation record: nothing else persists the invocation.
type AIGeneratePayload struct {
	InvocationID         string `json:"invocationId"`
	ProjectID            string `json:"projectId"`
	Prompt               string `json:"prompt"`
	PlaceholderMessageID string `json:"placeholderMessageId"`
}

// RegisterAIGenerateTask binds the invocation handler to the provided server.
// The handler owns the failure contract: a failed generation emits a system
// message and completes normally, so the queue never re-runs an invocation.
func RegisterAIGenerateTask(srv qport.Server, h func(ctx context.Context, p AIGeneratePayload) error, logger zerolog.Logger) {
	srv.Register(AIGenerateTaskType, func(ctx context.Context, t qport.Task) error {
		var p AIGeneratePayload
		if err := json.Unmarshal(t.Payload, &p); err != nil {
			// A malformed payload never becomes valid; log and drop it
			// rather than hand it back to the queue for retries.
			logger.Error().Err(err).Str("task_type", t.Type).Msg("dropping malformed invocation payload")
			return nil
		}
		return h(ctx, p)
	})
}

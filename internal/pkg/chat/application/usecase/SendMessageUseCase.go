package usecase

import (
	"context"

	chat "devrelay/internal/pkg/chat/application/domain"
)

// SendMessageInput carries the data needed to post a new user message.
type SendMessageInput struct {
	ProjectID   string
	SenderID    *string
	SenderName  string
	Text        string
	Attachments []chat.Attachment
}

// SendMessageUseCase validates an inbound user message and appends it to the
// project log. Broadcast is the caller's concern; the returned message is
// the canonical stored object all room members should see.
type SendMessageUseCase struct {
	Post *PostMessageUseCase
}

func NewSendMessageUseCase(post *PostMessageUseCase) *SendMessageUseCase {
	return &SendMessageUseCase{Post: post}
}

func (uc *SendMessageUseCase) Execute(ctx context.Context, in SendMessageInput) (*chat.Message, error) {
	msg, err := chat.NewUserMessage(in.ProjectID, in.SenderID, in.SenderName, in.Text, in.Attachments)
	if err != nil {
		return nil, err
	}
	return uc.Post.Execute(ctx, *msg)
}

package action

import (
	"context"
	"fmt"

	"github.com/streamkitdev/streamkit/internal/platform"
)

// SendMessage delivers interpolated text to the chain's platform channel.
// Payload: text (required), channel (optional override).
type SendMessage struct {
	Messenger platform.Messenger
}

func (a *SendMessage) Type() string { return TypeSendMessage }

func (a *SendMessage) Execute(ctx context.Context, actx *Context, payload map[string]any) error {
	text := str(payload, "text")
	if text == "" {
		return nil
	}
	channel := str(payload, "channel")
	if channel == "" {
		channel = actx.Channel
	}
	if err := a.Messenger.SendMessage(ctx, actx.Platform, actx.StreamerID, channel, text); err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	return nil
}

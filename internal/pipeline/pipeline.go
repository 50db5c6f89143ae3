// Package pipeline wires the chat path together: every inbound chat line
// passes through the moderation gate, then command dispatch, then lands on
// the bus for the automation engine.
package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/streamkitdev/streamkit/internal/command"
	"github.com/streamkitdev/streamkit/internal/metrics"
	"github.com/streamkitdev/streamkit/internal/moderation"
	"github.com/streamkitdev/streamkit/internal/platform"
)

// Publisher emits events onto the bus.
type Publisher interface {
	Publish(streamerID, topic string, payload map[string]any)
}

// Pipeline is the chat ingress entry point called by platform connectors.
type Pipeline struct {
	gate       *moderation.Gate
	dispatcher *command.Dispatcher
	bus        Publisher
	moderator  platform.Moderator
	logger     *slog.Logger
}

func New(gate *moderation.Gate, dispatcher *command.Dispatcher, bus Publisher, moderator platform.Moderator, logger *slog.Logger) *Pipeline {
	return &Pipeline{
		gate:       gate,
		dispatcher: dispatcher,
		bus:        bus,
		moderator:  moderator,
		logger:     logger,
	}
}

// HandleChat processes one chat line. A moderation verdict fully suppresses
// the message: the command dispatcher never sees it and no chat.message
// event reaches the automation engine; a moderation.flagged event is
// published instead so dashboards and audit trails still observe it.
func (p *Pipeline) HandleChat(streamerID, platformName, channel string, user command.UserContext, text string) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("chat pipeline panic", "streamer", streamerID, "err", r)
		}
	}()
	start := time.Now()
	defer func() {
		metrics.ChatHandleDuration.Observe(float64(time.Since(start).Milliseconds()))
	}()

	if v := p.gate.Classify(streamerID, text); v != nil {
		p.applyVerdict(streamerID, platformName, user.Username, text, v)
		return
	}

	p.dispatcher.Handle(streamerID, platformName, channel, user, text)

	p.bus.Publish(streamerID, platformName+".chat.message", map[string]any{
		"user":    user.Username,
		"message": text,
		"channel": channel,
		"isMod":   user.IsMod,
		"isSub":   user.IsSub,
	})
}

func (p *Pipeline) applyVerdict(streamerID, platformName, user, text string, v *moderation.Verdict) {
	metrics.ModerationVerdicts.WithLabelValues(v.Action).Inc()
	p.logger.Info("moderation verdict",
		"streamer", streamerID, "user", user, "action", v.Action, "pattern", v.Pattern, "reason", v.Reason)

	ctx := context.Background()
	var err error
	switch v.Action {
	case moderation.ActionBan:
		err = p.moderator.Ban(ctx, platformName, streamerID, user, v.Reason)
	default:
		err = p.moderator.Timeout(ctx, platformName, streamerID, user, v.DurationSec, v.Reason)
	}
	if err != nil {
		p.logger.Error("moderation action failed", "streamer", streamerID, "user", user, "action", v.Action, "err", err)
	}

	p.bus.Publish(streamerID, platformName+".moderation.flagged", map[string]any{
		"user":        user,
		"message":     text,
		"action":      v.Action,
		"pattern":     v.Pattern,
		"durationSec": v.DurationSec,
	})
}

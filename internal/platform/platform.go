// Package platform declares the collaborator interfaces the core calls for
// side effects. Real implementations (Twitch chat client, Discord gateway,
// OBS socket) live outside this module and are injected at startup.
package platform

import (
	"context"
	"log/slog"
)

// Messenger delivers chat text to a platform channel.
type Messenger interface {
	SendMessage(ctx context.Context, platform, streamerID, channel, text string) error
}

// SceneController performs stream-control side effects.
type SceneController interface {
	ChangeScene(ctx context.Context, streamerID, scene string) error
	ToggleSource(ctx context.Context, streamerID, source string) error
	ToggleMute(ctx context.Context, streamerID, input string) error
}

// RoleManager grants and revokes guild roles.
type RoleManager interface {
	GrantRole(ctx context.Context, guildID, userID, roleID string) error
	RevokeRole(ctx context.Context, guildID, userID, roleID string) error
}

// Moderator applies moderation verdicts against a platform.
type Moderator interface {
	Timeout(ctx context.Context, platform, streamerID, user string, seconds int, reason string) error
	Ban(ctx context.Context, platform, streamerID, user, reason string) error
}

// LogSideEffects implements every collaborator by logging the call. It backs
// local runs and tests where no platform connector is attached.
type LogSideEffects struct {
	Logger *slog.Logger
}

func NewLogSideEffects(logger *slog.Logger) *LogSideEffects {
	return &LogSideEffects{Logger: logger}
}

func (l *LogSideEffects) SendMessage(_ context.Context, platform, streamerID, channel, text string) error {
	l.Logger.Info("send message", "platform", platform, "streamer", streamerID, "channel", channel, "text", text)
	return nil
}

func (l *LogSideEffects) ChangeScene(_ context.Context, streamerID, scene string) error {
	l.Logger.Info("change scene", "streamer", streamerID, "scene", scene)
	return nil
}

func (l *LogSideEffects) ToggleSource(_ context.Context, streamerID, source string) error {
	l.Logger.Info("toggle source", "streamer", streamerID, "source", source)
	return nil
}

func (l *LogSideEffects) ToggleMute(_ context.Context, streamerID, input string) error {
	l.Logger.Info("toggle mute", "streamer", streamerID, "input", input)
	return nil
}

func (l *LogSideEffects) GrantRole(_ context.Context, guildID, userID, roleID string) error {
	l.Logger.Info("grant role", "guild", guildID, "user", userID, "role", roleID)
	return nil
}

func (l *LogSideEffects) RevokeRole(_ context.Context, guildID, userID, roleID string) error {
	l.Logger.Info("revoke role", "guild", guildID, "user", userID, "role", roleID)
	return nil
}

func (l *LogSideEffects) Timeout(_ context.Context, platform, streamerID, user string, seconds int, reason string) error {
	l.Logger.Info("timeout user", "platform", platform, "streamer", streamerID, "user", user, "seconds", seconds, "reason", reason)
	return nil
}

func (l *LogSideEffects) Ban(_ context.Context, platform, streamerID, user, reason string) error {
	l.Logger.Info("ban user", "platform", platform, "streamer", streamerID, "user", user, "reason", reason)
	return nil
}

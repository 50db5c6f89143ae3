// Package command parses chat lines for command invocations and runs the
// matched command through its permission and cooldown gates.
package command

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/streamkitdev/streamkit/internal/metrics"
	"github.com/streamkitdev/streamkit/internal/platform"
	"github.com/streamkitdev/streamkit/internal/render"
	"github.com/streamkitdev/streamkit/internal/rules"
)

// UserContext describes the invoking user as reported by the platform
// connector. Missing standing information reads as false (fail-closed).
type UserContext struct {
	Username string `json:"username"`
	IsMod    bool   `json:"isMod"`
	IsSub    bool   `json:"isSub"`
	IsOwner  bool   `json:"isOwner"`
}

// Rank maps the user's standing onto the permission hierarchy.
func (u UserContext) Rank() int {
	switch {
	case u.IsOwner:
		return rules.TierOwner.Rank()
	case u.IsMod:
		return rules.TierMod.Rank()
	case u.IsSub:
		return rules.TierSubscriber.Rank()
	default:
		return rules.TierEveryone.Rank()
	}
}

// CommandSource is the slice of the rule store the dispatcher needs.
type CommandSource interface {
	Command(streamerID, name string) (*rules.Command, bool)
	TouchCommand(streamerID, name string, t time.Time)
}

// Publisher emits events onto the bus.
type Publisher interface {
	Publish(streamerID, topic string, payload map[string]any)
}

// Dispatcher resolves and runs chat commands. Cooldowns are process-local,
// keyed streamerID:name, and reset on restart.
type Dispatcher struct {
	store     CommandSource
	bus       Publisher
	messenger platform.Messenger
	prefix    string
	logger    *slog.Logger

	mu        sync.Mutex
	cooldowns map[string]int64 // key -> last fired, unix millis

	now func() time.Time
}

func NewDispatcher(store CommandSource, bus Publisher, messenger platform.Messenger, prefix string, logger *slog.Logger) *Dispatcher {
	if prefix == "" {
		prefix = "!"
	}
	return &Dispatcher{
		store:     store,
		bus:       bus,
		messenger: messenger,
		prefix:    prefix,
		logger:    logger,
		cooldowns: make(map[string]int64),
		now:       time.Now,
	}
}

// Handle processes one chat line. It returns true when the line addressed a
// known command, regardless of whether the command actually ran: a gated
// invocation (disabled, permission, cooldown) stops silently with no side
// effect. Gates run before anything observable happens; only the success
// path sends, touches LastUsedAt and emits the command event.
func (d *Dispatcher) Handle(streamerID, platformName, channel string, user UserContext, rawText string) (handled bool) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("command dispatch panic", "streamer", streamerID, "err", r)
		}
	}()

	text := strings.TrimSpace(rawText)
	if !strings.HasPrefix(text, d.prefix) {
		return false
	}
	fields := strings.Fields(text[len(d.prefix):])
	if len(fields) == 0 {
		return false
	}
	name := strings.ToLower(fields[0])
	args := fields[1:]

	cmd, ok := d.store.Command(streamerID, name)
	if !ok {
		metrics.CommandsHandled.WithLabelValues("miss").Inc()
		return false
	}

	if !cmd.Enabled {
		metrics.CommandsHandled.WithLabelValues("disabled").Inc()
		return true
	}
	if user.Rank() < cmd.Permission.Rank() {
		metrics.CommandsHandled.WithLabelValues("denied").Inc()
		return true
	}

	now := d.now()
	key := streamerID + ":" + name

	d.mu.Lock()
	last := d.cooldowns[key]
	if cmd.CooldownSec > 0 && now.UnixMilli()-last < int64(cmd.CooldownSec)*1000 {
		d.mu.Unlock()
		metrics.CommandsHandled.WithLabelValues("cooldown").Inc()
		return true
	}
	// Stamp before the send so a rapid second invocation cannot slip through
	// while the first is in flight.
	d.cooldowns[key] = now.UnixMilli()
	d.mu.Unlock()

	vars := render.Vars{
		"username": user.Username,
		"user":     user.Username,
		"command":  name,
		"args":     strings.Join(args, " "),
		"channel":  channel,
	}
	if response := render.Interpolate(cmd.Response, vars); response != "" {
		if err := d.messenger.SendMessage(context.Background(), platformName, streamerID, channel, response); err != nil {
			d.logger.Error("command response send failed", "streamer", streamerID, "command", name, "err", err)
		}
	}

	d.store.TouchCommand(streamerID, name, now)

	argsAny := make([]any, len(args))
	for i, a := range args {
		argsAny[i] = a
	}
	d.bus.Publish(streamerID, platformName+".chat.command", map[string]any{
		"user":    user.Username,
		"command": name,
		"args":    argsAny,
		"isMod":   user.IsMod,
		"isSub":   user.IsSub,
	})

	metrics.CommandsHandled.WithLabelValues("ok").Inc()
	return true
}

// Package automation matches incoming bus events against automation rules
// and hands matched rules' action chains to the runner.
package automation

import (
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/streamkitdev/streamkit/internal/action"
	"github.com/streamkitdev/streamkit/internal/metrics"
	"github.com/streamkitdev/streamkit/internal/render"
	"github.com/streamkitdev/streamkit/internal/rules"
)

// RuleSource is the slice of the rule store the engine needs.
type RuleSource interface {
	Automations(streamerID string, t rules.TriggerType) []*rules.AutomationRule
}

// Subscriber is the bus surface the engine attaches to.
type Subscriber interface {
	Subscribe(pattern string, h func(streamerID, topic string, payload map[string]any)) (func(), error)
}

// ChainRunner launches an action chain.
type ChainRunner interface {
	Submit(actx *action.Context, specs []rules.ActionSpec) bool
}

// triggerBinding maps a canonical topic pattern to the trigger type its
// payloads dispatch under. Order fixes bus registration order.
type triggerBinding struct {
	pattern string
	trigger rules.TriggerType
}

var triggerBindings = []triggerBinding{
	{"*.chat.message", rules.TriggerChatMessage},
	{"*.chat.command", rules.TriggerCommand},
	{"*.redemption", rules.TriggerRedemption},
	{"*.follow", rules.TriggerFollow},
	{"*.subscribe", rules.TriggerSubscription},
	{"timer.tick", rules.TriggerTimerTick},
	{"obs.sceneChanged", rules.TriggerSceneChanged},
}

// Engine evaluates automation rules. Cooldowns are process-local, keyed
// streamerID:ruleID, stamped before the chain is handed off so a burst of
// duplicate events cannot all pass the cooldown check.
type Engine struct {
	store  RuleSource
	runner ChainRunner
	logger *slog.Logger

	mu        sync.Mutex
	cooldowns map[string]int64 // key -> last fired, unix millis

	unsubs []func()
	now    func() time.Time
}

func NewEngine(store RuleSource, runner ChainRunner, logger *slog.Logger) *Engine {
	return &Engine{
		store:     store,
		runner:    runner,
		logger:    logger,
		cooldowns: make(map[string]int64),
		now:       time.Now,
	}
}

// Attach subscribes the engine to the canonical trigger topics.
func (e *Engine) Attach(bus Subscriber) error {
	for _, b := range triggerBindings {
		trigger := b.trigger
		unsub, err := bus.Subscribe(b.pattern, func(streamerID, topic string, payload map[string]any) {
			e.Dispatch(streamerID, trigger, payload)
		})
		if err != nil {
			return err
		}
		e.unsubs = append(e.unsubs, unsub)
	}
	return nil
}

// Detach removes the engine's subscriptions.
func (e *Engine) Detach() {
	for _, u := range e.unsubs {
		u()
	}
	e.unsubs = nil
}

// Dispatch matches the streamer's rules for a trigger and launches the
// chains of every rule that fires. Rules execute independently; one rule's
// failure or cooldown never affects another.
func (e *Engine) Dispatch(streamerID string, trigger rules.TriggerType, payload map[string]any) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("automation dispatch panic", "streamer", streamerID, "trigger", trigger, "err", r)
		}
	}()

	for _, rule := range e.store.Automations(streamerID, trigger) {
		if !e.matches(rule, trigger, payload) {
			continue
		}
		metrics.AutomationsMatched.WithLabelValues(rule.ID).Inc()

		vars := render.FromPayload(payload)
		actx := &action.Context{
			StreamerID: streamerID,
			Platform:   platformOf(payload),
			Channel:    vars["channel"],
			OriginID:   rule.ID,
			Vars:       vars,
		}
		e.runner.Submit(actx, rule.Actions)
	}
}

func (e *Engine) matches(rule *rules.AutomationRule, trigger rules.TriggerType, payload map[string]any) bool {
	if !rule.Enabled || rule.TriggerType != trigger {
		return false
	}

	message, _ := payload["message"].(string)

	if rule.TriggerName != "" {
		if trigger == rules.TriggerChatMessage {
			// For message rules the trigger name is a phrase the message must
			// contain, not an exact field.
			if !strings.Contains(strings.ToLower(message), strings.ToLower(rule.TriggerName)) {
				return false
			}
		} else {
			incoming, _ := payload[nameField(trigger)].(string)
			if !strings.EqualFold(incoming, rule.TriggerName) {
				return false
			}
		}
	}

	if len(rule.Conditions.TextIncludes) > 0 {
		lower := strings.ToLower(message)
		for _, frag := range rule.Conditions.TextIncludes {
			if !strings.Contains(lower, strings.ToLower(frag)) {
				return false
			}
		}
	}

	if rule.Conditions.UserIsMod {
		if isMod, _ := payload["isMod"].(bool); !isMod {
			return false
		}
	}

	if cd := rule.Conditions.CooldownSec; cd > 0 {
		key := rule.StreamerID + ":" + rule.ID
		now := e.now().UnixMilli()
		e.mu.Lock()
		if now-e.cooldowns[key] < int64(cd)*1000 {
			e.mu.Unlock()
			return false
		}
		// Stamped before the chain starts: a slow chain cannot be re-entered
		// by a rapid second event.
		e.cooldowns[key] = now
		e.mu.Unlock()
	}
	return true
}

// nameField is the payload key a trigger's name is matched against.
func nameField(t rules.TriggerType) string {
	switch t {
	case rules.TriggerCommand:
		return "command"
	case rules.TriggerRedemption:
		return "reward"
	case rules.TriggerTimerTick:
		return "name"
	case rules.TriggerSceneChanged:
		return "scene"
	default:
		return "name"
	}
}

func platformOf(payload map[string]any) string {
	if p, _ := payload["platform"].(string); p != "" {
		return p
	}
	return "twitch"
}

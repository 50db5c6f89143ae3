package automation

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/streamkitdev/streamkit/internal/action"
	"github.com/streamkitdev/streamkit/internal/bus"
	"github.com/streamkitdev/streamkit/internal/rules"
)

type fakeSource struct {
	rules []*rules.AutomationRule
}

func (f *fakeSource) Automations(streamerID string, t rules.TriggerType) []*rules.AutomationRule {
	var out []*rules.AutomationRule
	for _, r := range f.rules {
		if r.StreamerID == streamerID && r.TriggerType == t {
			out = append(out, r)
		}
	}
	return out
}

type fakeRunner struct {
	fired []*action.Context
}

func (f *fakeRunner) Submit(actx *action.Context, _ []rules.ActionSpec) bool {
	f.fired = append(f.fired, actx)
	return true
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func rule(id string, t rules.TriggerType, mut ...func(*rules.AutomationRule)) *rules.AutomationRule {
	r := &rules.AutomationRule{
		ID:          id,
		StreamerID:  "s1",
		Enabled:     true,
		TriggerType: t,
		Actions:     []rules.ActionSpec{{Type: "send_message", Payload: map[string]any{"text": "hi"}}},
	}
	for _, m := range mut {
		m(r)
	}
	return r
}

func newEngine(rs ...*rules.AutomationRule) (*Engine, *fakeRunner) {
	runner := &fakeRunner{}
	e := NewEngine(&fakeSource{rules: rs}, runner, testLogger())
	return e, runner
}

func TestConjunctiveTextFilter(t *testing.T) {
	e, runner := newEngine(rule("r1", rules.TriggerChatMessage, func(r *rules.AutomationRule) {
		r.Conditions.TextIncludes = []string{"a", "b"}
	}))

	cases := []struct {
		message string
		want    int
	}{
		{"only letter-a here", 0},
		{"has A and also B", 1},
		{"b comes first then a", 1},
		{"neither", 0},
	}
	for _, tc := range cases {
		runner.fired = nil
		e.Dispatch("s1", rules.TriggerChatMessage, map[string]any{"message": tc.message})
		if len(runner.fired) != tc.want {
			t.Errorf("message %q fired %d times, want %d", tc.message, len(runner.fired), tc.want)
		}
	}
}

func TestCooldownInvariant(t *testing.T) {
	e, runner := newEngine(rule("r1", rules.TriggerRedemption, func(r *rules.AutomationRule) {
		r.TriggerName = "Hydrate"
		r.Conditions.CooldownSec = 60
	}))
	now := time.Unix(1_700_000_000, 0)
	e.now = func() time.Time { return now }
	payload := map[string]any{"reward": "Hydrate", "user": "alice"}

	e.Dispatch("s1", rules.TriggerRedemption, payload)
	now = now.Add(30 * time.Second)
	e.Dispatch("s1", rules.TriggerRedemption, payload)
	if len(runner.fired) != 1 {
		t.Fatalf("two events within cooldown fired %d times, want 1", len(runner.fired))
	}

	now = now.Add(30 * time.Second) // 60s since the first fire
	e.Dispatch("s1", rules.TriggerRedemption, payload)
	if len(runner.fired) != 2 {
		t.Fatalf("event after cooldown fired %d times total, want 2", len(runner.fired))
	}
}

func TestTriggerNameMatching(t *testing.T) {
	cases := []struct {
		name    string
		trigger rules.TriggerType
		rname   string
		payload map[string]any
		want    bool
	}{
		{"redemption exact", rules.TriggerRedemption, "Hydrate Check", map[string]any{"reward": "Hydrate Check"}, true},
		{"redemption case-insensitive", rules.TriggerRedemption, "hydrate check", map[string]any{"reward": "HYDRATE CHECK"}, true},
		{"redemption different reward", rules.TriggerRedemption, "Hydrate Check", map[string]any{"reward": "Other"}, false},
		{"redemption missing field", rules.TriggerRedemption, "Hydrate Check", map[string]any{}, false},
		{"command name", rules.TriggerCommand, "so", map[string]any{"command": "so"}, true},
		{"scene name", rules.TriggerSceneChanged, "BRB", map[string]any{"scene": "brb"}, true},
		{"timer name", rules.TriggerTimerTick, "shill", map[string]any{"name": "shill"}, true},
		{"chat message phrase contained", rules.TriggerChatMessage, "brb", map[string]any{"message": "ok BRB folks"}, true},
		{"chat message phrase absent", rules.TriggerChatMessage, "brb", map[string]any{"message": "hello"}, false},
		{"chat message no name matches all", rules.TriggerChatMessage, "", map[string]any{"message": "anything"}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e, runner := newEngine(rule("r1", tc.trigger, func(r *rules.AutomationRule) {
				r.TriggerName = tc.rname
			}))
			e.Dispatch("s1", tc.trigger, tc.payload)
			if got := len(runner.fired) == 1; got != tc.want {
				t.Errorf("fired=%v, want %v", got, tc.want)
			}
		})
	}
}

func TestUserIsModFailClosed(t *testing.T) {
	e, runner := newEngine(rule("r1", rules.TriggerChatMessage, func(r *rules.AutomationRule) {
		r.Conditions.UserIsMod = true
	}))

	// No mod info at all: treated as not-mod.
	e.Dispatch("s1", rules.TriggerChatMessage, map[string]any{"message": "x"})
	e.Dispatch("s1", rules.TriggerChatMessage, map[string]any{"message": "x", "isMod": false})
	if len(runner.fired) != 0 {
		t.Fatalf("non-mod events fired %d times", len(runner.fired))
	}

	e.Dispatch("s1", rules.TriggerChatMessage, map[string]any{"message": "x", "isMod": true})
	if len(runner.fired) != 1 {
		t.Fatalf("mod event fired %d times, want 1", len(runner.fired))
	}
}

func TestDisabledRuleNeverFires(t *testing.T) {
	e, runner := newEngine(rule("r1", rules.TriggerFollow, func(r *rules.AutomationRule) {
		r.Enabled = false
	}))
	e.Dispatch("s1", rules.TriggerFollow, map[string]any{"user": "alice"})
	if len(runner.fired) != 0 {
		t.Error("disabled rule fired")
	}
}

func TestMultipleRulesFireIndependently(t *testing.T) {
	e, runner := newEngine(
		rule("r1", rules.TriggerFollow),
		rule("r2", rules.TriggerFollow),
		rule("r3", rules.TriggerFollow, func(r *rules.AutomationRule) {
			r.Conditions.UserIsMod = true // will not match
		}),
	)
	e.Dispatch("s1", rules.TriggerFollow, map[string]any{"user": "alice"})
	if len(runner.fired) != 2 {
		t.Fatalf("fired %d rules, want 2", len(runner.fired))
	}
	if runner.fired[0].OriginID != "r1" || runner.fired[1].OriginID != "r2" {
		t.Errorf("origins = %v, %v", runner.fired[0].OriginID, runner.fired[1].OriginID)
	}
}

func TestContextVarsFromPayload(t *testing.T) {
	e, runner := newEngine(rule("r1", rules.TriggerRedemption, func(r *rules.AutomationRule) {
		r.TriggerName = "Hydrate"
	}))
	e.Dispatch("s1", rules.TriggerRedemption, map[string]any{
		"reward": "Hydrate", "user": "alice", "platform": "twitch",
	})
	if len(runner.fired) != 1 {
		t.Fatal("rule did not fire")
	}
	actx := runner.fired[0]
	if actx.Vars["username"] != "alice" || actx.Vars["reward"] != "Hydrate" {
		t.Errorf("vars = %v", actx.Vars)
	}
	if actx.StreamerID != "s1" || actx.Platform != "twitch" {
		t.Errorf("context = %+v", actx)
	}
}

func TestAttachSubscribesCanonicalTopics(t *testing.T) {
	e, runner := newEngine(rule("r1", rules.TriggerRedemption, func(r *rules.AutomationRule) {
		r.TriggerName = "Hydrate"
	}))
	b := bus.New(testLogger())
	if err := e.Attach(b); err != nil {
		t.Fatalf("Attach error: %v", err)
	}

	b.Publish("s1", "twitch.redemption", map[string]any{"reward": "Hydrate"})
	if len(runner.fired) != 1 {
		t.Fatalf("redemption publish fired %d rules, want 1", len(runner.fired))
	}

	e.Detach()
	b.Publish("s1", "twitch.redemption", map[string]any{"reward": "Hydrate"})
	if len(runner.fired) != 1 {
		t.Error("detached engine still receiving events")
	}
}

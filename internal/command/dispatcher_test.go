package command

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/streamkitdev/streamkit/internal/rules"
)

type fakeStore struct {
	commands map[string]*rules.Command
	touched  []string
}

func (f *fakeStore) Command(streamerID, name string) (*rules.Command, bool) {
	c, ok := f.commands[streamerID+":"+name]
	return c, ok
}

func (f *fakeStore) TouchCommand(streamerID, name string, _ time.Time) {
	f.touched = append(f.touched, streamerID+":"+name)
}

type fakeMessenger struct {
	sent []string
}

func (f *fakeMessenger) SendMessage(_ context.Context, _, _, _, text string) error {
	f.sent = append(f.sent, text)
	return nil
}

type fakePublisher struct {
	topics   []string
	payloads []map[string]any
}

func (f *fakePublisher) Publish(_, topic string, payload map[string]any) {
	f.topics = append(f.topics, topic)
	f.payloads = append(f.payloads, payload)
}

type fixture struct {
	d   *Dispatcher
	st  *fakeStore
	msg *fakeMessenger
	pub *fakePublisher
	now time.Time
}

func newFixture(cmds ...*rules.Command) *fixture {
	st := &fakeStore{commands: make(map[string]*rules.Command)}
	for _, c := range cmds {
		st.commands[c.StreamerID+":"+c.Name] = c
	}
	msg := &fakeMessenger{}
	pub := &fakePublisher{}
	d := NewDispatcher(st, pub, msg, "!", slog.New(slog.NewTextHandler(io.Discard, nil)))
	f := &fixture{d: d, st: st, msg: msg, pub: pub, now: time.Unix(1_700_000_000, 0)}
	d.now = func() time.Time { return f.now }
	return f
}

func hydrateCmd() *rules.Command {
	return &rules.Command{
		StreamerID:  "s1",
		Name:        "hydrate",
		Response:    "💧 Stay hydrated, {username}!",
		Enabled:     true,
		CooldownSec: 5,
		Permission:  rules.TierEveryone,
	}
}

func TestHydrateCooldownScenario(t *testing.T) {
	f := newFixture(hydrateCmd())

	if !f.d.Handle("s1", "twitch", "#chan", UserContext{Username: "Alice"}, "!hydrate") {
		t.Fatal("command not handled")
	}
	if len(f.msg.sent) != 1 || f.msg.sent[0] != "💧 Stay hydrated, Alice!" {
		t.Fatalf("sent = %v", f.msg.sent)
	}

	// Second invocation 2s later, different user: still cooling down.
	f.now = f.now.Add(2 * time.Second)
	if !f.d.Handle("s1", "twitch", "#chan", UserContext{Username: "Bob"}, "!hydrate") {
		t.Fatal("cooled-down command should still count as handled")
	}
	if len(f.msg.sent) != 1 {
		t.Fatalf("cooldown violated, sent = %v", f.msg.sent)
	}

	// 6s after the first fire the cooldown has elapsed.
	f.now = f.now.Add(4 * time.Second)
	f.d.Handle("s1", "twitch", "#chan", UserContext{Username: "Bob"}, "!hydrate")
	if len(f.msg.sent) != 2 {
		t.Fatalf("expected second send after cooldown, sent = %v", f.msg.sent)
	}
}

func TestPermissionGate(t *testing.T) {
	cmd := hydrateCmd()
	cmd.Permission = rules.TierMod
	f := newFixture(cmd)

	if !f.d.Handle("s1", "twitch", "#chan", UserContext{Username: "pleb"}, "!hydrate") {
		t.Fatal("gated command should count as handled")
	}
	if len(f.msg.sent) != 0 {
		t.Errorf("denied invocation sent %v", f.msg.sent)
	}
	if len(f.st.touched) != 0 {
		t.Errorf("denied invocation touched LastUsedAt: %v", f.st.touched)
	}
	if len(f.pub.topics) != 0 {
		t.Errorf("denied invocation emitted events: %v", f.pub.topics)
	}

	// Owner implies mod.
	f.d.Handle("s1", "twitch", "#chan", UserContext{Username: "boss", IsOwner: true}, "!hydrate")
	if len(f.msg.sent) != 1 {
		t.Errorf("owner should pass a mod gate, sent = %v", f.msg.sent)
	}
}

func TestTierHierarchy(t *testing.T) {
	cases := []struct {
		name string
		tier rules.PermissionTier
		user UserContext
		want bool
	}{
		{"everyone allows anyone", rules.TierEveryone, UserContext{}, true},
		{"sub gate blocks viewer", rules.TierSubscriber, UserContext{}, false},
		{"sub gate allows sub", rules.TierSubscriber, UserContext{IsSub: true}, true},
		{"sub gate allows mod", rules.TierSubscriber, UserContext{IsMod: true}, true},
		{"mod gate blocks sub", rules.TierMod, UserContext{IsSub: true}, false},
		{"owner gate blocks mod", rules.TierOwner, UserContext{IsMod: true}, false},
		{"owner gate allows owner", rules.TierOwner, UserContext{IsOwner: true}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cmd := hydrateCmd()
			cmd.Permission = tc.tier
			cmd.CooldownSec = 0
			f := newFixture(cmd)
			tc.user.Username = "u"
			f.d.Handle("s1", "twitch", "#c", tc.user, "!hydrate")
			if got := len(f.msg.sent) == 1; got != tc.want {
				t.Errorf("tier %s user %+v: sent=%v, want %v", tc.tier, tc.user, got, tc.want)
			}
		})
	}
}

func TestDisabledCommandStopsSilently(t *testing.T) {
	cmd := hydrateCmd()
	cmd.Enabled = false
	f := newFixture(cmd)
	if !f.d.Handle("s1", "twitch", "#chan", UserContext{Username: "a"}, "!hydrate") {
		t.Error("disabled command should count as handled")
	}
	if len(f.msg.sent) != 0 {
		t.Errorf("disabled command produced sends: %v", f.msg.sent)
	}
}

func TestNonCommandLines(t *testing.T) {
	f := newFixture(hydrateCmd())
	cases := []string{"hello there", "", "!", "!unknowncmd", "hydrate without prefix"}
	for _, line := range cases {
		if f.d.Handle("s1", "twitch", "#chan", UserContext{Username: "a"}, line) {
			t.Errorf("Handle(%q) = true, want false", line)
		}
	}
	if len(f.msg.sent) != 0 {
		t.Errorf("unexpected sends: %v", f.msg.sent)
	}
}

func TestNoCrossStreamerFallback(t *testing.T) {
	f := newFixture(hydrateCmd()) // registered under s1 only
	if f.d.Handle("s2", "twitch", "#chan", UserContext{Username: "a"}, "!hydrate") {
		t.Error("command from another streamer partition resolved")
	}
}

func TestCaseInsensitiveNameAndArgs(t *testing.T) {
	cmd := &rules.Command{
		StreamerID: "s1", Name: "so", Enabled: true,
		Response: "Go follow {args...}!", Permission: rules.TierEveryone,
	}
	f := newFixture(cmd)
	f.d.Handle("s1", "twitch", "#chan", UserContext{Username: "mod"}, "!SO   cool_streamer")
	if len(f.msg.sent) != 1 || f.msg.sent[0] != "Go follow cool_streamer!" {
		t.Fatalf("sent = %v", f.msg.sent)
	}
}

func TestCommandEventEmitted(t *testing.T) {
	f := newFixture(hydrateCmd())
	f.d.Handle("s1", "twitch", "#chan", UserContext{Username: "Alice", IsMod: true}, "!hydrate now please")

	if len(f.pub.topics) != 1 || f.pub.topics[0] != "twitch.chat.command" {
		t.Fatalf("topics = %v", f.pub.topics)
	}
	p := f.pub.payloads[0]
	if p["command"] != "hydrate" || p["user"] != "Alice" || p["isMod"] != true {
		t.Errorf("payload = %v", p)
	}
	if args, ok := p["args"].([]any); !ok || len(args) != 2 {
		t.Errorf("args = %v", p["args"])
	}
	if len(f.st.touched) != 1 || f.st.touched[0] != "s1:hydrate" {
		t.Errorf("touched = %v", f.st.touched)
	}
}

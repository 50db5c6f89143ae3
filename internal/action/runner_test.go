package action

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/streamkitdev/streamkit/internal/render"
	"github.com/streamkitdev/streamkit/internal/rules"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// stepExec records every execution in a shared trace.
type stepExec struct {
	typ   string
	trace *[]string
	fail  error
	panic bool
}

func (s *stepExec) Type() string { return s.typ }

func (s *stepExec) Execute(_ context.Context, _ *Context, payload map[string]any) error {
	*s.trace = append(*s.trace, s.typ+":"+payloadText(payload))
	if s.panic {
		panic("handler exploded")
	}
	return s.fail
}

func payloadText(payload map[string]any) string {
	t, _ := payload["text"].(string)
	return t
}

func newTestRunner(t *testing.T, execs ...Executor) *Runner {
	t.Helper()
	reg := NewRegistry()
	for _, e := range execs {
		reg.Register(e)
	}
	return NewRunner(context.Background(), reg, 2, 16, testLogger())
}

func specs(types ...string) []rules.ActionSpec {
	out := make([]rules.ActionSpec, len(types))
	for i, ty := range types {
		out[i] = rules.ActionSpec{Type: ty, Payload: map[string]any{}}
	}
	return out
}

func actx() *Context {
	return &Context{StreamerID: "s1", Platform: "twitch", OriginID: "r1", Vars: render.Vars{}}
}

func TestRunPreservesOrder(t *testing.T) {
	var trace []string
	r := newTestRunner(t,
		&stepExec{typ: "one", trace: &trace},
		&stepExec{typ: "two", trace: &trace},
		&stepExec{typ: "three", trace: &trace},
	)
	r.Run(context.Background(), actx(), specs("one", "two", "three"))

	want := []string{"one:", "two:", "three:"}
	if len(trace) != len(want) {
		t.Fatalf("trace = %v", trace)
	}
	for i := range want {
		if trace[i] != want[i] {
			t.Fatalf("trace = %v, want %v", trace, want)
		}
	}
}

func TestRunWaitsForDelay(t *testing.T) {
	var trace []string
	r := newTestRunner(t,
		&stepExec{typ: "first", trace: &trace},
		&Delay{},
		&stepExec{typ: "last", trace: &trace},
	)
	start := time.Now()
	r.Run(context.Background(), actx(), []rules.ActionSpec{
		{Type: "first", Payload: map[string]any{}},
		{Type: TypeDelay, Payload: map[string]any{"ms": 30}},
		{Type: "last", Payload: map[string]any{}},
	})
	if elapsed := time.Since(start); elapsed < 30*time.Millisecond {
		t.Errorf("chain finished in %v, delay not awaited", elapsed)
	}
	if len(trace) != 2 || trace[1] != "last:" {
		t.Errorf("trace = %v", trace)
	}
}

func TestPartialFailureIsolation(t *testing.T) {
	var trace []string
	r := newTestRunner(t,
		&stepExec{typ: "one", trace: &trace},
		&stepExec{typ: "two", trace: &trace, fail: errors.New("boom")},
		&stepExec{typ: "three", trace: &trace},
	)
	r.Run(context.Background(), actx(), specs("one", "two", "three"))
	if len(trace) != 3 {
		t.Fatalf("trace = %v, want all three executed exactly once", trace)
	}
}

func TestPanicIsolation(t *testing.T) {
	var trace []string
	r := newTestRunner(t,
		&stepExec{typ: "bad", trace: &trace, panic: true},
		&stepExec{typ: "good", trace: &trace},
	)
	r.Run(context.Background(), actx(), specs("bad", "good"))
	if len(trace) != 2 || trace[1] != "good:" {
		t.Fatalf("trace = %v, want chain to continue past a panic", trace)
	}
}

func TestUnknownTypeSkipped(t *testing.T) {
	var trace []string
	r := newTestRunner(t,
		&stepExec{typ: "known", trace: &trace},
	)
	r.Run(context.Background(), actx(), specs("known", "mystery", "known"))
	if len(trace) != 2 {
		t.Fatalf("trace = %v, want unknown type skipped without aborting", trace)
	}
}

func TestPayloadInterpolation(t *testing.T) {
	var trace []string
	r := newTestRunner(t, &stepExec{typ: "say", trace: &trace})
	ctx := actx()
	ctx.Vars = render.Vars{"username": "alice"}
	r.Run(context.Background(), ctx, []rules.ActionSpec{
		{Type: "say", Payload: map[string]any{"text": "hi {username}"}},
	})
	if len(trace) != 1 || trace[0] != "say:hi alice" {
		t.Fatalf("trace = %v", trace)
	}
}

func TestSubmitRunsOnPool(t *testing.T) {
	var trace []string
	done := make(chan struct{})
	r := newTestRunner(t, &stepExec{typ: "notify", trace: &trace})

	if !r.Submit(actx(), specs("notify")) {
		t.Fatal("submit rejected")
	}
	go func() {
		r.Drain()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("drain timed out")
	}
	if len(trace) != 1 {
		t.Fatalf("trace = %v, want submitted chain executed", trace)
	}
}

func TestDrainAbortsDelayOnCancel(t *testing.T) {
	var trace []string
	reg := NewRegistry()
	reg.Register(&Delay{})
	reg.Register(&stepExec{typ: "after", trace: &trace})
	ctx, cancel := context.WithCancel(context.Background())
	r := NewRunner(ctx, reg, 1, 16, testLogger())

	if !r.Submit(actx(), []rules.ActionSpec{
		{Type: TypeDelay, Payload: map[string]any{"ms": 5000}},
		{Type: "after", Payload: map[string]any{}},
	}) {
		t.Fatal("submit rejected")
	}
	time.Sleep(50 * time.Millisecond) // let the worker enter the delay

	start := time.Now()
	cancel()
	r.Drain()
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("drain took %v after cancellation", elapsed)
	}
	if len(trace) != 1 || trace[0] != "after:" {
		t.Errorf("trace = %v, want the chain to continue past the aborted delay", trace)
	}
}

func TestRegistryDuplicatePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("duplicate registration did not panic")
		}
	}()
	reg := NewRegistry()
	var trace []string
	reg.Register(&stepExec{typ: "dup", trace: &trace})
	reg.Register(&stepExec{typ: "dup", trace: &trace})
}

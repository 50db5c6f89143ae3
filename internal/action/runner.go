package action

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/streamkitdev/streamkit/internal/metrics"
	"github.com/streamkitdev/streamkit/internal/render"
	"github.com/streamkitdev/streamkit/internal/rules"
)

// Runner executes action chains. Run is synchronous; Submit hands a chain to
// the bounded pool so a slow chain never blocks the caller (the bus or the
// automation engine).
type Runner struct {
	reg    *Registry
	logger *slog.Logger
	pool   *chainPool
}

// NewRunner creates a Runner backed by a pool of workers goroutines with the
// given queue capacity.
func NewRunner(ctx context.Context, reg *Registry, workers, queue int, logger *slog.Logger) *Runner {
	r := &Runner{reg: reg, logger: logger}
	r.pool = newChainPool(ctx, workers, queue, func(ctx context.Context, j chainJob) {
		r.Run(ctx, j.actx, j.specs)
	})
	return r
}

// Submit enqueues a chain for background execution. Returns false (and
// counts a drop) when the queue is full.
func (r *Runner) Submit(actx *Context, specs []rules.ActionSpec) bool {
	if !r.pool.submit(chainJob{actx: actx, specs: specs}) {
		metrics.ChainsDropped.Inc()
		r.logger.Warn("action chain dropped, queue full", "origin", actx.OriginID)
		return false
	}
	return true
}

// Run executes specs strictly in list order. Each handler's failure is
// caught, logged with the action type and origin, and the chain continues:
// chains are partial-failure-tolerant, not transactional.
func (r *Runner) Run(ctx context.Context, actx *Context, specs []rules.ActionSpec) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("action chain panic", "origin", actx.OriginID, "err", rec)
		}
	}()

	for _, s := range specs {
		exec, ok := r.reg.Get(s.Type)
		if !ok {
			metrics.ActionsExecuted.WithLabelValues(s.Type, "unknown").Inc()
			r.logger.Warn("unknown action type", "type", s.Type, "origin", actx.OriginID)
			continue
		}
		payload := render.InterpolatePayload(s.Payload, actx.Vars)
		if err := r.execute(ctx, exec, actx, payload); err != nil {
			metrics.ActionsExecuted.WithLabelValues(s.Type, "error").Inc()
			r.logger.Error("action failed", "type", s.Type, "origin", actx.OriginID, "err", err)
			continue
		}
		metrics.ActionsExecuted.WithLabelValues(s.Type, "success").Inc()
	}
}

// execute isolates a single handler call, converting a panic into an error
// so one bad handler cannot take down the chain worker.
func (r *Runner) execute(ctx context.Context, exec Executor, actx *Context, payload map[string]any) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = panicError{rec}
		}
	}()
	return exec.Execute(ctx, actx, payload)
}

// Drain closes the pool and waits for in-flight chains to finish.
func (r *Runner) Drain() {
	r.pool.drain()
}

type panicError struct{ v any }

func (p panicError) Error() string { return fmt.Sprintf("handler panic: %v", p.v) }

package action

import (
	"context"
	"time"
)

// maxDelay caps a single delay step so a typo cannot stall a chain worker
// for hours.
const maxDelay = 5 * time.Minute

// Delay pauses the chain. Payload: ms.
type Delay struct{}

func (a *Delay) Type() string { return TypeDelay }

func (a *Delay) Execute(ctx context.Context, _ *Context, payload map[string]any) error {
	ms, ok := num(payload, "ms")
	if !ok || ms <= 0 {
		return nil
	}
	d := time.Duration(ms) * time.Millisecond
	if d > maxDelay {
		d = maxDelay
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

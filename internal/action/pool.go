package action

import (
	"context"
	"sync"

	"github.com/streamkitdev/streamkit/internal/rules"
)

// chainJob is one queued action chain.
type chainJob struct {
	actx  *Context
	specs []rules.ActionSpec
}

// chainPool is a fixed-size goroutine pool with a bounded input queue. It
// caps how many chains run at once so an event burst cannot spawn unbounded
// goroutines; each chain still executes its actions strictly in order.
type chainPool struct {
	queue   chan chainJob
	process func(ctx context.Context, j chainJob)
	wg      sync.WaitGroup
}

// newChainPool creates and starts a pool with n goroutines and queue capacity cap.
func newChainPool(ctx context.Context, n, cap int, fn func(context.Context, chainJob)) *chainPool {
	p := &chainPool{
		queue:   make(chan chainJob, cap),
		process: fn,
	}
	for i := 0; i < n; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			p.run(ctx)
		}()
	}
	return p
}

func (p *chainPool) run(ctx context.Context) {
	for {
		select {
		case j, ok := <-p.queue:
			if !ok {
				return
			}
			p.process(ctx, j)
		case <-ctx.Done():
			return
		}
	}
}

// submit enqueues a chain without blocking (returns false if full).
func (p *chainPool) submit(j chainJob) bool {
	select {
	case p.queue <- j:
		return true
	default:
		return false
	}
}

// drain closes the queue and waits for all workers to finish.
func (p *chainPool) drain() {
	close(p.queue)
	p.wg.Wait()
}

// Package timers publishes timer.tick events for timerTick automation rules.
package timers

import (
	"log/slog"
	"sync"
	"time"

	"github.com/streamkitdev/streamkit/internal/rules"
)

// minInterval guards against tick storms from a misconfigured rule.
const minInterval = 5 * time.Second

// Publisher emits events onto the bus.
type Publisher interface {
	Publish(streamerID, topic string, payload map[string]any)
}

// RuleSource lists the enabled timerTick rules.
type RuleSource interface {
	TimerRules() []*rules.AutomationRule
}

// Scheduler runs one ticker per enabled timerTick rule. Reload replaces the
// running set; the rule store's OnChange hook calls it after every reload.
type Scheduler struct {
	store  RuleSource
	bus    Publisher
	logger *slog.Logger

	mu    sync.Mutex
	stops []chan struct{}
}

func NewScheduler(store RuleSource, bus Publisher, logger *slog.Logger) *Scheduler {
	return &Scheduler{store: store, bus: bus, logger: logger}
}

// Reload stops the current tickers and starts one per enabled timerTick rule.
func (s *Scheduler) Reload() {
	s.Stop()

	s.mu.Lock()
	defer s.mu.Unlock()
	timerRules := s.store.TimerRules()
	for _, r := range timerRules {
		interval := time.Duration(r.IntervalSec) * time.Second
		if interval < minInterval {
			interval = minInterval
		}
		stop := make(chan struct{})
		s.stops = append(s.stops, stop)
		go s.run(r, interval, stop)
	}
	s.logger.Info("timers loaded", "count", len(timerRules))
}

func (s *Scheduler) run(r *rules.AutomationRule, interval time.Duration, stop chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.bus.Publish(r.StreamerID, "timer.tick", map[string]any{
				"timerId": r.ID,
				"name":    r.TriggerName,
			})
		case <-stop:
			return
		}
	}
}

// Stop halts all tickers.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, stop := range s.stops {
		close(stop)
	}
	s.stops = nil
}

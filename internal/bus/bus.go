// Package bus is the in-process publish/subscribe hub. Topics are dotted
// strings; subscription patterns may use `*` as a wildcard spanning one or
// more segments. Delivery to handlers is synchronous in registration order;
// anything slow (action chains) belongs on the runner pool, not in a
// handler. Broadcast sinks receive a serialized envelope of every publish,
// independent of handler delivery.
package bus

import (
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/streamkitdev/streamkit/internal/event"
	"github.com/streamkitdev/streamkit/internal/metrics"
)

// Handler receives one published event.
type Handler func(streamerID, topic string, payload map[string]any)

// Sink observes every publish as a serialized envelope. Implementations must
// not block; a failing sink is the sink's problem, never the publisher's.
type Sink interface {
	Broadcast(ev event.Event)
	Close() error
}

type subscription struct {
	id      uint64
	pattern string
	re      *regexp.Regexp
	handler Handler
}

// Bus routes events to matching subscribers and attached sinks.
type Bus struct {
	logger *slog.Logger

	mu     sync.RWMutex
	subs   []*subscription
	sinks  []Sink
	nextID uint64
}

func New(logger *slog.Logger) *Bus {
	return &Bus{logger: logger}
}

// compilePattern turns a topic pattern into an anchored regexp: literals are
// escaped, `*` becomes `.*`.
func compilePattern(pattern string) (*regexp.Regexp, error) {
	parts := strings.Split(pattern, "*")
	for i, p := range parts {
		parts[i] = regexp.QuoteMeta(p)
	}
	return regexp.Compile("^" + strings.Join(parts, ".*") + "$")
}

// Subscribe registers a handler for topics matching pattern and returns an
// unsubscribe function. Handlers registered after a publish never see it.
func (b *Bus) Subscribe(pattern string, h func(streamerID, topic string, payload map[string]any)) (func(), error) {
	re, err := compilePattern(pattern)
	if err != nil {
		return nil, err
	}

	b.mu.Lock()
	b.nextID++
	sub := &subscription{id: b.nextID, pattern: pattern, re: re, handler: h}
	b.subs = append(b.subs, sub)
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		for i, s := range b.subs {
			if s.id == sub.id {
				b.subs = append(b.subs[:i], b.subs[i+1:]...)
				return
			}
		}
	}, nil
}

// AttachSink adds a broadcast sink.
func (b *Bus) AttachSink(s Sink) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sinks = append(b.sinks, s)
}

// Publish delivers payload to every handler whose pattern matches topic, in
// registration order, then forwards the envelope to all sinks. A panicking
// handler is recovered and logged so it cannot block later handlers or the
// publisher.
func (b *Bus) Publish(streamerID, topic string, payload map[string]any) {
	metrics.EventsPublished.WithLabelValues(topic).Inc()

	b.mu.RLock()
	subs := make([]*subscription, 0, len(b.subs))
	for _, s := range b.subs {
		if s.re.MatchString(topic) {
			subs = append(subs, s)
		}
	}
	sinks := make([]Sink, len(b.sinks))
	copy(sinks, b.sinks)
	b.mu.RUnlock()

	for _, s := range subs {
		b.invoke(s, streamerID, topic, payload)
	}

	if len(sinks) == 0 {
		return
	}
	ev := event.Event{
		ID:         uuid.New().String(),
		StreamerID: streamerID,
		Topic:      topic,
		Payload:    payload,
		Timestamp:  time.Now().UnixMilli(),
	}
	for _, sink := range sinks {
		sink.Broadcast(ev)
	}
}

func (b *Bus) invoke(s *subscription, streamerID, topic string, payload map[string]any) {
	defer func() {
		if r := recover(); r != nil {
			metrics.HandlerPanics.Inc()
			b.logger.Error("subscriber panic", "pattern", s.pattern, "topic", topic, "err", r)
		}
	}()
	s.handler(streamerID, topic, payload)
}

// CloseSinks closes every attached sink; used at shutdown.
func (b *Bus) CloseSinks() {
	b.mu.Lock()
	sinks := b.sinks
	b.sinks = nil
	b.mu.Unlock()
	for _, s := range sinks {
		if err := s.Close(); err != nil {
			b.logger.Warn("sink close", "err", err)
		}
	}
}

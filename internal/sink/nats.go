package sink

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/streamkitdev/streamkit/internal/event"
	"github.com/streamkitdev/streamkit/internal/metrics"
)

const subjectPrefix = "streamkit.events."

// NATSSink forwards every envelope to a NATS subject derived from the topic,
// so external dashboards and recorders can subscribe without touching this
// process.
type NATSSink struct {
	conn   *nats.Conn
	logger *slog.Logger
}

// ConnectNATS dials url, retrying until timeout elapses.
func ConnectNATS(url string, timeout time.Duration, logger *slog.Logger) (*NATSSink, error) {
	deadline := time.Now().Add(timeout)
	var lastErr error
	for time.Now().Before(deadline) {
		conn, err := nats.Connect(url)
		if err == nil {
			return &NATSSink{conn: conn, logger: logger}, nil
		}
		lastErr = err
		time.Sleep(500 * time.Millisecond)
	}
	return nil, fmt.Errorf("connect nats timeout after %s: %w", timeout, lastErr)
}

// Broadcast implements bus.Sink.
func (s *NATSSink) Broadcast(ev event.Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		s.logger.Warn("nats marshal", "topic", ev.Topic, "err", err)
		return
	}
	if err := s.conn.Publish(subjectPrefix+ev.Topic, data); err != nil {
		metrics.BroadcastDropped.Inc()
		s.logger.Warn("nats publish", "topic", ev.Topic, "err", err)
	}
}

// Close implements bus.Sink.
func (s *NATSSink) Close() error {
	if s.conn == nil {
		return nil
	}
	err := s.conn.Drain()
	s.conn.Close()
	return err
}

package event

// Event is the canonical envelope for everything that moves through the bus:
// platform events on the way in, and broadcast frames on the way out to
// dashboard observers. Events are ephemeral; nothing in this process
// persists or replays them.
type Event struct {
	ID         string         `json:"id"`
	StreamerID string         `json:"streamerId"`
	Topic      string         `json:"topic"`
	Payload    map[string]any `json:"payload"`
	Timestamp  int64          `json:"timestamp"` // unix millis
}

// String returns a payload value as a string, or "" when absent or not a string.
func (e *Event) String(key string) string {
	s, _ := e.Payload[key].(string)
	return s
}

// Bool returns a payload value as a bool; absent or non-bool reads as false.
func (e *Event) Bool(key string) bool {
	b, _ := e.Payload[key].(bool)
	return b
}

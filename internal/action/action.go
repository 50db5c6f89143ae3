// Package action executes ordered action chains against a table of
// registered handlers. Chains are sequential and partial-failure-tolerant:
// an unknown type or a failing handler is logged and skipped, never aborting
// the rest of the chain.
package action

import (
	"context"

	"github.com/streamkitdev/streamkit/internal/render"
)

// Action type keys. Adding a type means registering a new Executor in
// cmd/server; the runner treats anything unregistered as a logged no-op.
const (
	TypeSendMessage  = "send_message"
	TypeSceneChange  = "scene_change"
	TypeSourceToggle = "source_toggle"
	TypeMuteToggle   = "mute_toggle"
	TypeDelay        = "delay"
	TypeRoleGrant    = "role_grant"
	TypeRoleRevoke   = "role_revoke"
	TypeHTTPRequest  = "http_request"
)

// Context carries the triggering event's identity and template variables
// through a chain.
type Context struct {
	StreamerID string
	Platform   string
	Channel    string
	// OriginID identifies the rule or command that fired the chain, for logs.
	OriginID string
	Vars     render.Vars
}

// Executor is the interface every action handler implements.
type Executor interface {
	// Type returns the key this executor is registered under.
	Type() string
	// Execute runs the action. Payload string values arrive already
	// interpolated.
	Execute(ctx context.Context, actx *Context, payload map[string]any) error
}

// str reads a payload string field, defaulting to "".
func str(payload map[string]any, key string) string {
	s, _ := payload[key].(string)
	return s
}

// num reads a payload numeric field; YAML and JSON decoders produce
// different concrete types for numbers.
func num(payload map[string]any, key string) (float64, bool) {
	switch n := payload[key].(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

// Package render implements the placeholder substitution shared by command
// responses and action payloads: {username}, {command}, {message}, {reward},
// {channel}, {args...} and {time}. Unresolved tokens are left verbatim.
package render

import (
	"regexp"
	"strings"
	"time"
)

var (
	tokenPattern = regexp.MustCompile(`\{(\w+)\}`)
	argsPattern  = regexp.MustCompile(`\{args\.\.\.\}`)
)

// Vars holds the values available to a template. Keys are placeholder names
// without braces; "args" backs the {args...} token.
type Vars map[string]string

// FromPayload extracts the conventional string fields of an event payload.
// Every conventional key is present in the result, defaulting to the empty
// string, so templates referencing a field the trigger never carries render
// empty rather than leaking the raw token.
func FromPayload(payload map[string]any) Vars {
	v := Vars{}
	for _, key := range []string{"user", "username", "message", "reward", "command", "channel", "scene", "name"} {
		s, _ := payload[key].(string)
		v[key] = s
	}
	// "user" and "username" are interchangeable across platform payloads.
	if v["username"] == "" {
		v["username"] = v["user"]
	}
	return v
}

// Interpolate substitutes placeholders in text from vars. {time} resolves to
// the current wall clock unless vars overrides it. Tokens with no value stay
// in the output unchanged so a typo never breaks a response.
func Interpolate(text string, vars Vars) string {
	if text == "" {
		return ""
	}
	out := text
	if args, ok := vars["args"]; ok {
		out = argsPattern.ReplaceAllString(out, args)
	}
	return tokenPattern.ReplaceAllStringFunc(out, func(tok string) string {
		key := tok[1 : len(tok)-1]
		if v, ok := vars[key]; ok {
			return v
		}
		if strings.EqualFold(key, "time") {
			return time.Now().Format("15:04:05")
		}
		return tok
	})
}

// InterpolatePayload renders every top-level string value of an action
// payload, leaving non-string values untouched.
func InterpolatePayload(payload map[string]any, vars Vars) map[string]any {
	if len(payload) == 0 {
		return payload
	}
	out := make(map[string]any, len(payload))
	for k, v := range payload {
		if s, ok := v.(string); ok {
			out[k] = Interpolate(s, vars)
			continue
		}
		out[k] = v
	}
	return out
}

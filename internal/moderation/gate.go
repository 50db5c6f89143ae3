// Package moderation implements the chat moderation gate: a pure
// classification of message text against a streamer's tiered banned-pattern
// policy. The caller applies the verdict (timeout/ban) and logs it; Classify
// itself has no side effects.
package moderation

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/streamkitdev/streamkit/internal/rules"
)

// Verdict is the gate's decision for one message.
type Verdict struct {
	Matched     bool   `json:"matched"`
	Action      string `json:"action"` // "timeout" or "ban"
	DurationSec int    `json:"durationSec"`
	Reason      string `json:"reason"`
	Pattern     string `json:"pattern"`
}

const (
	ActionTimeout = "timeout"
	ActionBan     = "ban"
)

// PolicySource resolves a streamer's moderation policy.
type PolicySource interface {
	Policy(streamerID string) *rules.ModerationPolicy
}

// Gate classifies chat text. Compiled custom-word patterns are cached across
// calls; the tier tables are compiled once at init.
type Gate struct {
	store  PolicySource
	logger *slog.Logger

	mu     sync.Mutex
	custom map[string]*regexp.Regexp
}

func NewGate(store PolicySource, logger *slog.Logger) *Gate {
	return &Gate{store: store, logger: logger, custom: make(map[string]*regexp.Regexp)}
}

// Classify returns the first matching verdict for text under the streamer's
// policy, or nil when the message is clean. Tier patterns are evaluated in
// list order before custom words; the policy defaults to MEDIUM.
func (g *Gate) Classify(streamerID, text string) (v *Verdict) {
	defer func() {
		if r := recover(); r != nil {
			g.logger.Error("moderation classify panic", "streamer", streamerID, "err", r)
			v = nil
		}
	}()

	policy := g.store.Policy(streamerID)
	level := string(policy.Level)
	normText := normalizeText(text)

	for _, e := range tierFor(level) {
		if e.Pattern.MatchString(normText) {
			return verdictFor(e, level)
		}
	}

	for _, w := range policy.CustomBanned {
		re := g.customPattern(w)
		if re == nil {
			continue
		}
		if re.MatchString(normText) {
			return &Verdict{
				Matched:     true,
				Action:      ActionTimeout,
				DurationSec: DefaultTimeoutSec,
				Reason:      fmt.Sprintf("AutoMod triggered (%s, custom)", level),
				Pattern:     w,
			}
		}
	}
	return nil
}

func verdictFor(e TierEntry, level string) *Verdict {
	action := ActionTimeout
	duration := e.DurationSec
	if duration == 0 {
		duration = DefaultTimeoutSec
	}
	if level == string(rules.LevelHigh) && e.Class == ClassHate {
		action = ActionBan
		duration = 0
	}
	return &Verdict{
		Matched:     true,
		Action:      action,
		DurationSec: duration,
		Reason:      fmt.Sprintf("AutoMod triggered (%s)", level),
		Pattern:     e.Phrase,
	}
}

// customPattern compiles a custom banned word into a case-insensitive
// whole-word matcher, caching the result.
func (g *Gate) customPattern(word string) *regexp.Regexp {
	g.mu.Lock()
	defer g.mu.Unlock()
	if re, ok := g.custom[word]; ok {
		return re
	}
	re, err := regexp.Compile(`(?i)\b` + regexp.QuoteMeta(word) + `\b`)
	if err != nil {
		g.logger.Warn("custom banned word rejected", "word", word, "err", err)
		g.custom[word] = nil
		return nil
	}
	g.custom[word] = re
	return re
}

// normalizeText lowercases and strips combining marks (NFD → remove Mn →
// NFC) so accent tricks do not slip past plain-ASCII patterns.
func normalizeText(text string) string {
	normFunc := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(normFunc, strings.ToLower(text))
	if err != nil {
		return strings.ToLower(text)
	}
	return out
}

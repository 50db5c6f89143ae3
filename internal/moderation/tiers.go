package moderation

import "regexp"

// Class buckets a tier entry by severity. Only hate-class matches escalate
// a timeout to a ban, and only under a HIGH policy.
type Class string

const (
	ClassInsult     Class = "insult"
	ClassHarassment Class = "harassment"
	ClassHate       Class = "hate"
)

// DefaultTimeoutSec is the timeout applied when a tier entry does not
// override the duration.
const DefaultTimeoutSec = 600

// TierEntry is one pre-defined banned pattern. Phrase is the human-readable
// form used in verdicts and logs; the regexp handles word boundaries and
// whitespace variance.
type TierEntry struct {
	Phrase      string
	Pattern     *regexp.Regexp
	Class       Class
	DurationSec int // 0 means DefaultTimeoutSec
}

func entry(phrase, pattern string, class Class) TierEntry {
	return TierEntry{Phrase: phrase, Pattern: regexp.MustCompile(`(?i)` + pattern), Class: class}
}

// Tier lists are cumulative: HIGH includes MEDIUM includes LOW. Hate-class
// entries are redacted placeholders; operators supply concrete terms through
// a streamer's custom_banned list or by extending this table.
var (
	lowEntries = []TierEntry{
		entry("idiot", `\bidiot\b`, ClassInsult),
		entry("stupid", `\bstupid\b`, ClassInsult),
		entry("trash", `\btrash\b`, ClassInsult),
	}

	mediumEntries = append(append([]TierEntry{}, lowEntries...),
		entry("kys", `\bkys\b`, ClassHarassment),
		entry("kill yourself", `\bkill\s+your\s*self\b`, ClassHarassment),
		entry("go back to", `\bgo\s+back\s+to\b`, ClassHarassment),
		entry("disgusting", `\bdisgusting\b`, ClassHarassment),
	)

	highEntries = append(append([]TierEntry{}, mediumEntries...),
		entry("slur1", `\bslur1\b`, ClassHate),
		entry("slur2", `\bslur2\b`, ClassHate),
		entry("racistterm", `\bracistterm\b`, ClassHate),
		entry("homophobicterm", `\bhomophobicterm\b`, ClassHate),
	)
)

// tierFor returns the active pattern list for a policy level. Unknown levels
// fall back to MEDIUM, matching the policy default.
func tierFor(level string) []TierEntry {
	switch level {
	case "LOW":
		return lowEntries
	case "HIGH":
		return highEntries
	default:
		return mediumEntries
	}
}

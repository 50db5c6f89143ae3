package rules

import (
	"fmt"
	"log/slog"
	"strings"
)

const (
	maxActionsPerRule = 10
	maxCooldownSec    = 3600
)

// Validate checks the rules file for structural errors: missing or duplicate
// identifiers, unknown trigger types, unknown permission tiers and moderation
// levels. Normalization concerns (case, clamping) are handled by normalize.
func Validate(f *File) error {
	if f.Version == "" {
		return fmt.Errorf("rules: version is required")
	}
	var errs []string

	seenStreamers := make(map[string]bool)
	validTriggers := make(map[TriggerType]bool, len(TriggerTypes))
	for _, t := range TriggerTypes {
		validTriggers[t] = true
	}

	checkCommands := func(owner string, cmds []*Command) {
		seen := make(map[string]bool)
		for i, c := range cmds {
			if c.Name == "" {
				errs = append(errs, fmt.Sprintf("%s.commands[%d]: name is required", owner, i))
				continue
			}
			name := strings.ToLower(c.Name)
			if seen[name] {
				errs = append(errs, fmt.Sprintf("%s: duplicate command %q", owner, name))
			}
			seen[name] = true
			switch c.Permission {
			case "", TierEveryone, TierSubscriber, TierMod, TierOwner:
			default:
				errs = append(errs, fmt.Sprintf("%s command %q: unknown permission %q", owner, name, c.Permission))
			}
		}
	}

	checkCommands("global", f.Global.Commands)

	ruleIDs := make(map[string]string)
	for _, sc := range f.Streamers {
		if sc.ID == "" {
			errs = append(errs, "streamers: id is required")
			continue
		}
		if seenStreamers[sc.ID] {
			errs = append(errs, fmt.Sprintf("duplicate streamer %q", sc.ID))
		}
		seenStreamers[sc.ID] = true

		checkCommands("streamer "+sc.ID, sc.Commands)

		for i, a := range sc.Automations {
			loc := fmt.Sprintf("streamer %s.automations[%d]", sc.ID, i)
			if a.ID == "" {
				errs = append(errs, loc+": id is required")
				continue
			}
			if prev, ok := ruleIDs[a.ID]; ok {
				errs = append(errs, fmt.Sprintf("duplicate automation id %q (first seen at %s)", a.ID, prev))
			} else {
				ruleIDs[a.ID] = loc
			}
			if !validTriggers[a.TriggerType] {
				errs = append(errs, fmt.Sprintf("automation %s: unknown trigger type %q", a.ID, a.TriggerType))
			}
			if a.TriggerType == TriggerTimerTick && a.IntervalSec <= 0 {
				errs = append(errs, fmt.Sprintf("automation %s: timerTick rules need interval_sec > 0", a.ID))
			}
		}

		if m := sc.Moderation; m != nil {
			switch m.Level {
			case "", LevelLow, LevelMedium, LevelHigh:
			default:
				errs = append(errs, fmt.Sprintf("streamer %s: unknown moderation level %q", sc.ID, m.Level))
			}
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("rules validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// normalize applies the invariants the rest of the core relies on: lowercase
// command names and banned words, deduped custom lists, clamped cooldowns,
// capped action chains, owner IDs stamped onto records, and defaults filled
// in. Out-of-range values are corrected with a warning, never rejected.
func normalize(f *File, logger *slog.Logger) {
	if f.Engine.ChainWorkers <= 0 {
		f.Engine.ChainWorkers = 16
	}
	if f.Engine.ChainQueue <= 0 {
		f.Engine.ChainQueue = 256
	}
	if f.Engine.CommandPrefix == "" {
		f.Engine.CommandPrefix = "!"
	}

	normCommand := func(streamerID string, c *Command) {
		c.StreamerID = streamerID
		c.Name = strings.ToLower(strings.TrimSpace(c.Name))
		if c.Permission == "" {
			c.Permission = TierEveryone
		}
		c.CooldownSec = clampCooldown(c.CooldownSec, "command "+c.Name, logger)
	}

	for _, c := range f.Global.Commands {
		normCommand("", c)
	}

	for _, sc := range f.Streamers {
		for _, c := range sc.Commands {
			normCommand(sc.ID, c)
		}
		for _, a := range sc.Automations {
			a.StreamerID = sc.ID
			a.TriggerName = strings.TrimSpace(a.TriggerName)
			a.Conditions.CooldownSec = clampCooldown(a.Conditions.CooldownSec, "automation "+a.ID, logger)
			if len(a.Actions) > maxActionsPerRule {
				logger.Warn("action chain truncated", "rule", a.ID, "len", len(a.Actions), "max", maxActionsPerRule)
				a.Actions = a.Actions[:maxActionsPerRule]
			}
		}
		if m := sc.Moderation; m != nil {
			m.StreamerID = sc.ID
			if m.Level == "" {
				m.Level = LevelMedium
			}
			m.CustomBanned = dedupeLower(m.CustomBanned)
		}
	}
}

func clampCooldown(sec int, loc string, logger *slog.Logger) int {
	if sec < 0 {
		logger.Warn("negative cooldown clamped to 0", "at", loc, "sec", sec)
		return 0
	}
	if sec > maxCooldownSec {
		logger.Warn("cooldown clamped", "at", loc, "sec", sec, "max", maxCooldownSec)
		return maxCooldownSec
	}
	return sec
}

func dedupeLower(words []string) []string {
	seen := make(map[string]bool, len(words))
	out := make([]string, 0, len(words))
	for _, w := range words {
		w = strings.ToLower(strings.TrimSpace(w))
		if w == "" || seen[w] {
			continue
		}
		seen[w] = true
		out = append(out, w)
	}
	return out
}

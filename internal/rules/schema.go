package rules

import "time"

// TriggerType identifies the kind of event an automation rule matches.
type TriggerType string

const (
	TriggerCommand      TriggerType = "command"
	TriggerChatMessage  TriggerType = "chatMessage"
	TriggerRedemption   TriggerType = "redemption"
	TriggerFollow       TriggerType = "follow"
	TriggerSubscription TriggerType = "subscription"
	TriggerTimerTick    TriggerType = "timerTick"
	TriggerSceneChanged TriggerType = "sceneChanged"
)

// TriggerTypes lists every valid trigger type.
var TriggerTypes = []TriggerType{
	TriggerCommand,
	TriggerChatMessage,
	TriggerRedemption,
	TriggerFollow,
	TriggerSubscription,
	TriggerTimerTick,
	TriggerSceneChanged,
}

// PermissionTier is the minimum viewer standing required to run a command.
// Each tier implies every tier below it.
type PermissionTier string

const (
	TierEveryone   PermissionTier = "everyone"
	TierSubscriber PermissionTier = "subscriber"
	TierMod        PermissionTier = "mod"
	TierOwner      PermissionTier = "owner"
)

// Rank orders tiers: owner > mod > subscriber > everyone. Unknown tiers rank
// above owner so a misconfigured command fails closed.
func (t PermissionTier) Rank() int {
	switch t {
	case TierEveryone:
		return 0
	case TierSubscriber:
		return 1
	case TierMod:
		return 2
	case TierOwner:
		return 3
	default:
		return 4
	}
}

// ModerationLevel selects a cumulative banned-pattern tier.
type ModerationLevel string

const (
	LevelLow    ModerationLevel = "LOW"
	LevelMedium ModerationLevel = "MEDIUM"
	LevelHigh   ModerationLevel = "HIGH"
)

// Command is a chat command definition. Name is stored lowercase and is
// unique per streamer. The core reads everything and writes only LastUsedAt.
type Command struct {
	StreamerID  string         `yaml:"-" json:"streamerId"`
	Name        string         `yaml:"name" json:"name"`
	Response    string         `yaml:"response" json:"response"`
	Enabled     bool           `yaml:"enabled" json:"enabled"`
	CooldownSec int            `yaml:"cooldown_sec" json:"cooldownSec"`
	Permission  PermissionTier `yaml:"permission" json:"permission"`
	LastUsedAt  time.Time      `yaml:"-" json:"lastUsedAt"`
}

// Conditions are the fixed filters an automation rule can apply on top of
// its trigger.
type Conditions struct {
	TextIncludes []string `yaml:"text_includes" json:"textIncludes"`
	UserIsMod    bool     `yaml:"user_is_mod" json:"userIsMod"`
	CooldownSec  int      `yaml:"cooldown_sec" json:"cooldownSec"`
}

// ActionSpec is one step of an action chain. Payload is interpreted by the
// handler registered for Type; an unknown Type is a logged no-op.
type ActionSpec struct {
	Type    string         `yaml:"type" json:"type"`
	Payload map[string]any `yaml:"payload" json:"payload"`
}

// AutomationRule binds a trigger to an ordered action chain.
type AutomationRule struct {
	ID          string       `yaml:"id" json:"id"`
	StreamerID  string       `yaml:"-" json:"streamerId"`
	Name        string       `yaml:"name" json:"name"`
	Enabled     bool         `yaml:"enabled" json:"enabled"`
	TriggerType TriggerType  `yaml:"trigger_type" json:"triggerType"`
	TriggerName string       `yaml:"trigger_name" json:"triggerName"`
	Conditions  Conditions   `yaml:"conditions" json:"conditions"`
	IntervalSec int          `yaml:"interval_sec" json:"intervalSec"` // timerTick rules only
	Actions     []ActionSpec `yaml:"actions" json:"actions"`
}

// ModerationPolicy configures the moderation gate for one streamer.
type ModerationPolicy struct {
	StreamerID   string          `yaml:"-" json:"streamerId"`
	Level        ModerationLevel `yaml:"level" json:"level"`
	CustomBanned []string        `yaml:"custom_banned" json:"customBanned"`
}

// EngineConf holds process tunables read from the rules file.
type EngineConf struct {
	ChainWorkers  int    `yaml:"chain_workers"`
	ChainQueue    int    `yaml:"chain_queue"`
	CommandPrefix string `yaml:"command_prefix"`
}

// StreamerConf is one streamer partition of the rules file.
type StreamerConf struct {
	ID          string            `yaml:"id"`
	Commands    []*Command        `yaml:"commands"`
	Automations []*AutomationRule `yaml:"automations"`
	Moderation  *ModerationPolicy `yaml:"moderation"`
}

// GlobalConf holds explicit cross-streamer defaults. Only commands may be
// defaulted; automations and moderation policies are always streamer-scoped.
type GlobalConf struct {
	Commands []*Command `yaml:"commands"`
}

// File is the top-level rules document.
type File struct {
	Version   string          `yaml:"version"`
	Engine    EngineConf      `yaml:"engine"`
	Global    GlobalConf      `yaml:"global"`
	Streamers []*StreamerConf `yaml:"streamers"`
}

// Bundle is the resolved, read-only view of one streamer's configuration
// handed to the dispatcher, engine and gate.
type Bundle struct {
	StreamerID  string
	Commands    map[string]*Command
	Automations []*AutomationRule
	ByTrigger   map[TriggerType][]*AutomationRule
	Policy      *ModerationPolicy
}

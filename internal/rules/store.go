package rules

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"gopkg.in/yaml.v3"
)

const (
	bundleCacheSize = 256
	bundleCacheTTL  = 5 * time.Minute
)

// Store reads the YAML rules file and serves resolved per-streamer bundles.
// It is read-mostly: CRUD happens elsewhere and lands here either through a
// file write (picked up by the watcher) or an explicit Reload.
type Store struct {
	path   string
	logger *slog.Logger

	mu       sync.RWMutex
	file     *File
	lastUsed map[string]time.Time
	onChange []func(*File)

	cache *expirable.LRU[string, *Bundle]
}

// NewStore loads the rules file at path and returns a Store serving it.
func NewStore(path string, logger *slog.Logger) (*Store, error) {
	s := &Store{
		path:     path,
		logger:   logger,
		lastUsed: make(map[string]time.Time),
		cache:    expirable.NewLRU[string, *Bundle](bundleCacheSize, nil, bundleCacheTTL),
	}
	f, err := s.load()
	if err != nil {
		return nil, err
	}
	s.file = f
	return s, nil
}

// Engine returns the engine tunables from the current file.
func (s *Store) Engine() EngineConf {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.file.Engine
}

// OnChange registers a callback invoked after every successful reload.
func (s *Store) OnChange(fn func(*File)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChange = append(s.onChange, fn)
}

// Reload forces a re-read of the rules file, purges the bundle cache and
// notifies OnChange subscribers. On error the previous file stays active.
func (s *Store) Reload() error {
	f, err := s.load()
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.file = f
	callbacks := make([]func(*File), len(s.onChange))
	copy(callbacks, s.onChange)
	s.mu.Unlock()

	s.cache.Purge()
	for _, fn := range callbacks {
		fn(f)
	}
	return nil
}

// Watch starts a background goroutine that hot-reloads the rules file on
// writes. Call the returned stop function to clean up.
func (s *Store) Watch() (stop func(), err error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("rules watcher: %w", err)
	}
	if err := w.Add(s.path); err != nil {
		w.Close()
		return nil, fmt.Errorf("rules watcher add %s: %w", s.path, err)
	}

	done := make(chan struct{})
	go func() {
		defer w.Close()
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) {
					if err := s.Reload(); err != nil {
						s.logger.Warn("rules reload skipped", "err", err)
						continue
					}
					s.logger.Info("rules reloaded", "path", s.path)
				}
			case <-w.Errors:
				// Ignore watcher errors; the next write will retrigger.
			case <-done:
				return
			}
		}
	}()

	return func() { close(done) }, nil
}

// Invalidate drops the cached bundle for one streamer so the next dispatch
// sees fresh rules. Used by the CRUD layer's mutation notifications.
func (s *Store) Invalidate(streamerID string) {
	s.cache.Remove(streamerID)
}

// Resolve returns the bundle for a streamer: global default commands merged
// under the streamer's own (streamer entries win on name clash), the
// streamer's automations indexed by trigger type, and its moderation policy.
func (s *Store) Resolve(streamerID string) *Bundle {
	if b, ok := s.cache.Get(streamerID); ok {
		return b
	}

	s.mu.RLock()
	b := buildBundle(s.file, streamerID)
	s.mu.RUnlock()

	s.cache.Add(streamerID, b)
	return b
}

// Command looks up a command by (streamer, name). Name is matched lowercase.
func (s *Store) Command(streamerID, name string) (*Command, bool) {
	c, ok := s.Resolve(streamerID).Commands[strings.ToLower(name)]
	return c, ok
}

// TouchCommand records the last-use time of a command. Times live in a
// store-local map so the resolved command records stay read-only after load
// and can be served concurrently without locking.
func (s *Store) TouchCommand(streamerID, name string, t time.Time) {
	s.mu.Lock()
	s.lastUsed[streamerID+":"+strings.ToLower(name)] = t
	s.mu.Unlock()
}

// CommandsSnapshot returns value copies of a streamer's resolved commands
// with LastUsedAt filled in, safe to serialize while dispatch continues.
func (s *Store) CommandsSnapshot(streamerID string) map[string]Command {
	b := s.Resolve(streamerID)
	out := make(map[string]Command, len(b.Commands))
	s.mu.RLock()
	defer s.mu.RUnlock()
	for name, c := range b.Commands {
		cl := *c
		cl.LastUsedAt = s.lastUsed[streamerID+":"+name]
		out[name] = cl
	}
	return out
}

// Automations returns the streamer's enabled-or-not rules for a trigger type.
func (s *Store) Automations(streamerID string, t TriggerType) []*AutomationRule {
	return s.Resolve(streamerID).ByTrigger[t]
}

// Policy returns the streamer's moderation policy, defaulting to MEDIUM with
// an empty custom list when none is configured.
func (s *Store) Policy(streamerID string) *ModerationPolicy {
	if p := s.Resolve(streamerID).Policy; p != nil {
		return p
	}
	return &ModerationPolicy{StreamerID: streamerID, Level: LevelMedium}
}

// TimerRules returns every enabled timerTick rule across all streamers.
func (s *Store) TimerRules() []*AutomationRule {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*AutomationRule
	for _, sc := range s.file.Streamers {
		for _, a := range sc.Automations {
			if a.Enabled && a.TriggerType == TriggerTimerTick {
				out = append(out, a)
			}
		}
	}
	return out
}

// Streamers lists the configured streamer IDs.
func (s *Store) Streamers() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.file.Streamers))
	for _, sc := range s.file.Streamers {
		out = append(out, sc.ID)
	}
	return out
}

func (s *Store) load() (*File, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("read rules %s: %w", s.path, err)
	}
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse rules %s: %w", s.path, err)
	}
	if err := Validate(&f); err != nil {
		return nil, err
	}
	normalize(&f, s.logger)
	return &f, nil
}

func buildBundle(f *File, streamerID string) *Bundle {
	b := &Bundle{
		StreamerID: streamerID,
		Commands:   make(map[string]*Command),
		ByTrigger:  make(map[TriggerType][]*AutomationRule),
	}

	// Global defaults first: copied so per-streamer LastUsedAt writes do not
	// bleed across partitions.
	for _, gc := range f.Global.Commands {
		cl := *gc
		cl.StreamerID = streamerID
		b.Commands[cl.Name] = &cl
	}

	for _, sc := range f.Streamers {
		if sc.ID != streamerID {
			continue
		}
		for _, c := range sc.Commands {
			b.Commands[c.Name] = c
		}
		b.Automations = sc.Automations
		for _, a := range sc.Automations {
			b.ByTrigger[a.TriggerType] = append(b.ByTrigger[a.TriggerType], a)
		}
		b.Policy = sc.Moderation
		break
	}
	return b
}

// Package stats keeps per-actor peek counters. Nothing here feeds back
// into session decisions.
package stats

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/antoniostano/peek/internal/host"
)

// Recorder receives lifecycle events.
type Recorder interface {
	RecordStart(observer, subject host.ActorID)
	RecordDuration(observer host.ActorID, d time.Duration)
}

// Noop is the Recorder used when statistics are disabled.
type Noop struct{}

func (Noop) RecordStart(host.ActorID, host.ActorID) {}
func (Noop) RecordDuration(host.ActorID, time.Duration) {}

type ActorStats struct {
	PeekCount       int64 `json:"peek_count" yaml:"peek_count"`
	PeekedCount     int64 `json:"peeked_count" yaml:"peeked_count"`
	PeekDurationSec int64 `json:"peek_duration_seconds" yaml:"peek_duration"`
}

// PeekMinutes is the cumulative observing time in minutes.
func (s ActorStats) PeekMinutes() float64 {
	return float64(s.PeekDurationSec) / 60.0
}

// Tracker is the in-memory Recorder, persisted as YAML keyed by actor id.
type Tracker struct {
	mu     sync.RWMutex
	actors map[host.ActorID]*ActorStats
}

func NewTracker() *Tracker {
	return &Tracker{actors: make(map[host.ActorID]*ActorStats)}
}

func (t *Tracker) RecordStart(observer, subject host.ActorID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entryLocked(observer).PeekCount++
	t.entryLocked(subject).PeekedCount++
}

func (t *Tracker) RecordDuration(observer host.ActorID, d time.Duration) {
	if d < 0 {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entryLocked(observer).PeekDurationSec += int64(d / time.Second)
}

// Get returns a copy of actor's counters; unknown actors report zeros.
func (t *Tracker) Get(actor host.ActorID) ActorStats {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if s, ok := t.actors[actor]; ok {
		return *s
	}
	return ActorStats{}
}

func (t *Tracker) entryLocked(actor host.ActorID) *ActorStats {
	s, ok := t.actors[actor]
	if !ok {
		s = &ActorStats{}
		t.actors[actor] = s
	}
	return s
}

// Load replaces the tracker contents with the file at path. A missing
// file is not an error.
func (t *Tracker) Load(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read stats: %w", err)
	}
	var decoded map[string]ActorStats
	if err := yaml.Unmarshal(raw, &decoded); err != nil {
		return fmt.Errorf("parse stats: %w", err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.actors = make(map[host.ActorID]*ActorStats, len(decoded))
	for id, s := range decoded {
		s := s
		t.actors[host.ActorID(id)] = &s
	}
	return nil
}

// Save writes the tracker to path atomically.
func (t *Tracker) Save(path string) error {
	t.mu.RLock()
	out := make(map[string]ActorStats, len(t.actors))
	for id, s := range t.actors {
		out[string(id)] = *s
	}
	t.mu.RUnlock()

	raw, err := yaml.Marshal(out)
	if err != nil {
		return fmt.Errorf("encode stats: %w", err)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create stats dir: %w", err)
		}
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return fmt.Errorf("write stats: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replace stats: %w", err)
	}
	return nil
}

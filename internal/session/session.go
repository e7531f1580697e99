// Package session keeps per-user dashboard state: the chosen experience
// level and a private working copy of the scoring parameters.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/solvmetria/internal/config"
)

// Sentinel errors.
var (
	ErrNotFound     = eris.New("session: not found")
	ErrInvalidLevel = eris.New("session: invalid level")
)

// Level is the user's experience level. It selects the dashboard view.
type Level string

const (
	LevelNone         Level = ""
	LevelNovice       Level = "novice"
	LevelIntermediate Level = "intermediate"
	LevelExpert       Level = "expert"
)

// ParseLevel validates s. The empty string means no level chosen yet.
func ParseLevel(s string) (Level, error) {
	switch l := Level(s); l {
	case LevelNone, LevelNovice, LevelIntermediate, LevelExpert:
		return l, nil
	default:
		return LevelNone, eris.Wrapf(ErrInvalidLevel, "session: %q", s)
	}
}

// Session is a snapshot of one user's state. Values returned by Manager
// are copies; mutate through Manager only.
type Session struct {
	ID        string               `json:"id"`
	Level     Level                `json:"level"`
	Params    config.ScoringConfig `json:"params"`
	CreatedAt time.Time            `json:"created_at"`
	LastSeen  time.Time            `json:"last_seen"`
}

// Manager is a concurrency-safe session registry.
type Manager struct {
	defaults config.ScoringConfig
	idle     time.Duration
	now      func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewManager creates a registry whose sessions start from defaults and
// expire after idle without access. Zero idle never expires.
func NewManager(defaults config.ScoringConfig, idle time.Duration) *Manager {
	return &Manager{
		defaults: defaults,
		idle:     idle,
		now:      time.Now,
		sessions: make(map[string]*Session),
	}
}

// Defaults returns the parameters new sessions start from.
func (m *Manager) Defaults() config.ScoringConfig { return m.defaults }

// Create opens a session at level with the default parameters.
func (m *Manager) Create(level Level) (Session, error) {
	if _, err := ParseLevel(string(level)); err != nil {
		return Session{}, err
	}
	now := m.now().UTC()
	s := &Session{
		ID:        uuid.NewString(),
		Level:     level,
		Params:    m.defaults,
		CreatedAt: now,
		LastSeen:  now,
	}

	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()

	zap.L().Debug("session: created", zap.String("id", s.ID), zap.String("level", string(level)))
	return *s, nil
}

// Get returns a copy of the session and marks it as seen.
func (m *Manager) Get(id string) (Session, error) {
	return m.update(id, func(*Session) error { return nil })
}

// SetLevel changes the session's level. LevelNone returns the user to the
// level selector.
func (m *Manager) SetLevel(id string, level Level) (Session, error) {
	if _, err := ParseLevel(string(level)); err != nil {
		return Session{}, err
	}
	return m.update(id, func(s *Session) error {
		s.Level = level
		return nil
	})
}

// Adjust applies adj to the session's working parameters. The session is
// left unchanged when adj is out of bounds.
func (m *Manager) Adjust(id string, adj Adjustment) (Session, error) {
	return m.update(id, func(s *Session) error {
		next, err := adj.Apply(s.Params)
		if err != nil {
			return err
		}
		s.Params = next
		return nil
	})
}

// Reset restores the default parameters.
func (m *Manager) Reset(id string) (Session, error) {
	return m.update(id, func(s *Session) error {
		s.Params = m.defaults
		return nil
	})
}

// Delete removes a session.
func (m *Manager) Delete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[id]; !ok {
		return eris.Wrapf(ErrNotFound, "session: %s", id)
	}
	delete(m.sessions, id)
	return nil
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Prune drops sessions idle for longer than the configured timeout and
// returns how many were removed.
func (m *Manager) Prune() int {
	if m.idle <= 0 {
		return 0
	}
	cutoff := m.now().UTC().Add(-m.idle)

	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for id, s := range m.sessions {
		if s.LastSeen.Before(cutoff) {
			delete(m.sessions, id)
			n++
		}
	}
	return n
}

// RunPruner calls Prune every interval until ctx is done.
func (m *Manager) RunPruner(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n := m.Prune(); n > 0 {
				zap.L().Info("session: pruned idle sessions", zap.Int("removed", n), zap.Int("live", m.Len()))
			}
		}
	}
}

func (m *Manager) update(id string, fn func(*Session) error) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok {
		return Session{}, eris.Wrapf(ErrNotFound, "session: %s", id)
	}
	if err := fn(s); err != nil {
		return *s, err
	}
	s.LastSeen = m.now().UTC()
	return *s, nil
}

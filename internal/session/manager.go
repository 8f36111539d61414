package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/mmynk/splitsmart/internal/cache"
	"github.com/mmynk/splitsmart/internal/models"
)

// ErrNotFound is returned for unknown or expired sessions.
var ErrNotFound = errors.New("session not found")

const welcomeMessage = "Welcome to SplitSmart! Please upload a receipt to get started."

// Manager keeps live sessions in memory. Idle sessions expire after the TTL
// and the least recently used ones are evicted when the limit is reached.
type Manager struct {
	sessions  *cache.LRU[*Session]
	undoDepth int
}

// NewManager creates a manager holding up to maxSessions sessions.
func NewManager(maxSessions int, ttl time.Duration, undoDepth int) *Manager {
	return &Manager{
		sessions:  cache.New(maxSessions, ttl, logEviction),
		undoDepth: undoDepth,
	}
}

func logEviction(id string, s *Session, reason cache.EvictReason) {
	if reason == cache.Capacity {
		slog.Warn("Session evicted, too many sessions", "session_id", id, "age", time.Since(s.CreatedAt()).Round(time.Second))
		return
	}
	slog.Debug("Session expired", "session_id", id)
}

// Create starts a session with the welcome message in its transcript.
func (m *Manager) Create(userName string) *Session {
	s := New(uuid.New().String(), userName, m.undoDepth)
	s.AddMessage(models.RoleAssistant, welcomeMessage)
	if userName != "" {
		s.AddMessage(models.RoleAssistant,
			fmt.Sprintf("Hi %s! I'll assign items to you when you say \"I\" or \"me\".", userName))
	}
	m.sessions.Set(s.ID(), s)
	return s
}

// Get returns a live session and extends its lifetime.
func (m *Manager) Get(id string) (*Session, error) {
	s, ok := m.sessions.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return s, nil
}

func (m *Manager) Delete(id string) {
	m.sessions.Delete(id)
}

// Len returns the number of sessions held, including expired ones not yet cleaned.
func (m *Manager) Len() int {
	return m.sessions.Len()
}

// RunJanitor drops expired sessions every interval until ctx is done.
func (m *Manager) RunJanitor(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if n := m.sessions.CleanExpired(); n > 0 {
				slog.Info("Expired sessions removed", "count", n, "remaining", m.sessions.Len())
			}
		}
	}
}

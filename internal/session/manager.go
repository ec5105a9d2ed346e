package session

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ExpireFunc is called once for each session removed by Sweep.
type ExpireFunc func(Session)

// Manager holds the live session of every chat.
type Manager struct {
	mu       sync.RWMutex
	sessions map[int64]*Session
	ttl      time.Duration
	interval time.Duration
	onExpire ExpireFunc
	now      func() time.Time
}

// NewManager creates a manager that expires sessions idle longer than ttl,
// checking every interval once Run is started.
func NewManager(ttl, interval time.Duration) *Manager {
	return &Manager{
		sessions: make(map[int64]*Session),
		ttl:      ttl,
		interval: interval,
		now:      time.Now,
	}
}

// OnExpire registers the callback invoked for expired sessions.
func (m *Manager) OnExpire(fn ExpireFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onExpire = fn
}

// Start opens a new session for the chat, replacing any live one.
// The replaced session is returned when there was one.
func (m *Manager) Start(chatID, userID int64) (Session, *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	var replaced *Session
	if prev, ok := m.sessions[chatID]; ok {
		cp := *prev
		replaced = &cp
	}

	s := &Session{
		ID:        uuid.NewString(),
		ChatID:    chatID,
		UserID:    userID,
		State:     StateAwaitingIdentifier,
		CreatedAt: now,
		UpdatedAt: now,
	}
	m.sessions[chatID] = s
	return *s, replaced
}

// Get returns a copy of the chat's live session.
func (m *Manager) Get(chatID int64) (Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[chatID]
	if !ok {
		return Session{}, false
	}
	return *s, true
}

// AcceptIdentifier records a validated identifier for the chat's session.
func (m *Manager) AcceptIdentifier(chatID int64, identifier string) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[chatID]
	if !ok {
		return Session{}, ErrNotFound
	}
	if err := s.AcceptIdentifier(identifier, m.now()); err != nil {
		return *s, err
	}
	return *s, nil
}

// Complete marks the chat's session complete and removes it.
func (m *Manager) Complete(chatID int64) (Session, error) {
	return m.finish(chatID, (*Session).Complete)
}

// Cancel cancels the chat's session and removes it.
func (m *Manager) Cancel(chatID int64) (Session, error) {
	return m.finish(chatID, (*Session).Cancel)
}

func (m *Manager) finish(chatID int64, step func(*Session, time.Time) error) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[chatID]
	if !ok {
		return Session{}, ErrNotFound
	}
	if err := step(s, m.now()); err != nil {
		return *s, err
	}
	delete(m.sessions, chatID)
	return *s, nil
}

// End removes the chat's session regardless of state.
func (m *Manager) End(chatID int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, ok := m.sessions[chatID]
	delete(m.sessions, chatID)
	return ok
}

// Sweep expires sessions idle longer than the TTL as of now.
func (m *Manager) Sweep(now time.Time) []Session {
	m.mu.Lock()
	var expired []Session
	for chatID, s := range m.sessions {
		if s.Idle(now) <= m.ttl {
			continue
		}
		s.expire(now)
		expired = append(expired, *s)
		delete(m.sessions, chatID)
	}
	fn := m.onExpire
	m.mu.Unlock()

	if fn != nil {
		for _, s := range expired {
			fn(s)
		}
	}
	return expired
}

// Run sweeps on a ticker until ctx is done.
func (m *Manager) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Sweep(m.now())
		}
	}
}

// List returns a snapshot of live sessions, oldest first.
func (m *Manager) List() []Session {
	m.mu.RLock()
	defer m.mu.RUnlock()

	items := make([]Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		items = append(items, *s)
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].ChatID < items[j].ChatID
		}
		return items[i].CreatedAt.Before(items[j].CreatedAt)
	})
	return items
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

package fsm

import (
	"context"
	"sync"
	"time"
)

// Store persists sessions durably across restarts. Backed by
// db/repository.CacheRepository when a shared cache backend is configured;
// an in-process map otherwise — sessions then only survive this process's
// own lifetime, same dual-mode rule as the caches in spec.md §4.4.
type Store interface {
	SetCache(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	GetCache(ctx context.Context, key string, value interface{}) error
	DeleteCache(ctx context.Context, key string) error
}

// Manager tracks one Session per user id and serialises every handler for
// a given user through a per-user sync.Mutex — Go's goroutines are not
// naturally serialised by a dispatch key the way a single-threaded event
// loop is, so this is the explicit mechanism spec.md §5 requires instead.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	locks    map[string]*sync.Mutex
}

// NewManager builds an in-process session manager.
func NewManager() *Manager {
	return &Manager{
		sessions: make(map[string]*Session),
		locks:    make(map[string]*sync.Mutex),
	}
}

// Lock returns the per-user mutex for userID, creating it on first use.
// Callers must hold it for the duration of handling one update for that
// user and release it when done.
func (m *Manager) Lock(userID string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.locks[userID]
	if !ok {
		l = &sync.Mutex{}
		m.locks[userID] = l
	}
	return l
}

// Start begins a new session for userID in workflow's initial phase,
// replacing any existing session for that user.
func (m *Manager) Start(userID, workflow string, initial Phase) *Session {
	s := NewSession(userID, workflow, initial)
	m.mu.Lock()
	m.sessions[userID] = s
	m.mu.Unlock()
	return s
}

// Get returns the active session for userID, if any.
func (m *Manager) Get(userID string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[userID]
	return s, ok
}

// Clear removes userID's session — used by /cancel and by the navigation
// middleware when a top-level button is pressed mid-workflow.
func (m *Manager) Clear(userID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, userID)
}

// Active lists every user id with a live session.
func (m *Manager) Active() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	return ids
}

// durableManager wraps Manager with a Store so sessions survive restart —
// used when a shared cache backend is configured.
type durableManager struct {
	*Manager
	store Store
	ttl   time.Duration
}

// NewDurableManager builds a session manager whose Start/Get/Clear also
// read and write through store, so a session started on one replica is
// visible to another and survives a process restart.
func NewDurableManager(store Store, ttl time.Duration) *durableManager {
	return &durableManager{Manager: NewManager(), store: store, ttl: ttl}
}

func sessionKey(userID string) string {
	return "fsm-session:" + userID
}

// Start writes the new session through the store; a write failure leaves
// the session usable in-process for this replica but invisible to others,
// same degraded state a fresh, never-started session would present.
func (dm *durableManager) Start(userID, workflow string, initial Phase) *Session {
	s := dm.Manager.Start(userID, workflow, initial)
	_ = dm.store.SetCache(context.Background(), sessionKey(userID), s, dm.ttl)
	return s
}

func (dm *durableManager) Get(userID string) (*Session, bool) {
	if s, ok := dm.Manager.Get(userID); ok {
		return s, true
	}
	var s Session
	if err := dm.store.GetCache(context.Background(), sessionKey(userID), &s); err != nil {
		return nil, false
	}
	return &s, true
}

func (dm *durableManager) Clear(userID string) {
	dm.Manager.Clear(userID)
	_ = dm.store.DeleteCache(context.Background(), sessionKey(userID))
}

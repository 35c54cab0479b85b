// Package fsm tracks one conversation session per chat user: which
// workflow state they're in, the data collected so far, and the message
// ids the single-window UX invariants require editing in place rather than
// reposting. A PhaseGuard supplies the named transition table each
// workflow's FSM (write-off, invoice, authorisation, product request)
// validates its steps against.
package fsm

import "time"

// TrackedMessages are the message ids a session edits in place instead of
// reposting, per spec.md §4.6's single-window UX invariants.
type TrackedMessages struct {
	MenuMsgID   int
	HeaderMsgID int
	PromptMsgID int
}

// Session is one user's in-flight FSM state. Data holds whatever the
// current workflow needs (store id, account id, collected items, ...) —
// intentionally untyped since each workflow's shape differs and this type
// is shared by all of them.
type Session struct {
	UserID    string
	Workflow  string
	Phase     Phase
	Data      map[string]interface{}
	Messages  TrackedMessages
	StartedAt time.Time
	UpdatedAt time.Time
}

// NewSession starts a session for userID in workflow's initial phase.
func NewSession(userID, workflow string, initial Phase) *Session {
	now := time.Now()
	return &Session{
		UserID:    userID,
		Workflow:  workflow,
		Phase:     initial,
		Data:      make(map[string]interface{}),
		StartedAt: now,
		UpdatedAt: now,
	}
}

// Set stores a value under key.
func (s *Session) Set(key string, value interface{}) {
	s.Data[key] = value
	s.UpdatedAt = time.Now()
}

// Get retrieves a value by key.
func (s *Session) Get(key string) (interface{}, bool) {
	v, ok := s.Data[key]
	return v, ok
}

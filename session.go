package fbsmslib

import "time"

// DefaultSessionIdle is how long a sid is reused without traffic. The
// router itself drops sessions after 20 minutes.
const DefaultSessionIdle = 19 * time.Minute

// Session is a sid obtained from a successful login.
type Session struct {
	ID         string
	ObtainedAt time.Time
	lastUsed   time.Time
}

// SessionStore holds the current session. Expiry is only checked when the
// session is read; nothing runs in the background.
type SessionStore struct {
	current *Session
	maxIdle time.Duration
	now     func() time.Time
}

func NewSessionStore(maxIdle time.Duration) *SessionStore {
	return &SessionStore{maxIdle: maxIdle, now: time.Now}
}

// Get returns the current session, or nil if there is none or it has been
// idle for longer than the store allows.
func (s *SessionStore) Get() *Session {
	if s.current == nil {
		return nil
	}
	if s.maxIdle > 0 && s.now().Sub(s.current.lastUsed) > s.maxIdle {
		s.current = nil
	}
	return s.current
}

// Set replaces the current session.
func (s *SessionStore) Set(session *Session) {
	if session != nil && session.lastUsed.IsZero() {
		session.lastUsed = session.ObtainedAt
	}
	s.current = session
}

// Touch records that the current session was just used successfully.
func (s *SessionStore) Touch() {
	if s.current != nil {
		s.current.lastUsed = s.now()
	}
}

// Invalidate drops the current session.
func (s *SessionStore) Invalidate() {
	s.current = nil
}

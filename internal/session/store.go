package session

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"github.com/rickgao/botcharts/internal/auth"
	"github.com/rickgao/botcharts/internal/metrics"
)

// Errors
var (
	ErrNotFound       = errors.New("session not found")
	ErrUnknownAccount = errors.New("account not in session")
)

// Session is one logged-in user.
type Session struct {
	ID            string         `json:"id"`
	LoginID       string         `json:"loginid"`
	ActiveLoginID string         `json:"active_loginid"`
	Token         string         `json:"-"`
	Accounts      []auth.Account `json:"accounts"`
	CreatedAt     time.Time      `json:"created_at"`
	LastSeenAt    time.Time      `json:"last_seen_at"`
}

// Store holds sessions in memory.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	logins  *cache.Cache // state -> PKCE verifier
	metrics *metrics.Metrics
	now     func() time.Time
}

// NewStore creates a store. Pending logins expire after loginTTL.
func NewStore(loginTTL time.Duration, m *metrics.Metrics) *Store {
	if loginTTL <= 0 {
		loginTTL = 10 * time.Minute
	}
	return &Store{
		sessions: make(map[string]*Session),
		logins:   cache.New(loginTTL, loginTTL),
		metrics:  m,
		now:      time.Now,
	}
}

// BeginLogin remembers the verifier issued for state.
func (s *Store) BeginLogin(state, verifier string) {
	s.logins.SetDefault(state, verifier)
}

// TakeLogin returns and forgets the verifier for state.
func (s *Store) TakeLogin(state string) (string, bool) {
	v, ok := s.logins.Get(state)
	if !ok {
		return "", false
	}
	s.logins.Delete(state)
	return v.(string), true
}

// Create starts a session for token.
func (s *Store) Create(loginID, token string, accounts []auth.Account) Session {
	now := s.now()
	sess := &Session{
		ID:            uuid.NewString(),
		LoginID:       loginID,
		ActiveLoginID: loginID,
		Token:         token,
		Accounts:      accounts,
		CreatedAt:     now,
		LastSeenAt:    now,
	}

	s.mu.Lock()
	s.sessions[sess.ID] = sess
	n := len(s.sessions)
	s.mu.Unlock()

	s.metrics.SetSessions(n)
	return *sess
}

// Get returns a session and marks it as seen.
func (s *Store) Get(id string) (Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return Session{}, false
	}
	sess.LastSeenAt = s.now()
	return *sess, true
}

// Delete removes a session and returns it.
func (s *Store) Delete(id string) (Session, bool) {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	if ok {
		delete(s.sessions, id)
	}
	n := len(s.sessions)
	s.mu.Unlock()

	if !ok {
		return Session{}, false
	}
	s.metrics.SetSessions(n)
	return *sess, true
}

// List returns all sessions, oldest first.
func (s *Store) List() []Session {
	s.mu.RLock()
	out := make([]Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, *sess)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Len returns the number of sessions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// SwitchAccount makes loginID the active account of a session.
func (s *Store) SwitchAccount(id, loginID string) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return Session{}, ErrNotFound
	}
	if loginID != sess.LoginID && !hasAccount(sess.Accounts, loginID) {
		return Session{}, ErrUnknownAccount
	}
	sess.ActiveLoginID = loginID
	return *sess, nil
}

// refresh replaces the account list after a successful whoami.
func (s *Store) refresh(id string, who *auth.Whoami) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok || who == nil {
		return
	}
	if len(who.Accounts) > 0 {
		sess.Accounts = who.Accounts
		if !hasAccount(sess.Accounts, sess.ActiveLoginID) {
			sess.ActiveLoginID = sess.LoginID
		}
	}
}

func hasAccount(accounts []auth.Account, loginID string) bool {
	for _, a := range accounts {
		if a.LoginID == loginID {
			return true
		}
	}
	return false
}

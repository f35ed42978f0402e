package server

import (
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/spektr-org/fuelscope/engine"
	"github.com/spektr-org/fuelscope/filterstate"
	"github.com/spektr-org/fuelscope/schema"
)

// SessionCookie names the cookie carrying the session id.
const SessionCookie = "fuelscope_session"

// DefaultSessionTTL is how long an untouched session is kept.
const DefaultSessionTTL = 12 * time.Hour

// session is one browser's widget state.
type session struct {
	mu       sync.Mutex
	cascade  *filterstate.Cascade
	controls *filterstate.Controls
	lastSeen time.Time // guarded by sessions.mu
}

// sessions maps cookie ids to widget state. A session idle for longer than
// ttl is dropped the next time a new session is created.
type sessions struct {
	mu       sync.Mutex
	byID     map[string]*session
	base     engine.RecordView
	sch      schema.Config
	defaults filterstate.Defaults
	ttl      time.Duration
	now      func() time.Time
}

func newSessions(base engine.RecordView, sch schema.Config, defaults filterstate.Defaults, ttl time.Duration) *sessions {
	return &sessions{
		byID:     make(map[string]*session),
		base:     base,
		sch:      sch,
		defaults: defaults,
		ttl:      ttl,
		now:      time.Now,
	}
}

// get returns the caller's session, creating one (and setting the cookie)
// when the request carries no known id.
func (s *sessions) get(w http.ResponseWriter, r *http.Request) *session {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if c, err := r.Cookie(SessionCookie); err == nil {
		if sess, ok := s.byID[c.Value]; ok && !s.expired(sess, now) {
			sess.lastSeen = now
			return sess
		}
	}
	s.prune(now)

	id := uuid.New().String()
	cascade := filterstate.New(s.base, s.sch, s.defaults)
	sess := &session{
		cascade:  cascade,
		controls: filterstate.NewControls(s.base, cascade.Apply(s.base)),
		lastSeen: now,
	}
	s.byID[id] = sess

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return sess
}

func (s *sessions) expired(sess *session, now time.Time) bool {
	return s.ttl > 0 && now.Sub(sess.lastSeen) > s.ttl
}

// prune drops idle sessions. Callers hold s.mu.
func (s *sessions) prune(now time.Time) {
	for id, sess := range s.byID {
		if s.expired(sess, now) {
			delete(s.byID, id)
		}
	}
}

func (s *sessions) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byID)
}

// refresh re-derives the panel pickers after the sidebar changed.
// Callers hold sess.mu.
func (sess *session) refresh(base engine.RecordView) {
	sess.controls.Refresh(sess.cascade.Apply(base))
}

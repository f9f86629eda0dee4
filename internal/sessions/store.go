package sessions

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/kentsikayet/portal/internal/claims"
	"github.com/kentsikayet/portal/pkg/logger"
	"github.com/kentsikayet/portal/pkg/metrics"
)

// DefaultTTL is the session lifetime measured from login.
const DefaultTTL = time.Hour

var (
	// ErrInvalidToken is returned by Login for tokens the codec cannot read.
	ErrInvalidToken = errors.New("invalid token")
	// ErrTokenExpired is returned by Login for tokens whose exp claim has passed.
	ErrTokenExpired = errors.New("token already expired")
	// ErrNoSessionID is returned when an operation is called without a session id.
	ErrNoSessionID = errors.New("missing session id")
)

var log = logger.For("sessions")

// Notifier delivers a user-visible message to the browser owning sid.
type Notifier interface {
	Notify(ctx context.Context, sid, level, message string) error
}

// Timer is the part of *time.Timer the Store uses.
type Timer interface {
	Stop() bool
}

// LogoutHook runs after a session has been removed.
type LogoutHook func(ctx context.Context, sid string, reason Reason)

// Store is the single owner of session state. Durable writes go through the
// Repository; expiry is enforced by one timer per live session, armed at the
// earlier of the stored expiry and the token's exp claim.
type Store struct {
	repo     Repository
	ttl      time.Duration
	notifier Notifier

	now      func() time.Time
	schedule func(time.Duration, func()) Timer

	mu      sync.Mutex
	watches map[string]Timer
	hooks   []LogoutHook
}

// Option customises a Store.
type Option func(*Store)

// WithTTL overrides DefaultTTL.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithNotifier sets where logout notices are sent.
func WithNotifier(n Notifier) Option { return func(s *Store) { s.notifier = n } }

// WithClock replaces the wall clock and the one-shot scheduler.
func WithClock(now func() time.Time, schedule func(time.Duration, func()) Timer) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
		if schedule != nil {
			s.schedule = schedule
		}
	}
}

func NewStore(repo Repository, opts ...Option) *Store {
	s := &Store{
		repo:    repo,
		ttl:     DefaultTTL,
		now:     time.Now,
		watches: map[string]Timer{},
		schedule: func(d time.Duration, f func()) Timer {
			return time.AfterFunc(d, f)
		},
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// OnLogout registers a hook run after every logout.
func (s *Store) OnLogout(h LogoutHook) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hooks = append(s.hooks, h)
}

// TTL returns the configured session lifetime.
func (s *Store) TTL() time.Duration { return s.ttl }

// Login stores token for sid with an expiry of now+TTL, regardless of any exp
// claim inside the token, and arms the expiry watch.
func (s *Store) Login(ctx context.Context, sid, token string) (*Session, error) {
	if sid == "" {
		return nil, ErrNoSessionID
	}
	c, err := claims.Decode(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	sess := &Session{
		ID:          sid,
		Token:       token,
		Expiry:      s.now().Add(s.ttl),
		DisplayName: displayName(c),
	}
	if !s.now().Before(sess.Deadline()) {
		return nil, ErrTokenExpired
	}
	if err := s.repo.Save(ctx, sess); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}
	metrics.SessionLogins.Inc()
	log.Infof("login sid=%s subject=%s roles=%v expiry=%s", short(sid), c.Subject, c.Roles.Sorted(), sess.Expiry.Format(time.RFC3339))
	s.arm(sess)
	return sess, nil
}

// Logout removes the session for sid. Only the call that actually removes a
// session notifies the user and runs hooks; repeated calls are no-ops.
func (s *Store) Logout(ctx context.Context, sid string, reason Reason) error {
	if sid == "" {
		return nil
	}
	s.mu.Lock()
	if t, ok := s.watches[sid]; ok {
		t.Stop()
		delete(s.watches, sid)
	}
	hooks := append([]LogoutHook(nil), s.hooks...)
	s.mu.Unlock()

	// the delete decides which caller owns the logout
	existed, err := s.repo.Delete(ctx, sid)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if !existed {
		return nil
	}

	metrics.SessionLogouts.WithLabelValues(string(reason)).Inc()
	log.Infof("logout sid=%s reason=%s", short(sid), reason)
	if s.notifier != nil {
		if err := s.notifier.Notify(ctx, sid, "info", logoutMessage(reason)); err != nil {
			log.Warnf("notify sid=%s: %v", short(sid), err)
		}
	}
	for _, h := range hooks {
		h(ctx, sid, reason)
	}
	return nil
}

// Current returns the live session for sid, or nil. A session found past its
// deadline is logged out before returning nil.
func (s *Store) Current(ctx context.Context, sid string) (*Session, error) {
	if sid == "" {
		return nil, nil
	}
	sess, err := s.repo.Get(ctx, sid)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, nil
	}
	if _, err := claims.Decode(sess.Token); err != nil {
		return nil, s.Logout(ctx, sid, ReasonRejected)
	}
	if !s.now().Before(sess.Deadline()) {
		return nil, s.Logout(ctx, sid, ReasonExpired)
	}
	return sess, nil
}

// Remaining returns the time left before sid's session ends, or 0.
func (s *Store) Remaining(ctx context.Context, sid string) (time.Duration, error) {
	sess, err := s.Current(ctx, sid)
	if err != nil || sess == nil {
		return 0, err
	}
	return sess.Deadline().Sub(s.now()), nil
}

// Resume re-arms the expiry watch of every persisted session. Call once at startup.
func (s *Store) Resume(ctx context.Context) (int, error) {
	list, err := s.repo.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("list sessions: %w", err)
	}
	live := 0
	for _, sess := range list {
		if s.arm(sess) {
			live++
		}
	}
	log.Infof("resumed %d of %d stored sessions", live, len(list))
	return live, nil
}

// Close stops every pending expiry timer.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, t := range s.watches {
		t.Stop()
		delete(s.watches, id)
	}
}

// arm schedules the one-shot expiry check for sess, replacing any previous
// one. Sessions already past their deadline are logged out immediately and
// arm reports false.
func (s *Store) arm(sess *Session) bool {
	remaining := sess.Deadline().Sub(s.now())
	if remaining <= 0 {
		if err := s.Logout(context.Background(), sess.ID, ReasonExpired); err != nil {
			log.Errorf("expire sid=%s: %v", short(sess.ID), err)
		}
		return false
	}
	sid := sess.ID
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.watches[sid]; ok {
		t.Stop()
	}
	var t Timer
	t = s.schedule(remaining, func() {
		s.mu.Lock()
		if s.watches[sid] != t {
			s.mu.Unlock()
			return
		}
		delete(s.watches, sid)
		s.mu.Unlock()
		if err := s.Logout(context.Background(), sid, ReasonExpired); err != nil {
			log.Errorf("expire sid=%s: %v", short(sid), err)
		}
	})
	s.watches[sid] = t
	return true
}

func displayName(c claims.Claims) string {
	if c.Name != "" {
		return c.Name
	}
	return c.Subject
}

func logoutMessage(r Reason) string {
	switch r {
	case ReasonExpired:
		return "Oturumunuzun süresi doldu, lütfen tekrar giriş yapın."
	case ReasonRejected:
		return "Oturum bilgileriniz geçersiz, lütfen tekrar giriş yapın."
	}
	return "Çıkış yapıldı."
}

func short(sid string) string {
	if len(sid) > 8 {
		return sid[:8]
	}
	return sid
}

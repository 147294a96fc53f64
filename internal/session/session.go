// Package session owns authentication: account sign-up and sign-in, signed
// session tokens, sign-out through token revocation, and a subscription list
// that lets other components react to auth changes.
//
// A Manager is created once at startup and closed on shutdown. It replaces a
// process-wide "current user" with explicit calls: every request resolves its
// own session from the bearer token it carries.
package session

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/bitafam/terrenos/internal/domain"
	"github.com/bitafam/terrenos/internal/repo"
)

// MinPasswordLen is the shortest accepted password.
const MinPasswordLen = 6

var (
	ErrNoSession          = errors.New("no active session")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailTaken         = errors.New("email already registered")
	ErrWeakPassword       = errors.New("password too short")
	ErrMissingFields      = errors.New("name and email are required")
	ErrInvalidEmail       = errors.New("invalid email address")
)

var authEvents = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "auth_events_total",
		Help: "Authentication events by kind.",
	},
	[]string{"event"},
)

func init() {
	prometheus.MustRegister(authEvents)
}

// EventKind names an auth state change.
type EventKind string

const (
	EventSignedUp  EventKind = "signed_up"
	EventSignedIn  EventKind = "signed_in"
	EventSignedOut EventKind = "signed_out"
)

// Event is delivered to subscribers after an auth state change.
type Event struct {
	Kind   EventKind
	UserID string
	Email  string
	At     time.Time
}

// Identity is a registered account.
type Identity struct {
	UserID string `json:"user_id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
}

// Session is a validated, unexpired, unrevoked token.
type Session struct {
	Token     string    `json:"token"`
	UserID    string    `json:"user_id"`
	Email     string    `json:"email"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
	jti       string
}

// Options configures a Manager. Revoker defaults to a MemoryRevoker, TTL to
// 24h, Now to time.Now and BcryptCost to bcrypt.DefaultCost.
type Options struct {
	Accounts   AccountStore
	Signer     *Signer
	Revoker    Revoker
	TTL        time.Duration
	Now        func() time.Time
	BcryptCost int
}

type subscription struct {
	id int
	fn func(Event)
}

// Manager is the application-level session context.
type Manager struct {
	accounts AccountStore
	signer   *Signer
	revoker  Revoker
	ttl      time.Duration
	now      func() time.Time
	cost     int

	mu     sync.Mutex
	subs   []subscription
	nextID int
	closed bool
}

// NewManager validates opts and returns a ready Manager.
func NewManager(opts Options) (*Manager, error) {
	if opts.Accounts == nil {
		return nil, errors.New("session: account store is required")
	}
	if opts.Signer == nil {
		return nil, errors.New("session: signer is required")
	}
	m := &Manager{
		accounts: opts.Accounts,
		signer:   opts.Signer,
		revoker:  opts.Revoker,
		ttl:      opts.TTL,
		now:      opts.Now,
		cost:     opts.BcryptCost,
	}
	if m.revoker == nil {
		m.revoker = NewMemoryRevoker()
	}
	if m.ttl <= 0 {
		m.ttl = 24 * time.Hour
	}
	if m.now == nil {
		m.now = time.Now
	}
	if m.cost == 0 {
		m.cost = bcrypt.DefaultCost
	}
	return m, nil
}

// SignUp creates an account and its registry row. The account may sign in
// immediately afterwards.
func (m *Manager) SignUp(ctx context.Context, name, email, password string) (*Identity, error) {
	name = strings.TrimSpace(name)
	email = strings.ToLower(strings.TrimSpace(email))
	if name == "" || email == "" {
		return nil, ErrMissingFields
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, ErrInvalidEmail
	}
	if len(password) < MinPasswordLen {
		return nil, ErrWeakPassword
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), m.cost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	acc := &domain.Account{ID: uuid.NewString(), Email: email, PasswordHash: string(hash)}
	if err := m.accounts.CreateAccount(ctx, acc); err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			return nil, ErrEmailTaken
		}
		return nil, err
	}
	if err := m.accounts.UpsertUser(ctx, &domain.User{ID: acc.ID, Name: name, Email: email, Role: "user"}); err != nil {
		// The account exists but cannot publish until the registry row is there.
		zerolog.Ctx(ctx).Error().Err(err).Str("user_id", acc.ID).Msg("registry upsert failed after sign-up")
		return nil, err
	}

	m.emit(Event{Kind: EventSignedUp, UserID: acc.ID, Email: email, At: m.now()})
	return &Identity{UserID: acc.ID, Name: name, Email: email}, nil
}

// SignIn checks credentials and issues a new session token.
func (m *Manager) SignIn(ctx context.Context, email, password string) (*Session, error) {
	acc, err := m.accounts.AccountByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(acc.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	now := m.now()
	token, claims, err := m.signer.Issue(acc.ID, acc.Email, now, m.ttl)
	if err != nil {
		return nil, err
	}
	m.emit(Event{Kind: EventSignedIn, UserID: acc.ID, Email: acc.Email, At: now})
	return sessionFrom(token, claims), nil
}

// Current resolves token to its session. Any invalid, expired or revoked
// token yields ErrNoSession.
func (m *Manager) Current(ctx context.Context, token string) (*Session, error) {
	claims, err := m.signer.Parse(token, m.now())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoSession, err)
	}
	revoked, err := m.revoker.IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, fmt.Errorf("check revocation: %w", err)
	}
	if revoked {
		return nil, ErrNoSession
	}
	return sessionFrom(token, claims), nil
}

// SignOut revokes token until it would have expired.
func (m *Manager) SignOut(ctx context.Context, token string) error {
	s, err := m.Current(ctx, token)
	if err != nil {
		return err
	}
	if err := m.revoker.Revoke(ctx, s.jti, s.ExpiresAt.Sub(m.now())); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	m.emit(Event{Kind: EventSignedOut, UserID: s.UserID, Email: s.Email, At: m.now()})
	return nil
}

// IsRegistered reports whether userID has a row in the known-users registry.
func (m *Manager) IsRegistered(ctx context.Context, userID string) (bool, error) {
	if _, err := m.accounts.GetUser(ctx, userID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Subscribe registers fn for every subsequent event. Subscribers run
// synchronously, in registration order. The returned function removes the
// subscription; after Close, Subscribe is a no-op.
func (m *Manager) Subscribe(fn func(Event)) (unsubscribe func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed || fn == nil {
		return func() {}
	}
	m.nextID++
	id := m.nextID
	m.subs = append(m.subs, subscription{id: id, fn: fn})
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		for i, s := range m.subs {
			if s.id == id {
				m.subs = append(m.subs[:i:i], m.subs[i+1:]...)
				return
			}
		}
	}
}

// Close drops every subscription. Auth calls keep working but no longer
// notify anyone.
func (m *Manager) Close() {
	m.mu.Lock()
	m.closed = true
	m.subs = nil
	m.mu.Unlock()
}

func (m *Manager) emit(ev Event) {
	authEvents.WithLabelValues(string(ev.Kind)).Inc()
	m.mu.Lock()
	subs := make([]subscription, len(m.subs))
	copy(subs, m.subs)
	m.mu.Unlock()
	for _, s := range subs {
		s.fn(ev)
	}
}

func sessionFrom(token string, c Claims) *Session {
	s := &Session{Token: token, UserID: c.Subject, Email: c.Email, jti: c.ID}
	if c.IssuedAt != nil {
		s.IssuedAt = c.IssuedAt.Time
	}
	if c.ExpiresAt != nil {
		s.ExpiresAt = c.ExpiresAt.Time
	}
	return s
}

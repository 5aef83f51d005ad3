package auth

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"quizquest/internal/domain"
)

// UserStore persists user accounts. Implemented by the Postgres record
// store and the in-memory one.
type UserStore interface {
	CreateUser(ctx context.Context, username, passwordHash string) (int64, error)
	UserByUsername(ctx context.Context, username string) (domain.User, error)
}

var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9\-_]+$`)

const bcryptCost = 10

// Manager issues and resolves authenticated sessions. Session ids are
// opaque uuids; the credit store keys its scratch space by them.
type Manager struct {
	users UserStore
	ttl   time.Duration
	now   func() time.Time

	mu       sync.Mutex
	sessions map[string]sessionEntry
}

type sessionEntry struct {
	user      domain.Identity
	expiresAt time.Time
}

func NewManager(users UserStore, ttl time.Duration) *Manager {
	return &Manager{
		users:    users,
		ttl:      ttl,
		now:      time.Now,
		sessions: make(map[string]sessionEntry),
	}
}

// NewManagerWithClock is test-only for deterministic expiry.
func NewManagerWithClock(users UserStore, ttl time.Duration, now func() time.Time) *Manager {
	m := NewManager(users, ttl)
	m.now = now
	return m
}

// Register validates and creates an account. Rule violations come back as
// a full list, one entry per failed rule.
func (m *Manager) Register(ctx context.Context, username, password, confirm string) error {
	var errs domain.ValidationErrors
	if !usernamePattern.MatchString(username) {
		errs = append(errs, domain.FieldError{Field: "username", Message: "Usernames must contain only alphanumeric characters"})
	}
	if len(username) < 3 || len(username) > 20 {
		errs = append(errs, domain.FieldError{Field: "username", Message: "Usernames must be at least 3 characters and not exceed 20 characters in length"})
	}
	if len(password) < 5 || len(password) > 100 {
		errs = append(errs, domain.FieldError{Field: "password", Message: "Passwords must be at least 5 characters and not exceed 100 characters in length"})
	}
	if confirm != password {
		errs = append(errs, domain.FieldError{Field: "password_match", Message: "Passwords do not match"})
	}
	if len(errs) > 0 {
		return errs
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if _, err := m.users.CreateUser(ctx, username, string(hash)); err != nil {
		if errors.Is(err, domain.ErrUsernameTaken) {
			return domain.ValidationErrors{{Field: "username", Message: "Username already registered"}}
		}
		return err
	}
	return nil
}

// Login verifies credentials and opens a session.
func (m *Manager) Login(ctx context.Context, username, password string) (domain.Session, error) {
	user, err := m.users.UserByUsername(ctx, username)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.Session{}, domain.ErrInvalidCredentials
	}
	if err != nil {
		return domain.Session{}, err
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return domain.Session{}, domain.ErrInvalidCredentials
	}

	session := domain.Session{
		ID: uuid.NewString(),
		User: domain.Identity{
			UserID:    user.ID,
			Username:  user.Username,
			Moderator: user.Moderator,
		},
	}
	m.mu.Lock()
	m.sessions[session.ID] = sessionEntry{user: session.User, expiresAt: m.now().Add(m.ttl)}
	m.mu.Unlock()
	return session, nil
}

// Resolve maps a session id back to its identity. Expired entries are
// dropped lazily on lookup.
func (m *Manager) Resolve(sessionID string) (domain.Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.sessions[sessionID]
	if !ok {
		return domain.Session{}, false
	}
	if !entry.expiresAt.After(m.now()) {
		delete(m.sessions, sessionID)
		return domain.Session{}, false
	}
	return domain.Session{ID: sessionID, User: entry.user}, true
}

// Logout drops the session. The credit store's TTL takes care of any
// leftover scratch entries.
func (m *Manager) Logout(sessionID string) {
	m.mu.Lock()
	delete(m.sessions, sessionID)
	m.mu.Unlock()
}

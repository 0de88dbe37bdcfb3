// Package session holds the authenticated user's bearer token between
// program runs. The token is set on login, read on every backend request
// and cleared on logout or when the backend answers 401.
package session

import (
	"errors"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// ErrNoToken means no usable session token is stored; the caller should
// send the user to login rather than issue a request.
var ErrNoToken = errors.New("no session token")

// User is the account the stored token belongs to
type User struct {
	ID    int    `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Store is the process-wide session context
type Store interface {
	// Token returns the stored token, or ErrNoToken when absent or expired
	Token() (string, error)

	// User returns the account the token was issued for
	User() (User, error)

	// Set stores a token and its user, replacing any previous session
	Set(token string, user User) error

	// Clear removes the stored session
	Clear() error
}

// expired peeks at a JWT's exp claim without verifying the signature.
// Verification is the backend's job; the client only wants to avoid
// presenting a token it already knows is dead. Tokens that are not JWTs
// or carry no exp claim are treated as live.
func expired(token string, now time.Time) bool {
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return false
	}
	if claims.ExpiresAt == nil {
		return false
	}
	return claims.ExpiresAt.Before(now)
}

// MemoryStore keeps the session in memory only; used in tests and as a
// stand-in when no persistent path is configured
type MemoryStore struct {
	mu    sync.Mutex
	token string
	user  User
}

// NewMemoryStore creates an empty in-memory session store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Token returns the stored token, or ErrNoToken when absent or expired
func (m *MemoryStore) Token() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.token == "" || expired(m.token, time.Now()) {
		return "", ErrNoToken
	}
	return m.token, nil
}

// User returns the account the token was issued for
func (m *MemoryStore) User() (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.token == "" {
		return User{}, ErrNoToken
	}
	return m.user, nil
}

// Set stores a token and its user
func (m *MemoryStore) Set(token string, user User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = token
	m.user = user
	return nil
}

// Clear removes the stored session
func (m *MemoryStore) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = ""
	m.user = User{}
	return nil
}

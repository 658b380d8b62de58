// Package auth supplies bearer credentials to the HTTP transport. A static
// API key passes through unchanged; username/password credentials are
// exchanged at the login endpoint and re-exchanged when the token lapses.
package auth

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/expel-io/workbench-go/internal/constants"
)

// Static errors.
var (
	ErrStaticTokenCannotRefresh = errors.New("static API keys cannot be refreshed")
	ErrNoToken                  = errors.New("no token available")
)

// TokenManager provides bearer tokens for API requests.
type TokenManager interface {
	// GetToken returns a valid access token, refreshing if necessary.
	GetToken(ctx context.Context) (string, error)

	// RefreshToken forces a token refresh.
	RefreshToken(ctx context.Context) error

	// SetToken manually sets the access token.
	SetToken(token string, expiresAt time.Time)
}

// Token is a bearer credential with optional expiry.
type Token struct {
	AccessToken string
	TokenType   string
	ExpiresAt   time.Time
}

// Valid reports whether the token can still be sent. Tokens inside the
// expiry buffer count as expired so a request never departs with a token
// about to lapse mid-flight.
func (t *Token) Valid() bool {
	if t == nil || t.AccessToken == "" {
		return false
	}

	if t.ExpiresAt.IsZero() {
		return true
	}

	return time.Now().Add(constants.TokenExpiryBuffer).Before(t.ExpiresAt)
}

// TokenStore holds the current token behind a mutex.
type TokenStore struct {
	mu    sync.RWMutex
	token *Token
}

// NewTokenStore creates an empty token store.
func NewTokenStore() *TokenStore {
	return &TokenStore{}
}

// Get returns the stored token, or nil.
func (s *TokenStore) Get() *Token {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.token
}

// Set replaces the stored token.
func (s *TokenStore) Set(token *Token) {
	s.mu.Lock()
	s.token = token
	s.mu.Unlock()
}

// Clear drops the stored token.
func (s *TokenStore) Clear() {
	s.mu.Lock()
	s.token = nil
	s.mu.Unlock()
}

// StaticTokenManager serves a fixed API key. It never expires and cannot be
// refreshed.
type StaticTokenManager struct {
	token string
}

// NewStaticTokenManager creates a token manager around a fixed API key.
func NewStaticTokenManager(token string) *StaticTokenManager {
	return &StaticTokenManager{token: token}
}

// GetToken returns the static key.
func (m *StaticTokenManager) GetToken(_ context.Context) (string, error) {
	if m.token == "" {
		return "", ErrNoToken
	}

	return m.token, nil
}

// RefreshToken always fails: a static key has nothing to refresh.
func (m *StaticTokenManager) RefreshToken(_ context.Context) error {
	return ErrStaticTokenCannotRefresh
}

// SetToken replaces the static key.
func (m *StaticTokenManager) SetToken(token string, _ time.Time) {
	m.token = token
}

// LoginFunc performs one credential exchange and returns a fresh token.
type LoginFunc func(ctx context.Context) (*Token, error)

// LoginTokenManager exchanges credentials for a bearer token on first use
// and re-runs the exchange when the token expires. The exchange itself is
// injected so the manager carries no HTTP dependency.
type LoginTokenManager struct {
	login LoginFunc
	store *TokenStore
	mu    sync.Mutex
}

// NewLoginTokenManager creates a token manager around a login exchange.
func NewLoginTokenManager(login LoginFunc) *LoginTokenManager {
	return &LoginTokenManager{
		login: login,
		store: NewTokenStore(),
	}
}

// GetToken returns the current token, running the login exchange when none
// is held or the held one has expired.
func (m *LoginTokenManager) GetToken(ctx context.Context) (string, error) {
	if token := m.store.Get(); token.Valid() {
		return token.AccessToken, nil
	}

	if err := m.RefreshToken(ctx); err != nil {
		return "", err
	}

	return m.store.Get().AccessToken, nil
}

// RefreshToken re-runs the login exchange. Concurrent callers are serialized
// and the second caller reuses the first one's result.
func (m *LoginTokenManager) RefreshToken(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Another caller may have refreshed while we waited on the lock.
	if token := m.store.Get(); token.Valid() {
		return nil
	}

	token, err := m.login(ctx)
	if err != nil {
		return err
	}

	if token.ExpiresAt.IsZero() {
		token.ExpiresAt = time.Now().Add(constants.DefaultTokenLifetime)
	}

	m.store.Set(token)

	return nil
}

// SetToken manually installs a token, bypassing the login exchange.
func (m *LoginTokenManager) SetToken(token string, expiresAt time.Time) {
	m.store.Set(&Token{AccessToken: token, TokenType: "bearer", ExpiresAt: expiresAt})
}

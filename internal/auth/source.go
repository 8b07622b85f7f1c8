// Package auth supplies bearer tokens to backend calls.
// Acquiring a token is left to the caller; this package only caches,
// refreshes and formats what the caller provides.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"
)

// ErrNoToken is returned when a source has no token to give.
var ErrNoToken = errors.New("no API token configured")

// TokenSource produces the bearer token for one request.
// Implementations must be safe for concurrent use.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken is a token that never expires.
type StaticToken string

func (t StaticToken) Token(context.Context) (string, error) {
	if t == "" {
		return "", ErrNoToken
	}
	return string(t), nil
}

// Fetcher acquires a fresh token and reports when it stops being valid.
type Fetcher func(ctx context.Context) (token string, expiresAt time.Time, err error)

// CachingSource hands out a cached token and calls its Fetcher again once
// the token is within leeway of expiring.
type CachingSource struct {
	fetch  Fetcher
	leeway time.Duration
	now    func() time.Time

	mu        sync.Mutex
	token     string
	expiresAt time.Time
}

// NewCachingSource returns a source backed by fetch.
func NewCachingSource(fetch Fetcher, leeway time.Duration) *CachingSource {
	return &CachingSource{fetch: fetch, leeway: leeway, now: time.Now}
}

func (s *CachingSource) Token(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.token != "" && s.now().Add(s.leeway).Before(s.expiresAt) {
		return s.token, nil
	}

	token, expiresAt, err := s.fetch(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to refresh token: %w", err)
	}
	if token == "" {
		return "", ErrNoToken
	}
	s.token, s.expiresAt = token, expiresAt
	return token, nil
}

// Invalidate drops the cached token so the next call fetches a new one.
func (s *CachingSource) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
}

// Header returns the Authorization header value for src.
func Header(ctx context.Context, src TokenSource) (string, error) {
	token, err := src.Token(ctx)
	if err != nil {
		return "", err
	}
	return "Bearer " + token, nil
}

// tokenFile is the on-disk shape of a cached token.
type tokenFile struct {
	IDToken      string  `json:"id_token"`
	TokenEndTime float64 `json:"token_end_time"`
}

// LoadTokenFile reads a token cached by SaveTokenFile.
func LoadTokenFile(path string) (token string, expiresAt time.Time, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to read token file: %w", err)
	}
	var f tokenFile
	if err := json.Unmarshal(data, &f); err != nil {
		return "", time.Time{}, fmt.Errorf("failed to parse token file: %w", err)
	}
	if f.IDToken == "" {
		return "", time.Time{}, ErrNoToken
	}
	return f.IDToken, time.Unix(0, int64(f.TokenEndTime*float64(time.Second))), nil
}

// SaveTokenFile caches token and its expiry at path, readable only by the
// current user.
func SaveTokenFile(path, token string, expiresAt time.Time) error {
	data, err := json.Marshal(tokenFile{
		IDToken:      token,
		TokenEndTime: float64(expiresAt.UnixNano()) / float64(time.Second),
	})
	if err != nil {
		return fmt.Errorf("failed to encode token file: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write token file: %w", err)
	}
	return nil
}

// Package auth is a mock sign-in session. It accepts any credentials, waits a
// little to look like a network call, and remembers the user in key-value storage.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"trade-journal-go/internal/models"
	"trade-journal-go/internal/storage"
)

const (
	// DefaultUserKey is the storage key of the signed-in user.
	DefaultUserKey = "tradeJournalUser"
	// DefaultDelay imitates the latency of a real sign-in request.
	DefaultDelay = 500 * time.Millisecond

	mockUserID = "123"
)

var (
	ErrInvalidCredentials = errors.New("missing credentials")
	ErrPasswordMismatch   = errors.New("passwords do not match")
)

// Session tracks the signed-in user.
type Session struct {
	mu    sync.RWMutex
	kv    storage.KV
	key   string
	delay time.Duration
	log   *zap.Logger
	user  *models.User
}

// NewSession creates a signed-out session. Call Load to restore a stored user.
func NewSession(kv storage.KV, log *zap.Logger, key string, delay time.Duration) *Session {
	if key == "" {
		key = DefaultUserKey
	}
	return &Session{kv: kv, key: key, delay: delay, log: log.Named("auth")}
}

// Load restores the user saved by a previous sign-in, if any.
func (s *Session) Load() error {
	raw, ok, err := s.kv.Get(s.key)
	if err != nil {
		return fmt.Errorf("read stored user: %w", err)
	}
	if !ok {
		return nil
	}

	var user models.User
	if err := json.Unmarshal([]byte(raw), &user); err != nil {
		return fmt.Errorf("decode stored user: %w", err)
	}

	s.mu.Lock()
	s.user = &user
	s.mu.Unlock()

	s.log.Info("Restored signed-in user", zap.String("email", user.Email))
	return nil
}

// Current returns the signed-in user, or nil.
func (s *Session) Current() *models.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return nil
	}
	u := *s.user
	return &u
}

// Login signs in as the user named after the local part of email.
func (s *Session) Login(ctx context.Context, email, password string) (models.User, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return models.User{}, fmt.Errorf("%w: email and password are required", ErrInvalidCredentials)
	}

	name, _, _ := strings.Cut(email, "@")
	return s.signIn(ctx, models.User{ID: mockUserID, Name: name, Email: email})
}

// Register signs in as a new user with the given name.
func (s *Session) Register(ctx context.Context, name, email, password, confirm string) (models.User, error) {
	name, email = strings.TrimSpace(name), strings.TrimSpace(email)
	if name == "" || email == "" || password == "" || confirm == "" {
		return models.User{}, fmt.Errorf("%w: all fields are required", ErrInvalidCredentials)
	}
	if password != confirm {
		return models.User{}, ErrPasswordMismatch
	}

	return s.signIn(ctx, models.User{ID: mockUserID, Name: name, Email: email})
}

// Logout forgets the user in memory and in storage.
func (s *Session) Logout() error {
	s.mu.Lock()
	s.user = nil
	s.mu.Unlock()

	if err := s.kv.Remove(s.key); err != nil {
		s.log.Error("Failed to remove stored user", zap.Error(err))
		return fmt.Errorf("remove stored user: %w", err)
	}
	s.log.Info("User signed out")
	return nil
}

func (s *Session) signIn(ctx context.Context, user models.User) (models.User, error) {
	select {
	case <-time.After(s.delay):
	case <-ctx.Done():
		return models.User{}, ctx.Err()
	}

	s.mu.Lock()
	s.user = &user
	s.mu.Unlock()

	data, err := json.Marshal(user)
	if err != nil {
		return user, fmt.Errorf("encode user: %w", err)
	}
	if err := s.kv.Set(s.key, string(data)); err != nil {
		// The session stays signed in for this process.
		s.log.Error("Failed to store signed-in user", zap.Error(err))
		return user, fmt.Errorf("store user: %w", err)
	}

	s.log.Info("User signed in", zap.String("email", user.Email))
	return user, nil
}

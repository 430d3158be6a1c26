// Package auth holds the signed-in user's session. The session lives in the
// OS keyring, or in an encrypted file when no keyring service is available.
package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/99designs/keyring"
	"github.com/golang-jwt/jwt/v5"
)

const (
	serviceName = "agenda-live"
	sessionKey  = "session"
)

var (
	ErrNotLoggedIn    = errors.New("auth: not logged in")
	ErrSessionExpired = errors.New("auth: session expired")
)

// Session is what the server told us about the signed-in user.
type Session struct {
	UserID      string      `json:"usuario_id"`
	Login       string      `json:"usuario_login"`
	Name        string      `json:"usuario_nome"`
	AccessLevel AccessLevel `json:"nivel_acesso"`
	Token       string      `json:"token,omitempty"`
	ExpiresAt   time.Time   `json:"expires_at,omitempty"`
}

// DisplayName is the name other users see in change notifications.
func (s *Session) DisplayName() string {
	if s.Name != "" {
		return s.Name
	}
	return s.Login
}

func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// ConnectAuth is the payload sent with the live channel's CONNECT packet.
func (s *Session) ConnectAuth() map[string]string {
	auth := map[string]string{"usuario": s.DisplayName()}
	if s.Token != "" {
		auth["token"] = s.Token
	}
	return auth
}

// OpenKeyring opens the system keyring, falling back to encrypted files in
// fileDir.
func OpenKeyring(fileDir string) (keyring.Keyring, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: serviceName,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  fileDir,
		FilePasswordFunc:         keyring.FixedStringPrompt(serviceName + "-file-key"),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return ring, nil
}

// Store reads and writes the session in a keyring.
type Store struct {
	ring keyring.Keyring
	now  func() time.Time
}

func NewStore(ring keyring.Keyring) *Store {
	return &Store{ring: ring, now: time.Now}
}

// SetNow replaces the clock used for expiry checks. Used in tests only.
func (s *Store) SetNow(fn func() time.Time) {
	s.now = fn
}

func (s *Store) Save(sess *Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("encoding session: %w", err)
	}
	err = s.ring.Set(keyring.Item{
		Key:   sessionKey,
		Data:  data,
		Label: "agenda-live session for " + sess.Login,
	})
	if err != nil {
		return fmt.Errorf("storing session: %w", err)
	}
	return nil
}

// Load returns the stored session, or ErrNotLoggedIn when there is none.
func (s *Store) Load() (*Session, error) {
	item, err := s.ring.Get(sessionKey)
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return nil, ErrNotLoggedIn
	}
	if err != nil {
		return nil, fmt.Errorf("reading session: %w", err)
	}
	var sess Session
	if err := json.Unmarshal(item.Data, &sess); err != nil {
		return nil, fmt.Errorf("decoding session: %w", err)
	}
	return &sess, nil
}

// Require returns the session only if one is stored and still valid.
func (s *Store) Require() (*Session, error) {
	sess, err := s.Load()
	if err != nil {
		return nil, err
	}
	if sess.Login == "" {
		return nil, ErrNotLoggedIn
	}
	if sess.Expired(s.now()) {
		return sess, ErrSessionExpired
	}
	return sess, nil
}

// Clear forgets the session. Clearing when logged out is not an error.
func (s *Store) Clear() error {
	err := s.ring.Remove(sessionKey)
	if err != nil && !errors.Is(err, keyring.ErrKeyNotFound) {
		return fmt.Errorf("removing session: %w", err)
	}
	return nil
}

// tokenExpiry reads the exp claim without verifying the signature; the
// server is the one that verifies. Tokens that are not JWTs never expire
// locally.
func tokenExpiry(token string) time.Time {
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return time.Time{}
	}
	if claims.ExpiresAt == nil {
		return time.Time{}
	}
	return claims.ExpiresAt.Time
}

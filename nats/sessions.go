package nats

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// DefaultSessionTTL applies when no explicit session TTL is supplied.
const DefaultSessionTTL = 24 * time.Hour

// UserSession captures per-device session state.
type UserSession struct {
	SessionID    uuid.UUID         `json:"session_id"`
	AccountID    uuid.UUID         `json:"account_id"`
	DeviceInfo   string            `json:"device_info"`
	IPAddress    string            `json:"ip_address"`
	UserAgent    string            `json:"user_agent"`
	Permissions  []string          `json:"permissions,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
	LastActivity time.Time         `json:"last_activity"`
	ExpiresAt    time.Time         `json:"expires_at"`
}

// IsExpired reports whether the session's expiry has passed.
func (s *UserSession) IsExpired() bool {
	return time.Now().After(s.ExpiresAt)
}

// SessionStore manages user sessions in their own TTL-governed KV bucket.
// Unlike the token store, Get refreshes LastActivity.
type SessionStore struct {
	store      *KvStore[UserSession]
	defaultTTL time.Duration
}

// NewSessionStore binds the sessions bucket.
func NewSessionStore(ctx context.Context, client *Client, ttl time.Duration) (*SessionStore, error) {
	if ttl == 0 {
		ttl = DefaultSessionTTL
	}

	store, err := NewKvStore[UserSession](ctx, client, "sessions", "User sessions", ttl)
	if err != nil {
		return nil, err
	}
	return &SessionStore{store: store, defaultTTL: ttl}, nil
}

// CreateSession stores a new session for an account.
func (s *SessionStore) CreateSession(ctx context.Context, accountID uuid.UUID, deviceInfo, ipAddress, userAgent string, ttl time.Duration) (*UserSession, error) {
	if ttl == 0 {
		ttl = s.defaultTTL
	}

	now := time.Now().UTC()
	session := UserSession{
		SessionID:    uuid.New(),
		AccountID:    accountID,
		DeviceInfo:   deviceInfo,
		IPAddress:    ipAddress,
		UserAgent:    userAgent,
		CreatedAt:    now,
		LastActivity: now,
		ExpiresAt:    now.Add(ttl),
	}

	if err := s.store.Put(ctx, session.SessionID.String(), session); err != nil {
		return nil, err
	}
	return &session, nil
}

// GetSession returns a live session, refreshing its LastActivity. Expired
// sessions are removed and nil is returned.
func (s *SessionStore) GetSession(ctx context.Context, sessionID uuid.UUID) (*UserSession, error) {
	session, err := s.store.Get(ctx, sessionID.String())
	if err != nil {
		if errors.Is(err, ErrKeyNotFound) {
			return nil, nil
		}
		return nil, err
	}

	if session.IsExpired() {
		if err := s.store.Delete(ctx, sessionID.String()); err != nil {
			return nil, err
		}
		return nil, nil
	}

	session.LastActivity = time.Now().UTC()
	if err := s.store.Put(ctx, sessionID.String(), session); err != nil {
		return nil, err
	}
	return &session, nil
}

// DeleteSession removes one session.
func (s *SessionStore) DeleteSession(ctx context.Context, sessionID uuid.UUID) error {
	return s.store.Delete(ctx, sessionID.String())
}

// DeleteUserSessions purges all sessions of an account and returns the
// number removed.
func (s *SessionStore) DeleteUserSessions(ctx context.Context, accountID uuid.UUID) (int, error) {
	keys, err := s.store.Keys(ctx)
	if err != nil {
		return 0, err
	}

	deleted := 0
	for _, key := range keys {
		session, err := s.store.Get(ctx, key)
		if err != nil {
			continue
		}
		if session.AccountID != accountID {
			continue
		}
		if err := s.store.Delete(ctx, key); err != nil {
			return deleted, err
		}
		deleted++
	}
	return deleted, nil
}

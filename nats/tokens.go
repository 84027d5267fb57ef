package nats

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"
)

// TokenType classifies where an API token originated.
type TokenType string

// API token types.
const (
	TokenWeb    TokenType = "web"
	TokenMobile TokenType = "mobile"
	TokenAPI    TokenType = "api"
)

// DefaultTokenTTL applies when no explicit TTL is supplied.
const DefaultTokenTTL = 24 * time.Hour

// cleanupThreshold is how long soft-deleted or stale-expired tokens linger
// before CleanupExpired hard-deletes them.
const cleanupThreshold = 7 * 24 * time.Hour

// ApiToken is one issued bearer credential, keyed by its access sequence.
type ApiToken struct {
	AccessSeq    uuid.UUID  `json:"access_seq"`
	AccountID    uuid.UUID  `json:"account_id"`
	IPAddress    string     `json:"ip_address"`
	UserAgent    string     `json:"user_agent"`
	TokenType    TokenType  `json:"token_type"`
	IsSuspicious bool       `json:"is_suspicious"`
	IssuedAt     time.Time  `json:"issued_at"`
	ExpiredAt    time.Time  `json:"expired_at"`
	LastUsedAt   *time.Time `json:"last_used_at,omitempty"`
	DeletedAt    *time.Time `json:"deleted_at,omitempty"`
}

// IsDeleted reports whether the token is soft-deleted.
func (t *ApiToken) IsDeleted() bool {
	return t.DeletedAt != nil
}

// IsExpired reports whether the token's expiry has passed.
func (t *ApiToken) IsExpired() bool {
	return time.Now().After(t.ExpiredAt)
}

// IsValid reports whether the token is neither deleted nor expired.
func (t *ApiToken) IsValid() bool {
	return !t.IsDeleted() && !t.IsExpired()
}

// ApiTokenStore manages API tokens in a TTL-governed KV bucket with
// soft-delete semantics.
type ApiTokenStore struct {
	store      *KvStore[ApiToken]
	defaultTTL time.Duration
}

// NewApiTokenStore binds the api_tokens bucket. The bucket-level TTL acts as
// a backstop; token expiry is enforced by ExpiredAt.
func NewApiTokenStore(ctx context.Context, client *Client, ttl time.Duration) (*ApiTokenStore, error) {
	if ttl == 0 {
		ttl = DefaultTokenTTL
	}

	store, err := NewKvStore[ApiToken](ctx, client, "api_tokens", "API authentication tokens", ttl)
	if err != nil {
		return nil, err
	}
	return &ApiTokenStore{store: store, defaultTTL: ttl}, nil
}

// DefaultTTL returns the default token lifetime.
func (s *ApiTokenStore) DefaultTTL() time.Duration {
	return s.defaultTTL
}

// CreateToken issues and stores a token with a fresh access sequence.
func (s *ApiTokenStore) CreateToken(ctx context.Context, accountID uuid.UUID, tokenType TokenType, ipAddress, userAgent string, ttl time.Duration) (*ApiToken, error) {
	if ttl == 0 {
		ttl = s.defaultTTL
	}

	now := time.Now().UTC()
	token := ApiToken{
		AccessSeq:    uuid.New(),
		AccountID:    accountID,
		IPAddress:    ipAddress,
		UserAgent:    userAgent,
		TokenType:    tokenType,
		IsSuspicious: false,
		IssuedAt:     now,
		ExpiredAt:    now.Add(ttl),
		LastUsedAt:   &now,
	}

	if err := s.store.Put(ctx, token.AccessSeq.String(), token); err != nil {
		return nil, err
	}

	log.WithFields(map[string]any{
		"access_seq": token.AccessSeq,
		"account_id": accountID,
		"token_type": tokenType,
		"expired_at": token.ExpiredAt,
	}).Info("created api token")

	return &token, nil
}

// GetToken returns the token iff it is neither soft-deleted nor expired. An
// expired token is soft-deleted synchronously and nil is returned. The read
// path deliberately does not update LastUsedAt; call TouchToken from the
// activity window instead.
func (s *ApiTokenStore) GetToken(ctx context.Context, accessSeq uuid.UUID) (*ApiToken, error) {
	token, err := s.store.Get(ctx, accessSeq.String())
	if err != nil {
		if errors.Is(err, ErrKeyNotFound) {
			return nil, nil
		}
		return nil, err
	}

	if token.IsDeleted() {
		return nil, nil
	}

	if token.IsExpired() {
		log.WithFields(map[string]any{
			"access_seq": accessSeq,
			"expired_at": token.ExpiredAt,
		}).Warn("token has expired")
		if err := s.DeleteToken(ctx, accessSeq); err != nil {
			return nil, err
		}
		return nil, nil
	}

	return &token, nil
}

// TouchToken updates LastUsedAt on a valid token. Intended to be called at
// most once per activity window (e.g. every five minutes) to avoid write
// amplification.
func (s *ApiTokenStore) TouchToken(ctx context.Context, accessSeq uuid.UUID) (bool, error) {
	token, err := s.store.Get(ctx, accessSeq.String())
	if err != nil {
		if errors.Is(err, ErrKeyNotFound) {
			return false, nil
		}
		return false, err
	}

	if !token.IsValid() {
		return false, nil
	}

	now := time.Now().UTC()
	token.LastUsedAt = &now
	if err := s.store.Put(ctx, accessSeq.String(), token); err != nil {
		return false, err
	}
	return true, nil
}

// DeleteToken soft-deletes a token.
func (s *ApiTokenStore) DeleteToken(ctx context.Context, accessSeq uuid.UUID) error {
	token, err := s.store.Get(ctx, accessSeq.String())
	if err != nil {
		if errors.Is(err, ErrKeyNotFound) {
			return nil
		}
		return err
	}

	if token.IsDeleted() {
		return nil
	}

	now := time.Now().UTC()
	token.DeletedAt = &now
	return s.store.Put(ctx, accessSeq.String(), token)
}

// MarkSuspicious flags a token. Returns true when the flag was newly set.
func (s *ApiTokenStore) MarkSuspicious(ctx context.Context, accessSeq uuid.UUID) (bool, error) {
	token, err := s.store.Get(ctx, accessSeq.String())
	if err != nil {
		if errors.Is(err, ErrKeyNotFound) {
			return false, nil
		}
		return false, err
	}

	if token.IsSuspicious {
		return false, nil
	}

	token.IsSuspicious = true
	if err := s.store.Put(ctx, accessSeq.String(), token); err != nil {
		return false, err
	}

	log.WithFields(map[string]any{
		"access_seq": accessSeq,
		"account_id": token.AccountID,
	}).Warn("marked token as suspicious")
	return true, nil
}

// DeleteAccountTokens soft-deletes every live token for an account (used on
// password change and logout-everywhere). Returns the number deleted.
func (s *ApiTokenStore) DeleteAccountTokens(ctx context.Context, accountID uuid.UUID) (int, error) {
	keys, err := s.store.Keys(ctx)
	if err != nil {
		return 0, err
	}

	deleted := 0
	for _, key := range keys {
		token, err := s.store.Get(ctx, key)
		if err != nil {
			continue
		}
		if token.AccountID != accountID || token.IsDeleted() {
			continue
		}
		accessSeq, err := uuid.Parse(key)
		if err != nil {
			continue
		}
		if err := s.DeleteToken(ctx, accessSeq); err != nil {
			return deleted, err
		}
		deleted++
	}

	log.WithFields(map[string]any{
		"account_id": accountID,
		"deleted":    deleted,
	}).Info("deleted account tokens")
	return deleted, nil
}

// GetAccountTokens returns an account's valid tokens, most recently used
// first.
func (s *ApiTokenStore) GetAccountTokens(ctx context.Context, accountID uuid.UUID) ([]ApiToken, error) {
	keys, err := s.store.Keys(ctx)
	if err != nil {
		return nil, err
	}

	var tokens []ApiToken
	for _, key := range keys {
		token, err := s.store.Get(ctx, key)
		if err != nil {
			continue
		}
		if token.AccountID == accountID && token.IsValid() {
			tokens = append(tokens, token)
		}
	}

	sort.Slice(tokens, func(i, j int) bool {
		return lastActivity(&tokens[i]).After(lastActivity(&tokens[j]))
	})
	return tokens, nil
}

// CleanupExpired hard-deletes tokens soft-deleted more than seven days ago
// and expired tokens untouched for more than seven days. Returns the number
// removed.
func (s *ApiTokenStore) CleanupExpired(ctx context.Context) (int, error) {
	keys, err := s.store.Keys(ctx)
	if err != nil {
		return 0, err
	}

	threshold := time.Now().Add(-cleanupThreshold)
	cleaned := 0

	for _, key := range keys {
		token, err := s.store.Get(ctx, key)
		if err != nil {
			continue
		}

		if token.DeletedAt != nil && token.DeletedAt.Before(threshold) {
			if err := s.store.Delete(ctx, key); err != nil {
				return cleaned, err
			}
			cleaned++
			continue
		}

		if token.IsExpired() && lastActivity(&token).Before(threshold) {
			if err := s.store.Delete(ctx, key); err != nil {
				return cleaned, err
			}
			cleaned++
		}
	}

	log.WithField("cleaned", cleaned).Info("cleaned up expired tokens")
	return cleaned, nil
}

func lastActivity(token *ApiToken) time.Time {
	if token.LastUsedAt != nil {
		return *token.LastUsedAt
	}
	return token.IssuedAt
}

package nats

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// DefaultChatHistoryTTL bounds how long cached conversation snapshots live.
const DefaultChatHistoryTTL = 7 * 24 * time.Hour

// ChatHistorySnapshot is a cached view of a conversation, keyed by chat id.
// The relational store remains the source of truth; this bucket serves hot
// reads for completion context assembly.
type ChatHistorySnapshot struct {
	ChatID    uuid.UUID       `json:"chat_id"`
	Messages  json.RawMessage `json:"messages"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// ChatHistoryStore caches conversation snapshots in the chat_history KV
// bucket.
type ChatHistoryStore struct {
	store *KvStore[ChatHistorySnapshot]
}

// NewChatHistoryStore binds the chat_history bucket.
func NewChatHistoryStore(ctx context.Context, client *Client, ttl time.Duration) (*ChatHistoryStore, error) {
	if ttl == 0 {
		ttl = DefaultChatHistoryTTL
	}

	store, err := NewKvStore[ChatHistorySnapshot](ctx, client, "chat_history", "Chat history snapshots", ttl)
	if err != nil {
		return nil, err
	}
	return &ChatHistoryStore{store: store}, nil
}

// PutSnapshot stores the latest conversation snapshot.
func (s *ChatHistoryStore) PutSnapshot(ctx context.Context, chatID uuid.UUID, messages json.RawMessage) error {
	return s.store.Put(ctx, chatID.String(), ChatHistorySnapshot{
		ChatID:    chatID,
		Messages:  messages,
		UpdatedAt: time.Now().UTC(),
	})
}

// GetSnapshot returns the cached snapshot, or nil when none is cached.
func (s *ChatHistoryStore) GetSnapshot(ctx context.Context, chatID uuid.UUID) (*ChatHistorySnapshot, error) {
	snapshot, err := s.store.Get(ctx, chatID.String())
	if err != nil {
		if errors.Is(err, ErrKeyNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &snapshot, nil
}

// DeleteSnapshot drops the cached snapshot for a chat.
func (s *ChatHistoryStore) DeleteSnapshot(ctx context.Context, chatID uuid.UUID) error {
	return s.store.Delete(ctx, chatID.String())
}

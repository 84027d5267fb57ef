//go:build integration

package nats

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvisycom/server/config"
)

// setupBroker connects to the broker named by NATS_URL. Tests are skipped
// when none is provisioned.
func setupBroker(t *testing.T) *Client {
	t.Helper()

	url := os.Getenv("NATS_URL")
	if url == "" {
		t.Skip("NATS_URL not set, skipping integration test")
	}

	client, err := Connect(config.NatsConfig{
		URL:            url,
		Token:          os.Getenv("NATS_TOKEN"),
		ConnectTimeout: 10 * time.Second,
	})
	require.NoError(t, err)
	t.Cleanup(client.Close)
	return client
}

func TestApiTokenLifecycle(t *testing.T) {
	broker := setupBroker(t)
	ctx := context.Background()

	store, err := NewApiTokenStore(ctx, broker, time.Hour)
	require.NoError(t, err)

	accountID := uuid.New()
	token, err := store.CreateToken(ctx, accountID, TokenWeb, "127.0.0.1", "go-test", time.Hour)
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, token.AccessSeq)
	assert.False(t, token.IsSuspicious)

	// A live token reads back and the read does not bump last_used_at.
	fetched, err := store.GetToken(ctx, token.AccessSeq)
	require.NoError(t, err)
	require.NotNil(t, fetched)
	assert.Equal(t, accountID, fetched.AccountID)
	require.NotNil(t, fetched.LastUsedAt)
	assert.True(t, fetched.LastUsedAt.Equal(*token.LastUsedAt))

	// Touch updates the activity stamp.
	touched, err := store.TouchToken(ctx, token.AccessSeq)
	require.NoError(t, err)
	assert.True(t, touched)

	// Soft delete hides the token.
	require.NoError(t, store.DeleteToken(ctx, token.AccessSeq))
	gone, err := store.GetToken(ctx, token.AccessSeq)
	require.NoError(t, err)
	assert.Nil(t, gone)
}

func TestExpiredTokenIsSoftDeletedOnRead(t *testing.T) {
	broker := setupBroker(t)
	ctx := context.Background()

	store, err := NewApiTokenStore(ctx, broker, time.Hour)
	require.NoError(t, err)

	// Issue an already-expired token by writing it directly.
	now := time.Now().UTC().Add(-time.Minute)
	token := ApiToken{
		AccessSeq:  uuid.New(),
		AccountID:  uuid.New(),
		TokenType:  TokenWeb,
		IssuedAt:   now.Add(-time.Hour),
		ExpiredAt:  now,
		LastUsedAt: &now,
	}
	require.NoError(t, store.store.Put(ctx, token.AccessSeq.String(), token))

	// First read soft-deletes and returns nothing.
	got, err := store.GetToken(ctx, token.AccessSeq)
	require.NoError(t, err)
	assert.Nil(t, got)

	stored, err := store.store.Get(ctx, token.AccessSeq.String())
	require.NoError(t, err)
	assert.NotNil(t, stored.DeletedAt)

	// Second read stays empty without rewriting.
	deletedAt := *stored.DeletedAt
	got, err = store.GetToken(ctx, token.AccessSeq)
	require.NoError(t, err)
	assert.Nil(t, got)

	stored, err = store.store.Get(ctx, token.AccessSeq.String())
	require.NoError(t, err)
	assert.True(t, deletedAt.Equal(*stored.DeletedAt))
}

func TestDeleteAccountTokens(t *testing.T) {
	broker := setupBroker(t)
	ctx := context.Background()

	store, err := NewApiTokenStore(ctx, broker, time.Hour)
	require.NoError(t, err)

	accountID := uuid.New()
	for i := 0; i < 3; i++ {
		_, err := store.CreateToken(ctx, accountID, TokenAPI, "10.0.0.1", "go-test", time.Hour)
		require.NoError(t, err)
	}

	deleted, err := store.DeleteAccountTokens(ctx, accountID)
	require.NoError(t, err)
	assert.Equal(t, 3, deleted)

	tokens, err := store.GetAccountTokens(ctx, accountID)
	require.NoError(t, err)
	assert.Empty(t, tokens)
}

func TestSessionGetRefreshesActivity(t *testing.T) {
	broker := setupBroker(t)
	ctx := context.Background()

	store, err := NewSessionStore(ctx, broker, time.Hour)
	require.NoError(t, err)

	session, err := store.CreateSession(ctx, uuid.New(), "laptop", "127.0.0.1", "go-test", time.Hour)
	require.NoError(t, err)

	time.Sleep(10 * time.Millisecond)

	fetched, err := store.GetSession(ctx, session.SessionID)
	require.NoError(t, err)
	require.NotNil(t, fetched)
	assert.True(t, fetched.LastActivity.After(session.LastActivity))
}

func TestEventPublishSubscribeRoundTrip(t *testing.T) {
	broker := setupBroker(t)
	ctx := context.Background()

	type testEvent struct {
		Name string `json:"name"`
	}

	stream := StreamConfig{Name: "it_events", Subjects: []string{"it_events.>"}}

	publisher, err := NewEventPublisher[testEvent](ctx, broker, stream)
	require.NoError(t, err)

	subscriber, err := NewEventSubscriber[testEvent](ctx, broker, stream, SubscriberConfig{
		Durable:    "it-consumer",
		MaxDeliver: 3,
	})
	require.NoError(t, err)

	require.NoError(t, publisher.PublishTo(ctx, "unit.test", "msg-1", testEvent{Name: "hello"}))

	msgs, err := subscriber.Fetch(1, 5*time.Second)
	require.NoError(t, err)
	require.Len(t, msgs, 1)

	assert.Equal(t, "hello", msgs[0].Value.Name)
	assert.Equal(t, "msg-1", msgs[0].DeduplicationID)
	assert.NoError(t, msgs[0].Ack())
}

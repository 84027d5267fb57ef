package webhook

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyStatus(t *testing.T) {
	cases := []struct {
		status  int
		outcome deliveryOutcome
	}{
		{200, outcomeDelivered},
		{201, outcomeDelivered},
		{204, outcomeDelivered},
		{301, outcomePermanent},
		{400, outcomePermanent},
		{404, outcomePermanent},
		{408, outcomeRetryable},
		{410, outcomePermanent},
		{429, outcomeRetryable},
		{500, outcomeRetryable},
		{502, outcomeRetryable},
		{503, outcomeRetryable},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.outcome, classifyStatus(tc.status), "status %d", tc.status)
	}
}

func TestRetryDelayDoubles(t *testing.T) {
	assert.Equal(t, 5*time.Second, retryDelay(1))
	assert.Equal(t, 10*time.Second, retryDelay(2))
	assert.Equal(t, 20*time.Second, retryDelay(3))
	assert.Equal(t, 40*time.Second, retryDelay(4))
}

func TestDeliverSignsAndPostsPayload(t *testing.T) {
	secret := "whsec_delivery_test"
	payload := []byte(`{"event":"document.created","display_name":"X"}`)

	var received *http.Request
	var receivedBody []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		received = r
		receivedBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	worker := &Worker{httpClient: server.Client()}
	request := &Request{
		URL:     server.URL,
		Event:   DocumentCreated,
		Payload: payload,
		Context: Context{
			WebhookID:   uuid.New(),
			WorkspaceID: uuid.New(),
			ResourceID:  uuid.New(),
		},
		Headers: map[string]string{"X-Custom": "value"},
		Secret:  secret,
		Timeout: 5 * time.Second,
	}

	outcome, status := worker.deliver(context.Background(), request, "req-123")

	assert.Equal(t, outcomeDelivered, outcome)
	assert.Equal(t, http.StatusOK, status)
	require.NotNil(t, received)

	assert.Equal(t, string(DocumentCreated), received.Header.Get(HeaderEvent))
	assert.Equal(t, "req-123", received.Header.Get(HeaderRequestID))
	assert.Equal(t, "value", received.Header.Get("X-Custom"))
	assert.Equal(t, "application/json", received.Header.Get("Content-Type"))

	timestamp, err := strconv.ParseInt(received.Header.Get(HeaderTimestamp), 10, 64)
	require.NoError(t, err)
	assert.True(t, VerifySignature(secret, timestamp, payload, received.Header.Get(HeaderSignature)))
	assert.JSONEq(t, string(payload), string(receivedBody))
}

func TestDeliverClassifiesServerErrorAsRetryable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	worker := &Worker{httpClient: server.Client()}
	request := &Request{URL: server.URL, Secret: "s", Payload: []byte(`{}`), Timeout: 5 * time.Second}

	outcome, status := worker.deliver(context.Background(), request, "req-1")
	assert.Equal(t, outcomeRetryable, outcome)
	assert.Equal(t, http.StatusServiceUnavailable, status)
}

func TestDeliverClassifiesClientErrorAsPermanent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer server.Close()

	worker := &Worker{httpClient: server.Client()}
	request := &Request{URL: server.URL, Secret: "s", Payload: []byte(`{}`), Timeout: 5 * time.Second}

	outcome, _ := worker.deliver(context.Background(), request, "req-1")
	assert.Equal(t, outcomePermanent, outcome)
}

func TestDeliverTimeoutIsRetryable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	worker := &Worker{httpClient: server.Client()}
	request := &Request{URL: server.URL, Secret: "s", Payload: []byte(`{}`), Timeout: 50 * time.Millisecond}

	outcome, _ := worker.deliver(context.Background(), request, "req-1")
	assert.Equal(t, outcomeRetryable, outcome)
}

func TestDecodeHeaders(t *testing.T) {
	headers := decodeHeaders(json.RawMessage(`{"X-One":"1","X-Two":"2"}`))
	assert.Equal(t, map[string]string{"X-One": "1", "X-Two": "2"}, headers)

	assert.Nil(t, decodeHeaders(nil))
	assert.Nil(t, decodeHeaders(json.RawMessage(`not json`)))
}

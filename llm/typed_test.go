package llm

import (
	"context"
	"encoding/json"
	"reflect"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func typeOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

// fakeProvider returns canned content and records the last request.
type fakeProvider struct {
	content string
	err     error
	last    ChatRequest
}

func (f *fakeProvider) Chat(_ context.Context, request ChatRequest) (*ChatResponse, error) {
	f.last = request
	if f.err != nil {
		return nil, f.err
	}
	return &ChatResponse{Model: "fake-model", Content: f.content}, nil
}

// DocumentSummary is a sample structured output type.
type DocumentSummary struct {
	Title    string   `json:"title"`
	Keywords []string `json:"keywords"`
}

func TestTypedCompletionDecodesStructuredOutput(t *testing.T) {
	provider := &fakeProvider{content: `{"title":"Quarterly Report","keywords":["finance","q3"]}`}
	limiter := NewRateLimiter(1000)

	typed, err := NewTypedCompletion[DocumentSummary](provider, limiter)
	require.NoError(t, err)

	result, response, err := typed.Complete(context.Background(), ChatRequest{
		Messages: []Message{{Role: RoleUser, Content: "summarize"}},
	})
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.Equal(t, "Quarterly Report", result.Title)
	assert.Equal(t, []string{"finance", "q3"}, result.Keywords)
	assert.Equal(t, "fake-model", response.Model)
}

func TestTypedCompletionAttachesSchemaDirective(t *testing.T) {
	provider := &fakeProvider{content: `{"title":"x","keywords":[]}`}
	typed, err := NewTypedCompletion[DocumentSummary](provider, NewRateLimiter(1000))
	require.NoError(t, err)

	_, _, err = typed.Complete(context.Background(), ChatRequest{
		Messages: []Message{{Role: RoleUser, Content: "go"}},
	})
	require.NoError(t, err)

	require.NotNil(t, provider.last.ResponseFormat)
	assert.Equal(t, "json_schema", provider.last.ResponseFormat.Type)
	require.NotNil(t, provider.last.ResponseFormat.JSONSchema)
	assert.Equal(t, "document_summary", provider.last.ResponseFormat.JSONSchema.Name)
	assert.True(t, provider.last.ResponseFormat.JSONSchema.Strict)

	var schema map[string]any
	require.NoError(t, json.Unmarshal(provider.last.ResponseFormat.JSONSchema.Schema, &schema))
	assert.Equal(t, "object", schema["type"])
}

func TestTypedCompletionSurfacesInvalidOutput(t *testing.T) {
	provider := &fakeProvider{content: `this is not json`}
	typed, err := NewTypedCompletion[DocumentSummary](provider, NewRateLimiter(1000))
	require.NoError(t, err)

	_, _, err = typed.Complete(context.Background(), ChatRequest{
		Messages: []Message{{Role: RoleUser, Content: "go"}},
	})

	var llmErr *Error
	require.ErrorAs(t, err, &llmErr)
	assert.Equal(t, ErrKindAPI, llmErr.Kind)
	assert.Contains(t, llmErr.Message, "invalid structured output")
}

func TestTypedCompletionPropagatesProviderError(t *testing.T) {
	provider := &fakeProvider{err: RateLimitError("slow down", 2*time.Second)}
	typed, err := NewTypedCompletion[DocumentSummary](provider, NewRateLimiter(1000))
	require.NoError(t, err)

	_, _, err = typed.Complete(context.Background(), ChatRequest{})

	var llmErr *Error
	require.ErrorAs(t, err, &llmErr)
	assert.Equal(t, ErrKindRateLimit, llmErr.Kind)
	assert.Equal(t, 2*time.Second, llmErr.RetryAfter())
}

func TestRateLimiterThrottlesBurst(t *testing.T) {
	provider := &fakeProvider{content: `{"title":"x","keywords":[]}`}
	// 50 permits/second: three sequential calls need at least ~40ms.
	typed, err := NewTypedCompletion[DocumentSummary](provider, NewRateLimiter(50))
	require.NoError(t, err)

	started := time.Now()
	for i := 0; i < 3; i++ {
		_, _, err := typed.Complete(context.Background(), ChatRequest{})
		require.NoError(t, err)
	}
	elapsed := time.Since(started)

	assert.GreaterOrEqual(t, elapsed, 35*time.Millisecond, "token bucket should pace requests")
}

func TestRateLimiterHonoursCancellation(t *testing.T) {
	limiter := NewRateLimiter(0.001)
	// Burn the single burst permit.
	require.NoError(t, limiter.Acquire(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := limiter.Acquire(ctx)
	assert.Error(t, err, "acquire must fail once the context deadline passes")
}

func TestSchemaNameDerivation(t *testing.T) {
	assert.Equal(t, "document_summary", schemaName(typeOf[DocumentSummary]()))
	assert.Equal(t, "document_summary", schemaName(typeOf[*DocumentSummary]()))
}

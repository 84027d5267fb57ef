package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/invopop/jsonschema"
	"golang.org/x/time/rate"
)

// RateLimiter is the process-wide token bucket shared by all typed
// completion clients. Acquire suspends the calling task until a permit is
// available.
type RateLimiter struct {
	limiter *rate.Limiter
}

// NewRateLimiter builds a limiter admitting ratePerSecond requests with a
// burst of one.
func NewRateLimiter(ratePerSecond float64) *RateLimiter {
	return &RateLimiter{limiter: rate.NewLimiter(rate.Limit(ratePerSecond), 1)}
}

// Acquire blocks until a permit is available or the context is cancelled.
func (r *RateLimiter) Acquire(ctx context.Context) error {
	return r.limiter.Wait(ctx)
}

// TypedCompletion performs completions whose responses must decode into Res.
// A JSON schema generated from Res is attached to every request as the
// provider's structured-output directive.
type TypedCompletion[Res any] struct {
	provider CompletionProvider
	limiter  *RateLimiter
	schema   json.RawMessage
	name     string
}

// NewTypedCompletion derives the response schema once and returns a reusable
// typed client.
func NewTypedCompletion[Res any](provider CompletionProvider, limiter *RateLimiter) (*TypedCompletion[Res], error) {
	var zero Res
	name := schemaName(reflect.TypeOf(zero))

	reflector := jsonschema.Reflector{
		DoNotReference: true,
		ExpandedStruct: true,
	}
	schema := reflector.Reflect(zero)

	encoded, err := json.Marshal(schema)
	if err != nil {
		return nil, fmt.Errorf("llm: marshal schema for %s: %w", name, err)
	}

	return &TypedCompletion[Res]{
		provider: provider,
		limiter:  limiter,
		schema:   encoded,
		name:     name,
	}, nil
}

// Complete acquires a rate-limit permit, dispatches the request with the
// structured-output schema attached, and decodes the provider's payload into
// Res. A payload that does not match the schema surfaces as an API error.
func (t *TypedCompletion[Res]) Complete(ctx context.Context, request ChatRequest) (*Res, *ChatResponse, error) {
	if err := t.limiter.Acquire(ctx); err != nil {
		return nil, nil, fmt.Errorf("llm: rate limiter: %w", err)
	}

	request.ResponseFormat = &ResponseFormat{
		Type: "json_schema",
		JSONSchema: &JSONSchema{
			Name:   t.name,
			Strict: true,
			Schema: t.schema,
		},
	}

	response, err := t.provider.Chat(ctx, request)
	if err != nil {
		return nil, nil, err
	}

	var decoded Res
	if err := json.Unmarshal([]byte(response.Content), &decoded); err != nil {
		log.WithError(err).WithField("schema", t.name).Warn("structured output did not decode")
		return nil, response, APIError("invalid structured output", 0)
	}

	return &decoded, response, nil
}

// SchemaName returns the provider-facing schema name.
func (t *TypedCompletion[Res]) SchemaName() string {
	return t.name
}

// Schema returns the generated JSON schema.
func (t *TypedCompletion[Res]) Schema() json.RawMessage {
	return t.schema
}

// schemaName derives the snake_case schema name from the short type name.
func schemaName(t reflect.Type) string {
	if t == nil {
		return "response"
	}
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	name := t.Name()
	if name == "" {
		return "response"
	}

	var b strings.Builder
	for i, r := range name {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('_')
			}
			b.WriteRune(r + ('a' - 'A'))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

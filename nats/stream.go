package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// StreamConfig names a durable work-queue stream and its subject space.
type StreamConfig struct {
	Name     string
	Subjects []string
}

// Predefined streams. Both are durable with work-queue retention: a message
// is removed once a consumer acknowledges it.
var (
	// WebhookStream carries webhook delivery requests, routed by
	// "webhooks.<workspace_id>.<event_subject>".
	WebhookStream = StreamConfig{Name: "webhooks", Subjects: []string{"webhooks.>"}}

	// FileStream carries file processing jobs.
	FileStream = StreamConfig{Name: "files", Subjects: []string{"files.>"}}
)

// EnsureStream creates or updates a durable work-queue stream.
func EnsureStream(ctx context.Context, client *Client, cfg StreamConfig) error {
	_, err := client.js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      cfg.Name,
		Subjects:  cfg.Subjects,
		Retention: jetstream.WorkQueuePolicy,
		Storage:   jetstream.FileStorage,
	})
	if err != nil {
		return fmt.Errorf("nats: ensure stream %q: %w", cfg.Name, err)
	}
	return nil
}

// EventPublisher publishes typed events onto one stream's subject space.
type EventPublisher[T any] struct {
	client *Client
	stream StreamConfig
}

// NewEventPublisher ensures the stream exists and returns a typed publisher.
func NewEventPublisher[T any](ctx context.Context, client *Client, stream StreamConfig) (*EventPublisher[T], error) {
	if err := EnsureStream(ctx, client, stream); err != nil {
		return nil, err
	}
	return &EventPublisher[T]{client: client, stream: stream}, nil
}

// PublishTo serializes the event and publishes it to
// "<stream>.<subject>". The message id enables broker-side deduplication and
// is carried through to consumers so retried deliveries share an id.
func (p *EventPublisher[T]) PublishTo(ctx context.Context, subject, messageID string, event T) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("nats: encode event: %w", err)
	}

	msg := &nats.Msg{
		Subject: fmt.Sprintf("%s.%s", p.stream.Name, subject),
		Data:    data,
		Header:  nats.Header{},
	}
	if messageID != "" {
		msg.Header.Set(jetstream.MsgIDHeader, messageID)
	}

	if _, err := p.client.js.PublishMsg(ctx, msg); err != nil {
		return fmt.Errorf("nats: publish %s: %w", msg.Subject, err)
	}
	return nil
}

// Msg wraps a consumed event with its acknowledgement controls.
type Msg[T any] struct {
	// Value is the decoded event payload.
	Value T
	// DeduplicationID is the publisher-assigned message id; retried
	// redeliveries carry the same id.
	DeduplicationID string
	// Subject is the full subject the event was published to.
	Subject string

	raw jetstream.Msg
}

// Ack acknowledges the message, removing it from the work queue.
func (m *Msg[T]) Ack() error {
	return m.raw.Ack()
}

// Nak requeues the message for redelivery after the given delay.
func (m *Msg[T]) Nak(delay time.Duration) error {
	return m.raw.NakWithDelay(delay)
}

// Deliveries returns how many times this message has been delivered,
// including the current attempt.
func (m *Msg[T]) Deliveries() int {
	meta, err := m.raw.Metadata()
	if err != nil {
		return 1
	}
	return int(meta.NumDelivered)
}

// EventSubscriber is a durable pull consumer over one stream.
type EventSubscriber[T any] struct {
	consumer jetstream.Consumer
	stream   StreamConfig
}

// SubscriberConfig tunes a durable consumer.
type SubscriberConfig struct {
	// Durable is the consumer name; reconnecting with the same name resumes.
	Durable string
	// MaxDeliver bounds redelivery attempts per message.
	MaxDeliver int
	// AckWait is how long the broker waits for an ack before redelivering.
	AckWait time.Duration
}

// NewEventSubscriber ensures the stream exists and binds a durable consumer
// with explicit acknowledgement.
func NewEventSubscriber[T any](ctx context.Context, client *Client, stream StreamConfig, cfg SubscriberConfig) (*EventSubscriber[T], error) {
	if err := EnsureStream(ctx, client, stream); err != nil {
		return nil, err
	}

	ackWait := cfg.AckWait
	if ackWait == 0 {
		ackWait = 30 * time.Second
	}

	consumer, err := client.js.CreateOrUpdateConsumer(ctx, stream.Name, jetstream.ConsumerConfig{
		Durable:    cfg.Durable,
		AckPolicy:  jetstream.AckExplicitPolicy,
		MaxDeliver: cfg.MaxDeliver,
		AckWait:    ackWait,
	})
	if err != nil {
		return nil, fmt.Errorf("nats: create consumer %q on %q: %w", cfg.Durable, stream.Name, err)
	}

	return &EventSubscriber[T]{consumer: consumer, stream: stream}, nil
}

// Fetch pulls up to batch messages, waiting at most maxWait for the first.
// Messages that fail to decode are acknowledged and skipped so a poison
// payload cannot wedge the queue.
func (s *EventSubscriber[T]) Fetch(batch int, maxWait time.Duration) ([]*Msg[T], error) {
	msgs, err := s.consumer.Fetch(batch, jetstream.FetchMaxWait(maxWait))
	if err != nil {
		return nil, fmt.Errorf("nats: fetch from %q: %w", s.stream.Name, err)
	}

	var out []*Msg[T]
	for raw := range msgs.Messages() {
		var value T
		if err := json.Unmarshal(raw.Data(), &value); err != nil {
			log.WithError(err).WithField("subject", raw.Subject()).Warn("dropping undecodable message")
			_ = raw.Ack()
			continue
		}
		out = append(out, &Msg[T]{
			Value:           value,
			DeduplicationID: raw.Headers().Get(jetstream.MsgIDHeader),
			Subject:         raw.Subject(),
			raw:             raw,
		})
	}
	if err := msgs.Error(); err != nil {
		return out, fmt.Errorf("nats: fetch from %q: %w", s.stream.Name, err)
	}
	return out, nil
}

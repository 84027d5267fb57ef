package webhook

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/nvisycom/server/db"
	"github.com/nvisycom/server/nats"
)

// Delivery headers added to every webhook POST. User-configured headers are
// applied last, so a user header with the same name replaces one of these.
const (
	HeaderEvent     = "X-Nvisy-Event"
	HeaderRequestID = "X-Nvisy-Request-Id"
	HeaderTimestamp = "X-Nvisy-Timestamp"
	HeaderSignature = "X-Nvisy-Signature"
)

// retryBaseDelay seeds the exponential redelivery backoff.
const retryBaseDelay = 5 * time.Second

// deliveryOutcome classifies one delivery attempt.
type deliveryOutcome int

const (
	outcomeDelivered deliveryOutcome = iota
	outcomeRetryable
	outcomePermanent
)

// Worker consumes delivery requests from the webhook stream and POSTs
// signed payloads to subscribers. Ordering is per subject (workspace +
// event) only; the broker enforces the redelivery cap.
type Worker struct {
	store      *db.Client
	subscriber *nats.EventSubscriber[Request]
	httpClient *http.Client
	batchSize  int
}

// WorkerConfig tunes the delivery worker.
type WorkerConfig struct {
	// Durable names the stream consumer.
	Durable string
	// MaxDeliver bounds redelivery attempts per request.
	MaxDeliver int
	// BatchSize is how many requests one fetch pulls.
	BatchSize int
}

// NewWorker binds a durable consumer on the webhook stream.
func NewWorker(ctx context.Context, store *db.Client, broker *nats.Client, cfg WorkerConfig) (*Worker, error) {
	if cfg.Durable == "" {
		cfg.Durable = "webhook-delivery"
	}
	if cfg.MaxDeliver == 0 {
		cfg.MaxDeliver = 5
	}
	if cfg.BatchSize == 0 {
		cfg.BatchSize = 16
	}

	subscriber, err := nats.NewEventSubscriber[Request](ctx, broker, nats.WebhookStream, nats.SubscriberConfig{
		Durable:    cfg.Durable,
		MaxDeliver: cfg.MaxDeliver,
	})
	if err != nil {
		return nil, err
	}

	return &Worker{
		store:      store,
		subscriber: subscriber,
		httpClient: &http.Client{},
		batchSize:  cfg.BatchSize,
	}, nil
}

// Run pulls and delivers batches until the context is cancelled.
func (w *Worker) Run(ctx context.Context) {
	log.Info("webhook delivery worker started")
	for {
		select {
		case <-ctx.Done():
			log.Info("webhook delivery worker stopped")
			return
		default:
		}

		msgs, err := w.subscriber.Fetch(w.batchSize, 5*time.Second)
		if err != nil {
			log.WithError(err).Warn("fetch from webhook stream failed")
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}

		for _, msg := range msgs {
			w.handle(ctx, msg)
		}
	}
}

// handle delivers one request and acknowledges according to the outcome:
// 2xx acks and stamps last_triggered_at; retryable failures nack with
// exponential backoff; permanent failures ack and record the failure.
func (w *Worker) handle(ctx context.Context, msg *nats.Msg[Request]) {
	request := msg.Value
	outcome, status := w.deliver(ctx, &request, msg.DeduplicationID)

	entry := log.WithFields(map[string]any{
		"webhook_id": request.Context.WebhookID,
		"event":      request.Event,
		"status":     status,
		"deliveries": msg.Deliveries(),
	})

	switch outcome {
	case outcomeDelivered:
		if err := w.store.RecordWebhookSuccess(ctx, request.Context.WebhookID); err != nil {
			entry.WithError(err).Warn("failed to record webhook success")
		}
		if err := msg.Ack(); err != nil {
			entry.WithError(err).Warn("ack failed")
		}
		entry.Debug("webhook delivered")

	case outcomeRetryable:
		delay := retryDelay(msg.Deliveries())
		if err := msg.Nak(delay); err != nil {
			entry.WithError(err).Warn("nack failed")
		}
		entry.WithField("retry_in", delay.String()).Warn("webhook delivery failed, will retry")

	case outcomePermanent:
		if err := w.store.RecordWebhookFailure(ctx, request.Context.WebhookID); err != nil {
			entry.WithError(err).Warn("failed to record webhook failure")
		}
		if err := msg.Ack(); err != nil {
			entry.WithError(err).Warn("ack failed")
		}
		entry.Warn("webhook delivery failed permanently")
	}
}

// deliver POSTs one signed payload. The request id comes from the stream
// message deduplication key so retries carry the same id.
func (w *Worker) deliver(ctx context.Context, request *Request, requestID string) (deliveryOutcome, int) {
	timeout := request.Timeout
	if timeout == 0 {
		timeout = DefaultDeliveryTimeout
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	timestamp := time.Now().Unix()
	signature := Sign(request.Secret, timestamp, request.Payload)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, request.URL, bytes.NewReader(request.Payload))
	if err != nil {
		return outcomePermanent, 0
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderEvent, string(request.Event))
	req.Header.Set(HeaderRequestID, requestID)
	req.Header.Set(HeaderTimestamp, strconv.FormatInt(timestamp, 10))
	req.Header.Set(HeaderSignature, signature)
	for name, value := range request.Headers {
		req.Header.Set(name, value)
	}

	resp, err := w.httpClient.Do(req)
	if err != nil {
		// Timeouts and connection errors are retryable.
		var netErr net.Error
		if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
			return outcomeRetryable, 0
		}
		return outcomeRetryable, 0
	}
	defer resp.Body.Close()

	return classifyStatus(resp.StatusCode), resp.StatusCode
}

// classifyStatus maps an HTTP response status to a delivery outcome: 2xx
// delivered; 408, 429 and 5xx retryable; any other 4xx permanent.
func classifyStatus(status int) deliveryOutcome {
	switch {
	case status >= 200 && status < 300:
		return outcomeDelivered
	case status == http.StatusRequestTimeout || status == http.StatusTooManyRequests:
		return outcomeRetryable
	case status >= 500:
		return outcomeRetryable
	default:
		return outcomePermanent
	}
}

// retryDelay doubles per delivery attempt: 5s, 10s, 20s, ...
func retryDelay(deliveries int) time.Duration {
	delay := retryBaseDelay
	for i := 1; i < deliveries; i++ {
		delay *= 2
	}
	return delay
}

// TestDelivery performs a synchronous signed POST to a webhook without going
// through the stream, returning the response status. Used by the
// /webhooks/{id}/test/ endpoint.
func TestDelivery(ctx context.Context, hook *db.WorkspaceWebhook, payload []byte, timeout time.Duration) (int, error) {
	if timeout == 0 {
		timeout = DefaultDeliveryTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	timestamp := time.Now().Unix()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, hook.URL, bytes.NewReader(payload))
	if err != nil {
		return 0, fmt.Errorf("webhook: build test request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderEvent, "webhook.test")
	req.Header.Set(HeaderTimestamp, strconv.FormatInt(timestamp, 10))
	req.Header.Set(HeaderSignature, Sign(hook.Secret, timestamp, payload))

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("webhook: test delivery: %w", err)
	}
	defer resp.Body.Close()
	return resp.StatusCode, nil
}

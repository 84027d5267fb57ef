package webhook

import (
	"context"
	"encoding/json"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/nvisycom/server/db"
	"github.com/nvisycom/server/nats"
)

// DefaultDeliveryTimeout bounds one delivery POST when the webhook carries
// no explicit timeout.
const DefaultDeliveryTimeout = 30 * time.Second

// Emitter publishes domain events to every subscribed webhook. Emission is
// synchronous with respect to the calling handler; delivery is not.
type Emitter struct {
	store     *db.Client
	publisher *nats.EventPublisher[Request]
}

// NewEmitter binds the webhook stream and returns an emitter.
func NewEmitter(ctx context.Context, store *db.Client, broker *nats.Client) (*Emitter, error) {
	publisher, err := nats.NewEventPublisher[Request](ctx, broker, nats.WebhookStream)
	if err != nil {
		return nil, err
	}
	return &Emitter{store: store, publisher: publisher}, nil
}

// Emit looks up the active webhooks of the workspace subscribed to the
// event, builds one delivery request per match, and publishes each to the
// stream under "<workspace_id>.<event_subject>". Webhooks with unparseable
// URLs are logged and skipped. Returns the number of requests published; an
// empty match set returns 0 and is not an error.
func (e *Emitter) Emit(ctx context.Context, workspaceID uuid.UUID, event Event, resourceID uuid.UUID, triggeredBy *uuid.UUID, data json.RawMessage) (int, error) {
	webhooks, err := e.store.FindWebhooksForEvent(ctx, workspaceID, string(event))
	if err != nil {
		return 0, err
	}
	if len(webhooks) == 0 {
		log.WithFields(map[string]any{
			"workspace_id": workspaceID,
			"event":        event,
		}).Debug("no webhooks subscribed to event")
		return 0, nil
	}

	body, err := json.Marshal(payloadBody{
		Event:        event,
		WorkspaceID:  workspaceID,
		ResourceID:   resourceID,
		ResourceType: event.Category(),
		TriggeredBy:  triggeredBy,
		Data:         data,
		Timestamp:    time.Now().UTC(),
	})
	if err != nil {
		return 0, err
	}

	published := 0
	for _, hook := range webhooks {
		if _, err := url.ParseRequestURI(hook.URL); err != nil {
			log.WithFields(map[string]any{
				"webhook_id": hook.ID,
				"url":        hook.URL,
			}).WithError(err).Warn("skipping webhook with invalid url")
			continue
		}

		request := Request{
			URL:     hook.URL,
			Event:   event,
			Payload: body,
			Context: Context{
				WebhookID:    hook.ID,
				WorkspaceID:  workspaceID,
				ResourceID:   resourceID,
				ResourceType: event.Category(),
				TriggeredBy:  triggeredBy,
				Metadata:     data,
			},
			Headers: decodeHeaders(hook.Headers),
			Secret:  hook.Secret,
			Timeout: DefaultDeliveryTimeout,
		}

		subject := workspaceID.String() + "." + event.Subject()
		// A fresh id per request; redeliveries of the same stream message
		// keep it, so retries carry a stable request id.
		messageID := uuid.New().String()

		if err := e.publisher.PublishTo(ctx, subject, messageID, request); err != nil {
			return published, err
		}
		published++
	}

	log.WithFields(map[string]any{
		"workspace_id": workspaceID,
		"event":        event,
		"published":    published,
	}).Info("published webhook requests")
	return published, nil
}

// EmitDocumentCreated emits a document.created event.
func (e *Emitter) EmitDocumentCreated(ctx context.Context, workspaceID, documentID uuid.UUID, triggeredBy *uuid.UUID, data json.RawMessage) (int, error) {
	return e.Emit(ctx, workspaceID, DocumentCreated, documentID, triggeredBy, data)
}

// EmitDocumentUpdated emits a document.updated event.
func (e *Emitter) EmitDocumentUpdated(ctx context.Context, workspaceID, documentID uuid.UUID, triggeredBy *uuid.UUID, data json.RawMessage) (int, error) {
	return e.Emit(ctx, workspaceID, DocumentUpdated, documentID, triggeredBy, data)
}

// EmitDocumentDeleted emits a document.deleted event.
func (e *Emitter) EmitDocumentDeleted(ctx context.Context, workspaceID, documentID uuid.UUID, triggeredBy *uuid.UUID, data json.RawMessage) (int, error) {
	return e.Emit(ctx, workspaceID, DocumentDeleted, documentID, triggeredBy, data)
}

// EmitFileCreated emits a file.created event.
func (e *Emitter) EmitFileCreated(ctx context.Context, workspaceID, fileID uuid.UUID, triggeredBy *uuid.UUID, data json.RawMessage) (int, error) {
	return e.Emit(ctx, workspaceID, FileCreated, fileID, triggeredBy, data)
}

// EmitFileDeleted emits a file.deleted event.
func (e *Emitter) EmitFileDeleted(ctx context.Context, workspaceID, fileID uuid.UUID, triggeredBy *uuid.UUID, data json.RawMessage) (int, error) {
	return e.Emit(ctx, workspaceID, FileDeleted, fileID, triggeredBy, data)
}

// EmitMemberAdded emits a member.added event.
func (e *Emitter) EmitMemberAdded(ctx context.Context, workspaceID, accountID uuid.UUID, triggeredBy *uuid.UUID, data json.RawMessage) (int, error) {
	return e.Emit(ctx, workspaceID, MemberAdded, accountID, triggeredBy, data)
}

// EmitMemberUpdated emits a member.updated event.
func (e *Emitter) EmitMemberUpdated(ctx context.Context, workspaceID, accountID uuid.UUID, triggeredBy *uuid.UUID, data json.RawMessage) (int, error) {
	return e.Emit(ctx, workspaceID, MemberUpdated, accountID, triggeredBy, data)
}

// EmitMemberDeleted emits a member.deleted event.
func (e *Emitter) EmitMemberDeleted(ctx context.Context, workspaceID, accountID uuid.UUID, triggeredBy *uuid.UUID, data json.RawMessage) (int, error) {
	return e.Emit(ctx, workspaceID, MemberDeleted, accountID, triggeredBy, data)
}

// EmitConnectionCreated emits a connection.created event.
func (e *Emitter) EmitConnectionCreated(ctx context.Context, workspaceID, connectionID uuid.UUID, triggeredBy *uuid.UUID, data json.RawMessage) (int, error) {
	return e.Emit(ctx, workspaceID, ConnectionCreated, connectionID, triggeredBy, data)
}

// EmitConnectionUpdated emits a connection.updated event.
func (e *Emitter) EmitConnectionUpdated(ctx context.Context, workspaceID, connectionID uuid.UUID, triggeredBy *uuid.UUID, data json.RawMessage) (int, error) {
	return e.Emit(ctx, workspaceID, ConnectionUpdated, connectionID, triggeredBy, data)
}

// EmitConnectionDeleted emits a connection.deleted event.
func (e *Emitter) EmitConnectionDeleted(ctx context.Context, workspaceID, connectionID uuid.UUID, triggeredBy *uuid.UUID, data json.RawMessage) (int, error) {
	return e.Emit(ctx, workspaceID, ConnectionDeleted, connectionID, triggeredBy, data)
}

// EmitConnectionSynced emits a connection.synced event.
func (e *Emitter) EmitConnectionSynced(ctx context.Context, workspaceID, connectionID uuid.UUID, triggeredBy *uuid.UUID, data json.RawMessage) (int, error) {
	return e.Emit(ctx, workspaceID, ConnectionSynced, connectionID, triggeredBy, data)
}

// EmitConnectionDesynced emits a connection.desynced event.
func (e *Emitter) EmitConnectionDesynced(ctx context.Context, workspaceID, connectionID uuid.UUID, triggeredBy *uuid.UUID, data json.RawMessage) (int, error) {
	return e.Emit(ctx, workspaceID, ConnectionDesynced, connectionID, triggeredBy, data)
}

func decodeHeaders(raw json.RawMessage) map[string]string {
	if len(raw) == 0 {
		return nil
	}
	headers := map[string]string{}
	if err := json.Unmarshal(raw, &headers); err != nil {
		return nil
	}
	return headers
}

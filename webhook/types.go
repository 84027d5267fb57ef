// Package webhook implements the outbound webhook pipeline: handlers emit
// domain events synchronously into a durable stream, and a delivery worker
// consumes the stream and POSTs signed payloads to subscribers.
package webhook

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nvisycom/server/common"
)

var log = common.Component("webhook")

// Event is a webhook event kind in "<category>.<action>" form.
type Event string

// Webhook event kinds.
const (
	DocumentCreated Event = "document.created"
	DocumentUpdated Event = "document.updated"
	DocumentDeleted Event = "document.deleted"

	FileCreated Event = "file.created"
	FileUpdated Event = "file.updated"
	FileDeleted Event = "file.deleted"

	MemberAdded   Event = "member.added"
	MemberUpdated Event = "member.updated"
	MemberDeleted Event = "member.deleted"

	ConnectionCreated  Event = "connection.created"
	ConnectionUpdated  Event = "connection.updated"
	ConnectionDeleted  Event = "connection.deleted"
	ConnectionSynced   Event = "connection.synced"
	ConnectionDesynced Event = "connection.desynced"

	PipelineRunCompleted Event = "pipeline_run.completed"
	PipelineRunFailed    Event = "pipeline_run.failed"
)

// Subject returns the event's routing subject token.
func (e Event) Subject() string {
	return string(e)
}

// Category returns the resource type the event concerns ("document",
// "file", "member", ...).
func (e Event) Category() string {
	if i := strings.IndexByte(string(e), '.'); i > 0 {
		return string(e)[:i]
	}
	return string(e)
}

// Context carries the domain context of one delivery request.
type Context struct {
	WebhookID    uuid.UUID       `json:"webhook_id"`
	WorkspaceID  uuid.UUID       `json:"workspace_id"`
	ResourceID   uuid.UUID       `json:"resource_id"`
	ResourceType string          `json:"resource_type"`
	TriggeredBy  *uuid.UUID      `json:"triggered_by,omitempty"`
	Metadata     json.RawMessage `json:"metadata,omitempty"`
}

// Request is one delivery request published onto the webhook stream.
type Request struct {
	URL     string            `json:"url"`
	Event   Event             `json:"event"`
	Payload json.RawMessage   `json:"payload"`
	Context Context           `json:"context"`
	Headers map[string]string `json:"headers,omitempty"`
	Secret  string            `json:"secret"`
	Timeout time.Duration     `json:"timeout"`
}

// payloadBody is the JSON body POSTed to subscribers.
type payloadBody struct {
	Event        Event           `json:"event"`
	WorkspaceID  uuid.UUID       `json:"workspace_id"`
	ResourceID   uuid.UUID       `json:"resource_id"`
	ResourceType string          `json:"resource_type"`
	TriggeredBy  *uuid.UUID      `json:"triggered_by,omitempty"`
	Data         json.RawMessage `json:"data,omitempty"`
	Timestamp    time.Time       `json:"timestamp"`
}

package db

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// NewWorkspaceWebhook is the insert shape for webhooks. The secret is
// generated by the service layer and shown to the caller exactly once.
type NewWorkspaceWebhook struct {
	WorkspaceID uuid.UUID
	URL         string
	Secret      string
	Events      []string
	Headers     json.RawMessage
}

// CreateWorkspaceWebhook inserts an active webhook subscription.
func (c *Client) CreateWorkspaceWebhook(ctx context.Context, input NewWorkspaceWebhook) (*WorkspaceWebhook, error) {
	webhook := &WorkspaceWebhook{
		ID:          newID(),
		WorkspaceID: input.WorkspaceID,
		URL:         input.URL,
		Secret:      input.Secret,
		Events:      input.Events,
		Headers:     input.Headers,
		Status:      WebhookActive,
		CreatedAt:   time.Now().UTC(),
	}
	if err := c.conn(ctx).Create(webhook).Error; err != nil {
		return nil, wrapErr(err)
	}
	return webhook, nil
}

// FindWorkspaceWebhookByID returns a non-deleted webhook.
func (c *Client) FindWorkspaceWebhookByID(ctx context.Context, webhookID uuid.UUID) (*WorkspaceWebhook, error) {
	var webhook WorkspaceWebhook
	err := c.conn(ctx).
		Where("id = ? AND deleted_at IS NULL", webhookID).
		First(&webhook).Error
	if err != nil {
		return nil, wrapErr(err)
	}
	return &webhook, nil
}

// ListWorkspaceWebhooks returns a cursor page of webhooks in a workspace
// ordered by (created_at DESC, id DESC).
func (c *Client) ListWorkspaceWebhooks(ctx context.Context, workspaceID uuid.UUID, pagination CursorPagination) (CursorPage[WorkspaceWebhook], error) {
	var total *int64
	if pagination.IncludeCount {
		var count int64
		if err := c.conn(ctx).Model(&WorkspaceWebhook{}).
			Where("workspace_id = ? AND deleted_at IS NULL", workspaceID).
			Count(&count).Error; err != nil {
			return CursorPage[WorkspaceWebhook]{}, wrapErr(err)
		}
		total = &count
	}

	query := c.conn(ctx).
		Where("workspace_id = ? AND deleted_at IS NULL", workspaceID).
		Order("created_at DESC, id DESC").
		Limit(pagination.Limit + 1)

	if pagination.After != nil {
		query = query.Where(
			"(created_at < ?) OR (created_at = ? AND id < ?)",
			pagination.After.Timestamp, pagination.After.Timestamp, pagination.After.ID,
		)
	}

	var webhooks []WorkspaceWebhook
	if err := query.Find(&webhooks).Error; err != nil {
		return CursorPage[WorkspaceWebhook]{}, wrapErr(err)
	}

	return newCursorPage(webhooks, total, pagination.Limit, func(w *WorkspaceWebhook) (time.Time, uuid.UUID) {
		return w.CreatedAt, w.ID
	}), nil
}

// FindWebhooksForEvent returns the active, non-deleted webhooks of a
// workspace whose event set contains the given event kind.
func (c *Client) FindWebhooksForEvent(ctx context.Context, workspaceID uuid.UUID, event string) ([]WorkspaceWebhook, error) {
	var webhooks []WorkspaceWebhook
	err := c.conn(ctx).
		Where("workspace_id = ? AND status = ? AND deleted_at IS NULL", workspaceID, WebhookActive).
		Where("jsonb_exists(events, ?)", event).
		Find(&webhooks).Error
	if err != nil {
		return nil, wrapErr(err)
	}
	return webhooks, nil
}

// UpdateWorkspaceWebhook applies partial updates to a webhook subscription.
type UpdateWorkspaceWebhook struct {
	URL     *string
	Events  []string
	Headers json.RawMessage
}

// UpdateWorkspaceWebhook applies the provided fields.
func (c *Client) UpdateWorkspaceWebhook(ctx context.Context, webhookID uuid.UUID, updates UpdateWorkspaceWebhook) (*WorkspaceWebhook, error) {
	fields := map[string]any{}
	if updates.URL != nil {
		fields["url"] = *updates.URL
	}
	if updates.Events != nil {
		encoded, err := json.Marshal(updates.Events)
		if err != nil {
			return nil, err
		}
		fields["events"] = encoded
	}
	if updates.Headers != nil {
		fields["headers"] = updates.Headers
	}

	if len(fields) > 0 {
		res := c.conn(ctx).Model(&WorkspaceWebhook{}).
			Where("id = ? AND deleted_at IS NULL", webhookID).
			Updates(fields)
		if res.Error != nil {
			return nil, wrapErr(res.Error)
		}
		if res.RowsAffected == 0 {
			return nil, ErrNotFound
		}
	}
	return c.FindWorkspaceWebhookByID(ctx, webhookID)
}

// DeleteWorkspaceWebhook soft-deletes a webhook.
func (c *Client) DeleteWorkspaceWebhook(ctx context.Context, webhookID uuid.UUID) error {
	now := time.Now().UTC()
	res := c.conn(ctx).Model(&WorkspaceWebhook{}).
		Where("id = ? AND deleted_at IS NULL", webhookID).
		Update("deleted_at", &now)
	if res.Error != nil {
		return wrapErr(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// RecordWebhookSuccess stamps last_triggered_at and clears the failure
// counter after a 2xx delivery.
func (c *Client) RecordWebhookSuccess(ctx context.Context, webhookID uuid.UUID) error {
	now := time.Now().UTC()
	return wrapErr(c.conn(ctx).Model(&WorkspaceWebhook{}).
		Where("id = ? AND deleted_at IS NULL", webhookID).
		Updates(map[string]any{
			"last_triggered_at": &now,
			"failure_count":     0,
		}).Error)
}

// RecordWebhookFailure increments the failure counter after a permanent
// delivery failure.
func (c *Client) RecordWebhookFailure(ctx context.Context, webhookID uuid.UUID) error {
	return wrapErr(c.conn(ctx).Model(&WorkspaceWebhook{}).
		Where("id = ? AND deleted_at IS NULL", webhookID).
		Update("failure_count", gorm.Expr("failure_count + 1")).Error)
}

// SetWebhookStatus moves a webhook between active, paused, and disabled.
func (c *Client) SetWebhookStatus(ctx context.Context, webhookID uuid.UUID, status WebhookStatus) (*WorkspaceWebhook, error) {
	res := c.conn(ctx).Model(&WorkspaceWebhook{}).
		Where("id = ? AND deleted_at IS NULL", webhookID).
		Update("status", status)
	if res.Error != nil {
		return nil, wrapErr(res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, ErrNotFound
	}
	return c.FindWorkspaceWebhookByID(ctx, webhookID)
}

package db

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// NewWorkspaceConnection is the insert shape for connections. EncryptedData
// must already be sealed by the workspace cipher.
type NewWorkspaceConnection struct {
	ID            uuid.UUID
	WorkspaceID   uuid.UUID
	AccountID     uuid.UUID
	Name          string
	Provider      string
	EncryptedData []byte
	Metadata      json.RawMessage
}

// CreateWorkspaceConnection inserts a connection. The caller supplies the id
// because it participates in the encryption associated data.
func (c *Client) CreateWorkspaceConnection(ctx context.Context, input NewWorkspaceConnection) (*WorkspaceConnection, error) {
	now := time.Now().UTC()
	connection := &WorkspaceConnection{
		ID:            input.ID,
		WorkspaceID:   input.WorkspaceID,
		AccountID:     input.AccountID,
		Name:          input.Name,
		Provider:      input.Provider,
		EncryptedData: input.EncryptedData,
		IsActive:      true,
		Metadata:      input.Metadata,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := c.conn(ctx).Create(connection).Error; err != nil {
		return nil, wrapErr(err)
	}
	return connection, nil
}

// FindWorkspaceConnectionByID returns a non-deleted connection.
func (c *Client) FindWorkspaceConnectionByID(ctx context.Context, connectionID uuid.UUID) (*WorkspaceConnection, error) {
	var connection WorkspaceConnection
	err := c.conn(ctx).
		Where("id = ? AND deleted_at IS NULL", connectionID).
		First(&connection).Error
	if err != nil {
		return nil, wrapErr(err)
	}
	return &connection, nil
}

// ListWorkspaceConnections returns a cursor page of connections in a
// workspace ordered by (created_at DESC, id DESC).
func (c *Client) ListWorkspaceConnections(ctx context.Context, workspaceID uuid.UUID, pagination CursorPagination) (CursorPage[WorkspaceConnection], error) {
	var total *int64
	if pagination.IncludeCount {
		var count int64
		if err := c.conn(ctx).Model(&WorkspaceConnection{}).
			Where("workspace_id = ? AND deleted_at IS NULL", workspaceID).
			Count(&count).Error; err != nil {
			return CursorPage[WorkspaceConnection]{}, wrapErr(err)
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

	var connections []WorkspaceConnection
	if err := query.Find(&connections).Error; err != nil {
		return CursorPage[WorkspaceConnection]{}, wrapErr(err)
	}

	return newCursorPage(connections, total, pagination.Limit, func(wc *WorkspaceConnection) (time.Time, uuid.UUID) {
		return wc.CreatedAt, wc.ID
	}), nil
}

// UpdateWorkspaceConnection applies partial updates. A non-nil EncryptedData
// replaces the sealed blob.
type UpdateWorkspaceConnection struct {
	Name          *string
	EncryptedData []byte
	IsActive      *bool
	Metadata      json.RawMessage
}

// UpdateWorkspaceConnection applies the provided fields.
func (c *Client) UpdateWorkspaceConnection(ctx context.Context, connectionID uuid.UUID, updates UpdateWorkspaceConnection) (*WorkspaceConnection, error) {
	fields := map[string]any{"updated_at": time.Now().UTC()}
	if updates.Name != nil {
		fields["name"] = *updates.Name
	}
	if updates.EncryptedData != nil {
		fields["encrypted_data"] = updates.EncryptedData
	}
	if updates.IsActive != nil {
		fields["is_active"] = *updates.IsActive
	}
	if updates.Metadata != nil {
		fields["metadata"] = updates.Metadata
	}

	res := c.conn(ctx).Model(&WorkspaceConnection{}).
		Where("id = ? AND deleted_at IS NULL", connectionID).
		Updates(fields)
	if res.Error != nil {
		return nil, wrapErr(res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, ErrNotFound
	}
	return c.FindWorkspaceConnectionByID(ctx, connectionID)
}

// DeleteWorkspaceConnection soft-deletes a connection.
func (c *Client) DeleteWorkspaceConnection(ctx context.Context, connectionID uuid.UUID) error {
	now := time.Now().UTC()
	res := c.conn(ctx).Model(&WorkspaceConnection{}).
		Where("id = ? AND deleted_at IS NULL", connectionID).
		Updates(map[string]any{"deleted_at": &now, "updated_at": now})
	if res.Error != nil {
		return wrapErr(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

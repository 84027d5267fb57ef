package db

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// NewDocument is the insert shape for documents.
type NewDocument struct {
	WorkspaceID uuid.UUID
	AccountID   uuid.UUID
	DisplayName string
}

// CreateDocument inserts a document.
func (c *Client) CreateDocument(ctx context.Context, input NewDocument) (*Document, error) {
	now := time.Now().UTC()
	document := &Document{
		ID:          newID(),
		WorkspaceID: input.WorkspaceID,
		AccountID:   input.AccountID,
		DisplayName: input.DisplayName,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := c.conn(ctx).Create(document).Error; err != nil {
		return nil, wrapErr(err)
	}
	return document, nil
}

// FindDocumentByID returns a non-deleted document.
func (c *Client) FindDocumentByID(ctx context.Context, documentID uuid.UUID) (*Document, error) {
	var document Document
	err := c.conn(ctx).
		Where("id = ? AND deleted_at IS NULL", documentID).
		First(&document).Error
	if err != nil {
		return nil, wrapErr(err)
	}
	return &document, nil
}

// RenameDocument updates the display name.
func (c *Client) RenameDocument(ctx context.Context, documentID uuid.UUID, displayName string) (*Document, error) {
	res := c.conn(ctx).Model(&Document{}).
		Where("id = ? AND deleted_at IS NULL", documentID).
		Updates(map[string]any{
			"display_name": displayName,
			"updated_at":   time.Now().UTC(),
		})
	if res.Error != nil {
		return nil, wrapErr(res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, ErrNotFound
	}
	return c.FindDocumentByID(ctx, documentID)
}

// DeleteDocument soft-deletes a document.
func (c *Client) DeleteDocument(ctx context.Context, documentID uuid.UUID) error {
	now := time.Now().UTC()
	res := c.conn(ctx).Model(&Document{}).
		Where("id = ? AND deleted_at IS NULL", documentID).
		Updates(map[string]any{"deleted_at": &now, "updated_at": now})
	if res.Error != nil {
		return wrapErr(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ListWorkspaceDocuments returns a cursor page of documents in a workspace,
// ordered by (created_at DESC, id DESC).
func (c *Client) ListWorkspaceDocuments(ctx context.Context, workspaceID uuid.UUID, pagination CursorPagination) (CursorPage[Document], error) {
	var total *int64
	if pagination.IncludeCount {
		var count int64
		if err := c.conn(ctx).Model(&Document{}).
			Where("workspace_id = ? AND deleted_at IS NULL", workspaceID).
			Count(&count).Error; err != nil {
			return CursorPage[Document]{}, wrapErr(err)
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

	var documents []Document
	if err := query.Find(&documents).Error; err != nil {
		return CursorPage[Document]{}, wrapErr(err)
	}

	return newCursorPage(documents, total, pagination.Limit, func(d *Document) (time.Time, uuid.UUID) {
		return d.CreatedAt, d.ID
	}), nil
}

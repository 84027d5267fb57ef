package db

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// NewWorkspacePipeline is the insert shape for pipelines.
type NewWorkspacePipeline struct {
	WorkspaceID uuid.UUID
	AccountID   uuid.UUID
	Name        string
	Status      PipelineStatus
	Config      json.RawMessage
}

// CreateWorkspacePipeline inserts a pipeline definition.
func (c *Client) CreateWorkspacePipeline(ctx context.Context, input NewWorkspacePipeline) (*WorkspacePipeline, error) {
	status := input.Status
	if status == "" {
		status = PipelineDraft
	}
	pipeline := &WorkspacePipeline{
		ID:          newID(),
		WorkspaceID: input.WorkspaceID,
		AccountID:   input.AccountID,
		Name:        input.Name,
		Status:      status,
		Config:      input.Config,
		CreatedAt:   time.Now().UTC(),
	}
	if err := c.conn(ctx).Create(pipeline).Error; err != nil {
		return nil, wrapErr(err)
	}
	return pipeline, nil
}

// FindWorkspacePipelineByID returns a non-deleted pipeline.
func (c *Client) FindWorkspacePipelineByID(ctx context.Context, pipelineID uuid.UUID) (*WorkspacePipeline, error) {
	var pipeline WorkspacePipeline
	err := c.conn(ctx).
		Where("id = ? AND deleted_at IS NULL", pipelineID).
		First(&pipeline).Error
	if err != nil {
		return nil, wrapErr(err)
	}
	return &pipeline, nil
}

// ListWorkspacePipelines returns a cursor page of pipelines in a workspace
// ordered by (created_at DESC, id DESC).
func (c *Client) ListWorkspacePipelines(ctx context.Context, workspaceID uuid.UUID, pagination CursorPagination) (CursorPage[WorkspacePipeline], error) {
	var total *int64
	if pagination.IncludeCount {
		var count int64
		if err := c.conn(ctx).Model(&WorkspacePipeline{}).
			Where("workspace_id = ? AND deleted_at IS NULL", workspaceID).
			Count(&count).Error; err != nil {
			return CursorPage[WorkspacePipeline]{}, wrapErr(err)
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

	var pipelines []WorkspacePipeline
	if err := query.Find(&pipelines).Error; err != nil {
		return CursorPage[WorkspacePipeline]{}, wrapErr(err)
	}

	return newCursorPage(pipelines, total, pagination.Limit, func(p *WorkspacePipeline) (time.Time, uuid.UUID) {
		return p.CreatedAt, p.ID
	}), nil
}

// UpdateWorkspacePipeline applies partial updates to a pipeline.
type UpdateWorkspacePipeline struct {
	Name   *string
	Status *PipelineStatus
	Config json.RawMessage
}

// UpdateWorkspacePipeline applies the provided fields.
func (c *Client) UpdateWorkspacePipeline(ctx context.Context, pipelineID uuid.UUID, updates UpdateWorkspacePipeline) (*WorkspacePipeline, error) {
	fields := map[string]any{}
	if updates.Name != nil {
		fields["name"] = *updates.Name
	}
	if updates.Status != nil {
		fields["status"] = *updates.Status
	}
	if updates.Config != nil {
		fields["config"] = updates.Config
	}

	if len(fields) > 0 {
		res := c.conn(ctx).Model(&WorkspacePipeline{}).
			Where("id = ? AND deleted_at IS NULL", pipelineID).
			Updates(fields)
		if res.Error != nil {
			return nil, wrapErr(res.Error)
		}
		if res.RowsAffected == 0 {
			return nil, ErrNotFound
		}
	}
	return c.FindWorkspacePipelineByID(ctx, pipelineID)
}

// DeleteWorkspacePipeline soft-deletes a pipeline.
func (c *Client) DeleteWorkspacePipeline(ctx context.Context, pipelineID uuid.UUID) error {
	now := time.Now().UTC()
	res := c.conn(ctx).Model(&WorkspacePipeline{}).
		Where("id = ? AND deleted_at IS NULL", pipelineID).
		Update("deleted_at", &now)
	if res.Error != nil {
		return wrapErr(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

package db

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// CreateWorkspacePipelineRun enqueues a new run for a pipeline.
func (c *Client) CreateWorkspacePipelineRun(ctx context.Context, pipelineID uuid.UUID) (*WorkspacePipelineRun, error) {
	run := &WorkspacePipelineRun{
		ID:         newID(),
		PipelineID: pipelineID,
		Status:     RunQueued,
		StartedAt:  time.Now().UTC(),
	}
	if err := c.conn(ctx).Create(run).Error; err != nil {
		return nil, wrapErr(err)
	}
	return run, nil
}

// FindWorkspacePipelineRunByID returns a run by id.
func (c *Client) FindWorkspacePipelineRunByID(ctx context.Context, runID uuid.UUID) (*WorkspacePipelineRun, error) {
	var run WorkspacePipelineRun
	err := c.conn(ctx).Where("id = ?", runID).First(&run).Error
	if err != nil {
		return nil, wrapErr(err)
	}
	return &run, nil
}

// StartWorkspacePipelineRun moves a queued run to running, stamping
// started_at and clearing completed_at. Any other source state is refused.
func (c *Client) StartWorkspacePipelineRun(ctx context.Context, runID uuid.UUID) (*WorkspacePipelineRun, error) {
	return c.transitionRun(ctx, runID, RunRunning, []PipelineRunStatus{RunQueued}, map[string]any{
		"status":       RunRunning,
		"started_at":   time.Now().UTC(),
		"completed_at": nil,
	})
}

// CompleteWorkspacePipelineRun moves a running run to completed with an
// optional result payload.
func (c *Client) CompleteWorkspacePipelineRun(ctx context.Context, runID uuid.UUID, result json.RawMessage) (*WorkspacePipelineRun, error) {
	fields := map[string]any{
		"status":       RunCompleted,
		"completed_at": time.Now().UTC(),
	}
	if result != nil {
		fields["result"] = result
	}
	return c.transitionRun(ctx, runID, RunCompleted, []PipelineRunStatus{RunRunning}, fields)
}

// FailWorkspacePipelineRun moves a running run to failed with an error
// message.
func (c *Client) FailWorkspacePipelineRun(ctx context.Context, runID uuid.UUID, runErr string) (*WorkspacePipelineRun, error) {
	return c.transitionRun(ctx, runID, RunFailed, []PipelineRunStatus{RunRunning}, map[string]any{
		"status":       RunFailed,
		"completed_at": time.Now().UTC(),
		"error":        runErr,
	})
}

// CancelWorkspacePipelineRun cancels a queued or running run.
func (c *Client) CancelWorkspacePipelineRun(ctx context.Context, runID uuid.UUID) (*WorkspacePipelineRun, error) {
	return c.transitionRun(ctx, runID, RunCancelled, []PipelineRunStatus{RunQueued, RunRunning}, map[string]any{
		"status":       RunCancelled,
		"completed_at": time.Now().UTC(),
	})
}

// transitionRun performs a guarded state transition: the update only applies
// when the current status is one of the allowed source states, so illegal
// transitions fail with ErrConflict instead of silently overwriting.
func (c *Client) transitionRun(ctx context.Context, runID uuid.UUID, target PipelineRunStatus, from []PipelineRunStatus, fields map[string]any) (*WorkspacePipelineRun, error) {
	res := c.conn(ctx).Model(&WorkspacePipelineRun{}).
		Where("id = ? AND status IN ?", runID, from).
		Updates(fields)
	if res.Error != nil {
		return nil, wrapErr(res.Error)
	}
	if res.RowsAffected == 0 {
		run, err := c.FindWorkspacePipelineRunByID(ctx, runID)
		if err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: run %s cannot move from %s to %s", ErrConflict, runID, run.Status, target)
	}
	return c.FindWorkspacePipelineRunByID(ctx, runID)
}

// ListWorkspacePipelineRuns returns a cursor page of runs for a pipeline,
// ordered by (started_at DESC, id DESC), optionally filtered by status.
func (c *Client) ListWorkspacePipelineRuns(ctx context.Context, pipelineID uuid.UUID, pagination CursorPagination, statusFilter *PipelineRunStatus) (CursorPage[WorkspacePipelineRun], error) {
	var total *int64
	if pagination.IncludeCount {
		counter := c.conn(ctx).Model(&WorkspacePipelineRun{}).Where("pipeline_id = ?", pipelineID)
		if statusFilter != nil {
			counter = counter.Where("status = ?", *statusFilter)
		}
		var count int64
		if err := counter.Count(&count).Error; err != nil {
			return CursorPage[WorkspacePipelineRun]{}, wrapErr(err)
		}
		total = &count
	}

	query := c.conn(ctx).Where("pipeline_id = ?", pipelineID)
	if statusFilter != nil {
		query = query.Where("status = ?", *statusFilter)
	}
	query = query.
		Order("started_at DESC, id DESC").
		Limit(pagination.Limit + 1)

	if pagination.After != nil {
		query = query.Where(
			"(started_at < ?) OR (started_at = ? AND id < ?)",
			pagination.After.Timestamp, pagination.After.Timestamp, pagination.After.ID,
		)
	}

	var runs []WorkspacePipelineRun
	if err := query.Find(&runs).Error; err != nil {
		return CursorPage[WorkspacePipelineRun]{}, wrapErr(err)
	}

	return newCursorPage(runs, total, pagination.Limit, func(r *WorkspacePipelineRun) (time.Time, uuid.UUID) {
		return r.StartedAt, r.ID
	}), nil
}

// OffsetListWorkspacePipelineRuns returns runs for a pipeline with offset
// pagination, ordered by (started_at DESC, id DESC).
func (c *Client) OffsetListWorkspacePipelineRuns(ctx context.Context, pipelineID uuid.UUID, pagination OffsetPagination) ([]WorkspacePipelineRun, *int64, error) {
	var total *int64
	if pagination.IncludeCount {
		var count int64
		err := c.conn(ctx).Model(&WorkspacePipelineRun{}).
			Where("pipeline_id = ?", pipelineID).
			Count(&count).Error
		if err != nil {
			return nil, nil, wrapErr(err)
		}
		total = &count
	}

	var runs []WorkspacePipelineRun
	err := c.conn(ctx).
		Where("pipeline_id = ?", pipelineID).
		Order("started_at DESC, id DESC").
		Limit(pagination.Limit).
		Offset(pagination.Offset).
		Find(&runs).Error
	if err != nil {
		return nil, nil, wrapErr(err)
	}
	return runs, total, nil
}

// ListActiveWorkspacePipelineRuns returns queued and running runs for a
// pipeline, most recent first.
func (c *Client) ListActiveWorkspacePipelineRuns(ctx context.Context, pipelineID uuid.UUID) ([]WorkspacePipelineRun, error) {
	var runs []WorkspacePipelineRun
	err := c.conn(ctx).
		Where("pipeline_id = ? AND status IN ?", pipelineID, []PipelineRunStatus{RunQueued, RunRunning}).
		Order("started_at DESC").
		Find(&runs).Error
	if err != nil {
		return nil, wrapErr(err)
	}
	return runs, nil
}

// CountWorkspacePipelineRunsByStatus returns the run count for one status.
func (c *Client) CountWorkspacePipelineRunsByStatus(ctx context.Context, pipelineID uuid.UUID, status PipelineRunStatus) (int64, error) {
	var count int64
	err := c.conn(ctx).Model(&WorkspacePipelineRun{}).
		Where("pipeline_id = ? AND status = ?", pipelineID, status).
		Count(&count).Error
	if err != nil {
		return 0, wrapErr(err)
	}
	return count, nil
}

// FindLatestWorkspacePipelineRun returns the most recent run of a pipeline
// by started_at.
func (c *Client) FindLatestWorkspacePipelineRun(ctx context.Context, pipelineID uuid.UUID) (*WorkspacePipelineRun, error) {
	var run WorkspacePipelineRun
	err := c.conn(ctx).
		Where("pipeline_id = ?", pipelineID).
		Order("started_at DESC").
		First(&run).Error
	if err != nil {
		return nil, wrapErr(err)
	}
	return &run, nil
}

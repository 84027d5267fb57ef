package api

import (
	"encoding/json"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/nvisycom/server/auth"
	"github.com/nvisycom/server/db"
)

// CreatePipelineRequest creates a pipeline definition.
type CreatePipelineRequest struct {
	Name   string          `json:"name" validate:"required,min=1,max=200"`
	Status string          `json:"status" validate:"omitempty,oneof=enabled disabled draft"`
	Config json.RawMessage `json:"config"`
}

// CreatePipeline creates a pipeline in a workspace.
func (s *Service) CreatePipeline(c echo.Context) error {
	caller, err := principal(c)
	if err != nil {
		return err
	}
	workspaceID, err := pathUUID(c, "ws")
	if err != nil {
		return err
	}

	var req CreatePipelineRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	ctx := c.Request().Context()
	if _, err := caller.AuthorizeWorkspace(ctx, s.Store, workspaceID, auth.PermManagePipelines); err != nil {
		return err
	}

	pipeline, err := s.Store.CreateWorkspacePipeline(ctx, db.NewWorkspacePipeline{
		WorkspaceID: workspaceID,
		AccountID:   caller.AccountID,
		Name:        req.Name,
		Status:      db.PipelineStatus(req.Status),
		Config:      req.Config,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, pipeline)
}

// ListPipelines returns a cursor page of a workspace's pipelines.
func (s *Service) ListPipelines(c echo.Context) error {
	caller, err := principal(c)
	if err != nil {
		return err
	}
	workspaceID, err := pathUUID(c, "ws")
	if err != nil {
		return err
	}
	pagination, err := cursorPagination(c)
	if err != nil {
		return err
	}

	ctx := c.Request().Context()
	if _, err := caller.AuthorizeWorkspace(ctx, s.Store, workspaceID, auth.PermReadPipelines); err != nil {
		return err
	}

	page, err := s.Store.ListWorkspacePipelines(ctx, workspaceID, pagination)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toPageResponse(page))
}

// findAuthorizedPipeline loads a pipeline and checks the permission on its
// workspace.
func (s *Service) findAuthorizedPipeline(c echo.Context, permission auth.Permission) (*db.WorkspacePipeline, error) {
	caller, err := principal(c)
	if err != nil {
		return nil, err
	}
	pipelineID, err := pathUUID(c, "id")
	if err != nil {
		return nil, err
	}

	ctx := c.Request().Context()
	pipeline, err := s.Store.FindWorkspacePipelineByID(ctx, pipelineID)
	if err != nil {
		return nil, err
	}
	if _, err := caller.AuthorizeWorkspace(ctx, s.Store, pipeline.WorkspaceID, permission); err != nil {
		return nil, err
	}
	return pipeline, nil
}

// GetPipeline returns one pipeline.
func (s *Service) GetPipeline(c echo.Context) error {
	pipeline, err := s.findAuthorizedPipeline(c, auth.PermReadPipelines)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pipeline)
}

// UpdatePipelineRequest updates a pipeline definition.
type UpdatePipelineRequest struct {
	Name   *string         `json:"name" validate:"omitempty,min=1,max=200"`
	Status *string         `json:"status" validate:"omitempty,oneof=enabled disabled draft"`
	Config json.RawMessage `json:"config"`
}

// UpdatePipeline applies definition changes.
func (s *Service) UpdatePipeline(c echo.Context) error {
	pipeline, err := s.findAuthorizedPipeline(c, auth.PermManagePipelines)
	if err != nil {
		return err
	}

	var req UpdatePipelineRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	updates := db.UpdateWorkspacePipeline{Name: req.Name, Config: req.Config}
	if req.Status != nil {
		status := db.PipelineStatus(*req.Status)
		updates.Status = &status
	}

	updated, err := s.Store.UpdateWorkspacePipeline(c.Request().Context(), pipeline.ID, updates)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, updated)
}

// DeletePipeline soft-deletes a pipeline.
func (s *Service) DeletePipeline(c echo.Context) error {
	pipeline, err := s.findAuthorizedPipeline(c, auth.PermManagePipelines)
	if err != nil {
		return err
	}
	if err := s.Store.DeleteWorkspacePipeline(c.Request().Context(), pipeline.ID); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// CreatePipelineRun enqueues a new run.
func (s *Service) CreatePipelineRun(c echo.Context) error {
	pipeline, err := s.findAuthorizedPipeline(c, auth.PermManagePipelines)
	if err != nil {
		return err
	}
	if pipeline.Status != db.PipelineEnabled {
		return ErrConflict().WithMessage("Pipeline is not enabled").WithResource("pipeline")
	}

	run, err := s.Store.CreateWorkspacePipelineRun(c.Request().Context(), pipeline.ID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, run)
}

// ListPipelineRuns returns a cursor page of runs, optionally filtered by
// ?status.
func (s *Service) ListPipelineRuns(c echo.Context) error {
	pipeline, err := s.findAuthorizedPipeline(c, auth.PermReadPipelines)
	if err != nil {
		return err
	}
	pagination, err := cursorPagination(c)
	if err != nil {
		return err
	}

	var statusFilter *db.PipelineRunStatus
	if raw := c.QueryParam("status"); raw != "" {
		status := db.PipelineRunStatus(raw)
		switch status {
		case db.RunQueued, db.RunRunning, db.RunCompleted, db.RunFailed, db.RunCancelled:
			statusFilter = &status
		default:
			return ErrBadRequest().WithMessage("Invalid run status filter")
		}
	}

	page, err := s.Store.ListWorkspacePipelineRuns(c.Request().Context(), pipeline.ID, pagination, statusFilter)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toPageResponse(page))
}

// GetLatestPipelineRun returns the most recent run of a pipeline.
func (s *Service) GetLatestPipelineRun(c echo.Context) error {
	pipeline, err := s.findAuthorizedPipeline(c, auth.PermReadPipelines)
	if err != nil {
		return err
	}

	run, err := s.Store.FindLatestWorkspacePipelineRun(c.Request().Context(), pipeline.ID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, run)
}

// CancelPipelineRun cancels a queued or running run.
func (s *Service) CancelPipelineRun(c echo.Context) error {
	caller, err := principal(c)
	if err != nil {
		return err
	}
	runID, err := pathUUID(c, "id")
	if err != nil {
		return err
	}

	ctx := c.Request().Context()
	run, err := s.Store.FindWorkspacePipelineRunByID(ctx, runID)
	if err != nil {
		return err
	}
	pipeline, err := s.Store.FindWorkspacePipelineByID(ctx, run.PipelineID)
	if err != nil {
		return err
	}
	if _, err := caller.AuthorizeWorkspace(ctx, s.Store, pipeline.WorkspaceID, auth.PermManagePipelines); err != nil {
		return err
	}

	cancelled, err := s.Store.CancelWorkspacePipelineRun(ctx, runID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, cancelled)
}

package api

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/nvisycom/server/auth"
	"github.com/nvisycom/server/db"
)

// pathUUID parses a UUID path parameter.
func pathUUID(c echo.Context, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		return uuid.Nil, ErrBadRequest().WithMessage("Invalid " + name + " identifier")
	}
	return id, nil
}

// parseUUIDField parses a UUID carried in a request body field.
func parseUUIDField(raw, field string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, ErrValidation().WithValidationErrors([]ValidationErrorDetail{{
			Field:   field,
			Code:    "uuid",
			Message: "must be a valid UUID",
		}})
	}
	return id, nil
}

// CreateWorkspaceRequest creates a workspace.
type CreateWorkspaceRequest struct {
	Name       string `json:"name" validate:"required,min=1,max=200"`
	Visibility string `json:"visibility" validate:"omitempty,oneof=public private"`
}

// CreateWorkspace creates a workspace owned by the caller.
func (s *Service) CreateWorkspace(c echo.Context) error {
	caller, err := principal(c)
	if err != nil {
		return err
	}

	var req CreateWorkspaceRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	visibility := db.VisibilityPrivate
	if req.Visibility == string(db.VisibilityPublic) {
		visibility = db.VisibilityPublic
	}

	workspace, err := s.Store.CreateWorkspace(c.Request().Context(), db.NewWorkspace{
		OwnerAccountID: caller.AccountID,
		Name:           req.Name,
		Visibility:     visibility,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, workspace)
}

// ListWorkspaces returns the caller's workspaces.
func (s *Service) ListWorkspaces(c echo.Context) error {
	caller, err := principal(c)
	if err != nil {
		return err
	}

	workspaces, err := s.Store.ListWorkspacesForAccount(c.Request().Context(), caller.AccountID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, workspaces)
}

// GetWorkspace returns one workspace the caller can read.
func (s *Service) GetWorkspace(c echo.Context) error {
	caller, err := principal(c)
	if err != nil {
		return err
	}
	workspaceID, err := pathUUID(c, "ws")
	if err != nil {
		return err
	}

	ctx := c.Request().Context()
	if _, err := caller.AuthorizeWorkspace(ctx, s.Store, workspaceID, auth.PermReadDocuments); err != nil {
		return err
	}

	workspace, err := s.Store.FindWorkspaceByID(ctx, workspaceID)
	if err != nil {
		return err
	}

	// Reading a workspace counts as accessing it.
	_ = s.Store.TouchMemberAccess(ctx, workspaceID, caller.AccountID)

	return c.JSON(http.StatusOK, workspace)
}

// UpdateWorkspaceRequest updates workspace settings.
type UpdateWorkspaceRequest struct {
	Name       *string `json:"name" validate:"omitempty,min=1,max=200"`
	Visibility *string `json:"visibility" validate:"omitempty,oneof=public private"`
}

// UpdateWorkspace applies settings changes; requires workspace management.
func (s *Service) UpdateWorkspace(c echo.Context) error {
	caller, err := principal(c)
	if err != nil {
		return err
	}
	workspaceID, err := pathUUID(c, "ws")
	if err != nil {
		return err
	}

	var req UpdateWorkspaceRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	ctx := c.Request().Context()
	if _, err := caller.AuthorizeWorkspace(ctx, s.Store, workspaceID, auth.PermManageWorkspace); err != nil {
		return err
	}

	updates := db.UpdateWorkspace{Name: req.Name}
	if req.Visibility != nil {
		visibility := db.Visibility(*req.Visibility)
		updates.Visibility = &visibility
	}

	workspace, err := s.Store.UpdateWorkspace(ctx, workspaceID, updates)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, workspace)
}

// DeleteWorkspace soft-deletes a workspace; requires workspace management.
func (s *Service) DeleteWorkspace(c echo.Context) error {
	caller, err := principal(c)
	if err != nil {
		return err
	}
	workspaceID, err := pathUUID(c, "ws")
	if err != nil {
		return err
	}

	ctx := c.Request().Context()
	if _, err := caller.AuthorizeWorkspace(ctx, s.Store, workspaceID, auth.PermManageWorkspace); err != nil {
		return err
	}

	if err := s.Store.DeleteWorkspace(ctx, workspaceID); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/nvisycom/server/auth"
	"github.com/nvisycom/server/db"
)

// ListMembers returns a cursor page of workspace members.
func (s *Service) ListMembers(c echo.Context) error {
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
	if _, err := caller.AuthorizeWorkspace(ctx, s.Store, workspaceID, auth.PermReadMembers); err != nil {
		return err
	}

	page, err := s.Store.ListWorkspaceMembers(ctx, workspaceID, pagination)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toPageResponse(page))
}

// AddMemberRequest enrolls an account into a workspace.
type AddMemberRequest struct {
	AccountID string `json:"account_id" validate:"required,uuid"`
	Role      string `json:"role" validate:"required,oneof=admin editor viewer guest"`
}

// AddMember enrolls a member; requires member management.
func (s *Service) AddMember(c echo.Context) error {
	caller, err := principal(c)
	if err != nil {
		return err
	}
	workspaceID, err := pathUUID(c, "ws")
	if err != nil {
		return err
	}

	var req AddMemberRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	ctx := c.Request().Context()
	if _, err := caller.AuthorizeWorkspace(ctx, s.Store, workspaceID, auth.PermManageMembers); err != nil {
		return err
	}

	accountID, err := parseUUIDField(req.AccountID, "account_id")
	if err != nil {
		return err
	}

	member, err := s.Store.AddWorkspaceMember(ctx, db.NewWorkspaceMember{
		WorkspaceID: workspaceID,
		AccountID:   accountID,
		MemberRole:  db.MemberRole(req.Role),
	})
	if err != nil {
		return err
	}

	triggeredBy := caller.AccountID
	if _, err := s.Emitter.EmitMemberAdded(ctx, workspaceID, accountID, &triggeredBy, nil); err != nil {
		log.WithError(err).Warn("member.added emission failed")
	}

	return c.JSON(http.StatusCreated, member)
}

// UpdateMemberRoleRequest changes a member's role.
type UpdateMemberRoleRequest struct {
	Role string `json:"role" validate:"required,oneof=admin editor viewer guest"`
}

// UpdateMemberRole changes a role; requires role management. Demoting any
// admin is refused.
func (s *Service) UpdateMemberRole(c echo.Context) error {
	caller, err := principal(c)
	if err != nil {
		return err
	}
	workspaceID, err := pathUUID(c, "ws")
	if err != nil {
		return err
	}
	accountID, err := pathUUID(c, "account")
	if err != nil {
		return err
	}

	var req UpdateMemberRoleRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	ctx := c.Request().Context()
	if _, err := caller.AuthorizeWorkspace(ctx, s.Store, workspaceID, auth.PermManageRoles); err != nil {
		return err
	}

	// Admins are never demoted in place; they must leave (with ownership
	// transfer) instead.
	target, err := s.Store.FindWorkspaceMember(ctx, workspaceID, accountID)
	if err != nil {
		return err
	}
	if target.MemberRole == db.RoleAdmin && db.MemberRole(req.Role) != db.RoleAdmin {
		return ErrBadRequest().WithMessage("Cannot demote an admin")
	}

	member, err := s.Store.UpdateMemberRole(ctx, workspaceID, accountID, db.MemberRole(req.Role))
	if err != nil {
		return err
	}

	triggeredBy := caller.AccountID
	if _, err := s.Emitter.EmitMemberUpdated(ctx, workspaceID, accountID, &triggeredBy, nil); err != nil {
		log.WithError(err).Warn("member.updated emission failed")
	}

	return c.JSON(http.StatusOK, member)
}

// RemoveMember removes a member; requires member management. Removing the
// last admin is refused.
func (s *Service) RemoveMember(c echo.Context) error {
	caller, err := principal(c)
	if err != nil {
		return err
	}
	workspaceID, err := pathUUID(c, "ws")
	if err != nil {
		return err
	}
	accountID, err := pathUUID(c, "account")
	if err != nil {
		return err
	}

	ctx := c.Request().Context()
	if _, err := caller.AuthorizeWorkspace(ctx, s.Store, workspaceID, auth.PermManageMembers); err != nil {
		return err
	}

	if err := s.Store.RemoveWorkspaceMember(ctx, workspaceID, accountID); err != nil {
		return err
	}

	triggeredBy := caller.AccountID
	if _, err := s.Emitter.EmitMemberDeleted(ctx, workspaceID, accountID, &triggeredBy, nil); err != nil {
		log.WithError(err).Warn("member.deleted emission failed")
	}

	return c.NoContent(http.StatusNoContent)
}

// LeaveWorkspace removes the caller's own membership. The last admin cannot
// leave without transferring ownership first.
func (s *Service) LeaveWorkspace(c echo.Context) error {
	caller, err := principal(c)
	if err != nil {
		return err
	}
	workspaceID, err := pathUUID(c, "ws")
	if err != nil {
		return err
	}

	ctx := c.Request().Context()
	if err := s.Store.RemoveWorkspaceMember(ctx, workspaceID, caller.AccountID); err != nil {
		return err
	}

	triggeredBy := caller.AccountID
	if _, err := s.Emitter.EmitMemberDeleted(ctx, workspaceID, caller.AccountID, &triggeredBy, nil); err != nil {
		log.WithError(err).Warn("member.deleted emission failed")
	}

	return c.JSON(http.StatusOK, map[string]string{"status": "left"})
}

// UpdateMemberPreferencesRequest updates the caller's notification and
// favorite settings for a workspace.
type UpdateMemberPreferencesRequest struct {
	IsFavorite     *bool `json:"is_favorite"`
	NotifyUpdates  *bool `json:"notify_updates"`
	NotifyComments *bool `json:"notify_comments"`
	NotifyMentions *bool `json:"notify_mentions"`
}

// UpdateMemberPreferences applies the caller's own preference changes.
func (s *Service) UpdateMemberPreferences(c echo.Context) error {
	caller, err := principal(c)
	if err != nil {
		return err
	}
	workspaceID, err := pathUUID(c, "ws")
	if err != nil {
		return err
	}

	var req UpdateMemberPreferencesRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	member, err := s.Store.UpdateMemberPreferences(c.Request().Context(), workspaceID, caller.AccountID, db.UpdateMemberPreferences{
		IsFavorite:     req.IsFavorite,
		NotifyUpdates:  req.NotifyUpdates,
		NotifyComments: req.NotifyComments,
		NotifyMentions: req.NotifyMentions,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, member)
}

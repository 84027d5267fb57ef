package db

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrLastAdmin is returned when an operation would leave a workspace with no
// admin.
var ErrLastAdmin = errors.New("db: workspace must retain at least one admin")

// NewWorkspaceMember is the insert shape for memberships.
type NewWorkspaceMember struct {
	WorkspaceID uuid.UUID
	AccountID   uuid.UUID
	MemberRole  MemberRole
}

// AddWorkspaceMember enrolls an account into a workspace.
func (c *Client) AddWorkspaceMember(ctx context.Context, input NewWorkspaceMember) (*WorkspaceMember, error) {
	member := &WorkspaceMember{
		WorkspaceID:    input.WorkspaceID,
		AccountID:      input.AccountID,
		MemberRole:     input.MemberRole,
		NotifyUpdates:  true,
		NotifyComments: true,
		NotifyMentions: true,
		CreatedAt:      time.Now().UTC(),
	}
	if err := c.conn(ctx).Create(member).Error; err != nil {
		return nil, wrapErr(err)
	}
	return member, nil
}

// FindWorkspaceMember returns the membership row for (workspace, account),
// or ErrNotFound.
func (c *Client) FindWorkspaceMember(ctx context.Context, workspaceID, accountID uuid.UUID) (*WorkspaceMember, error) {
	var member WorkspaceMember
	err := c.conn(ctx).
		Where("workspace_id = ? AND account_id = ?", workspaceID, accountID).
		First(&member).Error
	if err != nil {
		return nil, wrapErr(err)
	}
	return &member, nil
}

// ListWorkspaceMembers returns a cursor page of members ordered by
// (created_at DESC, account_id DESC).
func (c *Client) ListWorkspaceMembers(ctx context.Context, workspaceID uuid.UUID, pagination CursorPagination) (CursorPage[WorkspaceMember], error) {
	var total *int64
	if pagination.IncludeCount {
		var count int64
		if err := c.conn(ctx).Model(&WorkspaceMember{}).
			Where("workspace_id = ?", workspaceID).
			Count(&count).Error; err != nil {
			return CursorPage[WorkspaceMember]{}, wrapErr(err)
		}
		total = &count
	}

	query := c.conn(ctx).
		Where("workspace_id = ?", workspaceID).
		Order("created_at DESC, account_id DESC").
		Limit(pagination.Limit + 1)

	if pagination.After != nil {
		query = query.Where(
			"(created_at < ?) OR (created_at = ? AND account_id < ?)",
			pagination.After.Timestamp, pagination.After.Timestamp, pagination.After.ID,
		)
	}

	var members []WorkspaceMember
	if err := query.Find(&members).Error; err != nil {
		return CursorPage[WorkspaceMember]{}, wrapErr(err)
	}

	return newCursorPage(members, total, pagination.Limit, func(m *WorkspaceMember) (time.Time, uuid.UUID) {
		return m.CreatedAt, m.AccountID
	}), nil
}

// UpdateMemberRole changes a member's role. Demoting the last admin is
// refused with ErrLastAdmin.
func (c *Client) UpdateMemberRole(ctx context.Context, workspaceID, accountID uuid.UUID, role MemberRole) (*WorkspaceMember, error) {
	var member *WorkspaceMember
	err := c.Transaction(ctx, func(tx *Client) error {
		current, err := tx.FindWorkspaceMember(ctx, workspaceID, accountID)
		if err != nil {
			return err
		}

		if current.MemberRole == RoleAdmin && role != RoleAdmin {
			admins, err := tx.countAdmins(ctx, workspaceID)
			if err != nil {
				return err
			}
			if admins <= 1 {
				return ErrLastAdmin
			}
		}

		res := tx.conn(ctx).Model(&WorkspaceMember{}).
			Where("workspace_id = ? AND account_id = ?", workspaceID, accountID).
			Update("member_role", role)
		if res.Error != nil {
			return wrapErr(res.Error)
		}

		member, err = tx.FindWorkspaceMember(ctx, workspaceID, accountID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return member, nil
}

// RemoveWorkspaceMember deletes a membership. Removing the last admin is
// refused with ErrLastAdmin.
func (c *Client) RemoveWorkspaceMember(ctx context.Context, workspaceID, accountID uuid.UUID) error {
	return c.Transaction(ctx, func(tx *Client) error {
		current, err := tx.FindWorkspaceMember(ctx, workspaceID, accountID)
		if err != nil {
			return err
		}

		if current.MemberRole == RoleAdmin {
			admins, err := tx.countAdmins(ctx, workspaceID)
			if err != nil {
				return err
			}
			if admins <= 1 {
				return ErrLastAdmin
			}
		}

		res := tx.conn(ctx).
			Where("workspace_id = ? AND account_id = ?", workspaceID, accountID).
			Delete(&WorkspaceMember{})
		if res.Error != nil {
			return wrapErr(res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// UpdateMemberPreferences applies partial updates to notification settings
// and the favorite flag.
type UpdateMemberPreferences struct {
	IsFavorite     *bool
	NotifyUpdates  *bool
	NotifyComments *bool
	NotifyMentions *bool
}

// UpdateMemberPreferences applies the non-nil preference fields.
func (c *Client) UpdateMemberPreferences(ctx context.Context, workspaceID, accountID uuid.UUID, updates UpdateMemberPreferences) (*WorkspaceMember, error) {
	fields := map[string]any{}
	if updates.IsFavorite != nil {
		fields["is_favorite"] = *updates.IsFavorite
	}
	if updates.NotifyUpdates != nil {
		fields["notify_updates"] = *updates.NotifyUpdates
	}
	if updates.NotifyComments != nil {
		fields["notify_comments"] = *updates.NotifyComments
	}
	if updates.NotifyMentions != nil {
		fields["notify_mentions"] = *updates.NotifyMentions
	}

	if len(fields) > 0 {
		res := c.conn(ctx).Model(&WorkspaceMember{}).
			Where("workspace_id = ? AND account_id = ?", workspaceID, accountID).
			Updates(fields)
		if res.Error != nil {
			return nil, wrapErr(res.Error)
		}
		if res.RowsAffected == 0 {
			return nil, ErrNotFound
		}
	}
	return c.FindWorkspaceMember(ctx, workspaceID, accountID)
}

// TouchMemberAccess records the member's last workspace access time.
func (c *Client) TouchMemberAccess(ctx context.Context, workspaceID, accountID uuid.UUID) error {
	now := time.Now().UTC()
	return wrapErr(c.conn(ctx).Model(&WorkspaceMember{}).
		Where("workspace_id = ? AND account_id = ?", workspaceID, accountID).
		Update("last_accessed_at", &now).Error)
}

func (c *Client) countAdmins(ctx context.Context, workspaceID uuid.UUID) (int64, error) {
	var count int64
	err := c.conn(ctx).Model(&WorkspaceMember{}).
		Where("workspace_id = ? AND member_role = ?", workspaceID, RoleAdmin).
		Count(&count).Error
	if err != nil {
		return 0, wrapErr(err)
	}
	return count, nil
}

package db

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// NewWorkspace is the insert shape for workspaces.
type NewWorkspace struct {
	OwnerAccountID uuid.UUID
	Name           string
	Visibility     Visibility
}

// CreateWorkspace inserts a workspace and enrolls the owner as its first
// admin in one transaction.
func (c *Client) CreateWorkspace(ctx context.Context, input NewWorkspace) (*Workspace, error) {
	now := time.Now().UTC()
	workspace := &Workspace{
		ID:             newID(),
		OwnerAccountID: input.OwnerAccountID,
		Name:           input.Name,
		Visibility:     input.Visibility,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	err := c.Transaction(ctx, func(tx *Client) error {
		if err := tx.conn(ctx).Create(workspace).Error; err != nil {
			return wrapErr(err)
		}
		member := &WorkspaceMember{
			WorkspaceID:    workspace.ID,
			AccountID:      input.OwnerAccountID,
			MemberRole:     RoleAdmin,
			NotifyUpdates:  true,
			NotifyComments: true,
			NotifyMentions: true,
			CreatedAt:      now,
		}
		return wrapErr(tx.conn(ctx).Create(member).Error)
	})
	if err != nil {
		return nil, err
	}
	return workspace, nil
}

// FindWorkspaceByID returns a non-deleted workspace.
func (c *Client) FindWorkspaceByID(ctx context.Context, workspaceID uuid.UUID) (*Workspace, error) {
	var workspace Workspace
	err := c.conn(ctx).
		Where("id = ? AND deleted_at IS NULL", workspaceID).
		First(&workspace).Error
	if err != nil {
		return nil, wrapErr(err)
	}
	return &workspace, nil
}

// UpdateWorkspace applies partial updates to a workspace.
type UpdateWorkspace struct {
	Name       *string
	Visibility *Visibility
}

// UpdateWorkspace applies the non-nil fields of updates.
func (c *Client) UpdateWorkspace(ctx context.Context, workspaceID uuid.UUID, updates UpdateWorkspace) (*Workspace, error) {
	fields := map[string]any{"updated_at": time.Now().UTC()}
	if updates.Name != nil {
		fields["name"] = *updates.Name
	}
	if updates.Visibility != nil {
		fields["visibility"] = *updates.Visibility
	}

	res := c.conn(ctx).Model(&Workspace{}).
		Where("id = ? AND deleted_at IS NULL", workspaceID).
		Updates(fields)
	if res.Error != nil {
		return nil, wrapErr(res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, ErrNotFound
	}
	return c.FindWorkspaceByID(ctx, workspaceID)
}

// DeleteWorkspace soft-deletes a workspace.
func (c *Client) DeleteWorkspace(ctx context.Context, workspaceID uuid.UUID) error {
	now := time.Now().UTC()
	res := c.conn(ctx).Model(&Workspace{}).
		Where("id = ? AND deleted_at IS NULL", workspaceID).
		Updates(map[string]any{"deleted_at": &now, "updated_at": now})
	if res.Error != nil {
		return wrapErr(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ListWorkspacesForAccount returns the workspaces an account belongs to,
// newest first.
func (c *Client) ListWorkspacesForAccount(ctx context.Context, accountID uuid.UUID) ([]Workspace, error) {
	var workspaces []Workspace
	err := c.conn(ctx).
		Joins("JOIN workspace_members ON workspace_members.workspace_id = workspaces.id").
		Where("workspace_members.account_id = ? AND workspaces.deleted_at IS NULL", accountID).
		Order("workspaces.created_at DESC, workspaces.id DESC").
		Find(&workspaces).Error
	if err != nil {
		return nil, wrapErr(err)
	}
	return workspaces, nil
}

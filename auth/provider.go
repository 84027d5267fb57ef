package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/nvisycom/server/db"
)

// ErrForbidden is returned when an authenticated caller lacks the required
// permission. The message is safe to surface to clients.
var ErrForbidden = errors.New("auth: forbidden")

// forbidden wraps ErrForbidden with a stable reason.
func forbidden(reason string) error {
	return fmt.Errorf("%w: %s", ErrForbidden, reason)
}

// Principal is an authenticated caller resolved from a bearer token. It
// carries everything the authorization kernel needs to decide a request.
type Principal struct {
	AccountID uuid.UUID
	AccessSeq uuid.UUID
	IsAdmin   bool
}

// AuthorizeWorkspace grants access to a workspace-scoped operation.
//
// Global admins bypass membership checks and receive a nil member. Otherwise
// the caller must be a member whose role meets the permission's minimum; the
// membership row is returned on grant.
func (p *Principal) AuthorizeWorkspace(ctx context.Context, store *db.Client, workspaceID uuid.UUID, permission Permission) (*db.WorkspaceMember, error) {
	if p.IsAdmin {
		log.WithFields(map[string]any{
			"account_id":   p.AccountID,
			"workspace_id": workspaceID,
			"permission":   permission,
		}).Debug("access granted: global administrator")
		return nil, nil
	}

	member, err := store.FindWorkspaceMember(ctx, workspaceID, p.AccountID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			log.WithFields(map[string]any{
				"account_id":   p.AccountID,
				"workspace_id": workspaceID,
				"permission":   permission,
			}).Warn("access denied: not a workspace member")
			return nil, forbidden("not a workspace member")
		}
		return nil, err
	}

	if !permission.PermittedByRole(member.MemberRole) {
		log.WithFields(map[string]any{
			"account_id":   p.AccountID,
			"workspace_id": workspaceID,
			"permission":   permission,
			"role":         member.MemberRole,
		}).Warn("access denied: insufficient role")
		return nil, forbidden(fmt.Sprintf("role %s insufficient for %s", member.MemberRole, permission))
	}

	return member, nil
}

// AuthorizeDocument grants access to a document-scoped operation.
//
// The document's workspace is resolved first. Destructive permissions
// (update/delete) are granted to the document creator and to global admins
// without a workspace-role check; everyone else needs the workspace-level
// grant.
func (p *Principal) AuthorizeDocument(ctx context.Context, store *db.Client, documentID uuid.UUID, permission Permission) (*db.WorkspaceMember, error) {
	document, err := store.FindDocumentByID(ctx, documentID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, forbidden("document not found")
		}
		return nil, err
	}

	if permission.isDestructiveDocumentPermission() {
		if p.IsAdmin {
			return nil, nil
		}
		if document.AccountID == p.AccountID {
			// Owners may modify their own documents regardless of role, but
			// must still be workspace members.
			member, err := store.FindWorkspaceMember(ctx, document.WorkspaceID, p.AccountID)
			if err != nil {
				if errors.Is(err, db.ErrNotFound) {
					return nil, forbidden("not a workspace member")
				}
				return nil, err
			}
			return member, nil
		}
	}

	return p.AuthorizeWorkspace(ctx, store, document.WorkspaceID, permission)
}

// AuthorizeSelf grants access to account-scoped data: the caller must be the
// target account or a global admin.
func (p *Principal) AuthorizeSelf(targetAccountID uuid.UUID) error {
	if p.AccountID == targetAccountID || p.IsAdmin {
		return nil
	}
	log.WithFields(map[string]any{
		"account_id": p.AccountID,
		"target_id":  targetAccountID,
	}).Warn("self-permission denied")
	return forbidden("can only access your own account data")
}

// AuthorizeAdmin grants access to system-level operations.
func (p *Principal) AuthorizeAdmin() error {
	if p.IsAdmin {
		return nil
	}
	return forbidden("global administrator privileges required")
}

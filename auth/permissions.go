package auth

import (
	"github.com/nvisycom/server/db"
)

// Permission is a capability required to perform an operation within a
// workspace.
type Permission string

// Workspace-scoped capabilities.
const (
	PermReadDocuments     Permission = "read_documents"
	PermUpdateDocuments   Permission = "update_documents"
	PermDeleteDocuments   Permission = "delete_documents"
	PermReadFiles         Permission = "read_files"
	PermWriteFiles        Permission = "write_files"
	PermReadMembers       Permission = "read_members"
	PermManageMembers     Permission = "manage_members"
	PermReadConnections   Permission = "read_connections"
	PermManageConnections Permission = "manage_connections"
	PermReadWebhooks      Permission = "read_webhooks"
	PermManageWebhooks    Permission = "manage_webhooks"
	PermReadPipelines     Permission = "read_pipelines"
	PermManagePipelines   Permission = "manage_pipelines"
	PermManageRoles       Permission = "manage_roles"
	PermManageWorkspace   Permission = "manage_workspace"
)

// minimumRole maps each permission to the lowest workspace role that grants
// it. Permissions absent from the table are never granted by role alone.
var minimumRole = map[Permission]db.MemberRole{
	PermReadDocuments:     db.RoleGuest,
	PermUpdateDocuments:   db.RoleEditor,
	PermDeleteDocuments:   db.RoleEditor,
	PermReadFiles:         db.RoleViewer,
	PermWriteFiles:        db.RoleEditor,
	PermReadMembers:       db.RoleViewer,
	PermManageMembers:     db.RoleAdmin,
	PermReadConnections:   db.RoleViewer,
	PermManageConnections: db.RoleEditor,
	PermReadWebhooks:      db.RoleViewer,
	PermManageWebhooks:    db.RoleEditor,
	PermReadPipelines:     db.RoleViewer,
	PermManagePipelines:   db.RoleEditor,
	PermManageRoles:       db.RoleAdmin,
	PermManageWorkspace:   db.RoleAdmin,
}

// PermittedByRole reports whether the role grants this permission.
func (p Permission) PermittedByRole(role db.MemberRole) bool {
	minimum, ok := minimumRole[p]
	if !ok {
		return false
	}
	return role.AtLeast(minimum)
}

// isDestructiveDocumentPermission reports whether the permission triggers
// the document-ownership escalation path.
func (p Permission) isDestructiveDocumentPermission() bool {
	return p == PermUpdateDocuments || p == PermDeleteDocuments
}

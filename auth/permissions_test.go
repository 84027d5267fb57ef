package auth

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/nvisycom/server/db"
)

func TestPermittedByRoleHierarchy(t *testing.T) {
	cases := []struct {
		permission Permission
		role       db.MemberRole
		granted    bool
	}{
		{PermReadDocuments, db.RoleGuest, true},
		{PermReadFiles, db.RoleGuest, false},
		{PermReadFiles, db.RoleViewer, true},
		{PermUpdateDocuments, db.RoleViewer, false},
		{PermUpdateDocuments, db.RoleEditor, true},
		{PermDeleteDocuments, db.RoleEditor, true},
		{PermManageMembers, db.RoleEditor, false},
		{PermManageMembers, db.RoleAdmin, true},
		{PermManageRoles, db.RoleAdmin, true},
		{PermManageWorkspace, db.RoleEditor, false},
		{PermManageConnections, db.RoleEditor, true},
		{PermReadConnections, db.RoleViewer, true},
	}

	for _, tc := range cases {
		got := tc.permission.PermittedByRole(tc.role)
		assert.Equal(t, tc.granted, got, "%s for role %s", tc.permission, tc.role)
	}
}

func TestUnknownPermissionNeverGranted(t *testing.T) {
	assert.False(t, Permission("made_up").PermittedByRole(db.RoleAdmin))
}

func TestAuthorizeSelf(t *testing.T) {
	accountID := uuid.New()
	caller := &Principal{AccountID: accountID}

	assert.NoError(t, caller.AuthorizeSelf(accountID))
	assert.ErrorIs(t, caller.AuthorizeSelf(uuid.New()), ErrForbidden)

	admin := &Principal{AccountID: uuid.New(), IsAdmin: true}
	assert.NoError(t, admin.AuthorizeSelf(accountID))
}

func TestAuthorizeAdmin(t *testing.T) {
	assert.ErrorIs(t, (&Principal{AccountID: uuid.New()}).AuthorizeAdmin(), ErrForbidden)
	assert.NoError(t, (&Principal{AccountID: uuid.New(), IsAdmin: true}).AuthorizeAdmin())
}

func TestDestructiveDocumentPermissions(t *testing.T) {
	assert.True(t, PermUpdateDocuments.isDestructiveDocumentPermission())
	assert.True(t, PermDeleteDocuments.isDestructiveDocumentPermission())
	assert.False(t, PermReadDocuments.isDestructiveDocumentPermission())
}

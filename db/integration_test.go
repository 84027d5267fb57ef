//go:build integration

package db

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvisycom/server/config"
)

// setupClient connects to the database named by POSTGRES_URL and migrates
// the schema. Tests are skipped when no database is provisioned.
func setupClient(t *testing.T) *Client {
	t.Helper()

	url := os.Getenv("POSTGRES_URL")
	if url == "" {
		t.Skip("POSTGRES_URL not set, skipping integration test")
	}

	client, err := NewClient(config.PostgresConfig{
		URL:            url,
		MaxOpenConns:   4,
		MinIdleConns:   2,
		ConnectTimeout: 10 * time.Second,
		AcquireTimeout: 10 * time.Second,
		MaxLifetime:    time.Hour,
	})
	require.NoError(t, err)
	require.NoError(t, client.Migrate(context.Background()))
	return client
}

func createTestAccount(t *testing.T, client *Client, email string) *Account {
	t.Helper()
	account, err := client.CreateAccount(context.Background(), NewAccount{
		Email:        email,
		PasswordHash: "$argon2id$v=19$m=65536,t=3,p=2$c2FsdHNhbHRzYWx0c2FsdA$ZGlnZXN0ZGlnZXN0ZGlnZXN0ZGlnZXN0ZGlnZXN0ZGln",
	})
	require.NoError(t, err)
	return account
}

func TestLastAdminProtection(t *testing.T) {
	client := setupClient(t)
	ctx := context.Background()

	owner := createTestAccount(t, client, "owner+"+time.Now().Format("150405.000000")+"@nvisy.test")
	other := createTestAccount(t, client, "other+"+time.Now().Format("150405.000000")+"@nvisy.test")

	workspace, err := client.CreateWorkspace(ctx, NewWorkspace{
		OwnerAccountID: owner.ID,
		Name:           "last admin test",
		Visibility:     VisibilityPrivate,
	})
	require.NoError(t, err)

	// The sole admin can be neither demoted nor removed.
	_, err = client.UpdateMemberRole(ctx, workspace.ID, owner.ID, RoleEditor)
	assert.ErrorIs(t, err, ErrLastAdmin)

	err = client.RemoveWorkspaceMember(ctx, workspace.ID, owner.ID)
	assert.ErrorIs(t, err, ErrLastAdmin)

	// With a second admin enrolled, demotion succeeds.
	_, err = client.AddWorkspaceMember(ctx, NewWorkspaceMember{
		WorkspaceID: workspace.ID,
		AccountID:   other.ID,
		MemberRole:  RoleAdmin,
	})
	require.NoError(t, err)

	member, err := client.UpdateMemberRole(ctx, workspace.ID, owner.ID, RoleEditor)
	require.NoError(t, err)
	assert.Equal(t, RoleEditor, member.MemberRole)

	// The remaining admin is now protected.
	err = client.RemoveWorkspaceMember(ctx, workspace.ID, other.ID)
	assert.ErrorIs(t, err, ErrLastAdmin)
}

func TestLatestVersionProtection(t *testing.T) {
	client := setupClient(t)
	ctx := context.Background()

	owner := createTestAccount(t, client, "versions+"+time.Now().Format("150405.000000")+"@nvisy.test")
	workspace, err := client.CreateWorkspace(ctx, NewWorkspace{
		OwnerAccountID: owner.ID,
		Name:           "version test",
		Visibility:     VisibilityPrivate,
	})
	require.NoError(t, err)

	document, err := client.CreateDocument(ctx, NewDocument{
		WorkspaceID: workspace.ID,
		AccountID:   owner.ID,
		DisplayName: "doc",
	})
	require.NoError(t, err)

	var versions []*DocumentVersion
	for i := 0; i < 3; i++ {
		version, err := client.CreateDocumentVersion(ctx, NewDocumentVersion{
			DocumentID:     document.ID,
			StoragePath:    "files/doc",
			StorageBucket:  "files",
			FileHashSHA256: "00",
			FileSizeBytes:  1,
			MimeType:       "text/plain",
		})
		require.NoError(t, err)
		versions = append(versions, version)
	}

	assert.Equal(t, 1, versions[0].VersionNumber)
	assert.Equal(t, 3, versions[2].VersionNumber)

	// v3 is latest and protected; v2 may go.
	assert.ErrorIs(t, client.DeleteDocumentVersion(ctx, versions[2].ID), ErrLatestVersion)
	assert.NoError(t, client.DeleteDocumentVersion(ctx, versions[1].ID))

	latest, err := client.FindLatestDocumentVersion(ctx, document.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, latest.VersionNumber)
}

func TestPipelineRunStateMachine(t *testing.T) {
	client := setupClient(t)
	ctx := context.Background()

	owner := createTestAccount(t, client, "runs+"+time.Now().Format("150405.000000")+"@nvisy.test")
	workspace, err := client.CreateWorkspace(ctx, NewWorkspace{
		OwnerAccountID: owner.ID,
		Name:           "run test",
		Visibility:     VisibilityPrivate,
	})
	require.NoError(t, err)

	pipeline, err := client.CreateWorkspacePipeline(ctx, NewWorkspacePipeline{
		WorkspaceID: workspace.ID,
		AccountID:   owner.ID,
		Name:        "ingest",
		Status:      PipelineEnabled,
	})
	require.NoError(t, err)

	run, err := client.CreateWorkspacePipelineRun(ctx, pipeline.ID)
	require.NoError(t, err)
	assert.Equal(t, RunQueued, run.Status)
	assert.Nil(t, run.CompletedAt)

	// A queued run cannot complete directly.
	_, err = client.CompleteWorkspacePipelineRun(ctx, run.ID, nil)
	assert.ErrorIs(t, err, ErrConflict)

	started, err := client.StartWorkspacePipelineRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, RunRunning, started.Status)

	// Running again is illegal.
	_, err = client.StartWorkspacePipelineRun(ctx, run.ID)
	assert.ErrorIs(t, err, ErrConflict)

	completed, err := client.CompleteWorkspacePipelineRun(ctx, run.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, RunCompleted, completed.Status)
	require.NotNil(t, completed.CompletedAt)

	// Terminal states admit no transitions.
	_, err = client.CancelWorkspacePipelineRun(ctx, run.ID)
	assert.ErrorIs(t, err, ErrConflict)

	// Latest-run lookup and status counts.
	second, err := client.CreateWorkspacePipelineRun(ctx, pipeline.ID)
	require.NoError(t, err)

	latest, err := client.FindLatestWorkspacePipelineRun(ctx, pipeline.ID)
	require.NoError(t, err)
	assert.Equal(t, second.ID, latest.ID)

	active, err := client.ListActiveWorkspacePipelineRuns(ctx, pipeline.ID)
	require.NoError(t, err)
	assert.Len(t, active, 1)

	count, err := client.CountWorkspacePipelineRunsByStatus(ctx, pipeline.ID, RunCompleted)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

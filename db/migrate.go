package db

import (
	"context"
	"fmt"
)

// Migrate brings the schema up to date. It enables the pgvector extension
// before AutoMigrate so the vector(1536) column type resolves.
func (c *Client) Migrate(ctx context.Context) error {
	conn := c.conn(ctx)

	if err := conn.Exec("CREATE EXTENSION IF NOT EXISTS vector").Error; err != nil {
		return fmt.Errorf("db: enable pgvector extension: %w", err)
	}

	if err := conn.AutoMigrate(
		&Account{},
		&Workspace{},
		&WorkspaceMember{},
		&Document{},
		&DocumentVersion{},
		&WorkspaceFile{},
		&WorkspaceFileChunk{},
		&WorkspaceConnection{},
		&WorkspaceWebhook{},
		&WorkspacePipeline{},
		&WorkspacePipelineRun{},
		&Chat{},
		&ChatMessage{},
	); err != nil {
		return fmt.Errorf("db: auto-migrate: %w", err)
	}

	// Cosine-distance index for similarity search over chunk embeddings.
	if err := conn.Exec(
		"CREATE INDEX IF NOT EXISTS idx_chunk_embedding_cosine ON workspace_file_chunks " +
			"USING hnsw (embedding vector_cosine_ops)",
	).Error; err != nil {
		return fmt.Errorf("db: create embedding index: %w", err)
	}

	log.Info("schema migration complete")
	return nil
}

package db

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm/clause"
)

// NewWorkspaceFile is the insert shape for workspace files.
type NewWorkspaceFile struct {
	WorkspaceID uuid.UUID
	AccountID   uuid.UUID
	FileName    string
}

// CreateWorkspaceFile inserts a file record.
func (c *Client) CreateWorkspaceFile(ctx context.Context, input NewWorkspaceFile) (*WorkspaceFile, error) {
	file := &WorkspaceFile{
		ID:          newID(),
		WorkspaceID: input.WorkspaceID,
		AccountID:   input.AccountID,
		FileName:    input.FileName,
		CreatedAt:   time.Now().UTC(),
	}
	if err := c.conn(ctx).Create(file).Error; err != nil {
		return nil, wrapErr(err)
	}
	return file, nil
}

// FindWorkspaceFileByID returns a non-deleted file.
func (c *Client) FindWorkspaceFileByID(ctx context.Context, fileID uuid.UUID) (*WorkspaceFile, error) {
	var file WorkspaceFile
	err := c.conn(ctx).
		Where("id = ? AND deleted_at IS NULL", fileID).
		First(&file).Error
	if err != nil {
		return nil, wrapErr(err)
	}
	return &file, nil
}

// DeleteWorkspaceFile soft-deletes a file; its chunks are removed so they
// stop matching searches.
func (c *Client) DeleteWorkspaceFile(ctx context.Context, fileID uuid.UUID) error {
	return c.Transaction(ctx, func(tx *Client) error {
		now := time.Now().UTC()
		res := tx.conn(ctx).Model(&WorkspaceFile{}).
			Where("id = ? AND deleted_at IS NULL", fileID).
			Update("deleted_at", &now)
		if res.Error != nil {
			return wrapErr(res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		_, err := tx.DeleteFileChunks(ctx, fileID)
		return err
	})
}

// NewFileChunk is the insert shape for chunks. (FileID, ChunkIndex) must be
// unique; re-ingesting an identical chunk replaces the existing row so the
// ingestion path is idempotent at the chunk-identity level.
type NewFileChunk struct {
	FileID         uuid.UUID
	ChunkIndex     int
	ContentSHA256  string
	ContentSize    int64
	TokenCount     *int
	Embedding      pgvector.Vector
	EmbeddingModel string
	Metadata       json.RawMessage
}

// CreateFileChunks performs a single batched insert of chunks. A conflict on
// (file_id, chunk_index) replaces the stored chunk in place.
func (c *Client) CreateFileChunks(ctx context.Context, newChunks []NewFileChunk) ([]WorkspaceFileChunk, error) {
	if len(newChunks) == 0 {
		return []WorkspaceFileChunk{}, nil
	}

	seen := make(map[string]struct{}, len(newChunks))
	now := time.Now().UTC()
	chunks := make([]WorkspaceFileChunk, 0, len(newChunks))
	for _, nc := range newChunks {
		key := fmt.Sprintf("%s/%d", nc.FileID, nc.ChunkIndex)
		if _, dup := seen[key]; dup {
			return nil, fmt.Errorf("%w: duplicate chunk identity (%s, %d)", ErrConflict, nc.FileID, nc.ChunkIndex)
		}
		seen[key] = struct{}{}

		chunks = append(chunks, WorkspaceFileChunk{
			ID:             newID(),
			FileID:         nc.FileID,
			ChunkIndex:     nc.ChunkIndex,
			ContentSHA256:  nc.ContentSHA256,
			ContentSize:    nc.ContentSize,
			TokenCount:     nc.TokenCount,
			Embedding:      nc.Embedding,
			EmbeddingModel: nc.EmbeddingModel,
			Metadata:       nc.Metadata,
			CreatedAt:      now,
		})
	}

	err := c.conn(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "file_id"}, {Name: "chunk_index"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"content_sha256", "content_size", "token_count",
			"embedding", "embedding_model", "metadata",
		}),
	}).Create(&chunks).Error
	if err != nil {
		return nil, wrapErr(err)
	}
	return chunks, nil
}

// ListFileChunks returns all chunks of a file ordered by chunk index.
func (c *Client) ListFileChunks(ctx context.Context, fileID uuid.UUID) ([]WorkspaceFileChunk, error) {
	var chunks []WorkspaceFileChunk
	err := c.conn(ctx).
		Where("file_id = ?", fileID).
		Order("chunk_index ASC").
		Find(&chunks).Error
	if err != nil {
		return nil, wrapErr(err)
	}
	return chunks, nil
}

// CountFileChunks returns the chunk count for a file.
func (c *Client) CountFileChunks(ctx context.Context, fileID uuid.UUID) (int64, error) {
	var count int64
	err := c.conn(ctx).Model(&WorkspaceFileChunk{}).
		Where("file_id = ?", fileID).
		Count(&count).Error
	if err != nil {
		return 0, wrapErr(err)
	}
	return count, nil
}

// DeleteFileChunks removes all chunks of a file and returns the number of
// rows deleted.
func (c *Client) DeleteFileChunks(ctx context.Context, fileID uuid.UUID) (int64, error) {
	res := c.conn(ctx).Where("file_id = ?", fileID).Delete(&WorkspaceFileChunk{})
	if res.Error != nil {
		return 0, wrapErr(res.Error)
	}
	return res.RowsAffected, nil
}

// SearchScoredChunksInFiles returns chunks from the given files whose cosine
// similarity to the query embedding is at least minScore, best matches
// first. An empty file list returns an empty result.
func (c *Client) SearchScoredChunksInFiles(ctx context.Context, embedding pgvector.Vector, fileIDs []uuid.UUID, minScore float64, limit int) ([]ScoredChunk, error) {
	if len(fileIDs) == 0 {
		return []ScoredChunk{}, nil
	}

	// Score = 1 - cosine distance, so a minimum score bounds the distance.
	maxDistance := 1.0 - minScore

	rows := []struct {
		WorkspaceFileChunk
		Score float64
	}{}

	err := c.conn(ctx).Raw(
		`SELECT *, 1 - (embedding <=> ?) AS score
		 FROM workspace_file_chunks
		 WHERE file_id IN ? AND (embedding <=> ?) <= ?
		 ORDER BY embedding <=> ? ASC
		 LIMIT ?`,
		embedding, fileIDs, embedding, maxDistance, embedding, limit,
	).Scan(&rows).Error
	if err != nil {
		return nil, wrapErr(err)
	}

	scored := make([]ScoredChunk, len(rows))
	for i, row := range rows {
		scored[i] = ScoredChunk{Chunk: row.WorkspaceFileChunk, Score: row.Score}
	}
	return scored, nil
}

// SearchScoredChunksInWorkspace resolves the workspace's non-deleted files
// and searches within them.
func (c *Client) SearchScoredChunksInWorkspace(ctx context.Context, embedding pgvector.Vector, workspaceID uuid.UUID, minScore float64, limit int) ([]ScoredChunk, error) {
	var fileIDs []uuid.UUID
	err := c.conn(ctx).Model(&WorkspaceFile{}).
		Where("workspace_id = ? AND deleted_at IS NULL", workspaceID).
		Pluck("id", &fileIDs).Error
	if err != nil {
		return nil, wrapErr(err)
	}

	return c.SearchScoredChunksInFiles(ctx, embedding, fileIDs, minScore, limit)
}

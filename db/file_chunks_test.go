package db

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearchWithEmptyFileScopeReturnsEmpty(t *testing.T) {
	// The empty-scope short circuit never touches the database.
	client := &Client{}

	results, err := client.SearchScoredChunksInFiles(
		context.Background(),
		pgvector.NewVector(make([]float32, EmbeddingDim)),
		nil,
		0.8,
		10,
	)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestCreateFileChunksRejectsDuplicateIdentity(t *testing.T) {
	client := &Client{}
	fileID := uuid.New()

	_, err := client.CreateFileChunks(context.Background(), []NewFileChunk{
		{FileID: fileID, ChunkIndex: 0, ContentSHA256: "aa", EmbeddingModel: "m"},
		{FileID: fileID, ChunkIndex: 0, ContentSHA256: "bb", EmbeddingModel: "m"},
	})
	assert.ErrorIs(t, err, ErrConflict)
}

func TestCreateFileChunksEmptyInputNoOps(t *testing.T) {
	client := &Client{}

	chunks, err := client.CreateFileChunks(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

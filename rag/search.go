// Package rag implements retrieval-augmented search over workspace file
// chunks: the user query is embedded and the relational store returns the
// top-K chunks by cosine similarity within a scope.
package rag

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"

	"github.com/nvisycom/server/common"
	"github.com/nvisycom/server/db"
	"github.com/nvisycom/server/llm"
)

var log = common.Component("rag")

// DefaultEmbeddingModel tags vectors produced by the search service. Queries
// only match chunks embedded with a compatible model.
const DefaultEmbeddingModel = "openai/text-embedding-3-small"

// Scope restricts a search to a file set or a whole workspace. Exactly one
// field is set.
type Scope struct {
	FileIDs     []uuid.UUID
	WorkspaceID *uuid.UUID
}

// FileScope searches within an explicit file list. An empty list yields an
// empty result.
func FileScope(fileIDs []uuid.UUID) Scope {
	return Scope{FileIDs: fileIDs}
}

// WorkspaceScope searches all non-deleted files of a workspace.
func WorkspaceScope(workspaceID uuid.UUID) Scope {
	return Scope{WorkspaceID: &workspaceID}
}

// Result is one scored chunk.
type Result struct {
	Chunk db.WorkspaceFileChunk `json:"chunk"`
	Score float64               `json:"score"`
}

// Service embeds queries and performs scoped similarity search.
type Service struct {
	store    *db.Client
	embedder llm.EmbeddingProvider
	model    string
}

// NewService builds a search service around the given embedder.
func NewService(store *db.Client, embedder llm.EmbeddingProvider, model string) *Service {
	if model == "" {
		model = DefaultEmbeddingModel
	}
	return &Service{store: store, embedder: embedder, model: model}
}

// Search embeds the query text and returns up to limit chunks within the
// scope whose cosine similarity is at least minScore, best first.
func (s *Service) Search(ctx context.Context, query string, scope Scope, minScore float64, limit int) ([]Result, error) {
	vectors, err := s.embedder.Embed(ctx, s.model, []string{query})
	if err != nil {
		return nil, fmt.Errorf("rag: embed query: %w", err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("rag: expected one query embedding, got %d", len(vectors))
	}

	return s.SearchByVector(ctx, pgvector.NewVector(vectors[0]), scope, minScore, limit)
}

// SearchByVector performs the scoped search with a caller-supplied query
// embedding.
func (s *Service) SearchByVector(ctx context.Context, embedding pgvector.Vector, scope Scope, minScore float64, limit int) ([]Result, error) {
	var scored []db.ScoredChunk
	var err error

	switch {
	case scope.WorkspaceID != nil:
		scored, err = s.store.SearchScoredChunksInWorkspace(ctx, embedding, *scope.WorkspaceID, minScore, limit)
	default:
		scored, err = s.store.SearchScoredChunksInFiles(ctx, embedding, scope.FileIDs, minScore, limit)
	}
	if err != nil {
		return nil, err
	}

	results := make([]Result, len(scored))
	for i, sc := range scored {
		results[i] = Result{Chunk: sc.Chunk, Score: sc.Score}
	}

	log.WithFields(map[string]any{
		"results":   len(results),
		"min_score": minScore,
	}).Debug("similarity search complete")
	return results, nil
}

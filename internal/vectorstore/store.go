package vectorstore

import (
	"context"

	"github.com/google/uuid"
)

type Chunk struct {
	ID         uuid.UUID
	DocumentID uuid.UUID
	OwnerID    uuid.UUID
	ChunkIndex int
	Content    string
	Embedding  []float32
	TokenCount int
}

// Filter restricts a search. An empty DocumentIDs list does not restrict by
// document; a zero OwnerID does not restrict by owner.
type Filter struct {
	DocumentIDs []uuid.UUID
	OwnerID     uuid.UUID
}

type SearchResult struct {
	ChunkID    uuid.UUID `json:"chunk_id"`
	DocumentID uuid.UUID `json:"document_id"`
	Content    string    `json:"content"`
	Score      float64   `json:"score"`
	ChunkIndex int       `json:"chunk_index"`
}

type VectorStore interface {
	// ReplaceChunks deletes every chunk of the document, then stores chunks.
	ReplaceChunks(ctx context.Context, documentID uuid.UUID, chunks []Chunk) error
	// Search returns at most topK chunks matching filter, best first, with
	// score >= minScore. No match is an empty slice, not an error.
	Search(ctx context.Context, query []float32, filter Filter, topK int, minScore float64) ([]SearchResult, error)
	DeleteDocument(ctx context.Context, documentID uuid.UUID) error
}

package rag

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/nikhilbhutani/coursegrader/internal/embedding"
	"github.com/nikhilbhutani/coursegrader/internal/vectorstore"
)

// Retrieval defaults.
const (
	DefaultTopK           = 10
	DefaultScoreThreshold = 0.5
)

type Retriever struct {
	store    vectorstore.VectorStore
	embedder embedding.Embedder
	topK     int
	minScore float64
}

func NewRetriever(store vectorstore.VectorStore, embedder embedding.Embedder, topK int, minScore float64) *Retriever {
	if topK <= 0 {
		topK = DefaultTopK
	}
	return &Retriever{store: store, embedder: embedder, topK: topK, minScore: minScore}
}

// Retrieve returns the chunks of the given documents most similar to query.
// An empty scope matches nothing.
func (r *Retriever) Retrieve(ctx context.Context, query string, scope []uuid.UUID) ([]vectorstore.SearchResult, error) {
	if len(scope) == 0 {
		return nil, nil
	}

	queryVec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	results, err := r.store.Search(ctx, queryVec, vectorstore.Filter{DocumentIDs: scope}, r.topK, r.minScore)
	if err != nil {
		return nil, fmt.Errorf("search chunks: %w", err)
	}
	return results, nil
}

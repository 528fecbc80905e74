package vectorstore

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreReplaceDropsOldChunks(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	doc := uuid.New()

	require.NoError(t, s.ReplaceChunks(ctx, doc, []Chunk{
		{Content: "old a", Embedding: []float32{1, 0}},
		{Content: "old b", Embedding: []float32{0, 1}},
	}))
	require.Equal(t, 2, s.Count(doc))

	require.NoError(t, s.ReplaceChunks(ctx, doc, []Chunk{{Content: "new", Embedding: []float32{1, 0}}}))
	require.Equal(t, 1, s.Count(doc))

	res, err := s.Search(ctx, []float32{1, 0}, Filter{DocumentIDs: []uuid.UUID{doc}}, 10, 0)
	require.NoError(t, err)
	require.Len(t, res, 1)
	require.Equal(t, "new", res[0].Content)
}

func TestMemoryStoreSearchRanksAndFilters(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	docA, docB := uuid.New(), uuid.New()
	owner := uuid.New()

	require.NoError(t, s.ReplaceChunks(ctx, docA, []Chunk{
		{OwnerID: owner, ChunkIndex: 0, Content: "exact", Embedding: []float32{1, 0}},
		{OwnerID: owner, ChunkIndex: 1, Content: "close", Embedding: []float32{1, 1}},
		{OwnerID: owner, ChunkIndex: 2, Content: "orthogonal", Embedding: []float32{0, 1}},
	}))
	require.NoError(t, s.ReplaceChunks(ctx, docB, []Chunk{
		{OwnerID: uuid.New(), Content: "other doc", Embedding: []float32{1, 0}},
	}))

	res, err := s.Search(ctx, []float32{1, 0}, Filter{DocumentIDs: []uuid.UUID{docA}}, 10, 0.5)
	require.NoError(t, err)
	require.Len(t, res, 2)
	require.Equal(t, "exact", res[0].Content)
	require.Equal(t, "close", res[1].Content)
	require.InDelta(t, 1.0, res[0].Score, 1e-9)

	res, err = s.Search(ctx, []float32{1, 0}, Filter{DocumentIDs: []uuid.UUID{docA}}, 1, 0)
	require.NoError(t, err)
	require.Len(t, res, 1)

	res, err = s.Search(ctx, []float32{1, 0}, Filter{OwnerID: owner}, 10, 0.9)
	require.NoError(t, err)
	require.Len(t, res, 1)
	require.Equal(t, docA, res[0].DocumentID)
}

func TestMemoryStoreSearchNoMatchIsEmpty(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	doc := uuid.New()
	require.NoError(t, s.ReplaceChunks(ctx, doc, []Chunk{{Content: "x", Embedding: []float32{0, 1}}}))

	res, err := s.Search(ctx, []float32{1, 0}, Filter{DocumentIDs: []uuid.UUID{doc}}, 10, 0.5)
	require.NoError(t, err)
	require.NotNil(t, res)
	require.Empty(t, res)

	require.NoError(t, s.DeleteDocument(ctx, doc))
	require.Zero(t, s.Count(doc))
}

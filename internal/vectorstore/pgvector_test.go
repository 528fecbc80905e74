package vectorstore

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestBuildSearchQueryUnfilteredUsesIndex(t *testing.T) {
	sql, args := buildSearchQuery([]float32{1, 0}, Filter{}, 5)

	require.NotContains(t, sql, "MATERIALIZED")
	require.NotContains(t, sql, "WHERE")
	require.True(t, strings.HasSuffix(sql, "ORDER BY embedding <=> $1 LIMIT $2"))
	require.Len(t, args, 2)
	require.Equal(t, 5, args[1])
}

func TestBuildSearchQueryFilteredRanksWithinScope(t *testing.T) {
	docs := []uuid.UUID{uuid.New(), uuid.New()}
	owner := uuid.New()

	sql, args := buildSearchQuery([]float32{1, 0}, Filter{DocumentIDs: docs, OwnerID: owner}, 3)

	require.Contains(t, sql, "WITH scoped AS MATERIALIZED")
	require.Contains(t, sql, "WHERE document_id = ANY($2) AND owner_id = $3")
	require.True(t, strings.HasSuffix(sql, "FROM scoped ORDER BY embedding <=> $1 LIMIT $4"))
	require.Equal(t, []any{args[0], docs, owner, 3}, args)
}

func TestBuildSearchQueryOwnerOnly(t *testing.T) {
	owner := uuid.New()

	sql, args := buildSearchQuery([]float32{1}, Filter{OwnerID: owner}, 10)

	require.Contains(t, sql, "WHERE owner_id = $2")
	require.True(t, strings.HasSuffix(sql, "LIMIT $3"))
	require.Equal(t, owner, args[1])
}

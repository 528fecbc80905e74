package vectorstore

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

type PgVectorStore struct {
	db *pgxpool.Pool
}

func NewPgVectorStore(db *pgxpool.Pool) *PgVectorStore {
	return &PgVectorStore{db: db}
}

func (s *PgVectorStore) ReplaceChunks(ctx context.Context, documentID uuid.UUID, chunks []Chunk) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "DELETE FROM document_chunks WHERE document_id = $1", documentID); err != nil {
		return fmt.Errorf("delete chunks: %w", err)
	}

	for _, c := range chunks {
		id := c.ID
		if id == uuid.Nil {
			id = uuid.New()
		}

		_, err := tx.Exec(ctx,
			`INSERT INTO document_chunks (id, document_id, owner_id, chunk_index, content, embedding, token_count)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			id, documentID, c.OwnerID, c.ChunkIndex, c.Content, pgvector.NewVector(c.Embedding), c.TokenCount,
		)
		if err != nil {
			return fmt.Errorf("insert chunk %d: %w", c.ChunkIndex, err)
		}
	}

	return tx.Commit(ctx)
}

func (s *PgVectorStore) Search(ctx context.Context, query []float32, filter Filter, topK int, minScore float64) ([]SearchResult, error) {
	if topK <= 0 {
		topK = 10
	}

	sql, args := buildSearchQuery(query, filter, topK)
	rows, err := s.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("similarity search: %w", err)
	}
	defer rows.Close()

	results := []SearchResult{}
	for rows.Next() {
		var r SearchResult
		if err := rows.Scan(&r.ChunkID, &r.DocumentID, &r.Content, &r.ChunkIndex, &r.Score); err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		if r.Score < minScore {
			continue
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

// buildSearchQuery ranks the whole table through the HNSW index when filter
// is empty. A filtered search ranks exactly over the matching rows instead:
// the index is post-filtered, so a narrow filter would otherwise lose matches
// that fall outside the index's candidate list.
func buildSearchQuery(query []float32, filter Filter, topK int) (string, []any) {
	args := []any{pgvector.NewVector(query)}
	var where []string
	if len(filter.DocumentIDs) > 0 {
		args = append(args, filter.DocumentIDs)
		where = append(where, fmt.Sprintf("document_id = ANY($%d)", len(args)))
	}
	if filter.OwnerID != uuid.Nil {
		args = append(args, filter.OwnerID)
		where = append(where, fmt.Sprintf("owner_id = $%d", len(args)))
	}
	args = append(args, topK)
	limit := fmt.Sprintf(" ORDER BY embedding <=> $1 LIMIT $%d", len(args))

	const columns = `id, document_id, content, chunk_index, 1 - (embedding <=> $1) AS score`
	if len(where) == 0 {
		return `SELECT ` + columns + ` FROM document_chunks` + limit, args
	}
	// MATERIALIZED keeps the planner from pushing the ORDER BY into the index.
	return `WITH scoped AS MATERIALIZED (
			SELECT id, document_id, content, chunk_index, embedding FROM document_chunks
			WHERE ` + strings.Join(where, " AND ") + `
		)
		SELECT ` + columns + ` FROM scoped` + limit, args
}

func (s *PgVectorStore) DeleteDocument(ctx context.Context, documentID uuid.UUID) error {
	_, err := s.db.Exec(ctx, "DELETE FROM document_chunks WHERE document_id = $1", documentID)
	if err != nil {
		return fmt.Errorf("delete chunks: %w", err)
	}
	return nil
}

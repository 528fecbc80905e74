package document

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nikhilbhutani/coursegrader/internal/models"
)

var ErrNotFound = errors.New("document not found")

type Repository interface {
	Create(ctx context.Context, doc *models.Document) error
	Get(ctx context.Context, id uuid.UUID) (*models.Document, error)
	List(ctx context.Context, ownerID uuid.UUID, limit, offset int) ([]models.Document, error)
	// ClaimForIndexing moves a pending document to in_progress in one
	// conditional update and stamps it with a fresh run id. It reports false
	// when the document was not pending.
	ClaimForIndexing(ctx context.Context, id uuid.UUID) (runID uuid.UUID, ok bool, err error)
	// FinishIndexing records the outcome of run. It reports false, writing
	// nothing, when the document is no longer in_progress under that run.
	FinishIndexing(ctx context.Context, id, runID uuid.UUID, status, errMsg string) (bool, error)
	// SetContent stores new content and moves the document to pending. It
	// reports false when a run that started at or after staleBefore holds
	// the document.
	SetContent(ctx context.Context, id uuid.UUID, content string, staleBefore time.Time) (bool, error)
	// Requeue moves the document back to pending. Documents awaiting content
	// and documents held by a run that started at or after staleBefore are
	// left alone and reported as false.
	Requeue(ctx context.Context, id uuid.UUID, staleBefore time.Time) (bool, error)
	// SetStatusUnless moves the document to status unless its current status
	// is one of except. It reports false when nothing changed.
	SetStatusUnless(ctx context.Context, id uuid.UUID, status string, except ...string) (bool, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type PgRepository struct {
	db *pgxpool.Pool
}

func NewPgRepository(db *pgxpool.Pool) *PgRepository {
	return &PgRepository{db: db}
}

const documentColumns = `id, owner_id, title, content, file_path, mime_type, indexing_status, indexing_error, created_at, updated_at`

func scanDocument(row pgx.Row) (*models.Document, error) {
	var d models.Document
	err := row.Scan(&d.ID, &d.OwnerID, &d.Title, &d.Content, &d.FilePath, &d.MimeType,
		&d.IndexingStatus, &d.IndexingError, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *PgRepository) Create(ctx context.Context, doc *models.Document) error {
	if doc.ID == uuid.Nil {
		doc.ID = uuid.New()
	}
	err := r.db.QueryRow(ctx,
		`INSERT INTO documents (id, owner_id, title, content, file_path, mime_type, indexing_status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING created_at, updated_at`,
		doc.ID, doc.OwnerID, doc.Title, doc.Content, doc.FilePath, doc.MimeType, doc.IndexingStatus,
	).Scan(&doc.CreatedAt, &doc.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

func (r *PgRepository) Get(ctx context.Context, id uuid.UUID) (*models.Document, error) {
	doc, err := scanDocument(r.db.QueryRow(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get document: %w", err)
	}
	return doc, nil
}

func (r *PgRepository) List(ctx context.Context, ownerID uuid.UUID, limit, offset int) ([]models.Document, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+documentColumns+` FROM documents
		 WHERE owner_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		ownerID, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	docs := []models.Document{}
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		docs = append(docs, *d)
	}
	return docs, rows.Err()
}

func (r *PgRepository) ClaimForIndexing(ctx context.Context, id uuid.UUID) (uuid.UUID, bool, error) {
	runID := uuid.New()
	tag, err := r.db.Exec(ctx,
		`UPDATE documents SET indexing_status = $2, indexing_error = '', indexing_run_id = $4, updated_at = now()
		 WHERE id = $1 AND indexing_status = $3`,
		id, models.IndexStatusInProgress, models.IndexStatusPending, runID,
	)
	if err != nil {
		return uuid.Nil, false, fmt.Errorf("claim document: %w", err)
	}
	if tag.RowsAffected() != 1 {
		return uuid.Nil, false, nil
	}
	return runID, true, nil
}

func (r *PgRepository) FinishIndexing(ctx context.Context, id, runID uuid.UUID, status, errMsg string) (bool, error) {
	tag, err := r.db.Exec(ctx,
		`UPDATE documents SET indexing_status = $3, indexing_error = $4, indexing_run_id = NULL, updated_at = now()
		 WHERE id = $1 AND indexing_run_id = $2 AND indexing_status = $5`,
		id, runID, status, errMsg, models.IndexStatusInProgress,
	)
	if err != nil {
		return false, fmt.Errorf("set indexing status %s: %w", status, err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *PgRepository) SetContent(ctx context.Context, id uuid.UUID, content string, staleBefore time.Time) (bool, error) {
	tag, err := r.db.Exec(ctx,
		`UPDATE documents SET content = $2, indexing_status = $3, indexing_error = '', indexing_run_id = NULL, updated_at = now()
		 WHERE id = $1 AND (indexing_status <> $4 OR updated_at < $5)`,
		id, content, models.IndexStatusPending, models.IndexStatusInProgress, staleBefore,
	)
	if err != nil {
		return false, fmt.Errorf("set content: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *PgRepository) Requeue(ctx context.Context, id uuid.UUID, staleBefore time.Time) (bool, error) {
	tag, err := r.db.Exec(ctx,
		`UPDATE documents SET indexing_status = $2, indexing_error = '', indexing_run_id = NULL, updated_at = now()
		 WHERE id = $1 AND indexing_status <> $3 AND (indexing_status <> $4 OR updated_at < $5)`,
		id, models.IndexStatusPending, models.IndexStatusAwaitingContent, models.IndexStatusInProgress, staleBefore,
	)
	if err != nil {
		return false, fmt.Errorf("requeue document: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *PgRepository) SetStatusUnless(ctx context.Context, id uuid.UUID, status string, except ...string) (bool, error) {
	if except == nil {
		except = []string{}
	}
	tag, err := r.db.Exec(ctx,
		`UPDATE documents SET indexing_status = $2, indexing_error = '', updated_at = now()
		 WHERE id = $1 AND NOT (indexing_status = ANY($3))`,
		id, status, except,
	)
	if err != nil {
		return false, fmt.Errorf("set indexing status %s: %w", status, err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *PgRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, "DELETE FROM documents WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

package grading

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nikhilbhutani/coursegrader/internal/models"
)

var (
	ErrSubmissionNotFound = errors.New("submission not found")
	ErrTestNotFound       = errors.New("test not found")
)

type SubmissionRepository interface {
	Create(ctx context.Context, sub *models.Submission) error
	Get(ctx context.Context, id uuid.UUID) (*models.Submission, error)
	// Claim moves a submitted submission to ai_grading_in_progress in one
	// conditional update. It reports false when the status was different.
	Claim(ctx context.Context, id uuid.UUID) (bool, error)
	// Update writes answers, status, total and error if the stored status
	// still equals fromStatus.
	Update(ctx context.Context, sub *models.Submission, fromStatus string) (bool, error)
	// Revert puts an ai_grading_in_progress submission back to submitted and
	// records why.
	Revert(ctx context.Context, id uuid.UUID, errMsg string) error
}

type TestRepository interface {
	Create(ctx context.Context, test *models.Test) error
	Get(ctx context.Context, id uuid.UUID) (*models.Test, error)
}

type PgSubmissionRepository struct {
	db *pgxpool.Pool
}

func NewPgSubmissionRepository(db *pgxpool.Pool) *PgSubmissionRepository {
	return &PgSubmissionRepository{db: db}
}

func (r *PgSubmissionRepository) Create(ctx context.Context, sub *models.Submission) error {
	if sub.ID == uuid.Nil {
		sub.ID = uuid.New()
	}
	err := r.db.QueryRow(ctx,
		`INSERT INTO submissions (id, test_id, student_id, answers, status, total_score_awarded)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING submitted_at, updated_at`,
		sub.ID, sub.TestID, sub.StudentID, sub.Answers, sub.Status, sub.TotalScoreAwarded,
	).Scan(&sub.SubmittedAt, &sub.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert submission: %w", err)
	}
	return nil
}

func (r *PgSubmissionRepository) Get(ctx context.Context, id uuid.UUID) (*models.Submission, error) {
	var s models.Submission
	err := r.db.QueryRow(ctx,
		`SELECT id, test_id, student_id, answers, status, total_score_awarded, grading_error, submitted_at, updated_at
		 FROM submissions WHERE id = $1`, id,
	).Scan(&s.ID, &s.TestID, &s.StudentID, &s.Answers, &s.Status, &s.TotalScoreAwarded, &s.GradingError, &s.SubmittedAt, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrSubmissionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get submission: %w", err)
	}
	return &s, nil
}

func (r *PgSubmissionRepository) Claim(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := r.db.Exec(ctx,
		`UPDATE submissions SET status = $2, grading_error = '', updated_at = now()
		 WHERE id = $1 AND status = $3`,
		id, models.SubmissionAIGradingInProgress, models.SubmissionSubmitted,
	)
	if err != nil {
		return false, fmt.Errorf("claim submission: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *PgSubmissionRepository) Update(ctx context.Context, sub *models.Submission, fromStatus string) (bool, error) {
	tag, err := r.db.Exec(ctx,
		`UPDATE submissions
		 SET answers = $2, status = $3, total_score_awarded = $4, grading_error = $5, updated_at = now()
		 WHERE id = $1 AND status = $6`,
		sub.ID, sub.Answers, sub.Status, sub.TotalScoreAwarded, sub.GradingError, fromStatus,
	)
	if err != nil {
		return false, fmt.Errorf("update submission: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *PgSubmissionRepository) Revert(ctx context.Context, id uuid.UUID, errMsg string) error {
	_, err := r.db.Exec(ctx,
		`UPDATE submissions SET status = $2, grading_error = $3, updated_at = now()
		 WHERE id = $1 AND status = $4`,
		id, models.SubmissionSubmitted, errMsg, models.SubmissionAIGradingInProgress,
	)
	if err != nil {
		return fmt.Errorf("revert submission: %w", err)
	}
	return nil
}

type PgTestRepository struct {
	db *pgxpool.Pool
}

func NewPgTestRepository(db *pgxpool.Pool) *PgTestRepository {
	return &PgTestRepository{db: db}
}

func (r *PgTestRepository) Create(ctx context.Context, test *models.Test) error {
	if test.ID == uuid.Nil {
		test.ID = uuid.New()
	}
	if test.SourceDocumentIDs == nil {
		test.SourceDocumentIDs = []uuid.UUID{}
	}
	err := r.db.QueryRow(ctx,
		`INSERT INTO tests (id, owner_id, title, questions, source_document_ids)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING created_at`,
		test.ID, test.OwnerID, test.Title, test.Questions, test.SourceDocumentIDs,
	).Scan(&test.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert test: %w", err)
	}
	return nil
}

func (r *PgTestRepository) Get(ctx context.Context, id uuid.UUID) (*models.Test, error) {
	var t models.Test
	err := r.db.QueryRow(ctx,
		`SELECT id, owner_id, title, questions, source_document_ids, created_at
		 FROM tests WHERE id = $1`, id,
	).Scan(&t.ID, &t.OwnerID, &t.Title, &t.Questions, &t.SourceDocumentIDs, &t.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrTestNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get test: %w", err)
	}
	return &t, nil
}

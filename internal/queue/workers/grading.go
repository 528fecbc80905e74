package workers

import (
	"context"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/nikhilbhutani/coursegrader/internal/queue"
)

type Grader interface {
	RunGrading(ctx context.Context, submissionID uuid.UUID) error
}

// GradingWorker consumes submission:grade tasks.
type GradingWorker struct {
	grader Grader
}

func NewGradingWorker(grader Grader) *GradingWorker {
	return &GradingWorker{grader: grader}
}

func (w *GradingWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	id, err := queue.ParseID(t)
	if err != nil {
		return err
	}
	return w.grader.RunGrading(ctx, id)
}

// Register wires both workers into the registry.
func Register(r *queue.HandlersRegistry, indexer Indexer, grader Grader) {
	r.Register(queue.TypeDocumentIndex, NewIndexingWorker(indexer))
	r.Register(queue.TypeSubmissionGrade, NewGradingWorker(grader))
}

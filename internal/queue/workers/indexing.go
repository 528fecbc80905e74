package workers

import (
	"context"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/nikhilbhutani/coursegrader/internal/queue"
)

type Indexer interface {
	RunIndexing(ctx context.Context, documentID uuid.UUID) error
}

// IndexingWorker consumes document:index tasks.
type IndexingWorker struct {
	indexer Indexer
}

func NewIndexingWorker(indexer Indexer) *IndexingWorker {
	return &IndexingWorker{indexer: indexer}
}

func (w *IndexingWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	id, err := queue.ParseID(t)
	if err != nil {
		return err
	}
	return w.indexer.RunIndexing(ctx, id)
}

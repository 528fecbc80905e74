package workers

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"

	"github.com/nikhilbhutani/coursegrader/internal/queue"
)

type fakeIndexer struct {
	ids []uuid.UUID
	err error
}

func (f *fakeIndexer) RunIndexing(_ context.Context, id uuid.UUID) error {
	f.ids = append(f.ids, id)
	return f.err
}

type fakeGrader struct {
	ids []uuid.UUID
}

func (f *fakeGrader) RunGrading(_ context.Context, id uuid.UUID) error {
	f.ids = append(f.ids, id)
	return nil
}

func TestIndexingWorkerCallsOrchestrator(t *testing.T) {
	idx := &fakeIndexer{}
	id := uuid.New()

	err := NewIndexingWorker(idx).ProcessTask(context.Background(), queue.NewIDTask(queue.TypeDocumentIndex, id))
	require.NoError(t, err)
	require.Equal(t, []uuid.UUID{id}, idx.ids)
}

func TestIndexingWorkerPropagatesError(t *testing.T) {
	idx := &fakeIndexer{err: errors.New("db down")}

	err := NewIndexingWorker(idx).ProcessTask(context.Background(), queue.NewIDTask(queue.TypeDocumentIndex, uuid.New()))
	require.ErrorContains(t, err, "db down")
	require.NotErrorIs(t, err, asynq.SkipRetry)
}

func TestWorkersSkipRetryOnBadPayload(t *testing.T) {
	idx := &fakeIndexer{}
	gr := &fakeGrader{}

	err := NewIndexingWorker(idx).ProcessTask(context.Background(), asynq.NewTask(queue.TypeDocumentIndex, []byte("x")))
	require.ErrorIs(t, err, asynq.SkipRetry)

	err = NewGradingWorker(gr).ProcessTask(context.Background(), asynq.NewTask(queue.TypeSubmissionGrade, []byte("")))
	require.ErrorIs(t, err, asynq.SkipRetry)

	require.Empty(t, idx.ids)
	require.Empty(t, gr.ids)
}

func TestRegisterRoutesByType(t *testing.T) {
	idx := &fakeIndexer{}
	gr := &fakeGrader{}
	r := queue.NewHandlersRegistry()
	Register(r, idx, gr)

	subID := uuid.New()
	require.NoError(t, r.Mux().ProcessTask(context.Background(), queue.NewIDTask(queue.TypeSubmissionGrade, subID)))
	require.Equal(t, []uuid.UUID{subID}, gr.ids)
	require.Empty(t, idx.ids)
}

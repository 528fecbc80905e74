package document

import (
	"context"
	"errors"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/nikhilbhutani/coursegrader/internal/models"
)

type memRepo struct {
	mu     sync.Mutex
	docs   map[uuid.UUID]*models.Document
	runs   map[uuid.UUID]uuid.UUID
	setErr error
}

func newMemRepo(docs ...*models.Document) *memRepo {
	r := &memRepo{docs: make(map[uuid.UUID]*models.Document), runs: make(map[uuid.UUID]uuid.UUID)}
	for _, d := range docs {
		r.docs[d.ID] = d
	}
	return r
}

func (r *memRepo) doc(id uuid.UUID) models.Document {
	r.mu.Lock()
	defer r.mu.Unlock()
	return *r.docs[id]
}

func (r *memRepo) Create(_ context.Context, doc *models.Document) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *doc
	r.docs[doc.ID] = &cp
	return nil
}

func (r *memRepo) Get(_ context.Context, id uuid.UUID) (*models.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.docs[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *d
	return &cp, nil
}

func (r *memRepo) List(_ context.Context, ownerID uuid.UUID, _, _ int) ([]models.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Document
	for _, d := range r.docs {
		if d.OwnerID == ownerID {
			out = append(out, *d)
		}
	}
	return out, nil
}

func (r *memRepo) ClaimForIndexing(_ context.Context, id uuid.UUID) (uuid.UUID, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.docs[id]
	if !ok || d.IndexingStatus != models.IndexStatusPending {
		return uuid.Nil, false, nil
	}
	runID := uuid.New()
	r.runs[id] = runID
	d.IndexingStatus = models.IndexStatusInProgress
	d.IndexingError = ""
	d.UpdatedAt = time.Now()
	return runID, true, nil
}

func (r *memRepo) FinishIndexing(ctx context.Context, id, runID uuid.UUID, status, errMsg string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.setErr != nil {
		return false, r.setErr
	}
	d, ok := r.docs[id]
	if !ok || d.IndexingStatus != models.IndexStatusInProgress || r.runs[id] != runID {
		return false, nil
	}
	delete(r.runs, id)
	d.IndexingStatus = status
	d.IndexingError = errMsg
	d.UpdatedAt = time.Now()
	return true, nil
}

// heldBy reports whether a run younger than staleBefore holds d.
func heldBy(d *models.Document, staleBefore time.Time) bool {
	return d.IndexingStatus == models.IndexStatusInProgress && !d.UpdatedAt.Before(staleBefore)
}

func (r *memRepo) SetContent(_ context.Context, id uuid.UUID, content string, staleBefore time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.docs[id]
	if !ok || heldBy(d, staleBefore) {
		return false, nil
	}
	delete(r.runs, id)
	d.Content = content
	d.IndexingStatus = models.IndexStatusPending
	d.IndexingError = ""
	d.UpdatedAt = time.Now()
	return true, nil
}

func (r *memRepo) Requeue(_ context.Context, id uuid.UUID, staleBefore time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.docs[id]
	if !ok || d.IndexingStatus == models.IndexStatusAwaitingContent || heldBy(d, staleBefore) {
		return false, nil
	}
	delete(r.runs, id)
	d.IndexingStatus = models.IndexStatusPending
	d.IndexingError = ""
	d.UpdatedAt = time.Now()
	return true, nil
}

func (r *memRepo) SetStatusUnless(_ context.Context, id uuid.UUID, status string, except ...string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.docs[id]
	if !ok || slices.Contains(except, d.IndexingStatus) {
		return false, nil
	}
	d.IndexingStatus = status
	d.IndexingError = ""
	return true, nil
}

func (r *memRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.docs[id]; !ok {
		return ErrNotFound
	}
	delete(r.docs, id)
	return nil
}

type fakeEmbedder struct {
	calls  atomic.Int32
	failAt int32 // 1-based call number that fails; 0 never fails
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	n := f.calls.Add(1)
	if f.failAt > 0 && n >= f.failAt {
		return nil, errors.New("embedding provider unavailable")
	}
	return []float32{float32(len(text)), 1}, nil
}

// blockingEmbedder holds every call until release is closed and signals
// started on the first one.
type blockingEmbedder struct {
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func newBlockingEmbedder() *blockingEmbedder {
	return &blockingEmbedder{started: make(chan struct{}), release: make(chan struct{})}
}

func (b *blockingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	b.once.Do(func() { close(b.started) })
	select {
	case <-b.release:
		return []float32{float32(len(text)), 1}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

type fakeExtractor struct {
	text    string
	err     error
	located []string
}

func (f *fakeExtractor) ExtractText(_ context.Context, locator, _ string) (string, error) {
	f.located = append(f.located, locator)
	return f.text, f.err
}

func pendingDoc(content string) *models.Document {
	return &models.Document{
		ID:             uuid.New(),
		OwnerID:        uuid.New(),
		Title:          "notes",
		Content:        content,
		IndexingStatus: models.IndexStatusPending,
	}
}

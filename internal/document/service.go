package document

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nikhilbhutani/coursegrader/internal/models"
	"github.com/nikhilbhutani/coursegrader/internal/queue"
	"github.com/nikhilbhutani/coursegrader/internal/storage"
	"github.com/nikhilbhutani/coursegrader/internal/vectorstore"
)

var (
	ErrContentNotReady    = errors.New("document content is still being generated")
	ErrIndexingInProgress = errors.New("document is being indexed")
)

type Dispatcher interface {
	Dispatch(ctx context.Context, taskType string, id uuid.UUID, inline func(context.Context) error)
}

// DefaultStaleAfter outlives the queue's indexing task timeout, so a run
// older than this has been abandoned by its worker.
const DefaultStaleAfter = 15 * time.Minute

type Service struct {
	repo       Repository
	store      vectorstore.VectorStore
	files      storage.Storage
	dispatcher Dispatcher
	indexer    *Indexer
	staleAfter time.Duration
}

type ServiceOption func(*Service)

// WithStaleAfter sets how long an in_progress run holds a document before
// RegenerateContent and Resubmit may take it over.
func WithStaleAfter(d time.Duration) ServiceOption {
	return func(s *Service) {
		if d > 0 {
			s.staleAfter = d
		}
	}
}

func NewService(repo Repository, store vectorstore.VectorStore, files storage.Storage, d Dispatcher, indexer *Indexer, opts ...ServiceOption) *Service {
	s := &Service{repo: repo, store: store, files: files, dispatcher: d, indexer: indexer, staleAfter: DefaultStaleAfter}
	for _, o := range opts {
		o(s)
	}
	return s
}

type CreateRequest struct {
	OwnerID  uuid.UUID
	Title    string
	Content  string
	FilePath string
	MimeType string
	// AwaitingContent creates the document before its content exists.
	// Indexing starts once RegenerateContent supplies it.
	AwaitingContent bool
}

func (s *Service) Create(ctx context.Context, req CreateRequest) (*models.Document, error) {
	doc := &models.Document{
		ID:             uuid.New(),
		OwnerID:        req.OwnerID,
		Title:          req.Title,
		Content:        req.Content,
		FilePath:       req.FilePath,
		MimeType:       req.MimeType,
		IndexingStatus: models.IndexStatusPending,
	}
	if req.AwaitingContent {
		doc.IndexingStatus = models.IndexStatusAwaitingContent
	}

	if err := s.repo.Create(ctx, doc); err != nil {
		return nil, err
	}

	if doc.IndexingStatus == models.IndexStatusPending {
		s.dispatchIndexing(ctx, doc.ID)
	}
	return doc, nil
}

type UploadRequest struct {
	OwnerID  uuid.UUID
	Title    string
	Filename string
	MimeType string
	Data     io.Reader
}

// Upload stores the file and creates a document pointing at it.
func (s *Service) Upload(ctx context.Context, req UploadRequest) (*models.Document, error) {
	docID := uuid.New()
	path := fmt.Sprintf("%s/%s%s", req.OwnerID, docID, strings.ToLower(filepath.Ext(req.Filename)))

	if err := s.files.Upload(ctx, path, req.Data, req.MimeType); err != nil {
		return nil, fmt.Errorf("upload to storage: %w", err)
	}

	title := req.Title
	if title == "" {
		title = req.Filename
	}

	doc := &models.Document{
		ID:             docID,
		OwnerID:        req.OwnerID,
		Title:          title,
		FilePath:       path,
		MimeType:       req.MimeType,
		IndexingStatus: models.IndexStatusPending,
	}
	if err := s.repo.Create(ctx, doc); err != nil {
		return nil, err
	}

	s.dispatchIndexing(ctx, doc.ID)
	return doc, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.Document, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, ownerID uuid.UUID, limit, offset int) ([]models.Document, error) {
	return s.repo.List(ctx, ownerID, limit, offset)
}

// MarkContentGenerating parks the document until new content arrives.
func (s *Service) MarkContentGenerating(ctx context.Context, id uuid.UUID) error {
	changed, err := s.repo.SetStatusUnless(ctx, id, models.IndexStatusAwaitingContent, models.IndexStatusInProgress)
	if err != nil {
		return err
	}
	if !changed {
		if _, err := s.repo.Get(ctx, id); err != nil {
			return err
		}
		return ErrIndexingInProgress
	}
	return nil
}

// RegenerateContent replaces the document text and re-indexes it. A document
// that is being indexed is refused with ErrIndexingInProgress.
func (s *Service) RegenerateContent(ctx context.Context, id uuid.UUID, content string) error {
	changed, err := s.repo.SetContent(ctx, id, content, s.staleBefore())
	if err != nil {
		return err
	}
	if !changed {
		if _, err := s.repo.Get(ctx, id); err != nil {
			return err
		}
		return ErrIndexingInProgress
	}
	s.dispatchIndexing(ctx, id)
	return nil
}

// Resubmit resets the document to pending and dispatches indexing again.
// It is the manual recovery path for failed, stuck or lost runs; a run
// younger than the stale threshold is left to finish.
func (s *Service) Resubmit(ctx context.Context, id uuid.UUID) error {
	changed, err := s.repo.Requeue(ctx, id, s.staleBefore())
	if err != nil {
		return err
	}
	if !changed {
		doc, err := s.repo.Get(ctx, id)
		if err != nil {
			return err
		}
		if doc.IndexingStatus == models.IndexStatusAwaitingContent {
			return ErrContentNotReady
		}
		return ErrIndexingInProgress
	}
	s.dispatchIndexing(ctx, id)
	return nil
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	doc, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}

	if err := s.store.DeleteDocument(ctx, id); err != nil {
		return err
	}

	if doc.FilePath != "" {
		if err := s.files.Delete(ctx, doc.FilePath); err != nil {
			slog.Warn("failed to delete document file", "document_id", id, "path", doc.FilePath, "error", err)
		}
	}

	return s.repo.Delete(ctx, id)
}

func (s *Service) dispatchIndexing(ctx context.Context, id uuid.UUID) {
	s.dispatcher.Dispatch(ctx, queue.TypeDocumentIndex, id, func(ctx context.Context) error {
		return s.indexer.RunIndexing(ctx, id)
	})
}

func (s *Service) staleBefore() time.Time {
	return time.Now().Add(-s.staleAfter)
}

package document

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/nikhilbhutani/coursegrader/internal/embedding"
	"github.com/nikhilbhutani/coursegrader/internal/metrics"
	"github.com/nikhilbhutani/coursegrader/internal/models"
	"github.com/nikhilbhutani/coursegrader/internal/vectorstore"
	"github.com/nikhilbhutani/coursegrader/pkg/chunker"
)

var errEmptyContent = errors.New("document has no text content")

const embedBatchSize = 32

// Indexer drives a document from pending to completed or failed.
type Indexer struct {
	repo      Repository
	extractor ContentExtractor
	chunker   chunker.Chunker
	embedder  embedding.Embedder
	store     vectorstore.VectorStore
	opts      chunker.ChunkOptions
	// parallel embedding calls per run; 1 embeds sequentially
	concurrency int
}

type IndexerOption func(*Indexer)

func WithChunkOptions(opts chunker.ChunkOptions) IndexerOption {
	return func(i *Indexer) { i.opts = opts }
}

func WithEmbedConcurrency(n int) IndexerOption {
	return func(i *Indexer) {
		if n > 0 {
			i.concurrency = n
		}
	}
}

func NewIndexer(repo Repository, extractor ContentExtractor, ch chunker.Chunker, emb embedding.Embedder, store vectorstore.VectorStore, opts ...IndexerOption) *Indexer {
	i := &Indexer{
		repo:        repo,
		extractor:   extractor,
		chunker:     ch,
		embedder:    emb,
		store:       store,
		opts:        chunker.DefaultOptions(),
		concurrency: 1,
	}
	for _, o := range opts {
		o(i)
	}
	return i
}

// RunIndexing indexes one document. Duplicate deliveries and documents that
// are not pending are no-ops. Failures inside the run are recorded on the
// document; the returned error is non-nil only when that record could not be
// written. A run whose document was requeued or given new content while it
// worked records nothing.
func (i *Indexer) RunIndexing(ctx context.Context, documentID uuid.UUID) error {
	log := slog.With("document_id", documentID)

	doc, err := i.repo.Get(ctx, documentID)
	if errors.Is(err, ErrNotFound) {
		log.Info("document not found, skipping indexing")
		metrics.IndexingRun(metrics.OutcomeSkipped)
		return nil
	}
	if err != nil {
		return fmt.Errorf("load document: %w", err)
	}

	switch doc.IndexingStatus {
	case models.IndexStatusAwaitingContent:
		log.Info("content still being generated, deferring indexing")
		metrics.IndexingRun(metrics.OutcomeDeferred)
		return nil
	case models.IndexStatusPending:
	default:
		log.Info("document not pending, skipping indexing", "status", doc.IndexingStatus)
		metrics.IndexingRun(metrics.OutcomeSkipped)
		return nil
	}

	runID, claimed, err := i.repo.ClaimForIndexing(ctx, documentID)
	if err != nil {
		return err
	}
	if !claimed {
		log.Info("document claimed by another run, skipping indexing")
		metrics.IndexingRun(metrics.OutcomeSkipped)
		return nil
	}
	log = log.With("run_id", runID)

	// The outcome is recorded even when the caller has gone away.
	finishCtx := context.WithoutCancel(ctx)

	n, err := i.reloadAndIndex(ctx, documentID)
	if err != nil {
		log.Error("indexing failed", "error", err)
		recorded, ferr := i.repo.FinishIndexing(finishCtx, documentID, runID, models.IndexStatusFailed, err.Error())
		if ferr != nil {
			return fmt.Errorf("record indexing failure: %w", ferr)
		}
		if !recorded {
			log.Info("document changed during run, discarding failure")
			metrics.IndexingRun(metrics.OutcomeSkipped)
			return nil
		}
		metrics.IndexingRun(metrics.OutcomeFailed)
		return nil
	}

	recorded, err := i.repo.FinishIndexing(finishCtx, documentID, runID, models.IndexStatusCompleted, "")
	if err != nil {
		return fmt.Errorf("record indexing success: %w", err)
	}
	if !recorded {
		log.Info("document changed during run, discarding result")
		metrics.IndexingRun(metrics.OutcomeSkipped)
		return nil
	}
	metrics.IndexingRun(metrics.OutcomeCompleted)
	metrics.ChunksIndexed(n)
	log.Info("document indexed", "chunks", n)
	return nil
}

// reloadAndIndex indexes the content as of the claim; it may have been
// replaced between the status check and the claim.
func (i *Indexer) reloadAndIndex(ctx context.Context, documentID uuid.UUID) (int, error) {
	doc, err := i.repo.Get(ctx, documentID)
	if err != nil {
		return 0, fmt.Errorf("reload document: %w", err)
	}
	return i.index(ctx, doc)
}

func (i *Indexer) index(ctx context.Context, doc *models.Document) (int, error) {
	content, err := i.resolveContent(ctx, doc)
	if err != nil {
		return 0, err
	}
	if strings.TrimSpace(content) == "" {
		return 0, errEmptyContent
	}

	windows := i.chunker.Chunk(content, i.opts)
	if len(windows) == 0 {
		return 0, nil
	}

	chunks, err := i.embedAll(ctx, doc, windows)
	if err != nil {
		return 0, err
	}

	if err := i.store.ReplaceChunks(ctx, doc.ID, chunks); err != nil {
		return 0, fmt.Errorf("store chunks: %w", err)
	}
	return len(chunks), nil
}

func (i *Indexer) resolveContent(ctx context.Context, doc *models.Document) (string, error) {
	if strings.TrimSpace(doc.Content) != "" {
		return doc.Content, nil
	}
	if doc.FilePath == "" {
		return "", errEmptyContent
	}
	text, err := i.extractor.ExtractText(ctx, doc.FilePath, doc.MimeType)
	if err != nil {
		return "", fmt.Errorf("extract content: %w", err)
	}
	return text, nil
}

// embedAll embeds every window. Embedders that accept batches get groups of
// embedBatchSize windows per call. The first failure cancels the rest and
// fails the whole run.
func (i *Indexer) embedAll(ctx context.Context, doc *models.Document, windows []chunker.TextChunk) ([]vectorstore.Chunk, error) {
	chunks := make([]vectorstore.Chunk, len(windows))

	size := 1
	batcher, batched := i.embedder.(embedding.BatchEmbedder)
	if batched {
		size = embedBatchSize
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(i.concurrency)
	for start := 0; start < len(windows); start += size {
		group := windows[start:min(start+size, len(windows))]
		g.Go(func() error {
			var vecs [][]float32
			if batched {
				texts := make([]string, len(group))
				for k, w := range group {
					texts[k] = w.Content
				}
				var err error
				vecs, err = batcher.EmbedBatch(gctx, texts)
				if err != nil {
					return fmt.Errorf("embed chunks %d-%d: %w", group[0].Index, group[len(group)-1].Index, err)
				}
				if len(vecs) != len(group) {
					return fmt.Errorf("embed chunks %d-%d: got %d vectors", group[0].Index, group[len(group)-1].Index, len(vecs))
				}
			} else {
				vec, err := i.embedder.Embed(gctx, group[0].Content)
				if err != nil {
					return fmt.Errorf("embed chunk %d: %w", group[0].Index, err)
				}
				vecs = [][]float32{vec}
			}

			for k, w := range group {
				chunks[start+k] = vectorstore.Chunk{
					DocumentID: doc.ID,
					OwnerID:    doc.OwnerID,
					ChunkIndex: w.Index,
					Content:    w.Content,
					Embedding:  vecs[k],
					TokenCount: w.TokenCount(),
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return chunks, nil
}

// Package app assembles the indexing and grading components shared by the
// API server and the worker.
package app

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/nikhilbhutani/coursegrader/internal/cache"
	"github.com/nikhilbhutani/coursegrader/internal/config"
	"github.com/nikhilbhutani/coursegrader/internal/database"
	"github.com/nikhilbhutani/coursegrader/internal/document"
	"github.com/nikhilbhutani/coursegrader/internal/embedding"
	"github.com/nikhilbhutani/coursegrader/internal/grading"
	"github.com/nikhilbhutani/coursegrader/internal/llm"
	"github.com/nikhilbhutani/coursegrader/internal/queue"
	"github.com/nikhilbhutani/coursegrader/internal/rag"
	"github.com/nikhilbhutani/coursegrader/internal/storage"
	"github.com/nikhilbhutani/coursegrader/internal/vectorstore"
	"github.com/nikhilbhutani/coursegrader/migrations"
	"github.com/nikhilbhutani/coursegrader/pkg/chunker"
	"github.com/nikhilbhutani/coursegrader/pkg/tokenizer"
)

const cachePrefix = "coursegrader:"

type App struct {
	Pool  *pgxpool.Pool
	Redis *redis.Client
	Cache *cache.Cache
	// Queue is nil in inline mode.
	Queue *queue.Client

	Documents *document.Service
	Indexer   *document.Indexer
	Retriever *rag.Retriever
	Responder *rag.Responder
	Grading   *grading.Service
	Grader    *grading.Grader
}

func New(ctx context.Context, cfg *config.Config) (*App, error) {
	pool, err := database.NewPool(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		slog.Warn("redis unavailable, embedding cache will miss", "error", err)
	}

	tok, err := tokenizer.Resolve(cfg.Indexing.Encoding, cfg.Indexing.EmbeddingModel)
	if err != nil {
		pool.Close()
		_ = rdb.Close()
		return nil, fmt.Errorf("init tokenizer: %w", err)
	}

	a := &App{Pool: pool, Redis: rdb, Cache: cache.NewCache(rdb, cachePrefix)}

	var dispatcher *queue.Dispatcher
	if cfg.Inline() {
		dispatcher = queue.NewInlineDispatcher()
	} else {
		a.Queue = queue.NewClient(cfg.Redis)
		dispatcher = queue.NewDispatcher(a.Queue)
	}

	gw := llm.NewGateway(cfg.LLM)
	embedSvc := embedding.NewService(gw, cfg.Indexing.EmbeddingProvider, cfg.Indexing.EmbeddingModel, cfg.Indexing.EmbeddingDims)
	embedder := embedding.NewCachedEmbedder(embedSvc, a.Cache, embedSvc.Model(), cfg.Indexing.EmbeddingCacheTTL)

	store := vectorstore.NewPgVectorStore(pool)
	files := newStorage(cfg.Storage)

	var ocr document.OCR
	if t := document.NewTesseractOCR(cfg.Indexing.OCRLanguage); t != nil {
		ocr = t
	} else {
		slog.Info("tesseract not found, image uploads will fail indexing")
	}

	docRepo := document.NewPgRepository(pool)
	a.Indexer = document.NewIndexer(
		docRepo,
		document.NewContentExtractor(files, ocr),
		chunker.New(tok),
		embedder,
		store,
		document.WithChunkOptions(chunker.ChunkOptions{
			MaxTokens:     cfg.Indexing.MaxTokens,
			OverlapTokens: cfg.Indexing.OverlapTokens,
		}),
		document.WithEmbedConcurrency(cfg.Indexing.EmbedConcurrency),
	)
	a.Documents = document.NewService(docRepo, store, files, dispatcher, a.Indexer,
		document.WithStaleAfter(cfg.Indexing.StaleAfter),
	)

	a.Retriever = rag.NewRetriever(store, embedder, cfg.RAG.TopK, cfg.RAG.ScoreThreshold)
	a.Responder = rag.NewResponder(a.Retriever, llm.NewCompleter(gw, cfg.RAG.Model))

	gradingCompleter := llm.NewCompleter(gw, cfg.Grading.Model)
	subs := grading.NewPgSubmissionRepository(pool)
	tests := grading.NewPgTestRepository(pool)
	a.Grader = grading.NewGrader(subs, tests, rag.NewResponder(a.Retriever, gradingCompleter, rag.WithJSONMode()), gradingCompleter)
	a.Grading = grading.NewService(subs, tests, dispatcher, a.Grader)

	return a, nil
}

// Migrations returns the migration files to apply: the directory named in
// config, or the ones compiled into the binary.
func Migrations(cfg config.DatabaseConfig) fs.FS {
	if cfg.MigrationsPath != "" {
		return os.DirFS(cfg.MigrationsPath)
	}
	return migrations.FS
}

func (a *App) Close() {
	if a.Queue != nil {
		if err := a.Queue.Close(); err != nil {
			slog.Warn("close queue client", "error", err)
		}
	}
	if err := a.Redis.Close(); err != nil {
		slog.Warn("close redis", "error", err)
	}
	a.Pool.Close()
}

func newStorage(cfg config.StorageConfig) storage.Storage {
	if cfg.SupabaseURL == "" {
		slog.Warn("SUPABASE_URL not set, uploads are kept in memory")
		return storage.NewMemoryStorage()
	}
	return storage.NewSupabaseStorage(cfg.SupabaseURL, cfg.SupabaseKey, cfg.Bucket)
}

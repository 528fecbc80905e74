package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nikhilbhutani/coursegrader/internal/cache"
)

// CachedEmbedder reuses vectors for text it has already embedded.
// Cache failures fall through to the wrapped embedder.
type CachedEmbedder struct {
	next  Embedder
	cache *cache.Cache
	model string
	ttl   time.Duration
}

func NewCachedEmbedder(next Embedder, c *cache.Cache, model string, ttl time.Duration) *CachedEmbedder {
	return &CachedEmbedder{next: next, cache: c, model: model, ttl: ttl}
}

func (e *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if vec, ok := e.lookup(ctx, text); ok {
		return vec, nil
	}

	vec, err := e.next.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	e.store(ctx, text, vec)
	return vec, nil
}

// EmbedBatch serves cached texts from the cache and sends only the misses
// upstream, batched when the wrapped embedder supports it.
func (e *CachedEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	var missing []int
	for i, text := range texts {
		if vec, ok := e.lookup(ctx, text); ok {
			out[i] = vec
			continue
		}
		missing = append(missing, i)
	}
	if len(missing) == 0 {
		return out, nil
	}

	pending := make([]string, len(missing))
	for k, i := range missing {
		pending[k] = texts[i]
	}

	vecs, err := e.embedMisses(ctx, pending)
	if err != nil {
		return nil, err
	}
	for k, i := range missing {
		out[i] = vecs[k]
		e.store(ctx, pending[k], vecs[k])
	}
	return out, nil
}

func (e *CachedEmbedder) embedMisses(ctx context.Context, texts []string) ([][]float32, error) {
	if b, ok := e.next.(BatchEmbedder); ok {
		vecs, err := b.EmbedBatch(ctx, texts)
		if err != nil {
			return nil, err
		}
		if len(vecs) != len(texts) {
			return nil, fmt.Errorf("got %d vectors for %d texts", len(vecs), len(texts))
		}
		return vecs, nil
	}

	vecs := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := e.next.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		vecs[i] = vec
	}
	return vecs, nil
}

func (e *CachedEmbedder) lookup(ctx context.Context, text string) ([]float32, bool) {
	var vec []float32
	err := e.cache.Get(ctx, cacheKey(e.model, text), &vec)
	if err == nil && len(vec) > 0 {
		return vec, true
	}
	if err != nil && !errors.Is(err, cache.ErrMiss) {
		slog.Warn("embedding cache read failed", "error", err)
	}
	return nil, false
}

func (e *CachedEmbedder) store(ctx context.Context, text string, vec []float32) {
	if err := e.cache.Set(ctx, cacheKey(e.model, text), vec, e.ttl); err != nil {
		slog.Warn("embedding cache write failed", "error", err)
	}
}

func cacheKey(model, text string) string {
	sum := sha256.Sum256([]byte(text))
	return model + ":" + hex.EncodeToString(sum[:])
}

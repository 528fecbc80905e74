package embedding

import (
	"context"
	"errors"
	"fmt"

	"github.com/nikhilbhutani/coursegrader/internal/llm"
)

const batchSize = 100

// Embedder turns text into a fixed-width vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// BatchEmbedder embeds many texts per provider call. Output order matches
// input.
type BatchEmbedder interface {
	Embedder
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// ProviderError reports a failed or unusable upstream embedding call.
type ProviderError struct {
	Provider string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("embedding provider %s: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

var errNoVector = errors.New("response has no embedding vector")

type Service struct {
	gateway  llm.Gateway
	provider string
	model    string
	dims     int
}

// NewService creates an embedder over the gateway. dims <= 0 disables the
// vector width check.
func NewService(gw llm.Gateway, provider, model string, dims int) *Service {
	if model == "" {
		model = "text-embedding-3-small"
	}
	return &Service{gateway: gw, provider: provider, model: model, dims: dims}
}

func (s *Service) Model() string { return s.model }

func (s *Service) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := s.call(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch embeds texts in provider-sized batches. Output order matches input.
func (s *Service) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	all := make([][]float32, 0, len(texts))
	for i := 0; i < len(texts); i += batchSize {
		end := min(i+batchSize, len(texts))
		vecs, err := s.call(ctx, texts[i:end])
		if err != nil {
			return nil, fmt.Errorf("embed batch %d: %w", i/batchSize, err)
		}
		all = append(all, vecs...)
	}
	return all, nil
}

func (s *Service) call(ctx context.Context, input []string) ([][]float32, error) {
	resp, err := s.gateway.Embed(ctx, llm.EmbeddingRequest{
		Provider: s.provider,
		Model:    s.model,
		Input:    input,
	})
	if err != nil {
		return nil, &ProviderError{Provider: s.provider, Err: err}
	}
	if len(resp.Embeddings) != len(input) {
		return nil, &ProviderError{
			Provider: s.provider,
			Err:      fmt.Errorf("got %d vectors for %d inputs", len(resp.Embeddings), len(input)),
		}
	}
	for _, v := range resp.Embeddings {
		if len(v) == 0 {
			return nil, &ProviderError{Provider: s.provider, Err: errNoVector}
		}
		if s.dims > 0 && len(v) != s.dims {
			return nil, &ProviderError{
				Provider: s.provider,
				Err:      fmt.Errorf("vector has %d dimensions, want %d", len(v), s.dims),
			}
		}
	}
	return resp.Embeddings, nil
}

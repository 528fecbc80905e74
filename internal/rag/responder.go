package rag

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/nikhilbhutani/coursegrader/internal/llm"
	"github.com/nikhilbhutani/coursegrader/internal/vectorstore"
)

// NoRelevantInfoAnswer is returned when retrieval finds nothing above the
// score threshold. It is a normal outcome, not an error.
const NoRelevantInfoAnswer = "I couldn't find any relevant information in the provided materials to answer this question."

const contextDelimiter = "\n\n---\n\n"

// ModelError reports a failed or empty completion.
type ModelError struct {
	Err error
}

func (e *ModelError) Error() string {
	return fmt.Sprintf("model completion: %v", e.Err)
}

func (e *ModelError) Unwrap() error { return e.Err }

var errEmptyCompletion = errors.New("empty completion")

type Citation struct {
	DocumentID string  `json:"document_id"`
	ChunkID    string  `json:"chunk_id"`
	Content    string  `json:"content"`
	Score      float64 `json:"score"`
}

type Result struct {
	Answer string `json:"answer"`
	// Found is false when no chunk was relevant enough and Answer is
	// NoRelevantInfoAnswer.
	Found     bool       `json:"found"`
	Citations []Citation `json:"citations"`
	Model     string     `json:"model,omitempty"`
	Tokens    int        `json:"tokens,omitempty"`
}

type Responder struct {
	retriever *Retriever
	completer llm.Completer
	jsonMode  bool
}

type ResponderOption func(*Responder)

// WithJSONMode asks the model for a JSON object reply, for callers whose
// system prompt requests structured output.
func WithJSONMode() ResponderOption {
	return func(r *Responder) { r.jsonMode = true }
}

func NewResponder(retriever *Retriever, completer llm.Completer, opts ...ResponderOption) *Responder {
	r := &Responder{retriever: retriever, completer: completer}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Answer retrieves context from the scoped documents and asks the model to
// answer query under systemPrompt.
func (r *Responder) Answer(ctx context.Context, query string, scope []uuid.UUID, systemPrompt string) (*Result, error) {
	chunks, err := r.retriever.Retrieve(ctx, query, scope)
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		return &Result{Answer: NoRelevantInfoAnswer, Citations: []Citation{}}, nil
	}

	resp, err := r.completer.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: systemPrompt,
		UserPrompt:   BuildPrompt(query, chunks),
		JSONMode:     r.jsonMode,
	})
	if err != nil {
		return nil, &ModelError{Err: err}
	}
	if strings.TrimSpace(resp.Content) == "" {
		return nil, &ModelError{Err: errEmptyCompletion}
	}

	return &Result{
		Answer:    resp.Content,
		Found:     true,
		Citations: citations(chunks),
		Model:     resp.Model,
		Tokens:    resp.TotalTokens,
	}, nil
}

// BuildPrompt embeds ranked chunks and the query into one user prompt.
func BuildPrompt(query string, chunks []vectorstore.SearchResult) string {
	parts := make([]string, len(chunks))
	for i, c := range chunks {
		parts[i] = fmt.Sprintf("[Source %d]\n%s", i+1, c.Content)
	}
	return fmt.Sprintf("Context:\n%s\n\nQuestion:\n%s", strings.Join(parts, contextDelimiter), query)
}

func citations(chunks []vectorstore.SearchResult) []Citation {
	out := make([]Citation, len(chunks))
	for i, c := range chunks {
		out[i] = Citation{
			DocumentID: c.DocumentID.String(),
			ChunkID:    c.ChunkID.String(),
			Content:    truncate(c.Content, 200),
			Score:      c.Score,
		}
	}
	return out
}

func truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen]) + "..."
}

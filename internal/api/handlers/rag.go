package handlers

import (
	"context"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/nikhilbhutani/coursegrader/internal/rag"
	"github.com/nikhilbhutani/coursegrader/internal/vectorstore"
)

// Answerer is implemented by rag.Responder.
type Answerer interface {
	Answer(ctx context.Context, query string, scope []uuid.UUID, systemPrompt string) (*rag.Result, error)
}

// Searcher is implemented by rag.Retriever.
type Searcher interface {
	Retrieve(ctx context.Context, query string, scope []uuid.UUID) ([]vectorstore.SearchResult, error)
}

type RAGHandler struct {
	responder Answerer
	retriever Searcher
	validator *validator.Validate
}

func NewRAGHandler(responder Answerer, retriever Searcher, v *validator.Validate) *RAGHandler {
	return &RAGHandler{responder: responder, retriever: retriever, validator: v}
}

type ragRequest struct {
	Query       string      `json:"query" validate:"required,max=4000"`
	DocumentIDs []uuid.UUID `json:"document_ids" validate:"required,min=1,max=50"`
}

func (h *RAGHandler) Query(w http.ResponseWriter, r *http.Request) {
	var req ragRequest
	if err := decode(w, r, h.validator, &req); err != nil {
		handleError(w, r, err)
		return
	}

	res, err := h.responder.Answer(r.Context(), req.Query, req.DocumentIDs, rag.ChatSystemPrompt)
	if err != nil {
		handleError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, res)
}

func (h *RAGHandler) Search(w http.ResponseWriter, r *http.Request) {
	var req ragRequest
	if err := decode(w, r, h.validator, &req); err != nil {
		handleError(w, r, err)
		return
	}

	results, err := h.retriever.Retrieve(r.Context(), req.Query, req.DocumentIDs)
	if err != nil {
		handleError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"results": results, "count": len(results)})
}

package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/nikhilbhutani/coursegrader/internal/document"
	"github.com/nikhilbhutani/coursegrader/internal/models"
)

const maxUploadSize = 32 << 20

// DocumentService is implemented by document.Service.
type DocumentService interface {
	Create(ctx context.Context, req document.CreateRequest) (*models.Document, error)
	Upload(ctx context.Context, req document.UploadRequest) (*models.Document, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Document, error)
	List(ctx context.Context, ownerID uuid.UUID, limit, offset int) ([]models.Document, error)
	MarkContentGenerating(ctx context.Context, id uuid.UUID) error
	RegenerateContent(ctx context.Context, id uuid.UUID, content string) error
	Resubmit(ctx context.Context, id uuid.UUID) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type DocumentHandler struct {
	svc       DocumentService
	validator *validator.Validate
}

func NewDocumentHandler(svc DocumentService, v *validator.Validate) *DocumentHandler {
	return &DocumentHandler{svc: svc, validator: v}
}

type createDocumentRequest struct {
	OwnerID         uuid.UUID `json:"owner_id" validate:"required"`
	Title           string    `json:"title" validate:"required,max=500"`
	Content         string    `json:"content" validate:"required_without=AwaitingContent"`
	AwaitingContent bool      `json:"awaiting_content"`
}

func (h *DocumentHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createDocumentRequest
	if err := decode(w, r, h.validator, &req); err != nil {
		handleError(w, r, err)
		return
	}

	doc, err := h.svc.Create(r.Context(), document.CreateRequest{
		OwnerID:         req.OwnerID,
		Title:           req.Title,
		Content:         req.Content,
		AwaitingContent: req.AwaitingContent,
	})
	if err != nil {
		handleError(w, r, err)
		return
	}

	writeJSON(w, http.StatusAccepted, doc)
}

func (h *DocumentHandler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	ownerID, err := uuid.Parse(r.FormValue("owner_id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "owner_id required")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file required")
		return
	}
	defer file.Close()

	doc, err := h.svc.Upload(r.Context(), document.UploadRequest{
		OwnerID:  ownerID,
		Title:    r.FormValue("title"),
		Filename: header.Filename,
		MimeType: header.Header.Get("Content-Type"),
		Data:     file,
	})
	if err != nil {
		handleError(w, r, err)
		return
	}

	writeJSON(w, http.StatusAccepted, doc)
}

func (h *DocumentHandler) List(w http.ResponseWriter, r *http.Request) {
	ownerID, err := uuid.Parse(r.URL.Query().Get("owner_id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "owner_id required")
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	docs, err := h.svc.List(r.Context(), ownerID, limit, offset)
	if err != nil {
		handleError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"documents": docs, "count": len(docs)})
}

func (h *DocumentHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		handleError(w, r, err)
		return
	}

	doc, err := h.svc.Get(r.Context(), id)
	if err != nil {
		handleError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, doc)
}

func (h *DocumentHandler) Status(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		handleError(w, r, err)
		return
	}

	doc, err := h.svc.Get(r.Context(), id)
	if err != nil {
		handleError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"id":     doc.ID.String(),
		"status": doc.IndexingStatus,
		"error":  doc.IndexingError,
	})
}

func (h *DocumentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		handleError(w, r, err)
		return
	}

	if err := h.svc.Delete(r.Context(), id); err != nil {
		handleError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// MarkGenerating parks the document while new content is being produced.
func (h *DocumentHandler) MarkGenerating(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		handleError(w, r, err)
		return
	}

	if err := h.svc.MarkContentGenerating(r.Context(), id); err != nil {
		handleError(w, r, err)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{"status": models.IndexStatusAwaitingContent})
}

type replaceContentRequest struct {
	Content string `json:"content" validate:"required"`
}

func (h *DocumentHandler) ReplaceContent(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		handleError(w, r, err)
		return
	}

	var req replaceContentRequest
	if err := decode(w, r, h.validator, &req); err != nil {
		handleError(w, r, err)
		return
	}

	if err := h.svc.RegenerateContent(r.Context(), id, req.Content); err != nil {
		handleError(w, r, err)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{"status": models.IndexStatusPending})
}

func (h *DocumentHandler) Resubmit(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		handleError(w, r, err)
		return
	}

	if err := h.svc.Resubmit(r.Context(), id); err != nil {
		handleError(w, r, err)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{"status": models.IndexStatusPending})
}

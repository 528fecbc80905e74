package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/nikhilbhutani/coursegrader/internal/document"
	"github.com/nikhilbhutani/coursegrader/internal/embedding"
	"github.com/nikhilbhutani/coursegrader/internal/grading"
	"github.com/nikhilbhutani/coursegrader/internal/rag"
)

const maxJSONBody = 1 << 20

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// decode reads a JSON body into dst and runs struct validation on it.
func decode(w http.ResponseWriter, r *http.Request, v *validator.Validate, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return &badRequestError{msg: fmt.Sprintf("invalid request body: %v", err)}
	}
	return v.Struct(dst)
}

func pathID(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		return uuid.Nil, &badRequestError{msg: "invalid " + name}
	}
	return id, nil
}

type badRequestError struct{ msg string }

func (e *badRequestError) Error() string { return e.msg }

// handleError maps service errors onto HTTP statuses.
func handleError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		badReq        *badRequestError
		validationErr validator.ValidationErrors
		modelErr      *rag.ModelError
		providerErr   *embedding.ProviderError
	)

	switch {
	case errors.As(err, &badReq):
		writeError(w, http.StatusBadRequest, badReq.msg)
	case errors.As(err, &validationErr):
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":  "validation failed",
			"fields": fieldErrors(validationErr),
		})
	case errors.Is(err, grading.ErrInvalidAnswers):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, document.ErrNotFound),
		errors.Is(err, grading.ErrSubmissionNotFound),
		errors.Is(err, grading.ErrTestNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, document.ErrContentNotReady),
		errors.Is(err, document.ErrIndexingInProgress),
		errors.Is(err, grading.ErrNotRetryable):
		writeError(w, http.StatusConflict, err.Error())
	case errors.As(err, &modelErr), errors.As(err, &providerErr):
		slog.Warn("upstream model failure", "path", r.URL.Path, "error", err)
		writeError(w, http.StatusBadGateway, "model provider unavailable")
	default:
		slog.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func fieldErrors(errs validator.ValidationErrors) map[string]string {
	out := make(map[string]string, len(errs))
	for _, fe := range errs {
		out[fe.Namespace()] = fe.Tag()
	}
	return out
}

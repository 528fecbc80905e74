package handlers

import (
	"context"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/nikhilbhutani/coursegrader/internal/grading"
	"github.com/nikhilbhutani/coursegrader/internal/models"
)

// GradingService is implemented by grading.Service.
type GradingService interface {
	CreateTest(ctx context.Context, test *models.Test) error
	GetTest(ctx context.Context, id uuid.UUID) (*models.Test, error)
	Submit(ctx context.Context, testID, studentID uuid.UUID, inputs []grading.AnswerInput) (*models.Submission, error)
	GetSubmission(ctx context.Context, id uuid.UUID) (*models.Submission, error)
	RetryGrading(ctx context.Context, id uuid.UUID) error
}

type GradingHandler struct {
	svc       GradingService
	validator *validator.Validate
}

func NewGradingHandler(svc GradingService, v *validator.Validate) *GradingHandler {
	return &GradingHandler{svc: svc, validator: v}
}

type questionRequest struct {
	Type          string   `json:"type" validate:"required,oneof=multiple_choice true_false short_answer open_ended"`
	Text          string   `json:"text" validate:"required"`
	Options       []string `json:"options"`
	CorrectAnswer string   `json:"correct_answer" validate:"required_unless=Type open_ended"`
	ModelAnswer   string   `json:"model_answer"`
	MaxPoints     float64  `json:"max_points" validate:"gt=0"`
}

type createTestRequest struct {
	OwnerID           uuid.UUID         `json:"owner_id" validate:"required"`
	Title             string            `json:"title" validate:"required,max=500"`
	Questions         []questionRequest `json:"questions" validate:"required,min=1,dive"`
	SourceDocumentIDs []uuid.UUID       `json:"source_document_ids"`
}

func (h *GradingHandler) CreateTest(w http.ResponseWriter, r *http.Request) {
	var req createTestRequest
	if err := decode(w, r, h.validator, &req); err != nil {
		handleError(w, r, err)
		return
	}

	test := &models.Test{
		ID:                uuid.New(),
		OwnerID:           req.OwnerID,
		Title:             req.Title,
		SourceDocumentIDs: req.SourceDocumentIDs,
		Questions:         make([]models.Question, 0, len(req.Questions)),
	}
	for _, q := range req.Questions {
		test.Questions = append(test.Questions, models.Question{
			Type:          q.Type,
			Text:          q.Text,
			Options:       q.Options,
			CorrectAnswer: q.CorrectAnswer,
			ModelAnswer:   q.ModelAnswer,
			MaxPoints:     q.MaxPoints,
		})
	}

	if err := h.svc.CreateTest(r.Context(), test); err != nil {
		handleError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, test)
}

func (h *GradingHandler) GetTest(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		handleError(w, r, err)
		return
	}

	test, err := h.svc.GetTest(r.Context(), id)
	if err != nil {
		handleError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, test)
}

type submitRequest struct {
	StudentID uuid.UUID             `json:"student_id" validate:"required"`
	Answers   []grading.AnswerInput `json:"answers" validate:"required,min=1,dive"`
}

func (h *GradingHandler) Submit(w http.ResponseWriter, r *http.Request) {
	testID, err := pathID(r, "id")
	if err != nil {
		handleError(w, r, err)
		return
	}

	var req submitRequest
	if err := decode(w, r, h.validator, &req); err != nil {
		handleError(w, r, err)
		return
	}

	sub, err := h.svc.Submit(r.Context(), testID, req.StudentID, req.Answers)
	if err != nil {
		handleError(w, r, err)
		return
	}

	status := http.StatusAccepted
	if sub.Status == models.SubmissionGraded {
		status = http.StatusCreated
	}
	writeJSON(w, status, sub)
}

func (h *GradingHandler) GetSubmission(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		handleError(w, r, err)
		return
	}

	sub, err := h.svc.GetSubmission(r.Context(), id)
	if err != nil {
		handleError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, sub)
}

func (h *GradingHandler) RetryGrading(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		handleError(w, r, err)
		return
	}

	if err := h.svc.RetryGrading(r.Context(), id); err != nil {
		handleError(w, r, err)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{"status": models.SubmissionSubmitted})
}

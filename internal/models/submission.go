package models

import (
	"time"

	"github.com/google/uuid"
)

// Question types. Only open-ended questions go through AI grading.
const (
	QuestionMultipleChoice = "multiple_choice"
	QuestionTrueFalse      = "true_false"
	QuestionShortAnswer    = "short_answer"
	QuestionOpenEnded      = "open_ended"
)

type Question struct {
	ID            uuid.UUID `json:"id"`
	Type          string    `json:"type"`
	Text          string    `json:"text"`
	Options       []string  `json:"options,omitempty"`
	CorrectAnswer string    `json:"correct_answer,omitempty"`
	ModelAnswer   string    `json:"model_answer,omitempty"`
	MaxPoints     float64   `json:"max_points"`
}

// IsOpenEnded reports whether the question needs AI grading.
func (q Question) IsOpenEnded() bool {
	return q.Type == QuestionOpenEnded
}

type Test struct {
	ID                uuid.UUID   `json:"id" db:"id"`
	OwnerID           uuid.UUID   `json:"owner_id" db:"owner_id"`
	Title             string      `json:"title" db:"title"`
	Questions         []Question  `json:"questions" db:"questions"`
	SourceDocumentIDs []uuid.UUID `json:"source_document_ids" db:"source_document_ids"`
	CreatedAt         time.Time   `json:"created_at" db:"created_at"`
}

// Question returns the question with the given ID.
func (t *Test) Question(id uuid.UUID) (Question, bool) {
	for _, q := range t.Questions {
		if q.ID == id {
			return q, true
		}
	}
	return Question{}, false
}

// AI grading statuses. The empty string means the answer is not AI graded.
const (
	AIGradingNone      = ""
	AIGradingPending   = "pending"
	AIGradingCompleted = "completed"
	AIGradingFailed    = "failed"
)

type Answer struct {
	QuestionID      uuid.UUID `json:"question_id"`
	StudentResponse string    `json:"student_response"`
	IsCorrect       *bool     `json:"is_correct"`
	ScoreAwarded    *float64  `json:"score_awarded"`
	SuggestedScore  *float64  `json:"suggested_score,omitempty"`
	Feedback        string    `json:"feedback,omitempty"`
	AIGradingStatus string    `json:"ai_grading_status,omitempty"`
}

// Submission statuses.
const (
	SubmissionInProgress          = "in_progress"
	SubmissionSubmitted           = "submitted"
	SubmissionAIGradingInProgress = "ai_grading_in_progress"
	SubmissionPartiallyGraded     = "partially_graded"
	SubmissionGraded              = "graded"
)

type Submission struct {
	ID                uuid.UUID `json:"id" db:"id"`
	TestID            uuid.UUID `json:"test_id" db:"test_id"`
	StudentID         uuid.UUID `json:"student_id" db:"student_id"`
	Answers           []Answer  `json:"answers" db:"answers"`
	Status            string    `json:"status" db:"status"`
	TotalScoreAwarded float64   `json:"total_score_awarded" db:"total_score_awarded"`
	GradingError      string    `json:"grading_error,omitempty" db:"grading_error"`
	SubmittedAt       time.Time `json:"submitted_at" db:"submitted_at"`
	UpdatedAt         time.Time `json:"updated_at" db:"updated_at"`
}

// RecomputeTotal sets TotalScoreAwarded to the sum of every answer's current
// score: the AI suggestion if present, otherwise the awarded score, otherwise 0.
func (s *Submission) RecomputeTotal() {
	var total float64
	for _, a := range s.Answers {
		switch {
		case a.SuggestedScore != nil:
			total += *a.SuggestedScore
		case a.ScoreAwarded != nil:
			total += *a.ScoreAwarded
		}
	}
	s.TotalScoreAwarded = total
}

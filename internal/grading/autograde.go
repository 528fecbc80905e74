package grading

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/nikhilbhutani/coursegrader/internal/models"
)

var ErrInvalidAnswers = errors.New("invalid answers")

type AnswerInput struct {
	QuestionID      uuid.UUID `json:"question_id" validate:"required"`
	StudentResponse string    `json:"student_response"`
}

// AutoGrade builds the answer list for a submission. Closed questions are
// scored immediately with full or zero points; open-ended answers are left
// pending for AI grading.
func AutoGrade(test *models.Test, inputs []AnswerInput) ([]models.Answer, error) {
	seen := make(map[uuid.UUID]bool, len(inputs))
	answers := make([]models.Answer, 0, len(inputs))

	for _, in := range inputs {
		q, ok := test.Question(in.QuestionID)
		if !ok {
			return nil, fmt.Errorf("%w: question %s is not part of test %s", ErrInvalidAnswers, in.QuestionID, test.ID)
		}
		if seen[in.QuestionID] {
			return nil, fmt.Errorf("%w: question %s answered twice", ErrInvalidAnswers, in.QuestionID)
		}
		seen[in.QuestionID] = true

		a := models.Answer{QuestionID: in.QuestionID, StudentResponse: in.StudentResponse}
		if q.IsOpenEnded() {
			a.AIGradingStatus = models.AIGradingPending
		} else {
			correct := matches(q, in.StudentResponse)
			score := 0.0
			if correct {
				score = q.MaxPoints
			}
			a.IsCorrect = &correct
			a.ScoreAwarded = &score
		}
		answers = append(answers, a)
	}
	return answers, nil
}

func matches(q models.Question, response string) bool {
	return normalize(response) != "" && normalize(response) == normalize(q.CorrectAnswer)
}

func normalize(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// hasPendingAI reports whether any answer is waiting for AI grading.
func hasPendingAI(answers []models.Answer) bool {
	for _, a := range answers {
		if a.AIGradingStatus == models.AIGradingPending {
			return true
		}
	}
	return false
}

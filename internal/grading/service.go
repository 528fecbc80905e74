package grading

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/nikhilbhutani/coursegrader/internal/models"
	"github.com/nikhilbhutani/coursegrader/internal/queue"
)

var ErrNotRetryable = errors.New("submission cannot be regraded in its current status")

type Dispatcher interface {
	Dispatch(ctx context.Context, taskType string, id uuid.UUID, inline func(context.Context) error)
}

type Service struct {
	subs       SubmissionRepository
	tests      TestRepository
	dispatcher Dispatcher
	grader     *Grader
}

func NewService(subs SubmissionRepository, tests TestRepository, d Dispatcher, grader *Grader) *Service {
	return &Service{subs: subs, tests: tests, dispatcher: d, grader: grader}
}

func (s *Service) CreateTest(ctx context.Context, test *models.Test) error {
	for i := range test.Questions {
		if test.Questions[i].ID == uuid.Nil {
			test.Questions[i].ID = uuid.New()
		}
	}
	return s.tests.Create(ctx, test)
}

func (s *Service) GetTest(ctx context.Context, id uuid.UUID) (*models.Test, error) {
	return s.tests.Get(ctx, id)
}

func (s *Service) GetSubmission(ctx context.Context, id uuid.UUID) (*models.Submission, error) {
	return s.subs.Get(ctx, id)
}

// Submit stores a student's answers. Closed questions are graded at once.
// A submission without open-ended answers is graded; otherwise it is
// submitted and AI grading is dispatched.
func (s *Service) Submit(ctx context.Context, testID, studentID uuid.UUID, inputs []AnswerInput) (*models.Submission, error) {
	test, err := s.tests.Get(ctx, testID)
	if err != nil {
		return nil, err
	}

	answers, err := AutoGrade(test, inputs)
	if err != nil {
		return nil, err
	}

	sub := &models.Submission{
		ID:        uuid.New(),
		TestID:    testID,
		StudentID: studentID,
		Answers:   answers,
		Status:    models.SubmissionGraded,
	}
	if hasPendingAI(answers) {
		sub.Status = models.SubmissionSubmitted
	}
	sub.RecomputeTotal()

	if err := s.subs.Create(ctx, sub); err != nil {
		return nil, err
	}

	if sub.Status == models.SubmissionSubmitted {
		s.dispatchGrading(ctx, sub.ID)
	}
	return sub, nil
}

// RetryGrading puts failed AI-graded answers back to pending and dispatches
// grading again.
func (s *Service) RetryGrading(ctx context.Context, id uuid.UUID) error {
	sub, err := s.subs.Get(ctx, id)
	if err != nil {
		return err
	}

	from := sub.Status
	if from != models.SubmissionPartiallyGraded && from != models.SubmissionSubmitted {
		return fmt.Errorf("%w: %s", ErrNotRetryable, from)
	}

	for i := range sub.Answers {
		a := &sub.Answers[i]
		if a.AIGradingStatus == models.AIGradingFailed {
			a.AIGradingStatus = models.AIGradingPending
			a.Feedback = ""
			a.SuggestedScore = nil
		}
	}
	if !hasPendingAI(sub.Answers) {
		return fmt.Errorf("%w: no answers need grading", ErrNotRetryable)
	}

	sub.Status = models.SubmissionSubmitted
	sub.GradingError = ""
	sub.RecomputeTotal()

	saved, err := s.subs.Update(ctx, sub, from)
	if err != nil {
		return err
	}
	if !saved {
		return fmt.Errorf("%w: status changed concurrently", ErrNotRetryable)
	}

	s.dispatchGrading(ctx, id)
	return nil
}

func (s *Service) dispatchGrading(ctx context.Context, id uuid.UUID) {
	s.dispatcher.Dispatch(ctx, queue.TypeSubmissionGrade, id, func(ctx context.Context) error {
		return s.grader.RunGrading(ctx, id)
	})
}

package grading

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/nikhilbhutani/coursegrader/internal/models"
	"github.com/nikhilbhutani/coursegrader/internal/queue"
	"github.com/nikhilbhutani/coursegrader/internal/rag"
)

type recordingDispatcher struct {
	ids []uuid.UUID
}

func (d *recordingDispatcher) Dispatch(_ context.Context, taskType string, id uuid.UUID, _ func(context.Context) error) {
	if taskType == queue.TypeSubmissionGrade {
		d.ids = append(d.ids, id)
	}
}

func TestSubmitClosedOnlyIsGraded(t *testing.T) {
	q := newQuiz()
	subs := newMemSubs()
	d := &recordingDispatcher{}
	svc := NewService(subs, newMemTests(q.test), d, nil)

	sub, err := svc.Submit(context.Background(), q.test.ID, uuid.New(), []AnswerInput{
		{QuestionID: q.mcq.ID, StudentResponse: "4"},
	})
	require.NoError(t, err)
	require.Equal(t, models.SubmissionGraded, sub.Status)
	require.Equal(t, 2.0, sub.TotalScoreAwarded)
	require.Empty(t, d.ids)
	require.Equal(t, models.SubmissionGraded, subs.sub(sub.ID).Status)
}

func TestSubmitOpenEndedDispatchesGrading(t *testing.T) {
	q := newQuiz()
	d := &recordingDispatcher{}
	svc := NewService(newMemSubs(), newMemTests(q.test), d, nil)

	sub, err := svc.Submit(context.Background(), q.test.ID, uuid.New(), []AnswerInput{
		{QuestionID: q.mcq.ID, StudentResponse: "3"},
		{QuestionID: q.essayA.ID, StudentResponse: "Water moves."},
	})
	require.NoError(t, err)
	require.Equal(t, models.SubmissionSubmitted, sub.Status)
	require.Zero(t, sub.TotalScoreAwarded)
	require.Equal(t, []uuid.UUID{sub.ID}, d.ids)
}

func TestSubmitRejectsUnknownTestAndQuestions(t *testing.T) {
	q := newQuiz()
	svc := NewService(newMemSubs(), newMemTests(q.test), &recordingDispatcher{}, nil)

	_, err := svc.Submit(context.Background(), uuid.New(), uuid.New(), nil)
	require.ErrorIs(t, err, ErrTestNotFound)

	_, err = svc.Submit(context.Background(), q.test.ID, uuid.New(), []AnswerInput{{QuestionID: uuid.New()}})
	require.ErrorIs(t, err, ErrInvalidAnswers)
}

func TestSubmitInlineGradesImmediately(t *testing.T) {
	q := newQuiz()
	subs := newMemSubs()
	tests := newMemTests(q.test)
	completer := &stubCompleter{}
	grader := NewGrader(subs, tests, &stubAnswerer{}, completer)
	svc := NewService(subs, tests, queue.NewInlineDispatcher(), grader)

	completer.content = fmt.Sprintf(`[{"questionId": %q, "suggestedScore": 5, "feedback": "Excellent."}]`, q.essayA.ID)
	sub, err := svc.Submit(context.Background(), q.test.ID, uuid.New(), []AnswerInput{
		{QuestionID: q.mcq.ID, StudentResponse: "4"},
		{QuestionID: q.essayA.ID, StudentResponse: "Water crosses membranes by osmosis."},
	})
	require.NoError(t, err)

	got := subs.sub(sub.ID)
	require.Equal(t, models.SubmissionPartiallyGraded, got.Status)
	require.Equal(t, 7.0, got.TotalScoreAwarded)
	require.Equal(t, "Excellent.", answerFor(got, q.essayA.ID).Feedback)
}

func TestRetryGradingResetsFailedAnswers(t *testing.T) {
	q := newQuiz()
	subs := newMemSubs()
	sub := q.submitted()
	sub.Status = models.SubmissionPartiallyGraded
	score := 4.0
	for i := range sub.Answers {
		switch sub.Answers[i].QuestionID {
		case q.essayA.ID:
			sub.Answers[i].AIGradingStatus = models.AIGradingCompleted
			sub.Answers[i].SuggestedScore = &score
		case q.essayB.ID:
			sub.Answers[i].AIGradingStatus = models.AIGradingFailed
			sub.Answers[i].Feedback = failedFeedback
		}
	}
	subs.put(sub)
	d := &recordingDispatcher{}
	svc := NewService(subs, newMemTests(q.test), d, nil)

	require.NoError(t, svc.RetryGrading(context.Background(), sub.ID))

	got := subs.sub(sub.ID)
	require.Equal(t, models.SubmissionSubmitted, got.Status)
	require.Equal(t, models.AIGradingCompleted, answerFor(got, q.essayA.ID).AIGradingStatus)
	b := answerFor(got, q.essayB.ID)
	require.Equal(t, models.AIGradingPending, b.AIGradingStatus)
	require.Empty(t, b.Feedback)
	require.Equal(t, 6.0, got.TotalScoreAwarded)
	require.Equal(t, []uuid.UUID{sub.ID}, d.ids)
}

func TestRetryGradingRejectsWrongStatus(t *testing.T) {
	q := newQuiz()
	subs := newMemSubs()
	svc := NewService(subs, newMemTests(q.test), &recordingDispatcher{}, nil)

	busy := q.submitted()
	busy.Status = models.SubmissionAIGradingInProgress
	subs.put(busy)
	require.ErrorIs(t, svc.RetryGrading(context.Background(), busy.ID), ErrNotRetryable)

	done := q.submitted()
	done.Status = models.SubmissionPartiallyGraded
	for i := range done.Answers {
		if done.Answers[i].AIGradingStatus == models.AIGradingPending {
			done.Answers[i].AIGradingStatus = models.AIGradingCompleted
		}
	}
	subs.put(done)
	require.ErrorIs(t, svc.RetryGrading(context.Background(), done.ID), ErrNotRetryable)

	require.ErrorIs(t, svc.RetryGrading(context.Background(), uuid.New()), ErrSubmissionNotFound)
}

func TestRetryGradingEndToEnd(t *testing.T) {
	q := newQuiz(uuid.New())
	subs := newMemSubs()
	tests := newMemTests(q.test)
	answerer := &stubAnswerer{result: &rag.Result{Found: true, Answer: "not json"}}
	svc := NewService(subs, tests, queue.NewInlineDispatcher(), NewGrader(subs, tests, answerer, &stubCompleter{}))
	ctx := context.Background()

	sub, err := svc.Submit(ctx, q.test.ID, uuid.New(), []AnswerInput{{QuestionID: q.essayB.ID, StudentResponse: "split"}})
	require.NoError(t, err)
	require.Equal(t, models.AIGradingFailed, answerFor(subs.sub(sub.ID), q.essayB.ID).AIGradingStatus)

	answerer.result.Answer = fmt.Sprintf(`[{"questionId": %q, "suggestedScore": 8}]`, q.essayB.ID)
	require.NoError(t, svc.RetryGrading(ctx, sub.ID))

	got := subs.sub(sub.ID)
	require.Equal(t, models.SubmissionPartiallyGraded, got.Status)
	require.Equal(t, 8.0, got.TotalScoreAwarded)
}

func TestCreateTestAssignsQuestionIDs(t *testing.T) {
	tests := newMemTests()
	svc := NewService(newMemSubs(), tests, &recordingDispatcher{}, nil)

	test := &models.Test{ID: uuid.New(), Questions: []models.Question{{Type: models.QuestionOpenEnded, MaxPoints: 5}}}
	require.NoError(t, svc.CreateTest(context.Background(), test))
	require.NotEqual(t, uuid.Nil, test.Questions[0].ID)

	got, err := svc.GetTest(context.Background(), test.ID)
	require.NoError(t, err)
	require.Equal(t, test, got)
}

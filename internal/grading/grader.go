package grading

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/nikhilbhutani/coursegrader/internal/llm"
	"github.com/nikhilbhutani/coursegrader/internal/metrics"
	"github.com/nikhilbhutani/coursegrader/internal/models"
	"github.com/nikhilbhutani/coursegrader/internal/rag"
	"github.com/nikhilbhutani/coursegrader/pkg/modeloutput"
)

type Answerer interface {
	Answer(ctx context.Context, query string, scope []uuid.UUID, systemPrompt string) (*rag.Result, error)
}

// Grader runs batched AI grading of a submission's open-ended answers.
type Grader struct {
	subs      SubmissionRepository
	tests     TestRepository
	responder Answerer
	completer llm.Completer
}

func NewGrader(subs SubmissionRepository, tests TestRepository, responder Answerer, completer llm.Completer) *Grader {
	return &Grader{subs: subs, tests: tests, responder: responder, completer: completer}
}

// RunGrading grades every pending open-ended answer of a submitted
// submission with one model call. Redelivered or stale tasks are no-ops.
// Errors during grading put the submission back to submitted with the error
// recorded; the returned error is non-nil only when that could not be saved.
func (g *Grader) RunGrading(ctx context.Context, submissionID uuid.UUID) error {
	log := slog.With("submission_id", submissionID)

	sub, err := g.subs.Get(ctx, submissionID)
	if errors.Is(err, ErrSubmissionNotFound) {
		log.Info("submission not found, skipping grading")
		metrics.GradingRun(metrics.OutcomeSkipped)
		return nil
	}
	if err != nil {
		return fmt.Errorf("load submission: %w", err)
	}

	test, err := g.tests.Get(ctx, sub.TestID)
	if errors.Is(err, ErrTestNotFound) {
		log.Warn("test not found, skipping grading", "test_id", sub.TestID)
		metrics.GradingRun(metrics.OutcomeSkipped)
		return nil
	}
	if err != nil {
		return fmt.Errorf("load test: %w", err)
	}

	if sub.Status != models.SubmissionSubmitted {
		log.Info("submission not awaiting grading, skipping", "status", sub.Status)
		metrics.GradingRun(metrics.OutcomeSkipped)
		return nil
	}

	claimed, err := g.subs.Claim(ctx, submissionID)
	if err != nil {
		return err
	}
	if !claimed {
		log.Info("submission claimed by another run, skipping grading")
		metrics.GradingRun(metrics.OutcomeSkipped)
		return nil
	}
	sub.Status = models.SubmissionAIGradingInProgress

	// The outcome is recorded even when the caller has gone away.
	finishCtx := context.WithoutCancel(ctx)

	if err := g.grade(ctx, sub, test); err != nil {
		return g.revert(finishCtx, log, submissionID, err)
	}

	saved, err := g.subs.Update(finishCtx, sub, models.SubmissionAIGradingInProgress)
	if err != nil {
		return g.revert(finishCtx, log, submissionID, err)
	}
	if !saved {
		log.Warn("submission changed while grading, result discarded")
		metrics.GradingRun(metrics.OutcomeSkipped)
		return nil
	}

	metrics.GradingRun(metrics.OutcomeCompleted)
	log.Info("submission graded", "status", sub.Status, "total", sub.TotalScoreAwarded)
	return nil
}

func (g *Grader) revert(ctx context.Context, log *slog.Logger, id uuid.UUID, cause error) error {
	log.Error("grading failed, reverting to submitted", "error", cause)
	metrics.GradingRun(metrics.OutcomeReverted)
	if err := g.subs.Revert(ctx, id, cause.Error()); err != nil {
		return fmt.Errorf("revert after %v: %w", cause, err)
	}
	return nil
}

func (g *Grader) grade(ctx context.Context, sub *models.Submission, test *models.Test) error {
	var items []batchItem
	for i, a := range sub.Answers {
		q, ok := test.Question(a.QuestionID)
		if !ok || !q.IsOpenEnded() || a.AIGradingStatus != models.AIGradingPending {
			continue
		}
		items = append(items, batchItem{answerIdx: i, question: q, answer: a})
	}

	if len(items) > 0 {
		raw, err := g.evaluate(ctx, test, items)
		if err != nil {
			return err
		}
		applyEvaluations(sub, items, raw)
	}

	sub.RecomputeTotal()
	if openEndedResolved(sub, test) {
		sub.Status = models.SubmissionPartiallyGraded
	}
	sub.GradingError = ""
	return nil
}

func (g *Grader) evaluate(ctx context.Context, test *models.Test, items []batchItem) (string, error) {
	prompt := buildBatchPrompt(items)

	if len(test.SourceDocumentIDs) > 0 {
		res, err := g.responder.Answer(ctx, prompt, test.SourceDocumentIDs, systemPrompt)
		if err != nil {
			return "", err
		}
		if res.Found {
			return res.Answer, nil
		}
		slog.Info("no course material matched, grading without context", "test_id", test.ID)
	}

	resp, err := g.completer.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: systemPrompt,
		UserPrompt:   prompt,
		JSONMode:     true,
	})
	if err != nil {
		return "", &rag.ModelError{Err: err}
	}
	if strings.TrimSpace(resp.Content) == "" {
		return "", &rag.ModelError{Err: errors.New("empty completion")}
	}
	return resp.Content, nil
}

// applyEvaluations resolves every batch answer to completed or failed. A
// reply that holds no evaluation list fails the whole batch.
func applyEvaluations(sub *models.Submission, items []batchItem, raw string) {
	var evals evaluationReply
	if !modeloutput.Decode(raw, &evals) {
		slog.Warn("grading reply holds no evaluation list", "submission_id", sub.ID)
		for _, it := range items {
			markFailed(&sub.Answers[it.answerIdx], failedFeedback)
		}
		metrics.AnswersGraded(models.AIGradingFailed, len(items))
		return
	}

	byQuestion := make(map[uuid.UUID]batchItem, len(items))
	for _, it := range items {
		byQuestion[it.question.ID] = it
	}

	completed := 0
	for _, e := range evals {
		if !e.valid {
			continue
		}
		it, ok := byQuestion[e.questionID]
		if !ok {
			continue
		}
		ans := &sub.Answers[it.answerIdx]
		if ans.AIGradingStatus != models.AIGradingPending {
			continue
		}

		if !e.hasScore {
			markFailed(ans, failedFeedback)
			continue
		}
		score := clamp(e.score, 0, it.question.MaxPoints)
		ans.SuggestedScore = &score
		ans.Feedback = e.feedback
		ans.AIGradingStatus = models.AIGradingCompleted
		completed++
	}

	failed := 0
	for _, it := range items {
		ans := &sub.Answers[it.answerIdx]
		switch ans.AIGradingStatus {
		case models.AIGradingPending:
			markFailed(ans, missingFeedback)
			failed++
		case models.AIGradingFailed:
			failed++
		}
	}
	metrics.AnswersGraded(models.AIGradingCompleted, completed)
	metrics.AnswersGraded(models.AIGradingFailed, failed)
}

func markFailed(a *models.Answer, feedback string) {
	a.AIGradingStatus = models.AIGradingFailed
	a.SuggestedScore = nil
	a.Feedback = feedback
}

// openEndedResolved reports whether no open-ended answer is still pending.
func openEndedResolved(sub *models.Submission, test *models.Test) bool {
	for _, a := range sub.Answers {
		q, ok := test.Question(a.QuestionID)
		if !ok || !q.IsOpenEnded() {
			continue
		}
		if a.AIGradingStatus != models.AIGradingCompleted && a.AIGradingStatus != models.AIGradingFailed {
			return false
		}
	}
	return true
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

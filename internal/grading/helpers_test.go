package grading

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/nikhilbhutani/coursegrader/internal/llm"
	"github.com/nikhilbhutani/coursegrader/internal/models"
	"github.com/nikhilbhutani/coursegrader/internal/rag"
)

type memSubs struct {
	mu        sync.Mutex
	subs      map[uuid.UUID]*models.Submission
	updateErr error
	revertErr error
}

func newMemSubs() *memSubs {
	return &memSubs{subs: make(map[uuid.UUID]*models.Submission)}
}

// clone deep-copies through JSON so tests never share answer slices with the store.
func clone(s *models.Submission) *models.Submission {
	data, _ := json.Marshal(s)
	var out models.Submission
	_ = json.Unmarshal(data, &out)
	return &out
}

func (r *memSubs) put(s *models.Submission) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subs[s.ID] = clone(s)
}

func (r *memSubs) sub(id uuid.UUID) *models.Submission {
	r.mu.Lock()
	defer r.mu.Unlock()
	return clone(r.subs[id])
}

func (r *memSubs) Create(_ context.Context, s *models.Submission) error {
	r.put(s)
	return nil
}

func (r *memSubs) Get(_ context.Context, id uuid.UUID) (*models.Submission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.subs[id]
	if !ok {
		return nil, ErrSubmissionNotFound
	}
	return clone(s), nil
}

func (r *memSubs) Claim(_ context.Context, id uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.subs[id]
	if !ok || s.Status != models.SubmissionSubmitted {
		return false, nil
	}
	s.Status = models.SubmissionAIGradingInProgress
	s.GradingError = ""
	return true, nil
}

func (r *memSubs) Update(ctx context.Context, s *models.Submission, from string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.updateErr != nil {
		return false, r.updateErr
	}
	cur, ok := r.subs[s.ID]
	if !ok || cur.Status != from {
		return false, nil
	}
	r.subs[s.ID] = clone(s)
	return true, nil
}

func (r *memSubs) Revert(ctx context.Context, id uuid.UUID, msg string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.revertErr != nil {
		return r.revertErr
	}
	s := r.subs[id]
	if s.Status == models.SubmissionAIGradingInProgress {
		s.Status = models.SubmissionSubmitted
		s.GradingError = msg
	}
	return nil
}

type memTests struct {
	tests map[uuid.UUID]*models.Test
}

func newMemTests(tests ...*models.Test) *memTests {
	r := &memTests{tests: make(map[uuid.UUID]*models.Test)}
	for _, t := range tests {
		r.tests[t.ID] = t
	}
	return r
}

func (r *memTests) Create(_ context.Context, t *models.Test) error {
	r.tests[t.ID] = t
	return nil
}

func (r *memTests) Get(_ context.Context, id uuid.UUID) (*models.Test, error) {
	t, ok := r.tests[id]
	if !ok {
		return nil, ErrTestNotFound
	}
	return t, nil
}

type stubAnswerer struct {
	result  *rag.Result
	err     error
	queries []string
	scopes  [][]uuid.UUID
}

func (a *stubAnswerer) Answer(_ context.Context, query string, scope []uuid.UUID, _ string) (*rag.Result, error) {
	a.queries = append(a.queries, query)
	a.scopes = append(a.scopes, scope)
	if a.err != nil {
		return nil, a.err
	}
	return a.result, nil
}

type stubCompleter struct {
	content string
	err     error
	calls   int
	reqs    []llm.CompletionRequest
	// onCall runs before the reply is returned
	onCall func()
}

func (c *stubCompleter) Complete(_ context.Context, req llm.CompletionRequest) (*llm.ChatResponse, error) {
	c.calls++
	c.reqs = append(c.reqs, req)
	if c.onCall != nil {
		c.onCall()
	}
	if c.err != nil {
		return nil, c.err
	}
	return &llm.ChatResponse{Content: c.content}, nil
}

var errProvider = errors.New("provider timeout")

// quiz is a test with one multiple-choice question worth 2 points and two
// open-ended questions worth 5 and 10 points.
type quiz struct {
	test   *models.Test
	mcq    models.Question
	essayA models.Question
	essayB models.Question
}

func newQuiz(sources ...uuid.UUID) quiz {
	q := quiz{
		mcq:    models.Question{ID: uuid.New(), Type: models.QuestionMultipleChoice, Text: "2+2?", Options: []string{"3", "4"}, CorrectAnswer: "4", MaxPoints: 2},
		essayA: models.Question{ID: uuid.New(), Type: models.QuestionOpenEnded, Text: "Explain osmosis.", ModelAnswer: "Water moves across a membrane.", MaxPoints: 5},
		essayB: models.Question{ID: uuid.New(), Type: models.QuestionOpenEnded, Text: "Describe mitosis.", ModelAnswer: "Cell division.", MaxPoints: 10},
	}
	q.test = &models.Test{
		ID:                uuid.New(),
		OwnerID:           uuid.New(),
		Title:             "Biology",
		Questions:         []models.Question{q.mcq, q.essayA, q.essayB},
		SourceDocumentIDs: sources,
	}
	return q
}

// submitted returns a submission with the multiple-choice answer correct and
// both essays pending.
func (q quiz) submitted() *models.Submission {
	answers, _ := AutoGrade(q.test, []AnswerInput{
		{QuestionID: q.mcq.ID, StudentResponse: "4"},
		{QuestionID: q.essayA.ID, StudentResponse: "Water diffuses through membranes."},
		{QuestionID: q.essayB.ID, StudentResponse: "The cell splits in two."},
	})
	s := &models.Submission{
		ID:        uuid.New(),
		TestID:    q.test.ID,
		StudentID: uuid.New(),
		Answers:   answers,
		Status:    models.SubmissionSubmitted,
	}
	s.RecomputeTotal()
	return s
}

func answerFor(s *models.Submission, questionID uuid.UUID) models.Answer {
	for _, a := range s.Answers {
		if a.QuestionID == questionID {
			return a
		}
	}
	return models.Answer{}
}

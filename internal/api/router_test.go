package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/nikhilbhutani/coursegrader/internal/config"
	"github.com/nikhilbhutani/coursegrader/internal/document"
	"github.com/nikhilbhutani/coursegrader/internal/grading"
	"github.com/nikhilbhutani/coursegrader/internal/models"
	"github.com/nikhilbhutani/coursegrader/internal/rag"
	"github.com/nikhilbhutani/coursegrader/internal/vectorstore"
)

type fakeDocs struct {
	docs     map[uuid.UUID]*models.Document
	created  []document.CreateRequest
	uploaded []string
	err      error
}

func newFakeDocs() *fakeDocs {
	return &fakeDocs{docs: map[uuid.UUID]*models.Document{}}
}

func (f *fakeDocs) add(status string) *models.Document {
	doc := &models.Document{ID: uuid.New(), OwnerID: uuid.New(), Title: "Notes", IndexingStatus: status}
	f.docs[doc.ID] = doc
	return doc
}

func (f *fakeDocs) Create(_ context.Context, req document.CreateRequest) (*models.Document, error) {
	f.created = append(f.created, req)
	status := models.IndexStatusPending
	if req.AwaitingContent {
		status = models.IndexStatusAwaitingContent
	}
	doc := &models.Document{ID: uuid.New(), OwnerID: req.OwnerID, Title: req.Title, Content: req.Content, IndexingStatus: status}
	f.docs[doc.ID] = doc
	return doc, nil
}

func (f *fakeDocs) Upload(_ context.Context, req document.UploadRequest) (*models.Document, error) {
	f.uploaded = append(f.uploaded, req.Filename)
	return &models.Document{ID: uuid.New(), OwnerID: req.OwnerID, Title: req.Filename, IndexingStatus: models.IndexStatusPending}, nil
}

func (f *fakeDocs) Get(_ context.Context, id uuid.UUID) (*models.Document, error) {
	doc, ok := f.docs[id]
	if !ok {
		return nil, document.ErrNotFound
	}
	return doc, nil
}

func (f *fakeDocs) List(_ context.Context, ownerID uuid.UUID, _, _ int) ([]models.Document, error) {
	var out []models.Document
	for _, d := range f.docs {
		if d.OwnerID == ownerID {
			out = append(out, *d)
		}
	}
	return out, nil
}

func (f *fakeDocs) MarkContentGenerating(_ context.Context, id uuid.UUID) error {
	doc, ok := f.docs[id]
	if !ok {
		return document.ErrNotFound
	}
	if doc.IndexingStatus == models.IndexStatusInProgress {
		return document.ErrIndexingInProgress
	}
	doc.IndexingStatus = models.IndexStatusAwaitingContent
	return nil
}

func (f *fakeDocs) RegenerateContent(_ context.Context, id uuid.UUID, content string) error {
	doc, ok := f.docs[id]
	if !ok {
		return document.ErrNotFound
	}
	doc.Content = content
	doc.IndexingStatus = models.IndexStatusPending
	return nil
}

func (f *fakeDocs) Resubmit(_ context.Context, id uuid.UUID) error {
	doc, ok := f.docs[id]
	if !ok {
		return document.ErrNotFound
	}
	if doc.IndexingStatus == models.IndexStatusAwaitingContent {
		return document.ErrContentNotReady
	}
	doc.IndexingStatus = models.IndexStatusPending
	return nil
}

func (f *fakeDocs) Delete(_ context.Context, id uuid.UUID) error {
	if f.err != nil {
		return f.err
	}
	if _, ok := f.docs[id]; !ok {
		return document.ErrNotFound
	}
	delete(f.docs, id)
	return nil
}

type fakeAnswerer struct {
	result *rag.Result
	err    error
	scope  []uuid.UUID
}

func (f *fakeAnswerer) Answer(_ context.Context, _ string, scope []uuid.UUID, _ string) (*rag.Result, error) {
	f.scope = scope
	return f.result, f.err
}

type fakeSearcher struct {
	results []vectorstore.SearchResult
}

func (f *fakeSearcher) Retrieve(context.Context, string, []uuid.UUID) ([]vectorstore.SearchResult, error) {
	return f.results, nil
}

type fakeGrading struct {
	tests     map[uuid.UUID]*models.Test
	subs      map[uuid.UUID]*models.Submission
	submitErr error
	retryErr  error
}

func newFakeGrading() *fakeGrading {
	return &fakeGrading{tests: map[uuid.UUID]*models.Test{}, subs: map[uuid.UUID]*models.Submission{}}
}

func (f *fakeGrading) CreateTest(_ context.Context, test *models.Test) error {
	for i := range test.Questions {
		test.Questions[i].ID = uuid.New()
	}
	f.tests[test.ID] = test
	return nil
}

func (f *fakeGrading) GetTest(_ context.Context, id uuid.UUID) (*models.Test, error) {
	test, ok := f.tests[id]
	if !ok {
		return nil, grading.ErrTestNotFound
	}
	return test, nil
}

func (f *fakeGrading) Submit(_ context.Context, testID, studentID uuid.UUID, inputs []grading.AnswerInput) (*models.Submission, error) {
	if f.submitErr != nil {
		return nil, f.submitErr
	}
	if _, ok := f.tests[testID]; !ok {
		return nil, grading.ErrTestNotFound
	}
	sub := &models.Submission{ID: uuid.New(), TestID: testID, StudentID: studentID, Status: models.SubmissionSubmitted}
	for _, in := range inputs {
		sub.Answers = append(sub.Answers, models.Answer{QuestionID: in.QuestionID, StudentResponse: in.StudentResponse})
	}
	f.subs[sub.ID] = sub
	return sub, nil
}

func (f *fakeGrading) GetSubmission(_ context.Context, id uuid.UUID) (*models.Submission, error) {
	sub, ok := f.subs[id]
	if !ok {
		return nil, grading.ErrSubmissionNotFound
	}
	return sub, nil
}

func (f *fakeGrading) RetryGrading(context.Context, uuid.UUID) error {
	return f.retryErr
}

type stubPinger struct{ err error }

func (p stubPinger) Ping(context.Context) error { return p.err }

type fixture struct {
	handler   http.Handler
	docs      *fakeDocs
	answerer  *fakeAnswerer
	grading   *fakeGrading
	dbPinger  *stubPinger
	cacheStub *stubPinger
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cfg := &config.Config{Server: config.ServerConfig{CORSOrigins: []string{"*"}, RateLimitRPS: 1000, RateLimitBurst: 1000}}
	f := &fixture{
		docs:      newFakeDocs(),
		answerer:  &fakeAnswerer{result: &rag.Result{Answer: "Paris", Found: true}},
		grading:   newFakeGrading(),
		dbPinger:  &stubPinger{},
		cacheStub: &stubPinger{},
	}
	f.handler = NewRouter(cfg, Deps{
		DB:        f.dbPinger,
		Cache:     f.cacheStub,
		Documents: f.docs,
		Responder: f.answerer,
		Retriever: &fakeSearcher{},
		Grading:   f.grading,
	}).Setup()
	return f
}

func (f *fixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestHealthEndpoints(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodGet, "/readyz", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	f.cacheStub.err = errors.New("connection refused")
	rec = f.do(t, http.MethodGet, "/readyz", nil)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	body := decodeBody[map[string]any](t, rec)
	require.Equal(t, "unhealthy", body["status"])
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestCreateDocument(t *testing.T) {
	f := newFixture(t)
	owner := uuid.New()

	rec := f.do(t, http.MethodPost, "/api/v1/documents", map[string]any{
		"owner_id": owner,
		"title":    "Geography",
		"content":  "Paris is the capital of France.",
	})
	require.Equal(t, http.StatusAccepted, rec.Code)
	doc := decodeBody[models.Document](t, rec)
	require.Equal(t, models.IndexStatusPending, doc.IndexingStatus)
	require.Len(t, f.docs.created, 1)
	require.Equal(t, owner, f.docs.created[0].OwnerID)
}

func TestCreateDocumentValidation(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/v1/documents", map[string]any{"title": "No owner", "content": "x"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeBody[map[string]any](t, rec)
	require.Equal(t, "validation failed", body["error"])

	rec = f.do(t, http.MethodPost, "/api/v1/documents", map[string]any{"owner_id": uuid.New(), "title": "Empty"})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/v1/documents", map[string]any{"owner_id": uuid.New(), "title": "Later", "awaiting_content": true})
	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Equal(t, models.IndexStatusAwaitingContent, decodeBody[models.Document](t, rec).IndexingStatus)

	rec = f.do(t, http.MethodPost, "/api/v1/documents", map[string]any{"owner_id": uuid.New(), "title": "x", "content": "y", "bogus": 1})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUploadDocument(t *testing.T) {
	f := newFixture(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("owner_id", uuid.NewString()))
	part, err := mw.CreateFormFile("file", "notes.txt")
	require.NoError(t, err)
	_, err = part.Write([]byte("hello"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/documents/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Equal(t, []string{"notes.txt"}, f.docs.uploaded)
}

func TestDocumentLifecycleRoutes(t *testing.T) {
	f := newFixture(t)
	doc := f.docs.add(models.IndexStatusCompleted)

	rec := f.do(t, http.MethodGet, "/api/v1/documents/"+doc.ID.String(), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/v1/documents?owner_id="+doc.OwnerID.String(), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.EqualValues(t, 1, decodeBody[map[string]any](t, rec)["count"])

	rec = f.do(t, http.MethodPost, "/api/v1/documents/"+doc.ID.String()+"/generating", nil)
	require.Equal(t, http.StatusAccepted, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/v1/documents/"+doc.ID.String()+"/resubmit", nil)
	require.Equal(t, http.StatusConflict, rec.Code)

	rec = f.do(t, http.MethodPut, "/api/v1/documents/"+doc.ID.String()+"/content", map[string]string{"content": "new text"})
	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Equal(t, "new text", f.docs.docs[doc.ID].Content)

	rec = f.do(t, http.MethodGet, "/api/v1/documents/"+doc.ID.String()+"/status", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, models.IndexStatusPending, decodeBody[map[string]string](t, rec)["status"])

	rec = f.do(t, http.MethodDelete, "/api/v1/documents/"+doc.ID.String(), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/v1/documents/"+doc.ID.String(), nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDocumentBadIDAndInternalError(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/api/v1/documents/not-a-uuid", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/v1/documents", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	doc := f.docs.add(models.IndexStatusCompleted)
	f.docs.err = errors.New("pool closed")
	rec = f.do(t, http.MethodDelete, "/api/v1/documents/"+doc.ID.String(), nil)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.NotContains(t, rec.Body.String(), "pool closed")
}

func TestRAGQuery(t *testing.T) {
	f := newFixture(t)
	scope := []uuid.UUID{uuid.New()}

	rec := f.do(t, http.MethodPost, "/api/v1/rag/query", map[string]any{"query": "Capital of France?", "document_ids": scope})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "Paris", decodeBody[rag.Result](t, rec).Answer)
	require.Equal(t, scope, f.answerer.scope)

	rec = f.do(t, http.MethodPost, "/api/v1/rag/query", map[string]any{"query": "Capital of France?", "document_ids": []uuid.UUID{}})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	f.answerer.err = &rag.ModelError{Err: errors.New("timeout")}
	rec = f.do(t, http.MethodPost, "/api/v1/rag/query", map[string]any{"query": "Capital?", "document_ids": scope})
	require.Equal(t, http.StatusBadGateway, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/v1/rag/search", map[string]any{"query": "Capital?", "document_ids": scope})
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestTestsAndSubmissions(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/v1/tests", map[string]any{
		"owner_id": uuid.New(),
		"title":    "Quiz",
		"questions": []map[string]any{
			{"type": "multiple_choice", "text": "2+2?", "options": []string{"3", "4"}, "correct_answer": "4", "max_points": 2},
			{"type": "open_ended", "text": "Explain photosynthesis.", "max_points": 5},
		},
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	test := decodeBody[models.Test](t, rec)
	require.Len(t, test.Questions, 2)

	rec = f.do(t, http.MethodGet, "/api/v1/tests/"+test.ID.String(), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/v1/tests/"+test.ID.String()+"/submissions", map[string]any{
		"student_id": uuid.New(),
		"answers": []map[string]any{
			{"question_id": test.Questions[0].ID, "student_response": "4"},
			{"question_id": test.Questions[1].ID, "student_response": "Plants use light."},
		},
	})
	require.Equal(t, http.StatusAccepted, rec.Code)
	sub := decodeBody[models.Submission](t, rec)

	rec = f.do(t, http.MethodGet, "/api/v1/submissions/"+sub.ID.String(), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/v1/submissions/"+sub.ID.String()+"/retry-grading", nil)
	require.Equal(t, http.StatusAccepted, rec.Code)

	f.grading.retryErr = grading.ErrNotRetryable
	rec = f.do(t, http.MethodPost, "/api/v1/submissions/"+sub.ID.String()+"/retry-grading", nil)
	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestCreateTestValidation(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/v1/tests", map[string]any{
		"owner_id":  uuid.New(),
		"title":     "Quiz",
		"questions": []map[string]any{{"type": "multiple_choice", "text": "2+2?", "max_points": 2}},
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/v1/tests", map[string]any{
		"owner_id":  uuid.New(),
		"title":     "Quiz",
		"questions": []map[string]any{{"type": "essay", "text": "?", "max_points": 2}},
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSubmitErrors(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/v1/tests/"+uuid.NewString()+"/submissions", map[string]any{
		"student_id": uuid.New(),
		"answers":    []map[string]any{{"question_id": uuid.New(), "student_response": "x"}},
	})
	require.Equal(t, http.StatusNotFound, rec.Code)

	f.grading.submitErr = grading.ErrInvalidAnswers
	rec = f.do(t, http.MethodPost, "/api/v1/tests/"+uuid.NewString()+"/submissions", map[string]any{
		"student_id": uuid.New(),
		"answers":    []map[string]any{{"question_id": uuid.New(), "student_response": "x"}},
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/v1/tests/"+uuid.NewString()+"/submissions", map[string]any{
		"student_id": uuid.New(),
		"answers":    []map[string]any{{"student_response": "x"}},
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

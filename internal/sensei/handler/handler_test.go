package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/sensei/internal/model"
	"github.com/kart-io/sensei/internal/sensei/biz"
	"github.com/kart-io/sensei/pkg/errors"
	"github.com/kart-io/sensei/pkg/utils/json"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeRouter struct {
	cls      *model.Classification
	err      error
	corrErr  error
	lastCorr [2]string
}

func (f *fakeRouter) Classify(_ context.Context, prompt string) (*model.Classification, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.cls, nil
}

func (f *fakeRouter) Correct(_ context.Context, query, label string) (model.Category, error) {
	f.lastCorr = [2]string{query, label}
	if f.corrErr != nil {
		return 0, f.corrErr
	}
	return model.ParseCategory(label)
}

type fakeAsker struct {
	ans *model.Answer
	err error
}

func (f *fakeAsker) Ask(context.Context, string) (*model.Answer, error) {
	return f.ans, f.err
}

type fakeKnowledge struct {
	res       *biz.IngestResult
	err       error
	removeErr error
	source    string
}

func (f *fakeKnowledge) Ingest(_ context.Context, source, _ string) (*biz.IngestResult, error) {
	f.source = source
	return f.res, f.err
}

func (f *fakeKnowledge) Remove(context.Context, string) error { return f.removeErr }

type fakeTranscripts struct {
	mu   sync.Mutex
	msgs map[string][]model.Message
	err  error
}

func (f *fakeTranscripts) Append(_ context.Context, sessionID string, msgs ...model.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	if f.msgs == nil {
		f.msgs = map[string][]model.Message{}
	}
	f.msgs[sessionID] = append(f.msgs[sessionID], msgs...)
	return nil
}

func (f *fakeTranscripts) Messages(_ context.Context, sessionID string, _ int) ([]model.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	m, ok := f.msgs[sessionID]
	if !ok {
		return []model.Message{}, nil
	}
	return m, nil
}

type fixture struct {
	router      *fakeRouter
	asker       *fakeAsker
	knowledge   *fakeKnowledge
	transcripts *fakeTranscripts
	engine      *gin.Engine
}

func newFixture() *fixture {
	f := &fixture{
		router:      &fakeRouter{cls: &model.Classification{Category: model.Red, EnhancedQuery: "port scan"}},
		asker:       &fakeAsker{ans: &model.Answer{Content: "use nmap", Category: model.Action}},
		knowledge:   &fakeKnowledge{res: &biz.IngestResult{DocumentID: "01HX", Chunks: 2, Persisted: true}},
		transcripts: &fakeTranscripts{},
	}
	// nil pool runs transcript writes inline
	h := NewSenseiHandler(f.router, f.asker, f.knowledge, f.transcripts, nil, Options{})
	e := gin.New()
	e.GET("/health", h.Health)
	e.POST("/v1/ask", h.Ask)
	e.POST("/v1/debug/classify", h.Classify)
	e.POST("/v1/feedback/correct", h.Correct)
	e.POST("/v1/knowledge/add", h.AddDocument)
	e.DELETE("/v1/knowledge/:id", h.RemoveDocument)
	e.GET("/v1/sessions/:id/messages", h.Messages)
	f.engine = e
	return f
}

func (f *fixture) do(method, path, body string, header ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	w := httptest.NewRecorder()
	f.engine.ServeHTTP(w, req)
	return w
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) int {
	t.Helper()
	var body struct {
		Code int `json:"code"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body.Code
}

func TestHealth(t *testing.T) {
	w := newFixture().do(http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestClassify(t *testing.T) {
	w := newFixture().do(http.MethodPost, "/v1/debug/classify", `{"prompt":"scan ports"}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"category":"Red","enhanced_query":"port scan"}`, w.Body.String())
}

func TestClassify_Errors(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		err    error
		status int
		code   int
	}{
		{name: "missing prompt", body: `{}`, status: http.StatusBadRequest, code: errors.ErrValidation.Code},
		{name: "malformed json", body: `{"prompt":`, status: http.StatusBadRequest, code: errors.ErrValidation.Code},
		{name: "classifier failure", body: `{"prompt":"x"}`, err: errors.ErrClassification, status: http.StatusBadGateway, code: errors.ErrClassification.Code},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			f.router.err = tt.err
			w := f.do(http.MethodPost, "/v1/debug/classify", tt.body)
			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.code, errorCode(t, w))
		})
	}
}

func TestCorrect(t *testing.T) {
	f := newFixture()
	w := f.do(http.MethodPost, "/v1/feedback/correct", `{"query":"Who is Kevin Mitnick?","correct_category":"osint"}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok","query":"Who is Kevin Mitnick?","category":"Osint"}`, w.Body.String())
	assert.Equal(t, [2]string{"Who is Kevin Mitnick?", "osint"}, f.router.lastCorr)
}

func TestCorrect_Errors(t *testing.T) {
	f := newFixture()
	w := f.do(http.MethodPost, "/v1/feedback/correct", `{"query":"q"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "correct_category is required")

	f.router.corrErr = errors.ErrUnknownCategory.WithMessage("unknown category: purple")
	w = f.do(http.MethodPost, "/v1/feedback/correct", `{"query":"q","correct_category":"purple"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, errors.ErrUnknownCategory.Code, errorCode(t, w))

	f.router.corrErr = errors.ErrStorage
	w = f.do(http.MethodPost, "/v1/feedback/correct", `{"query":"q","correct_category":"red"}`)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, errors.ErrStorage.Code, errorCode(t, w))
}

func TestAsk_IssuesSessionAndRecordsTranscript(t *testing.T) {
	f := newFixture()
	w := f.do(http.MethodPost, "/v1/ask", `{"prompt":"how do I scan?"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"content":"use nmap"}`, w.Body.String())

	sid := w.Header().Get(HeaderSessionID)
	require.NotEmpty(t, sid)

	w = f.do(http.MethodGet, "/v1/sessions/"+sid+"/messages", "")
	require.Equal(t, http.StatusOK, w.Code)
	var out struct {
		SessionID string          `json:"session_id"`
		Messages  []model.Message `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	assert.Equal(t, sid, out.SessionID)
	require.Len(t, out.Messages, 2)
	assert.Equal(t, model.RoleUser, out.Messages[0].Role)
	assert.Equal(t, "how do I scan?", out.Messages[0].Content)
	assert.Equal(t, model.RoleAssistant, out.Messages[1].Role)
	assert.Equal(t, "Action", out.Messages[1].Category)
}

func TestAsk_ReusesSessionHeader(t *testing.T) {
	f := newFixture()
	w := f.do(http.MethodPost, "/v1/ask", `{"prompt":"hi"}`, HeaderSessionID, "s-1")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "s-1", w.Header().Get(HeaderSessionID))
	assert.Len(t, f.transcripts.msgs["s-1"], 2)
}

func TestAsk_TranscriptFailureDoesNotFailRequest(t *testing.T) {
	f := newFixture()
	f.transcripts.err = errors.ErrStorage
	w := f.do(http.MethodPost, "/v1/ask", `{"prompt":"hi"}`)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAsk_Errors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{name: "generation", err: errors.ErrGeneration, status: http.StatusBadGateway},
		{name: "timeout", err: errors.ErrGenerationTimeout, status: http.StatusGatewayTimeout},
		{name: "classification", err: errors.ErrClassification, status: http.StatusBadGateway},
		{name: "validation", err: errors.ErrValidation, status: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			f.asker.err = tt.err
			w := f.do(http.MethodPost, "/v1/ask", `{"prompt":"hi"}`)
			assert.Equal(t, tt.status, w.Code)
			assert.Empty(t, f.transcripts.msgs)
		})
	}
}

func TestAddDocument(t *testing.T) {
	f := newFixture()
	w := f.do(http.MethodPost, "/v1/knowledge/add", `{"content":"BLUEBERRY_PIE","source":"notes.md"}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok","document_id":"01HX","chunks":2,"persisted":true}`, w.Body.String())
	assert.Equal(t, "notes.md", f.knowledge.source)
}

func TestAddDocument_Degraded(t *testing.T) {
	f := newFixture()
	f.knowledge.res = &biz.IngestResult{DocumentID: "01HY", Chunks: 1}
	f.knowledge.err = errors.ErrStorage
	w := f.do(http.MethodPost, "/v1/knowledge/add", `{"content":"x"}`)
	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.JSONEq(t, `{"status":"degraded","document_id":"01HY","chunks":1,"persisted":false}`, w.Body.String())
}

func TestAddDocument_Rejected(t *testing.T) {
	f := newFixture()
	f.knowledge.res = nil
	f.knowledge.err = errors.ErrValidation.WithMessage("content is required")
	w := f.do(http.MethodPost, "/v1/knowledge/add", `{"content":"   "}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(http.MethodPost, "/v1/knowledge/add", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRemoveDocument(t *testing.T) {
	f := newFixture()
	w := f.do(http.MethodDelete, "/v1/knowledge/01HX", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())

	f.knowledge.removeErr = errors.ErrDocumentNotFound
	w = f.do(http.MethodDelete, "/v1/knowledge/missing", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestMessages_UnknownSession(t *testing.T) {
	w := newFixture().do(http.MethodGet, "/v1/sessions/nope/messages", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"session_id":"nope","messages":[]}`, w.Body.String())
}

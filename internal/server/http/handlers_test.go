package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/research-assistant-service/internal/assistant"
	"github.com/helixir/research-assistant-service/internal/domain"
	"github.com/helixir/research-assistant-service/internal/llm"
	"github.com/helixir/research-assistant-service/internal/papersources"
)

// ---------------------------------------------------------------------------
// Mock implementations
// ---------------------------------------------------------------------------

// mockAssistant implements Assistant for HTTP handler tests.
type mockAssistant struct {
	initialContentFn func(ctx context.Context, prompt string) (string, error)
	questionFn       func(ctx context.Context, prompt string, stage domain.Stage, feedback []domain.Feedback) (string, error)
	strategiesFn     func(ctx context.Context, prompt string, feedback []domain.Feedback) ([]string, error)
	queriesFn        func(ctx context.Context, prompt string, feedback []domain.Feedback) ([]string, error)
	validateFn       func(ctx context.Context, prompt string, papers []domain.Paper) ([]domain.Paper, error)
	reportFn         func(ctx context.Context, in assistant.ReportInput) (string, error)
	manualFn         func(in assistant.ManualSourceInput) (domain.Paper, error)
}

func (m *mockAssistant) InitialContent(ctx context.Context, prompt string) (string, error) {
	if m.initialContentFn != nil {
		return m.initialContentFn(ctx, prompt)
	}
	return "", nil
}

func (m *mockAssistant) ConfirmationQuestion(ctx context.Context, prompt string, stage domain.Stage, feedback []domain.Feedback) (string, error) {
	if m.questionFn != nil {
		return m.questionFn(ctx, prompt, stage, feedback)
	}
	return "", nil
}

func (m *mockAssistant) Strategies(ctx context.Context, prompt string, feedback []domain.Feedback) ([]string, error) {
	if m.strategiesFn != nil {
		return m.strategiesFn(ctx, prompt, feedback)
	}
	return nil, nil
}

func (m *mockAssistant) SearchQueries(ctx context.Context, prompt string, feedback []domain.Feedback) ([]string, error) {
	if m.queriesFn != nil {
		return m.queriesFn(ctx, prompt, feedback)
	}
	return nil, nil
}

func (m *mockAssistant) ValidatePapers(ctx context.Context, prompt string, papers []domain.Paper) ([]domain.Paper, error) {
	if m.validateFn != nil {
		return m.validateFn(ctx, prompt, papers)
	}
	return papers, nil
}

func (m *mockAssistant) Report(ctx context.Context, in assistant.ReportInput) (string, error) {
	if m.reportFn != nil {
		return m.reportFn(ctx, in)
	}
	return "", nil
}

func (m *mockAssistant) ManualSource(in assistant.ManualSourceInput) (domain.Paper, error) {
	if m.manualFn != nil {
		return m.manualFn(in)
	}
	return domain.Paper{}, nil
}

// mockAggregator implements Aggregator.
type mockAggregator struct {
	calls       int
	aggregateFn func(ctx context.Context, queries []string) ([]domain.Paper, error)
}

func (m *mockAggregator) Aggregate(ctx context.Context, queries []string) ([]domain.Paper, error) {
	m.calls++
	if m.aggregateFn != nil {
		return m.aggregateFn(ctx, queries)
	}
	return []domain.Paper{}, nil
}

// mockSource implements papersources.PaperSource for listing.
type mockSource struct {
	sourceType domain.SourceType
	name       string
	enabled    bool
}

func (m *mockSource) Search(context.Context, papersources.SearchParams) (*papersources.SearchResult, error) {
	return &papersources.SearchResult{Source: m.sourceType}, nil
}
func (m *mockSource) SourceType() domain.SourceType { return m.sourceType }
func (m *mockSource) Name() string                  { return m.name }
func (m *mockSource) IsEnabled() bool               { return m.enabled }

// mockSourceLister implements SourceLister.
type mockSourceLister struct {
	sources []papersources.PaperSource
}

func (m *mockSourceLister) AllSources() []papersources.PaperSource { return m.sources }

func (m *mockSourceLister) EnabledSources() []papersources.PaperSource {
	var enabled []papersources.PaperSource
	for _, src := range m.sources {
		if src.IsEnabled() {
			enabled = append(enabled, src)
		}
	}
	return enabled
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func defaultSources() *mockSourceLister {
	return &mockSourceLister{sources: []papersources.PaperSource{
		&mockSource{sourceType: domain.SourceTypeCORE, name: "CORE", enabled: false},
		&mockSource{sourceType: domain.SourceTypeCrossref, name: "Crossref", enabled: true},
	}}
}

func newTestHTTPServer(a Assistant, agg Aggregator, sources SourceLister) *Server {
	if a == nil {
		a = &mockAssistant{}
	}
	if agg == nil {
		agg = &mockAggregator{}
	}
	if sources == nil {
		sources = defaultSources()
	}
	return NewServer(Config{}, a, agg, sources, zerolog.Nop(), nil)
}

// serveHTTP dispatches a request through the test server's router and returns the recorder.
func serveHTTP(s *Server, r *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	s.router.ServeHTTP(rr, r)
	return rr
}

// postJSON builds a POST request with a JSON body.
func postJSON(t *testing.T, path string, body any) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case string:
		buf.WriteString(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(b))
	}
	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// decodeJSON decodes a JSON response body into the given target.
func decodeJSON(t *testing.T, rr *httptest.ResponseRecorder, target interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), target), "body: %s", rr.Body.String())
}

func errorMessage(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var resp errorResponse
	decodeJSON(t, rr, &resp)
	return resp.Error
}

// ---------------------------------------------------------------------------
// Assistant endpoints
// ---------------------------------------------------------------------------

func TestGenerateInitialContent(t *testing.T) {
	var gotPrompt string
	a := &mockAssistant{
		initialContentFn: func(_ context.Context, prompt string) (string, error) {
			gotPrompt = prompt
			return "Overview...", nil
		},
	}
	srv := newTestHTTPServer(a, nil, nil)

	rr := serveHTTP(srv, postJSON(t, "/api/generate-initial-content", map[string]string{"prompt": "coral reefs"}))

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	var resp initialContentResponse
	decodeJSON(t, rr, &resp)
	assert.Equal(t, "Overview...", resp.InitialContent)
	assert.Equal(t, "coral reefs", gotPrompt)
}

func TestGenerateInitialContent_BadRequests(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantMsg string
	}{
		{"empty body", "", "request body is required"},
		{"invalid json", "{not json", "invalid JSON request body"},
		{"missing prompt", `{}`, "prompt is required"},
		{"prompt too long", `{"prompt":"` + strings.Repeat("a", 10001) + `"}`, "prompt must be at most 10000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestHTTPServer(nil, nil, nil)
			rr := serveHTTP(srv, postJSON(t, "/api/generate-initial-content", tt.body))
			assert.Equal(t, http.StatusBadRequest, rr.Code)
			assert.Equal(t, tt.wantMsg, errorMessage(t, rr))
		})
	}
}

func TestGenerateInitialContent_LLMFailure(t *testing.T) {
	a := &mockAssistant{
		initialContentFn: func(context.Context, string) (string, error) {
			return "", &llm.APIError{Provider: "openai", StatusCode: 500, Message: "upstream exploded"}
		},
	}
	srv := newTestHTTPServer(a, nil, nil)

	rr := serveHTTP(srv, postJSON(t, "/api/generate-initial-content", map[string]string{"prompt": "x"}))

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Equal(t, "Failed to generate initial content", errorMessage(t, rr))
}

func TestGenerateConfirmationQuestion(t *testing.T) {
	var gotStage domain.Stage
	var gotFeedback []domain.Feedback
	a := &mockAssistant{
		questionFn: func(_ context.Context, _ string, stage domain.Stage, feedback []domain.Feedback) (string, error) {
			gotStage = stage
			gotFeedback = feedback
			return "Is this outline OK?", nil
		},
	}
	srv := newTestHTTPServer(a, nil, nil)

	body := map[string]any{
		"prompt":       "coral reefs",
		"currentStage": "keypoints",
		"userFeedback": []map[string]string{{"question": "Outline?", "answer": "Yes"}},
	}
	rr := serveHTTP(srv, postJSON(t, "/api/generate-confirmation-question", body))

	require.Equal(t, http.StatusOK, rr.Code)
	var resp questionResponse
	decodeJSON(t, rr, &resp)
	assert.Equal(t, "Is this outline OK?", resp.Question)
	assert.Equal(t, domain.StageKeyPoints, gotStage)
	assert.Equal(t, []domain.Feedback{{Question: "Outline?", Answer: "Yes"}}, gotFeedback)
}

func TestGenerateConfirmationQuestion_UnknownStage(t *testing.T) {
	a := &mockAssistant{
		questionFn: func(context.Context, string, domain.Stage, []domain.Feedback) (string, error) {
			t.Fatal("assistant must not be called for an unknown stage")
			return "", nil
		},
	}
	srv := newTestHTTPServer(a, nil, nil)

	rr := serveHTTP(srv, postJSON(t, "/api/generate-confirmation-question", map[string]any{
		"prompt":       "x",
		"currentStage": "draft",
	}))

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, errorMessage(t, rr), "currentStage")
}

func TestGenerateStrategies(t *testing.T) {
	a := &mockAssistant{
		strategiesFn: func(context.Context, string, []domain.Feedback) ([]string, error) {
			return []string{"s1", "s2"}, nil
		},
	}
	srv := newTestHTTPServer(a, nil, nil)

	rr := serveHTTP(srv, postJSON(t, "/api/generate-strategies", map[string]any{"prompt": "x"}))

	require.Equal(t, http.StatusOK, rr.Code)
	var resp strategiesResponse
	decodeJSON(t, rr, &resp)
	assert.Equal(t, []string{"s1", "s2"}, resp.Strategies)
}

func TestGenerateSearchQueries_EmptyListSerializesAsArray(t *testing.T) {
	srv := newTestHTTPServer(&mockAssistant{}, nil, nil)

	rr := serveHTTP(srv, postJSON(t, "/api/generate-search-queries", map[string]any{"prompt": "x"}))

	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"queries":[]}`, rr.Body.String())
}

func TestGenerateSearchQueries_Failure(t *testing.T) {
	a := &mockAssistant{
		queriesFn: func(context.Context, string, []domain.Feedback) ([]string, error) {
			return nil, llm.ErrEmptyCompletion
		},
	}
	srv := newTestHTTPServer(a, nil, nil)

	rr := serveHTTP(srv, postJSON(t, "/api/generate-search-queries", map[string]any{"prompt": "x"}))

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Equal(t, "Failed to generate search queries", errorMessage(t, rr))
}

func TestGenerateReport(t *testing.T) {
	var got assistant.ReportInput
	a := &mockAssistant{
		reportFn: func(_ context.Context, in assistant.ReportInput) (string, error) {
			got = in
			return "# Report", nil
		},
	}
	srv := newTestHTTPServer(a, nil, nil)

	body := map[string]any{
		"prompt":         "coral reefs",
		"userFeedback":   []map[string]string{{"question": "q", "answer": "a"}},
		"strategies":     []string{"reef AND bleaching"},
		"selectedPapers": []map[string]any{{"id": "core-1", "title": "Reef bleaching", "authors": []any{}, "source": "CORE", "year": 2020}},
	}
	rr := serveHTTP(srv, postJSON(t, "/api/generate-report", body))

	require.Equal(t, http.StatusOK, rr.Code)
	var resp reportResponse
	decodeJSON(t, rr, &resp)
	assert.Equal(t, "# Report", resp.Report)

	assert.Equal(t, "coral reefs", got.Prompt)
	assert.Equal(t, []string{"reef AND bleaching"}, got.Strategies)
	require.Len(t, got.Papers, 1)
	assert.Equal(t, "Reef bleaching", got.Papers[0].Title)
	require.NotNil(t, got.Papers[0].Year)
	assert.Equal(t, 2020, *got.Papers[0].Year)
}

func TestGenerateReport_Failure(t *testing.T) {
	a := &mockAssistant{
		reportFn: func(context.Context, assistant.ReportInput) (string, error) {
			return "", context.DeadlineExceeded
		},
	}
	srv := newTestHTTPServer(a, nil, nil)

	rr := serveHTTP(srv, postJSON(t, "/api/generate-report", map[string]any{"prompt": "x"}))

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Equal(t, "Failed to generate report", errorMessage(t, rr))
}

func TestRequestBodyTooLarge(t *testing.T) {
	srv := NewServer(Config{MaxBodyBytes: 64}, &mockAssistant{}, &mockAggregator{}, defaultSources(), zerolog.Nop(), nil)

	body := `{"prompt":"` + strings.Repeat("a", 200) + `"}`
	rr := serveHTTP(srv, postJSON(t, "/api/generate-initial-content", body))

	assert.Equal(t, http.StatusRequestEntityTooLarge, rr.Code)
	assert.Equal(t, "request body too large", errorMessage(t, rr))
}

func TestWriteDomainError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantMsg    string
	}{
		{"validation", domain.NewValidationError("title", "title is required"), http.StatusBadRequest, "validation error: title: title is required"},
		{"bare invalid input", domain.ErrInvalidInput, http.StatusBadRequest, "invalid input"},
		{"rate limited", domain.NewRateLimitError("core", 0), http.StatusTooManyRequests, "rate limited"},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, "internal server error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			writeDomainError(rr, tt.err)
			assert.Equal(t, tt.wantStatus, rr.Code)
			assert.Equal(t, tt.wantMsg, errorMessage(t, rr))
		})
	}
}

// ---------------------------------------------------------------------------
// Health endpoints
// ---------------------------------------------------------------------------

func TestHealthz(t *testing.T) {
	srv := newTestHTTPServer(nil, nil, nil)
	rr := serveHTTP(srv, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rr.Body.String())
}

func TestReadyz(t *testing.T) {
	srv := newTestHTTPServer(nil, nil, nil)
	rr := serveHTTP(srv, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"ready","enabled_sources":1}`, rr.Body.String())

	srv = newTestHTTPServer(nil, nil, &mockSourceLister{sources: []papersources.PaperSource{
		&mockSource{sourceType: domain.SourceTypeCORE, name: "CORE"},
	}})
	rr = serveHTTP(srv, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.JSONEq(t, `{"status":"not_ready","enabled_sources":0}`, rr.Body.String())
}

func TestUnknownRoute(t *testing.T) {
	srv := newTestHTTPServer(nil, nil, nil)
	rr := serveHTTP(srv, httptest.NewRequest(http.MethodGet, "/api/nope", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

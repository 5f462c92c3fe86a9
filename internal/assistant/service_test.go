package assistant

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/research-assistant-service/internal/domain"
	"github.com/helixir/research-assistant-service/internal/llm"
	"github.com/helixir/research-assistant-service/internal/observability"
)

// mockClient is a hand-written llm.Client that records every request.
type mockClient struct {
	mu           sync.Mutex
	requests     []llm.CompletionRequest
	completeFunc func(ctx context.Context, req llm.CompletionRequest) (*llm.Completion, error)
}

func (m *mockClient) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.Completion, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.mu.Unlock()
	if m.completeFunc != nil {
		return m.completeFunc(ctx, req)
	}
	return &llm.Completion{Text: "ok", Model: req.Model}, nil
}

func (m *mockClient) Provider() string { return "mock" }
func (m *mockClient) Model() string    { return "mock-model" }

func (m *mockClient) lastRequest(t *testing.T) llm.CompletionRequest {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	require.NotEmpty(t, m.requests)
	return m.requests[len(m.requests)-1]
}

func replying(text string) *mockClient {
	return &mockClient{
		completeFunc: func(_ context.Context, req llm.CompletionRequest) (*llm.Completion, error) {
			return &llm.Completion{Text: text, Model: req.Model, InputTokens: 10, OutputTokens: 5}, nil
		},
	}
}

func newTestService(client llm.Client) *Service {
	svc := New(client, Config{}, zerolog.Nop(), nil)
	svc.newID = func() string { return "fixed-uuid" }
	return svc
}

var sampleFeedback = []domain.Feedback{
	{Question: "Which outline?", Answer: "Keep it short"},
	{Question: "Any key points?", Answer: "Focus on hardware"},
}

func TestNew_Defaults(t *testing.T) {
	svc := New(&mockClient{}, Config{}, zerolog.Nop(), nil)
	assert.Equal(t, DefaultChatModel, svc.config.ChatModel)
	assert.Equal(t, DefaultReportModel, svc.config.ReportModel)
	assert.Equal(t, DefaultChatTemperature, svc.config.ChatTemperature)
	assert.Equal(t, DefaultReportTemperature, svc.config.ReportTemperature)

	svc = New(&mockClient{}, Config{ChatModel: "gpt-4o", ReportModel: "o1"}, zerolog.Nop(), nil)
	assert.Equal(t, "gpt-4o", svc.config.ChatModel)
	assert.Equal(t, "o1", svc.config.ReportModel)
}

func TestInitialContent(t *testing.T) {
	client := replying("Overview of quantum computing")
	svc := newTestService(client)

	text, err := svc.InitialContent(context.Background(), "quantum computing")
	require.NoError(t, err)
	assert.Equal(t, "Overview of quantum computing", text)

	req := client.lastRequest(t)
	assert.Equal(t, initialContentSystem, req.System)
	assert.Equal(t, "Research topic: quantum computing", req.User)
	assert.Equal(t, "gpt-4", req.Model)
	assert.Equal(t, 0.7, req.Temperature)
	assert.False(t, req.JSON)
}

func TestInitialContent_LLMError(t *testing.T) {
	apiErr := &llm.APIError{Provider: "openai", StatusCode: 401, Message: "bad key"}
	client := &mockClient{
		completeFunc: func(context.Context, llm.CompletionRequest) (*llm.Completion, error) {
			return nil, apiErr
		},
	}
	svc := newTestService(client)

	_, err := svc.InitialContent(context.Background(), "topic")
	require.Error(t, err)
	assert.ErrorIs(t, err, apiErr)
	assert.Contains(t, err.Error(), OpInitialContent)
}

func TestConfirmationQuestion_Stages(t *testing.T) {
	tests := []struct {
		stage       domain.Stage
		instruction string
		systemHint  string
	}{
		{domain.StageOutline, "Please suggest a report outline for this topic and ask if the user wants to make any changes.", "4-6 main sections"},
		{domain.StageKeyPoints, "Please suggest 5 key points for this report and ask if the user wants to make any changes.", "suggest 5 key points"},
		{domain.StageFinal, "Please summarize the report plan and ask for final confirmation.", "Summarize the report plan"},
	}

	for _, tt := range tests {
		t.Run(string(tt.stage), func(t *testing.T) {
			client := replying("Does this outline work?")
			svc := newTestService(client)

			question, err := svc.ConfirmationQuestion(context.Background(), "graph neural networks", tt.stage, sampleFeedback)
			require.NoError(t, err)
			assert.Equal(t, "Does this outline work?", question)

			req := client.lastRequest(t)
			assert.Contains(t, req.System, tt.systemHint)
			want := "Research topic: graph neural networks\n\n" +
				"User feedback so far:\n" +
				"Question: Which outline?\nUser's response: Keep it short\n\n" +
				"Question: Any key points?\nUser's response: Focus on hardware\n\n" +
				"\n" + tt.instruction
			assert.Equal(t, want, req.User)
		})
	}
}

func TestConfirmationQuestion_UnknownStage(t *testing.T) {
	client := &mockClient{}
	svc := newTestService(client)

	_, err := svc.ConfirmationQuestion(context.Background(), "topic", domain.Stage("draft"), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.Empty(t, client.requests)
}

func TestStrategies(t *testing.T) {
	client := replying("Here you go.\nStrategy 1: \"quantum\" AND error\nSTRATEGY 2: surface codes OR topological\n\nstrategy 3:   \n")
	svc := newTestService(client)

	strategies, err := svc.Strategies(context.Background(), "quantum error correction", sampleFeedback[:1])
	require.NoError(t, err)
	assert.Equal(t, []string{
		"Here you go.",
		"\"quantum\" AND error",
		"surface codes OR topological",
	}, strategies)

	req := client.lastRequest(t)
	assert.Equal(t, strategiesSystem, req.System)
	assert.Equal(t, "Research topic: quantum error correction\n\nUser preferences and feedback:\nQ: Which outline?\nUser's response: Keep it short\n\n", req.User)
}

func TestSearchQueries(t *testing.T) {
	client := replying(strings.Join([]string{
		"\"deep learning\" AND radiology",
		"",
		"1. numbered query should be dropped",
		"* bullet query should be dropped",
		"- dash query should be dropped",
		"short one",
		"  (transformer OR attention) AND \"medical imaging\"  ",
	}, "\n"))
	svc := newTestService(client)

	queries, err := svc.SearchQueries(context.Background(), "AI in radiology", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"\"deep learning\" AND radiology",
		"(transformer OR attention) AND \"medical imaging\"",
	}, queries)
	assert.Equal(t, searchQueriesSystem, client.lastRequest(t).System)
}

func TestValidatePapers(t *testing.T) {
	papers := []domain.Paper{
		{ID: "core-1", Title: "Paper One", Source: "CORE"},
		{ID: "crossref-10.1/b", Title: "Paper Two", Source: "Crossref"},
	}

	t.Run("scored", func(t *testing.T) {
		client := replying(`{"papers":[{"id":"core-1","title":"Paper One","authors":[],"source":"CORE","relevanceScore":8,"relevanceExplanation":"on topic"}]}`)
		svc := newTestService(client)

		got, err := svc.ValidatePapers(context.Background(), "topic", papers)
		require.NoError(t, err)
		require.Len(t, got, 1)
		require.NotNil(t, got[0].RelevanceScore)
		assert.Equal(t, 8, *got[0].RelevanceScore)
		assert.Equal(t, "on topic", got[0].RelevanceExplanation)

		req := client.lastRequest(t)
		assert.True(t, req.JSON)
		assert.True(t, strings.HasPrefix(req.User, "Research topic: topic\n\nPapers found:\n[\n  {"))
		assert.Contains(t, req.User, `"id": "crossref-10.1/b"`)
	})

	fallbacks := map[string]string{
		"not json":       "I think they are all relevant",
		"missing papers": `{"results":[]}`,
		"null papers":    `{"papers":null}`,
	}
	for name, text := range fallbacks {
		t.Run(name, func(t *testing.T) {
			svc := newTestService(replying(text))
			got, err := svc.ValidatePapers(context.Background(), "topic", papers)
			require.NoError(t, err)
			assert.Equal(t, papers, got)
		})
	}

	t.Run("llm error", func(t *testing.T) {
		client := &mockClient{
			completeFunc: func(context.Context, llm.CompletionRequest) (*llm.Completion, error) {
				return nil, llm.ErrEmptyCompletion
			},
		}
		_, err := newTestService(client).ValidatePapers(context.Background(), "topic", papers)
		assert.ErrorIs(t, err, llm.ErrEmptyCompletion)
	})
}

func TestReport(t *testing.T) {
	client := replying("# Report")
	svc := newTestService(client)

	report, err := svc.Report(context.Background(), ReportInput{
		Prompt:     "soil carbon",
		Feedback:   sampleFeedback[1:],
		Strategies: []string{"soil AND carbon"},
		Papers: []domain.Paper{
			{
				Title:    "Carbon in soils",
				Authors:  []domain.Author{{Name: "Ada Lovelace"}, {Name: "Alan Turing"}},
				Year:     domain.IntPtr(2021),
				DOI:      "10.1/soil",
				Abstract: "Measured carbon.",
			},
			{Title: "Untitled draft"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "# Report", report)

	req := client.lastRequest(t)
	assert.Equal(t, "o3-mini", req.Model)
	assert.Equal(t, 0.5, req.Temperature)
	assert.Equal(t, reportSystem, req.System)

	want := "Research topic: soil carbon\n\n" +
		"User preferences and feedback:\n" +
		"Q: Any key points?\nUser's response: Focus on hardware\n\n" +
		"Search Strategies:\n" +
		"Strategy 1: soil AND carbon\n\n" +
		"Selected Papers for Citation:\n" +
		"Paper 1:\nTitle: Carbon in soils\nAuthors: Ada Lovelace, Alan Turing\nYear: 2021\nDOI: 10.1/soil\nAbstract: Measured carbon.\n\n" +
		"Paper 2:\nTitle: Untitled draft\nAuthors: Unknown\nYear: Unknown\nDOI: N/A\nAbstract: N/A\n\n" +
		reportInstruction
	assert.Equal(t, want, req.User)
}

func TestManualSource(t *testing.T) {
	svc := newTestService(&mockClient{})

	paper, err := svc.ManualSource(ManualSourceInput{
		Title:    "  A Manual Paper  ",
		Authors:  "Ada Lovelace, , Alan Turing ,",
		Year:     domain.IntPtr(1950),
		DOI:      "10.1/manual",
		URL:      "https://example.org/manual",
		Abstract: "Hand entered.",
	})
	require.NoError(t, err)
	assert.Equal(t, "manual-fixed-uuid", paper.ID)
	assert.Equal(t, "A Manual Paper", paper.Title)
	assert.Equal(t, []domain.Author{{Name: "Ada Lovelace"}, {Name: "Alan Turing"}}, paper.Authors)
	require.NotNil(t, paper.Year)
	assert.Equal(t, 1950, *paper.Year)
	assert.Equal(t, domain.SourceLabelManual, paper.Source)
	assert.True(t, paper.IsCitable())
}

func TestManualSource_Validation(t *testing.T) {
	svc := newTestService(&mockClient{})

	_, err := svc.ManualSource(ManualSourceInput{Title: "   "})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	var vErr *domain.ValidationError
	require.True(t, errors.As(err, &vErr))
	assert.Equal(t, "title", vErr.Field)
}

func TestManualSource_NoYear(t *testing.T) {
	svc := New(&mockClient{}, Config{}, zerolog.Nop(), nil)

	paper, err := svc.ManualSource(ManualSourceInput{Title: "Undated work", Authors: ""})
	require.NoError(t, err)
	assert.Nil(t, paper.Year)
	assert.Empty(t, paper.Authors)
	assert.True(t, strings.HasPrefix(paper.ID, domain.IDPrefixManual))
	assert.Len(t, paper.ID, len(domain.IDPrefixManual)+36)
}

func TestService_RecordsLLMMetrics(t *testing.T) {
	metrics := observability.NewMetricsWithRegistry("test_assistant", prometheus.NewRegistry())

	svc := New(replying("text"), Config{}, zerolog.Nop(), metrics)
	_, err := svc.InitialContent(context.Background(), "topic")
	require.NoError(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.LLMRequestsTotal.WithLabelValues(OpInitialContent, "gpt-4")))
	assert.Equal(t, 10.0, testutil.ToFloat64(metrics.LLMTokensUsed.WithLabelValues(OpInitialContent, "gpt-4", "input")))
	assert.Equal(t, 5.0, testutil.ToFloat64(metrics.LLMTokensUsed.WithLabelValues(OpInitialContent, "gpt-4", "output")))

	failing := &mockClient{
		completeFunc: func(context.Context, llm.CompletionRequest) (*llm.Completion, error) {
			return nil, &llm.APIError{Provider: "openai", StatusCode: 503}
		},
	}
	svc = New(failing, Config{}, zerolog.Nop(), metrics)
	_, err = svc.Report(context.Background(), ReportInput{Prompt: "topic"})
	require.Error(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.LLMRequestsFailed.WithLabelValues(OpReport, "o3-mini", "server_error")))
}

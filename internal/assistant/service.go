// Package assistant implements the prompt-driven steps of the guided
// research workflow: initial content, confirmation questions, search
// strategies and queries, paper validation and the final report.
package assistant

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/helixir/research-assistant-service/internal/domain"
	"github.com/helixir/research-assistant-service/internal/llm"
	"github.com/helixir/research-assistant-service/internal/observability"
)

// Operation names used in logs and metrics.
const (
	OpInitialContent       = "generate_initial_content"
	OpConfirmationQuestion = "generate_confirmation_question"
	OpStrategies           = "generate_strategies"
	OpSearchQueries        = "generate_search_queries"
	OpValidatePapers       = "validate_papers"
	OpReport               = "generate_report"
)

const (
	DefaultChatModel         = "gpt-4"
	DefaultReportModel       = "o3-mini"
	DefaultChatTemperature   = 0.7
	DefaultReportTemperature = 0.5
)

// Config selects models and sampling temperatures.
type Config struct {
	// ChatModel serves every operation except the report.
	ChatModel string

	// ReportModel serves the report.
	ReportModel string

	ChatTemperature   float64
	ReportTemperature float64
}

func (c *Config) applyDefaults() {
	if c.ChatModel == "" {
		c.ChatModel = DefaultChatModel
	}
	if c.ReportModel == "" {
		c.ReportModel = DefaultReportModel
	}
	if c.ChatTemperature <= 0 {
		c.ChatTemperature = DefaultChatTemperature
	}
	if c.ReportTemperature <= 0 {
		c.ReportTemperature = DefaultReportTemperature
	}
}

// ReportInput carries everything the report prompt is built from.
type ReportInput struct {
	Prompt     string
	Feedback   []domain.Feedback
	Strategies []string
	Papers     []domain.Paper
}

// ManualSourceInput is a source entered by hand. Authors is a
// comma-separated list.
type ManualSourceInput struct {
	Title    string
	Authors  string
	Year     *int
	DOI      string
	URL      string
	Abstract string
}

// Service runs the assistant operations against an LLM client.
// It is safe for concurrent use.
type Service struct {
	client  llm.Client
	config  Config
	logger  zerolog.Logger
	metrics *observability.Metrics
	newID   func() string
}

// New creates a Service. metrics may be nil.
func New(client llm.Client, cfg Config, logger zerolog.Logger, metrics *observability.Metrics) *Service {
	cfg.applyDefaults()
	return &Service{
		client:  client,
		config:  cfg,
		logger:  logger.With().Str("component", "assistant").Logger(),
		metrics: metrics,
		newID:   uuid.NewString,
	}
}

// InitialContent produces an overview, candidate key points and a
// suggested outline for the research topic.
func (s *Service) InitialContent(ctx context.Context, prompt string) (string, error) {
	resp, err := s.complete(ctx, OpInitialContent, llm.CompletionRequest{
		System:      initialContentSystem,
		User:        "Research topic: " + prompt,
		Model:       s.config.ChatModel,
		Temperature: s.config.ChatTemperature,
	})
	if err != nil {
		return "", err
	}
	return resp.Text, nil
}

// ConfirmationQuestion asks the user to confirm or amend the plan for
// the given stage.
func (s *Service) ConfirmationQuestion(ctx context.Context, prompt string, stage domain.Stage, feedback []domain.Feedback) (string, error) {
	sp, ok := stagePrompts[stage]
	if !ok {
		return "", domain.NewValidationError("currentStage", fmt.Sprintf("unknown stage %q", stage))
	}

	feedbackContext := buildFeedbackContext(prompt, confirmationHeader, confirmationLabel, feedback)
	resp, err := s.complete(ctx, OpConfirmationQuestion, llm.CompletionRequest{
		System:      sp.system,
		User:        feedbackContext + "\n" + sp.instruction,
		Model:       s.config.ChatModel,
		Temperature: s.config.ChatTemperature,
	})
	if err != nil {
		return "", err
	}
	return resp.Text, nil
}

// Strategies returns the search strategies suggested for the topic.
func (s *Service) Strategies(ctx context.Context, prompt string, feedback []domain.Feedback) ([]string, error) {
	resp, err := s.complete(ctx, OpStrategies, llm.CompletionRequest{
		System:      strategiesSystem,
		User:        buildFeedbackContext(prompt, preferencesHeader, preferencesLabel, feedback),
		Model:       s.config.ChatModel,
		Temperature: s.config.ChatTemperature,
	})
	if err != nil {
		return nil, err
	}
	return SplitStrategies(resp.Text), nil
}

// SearchQueries returns database-ready search queries for the topic.
func (s *Service) SearchQueries(ctx context.Context, prompt string, feedback []domain.Feedback) ([]string, error) {
	resp, err := s.complete(ctx, OpSearchQueries, llm.CompletionRequest{
		System:      searchQueriesSystem,
		User:        buildFeedbackContext(prompt, preferencesHeader, preferencesLabel, feedback),
		Model:       s.config.ChatModel,
		Temperature: s.config.ChatTemperature,
	})
	if err != nil {
		return nil, err
	}
	return FilterQueries(resp.Text), nil
}

// ValidatePapers asks the model to score each paper's relevance. When the
// response cannot be parsed or carries no papers, the input is returned
// unchanged.
func (s *Service) ValidatePapers(ctx context.Context, prompt string, papers []domain.Paper) ([]domain.Paper, error) {
	if papers == nil {
		papers = []domain.Paper{}
	}
	listing, err := json.MarshalIndent(papers, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode papers: %w", err)
	}

	resp, err := s.complete(ctx, OpValidatePapers, llm.CompletionRequest{
		System:      validatePapersSystem,
		User:        fmt.Sprintf("Research topic: %s\n\nPapers found:\n%s", prompt, listing),
		Model:       s.config.ChatModel,
		Temperature: s.config.ChatTemperature,
		JSON:        true,
	})
	if err != nil {
		return nil, err
	}

	scored, ok := ParseValidatedPapers(resp.Text)
	if !ok {
		s.logger.Warn().
			Str("operation", OpValidatePapers).
			Int("papers", len(papers)).
			Msg("unusable validation response, returning papers unscored")
		return papers, nil
	}
	return scored, nil
}

// Report writes the final markdown report with APA citations.
func (s *Service) Report(ctx context.Context, in ReportInput) (string, error) {
	resp, err := s.complete(ctx, OpReport, llm.CompletionRequest{
		System:      reportSystem,
		User:        buildReportContext(in) + reportInstruction,
		Model:       s.config.ReportModel,
		Temperature: s.config.ReportTemperature,
	})
	if err != nil {
		return "", err
	}
	return resp.Text, nil
}

// ManualSource normalizes a user-entered source into a Paper.
func (s *Service) ManualSource(in ManualSourceInput) (domain.Paper, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return domain.Paper{}, domain.NewValidationError("title", "title is required")
	}

	paper := domain.Paper{
		ID:       domain.IDPrefixManual + s.newID(),
		Title:    title,
		Authors:  SplitAuthors(in.Authors),
		Abstract: strings.TrimSpace(in.Abstract),
		DOI:      strings.TrimSpace(in.DOI),
		URL:      strings.TrimSpace(in.URL),
		Source:   domain.SourceLabelManual,
	}
	if in.Year != nil {
		paper.Year = domain.IntPtr(*in.Year)
	}
	return paper, nil
}

// complete runs one completion and records its outcome.
func (s *Service) complete(ctx context.Context, operation string, req llm.CompletionRequest) (*llm.Completion, error) {
	logger := observability.WithOperationContext(observability.LoggerFromContext(ctx, s.logger), operation, req.Model)

	start := time.Now()
	resp, err := s.client.Complete(ctx, req)
	if err != nil {
		s.metrics.RecordLLMRequestFailed(operation, req.Model, llm.ErrorType(err))
		logger.Error().Err(err).Dur("duration", time.Since(start)).Msg("llm request failed")
		return nil, fmt.Errorf("%s: %w", operation, err)
	}

	model := resp.Model
	if model == "" {
		model = req.Model
	}
	s.metrics.RecordLLMRequest(operation, model, time.Since(start).Seconds(), resp.InputTokens, resp.OutputTokens)
	logger.Debug().
		Int("input_tokens", resp.InputTokens).
		Int("output_tokens", resp.OutputTokens).
		Dur("duration", time.Since(start)).
		Msg("llm request completed")
	return resp, nil
}

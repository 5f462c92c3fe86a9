package httpserver

import (
	"errors"
	"net/http"

	"github.com/helixir/research-assistant-service/internal/assistant"
	"github.com/helixir/research-assistant-service/internal/domain"
	"github.com/helixir/research-assistant-service/internal/observability"
)

// Stable client-facing messages for failed operations. Provider and source
// error details stay in the logs.
const (
	msgInitialContentFailed = "Failed to generate initial content"
	msgQuestionFailed       = "Failed to generate confirmation question"
	msgStrategiesFailed     = "Failed to generate strategies"
	msgQueriesFailed        = "Failed to generate search queries"
	msgSearchFailed         = "Failed to search for papers"
	msgValidateFailed       = "Failed to validate papers"
	msgReportFailed         = "Failed to generate report"
	msgNoQueries            = "No search queries provided"
)

// generateInitialContent handles POST /api/generate-initial-content.
func (s *Server) generateInitialContent(w http.ResponseWriter, r *http.Request) {
	var req promptRequest
	if !s.decodeRequest(w, r, &req) {
		return
	}

	content, err := s.assistant.InitialContent(r.Context(), req.Prompt)
	if err != nil {
		s.writeOperationError(w, r, err, msgInitialContentFailed)
		return
	}
	writeJSON(w, http.StatusOK, initialContentResponse{InitialContent: content})
}

// generateConfirmationQuestion handles POST /api/generate-confirmation-question.
func (s *Server) generateConfirmationQuestion(w http.ResponseWriter, r *http.Request) {
	var req confirmationRequest
	if !s.decodeRequest(w, r, &req) {
		return
	}

	stage, err := domain.ParseStage(req.CurrentStage)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	question, err := s.assistant.ConfirmationQuestion(r.Context(), req.Prompt, stage, req.UserFeedback)
	if err != nil {
		s.writeOperationError(w, r, err, msgQuestionFailed)
		return
	}
	writeJSON(w, http.StatusOK, questionResponse{Question: question})
}

// generateStrategies handles POST /api/generate-strategies.
func (s *Server) generateStrategies(w http.ResponseWriter, r *http.Request) {
	var req feedbackRequest
	if !s.decodeRequest(w, r, &req) {
		return
	}

	strategies, err := s.assistant.Strategies(r.Context(), req.Prompt, req.UserFeedback)
	if err != nil {
		s.writeOperationError(w, r, err, msgStrategiesFailed)
		return
	}
	writeJSON(w, http.StatusOK, strategiesResponse{Strategies: nonNil(strategies)})
}

// generateSearchQueries handles POST /api/generate-search-queries.
func (s *Server) generateSearchQueries(w http.ResponseWriter, r *http.Request) {
	var req feedbackRequest
	if !s.decodeRequest(w, r, &req) {
		return
	}

	queries, err := s.assistant.SearchQueries(r.Context(), req.Prompt, req.UserFeedback)
	if err != nil {
		s.writeOperationError(w, r, err, msgQueriesFailed)
		return
	}
	writeJSON(w, http.StatusOK, queriesResponse{Queries: nonNil(queries)})
}

// generateReport handles POST /api/generate-report.
func (s *Server) generateReport(w http.ResponseWriter, r *http.Request) {
	var req reportRequest
	if !s.decodeRequest(w, r, &req) {
		return
	}

	report, err := s.assistant.Report(r.Context(), assistant.ReportInput{
		Prompt:     req.Prompt,
		Feedback:   req.UserFeedback,
		Strategies: req.Strategies,
		Papers:     req.SelectedPapers,
	})
	if err != nil {
		s.writeOperationError(w, r, err, msgReportFailed)
		return
	}
	writeJSON(w, http.StatusOK, reportResponse{Report: report})
}

// writeOperationError logs err and maps it to a response. Caller errors
// keep their validation message; everything else gets the stable message.
func (s *Server) writeOperationError(w http.ResponseWriter, r *http.Request, err error, message string) {
	if errors.Is(err, domain.ErrInvalidInput) {
		writeDomainError(w, err)
		return
	}
	logger := observability.LoggerFromContext(r.Context(), s.logger)
	logger.Error().
		Err(err).
		Str("path", r.URL.Path).
		Msg(message)
	writeError(w, http.StatusInternalServerError, message)
}

// writeDomainError maps domain errors to HTTP status codes and writes a
// sanitized error response. Unrecognized errors get a generic message.
func writeDomainError(w http.ResponseWriter, err error) {
	if err == nil {
		return
	}

	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		var ve *domain.ValidationError
		if errors.As(err, &ve) {
			writeError(w, http.StatusBadRequest, ve.Error())
		} else {
			writeError(w, http.StatusBadRequest, "invalid input")
		}
	case errors.Is(err, domain.ErrRateLimited):
		writeError(w, http.StatusTooManyRequests, "rate limited")
	default:
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

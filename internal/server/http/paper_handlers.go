package httpserver

import (
	"net/http"

	"github.com/helixir/research-assistant-service/internal/assistant"
	"github.com/helixir/research-assistant-service/internal/observability"
)

// searchPapers handles POST /api/search-papers.
// It aggregates CORE and Crossref results for the given queries.
func (s *Server) searchPapers(w http.ResponseWriter, r *http.Request) {
	var req searchPapersRequest
	if !s.decodeRequest(w, r, &req) {
		return
	}
	if len(req.Queries) == 0 {
		writeError(w, http.StatusBadRequest, msgNoQueries)
		return
	}

	papers, err := s.aggregator.Aggregate(r.Context(), req.Queries)
	if err != nil {
		s.writeOperationError(w, r, err, msgSearchFailed)
		return
	}
	writeJSON(w, http.StatusOK, papersResponse{Papers: nonNil(papers)})
}

// validatePapers handles POST /api/validate-papers.
// It returns the papers with relevance scores attached when the model
// produced usable output, and the input papers otherwise.
func (s *Server) validatePapers(w http.ResponseWriter, r *http.Request) {
	var req validatePapersRequest
	if !s.decodeRequest(w, r, &req) {
		return
	}

	papers, err := s.assistant.ValidatePapers(r.Context(), req.Prompt, nonNil(req.Papers))
	if err != nil {
		s.writeOperationError(w, r, err, msgValidateFailed)
		return
	}
	writeJSON(w, http.StatusOK, papersResponse{Papers: nonNil(papers)})
}

// createManualSource handles POST /api/manual-sources.
func (s *Server) createManualSource(w http.ResponseWriter, r *http.Request) {
	var req manualSourceRequest
	if !s.decodeRequest(w, r, &req) {
		return
	}

	paper, err := s.assistant.ManualSource(assistant.ManualSourceInput{
		Title:    req.Title,
		Authors:  req.Authors,
		Year:     req.Year,
		DOI:      req.DOI,
		URL:      req.URL,
		Abstract: req.Abstract,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	logger := observability.WithPaperContext(observability.LoggerFromContext(r.Context(), s.logger), paper.ID, paper.DOI)
	logger.Info().Msg("manual source created")
	writeJSON(w, http.StatusCreated, paper)
}

// listSources handles GET /api/sources.
func (s *Server) listSources(w http.ResponseWriter, r *http.Request) {
	sources := s.sources.AllSources()
	resp := listSourcesResponse{Sources: make([]sourceResponse, 0, len(sources))}
	for _, src := range sources {
		resp.Sources = append(resp.Sources, sourceToResponse(src))
	}
	writeJSON(w, http.StatusOK, resp)
}

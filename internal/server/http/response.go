package httpserver

import (
	"github.com/helixir/research-assistant-service/internal/domain"
	"github.com/helixir/research-assistant-service/internal/papersources"
)

// Response types for JSON serialization. Field names follow the API
// contract the web client already speaks.

type errorResponse struct {
	Error string `json:"error"`
}

type initialContentResponse struct {
	InitialContent string `json:"initialContent"`
}

type questionResponse struct {
	Question string `json:"question"`
}

type strategiesResponse struct {
	Strategies []string `json:"strategies"`
}

type queriesResponse struct {
	Queries []string `json:"queries"`
}

type papersResponse struct {
	Papers []domain.Paper `json:"papers"`
}

type reportResponse struct {
	Report string `json:"report"`
}

type sourceResponse struct {
	Type    string `json:"type"`
	Name    string `json:"name"`
	Enabled bool   `json:"enabled"`
}

type listSourcesResponse struct {
	Sources []sourceResponse `json:"sources"`
}

// Converter functions

func sourceToResponse(src papersources.PaperSource) sourceResponse {
	return sourceResponse{
		Type:    string(src.SourceType()),
		Name:    src.Name(),
		Enabled: src.IsEnabled(),
	}
}

// nonNil keeps empty lists serialized as [] rather than null.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

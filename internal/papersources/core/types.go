package core

import (
	"bytes"
	"encoding/json"
	"strings"
)

// SearchResponse is the body of GET /search/works.
type SearchResponse struct {
	TotalHits int    `json:"totalHits"`
	Limit     int    `json:"limit"`
	Offset    int    `json:"offset"`
	Results   []Work `json:"results"`
}

// Work is a single CORE output record.
type Work struct {
	ID            WorkID            `json:"id"`
	Title         string            `json:"title"`
	Authors       []Author          `json:"authors"`
	Abstract      string            `json:"abstract"`
	YearPublished *int              `json:"yearPublished"`
	Publisher     string            `json:"publisher"`
	DOI           string            `json:"doi"`
	DownloadURL   string            `json:"downloadUrl"`
	Identifiers   []json.RawMessage `json:"identifiers"`
}

// Author is a CORE author entry.
type Author struct {
	Name string `json:"name"`
}

// WorkID is a CORE identifier. CORE serves numeric ids, but older records
// and mirrors use strings, so both are accepted.
type WorkID string

// UnmarshalJSON accepts a JSON number or string.
func (id *WorkID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = WorkID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*id = WorkID(n.String())
	return nil
}

// LinkIdentifier returns the first identifier that is a plain string
// starting with "http". Object identifiers are skipped.
func (w *Work) LinkIdentifier() string {
	for _, raw := range w.Identifiers {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			continue
		}
		if strings.HasPrefix(s, "http") {
			return s
		}
	}
	return ""
}

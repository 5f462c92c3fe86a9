package crossref

import (
	"bytes"
	"encoding/json"
	"time"
)

// SearchResponse is the envelope returned by GET /works.
type SearchResponse struct {
	Status  string  `json:"status"`
	Message Message `json:"message"`
}

// Message is the payload of a Crossref list response.
type Message struct {
	TotalResults int    `json:"total-results"`
	Items        []Item `json:"items"`
}

// Item is a Crossref work record.
type Item struct {
	DOI            string     `json:"DOI"`
	Title          StringList `json:"title"`
	Author         []Author   `json:"author"`
	Abstract       string     `json:"abstract"`
	Published      *DateParts `json:"published"`
	ContainerTitle StringList `json:"container-title"`
	URL            string     `json:"URL"`
}

// Author is a Crossref contributor.
type Author struct {
	Given  string `json:"given"`
	Family string `json:"family"`
}

// DateParts is a Crossref partial date.
type DateParts struct {
	DateParts [][]int `json:"date-parts"`
	DateTime  string  `json:"date-time"`
}

// Year returns the calendar year of the date. date-time is preferred; the
// first date-parts element is used when date-time is absent or unparsable.
func (d *DateParts) Year() (int, bool) {
	if d == nil {
		return 0, false
	}
	if d.DateTime != "" {
		if t, err := time.Parse(time.RFC3339, d.DateTime); err == nil {
			return t.UTC().Year(), true
		}
	}
	if len(d.DateParts) > 0 && len(d.DateParts[0]) > 0 && d.DateParts[0][0] > 0 {
		return d.DateParts[0][0], true
	}
	return 0, false
}

// StringList decodes a field Crossref serves either as a string or as a
// list of strings.
type StringList []string

// UnmarshalJSON accepts a JSON string, a list of strings or null. An empty
// string decodes like null; an empty list stays an empty, non-nil list.
func (s *StringList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*s = nil
		return nil
	}
	if data[0] == '"' {
		var v string
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		if v == "" {
			*s = nil
			return nil
		}
		*s = StringList{v}
		return nil
	}
	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return err
	}
	*s = list
	return nil
}

// First returns the first element or "".
func (s StringList) First() string {
	if len(s) == 0 {
		return ""
	}
	return s[0]
}

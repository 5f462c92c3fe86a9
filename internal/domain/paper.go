package domain

import (
	"strings"
	"unicode/utf8"
)

// SourceType identifies the bibliographic source that produced a paper.
type SourceType string

const (
	SourceTypeCORE     SourceType = "core"
	SourceTypeCrossref SourceType = "crossref"
	SourceTypeManual   SourceType = "manual"
)

// Provenance labels attached to normalized papers.
const (
	SourceLabelCORE          = "CORE"
	SourceLabelCORESecondary = "CORE (Secondary Query)"
	SourceLabelCrossref      = "Crossref"
	SourceLabelManual        = "Manual Entry"
)

// ID prefixes keep native identifiers from colliding across sources.
const (
	IDPrefixCORE          = "core-"
	IDPrefixCORESecondary = "core-secondary-"
	IDPrefixCrossref      = "crossref-"
	IDPrefixManual        = "manual-"
)

// Author is a paper author. Only the display name is tracked.
type Author struct {
	Name string `json:"name"`
}

// Paper is the normalized cross-source representation of an academic paper.
//
// Optional strings are empty when absent and omitted from JSON. Year and
// RelevanceScore are pointers so that "unknown" is distinguishable from zero.
type Paper struct {
	ID                   string   `json:"id"`
	Title                string   `json:"title"`
	Authors              []Author `json:"authors"`
	Abstract             string   `json:"abstract,omitempty"`
	Year                 *int     `json:"year,omitempty"`
	Venue                string   `json:"venue,omitempty"`
	DOI                  string   `json:"doi,omitempty"`
	URL                  string   `json:"url,omitempty"`
	Source               string   `json:"source"`
	RelevanceScore       *int     `json:"relevanceScore,omitempty"`
	RelevanceExplanation string   `json:"relevanceExplanation,omitempty"`
}

// MinTitleLength is the length a title must exceed for a paper to be kept.
const MinTitleLength = 5

// HasAbstract reports whether the paper carries a non-empty abstract.
func (p *Paper) HasAbstract() bool {
	return p.Abstract != ""
}

// HasYear reports whether the publication year is known.
func (p *Paper) HasYear() bool {
	return p.Year != nil
}

// IsCitable reports whether the paper satisfies the result-set invariant:
// a title longer than MinTitleLength and at least one of abstract, DOI or URL.
func (p *Paper) IsCitable() bool {
	if utf8.RuneCountInString(p.Title) <= MinTitleLength {
		return false
	}
	return p.Abstract != "" || p.DOI != "" || p.URL != ""
}

// TitleKey returns the case-insensitive title used as the fallback dedup key.
func (p *Paper) TitleKey() string {
	return strings.ToLower(p.Title)
}

// AuthorNames returns the author names joined with ", ", or fallback when
// the paper has no authors.
func (p *Paper) AuthorNames(fallback string) string {
	if len(p.Authors) == 0 {
		return fallback
	}
	names := make([]string, 0, len(p.Authors))
	for _, a := range p.Authors {
		names = append(names, a.Name)
	}
	return strings.Join(names, ", ")
}

// IntPtr returns a pointer to v.
func IntPtr(v int) *int {
	return &v
}

package aggregator

import (
	"sort"

	"github.com/helixir/research-assistant-service/internal/domain"
)

// ExcludeKnownTitles returns the candidates whose lowercase title does not
// match any paper already in existing.
func ExcludeKnownTitles(existing, candidates []domain.Paper) []domain.Paper {
	known := make(map[string]struct{}, len(existing))
	for i := range existing {
		known[existing[i].TitleKey()] = struct{}{}
	}

	var out []domain.Paper
	for i := range candidates {
		if _, ok := known[candidates[i].TitleKey()]; ok {
			continue
		}
		out = append(out, candidates[i])
	}
	return out
}

// FilterCitable keeps only papers with a usable title and at least one of
// abstract, DOI or URL.
func FilterCitable(papers []domain.Paper) []domain.Paper {
	out := make([]domain.Paper, 0, len(papers))
	for i := range papers {
		if papers[i].IsCitable() {
			out = append(out, papers[i])
		}
	}
	return out
}

// Deduplicate keeps the first occurrence of each paper, in input order.
//
// A paper with a DOI is kept when that DOI has not been seen. A paper
// without a DOI is kept when its lowercase title has not been seen. Every
// kept paper records its title, and its DOI if it has one, so a paper with
// a fresh DOI survives even when an earlier paper shares its title.
func Deduplicate(papers []domain.Paper) []domain.Paper {
	seenDOIs := make(map[string]struct{}, len(papers))
	seenTitles := make(map[string]struct{}, len(papers))

	out := make([]domain.Paper, 0, len(papers))
	for i := range papers {
		p := &papers[i]
		title := p.TitleKey()

		var keep bool
		if p.DOI != "" {
			_, seen := seenDOIs[p.DOI]
			keep = !seen
		} else {
			_, seen := seenTitles[title]
			keep = !seen
		}
		if !keep {
			continue
		}

		if p.DOI != "" {
			seenDOIs[p.DOI] = struct{}{}
		}
		seenTitles[title] = struct{}{}
		out = append(out, *p)
	}
	return out
}

// Less reports whether a ranks strictly ahead of b: papers with an
// abstract first, then papers with a known year, then newer years.
func Less(a, b *domain.Paper) bool {
	if a.HasAbstract() != b.HasAbstract() {
		return a.HasAbstract()
	}
	if a.HasYear() != b.HasYear() {
		return a.HasYear()
	}
	if a.HasYear() {
		return *a.Year > *b.Year
	}
	return false
}

// Rank sorts papers in place by Less. Ties keep their input order.
func Rank(papers []domain.Paper) {
	sort.SliceStable(papers, func(i, j int) bool {
		return Less(&papers[i], &papers[j])
	})
}

package feed

import (
	"strings"

	"github.com/bilgisen/wastewatch/internal/models"
)

// RelevanceFilter marks an article relevant when any configured term occurs
// in its title or summary, case-insensitively.
type RelevanceFilter struct {
	terms []string
}

func NewRelevanceFilter(terms []string) *RelevanceFilter {
	seen := make(map[string]bool)
	f := &RelevanceFilter{}
	for _, t := range terms {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		f.terms = append(f.terms, t)
	}
	return f
}

func (f *RelevanceFilter) Terms() []string {
	return append([]string(nil), f.terms...)
}

// Match returns the terms found in title or summary.
func (f *RelevanceFilter) Match(title, summary string) []string {
	text := strings.ToLower(title + "\n" + summary)
	var matched []string
	for _, t := range f.terms {
		if strings.Contains(text, t) {
			matched = append(matched, t)
		}
	}
	return matched
}

// Apply computes the filter outcome once and moves a NEW article to
// READY_FOR_GENERATION or FILTERED_OUT.
func (f *RelevanceFilter) Apply(a *models.Article) {
	a.MatchedTerms = f.Match(a.Title, a.Summary)
	a.RelevanceScore = len(a.MatchedTerms)
	a.IsRelevant = a.RelevanceScore > 0
	if a.IsRelevant {
		a.Status = models.ArticleReadyForGeneration
	} else {
		a.Status = models.ArticleFilteredOut
	}
}

package retriever

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	sectionPattern = regexp.MustCompile(`(?i)section\s*(\d+[A-Za-z]*)`)
	articlePattern = regexp.MustCompile(`(?i)article\s*(\d+[A-Za-z]*)`)
)

// sectionContext maps especially ambiguous or important section numbers
// to hand-authored synonym sets. Pure vector similarity blurs numeric
// identifiers, so these anchor the query to the right statute.
var sectionContext = map[string]string{
	"65B":  "electronic records admissibility Evidence Act computer output",
	"65A":  "electronic record Evidence Act",
	"302":  "murder punishment IPC death penalty",
	"304":  "culpable homicide not amounting to murder IPC",
	"420":  "cheating IPC dishonestly",
	"498A": "cruelty by husband IPC domestic violence",
	"376":  "rape IPC sexual assault",
}

// Enhancer rewrites a raw question into a retrieval-optimized query.
// It is a pure transform: queries without a citation pattern pass
// through unchanged.
type Enhancer struct{}

func NewEnhancer() *Enhancer {
	return &Enhancer{}
}

// Enhance appends domain boost terms when the query cites a section or
// article, otherwise returns the query as-is.
func (e *Enhancer) Enhance(query string) string {
	if m := sectionPattern.FindStringSubmatch(query); m != nil {
		num := m[1]
		if ctx, ok := sectionContext[strings.ToUpper(num)]; ok {
			return fmt.Sprintf("%s %s", query, ctx)
		}
		return fmt.Sprintf("%s Section %s legal provision Indian law", query, num)
	}

	if m := articlePattern.FindStringSubmatch(query); m != nil {
		return fmt.Sprintf("%s Article %s Constitution of India fundamental rights", query, m[1])
	}

	return query
}

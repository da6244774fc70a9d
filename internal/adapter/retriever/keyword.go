package retriever

import (
	"regexp"
	"sort"
	"strings"

	"lawrag/internal/domain"
)

var citationPattern = regexp.MustCompile(`(?i)(?:section|article|sec\.?)\s*(\d+[A-Za-z]*)`)

// stopwords the keyword extractor ignores. Fixed set; tokens of length
// <= 2 are dropped independently of it.
var stopwords = map[string]struct{}{
	"what": {}, "is": {}, "the": {}, "a": {}, "an": {}, "of": {}, "in": {},
	"for": {}, "to": {}, "as": {}, "can": {}, "i": {}, "do": {}, "how": {},
	"under": {}, "about": {}, "with": {}, "are": {}, "be": {},
}

var punctReplacer = strings.NewReplacer("?", "", ".", "", ",", "")

// ExtractKeywords pulls the tokens worth exact-matching out of a query.
// A cited section number contributes both "Section <n>" and the bare
// number, so chunks tagged either way get boosted.
func ExtractKeywords(query string) []string {
	words := strings.Fields(punctReplacer.Replace(query))

	keywords := make([]string, 0, len(words))
	for _, word := range words {
		if _, stop := stopwords[strings.ToLower(word)]; stop {
			continue
		}
		if len(word) <= 2 {
			continue
		}
		keywords = append(keywords, word)
	}

	if m := citationPattern.FindStringSubmatch(query); m != nil {
		keywords = append(keywords, "Section "+m[1], m[1])
	}

	return keywords
}

// KeywordBooster re-ranks vector-search candidates by exact keyword
// hits, correcting the blind spot semantic search has for numeric
// citations.
type KeywordBooster struct{}

func NewKeywordBooster() *KeywordBooster {
	return &KeywordBooster{}
}

// Rerank scores each candidate (+2 per keyword found in the content,
// +3 per keyword found in the section metadata) and stable-sorts by
// that score descending. The input is already ordered by vector
// similarity, so ties keep the semantic order. Returns the top k.
func (b *KeywordBooster) Rerank(query string, candidates []domain.ScoredChunk, k int) []domain.ScoredChunk {
	keywords := ExtractKeywords(query)

	type boosted struct {
		chunk domain.ScoredChunk
		score int
	}

	scored := make([]boosted, len(candidates))
	for i, cand := range candidates {
		content := strings.ToLower(cand.Chunk.Content)
		section := strings.ToLower(cand.Chunk.Metadata.Section)

		score := 0
		for _, kw := range keywords {
			lower := strings.ToLower(kw)
			if strings.Contains(content, lower) {
				score += 2
			}
			if strings.Contains(section, lower) {
				score += 3
			}
		}
		scored[i] = boosted{chunk: cand, score: score}
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].score > scored[j].score
	})

	if k > len(scored) {
		k = len(scored)
	}
	results := make([]domain.ScoredChunk, k)
	for i := 0; i < k; i++ {
		results[i] = scored[i].chunk
	}
	return results
}

package memoryengine

import "strings"

// tokenize lowercases and splits on whitespace, per spec.md §4.2's
// retrieval and consolidation scoring rules. Unlike the teacher's
// internal/memory/learning.go regex tokenizer, no stopword filtering or
// punctuation stripping happens here — the contract is whitespace words,
// nothing fancier.
func tokenize(s string) []string {
	return strings.Fields(strings.ToLower(s))
}

func tokenSet(s string) map[string]struct{} {
	fields := tokenize(s)
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[f] = struct{}{}
	}
	return set
}

// matchRatio returns matched_query_words / total_query_words for the
// retrieve() scoring rule: fraction of query tokens present anywhere in
// the content token set.
func matchRatio(query, content string) float64 {
	queryTokens := tokenize(query)
	if len(queryTokens) == 0 {
		return 0
	}
	contentSet := tokenSet(content)
	matched := 0
	for _, t := range queryTokens {
		if _, ok := contentSet[t]; ok {
			matched++
		}
	}
	return float64(matched) / float64(len(queryTokens))
}

func jaccard(a, b string) float64 {
	setA, setB := tokenSet(a), tokenSet(b)
	if len(setA) == 0 && len(setB) == 0 {
		return 1
	}
	intersection := 0
	for t := range setA {
		if _, ok := setB[t]; ok {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

// Package insights is the Notes & Insight Extractor (component C3): it
// classifies a batch of Notes into typed SDK Insights with frequency-
// weighted confidence. Grounded on the teacher's internal/memory/
// review_board.go DefectCategory convention — a fixed vocabulary table
// rather than a hardcoded switch — generalized from defect categories to
// insight keyword sets.
package insights

import "strings"

// KeywordSet maps an insight type to the lowercase keywords that trigger
// it. Declared as data (not a switch) so the vocabulary is enumerable. The
// sets below are fixed package values; they are not read from configuration
// and cannot be overridden there.
type KeywordSet struct {
	Type     string
	Keywords []string
}

// classificationOrder is the priority order in spec.md §4.3: first match
// wins. anti_pattern is checked before gotcha, and so on.
var classificationOrder = []KeywordSet{
	{Type: "anti_pattern", Keywords: []string{"anti-pattern", "anti pattern", "avoid", "never do", "bad practice", "don't use", "do not use"}},
	{Type: "gotcha", Keywords: []string{"gotcha", "watch out", "careful", "tricky", "surprising", "caveat", "beware"}},
	{Type: "best_practice", Keywords: []string{"best practice", "recommended", "should always", "prefer", "convention is to"}},
	{Type: "convention", Keywords: []string{"convention", "naming", "style guide", "formatting", "standard way"}},
	{Type: "skill", Keywords: []string{"how to", "technique", "learned to", "figured out how"}},
	{Type: "pattern", Keywords: []string{"pattern", "approach", "structure", "design"}},
}

// languageKeywords and frameworkKeywords back the applicability derivation
// in spec.md §4.3. Kept short rather than exhaustive; like the sets above,
// they are fixed and not read from configuration.
var languageKeywords = []string{"go", "golang", "python", "javascript", "typescript", "rust", "java", "ruby", "c++", "c#"}
var frameworkKeywords = []string{"react", "vue", "django", "flask", "express", "rails", "spring", "next.js", "fastapi", "gin"}

// tagDenylist is excluded from tag aggregation per spec.md §4.3.
var tagDenylist = map[string]struct{}{
	"bug": {}, "fix": {}, "todo": {}, "note": {}, "important": {},
}

func classify(content string) (insightType string, matches int) {
	lc := strings.ToLower(content)
	for _, set := range classificationOrder {
		count := 0
		for _, kw := range set.Keywords {
			if strings.Contains(lc, kw) {
				count++
			}
		}
		if count > 0 {
			return set.Type, count
		}
	}
	return "", 0
}

func findKeyword(content string, keywords []string) (string, bool) {
	lc := strings.ToLower(content)
	for _, kw := range keywords {
		if strings.Contains(lc, kw) {
			return kw, true
		}
	}
	return "", false
}

// tagTypeFromKeywords derives an insight type for a recurring tag theme,
// per spec.md §4.3's tag aggregation rule.
func tagTypeFromKeywords(tag string) string {
	lc := strings.ToLower(tag)
	switch {
	case strings.Contains(lc, "convention") || strings.Contains(lc, "style"):
		return "convention"
	case strings.Contains(lc, "gotcha") || strings.Contains(lc, "caveat"):
		return "gotcha"
	case strings.Contains(lc, "best") || strings.Contains(lc, "practice"):
		return "best_practice"
	case strings.Contains(lc, "skill") || strings.Contains(lc, "technique"):
		return "skill"
	default:
		return "pattern"
	}
}

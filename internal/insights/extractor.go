package insights

import (
	"encoding/json"
	"fmt"
	"log"
	"math"
	"sort"
	"strings"

	"github.com/rdvcore/core/internal/apperr"
	"github.com/rdvcore/core/internal/config"
	"github.com/rdvcore/core/internal/store"
	"github.com/rdvcore/core/internal/types"
)

// Extractor implements the Notes & Insight Extractor contract. It holds no
// state beyond its configuration; Extract has no side effects, Save
// persists.
type Extractor struct {
	store *store.Store
	cfg   config.Extraction
}

// New constructs an Extractor bound to st, using cfg for confidence
// tuning and the minimum-content-length/frequency gates.
func New(st *store.Store, cfg config.Extraction) *Extractor {
	return &Extractor{store: st, cfg: cfg}
}

// Candidate is a derived insight awaiting a Save call. It mirrors
// types.SDKInsight's fields minus identity/audit columns, which Save
// assigns.
type Candidate struct {
	Type                  types.InsightType
	Applicability         types.Applicability
	Title                 string
	Description           string
	ApplicabilityContext  string
	SourceNoteIDs         []string
	Confidence            float64
}

// ExtractionResult is extract_from's return value per spec.md §4.3.
type ExtractionResult struct {
	NotesAnalyzed int
	Insights      []Candidate
	ByType        map[string]int
	AvgConfidence float64
}

// Extract implements spec.md §4.3's extract_from(notes[]). It has no side
// effects — persistence is a separate Save call.
func (x *Extractor) Extract(notes []*types.Note) ExtractionResult {
	result := ExtractionResult{NotesAnalyzed: len(notes), ByType: make(map[string]int)}

	tagNotes := make(map[string][]*types.Note)

	for _, note := range notes {
		if len(note.Content) < x.cfg.MinContentLength {
			continue
		}
		if candidate, ok := x.classifyNote(note); ok {
			result.Insights = append(result.Insights, candidate)
			result.ByType[string(candidate.Type)]++
		}
		for _, tag := range extractTags(note) {
			if _, denied := tagDenylist[strings.ToLower(tag)]; denied {
				continue
			}
			tagNotes[tag] = append(tagNotes[tag], note)
		}
	}

	for _, tag := range sortedTagKeys(tagNotes) {
		group := tagNotes[tag]
		if len(group) < x.cfg.MinNoteFrequency+1 {
			continue
		}
		candidate := x.tagThemeInsight(tag, group)
		result.Insights = append(result.Insights, candidate)
		result.ByType[string(candidate.Type)]++
	}

	if len(result.Insights) > 0 {
		var sum float64
		for _, c := range result.Insights {
			sum += c.Confidence
		}
		result.AvgConfidence = sum / float64(len(result.Insights))
	}
	return result
}

func (x *Extractor) classifyNote(note *types.Note) (Candidate, bool) {
	insightType, matches := classify(note.Content)
	if insightType == "" {
		return Candidate{}, false
	}

	if note.Type == types.NoteObservation {
		keywordStrength := math.Min(float64(matches)*0.3, 1.0)
		if keywordStrength < 0.3 {
			return Candidate{}, false
		}
	}

	confidence := x.confidenceFor(insightType, 1)
	if insightType == "gotcha" {
		confidence = math.Min(confidence+0.1, x.cfg.MaxConfidence)
	}

	applicability, context := deriveApplicability(note)

	return Candidate{
		Type:                 types.InsightType(insightType),
		Applicability:        applicability,
		Title:                deriveTitle(note),
		Description:          note.Content,
		ApplicabilityContext: context,
		SourceNoteIDs:        []string{note.ID},
		Confidence:           confidence,
	}, true
}

func (x *Extractor) confidenceFor(insightType string, frequency int) float64 {
	c := x.cfg.BaseConfidence + float64(frequency-1)*x.cfg.FrequencyBoost
	if c > x.cfg.MaxConfidence {
		c = x.cfg.MaxConfidence
	}
	return c
}

func deriveApplicability(note *types.Note) (types.Applicability, string) {
	if note.SessionID != "" && note.FolderID == "" {
		return types.ApplicabilitySession, ""
	}
	if note.FolderID != "" {
		return types.ApplicabilityFolder, ""
	}
	if kw, ok := findKeyword(note.Content, languageKeywords); ok {
		return types.ApplicabilityLanguage, kw
	}
	if kw, ok := findKeyword(note.Content, frameworkKeywords); ok {
		return types.ApplicabilityFramework, kw
	}
	return types.ApplicabilityFolder, ""
}

func deriveTitle(note *types.Note) string {
	if note.Title != "" {
		return note.Title
	}
	firstLine := note.Content
	if idx := strings.IndexByte(note.Content, '\n'); idx >= 0 {
		firstLine = note.Content[:idx]
	}
	return truncate(firstLine, 80)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-1] + "…"
}

// extractTags decodes a note's tags_json. Per spec.md §9, malformed JSON
// yields a Serialization error and callers treat the failure as an empty
// tag collection rather than aborting extraction.
func extractTags(note *types.Note) []string {
	if note.TagsJSON == "" {
		return nil
	}
	var tags []string
	if err := json.Unmarshal([]byte(note.TagsJSON), &tags); err != nil {
		log.Printf("[INSIGHTS] note %s: %v", note.ID, apperr.Wrap(apperr.Serialization, "decode tags_json", err))
		return nil
	}
	return tags
}

func sortedTagKeys(m map[string][]*types.Note) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (x *Extractor) tagThemeInsight(tag string, notes []*types.Note) Candidate {
	n := len(notes)
	var sampleLines []string
	ids := make([]string, 0, n)
	for i, note := range notes {
		ids = append(ids, note.ID)
		if i < 3 {
			sampleLines = append(sampleLines, truncate(note.Content, 100))
		}
	}
	description := fmt.Sprintf("Found %d notes related to '%s': %s", n, tag, strings.Join(sampleLines, " | "))

	return Candidate{
		Type:                 types.InsightType(tagTypeFromKeywords(tag)),
		Applicability:        types.ApplicabilityFolder,
		Title:                fmt.Sprintf("Recurring theme: %s", tag),
		Description:          description,
		SourceNoteIDs:        ids,
		Confidence:           x.confidenceFor(tagTypeFromKeywords(tag), n),
	}
}

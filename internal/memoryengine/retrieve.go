package memoryengine

import (
	"sort"
	"time"

	"github.com/rdvcore/core/internal/types"
)

// Query is the input to Retrieve, matching spec.md §4.2.2's retrieve(query)
// field set.
type Query struct {
	UserID          string
	SessionID       string
	FolderID        string
	Tiers           []types.Tier
	ContentTypes    []string
	MinScore        *float64
	IncludeExpired  bool
	Limit           int
	QueryText       string
}

// ScoredEntry pairs a memory entry with its computed retrieval score.
type ScoredEntry struct {
	Entry *types.MemoryEntry
	Score float64
}

// Retrieve implements spec.md §4.2.2's retrieve(query): structural
// filtering, deterministic scoring, then touch-as-side-effect on every
// returned id.
func (e *Engine) Retrieve(q Query) ([]ScoredEntry, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = e.cfg.RetrieveDefaultLimit
	}

	tiers := q.Tiers
	if len(tiers) == 0 {
		tiers = []types.Tier{types.TierShortTerm, types.TierWorking, types.TierLongTerm}
	}

	contentTypeSet := make(map[string]struct{}, len(q.ContentTypes))
	for _, ct := range q.ContentTypes {
		contentTypeSet[ct] = struct{}{}
	}

	var candidates []*types.MemoryEntry
	for _, tier := range tiers {
		entries, err := e.store.ListMemoryEntriesByTier(q.UserID, tier, q.SessionID, q.FolderID, q.IncludeExpired)
		if err != nil {
			return nil, err
		}
		for _, entry := range entries {
			if len(contentTypeSet) > 0 {
				if _, ok := contentTypeSet[entry.ContentType]; !ok {
					continue
				}
			}
			candidates = append(candidates, entry)
		}
	}

	scored := make([]ScoredEntry, 0, len(candidates))
	for _, entry := range candidates {
		score := scoreEntry(entry, q.QueryText)
		if q.MinScore != nil && score < *q.MinScore {
			continue
		}
		scored = append(scored, ScoredEntry{Entry: entry, Score: score})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		if !scored[i].Entry.LastAccessedAt.Equal(scored[j].Entry.LastAccessedAt) {
			return scored[i].Entry.LastAccessedAt.After(scored[j].Entry.LastAccessedAt)
		}
		return scored[i].Entry.AccessCount > scored[j].Entry.AccessCount
	})

	if len(scored) > limit {
		scored = scored[:limit]
	}

	now := time.Now()
	for _, s := range scored {
		if err := e.store.TouchMemoryEntry(s.Entry.ID, now); err != nil {
			return nil, err
		}
		s.Entry.AccessCount++
		s.Entry.LastAccessedAt = now
	}

	return scored, nil
}

func scoreEntry(entry *types.MemoryEntry, queryText string) float64 {
	baseRelevance := entry.RelevanceOrDefault()
	if queryText == "" {
		return baseRelevance
	}
	m := matchRatio(queryText, entry.Content)
	score := 0.5*baseRelevance + 0.5*m
	return clamp01(score)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

package memoryengine

import (
	"math"
	"sort"
	"time"

	"github.com/rdvcore/core/internal/apperr"
	"github.com/rdvcore/core/internal/types"
)

// EmbeddingBackend is the optional vector-capable collaborator referenced
// in spec.md §4.2.5 and §6. Nothing in this package implements it; a
// caller wires in a concrete backend (e.g. a local model server or a
// hosted embeddings API) when semantic search is wanted.
type EmbeddingBackend interface {
	Embed(text string) ([]float64, error)
}

const maxSemanticCandidates = 200

// SemanticQuery extends Query with the similarity-specific knobs from
// spec.md §4.2.5.
type SemanticQuery struct {
	Query
	MinSimilarity float64
}

// SemanticSearch implements spec.md §4.2.5. It fails with
// FeatureUnavailable when backend is nil.
func (e *Engine) SemanticSearch(q SemanticQuery, backend EmbeddingBackend) ([]ScoredEntry, error) {
	if backend == nil {
		return nil, apperr.New(apperr.FeatureUnavailable, "no embedding backend configured")
	}

	limit := q.Limit
	if limit <= 0 {
		limit = e.cfg.RetrieveDefaultLimit
	}
	candidateCap := 5 * limit
	if candidateCap > maxSemanticCandidates {
		candidateCap = maxSemanticCandidates
	}

	candidates, err := e.Retrieve(Query{
		UserID:         q.UserID,
		SessionID:      q.SessionID,
		FolderID:       q.FolderID,
		Tiers:          q.Tiers,
		ContentTypes:   q.ContentTypes,
		IncludeExpired: q.IncludeExpired,
		Limit:          candidateCap,
	})
	if err != nil {
		return nil, err
	}

	queryVec, err := backend.Embed(q.QueryText)
	if err != nil {
		return nil, apperr.Wrap(apperr.CollaboratorError, "embed query", err)
	}

	scored := make([]ScoredEntry, 0, len(candidates))
	for _, c := range candidates {
		vec, err := backend.Embed(c.Entry.Content)
		if err != nil {
			return nil, apperr.Wrap(apperr.CollaboratorError, "embed candidate", err)
		}
		sim := cosineSimilarity(queryVec, vec)
		if sim < q.MinSimilarity {
			continue
		}
		score := 0.50*sim + 0.20*tierWeight(c.Entry.Tier) + 0.15*contentTypeWeight(c.Entry.ContentType) + 0.15*c.Entry.RelevanceOrDefault()
		scored = append(scored, ScoredEntry{Entry: c.Entry, Score: score})
	}

	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	if len(scored) > limit {
		scored = scored[:limit]
	}

	now := time.Now()
	for _, s := range scored {
		if err := e.store.TouchMemoryEntry(s.Entry.ID, now); err != nil {
			return nil, err
		}
	}
	return scored, nil
}

func tierWeight(tier types.Tier) float64 {
	switch tier {
	case types.TierLongTerm:
		return 1.0
	case types.TierWorking:
		return 0.6
	case types.TierShortTerm:
		return 0.3
	default:
		return 0
	}
}

// contentTypeWeight has no fixed table in spec.md §4.2.5 beyond the tier
// weights; it defaults to a neutral weight so the scoring formula is
// complete without fabricating an unspecified content-type ranking.
func contentTypeWeight(string) float64 {
	return 0.5
}

func cosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

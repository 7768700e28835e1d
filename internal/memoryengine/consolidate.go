package memoryengine

import (
	"math"
	"sort"
	"strings"

	"github.com/rdvcore/core/internal/types"
)

// Strategy selects how a similarity cluster collapses in Consolidate.
type Strategy string

const (
	KeepLatest     Strategy = "keep_latest"
	Merge          Strategy = "merge"
	UpdateRelevance Strategy = "update_relevance"
)

// Criteria scopes the candidate set and similarity comparison for
// Consolidate, per spec.md §4.2.2.
type Criteria struct {
	UserID       string
	FolderID     string
	CrossSession *bool // nil = use config default
	CrossFolder  *bool // nil = use config default
	MaxAgeDiffMs *int64
}

// ConsolidationResult reports the outcome of merging one similarity
// cluster.
type ConsolidationResult struct {
	MergedIDs      []string
	ConsolidatedID string
	RelevanceBoost float64
}

const mergeDelimiter = "\n\n---\n\n"

// Consolidate implements spec.md §4.2.2's consolidate(criteria, strategy):
// groups similar entries into clusters and applies strategy to each
// cluster of size ≥ 2.
func (e *Engine) Consolidate(c Criteria, strategy Strategy) ([]ConsolidationResult, error) {
	crossSession := e.cfg.CrossSessionDefault
	if c.CrossSession != nil {
		crossSession = *c.CrossSession
	}
	crossFolder := e.cfg.CrossFolderDefault
	if c.CrossFolder != nil {
		crossFolder = *c.CrossFolder
	}
	maxAgeDiffMs := e.cfg.MaxAgeDiffMs
	if c.MaxAgeDiffMs != nil {
		maxAgeDiffMs = c.MaxAgeDiffMs
	}

	entries, err := e.store.ListMemoryEntriesForUser(c.UserID, c.FolderID)
	if err != nil {
		return nil, err
	}

	clusters := clusterBySimilarity(entries, crossSession, crossFolder, maxAgeDiffMs, e.cfg.SimilarityThreshold)

	var results []ConsolidationResult
	for _, cluster := range clusters {
		if len(cluster) < 2 {
			continue
		}
		result, err := e.applyStrategy(cluster, strategy)
		if err != nil {
			return nil, err
		}
		results = append(results, result)
	}
	return results, nil
}

func similar(a, b *types.MemoryEntry, crossSession, crossFolder bool, maxAgeDiffMs *int64, threshold float64) bool {
	if !crossSession && a.SessionID != b.SessionID {
		return false
	}
	if !crossFolder && a.FolderID != b.FolderID {
		return false
	}
	if maxAgeDiffMs != nil {
		diff := a.CreatedAt.Sub(b.CreatedAt).Milliseconds()
		if diff < 0 {
			diff = -diff
		}
		if diff > *maxAgeDiffMs {
			return false
		}
	}
	if a.ContentHash == b.ContentHash {
		return true
	}
	aLC, bLC := strings.ToLower(a.Content), strings.ToLower(b.Content)
	if strings.Contains(aLC, bLC) || strings.Contains(bLC, aLC) {
		return true
	}
	return jaccard(a.Content, b.Content) >= threshold
}

// clusterBySimilarity groups entries via union-find over the pairwise
// similarity relation.
func clusterBySimilarity(entries []*types.MemoryEntry, crossSession, crossFolder bool, maxAgeDiffMs *int64, threshold float64) [][]*types.MemoryEntry {
	n := len(entries)
	parent := make([]int, n)
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(i int) int {
		for parent[i] != i {
			parent[i] = parent[parent[i]]
			i = parent[i]
		}
		return i
	}
	union := func(i, j int) {
		ri, rj := find(i), find(j)
		if ri != rj {
			parent[ri] = rj
		}
	}

	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if similar(entries[i], entries[j], crossSession, crossFolder, maxAgeDiffMs, threshold) {
				union(i, j)
			}
		}
	}

	groups := make(map[int][]*types.MemoryEntry)
	for i, e := range entries {
		root := find(i)
		groups[root] = append(groups[root], e)
	}

	clusters := make([][]*types.MemoryEntry, 0, len(groups))
	for _, g := range groups {
		clusters = append(clusters, g)
	}
	return clusters
}

func (e *Engine) applyStrategy(cluster []*types.MemoryEntry, strategy Strategy) (ConsolidationResult, error) {
	switch strategy {
	case KeepLatest:
		return e.applyKeepLatest(cluster)
	case Merge:
		return e.applyMerge(cluster)
	case UpdateRelevance:
		return e.applyUpdateRelevance(cluster)
	default:
		return e.applyKeepLatest(cluster)
	}
}

func latestOf(cluster []*types.MemoryEntry) *types.MemoryEntry {
	latest := cluster[0]
	for _, e := range cluster[1:] {
		if e.CreatedAt.After(latest.CreatedAt) {
			latest = e
		}
	}
	return latest
}

func (e *Engine) deleteRest(cluster []*types.MemoryEntry, keepID string) ([]string, error) {
	var deleted []string
	for _, entry := range cluster {
		if entry.ID == keepID {
			continue
		}
		if err := e.store.DeleteMemoryEntry(entry.ID); err != nil {
			return nil, err
		}
		deleted = append(deleted, entry.ID)
	}
	return deleted, nil
}

func (e *Engine) applyKeepLatest(cluster []*types.MemoryEntry) (ConsolidationResult, error) {
	keep := latestOf(cluster)
	deleted, err := e.deleteRest(cluster, keep.ID)
	if err != nil {
		return ConsolidationResult{}, err
	}
	return ConsolidationResult{MergedIDs: deleted, ConsolidatedID: keep.ID}, nil
}

func (e *Engine) applyMerge(cluster []*types.MemoryEntry) (ConsolidationResult, error) {
	keep := latestOf(cluster)

	seenHashes := make(map[string]struct{})
	var parts []string
	ordered := append([]*types.MemoryEntry{}, cluster...)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].CreatedAt.Before(ordered[j].CreatedAt) })
	for _, entry := range ordered {
		if _, ok := seenHashes[entry.ContentHash]; ok {
			continue
		}
		seenHashes[entry.ContentHash] = struct{}{}
		parts = append(parts, entry.Content)
	}
	mergedContent := strings.Join(parts, mergeDelimiter)

	if err := e.store.UpdateMemoryEntryContent(keep.ID, mergedContent, contentHash(mergedContent)); err != nil {
		return ConsolidationResult{}, err
	}
	deleted, err := e.deleteRest(cluster, keep.ID)
	if err != nil {
		return ConsolidationResult{}, err
	}
	return ConsolidationResult{MergedIDs: deleted, ConsolidatedID: keep.ID}, nil
}

func (e *Engine) applyUpdateRelevance(cluster []*types.MemoryEntry) (ConsolidationResult, error) {
	keep := cluster[0]
	for _, entry := range cluster[1:] {
		if entry.RelevanceOrDefault() > keep.RelevanceOrDefault() {
			keep = entry
		}
	}

	totalAccess := 0
	for _, entry := range cluster {
		totalAccess += entry.AccessCount
	}
	if totalAccess < 1 {
		totalAccess = 1
	}
	boost := math.Min(math.Log(float64(len(cluster)))/10+math.Log(float64(totalAccess))/20, 0.3)

	newRelevance := clamp01(keep.RelevanceOrDefault() + boost)
	if err := e.store.UpdateMemoryEntryRelevance(keep.ID, newRelevance); err != nil {
		return ConsolidationResult{}, err
	}
	deleted, err := e.deleteRest(cluster, keep.ID)
	if err != nil {
		return ConsolidationResult{}, err
	}
	return ConsolidationResult{MergedIDs: deleted, ConsolidatedID: keep.ID, RelevanceBoost: boost}, nil
}

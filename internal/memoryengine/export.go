package memoryengine

import (
	"fmt"

	"github.com/rdvcore/core/internal/types"
)

// ExportProjectKnowledge materializes a folder's long_term Memory Entries
// and verified, folder-applicable SDK Insights into project_knowledge
// rows, per SPEC_FULL.md §3.1's ProjectKnowledge entity. It is additive to
// spec.md's operation list, not a replacement for any of it.
//
// Re-export is idempotent: a source whose content hasn't changed since the
// last export is left untouched rather than rewritten, so repeated calls
// (e.g. once per Monitoring Loop tick for a folder-scoped orchestrator)
// cost nothing once the folder's knowledge has settled.
func (e *Engine) ExportProjectKnowledge(userID, folderID string) ([]*types.ProjectKnowledge, error) {
	existing, err := e.store.ListProjectKnowledge(folderID)
	if err != nil {
		return nil, err
	}
	bySource := make(map[string]*types.ProjectKnowledge, len(existing))
	for _, k := range existing {
		bySource[k.ID] = k
	}

	entries, err := e.store.ListMemoryEntriesByTier(userID, types.TierLongTerm, "", folderID, false)
	if err != nil {
		return nil, err
	}
	insights, err := e.store.ListInsightsForApplicability(userID, types.ApplicabilityFolder, folderID)
	if err != nil {
		return nil, err
	}

	var exported []*types.ProjectKnowledge
	for _, entry := range entries {
		k := &types.ProjectKnowledge{
			ID:          "mem-" + entry.ID,
			FolderID:    folderID,
			Title:       titleFor(entry.Name, entry.Content),
			Content:     entry.Content,
			ContentHash: entry.ContentHash,
		}
		if prior, ok := bySource[k.ID]; ok && prior.ContentHash == k.ContentHash {
			continue
		}
		if err := e.store.UpsertProjectKnowledge(k); err != nil {
			return nil, err
		}
		exported = append(exported, k)
	}

	for _, insight := range insights {
		if !insight.Verified {
			continue
		}
		k := &types.ProjectKnowledge{
			ID:              "insight-" + insight.ID,
			FolderID:        folderID,
			Title:           insight.Title,
			Content:         insight.Description,
			ContentHash:     contentHash(insight.Description),
			SourceInsightID: insight.ID,
		}
		if prior, ok := bySource[k.ID]; ok && prior.ContentHash == k.ContentHash {
			continue
		}
		if err := e.store.UpsertProjectKnowledge(k); err != nil {
			return nil, err
		}
		exported = append(exported, k)
	}

	return exported, nil
}

func titleFor(name, content string) string {
	if name != "" {
		return name
	}
	if len(content) <= 80 {
		return content
	}
	return fmt.Sprintf("%s…", content[:79])
}

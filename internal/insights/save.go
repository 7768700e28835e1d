package insights

import (
	"encoding/json"

	"github.com/rdvcore/core/internal/types"
)

// Save persists extracted candidates as SDK Insights, per spec.md §4.3's
// separate save(user_id, folder_id?, insights[]) call.
func (x *Extractor) Save(userID, folderID string, candidates []Candidate) ([]*types.SDKInsight, error) {
	saved := make([]*types.SDKInsight, 0, len(candidates))
	for _, c := range candidates {
		sourceNotesJSON, err := json.Marshal(c.SourceNoteIDs)
		if err != nil {
			return saved, err
		}
		insight := &types.SDKInsight{
			UserID:                userID,
			FolderID:              folderID,
			Type:                  c.Type,
			Applicability:         c.Applicability,
			Title:                 c.Title,
			Description:           c.Description,
			ApplicabilityContext:  c.ApplicabilityContext,
			SourceNotesJSON:       string(sourceNotesJSON),
			Confidence:            c.Confidence,
			Active:                true,
		}
		if err := x.store.CreateInsight(insight); err != nil {
			return saved, err
		}
		saved = append(saved, insight)
	}
	return saved, nil
}

package memoryengine

import (
	"time"

	"github.com/rdvcore/core/internal/types"
)

// CleanupExpired implements spec.md §4.2.3's cleanup_expired(): deletes
// every short_term row whose expires_at has passed. Returns the number of
// rows removed.
func (e *Engine) CleanupExpired() (int, error) {
	expired, err := e.store.ListExpiredMemoryEntries(time.Now())
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, entry := range expired {
		if entry.Tier != types.TierShortTerm {
			continue
		}
		if err := e.store.DeleteMemoryEntry(entry.ID); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}

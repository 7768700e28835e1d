package memoryengine

import "time"

// Touch implements spec.md §4.2.2's touch(id): increment access_count and
// set last_accessed_at to now.
func (e *Engine) Touch(id string) error {
	return e.store.TouchMemoryEntry(id, time.Now())
}

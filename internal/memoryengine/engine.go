// Package memoryengine is the Memory Engine (component C2): three-tier
// content-addressed memory with TTL expiry, scored retrieval, tier
// transitions and similarity-based consolidation. Grounded on the
// teacher's internal/memory/learning.go (tokenize/search shape) and
// internal/memory/review_board.go (numeric scoring conventions), layered
// on top of internal/store rather than driving SQL directly.
package memoryengine

import (
	"github.com/rdvcore/core/internal/config"
	"github.com/rdvcore/core/internal/store"
)

// Engine implements the Memory Engine contract in spec.md §4.2. It holds
// no state of its own beyond a Store handle and the configuration
// snapshot it was built with.
type Engine struct {
	store *store.Store
	cfg   config.Memory
}

// New constructs an Engine bound to st, using cfg for tier defaults,
// retrieval limits and consolidation thresholds.
func New(st *store.Store, cfg config.Memory) *Engine {
	return &Engine{store: st, cfg: cfg}
}

package memoryengine

import (
	"github.com/rdvcore/core/internal/apperr"
	"github.com/rdvcore/core/internal/types"
)

// Promote implements spec.md §4.2.2's promote(id, target_tier): only
// short_term→working, short_term→long_term and working→long_term are
// permitted. Moving to long_term clears expires_at.
func (e *Engine) Promote(id string, target types.Tier) error {
	entry, err := e.store.GetMemoryEntry(id)
	if err != nil {
		return err
	}
	if !isValidPromotion(entry.Tier, target) {
		return apperr.New(apperr.InvalidPromotion, "cannot promote from "+string(entry.Tier)+" to "+string(target))
	}
	if err := e.store.ChangeMemoryEntryTier(id, target); err != nil {
		return err
	}
	if target == types.TierLongTerm {
		return e.store.ClearMemoryEntryExpiry(id)
	}
	return nil
}

func isValidPromotion(from, to types.Tier) bool {
	switch from {
	case types.TierShortTerm:
		return to == types.TierWorking || to == types.TierLongTerm
	case types.TierWorking:
		return to == types.TierLongTerm
	default:
		return false
	}
}

// Demote implements spec.md §4.2.2's demote(id, target_tier): the reverse
// transition matrix of Promote. Callers are expected to have already
// evaluated SuggestDemotion or to be forcing it administratively — Demote
// itself only enforces the transition shape, not the relevance/confidence
// gate (that gate lives in SuggestDemotion, which is advisory).
func (e *Engine) Demote(id string, target types.Tier) error {
	entry, err := e.store.GetMemoryEntry(id)
	if err != nil {
		return err
	}
	if !isValidDemotion(entry.Tier, target) {
		return apperr.New(apperr.InvalidPromotion, "cannot demote from "+string(entry.Tier)+" to "+string(target))
	}
	return e.store.ChangeMemoryEntryTier(id, target)
}

func isValidDemotion(from, to types.Tier) bool {
	switch from {
	case types.TierLongTerm:
		return to == types.TierWorking
	case types.TierWorking:
		return to == types.TierShortTerm
	default:
		return false
	}
}

// SuggestPromotion implements the pure advisory function in spec.md
// §4.2.4. It returns the suggested target tier and true, or ("", false)
// when no promotion is suggested.
func SuggestPromotion(entry *types.MemoryEntry) (types.Tier, bool) {
	confidence := entry.ConfidenceOrDefault()
	switch entry.Tier {
	case types.TierShortTerm:
		if entry.AccessCount >= 3 || confidence >= 0.7 {
			return types.TierWorking, true
		}
	case types.TierWorking:
		relevance := entry.RelevanceOrDefault()
		if entry.AccessCount >= 5 && confidence >= 0.8 && relevance >= 0.7 {
			return types.TierLongTerm, true
		}
	}
	return "", false
}

// SuggestDemotion implements the pure advisory function in spec.md
// §4.2.4: only fires when both relevance < 0.2 and confidence < 0.3.
func SuggestDemotion(entry *types.MemoryEntry) (types.Tier, bool) {
	if entry.RelevanceOrDefault() >= 0.2 || entry.ConfidenceOrDefault() >= 0.3 {
		return "", false
	}
	switch entry.Tier {
	case types.TierLongTerm:
		return types.TierWorking, true
	case types.TierWorking:
		return types.TierShortTerm, true
	default:
		return "", false
	}
}

package memoryengine

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/rdvcore/core/internal/apperr"
	"github.com/rdvcore/core/internal/types"
)

// NewEntryRequest is the input to Store: the fields a caller may set
// before tier/hash/expiry are derived.
type NewEntryRequest struct {
	UserID             string
	SessionID          string
	FolderID           string
	Tier               string // canonicalized; aliases accepted
	ContentType        string
	Name               string
	Description        string
	Content            string
	TaskID             string
	Priority           string
	Confidence         *float64
	Relevance          *float64
	TTLSeconds         *int
	SourceSessionsJSON string
	MetadataJSON       string
}

// StoreResult reports whether the call created a new row or deduplicated
// onto an existing one.
type StoreResult struct {
	ID            string
	Deduplicated  bool
}

// Store implements spec.md §4.2.2's store(new_entry) operation.
func (e *Engine) Store(req NewEntryRequest) (*StoreResult, error) {
	tier, ok := types.CanonicalTier(req.Tier)
	if !ok {
		return nil, apperr.New(apperr.InvariantViolation, "unknown memory tier: "+req.Tier)
	}

	hash := contentHash(req.Content)

	existing, err := e.store.FindMemoryEntryByHash(req.UserID, tier, hash)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	if existing != nil {
		if err := e.store.TouchMemoryEntry(existing.ID, now); err != nil {
			return nil, err
		}
		return &StoreResult{ID: existing.ID, Deduplicated: true}, nil
	}

	expiresAt, err := e.deriveExpiry(tier, req.TTLSeconds, now)
	if err != nil {
		return nil, err
	}

	entry := &types.MemoryEntry{
		UserID:             req.UserID,
		SessionID:          req.SessionID,
		FolderID:           req.FolderID,
		Tier:               tier,
		ContentType:        req.ContentType,
		Name:               req.Name,
		Description:        req.Description,
		Content:            req.Content,
		ContentHash:        hash,
		TaskID:             req.TaskID,
		Priority:           req.Priority,
		Confidence:         req.Confidence,
		Relevance:          req.Relevance,
		TTLSeconds:         req.TTLSeconds,
		ExpiresAt:          expiresAt,
		AccessCount:        0,
		LastAccessedAt:     now,
		SourceSessionsJSON: req.SourceSessionsJSON,
		MetadataJSON:       req.MetadataJSON,
	}
	if err := e.store.CreateMemoryEntry(entry); err != nil {
		// A race between the hash lookup and the insert can still trip the
		// dedup unique index; surface it as a dedup rather than an error.
		if apperr.Is(err, apperr.InvariantViolation) {
			if dup, derr := e.store.FindMemoryEntryByHash(req.UserID, tier, hash); derr == nil && dup != nil {
				return &StoreResult{ID: dup.ID, Deduplicated: true}, nil
			}
		}
		return nil, err
	}
	return &StoreResult{ID: entry.ID}, nil
}

func (e *Engine) deriveExpiry(tier types.Tier, ttlSeconds *int, now time.Time) (*time.Time, error) {
	switch tier {
	case types.TierShortTerm:
		secs := e.cfg.DefaultShortTTLSecs
		if ttlSeconds != nil {
			secs = *ttlSeconds
		}
		t := now.Add(time.Duration(secs) * time.Second)
		return &t, nil
	case types.TierWorking:
		if ttlSeconds != nil {
			t := now.Add(time.Duration(*ttlSeconds) * time.Second)
			return &t, nil
		}
		if e.cfg.DefaultWorkingTTLSecs != nil {
			t := now.Add(time.Duration(*e.cfg.DefaultWorkingTTLSecs) * time.Second)
			return &t, nil
		}
		return nil, nil
	case types.TierLongTerm:
		if ttlSeconds != nil {
			return nil, apperr.New(apperr.InvariantViolation, "long_term entries may not carry a TTL")
		}
		return nil, nil
	default:
		return nil, apperr.New(apperr.InvariantViolation, "unknown memory tier")
	}
}

func contentHash(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

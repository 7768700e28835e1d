package store

import (
	"testing"
	"time"

	"github.com/rdvcore/core/internal/types"
)

func TestMemoryEntryLifecycle(t *testing.T) {
	st := openTestStore(t)
	must(t, st.UpsertUser(&types.User{ID: "user-1"}))

	entry := &types.MemoryEntry{
		UserID:      "user-1",
		Tier:        types.TierShortTerm,
		ContentType: "note",
		Content:     "remember to vendor the schema",
		ContentHash: "hash-1",
	}
	if err := st.CreateMemoryEntry(entry); err != nil {
		t.Fatalf("CreateMemoryEntry: %v", err)
	}
	if entry.ID == "" {
		t.Fatal("CreateMemoryEntry did not assign an ID")
	}

	found, err := st.FindMemoryEntryByHash("user-1", types.TierShortTerm, "hash-1")
	if err != nil {
		t.Fatalf("FindMemoryEntryByHash: %v", err)
	}
	if found == nil || found.ID != entry.ID {
		t.Fatalf("FindMemoryEntryByHash = %+v, want entry %q", found, entry.ID)
	}

	if err := st.TouchMemoryEntry(entry.ID, time.Now()); err != nil {
		t.Fatalf("TouchMemoryEntry: %v", err)
	}
	got, err := st.GetMemoryEntry(entry.ID)
	if err != nil {
		t.Fatalf("GetMemoryEntry: %v", err)
	}
	if got.AccessCount != 1 {
		t.Errorf("AccessCount after touch = %d, want 1", got.AccessCount)
	}

	if err := st.ChangeMemoryEntryTier(entry.ID, types.TierWorking); err != nil {
		t.Fatalf("ChangeMemoryEntryTier: %v", err)
	}
	got, err = st.GetMemoryEntry(entry.ID)
	if err != nil {
		t.Fatalf("GetMemoryEntry after tier change: %v", err)
	}
	if got.Tier != types.TierWorking {
		t.Errorf("Tier after change = %q, want working", got.Tier)
	}

	if err := st.UpdateMemoryEntryRelevance(entry.ID, 0.9); err != nil {
		t.Fatalf("UpdateMemoryEntryRelevance: %v", err)
	}
	got, err = st.GetMemoryEntry(entry.ID)
	if err != nil {
		t.Fatalf("GetMemoryEntry after relevance update: %v", err)
	}
	if got.Relevance == nil || *got.Relevance != 0.9 {
		t.Errorf("Relevance after update = %v, want 0.9", got.Relevance)
	}

	if err := st.DeleteMemoryEntry(entry.ID); err != nil {
		t.Fatalf("DeleteMemoryEntry: %v", err)
	}
	if _, err := st.GetMemoryEntry(entry.ID); err == nil {
		t.Fatal("GetMemoryEntry after delete succeeded, want not-found error")
	}
}

func TestListExpiredMemoryEntries(t *testing.T) {
	st := openTestStore(t)
	must(t, st.UpsertUser(&types.User{ID: "user-1"}))

	past := time.Now().Add(-time.Hour)
	future := time.Now().Add(time.Hour)

	expired := &types.MemoryEntry{UserID: "user-1", Tier: types.TierShortTerm, Content: "old", ContentHash: "h1", ExpiresAt: &past}
	fresh := &types.MemoryEntry{UserID: "user-1", Tier: types.TierShortTerm, Content: "new", ContentHash: "h2", ExpiresAt: &future}
	permanent := &types.MemoryEntry{UserID: "user-1", Tier: types.TierLongTerm, Content: "forever", ContentHash: "h3"}

	for _, e := range []*types.MemoryEntry{expired, fresh, permanent} {
		if err := st.CreateMemoryEntry(e); err != nil {
			t.Fatalf("CreateMemoryEntry: %v", err)
		}
	}

	got, err := st.ListExpiredMemoryEntries(time.Now())
	if err != nil {
		t.Fatalf("ListExpiredMemoryEntries: %v", err)
	}
	if len(got) != 1 || got[0].ID != expired.ID {
		t.Fatalf("ListExpiredMemoryEntries = %+v, want only %q", got, expired.ID)
	}
}

func TestListMemoryEntriesByTierIncludeExpired(t *testing.T) {
	st := openTestStore(t)
	must(t, st.UpsertUser(&types.User{ID: "user-1"}))

	past := time.Now().Add(-time.Hour)
	expired := &types.MemoryEntry{UserID: "user-1", Tier: types.TierShortTerm, Content: "old", ContentHash: "h1", ExpiresAt: &past}
	must(t, st.CreateMemoryEntry(expired))

	withoutExpired, err := st.ListMemoryEntriesByTier("user-1", types.TierShortTerm, "", "", false)
	if err != nil {
		t.Fatalf("ListMemoryEntriesByTier (exclude expired): %v", err)
	}
	if len(withoutExpired) != 0 {
		t.Errorf("ListMemoryEntriesByTier (exclude expired) = %+v, want none", withoutExpired)
	}

	withExpired, err := st.ListMemoryEntriesByTier("user-1", types.TierShortTerm, "", "", true)
	if err != nil {
		t.Fatalf("ListMemoryEntriesByTier (include expired): %v", err)
	}
	if len(withExpired) != 1 {
		t.Errorf("ListMemoryEntriesByTier (include expired) = %+v, want 1", withExpired)
	}
}

package store

import (
	"testing"
	"time"

	"github.com/rdvcore/core/internal/types"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := OpenMemory(t.TempDir())
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func TestUpsertAndGetUser(t *testing.T) {
	st := openTestStore(t)
	u := &types.User{ID: "user-1", Name: "Ada", Email: "ada@example.com"}
	if err := st.UpsertUser(u); err != nil {
		t.Fatalf("UpsertUser: %v", err)
	}
	got, err := st.GetUser("user-1")
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if got.Name != "Ada" || got.Email != "ada@example.com" {
		t.Errorf("GetUser = %+v, want name Ada / email ada@example.com", got)
	}

	u.Name = "Ada Lovelace"
	if err := st.UpsertUser(u); err != nil {
		t.Fatalf("UpsertUser (update): %v", err)
	}
	got, err = st.GetUser("user-1")
	if err != nil {
		t.Fatalf("GetUser after update: %v", err)
	}
	if got.Name != "Ada Lovelace" {
		t.Errorf("GetUser after update = %q, want %q", got.Name, "Ada Lovelace")
	}
}

func TestCreateAndListFolders(t *testing.T) {
	st := openTestStore(t)
	f1 := &types.Folder{ID: "f1", UserID: "user-1", Name: "Backend", SortOrder: 1}
	f2 := &types.Folder{ID: "f2", UserID: "user-1", Name: "Frontend", SortOrder: 0}
	if err := st.CreateFolder(f1); err != nil {
		t.Fatalf("CreateFolder f1: %v", err)
	}
	if err := st.CreateFolder(f2); err != nil {
		t.Fatalf("CreateFolder f2: %v", err)
	}

	folders, err := st.ListFolders("user-1")
	if err != nil {
		t.Fatalf("ListFolders: %v", err)
	}
	if len(folders) != 2 {
		t.Fatalf("ListFolders returned %d folders, want 2", len(folders))
	}
	if folders[0].ID != "f2" {
		t.Errorf("ListFolders[0] = %q, want f2 (lower sort_order first)", folders[0].ID)
	}

	if err := st.ReorderFolders("user-1", []string{"f1", "f2"}); err != nil {
		t.Fatalf("ReorderFolders: %v", err)
	}
	folders, err = st.ListFolders("user-1")
	if err != nil {
		t.Fatalf("ListFolders after reorder: %v", err)
	}
	if folders[0].ID != "f1" {
		t.Errorf("ListFolders[0] after reorder = %q, want f1", folders[0].ID)
	}
}

func TestCreateSessionAndListStalled(t *testing.T) {
	st := openTestStore(t)
	must(t, st.UpsertUser(&types.User{ID: "user-1"}))

	fresh := time.Now().Add(-1 * time.Minute)
	stale := time.Now().Add(-30 * time.Minute)

	active := &types.Session{ID: "s1", UserID: "user-1", Name: "active", TerminalSessionName: "pane-1", Status: types.SessionActive, LastActivityAt: &fresh}
	stalled := &types.Session{ID: "s2", UserID: "user-1", Name: "stalled", TerminalSessionName: "pane-2", Status: types.SessionActive, LastActivityAt: &stale}
	paused := &types.Session{ID: "s3", UserID: "user-1", Name: "paused", TerminalSessionName: "pane-3", Status: types.SessionPaused, LastActivityAt: &stale}

	for _, s := range []*types.Session{active, stalled, paused} {
		if err := st.CreateSession(s); err != nil {
			t.Fatalf("CreateSession %s: %v", s.ID, err)
		}
	}

	got, err := st.ListStalledSessions("user-1", time.Now(), 10*time.Minute)
	if err != nil {
		t.Fatalf("ListStalledSessions: %v", err)
	}
	if len(got) != 1 || got[0].ID != "s2" {
		t.Fatalf("ListStalledSessions = %+v, want only s2", got)
	}

	if err := st.TouchSessionActivity("s2", time.Now()); err != nil {
		t.Fatalf("TouchSessionActivity: %v", err)
	}
	got, err = st.ListStalledSessions("user-1", time.Now(), 10*time.Minute)
	if err != nil {
		t.Fatalf("ListStalledSessions after touch: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("ListStalledSessions after touch = %+v, want none", got)
	}
}

func TestCreateOrchestratorEnforcesSingleMaster(t *testing.T) {
	st := openTestStore(t)
	must(t, st.UpsertUser(&types.User{ID: "user-1"}))

	first := &types.Orchestrator{UserID: "user-1", Type: types.OrchestratorMaster, MonitoringIntervalSecs: 60, StallThresholdSecs: 900}
	if err := st.CreateOrchestrator(first); err != nil {
		t.Fatalf("CreateOrchestrator (first master): %v", err)
	}

	second := &types.Orchestrator{UserID: "user-1", Type: types.OrchestratorMaster, MonitoringIntervalSecs: 60, StallThresholdSecs: 900}
	if err := st.CreateOrchestrator(second); err == nil {
		t.Fatal("CreateOrchestrator (second master) succeeded, want InvariantViolation")
	}

	got, err := st.GetMasterOrchestrator("user-1")
	if err != nil {
		t.Fatalf("GetMasterOrchestrator: %v", err)
	}
	if got.ID != first.ID {
		t.Errorf("GetMasterOrchestrator = %q, want %q", got.ID, first.ID)
	}
}

func TestOrchestratorStatusAndActivity(t *testing.T) {
	st := openTestStore(t)
	must(t, st.UpsertUser(&types.User{ID: "user-1"}))
	orch := &types.Orchestrator{UserID: "user-1", Type: types.OrchestratorMaster, MonitoringIntervalSecs: 60, StallThresholdSecs: 900}
	must(t, st.CreateOrchestrator(orch))

	if err := st.SetOrchestratorStatus(orch.ID, types.OrchestratorActive); err != nil {
		t.Fatalf("SetOrchestratorStatus: %v", err)
	}
	active, err := st.ListActiveOrchestrators()
	if err != nil {
		t.Fatalf("ListActiveOrchestrators: %v", err)
	}
	if len(active) != 1 || active[0].ID != orch.ID {
		t.Fatalf("ListActiveOrchestrators = %+v, want only %q", active, orch.ID)
	}

	now := time.Now()
	if err := st.TouchOrchestratorActivity(orch.ID, now); err != nil {
		t.Fatalf("TouchOrchestratorActivity: %v", err)
	}
	got, err := st.GetOrchestrator(orch.ID)
	if err != nil {
		t.Fatalf("GetOrchestrator: %v", err)
	}
	if got.LastActivityAt == nil || !got.LastActivityAt.Equal(now.Truncate(time.Millisecond)) {
		t.Errorf("GetOrchestrator.LastActivityAt = %v, want ~%v", got.LastActivityAt, now)
	}
}

func must(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

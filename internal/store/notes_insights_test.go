package store

import (
	"testing"
	"time"

	"github.com/rdvcore/core/internal/types"
)

func TestNoteLifecycle(t *testing.T) {
	st := openTestStore(t)
	must(t, st.UpsertUser(&types.User{ID: "user-1"}))
	must(t, st.CreateSession(&types.Session{ID: "s1", UserID: "user-1", Status: types.SessionActive}))

	n := &types.Note{UserID: "user-1", SessionID: "s1", Type: types.NoteGotcha, Content: "watch out for the WAL lock"}
	if err := st.CreateNote(n); err != nil {
		t.Fatalf("CreateNote: %v", err)
	}

	notes, err := st.ListNotesForSession("s1", false)
	if err != nil {
		t.Fatalf("ListNotesForSession: %v", err)
	}
	if len(notes) != 1 || notes[0].ID != n.ID {
		t.Fatalf("ListNotesForSession = %+v, want only %q", notes, n.ID)
	}

	if err := st.SetNotePinned(n.ID, true); err != nil {
		t.Fatalf("SetNotePinned: %v", err)
	}
	got, err := st.GetNote(n.ID)
	if err != nil {
		t.Fatalf("GetNote: %v", err)
	}
	if !got.Pinned {
		t.Error("GetNote.Pinned = false, want true")
	}

	if err := st.ArchiveNote(n.ID); err != nil {
		t.Fatalf("ArchiveNote: %v", err)
	}
	notes, err = st.ListNotesForSession("s1", false)
	if err != nil {
		t.Fatalf("ListNotesForSession after archive: %v", err)
	}
	if len(notes) != 0 {
		t.Errorf("ListNotesForSession after archive = %+v, want none", notes)
	}
	notes, err = st.ListNotesForSession("s1", true)
	if err != nil {
		t.Fatalf("ListNotesForSession (include archived): %v", err)
	}
	if len(notes) != 1 {
		t.Errorf("ListNotesForSession (include archived) = %+v, want 1", notes)
	}
}

func TestInsightLifecycle(t *testing.T) {
	st := openTestStore(t)
	must(t, st.UpsertUser(&types.User{ID: "user-1"}))

	insight := &types.SDKInsight{
		UserID:        "user-1",
		Type:          types.InsightGotcha,
		Applicability: types.ApplicabilityGlobal,
		Title:         "WAL busy timeout",
		Description:   "set _busy_timeout or writers collide",
		Confidence:    0.8,
		Active:        true,
	}
	if err := st.CreateInsight(insight); err != nil {
		t.Fatalf("CreateInsight: %v", err)
	}

	list, err := st.ListInsightsForApplicability("user-1", types.ApplicabilityGlobal, "")
	if err != nil {
		t.Fatalf("ListInsightsForApplicability: %v", err)
	}
	if len(list) != 1 || list[0].ID != insight.ID {
		t.Fatalf("ListInsightsForApplicability = %+v, want only %q", list, insight.ID)
	}

	score := 0.9
	if err := st.RecordInsightApplication(insight.ID, "s1", &score, time.Now()); err != nil {
		t.Fatalf("RecordInsightApplication: %v", err)
	}
	got, err := st.GetInsight(insight.ID)
	if err != nil {
		t.Fatalf("GetInsight: %v", err)
	}
	if got.ApplicationCount != 1 {
		t.Errorf("ApplicationCount = %d, want 1", got.ApplicationCount)
	}
	if got.LastAppliedAt == nil {
		t.Error("LastAppliedAt = nil, want set")
	}

	if err := st.SetInsightActive(insight.ID, false); err != nil {
		t.Fatalf("SetInsightActive: %v", err)
	}
	list, err = st.ListInsightsForApplicability("user-1", types.ApplicabilityGlobal, "")
	if err != nil {
		t.Fatalf("ListInsightsForApplicability after deactivate: %v", err)
	}
	if len(list) != 0 {
		t.Errorf("ListInsightsForApplicability after deactivate = %+v, want none", list)
	}
}

func TestOrchestratorInsightDuplicateSuppression(t *testing.T) {
	st := openTestStore(t)
	must(t, st.UpsertUser(&types.User{ID: "user-1"}))
	orch := &types.Orchestrator{UserID: "user-1", Type: types.OrchestratorMaster, MonitoringIntervalSecs: 60, StallThresholdSecs: 900}
	must(t, st.CreateOrchestrator(orch))
	must(t, st.CreateSession(&types.Session{ID: "s1", UserID: "user-1", Status: types.SessionActive}))

	existing, err := st.FindUnresolvedStallInsight("s1")
	if err != nil {
		t.Fatalf("FindUnresolvedStallInsight (none yet): %v", err)
	}
	if existing != nil {
		t.Fatalf("FindUnresolvedStallInsight (none yet) = %+v, want nil", existing)
	}

	insight := &types.OrchestratorInsight{
		OrchestratorID: orch.ID,
		SessionID:      "s1",
		Type:           types.OrchestratorInsightStall,
		Severity:       types.SeverityHigh,
		Title:          "Session stalled",
		Description:    "no activity",
	}
	if err := st.CreateOrchestratorInsight(insight); err != nil {
		t.Fatalf("CreateOrchestratorInsight: %v", err)
	}

	existing, err = st.FindUnresolvedStallInsight("s1")
	if err != nil {
		t.Fatalf("FindUnresolvedStallInsight: %v", err)
	}
	if existing == nil || existing.ID != insight.ID {
		t.Fatalf("FindUnresolvedStallInsight = %+v, want %q", existing, insight.ID)
	}

	if err := st.ResolveOrchestratorInsight(insight.ID, "operator", time.Now()); err != nil {
		t.Fatalf("ResolveOrchestratorInsight: %v", err)
	}

	existing, err = st.FindUnresolvedStallInsight("s1")
	if err != nil {
		t.Fatalf("FindUnresolvedStallInsight after resolve: %v", err)
	}
	if existing != nil {
		t.Fatalf("FindUnresolvedStallInsight after resolve = %+v, want nil", existing)
	}

	all, err := st.ListOrchestratorInsights(orch.ID, false)
	if err != nil {
		t.Fatalf("ListOrchestratorInsights: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("ListOrchestratorInsights = %+v, want 1", all)
	}

	unresolved, err := st.ListOrchestratorInsights(orch.ID, true)
	if err != nil {
		t.Fatalf("ListOrchestratorInsights (unresolved only): %v", err)
	}
	if len(unresolved) != 0 {
		t.Errorf("ListOrchestratorInsights (unresolved only) = %+v, want none", unresolved)
	}
}

func TestAuditLogIsAppendOnly(t *testing.T) {
	st := openTestStore(t)
	must(t, st.UpsertUser(&types.User{ID: "user-1"}))
	orch := &types.Orchestrator{UserID: "user-1", Type: types.OrchestratorMaster, MonitoringIntervalSecs: 60, StallThresholdSecs: 900}
	must(t, st.CreateOrchestrator(orch))

	if err := st.AppendAuditLog(&types.AuditLog{OrchestratorID: orch.ID, SessionID: "s1", ActionType: types.ActionCommandInjection, Details: "delivered: echo hi"}); err != nil {
		t.Fatalf("AppendAuditLog: %v", err)
	}
	if err := st.AppendAuditLog(&types.AuditLog{OrchestratorID: orch.ID, SessionID: "s1", ActionType: types.ActionIntervention, Details: "rejected (dangerous): rm -rf /"}); err != nil {
		t.Fatalf("AppendAuditLog: %v", err)
	}

	entries, err := st.ListAuditLog("s1")
	if err != nil {
		t.Fatalf("ListAuditLog: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("ListAuditLog = %+v, want 2 entries", entries)
	}
	if entries[0].ActionType != types.ActionIntervention {
		t.Errorf("ListAuditLog[0].ActionType = %q, want newest-first %q", entries[0].ActionType, types.ActionIntervention)
	}
}

func TestGithubRepositoryAndProjectKnowledge(t *testing.T) {
	st := openTestStore(t)
	must(t, st.UpsertUser(&types.User{ID: "user-1"}))
	must(t, st.CreateFolder(&types.Folder{ID: "f1", UserID: "user-1", Name: "core"}))

	repo := &types.GithubRepository{UserID: "user-1", FolderID: "f1", RemoteURL: "git@github.com:rdvcore/core.git", DefaultBranch: "main"}
	if err := st.CreateGithubRepository(repo); err != nil {
		t.Fatalf("CreateGithubRepository: %v", err)
	}
	got, err := st.GetGithubRepositoryByFolder("f1")
	if err != nil {
		t.Fatalf("GetGithubRepositoryByFolder: %v", err)
	}
	if got.RemoteURL != repo.RemoteURL {
		t.Errorf("GetGithubRepositoryByFolder.RemoteURL = %q, want %q", got.RemoteURL, repo.RemoteURL)
	}

	if err := st.TouchGithubRepositorySync(repo.ID, time.Now().UnixMilli()); err != nil {
		t.Fatalf("TouchGithubRepositorySync: %v", err)
	}

	knowledge := &types.ProjectKnowledge{FolderID: "f1", Title: "store conventions", Content: "single writer, mutex guarded", ContentHash: "kh1"}
	if err := st.UpsertProjectKnowledge(knowledge); err != nil {
		t.Fatalf("UpsertProjectKnowledge: %v", err)
	}
	list, err := st.ListProjectKnowledge("f1")
	if err != nil {
		t.Fatalf("ListProjectKnowledge: %v", err)
	}
	if len(list) != 1 || list[0].Title != "store conventions" {
		t.Fatalf("ListProjectKnowledge = %+v, want one row titled 'store conventions'", list)
	}
}

func TestCLITokenLifecycle(t *testing.T) {
	st := openTestStore(t)
	must(t, st.UpsertUser(&types.User{ID: "user-1"}))

	tok := &types.CLIToken{UserID: "user-1", Name: "laptop", KeyPrefix: "rdv_abc", KeyHash: "hashed"}
	if err := st.CreateCLIToken(tok); err != nil {
		t.Fatalf("CreateCLIToken: %v", err)
	}

	found, err := st.FindCLITokenByPrefix("rdv_abc")
	if err != nil {
		t.Fatalf("FindCLITokenByPrefix: %v", err)
	}
	if found.ID != tok.ID {
		t.Fatalf("FindCLITokenByPrefix = %+v, want %q", found, tok.ID)
	}

	if err := st.TouchCLIToken(tok.ID, time.Now()); err != nil {
		t.Fatalf("TouchCLIToken: %v", err)
	}

	list, err := st.ListCLITokens("user-1")
	if err != nil {
		t.Fatalf("ListCLITokens: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("ListCLITokens = %+v, want 1", list)
	}

	if err := st.RevokeCLIToken(tok.ID); err != nil {
		t.Fatalf("RevokeCLIToken: %v", err)
	}
	if _, err := st.FindCLITokenByPrefix("rdv_abc"); err == nil {
		t.Fatal("FindCLITokenByPrefix after revoke succeeded, want not-found error")
	}
}

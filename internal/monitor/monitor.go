// Package monitor is the Monitoring Loop (component C4): a per-orchestrator
// ticker that scans for stalled sessions, raises Orchestrator Insights, and
// optionally asks the Command Injector to nudge a stalled session.
// Grounded on the teacher's internal/captain/captain.go Run/runCycle
// ticker shape and internal/metrics's shouldAlert duplicate-suppression
// idea (generalized here to a Store-backed query so suppression survives
// restarts).
package monitor

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/rdvcore/core/internal/events"
	"github.com/rdvcore/core/internal/injector"
	"github.com/rdvcore/core/internal/memoryengine"
	"github.com/rdvcore/core/internal/notifications"
	"github.com/rdvcore/core/internal/store"
	"github.com/rdvcore/core/internal/terminal"
	"github.com/rdvcore/core/internal/types"
)

// NudgeCommand is the predefined command sent to a stalled session's
// terminal when auto_intervention is enabled.
const NudgeCommand = "echo 'orchestrator: this session appears stalled, please report status'"

// Loop owns the active-orchestrator map and the per-orchestrator ticker
// goroutines. The map is guarded by mu per spec.md §5's "locked for
// mutation; reads cloned" resource policy.
type Loop struct {
	store    *store.Store
	memory   *memoryengine.Engine
	injector *injector.Injector
	terminal terminal.Terminal
	router   *notifications.Router
	manager  notifications.NotificationManager

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
}

// WithRouter attaches the external-channel router (Slack/Discord/email)
// that above-medium-severity Orchestrator Insights are routed through,
// per SPEC_FULL.md §4.4.1's notification hook. Optional: a Loop with no
// router still raises and stores insights, it just doesn't fan them out.
func (l *Loop) WithRouter(router *notifications.Router) *Loop {
	l.router = router
	return l
}

// WithNotificationManager attaches the desktop/terminal/banner manager
// that critical-severity insights additionally raise a toast through.
func (l *Loop) WithNotificationManager(manager notifications.NotificationManager) *Loop {
	l.manager = manager
	return l
}

// New constructs a Loop over the given Store, Memory Engine, Command
// Injector and Terminal collaborator.
func New(st *store.Store, mem *memoryengine.Engine, inj *injector.Injector, term terminal.Terminal) *Loop {
	return &Loop{
		store:    st,
		memory:   mem,
		injector: inj,
		terminal: term,
		cancels:  make(map[string]context.CancelFunc),
	}
}

// Start transitions an orchestrator to active and begins its ticker,
// per spec.md §4.4's state machine. Starting an already-active
// orchestrator is a no-op.
func (l *Loop) Start(ctx context.Context, orchestratorID string) error {
	l.mu.Lock()
	if _, running := l.cancels[orchestratorID]; running {
		l.mu.Unlock()
		return nil
	}
	tickCtx, cancel := context.WithCancel(ctx)
	l.cancels[orchestratorID] = cancel
	l.mu.Unlock()

	if err := l.store.SetOrchestratorStatus(orchestratorID, types.OrchestratorActive); err != nil {
		l.stopInternal(orchestratorID)
		return err
	}

	go l.run(tickCtx, orchestratorID)
	return nil
}

// Pause preserves orchestrator state but stops ticking; Resume restarts
// ticking without re-initialization, per spec.md §4.4.
func (l *Loop) Pause(orchestratorID string) error {
	l.stopInternal(orchestratorID)
	return l.store.SetOrchestratorStatus(orchestratorID, types.OrchestratorPaused)
}

// Resume restarts ticking for a paused orchestrator.
func (l *Loop) Resume(ctx context.Context, orchestratorID string) error {
	return l.Start(ctx, orchestratorID)
}

// Stop halts ticking and returns the orchestrator to idle. Stopping
// guarantees no new tick starts but does not abort in-flight tick work.
func (l *Loop) Stop(orchestratorID string) error {
	l.stopInternal(orchestratorID)
	return l.store.SetOrchestratorStatus(orchestratorID, types.OrchestratorIdle)
}

func (l *Loop) stopInternal(orchestratorID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if cancel, ok := l.cancels[orchestratorID]; ok {
		cancel()
		delete(l.cancels, orchestratorID)
	}
}

// IsRunning reports whether an orchestrator currently has an active tick
// goroutine.
func (l *Loop) IsRunning(orchestratorID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.cancels[orchestratorID]
	return ok
}

// run is the main orchestration loop for a single orchestrator, mirroring
// the teacher's Run: an immediate first tick, then one per
// monitoring_interval_secs until cancelled.
func (l *Loop) run(ctx context.Context, orchestratorID string) {
	orch, err := l.store.GetOrchestrator(orchestratorID)
	if err != nil {
		log.Printf("[MONITOR] orchestrator %s: lookup failed, stopping loop: %v", orchestratorID, err)
		return
	}
	interval := time.Duration(orch.MonitoringIntervalSecs) * time.Second
	if interval <= 0 {
		interval = 60 * time.Second
	}

	l.tick(ctx, orch)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			orch, err := l.store.GetOrchestrator(orchestratorID)
			if err != nil {
				log.Printf("[MONITOR] orchestrator %s: lookup failed mid-loop, stopping: %v", orchestratorID, err)
				return
			}
			l.tick(ctx, orch)
		}
	}
}

// tick implements spec.md §4.4's fixed-order tick algorithm.
func (l *Loop) tick(ctx context.Context, orch *types.Orchestrator) {
	now := time.Now()

	if _, err := l.memory.CleanupExpired(); err != nil {
		log.Printf("[MONITOR] orchestrator %s: cleanup_expired failed: %v", orch.ID, err)
	}

	threshold := time.Duration(orch.StallThresholdSecs) * time.Second
	candidates, err := l.store.ListStalledSessions(orch.UserID, now, threshold)
	if err != nil {
		log.Printf("[MONITOR] orchestrator %s: stall scan failed: %v", orch.ID, err)
		return
	}

	errCount := 0
	for _, session := range candidates {
		select {
		case <-ctx.Done():
			return
		default:
		}
		if err := l.handleStalledSession(ctx, orch, session, now); err != nil {
			errCount++
		}
	}

	if err := l.store.TouchOrchestratorActivity(orch.ID, now); err != nil {
		log.Printf("[MONITOR] orchestrator %s: failed to update last_activity_at: %v", orch.ID, err)
	}

	// Folder-scoped orchestrators additionally re-materialize their
	// folder's ProjectKnowledge export each tick (SPEC_FULL.md §3.1); the
	// export is idempotent so a settled folder costs one read per tick.
	if orch.Type == types.OrchestratorFolder && orch.ScopeID != "" {
		if _, err := l.memory.ExportProjectKnowledge(orch.UserID, orch.ScopeID); err != nil {
			log.Printf("[MONITOR] orchestrator %s: project knowledge export failed: %v", orch.ID, err)
		}
	}

	// spec.md §7's propagation policy: the tick summary is written to the
	// Audit Log whenever at least one session in this tick errored.
	if errCount > 0 {
		_ = l.store.AppendAuditLog(&types.AuditLog{
			OrchestratorID: orch.ID,
			ActionType:     types.ActionTickSummary,
			Details:        fmt.Sprintf("tick completed with %d of %d stalled-session checks failing", errCount, len(candidates)),
		})
	}
}

// handleStalledSession processes one stalled-session candidate, returning
// an error when any step (duplicate check, insight creation) failed so
// tick can roll failures up into a tick-summary audit row. Notification
// and intervention delivery are best-effort and never reported here — a
// broken notification channel must not mark the whole tick as failed.
func (l *Loop) handleStalledSession(ctx context.Context, orch *types.Orchestrator, session *types.Session, now time.Time) error {
	existing, err := l.store.FindUnresolvedStallInsight(session.ID)
	if err != nil {
		log.Printf("[MONITOR] orchestrator %s: duplicate check failed for session %s: %v", orch.ID, session.ID, err)
		return err
	}
	if existing != nil {
		return nil
	}

	stalledMinutes := -1
	if session.LastActivityAt != nil {
		stalledMinutes = int(now.Sub(*session.LastActivityAt).Milliseconds() / 60000)
	}
	severity := severityFor(stalledMinutes)

	insight := &types.OrchestratorInsight{
		OrchestratorID:   orch.ID,
		SessionID:        session.ID,
		Type:             types.OrchestratorInsightStall,
		Severity:         severity,
		Title:            "Session stalled",
		Description:      stallDescription(stalledMinutes),
		SuggestedActions: "Check the session's terminal output; consider an intervention or closing the session.",
	}
	if err := l.store.CreateOrchestratorInsight(insight); err != nil {
		log.Printf("[MONITOR] orchestrator %s: failed to record stall insight for session %s: %v", orch.ID, session.ID, err)
		return err
	}

	l.notifyInsight(orch, session, insight)

	if orch.AutoIntervention {
		terminalName := session.TerminalSessionName
		_ = l.injector.Inject(ctx, orch.ID, session.ID, terminalName, NudgeCommand,
			"monitor", "automatic stall intervention", injector.ActionIntervention)
	}
	return nil
}

// notifyInsight fans out above-medium-severity insights to the external
// channel router and, for critical ones, to the desktop/terminal/banner
// manager, per SPEC_FULL.md §4.4.1. Both dependencies are optional;
// either being nil is a no-op, matching the injector's existing
// best-effort-delivery posture (a broken notification channel must never
// stop the tick).
func (l *Loop) notifyInsight(orch *types.Orchestrator, session *types.Session, insight *types.OrchestratorInsight) {
	if insight.Severity != types.SeverityHigh && insight.Severity != types.SeverityCritical {
		return
	}

	if l.router != nil {
		event := events.NewEvent(events.EventSessionStalled, "monitor", orch.UserID, priorityFor(insight.Severity), map[string]interface{}{
			"orchestrator_id": orch.ID,
			"session_id":      session.ID,
			"insight_id":      insight.ID,
			"severity":        string(insight.Severity),
			"description":     insight.Description,
		})
		l.router.Route(*event)
	}

	if l.manager != nil && insight.Severity == types.SeverityCritical {
		if err := l.manager.NotifyOrchestratorInsight(insight.Severity, insight.Description); err != nil {
			log.Printf("[MONITOR] orchestrator %s: failed to raise desktop notification: %v", orch.ID, err)
		}
	}
}

func priorityFor(severity types.Severity) int {
	switch severity {
	case types.SeverityCritical:
		return events.PriorityCritical
	case types.SeverityHigh:
		return events.PriorityHigh
	case types.SeverityMedium:
		return events.PriorityNormal
	default:
		return events.PriorityLow
	}
}

func severityFor(stalledMinutes int) types.Severity {
	switch {
	case stalledMinutes < 0:
		return types.SeverityLow
	case stalledMinutes < 15:
		return types.SeverityLow
	case stalledMinutes < 60:
		return types.SeverityMedium
	case stalledMinutes < 240:
		return types.SeverityHigh
	default:
		return types.SeverityCritical
	}
}

func stallDescription(stalledMinutes int) string {
	if stalledMinutes < 0 {
		return "Session has no recorded activity."
	}
	return fmt.Sprintf("Session has had no activity for %d minutes.", stalledMinutes)
}

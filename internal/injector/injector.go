// Package injector is the Command Injector (component C5): the only path
// by which the Monitoring Loop or an external caller can influence a live
// session. Grounded on the teacher's internal/wezterm/ops.go delivery
// shape, with a denylist generalized from nothing in the teacher (it has
// no equivalent) and built fresh from spec.md §4.5's built-in list.
package injector

import (
	"context"
	"strings"
	"sync"

	"github.com/rdvcore/core/internal/apperr"
	"github.com/rdvcore/core/internal/store"
	"github.com/rdvcore/core/internal/terminal"
	"github.com/rdvcore/core/internal/types"
)

// builtinDenylist is always present regardless of configuration, per
// spec.md §4.5.
var builtinDenylist = []string{
	"rm -rf /",
	":(){ :|:& };:",
	"> /dev/sda",
	"dd if=/dev/zero",
	"mkfs.",
	"chmod -r 777 /",
	"> /dev/null &",
	"wget.*|.*sh",
}

// Injector enforces the denylist and routes deliveries through a Terminal
// collaborator, auditing every attempt.
type Injector struct {
	store    *store.Store
	terminal terminal.Terminal

	mu       sync.RWMutex
	denylist []string
}

// New constructs an Injector seeded with the built-in denylist plus any
// configured extras, per spec.md §6's injector.extra_denylist option.
func New(st *store.Store, term terminal.Terminal, extraDenylist []string) *Injector {
	denylist := make([]string, 0, len(builtinDenylist)+len(extraDenylist))
	denylist = append(denylist, builtinDenylist...)
	denylist = append(denylist, extraDenylist...)
	return &Injector{store: st, terminal: term, denylist: denylist}
}

// SetExtraDenylist atomically replaces the configured extras while
// preserving the built-ins — readers always see a consistent snapshot
// (spec.md §5's "replaced atomically" resource policy).
func (i *Injector) SetExtraDenylist(extra []string) {
	denylist := make([]string, 0, len(builtinDenylist)+len(extra))
	denylist = append(denylist, builtinDenylist...)
	denylist = append(denylist, extra...)
	i.mu.Lock()
	i.denylist = denylist
	i.mu.Unlock()
}

func (i *Injector) isDangerous(command string) bool {
	lc := strings.ToLower(command)
	i.mu.RLock()
	defer i.mu.RUnlock()
	for _, pattern := range i.denylist {
		if strings.Contains(lc, strings.ToLower(pattern)) {
			return true
		}
	}
	return false
}

// ActionType distinguishes a routine injection from one raised as part of
// an automatic intervention, per the Audit Log's action_type values.
type ActionType string

const (
	ActionInject       ActionType = types.ActionCommandInjection
	ActionIntervention ActionType = types.ActionIntervention
)

// Inject implements spec.md §4.5's inject(session_id, command, actor,
// reason): denylist check, delivery through the Terminal collaborator,
// and an Audit Log row written regardless of outcome.
func (i *Injector) Inject(ctx context.Context, orchestratorID, sessionID, terminalName, command, actor, reason string, action ActionType) error {
	if i.isDangerous(command) {
		i.audit(orchestratorID, sessionID, action, "rejected (dangerous): "+command)
		return apperr.New(apperr.DangerousCommand, "command matches denylist: "+command)
	}

	err := i.terminal.SendKeys(ctx, terminalName, command, true)

	details := "delivered: " + command
	if err != nil {
		details = "failed: " + command + " (" + err.Error() + ")"
	}
	i.audit(orchestratorID, sessionID, action, details)

	if err != nil {
		return apperr.Wrap(apperr.CollaboratorError, "deliver command to terminal", err)
	}
	return nil
}

func (i *Injector) audit(orchestratorID, sessionID string, action ActionType, details string) {
	// Audit logging failures are swallowed here rather than surfaced to
	// the caller — the injection outcome (success/failure) is already
	// what the caller needs; a broken audit trail shouldn't also fail a
	// successful command delivery.
	_ = i.store.AppendAuditLog(&types.AuditLog{
		OrchestratorID: orchestratorID,
		SessionID:      sessionID,
		ActionType:     string(action),
		Details:        details,
	})
}

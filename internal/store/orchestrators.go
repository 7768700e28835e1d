package store

import (
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/rdvcore/core/internal/apperr"
	"github.com/rdvcore/core/internal/types"
)

const orchestratorColumns = `id, session_id, user_id, type, status, scope_type, scope_id,
	custom_instructions, monitoring_interval_secs, stall_threshold_secs, auto_intervention,
	last_activity_at, created_at, updated_at`

func applyOrchestratorDefaults(o *types.Orchestrator) {
	if o.ID == "" {
		o.ID = uuid.New().String()
	}
	if o.Status == "" {
		o.Status = types.OrchestratorIdle
	}
}

// CreateOrchestrator inserts a new orchestrator, enforcing at most one
// master per user and at most one orchestrator per (user, scope_id) —
// the same invariants the schema's partial unique indexes enforce, checked
// here first so callers get an InvariantViolation rather than a raw sqlite
// constraint error.
func (s *Store) CreateOrchestrator(o *types.Orchestrator) error {
	applyOrchestratorDefaults(o)
	now := nowMillis()
	return s.Transaction(func(tx *sql.Tx) error {
		if o.Type == types.OrchestratorMaster {
			var count int
			if err := tx.QueryRow(
				`SELECT COUNT(*) FROM orchestrator_session WHERE user_id = ? AND type = 'master'`,
				o.UserID,
			).Scan(&count); err != nil {
				return apperr.Wrap(apperr.DatabaseError, "check existing master orchestrator", err)
			}
			if count > 0 {
				return apperr.New(apperr.InvariantViolation, "user already has a master orchestrator")
			}
		}
		if o.ScopeID != "" {
			var count int
			if err := tx.QueryRow(
				`SELECT COUNT(*) FROM orchestrator_session WHERE user_id = ? AND scope_id = ?`,
				o.UserID, o.ScopeID,
			).Scan(&count); err != nil {
				return apperr.Wrap(apperr.DatabaseError, "check existing scoped orchestrator", err)
			}
			if count > 0 {
				return apperr.New(apperr.InvariantViolation, "user already has an orchestrator for this scope")
			}
		}
		_, err := tx.Exec(
			`INSERT INTO orchestrator_session
			 (id, session_id, user_id, type, status, scope_type, scope_id, custom_instructions,
			  monitoring_interval_secs, stall_threshold_secs, auto_intervention, last_activity_at,
			  created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			o.ID, o.SessionID, o.UserID, string(o.Type), string(o.Status), nullString(o.ScopeType),
			nullString(o.ScopeID), nullString(o.CustomInstructions), o.MonitoringIntervalSecs,
			o.StallThresholdSecs, boolToInt(o.AutoIntervention), nullableMillis(o.LastActivityAt), now, now,
		)
		if err != nil {
			return apperr.Wrap(apperr.DatabaseError, "create orchestrator", err)
		}
		return nil
	})
}

func scanOrchestrator(row interface{ Scan(...interface{}) error }) (*types.Orchestrator, error) {
	var o types.Orchestrator
	var scopeType, scopeID, customInstructions sql.NullString
	var orchType, status string
	var autoIntervention int
	var lastActivity sql.NullInt64
	var createdAt, updatedAt int64
	err := row.Scan(&o.ID, &o.SessionID, &o.UserID, &orchType, &status, &scopeType, &scopeID,
		&customInstructions, &o.MonitoringIntervalSecs, &o.StallThresholdSecs, &autoIntervention,
		&lastActivity, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	o.Type = types.OrchestratorType(orchType)
	o.Status = types.OrchestratorStatus(status)
	o.ScopeType, o.ScopeID = stringOrEmpty(scopeType), stringOrEmpty(scopeID)
	o.CustomInstructions = stringOrEmpty(customInstructions)
	o.AutoIntervention = autoIntervention != 0
	o.LastActivityAt = millisToTimePtr(lastActivity)
	o.CreatedAt, o.UpdatedAt = millisToTime(createdAt), millisToTime(updatedAt)
	return &o, nil
}

// GetOrchestrator fetches an orchestrator by id.
func (s *Store) GetOrchestrator(id string) (*types.Orchestrator, error) {
	var o *types.Orchestrator
	err := s.withLock(func() error {
		row := s.db.QueryRow(`SELECT `+orchestratorColumns+` FROM orchestrator_session WHERE id = ?`, id)
		v, e := scanOrchestrator(row)
		if e != nil {
			return wrapDBErr(e, "orchestrator not found")
		}
		o = v
		return nil
	})
	return o, err
}

// GetMasterOrchestrator returns the single master orchestrator for userID,
// if one exists.
func (s *Store) GetMasterOrchestrator(userID string) (*types.Orchestrator, error) {
	var o *types.Orchestrator
	err := s.withLock(func() error {
		row := s.db.QueryRow(
			`SELECT `+orchestratorColumns+` FROM orchestrator_session WHERE user_id = ? AND type = 'master'`,
			userID,
		)
		v, e := scanOrchestrator(row)
		if e != nil {
			return wrapDBErr(e, "no master orchestrator for user")
		}
		o = v
		return nil
	})
	return o, err
}

// ListActiveOrchestrators returns every orchestrator currently in the
// active state, across all users — the seed set for the Monitoring Loop's
// active-orchestrator map on process start.
func (s *Store) ListActiveOrchestrators() ([]*types.Orchestrator, error) {
	var out []*types.Orchestrator
	err := s.withLock(func() error {
		rows, err := s.db.Query(`SELECT ` + orchestratorColumns + ` FROM orchestrator_session WHERE status = 'active'`)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			o, err := scanOrchestrator(rows)
			if err != nil {
				return err
			}
			out = append(out, o)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, wrapDBErr(err, "list active orchestrators")
	}
	return out, nil
}

// SetOrchestratorStatus transitions an orchestrator's status field, used by
// the Monitoring Loop's start/pause/stop operations.
func (s *Store) SetOrchestratorStatus(id string, status types.OrchestratorStatus) error {
	return s.withLock(func() error {
		res, err := s.db.Exec(`UPDATE orchestrator_session SET status = ?, updated_at = ? WHERE id = ?`,
			string(status), nowMillis(), id)
		if err != nil {
			return wrapDBErr(err, "set orchestrator status")
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return apperr.New(apperr.NotFound, "orchestrator not found")
		}
		return nil
	})
}

// TouchOrchestratorActivity sets an orchestrator's last_activity_at to now.
func (s *Store) TouchOrchestratorActivity(id string, at time.Time) error {
	return s.withLock(func() error {
		res, err := s.db.Exec(`UPDATE orchestrator_session SET last_activity_at = ?, updated_at = ? WHERE id = ?`,
			at.UnixMilli(), nowMillis(), id)
		if err != nil {
			return wrapDBErr(err, "touch orchestrator activity")
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return apperr.New(apperr.NotFound, "orchestrator not found")
		}
		return nil
	})
}

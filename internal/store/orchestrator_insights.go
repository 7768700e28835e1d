package store

import (
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/rdvcore/core/internal/apperr"
	"github.com/rdvcore/core/internal/types"
)

const orchestratorInsightColumns = `id, orchestrator_id, session_id, type, severity, title, description,
	context, suggested_actions, resolved, resolved_at, resolved_by, created_at`

// CreateOrchestratorInsight inserts a stall/alert insight raised by the
// Monitoring Loop.
func (s *Store) CreateOrchestratorInsight(oi *types.OrchestratorInsight) error {
	if oi.ID == "" {
		oi.ID = uuid.New().String()
	}
	now := nowMillis()
	return s.withLock(func() error {
		_, err := s.db.Exec(
			`INSERT INTO orchestrator_insight
			 (id, orchestrator_id, session_id, type, severity, title, description, context,
			  suggested_actions, resolved, resolved_at, resolved_by, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			oi.ID, oi.OrchestratorID, oi.SessionID, string(oi.Type), string(oi.Severity), oi.Title,
			oi.Description, nullString(oi.Context), nullString(oi.SuggestedActions),
			boolToInt(oi.Resolved), nullableMillis(oi.ResolvedAt), nullString(oi.ResolvedBy), now,
		)
		return wrapDBErr(err, "create orchestrator insight")
	})
}

func scanOrchestratorInsight(row interface{ Scan(...interface{}) error }) (*types.OrchestratorInsight, error) {
	var oi types.OrchestratorInsight
	var context, suggestedActions, resolvedBy sql.NullString
	var insightType, severity string
	var resolved int
	var resolvedAt sql.NullInt64
	var createdAt int64
	err := row.Scan(&oi.ID, &oi.OrchestratorID, &oi.SessionID, &insightType, &severity, &oi.Title,
		&oi.Description, &context, &suggestedActions, &resolved, &resolvedAt, &resolvedBy, &createdAt)
	if err != nil {
		return nil, err
	}
	oi.Type = types.OrchestratorInsightType(insightType)
	oi.Severity = types.Severity(severity)
	oi.Context, oi.SuggestedActions, oi.ResolvedBy = stringOrEmpty(context), stringOrEmpty(suggestedActions), stringOrEmpty(resolvedBy)
	oi.Resolved = resolved != 0
	oi.ResolvedAt = millisToTimePtr(resolvedAt)
	oi.CreatedAt = millisToTime(createdAt)
	return &oi, nil
}

// FindUnresolvedStallInsight returns the at-most-one unresolved stall
// insight for a session, enforcing the duplicate-suppression invariant in
// spec.md §4.4 ("do not raise a second stall insight while one is open").
func (s *Store) FindUnresolvedStallInsight(sessionID string) (*types.OrchestratorInsight, error) {
	var oi *types.OrchestratorInsight
	err := s.withLock(func() error {
		row := s.db.QueryRow(
			`SELECT `+orchestratorInsightColumns+` FROM orchestrator_insight
			 WHERE session_id = ? AND type = ? AND resolved = 0`,
			sessionID, string(types.OrchestratorInsightStall),
		)
		v, e := scanOrchestratorInsight(row)
		if e == sql.ErrNoRows {
			return nil
		}
		if e != nil {
			return e
		}
		oi = v
		return nil
	})
	if err != nil {
		return nil, wrapDBErr(err, "find unresolved stall insight")
	}
	return oi, nil
}

// ResolveOrchestratorInsight marks an insight resolved.
func (s *Store) ResolveOrchestratorInsight(id, resolvedBy string, at time.Time) error {
	return s.withLock(func() error {
		res, err := s.db.Exec(
			`UPDATE orchestrator_insight SET resolved = 1, resolved_at = ?, resolved_by = ? WHERE id = ?`,
			at.UnixMilli(), nullString(resolvedBy), id,
		)
		if err != nil {
			return wrapDBErr(err, "resolve orchestrator insight")
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return apperr.New(apperr.NotFound, "orchestrator insight not found")
		}
		return nil
	})
}

// ListOrchestratorInsights returns insights raised for an orchestrator,
// newest first.
func (s *Store) ListOrchestratorInsights(orchestratorID string, onlyUnresolved bool) ([]*types.OrchestratorInsight, error) {
	query := `SELECT ` + orchestratorInsightColumns + ` FROM orchestrator_insight WHERE orchestrator_id = ?`
	if onlyUnresolved {
		query += ` AND resolved = 0`
	}
	query += ` ORDER BY created_at DESC`
	var out []*types.OrchestratorInsight
	err := s.withLock(func() error {
		rows, err := s.db.Query(query, orchestratorID)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			oi, err := scanOrchestratorInsight(rows)
			if err != nil {
				return err
			}
			out = append(out, oi)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, wrapDBErr(err, "list orchestrator insights")
	}
	return out, nil
}

package store

import (
	"github.com/google/uuid"

	"github.com/rdvcore/core/internal/types"
)

// AppendAuditLog writes an immutable audit record. There is no update or
// delete path for this table by design — every command injection and
// intervention leaves a permanent trace.
func (s *Store) AppendAuditLog(a *types.AuditLog) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	now := nowMillis()
	return s.withLock(func() error {
		_, err := s.db.Exec(
			`INSERT INTO orchestrator_audit_log (id, orchestrator_id, session_id, action_type, details, created_at)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			a.ID, a.OrchestratorID, a.SessionID, a.ActionType, a.Details, now,
		)
		return wrapDBErr(err, "append audit log")
	})
}

// ListAuditLog returns audit entries for a session, newest first.
func (s *Store) ListAuditLog(sessionID string) ([]*types.AuditLog, error) {
	var out []*types.AuditLog
	err := s.withLock(func() error {
		rows, err := s.db.Query(
			`SELECT id, orchestrator_id, session_id, action_type, details, created_at
			 FROM orchestrator_audit_log WHERE session_id = ? ORDER BY created_at DESC`,
			sessionID,
		)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var a types.AuditLog
			var details string
			var createdAt int64
			if err := rows.Scan(&a.ID, &a.OrchestratorID, &a.SessionID, &a.ActionType, &details, &createdAt); err != nil {
				return err
			}
			a.Details = details
			a.CreatedAt = millisToTime(createdAt)
			out = append(out, &a)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, wrapDBErr(err, "list audit log")
	}
	return out, nil
}

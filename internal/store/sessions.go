package store

import (
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/rdvcore/core/internal/apperr"
	"github.com/rdvcore/core/internal/types"
)

// CreateSession inserts a new session, assigning an id if one is not set.
func (s *Store) CreateSession(sess *types.Session) error {
	if sess.ID == "" {
		sess.ID = uuid.New().String()
	}
	if sess.Status == "" {
		sess.Status = types.SessionActive
	}
	now := nowMillis()
	return s.withLock(func() error {
		_, err := s.db.Exec(
			`INSERT INTO terminal_session
			 (id, user_id, name, terminal_session_name, project_path, folder_id, worktree_branch,
			  agent_provider, is_orchestrator_session, status, last_activity_at, tab_order, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			sess.ID, sess.UserID, sess.Name, sess.TerminalSessionName, nullString(sess.ProjectPath),
			nullString(sess.FolderID), nullString(sess.WorktreeBranch), nullString(sess.AgentProvider),
			boolToInt(sess.IsOrchestratorSession), string(sess.Status), nullableMillis(sess.LastActivityAt),
			sess.TabOrder, now, now,
		)
		return wrapDBErr(err, "create session")
	})
}

func scanSession(row interface{ Scan(...interface{}) error }) (*types.Session, error) {
	var sess types.Session
	var projectPath, folderID, worktreeBranch, agentProvider sql.NullString
	var isOrch int
	var status string
	var lastActivity sql.NullInt64
	var createdAt, updatedAt int64
	err := row.Scan(&sess.ID, &sess.UserID, &sess.Name, &sess.TerminalSessionName, &projectPath,
		&folderID, &worktreeBranch, &agentProvider, &isOrch, &status, &lastActivity,
		&sess.TabOrder, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	sess.ProjectPath, sess.FolderID = stringOrEmpty(projectPath), stringOrEmpty(folderID)
	sess.WorktreeBranch, sess.AgentProvider = stringOrEmpty(worktreeBranch), stringOrEmpty(agentProvider)
	sess.IsOrchestratorSession = isOrch != 0
	sess.Status = types.SessionStatus(status)
	sess.LastActivityAt = millisToTimePtr(lastActivity)
	sess.CreatedAt, sess.UpdatedAt = millisToTime(createdAt), millisToTime(updatedAt)
	return &sess, nil
}

const sessionColumns = `id, user_id, name, terminal_session_name, project_path, folder_id, worktree_branch,
	agent_provider, is_orchestrator_session, status, last_activity_at, tab_order, created_at, updated_at`

// GetSession fetches a session by id.
func (s *Store) GetSession(id string) (*types.Session, error) {
	var sess *types.Session
	err := s.withLock(func() error {
		row := s.db.QueryRow(`SELECT `+sessionColumns+` FROM terminal_session WHERE id = ?`, id)
		v, e := scanSession(row)
		if e != nil {
			return wrapDBErr(e, "session not found")
		}
		sess = v
		return nil
	})
	return sess, err
}

// TouchSessionActivity sets a session's last_activity_at to now.
func (s *Store) TouchSessionActivity(id string, at time.Time) error {
	return s.withLock(func() error {
		res, err := s.db.Exec(`UPDATE terminal_session SET last_activity_at = ?, updated_at = ? WHERE id = ?`,
			at.UnixMilli(), nowMillis(), id)
		if err != nil {
			return wrapDBErr(err, "touch session activity")
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return apperr.New(apperr.NotFound, "session not found")
		}
		return nil
	})
}

// ListStalledSessions returns active, non-orchestrator sessions for
// userID whose last_activity_at is null or older than now-threshold,
// implementing the candidate-selection query in spec.md §4.4 step 3.
func (s *Store) ListStalledSessions(userID string, now time.Time, threshold time.Duration) ([]*types.Session, error) {
	cutoff := now.Add(-threshold).UnixMilli()
	var out []*types.Session
	err := s.withLock(func() error {
		rows, err := s.db.Query(
			`SELECT `+sessionColumns+` FROM terminal_session
			 WHERE user_id = ? AND status = ? AND is_orchestrator_session = 0
			   AND (last_activity_at IS NULL OR last_activity_at < ?)`,
			userID, string(types.SessionActive), cutoff,
		)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			sess, err := scanSession(rows)
			if err != nil {
				return err
			}
			out = append(out, sess)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, wrapDBErr(err, "list stalled sessions")
	}
	return out, nil
}

// ReorderSessions implements the reorder batch contract for tab_order.
func (s *Store) ReorderSessions(userID string, orderedIDs []string) error {
	return s.Transaction(func(tx *sql.Tx) error {
		for _, id := range orderedIDs {
			var owner string
			err := tx.QueryRow(`SELECT user_id FROM terminal_session WHERE id = ?`, id).Scan(&owner)
			if err == sql.ErrNoRows || (err == nil && owner != userID) {
				return apperr.New(apperr.AccessDenied, "reorder references a session not owned by user")
			}
			if err != nil {
				return apperr.Wrap(apperr.DatabaseError, "reorder: lookup session owner", err)
			}
		}
		for position, id := range orderedIDs {
			if _, err := tx.Exec(`UPDATE terminal_session SET tab_order = ?, updated_at = ? WHERE id = ?`,
				position, nowMillis(), id); err != nil {
				return apperr.Wrap(apperr.DatabaseError, "reorder: update tab_order", err)
			}
		}
		return nil
	})
}

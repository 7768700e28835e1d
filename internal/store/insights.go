package store

import (
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/rdvcore/core/internal/apperr"
	"github.com/rdvcore/core/internal/types"
)

const insightColumns = `id, user_id, folder_id, type, applicability, title, description,
	applicability_context, source_notes_json, source_sessions_json, confidence, application_count,
	feedback_score, verified, active, created_at, updated_at, last_applied_at`

// CreateInsight inserts a new SDK insight.
func (s *Store) CreateInsight(i *types.SDKInsight) error {
	if i.ID == "" {
		i.ID = uuid.New().String()
	}
	now := nowMillis()
	return s.withLock(func() error {
		_, err := s.db.Exec(
			`INSERT INTO sdk_insights
			 (id, user_id, folder_id, type, applicability, title, description, applicability_context,
			  source_notes_json, source_sessions_json, confidence, application_count, feedback_score,
			  verified, active, created_at, updated_at, last_applied_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			i.ID, i.UserID, nullString(i.FolderID), string(i.Type), string(i.Applicability), i.Title,
			i.Description, nullString(i.ApplicabilityContext), nullString(i.SourceNotesJSON),
			nullString(i.SourceSessionsJSON), i.Confidence, i.ApplicationCount, i.FeedbackScore,
			boolToInt(i.Verified), boolToInt(i.Active), now, now, nullableMillis(i.LastAppliedAt),
		)
		return wrapDBErr(err, "create insight")
	})
}

func scanInsight(row interface{ Scan(...interface{}) error }) (*types.SDKInsight, error) {
	var i types.SDKInsight
	var folderID, applicabilityContext, sourceNotesJSON, sourceSessionsJSON sql.NullString
	var insightType, applicability string
	var verified, active int
	var createdAt, updatedAt int64
	var lastAppliedAt sql.NullInt64
	err := row.Scan(&i.ID, &i.UserID, &folderID, &insightType, &applicability, &i.Title, &i.Description,
		&applicabilityContext, &sourceNotesJSON, &sourceSessionsJSON, &i.Confidence, &i.ApplicationCount,
		&i.FeedbackScore, &verified, &active, &createdAt, &updatedAt, &lastAppliedAt)
	if err != nil {
		return nil, err
	}
	i.Type = types.InsightType(insightType)
	i.Applicability = types.Applicability(applicability)
	i.FolderID = stringOrEmpty(folderID)
	i.ApplicabilityContext = stringOrEmpty(applicabilityContext)
	i.SourceNotesJSON, i.SourceSessionsJSON = stringOrEmpty(sourceNotesJSON), stringOrEmpty(sourceSessionsJSON)
	i.Verified, i.Active = verified != 0, active != 0
	i.CreatedAt, i.UpdatedAt = millisToTime(createdAt), millisToTime(updatedAt)
	i.LastAppliedAt = millisToTimePtr(lastAppliedAt)
	return &i, nil
}

// GetInsight fetches an insight by id.
func (s *Store) GetInsight(id string) (*types.SDKInsight, error) {
	var i *types.SDKInsight
	err := s.withLock(func() error {
		row := s.db.QueryRow(`SELECT `+insightColumns+` FROM sdk_insights WHERE id = ?`, id)
		v, e := scanInsight(row)
		if e != nil {
			return wrapDBErr(e, "insight not found")
		}
		i = v
		return nil
	})
	return i, err
}

// ListInsightsForApplicability returns active insights matching scope,
// used when surfacing insights applicable to a given session/folder/global.
func (s *Store) ListInsightsForApplicability(userID string, applicability types.Applicability, folderID string) ([]*types.SDKInsight, error) {
	query := `SELECT ` + insightColumns + ` FROM sdk_insights WHERE user_id = ? AND applicability = ? AND active = 1`
	args := []interface{}{userID, string(applicability)}
	if folderID != "" {
		query += ` AND (folder_id IS NULL OR folder_id = ?)`
		args = append(args, folderID)
	}
	query += ` ORDER BY confidence DESC`
	var out []*types.SDKInsight
	err := s.withLock(func() error {
		rows, err := s.db.Query(query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			i, err := scanInsight(rows)
			if err != nil {
				return err
			}
			out = append(out, i)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, wrapDBErr(err, "list insights for applicability")
	}
	return out, nil
}

// RecordInsightApplication logs a single application of an insight to a
// session and bumps application_count/last_applied_at on the parent row.
func (s *Store) RecordInsightApplication(insightID, sessionID string, feedbackScore *float64, at time.Time) error {
	return s.Transaction(func(tx *sql.Tx) error {
		id := uuid.New().String()
		if _, err := tx.Exec(
			`INSERT INTO sdk_insight_applications (id, insight_id, session_id, feedback_score, applied_at)
			 VALUES (?, ?, ?, ?, ?)`,
			id, insightID, sessionID, nullFloat(feedbackScore), at.UnixMilli(),
		); err != nil {
			return apperr.Wrap(apperr.DatabaseError, "record insight application", err)
		}
		res, err := tx.Exec(
			`UPDATE sdk_insights SET application_count = application_count + 1, last_applied_at = ?, updated_at = ? WHERE id = ?`,
			at.UnixMilli(), nowMillis(), insightID,
		)
		if err != nil {
			return apperr.Wrap(apperr.DatabaseError, "bump insight application count", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return apperr.New(apperr.NotFound, "insight not found")
		}
		return nil
	})
}

// SetInsightActive flips an insight's active flag (deactivate on
// contradiction/feedback, reactivate on later confirmation).
func (s *Store) SetInsightActive(id string, active bool) error {
	return s.withLock(func() error {
		res, err := s.db.Exec(`UPDATE sdk_insights SET active = ?, updated_at = ? WHERE id = ?`,
			boolToInt(active), nowMillis(), id)
		if err != nil {
			return wrapDBErr(err, "set insight active")
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return apperr.New(apperr.NotFound, "insight not found")
		}
		return nil
	})
}

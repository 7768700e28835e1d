package store

import (
	"database/sql"

	"github.com/google/uuid"

	"github.com/rdvcore/core/internal/apperr"
	"github.com/rdvcore/core/internal/types"
)

// CreateGithubRepository records a folder-scoped remote repository pointer.
func (s *Store) CreateGithubRepository(r *types.GithubRepository) error {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	now := nowMillis()
	return s.withLock(func() error {
		_, err := s.db.Exec(
			`INSERT INTO github_repository (id, user_id, folder_id, remote_url, default_branch, last_synced_at, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			r.ID, r.UserID, nullString(r.FolderID), r.RemoteURL, r.DefaultBranch, nullableMillis(r.LastSyncedAt), now,
		)
		return wrapDBErr(err, "create github repository")
	})
}

// GetGithubRepositoryByFolder returns the repository pointer attached to a
// folder, if any.
func (s *Store) GetGithubRepositoryByFolder(folderID string) (*types.GithubRepository, error) {
	var r types.GithubRepository
	var fid sql.NullString
	var lastSyncedAt sql.NullInt64
	var createdAt int64
	err := s.withLock(func() error {
		row := s.db.QueryRow(
			`SELECT id, user_id, folder_id, remote_url, default_branch, last_synced_at, created_at
			 FROM github_repository WHERE folder_id = ?`, folderID,
		)
		return wrapDBErr(row.Scan(&r.ID, &r.UserID, &fid, &r.RemoteURL, &r.DefaultBranch, &lastSyncedAt, &createdAt),
			"github repository not found")
	})
	if err != nil {
		return nil, err
	}
	r.FolderID = stringOrEmpty(fid)
	r.LastSyncedAt = millisToTimePtr(lastSyncedAt)
	r.CreatedAt = millisToTime(createdAt)
	return &r, nil
}

// TouchGithubRepositorySync sets last_synced_at to now.
func (s *Store) TouchGithubRepositorySync(id string, nowMs int64) error {
	return s.withLock(func() error {
		res, err := s.db.Exec(`UPDATE github_repository SET last_synced_at = ? WHERE id = ?`, nowMs, id)
		if err != nil {
			return wrapDBErr(err, "touch github repository sync")
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return apperr.New(apperr.NotFound, "github repository not found")
		}
		return nil
	})
}

// UpsertProjectKnowledge creates or replaces the materialized knowledge
// export for a folder, keyed by id: a row with the same id has its title,
// content, content_hash and updated_at overwritten.
func (s *Store) UpsertProjectKnowledge(k *types.ProjectKnowledge) error {
	if k.ID == "" {
		k.ID = uuid.New().String()
	}
	now := nowMillis()
	return s.withLock(func() error {
		_, err := s.db.Exec(
			`INSERT INTO project_knowledge (id, folder_id, title, content, content_hash, source_insight_id, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT(id) DO UPDATE SET title = excluded.title, content = excluded.content,
			   content_hash = excluded.content_hash, updated_at = excluded.updated_at`,
			k.ID, k.FolderID, k.Title, k.Content, k.ContentHash, nullString(k.SourceInsightID), now, now,
		)
		return wrapDBErr(err, "upsert project knowledge")
	})
}

// ListProjectKnowledge returns every knowledge row exported for a folder.
func (s *Store) ListProjectKnowledge(folderID string) ([]*types.ProjectKnowledge, error) {
	var out []*types.ProjectKnowledge
	err := s.withLock(func() error {
		rows, err := s.db.Query(
			`SELECT id, folder_id, title, content, content_hash, source_insight_id, created_at, updated_at
			 FROM project_knowledge WHERE folder_id = ? ORDER BY updated_at DESC`, folderID,
		)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var k types.ProjectKnowledge
			var sourceInsightID sql.NullString
			var createdAt, updatedAt int64
			if err := rows.Scan(&k.ID, &k.FolderID, &k.Title, &k.Content, &k.ContentHash, &sourceInsightID,
				&createdAt, &updatedAt); err != nil {
				return err
			}
			k.SourceInsightID = stringOrEmpty(sourceInsightID)
			k.CreatedAt, k.UpdatedAt = millisToTime(createdAt), millisToTime(updatedAt)
			out = append(out, &k)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, wrapDBErr(err, "list project knowledge")
	}
	return out, nil
}

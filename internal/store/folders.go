package store

import (
	"database/sql"

	"github.com/google/uuid"

	"github.com/rdvcore/core/internal/apperr"
	"github.com/rdvcore/core/internal/types"
	"github.com/rdvcore/core/internal/utils"
)

// CreateFolder inserts a new folder, assigning an id if one is not set.
func (s *Store) CreateFolder(f *types.Folder) error {
	if !utils.IsValidResourceName(f.Name) {
		return apperr.New(apperr.InvariantViolation, "folder name must be 1-64 characters")
	}
	if f.ID == "" {
		f.ID = uuid.New().String()
	}
	now := nowMillis()
	return s.withLock(func() error {
		_, err := s.db.Exec(
			`INSERT INTO session_folder
			 (id, user_id, parent_id, name, path, color, icon, collapsed, sort_order, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			f.ID, f.UserID, nullString(f.ParentID), f.Name, nullString(f.Path),
			nullString(f.Color), nullString(f.Icon), boolToInt(f.Collapsed), f.SortOrder, now, now,
		)
		return wrapDBErr(err, "create folder")
	})
}

// GetFolder fetches a folder by id.
func (s *Store) GetFolder(id string) (*types.Folder, error) {
	var f types.Folder
	var parentID, path, color, icon sql.NullString
	var collapsed int
	var createdAt, updatedAt int64
	err := s.withLock(func() error {
		row := s.db.QueryRow(
			`SELECT id, user_id, parent_id, name, path, color, icon, collapsed, sort_order, created_at, updated_at
			 FROM session_folder WHERE id = ?`, id,
		)
		return wrapDBErr(row.Scan(&f.ID, &f.UserID, &parentID, &f.Name, &path, &color, &icon,
			&collapsed, &f.SortOrder, &createdAt, &updatedAt), "folder not found")
	})
	if err != nil {
		return nil, err
	}
	f.ParentID, f.Path, f.Color, f.Icon = stringOrEmpty(parentID), stringOrEmpty(path), stringOrEmpty(color), stringOrEmpty(icon)
	f.Collapsed = collapsed != 0
	f.CreatedAt, f.UpdatedAt = millisToTime(createdAt), millisToTime(updatedAt)
	return &f, nil
}

// ListFolders returns every folder owned by userID, ordered by sort_order.
func (s *Store) ListFolders(userID string) ([]*types.Folder, error) {
	var out []*types.Folder
	err := s.withLock(func() error {
		rows, err := s.db.Query(
			`SELECT id, user_id, parent_id, name, path, color, icon, collapsed, sort_order, created_at, updated_at
			 FROM session_folder WHERE user_id = ? ORDER BY sort_order ASC`, userID,
		)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var f types.Folder
			var parentID, path, color, icon sql.NullString
			var collapsed int
			var createdAt, updatedAt int64
			if err := rows.Scan(&f.ID, &f.UserID, &parentID, &f.Name, &path, &color, &icon,
				&collapsed, &f.SortOrder, &createdAt, &updatedAt); err != nil {
				return err
			}
			f.ParentID, f.Path, f.Color, f.Icon = stringOrEmpty(parentID), stringOrEmpty(path), stringOrEmpty(color), stringOrEmpty(icon)
			f.Collapsed = collapsed != 0
			f.CreatedAt, f.UpdatedAt = millisToTime(createdAt), millisToTime(updatedAt)
			out = append(out, &f)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, wrapDBErr(err, "list folders")
	}
	return out, nil
}

// ReorderFolders implements the reorder batch contract in spec.md §4.1:
// every id must resolve to a row owned by userID or the whole transaction
// is aborted with AccessDenied and no row changes.
func (s *Store) ReorderFolders(userID string, orderedIDs []string) error {
	return s.Transaction(func(tx *sql.Tx) error {
		for _, id := range orderedIDs {
			var owner string
			err := tx.QueryRow(`SELECT user_id FROM session_folder WHERE id = ?`, id).Scan(&owner)
			if err == sql.ErrNoRows || (err == nil && owner != userID) {
				return apperr.New(apperr.AccessDenied, "reorder references a folder not owned by user")
			}
			if err != nil {
				return apperr.Wrap(apperr.DatabaseError, "reorder: lookup folder owner", err)
			}
		}
		for position, id := range orderedIDs {
			if _, err := tx.Exec(`UPDATE session_folder SET sort_order = ?, updated_at = ? WHERE id = ?`,
				position, nowMillis(), id); err != nil {
				return apperr.Wrap(apperr.DatabaseError, "reorder: update sort_order", err)
			}
		}
		return nil
	})
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

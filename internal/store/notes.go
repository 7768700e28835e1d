package store

import (
	"database/sql"

	"github.com/google/uuid"

	"github.com/rdvcore/core/internal/apperr"
	"github.com/rdvcore/core/internal/types"
)

const noteColumns = `id, user_id, session_id, folder_id, type, title, content, tags_json, context_json,
	embedding_id, priority, pinned, archived, created_at, updated_at`

// CreateNote inserts a new note.
func (s *Store) CreateNote(n *types.Note) error {
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	now := nowMillis()
	return s.withLock(func() error {
		_, err := s.db.Exec(
			`INSERT INTO sdk_notes
			 (id, user_id, session_id, folder_id, type, title, content, tags_json, context_json, embedding_id,
			  priority, pinned, archived, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			n.ID, n.UserID, nullString(n.SessionID), nullString(n.FolderID), string(n.Type), nullString(n.Title), n.Content,
			nullString(n.TagsJSON), nullString(n.ContextJSON), nullString(n.EmbeddingID), n.Priority,
			boolToInt(n.Pinned), boolToInt(n.Archived), now, now,
		)
		return wrapDBErr(err, "create note")
	})
}

func scanNote(row interface{ Scan(...interface{}) error }) (*types.Note, error) {
	var n types.Note
	var sessionID, folderID, title, tagsJSON, contextJSON, embeddingID sql.NullString
	var noteType string
	var pinned, archived int
	var createdAt, updatedAt int64
	err := row.Scan(&n.ID, &n.UserID, &sessionID, &folderID, &noteType, &title, &n.Content, &tagsJSON,
		&contextJSON, &embeddingID, &n.Priority, &pinned, &archived, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	n.Type = types.NoteType(noteType)
	n.SessionID, n.FolderID, n.Title = stringOrEmpty(sessionID), stringOrEmpty(folderID), stringOrEmpty(title)
	n.TagsJSON, n.ContextJSON, n.EmbeddingID = stringOrEmpty(tagsJSON), stringOrEmpty(contextJSON), stringOrEmpty(embeddingID)
	n.Pinned, n.Archived = pinned != 0, archived != 0
	n.CreatedAt, n.UpdatedAt = millisToTime(createdAt), millisToTime(updatedAt)
	return &n, nil
}

// GetNote fetches a note by id.
func (s *Store) GetNote(id string) (*types.Note, error) {
	var n *types.Note
	err := s.withLock(func() error {
		row := s.db.QueryRow(`SELECT `+noteColumns+` FROM sdk_notes WHERE id = ?`, id)
		v, e := scanNote(row)
		if e != nil {
			return wrapDBErr(e, "note not found")
		}
		n = v
		return nil
	})
	return n, err
}

// ListNotesForSession returns a session's notes, newest first — the
// candidate set the Insight Extractor reads from. Archived notes are left
// out unless includeArchived is set.
func (s *Store) ListNotesForSession(sessionID string, includeArchived bool) ([]*types.Note, error) {
	query := `SELECT ` + noteColumns + ` FROM sdk_notes WHERE session_id = ?`
	if !includeArchived {
		query += ` AND archived = 0`
	}
	query += ` ORDER BY created_at DESC`
	var out []*types.Note
	err := s.withLock(func() error {
		rows, err := s.db.Query(query, sessionID)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			n, err := scanNote(rows)
			if err != nil {
				return err
			}
			out = append(out, n)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, wrapDBErr(err, "list notes for session")
	}
	return out, nil
}

// SetNotePinned toggles a note's pinned flag.
func (s *Store) SetNotePinned(id string, pinned bool) error {
	return s.withLock(func() error {
		res, err := s.db.Exec(`UPDATE sdk_notes SET pinned = ?, updated_at = ? WHERE id = ?`,
			boolToInt(pinned), nowMillis(), id)
		if err != nil {
			return wrapDBErr(err, "set note pinned")
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return apperr.New(apperr.NotFound, "note not found")
		}
		return nil
	})
}

// ArchiveNote marks a note archived so it drops out of active retrieval.
func (s *Store) ArchiveNote(id string) error {
	return s.withLock(func() error {
		res, err := s.db.Exec(`UPDATE sdk_notes SET archived = 1, updated_at = ? WHERE id = ?`, nowMillis(), id)
		if err != nil {
			return wrapDBErr(err, "archive note")
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return apperr.New(apperr.NotFound, "note not found")
		}
		return nil
	})
}

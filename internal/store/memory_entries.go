package store

import (
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/rdvcore/core/internal/apperr"
	"github.com/rdvcore/core/internal/types"
)

const memoryEntryColumns = `id, user_id, session_id, folder_id, tier, content_type, name, description,
	content, content_hash, embedding_id, task_id, priority, confidence, relevance, ttl_seconds,
	expires_at, access_count, last_accessed_at, source_sessions_json, metadata_json, created_at, updated_at`

// CreateMemoryEntry inserts a memory entry and its tier sibling row in one
// transaction. A UNIQUE violation on (user_id, tier, content_hash) — the
// dedup invariant from spec.md §8 — surfaces as InvariantViolation rather
// than a raw sqlite error.
func (s *Store) CreateMemoryEntry(m *types.MemoryEntry) error {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	now := nowMillis()
	if m.LastAccessedAt.IsZero() {
		m.LastAccessedAt = time.UnixMilli(now)
	}
	return s.Transaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(
			`INSERT INTO sdk_memory_entries
			 (id, user_id, session_id, folder_id, tier, content_type, name, description, content,
			  content_hash, embedding_id, task_id, priority, confidence, relevance, ttl_seconds,
			  expires_at, access_count, last_accessed_at, source_sessions_json, metadata_json,
			  created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			m.ID, m.UserID, nullString(m.SessionID), nullString(m.FolderID), string(m.Tier),
			m.ContentType, nullString(m.Name), nullString(m.Description), m.Content,
			m.ContentHash, nullString(m.EmbeddingID), nullString(m.TaskID), nullString(m.Priority),
			nullFloat(m.Confidence), nullFloat(m.Relevance), nullInt(m.TTLSeconds),
			nullableMillis(m.ExpiresAt), m.AccessCount, m.LastAccessedAt.UnixMilli(),
			nullString(m.SourceSessionsJSON), nullString(m.MetadataJSON), now, now,
		)
		if err != nil {
			if isUniqueViolation(err) {
				return apperr.New(apperr.InvariantViolation, "duplicate memory entry for this user/tier/content")
			}
			return apperr.Wrap(apperr.DatabaseError, "create memory entry", err)
		}
		siblingTable, ok := tierSiblingTable(m.Tier)
		if !ok {
			return apperr.New(apperr.InvariantViolation, "unknown memory tier")
		}
		if _, err := tx.Exec(`INSERT INTO `+siblingTable+` (id) VALUES (?)`, m.ID); err != nil {
			return apperr.Wrap(apperr.DatabaseError, "create tier sibling row", err)
		}
		return nil
	})
}

func tierSiblingTable(tier types.Tier) (string, bool) {
	switch tier {
	case types.TierShortTerm:
		return "sdk_short_term_entries", true
	case types.TierWorking:
		return "sdk_working_entries", true
	case types.TierLongTerm:
		return "sdk_long_term_entries", true
	default:
		return "", false
	}
}

func isUniqueViolation(err error) bool {
	// mattn/go-sqlite3 reports constraint violations with this substring;
	// matching on text avoids a build-tag-specific import of the driver's
	// error type.
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func scanMemoryEntry(row interface{ Scan(...interface{}) error }) (*types.MemoryEntry, error) {
	var m types.MemoryEntry
	var sessionID, folderID, contentType, name, description, embeddingID, taskID, priority sql.NullString
	var sourceSessionsJSON, metadataJSON sql.NullString
	var tier string
	var confidence, relevance sql.NullFloat64
	var ttlSeconds sql.NullInt64
	var expiresAt sql.NullInt64
	var lastAccessedAt int64
	var createdAt, updatedAt int64
	err := row.Scan(&m.ID, &m.UserID, &sessionID, &folderID, &tier, &contentType, &name, &description,
		&m.Content, &m.ContentHash, &embeddingID, &taskID, &priority, &confidence, &relevance,
		&ttlSeconds, &expiresAt, &m.AccessCount, &lastAccessedAt, &sourceSessionsJSON, &metadataJSON,
		&createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	m.Tier = types.Tier(tier)
	m.SessionID, m.FolderID = stringOrEmpty(sessionID), stringOrEmpty(folderID)
	m.ContentType, m.Name, m.Description = stringOrEmpty(contentType), stringOrEmpty(name), stringOrEmpty(description)
	m.EmbeddingID, m.TaskID, m.Priority = stringOrEmpty(embeddingID), stringOrEmpty(taskID), stringOrEmpty(priority)
	m.Confidence, m.Relevance = floatPtr(confidence), floatPtr(relevance)
	m.TTLSeconds = intPtr(ttlSeconds)
	m.ExpiresAt = millisToTimePtr(expiresAt)
	m.LastAccessedAt = millisToTime(lastAccessedAt)
	m.SourceSessionsJSON, m.MetadataJSON = stringOrEmpty(sourceSessionsJSON), stringOrEmpty(metadataJSON)
	m.CreatedAt, m.UpdatedAt = millisToTime(createdAt), millisToTime(updatedAt)
	return &m, nil
}

// GetMemoryEntry fetches a memory entry by id.
func (s *Store) GetMemoryEntry(id string) (*types.MemoryEntry, error) {
	var m *types.MemoryEntry
	err := s.withLock(func() error {
		row := s.db.QueryRow(`SELECT `+memoryEntryColumns+` FROM sdk_memory_entries WHERE id = ?`, id)
		v, e := scanMemoryEntry(row)
		if e != nil {
			return wrapDBErr(e, "memory entry not found")
		}
		m = v
		return nil
	})
	return m, err
}

// FindMemoryEntryByHash looks up an existing entry for the dedup check in
// spec.md §4.2's store operation: same user, same tier, same content_hash.
func (s *Store) FindMemoryEntryByHash(userID string, tier types.Tier, contentHash string) (*types.MemoryEntry, error) {
	var m *types.MemoryEntry
	err := s.withLock(func() error {
		row := s.db.QueryRow(
			`SELECT `+memoryEntryColumns+` FROM sdk_memory_entries
			 WHERE user_id = ? AND tier = ? AND content_hash = ?`,
			userID, string(tier), contentHash,
		)
		v, e := scanMemoryEntry(row)
		if e == sql.ErrNoRows {
			return nil
		}
		if e != nil {
			return e
		}
		m = v
		return nil
	})
	if err != nil {
		return nil, wrapDBErr(err, "find memory entry by hash")
	}
	return m, nil
}

// ListMemoryEntriesByTier returns candidate entries for retrieval scoring,
// optionally scoped to a session and/or folder per spec.md §4.2's
// cross_session_default / cross_folder_default configuration knobs.
func (s *Store) ListMemoryEntriesByTier(userID string, tier types.Tier, sessionID, folderID string, includeExpired bool) ([]*types.MemoryEntry, error) {
	query := `SELECT ` + memoryEntryColumns + ` FROM sdk_memory_entries WHERE user_id = ? AND tier = ?`
	args := []interface{}{userID, string(tier)}
	if sessionID != "" {
		query += ` AND session_id = ?`
		args = append(args, sessionID)
	}
	if folderID != "" {
		query += ` AND folder_id = ?`
		args = append(args, folderID)
	}
	if !includeExpired {
		query += ` AND (expires_at IS NULL OR expires_at > ?)`
		args = append(args, nowMillis())
	}
	var out []*types.MemoryEntry
	err := s.withLock(func() error {
		rows, err := s.db.Query(query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			m, err := scanMemoryEntry(rows)
			if err != nil {
				return err
			}
			out = append(out, m)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, wrapDBErr(err, "list memory entries by tier")
	}
	return out, nil
}

// TouchMemoryEntry increments access_count and sets last_accessed_at to
// now, implementing the touch operation in spec.md §4.2.
func (s *Store) TouchMemoryEntry(id string, at time.Time) error {
	return s.withLock(func() error {
		res, err := s.db.Exec(
			`UPDATE sdk_memory_entries SET access_count = access_count + 1, last_accessed_at = ?, updated_at = ? WHERE id = ?`,
			at.UnixMilli(), nowMillis(), id,
		)
		if err != nil {
			return wrapDBErr(err, "touch memory entry")
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return apperr.New(apperr.NotFound, "memory entry not found")
		}
		return nil
	})
}

// ChangeMemoryEntryTier moves an entry to a new tier, replacing its sibling
// row in the same transaction.
func (s *Store) ChangeMemoryEntryTier(id string, newTier types.Tier) error {
	newSibling, ok := tierSiblingTable(newTier)
	if !ok {
		return apperr.New(apperr.InvariantViolation, "unknown target tier")
	}
	return s.Transaction(func(tx *sql.Tx) error {
		var oldTier string
		if err := tx.QueryRow(`SELECT tier FROM sdk_memory_entries WHERE id = ?`, id).Scan(&oldTier); err != nil {
			return wrapDBErr(err, "memory entry not found")
		}
		oldSibling, ok := tierSiblingTable(types.Tier(oldTier))
		if !ok {
			return apperr.New(apperr.InvariantViolation, "unknown current tier")
		}
		if _, err := tx.Exec(`DELETE FROM `+oldSibling+` WHERE id = ?`, id); err != nil {
			return apperr.Wrap(apperr.DatabaseError, "remove old tier sibling", err)
		}
		if _, err := tx.Exec(`INSERT INTO `+newSibling+` (id) VALUES (?)`, id); err != nil {
			return apperr.Wrap(apperr.DatabaseError, "insert new tier sibling", err)
		}
		if _, err := tx.Exec(`UPDATE sdk_memory_entries SET tier = ?, updated_at = ? WHERE id = ?`,
			string(newTier), nowMillis(), id); err != nil {
			return apperr.Wrap(apperr.DatabaseError, "update tier", err)
		}
		return nil
	})
}

// ClearMemoryEntryExpiry sets expires_at to null, used when promoting an
// entry into long_term.
func (s *Store) ClearMemoryEntryExpiry(id string) error {
	return s.withLock(func() error {
		res, err := s.db.Exec(`UPDATE sdk_memory_entries SET expires_at = NULL, ttl_seconds = NULL, updated_at = ? WHERE id = ?`,
			nowMillis(), id)
		if err != nil {
			return wrapDBErr(err, "clear memory entry expiry")
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return apperr.New(apperr.NotFound, "memory entry not found")
		}
		return nil
	})
}

// UpdateMemoryEntryContent rewrites an entry's content and content_hash,
// used by the Merge consolidation strategy.
func (s *Store) UpdateMemoryEntryContent(id, content, contentHash string) error {
	return s.withLock(func() error {
		res, err := s.db.Exec(`UPDATE sdk_memory_entries SET content = ?, content_hash = ?, updated_at = ? WHERE id = ?`,
			content, contentHash, nowMillis(), id)
		if err != nil {
			return wrapDBErr(err, "update memory entry content")
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return apperr.New(apperr.NotFound, "memory entry not found")
		}
		return nil
	})
}

// UpdateMemoryEntryRelevance persists a recomputed relevance score.
func (s *Store) UpdateMemoryEntryRelevance(id string, relevance float64) error {
	return s.withLock(func() error {
		res, err := s.db.Exec(`UPDATE sdk_memory_entries SET relevance = ?, updated_at = ? WHERE id = ?`,
			relevance, nowMillis(), id)
		if err != nil {
			return wrapDBErr(err, "update memory entry relevance")
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return apperr.New(apperr.NotFound, "memory entry not found")
		}
		return nil
	})
}

// DeleteMemoryEntry removes an entry and, via ON DELETE CASCADE, its tier
// sibling row.
func (s *Store) DeleteMemoryEntry(id string) error {
	return s.withLock(func() error {
		res, err := s.db.Exec(`DELETE FROM sdk_memory_entries WHERE id = ?`, id)
		if err != nil {
			return wrapDBErr(err, "delete memory entry")
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return apperr.New(apperr.NotFound, "memory entry not found")
		}
		return nil
	})
}

// ListMemoryEntriesForUser returns every non-expired entry owned by
// userID, optionally restricted to folderID — the candidate set for
// consolidation, which applies cross_session/cross_folder scoping itself
// pairwise rather than at the SQL layer.
func (s *Store) ListMemoryEntriesForUser(userID, folderID string) ([]*types.MemoryEntry, error) {
	query := `SELECT ` + memoryEntryColumns + ` FROM sdk_memory_entries WHERE user_id = ? AND (expires_at IS NULL OR expires_at > ?)`
	args := []interface{}{userID, nowMillis()}
	if folderID != "" {
		query += ` AND folder_id = ?`
		args = append(args, folderID)
	}
	var out []*types.MemoryEntry
	err := s.withLock(func() error {
		rows, err := s.db.Query(query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			m, err := scanMemoryEntry(rows)
			if err != nil {
				return err
			}
			out = append(out, m)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, wrapDBErr(err, "list memory entries for user")
	}
	return out, nil
}

// ListExpiredMemoryEntries returns every entry whose expires_at has passed,
// the candidate set for the TTL sweep in spec.md §4.2.
func (s *Store) ListExpiredMemoryEntries(asOf time.Time) ([]*types.MemoryEntry, error) {
	var out []*types.MemoryEntry
	err := s.withLock(func() error {
		rows, err := s.db.Query(
			`SELECT `+memoryEntryColumns+` FROM sdk_memory_entries WHERE expires_at IS NOT NULL AND expires_at <= ?`,
			asOf.UnixMilli(),
		)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			m, err := scanMemoryEntry(rows)
			if err != nil {
				return err
			}
			out = append(out, m)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, wrapDBErr(err, "list expired memory entries")
	}
	return out, nil
}

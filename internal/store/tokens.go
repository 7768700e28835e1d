package store

import (
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/rdvcore/core/internal/apperr"
	"github.com/rdvcore/core/internal/types"
	"github.com/rdvcore/core/internal/utils"
)

const cliTokenColumns = `id, user_id, name, key_prefix, key_hash, last_used_at, expires_at, created_at`

// CreateCLIToken stores a token record. The caller is responsible for
// hashing the raw key before calling this — the raw value is never
// persisted or returned once generated.
func (s *Store) CreateCLIToken(t *types.CLIToken) error {
	if !utils.IsValidResourceName(t.Name) {
		return apperr.New(apperr.InvariantViolation, "cli token name must be 1-64 characters")
	}
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	now := nowMillis()
	return s.withLock(func() error {
		_, err := s.db.Exec(
			`INSERT INTO api_key (id, user_id, name, key_prefix, key_hash, last_used_at, expires_at, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			t.ID, t.UserID, t.Name, t.KeyPrefix, t.KeyHash, nullableMillis(t.LastUsedAt),
			nullableMillis(t.ExpiresAt), now,
		)
		return wrapDBErr(err, "create cli token")
	})
}

func scanCLIToken(row interface{ Scan(...interface{}) error }) (*types.CLIToken, error) {
	var t types.CLIToken
	var lastUsedAt, expiresAt sql.NullInt64
	var createdAt int64
	err := row.Scan(&t.ID, &t.UserID, &t.Name, &t.KeyPrefix, &t.KeyHash, &lastUsedAt, &expiresAt, &createdAt)
	if err != nil {
		return nil, err
	}
	t.LastUsedAt = millisToTimePtr(lastUsedAt)
	t.ExpiresAt = millisToTimePtr(expiresAt)
	t.CreatedAt = millisToTime(createdAt)
	return &t, nil
}

// FindCLITokenByPrefix looks up a token record by its public prefix, the
// first step of CLI token authentication (the caller then compares the
// presented key's hash against KeyHash).
func (s *Store) FindCLITokenByPrefix(prefix string) (*types.CLIToken, error) {
	var t *types.CLIToken
	err := s.withLock(func() error {
		row := s.db.QueryRow(`SELECT `+cliTokenColumns+` FROM api_key WHERE key_prefix = ?`, prefix)
		v, e := scanCLIToken(row)
		if e != nil {
			return wrapDBErr(e, "cli token not found")
		}
		t = v
		return nil
	})
	return t, err
}

// TouchCLIToken sets last_used_at to now, used after successful auth.
func (s *Store) TouchCLIToken(id string, at time.Time) error {
	return s.withLock(func() error {
		res, err := s.db.Exec(`UPDATE api_key SET last_used_at = ? WHERE id = ?`, at.UnixMilli(), id)
		if err != nil {
			return wrapDBErr(err, "touch cli token")
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return apperr.New(apperr.NotFound, "cli token not found")
		}
		return nil
	})
}

// RevokeCLIToken deletes a token record, immediately invalidating it.
func (s *Store) RevokeCLIToken(id string) error {
	return s.withLock(func() error {
		res, err := s.db.Exec(`DELETE FROM api_key WHERE id = ?`, id)
		if err != nil {
			return wrapDBErr(err, "revoke cli token")
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return apperr.New(apperr.NotFound, "cli token not found")
		}
		return nil
	})
}

// ListCLITokens returns every token record for a user, newest first.
func (s *Store) ListCLITokens(userID string) ([]*types.CLIToken, error) {
	var out []*types.CLIToken
	err := s.withLock(func() error {
		rows, err := s.db.Query(`SELECT `+cliTokenColumns+` FROM api_key WHERE user_id = ? ORDER BY created_at DESC`, userID)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			t, err := scanCLIToken(rows)
			if err != nil {
				return err
			}
			out = append(out, t)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, wrapDBErr(err, "list cli tokens")
	}
	return out, nil
}

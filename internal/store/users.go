package store

import (
	"database/sql"

	"github.com/rdvcore/core/internal/types"
)

// UpsertUser creates or updates a user record.
func (s *Store) UpsertUser(u *types.User) error {
	return s.withLock(func() error {
		_, err := s.db.Exec(
			`INSERT INTO user (id, name, email) VALUES (?, ?, ?)
			 ON CONFLICT(id) DO UPDATE SET name = excluded.name, email = excluded.email`,
			u.ID, nullString(u.Name), nullString(u.Email),
		)
		return wrapDBErr(err, "upsert user")
	})
}

// GetUser fetches a user by id.
func (s *Store) GetUser(id string) (*types.User, error) {
	var u types.User
	var name, email sql.NullString
	err := s.withLock(func() error {
		row := s.db.QueryRow(`SELECT id, name, email FROM user WHERE id = ?`, id)
		return wrapDBErr(row.Scan(&u.ID, &name, &email), "user not found")
	})
	if err != nil {
		return nil, err
	}
	u.Name, u.Email = stringOrEmpty(name), stringOrEmpty(email)
	return &u, nil
}

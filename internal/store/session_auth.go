package store

import (
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/pavelanni/coursehub/internal/model"
)

// CreateAuthSession records a new login for a user. The session id is carried
// as the token id of the issued bearer token.
func (s *Store) CreateAuthSession(userID int64, ttl time.Duration) (model.AuthSession, error) {
	now := time.Now()
	sess := model.AuthSession{
		ID:        uuid.NewString(),
		UserID:    userID,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
	_, err := s.db.Exec(
		`INSERT INTO auth_sessions (id, user_id, created_at, expires_at) VALUES (?, ?, ?, ?)`,
		sess.ID, sess.UserID, sess.CreatedAt, sess.ExpiresAt,
	)
	if err != nil {
		return model.AuthSession{}, err
	}
	return sess, nil
}

// GetAuthSession returns the auth session for the given id, or nil if not found/expired.
func (s *Store) GetAuthSession(id string) (*model.AuthSession, error) {
	var sess model.AuthSession
	err := s.db.QueryRow(
		`SELECT id, user_id, created_at, expires_at FROM auth_sessions WHERE id = ?`, id,
	).Scan(&sess.ID, &sess.UserID, &sess.CreatedAt, &sess.ExpiresAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if time.Now().After(sess.ExpiresAt) {
		_ = s.DeleteAuthSession(id)
		return nil, nil
	}
	return &sess, nil
}

// DeleteAuthSession revokes a session.
func (s *Store) DeleteAuthSession(id string) error {
	_, err := s.db.Exec(`DELETE FROM auth_sessions WHERE id = ?`, id)
	return err
}

// CleanupExpiredSessions removes all expired auth sessions.
func (s *Store) CleanupExpiredSessions() (int64, error) {
	res, err := s.db.Exec(`DELETE FROM auth_sessions WHERE expires_at < ?`, time.Now())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

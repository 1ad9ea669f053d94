package store

import (
	"time"

	"github.com/pavelanni/coursehub/internal/model"
)

// AddNotification writes an inbox entry for a user.
func (s *Store) AddNotification(userID int64, kind, message string) error {
	_, err := s.db.Exec(
		`INSERT INTO notifications (user_id, kind, message, created_at) VALUES (?, ?, ?, ?)`,
		userID, kind, message, time.Now(),
	)
	return err
}

// ListNotifications returns a user's notifications, newest first.
func (s *Store) ListNotifications(userID int64, unreadOnly bool) ([]model.Notification, error) {
	query := `SELECT id, user_id, kind, message, created_at, read_at FROM notifications WHERE user_id = ?`
	if unreadOnly {
		query += ` AND read_at IS NULL`
	}
	query += ` ORDER BY id DESC`
	rows, err := s.db.Query(query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Notification
	for rows.Next() {
		var n model.Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.Kind, &n.Message, &n.CreatedAt, &n.ReadAt); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// MarkNotificationRead marks one of the user's notifications as read.
func (s *Store) MarkNotificationRead(id, userID int64) error {
	res, err := s.db.Exec(
		`UPDATE notifications SET read_at = COALESCE(read_at, ?) WHERE id = ? AND user_id = ?`,
		time.Now(), id, userID,
	)
	if err != nil {
		return err
	}
	return expectRow(res, "notification")
}

package store

import (
	"database/sql"
	"fmt"

	"github.com/dkellner/starnotify/internal/model"
)

// NotificationStore is an append-only log of dispatched star notifications.
type NotificationStore struct {
	db *sql.DB
}

func NewNotificationStore(db *sql.DB) *NotificationStore {
	return &NotificationStore{db: db}
}

// Append records a dispatched notification and its delivery counts.
func (s *NotificationStore) Append(rec model.NotificationRecord) error {
	_, err := s.db.Exec(
		`INSERT INTO notifications (repo_full_name, sender_login, sender_avatar_url, starred_at, payload, attempted, succeeded)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.RepoFullName, rec.SenderLogin, rec.SenderAvatar, rec.StarredAt, rec.Payload, rec.Attempted, rec.Succeeded,
	)
	if err != nil {
		return fmt.Errorf("append notification: %w", err)
	}
	return nil
}

// Recent returns the most recent notification records, newest first.
func (s *NotificationStore) Recent(limit int) ([]model.NotificationRecord, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.Query(
		`SELECT id, repo_full_name, sender_login, sender_avatar_url, starred_at, payload, attempted, succeeded, sent_at
		 FROM notifications ORDER BY sent_at DESC, id DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	var recs []model.NotificationRecord
	for rows.Next() {
		var rec model.NotificationRecord
		if err := rows.Scan(&rec.ID, &rec.RepoFullName, &rec.SenderLogin, &rec.SenderAvatar, &rec.StarredAt, &rec.Payload, &rec.Attempted, &rec.Succeeded, &rec.SentAt); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// Cleanup deletes notification records older than the retention period.
func (s *NotificationStore) Cleanup(retentionDays int) (int64, error) {
	result, err := s.db.Exec(
		`DELETE FROM notifications WHERE sent_at < datetime('now', ?)`,
		fmt.Sprintf("-%d days", retentionDays),
	)
	if err != nil {
		return 0, fmt.Errorf("cleanup notifications: %w", err)
	}
	count, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return count, nil
}

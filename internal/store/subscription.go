package store

import (
	"database/sql"
	"fmt"

	"github.com/dkellner/starnotify/internal/model"
)

// SubscriptionStore owns the push subscription records. The dispatcher and
// handlers never touch the table directly; all mutation goes through here.
type SubscriptionStore struct {
	db *sql.DB
}

func NewSubscriptionStore(db *sql.DB) *SubscriptionStore {
	return &SubscriptionStore{db: db}
}

// Upsert inserts a subscription or, if the endpoint already exists, replaces
// its key material and refreshes last_seen. Idempotent by endpoint.
func (s *SubscriptionStore) Upsert(endpoint, p256dh, auth, userAgent string) (*model.Subscription, error) {
	_, err := s.db.Exec(
		`INSERT INTO subscriptions (endpoint, p256dh_key, auth_key, user_agent)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(endpoint) DO UPDATE SET
		   p256dh_key = excluded.p256dh_key,
		   auth_key = excluded.auth_key,
		   user_agent = excluded.user_agent,
		   last_seen = CURRENT_TIMESTAMP`,
		endpoint, p256dh, auth, userAgent,
	)
	if err != nil {
		return nil, fmt.Errorf("upsert subscription: %w", err)
	}
	return s.GetByEndpoint(endpoint)
}

// Remove deletes the subscription for the endpoint. Removing an endpoint
// that is not stored is a no-op, not an error.
func (s *SubscriptionStore) Remove(endpoint string) error {
	_, err := s.db.Exec(`DELETE FROM subscriptions WHERE endpoint = ?`, endpoint)
	if err != nil {
		return fmt.Errorf("remove subscription: %w", err)
	}
	return nil
}

// GetByEndpoint returns the subscription for the endpoint, or nil when absent.
func (s *SubscriptionStore) GetByEndpoint(endpoint string) (*model.Subscription, error) {
	var sub model.Subscription
	err := s.db.QueryRow(
		`SELECT id, endpoint, p256dh_key, auth_key, user_agent, created_at, last_seen
		 FROM subscriptions WHERE endpoint = ?`, endpoint,
	).Scan(&sub.ID, &sub.Endpoint, &sub.P256dhKey, &sub.AuthKey, &sub.UserAgent, &sub.CreatedAt, &sub.LastSeen)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get subscription by endpoint: %w", err)
	}
	return &sub, nil
}

// ListActive returns a snapshot of all stored subscriptions.
func (s *SubscriptionStore) ListActive() ([]model.Subscription, error) {
	rows, err := s.db.Query(
		`SELECT id, endpoint, p256dh_key, auth_key, user_agent, created_at, last_seen
		 FROM subscriptions ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}
	defer rows.Close()

	var subs []model.Subscription
	for rows.Next() {
		var sub model.Subscription
		if err := rows.Scan(&sub.ID, &sub.Endpoint, &sub.P256dhKey, &sub.AuthKey, &sub.UserAgent, &sub.CreatedAt, &sub.LastSeen); err != nil {
			return nil, fmt.Errorf("scan subscription: %w", err)
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

// Count returns the number of stored subscriptions.
func (s *SubscriptionStore) Count() (int, error) {
	var count int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM subscriptions`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count subscriptions: %w", err)
	}
	return count, nil
}

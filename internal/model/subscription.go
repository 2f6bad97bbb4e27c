package model

import "time"

// Subscription is a browser push registration: an opaque push-service
// endpoint plus the client key material needed to encrypt payloads for it.
type Subscription struct {
	ID        int64     `json:"id"`
	Endpoint  string    `json:"endpoint"`
	P256dhKey string    `json:"p256dh"`
	AuthKey   string    `json:"auth"`
	UserAgent string    `json:"user_agent,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	LastSeen  time.Time `json:"last_seen"`
}

// NotificationRecord is the durable log entry written after a star event
// has been dispatched to subscribers.
type NotificationRecord struct {
	ID           int64     `json:"id"`
	RepoFullName string    `json:"repo_full_name"`
	SenderLogin  string    `json:"sender_login"`
	SenderAvatar string    `json:"sender_avatar_url,omitempty"`
	StarredAt    string    `json:"starred_at,omitempty"`
	Payload      string    `json:"payload,omitempty"`
	Attempted    int       `json:"attempted"`
	Succeeded    int       `json:"succeeded"`
	SentAt       time.Time `json:"sent_at"`
}

package push

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/dkellner/starnotify/internal/model"

	webpush "github.com/SherClockHolmes/webpush-go"
)

// ErrExpired is returned when the push service reports the endpoint gone
// (HTTP 404 or 410). The subscription should be removed from the store.
var ErrExpired = errors.New("push subscription expired")

const defaultTimeout = 10 * time.Second

// Payload is the JSON plaintext encrypted and sent to the push service.
type Payload struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	Icon  string `json:"icon,omitempty"`
	Badge string `json:"badge,omitempty"`
	Image string `json:"image,omitempty"`
	URL   string `json:"url,omitempty"`
	Tag   string `json:"tag,omitempty"`
}

// Config holds VAPID configuration for the push service.
type Config struct {
	VAPIDPublicKey  string
	VAPIDPrivateKey string
	// Subject is the contact URI (mailto: or https:) placed in the VAPID
	// claims so push services can reach the operator.
	Subject string
	// Timeout bounds each outbound delivery so one unreachable push
	// service cannot stall a dispatch cycle.
	Timeout time.Duration
}

// Service sends Web Push messages signed with the server's VAPID key pair.
type Service struct {
	publicKey  string
	privateKey string
	subject    string
	client     *http.Client
}

// NewService creates a push service from VAPID configuration.
func NewService(cfg Config) *Service {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Service{
		publicKey:  cfg.VAPIDPublicKey,
		privateKey: cfg.VAPIDPrivateKey,
		subject:    cfg.Subject,
		client:     &http.Client{Timeout: timeout},
	}
}

// VAPIDPublicKey returns the public key clients use when subscribing.
func (s *Service) VAPIDPublicKey() string {
	return s.publicKey
}

// Send encrypts the payload for one subscription and posts it to the
// subscription's endpoint. Returns ErrExpired when the push service says the
// endpoint is gone; any other non-2xx status is an ordinary error.
func (s *Service) Send(ctx context.Context, sub *model.Subscription, payload Payload) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	resp, err := webpush.SendNotificationWithContext(ctx, data, &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256dhKey,
			Auth:   sub.AuthKey,
		},
	}, &webpush.Options{
		HTTPClient:      s.client,
		VAPIDPublicKey:  s.publicKey,
		VAPIDPrivateKey: s.privateKey,
		Subscriber:      s.subject,
		TTL:             86400,
	})
	if err != nil {
		return fmt.Errorf("send push: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return ErrExpired
	case resp.StatusCode >= 400:
		return fmt.Errorf("push service returned %d", resp.StatusCode)
	}

	return nil
}

// GenerateVAPIDKeys generates a new ECDSA P-256 key pair for VAPID,
// base64url-encoded the way push services and browsers expect.
func GenerateVAPIDKeys() (publicKey, privateKey string, err error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return "", "", fmt.Errorf("generate ECDSA key: %w", err)
	}

	pubBytes := elliptic.Marshal(elliptic.P256(), key.PublicKey.X, key.PublicKey.Y)
	publicKey = base64.RawURLEncoding.EncodeToString(pubBytes)
	privateKey = base64.RawURLEncoding.EncodeToString(key.D.Bytes())

	return publicKey, privateKey, nil
}

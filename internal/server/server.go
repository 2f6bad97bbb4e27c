package server

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dkellner/starnotify/internal/handler"
	"github.com/dkellner/starnotify/internal/metrics"
	"github.com/dkellner/starnotify/internal/middleware"
	"github.com/dkellner/starnotify/internal/push"
	"github.com/dkellner/starnotify/internal/store"
	"github.com/dkellner/starnotify/internal/webhook"
	ws "github.com/dkellner/starnotify/internal/websocket"
)

// Config holds the settings the HTTP server wires into its handlers.
type Config struct {
	VAPIDPublicKey  string
	VAPIDPrivateKey string
	VAPIDSubject    string
	WebhookSecret   string
	Whitelist       webhook.Whitelist
	PushTimeout     time.Duration
}

type Server struct {
	db            *sql.DB
	hub           *ws.Hub
	subStore      *store.SubscriptionStore
	notifStore    *store.NotificationStore
	subscriptionH *handler.SubscriptionHandler
	webhookH      *handler.WebhookHandler
	rateLimiter   *middleware.RateLimiter
	logger        *slog.Logger
}

func New(db *sql.DB, cfg Config, logger *slog.Logger) *Server {
	hub := ws.NewHub(logger.With("component", "websocket"))

	subStore := store.NewSubscriptionStore(db)
	notifStore := store.NewNotificationStore(db)

	pushSvc := push.NewService(push.Config{
		VAPIDPublicKey:  cfg.VAPIDPublicKey,
		VAPIDPrivateKey: cfg.VAPIDPrivateKey,
		Subject:         cfg.VAPIDSubject,
		Timeout:         cfg.PushTimeout,
	})
	dispatcher := push.NewDispatcher(pushSvc, subStore, logger.With("component", "dispatch"))

	if count, err := subStore.Count(); err == nil {
		metrics.Subscriptions.Set(float64(count))
	}

	return &Server{
		db:            db,
		hub:           hub,
		subStore:      subStore,
		notifStore:    notifStore,
		subscriptionH: handler.NewSubscriptionHandler(subStore, notifStore, pushSvc, dispatcher, hub, logger.With("component", "subscription")),
		webhookH:      handler.NewWebhookHandler(cfg.WebhookSecret, cfg.Whitelist, dispatcher, subStore, notifStore, hub, logger.With("component", "webhook")),
		rateLimiter:   middleware.NewRateLimiter(),
		logger:        logger,
	}
}

// NotificationStore returns the notification log for cleanup tasks.
func (s *Server) NotificationStore() *store.NotificationStore {
	return s.notifStore
}

// RateLimiter returns the rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.healthHandler)
	mux.HandleFunc("GET /api/info", s.infoHandler)

	mux.HandleFunc("GET /api/vapid-public-key", s.subscriptionH.GetVAPIDKey)
	mux.HandleFunc("POST /api/subscribe", s.rateLimited(s.subscriptionH.Subscribe))
	mux.HandleFunc("POST /api/unsubscribe", s.rateLimited(s.subscriptionH.Unsubscribe))
	mux.HandleFunc("GET /api/subscriptions", s.subscriptionH.ListSubscriptions)
	mux.HandleFunc("GET /api/notifications", s.subscriptionH.NotificationHistory)
	mux.HandleFunc("POST /api/test-notification", s.rateLimited(s.subscriptionH.TestNotification))

	// GitHub authenticates with the HMAC signature; no rate limit here.
	mux.HandleFunc("POST /api/webhook", s.webhookH.Handle)

	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /ws", ws.Handler(s.hub))

	return middleware.RequestLogger(s.logger.With("component", "http"))(mux)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	count, err := s.subStore.Count()
	if err != nil {
		http.Error(w, `{"status":"degraded"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"status":        "healthy",
		"subscriptions": count,
	})
}

func (s *Server) infoHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"name":    "starnotify",
		"version": "1.0.0",
		"endpoints": map[string]string{
			"vapid_public_key":  "/api/vapid-public-key",
			"subscribe":         "/api/subscribe",
			"unsubscribe":       "/api/unsubscribe",
			"subscriptions":     "/api/subscriptions",
			"notifications":     "/api/notifications",
			"test_notification": "/api/test-notification",
			"webhook":           "/api/webhook",
			"health":            "/health",
			"metrics":           "/metrics",
			"feed":              "/ws",
		},
	})
}

func (s *Server) rateLimited(h http.HandlerFunc) http.HandlerFunc {
	keyFunc := func(r *http.Request) string {
		return middleware.RealIP(r)
	}
	rl := middleware.RateLimit(s.rateLimiter, keyFunc, 30, time.Minute)
	return func(w http.ResponseWriter, r *http.Request) {
		rl(h).ServeHTTP(w, r)
	}
}

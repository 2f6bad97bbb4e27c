package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dkellner/starnotify/internal/metrics"
	"github.com/dkellner/starnotify/internal/model"
	"github.com/dkellner/starnotify/internal/push"
	"github.com/dkellner/starnotify/internal/store"
	"github.com/dkellner/starnotify/internal/websocket"
)

// SubscriptionHandler serves the client-facing push API: key discovery,
// subscribe/unsubscribe, listing, and operator test notifications.
type SubscriptionHandler struct {
	subs          *store.SubscriptionStore
	notifications *store.NotificationStore
	service       *push.Service
	dispatcher    *push.Dispatcher
	hub           *websocket.Hub
	logger        *slog.Logger
}

func NewSubscriptionHandler(subs *store.SubscriptionStore, notifications *store.NotificationStore, service *push.Service, dispatcher *push.Dispatcher, hub *websocket.Hub, logger *slog.Logger) *SubscriptionHandler {
	return &SubscriptionHandler{
		subs:          subs,
		notifications: notifications,
		service:       service,
		dispatcher:    dispatcher,
		hub:           hub,
		logger:        logger,
	}
}

type subscriptionKeys struct {
	P256dh string `json:"p256dh"`
	Auth   string `json:"auth"`
}

type subscriptionBody struct {
	Endpoint string           `json:"endpoint"`
	Keys     subscriptionKeys `json:"keys"`
}

type subscribeRequest struct {
	Subscription subscriptionBody `json:"subscription"`
}

// GetVAPIDKey handles GET /api/vapid-public-key.
func (h *SubscriptionHandler) GetVAPIDKey(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"publicKey": h.service.VAPIDPublicKey()})
}

// Subscribe handles POST /api/subscribe. Re-subscribing with a known
// endpoint replaces the stored keys.
func (h *SubscriptionHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	var req subscribeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	sub := req.Subscription
	if sub.Endpoint == "" || sub.Keys.P256dh == "" || sub.Keys.Auth == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "endpoint, p256dh, and auth are required"})
		return
	}
	if !strings.HasPrefix(sub.Endpoint, "https://") {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "endpoint must use HTTPS"})
		return
	}

	if _, err := h.subs.Upsert(sub.Endpoint, sub.Keys.P256dh, sub.Keys.Auth, r.UserAgent()); err != nil {
		h.logger.Error("upsert subscription", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to save subscription"})
		return
	}
	h.updateSubscriptionGauge()

	h.logger.Info("subscribed", "endpoint", sub.Endpoint)
	writeJSON(w, http.StatusOK, map[string]string{
		"status":   "success",
		"message":  "Successfully subscribed",
		"endpoint": sub.Endpoint,
	})
}

// Unsubscribe handles POST /api/unsubscribe. Removing an unknown endpoint
// still returns 200; the end state is the same.
func (h *SubscriptionHandler) Unsubscribe(w http.ResponseWriter, r *http.Request) {
	var req subscribeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}
	if req.Subscription.Endpoint == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "endpoint is required"})
		return
	}

	if err := h.subs.Remove(req.Subscription.Endpoint); err != nil {
		h.logger.Error("remove subscription", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to remove subscription"})
		return
	}
	h.updateSubscriptionGauge()

	h.logger.Info("unsubscribed", "endpoint", req.Subscription.Endpoint)
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "success",
		"message": "Successfully unsubscribed",
	})
}

type subscriptionSummary struct {
	Endpoint  string    `json:"endpoint"`
	CreatedAt time.Time `json:"created_at"`
	LastSeen  time.Time `json:"last_seen"`
}

// ListSubscriptions handles GET /api/subscriptions. Key material stays
// server-side; only endpoints and timestamps are returned.
func (h *SubscriptionHandler) ListSubscriptions(w http.ResponseWriter, r *http.Request) {
	subs, err := h.subs.ListActive()
	if err != nil {
		h.logger.Error("list subscriptions", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to list subscriptions"})
		return
	}

	summaries := make([]subscriptionSummary, 0, len(subs))
	for _, sub := range subs {
		summaries = append(summaries, subscriptionSummary{
			Endpoint:  sub.Endpoint,
			CreatedAt: sub.CreatedAt,
			LastSeen:  sub.LastSeen,
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"count":         len(summaries),
		"subscriptions": summaries,
	})
}

type testNotificationRequest struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// TestNotification handles POST /api/test-notification: dispatches an
// operator-supplied payload to every active subscription.
func (h *SubscriptionHandler) TestNotification(w http.ResponseWriter, r *http.Request) {
	var req testNotificationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}
	if req.Title == "" || req.Body == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "title and body are required"})
		return
	}

	payload := push.Payload{
		Title: req.Title,
		Body:  req.Body,
		Icon:  "https://github.githubassets.com/favicons/favicon.png",
		Tag:   "test",
	}

	report, err := h.dispatcher.Deliver(r.Context(), payload)
	if err != nil {
		h.logger.Error("test dispatch", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to dispatch"})
		return
	}
	if report.Removed > 0 {
		h.updateSubscriptionGauge()
	}

	if h.hub != nil {
		h.hub.Broadcast(websocket.Event{
			Type:      "test",
			Title:     req.Title,
			Attempted: report.Attempted,
			Succeeded: report.Succeeded,
			SentAt:    time.Now().UTC(),
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "success",
		"message": "Test notification dispatched",
		"report":  report,
	})
}

// NotificationHistory handles GET /api/notifications.
func (h *SubscriptionHandler) NotificationHistory(w http.ResponseWriter, r *http.Request) {
	recs, err := h.notifications.Recent(20)
	if err != nil {
		h.logger.Error("list notifications", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to list notifications"})
		return
	}
	if recs == nil {
		recs = []model.NotificationRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"count":         len(recs),
		"notifications": recs,
	})
}

func (h *SubscriptionHandler) updateSubscriptionGauge() {
	if count, err := h.subs.Count(); err == nil {
		metrics.Subscriptions.Set(float64(count))
	}
}

package handler

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/dkellner/starnotify/internal/metrics"
	"github.com/dkellner/starnotify/internal/model"
	"github.com/dkellner/starnotify/internal/push"
	"github.com/dkellner/starnotify/internal/store"
	"github.com/dkellner/starnotify/internal/webhook"
	"github.com/dkellner/starnotify/internal/websocket"
)

// GitHub star payloads are a few KB; anything near this limit is not one.
const maxWebhookBody = 1 << 20

// WebhookHandler orchestrates inbound GitHub star events: signature check,
// parse, action and whitelist filtering, then dispatch.
type WebhookHandler struct {
	secret        string
	whitelist     webhook.Whitelist
	dispatcher    *push.Dispatcher
	subs          *store.SubscriptionStore
	notifications *store.NotificationStore
	hub           *websocket.Hub
	logger        *slog.Logger
}

func NewWebhookHandler(secret string, whitelist webhook.Whitelist, dispatcher *push.Dispatcher, subs *store.SubscriptionStore, notifications *store.NotificationStore, hub *websocket.Hub, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{
		secret:        secret,
		whitelist:     whitelist,
		dispatcher:    dispatcher,
		subs:          subs,
		notifications: notifications,
		hub:           hub,
		logger:        logger,
	}
}

// Handle processes POST /api/webhook.
//
// Policy rejections (wrong action, repo not whitelisted) return 200: GitHub
// disables webhooks that keep failing, and those requests are authentic —
// they just carry events this service does not relay. Only authentication
// and validation failures get error statuses.
func (h *WebhookHandler) Handle(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "read body"})
		return
	}

	if !webhook.VerifySignature(body, r.Header.Get("X-Hub-Signature-256"), h.secret) {
		metrics.WebhookEvents.WithLabelValues("rejected_signature").Inc()
		h.logger.Warn("webhook signature rejected", "remote", r.RemoteAddr)
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "invalid signature"})
		return
	}

	event, err := webhook.ParseStarEvent(body)
	if err != nil {
		metrics.WebhookEvents.WithLabelValues("rejected_payload").Inc()
		h.logger.Warn("webhook payload rejected", "error", err)
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
		return
	}

	if event.Action != webhook.ActionStarted {
		metrics.WebhookEvents.WithLabelValues("ignored_action").Inc()
		writeJSON(w, http.StatusOK, map[string]string{
			"status":  "ignored",
			"message": "ignoring action: " + event.Action,
		})
		return
	}

	repo := event.Repository.FullName
	if !h.whitelist.Allowed(repo) {
		metrics.WebhookEvents.WithLabelValues("ignored_repo").Inc()
		h.logger.Info("repository not whitelisted", "repo", repo)
		writeJSON(w, http.StatusOK, map[string]string{
			"status":  "ignored",
			"message": "repository not whitelisted",
		})
		return
	}

	payload := event.NotificationPayload()

	report, err := h.dispatcher.Deliver(r.Context(), payload)
	if err != nil {
		h.logger.Error("dispatch", "repo", repo, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "dispatch failed"})
		return
	}
	metrics.WebhookEvents.WithLabelValues("dispatched").Inc()
	if report.Removed > 0 {
		if count, err := h.subs.Count(); err == nil {
			metrics.Subscriptions.Set(float64(count))
		}
	}

	h.logger.Info("star event dispatched",
		"repo", repo,
		"sender", event.Sender.Login,
		"attempted", report.Attempted,
		"succeeded", report.Succeeded,
		"failed", report.Failed,
		"removed", report.Removed,
	)

	h.record(event, payload, report)

	if h.hub != nil {
		h.hub.Broadcast(websocket.Event{
			Type:      "star",
			Repo:      repo,
			Sender:    event.Sender.Login,
			Title:     payload.Title,
			Attempted: report.Attempted,
			Succeeded: report.Succeeded,
			SentAt:    time.Now().UTC(),
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "success",
		"subscribers": report.Attempted,
		"success":     report.Succeeded,
		"failed":      report.Failed,
		"removed":     report.Removed,
	})
}

// record appends the dispatched event to the notification log. Failure to
// log never fails the webhook; the notification already went out.
func (h *WebhookHandler) record(event *webhook.StarEvent, payload push.Payload, report push.DeliveryReport) {
	raw, err := json.Marshal(payload)
	if err != nil {
		raw = nil
	}
	rec := model.NotificationRecord{
		RepoFullName: event.Repository.FullName,
		SenderLogin:  event.Sender.Login,
		SenderAvatar: event.Sender.AvatarURL,
		StarredAt:    event.StarredAt,
		Payload:      string(raw),
		Attempted:    report.Attempted,
		Succeeded:    report.Succeeded,
	}
	if err := h.notifications.Append(rec); err != nil {
		h.logger.Error("append notification record", "error", err)
	}
}

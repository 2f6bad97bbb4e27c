package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/dkellner/starnotify/internal/database"
	"github.com/dkellner/starnotify/internal/push"
	"github.com/dkellner/starnotify/internal/webhook"
	ws "github.com/dkellner/starnotify/internal/websocket"
)

func testServer(t *testing.T) *Server {
	t.Helper()

	db, err := database.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	pub, priv, err := push.GenerateVAPIDKeys()
	if err != nil {
		t.Fatalf("generate VAPID keys: %v", err)
	}

	return New(db, Config{
		VAPIDPublicKey:  pub,
		VAPIDPrivateKey: priv,
		VAPIDSubject:    "mailto:test@example.com",
		WebhookSecret:   "secret",
		Whitelist:       webhook.Whitelist{"octocat/hello-world": {}},
	}, slog.New(slog.DiscardHandler))
}

func TestHealthEndpoint(t *testing.T) {
	router := testServer(t).Router()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp struct {
		Status        string `json:"status"`
		Subscriptions int    `json:"subscriptions"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Status != "healthy" || resp.Subscriptions != 0 {
		t.Errorf("unexpected response: %+v", resp)
	}
}

func TestVAPIDKeyEndpoint(t *testing.T) {
	router := testServer(t).Router()

	req := httptest.NewRequest(http.MethodGet, "/api/vapid-public-key", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp["publicKey"] == "" {
		t.Error("publicKey missing")
	}
}

func TestInfoEndpoint(t *testing.T) {
	router := testServer(t).Router()

	req := httptest.NewRequest(http.MethodGet, "/api/info", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp struct {
		Name      string            `json:"name"`
		Endpoints map[string]string `json:"endpoints"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Name != "starnotify" {
		t.Errorf("name = %q", resp.Name)
	}
	if resp.Endpoints["webhook"] != "/api/webhook" {
		t.Errorf("endpoints = %v", resp.Endpoints)
	}
}

func TestWebhookRouteRejectsUnsigned(t *testing.T) {
	router := testServer(t).Router()

	body := `{"action":"started","repository":{"full_name":"octocat/hello-world"},"sender":{"login":"x"}}`
	req := httptest.NewRequest(http.MethodPost, "/api/webhook", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403 for unsigned webhook", rec.Code)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	router := testServer(t).Router()

	req := httptest.NewRequest(http.MethodGet, "/api/webhook", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405 for GET on webhook route", rec.Code)
	}
}

func TestFeedUpgradeAndBroadcast(t *testing.T) {
	srv := testServer(t)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// The upgrade must succeed through the full middleware chain, not just
	// against the bare handler.
	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(ts.URL, "http")+"/ws", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.CloseNow()

	// Registration happens on the server goroutine after the upgrade.
	deadline := time.Now().Add(2 * time.Second)
	for srv.hub.ClientCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("client never registered with the hub")
		}
		time.Sleep(10 * time.Millisecond)
	}

	srv.hub.Broadcast(ws.Event{
		Type:  "star",
		Repo:  "octocat/hello-world",
		Title: "⭐ New Star on octocat/hello-world",
	})

	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var ev ws.Event
	if err := json.Unmarshal(data, &ev); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if ev.Type != "star" || ev.Repo != "octocat/hello-world" {
		t.Errorf("unexpected event: %+v", ev)
	}

	conn.Close(websocket.StatusNormalClosure, "")
}

func TestMetricsEndpoint(t *testing.T) {
	router := testServer(t).Router()

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "starnotify_subscriptions") {
		t.Error("metrics output missing subscription gauge")
	}
}

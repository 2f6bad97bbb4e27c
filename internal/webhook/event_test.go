package webhook

import (
	"strings"
	"testing"
)

const sampleStarPayload = `{
	"action": "started",
	"starred_at": "2025-11-02T12:00:00Z",
	"repository": {
		"name": "hello-world",
		"full_name": "octocat/hello-world",
		"description": "My first repository",
		"html_url": "https://github.com/octocat/hello-world",
		"stargazers_count": 42,
		"owner": {"login": "octocat", "avatar_url": "https://avatars.githubusercontent.com/u/1"}
	},
	"sender": {"login": "stargazer", "avatar_url": "https://avatars.githubusercontent.com/u/2"}
}`

func TestParseStarEvent(t *testing.T) {
	event, err := ParseStarEvent([]byte(sampleStarPayload))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if event.Action != ActionStarted {
		t.Errorf("action = %q, want %q", event.Action, ActionStarted)
	}
	if event.Repository.FullName != "octocat/hello-world" {
		t.Errorf("full_name = %q", event.Repository.FullName)
	}
	if event.Repository.StargazersCount != 42 {
		t.Errorf("stargazers_count = %d, want 42", event.Repository.StargazersCount)
	}
	if event.Sender.Login != "stargazer" {
		t.Errorf("sender = %q", event.Sender.Login)
	}
}

func TestParseStarEventMalformed(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"not json", "not json at all"},
		{"missing action", `{"repository":{"full_name":"a/b"},"sender":{"login":"x"}}`},
		{"missing repository", `{"action":"started","sender":{"login":"x"}}`},
		{"missing sender", `{"action":"started","repository":{"full_name":"a/b"}}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := ParseStarEvent([]byte(tc.body)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestNotificationPayload(t *testing.T) {
	event, err := ParseStarEvent([]byte(sampleStarPayload))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	p := event.NotificationPayload()

	if p.Title != "⭐ New Star on octocat/hello-world" {
		t.Errorf("title = %q", p.Title)
	}
	if !strings.HasPrefix(p.Body, "stargazer starred your repository") {
		t.Errorf("body = %q", p.Body)
	}
	if !strings.Contains(p.Body, "My first repository") {
		t.Error("body should contain the repo description")
	}
	if !strings.Contains(p.Body, "42 stars") {
		t.Error("body should contain the star count")
	}
	if !strings.Contains(p.Body, "2025-11-02T12:00:00Z") {
		t.Error("body should contain the starred_at time")
	}
	if p.Icon != "https://avatars.githubusercontent.com/u/2" {
		t.Errorf("icon = %q, want sender avatar", p.Icon)
	}
	if p.Badge != githubBadge {
		t.Errorf("badge = %q", p.Badge)
	}
	if p.URL != "https://github.com/octocat/hello-world" {
		t.Errorf("url = %q", p.URL)
	}
}

func TestNotificationPayloadDefaults(t *testing.T) {
	event, err := ParseStarEvent([]byte(`{
		"action": "started",
		"repository": {"full_name": "octocat/bare", "stargazers_count": 1},
		"sender": {"login": "stargazer"}
	}`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	p := event.NotificationPayload()

	if p.URL != "https://github.com/octocat/bare" {
		t.Errorf("url = %q, want fallback from full_name", p.URL)
	}
	if strings.Contains(p.Body, "\n\n\n") {
		t.Error("missing description should not leave blank lines")
	}
	if strings.Contains(p.Body, "🕐") {
		t.Error("missing starred_at should omit the time line")
	}
}

package webhook

import (
	"encoding/json"
	"fmt"

	"github.com/dkellner/starnotify/internal/push"
)

// ActionStarted is the GitHub star event action for a newly added star.
// Other actions (e.g. "deleted" for unstarring) are ignored.
const ActionStarted = "started"

// githubBadge is the default badge icon when the event supplies none.
const githubBadge = "https://github.githubassets.com/favicons/favicon.png"

// StarEvent is the subset of GitHub's star webhook payload this service
// consumes. It exists only for the duration of a request.
type StarEvent struct {
	Action     string     `json:"action"`
	Repository Repository `json:"repository"`
	Sender     Actor      `json:"sender"`
	StarredAt  string     `json:"starred_at"`
}

type Repository struct {
	Name            string `json:"name"`
	FullName        string `json:"full_name"`
	Description     string `json:"description"`
	HTMLURL         string `json:"html_url"`
	StargazersCount int    `json:"stargazers_count"`
	Owner           Actor  `json:"owner"`
}

// Actor is a GitHub user reference as it appears in webhook payloads,
// used for both repository owners and event senders.
type Actor struct {
	Login     string `json:"login"`
	AvatarURL string `json:"avatar_url"`
}

// ParseStarEvent decodes a raw webhook body. It rejects bodies that are not
// JSON or that lack the fields every star event carries.
func ParseStarEvent(body []byte) (*StarEvent, error) {
	var event StarEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return nil, fmt.Errorf("decode star event: %w", err)
	}
	if event.Action == "" {
		return nil, fmt.Errorf("star event missing action")
	}
	if event.Repository.FullName == "" {
		return nil, fmt.Errorf("star event missing repository.full_name")
	}
	if event.Sender.Login == "" {
		return nil, fmt.Errorf("star event missing sender.login")
	}
	return &event, nil
}

// NotificationPayload builds the push payload for a star event. Fields come
// from the event; only the badge and the repository URL have defaults,
// applied when the event does not carry them.
func (e *StarEvent) NotificationPayload() push.Payload {
	repo := e.Repository

	body := fmt.Sprintf("%s starred your repository", e.Sender.Login)
	if repo.Description != "" {
		body += "\n\n" + repo.Description
	}
	body += fmt.Sprintf("\n\n⭐ %d stars", repo.StargazersCount)
	if e.StarredAt != "" {
		body += "\n🕐 " + e.StarredAt
	}

	url := repo.HTMLURL
	if url == "" {
		url = "https://github.com/" + repo.FullName
	}

	return push.Payload{
		Title: fmt.Sprintf("⭐ New Star on %s", repo.FullName),
		Body:  body,
		Icon:  e.Sender.AvatarURL,
		Badge: githubBadge,
		URL:   url,
		Tag:   "star:" + repo.FullName,
	}
}

package webhook

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Whitelist is the set of "owner/name" repositories allowed to trigger
// notifications. Matching is exact and case-sensitive; no patterns.
type Whitelist map[string]struct{}

// ParseWhitelist parses a JSON string array (the WEBHOOK_WHITELIST value)
// into a Whitelist. An empty or missing value yields an empty whitelist.
// On malformed JSON it returns the empty whitelist along with the error so
// the caller can log and fail closed rather than fall open.
func ParseWhitelist(raw string) (Whitelist, error) {
	if strings.TrimSpace(raw) == "" {
		return Whitelist{}, nil
	}

	var repos []string
	if err := json.Unmarshal([]byte(raw), &repos); err != nil {
		return Whitelist{}, fmt.Errorf("parse whitelist: %w", err)
	}

	wl := make(Whitelist, len(repos))
	for _, repo := range repos {
		wl[repo] = struct{}{}
	}
	return wl, nil
}

// Allowed reports whether the repository may trigger notifications.
// An empty whitelist allows nothing: a misconfigured allow list must not
// turn into allow-all.
func (w Whitelist) Allowed(repoFullName string) bool {
	_, ok := w[repoFullName]
	return ok
}

package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

const signaturePrefix = "sha256="

// VerifySignature checks the X-Hub-Signature-256 header against the raw
// request body. The header carries "sha256=" followed by the hex HMAC-SHA256
// of the body under the shared secret. Verification must run against the
// bytes as received; re-serialized JSON would produce a different digest.
//
// An empty secret rejects everything: an unconfigured secret must not
// silently disable authentication. Returns false on any malformed input.
func VerifySignature(body []byte, header, secret string) bool {
	if secret == "" {
		return false
	}
	if !strings.HasPrefix(header, signaturePrefix) {
		return false
	}
	got, err := hex.DecodeString(header[len(signaturePrefix):])
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hmac.Equal(got, mac.Sum(nil))
}

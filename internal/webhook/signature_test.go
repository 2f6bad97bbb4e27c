package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"testing"
)

func signBody(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func TestVerifySignature(t *testing.T) {
	body := []byte(`{"action":"started"}`)
	secret := "s3cret"

	if !VerifySignature(body, signBody(body, secret), secret) {
		t.Error("valid signature should verify")
	}
}

func TestVerifySignatureBodyMutation(t *testing.T) {
	body := []byte(`{"action":"started"}`)
	secret := "s3cret"
	header := signBody(body, secret)

	// Flip one bit of the body
	mutated := append([]byte(nil), body...)
	mutated[0] ^= 0x01
	if VerifySignature(mutated, header, secret) {
		t.Error("mutated body should not verify")
	}
}

func TestVerifySignatureHeaderMutation(t *testing.T) {
	body := []byte(`{"action":"started"}`)
	secret := "s3cret"
	header := []byte(signBody(body, secret))

	// Flip one hex digit of the signature
	last := header[len(header)-1]
	if last == '0' {
		header[len(header)-1] = '1'
	} else {
		header[len(header)-1] = '0'
	}
	if VerifySignature(body, string(header), secret) {
		t.Error("mutated signature should not verify")
	}
}

func TestVerifySignatureWrongSecret(t *testing.T) {
	body := []byte(`{"action":"started"}`)
	if VerifySignature(body, signBody(body, "secret-a"), "secret-b") {
		t.Error("signature under a different secret should not verify")
	}
}

func TestVerifySignatureMalformedHeader(t *testing.T) {
	body := []byte(`{}`)
	secret := "s3cret"

	cases := []struct {
		name   string
		header string
	}{
		{"empty", ""},
		{"no prefix", hex.EncodeToString(make([]byte, 32))},
		{"wrong prefix", "sha1=" + hex.EncodeToString(make([]byte, 20))},
		{"not hex", "sha256=zzzz"},
		{"truncated", "sha256=abcd"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if VerifySignature(body, tc.header, secret) {
				t.Errorf("header %q should not verify", tc.header)
			}
		})
	}
}

func TestVerifySignatureEmptySecret(t *testing.T) {
	body := []byte(`{}`)
	// An unset secret must reject, not skip verification.
	if VerifySignature(body, signBody(body, ""), "") {
		t.Error("empty secret should reject everything")
	}
}

package crypto

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"strings"
	"testing"
)

func TestHMACAuth_L2HeadersAt_Deterministic(t *testing.T) {
	secret := base64.StdEncoding.EncodeToString([]byte("super-secret"))
	auth := &HMACAuth{Key: "api-key", Secret: secret, Passphrase: "pass"}

	h1 := auth.L2HeadersAt("0xabc", "POST", "/order", `{"x":1}`, 1700000000)
	h2 := auth.L2HeadersAt("0xabc", "POST", "/order", `{"x":1}`, 1700000000)

	if h1["POLY_SIGNATURE"] != h2["POLY_SIGNATURE"] {
		t.Error("same inputs must produce the same signature")
	}
	if h1["POLY_ADDRESS"] != "0xabc" || h1["POLY_API_KEY"] != "api-key" ||
		h1["POLY_TIMESTAMP"] != "1700000000" || h1["POLY_PASSPHRASE"] != "pass" {
		t.Errorf("headers = %v", h1)
	}

	// Recompute the expected signature directly.
	mac := hmac.New(sha256.New, []byte("super-secret"))
	mac.Write([]byte("1700000000POST/order" + `{"x":1}`))
	want := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	if h1["POLY_SIGNATURE"] != want {
		t.Errorf("signature = %s, want %s", h1["POLY_SIGNATURE"], want)
	}
}

func TestHMACAuth_L2HeadersAt_InputsChangeSignature(t *testing.T) {
	secret := base64.StdEncoding.EncodeToString([]byte("super-secret"))
	auth := &HMACAuth{Key: "api-key", Secret: secret, Passphrase: "pass"}

	base := auth.L2HeadersAt("0xabc", "POST", "/order", "body", 1700000000)
	variants := []map[string]string{
		auth.L2HeadersAt("0xabc", "GET", "/order", "body", 1700000000),
		auth.L2HeadersAt("0xabc", "POST", "/cancel", "body", 1700000000),
		auth.L2HeadersAt("0xabc", "POST", "/order", "other", 1700000000),
		auth.L2HeadersAt("0xabc", "POST", "/order", "body", 1700000001),
	}
	for i, v := range variants {
		if v["POLY_SIGNATURE"] == base["POLY_SIGNATURE"] {
			t.Errorf("variant %d produced an identical signature", i)
		}
	}
}

func TestHMACAuth_String_Redacts(t *testing.T) {
	auth := &HMACAuth{Key: "api-key-1234", Secret: "c2VjcmV0LXZhbHVl"}
	s := auth.String()
	if strings.Contains(s, "api-key-1234") || strings.Contains(s, "c2VjcmV0LXZhbHVl") {
		t.Errorf("credentials leaked into String(): %s", s)
	}
}

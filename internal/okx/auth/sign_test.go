package auth

import (
	"encoding/base64"
	"testing"
	"time"
)

func TestSignKnownVector(t *testing.T) {
	// HMAC-SHA256("secret", "message"), base64 encoded.
	want := "i19IcCmVwVmMVz2x4hhmqbgl1KeU0WnXBgoDYFeWNgs="
	if got := Sign("secret", "message"); got != want {
		t.Fatalf("Sign = %q, want %q", got, want)
	}
}

func TestSignDecodesTo32Bytes(t *testing.T) {
	raw, err := base64.StdEncoding.DecodeString(Sign("s3cret", "payload"))
	if err != nil {
		t.Fatalf("signature is not valid base64: %v", err)
	}
	if len(raw) != 32 {
		t.Fatalf("signature length = %d, want 32", len(raw))
	}
}

func TestRestSignConcatenatesPrehash(t *testing.T) {
	want := Sign("k", "2026-01-02T03:04:05.000ZPOST/api/v5/trade/order{}")
	got := RestSign("k", "2026-01-02T03:04:05.000Z", "POST", "/api/v5/trade/order", "{}")
	if got != want {
		t.Fatalf("RestSign = %q, want %q", got, want)
	}
}

func TestLoginSignature(t *testing.T) {
	now := time.Unix(1700000000, 999_000_000)
	timestamp, signature := LoginSignature("k", now)
	if timestamp != "1700000000" {
		t.Fatalf("timestamp = %q, want unix seconds", timestamp)
	}
	if want := Sign("k", "1700000000GET/users/self/verify"); signature != want {
		t.Fatalf("signature = %q, want %q", signature, want)
	}
}

package auth

import (
	"testing"
	"time"
)

func TestSessionTokenRoundTrip(t *testing.T) {
	token, err := SignSession("conv-1", "secret", time.Hour)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	convID, err := ParseSession(token, "secret")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if convID != "conv-1" {
		t.Fatalf("unexpected conversation id: %q", convID)
	}
}

func TestParseSession_RejectsWrongSecret(t *testing.T) {
	token, err := SignSession("conv-1", "secret", time.Hour)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := ParseSession(token, "other-secret"); err == nil {
		t.Fatalf("expected rejection with wrong secret")
	}
}

func TestParseSession_RejectsExpired(t *testing.T) {
	token, err := SignSession("conv-1", "secret", -time.Minute)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := ParseSession(token, "secret"); err == nil {
		t.Fatalf("expected rejection of expired token")
	}
}

func TestParseSession_RejectsGarbage(t *testing.T) {
	if _, err := ParseSession("not-a-token", "secret"); err == nil {
		t.Fatalf("expected rejection of malformed token")
	}
}

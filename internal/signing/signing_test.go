package signing

import (
	"errors"
	"testing"
	"time"
)

func TestSigner(t *testing.T) {
	s := NewSigner([]byte("topsecret"))
	sig := s.Sign("alice", 1700000000)
	if len(sig) == 0 {
		t.Fatalf("expected signature")
	}
	if !s.Validate("alice", "1700000000", sig) {
		t.Fatalf("expected signature to validate")
	}
	if s.Validate("bob", "1700000000", sig) {
		t.Fatalf("expected validation to fail for wrong user")
	}
	if s.Validate("alice", "42", sig) {
		t.Fatalf("expected validation to fail for wrong expiry")
	}
	if s.Validate("alice", "soon", sig) {
		t.Fatalf("expected validation to fail for malformed expiry")
	}
}

func TestStateRoundTrip(t *testing.T) {
	now := time.Unix(1700000000, 0)
	s := NewSigner([]byte("topsecret"))
	s.now = func() time.Time { return now }

	state := s.State("alice.smith@example.com", 10*time.Minute)
	user, err := s.Verify(state)
	if err != nil || user != "alice.smith@example.com" {
		t.Fatalf("verify = %q, %v", user, err)
	}

	other := NewSigner([]byte("different"))
	other.now = s.now
	if _, err := other.Verify(state); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected signature mismatch, got %v", err)
	}

	now = now.Add(11 * time.Minute)
	if _, err := s.Verify(state); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected expired state, got %v", err)
	}

	for _, bad := range []string{"", "nodots", "a.b", ".1700000600.abc"} {
		if _, err := s.Verify(bad); !errors.Is(err, ErrInvalidState) {
			t.Fatalf("Verify(%q) should fail, got %v", bad, err)
		}
	}
}

package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/dukerupert/gymops/internal/clock"
)

func TestLinkSignAndVerify(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	signer, err := NewLinkSigner([]byte("test-key"), 10*time.Minute, clock.Fixed(now))
	if err != nil {
		t.Fatalf("new signer: %v", err)
	}

	tok, expires, err := signer.Sign("backup", 12, 3)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if !expires.Equal(now.Add(10 * time.Minute)) {
		t.Errorf("expires = %v", expires)
	}

	id, op, err := signer.Verify(tok, "backup")
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if id != 12 || op != 3 {
		t.Errorf("id/operator = %d/%d, want 12/3", id, op)
	}

	if _, _, err := signer.Verify(tok, "report"); !errors.Is(err, ErrInvalidLink) {
		t.Errorf("wrong kind err = %v", err)
	}
	if _, _, err := signer.Verify(tok+"x", "backup"); !errors.Is(err, ErrInvalidLink) {
		t.Errorf("tampered err = %v", err)
	}

	other, _ := NewLinkSigner([]byte("other-key"), 0, clock.Fixed(now))
	if _, _, err := other.Verify(tok, "backup"); !errors.Is(err, ErrInvalidLink) {
		t.Errorf("foreign key err = %v", err)
	}
}

func TestLinkExpires(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	signer, _ := NewLinkSigner(nil, time.Minute, clock.Fixed(now))
	tok, _, err := signer.Sign("backup", 1, 1)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	later := &LinkSigner{key: signer.key, ttl: signer.ttl, clock: clock.Fixed(now.Add(2 * time.Minute))}
	if _, _, err := later.Verify(tok, "backup"); !errors.Is(err, ErrInvalidLink) {
		t.Errorf("expired link err = %v, want ErrInvalidLink", err)
	}
}

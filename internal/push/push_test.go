package push

import (
	"crypto/ecdh"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dukerupert/gymops/internal/model"
)

func TestGenerateVAPIDKeys(t *testing.T) {
	pub, priv, err := GenerateVAPIDKeys()
	if err != nil {
		t.Fatalf("generate VAPID keys: %v", err)
	}

	pubBytes, err := base64.RawURLEncoding.DecodeString(pub)
	if err != nil {
		t.Fatalf("decode public key: %v", err)
	}
	if len(pubBytes) != 65 || pubBytes[0] != 0x04 {
		t.Errorf("public key is not an uncompressed P-256 point (len %d)", len(pubBytes))
	}
	privBytes, err := base64.RawURLEncoding.DecodeString(priv)
	if err != nil {
		t.Fatalf("decode private key: %v", err)
	}
	if len(privBytes) != 32 {
		t.Errorf("private key length = %d, want 32", len(privBytes))
	}

	if pub2, _, _ := GenerateVAPIDKeys(); pub == pub2 {
		t.Error("two generations returned the same key")
	}
}

func TestServiceConfigured(t *testing.T) {
	if NewService("", "", "").Configured() {
		t.Error("service without keys should not be configured")
	}
	svc := NewService("pub", "priv", "mailto:ops@gym.test")
	if !svc.Configured() || svc.VAPIDPublicKey() != "pub" {
		t.Errorf("configured service = %+v", svc)
	}
	if svc.contact != "ops@gym.test" {
		t.Errorf("contact = %q, want mailto prefix stripped", svc.contact)
	}
	if NewService("", "", "").contact != defaultContact {
		t.Error("expected default contact")
	}
}

// browserSubscription returns a subscription with real keys so webpush can
// encrypt for it.
func browserSubscription(t *testing.T, endpoint string) *model.PushSubscription {
	t.Helper()
	key, err := ecdh.P256().GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate browser key: %v", err)
	}
	auth := make([]byte, 16)
	if _, err := rand.Read(auth); err != nil {
		t.Fatalf("generate auth secret: %v", err)
	}
	return &model.PushSubscription{
		ID:        7,
		Endpoint:  endpoint,
		P256dhKey: base64.RawURLEncoding.EncodeToString(key.PublicKey().Bytes()),
		AuthKey:   base64.RawURLEncoding.EncodeToString(auth),
	}
}

func TestSend(t *testing.T) {
	var urgency, ttl string
	status := http.StatusCreated
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		urgency = r.Header.Get("Urgency")
		ttl = r.Header.Get("TTL")
		w.WriteHeader(status)
	}))
	defer srv.Close()

	pub, priv, err := GenerateVAPIDKeys()
	if err != nil {
		t.Fatalf("generate VAPID keys: %v", err)
	}
	svc := NewService(pub, priv, "")
	sub := browserSubscription(t, srv.URL+"/push/abc")
	payload := Payload{Title: "Overdue inspection: Squat Rack", Tag: "schedule-4", Priority: model.PriorityCritical}

	if err := svc.Send(sub, payload); err != nil {
		t.Fatalf("send: %v", err)
	}
	if urgency != "high" || ttl != "14400" {
		t.Errorf("urgency/ttl = %q/%q, want high/14400", urgency, ttl)
	}

	status = http.StatusGone
	if err := svc.Send(sub, payload); !errors.Is(err, ErrExpired) {
		t.Errorf("410 error = %v, want ErrExpired", err)
	}

	status = http.StatusTooManyRequests
	if err := svc.Send(sub, payload); err == nil || errors.Is(err, ErrExpired) {
		t.Errorf("429 error = %v, want a plain failure", err)
	}
}

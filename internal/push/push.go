package push

import (
	"crypto/ecdh"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/dukerupert/gymops/internal/model"

	webpush "github.com/SherClockHolmes/webpush-go"
)

// ErrExpired means the browser dropped the subscription (404 or 410) and it
// should be deleted.
var ErrExpired = errors.New("push subscription expired")

const defaultContact = "maintenance@gymops.local"

// Payload is what the service worker receives.
type Payload struct {
	Title    string         `json:"title"`
	Body     string         `json:"body"`
	URL      string         `json:"url,omitempty"`
	Tag      string         `json:"tag,omitempty"`
	Priority model.Priority `json:"priority,omitempty"`
}

// Service signs and sends web push messages with the configured VAPID keys.
type Service struct {
	publicKey  string
	privateKey string
	contact    string
	client     webpush.HTTPClient
}

// NewService builds a Service. contact is an email address or https URL
// identifying the operator of this server to push services.
func NewService(publicKey, privateKey, contact string) *Service {
	contact = strings.TrimPrefix(contact, "mailto:")
	if contact == "" {
		contact = defaultContact
	}
	return &Service{
		publicKey:  publicKey,
		privateKey: privateKey,
		contact:    contact,
		client:     &http.Client{Timeout: 15 * time.Second},
	}
}

func (s *Service) Configured() bool {
	return s.publicKey != "" && s.privateKey != ""
}

func (s *Service) VAPIDPublicKey() string {
	return s.publicKey
}

// Send delivers payload to one device. Critical alerts are sent with high
// urgency and a short TTL; a stale "overdue" alert is worse than none.
func (s *Service) Send(sub *model.PushSubscription, payload Payload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode push payload: %w", err)
	}

	urgency, ttl := deliveryFor(payload.Priority)
	resp, err := webpush.SendNotification(body, &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys:     webpush.Keys{P256dh: sub.P256dhKey, Auth: sub.AuthKey},
	}, &webpush.Options{
		HTTPClient:      s.client,
		Subscriber:      s.contact,
		Topic:           payload.Tag,
		TTL:             int(ttl.Seconds()),
		Urgency:         urgency,
		VAPIDPublicKey:  s.publicKey,
		VAPIDPrivateKey: s.privateKey,
	})
	if err != nil {
		return fmt.Errorf("send push to subscription %d: %w", sub.ID, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusGone || resp.StatusCode == http.StatusNotFound:
		return ErrExpired
	case resp.StatusCode >= 400:
		return fmt.Errorf("push service rejected subscription %d: status %d", sub.ID, resp.StatusCode)
	}
	return nil
}

func deliveryFor(p model.Priority) (webpush.Urgency, time.Duration) {
	switch p {
	case model.PriorityCritical:
		return webpush.UrgencyHigh, 4 * time.Hour
	case model.PriorityHigh:
		return webpush.UrgencyNormal, 12 * time.Hour
	default:
		return webpush.UrgencyLow, 24 * time.Hour
	}
}

// GenerateVAPIDKeys returns a fresh P-256 key pair encoded the way browsers
// and webpush expect: the public key as an uncompressed point and the
// private key as the raw 32-byte scalar, both base64url without padding.
func GenerateVAPIDKeys() (publicKey, privateKey string, err error) {
	key, err := ecdh.P256().GenerateKey(rand.Reader)
	if err != nil {
		return "", "", fmt.Errorf("generate VAPID key: %w", err)
	}
	enc := base64.RawURLEncoding
	return enc.EncodeToString(key.PublicKey().Bytes()), enc.EncodeToString(key.Bytes()), nil
}

// Package broker publishes maintenance notifications to an MQTT broker so
// floor displays and building systems can react without polling the API.
package broker

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/dukerupert/gymops/internal/notification"
)

type Config struct {
	URL         string
	ClientID    string
	Username    string
	Password    string
	TopicPrefix string
	QoS         byte
}

// client is the part of mqtt.Client the publisher uses.
type client interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Disconnect(quiesce uint)
}

type Publisher struct {
	client  client
	prefix  string
	qos     byte
	timeout time.Duration
	logger  *slog.Logger
}

const publishTimeout = 5 * time.Second

// Connect dials the broker and returns a publisher. The client reconnects
// on its own after the first successful connect.
func Connect(cfg Config, logger *slog.Logger) (*Publisher, error) {
	if cfg.URL == "" {
		return nil, errors.New("broker: url is required")
	}
	if cfg.QoS > 2 {
		return nil, fmt.Errorf("broker: invalid qos %d", cfg.QoS)
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "mqtt")

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.URL).
		SetClientID(cfg.ClientID).
		SetUsername(cfg.Username).
		SetPassword(cfg.Password).
		SetAutoReconnect(true).
		SetConnectTimeout(10 * time.Second).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			logger.Warn("connection lost", "error", err)
		}).
		SetOnConnectHandler(func(mqtt.Client) {
			logger.Info("connected", "broker", cfg.URL)
		})

	c := mqtt.NewClient(opts)
	tok := c.Connect()
	if !tok.WaitTimeout(15 * time.Second) {
		return nil, fmt.Errorf("broker: connect to %s timed out", cfg.URL)
	}
	if err := tok.Error(); err != nil {
		return nil, fmt.Errorf("broker: connect: %w", err)
	}
	return newPublisher(c, cfg, logger), nil
}

func newPublisher(c client, cfg Config, logger *slog.Logger) *Publisher {
	prefix := cfg.TopicPrefix
	if prefix == "" {
		prefix = "gymops"
	}
	return &Publisher{client: c, prefix: prefix, qos: cfg.QoS, timeout: publishTimeout, logger: logger}
}

// Publish sends v as JSON to prefix/topic.
func (p *Publisher) Publish(topic string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	full := p.prefix + "/" + topic
	tok := p.client.Publish(full, p.qos, false, payload)
	if !tok.WaitTimeout(p.timeout) {
		return fmt.Errorf("publish %s: timed out", full)
	}
	if err := tok.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", full, err)
	}
	return nil
}

// PublishNotification is registered as a scanner hook. The topic carries
// the severity so subscribers can filter, e.g. gymops/notifications/critical.
func (p *Publisher) PublishNotification(n notification.Notification) {
	if err := p.Publish("notifications/"+string(n.Priority), n); err != nil {
		p.logger.Warn("publish notification", "notification_id", n.ID, "error", err)
	}
}

func (p *Publisher) Close() {
	p.client.Disconnect(250)
}

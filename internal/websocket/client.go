package websocket

import (
	"context"
	"strings"
	"time"

	ws "github.com/coder/websocket"
)

const (
	outboxSize   = 32
	keepalive    = 30 * time.Second
	writeTimeout = 10 * time.Second
	maxInbound   = 4096
)

// Client is one dashboard connection. Dashboards only listen, so inbound
// data frames end the connection.
type Client struct {
	hub    *Hub
	conn   *ws.Conn
	outbox chan []byte

	// entities limits which events reach this dashboard; nil means all.
	entities map[string]bool
}

// NewClient ties conn to hub. When entities is non-empty the client only
// receives events for those entities (e.g. "schedule", "backup").
func NewClient(hub *Hub, conn *ws.Conn, entities ...string) *Client {
	c := &Client{
		hub:    hub,
		conn:   conn,
		outbox: make(chan []byte, outboxSize),
	}
	for _, e := range entities {
		e = strings.TrimSpace(e)
		if e == "" {
			continue
		}
		if c.entities == nil {
			c.entities = make(map[string]bool)
		}
		c.entities[e] = true
	}
	return c
}

func (c *Client) wants(entity string) bool {
	return c.entities == nil || c.entities[entity]
}

// Run registers the client and delivers events until the peer goes away
// or ctx is cancelled.
func (c *Client) Run(ctx context.Context) {
	c.conn.SetReadLimit(maxInbound)
	c.hub.Register(c)
	defer c.hub.Unregister(c)

	c.deliver(c.conn.CloseRead(ctx))
}

func (c *Client) deliver(ctx context.Context) {
	ping := time.NewTicker(keepalive)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ping.C:
			if err := c.conn.Ping(ctx); err != nil {
				return
			}
		case frame, open := <-c.outbox:
			if !open {
				return
			}
			if err := c.write(ctx, frame); err != nil {
				return
			}
		}
	}
}

func (c *Client) write(ctx context.Context, frame []byte) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return c.conn.Write(ctx, ws.MessageText, frame)
}

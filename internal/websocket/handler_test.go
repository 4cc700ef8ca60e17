package websocket

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	ws "github.com/coder/websocket"
)

func TestHandleWebSocketFilteredFeed(t *testing.T) {
	hub := quietHub()
	srv := httptest.NewServer(HandleWebSocket(hub, nil))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/?entities=backup"
	conn, _, err := ws.Dial(ctx, url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.CloseNow()

	for hub.ClientCount() == 0 {
		select {
		case <-ctx.Done():
			t.Fatal("dashboard never registered")
		case <-time.After(5 * time.Millisecond):
		}
	}

	hub.Broadcast(SchedulesGenerated(1, 4))
	hub.Broadcast(NewMessage("backup", "status", 0, map[string]any{"state": "running"}))

	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var got Message
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.Type != TypeBackupStatus || got.Extra["state"] != "running" {
		t.Errorf("first event = %+v, want the backup status", got)
	}

	conn.Close(ws.StatusNormalClosure, "")
	for hub.ClientCount() != 0 {
		select {
		case <-ctx.Done():
			t.Fatal("dashboard never unregistered")
		case <-time.After(5 * time.Millisecond):
		}
	}
}

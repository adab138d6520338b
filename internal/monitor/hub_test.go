// ABOUTME: Tests for the outcome websocket feed
// ABOUTME: Connects a real websocket client and checks history and broadcasts
package monitor

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Resonate-Protocol/timesync-go/pkg/syncclient"
)

type feedMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

func dialFeed(t *testing.T, hub *Hub) *websocket.Conn {
	t.Helper()

	srv := httptest.NewServer(hub)
	t.Cleanup(srv.Close)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + FeedPath
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("failed to connect to feed: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) feedMessage {
	t.Helper()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg feedMessage
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("failed to read feed message: %v", err)
	}
	return msg
}

func TestHistoryReplayedOnConnect(t *testing.T) {
	history := syncclient.NewHistory(5)
	history.Add(syncclient.Outcome{ID: "first", Kind: syncclient.OutcomeTimeout, Waited: time.Second})
	history.Add(syncclient.Outcome{ID: "second", Kind: syncclient.OutcomeSuccess})

	hub := NewHub(history)
	conn := dialFeed(t, hub)

	msg := readMessage(t, conn)
	if msg.Type != TypeHistory {
		t.Fatalf("expected history message first, got %s", msg.Type)
	}

	var entries []syncclient.Outcome
	if err := json.Unmarshal(msg.Data, &entries); err != nil {
		t.Fatalf("failed to decode history: %v", err)
	}
	if len(entries) != 2 || entries[0].ID != "second" || entries[1].ID != "first" {
		t.Errorf("unexpected history %+v", entries)
	}
}

func TestPublishReachesSubscriber(t *testing.T) {
	hub := NewHub(nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	conn := dialFeed(t, hub)

	if msg := readMessage(t, conn); msg.Type != TypeHistory {
		t.Fatalf("expected history message first, got %s", msg.Type)
	}

	hub.Publish(syncclient.Outcome{ID: "live", Kind: syncclient.OutcomeProtocolError, Reason: "bad"})

	msg := readMessage(t, conn)
	if msg.Type != TypeOutcome {
		t.Fatalf("expected outcome message, got %s", msg.Type)
	}

	var out syncclient.Outcome
	if err := json.Unmarshal(msg.Data, &out); err != nil {
		t.Fatalf("failed to decode outcome: %v", err)
	}
	if out.ID != "live" || out.Kind != syncclient.OutcomeProtocolError || out.Reason != "bad" {
		t.Errorf("unexpected outcome %+v", out)
	}
}

func TestSubscriberRemovedOnClose(t *testing.T) {
	hub := NewHub(nil)
	conn := dialFeed(t, hub)
	readMessage(t, conn)

	if hub.Subscribers() != 1 {
		t.Fatalf("expected 1 subscriber, got %d", hub.Subscribers())
	}

	conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for hub.Subscribers() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("subscriber was not removed after close")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestPublishWithoutRunDoesNotBlock(t *testing.T) {
	hub := NewHub(nil)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			hub.Publish(syncclient.Outcome{ID: "x"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked with no running hub")
	}
}

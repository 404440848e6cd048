package websocket

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/dukerupert/hearthquest/internal/sync"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// testClient builds a client without a live connection; tests read from the
// send channel directly instead of running the pumps.
func testClient(hub *Hub, familyID int64) *Client {
	return NewClient(hub, nil, familyID)
}

func TestBroadcastScopedByFamily(t *testing.T) {
	hub := NewHub(testLogger())

	mine := testClient(hub, 1)
	theirs := testClient(hub, 2)
	hub.Register(mine)
	hub.Register(theirs)

	hub.Broadcast(1, Message{Type: "daily_logs_upserted", Table: "daily_logs", Action: "upserted", RowID: 7})

	select {
	case data := <-mine.send:
		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if msg.RowID != 7 {
			t.Errorf("row id = %d, want 7", msg.RowID)
		}
	default:
		t.Fatal("family 1 client got nothing")
	}

	select {
	case <-theirs.send:
		t.Error("broadcast leaked to family 2")
	default:
	}
}

func TestBroadcastDropsOnFullBuffer(t *testing.T) {
	hub := NewHub(testLogger())
	c := testClient(hub, 1)
	hub.Register(c)

	msg := Message{Type: "daily_logs_upserted", Table: "daily_logs", Action: "upserted"}
	for i := 0; i < sendBufferSize+3; i++ {
		hub.Broadcast(1, msg)
	}

	if got := len(c.send); got != sendBufferSize {
		t.Errorf("buffered messages = %d, want %d", got, sendBufferSize)
	}
}

func TestUnregisterClosesSendChannel(t *testing.T) {
	hub := NewHub(testLogger())
	c := testClient(hub, 1)
	hub.Register(c)

	hub.Unregister(c)

	if _, ok := <-c.send; ok {
		t.Error("expected closed send channel after unregister")
	}
	if hub.ClientCount() != 0 {
		t.Errorf("client count = %d, want 0", hub.ClientCount())
	}

	// Double unregister must not panic.
	hub.Unregister(c)
}

func TestFamilyClientCount(t *testing.T) {
	hub := NewHub(testLogger())
	hub.Register(testClient(hub, 1))
	hub.Register(testClient(hub, 1))
	hub.Register(testClient(hub, 2))

	if n := hub.FamilyClientCount(1); n != 2 {
		t.Errorf("family 1 count = %d, want 2", n)
	}
	if n := hub.FamilyClientCount(3); n != 0 {
		t.Errorf("family 3 count = %d, want 0", n)
	}
}

func TestRunBridgesFeedToClients(t *testing.T) {
	hub := NewHub(testLogger())
	feed := sync.NewFeed(testLogger())
	c := testClient(hub, 1)
	hub.Register(c)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx, feed)

	// Wait for the bridge subscription to attach before publishing.
	deadline := time.Now().Add(2 * time.Second)
	for feed.SubscriberCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("bridge never subscribed")
		}
		time.Sleep(time.Millisecond)
	}

	feed.Publish(sync.Event{
		Table:     sync.TableChallenges,
		Action:    sync.ActionUpserted,
		RowID:     3,
		FamilyID:  1,
		ProfileID: 2,
	})

	select {
	case data := <-c.send:
		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if msg.Type != "challenges_upserted" || msg.RowID != 3 {
			t.Errorf("message = %+v", msg)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("event never reached the client")
	}
}

func TestRunExitsWhenFeedShutsDown(t *testing.T) {
	hub := NewHub(testLogger())
	feed := sync.NewFeed(testLogger())

	done := make(chan struct{})
	go func() {
		defer close(done)
		hub.Run(context.Background(), feed)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for feed.SubscriberCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("hub never subscribed")
		}
		time.Sleep(time.Millisecond)
	}

	feed.Close()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("hub loop still running after feed shutdown")
	}
}

package websocket

import (
	"encoding/json"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/dukerupert/larder/internal/feed"
)

// mockClient creates a Client with a send channel but no real connection.
func mockClient(hub *Hub, familyID string) *Client {
	return &Client{
		hub:      hub,
		conn:     nil,
		familyID: familyID,
		send:     make(chan []byte, sendBufferSize),
	}
}

func recv(t *testing.T, c *Client) Message {
	t.Helper()
	select {
	case data := <-c.send:
		var got Message
		if err := json.Unmarshal(data, &got); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		return got
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for message")
	}
	return Message{}
}

func expectNone(t *testing.T, c *Client) {
	t.Helper()
	select {
	case data := <-c.send:
		t.Fatalf("unexpected message %s", data)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestRegisterUnregister(t *testing.T) {
	hub := NewHub(slog.Default())

	c1 := mockClient(hub, "fam")
	c2 := mockClient(hub, "other")

	hub.Register(c1)
	hub.Register(c2)

	if got := hub.ClientCount(); got != 2 {
		t.Fatalf("expected 2 clients, got %d", got)
	}
	if got := len(hub.Families()); got != 2 {
		t.Fatalf("expected 2 rooms, got %d", got)
	}

	hub.Unregister(c1)

	if got := hub.ClientCount(); got != 1 {
		t.Fatalf("expected 1 client after unregister, got %d", got)
	}
	if hub.HasClients("fam") {
		t.Error("empty room should be removed")
	}

	hub.Unregister(c2)

	if got := hub.ClientCount(); got != 0 {
		t.Fatalf("expected 0 clients, got %d", got)
	}
}

func TestDoubleUnregister(t *testing.T) {
	hub := NewHub(slog.Default())
	c := mockClient(hub, "fam")
	hub.Register(c)
	hub.Unregister(c)
	// Should not panic
	hub.Unregister(c)

	if got := hub.ClientCount(); got != 0 {
		t.Fatalf("expected 0 clients, got %d", got)
	}
}

func TestBroadcastStaysInRoom(t *testing.T) {
	hub := NewHub(slog.Default())

	c1 := mockClient(hub, "fam")
	c2 := mockClient(hub, "fam")
	outsider := mockClient(hub, "other")
	hub.Register(c1)
	hub.Register(c2)
	hub.Register(outsider)

	hub.Broadcast("fam", NewMessage(feed.TopicShopping, "fam", []string{"milk"}))

	for _, c := range []*Client{c1, c2} {
		got := recv(t, c)
		if got.Type != "shopping_snapshot" {
			t.Errorf("expected type shopping_snapshot, got %s", got.Type)
		}
		if got.Topic != feed.TopicShopping || got.FamilyID != "fam" {
			t.Errorf("got topic %s family %s", got.Topic, got.FamilyID)
		}
	}
	expectNone(t, outsider)

	hub.Unregister(c1)
	hub.Unregister(c2)
	hub.Unregister(outsider)
}

func TestBroadcastEmptyHub(t *testing.T) {
	hub := NewHub(slog.Default())
	// Should not panic
	hub.Broadcast("fam", NewMessage(feed.TopicAlerts, "fam", nil))
}

func TestSendAfterUnregister(t *testing.T) {
	hub := NewHub(slog.Default())
	c := mockClient(hub, "fam")
	hub.Register(c)
	hub.Unregister(c)
	// Should not panic on the closed channel
	hub.Send(c, NewMessage(feed.TopicFamily, "fam", nil))
}

func TestBroadcastFullBuffer(t *testing.T) {
	hub := NewHub(slog.Default())

	c := mockClient(hub, "fam")
	hub.Register(c)

	for i := 0; i < sendBufferSize; i++ {
		hub.Broadcast("fam", NewMessage(feed.TopicInventory, "fam", i))
	}

	// This should drop the message, not panic or block
	hub.Broadcast("fam", NewMessage(feed.TopicInventory, "fam", 999))

	count := 0
	for {
		select {
		case <-c.send:
			count++
		default:
			goto done
		}
	}
done:
	if count != sendBufferSize {
		t.Errorf("expected %d messages, got %d", sendBufferSize, count)
	}

	hub.Unregister(c)
}

func TestConcurrentAccess(t *testing.T) {
	hub := NewHub(slog.Default())
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fam := "a"
			if i%2 == 0 {
				fam = "b"
			}
			c := mockClient(hub, fam)
			hub.Register(c)
			hub.Broadcast(fam, NewMessage(feed.TopicInventory, fam, nil))
			for {
				select {
				case <-c.send:
				default:
					hub.Unregister(c)
					return
				}
			}
		}()
	}

	wg.Wait()

	if got := hub.ClientCount(); got != 0 {
		t.Errorf("expected 0 clients after concurrent test, got %d", got)
	}
}

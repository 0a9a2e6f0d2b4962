package ws

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/titanbreach/breach-server/internal/geo"
)

func drain(sub *Subscriber) [][]byte {
	var msgs [][]byte
	for {
		select {
		case msg := <-sub.out:
			msgs = append(msgs, msg)
		default:
			return msgs
		}
	}
}

func TestBroadcastSingleCell(t *testing.T) {
	hub := NewHub(time.Minute)
	a := NewSubscriber(1)
	b := NewSubscriber(2)
	hub.Subscribe("xn76c", a)
	hub.Subscribe("xn76f", b)

	if n := hub.Broadcast("xn76c", []byte("hello")); n != 1 {
		t.Errorf("delivered = %d, want 1", n)
	}
	if len(drain(a)) != 1 {
		t.Error("subscriber in the cell missed the message")
	}
	if len(drain(b)) != 0 {
		t.Error("subscriber in another cell received the message")
	}
}

// A subscriber sitting in several of the nine fan-out cells still receives
// one copy.
func TestBroadcastToNeighborsDedup(t *testing.T) {
	hub := NewHub(time.Minute)
	center := "xn76c"
	cells := geo.GeohashNeighbors(center)
	if len(cells) < 3 {
		t.Fatalf("need multiple cells, got %d", len(cells))
	}

	sub := NewSubscriber(1)
	for _, cell := range cells[:3] {
		hub.Subscribe(cell, sub)
	}
	outside := NewSubscriber(2)
	hub.Subscribe("9q8yy", outside)

	if n := hub.BroadcastToNeighbors(center, []byte("spawn")); n != 1 {
		t.Errorf("delivered = %d, want 1", n)
	}
	if got := len(drain(sub)); got != 1 {
		t.Errorf("subscriber received %d copies, want exactly 1", got)
	}
	if len(drain(outside)) != 0 {
		t.Error("distant subscriber must not receive the fan-out")
	}
}

func TestBroadcastReachesNeighborCell(t *testing.T) {
	hub := NewHub(time.Minute)
	cells := geo.GeohashNeighbors("xn76c")

	neighbor := NewSubscriber(1)
	hub.Subscribe(cells[len(cells)-1], neighbor)

	hub.BroadcastToNeighbors("xn76c", []byte("spawn"))
	if len(drain(neighbor)) != 1 {
		t.Error("neighbor-cell subscriber missed the fan-out")
	}
}

// A full queue drops the overflow for that subscriber instead of blocking
// the broadcast.
func TestBroadcastDropsOnFullQueue(t *testing.T) {
	hub := NewHub(time.Minute)
	slow := NewSubscriber(1)
	hub.Subscribe("xn76c", slow)

	for i := 0; i < subscriberQueueSize; i++ {
		if n := hub.Broadcast("xn76c", []byte(fmt.Sprintf("msg-%d", i))); n != 1 {
			t.Fatalf("message %d not delivered", i)
		}
	}
	if n := hub.Broadcast("xn76c", []byte("overflow")); n != 0 {
		t.Errorf("overflow delivered = %d, want 0", n)
	}
	if got := len(drain(slow)); got != subscriberQueueSize {
		t.Errorf("queued = %d, want %d", got, subscriberQueueSize)
	}
}

func TestRemoveDetachesEverywhere(t *testing.T) {
	hub := NewHub(time.Minute)
	sub := NewSubscriber(1)
	hub.Subscribe("xn76c", sub)
	hub.Subscribe("xn76f", sub)

	if hub.TotalConnections() != 1 {
		t.Fatalf("connections = %d, want 1", hub.TotalConnections())
	}
	hub.Remove(sub)
	if hub.TotalConnections() != 0 {
		t.Error("removed subscriber still counted")
	}
	if hub.Broadcast("xn76c", []byte("x")) != 0 || hub.Broadcast("xn76f", []byte("x")) != 0 {
		t.Error("removed subscriber still receives broadcasts")
	}
	if !sub.isClosed() {
		t.Error("remove must close the outbound queue")
	}
	// Double remove is a no-op, not a panic on a closed channel.
	hub.Remove(sub)
}

func TestSubscriptionSwitch(t *testing.T) {
	hub := NewHub(time.Minute)
	sub := NewSubscriber(1)
	hub.Subscribe("xn76c", sub)
	hub.Unsubscribe("xn76c", sub)
	hub.Subscribe("9q8yy", sub)

	if hub.Broadcast("xn76c", []byte("old")) != 0 {
		t.Error("old cell still delivers after unsubscribe")
	}
	if hub.Broadcast("9q8yy", []byte("new")) != 1 {
		t.Error("new cell does not deliver")
	}
}

func TestCleanupStale(t *testing.T) {
	hub := NewHub(50 * time.Millisecond)
	idle := NewSubscriber(1)
	active := NewSubscriber(2)
	hub.Subscribe("xn76c", idle)
	hub.Subscribe("xn76c", active)

	time.Sleep(80 * time.Millisecond)
	active.Touch()

	removed := hub.CleanupStale()
	if len(removed) != 1 || removed[0] != idle {
		t.Fatalf("reaped %d subscribers, want only the idle one", len(removed))
	}
	if hub.TotalConnections() != 1 {
		t.Errorf("connections = %d, want 1", hub.TotalConnections())
	}
	if !idle.isClosed() {
		t.Error("reaped subscriber must be closed")
	}
}

func TestCleanupReapsClosedSubscribers(t *testing.T) {
	hub := NewHub(time.Hour)
	sub := NewSubscriber(1)
	hub.Subscribe("xn76c", sub)
	sub.close()

	removed := hub.CleanupStale()
	if len(removed) != 1 {
		t.Errorf("closed subscriber not reaped")
	}
}

func TestMarshalFrameShape(t *testing.T) {
	raw := Marshal(TypeTitanExpired, TitanExpiredPayload{TitanID: 42})

	var frame Frame
	if err := json.Unmarshal(raw, &frame); err != nil {
		t.Fatalf("frame does not parse: %v", err)
	}
	if frame.Type != TypeTitanExpired {
		t.Errorf("type = %q", frame.Type)
	}
	var payload TitanExpiredPayload
	if err := json.Unmarshal(frame.Data, &payload); err != nil {
		t.Fatalf("payload does not parse: %v", err)
	}
	if payload.TitanID != 42 {
		t.Errorf("titan id = %d", payload.TitanID)
	}
}

// Unmarshalable payloads degrade to an error frame instead of vanishing.
func TestMarshalEncodeFailure(t *testing.T) {
	raw := Marshal(TypePong, map[string]any{"bad": make(chan int)})
	var frame Frame
	if err := json.Unmarshal(raw, &frame); err != nil {
		t.Fatalf("fallback frame does not parse: %v", err)
	}
	if frame.Type != TypeError {
		t.Errorf("type = %q, want error frame", frame.Type)
	}
}

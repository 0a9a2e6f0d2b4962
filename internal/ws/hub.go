// Package ws implements the geohash-partitioned broadcast fabric. Each
// connected client holds a bounded outbound queue; the hub maps geohash
// cells to subscriber sets and fans events out to a cell and its eight
// neighbors.
package ws

import (
	"log"
	"sync"
	"time"

	"github.com/titanbreach/breach-server/internal/geo"
)

// subscriberQueueSize bounds each client's outbound buffer. Broadcasts never
// block on a slow reader; overflow drops the message for that subscriber.
const subscriberQueueSize = 64

// Subscriber is one connection's endpoint in the hub. The owning connection
// task drains Out; the hub only ever enqueues.
type Subscriber struct {
	out      chan []byte
	playerID int64

	mu         sync.Mutex
	closed     bool
	lastActive time.Time
	geohashes  map[string]bool
}

func NewSubscriber(playerID int64) *Subscriber {
	return &Subscriber{
		out:        make(chan []byte, subscriberQueueSize),
		playerID:   playerID,
		lastActive: time.Now(),
		geohashes:  make(map[string]bool),
	}
}

// Out is the channel the connection's write pump drains.
func (s *Subscriber) Out() <-chan []byte { return s.out }

func (s *Subscriber) PlayerID() int64 { return s.playerID }

// Touch refreshes the idle timer; called on any inbound frame.
func (s *Subscriber) Touch() {
	s.mu.Lock()
	s.lastActive = time.Now()
	s.mu.Unlock()
}

// send enqueues without blocking; returns false if dropped or closed.
func (s *Subscriber) send(msg []byte) bool {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false
	}
	s.mu.Unlock()
	select {
	case s.out <- msg:
		return true
	default:
		return false
	}
}

func (s *Subscriber) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.out)
	}
}

func (s *Subscriber) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Subscriber) idleSince(cutoff time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive.Before(cutoff)
}

// Hub is the process-wide geohash pub/sub registry. Reads (broadcast) are
// hot and concurrent; writes (subscribe/unsubscribe/cleanup) are rare, so a
// reader-writer mutex guards the bucket map.
type Hub struct {
	mu      sync.RWMutex
	buckets map[string]map[*Subscriber]bool

	idleTimeout time.Duration
}

func NewHub(idleTimeout time.Duration) *Hub {
	if idleTimeout <= 0 {
		idleTimeout = 5 * time.Minute
	}
	return &Hub{
		buckets:     make(map[string]map[*Subscriber]bool),
		idleTimeout: idleTimeout,
	}
}

// Subscribe binds a subscriber to a geohash cell.
func (h *Hub) Subscribe(geohash string, sub *Subscriber) {
	if geohash == "" || sub == nil {
		return
	}
	h.mu.Lock()
	bucket, ok := h.buckets[geohash]
	if !ok {
		bucket = make(map[*Subscriber]bool)
		h.buckets[geohash] = bucket
	}
	bucket[sub] = true
	h.mu.Unlock()

	sub.mu.Lock()
	sub.geohashes[geohash] = true
	sub.mu.Unlock()
}

// Unsubscribe removes a subscriber from one cell.
func (h *Hub) Unsubscribe(geohash string, sub *Subscriber) {
	h.mu.Lock()
	if bucket, ok := h.buckets[geohash]; ok {
		delete(bucket, sub)
		if len(bucket) == 0 {
			delete(h.buckets, geohash)
		}
	}
	h.mu.Unlock()

	sub.mu.Lock()
	delete(sub.geohashes, geohash)
	sub.mu.Unlock()
}

// Remove detaches a subscriber from every cell and closes its queue.
// Called by the connection task on disconnect.
func (h *Hub) Remove(sub *Subscriber) {
	sub.mu.Lock()
	cells := make([]string, 0, len(sub.geohashes))
	for g := range sub.geohashes {
		cells = append(cells, g)
	}
	sub.geohashes = make(map[string]bool)
	sub.mu.Unlock()

	h.mu.Lock()
	for _, g := range cells {
		if bucket, ok := h.buckets[g]; ok {
			delete(bucket, sub)
			if len(bucket) == 0 {
				delete(h.buckets, g)
			}
		}
	}
	h.mu.Unlock()

	sub.close()
}

// Broadcast enqueues msg to every subscriber of one cell.
func (h *Hub) Broadcast(geohash string, msg []byte) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	delivered := 0
	for sub := range h.buckets[geohash] {
		if sub.send(msg) {
			delivered++
		}
	}
	return delivered
}

// BroadcastToNeighbors fans msg out to the cell and its 8 neighbors,
// delivering at most once per subscriber even when a subscriber sits in
// several of the nine buckets.
func (h *Hub) BroadcastToNeighbors(geohash string, msg []byte) int {
	cells := geo.GeohashNeighbors(geohash)

	h.mu.RLock()
	seen := make(map[*Subscriber]bool)
	for _, cell := range cells {
		for sub := range h.buckets[cell] {
			seen[sub] = true
		}
	}
	h.mu.RUnlock()

	delivered := 0
	for sub := range seen {
		if sub.send(msg) {
			delivered++
		}
	}
	return delivered
}

// CleanupStale drops subscribers whose queue is closed or that have been
// idle past the hub's threshold, returning the removed set.
func (h *Hub) CleanupStale() []*Subscriber {
	cutoff := time.Now().Add(-h.idleTimeout)

	h.mu.RLock()
	stale := make(map[*Subscriber]bool)
	for _, bucket := range h.buckets {
		for sub := range bucket {
			if sub.isClosed() || sub.idleSince(cutoff) {
				stale[sub] = true
			}
		}
	}
	h.mu.RUnlock()

	removed := make([]*Subscriber, 0, len(stale))
	for sub := range stale {
		h.Remove(sub)
		removed = append(removed, sub)
	}
	if len(removed) > 0 {
		log.Printf("[Hub] Reaped %d stale subscribers", len(removed))
	}
	return removed
}

// TotalConnections counts distinct subscribers across all buckets.
func (h *Hub) TotalConnections() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	seen := make(map[*Subscriber]bool)
	for _, bucket := range h.buckets {
		for sub := range bucket {
			seen[sub] = true
		}
	}
	return len(seen)
}

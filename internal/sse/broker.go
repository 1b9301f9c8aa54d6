// Package sse implements a Server-Sent Events broker for board change notifications.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"
)

// Event types sent to clients.
const (
	EventTierUpdated    = "tier.updated"
	EventTierDeleted    = "tier.deleted"
	EventTiersReordered = "tiers.reordered"
	// EventBoardChanged is a coalesced hint for clients that simply re-fetch the board.
	EventBoardChanged = "board.changed"
)

// Event represents an SSE event to broadcast. A non-empty UserID limits
// delivery to clients subscribed for that user (or for everyone).
type Event struct {
	Type   string `json:"type"`
	UserID string `json:"-"`
	Data   any    `json:"data"`
}

// TierChange describes a change to one tier.
type TierChange struct {
	UserID    string   `json:"userId,omitempty"`
	TierID    string   `json:"tierId,omitempty"`
	ShareCode string   `json:"shareCode,omitempty"`
	TierIDs   []string `json:"tierIds,omitempty"`
}

type subscription struct {
	ch     chan []byte
	userID string
}

// Broker manages SSE client connections and broadcasts events.
//
// A single internal event loop owns the client set and the board.changed
// throttle timestamp. Public methods talk to it over channels.
type Broker struct {
	boardMin time.Duration

	subscribeCh   chan subscription
	unsubscribeCh chan chan []byte
	publishCh     chan Event
	countReqCh    chan chan int

	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// NewBroker creates a broker that emits at most one board.changed per boardThrottle.
func NewBroker(boardThrottle time.Duration) *Broker {
	if boardThrottle <= 0 {
		boardThrottle = 2 * time.Second
	}

	b := &Broker{
		boardMin:      boardThrottle,
		subscribeCh:   make(chan subscription),
		unsubscribeCh: make(chan chan []byte),
		publishCh:     make(chan Event, 256),
		countReqCh:    make(chan chan int),
		stopCh:        make(chan struct{}),
		stopped:       make(chan struct{}),
	}

	go b.run()
	return b
}

func (b *Broker) run() {
	defer close(b.stopped)

	clients := make(map[chan []byte]string)
	var lastBoard time.Time

	broadcast := func(event Event) {
		payload, err := json.Marshal(event.Data)
		if err != nil {
			return
		}
		raw := []byte(fmt.Sprintf("event: %s\ndata: %s\n\n", event.Type, payload))

		for ch, userID := range clients {
			if event.UserID != "" && userID != "" && userID != event.UserID {
				continue
			}
			select {
			case ch <- raw:
			default:
				// Slow client; drop rather than block the loop.
			}
		}
	}

	for {
		select {
		case <-b.stopCh:
			for ch := range clients {
				close(ch)
			}
			return

		case sub := <-b.subscribeCh:
			clients[sub.ch] = sub.userID

		case ch := <-b.unsubscribeCh:
			if _, ok := clients[ch]; ok {
				delete(clients, ch)
				close(ch)
			}

		case event := <-b.publishCh:
			broadcast(event)
			if event.Type == EventBoardChanged {
				continue
			}
			now := time.Now()
			if now.Sub(lastBoard) >= b.boardMin {
				lastBoard = now
				broadcast(Event{Type: EventBoardChanged, UserID: event.UserID, Data: map[string]string{}})
			}

		case resp := <-b.countReqCh:
			resp <- len(clients)
		}
	}
}

// Close gracefully stops the broker loop and closes all client channels.
func (b *Broker) Close() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.stopCh)
	}
	<-b.stopped
}

// Subscribe adds a client interested in userID ("" means every user) and returns its channel.
func (b *Broker) Subscribe(userID string) chan []byte {
	ch := make(chan []byte, 64)
	if b.closed.Load() {
		close(ch)
		return ch
	}

	select {
	case b.subscribeCh <- subscription{ch: ch, userID: userID}:
	case <-b.stopped:
		close(ch)
	}

	return ch
}

// Unsubscribe removes a client and closes its channel.
func (b *Broker) Unsubscribe(ch chan []byte) {
	if b.closed.Load() {
		return
	}
	select {
	case b.unsubscribeCh <- ch:
	case <-b.stopped:
	}
}

// ClientCount returns the number of connected clients.
func (b *Broker) ClientCount() int {
	if b.closed.Load() {
		return 0
	}

	resp := make(chan int, 1)
	select {
	case b.countReqCh <- resp:
	case <-b.stopped:
		return 0
	}

	select {
	case n := <-resp:
		return n
	case <-b.stopped:
		return 0
	}
}

// Publish sends an event to the matching clients.
func (b *Broker) Publish(event Event) {
	if b.closed.Load() {
		return
	}
	select {
	case b.publishCh <- event:
	case <-b.stopped:
	}
}

// TierUpdated announces an upsert of a user or shared tier.
func (b *Broker) TierUpdated(userID, tierID, shareCode string) {
	b.Publish(Event{Type: EventTierUpdated, UserID: userID,
		Data: TierChange{UserID: userID, TierID: tierID, ShareCode: shareCode}})
}

// TierDeleted announces the removal of a tier, keyed by id or share code.
func (b *Broker) TierDeleted(userID, key string) {
	b.Publish(Event{Type: EventTierDeleted, UserID: userID,
		Data: TierChange{UserID: userID, TierID: key}})
}

// TiersReordered announces a new tier order for a user.
func (b *Broker) TiersReordered(userID string, tierIDs []string) {
	b.Publish(Event{Type: EventTiersReordered, UserID: userID,
		Data: TierChange{UserID: userID, TierIDs: tierIDs}})
}

// ServeHTTP is the SSE endpoint handler (GET /api/events[?userId=]).
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch := b.Subscribe(r.URL.Query().Get("userId"))
	defer b.Unsubscribe(ch)

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			_, _ = w.Write(msg)
			flusher.Flush()
		}
	}
}

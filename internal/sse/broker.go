// Package sse implements a Server-Sent Events broker for library change
// notifications.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"
)

// Event types emitted by the broker.
const (
	TypeModuleAdded    = "module.added"
	TypeModuleUpdated  = "module.updated"
	TypeModuleRemoved  = "module.removed"
	TypeLibraryChanged = "library.changed"
)

// Event represents an SSE event to broadcast.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

type moduleEventReq struct {
	kind     string
	filename string
}

type subscribeReq struct {
	ch    chan []byte
	after uint64
}

// historySize bounds the replay buffer. It does not exceed a client's
// channel buffer, so a replay never drops messages.
const historySize = 64

type message struct {
	id  uint64
	raw []byte
}

// Broker manages SSE client connections and broadcasts events.
//
// A single internal event loop owns the client set, the event sequence
// number, the replay history and the library.changed throttle. Public
// methods talk to the loop over channels.
type Broker struct {
	changedMin time.Duration
	keepAlive  time.Duration

	subscribeCh   chan subscribeReq
	unsubscribeCh chan chan []byte
	publishCh     chan Event
	moduleEventCh chan moduleEventReq
	countReqCh    chan chan int

	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// NewBroker creates a broker that emits at most one library.changed event
// per throttle interval.
func NewBroker(throttle time.Duration) *Broker {
	if throttle <= 0 {
		throttle = 2 * time.Second
	}

	b := &Broker{
		changedMin:    throttle,
		keepAlive:     30 * time.Second,
		subscribeCh:   make(chan subscribeReq),
		unsubscribeCh: make(chan chan []byte),
		publishCh:     make(chan Event, 256),
		moduleEventCh: make(chan moduleEventReq, 256),
		countReqCh:    make(chan chan int),
		stopCh:        make(chan struct{}),
		stopped:       make(chan struct{}),
	}

	go b.run()
	return b
}

func (b *Broker) run() {
	defer close(b.stopped)

	clients := make(map[chan []byte]struct{})
	var lastChanged time.Time
	var seq uint64
	history := make([]message, 0, historySize)

	broadcast := func(event Event) {
		payload, err := json.Marshal(event.Data)
		if err != nil {
			return
		}
		seq++
		raw := fmt.Appendf(nil, "id: %d\nevent: %s\ndata: %s\n\n", seq, event.Type, payload)
		if len(history) == historySize {
			history = append(history[:0], history[1:]...)
		}
		history = append(history, message{id: seq, raw: raw})

		for ch := range clients {
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

		case req := <-b.subscribeCh:
			clients[req.ch] = struct{}{}
			if req.after == 0 {
				continue
			}
			for _, m := range history {
				if m.id > req.after {
					req.ch <- m.raw
				}
			}

		case ch := <-b.unsubscribeCh:
			if _, ok := clients[ch]; ok {
				delete(clients, ch)
				close(ch)
			}

		case event := <-b.publishCh:
			broadcast(event)

		case req := <-b.moduleEventCh:
			data := map[string]string{"filename": req.filename}
			switch req.kind {
			case "added":
				broadcast(Event{Type: TypeModuleAdded, Data: data})
			case "updated":
				broadcast(Event{Type: TypeModuleUpdated, Data: data})
			case "removed":
				broadcast(Event{Type: TypeModuleRemoved, Data: data})
			default:
				continue
			}

			now := time.Now()
			if now.Sub(lastChanged) >= b.changedMin {
				lastChanged = now
				broadcast(Event{Type: TypeLibraryChanged, Data: map[string]string{}})
			}

		case resp := <-b.countReqCh:
			resp <- len(clients)
		}
	}
}

// Close gracefully stops broker loop and closes all client channels.
func (b *Broker) Close() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.stopCh)
	}
	<-b.stopped
}

// Subscribe adds a new client and returns its channel.
func (b *Broker) Subscribe() chan []byte {
	return b.SubscribeFrom(0)
}

// SubscribeFrom adds a new client that first receives the buffered events
// with an id greater than after. Zero means no replay.
func (b *Broker) SubscribeFrom(after uint64) chan []byte {
	ch := make(chan []byte, historySize)
	if b.closed.Load() {
		close(ch)
		return ch
	}

	select {
	case b.subscribeCh <- subscribeReq{ch: ch, after: after}:
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

// Publish sends an event to all connected clients.
func (b *Broker) Publish(event Event) {
	if b.closed.Load() {
		return
	}
	select {
	case b.publishCh <- event:
	case <-b.stopped:
	}
}

// PublishModuleEvent publishes a module change followed by a throttled
// library.changed event. kind is "added", "updated" or "removed"; other
// kinds are ignored. Its signature matches library.EventCallback.
func (b *Broker) PublishModuleEvent(kind, filename string) {
	if b.closed.Load() {
		return
	}
	select {
	case b.moduleEventCh <- moduleEventReq{kind: kind, filename: filename}:
	case <-b.stopped:
	}
}

// ServeHTTP is the SSE endpoint handler (GET /api/events). Idle connections
// receive a comment line every keep-alive interval. A reconnecting client
// that sends Last-Event-ID gets the buffered events it missed.
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

	after, _ := strconv.ParseUint(r.Header.Get("Last-Event-ID"), 10, 64)
	ch := b.SubscribeFrom(after)
	defer b.Unsubscribe(ch)

	ping := time.NewTicker(b.keepAlive)
	defer ping.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ping.C:
			_, _ = w.Write([]byte(": ping\n\n"))
			flusher.Flush()
		case msg, ok := <-ch:
			if !ok {
				return
			}
			_, _ = w.Write(msg)
			flusher.Flush()
		}
	}
}

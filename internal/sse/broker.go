// Package sse streams tag and document changes to browsers as Server-Sent
// Events.
package sse

import (
	"bytes"
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"
)

// Event types broadcast to clients.
const (
	TypeTagCreated      = "tag.created"
	TypeAliasRegistered = "alias.registered"
	TypeDocumentTagged  = "document.tagged"
	TypeDocumentIndexed = "document.indexed"
	TypeDocumentRemoved = "document.removed"
	TypeStoreReloaded   = "store.reloaded"
	TypeTagsUpdated     = "tags.updated"
)

const (
	defaultThrottle = 2 * time.Second
	clientBuffer    = 64
	opsQueue        = 256
)

// keepAlive is how often an idle stream gets a comment line.
var keepAlive = 25 * time.Second

// Event is one message on the stream.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// frame renders the event in text/event-stream form.
func (e Event) frame() ([]byte, error) {
	data, err := json.Marshal(e.Data)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	buf.Grow(len(e.Type) + len(data) + 16)
	buf.WriteString("event: ")
	buf.WriteString(e.Type)
	buf.WriteString("\ndata: ")
	buf.Write(data)
	buf.WriteString("\n\n")
	return buf.Bytes(), nil
}

// Summary is the payload of tags.updated: how many changes it covers.
type Summary struct {
	Changes int `json:"changes"`
}

// hub is the state owned by the broker loop.
type hub struct {
	throttle time.Duration
	clients  map[chan []byte]struct{}
	pending  int
	lastSent time.Time
}

func (h *hub) send(e Event) {
	raw, err := e.frame()
	if err != nil {
		return
	}
	for ch := range h.clients {
		select {
		case ch <- raw:
		default: // full buffer, client misses this one
		}
	}
}

// change forwards e and emits tags.updated at most once per throttle window.
func (h *hub) change(e Event, now time.Time) {
	h.send(e)
	h.pending++
	if now.Sub(h.lastSent) < h.throttle {
		return
	}
	h.send(Event{Type: TypeTagsUpdated, Data: Summary{Changes: h.pending}})
	h.pending = 0
	h.lastSent = now
}

func (h *hub) closeAll() {
	for ch := range h.clients {
		delete(h.clients, ch)
		close(ch)
	}
}

// Broker fans events out to SSE clients. All client bookkeeping runs as
// closures on a single goroutine.
type Broker struct {
	ops     chan func(*hub)
	quit    chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// NewBroker starts a broker that emits at most one tags.updated per
// throttle interval.
func NewBroker(throttle time.Duration) *Broker {
	if throttle <= 0 {
		throttle = defaultThrottle
	}
	b := &Broker{
		ops:     make(chan func(*hub), opsQueue),
		quit:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	h := &hub{throttle: throttle, clients: map[chan []byte]struct{}{}}
	go b.loop(h)
	return b
}

func (b *Broker) loop(h *hub) {
	defer close(b.stopped)
	for {
		select {
		case <-b.quit:
			h.closeAll()
			return
		case op := <-b.ops:
			op(h)
		}
	}
}

// submit queues op. It reports false once the broker is shut down.
func (b *Broker) submit(op func(*hub)) bool {
	if b.closed.Load() {
		return false
	}
	select {
	case b.ops <- op:
		return true
	case <-b.stopped:
		return false
	}
}

// Close stops the loop and closes every client channel. Safe to call twice.
func (b *Broker) Close() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.quit)
	}
	<-b.stopped
}

// Subscribe registers a client. The channel is closed on Unsubscribe or
// Close.
func (b *Broker) Subscribe() chan []byte {
	ch := make(chan []byte, clientBuffer)
	added := make(chan struct{})
	if !b.submit(func(h *hub) {
		h.clients[ch] = struct{}{}
		close(added)
	}) {
		close(ch)
		return ch
	}
	select {
	case <-added:
	case <-b.stopped:
		// closeAll may have missed ch if the loop quit first.
		select {
		case <-added:
		default:
			close(ch)
		}
	}
	return ch
}

// Unsubscribe drops a client and closes its channel.
func (b *Broker) Unsubscribe(ch chan []byte) {
	b.submit(func(h *hub) {
		if _, ok := h.clients[ch]; ok {
			delete(h.clients, ch)
			close(ch)
		}
	})
}

// ClientCount returns the number of connected clients.
func (b *Broker) ClientCount() int {
	resp := make(chan int, 1)
	if !b.submit(func(h *hub) { resp <- len(h.clients) }) {
		return 0
	}
	select {
	case n := <-resp:
		return n
	case <-b.stopped:
		return 0
	}
}

// Publish sends event to every client as is.
func (b *Broker) Publish(event Event) {
	b.submit(func(h *hub) { h.send(event) })
}

// PublishChange sends event and, throttled, a tags.updated summary counting
// the changes since the previous one.
func (b *Broker) PublishChange(event Event) {
	b.submit(func(h *hub) { h.change(event, time.Now()) })
}

// ServeHTTP streams events to one client (GET /api/events).
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	ticker := time.NewTicker(keepAlive)
	defer ticker.Stop()

	for {
		var msg []byte
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			msg = []byte(": keep-alive\n\n")
		case m, open := <-ch:
			if !open {
				return
			}
			msg = m
		}
		if _, err := w.Write(msg); err != nil {
			return
		}
		flusher.Flush()
	}
}

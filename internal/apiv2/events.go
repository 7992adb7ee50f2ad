package apiv2

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/rs/zerolog/log"
)

// subscriberQueueSize bounds the per-connection backlog; once a slow
// client's queue is full, newly published batches are dropped for it
// rather than blocking Publish (§4.8: the stream is best-effort).
const subscriberQueueSize = 32

// ChangeEvent is one CLIP v2 event-stream entry. The production of real
// change records is future work (§9 Open Question (c)); the type and
// transport exist so a caller can wire one in without touching the
// broker or the handler.
type ChangeEvent struct {
	Type string     `json:"type"`
	ID   string     `json:"id"`
	Data []resource `json:"data"`
}

// EventBroker fans published change events out to every subscribed SSE
// connection.
type EventBroker struct {
	mu   sync.Mutex
	subs map[chan []ChangeEvent]struct{}
}

// NewEventBroker constructs an empty broker.
func NewEventBroker() *EventBroker {
	return &EventBroker{subs: map[chan []ChangeEvent]struct{}{}}
}

// Subscribe registers a new listener, returning its delivery channel and
// an unsubscribe func the caller must invoke when done.
func (b *EventBroker) Subscribe() (ch chan []ChangeEvent, unsubscribe func()) {
	ch = make(chan []ChangeEvent, subscriberQueueSize)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()
	return ch, func() {
		b.mu.Lock()
		if _, ok := b.subs[ch]; ok {
			delete(b.subs, ch)
			close(ch)
		}
		b.mu.Unlock()
	}
}

// Publish fans a batch of change events out to every current subscriber.
// A subscriber whose queue is full is dropped for this batch rather than
// blocking the publisher.
func (b *EventBroker) Publish(events []ChangeEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs {
		select {
		case ch <- events:
		default:
			log.Debug().Msg("clip v2 event subscriber queue full, dropping batch")
		}
	}
}

// handleEventStream implements GET /eventstream/clip/v2 (§4.8): an SSE
// keep-alive scaffold starting with a `: hi` comment, then JSON arrays
// of change records as they're published.
func (a *API) handleEventStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeClipError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	if _, err := w.Write([]byte(": hi\n\n")); err != nil {
		return
	}
	flusher.Flush()

	ch, unsubscribe := a.events.Subscribe()
	defer unsubscribe()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case batch, ok := <-ch:
			if !ok {
				return
			}
			payload, err := json.Marshal(batch)
			if err != nil {
				continue
			}
			if _, err := w.Write([]byte("data: ")); err != nil {
				return
			}
			if _, err := w.Write(payload); err != nil {
				return
			}
			if _, err := w.Write([]byte("\n\n")); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

package web

import (
	"sync"

	"github.com/classmark/classmark/internal/session"
)

// Feed fans attendance events out to SSE subscribers. Slow clients
// lose events rather than block the pipeline.
type Feed struct {
	mu        sync.Mutex
	listeners map[chan session.Event]struct{}
}

// NewFeed creates an empty feed.
func NewFeed() *Feed {
	return &Feed{listeners: make(map[chan session.Event]struct{})}
}

// Publish delivers an event to every current subscriber.
func (f *Feed) Publish(ev session.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for ch := range f.listeners {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Subscribe registers a listener channel. The caller must Unsubscribe
// when done.
func (f *Feed) Subscribe() chan session.Event {
	ch := make(chan session.Event, 16)
	f.mu.Lock()
	f.listeners[ch] = struct{}{}
	f.mu.Unlock()
	return ch
}

// Unsubscribe removes and closes a listener channel.
func (f *Feed) Unsubscribe(ch chan session.Event) {
	f.mu.Lock()
	if _, ok := f.listeners[ch]; ok {
		delete(f.listeners, ch)
		close(ch)
	}
	f.mu.Unlock()
}

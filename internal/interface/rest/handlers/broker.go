package handlers

import (
	"sync"
)

type listener[T any] struct {
	id string
	ch chan T
}

// broker is a simple utility struct to manage subscriptions.
// it is used to fan events out to multiple listeners.
// it is thread safe.
type broker[T any] struct {
	lock      *sync.Mutex
	listeners []*listener[T]
}

func newBroker[T any]() *broker[T] {
	return &broker[T]{
		lock:      &sync.Mutex{},
		listeners: make([]*listener[T], 0),
	}
}

func (h *broker[T]) pushListener(l *listener[T]) {
	h.lock.Lock()
	defer h.lock.Unlock()

	h.listeners = append(h.listeners, l)
}

func (h *broker[T]) removeListener(id string) {
	h.lock.Lock()
	defer h.lock.Unlock()

	for i, listener := range h.listeners {
		if listener.id == id {
			close(listener.ch)
			h.listeners = append(h.listeners[:i], h.listeners[i+1:]...)
			return
		}
	}
}

// broadcast delivers the event without blocking: a listener that cannot
// keep up misses the event rather than stalling the others.
func (h *broker[T]) broadcast(event T) {
	h.lock.Lock()
	defer h.lock.Unlock()

	for _, listener := range h.listeners {
		select {
		case listener.ch <- event:
		default:
		}
	}
}

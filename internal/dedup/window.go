// Package dedup suppresses reprocessing of messages the transport redelivers.
package dedup

import (
	"container/list"
	"sync"
)

// DefaultCapacity is the number of identifiers remembered when none is given.
const DefaultCapacity = 1000

// Window is a bounded, insertion-ordered set of message identifiers.
// Once full, recording a new identifier evicts the oldest one. Checking an
// identifier never refreshes its position.
type Window struct {
	mu       sync.Mutex
	seen     map[string]*list.Element
	order    *list.List // oldest at front
	capacity int
}

// New creates a Window holding at most capacity identifiers.
func New(capacity int) *Window {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Window{
		seen:     make(map[string]*list.Element, capacity),
		order:    list.New(),
		capacity: capacity,
	}
}

// Seen reports whether id was already recorded and records it if not.
// The check and the insert happen under one lock, so two concurrent
// deliveries of the same id cannot both observe false.
// Empty ids are never recorded.
func (w *Window) Seen(id string) bool {
	if id == "" {
		return false
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if _, ok := w.seen[id]; ok {
		return true
	}

	if w.order.Len() >= w.capacity {
		w.evictOldest()
	}
	w.seen[id] = w.order.PushBack(id)
	return false
}

// Len returns the number of identifiers currently remembered.
func (w *Window) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.order.Len()
}

// evictOldest must be called with mu held.
func (w *Window) evictOldest() {
	front := w.order.Front()
	if front == nil {
		return
	}
	id, _ := front.Value.(string)
	w.order.Remove(front)
	delete(w.seen, id)
}

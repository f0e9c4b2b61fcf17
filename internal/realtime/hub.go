// Package realtime pushes committed store changes to snapshot subscribers.
package realtime

import (
	"log/slog"
	"sync"
)

// Collection names used in change notifications.
const (
	CollectionUsers    = "users"
	CollectionProjects = "projects"
	CollectionTasks    = "tasks"
	CollectionComments = "comments"
	CollectionActivity = "activity_logs"
)

// Op describes what happened to a document.
type Op string

const (
	OpCreated Op = "created"
	OpUpdated Op = "updated"
	OpDeleted Op = "deleted"
)

// Change identifies a single committed document write.
type Change struct {
	Collection string `json:"collection"`
	Op         Op     `json:"op"`
	ID         string `json:"id"`
}

type listener struct {
	collections map[string]struct{}
	notify      chan struct{}
}

func (l *listener) wants(changes []Change) bool {
	for _, c := range changes {
		if _, ok := l.collections[c.Collection]; ok {
			return true
		}
	}
	return false
}

// Hub fans change notifications out to listeners. Notifications coalesce:
// a listener that has not yet consumed the previous signal gets no second one.
type Hub struct {
	mu        sync.RWMutex
	nextID    int
	listeners map[int]*listener
	forward   func([]Change)
	logger    *slog.Logger
}

// NewHub creates an empty hub.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{listeners: make(map[int]*listener), logger: logger}
}

// Publish delivers changes to local listeners and to the forwarder, if any.
func (h *Hub) Publish(changes ...Change) {
	if len(changes) == 0 {
		return
	}
	h.Deliver(changes...)

	h.mu.RLock()
	forward := h.forward
	h.mu.RUnlock()
	if forward != nil {
		forward(changes)
	}
}

// Deliver notifies local listeners only.
func (h *Hub) Deliver(changes ...Change) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, l := range h.listeners {
		if !l.wants(changes) {
			continue
		}
		select {
		case l.notify <- struct{}{}:
		default:
		}
	}
}

// SetForwarder installs fn to receive every locally published batch.
func (h *Hub) SetForwarder(fn func([]Change)) {
	h.mu.Lock()
	h.forward = fn
	h.mu.Unlock()
}

func (h *Hub) listen(collections []string) (int, <-chan struct{}) {
	l := &listener{
		collections: make(map[string]struct{}, len(collections)),
		notify:      make(chan struct{}, 1),
	}
	for _, c := range collections {
		l.collections[c] = struct{}{}
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextID++
	h.listeners[h.nextID] = l
	return h.nextID, l.notify
}

func (h *Hub) unlisten(id int) {
	h.mu.Lock()
	delete(h.listeners, id)
	h.mu.Unlock()
}

// Listeners returns the number of active listeners.
func (h *Hub) Listeners() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.listeners)
}

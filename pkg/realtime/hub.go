// Package realtime fans Postgres table-change notifications out to in-process subscribers.
package realtime

import (
	"sort"
	"sync"
)

// Handler is called with the name of the table that changed
type Handler func(table string)

// Hub is a goroutine-safe registry of per-table change subscribers
type Hub struct {
	mu     sync.RWMutex
	nextID uint64
	subs   map[string]map[uint64]Handler
}

// NewHub creates an empty hub
func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[uint64]Handler)}
}

// Subscribe registers fn for changes to table and returns a function that
// removes the registration. Calling the returned function more than once is a no-op.
func (h *Hub) Subscribe(table string, fn Handler) (unsubscribe func()) {
	h.mu.Lock()
	h.nextID++
	id := h.nextID
	if h.subs[table] == nil {
		h.subs[table] = make(map[uint64]Handler)
	}
	h.subs[table][id] = fn
	h.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			delete(h.subs[table], id)
			if len(h.subs[table]) == 0 {
				delete(h.subs, table)
			}
		})
	}
}

// Notify calls every subscriber of table. Handlers run on the caller's
// goroutine and must not block.
func (h *Hub) Notify(table string) {
	h.mu.RLock()
	handlers := make([]Handler, 0, len(h.subs[table]))
	for _, fn := range h.subs[table] {
		handlers = append(handlers, fn)
	}
	h.mu.RUnlock()

	for _, fn := range handlers {
		fn(table)
	}
}

// NotifyAll calls every subscriber of every table, in table name order
func (h *Hub) NotifyAll() {
	h.mu.RLock()
	tables := make([]string, 0, len(h.subs))
	for table := range h.subs {
		tables = append(tables, table)
	}
	h.mu.RUnlock()

	sort.Strings(tables)
	for _, table := range tables {
		h.Notify(table)
	}
}

// Subscribers returns the number of live subscriptions for table
func (h *Hub) Subscribers(table string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[table])
}

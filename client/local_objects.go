package client

import (
	"sync"
	"weak"

	"github.com/muntasirraihan/orleans/grain"
	"github.com/muntasirraihan/orleans/message"
)

// weakHandle abstracts a weakly held callback object. The registry never
// extends the target's lifetime: Value fails once the object has been
// collected even though the registry entry may still exist.
type weakHandle interface {
	Value() (any, bool)
}

// typedWeakHandle adapts weak.Pointer[T] to the untyped registry.
type typedWeakHandle[T any] struct {
	p weak.Pointer[T]
}

func newWeakHandle[T any](obj *T) weakHandle {
	return typedWeakHandle[T]{p: weak.Make(obj)}
}

// Value resolves the target, reporting false once it has been collected.
func (h typedWeakHandle[T]) Value() (any, bool) {
	v := h.p.Value()
	if v == nil {
		return nil, false
	}
	return v, true
}

// localObjectData is one locally registered callback object: the weak
// target, its invoker, and its serial message queue.
//
// queue and running are guarded by mu (the per-object lock). At any
// instant at most one drain task is active per object; running is true
// exactly while one is.
type localObjectData struct {
	grainID grain.ID
	target  weakHandle
	invoker grain.Invoker

	mu      sync.Mutex
	queue   []*message.Message
	running bool
}

// enqueue appends a message and reports whether the caller must schedule a
// drain (the queue was idle).
func (lo *localObjectData) enqueue(msg *message.Message) (mustSchedule bool) {
	lo.mu.Lock()
	defer lo.mu.Unlock()
	lo.queue = append(lo.queue, msg)
	if !lo.running {
		lo.running = true
		return true
	}
	return false
}

// dequeue pops the next message, clearing running when the queue is empty.
func (lo *localObjectData) dequeue() (*message.Message, bool) {
	lo.mu.Lock()
	defer lo.mu.Unlock()
	if len(lo.queue) == 0 {
		lo.running = false
		return nil, false
	}
	msg := lo.queue[0]
	lo.queue[0] = nil
	lo.queue = lo.queue[1:]
	return msg, true
}

// abandon clears the queue and running flag after the target is collected.
func (lo *localObjectData) abandon() {
	lo.mu.Lock()
	defer lo.mu.Unlock()
	lo.queue = nil
	lo.running = false
}

// localObjectRegistry maps local grain ids to callback object entries.
//
// All structural mutations happen under mu. The registry lock is never
// held across per-object lock acquisitions or user callbacks.
type localObjectRegistry struct {
	mu      sync.RWMutex
	entries map[grain.ID]*localObjectData
}

func newLocalObjectRegistry() *localObjectRegistry {
	return &localObjectRegistry{
		entries: make(map[grain.ID]*localObjectData),
	}
}

// Insert installs an entry for a freshly allocated grain id.
func (r *localObjectRegistry) Insert(data *localObjectData) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[data.grainID] = data
}

// Remove deletes an entry, reporting whether it existed.
func (r *localObjectRegistry) Remove(id grain.ID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[id]; !ok {
		return false
	}
	delete(r.entries, id)
	return true
}

// Lookup finds an entry in O(1).
func (r *localObjectRegistry) Lookup(id grain.ID) (*localObjectData, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	data, ok := r.entries[id]
	return data, ok
}

// Len returns the number of registered local objects.
func (r *localObjectRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

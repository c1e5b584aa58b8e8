// Package livesync keeps screen-local collections in step with the
// realtime change feed.
package livesync

import (
	"sync"

	"github.com/google/uuid"
)

// Collection is an ordered, keyed list shared between a screen and the
// goroutines feeding it. Listeners run after every change, outside the
// lock, with a copy of the items.
type Collection[T any] struct {
	mu        sync.RWMutex
	items     []T
	key       func(T) uuid.UUID
	listeners map[int]func([]T)
	nextID    int
}

func NewCollection[T any](key func(T) uuid.UUID) *Collection[T] {
	return &Collection[T]{key: key, listeners: map[int]func([]T){}}
}

// Items returns a copy in display order.
func (c *Collection[T]) Items() []T {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]T(nil), c.items...)
}

func (c *Collection[T]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

func (c *Collection[T]) Get(id uuid.UUID) (T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if i := c.indexLocked(id); i >= 0 {
		return c.items[i], true
	}
	var zero T
	return zero, false
}

func (c *Collection[T]) Has(id uuid.UUID) bool {
	_, ok := c.Get(id)
	return ok
}

// OnChange registers fn and returns its removal.
func (c *Collection[T]) OnChange(fn func([]T)) func() {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.listeners[id] = fn
	c.mu.Unlock()
	return func() {
		c.mu.Lock()
		delete(c.listeners, id)
		c.mu.Unlock()
	}
}

// Replace swaps in items wholesale.
func (c *Collection[T]) Replace(items []T) {
	c.mu.Lock()
	c.items = append([]T(nil), items...)
	c.notifyUnlock()
}

// Prepend puts item first unless its key is already present.
func (c *Collection[T]) Prepend(item T) bool {
	c.mu.Lock()
	if c.indexLocked(c.key(item)) >= 0 {
		c.mu.Unlock()
		return false
	}
	c.items = append([]T{item}, c.items...)
	c.notifyUnlock()
	return true
}

func (c *Collection[T]) Remove(id uuid.UUID) bool {
	c.mu.Lock()
	i := c.indexLocked(id)
	if i < 0 {
		c.mu.Unlock()
		return false
	}
	c.items = append(c.items[:i:i], c.items[i+1:]...)
	c.notifyUnlock()
	return true
}

// Update applies fn to the item with id in place.
func (c *Collection[T]) Update(id uuid.UUID, fn func(*T)) bool {
	c.mu.Lock()
	i := c.indexLocked(id)
	if i < 0 {
		c.mu.Unlock()
		return false
	}
	items := append([]T(nil), c.items...)
	fn(&items[i])
	c.items = items
	c.notifyUnlock()
	return true
}

func (c *Collection[T]) indexLocked(id uuid.UUID) int {
	for i, it := range c.items {
		if c.key(it) == id {
			return i
		}
	}
	return -1
}

// notifyUnlock releases c.mu and then calls the listeners.
func (c *Collection[T]) notifyUnlock() {
	items := append([]T(nil), c.items...)
	fns := make([]func([]T), 0, len(c.listeners))
	for _, fn := range c.listeners {
		fns = append(fns, fn)
	}
	c.mu.Unlock()
	for _, fn := range fns {
		fn(items)
	}
}

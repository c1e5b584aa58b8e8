package livesync

import (
	"context"
	"errors"
	"sync"

	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"
)

var ErrMutationInFlight = errors.New("livesync: mutation already in flight for this item")

// Notifier tells the user that a mutation was rolled back.
type Notifier interface {
	Notify(action string, err error)
}

type NotifierFunc func(action string, err error)

func (f NotifierFunc) Notify(action string, err error) { f(action, err) }

// Optimistic applies mutations to a collection before the remote commit
// and restores the prior state when the commit fails. At most one
// mutation per item runs at a time.
type Optimistic[T any] struct {
	Items    *Collection[T]
	Notifier Notifier

	mu       sync.Mutex
	inflight map[uuid.UUID]bool
}

func NewOptimistic[T any](items *Collection[T], n Notifier) *Optimistic[T] {
	return &Optimistic[T]{Items: items, Notifier: n, inflight: map[uuid.UUID]bool{}}
}

func (o *Optimistic[T]) InFlight(id uuid.UUID) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.inflight[id]
}

func (o *Optimistic[T]) acquire(id uuid.UUID) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.inflight[id] {
		return false
	}
	o.inflight[id] = true
	return true
}

func (o *Optimistic[T]) release(id uuid.UUID) {
	o.mu.Lock()
	delete(o.inflight, id)
	o.mu.Unlock()
}

// Remove drops id locally and then runs commit.
func (o *Optimistic[T]) Remove(ctx context.Context, id uuid.UUID, commit func(context.Context) error) error {
	return o.run(ctx, "remove", id, func() { o.Items.Remove(id) }, commit)
}

// Update applies fn to id locally and then runs commit.
func (o *Optimistic[T]) Update(ctx context.Context, id uuid.UUID, fn func(*T), commit func(context.Context) error) error {
	return o.run(ctx, "update", id, func() { o.Items.Update(id, fn) }, commit)
}

func (o *Optimistic[T]) run(ctx context.Context, action string, id uuid.UUID, apply func(), commit func(context.Context) error) error {
	if !o.acquire(id) {
		return ErrMutationInFlight
	}
	defer o.release(id)

	snapshot := o.Items.Items()
	apply()

	if err := commit(ctx); err != nil {
		o.Items.Replace(snapshot)
		log.Warnf("[LiveSync] %s %s rolled back: %v", action, id, err)
		if o.Notifier != nil {
			o.Notifier.Notify(action, err)
		}
		return err
	}
	return nil
}

// Package screens holds headless controllers for each screen of the
// marketplace app. They own screen state and expose it to a renderer.
package screens

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"

	"github.com/Windi-Fikriyansyah/planmarket/internal/client"
	"github.com/Windi-Fikriyansyah/planmarket/internal/livesync"
	"github.com/Windi-Fikriyansyah/planmarket/internal/realtime"
)

var (
	ErrSignInRequired = errors.New("sign in to continue")
	ErrWrongRole      = errors.New("not available for this account")
	ErrNotPending     = errors.New("request is no longer pending")
)

// Feed is the realtime connection as screens use it. *client.Realtime
// implements it.
type Feed interface {
	livesync.Subscriber
	Join(ctx context.Context, room string, fn client.RoomHandler) (*client.Room, error)
}

// live is the common body of a list screen backed by a synchronizer.
type live[T any] struct {
	sync *livesync.Synchronizer[T]
}

func newLive[T any](feed livesync.Subscriber, cfg livesync.Config[T]) live[T] {
	return live[T]{sync: livesync.New(feed, cfg)}
}

// Open loads the list and starts live updates.
func (l live[T]) Open(ctx context.Context) error {
	return l.sync.Mount(ctx)
}

// Reload is the retry and pull-to-refresh action.
func (l live[T]) Reload(ctx context.Context) error {
	if !l.sync.Mounted() {
		return l.sync.Mount(ctx)
	}
	return l.sync.Refresh(ctx)
}

func (l live[T]) Close() {
	l.sync.Unmount()
}

func (l live[T]) Items() []T {
	return l.sync.Items.Items()
}

func (l live[T]) OnChange(fn func([]T)) func() {
	return l.sync.Items.OnChange(fn)
}

func anyChange(table string) realtime.Topic {
	return realtime.Topic{Table: table, Events: []realtime.EventType{realtime.AnyEvent}}
}

func decode[T any](raw json.RawMessage) (T, error) {
	var v T
	err := json.Unmarshal(raw, &v)
	return v, err
}

func contractKey(c client.Contract) uuid.UUID { return c.ID }
func messageKey(m client.Message) uuid.UUID   { return m.ID }

package livesync

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"

	"github.com/Windi-Fikriyansyah/planmarket/internal/realtime"
)

var (
	ErrAlreadyMounted = errors.New("livesync: already mounted")
	ErrNotMounted     = errors.New("livesync: not mounted")
)

// Subscriber opens a change subscription and returns its cancel func.
// *client.Realtime implements it.
type Subscriber interface {
	Subscribe(ctx context.Context, topic realtime.Topic, fn func(realtime.Change)) (func(), error)
}

// Mode is how a synchronizer folds a change into its collection.
type Mode int

const (
	// Refetch reloads the whole collection on any change.
	Refetch Mode = iota
	// Prepend decodes inserted rows and puts them first.
	Prepend
)

type Config[T any] struct {
	Topic realtime.Topic
	Fetch func(ctx context.Context) ([]T, error)
	Key   func(T) uuid.UUID
	Mode  Mode
	// OnError receives failures of change-triggered refetches.
	OnError func(error)
}

// Synchronizer owns one subscription and one collection for a screen.
// Mount subscribes before fetching; changes that land while a fetch is in
// flight are held back and folded in after the snapshot.
type Synchronizer[T any] struct {
	Items *Collection[T]

	sub Subscriber
	cfg Config[T]

	mu      sync.Mutex
	mounted bool
	// gen changes on every mount and unmount; work started under an
	// older gen is discarded.
	gen    uint64
	seq    uint64
	busy   int
	buffer []realtime.Change
	cancel func()
	ctx    context.Context
	stop   context.CancelFunc
}

func New[T any](sub Subscriber, cfg Config[T]) *Synchronizer[T] {
	return &Synchronizer[T]{
		Items: NewCollection(cfg.Key),
		sub:   sub,
		cfg:   cfg,
	}
}

func (s *Synchronizer[T]) Mounted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mounted
}

// Mount opens the subscription and loads the snapshot. A subscription
// failure is logged and the screen runs without live updates. A fetch
// failure empties the collection, unmounts and is returned.
func (s *Synchronizer[T]) Mount(ctx context.Context) error {
	s.mu.Lock()
	if s.mounted {
		s.mu.Unlock()
		return ErrAlreadyMounted
	}
	s.mounted = true
	s.gen++
	g := s.gen
	s.buffer = nil
	s.busy = 0
	s.ctx, s.stop = context.WithCancel(context.Background())
	seq := s.beginLocked()
	s.mu.Unlock()

	cancel, err := s.sub.Subscribe(ctx, s.cfg.Topic, func(ch realtime.Change) { s.onEvent(g, ch) })
	if err != nil {
		log.Warnf("[LiveSync] subscribe %s: %v", s.cfg.Topic.Table, err)
	}

	s.mu.Lock()
	if s.gen != g {
		s.mu.Unlock()
		if cancel != nil {
			cancel()
		}
		return nil
	}
	s.cancel = cancel
	s.mu.Unlock()

	if err := s.load(ctx, g, seq); err != nil {
		s.Items.Replace(nil)
		s.unmount(g)
		return err
	}
	return nil
}

// Refresh reloads the collection.
func (s *Synchronizer[T]) Refresh(ctx context.Context) error {
	s.mu.Lock()
	if !s.mounted {
		s.mu.Unlock()
		return ErrNotMounted
	}
	g := s.gen
	seq := s.beginLocked()
	s.mu.Unlock()
	return s.load(ctx, g, seq)
}

// Unmount cancels the subscription and any fetch in flight. Safe to call
// more than once.
func (s *Synchronizer[T]) Unmount() {
	s.mu.Lock()
	g := s.gen
	s.mu.Unlock()
	s.unmount(g)
}

func (s *Synchronizer[T]) unmount(g uint64) {
	s.mu.Lock()
	if !s.mounted || s.gen != g {
		s.mu.Unlock()
		return
	}
	s.mounted = false
	s.gen++
	cancel, stop := s.cancel, s.stop
	s.cancel, s.stop = nil, nil
	s.buffer = nil
	s.busy = 0
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if stop != nil {
		stop()
	}
}

func (s *Synchronizer[T]) beginLocked() uint64 {
	s.seq++
	s.busy++
	return s.seq
}

// load fetches and applies the snapshot for fetch seq. Results of an
// unmounted generation or a superseded fetch are dropped.
func (s *Synchronizer[T]) load(ctx context.Context, g, seq uint64) error {
	items, err := s.cfg.Fetch(ctx)

	s.mu.Lock()
	if s.gen != g {
		s.mu.Unlock()
		return nil
	}
	if seq != s.seq {
		s.busy--
		s.mu.Unlock()
		return nil
	}
	if err != nil {
		s.busy--
		if s.busy == 0 {
			s.buffer = nil
		}
		s.mu.Unlock()
		return err
	}
	s.mu.Unlock()

	s.Items.Replace(items)
	return s.drain(ctx, g)
}

// drain folds buffered changes into the fresh snapshot, then lets new
// changes through.
func (s *Synchronizer[T]) drain(ctx context.Context, g uint64) error {
	for {
		s.mu.Lock()
		if s.gen != g {
			s.mu.Unlock()
			return nil
		}
		pending := s.buffer
		s.buffer = nil
		if len(pending) == 0 {
			s.busy--
			s.mu.Unlock()
			return nil
		}
		if s.cfg.Mode == Refetch {
			s.busy--
			seq := s.beginLocked()
			s.mu.Unlock()
			return s.load(ctx, g, seq)
		}
		s.mu.Unlock()

		for _, ch := range pending {
			s.apply(ch)
		}
	}
}

func (s *Synchronizer[T]) onEvent(g uint64, ch realtime.Change) {
	s.mu.Lock()
	if s.gen != g {
		s.mu.Unlock()
		return
	}
	if s.busy > 0 {
		s.buffer = append(s.buffer, ch)
		s.mu.Unlock()
		return
	}
	if s.cfg.Mode == Refetch {
		seq := s.beginLocked()
		ctx := s.ctx
		s.mu.Unlock()
		go func() {
			if err := s.load(ctx, g, seq); err != nil && ctx.Err() == nil {
				s.report(err)
			}
		}()
		return
	}
	s.mu.Unlock()
	s.apply(ch)
}

// apply handles prepend mode: inserts go first, a key already present is
// dropped, other change types are ignored.
func (s *Synchronizer[T]) apply(ch realtime.Change) {
	if ch.Type != realtime.Insert || len(ch.Record) == 0 {
		return
	}
	var item T
	if err := json.Unmarshal(ch.Record, &item); err != nil {
		log.Warnf("[LiveSync] decode %s record: %v", ch.Table, err)
		return
	}
	s.Items.Prepend(item)
}

func (s *Synchronizer[T]) report(err error) {
	log.Warnf("[LiveSync] refetch %s: %v", s.cfg.Topic.Table, err)
	if s.cfg.OnError != nil {
		s.cfg.OnError(err)
	}
}

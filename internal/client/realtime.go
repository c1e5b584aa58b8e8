package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/fasthttp/websocket"
	"github.com/gofiber/fiber/v2/log"

	"github.com/Windi-Fikriyansyah/planmarket/internal/realtime"
)

// ErrClosed is returned for operations on a closed realtime connection.
var ErrClosed = errors.New("realtime connection closed")

// RoomHandler receives broadcasts from other members of a room.
type RoomHandler func(event string, payload json.RawMessage)

// Realtime is one WebSocket connection to the change feed. Change and
// broadcast handlers run on the connection's read goroutine.
type Realtime struct {
	URL    string
	Dialer *websocket.Dialer

	mu      sync.Mutex
	conn    *websocket.Conn
	seq     uint64
	subs    map[string]func(realtime.Change)
	rooms   map[string]RoomHandler
	waiting map[string]chan error
	done    chan struct{}

	writeMu sync.Mutex
}

// RealtimeURL turns an API base URL into the WebSocket endpoint URL.
func RealtimeURL(baseURL string) string {
	u := strings.TrimRight(baseURL, "/")
	switch {
	case strings.HasPrefix(u, "https://"):
		u = "wss://" + strings.TrimPrefix(u, "https://")
	case strings.HasPrefix(u, "http://"):
		u = "ws://" + strings.TrimPrefix(u, "http://")
	}
	return u + "/ws/realtime"
}

func NewRealtime(wsURL string) *Realtime {
	return &Realtime{
		URL:     wsURL,
		Dialer:  websocket.DefaultDialer,
		subs:    map[string]func(realtime.Change){},
		rooms:   map[string]RoomHandler{},
		waiting: map[string]chan error{},
	}
}

// Connect dials the feed. An empty token connects as a guest.
func (r *Realtime) Connect(ctx context.Context, token string) error {
	target := r.URL
	if token != "" {
		target += "?token=" + url.QueryEscape(token)
	}
	conn, resp, err := r.Dialer.DialContext(ctx, target, nil)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("dial realtime: %w (status %d)", err, resp.StatusCode)
		}
		return fmt.Errorf("dial realtime: %w", err)
	}

	r.mu.Lock()
	r.conn = conn
	r.done = make(chan struct{})
	done := r.done
	r.mu.Unlock()

	go r.readLoop(conn, done)
	return nil
}

// Done is closed when the connection ends.
func (r *Realtime) Done() <-chan struct{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.done
}

func (r *Realtime) Close() error {
	r.mu.Lock()
	conn := r.conn
	r.mu.Unlock()
	if conn == nil {
		return nil
	}
	return conn.Close()
}

// Subscriptions is the number of live change subscriptions.
func (r *Realtime) Subscriptions() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.subs)
}

func (r *Realtime) nextRef() string {
	r.seq++
	return strconv.FormatUint(r.seq, 10)
}

func (r *Realtime) readLoop(conn *websocket.Conn, done chan struct{}) {
	defer func() {
		r.mu.Lock()
		for ref, ch := range r.waiting {
			ch <- ErrClosed
			delete(r.waiting, ref)
		}
		if r.conn == conn {
			r.conn = nil
		}
		r.mu.Unlock()
		close(done)
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var f realtime.ServerFrame
		if err := json.Unmarshal(data, &f); err != nil {
			log.Warnf("[Realtime] bad frame: %v", err)
			continue
		}
		r.dispatch(f)
	}
}

func (r *Realtime) dispatch(f realtime.ServerFrame) {
	switch f.Type {
	case realtime.FrameAck, realtime.FramePong, realtime.FrameError:
		var err error
		if f.Type == realtime.FrameError {
			err = errors.New(f.Message)
		}
		r.mu.Lock()
		ch, ok := r.waiting[f.Ref]
		delete(r.waiting, f.Ref)
		r.mu.Unlock()
		if ok {
			ch <- err
		} else if err != nil {
			log.Warnf("[Realtime] server error: %s", f.Message)
		}

	case realtime.FrameChange:
		r.mu.Lock()
		fn := r.subs[f.Ref]
		r.mu.Unlock()
		if fn != nil && f.Change != nil {
			fn(*f.Change)
		}

	case realtime.FrameBroadcast:
		r.mu.Lock()
		fn := r.rooms[f.Room]
		r.mu.Unlock()
		if fn != nil {
			fn(f.Event, f.Payload)
		}
	}
}

func (r *Realtime) write(f realtime.ClientFrame) error {
	r.mu.Lock()
	conn := r.conn
	r.mu.Unlock()
	if conn == nil {
		return ErrClosed
	}
	b, err := json.Marshal(f)
	if err != nil {
		return err
	}
	r.writeMu.Lock()
	defer r.writeMu.Unlock()
	return conn.WriteMessage(websocket.TextMessage, b)
}

// request sends f with a fresh ref and waits for its ack. register runs
// under the lock with the ref before anything is sent. When ctx ends after
// the frame went out, withdraw (if set) is sent so the server drops what
// it may still apply.
func (r *Realtime) request(ctx context.Context, f realtime.ClientFrame, register func(ref string), withdraw func(ref string) realtime.ClientFrame) (string, error) {
	ch := make(chan error, 1)
	r.mu.Lock()
	if r.conn == nil {
		r.mu.Unlock()
		return "", ErrClosed
	}
	f.Ref = r.nextRef()
	r.waiting[f.Ref] = ch
	if register != nil {
		register(f.Ref)
	}
	done := r.done
	r.mu.Unlock()

	forget := func() {
		r.mu.Lock()
		delete(r.waiting, f.Ref)
		r.mu.Unlock()
	}

	if err := r.write(f); err != nil {
		forget()
		return f.Ref, err
	}
	select {
	case err := <-ch:
		return f.Ref, err
	case <-done:
		return f.Ref, ErrClosed
	case <-ctx.Done():
		forget()
		if withdraw != nil {
			if err := r.write(withdraw(f.Ref)); err != nil && !errors.Is(err, ErrClosed) {
				log.Warnf("[Realtime] withdraw %s %s: %v", f.Op, f.Ref, err)
			}
		}
		return f.Ref, ctx.Err()
	}
}

// Ping round-trips a ping frame.
func (r *Realtime) Ping(ctx context.Context) error {
	_, err := r.request(ctx, realtime.ClientFrame{Op: realtime.OpPing}, nil, nil)
	return err
}

// Subscribe registers fn for changes matching topic and returns the
// function that cancels it. The handler is in place before the server
// acknowledges, so no change sent after the ack is missed. Cancel is
// idempotent and never blocks.
func (r *Realtime) Subscribe(ctx context.Context, topic realtime.Topic, fn func(realtime.Change)) (func(), error) {
	f := realtime.ClientFrame{
		Op:     realtime.OpSubscribe,
		Table:  topic.Table,
		Filter: topic.Filter,
		Events: topic.Events,
	}
	ref, err := r.request(ctx, f,
		func(ref string) { r.subs[ref] = fn },
		func(ref string) realtime.ClientFrame {
			return realtime.ClientFrame{Op: realtime.OpUnsubscribe, Ref: ref}
		})
	if err != nil {
		r.mu.Lock()
		delete(r.subs, ref)
		r.mu.Unlock()
		return nil, fmt.Errorf("subscribe %s: %w", topic.Table, err)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			delete(r.subs, ref)
			r.mu.Unlock()
			if err := r.write(realtime.ClientFrame{Op: realtime.OpUnsubscribe, Ref: ref}); err != nil && !errors.Is(err, ErrClosed) {
				log.Warnf("[Realtime] unsubscribe %s: %v", ref, err)
			}
		})
	}, nil
}

// Room is a joined broadcast room.
type Room struct {
	rt   *Realtime
	name string
	once sync.Once
}

func (rm *Room) Name() string { return rm.name }

// Join enters room; fn receives broadcasts from the other members.
func (r *Realtime) Join(ctx context.Context, room string, fn RoomHandler) (*Room, error) {
	_, err := r.request(ctx, realtime.ClientFrame{Op: realtime.OpJoin, Room: room},
		func(string) { r.rooms[room] = fn },
		func(string) realtime.ClientFrame {
			return realtime.ClientFrame{Op: realtime.OpLeave, Room: room}
		})
	if err != nil {
		r.mu.Lock()
		delete(r.rooms, room)
		r.mu.Unlock()
		return nil, fmt.Errorf("join %s: %w", room, err)
	}
	return &Room{rt: r, name: room}, nil
}

// Broadcast sends an ephemeral event to the room without waiting.
func (rm *Room) Broadcast(ctx context.Context, event string, payload interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return rm.rt.write(realtime.ClientFrame{Op: realtime.OpBroadcast, Room: rm.name, Event: event, Payload: b})
}

// Leave is idempotent.
func (rm *Room) Leave() {
	rm.once.Do(func() {
		rm.rt.mu.Lock()
		delete(rm.rt.rooms, rm.name)
		rm.rt.mu.Unlock()
		_ = rm.rt.write(realtime.ClientFrame{Op: realtime.OpLeave, Room: rm.name})
	})
}

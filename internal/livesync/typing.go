package livesync

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Windi-Fikriyansyah/planmarket/internal/clock"
)

const (
	TypingEvent = "typing"
	// SignalInterval is the minimum gap between two outgoing signals.
	SignalInterval = 2 * time.Second
	// TypingTimeout clears the indicator after the last signal received.
	TypingTimeout = 3 * time.Second
)

type TypingPayload struct {
	SenderID uuid.UUID `json:"sender_id"`
}

// Broadcaster sends an ephemeral event to a room. *client.Room
// implements it.
type Broadcaster interface {
	Broadcast(ctx context.Context, event string, payload interface{}) error
}

// TypingSignaler sends at most one typing event per SignalInterval,
// on the leading edge.
type TypingSignaler struct {
	room   Broadcaster
	sender uuid.UUID
	clock  clock.Clock

	mu   sync.Mutex
	last time.Time
	sent bool
}

func NewTypingSignaler(room Broadcaster, sender uuid.UUID, clk clock.Clock) *TypingSignaler {
	return &TypingSignaler{room: room, sender: sender, clock: clk}
}

// Signal reports whether an event went out.
func (s *TypingSignaler) Signal(ctx context.Context) (bool, error) {
	s.mu.Lock()
	now := s.clock.Now()
	if s.sent && now.Sub(s.last) < SignalInterval {
		s.mu.Unlock()
		return false, nil
	}
	s.sent = true
	s.last = now
	s.mu.Unlock()

	if err := s.room.Broadcast(ctx, TypingEvent, TypingPayload{SenderID: s.sender}); err != nil {
		return false, err
	}
	return true, nil
}

// TypingIndicator shows whether the other party is typing. Each signal
// re-arms the clear timer.
type TypingIndicator struct {
	self     uuid.UUID
	clock    clock.Clock
	onChange func(bool)

	mu     sync.Mutex
	typing bool
	timer  clock.Timer
	// gen counts signals; a timer only clears the signal it was armed for.
	gen    uint64
	closed bool
}

// NewTypingIndicator ignores signals from self. onChange may be nil.
func NewTypingIndicator(self uuid.UUID, clk clock.Clock, onChange func(bool)) *TypingIndicator {
	return &TypingIndicator{self: self, clock: clk, onChange: onChange}
}

func (t *TypingIndicator) Typing() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.typing
}

func (t *TypingIndicator) Received(sender uuid.UUID) {
	if sender == t.self {
		return
	}
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	changed := !t.typing
	t.typing = true
	t.gen++
	g := t.gen
	if t.timer != nil {
		t.timer.Stop()
	}
	t.timer = t.clock.AfterFunc(TypingTimeout, func() { t.expire(g) })
	t.mu.Unlock()

	if changed {
		t.notify(true)
	}
}

// HandleBroadcast decodes room broadcasts; it fits client.RoomHandler.
func (t *TypingIndicator) HandleBroadcast(event string, payload json.RawMessage) {
	if event != TypingEvent {
		return
	}
	var p TypingPayload
	if err := json.Unmarshal(payload, &p); err != nil || p.SenderID == uuid.Nil {
		return
	}
	t.Received(p.SenderID)
}

func (t *TypingIndicator) expire(g uint64) {
	t.mu.Lock()
	if t.closed || !t.typing || t.gen != g {
		t.mu.Unlock()
		return
	}
	t.typing = false
	t.mu.Unlock()
	t.notify(false)
}

func (t *TypingIndicator) notify(v bool) {
	if t.onChange != nil {
		t.onChange(v)
	}
}

// Close stops the timer; later signals are ignored.
func (t *TypingIndicator) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	t.typing = false
	if t.timer != nil {
		t.timer.Stop()
	}
}

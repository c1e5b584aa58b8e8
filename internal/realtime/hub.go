package realtime

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"
)

// Publisher fans changes and room messages out to connections.
type Publisher interface {
	Publish(ctx context.Context, ev Event)
	Broadcast(ctx context.Context, msg RoomMessage)
}

type subscription struct {
	table  string
	filter *Filter
	events map[EventType]bool
}

func (s *subscription) wants(ch Change, row map[string]interface{}) bool {
	if s.table != ch.Table {
		return false
	}
	if len(s.events) > 0 && !s.events[AnyEvent] && !s.events[ch.Type] {
		return false
	}
	return s.filter.Match(row)
}

// Client is one realtime connection registered with the hub.
type Client struct {
	ID     string
	Viewer Viewer
	Send   chan []byte

	mu    sync.Mutex
	subs  map[string]*subscription
	rooms map[string]bool
}

func NewClient(viewer Viewer) *Client {
	return &Client{
		ID:     uuid.NewString(),
		Viewer: viewer,
		Send:   make(chan []byte, 256),
		subs:   map[string]*subscription{},
		rooms:  map[string]bool{},
	}
}

func (c *Client) subscribe(ref string, sub *subscription) {
	c.mu.Lock()
	c.subs[ref] = sub
	c.mu.Unlock()
}

func (c *Client) unsubscribe(ref string) {
	c.mu.Lock()
	delete(c.subs, ref)
	c.mu.Unlock()
}

func (c *Client) join(room string) {
	c.mu.Lock()
	c.rooms[room] = true
	c.mu.Unlock()
}

func (c *Client) leave(room string) {
	c.mu.Lock()
	delete(c.rooms, room)
	c.mu.Unlock()
}

func (c *Client) inRoom(room string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rooms[room]
}

// matching returns the refs of subscriptions that want ch.
func (c *Client) matching(ch Change, row map[string]interface{}) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var refs []string
	for ref, s := range c.subs {
		if s.wants(ch, row) {
			refs = append(refs, ref)
		}
	}
	return refs
}

func (c *Client) subscriptionCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.subs)
}

type reply struct {
	client *Client
	frame  ServerFrame
}

// Hub owns the registered clients. All writes to a client's Send channel
// happen on the Run goroutine.
type Hub struct {
	clients    map[string]*Client
	events     chan Event
	rooms      chan RoomMessage
	replies    chan reply
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	mu         sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		events:     make(chan Event, 256),
		rooms:      make(chan RoomMessage, 256),
		replies:    make(chan reply, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

func (h *Hub) RegisterClient(client *Client) {
	select {
	case h.register <- client:
	case <-h.done:
	}
}

func (h *Hub) UnregisterClient(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Publish delivers ev to local subscribers.
func (h *Hub) Publish(_ context.Context, ev Event) {
	select {
	case h.events <- ev:
	case <-h.done:
	}
}

// Broadcast delivers msg to the local members of msg.Room except its sender.
func (h *Hub) Broadcast(_ context.Context, msg RoomMessage) {
	select {
	case h.rooms <- msg:
	case <-h.done:
	}
}

func (h *Hub) reply(c *Client, f ServerFrame) {
	select {
	case h.replies <- reply{client: c, frame: f}:
	case <-h.done:
	}
}

// ClientCount is the number of registered connections.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// SubscriptionCount sums the open subscriptions across connections.
func (h *Hub) SubscriptionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, c := range h.clients {
		n += c.subscriptionCount()
	}
	return n
}

func (h *Hub) Run(ctx context.Context) {
	defer func() {
		h.mu.Lock()
		for id, c := range h.clients {
			delete(h.clients, id)
			close(c.Send)
		}
		h.mu.Unlock()
		close(h.done)
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.ID] = client
			h.mu.Unlock()
			log.Infof("[Realtime] Client registered: %s (user %s, role %s)", client.ID, client.Viewer.UserID, client.Viewer.Role)

		case client := <-h.unregister:
			h.mu.Lock()
			h.drop(client)
			h.mu.Unlock()

		case ev := <-h.events:
			row := ev.Change.row()
			h.mu.Lock()
			for _, c := range h.clients {
				if !c.Viewer.CanSee(ev.Visibility) {
					continue
				}
				for _, ref := range c.matching(ev.Change, row) {
					ch := ev.Change
					h.deliver(c, ServerFrame{Type: FrameChange, Ref: ref, Change: &ch})
				}
			}
			h.mu.Unlock()

		case msg := <-h.rooms:
			h.mu.Lock()
			for id, c := range h.clients {
				if id == msg.SenderID || !c.inRoom(msg.Room) {
					continue
				}
				h.deliver(c, ServerFrame{Type: FrameBroadcast, Room: msg.Room, Event: msg.Event, Payload: msg.Payload})
			}
			h.mu.Unlock()

		case r := <-h.replies:
			h.mu.Lock()
			if cur, ok := h.clients[r.client.ID]; ok && cur == r.client {
				h.deliver(r.client, r.frame)
			}
			h.mu.Unlock()
		}
	}
}

// deliver never blocks; a client whose buffer is full is dropped.
// Callers hold h.mu.
func (h *Hub) deliver(c *Client, f ServerFrame) {
	b, err := json.Marshal(f)
	if err != nil {
		log.Errorf("[Realtime] Error marshaling frame: %v", err)
		return
	}
	select {
	case c.Send <- b:
	default:
		log.Warnf("[Realtime] Dropping slow client %s", c.ID)
		h.drop(c)
	}
}

func (h *Hub) drop(c *Client) {
	if cur, ok := h.clients[c.ID]; ok && cur == c {
		delete(h.clients, c.ID)
		close(c.Send)
		log.Infof("[Realtime] Client unregistered: %s", c.ID)
	}
}

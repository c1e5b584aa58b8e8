package realtime

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/gofiber/fiber/v2/log"
	"github.com/gofiber/websocket/v2"
)

// Conn is the part of a websocket connection the hub needs, so the
// connection loop does not depend on a concrete transport.
type Conn interface {
	ReadMessage() (int, []byte, error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// RoomAuthorizer decides whether viewer may join room.
type RoomAuthorizer func(ctx context.Context, viewer Viewer, room string) bool

// Session serves one connection: it registers the client, pumps outgoing
// frames and handles incoming operations until the connection ends.
type Session struct {
	Hub       *Hub
	Publisher Publisher
	CanJoin   RoomAuthorizer
}

func (s *Session) Serve(ctx context.Context, conn Conn, viewer Viewer) {
	client := NewClient(viewer)
	s.Hub.RegisterClient(client)
	defer func() {
		s.Hub.UnregisterClient(client)
		_ = conn.Close()
	}()

	go func() {
		for msg := range client.Send {
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				log.Warnf("[Realtime] Write error for %s: %v", client.ID, err)
				_ = conn.Close()
				return
			}
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var f ClientFrame
		if err := json.Unmarshal(data, &f); err != nil {
			s.Hub.reply(client, ServerFrame{Type: FrameError, Message: "invalid frame"})
			continue
		}
		s.handle(ctx, client, f)
	}
}

func (s *Session) publisher() Publisher {
	if s.Publisher != nil {
		return s.Publisher
	}
	return s.Hub
}

func (s *Session) handle(ctx context.Context, c *Client, f ClientFrame) {
	fail := func(msg string) {
		s.Hub.reply(c, ServerFrame{Type: FrameError, Ref: f.Ref, Message: msg})
	}
	ack := func() {
		s.Hub.reply(c, ServerFrame{Type: FrameAck, Ref: f.Ref})
	}

	switch f.Op {
	case OpSubscribe:
		if f.Ref == "" {
			fail("ref required")
			return
		}
		if !knownTables[f.Table] {
			fail("unknown table: " + f.Table)
			return
		}
		filter, err := ParseFilter(f.Filter)
		if err != nil {
			fail(err.Error())
			return
		}
		events := map[EventType]bool{}
		for _, e := range f.Events {
			if e == "" {
				continue
			}
			events[EventType(strings.ToUpper(string(e)))] = true
		}
		c.subscribe(f.Ref, &subscription{table: f.Table, filter: filter, events: events})
		ack()

	case OpUnsubscribe:
		c.unsubscribe(f.Ref)
		ack()

	case OpJoin:
		if f.Room == "" {
			fail("room required")
			return
		}
		if s.CanJoin != nil && !s.CanJoin(ctx, c.Viewer, f.Room) {
			fail("forbidden")
			return
		}
		c.join(f.Room)
		ack()

	case OpLeave:
		c.leave(f.Room)
		ack()

	case OpBroadcast:
		if !c.inRoom(f.Room) {
			fail("not joined: " + f.Room)
			return
		}
		s.publisher().Broadcast(ctx, RoomMessage{Room: f.Room, Event: f.Event, Payload: f.Payload, SenderID: c.ID})
		if f.Ref != "" {
			ack()
		}

	case OpPing:
		s.Hub.reply(c, ServerFrame{Type: FramePong, Ref: f.Ref})

	default:
		fail("unknown op: " + f.Op)
	}
}

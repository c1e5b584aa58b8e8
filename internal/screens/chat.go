package screens

import (
	"context"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"

	"github.com/Windi-Fikriyansyah/planmarket/internal/client"
	"github.com/Windi-Fikriyansyah/planmarket/internal/clock"
	"github.com/Windi-Fikriyansyah/planmarket/internal/livesync"
	"github.com/Windi-Fikriyansyah/planmarket/internal/realtime"
)

// ChatRoom names the broadcast room of a contract's chat.
func ChatRoom(contractID uuid.UUID) string {
	return "chat-" + contractID.String()
}

var ErrEmptyMessage = errors.New("message is empty")

// Chat is the conversation of one contract request. Messages are newest
// first; a sent message shows up when the feed echoes it back.
type Chat struct {
	live[client.Message]

	chats      client.ChatGateway
	feed       Feed
	contractID uuid.UUID
	self       uuid.UUID
	clock      clock.Clock

	room      *client.Room
	signaler  *livesync.TypingSignaler
	indicator *livesync.TypingIndicator
}

// NewChat builds the screen; onTyping, when set, follows the other
// party's typing state.
func NewChat(chats client.ChatGateway, feed Feed, contractID, self uuid.UUID, clk clock.Clock, onTyping func(bool)) *Chat {
	if clk == nil {
		clk = clock.Real()
	}
	return &Chat{
		chats:      chats,
		feed:       feed,
		contractID: contractID,
		self:       self,
		clock:      clk,
		indicator:  livesync.NewTypingIndicator(self, clk, onTyping),
		live: newLive(feed, livesync.Config[client.Message]{
			Topic: realtime.Topic{
				Table:  realtime.TableMessages,
				Filter: (&realtime.Filter{Column: "contract_id", Value: contractID.String()}).String(),
				Events: []realtime.EventType{realtime.Insert},
			},
			Mode: livesync.Prepend,
			Key:  messageKey,
			Fetch: func(ctx context.Context) ([]client.Message, error) {
				return chats.Messages(ctx, contractID)
			},
		}),
	}
}

// Open loads the messages and joins the typing room. A room that cannot
// be joined only disables typing.
func (c *Chat) Open(ctx context.Context) error {
	if err := c.live.Open(ctx); err != nil {
		return err
	}
	room, err := c.feed.Join(ctx, ChatRoom(c.contractID), c.indicator.HandleBroadcast)
	if err != nil {
		log.Warnf("[Screens] join %s: %v", ChatRoom(c.contractID), err)
		return nil
	}
	c.room = room
	c.signaler = livesync.NewTypingSignaler(room, c.self, c.clock)
	return nil
}

func (c *Chat) Close() {
	c.live.Close()
	if c.room != nil {
		c.room.Leave()
		c.room = nil
	}
	c.indicator.Close()
}

func (c *Chat) Send(ctx context.Context, content string) error {
	content = strings.TrimSpace(content)
	if content == "" {
		return ErrEmptyMessage
	}
	_, err := c.chats.SendMessage(ctx, c.contractID, content)
	return err
}

// Typing is called on every keystroke; the signal is throttled.
func (c *Chat) Typing(ctx context.Context) {
	if c.signaler == nil {
		return
	}
	if _, err := c.signaler.Signal(ctx); err != nil {
		log.Warnf("[Screens] typing signal: %v", err)
	}
}

// OtherTyping reports whether the other party is typing.
func (c *Chat) OtherTyping() bool {
	return c.indicator.Typing()
}

// Conversations lists every contract with its latest message, for
// advisors. New messages reorder it.
type Conversations struct {
	live[client.Conversation]
}

func NewConversations(chats client.ChatGateway, feed livesync.Subscriber) *Conversations {
	return &Conversations{
		live: newLive(feed, livesync.Config[client.Conversation]{
			Topic: realtime.Topic{Table: realtime.TableMessages, Events: []realtime.EventType{realtime.Insert}},
			Mode:  livesync.Refetch,
			Key:   func(c client.Conversation) uuid.UUID { return c.Contract.ID },
			Fetch: chats.Conversations,
		}),
	}
}

// MessageNotifier watches every message the user can see and reports
// those sent by someone else.
type MessageNotifier struct {
	feed   livesync.Subscriber
	self   uuid.UUID
	notify func(client.Message)

	cancel func()
}

func NewMessageNotifier(feed livesync.Subscriber, self uuid.UUID, notify func(client.Message)) *MessageNotifier {
	return &MessageNotifier{feed: feed, self: self, notify: notify}
}

func (n *MessageNotifier) Start(ctx context.Context) error {
	if n.cancel != nil {
		return livesync.ErrAlreadyMounted
	}
	topic := realtime.Topic{Table: realtime.TableMessages, Events: []realtime.EventType{realtime.Insert}}
	cancel, err := n.feed.Subscribe(ctx, topic, n.handle)
	if err != nil {
		return err
	}
	n.cancel = cancel
	return nil
}

func (n *MessageNotifier) handle(ch realtime.Change) {
	msg, err := decode[client.Message](ch.Record)
	if err != nil {
		log.Warnf("[Screens] decode message: %v", err)
		return
	}
	if msg.SenderID == n.self {
		return
	}
	n.notify(msg)
}

func (n *MessageNotifier) Stop() {
	if n.cancel != nil {
		n.cancel()
		n.cancel = nil
	}
}

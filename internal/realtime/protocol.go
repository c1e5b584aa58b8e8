package realtime

import (
	"encoding/json"
	"fmt"
)

// EventType is the kind of row change.
type EventType string

const (
	Insert EventType = "INSERT"
	Update EventType = "UPDATE"
	Delete EventType = "DELETE"
	// AnyEvent subscribes to every change type.
	AnyEvent EventType = "*"
)

// Tables published on the change feed.
const (
	TablePlans     = "plans"
	TableContracts = "contract_requests"
	TableMessages  = "chat_messages"
)

var knownTables = map[string]bool{
	TablePlans:     true,
	TableContracts: true,
	TableMessages:  true,
}

// Change is one row change as seen by subscribers.
type Change struct {
	Type   EventType       `json:"type"`
	Table  string          `json:"table"`
	Record json.RawMessage `json:"record,omitempty"`
	Old    json.RawMessage `json:"old_record,omitempty"`
}

// NewChange encodes record and old into a Change. Either may be nil.
func NewChange(typ EventType, table string, record, old interface{}) (Change, error) {
	ch := Change{Type: typ, Table: table}
	if record != nil {
		b, err := json.Marshal(record)
		if err != nil {
			return ch, fmt.Errorf("encode record: %w", err)
		}
		ch.Record = b
	}
	if old != nil {
		b, err := json.Marshal(old)
		if err != nil {
			return ch, fmt.Errorf("encode old record: %w", err)
		}
		ch.Old = b
	}
	return ch, nil
}

// row is the column view used for filter matching.
func (c Change) row() map[string]interface{} {
	raw := c.Record
	if c.Type == Delete || len(raw) == 0 {
		raw = c.Old
	}
	var m map[string]interface{}
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &m)
	}
	return m
}

// Event is a change plus the visibility it carries through the hub.
type Event struct {
	Change     Change     `json:"change"`
	Visibility Visibility `json:"visibility"`
}

// RoomMessage is an ephemeral broadcast inside a room.
type RoomMessage struct {
	Room    string          `json:"room"`
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
	// SenderID is the connection that sent it; it does not get an echo.
	SenderID string `json:"sender_id,omitempty"`
}

// Client operations.
const (
	OpSubscribe   = "subscribe"
	OpUnsubscribe = "unsubscribe"
	OpJoin        = "join"
	OpLeave       = "leave"
	OpBroadcast   = "broadcast"
	OpPing        = "ping"
)

// Server frame types.
const (
	FrameAck       = "ack"
	FrameError     = "error"
	FrameChange    = "change"
	FrameBroadcast = "broadcast"
	FramePong      = "pong"
)

// ClientFrame is sent by a connection to the server.
type ClientFrame struct {
	Op      string          `json:"op"`
	Ref     string          `json:"ref,omitempty"`
	Table   string          `json:"table,omitempty"`
	Filter  string          `json:"filter,omitempty"`
	Events  []EventType     `json:"events,omitempty"`
	Room    string          `json:"room,omitempty"`
	Event   string          `json:"event,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// ServerFrame is sent by the server to a connection.
type ServerFrame struct {
	Type    string          `json:"type"`
	Ref     string          `json:"ref,omitempty"`
	Message string          `json:"message,omitempty"`
	Change  *Change         `json:"change,omitempty"`
	Room    string          `json:"room,omitempty"`
	Event   string          `json:"event,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Topic selects the changes a subscription receives.
type Topic struct {
	Table  string
	Filter string
	Events []EventType
}

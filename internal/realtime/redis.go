package realtime

import (
	"context"
	"encoding/json"

	"github.com/gofiber/fiber/v2/log"
	"github.com/redis/go-redis/v9"

	"github.com/Windi-Fikriyansyah/planmarket/internal/config"
)

// RelayChannel carries changes and room messages between API instances.
const RelayChannel = "planmarket:realtime"

func NewRedis(cfg config.Config) *redis.Client {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	log.Infof("[Redis] Client created (addr: %s)", cfg.RedisAddr)
	return rdb
}

type relayMessage struct {
	Event *Event       `json:"event,omitempty"`
	Room  *RoomMessage `json:"room,omitempty"`
}

// RedisRelay publishes through Redis so every instance's hub sees every
// change. Each instance, this one included, delivers what it receives.
type RedisRelay struct {
	rdb     *redis.Client
	hub     *Hub
	channel string
}

func NewRedisRelay(rdb *redis.Client, hub *Hub) *RedisRelay {
	return &RedisRelay{rdb: rdb, hub: hub, channel: RelayChannel}
}

func (r *RedisRelay) Publish(ctx context.Context, ev Event) {
	if !r.send(ctx, relayMessage{Event: &ev}) {
		r.hub.Publish(ctx, ev)
	}
}

func (r *RedisRelay) Broadcast(ctx context.Context, msg RoomMessage) {
	if !r.send(ctx, relayMessage{Room: &msg}) {
		r.hub.Broadcast(ctx, msg)
	}
}

// send reports false when the message must be delivered locally instead.
func (r *RedisRelay) send(ctx context.Context, m relayMessage) bool {
	payload, err := json.Marshal(m)
	if err != nil {
		log.Errorf("[Realtime] Error marshaling relay message: %v", err)
		return false
	}
	if err := r.rdb.Publish(ctx, r.channel, payload).Err(); err != nil {
		log.Warnf("[Realtime] Redis publish failed, delivering locally: %v", err)
		return false
	}
	return true
}

// Run subscribes to the relay channel until ctx is done.
func (r *RedisRelay) Run(ctx context.Context) error {
	sub := r.rdb.Subscribe(ctx, r.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return err
	}
	log.Infof("[Realtime] Relay subscribed to %s", r.channel)

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			r.dispatch(ctx, msg.Payload)
		}
	}
}

func (r *RedisRelay) dispatch(ctx context.Context, payload string) {
	var m relayMessage
	if err := json.Unmarshal([]byte(payload), &m); err != nil {
		log.Warnf("[Realtime] Ignoring malformed relay message: %v", err)
		return
	}
	if m.Event != nil {
		r.hub.Publish(ctx, *m.Event)
	}
	if m.Room != nil {
		r.hub.Broadcast(ctx, *m.Room)
	}
}

// Package signaling relays WebRTC negotiation payloads between the
// broadcaster and individual viewers. The relay is deliberately ephemeral:
// losing its contents only degrades an in-flight negotiation, which recovers
// by re-publishing. It never touches the durable session record.
package signaling

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Relay is the transient keyed store + per-recipient channel used for
// negotiation payloads. *RedisRelay implements it; tests use an in-memory fake.
type Relay interface {
	StoreOffer(ctx context.Context, sessionID uuid.UUID, payload []byte, ttl time.Duration) error
	FetchOffer(ctx context.Context, sessionID uuid.UUID) ([]byte, error)
	StoreAnswer(ctx context.Context, sessionID, viewerID uuid.UUID, payload []byte, ttl time.Duration) error
	Announce(ctx context.Context, sessionID, targetID, from uuid.UUID, event string, payload []byte) error
}

// Envelope is the message published on a recipient channel.
type Envelope struct {
	Event string          `json:"event"`
	From  uuid.UUID       `json:"from"`
	Data  json.RawMessage `json:"data"`
	At    int64           `json:"at"`
}

func offerKey(sessionID uuid.UUID) string {
	return "signal:" + sessionID.String() + ":offer"
}

func answerKey(sessionID, viewerID uuid.UUID) string {
	return "signal:" + sessionID.String() + ":answer:" + viewerID.String()
}

func userChannel(sessionID, userID uuid.UUID) string {
	return "signal:" + sessionID.String() + ":to:" + userID.String()
}

// RedisRelay implements Relay on Redis: TTL-bound keys for offer/answer and
// pub/sub channels scoped to a single recipient.
type RedisRelay struct {
	client *redis.Client
	logger *zap.Logger
}

// NewRedisRelay creates a Redis-backed relay.
func NewRedisRelay(client *redis.Client, logger *zap.Logger) *RedisRelay {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisRelay{client: client, logger: logger}
}

// StoreOffer stores the broadcaster's offer, overwriting on renegotiation.
func (r *RedisRelay) StoreOffer(ctx context.Context, sessionID uuid.UUID, payload []byte, ttl time.Duration) error {
	return r.client.Set(ctx, offerKey(sessionID), payload, ttl).Err()
}

// FetchOffer returns the current offer, or nil when none is published.
func (r *RedisRelay) FetchOffer(ctx context.Context, sessionID uuid.UUID) ([]byte, error) {
	val, err := r.client.Get(ctx, offerKey(sessionID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetch offer: %w", err)
	}
	return val, nil
}

// StoreAnswer stores a viewer's answer keyed by (session, viewer).
func (r *RedisRelay) StoreAnswer(ctx context.Context, sessionID, viewerID uuid.UUID, payload []byte, ttl time.Duration) error {
	return r.client.Set(ctx, answerKey(sessionID, viewerID), payload, ttl).Err()
}

// Announce publishes an envelope on the recipient's channel. Delivery is
// at-most-once; WebRTC negotiation tolerates loss and reordering.
func (r *RedisRelay) Announce(ctx context.Context, sessionID, targetID, from uuid.UUID, event string, payload []byte) error {
	env := Envelope{Event: event, From: from, Data: payload, At: time.Now().Unix()}
	body, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return r.client.Publish(ctx, userChannel(sessionID, targetID), body).Err()
}

// SubscribeUser subscribes to a user's signaling channel within a session and
// invokes handler for each envelope. Returns a cancel function.
func (r *RedisRelay) SubscribeUser(sessionID, userID uuid.UUID, handler func(env Envelope)) (cancel func(), err error) {
	ctx, cancelCtx := context.WithCancel(context.Background())
	pubsub := r.client.Subscribe(ctx, userChannel(sessionID, userID))
	if _, err := pubsub.Receive(ctx); err != nil {
		cancelCtx()
		return nil, fmt.Errorf("subscribe: %w", err)
	}
	ch := pubsub.Channel()
	go func() {
		defer pubsub.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var env Envelope
				if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
					continue
				}
				handler(env)
			}
		}
	}()
	return func() { cancelCtx() }, nil
}

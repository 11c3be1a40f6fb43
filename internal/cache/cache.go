// Package cache pushes outbound game events to Redis. Delivery is fire
// and forget: a failed publish is logged and dropped, never surfaced to
// gameplay code.
package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const publishTimeout = 2 * time.Second

// Broadcaster is the outbound event sink consumed by the game service.
type Broadcaster interface {
	// PublishEvent pushes a single gameplay event (phase change, turn
	// result, cancellation) onto the session's channel.
	PublishEvent(sessionID uuid.UUID, event string, payload any)
	// PublishDigest pushes the periodic session digest.
	PublishDigest(sessionID uuid.UUID, payload any)
}

// Redis implements Broadcaster on a go-redis client. Events go to a
// pub/sub channel for live listeners and onto a capped list so polling
// clients can catch up.
type Redis struct {
	rdb *redis.Client
	log *logrus.Logger
}

// NewRedis connects a client and verifies it with a ping.
func NewRedis(ctx context.Context, addr string, log *logrus.Logger) (*Redis, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	return &Redis{rdb: rdb, log: log}, nil
}

// Close releases the client.
func (r *Redis) Close() error {
	return r.rdb.Close()
}

type envelope struct {
	Event     string    `json:"event"`
	SessionID uuid.UUID `json:"sessionId"`
	At        time.Time `json:"at"`
	Payload   any       `json:"payload,omitempty"`
}

func (r *Redis) publish(sessionID uuid.UUID, event string, payload any, list string, keep int64) {
	env := envelope{Event: event, SessionID: sessionID, At: time.Now().UTC(), Payload: payload}
	data, err := json.Marshal(env)
	if err != nil {
		r.log.WithError(err).WithField("session_id", sessionID).Error("marshal broadcast")
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		defer cancel()

		channel := "session:" + sessionID.String()
		if err := r.rdb.Publish(ctx, channel, data).Err(); err != nil {
			r.log.WithError(err).WithField("session_id", sessionID).Warn("publish broadcast")
		}
		pipe := r.rdb.Pipeline()
		pipe.LPush(ctx, channel+":"+list, data)
		pipe.LTrim(ctx, channel+":"+list, 0, keep-1)
		if _, err := pipe.Exec(ctx); err != nil {
			r.log.WithError(err).WithField("session_id", sessionID).Warn("append event backlog")
		}
	}()
}

func (r *Redis) PublishEvent(sessionID uuid.UUID, event string, payload any) {
	r.publish(sessionID, event, payload, "events", 256)
}

func (r *Redis) PublishDigest(sessionID uuid.UUID, payload any) {
	r.publish(sessionID, "digest", payload, "digests", 16)
}

// Nop discards every broadcast. Used when Redis is not configured.
type Nop struct{}

func (Nop) PublishEvent(uuid.UUID, string, any) {}
func (Nop) PublishDigest(uuid.UUID, any)        {}

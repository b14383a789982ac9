package recordstore

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Redis implements Store on a Redis backend. Each record is a hash
// holding the JSON value and a per-key revision counter; every write is
// published on a channel scoped to the record key, so subscribers only
// see traffic for the keys they watch.
type Redis struct {
	client *redis.Client
	prefix string
	buffer int
	logger *zap.Logger
}

// NewRedis constructs a Redis-backed store.
func NewRedis(client *redis.Client, prefix string, buffer int, logger *zap.Logger) *Redis {
	if prefix == "" {
		prefix = "records"
	}
	if buffer <= 0 {
		buffer = 16
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Redis{client: client, prefix: prefix, buffer: buffer, logger: logger}
}

func (r *Redis) dataKey(key string) string {
	return r.prefix + ":" + key
}

func (r *Redis) channel(key string) string {
	return r.prefix + ":events:" + key
}

// Get returns the current value for key.
func (r *Redis) Get(ctx context.Context, key string) ([]byte, error) {
	raw, err := r.client.HGet(ctx, r.dataKey(key), "value").Result()
	if err == redis.Nil {
		return nil, ErrKeyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("recordstore get %s: %w", key, err)
	}
	return []byte(raw), nil
}

// Set writes value under key and publishes the snapshot.
func (r *Redis) Set(ctx context.Context, key string, value []byte) error {
	return r.write(ctx, key, value)
}

// Update applies fn to the current value. The read-modify-write is not
// guarded; concurrent writers resolve last-write-wins as per the store
// contract.
func (r *Redis) Update(ctx context.Context, key string, fn UpdateFunc) error {
	current, err := r.Get(ctx, key)
	if err != nil {
		return err
	}
	next, err := fn(current)
	if err != nil {
		return err
	}
	return r.write(ctx, key, next)
}

// Push stores value under a generated child key and returns the full key.
func (r *Redis) Push(ctx context.Context, collection string, value []byte) (string, error) {
	key := collection + "/" + uuid.NewString()
	if err := r.write(ctx, key, value); err != nil {
		return "", err
	}
	return key, nil
}

// Remove deletes the key and publishes a deletion snapshot.
func (r *Redis) Remove(ctx context.Context, key string) error {
	rev, err := r.client.HIncrBy(ctx, r.dataKey(key), "rev", 1).Result()
	if err != nil {
		return fmt.Errorf("recordstore remove %s: %w", key, err)
	}
	if err := r.client.Del(ctx, r.dataKey(key)).Err(); err != nil {
		return fmt.Errorf("recordstore remove %s: %w", key, err)
	}
	return r.publish(ctx, Snapshot{Key: key, Rev: rev, Deleted: true})
}

// List returns every value under the collection prefix.
func (r *Redis) List(ctx context.Context, collection string) (map[string][]byte, error) {
	pattern := r.dataKey(collection) + "/*"
	out := make(map[string][]byte)

	iter := r.client.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		dataKey := iter.Val()
		raw, err := r.client.HGet(ctx, dataKey, "value").Result()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("recordstore list %s: %w", collection, err)
		}
		out[strings.TrimPrefix(dataKey, r.prefix+":")] = []byte(raw)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("recordstore list %s: %w", collection, err)
	}
	return out, nil
}

// Subscribe replays the current value(s) for key then streams every
// subsequent write. A trailing slash subscribes to a whole collection.
func (r *Redis) Subscribe(ctx context.Context, key string, fn func(Snapshot)) (Unsubscribe, error) {
	var pubsub *redis.PubSub
	if strings.HasSuffix(key, "/") {
		pubsub = r.client.PSubscribe(ctx, r.channel(key)+"*")
	} else {
		pubsub = r.client.Subscribe(ctx, r.channel(key))
	}

	// Force the subscription onto the wire before replay so writes racing
	// with Subscribe are not lost between replay and stream.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("recordstore subscribe %s: %w", key, err)
	}

	if err := r.replay(ctx, key, fn); err != nil {
		_ = pubsub.Close()
		return nil, err
	}

	ch := pubsub.Channel(redis.WithChannelSize(r.buffer))
	go func() {
		for msg := range ch {
			var snap Snapshot
			if err := json.Unmarshal([]byte(msg.Payload), &snap); err != nil {
				r.logger.Warn("recordstore: malformed event payload", zap.String("channel", msg.Channel), zap.Error(err))
				continue
			}
			fn(snap)
		}
	}()

	return func() { _ = pubsub.Close() }, nil
}

func (r *Redis) replay(ctx context.Context, key string, fn func(Snapshot)) error {
	if strings.HasSuffix(key, "/") {
		values, err := r.List(ctx, strings.TrimSuffix(key, "/"))
		if err != nil {
			return err
		}
		for k, v := range values {
			rev, _ := r.client.HGet(ctx, r.dataKey(k), "rev").Int64()
			fn(Snapshot{Key: k, Value: v, Rev: rev})
		}
		return nil
	}

	value, err := r.Get(ctx, key)
	if err == ErrKeyNotFound {
		return nil
	}
	if err != nil {
		return err
	}
	rev, _ := r.client.HGet(ctx, r.dataKey(key), "rev").Int64()
	fn(Snapshot{Key: key, Value: value, Rev: rev})
	return nil
}

func (r *Redis) write(ctx context.Context, key string, value []byte) error {
	pipe := r.client.TxPipeline()
	rev := pipe.HIncrBy(ctx, r.dataKey(key), "rev", 1)
	pipe.HSet(ctx, r.dataKey(key), "value", string(value))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("recordstore set %s: %w", key, err)
	}
	return r.publish(ctx, Snapshot{Key: key, Value: value, Rev: rev.Val()})
}

func (r *Redis) publish(ctx context.Context, snap Snapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("recordstore publish %s: %w", snap.Key, err)
	}
	if err := r.client.Publish(ctx, r.channel(snap.Key), payload).Err(); err != nil {
		return fmt.Errorf("recordstore publish %s: %w", snap.Key, err)
	}
	return nil
}

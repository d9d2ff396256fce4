// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package realtime

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/danielhkuo/coinpoll/remote"
)

// RedisChannel is the pub/sub channel carrying change events.
const RedisChannel = "coinpoll:changes"

// OpenRedis parses a redis:// URL and verifies the connection.
func OpenRedis(ctx context.Context, url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redis: %w", err)
	}
	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}

// Redis is a change feed over redis pub/sub.
type Redis struct {
	client *redis.Client
	pubsub *redis.PubSub
	local  *Local
	wg     sync.WaitGroup
}

// NewRedis subscribes to RedisChannel. The client stays owned by the caller.
func NewRedis(ctx context.Context, client *redis.Client) (*Redis, error) {
	pubsub := client.Subscribe(ctx, RedisChannel)
	// Wait for the subscription to be confirmed before returning
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("subscribe %s: %w", RedisChannel, err)
	}

	r := &Redis{client: client, pubsub: pubsub, local: NewLocal()}
	r.wg.Add(1)
	go r.run()
	return r, nil
}

func (r *Redis) run() {
	defer r.wg.Done()
	for msg := range r.pubsub.Channel() {
		change, err := decodeChange(msg.Payload)
		if err != nil {
			slog.Warn("dropping malformed change message", "error", err)
			continue
		}
		r.local.dispatch(change)
	}
}

func (r *Redis) Publish(ctx context.Context, change remote.Change) error {
	payload, err := encodeChange(change)
	if err != nil {
		return err
	}
	if err := r.client.Publish(ctx, RedisChannel, payload).Err(); err != nil {
		return fmt.Errorf("publish change: %w", err)
	}
	return nil
}

func (r *Redis) Subscribe(tables []string, onChange func(remote.Change)) (func(), error) {
	return r.local.Subscribe(tables, onChange)
}

func (r *Redis) Close() error {
	err := r.pubsub.Close()
	r.wg.Wait()
	r.local.Close()
	return err
}

// Copyright 2026 The Rentwise Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package events delivers post-commit assignment notifications.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rentwise/rentwise/internal/occupancy"
)

const (
	generationKeyPrefix = "rentwise:cache:gen:"
	channelPrefix       = "rentwise:events:"
)

// Payload is the message published for each notification
type Payload struct {
	OwnerID    string              `json:"owner_id"`
	Kind       occupancy.EventKind `json:"kind"`
	Generation int64               `json:"generation"`
	OccurredAt time.Time           `json:"occurred_at"`
}

// GenerationKey is the counter readers compare to invalidate cached views
func GenerationKey(ownerID string) string {
	return generationKeyPrefix + ownerID
}

// Channel is the pub/sub channel carrying an owner's notifications
func Channel(ownerID string) string {
	return channelPrefix + ownerID
}

// RedisEmitter bumps a per-owner cache generation and publishes the change
type RedisEmitter struct {
	client *redis.Client
	now    func() time.Time
}

// NewRedisEmitter connects to Redis and verifies the connection
func NewRedisEmitter(ctx context.Context, addr, password string, db int) (*RedisEmitter, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return NewRedisEmitterFromClient(client), nil
}

// NewRedisEmitterFromClient wraps an existing client
func NewRedisEmitterFromClient(client *redis.Client) *RedisEmitter {
	return &RedisEmitter{client: client, now: time.Now}
}

// notifyScript bumps the generation and publishes the payload with it in one
// round trip. KEYS[1] is the generation key, ARGV[1] the channel, ARGV[2] the
// payload without a generation.
var notifyScript = redis.NewScript(`
local gen = redis.call('INCR', KEYS[1])
local payload = cjson.decode(ARGV[2])
payload['generation'] = gen
redis.call('PUBLISH', ARGV[1], cjson.encode(payload))
return gen
`)

// Notify increments the owner's generation and publishes it
func (e *RedisEmitter) Notify(ctx context.Context, ownerID string, kind occupancy.EventKind) error {
	data, err := json.Marshal(Payload{
		OwnerID:    ownerID,
		Kind:       kind,
		OccurredAt: e.now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}
	if err := notifyScript.Run(ctx, e.client, []string{GenerationKey(ownerID)}, Channel(ownerID), data).Err(); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}

// Ping checks the Redis connection
func (e *RedisEmitter) Ping(ctx context.Context) error {
	return e.client.Ping(ctx).Err()
}

// Close closes the Redis client
func (e *RedisEmitter) Close() error {
	return e.client.Close()
}

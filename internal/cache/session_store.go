package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jyush98/jason-co-ecom-sub003/internal/checkout"
	"github.com/redis/go-redis/v9"
)

// RedisSessionStore keeps checkout sessions in Redis. Every save renews the TTL, so an
// abandoned checkout disappears after ttl of inactivity.
type RedisSessionStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisSessionStore(client *redis.Client, ttl time.Duration) *RedisSessionStore {
	return &RedisSessionStore{client: client, ttl: ttl}
}

func (s *RedisSessionStore) GetSession(ctx context.Context, id uuid.UUID) (*checkout.Session, error) {
	data, err := s.client.Get(ctx, sessionKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, checkout.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get session failed: %w", err)
	}

	var sess checkout.Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("unmarshal session failed: %w", err)
	}
	return &sess, nil
}

func (s *RedisSessionStore) SaveSession(ctx context.Context, sess *checkout.Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("marshal session failed: %w", err)
	}
	if err := s.client.Set(ctx, sessionKey(sess.ID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set session failed: %w", err)
	}
	return nil
}

func (s *RedisSessionStore) DeleteSession(ctx context.Context, id uuid.UUID) error {
	if err := s.client.Del(ctx, sessionKey(id)).Err(); err != nil {
		return fmt.Errorf("redis delete session failed: %w", err)
	}
	return nil
}

func sessionKey(id uuid.UUID) string {
	return fmt.Sprintf("checkout:%s", id)
}

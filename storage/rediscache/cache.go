// Package rediscache decorates a storage.Store with a Redis read-through cache
// for deposito types, which are read on every withdrawal and rarely change.
package rediscache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"deposito-ledger/model"
	"deposito-ledger/storage"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "deposito:type:"

// Store caches GetDepositoType; every other call goes straight to the wrapped
// store. Redis failures are logged and treated as misses.
type Store struct {
	storage.Store

	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// New wraps next with a cache backed by client.
func New(next storage.Store, client *redis.Client, ttl time.Duration, logger *slog.Logger) *Store {
	return &Store{Store: next, client: client, ttl: ttl, logger: logger}
}

// NewFromURL parses a redis:// URL and checks the server is reachable.
func NewFromURL(ctx context.Context, next storage.Store, url string, ttl time.Duration, logger *slog.Logger) (*Store, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return New(next, client, ttl, logger), nil
}

func (s *Store) key(id string) string {
	return keyPrefix + id
}

func (s *Store) GetDepositoType(ctx context.Context, id string) (*model.DepositoType, error) {
	val, err := s.client.Get(ctx, s.key(id)).Bytes()
	switch {
	case err == nil:
		var d model.DepositoType
		if err := json.Unmarshal(val, &d); err == nil {
			s.logger.Debug("redis cache hit", "key", s.key(id))
			return &d, nil
		}
		s.logger.Warn("redis cache entry unreadable", "key", s.key(id))
	case errors.Is(err, redis.Nil):
		s.logger.Debug("redis cache miss", "key", s.key(id))
	default:
		s.logger.Error("redis cache get error", "key", s.key(id), "error", err)
	}

	d, err := s.Store.GetDepositoType(ctx, id)
	if err != nil {
		return nil, err
	}
	s.set(ctx, d)
	return d, nil
}

func (s *Store) set(ctx context.Context, d *model.DepositoType) {
	data, err := json.Marshal(d)
	if err != nil {
		s.logger.Error("redis cache marshal error", "key", s.key(d.ID), "error", err)
		return
	}
	if err := s.client.Set(ctx, s.key(d.ID), data, s.ttl).Err(); err != nil {
		s.logger.Error("redis cache set error", "key", s.key(d.ID), "error", err)
	}
}

func (s *Store) invalidate(ctx context.Context, id string) {
	if err := s.client.Del(ctx, s.key(id)).Err(); err != nil {
		s.logger.Error("redis cache delete error", "key", s.key(id), "error", err)
	}
}

func (s *Store) UpdateDepositoType(ctx context.Context, d model.DepositoType) error {
	err := s.Store.UpdateDepositoType(ctx, d)
	s.invalidate(ctx, d.ID)
	return err
}

func (s *Store) DeleteDepositoType(ctx context.Context, id string) error {
	err := s.Store.DeleteDepositoType(ctx, id)
	s.invalidate(ctx, id)
	return err
}

// Close closes the Redis client and the wrapped store.
func (s *Store) Close() error {
	return errors.Join(s.client.Close(), s.Store.Close())
}

var _ storage.Store = (*Store)(nil)

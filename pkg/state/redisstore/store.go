// Package redisstore persists session documents in Redis hashes.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/goliatone/go-rased/pkg/state"
)

const (
	fieldData = "data"
	fieldMeta = "meta"
)

// Config holds Redis connection settings.
type Config struct {
	Addr     string
	Password string
	DB       int
	// Prefix namespaces every key.
	Prefix string
	// TTL expires idle documents; zero keeps them forever.
	TTL time.Duration
}

// DefaultConfig returns a local Redis configuration.
func DefaultConfig() Config {
	return Config{Addr: "localhost:6379", Prefix: "rased:"}
}

// Store implements state.Store on a Redis client.
type Store struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
	now    func() time.Time
}

// Connect builds a client from cfg and pings it.
func Connect(ctx context.Context, cfg Config) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redisstore: ping %s: %w", cfg.Addr, err)
	}
	return New(client, cfg), nil
}

func New(client redis.UniversalClient, cfg Config) *Store {
	return &Store{client: client, prefix: cfg.Prefix, ttl: cfg.TTL, now: time.Now}
}

func (s *Store) Close() error { return s.client.Close() }

func (s *Store) key(ref state.Ref) (string, error) {
	id, err := ref.Identifier()
	if err != nil {
		return "", err
	}
	return s.prefix + id, nil
}

func (s *Store) Load(ctx context.Context, ref state.Ref) ([]byte, state.Meta, bool, error) {
	key, err := s.key(ref)
	if err != nil {
		return nil, state.Meta{}, false, err
	}
	values, err := s.client.HMGet(ctx, key, fieldData, fieldMeta).Result()
	if err != nil {
		return nil, state.Meta{}, false, fmt.Errorf("redisstore: load %q: %w", key, err)
	}
	data, ok := values[0].(string)
	if !ok {
		return nil, state.Meta{}, false, nil
	}
	meta, err := decodeMeta(values[1])
	if err != nil {
		return nil, state.Meta{}, false, fmt.Errorf("redisstore: load %q: %w", key, err)
	}
	return []byte(data), meta, true, nil
}

func (s *Store) Save(ctx context.Context, ref state.Ref, data []byte, meta state.Meta) (state.Meta, error) {
	key, err := s.key(ref)
	if err != nil {
		return state.Meta{}, err
	}
	var saved state.Meta
	txf := func(tx *redis.Tx) error {
		raw, err := tx.HGet(ctx, key, fieldMeta).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		existing, err := decodeMeta(raw)
		if err != nil {
			return err
		}
		if err := state.CheckETag(meta.ETag, existing.ETag); err != nil {
			return err
		}
		saved = state.Stamp(meta, data, s.now())
		encoded, err := json.Marshal(saved)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, fieldData, string(data), fieldMeta, string(encoded))
			if s.ttl > 0 {
				pipe.Expire(ctx, key, s.ttl)
			}
			return nil
		})
		return err
	}
	if err := s.client.Watch(ctx, txf, key); err != nil {
		if errors.Is(err, state.ErrETagMismatch) {
			return state.Meta{}, err
		}
		if errors.Is(err, redis.TxFailedErr) {
			return state.Meta{}, fmt.Errorf("%w: concurrent write to %q", state.ErrETagMismatch, key)
		}
		return state.Meta{}, fmt.Errorf("redisstore: save %q: %w", key, err)
	}
	return saved, nil
}

func (s *Store) Delete(ctx context.Context, ref state.Ref) error {
	key, err := s.key(ref)
	if err != nil {
		return err
	}
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redisstore: delete %q: %w", key, err)
	}
	return nil
}

func decodeMeta(value any) (state.Meta, error) {
	raw, _ := value.(string)
	if raw == "" {
		return state.Meta{}, nil
	}
	var meta state.Meta
	if err := json.Unmarshal([]byte(raw), &meta); err != nil {
		return state.Meta{}, fmt.Errorf("decode meta: %w", err)
	}
	return meta, nil
}

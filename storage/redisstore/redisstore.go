// Package redisstore provides a tiqology.SessionStorage backed by Redis.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	tiqology "github.com/tiqology/superapp-go"
	"github.com/tiqology/superapp-go/storage"
)

const defaultTimeout = 5 * time.Second

// Config captures the settings for establishing a Redis connection.
type Config struct {
	Addr     string
	Password string
	DB       int
	Timeout  time.Duration
	// Key overrides the record key. Default: storage.Key.
	Key string
}

// Store keeps the session record under a single Redis key.
type Store struct {
	client *redis.Client
	key    string
	owned  bool
}

var _ tiqology.SessionStorage = (*Store)(nil)

// Connect initialises a Redis client and validates connectivity with a ping.
// A default timeout is applied when none is provided.
func Connect(ctx context.Context, cfg Config) (*Store, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redisstore: ping: %w", err)
	}

	s := New(client, cfg.Key)
	s.owned = true
	return s, nil
}

// New wraps an existing client. Close does not close a client passed here.
func New(client *redis.Client, key string) *Store {
	if key == "" {
		key = storage.Key
	}
	return &Store{client: client, key: key}
}

// Load returns the stored record, or nil when the key is absent.
func (s *Store) Load(ctx context.Context) (*tiqology.PersistedSession, error) {
	data, err := s.client.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redisstore: get %s: %w", s.key, err)
	}

	var rec tiqology.PersistedSession
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("redisstore: decode: %w", err)
	}
	return &rec, nil
}

// Save replaces the stored record. The key does not expire.
func (s *Store) Save(ctx context.Context, rec *tiqology.PersistedSession) error {
	if rec == nil {
		return errors.New("redisstore: nil record")
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("redisstore: encode: %w", err)
	}
	if err := s.client.Set(ctx, s.key, data, 0).Err(); err != nil {
		return fmt.Errorf("redisstore: set %s: %w", s.key, err)
	}
	return nil
}

// Clear deletes the key.
func (s *Store) Clear(ctx context.Context) error {
	if err := s.client.Del(ctx, s.key).Err(); err != nil {
		return fmt.Errorf("redisstore: del %s: %w", s.key, err)
	}
	return nil
}

// Close releases the client if Connect created it.
func (s *Store) Close() error {
	if !s.owned {
		return nil
	}
	return s.client.Close()
}

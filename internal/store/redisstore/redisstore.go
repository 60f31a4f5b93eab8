package redisstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	rdb "github.com/redis/go-redis/v9"

	"github.com/angeloszaimis/kv-failover/internal/store"
)

const opTimeout = 5 * time.Second

// Handle implements store.Handle over a Redis cluster endpoint. Network
// and command transport errors pass through unchanged and are picked up
// by store.IsTransient; redis.Nil is mapped to the business taxonomy.
type Handle struct {
	client *rdb.Client
}

// Connect establishes the connection and verifies it with a ping, so a
// down cluster surfaces as a factory error rather than on first use.
func Connect(addr string, db int) (*Handle, error) {
	client := rdb.NewClient(&rdb.Options{Addr: addr, DB: db})

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}

	return &Handle{client: client}, nil
}

func (h *Handle) Add(key string, value []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	set, err := h.client.SetNX(ctx, key, value, 0).Result()
	if err != nil {
		return err
	}
	if !set {
		return fmt.Errorf("add %q: %w", key, store.ErrKeyExists)
	}
	return nil
}

func (h *Handle) Read(key string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	value, err := h.client.Get(ctx, key).Bytes()
	if err != nil {
		return nil, mapErr("read", key, err)
	}
	return value, nil
}

func (h *Handle) Update(key string, value []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	// SET XX only succeeds when the key already exists.
	set, err := h.client.SetXX(ctx, key, value, 0).Result()
	if err != nil {
		return err
	}
	if !set {
		return fmt.Errorf("update %q: %w", key, store.ErrKeyNotFound)
	}
	return nil
}

// Close releases the underlying client. Not part of store.Handle; the
// process exit path may call it directly.
func (h *Handle) Close() error {
	return h.client.Close()
}

func mapErr(op, key string, err error) error {
	if errors.Is(err, rdb.Nil) {
		return fmt.Errorf("%s %q: %w", op, key, store.ErrKeyNotFound)
	}
	return err
}

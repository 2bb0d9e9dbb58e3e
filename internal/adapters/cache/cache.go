// Package cache keeps a Redis read-through copy of entrant lookups.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/okian/arena/internal/domain/model"
	"github.com/okian/arena/pkg/logger"
)

const (
	defaultTTL    = time.Minute
	defaultPrefix = "arena"
)

// Options holds the connection settings for NewClient.
type Options struct {
	Addr     string
	Password string
	DB       int
}

// NewClient builds a redis client and checks that it answers.
func NewClient(ctx context.Context, opts Options) (*redis.Client, error) {
	if opts.Addr == "" {
		return nil, ErrNoAddr
	}
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}

// Cache stores entrants by id and an index from live names to ids.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
	log    logger.Logger
}

// New wraps a connected client.
func New(client *redis.Client, opts ...Option) *Cache {
	c := &Cache{
		client: client,
		ttl:    defaultTTL,
		prefix: defaultPrefix,
		log:    logger.Get().Named("cache"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type entry struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Weight    int       `json:"weight"`
	Height    int       `json:"height"`
	Reach     float64   `json:"reach"`
	Age       int       `json:"age"`
	Fights    int64     `json:"fights"`
	Wins      int64     `json:"wins"`
	Deleted   bool      `json:"deleted"`
	CreatedAt time.Time `json:"created_at"`
}

func (c *Cache) idKey(id int64) string {
	return c.prefix + ":entrant:" + strconv.FormatInt(id, 10)
}

// versionKey has no TTL; it only moves forward.
func (c *Cache) versionKey(id int64) string {
	return c.prefix + ":entrant-ver:" + strconv.FormatInt(id, 10)
}

func (c *Cache) nameKey(name string) string {
	return c.prefix + ":entrant-name:" + name
}

// Get returns the cached entrant or ErrMiss.
func (c *Cache) Get(ctx context.Context, id int64) (model.Entrant, error) {
	raw, err := c.client.Get(ctx, c.idKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return model.Entrant{}, ErrMiss
	}
	if err != nil {
		return model.Entrant{}, fmt.Errorf("get entrant %d: %w", id, err)
	}
	var e entry
	if err := json.Unmarshal(raw, &e); err != nil {
		return model.Entrant{}, fmt.Errorf("decode entrant %d: %w", id, err)
	}
	return model.Entrant{
		ID:        e.ID,
		Name:      e.Name,
		Weight:    e.Weight,
		Height:    e.Height,
		Reach:     e.Reach,
		Age:       e.Age,
		Fights:    e.Fights,
		Wins:      e.Wins,
		Deleted:   e.Deleted,
		CreatedAt: e.CreatedAt,
	}, nil
}

// IDByName returns the id cached for a live name or ErrMiss.
func (c *Cache) IDByName(ctx context.Context, name string) (int64, error) {
	id, err := c.client.Get(ctx, c.nameKey(name)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, ErrMiss
	}
	if err != nil {
		return 0, fmt.Errorf("get entrant name %q: %w", name, err)
	}
	return id, nil
}

// Set caches e. Live entrants also get a name index entry.
func (c *Cache) Set(ctx context.Context, e model.Entrant) error {
	raw, err := encode(e)
	if err != nil {
		return err
	}
	_, err = c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		c.queueSet(ctx, pipe, e, raw)
		return nil
	})
	if err != nil {
		return fmt.Errorf("set entrant %d: %w", e.ID, err)
	}
	return nil
}

// Fill caches the entrant returned by load. The write is dropped when
// Invalidate bumps id's version while load runs, so a read that overlapped a
// writer never puts back what the writer removed. An error from load is
// returned unchanged and nothing is written.
func (c *Cache) Fill(ctx context.Context, id int64, load func(context.Context) (model.Entrant, error)) error {
	err := c.client.Watch(ctx, func(tx *redis.Tx) error {
		e, err := load(ctx)
		if err != nil {
			return err
		}
		raw, err := encode(e)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			c.queueSet(ctx, pipe, e, raw)
			return nil
		})
		return err
	}, c.versionKey(id))
	if errors.Is(err, redis.TxFailedErr) {
		return nil
	}
	return err
}

func (c *Cache) queueSet(ctx context.Context, pipe redis.Pipeliner, e model.Entrant, raw []byte) {
	pipe.Set(ctx, c.idKey(e.ID), raw, c.ttl)
	if !e.Deleted {
		pipe.Set(ctx, c.nameKey(e.Name), e.ID, c.ttl)
	}
}

func encode(e model.Entrant) ([]byte, error) {
	raw, err := json.Marshal(entry{
		ID:        e.ID,
		Name:      e.Name,
		Weight:    e.Weight,
		Height:    e.Height,
		Reach:     e.Reach,
		Age:       e.Age,
		Fights:    e.Fights,
		Wins:      e.Wins,
		Deleted:   e.Deleted,
		CreatedAt: e.CreatedAt,
	})
	if err != nil {
		return nil, fmt.Errorf("encode entrant %d: %w", e.ID, err)
	}
	return raw, nil
}

// Invalidate drops the cached entrants for ids and bumps their versions so
// fills already in flight are discarded.
func (c *Cache) Invalidate(ctx context.Context, ids ...int64) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, id := range ids {
			pipe.Incr(ctx, c.versionKey(id))
			pipe.Del(ctx, c.idKey(id))
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("invalidate entrants: %w", err)
	}
	return nil
}

// InvalidateName drops the name index entry for name.
func (c *Cache) InvalidateName(ctx context.Context, name string) error {
	if err := c.client.Del(ctx, c.nameKey(name)).Err(); err != nil {
		return fmt.Errorf("invalidate entrant name %q: %w", name, err)
	}
	return nil
}

// Ping checks the redis connection.
func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close closes the underlying client.
func (c *Cache) Close() error {
	return c.client.Close()
}

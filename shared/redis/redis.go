package redis

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrMiss is returned by Get when the key does not exist
var ErrMiss = errors.New("redis: key not found")

// Config holds connection settings
type Config struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// Client is a thin key/value facade over go-redis with a key prefix
type Client struct {
	client redis.UniversalClient
	prefix string
}

// NewClient connects lazily; call Ping to verify reachability
func NewClient(cfg Config) *Client {
	if cfg.Addr == "" {
		cfg.Addr = "localhost:6379"
	}
	return &Client{
		client: redis.NewClient(&redis.Options{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
		}),
		prefix: cfg.Prefix,
	}
}

// Wrap builds a Client around an existing go-redis client
func Wrap(client redis.UniversalClient, prefix string) *Client {
	return &Client{client: client, prefix: prefix}
}

func (r *Client) key(k string) string {
	return r.prefix + k
}

// Set stores value under key; zero expiration keeps it forever
func (r *Client) Set(ctx context.Context, key string, value []byte, expiration time.Duration) error {
	return r.client.Set(ctx, r.key(key), value, expiration).Err()
}

// Get returns the value under key, ErrMiss if absent
func (r *Client) Get(ctx context.Context, key string) ([]byte, error) {
	b, err := r.client.Get(ctx, r.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrMiss
	}
	return b, err
}

// Del removes key
func (r *Client) Del(ctx context.Context, key string) error {
	return r.client.Del(ctx, r.key(key)).Err()
}

// Ping checks the connection
func (r *Client) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close releases the connection pool
func (r *Client) Close() error {
	return r.client.Close()
}

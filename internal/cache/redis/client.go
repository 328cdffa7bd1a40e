// Package redis implements the catalogue cache, build lock, shared fetch
// rate limiter and opportunity pub/sub on top of go-redis/v9. Every key and
// channel lives under the client's namespace so several deployments can
// share one server.
package redis

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
)

// DefaultNamespace prefixes keys when ClientConfig.Namespace is empty.
const DefaultNamespace = "triarb"

// ClientConfig holds connection parameters for the Redis client.
type ClientConfig struct {
	Addr       string
	Password   string
	DB         int
	PoolSize   int
	MaxRetries int
	TLSEnabled bool
	Namespace  string
}

// Client is a connected go-redis client plus the key namespace.
type Client struct {
	rdb       *redis.Client
	namespace string
}

// New connects and pings Redis.
func New(ctx context.Context, cfg ClientConfig) (*Client, error) {
	opts := &redis.Options{
		Addr:       cfg.Addr,
		Password:   cfg.Password,
		DB:         cfg.DB,
		PoolSize:   cfg.PoolSize,
		MaxRetries: cfg.MaxRetries,
	}
	if cfg.TLSEnabled {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis: ping %s: %w", cfg.Addr, err)
	}
	return &Client{rdb: rdb, namespace: namespaceOr(cfg.Namespace)}, nil
}

// Close closes the connection pool.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// key joins the namespace, a kind ("lock", "ratelimit", "cache", "ch") and
// the caller's name.
func (c *Client) key(kind, name string) string {
	return c.namespace + ":" + kind + ":" + name
}

func namespaceOr(ns string) string {
	ns = strings.Trim(strings.TrimSpace(ns), ":")
	if ns == "" {
		return DefaultNamespace
	}
	return ns
}

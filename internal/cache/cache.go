package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"time"

	"github.com/ppiankov/snpscope/internal/model"
)

// KeyPrefix namespaces every cache key so a shared redis can host other tenants
const KeyPrefix = "snpscope:v1:"

// Cache defines the interface for caching upstream responses
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Clear(ctx context.Context) error
}

// CacheKey generates a cache key from a request URL (and optional body)
func CacheKey(url string, body ...[]byte) string {
	h := sha256.New()
	h.Write([]byte(url))
	for _, b := range body {
		h.Write(b)
	}
	return KeyPrefix + hex.EncodeToString(h.Sum(nil))
}

// New builds the configured backend. "none" returns a nil Cache.
func New(cfg model.CacheConfig) (Cache, error) {
	switch cfg.Backend {
	case "none":
		return nil, nil
	case "", "memory":
		return NewMemoryCache(cfg.TTL, 10*time.Minute), nil
	case "disk":
		return NewDiskCache(cacheDir(cfg), cfg.TTL), nil
	case "layered":
		return NewLayeredCache(cfg.TTL, cacheDir(cfg), cfg.TTL), nil
	case "redis":
		rc, err := NewRedisCache(RedisConfig{
			Addrs:    []string{cfg.RedisAddr},
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			TTL:      cfg.TTL,
		})
		if err != nil {
			return nil, fmt.Errorf("redis cache: %w", err)
		}
		return rc, nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Backend)
	}
}

func cacheDir(cfg model.CacheConfig) string {
	if cfg.Dir != "" {
		return cfg.Dir
	}
	return filepath.Join(".snpscope", "cache")
}

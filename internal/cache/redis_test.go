package cache

import (
	"testing"

	"github.com/ppiankov/snpscope/internal/model"
)

func TestNewRedisCache_RequiresAddr(t *testing.T) {
	if _, err := NewRedisCache(RedisConfig{}); err == nil {
		t.Fatal("expected error for empty addrs")
	}
	if _, err := NewRedisCache(RedisConfig{Addrs: []string{""}}); err == nil {
		t.Fatal("expected error for blank addr")
	}
}

func TestNew_RedisUnreachable(t *testing.T) {
	// rueidis dials on construction, so an unroutable address surfaces as an error
	_, err := New(model.CacheConfig{Backend: "redis", RedisAddr: "127.0.0.1:1"})
	if err == nil {
		t.Fatal("expected error for unreachable redis")
	}
}

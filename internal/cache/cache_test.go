package cache

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ppiankov/snpscope/internal/model"
)

func TestCacheKey(t *testing.T) {
	k1 := CacheKey("https://rest.ensembl.org/variation/human/rs429358")
	k2 := CacheKey("https://rest.ensembl.org/variation/human/rs429358")
	k3 := CacheKey("https://rest.ensembl.org/variation/human/rs7412")

	if k1 != k2 {
		t.Errorf("Expected identical keys for identical URLs")
	}
	if k1 == k3 {
		t.Errorf("Expected different keys for different URLs")
	}
	if !strings.HasPrefix(k1, KeyPrefix) {
		t.Errorf("Expected prefix %q, got %q", KeyPrefix, k1)
	}

	withBody := CacheKey("https://example.org/rank", []byte(`{"q":"a"}`))
	if withBody == CacheKey("https://example.org/rank") {
		t.Errorf("Expected body to change the key")
	}
}

func TestMemoryCache(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(time.Minute, time.Minute)

	if _, ok := c.Get(ctx, "missing"); ok {
		t.Fatalf("Expected miss for unknown key")
	}

	if err := c.Set(ctx, "k", []byte("v"), 0); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	got, ok := c.Get(ctx, "k")
	if !ok || string(got) != "v" {
		t.Errorf("Expected v, got %q (found=%v)", got, ok)
	}
	if c.Len() != 1 {
		t.Errorf("Expected 1 item, got %d", c.Len())
	}

	_ = c.Delete(ctx, "k")
	if _, ok := c.Get(ctx, "k"); ok {
		t.Errorf("Expected miss after delete")
	}

	_ = c.Set(ctx, "a", []byte("1"), time.Minute)
	_ = c.Clear(ctx)
	if c.Len() != 0 {
		t.Errorf("Expected empty cache after clear, got %d", c.Len())
	}
}

func TestMemoryCache_Expiry(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(time.Minute, time.Minute)

	_ = c.Set(ctx, "short", []byte("v"), time.Millisecond)
	time.Sleep(5 * time.Millisecond)
	if _, ok := c.Get(ctx, "short"); ok {
		t.Errorf("Expected entry to expire")
	}
}

func TestDiskCache(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	c := NewDiskCache(dir, time.Hour)

	key := CacheKey("https://eutils.ncbi.nlm.nih.gov/entrez/eutils/esummary.fcgi?db=snp&id=429358")
	if err := c.Set(ctx, key, []byte(`{"result":{}}`), 0); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	got, ok := c.Get(ctx, key)
	if !ok || string(got) != `{"result":{}}` {
		t.Errorf("Expected stored body, got %q (found=%v)", got, ok)
	}

	entries, _ := os.ReadDir(dir)
	for _, e := range entries {
		if strings.Contains(e.Name(), ":") {
			t.Errorf("Expected filename-safe cache file, got %s", e.Name())
		}
		if strings.HasSuffix(e.Name(), ".tmp") {
			t.Errorf("Expected no leftover temp files, got %s", e.Name())
		}
	}

	if err := c.Delete(ctx, key); err != nil {
		t.Errorf("Delete failed: %v", err)
	}
	if err := c.Delete(ctx, key); err != nil {
		t.Errorf("Expected deleting a missing key to succeed, got %v", err)
	}
}

func TestDiskCache_ExpiredAndCorrupt(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	c := NewDiskCache(dir, time.Hour)

	_ = c.Set(ctx, "old", []byte("v"), -time.Second)
	if _, ok := c.Get(ctx, "old"); ok {
		t.Errorf("Expected expired entry to miss")
	}

	if err := os.WriteFile(filepath.Join(dir, "bad.cache"), []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, ok := c.Get(ctx, "bad"); ok {
		t.Errorf("Expected corrupt entry to miss")
	}
	if _, err := os.Stat(filepath.Join(dir, "bad.cache")); !os.IsNotExist(err) {
		t.Errorf("Expected corrupt entry to be removed")
	}
}

func TestLayeredCache_PromotesFromDisk(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	disk := NewDiskCache(dir, time.Hour)
	_ = disk.Set(ctx, "k", []byte("from-disk"), 0)

	lc := NewLayeredCache(time.Hour, dir, time.Hour)
	got, ok := lc.Get(ctx, "k")
	if !ok || string(got) != "from-disk" {
		t.Fatalf("Expected disk hit, got %q (found=%v)", got, ok)
	}

	mem := lc.memory.(*MemoryCache)
	if _, ok := mem.Get(ctx, "k"); !ok {
		t.Errorf("Expected value to be promoted to memory")
	}

	_ = lc.Clear(ctx)
	if _, ok := lc.Get(ctx, "k"); ok {
		t.Errorf("Expected miss after clear")
	}
}

func TestNew_Backends(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		backend string
		wantNil bool
		wantErr bool
	}{
		{"memory", false, false},
		{"", false, false},
		{"disk", false, false},
		{"layered", false, false},
		{"none", true, false},
		{"memcached", true, true},
	}

	for _, tt := range tests {
		t.Run(tt.backend, func(t *testing.T) {
			c, err := New(model.CacheConfig{Backend: tt.backend, TTL: time.Minute, Dir: dir})
			if (err != nil) != tt.wantErr {
				t.Fatalf("Expected error=%v, got %v", tt.wantErr, err)
			}
			if (c == nil) != tt.wantNil {
				t.Errorf("Expected nil=%v, got %T", tt.wantNil, c)
			}
		})
	}
}

package worker

import (
	"context"
	"sync"

	"golang.org/x/time/rate"

	"github.com/ppiankov/snpscope/internal/model"
)

// Limiter implements per-source token-bucket rate limiting.
// Several sources may share one bucket through an alias (dbsnp, pubmed and
// clinvar all draw from "ncbi"), so one upstream quota is honoured across adapters.
type Limiter struct {
	limiters     map[string]*rate.Limiter
	aliases      map[string]string // source -> bucket
	mu           sync.RWMutex
	defaultRate  rate.Limit
	defaultBurst int
}

// NewLimiter creates a new rate limiter
func NewLimiter(requestsPerSecond float64, burst int) *Limiter {
	if burst <= 0 {
		burst = 5
	}

	return &Limiter{
		limiters:     make(map[string]*rate.Limiter),
		aliases:      make(map[string]string),
		defaultRate:  rate.Limit(requestsPerSecond),
		defaultBurst: burst,
	}
}

// NewSourceLimiter builds a limiter from per-bucket configuration and the
// source-to-bucket aliases. Unconfigured sources get their own default bucket.
func NewSourceLimiter(rates map[string]model.RateConfig, aliases map[string]string) *Limiter {
	l := NewLimiter(5, 2)
	for bucket, rc := range rates {
		l.SetRate(bucket, rc.RPS, rc.Burst)
	}
	for source, bucket := range aliases {
		l.Alias(source, bucket)
	}
	return l
}

// Wait waits for rate limit clearance for the given source
func (l *Limiter) Wait(ctx context.Context, source string) error {
	return l.getLimiter(source).Wait(ctx)
}

// Alias routes a source onto a shared bucket
func (l *Limiter) Alias(source, bucket string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.aliases[source] = bucket
}

// Bucket returns the bucket name a source draws from
func (l *Limiter) Bucket(source string) string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.bucketLocked(source)
}

func (l *Limiter) bucketLocked(source string) string {
	if bucket, ok := l.aliases[source]; ok {
		return bucket
	}
	return source
}

// getLimiter returns the rate limiter for a source's bucket
func (l *Limiter) getLimiter(source string) *rate.Limiter {
	l.mu.RLock()
	bucket := l.bucketLocked(source)
	limiter, exists := l.limiters[bucket]
	l.mu.RUnlock()

	if exists {
		return limiter
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	// Double-check after acquiring write lock
	if limiter, exists := l.limiters[bucket]; exists {
		return limiter
	}

	limiter = rate.NewLimiter(l.defaultRate, l.defaultBurst)
	l.limiters[bucket] = limiter

	return limiter
}

// SetRate sets a custom rate limit for a bucket
func (l *Limiter) SetRate(bucket string, requestsPerSecond float64, burst int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if burst <= 0 {
		burst = l.defaultBurst
	}

	l.limiters[bucket] = rate.NewLimiter(rate.Limit(requestsPerSecond), burst)
}

package worker

import (
	"context"
	"testing"

	"github.com/ppiankov/snpscope/internal/model"
)

// takeToken reports whether the source's bucket had a token to spare
func takeToken(l *Limiter, source string) bool {
	return l.getLimiter(source).Allow()
}

func TestLimiter_New(t *testing.T) {
	limiter := NewLimiter(10, 5)
	if limiter.defaultBurst != 5 {
		t.Errorf("expected burst 5, got %d", limiter.defaultBurst)
	}

	l2 := NewLimiter(10, -1)
	if l2.defaultBurst != 5 {
		t.Errorf("expected default burst 5 for negative input, got %d", l2.defaultBurst)
	}
}

func TestLimiter_Wait(t *testing.T) {
	limiter := NewLimiter(100, 1)
	ctx := context.Background()

	if err := limiter.Wait(ctx, "ensembl"); err != nil {
		t.Errorf("wait failed: %v", err)
	}
	if err := limiter.Wait(ctx, "gwas"); err != nil {
		t.Errorf("wait failed: %v", err)
	}
}

func TestLimiter_WaitCancelled(t *testing.T) {
	limiter := NewLimiter(0.01, 1)
	_ = takeToken(limiter, "scholar") // drain the only token

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := limiter.Wait(ctx, "scholar"); err == nil {
		t.Errorf("expected error from cancelled context")
	}
}

func TestLimiter_RateLimit(t *testing.T) {
	limiter := NewLimiter(1, 1)

	if !takeToken(limiter, "pharmgkb") {
		t.Errorf("first request should pass")
	}
	if takeToken(limiter, "pharmgkb") {
		t.Errorf("expected allow to fail (exhausted tokens)")
	}
	if !takeToken(limiter, "ensembl") {
		t.Errorf("expected allow for other source")
	}
}

func TestLimiter_SetRate(t *testing.T) {
	limiter := NewLimiter(10, 10)
	limiter.SetRate("slow", 0.1, 1)

	if !takeToken(limiter, "slow") {
		t.Errorf("first request should pass")
	}
	if takeToken(limiter, "slow") {
		t.Errorf("second request should fail")
	}
	if !takeToken(limiter, "fast") {
		t.Errorf("other source should pass")
	}
}

func TestSourceLimiter_NCBISharesOneBucket(t *testing.T) {
	limiter := NewSourceLimiter(
		map[string]model.RateConfig{"ncbi": {RPS: 0.1, Burst: 1}},
		map[string]string{"dbsnp": "ncbi", "pubmed": "ncbi", "clinvar": "ncbi"},
	)

	for _, src := range []string{"dbsnp", "pubmed", "clinvar"} {
		if b := limiter.Bucket(src); b != "ncbi" {
			t.Errorf("expected %s to use bucket ncbi, got %s", src, b)
		}
	}

	if !takeToken(limiter, "dbsnp") {
		t.Fatalf("first NCBI request should pass")
	}
	if takeToken(limiter, "pubmed") {
		t.Errorf("pubmed should share the exhausted NCBI bucket")
	}
	if takeToken(limiter, "clinvar") {
		t.Errorf("clinvar should share the exhausted NCBI bucket")
	}
	if !takeToken(limiter, "ensembl") {
		t.Errorf("unrelated source should have its own bucket")
	}
	if b := limiter.Bucket("ensembl"); b != "ensembl" {
		t.Errorf("expected unaliased source to be its own bucket, got %s", b)
	}
}

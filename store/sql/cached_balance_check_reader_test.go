package sqlstore

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/goliatone/go-bankfeeds/core"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
)

type stubBalanceCheckReader struct {
	mu     sync.Mutex
	check  core.BalanceCheck
	calls  int
	getErr error
}

func (s *stubBalanceCheckReader) GetByCorrelationID(_ context.Context, _ string) (core.BalanceCheck, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.getErr != nil {
		return core.BalanceCheck{}, s.getErr
	}
	return cloneBalanceCheck(s.check), nil
}

func (s *stubBalanceCheckReader) set(check core.BalanceCheck) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.check = check
}

func (s *stubBalanceCheckReader) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func TestCachedBalanceCheckReader_PendingReadsThrough(t *testing.T) {
	base := &stubBalanceCheckReader{check: core.BalanceCheck{
		CorrelationID: "AG_1",
		Status:        core.BalanceCheckStatusPending,
	}}
	reader, err := NewCachedBalanceCheckReader(base, newTestBalanceCheckCacheService(t))
	if err != nil {
		t.Fatalf("new reader: %v", err)
	}

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		check, err := reader.GetByCorrelationID(ctx, "AG_1")
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if check.Status != core.BalanceCheckStatusPending {
			t.Fatalf("expected pending, got %q", check.Status)
		}
	}
	if base.callCount() != 2 {
		t.Fatalf("expected pending checks to bypass the cache, got %d base calls", base.callCount())
	}

	resolvedAt := time.Now().UTC()
	base.set(core.BalanceCheck{
		CorrelationID: "AG_1",
		Status:        core.BalanceCheckStatusCompleted,
		ResolvedAt:    &resolvedAt,
		Balances:      []core.AccountBalance{{Name: "Working Account"}},
	})
	for i := 0; i < 3; i++ {
		check, err := reader.GetByCorrelationID(ctx, "AG_1")
		if err != nil {
			t.Fatalf("get resolved: %v", err)
		}
		if check.Status != core.BalanceCheckStatusCompleted || len(check.Balances) != 1 {
			t.Fatalf("expected completed check with balances, got %#v", check)
		}
	}
	if base.callCount() != 3 {
		t.Fatalf("expected terminal check to be served from cache, got %d base calls", base.callCount())
	}

	if err := reader.Invalidate(ctx, "AG_1"); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	if _, err := reader.GetByCorrelationID(ctx, "AG_1"); err != nil {
		t.Fatalf("get after invalidate: %v", err)
	}
	if base.callCount() != 4 {
		t.Fatalf("expected invalidation to force a fetch, got %d base calls", base.callCount())
	}
}

func TestCachedBalanceCheckReader_PropagatesNotFound(t *testing.T) {
	base := &stubBalanceCheckReader{getErr: core.ErrBalanceCheckNotFound}
	reader, err := NewCachedBalanceCheckReader(base, newTestBalanceCheckCacheService(t))
	if err != nil {
		t.Fatalf("new reader: %v", err)
	}
	if _, err := reader.GetByCorrelationID(context.Background(), "missing"); !errors.Is(err, core.ErrBalanceCheckNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := reader.GetByCorrelationID(context.Background(), " "); err == nil {
		t.Fatalf("expected empty correlation id to be rejected")
	}
}

func TestBalanceCheckCacheKey(t *testing.T) {
	key, err := BalanceCheckCacheKey(" AG/1 ")
	if err != nil {
		t.Fatalf("cache key: %v", err)
	}
	if key != "go-bankfeeds::balance_check::v1::AG%2F1" {
		t.Fatalf("unexpected cache key %q", key)
	}
}

func newTestBalanceCheckCacheService(t *testing.T) repositorycache.CacheService {
	t.Helper()
	config := repositorycache.DefaultConfig()
	config.TTL = time.Minute
	service, err := repositorycache.NewCacheService(config)
	if err != nil {
		t.Fatalf("new cache service: %v", err)
	}
	return service
}

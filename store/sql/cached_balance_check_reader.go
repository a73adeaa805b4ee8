package sqlstore

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/goliatone/go-bankfeeds/core"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
)

const balanceCheckCacheKeyPrefix = "go-bankfeeds::balance_check::v1"

// CachedBalanceCheckReader serves correlation lookups for polling clients.
// Only terminal checks are kept in the cache; a pending check is read
// through on every call until its callback lands.
type CachedBalanceCheckReader struct {
	base  core.BalanceCheckReader
	cache repositorycache.CacheService
}

func NewCachedBalanceCheckReader(
	base core.BalanceCheckReader,
	cacheService repositorycache.CacheService,
) (*CachedBalanceCheckReader, error) {
	if base == nil {
		return nil, fmt.Errorf("sqlstore: base balance check reader is required")
	}
	if cacheService == nil {
		return nil, fmt.Errorf("sqlstore: balance check cache service is required")
	}
	return &CachedBalanceCheckReader{base: base, cache: cacheService}, nil
}

// BalanceCheckCacheKey returns go-bankfeeds::balance_check::v1::<correlation id>
// with the id URL-path escaped.
func BalanceCheckCacheKey(correlationID string) (string, error) {
	correlationID = strings.TrimSpace(correlationID)
	if correlationID == "" {
		return "", fmt.Errorf("sqlstore: balance check correlation id is required")
	}
	return balanceCheckCacheKeyPrefix + "::" + url.PathEscape(correlationID), nil
}

func (r *CachedBalanceCheckReader) GetByCorrelationID(ctx context.Context, correlationID string) (core.BalanceCheck, error) {
	if r == nil || r.base == nil || r.cache == nil {
		return core.BalanceCheck{}, fmt.Errorf("sqlstore: cached balance check reader is not configured")
	}
	cacheKey, err := BalanceCheckCacheKey(correlationID)
	if err != nil {
		return core.BalanceCheck{}, err
	}

	check, err := repositorycache.GetOrFetch(ctx, r.cache, cacheKey, func(ctx context.Context) (core.BalanceCheck, error) {
		return r.base.GetByCorrelationID(ctx, correlationID)
	})
	if err != nil {
		return core.BalanceCheck{}, err
	}
	if !check.Status.Terminal() {
		if err := r.cache.Delete(ctx, cacheKey); err != nil {
			return core.BalanceCheck{}, err
		}
	}
	return cloneBalanceCheck(check), nil
}

// Invalidate drops a cached entry after a write outside this reader.
func (r *CachedBalanceCheckReader) Invalidate(ctx context.Context, correlationID string) error {
	if r == nil || r.cache == nil {
		return fmt.Errorf("sqlstore: cached balance check reader is not configured")
	}
	cacheKey, err := BalanceCheckCacheKey(correlationID)
	if err != nil {
		return err
	}
	return r.cache.Delete(ctx, cacheKey)
}

func cloneBalanceCheck(check core.BalanceCheck) core.BalanceCheck {
	cloned := check
	cloned.Balances = append([]core.AccountBalance(nil), check.Balances...)
	cloned.Payload = copyAnyMap(check.Payload)
	cloned.ResolvedAt = utcPointer(check.ResolvedAt)
	return cloned
}

var _ core.BalanceCheckReader = (*CachedBalanceCheckReader)(nil)

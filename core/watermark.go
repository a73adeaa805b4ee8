package core

import (
	"context"
	"strings"
	"time"
)

// SyncStartDate derives the start of the fetch window for an account: one
// day after the latest persisted non-balance-check line, or now minus the
// lookback when the account has no lines yet.
func SyncStartDate(ctx context.Context, store StatementLineStore, accountID string, now time.Time, lookback time.Duration) (time.Time, error) {
	if lookback <= 0 {
		lookback = time.Duration(DefaultLookbackDays) * 24 * time.Hour
	}
	if store == nil {
		return now.UTC().Add(-lookback), nil
	}
	latest, found, err := store.LatestTransactionDate(ctx, strings.TrimSpace(accountID))
	if err != nil {
		return time.Time{}, err
	}
	if !found || latest.IsZero() {
		return now.UTC().Add(-lookback), nil
	}
	return latest.UTC().AddDate(0, 0, 1), nil
}

func (s *Service) syncStartDate(ctx context.Context, account Account) (time.Time, error) {
	return SyncStartDate(ctx, s.statementLineStore, account.ID, s.now(), s.config.Lookback())
}

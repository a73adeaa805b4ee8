package sync

import (
	"context"
	"errors"
	"strings"
	stdsync "sync"
	"time"

	"github.com/goliatone/go-bankfeeds/core"
	glog "github.com/goliatone/go-logger/glog"
	"golang.org/x/sync/errgroup"
)

const DefaultConcurrency = 4

// ErrAccountBusy is returned when a sync for the same account is already
// running in this process.
var ErrAccountBusy = errors.New("sync: account sync already running")

type AccountSyncer interface {
	Sync(ctx context.Context, account core.Account) (core.SyncReport, error)
}

type Result struct {
	AccountID string
	Report    core.SyncReport
	Err       error
}

// Runner syncs many accounts with bounded concurrency and never runs two
// passes for the same account at once.
type Runner struct {
	syncer      AccountSyncer
	concurrency int
	logger      core.Logger
	now         func() time.Time

	mu     stdsync.Mutex
	leases map[string]time.Time
}

type RunnerOption func(*Runner)

func WithConcurrency(n int) RunnerOption {
	return func(r *Runner) {
		if n > 0 {
			r.concurrency = n
		}
	}
}

func WithRunnerLogger(logger core.Logger) RunnerOption {
	return func(r *Runner) {
		r.logger = logger
	}
}

func NewRunner(syncer AccountSyncer, opts ...RunnerOption) *Runner {
	r := &Runner{
		syncer:      syncer,
		concurrency: DefaultConcurrency,
		now:         func() time.Time { return time.Now().UTC() },
		leases:      map[string]time.Time{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	r.logger = glog.Ensure(r.logger)
	return r
}

// SyncAccount runs one pass under the account lease.
func (r *Runner) SyncAccount(ctx context.Context, account core.Account) (core.SyncReport, error) {
	if r == nil || r.syncer == nil {
		return core.SyncReport{}, core.NewConfigurationError("sync: account syncer is required", nil)
	}
	accountID := strings.TrimSpace(account.ID)
	if !r.acquire(accountID) {
		return core.SyncReport{AccountID: accountID, ProviderKey: account.ProviderKey}, ErrAccountBusy
	}
	defer r.release(accountID)
	return r.syncer.Sync(ctx, account)
}

// Run syncs every account and reports each outcome. A failing account does
// not stop the others; only a cancelled context is returned as an error.
func (r *Runner) Run(ctx context.Context, accounts []core.Account) ([]Result, error) {
	results := make([]Result, len(accounts))
	var g errgroup.Group
	g.SetLimit(r.concurrency)
	for i, account := range accounts {
		results[i] = Result{AccountID: account.ID}
		if err := ctx.Err(); err != nil {
			results[i].Err = err
			continue
		}
		g.Go(func() error {
			report, err := r.SyncAccount(ctx, account)
			results[i].Report = report
			results[i].Err = err
			r.logResult(ctx, account, report, err)
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return results, err
	}
	return results, nil
}

// Busy reports whether accountID currently holds a lease.
func (r *Runner) Busy(accountID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.leases[strings.TrimSpace(accountID)]
	return ok
}

func (r *Runner) acquire(accountID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, held := r.leases[accountID]; held {
		return false
	}
	r.leases[accountID] = r.now()
	return true
}

func (r *Runner) release(accountID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.leases, accountID)
}

func (r *Runner) logResult(ctx context.Context, account core.Account, report core.SyncReport, err error) {
	logger := r.logger.WithContext(ctx)
	if err != nil {
		logger.Warn("account sync failed",
			"account_id", account.ID,
			"provider_key", account.ProviderKey,
			"error", err,
		)
		return
	}
	logger.Info("account synced",
		"account_id", account.ID,
		"provider_key", account.ProviderKey,
		"fetched", report.Fetched,
		"persisted", report.Persisted,
		"skipped", report.Skipped,
		"degraded", report.Degraded,
	)
}

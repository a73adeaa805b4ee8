package sync

import (
	"context"
	"errors"
	stdsync "sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goliatone/go-bankfeeds/core"
)

func TestRunner_RunBoundsConcurrencyAndReportsEachAccount(t *testing.T) {
	syncer := &blockingSyncer{delay: 20 * time.Millisecond}
	runner := NewRunner(syncer, WithConcurrency(2))

	accounts := []core.Account{{ID: "a1"}, {ID: "a2"}, {ID: "a3"}, {ID: "a4"}, {ID: "a5"}}
	results, err := runner.Run(context.Background(), accounts)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(results) != len(accounts) {
		t.Fatalf("expected %d results, got %d", len(accounts), len(results))
	}
	for i, result := range results {
		if result.AccountID != accounts[i].ID || result.Err != nil || result.Report.AccountID != accounts[i].ID {
			t.Fatalf("unexpected result %d: %#v", i, result)
		}
	}
	if peak := syncer.peak.Load(); peak > 2 {
		t.Fatalf("expected at most 2 concurrent syncs, saw %d", peak)
	}
}

func TestRunner_FailureDoesNotStopOtherAccounts(t *testing.T) {
	syncer := &blockingSyncer{errs: map[string]error{
		"a2": core.NewAuthFailure(core.ProviderKeyGenericREST, 401, "", nil),
	}}
	results, err := NewRunner(syncer).Run(context.Background(), []core.Account{{ID: "a1"}, {ID: "a2"}, {ID: "a3"}})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if results[0].Err != nil || results[2].Err != nil {
		t.Fatalf("expected healthy accounts to sync, got %#v", results)
	}
	if !core.IsErrorKind(results[1].Err, core.ErrorAuthFailure) {
		t.Fatalf("expected auth failure for a2, got %v", results[1].Err)
	}
}

func TestRunner_SyncAccountRejectsConcurrentPassForSameAccount(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	syncer := &blockingSyncer{gate: release, started: started}
	runner := NewRunner(syncer)

	done := make(chan error, 1)
	go func() {
		_, err := runner.SyncAccount(context.Background(), core.Account{ID: "a1"})
		done <- err
	}()
	<-started
	if !runner.Busy("a1") {
		t.Fatalf("expected lease to be held")
	}
	if _, err := runner.SyncAccount(context.Background(), core.Account{ID: "a1"}); !errors.Is(err, ErrAccountBusy) {
		t.Fatalf("expected busy error, got %v", err)
	}
	close(release)
	if err := <-done; err != nil {
		t.Fatalf("first pass: %v", err)
	}
	if runner.Busy("a1") {
		t.Fatalf("expected lease released")
	}
}

func TestRunner_CancelledContextSkipsRemainingAccounts(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	syncer := &blockingSyncer{}
	results, err := NewRunner(syncer).Run(ctx, []core.Account{{ID: "a1"}, {ID: "a2"}})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context cancellation, got %v", err)
	}
	if syncer.calls.Load() != 0 {
		t.Fatalf("expected no sync after cancellation")
	}
	if !errors.Is(results[0].Err, context.Canceled) {
		t.Fatalf("expected skipped result to carry cancellation, got %#v", results[0])
	}
}

type blockingSyncer struct {
	delay   time.Duration
	gate    chan struct{}
	started chan struct{}
	errs    map[string]error

	once    stdsync.Once
	calls   atomic.Int32
	current atomic.Int32
	peak    atomic.Int32
}

func (s *blockingSyncer) Sync(_ context.Context, account core.Account) (core.SyncReport, error) {
	s.calls.Add(1)
	n := s.current.Add(1)
	defer s.current.Add(-1)
	for {
		peak := s.peak.Load()
		if n <= peak || s.peak.CompareAndSwap(peak, n) {
			break
		}
	}
	if s.started != nil {
		s.once.Do(func() { close(s.started) })
	}
	if s.gate != nil {
		<-s.gate
	}
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	if err := s.errs[account.ID]; err != nil {
		return core.SyncReport{AccountID: account.ID}, err
	}
	return core.SyncReport{AccountID: account.ID, Fetched: 1, Persisted: 1}, nil
}

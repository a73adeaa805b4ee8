package command

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/goliatone/go-bankfeeds/core"
	gocmd "github.com/goliatone/go-command"
)

func TestSyncAccountCommand_ExecuteLoadsAccountAndStoresReport(t *testing.T) {
	accounts := stubAccountReader{accounts: map[string]core.Account{
		"acc_1": {ID: "acc_1", ProviderKey: core.ProviderKeyGenericREST},
	}}
	called := false
	svc := stubService{
		syncFn: func(_ context.Context, account core.Account) (core.SyncReport, error) {
			called = true
			if account.ID != "acc_1" || account.ProviderKey != core.ProviderKeyGenericREST {
				t.Fatalf("unexpected account: %#v", account)
			}
			return core.SyncReport{AccountID: "acc_1", Fetched: 3, Persisted: 2, Skipped: 1}, nil
		},
	}

	cmd := NewSyncAccountCommand(accounts, svc)
	collector := gocmd.NewResult[core.SyncReport]()
	ctx := gocmd.ContextWithResult(context.Background(), collector)
	if err := cmd.Execute(ctx, SyncAccountMessage{AccountID: "acc_1"}); err != nil {
		t.Fatalf("execute sync: %v", err)
	}
	if !called {
		t.Fatalf("expected sync invocation")
	}
	report, ok := collector.Load()
	if !ok {
		t.Fatalf("expected report to be stored")
	}
	if report.Persisted != 2 || report.Skipped != 1 {
		t.Fatalf("unexpected report: %#v", report)
	}
}

func TestSyncAccountCommand_MissingAccountIsNotFound(t *testing.T) {
	cmd := NewSyncAccountCommand(stubAccountReader{}, stubService{})
	err := cmd.Execute(context.Background(), SyncAccountMessage{AccountID: "missing"})
	if !core.IsErrorKind(err, core.ErrorNotFound) {
		t.Fatalf("expected not found error, got %v", err)
	}
}

func TestBalanceCheckCommands_DelegateToService(t *testing.T) {
	accounts := stubAccountReader{accounts: map[string]core.Account{
		"acc_m": {ID: "acc_m", ProviderKey: core.ProviderKeyMobileMoney},
	}}

	t.Run("balance", func(t *testing.T) {
		svc := stubService{
			balanceFn: func(_ context.Context, account core.Account) (core.BalanceCheck, error) {
				return core.BalanceCheck{CorrelationID: "AG_1", AccountID: account.ID, Status: core.BalanceCheckStatusPending}, nil
			},
		}
		collector := gocmd.NewResult[core.BalanceCheck]()
		ctx := gocmd.ContextWithResult(context.Background(), collector)
		if err := NewRequestBalanceCheckCommand(accounts, svc).Execute(ctx, RequestBalanceCheckMessage{AccountID: "acc_m"}); err != nil {
			t.Fatalf("execute balance check: %v", err)
		}
		check, ok := collector.Load()
		if !ok || check.CorrelationID != "AG_1" || check.AccountID != "acc_m" {
			t.Fatalf("unexpected balance check result: %#v", check)
		}
	})

	t.Run("transaction status", func(t *testing.T) {
		svc := stubService{
			statusFn: func(_ context.Context, _ core.Account, transactionID string) (core.BalanceCheck, error) {
				if transactionID != "QK123" {
					t.Fatalf("unexpected transaction id %q", transactionID)
				}
				return core.BalanceCheck{CorrelationID: "AG_2", TransactionID: transactionID}, nil
			},
		}
		collector := gocmd.NewResult[core.BalanceCheck]()
		ctx := gocmd.ContextWithResult(context.Background(), collector)
		msg := RequestTransactionStatusMessage{AccountID: "acc_m", TransactionID: "QK123"}
		if err := NewRequestTransactionStatusCommand(accounts, svc).Execute(ctx, msg); err != nil {
			t.Fatalf("execute status: %v", err)
		}
		if check, _ := collector.Load(); check.CorrelationID != "AG_2" {
			t.Fatalf("unexpected status result: %#v", check)
		}
	})

	t.Run("service error propagates", func(t *testing.T) {
		svc := stubService{
			balanceFn: func(context.Context, core.Account) (core.BalanceCheck, error) {
				return core.BalanceCheck{}, core.NewAuthFailure(core.ProviderKeyMobileMoney, 401, "", nil)
			},
		}
		err := NewRequestBalanceCheckCommand(accounts, svc).Execute(context.Background(), RequestBalanceCheckMessage{AccountID: "acc_m"})
		if !core.IsErrorKind(err, core.ErrorAuthFailure) {
			t.Fatalf("expected auth failure, got %v", err)
		}
	})
}

func TestResolveCallbackCommand_RoutesBySurface(t *testing.T) {
	resolver := &stubResolver{}
	cmd := NewResolveCallbackCommand(resolver)

	if err := cmd.Execute(context.Background(), ResolveCallbackMessage{
		Surface: core.CallbackSurfaceBalanceResult,
		Payload: []byte(`{"Result":{}}`),
	}); err != nil {
		t.Fatalf("resolve balance: %v", err)
	}
	if err := cmd.Execute(context.Background(), ResolveCallbackMessage{
		Surface:       core.CallbackSurfaceStatusResult,
		CorrelationID: "AG_2",
		Payload:       []byte(`{"Result":{}}`),
	}); err != nil {
		t.Fatalf("resolve status: %v", err)
	}
	if err := cmd.Execute(context.Background(), ResolveCallbackMessage{
		Surface:       core.CallbackSurfaceTimeout,
		CorrelationID: "AG_3",
	}); err != nil {
		t.Fatalf("record timeout: %v", err)
	}
	if resolver.balance != 1 || resolver.status != 1 || len(resolver.timeouts) != 1 {
		t.Fatalf("unexpected routing: %#v", resolver)
	}
	if err := cmd.Execute(context.Background(), ResolveCallbackMessage{Surface: core.CallbackSurfaceTimeout}); err == nil {
		t.Fatalf("expected timeout without correlation id to fail validation")
	}
}

func TestExpireBalanceChecksCommand_TimesOutPendingChecks(t *testing.T) {
	cutoff := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	lister := stubPendingLister{checks: []core.BalanceCheck{
		{CorrelationID: "AG_1"},
		{CorrelationID: "AG_2"},
		{CorrelationID: "AG_3"},
	}}
	resolver := &stubResolver{timeoutErrs: map[string]error{"AG_2": errors.New("store unavailable")}}

	collector := gocmd.NewResult[ExpireBalanceChecksResult]()
	ctx := gocmd.ContextWithResult(context.Background(), collector)
	if err := NewExpireBalanceChecksCommand(&lister, resolver).Execute(ctx, ExpireBalanceChecksMessage{Cutoff: cutoff}); err != nil {
		t.Fatalf("expire: %v", err)
	}
	if !lister.cutoff.Equal(cutoff) {
		t.Fatalf("expected cutoff forwarded, got %s", lister.cutoff)
	}
	result, ok := collector.Load()
	if !ok {
		t.Fatalf("expected result to be stored")
	}
	if len(result.Expired) != 2 || result.Expired[0] != "AG_1" || result.Expired[1] != "AG_3" {
		t.Fatalf("unexpected expired ids: %#v", result.Expired)
	}
	if result.Failed["AG_2"] != "store unavailable" {
		t.Fatalf("expected failure recorded for AG_2, got %#v", result.Failed)
	}
}

type stubAccountReader struct {
	accounts map[string]core.Account
}

func (r stubAccountReader) Get(_ context.Context, id string) (core.Account, error) {
	account, ok := r.accounts[id]
	if !ok {
		return core.Account{}, core.ErrAccountNotFound
	}
	return account, nil
}

type stubService struct {
	syncFn    func(ctx context.Context, account core.Account) (core.SyncReport, error)
	balanceFn func(ctx context.Context, account core.Account) (core.BalanceCheck, error)
	statusFn  func(ctx context.Context, account core.Account, transactionID string) (core.BalanceCheck, error)
}

func (s stubService) Sync(ctx context.Context, account core.Account) (core.SyncReport, error) {
	if s.syncFn == nil {
		return core.SyncReport{}, nil
	}
	return s.syncFn(ctx, account)
}

func (s stubService) RequestBalanceCheck(ctx context.Context, account core.Account) (core.BalanceCheck, error) {
	if s.balanceFn == nil {
		return core.BalanceCheck{}, nil
	}
	return s.balanceFn(ctx, account)
}

func (s stubService) RequestTransactionStatus(ctx context.Context, account core.Account, transactionID string) (core.BalanceCheck, error) {
	if s.statusFn == nil {
		return core.BalanceCheck{}, nil
	}
	return s.statusFn(ctx, account, transactionID)
}

type stubResolver struct {
	balance     int
	status      int
	timeouts    []string
	timeoutErrs map[string]error
}

func (r *stubResolver) ResolveBalanceResult(_ context.Context, correlationID string, _ []byte) (core.BalanceCheck, error) {
	r.balance++
	return core.BalanceCheck{CorrelationID: correlationID}, nil
}

func (r *stubResolver) ResolveStatusResult(_ context.Context, correlationID string, _ []byte) (core.BalanceCheck, error) {
	r.status++
	return core.BalanceCheck{CorrelationID: correlationID}, nil
}

func (r *stubResolver) RecordCallbackTimeout(_ context.Context, correlationID string, _ []byte) (core.BalanceCheck, error) {
	if err := r.timeoutErrs[correlationID]; err != nil {
		return core.BalanceCheck{}, err
	}
	r.timeouts = append(r.timeouts, correlationID)
	return core.BalanceCheck{CorrelationID: correlationID, Status: core.BalanceCheckStatusTimedOut}, nil
}

type stubPendingLister struct {
	checks []core.BalanceCheck
	cutoff time.Time
}

func (l *stubPendingLister) ListPending(_ context.Context, cutoff time.Time) ([]core.BalanceCheck, error) {
	l.cutoff = cutoff
	return l.checks, nil
}

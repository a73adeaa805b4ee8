package core

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
)

func TestRequestBalanceCheckStoresPendingCorrelation(t *testing.T) {
	adapter := &stubAdapter{
		key: "stub",
		balanceAck: BalanceCheckRequest{
			Acknowledged:             true,
			CorrelationID:            "AG_20240315_1",
			OriginatorConversationID: "orig-1",
			ResponseCode:             "0",
		},
	}
	checks := newMemoryBalanceCheckStore()
	svc := newTestService(t, adapter, WithBalanceCheckStore(checks), WithClock(fixedClock))

	check, err := svc.RequestBalanceCheck(context.Background(), testAccount("stub"))
	if err != nil {
		t.Fatalf("request balance check: %v", err)
	}
	if check.CorrelationID != "AG_20240315_1" || check.Status != BalanceCheckStatusPending {
		t.Fatalf("unexpected check: %#v", check)
	}
	if !check.RequestedAt.Equal(fixedNow) {
		t.Fatalf("expected requested_at from clock, got %s", check.RequestedAt)
	}
}

func TestRequestBalanceCheckRequiresAcknowledgement(t *testing.T) {
	adapter := &stubAdapter{
		key:        "stub",
		balanceAck: BalanceCheckRequest{Acknowledged: false, ResponseCode: "1"},
	}
	svc := newTestService(t, adapter, WithBalanceCheckStore(newMemoryBalanceCheckStore()))

	if _, err := svc.RequestBalanceCheck(context.Background(), testAccount("stub")); !IsErrorKind(err, ErrorExternalFailure) {
		t.Fatalf("expected external failure, got %v", err)
	}
}

func TestRequestBalanceCheckRejectsSyncOnlyProviders(t *testing.T) {
	adapter := syncOnlyAdapter{inner: &stubAdapter{key: "stub"}}
	svc := newTestService(t, adapter)

	if _, err := svc.RequestBalanceCheck(context.Background(), testAccount("stub")); !IsErrorKind(err, ErrorConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestRequestTransactionStatusPassesTransactionID(t *testing.T) {
	adapter := &stubAdapter{
		key:        "stub",
		balanceAck: BalanceCheckRequest{Acknowledged: true, CorrelationID: "AG_TS_1"},
	}
	checks := newMemoryBalanceCheckStore()
	svc := newTestService(t, adapter, WithBalanceCheckStore(checks))

	check, err := svc.RequestTransactionStatus(context.Background(), testAccount("stub"), " OEI2AK4Q16 ")
	if err != nil {
		t.Fatalf("request status: %v", err)
	}
	if adapter.statusTxID != "OEI2AK4Q16" || check.TransactionID != "OEI2AK4Q16" {
		t.Fatalf("expected trimmed transaction id, got adapter=%q check=%q", adapter.statusTxID, check.TransactionID)
	}
	if check.Kind != BalanceCheckKindTransactionStatus {
		t.Fatalf("expected transaction status kind, got %q", check.Kind)
	}
}

func TestResolveBalanceResultCompletesPendingCheck(t *testing.T) {
	adapter := &stubAdapter{
		key:        "stub",
		balanceAck: BalanceCheckRequest{Acknowledged: true, CorrelationID: "AG_1"},
		callback: CallbackResult{
			CorrelationID:     "AG_1",
			ResultCode:        "0",
			ResultDescription: "The service request is processed successfully.",
			Success:           true,
			Balances: []AccountBalance{{
				Name:      "Working Account",
				Currency:  "KES",
				Available: decimal.RequireFromString("700000.00"),
			}},
			Parameters: map[string]any{"AccountBalance": "Working Account|KES|700000.00|700000.00|0.00|0.00"},
		},
	}
	checks := newMemoryBalanceCheckStore()
	svc := newTestService(t, adapter, WithBalanceCheckStore(checks), WithClock(fixedClock))
	if _, err := svc.RequestBalanceCheck(context.Background(), testAccount("stub")); err != nil {
		t.Fatalf("request: %v", err)
	}

	check, err := svc.ResolveBalanceResult(context.Background(), "", []byte(`{"Result":{}}`))
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if check.Status != BalanceCheckStatusCompleted {
		t.Fatalf("expected completed, got %q", check.Status)
	}
	if len(check.Balances) != 1 || check.Balances[0].Available.String() != "700000" {
		t.Fatalf("expected parsed balances, got %#v", check.Balances)
	}
	if check.ResolvedAt == nil || !check.ResolvedAt.Equal(fixedNow) {
		t.Fatalf("expected resolved_at from clock, got %v", check.ResolvedAt)
	}

	adapter.callback.Success = false
	again, err := svc.ResolveBalanceResult(context.Background(), "AG_1", []byte(`{"Result":{}}`))
	if err != nil {
		t.Fatalf("duplicate resolve: %v", err)
	}
	if again.Status != BalanceCheckStatusCompleted {
		t.Fatalf("expected terminal status to be kept, got %q", again.Status)
	}
}

func TestResolveCallbackRejectsMismatchedCorrelation(t *testing.T) {
	adapter := &stubAdapter{
		key:        "stub",
		balanceAck: BalanceCheckRequest{Acknowledged: true, CorrelationID: "AG_1"},
		callback:   CallbackResult{CorrelationID: "AG_OTHER", Success: true},
	}
	svc := newTestService(t, adapter, WithBalanceCheckStore(newMemoryBalanceCheckStore()))
	if _, err := svc.RequestBalanceCheck(context.Background(), testAccount("stub")); err != nil {
		t.Fatalf("request: %v", err)
	}
	if _, err := svc.ResolveBalanceResult(context.Background(), "AG_1", []byte(`{}`)); !IsErrorKind(err, ErrorConfiguration) {
		t.Fatalf("expected mismatch error, got %v", err)
	}
}

func TestResolveStatusResultRejectsBalanceChecks(t *testing.T) {
	adapter := &stubAdapter{
		key:        "stub",
		balanceAck: BalanceCheckRequest{Acknowledged: true, CorrelationID: "AG_1"},
		callback:   CallbackResult{CorrelationID: "AG_1", Success: true},
	}
	svc := newTestService(t, adapter, WithBalanceCheckStore(newMemoryBalanceCheckStore()))
	if _, err := svc.RequestBalanceCheck(context.Background(), testAccount("stub")); err != nil {
		t.Fatalf("request: %v", err)
	}
	if _, err := svc.ResolveStatusResult(context.Background(), "AG_1", []byte(`{}`)); !IsErrorKind(err, ErrorConfiguration) {
		t.Fatalf("expected kind mismatch error, got %v", err)
	}
}

func TestRecordCallbackTimeoutMarksCheckTimedOut(t *testing.T) {
	adapter := &stubAdapter{
		key:        "stub",
		balanceAck: BalanceCheckRequest{Acknowledged: true, CorrelationID: "AG_1"},
	}
	svc := newTestService(t, adapter, WithBalanceCheckStore(newMemoryBalanceCheckStore()))
	if _, err := svc.RequestBalanceCheck(context.Background(), testAccount("stub")); err != nil {
		t.Fatalf("request: %v", err)
	}
	check, err := svc.RecordCallbackTimeout(context.Background(), "AG_1", nil)
	if err != nil {
		t.Fatalf("timeout: %v", err)
	}
	if check.Status != BalanceCheckStatusTimedOut {
		t.Fatalf("expected timed_out, got %q", check.Status)
	}
}

func TestGetBalanceCheckReportsNotFound(t *testing.T) {
	svc := newTestService(t, &stubAdapter{key: "stub"}, WithBalanceCheckStore(newMemoryBalanceCheckStore()))
	if _, err := svc.GetBalanceCheck(context.Background(), "missing"); !IsErrorKind(err, ErrorNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

package devkit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/goliatone/go-bankfeeds/core"
	"github.com/goliatone/go-bankfeeds/transport"
	"github.com/shopspring/decimal"
)

func TestFakeClient_ScriptsAndCapturesRequests(t *testing.T) {
	client := NewFakeClient(
		TransportScript{Match: "/oauth2/token", Response: JSONResponse(200, `{"access_token":"t"}`)},
		TransportScript{Response: JSONResponse(503, `{}`)},
		TransportScript{Response: JSONResponse(200, `[]`)},
	)
	ctx := context.Background()

	token, err := client.Do(ctx, transport.Request{URL: "https://bank.example.test/oauth2/token"})
	if err != nil || token.StatusCode != 200 {
		t.Fatalf("expected matched token script, got %d %v", token.StatusCode, err)
	}
	first, _ := client.Do(ctx, transport.Request{URL: "https://bank.example.test/v1/accounts"})
	second, _ := client.Do(ctx, transport.Request{URL: "https://bank.example.test/v1/accounts"})
	third, _ := client.Do(ctx, transport.Request{URL: "https://bank.example.test/v1/accounts"})
	if first.StatusCode != 503 || second.StatusCode != 200 || third.StatusCode != 200 {
		t.Fatalf("unexpected scripted statuses %d %d %d", first.StatusCode, second.StatusCode, third.StatusCode)
	}
	if got := len(client.Requests()); got != 4 {
		t.Fatalf("expected four captured requests, got %d", got)
	}
	if got := len(client.RequestsTo("/oauth2/token")); got != 1 {
		t.Fatalf("expected one token request, got %d", got)
	}
}

type panickyAdapter struct{}

func (panickyAdapter) ProviderKey() string { return "panicky" }
func (panickyAdapter) Authenticate(context.Context, core.Credentials) (core.Session, error) {
	return nil, errors.New("unused")
}
func (panickyAdapter) FetchTransactions(context.Context, core.Session, core.Account, time.Time) ([]core.RawTransaction, error) {
	return nil, nil
}
func (panickyAdapter) NormalizeTransaction(raw core.RawTransaction) core.NormalizedLine {
	if len(raw.Payload) == 0 {
		panic("empty payload")
	}
	return core.NormalizedLine{
		TransactionDate: raw.ObservedAt,
		Description:     "x",
		Reference:       "r",
		Debit:           decimal.NewFromInt(1),
		Credit:          decimal.NewFromInt(1),
	}
}

func TestValidateNormalizeConformance_ReportsPanics(t *testing.T) {
	if err := ValidateNormalizeConformance(panickyAdapter{}); err == nil {
		t.Fatalf("expected conformance failure for panicking adapter")
	}
}

func TestStatementLineStoreFixture_RejectsDuplicateReference(t *testing.T) {
	store := NewStatementLineStoreFixture()
	ctx := context.Background()
	line := core.StatementLine{AccountID: "acct_1", Reference: "tx-1", TransactionDate: time.Now().UTC()}
	if _, err := store.Create(ctx, line); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := store.Create(ctx, line); !core.IsErrorKind(err, core.ErrorPersistenceConflict) {
		t.Fatalf("expected persistence conflict, got %v", err)
	}
	if _, err := store.Create(ctx, core.StatementLine{AccountID: "acct_2", Reference: "tx-1"}); err != nil {
		t.Fatalf("expected reference to be scoped per account: %v", err)
	}
}

func TestBalanceCheckStoreFixture_Resolve(t *testing.T) {
	store := NewBalanceCheckStoreFixture()
	ctx := context.Background()
	if _, err := store.Create(ctx, core.BalanceCheck{CorrelationID: "AG_1", Status: core.BalanceCheckStatusPending}); err != nil {
		t.Fatalf("create: %v", err)
	}
	resolved, err := store.Resolve(ctx, "AG_1", core.ResolveBalanceCheckInput{Status: core.BalanceCheckStatusCompleted, ResultCode: "0"})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if resolved.Status != core.BalanceCheckStatusCompleted || resolved.ResolvedAt == nil {
		t.Fatalf("unexpected resolved check %#v", resolved)
	}
	if _, err := store.GetByCorrelationID(ctx, "missing"); !errors.Is(err, core.ErrBalanceCheckNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

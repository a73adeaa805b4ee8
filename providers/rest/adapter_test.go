package rest

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/goliatone/go-bankfeeds/core"
	"github.com/goliatone/go-bankfeeds/providers/devkit"
	"github.com/goliatone/go-bankfeeds/transport"
	"github.com/shopspring/decimal"
)

var fixedNow = time.Date(2024, 3, 15, 9, 30, 0, 0, time.UTC)

func newTestAdapter(t *testing.T, client transport.Client) *Adapter {
	t.Helper()
	adapter, err := New(Config{
		BaseURL: "https://bank.example.test/api",
		Client:  client,
		Now:     func() time.Time { return fixedNow },
	})
	if err != nil {
		t.Fatalf("new adapter: %v", err)
	}
	return adapter
}

func testCredentials() core.Credentials {
	return core.Credentials{
		core.CredentialClientID:     "client",
		core.CredentialClientSecret: "secret",
	}
}

func TestNormalizeTransaction_DebitAndCredit(t *testing.T) {
	adapter := newTestAdapter(t, devkit.NewFakeClient())
	amount := decimal.RequireFromString("150.00")

	debit := adapter.NormalizeTransaction(core.RawTransaction{Payload: map[string]any{
		"transaction_id":   "tx-1",
		"transaction_type": "DEBIT",
		"amount":           "150.00",
		"transaction_date": "2024-03-10",
		"description":      "Card purchase",
	}})
	if !debit.Debit.Equal(amount) || !debit.Credit.IsZero() {
		t.Fatalf("expected debit 150.00/0, got %s/%s", debit.Debit, debit.Credit)
	}
	if debit.Reference != "tx-1" || debit.Description != "Card purchase" {
		t.Fatalf("unexpected debit line %#v", debit)
	}

	credit := adapter.NormalizeTransaction(core.RawTransaction{Payload: map[string]any{
		"id":               "tx-2",
		"transaction_type": "CREDIT",
		"amount":           150.00,
	}, ObservedAt: fixedNow})
	if !credit.Debit.IsZero() || !credit.Credit.Equal(amount) {
		t.Fatalf("expected credit 0/150.00, got %s/%s", credit.Debit, credit.Credit)
	}
	if credit.Reference != "tx-2" {
		t.Fatalf("expected id fallback reference, got %q", credit.Reference)
	}
	if !credit.TransactionDate.Equal(fixedNow) || credit.Description != core.DefaultLineDescription {
		t.Fatalf("expected degraded date and description, got %#v", credit)
	}
}

func TestNormalizeTransaction_ConvertsProviderLocalTime(t *testing.T) {
	nairobi := time.FixedZone("EAT", 3*60*60)
	adapter, err := New(Config{BaseURL: "https://bank.example.test", Location: nairobi})
	if err != nil {
		t.Fatalf("new adapter: %v", err)
	}
	line := adapter.NormalizeTransaction(core.RawTransaction{Payload: map[string]any{
		"transaction_id":   "tx-3",
		"transaction_date": "2024-03-10 01:00:00",
		"amount":           "10",
	}})
	if want := time.Date(2024, 3, 9, 22, 0, 0, 0, time.UTC); !line.TransactionDate.Equal(want) {
		t.Fatalf("expected %s, got %s", want, line.TransactionDate)
	}
}

func TestNormalizeTransaction_Conformance(t *testing.T) {
	adapter := newTestAdapter(t, devkit.NewFakeClient())
	if err := devkit.ValidateNormalizeConformance(adapter); err != nil {
		t.Fatalf("conformance: %v", err)
	}
}

func TestAuthenticateAndFetch(t *testing.T) {
	client := devkit.NewFakeClient(
		devkit.TransportScript{Match: TokenPath, Response: devkit.JSONResponse(http.StatusOK, `{"access_token":"bank-token","token_type":"Bearer","expires_in":600}`)},
		devkit.TransportScript{Match: "/transactions", Response: devkit.JSONResponse(http.StatusOK, `{"transactions":[
			{"transaction_id":"tx-1","transaction_type":"DEBIT","amount":"150.00","transaction_date":"2024-03-10"},
			{"transaction_id":"tx-2","transaction_type":"CREDIT","amount":"20.00","transaction_date":"2024-03-11"}
		]}`)},
	)
	adapter := newTestAdapter(t, client)
	ctx := context.Background()

	session, err := adapter.Authenticate(ctx, testCredentials())
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if session.ProviderKey() != core.ProviderKeyGenericREST {
		t.Fatalf("unexpected session provider %q", session.ProviderKey())
	}

	since := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	raws, err := adapter.FetchTransactions(ctx, session, core.Account{ID: "acct_1", ExternalAccountID: "ext-9"}, since)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(raws) != 2 {
		t.Fatalf("expected two raw transactions, got %d", len(raws))
	}
	if raws[0].ProviderKey != core.ProviderKeyGenericREST || !raws[0].ObservedAt.Equal(fixedNow) {
		t.Fatalf("unexpected raw transaction %#v", raws[0])
	}

	fetches := client.RequestsTo("/transactions")
	if len(fetches) != 1 {
		t.Fatalf("expected one statement request, got %d", len(fetches))
	}
	req := fetches[0]
	if req.URL != "https://bank.example.test/api/v1/accounts/ext-9/transactions" {
		t.Fatalf("unexpected statement url %q", req.URL)
	}
	if req.Query["from_date"] != "2024-03-01" || req.Query["to_date"] != "2024-03-15" {
		t.Fatalf("unexpected window %#v", req.Query)
	}
	if req.Headers["Authorization"] != "Bearer bank-token" {
		t.Fatalf("unexpected authorization header %q", req.Headers["Authorization"])
	}
}

func TestFetchTransactions_AcceptsDataAndBareArrays(t *testing.T) {
	for name, body := range map[string]string{
		"data":  `{"data":[{"id":"a","amount":"1"}]}`,
		"array": `[{"id":"a","amount":"1"}]`,
	} {
		client := devkit.NewFakeClient(
			devkit.TransportScript{Match: TokenPath, Response: devkit.JSONResponse(http.StatusOK, `{"access_token":"t"}`)},
			devkit.TransportScript{Match: "/transactions", Response: devkit.JSONResponse(http.StatusOK, body)},
		)
		adapter := newTestAdapter(t, client)
		session, err := adapter.Authenticate(context.Background(), testCredentials())
		if err != nil {
			t.Fatalf("%s: authenticate: %v", name, err)
		}
		raws, err := adapter.FetchTransactions(context.Background(), session, core.Account{ExternalAccountID: "ext"}, fixedNow)
		if err != nil || len(raws) != 1 {
			t.Fatalf("%s: expected one row, got %d err=%v", name, len(raws), err)
		}
	}
}

func TestFetchTransactions_FailuresAreFetchFailures(t *testing.T) {
	client := devkit.NewFakeClient(
		devkit.TransportScript{Match: TokenPath, Response: devkit.JSONResponse(http.StatusOK, `{"access_token":"t"}`)},
		devkit.TransportScript{Response: devkit.JSONResponse(http.StatusServiceUnavailable, `{"error":"down"}`)},
		devkit.TransportScript{Err: errors.New("dial tcp: i/o timeout")},
	)
	adapter := newTestAdapter(t, client)
	ctx := context.Background()
	session, err := adapter.Authenticate(ctx, testCredentials())
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	account := core.Account{ID: "acct_1", ExternalAccountID: "ext"}

	for attempt := 0; attempt < 2; attempt++ {
		raws, err := adapter.FetchTransactions(ctx, session, account, fixedNow)
		if !core.IsErrorKind(err, core.ErrorFetchFailure) {
			t.Fatalf("attempt %d: expected fetch failure, got %v", attempt, err)
		}
		if raws == nil || len(raws) != 0 {
			t.Fatalf("attempt %d: expected empty non-nil slice, got %#v", attempt, raws)
		}
	}
}

func TestAuthenticate_RejectedIsAuthFailure(t *testing.T) {
	client := devkit.NewFakeClient(
		devkit.TransportScript{Match: TokenPath, Response: devkit.JSONResponse(http.StatusUnauthorized, `{"error":"invalid_client"}`)},
	)
	adapter := newTestAdapter(t, client)
	if _, err := adapter.Authenticate(context.Background(), testCredentials()); !core.IsErrorKind(err, core.ErrorAuthFailure) {
		t.Fatalf("expected auth failure, got %v", err)
	}
	if got := len(client.RequestsTo("/transactions")); got != 0 {
		t.Fatalf("expected no statement requests, got %d", got)
	}
}

func TestFetchTransactions_RejectsForeignSession(t *testing.T) {
	adapter := newTestAdapter(t, devkit.NewFakeClient())
	_, err := adapter.FetchTransactions(context.Background(), foreignSession{}, core.Account{ExternalAccountID: "ext"}, fixedNow)
	if !core.IsErrorKind(err, core.ErrorConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

type foreignSession struct{}

func (foreignSession) ProviderKey() string { return "other" }

func TestFactories_NamedBanksUseConfiguredBaseURL(t *testing.T) {
	cfg := core.DefaultConfig()
	cfg.Banks = map[string]core.BankConfig{
		"equity": {BaseURL: "https://equity.example.test", Timezone: "Africa/Nairobi"},
	}
	factories, err := Factories(cfg, FactoryOptions{Client: devkit.NewFakeClient()})
	if err != nil {
		t.Fatalf("factories: %v", err)
	}
	if _, ok := factories[core.ProviderKeyGenericREST]; !ok {
		t.Fatalf("expected generic rest factory")
	}
	adapter, err := factories["equity"](context.Background(), core.Account{BaseURL: "https://ignored.example.test"})
	if err != nil {
		t.Fatalf("equity factory: %v", err)
	}
	restAdapter, ok := adapter.(*Adapter)
	if !ok || restAdapter.BaseURL() != "https://equity.example.test" || restAdapter.ProviderKey() != "equity" {
		t.Fatalf("unexpected equity adapter %#v", adapter)
	}

	generic, err := factories[core.ProviderKeyGenericREST](context.Background(), core.Account{BaseURL: "https://bank.example.test/"})
	if err != nil {
		t.Fatalf("generic factory: %v", err)
	}
	if generic.(*Adapter).BaseURL() != "https://bank.example.test" {
		t.Fatalf("expected account base url, got %q", generic.(*Adapter).BaseURL())
	}
	if _, err := factories[core.ProviderKeyGenericREST](context.Background(), core.Account{}); !core.IsErrorKind(err, core.ErrorConfiguration) {
		t.Fatalf("expected configuration error without base url, got %v", err)
	}
}

package bankfeeds_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	bankfeeds "github.com/goliatone/go-bankfeeds"
	"github.com/goliatone/go-bankfeeds/command"
	"github.com/goliatone/go-bankfeeds/core"
	"github.com/goliatone/go-bankfeeds/providers/devkit"
	"github.com/goliatone/go-bankfeeds/ratelimit"
	"github.com/goliatone/go-bankfeeds/security"
	gocmd "github.com/goliatone/go-command"
)

func TestDownstreamComposition_SyncsConfiguredBankThroughFacade(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 3, 15, 9, 30, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	client := devkit.NewFakeClient(
		devkit.TransportScript{Match: "/oauth2/token", Response: devkit.JSONResponse(http.StatusOK, `{"access_token":"bank-token","token_type":"Bearer","expires_in":600}`)},
		devkit.TransportScript{Match: "/transactions", Response: devkit.JSONResponse(http.StatusOK, `{"transactions":[
			{"transaction_id":"eq-1","transaction_type":"DEBIT","amount":"150.00","transaction_date":"2024-03-10"},
			{"transaction_id":"eq-2","transaction_type":"CREDIT","amount":"20.00","transaction_date":"2024-03-11"}
		]}`)},
	)

	cfg := bankfeeds.DefaultConfig()
	cfg.Banks = map[string]core.BankConfig{"equity": {BaseURL: "https://equity.example.test/api"}}
	policy := ratelimit.NewAdaptivePolicy(ratelimit.NewMemoryStateStore())
	policy.Now = clock
	registry, err := bankfeeds.NewAdapterRegistry(cfg, bankfeeds.ProviderOptions{
		Client:    client,
		RateLimit: policy,
		Now:       clock,
	})
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}

	secrets, err := security.NewAppKeySecretProviderFromString("downstream-app-key")
	if err != nil {
		t.Fatalf("new secret provider: %v", err)
	}
	sealed, err := core.SealCredentials(ctx, secrets, core.JSONCredentialCodec{}, core.Credentials{
		core.CredentialClientID:     "client",
		core.CredentialClientSecret: "secret",
	})
	if err != nil {
		t.Fatalf("seal credentials: %v", err)
	}
	accounts := devkit.NewAccountStoreFixture(core.Account{
		ID:                "acc_equity",
		TenantID:          "tenant_1",
		ProviderKey:       "equity",
		ExternalAccountID: "0170-1",
		Credentials:       sealed,
	})

	lines := devkit.NewStatementLineStoreFixture()
	service, err := bankfeeds.NewService(cfg,
		bankfeeds.WithAdapterResolver(registry),
		bankfeeds.WithStatementLineStore(lines),
		bankfeeds.WithBalanceCheckStore(devkit.NewBalanceCheckStoreFixture()),
		bankfeeds.WithSecretProvider(secrets),
		bankfeeds.WithClock(clock),
	)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	facade, err := bankfeeds.NewFacade(service, accounts, bankfeeds.WithStatementLineReader(lines))
	if err != nil {
		t.Fatalf("new facade: %v", err)
	}

	collector := gocmd.NewResult[core.SyncReport]()
	if err := facade.Commands().SyncAccount.Execute(gocmd.ContextWithResult(ctx, collector), command.SyncAccountMessage{AccountID: "acc_equity"}); err != nil {
		t.Fatalf("first sync: %v", err)
	}
	first, ok := collector.Load()
	if !ok || first.Persisted != 2 || first.Degraded {
		t.Fatalf("unexpected first report %#v", first)
	}

	second := gocmd.NewResult[core.SyncReport]()
	if err := facade.Commands().SyncAccount.Execute(gocmd.ContextWithResult(ctx, second), command.SyncAccountMessage{AccountID: "acc_equity"}); err != nil {
		t.Fatalf("second sync: %v", err)
	}
	report, _ := second.Load()
	if report.Persisted != 0 || lines.Len() != 2 {
		t.Fatalf("expected rerun to persist nothing new, report=%#v lines=%d", report, lines.Len())
	}

	if fetches := client.RequestsTo("/transactions"); len(fetches) != 2 || fetches[0].URL != "https://equity.example.test/api/v1/accounts/0170-1/transactions" {
		t.Fatalf("unexpected statement requests %#v", fetches)
	}
}

package mpesa

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/json"
	"encoding/pem"
	"math/big"
	"net/http"
	"testing"
	"testing/fstest"
	"time"

	"github.com/goliatone/go-bankfeeds/core"
	"github.com/goliatone/go-bankfeeds/providers/devkit"
	"github.com/goliatone/go-bankfeeds/security"
	"github.com/shopspring/decimal"
)

var fixedNow = time.Date(2024, 3, 15, 9, 30, 0, 0, time.UTC)

func testCertificatePEM(t *testing.T) []byte {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	template := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "mpesa test"},
		NotBefore:    fixedNow.Add(-time.Hour),
		NotAfter:     fixedNow.Add(24 * time.Hour),
	}
	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	if err != nil {
		t.Fatalf("create certificate: %v", err)
	}
	return pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
}

func testMobileMoneyConfig() core.MobileMoneyConfig {
	cfg := core.DefaultConfig().MobileMoney
	cfg.SandboxBaseURL = "https://sandbox.mm.example.test"
	cfg.ProductionBaseURL = "https://api.mm.example.test"
	cfg.ResultURL = "https://hooks.example.test/callbacks/mpesa/balance_result"
	cfg.TimeoutURL = "https://hooks.example.test/callbacks/mpesa/timeout"
	return cfg
}

func newTestAdapter(t *testing.T, client *devkit.FakeClient, files fstest.MapFS) *Adapter {
	t.Helper()
	if files == nil {
		files = fstest.MapFS{"certs/mpesa_sandbox.cer": {Data: testCertificatePEM(t)}}
	}
	adapter, err := New(Config{
		MobileMoney: testMobileMoneyConfig(),
		Credentials: security.NewSecurityCredentialGenerator(core.ProviderKeyMobileMoney, security.NewFSCertificateStore(files, "certs")),
		Client:      client,
		Now:         func() time.Time { return fixedNow },
	})
	if err != nil {
		t.Fatalf("new adapter: %v", err)
	}
	return adapter
}

func testCredentials() core.Credentials {
	return core.Credentials{
		core.CredentialConsumerKey:       "ck",
		core.CredentialConsumerSecret:    "cs",
		core.CredentialInitiatorName:     "apiop",
		core.CredentialInitiatorPassword: "Safaricom999!",
		core.CredentialShortcode:         "600000",
		core.CredentialEnvironment:       "sandbox",
	}
}

func tokenScript() devkit.TransportScript {
	return devkit.TransportScript{Match: TokenPath, Response: devkit.JSONResponse(http.StatusOK, `{"access_token":"mm-token","expires_in":"3599"}`)}
}

const ackBody = `{"OriginatorConversationID":"5118-111210482-1","ConversationID":"AG_20240315_000041b0b2e1c6b0b4f3","ResponseCode":"0","ResponseDescription":"Accept the service request successfully."}`

func TestNormalizeTransaction_DebitFromCallbackShape(t *testing.T) {
	adapter := newTestAdapter(t, devkit.NewFakeClient(), nil)
	line := adapter.NormalizeTransaction(core.RawTransaction{Payload: map[string]any{
		"TransactionID":   "QKF3ABC123",
		"TransactionDate": "20240310143000",
		"Amount":          500,
		"TransactionType": "Debit",
		"Remarks":         "Supplier payment",
	}})
	if !line.Debit.Equal(decimal.NewFromInt(500)) || !line.Credit.IsZero() {
		t.Fatalf("expected debit 500/0, got %s/%s", line.Debit, line.Credit)
	}
	if line.Reference != "QKF3ABC123" || line.Description != "Supplier payment" {
		t.Fatalf("unexpected line %#v", line)
	}
	if want := time.Date(2024, 3, 10, 14, 30, 0, 0, time.UTC); !line.TransactionDate.Equal(want) {
		t.Fatalf("expected %s, got %s", want, line.TransactionDate)
	}

	credit := adapter.NormalizeTransaction(core.RawTransaction{Payload: map[string]any{
		"TransactionID":   "QKF3ABC124",
		"Amount":          "500",
		"TransactionType": "DEBIT_REVERSAL",
	}, ObservedAt: fixedNow})
	if !credit.Credit.Equal(decimal.NewFromInt(500)) || !credit.Debit.IsZero() {
		t.Fatalf("expected non-Debit discriminator to credit, got %s/%s", credit.Debit, credit.Credit)
	}
}

func TestNormalizeTransaction_Conformance(t *testing.T) {
	adapter := newTestAdapter(t, devkit.NewFakeClient(), nil)
	if err := devkit.ValidateNormalizeConformance(adapter); err != nil {
		t.Fatalf("conformance: %v", err)
	}
}

func TestAuthenticate_SelectsEnvironmentBaseURL(t *testing.T) {
	client := devkit.NewFakeClient(tokenScript())
	adapter := newTestAdapter(t, client, nil)

	creds := testCredentials()
	creds[core.CredentialEnvironment] = "production"
	session, err := adapter.Authenticate(context.Background(), creds)
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	sess := session.(*Session)
	if sess.Environment() != core.EnvironmentProduction || sess.BaseURL() != "https://api.mm.example.test" {
		t.Fatalf("unexpected session %s %s", sess.Environment(), sess.BaseURL())
	}
	requests := client.RequestsTo(TokenPath)
	if len(requests) != 1 || requests[0].URL != "https://api.mm.example.test/oauth/v1/generate" {
		t.Fatalf("unexpected token requests %#v", requests)
	}
	if requests[0].Query["grant_type"] != "client_credentials" {
		t.Fatalf("expected grant_type query, got %#v", requests[0].Query)
	}

	creds[core.CredentialEnvironment] = "staging"
	if _, err := adapter.Authenticate(context.Background(), creds); !core.IsErrorKind(err, core.ErrorConfiguration) {
		t.Fatalf("expected configuration error for unknown env, got %v", err)
	}
}

func TestAuthenticate_RejectedIsAuthFailure(t *testing.T) {
	client := devkit.NewFakeClient(devkit.TransportScript{
		Match:    TokenPath,
		Response: devkit.JSONResponse(http.StatusUnauthorized, `{"errorMessage":"Invalid credentials"}`),
	})
	adapter := newTestAdapter(t, client, nil)
	if _, err := adapter.Authenticate(context.Background(), testCredentials()); !core.IsErrorKind(err, core.ErrorAuthFailure) {
		t.Fatalf("expected auth failure, got %v", err)
	}
}

func TestFetchTransactions_ReturnsBalanceCheckLine(t *testing.T) {
	client := devkit.NewFakeClient(
		tokenScript(),
		devkit.TransportScript{Match: AccountBalancePath, Response: devkit.JSONResponse(http.StatusOK, ackBody)},
	)
	adapter := newTestAdapter(t, client, nil)
	ctx := context.Background()
	session, err := adapter.Authenticate(ctx, testCredentials())
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}

	raws, err := adapter.FetchTransactions(ctx, session, core.Account{ID: "acct_mm"}, fixedNow.AddDate(0, 0, -30))
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(raws) != 1 || raws[0].Normalized == nil {
		t.Fatalf("expected one pre-normalized line, got %#v", raws)
	}
	line := *raws[0].Normalized
	if line.Reference != "balance-check:AG_20240315_000041b0b2e1c6b0b4f3" {
		t.Fatalf("unexpected reference %q", line.Reference)
	}
	if !line.IsBalanceCheck() || !line.Debit.IsZero() || !line.Credit.IsZero() || !line.Exclusive() {
		t.Fatalf("expected zero-value balance check line, got %#v", line)
	}

	commands := client.RequestsTo(AccountBalancePath)
	if len(commands) != 1 {
		t.Fatalf("expected one balance command, got %d", len(commands))
	}
	if commands[0].Headers["Authorization"] != "Bearer mm-token" {
		t.Fatalf("unexpected authorization %q", commands[0].Headers["Authorization"])
	}
	var sent AccountBalanceCommand
	if err := json.Unmarshal(commands[0].Body, &sent); err != nil {
		t.Fatalf("decode command: %v", err)
	}
	if sent.CommandID != CommandAccountBalance || sent.IdentifierType != "4" || sent.PartyA != "600000" || sent.Initiator != "apiop" {
		t.Fatalf("unexpected command %#v", sent)
	}
	if sent.SecurityCredential == "" || sent.SecurityCredential == "Safaricom999!" {
		t.Fatalf("expected encrypted security credential")
	}
	if sent.ResultURL != testMobileMoneyConfig().ResultURL || sent.QueueTimeOutURL != testMobileMoneyConfig().TimeoutURL {
		t.Fatalf("unexpected callback urls %q %q", sent.ResultURL, sent.QueueTimeOutURL)
	}
}

func TestFetchTransactions_UnacknowledgedIsFetchFailure(t *testing.T) {
	client := devkit.NewFakeClient(
		tokenScript(),
		devkit.TransportScript{Match: AccountBalancePath, Response: devkit.JSONResponse(http.StatusBadRequest, `{"errorCode":"400.002.02","errorMessage":"Bad Request - Invalid PartyA"}`)},
	)
	adapter := newTestAdapter(t, client, nil)
	ctx := context.Background()
	session, err := adapter.Authenticate(ctx, testCredentials())
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	raws, err := adapter.FetchTransactions(ctx, session, core.Account{ID: "acct_mm"}, fixedNow)
	if !core.IsErrorKind(err, core.ErrorFetchFailure) {
		t.Fatalf("expected fetch failure, got %v", err)
	}
	if len(raws) != 0 {
		t.Fatalf("expected empty result, got %d", len(raws))
	}
}

func TestFetchTransactions_MissingCertificateIsCredentialEnvelopeError(t *testing.T) {
	client := devkit.NewFakeClient(tokenScript())
	adapter := newTestAdapter(t, client, fstest.MapFS{})
	ctx := context.Background()
	session, err := adapter.Authenticate(ctx, testCredentials())
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	_, err = adapter.FetchTransactions(ctx, session, core.Account{ID: "acct_mm"}, fixedNow)
	if !core.IsErrorKind(err, core.ErrorCredentialEnvelope) {
		t.Fatalf("expected credential envelope error, got %v", err)
	}
	if got := len(client.RequestsTo(AccountBalancePath)); got != 0 {
		t.Fatalf("expected no command to be sent, got %d", got)
	}
}

func TestRequestTransactionStatus(t *testing.T) {
	client := devkit.NewFakeClient(
		tokenScript(),
		devkit.TransportScript{Match: TransactionStatusPath, Response: devkit.JSONResponse(http.StatusOK, ackBody)},
	)
	adapter := newTestAdapter(t, client, nil)
	ctx := context.Background()
	session, err := adapter.Authenticate(ctx, testCredentials())
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	request, err := adapter.RequestTransactionStatus(ctx, session, core.Account{ID: "acct_mm"}, "QKF3ABC123")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !request.Acknowledged || request.Kind != core.BalanceCheckKindTransactionStatus || request.TransactionID != "QKF3ABC123" {
		t.Fatalf("unexpected request %#v", request)
	}
	var sent TransactionStatusCommand
	if err := json.Unmarshal(client.RequestsTo(TransactionStatusPath)[0].Body, &sent); err != nil {
		t.Fatalf("decode command: %v", err)
	}
	if sent.CommandID != CommandTransactionStatusQuery || sent.TransactionID != "QKF3ABC123" {
		t.Fatalf("unexpected command %#v", sent)
	}
	if sent.ResultURL != testMobileMoneyConfig().ResultURL {
		t.Fatalf("expected status result to fall back to result url, got %q", sent.ResultURL)
	}
	if _, err := adapter.RequestTransactionStatus(ctx, session, core.Account{}, " "); !core.IsErrorKind(err, core.ErrorConfiguration) {
		t.Fatalf("expected configuration error for empty transaction id, got %v", err)
	}
}

func TestRequestBalanceCheck_RequiresInitiatorFields(t *testing.T) {
	client := devkit.NewFakeClient(tokenScript())
	adapter := newTestAdapter(t, client, nil)
	creds := testCredentials()
	delete(creds, core.CredentialShortcode)
	session, err := adapter.Authenticate(context.Background(), creds)
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if _, err := adapter.RequestBalanceCheck(context.Background(), session, core.Account{}); !core.IsErrorKind(err, core.ErrorConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

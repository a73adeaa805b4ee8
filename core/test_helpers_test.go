package core

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

type stubSession struct {
	provider string
	token    string
}

func (s stubSession) ProviderKey() string { return s.provider }

type stubAdapter struct {
	key         string
	authErr     error
	raws        []RawTransaction
	fetchErr    error
	authCalls   int
	fetchCalls  int
	lastSince   time.Time
	lastCreds   Credentials
	normalizeFn func(RawTransaction) NormalizedLine
	balanceAck  BalanceCheckRequest
	balanceErr  error
	callback    CallbackResult
	callbackErr error
	statusTxID  string
}

func (a *stubAdapter) ProviderKey() string { return a.key }

func (a *stubAdapter) Authenticate(_ context.Context, credentials Credentials) (Session, error) {
	a.authCalls++
	a.lastCreds = Credentials{}
	for key, value := range credentials {
		a.lastCreds[key] = value
	}
	if a.authErr != nil {
		return nil, a.authErr
	}
	return stubSession{provider: a.key, token: "tok"}, nil
}

func (a *stubAdapter) FetchTransactions(_ context.Context, _ Session, _ Account, since time.Time) ([]RawTransaction, error) {
	a.fetchCalls++
	a.lastSince = since
	if a.fetchErr != nil {
		return []RawTransaction{}, a.fetchErr
	}
	return a.raws, nil
}

func (a *stubAdapter) NormalizeTransaction(raw RawTransaction) NormalizedLine {
	if a.normalizeFn != nil {
		return a.normalizeFn(raw)
	}
	amount := decimal.RequireFromString(raw.Payload["amount"].(string))
	line := NormalizedLine{
		TransactionDate: raw.ObservedAt,
		Description:     "stub",
		Reference:       raw.Payload["id"].(string),
	}
	if raw.Payload["type"] == "debit" {
		line.Debit = amount
	} else {
		line.Credit = amount
	}
	return line
}

func (a *stubAdapter) RequestBalanceCheck(context.Context, Session, Account) (BalanceCheckRequest, error) {
	return a.balanceAck, a.balanceErr
}

func (a *stubAdapter) RequestTransactionStatus(_ context.Context, _ Session, _ Account, transactionID string) (BalanceCheckRequest, error) {
	a.statusTxID = transactionID
	return a.balanceAck, a.balanceErr
}

func (a *stubAdapter) ParseCallback([]byte) (CallbackResult, error) {
	return a.callback, a.callbackErr
}

type syncOnlyAdapter struct {
	inner *stubAdapter
}

func (a syncOnlyAdapter) ProviderKey() string { return a.inner.ProviderKey() }

func (a syncOnlyAdapter) Authenticate(ctx context.Context, credentials Credentials) (Session, error) {
	return a.inner.Authenticate(ctx, credentials)
}

func (a syncOnlyAdapter) FetchTransactions(ctx context.Context, session Session, account Account, since time.Time) ([]RawTransaction, error) {
	return a.inner.FetchTransactions(ctx, session, account, since)
}

func (a syncOnlyAdapter) NormalizeTransaction(raw RawTransaction) NormalizedLine {
	return a.inner.NormalizeTransaction(raw)
}

type stubOpener struct {
	credentials Credentials
	err         error
	calls       int
}

func (o *stubOpener) Open(context.Context, Account) (Credentials, error) {
	o.calls++
	if o.err != nil {
		return nil, o.err
	}
	out := Credentials{}
	for key, value := range o.credentials {
		out[key] = value
	}
	return out, nil
}

type memoryLineStore struct {
	mu    sync.Mutex
	lines []StatementLine
	err   error
}

func (s *memoryLineStore) Create(_ context.Context, line StatementLine) (StatementLine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return StatementLine{}, s.err
	}
	for _, existing := range s.lines {
		if existing.AccountID == line.AccountID && existing.Reference == line.Reference {
			return StatementLine{}, NewPersistenceConflict(line.AccountID, line.Reference, nil)
		}
	}
	line.ID = "line_" + strings.TrimSpace(line.Reference)
	line.CreatedAt = time.Now().UTC()
	s.lines = append(s.lines, line)
	return line, nil
}

func (s *memoryLineStore) LatestTransactionDate(_ context.Context, accountID string) (time.Time, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var latest time.Time
	found := false
	for _, line := range s.lines {
		if line.AccountID != accountID || line.IsBalanceCheck {
			continue
		}
		if !found || line.TransactionDate.After(latest) {
			latest = line.TransactionDate
			found = true
		}
	}
	return latest, found, nil
}

func (s *memoryLineStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.lines)
}

type memoryBalanceCheckStore struct {
	mu     sync.Mutex
	checks map[string]BalanceCheck
}

func newMemoryBalanceCheckStore() *memoryBalanceCheckStore {
	return &memoryBalanceCheckStore{checks: map[string]BalanceCheck{}}
}

func (s *memoryBalanceCheckStore) Create(_ context.Context, check BalanceCheck) (BalanceCheck, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.checks[check.CorrelationID]; exists {
		return BalanceCheck{}, NewPersistenceConflict(check.AccountID, check.CorrelationID, nil)
	}
	check.ID = "bc_" + check.CorrelationID
	s.checks[check.CorrelationID] = check
	return check, nil
}

func (s *memoryBalanceCheckStore) GetByCorrelationID(_ context.Context, correlationID string) (BalanceCheck, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	check, ok := s.checks[correlationID]
	if !ok {
		return BalanceCheck{}, ErrBalanceCheckNotFound
	}
	return check, nil
}

func (s *memoryBalanceCheckStore) Resolve(_ context.Context, correlationID string, in ResolveBalanceCheckInput) (BalanceCheck, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	check, ok := s.checks[correlationID]
	if !ok {
		return BalanceCheck{}, ErrBalanceCheckNotFound
	}
	check.Status = in.Status
	check.ResultCode = in.ResultCode
	check.ResultDescription = in.ResultDescription
	check.Balances = in.Balances
	check.Payload = in.Payload
	resolvedAt := in.ResolvedAt
	check.ResolvedAt = &resolvedAt
	s.checks[correlationID] = check
	return check, nil
}

type recordingWatermark struct {
	accounts []string
}

func (r *recordingWatermark) RecordSynced(_ context.Context, accountID string, _ time.Time) error {
	r.accounts = append(r.accounts, accountID)
	return nil
}

func testAccount(providerKey string) Account {
	return Account{
		ID:                "acct_1",
		TenantID:          "tenant_1",
		ProviderKey:       providerKey,
		BaseURL:           "https://bank.example.test",
		Credentials:       []byte("sealed"),
		ExternalAccountID: "ext_1",
	}
}

func rawTx(id, kind, amount string, at time.Time) RawTransaction {
	return RawTransaction{
		ProviderKey: "stub",
		Payload:     map[string]any{"id": id, "type": kind, "amount": amount},
		ObservedAt:  at,
	}
}

func newTestService(t interface{ Fatalf(string, ...any) }, adapter Adapter, opts ...Option) *Service {
	registry, err := NewAdapterRegistry(map[string]AdapterFactory{
		adapter.ProviderKey(): func(context.Context, Account) (Adapter, error) { return adapter, nil },
	})
	if err != nil {
		t.Fatalf("build registry: %v", err)
	}
	base := []Option{
		WithAdapterResolver(registry),
		WithCredentialOpener(&stubOpener{credentials: Credentials{CredentialClientID: "id", CredentialClientSecret: "secret"}}),
	}
	svc, err := NewService(DefaultConfig(), append(base, opts...)...)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func sortedReferences(lines []StatementLine) []string {
	refs := make([]string, 0, len(lines))
	for _, line := range lines {
		refs = append(refs, line.Reference)
	}
	sort.Strings(refs)
	return refs
}

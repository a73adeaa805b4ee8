package devkit

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/goliatone/go-bankfeeds/core"
	"github.com/google/uuid"
)

// StatementLineStoreFixture is an in-memory core.StatementLineStore with
// the same (account, reference) uniqueness as the SQL store.
type StatementLineStoreFixture struct {
	mu    sync.Mutex
	lines []core.StatementLine
}

func NewStatementLineStoreFixture() *StatementLineStoreFixture {
	return &StatementLineStoreFixture{}
}

func (s *StatementLineStoreFixture) Create(_ context.Context, line core.StatementLine) (core.StatementLine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.lines {
		if existing.AccountID == line.AccountID && existing.Reference == line.Reference {
			return core.StatementLine{}, core.NewPersistenceConflict(line.AccountID, line.Reference, nil)
		}
	}
	if strings.TrimSpace(line.ID) == "" {
		line.ID = uuid.NewString()
	}
	if line.CreatedAt.IsZero() {
		line.CreatedAt = time.Now().UTC()
	}
	s.lines = append(s.lines, line)
	return line, nil
}

func (s *StatementLineStoreFixture) LatestTransactionDate(_ context.Context, accountID string) (time.Time, bool, error) {
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

func (s *StatementLineStoreFixture) ListByAccount(_ context.Context, accountID string, limit int) ([]core.StatementLine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := []core.StatementLine{}
	for _, line := range s.lines {
		if line.AccountID == accountID {
			out = append(out, line)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].TransactionDate.After(out[j].TransactionDate)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *StatementLineStoreFixture) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.lines)
}

type BalanceCheckStoreFixture struct {
	mu     sync.Mutex
	checks map[string]core.BalanceCheck
}

func NewBalanceCheckStoreFixture() *BalanceCheckStoreFixture {
	return &BalanceCheckStoreFixture{checks: map[string]core.BalanceCheck{}}
}

func (s *BalanceCheckStoreFixture) Create(_ context.Context, check core.BalanceCheck) (core.BalanceCheck, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := strings.TrimSpace(check.CorrelationID)
	if _, exists := s.checks[key]; exists {
		return core.BalanceCheck{}, core.NewPersistenceConflict(check.AccountID, key, nil)
	}
	if strings.TrimSpace(check.ID) == "" {
		check.ID = uuid.NewString()
	}
	s.checks[key] = check
	return check, nil
}

func (s *BalanceCheckStoreFixture) GetByCorrelationID(_ context.Context, correlationID string) (core.BalanceCheck, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	check, ok := s.checks[strings.TrimSpace(correlationID)]
	if !ok {
		return core.BalanceCheck{}, core.ErrBalanceCheckNotFound
	}
	return check, nil
}

func (s *BalanceCheckStoreFixture) Resolve(_ context.Context, correlationID string, in core.ResolveBalanceCheckInput) (core.BalanceCheck, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := strings.TrimSpace(correlationID)
	check, ok := s.checks[key]
	if !ok {
		return core.BalanceCheck{}, core.ErrBalanceCheckNotFound
	}
	check.Status = in.Status
	check.ResultCode = in.ResultCode
	check.ResultDescription = in.ResultDescription
	if strings.TrimSpace(in.TransactionID) != "" {
		check.TransactionID = in.TransactionID
	}
	check.Balances = append([]core.AccountBalance(nil), in.Balances...)
	check.Payload = in.Payload
	resolvedAt := in.ResolvedAt
	if resolvedAt.IsZero() {
		resolvedAt = time.Now().UTC()
	}
	check.ResolvedAt = &resolvedAt
	s.checks[key] = check
	return check, nil
}

// AccountStoreFixture keeps accounts by id.
type AccountStoreFixture struct {
	mu       sync.Mutex
	accounts map[string]core.Account
}

func NewAccountStoreFixture(accounts ...core.Account) *AccountStoreFixture {
	store := &AccountStoreFixture{accounts: map[string]core.Account{}}
	for _, account := range accounts {
		store.accounts[account.ID] = account
	}
	return store
}

func (s *AccountStoreFixture) Save(_ context.Context, account core.Account) (core.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if strings.TrimSpace(account.ID) == "" {
		account.ID = uuid.NewString()
	}
	s.accounts[account.ID] = account
	return account, nil
}

func (s *AccountStoreFixture) Get(_ context.Context, id string) (core.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	account, ok := s.accounts[strings.TrimSpace(id)]
	if !ok {
		return core.Account{}, core.ErrAccountNotFound
	}
	return account, nil
}

func (s *AccountStoreFixture) List(_ context.Context, providerKey string) ([]core.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := []core.Account{}
	for _, account := range s.accounts {
		if providerKey == "" || strings.EqualFold(account.ProviderKey, providerKey) {
			out = append(out, account)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

var (
	_ core.StatementLineStore  = (*StatementLineStoreFixture)(nil)
	_ core.StatementLineReader = (*StatementLineStoreFixture)(nil)
	_ core.BalanceCheckStore   = (*BalanceCheckStoreFixture)(nil)
	_ core.AccountStore        = (*AccountStoreFixture)(nil)
)

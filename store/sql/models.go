package sqlstore

import (
	"strings"
	"time"

	"github.com/goliatone/go-bankfeeds/core"
	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

type accountRecord struct {
	bun.BaseModel `bun:"table:bankfeeds_accounts,alias:ba"`

	ID                string         `bun:"id,pk"`
	TenantID          string         `bun:"tenant_id,notnull"`
	ProviderKey       string         `bun:"provider_key,notnull"`
	BaseURL           string         `bun:"base_url,notnull"`
	Credentials       []byte         `bun:"credentials,notnull"`
	ExternalAccountID string         `bun:"external_account_id,notnull"`
	LastSyncedAt      *time.Time     `bun:"last_synced_at,nullzero"`
	Metadata          map[string]any `bun:"metadata,type:jsonb,notnull"`
	CreatedAt         time.Time      `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt         time.Time      `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type statementLineRecord struct {
	bun.BaseModel `bun:"table:bankfeeds_statement_lines,alias:bsl"`

	ID              string          `bun:"id,pk"`
	TenantID        string          `bun:"tenant_id,notnull"`
	AccountID       string          `bun:"account_id,notnull"`
	ProviderKey     string          `bun:"provider_key,notnull"`
	TransactionDate time.Time       `bun:"transaction_date,notnull"`
	Description     string          `bun:"description,notnull"`
	Debit           decimal.Decimal `bun:"debit,notnull"`
	Credit          decimal.Decimal `bun:"credit,notnull"`
	Reference       string          `bun:"reference,notnull"`
	IsBalanceCheck  bool            `bun:"is_balance_check,notnull"`
	Matched         bool            `bun:"matched,notnull"`
	CreatedAt       time.Time       `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

type balanceCheckRecord struct {
	bun.BaseModel `bun:"table:bankfeeds_balance_checks,alias:bbc"`

	ID                       string          `bun:"id,pk"`
	CorrelationID            string          `bun:"correlation_id,notnull"`
	OriginatorConversationID string          `bun:"originator_conversation_id,notnull"`
	TenantID                 string          `bun:"tenant_id,notnull"`
	AccountID                string          `bun:"account_id,notnull"`
	ProviderKey              string          `bun:"provider_key,notnull"`
	Kind                     string          `bun:"kind,notnull"`
	TransactionID            string          `bun:"transaction_id,notnull"`
	Status                   string          `bun:"status,notnull"`
	ResultCode               string          `bun:"result_code,notnull"`
	ResultDescription        string          `bun:"result_description,notnull"`
	Balances                 []balanceRecord `bun:"balances,type:jsonb,notnull"`
	Payload                  map[string]any  `bun:"payload,type:jsonb,notnull"`
	RequestedAt              time.Time       `bun:"requested_at,notnull"`
	ResolvedAt               *time.Time      `bun:"resolved_at,nullzero"`
	CreatedAt                time.Time       `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt                time.Time       `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

// balanceRecord is the JSON shape of one account balance inside the
// balances column.
type balanceRecord struct {
	Name      string          `json:"name"`
	Currency  string          `json:"currency"`
	Available decimal.Decimal `json:"available"`
	Uncleared decimal.Decimal `json:"uncleared"`
	Reserved  decimal.Decimal `json:"reserved"`
	Current   decimal.Decimal `json:"current"`
}

func newAccountRecord(account core.Account) *accountRecord {
	return &accountRecord{
		ID:                strings.TrimSpace(account.ID),
		TenantID:          strings.TrimSpace(account.TenantID),
		ProviderKey:       strings.TrimSpace(account.ProviderKey),
		BaseURL:           strings.TrimSpace(account.BaseURL),
		Credentials:       append([]byte(nil), account.Credentials...),
		ExternalAccountID: strings.TrimSpace(account.ExternalAccountID),
		LastSyncedAt:      utcPointer(account.LastSyncedAt),
		Metadata:          copyAnyMap(account.Metadata),
	}
}

func (r *accountRecord) toDomain() core.Account {
	if r == nil {
		return core.Account{}
	}
	return core.Account{
		ID:                r.ID,
		TenantID:          r.TenantID,
		ProviderKey:       r.ProviderKey,
		BaseURL:           r.BaseURL,
		Credentials:       append([]byte(nil), r.Credentials...),
		ExternalAccountID: r.ExternalAccountID,
		LastSyncedAt:      utcPointer(r.LastSyncedAt),
		Metadata:          copyAnyMap(r.Metadata),
	}
}

func newStatementLineRecord(line core.StatementLine) *statementLineRecord {
	return &statementLineRecord{
		ID:              strings.TrimSpace(line.ID),
		TenantID:        strings.TrimSpace(line.TenantID),
		AccountID:       strings.TrimSpace(line.AccountID),
		ProviderKey:     strings.TrimSpace(line.ProviderKey),
		TransactionDate: line.TransactionDate.UTC(),
		Description:     line.Description,
		Debit:           line.Debit,
		Credit:          line.Credit,
		Reference:       strings.TrimSpace(line.Reference),
		IsBalanceCheck:  line.IsBalanceCheck,
		Matched:         line.Matched,
		CreatedAt:       line.CreatedAt.UTC(),
	}
}

func (r *statementLineRecord) toDomain() core.StatementLine {
	if r == nil {
		return core.StatementLine{}
	}
	return core.StatementLine{
		ID:              r.ID,
		TenantID:        r.TenantID,
		AccountID:       r.AccountID,
		ProviderKey:     r.ProviderKey,
		TransactionDate: r.TransactionDate.UTC(),
		Description:     r.Description,
		Debit:           r.Debit,
		Credit:          r.Credit,
		Reference:       r.Reference,
		IsBalanceCheck:  r.IsBalanceCheck,
		Matched:         r.Matched,
		CreatedAt:       r.CreatedAt.UTC(),
	}
}

func newBalanceCheckRecord(check core.BalanceCheck) *balanceCheckRecord {
	return &balanceCheckRecord{
		ID:                       strings.TrimSpace(check.ID),
		CorrelationID:            strings.TrimSpace(check.CorrelationID),
		OriginatorConversationID: strings.TrimSpace(check.OriginatorConversationID),
		TenantID:                 strings.TrimSpace(check.TenantID),
		AccountID:                strings.TrimSpace(check.AccountID),
		ProviderKey:              strings.TrimSpace(check.ProviderKey),
		Kind:                     string(check.Kind),
		TransactionID:            strings.TrimSpace(check.TransactionID),
		Status:                   string(check.Status),
		ResultCode:               strings.TrimSpace(check.ResultCode),
		ResultDescription:        strings.TrimSpace(check.ResultDescription),
		Balances:                 balancesToRecords(check.Balances),
		Payload:                  copyAnyMap(check.Payload),
		RequestedAt:              check.RequestedAt.UTC(),
		ResolvedAt:               utcPointer(check.ResolvedAt),
	}
}

func (r *balanceCheckRecord) toDomain() core.BalanceCheck {
	if r == nil {
		return core.BalanceCheck{}
	}
	return core.BalanceCheck{
		ID:                       r.ID,
		CorrelationID:            r.CorrelationID,
		OriginatorConversationID: r.OriginatorConversationID,
		TenantID:                 r.TenantID,
		AccountID:                r.AccountID,
		ProviderKey:              r.ProviderKey,
		Kind:                     core.BalanceCheckKind(r.Kind),
		TransactionID:            r.TransactionID,
		Status:                   core.BalanceCheckStatus(r.Status),
		ResultCode:               r.ResultCode,
		ResultDescription:        r.ResultDescription,
		Balances:                 recordsToBalances(r.Balances),
		Payload:                  copyAnyMap(r.Payload),
		RequestedAt:              r.RequestedAt.UTC(),
		ResolvedAt:               utcPointer(r.ResolvedAt),
	}
}

func balancesToRecords(balances []core.AccountBalance) []balanceRecord {
	out := make([]balanceRecord, 0, len(balances))
	for _, balance := range balances {
		out = append(out, balanceRecord(balance))
	}
	return out
}

func recordsToBalances(records []balanceRecord) []core.AccountBalance {
	if len(records) == 0 {
		return nil
	}
	out := make([]core.AccountBalance, 0, len(records))
	for _, record := range records {
		out = append(out, core.AccountBalance(record))
	}
	return out
}

func utcPointer(input *time.Time) *time.Time {
	if input == nil || input.IsZero() {
		return nil
	}
	value := input.UTC()
	return &value
}

func copyAnyMap(input map[string]any) map[string]any {
	out := make(map[string]any, len(input))
	for key, value := range input {
		out[key] = value
	}
	return out
}

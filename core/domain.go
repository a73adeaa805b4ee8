package core

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrStatementLineNotFound = errors.New("core: statement line not found")
	ErrBalanceCheckNotFound  = errors.New("core: balance check not found")
	ErrAccountNotFound       = errors.New("core: account not found")
)

const (
	ProviderKeyGenericREST = "generic_rest"
	ProviderKeyMobileMoney = "mpesa"
)

const (
	EnvironmentSandbox    = "sandbox"
	EnvironmentProduction = "production"
)

const (
	CredentialClientID          = "client_id"
	CredentialClientSecret      = "client_secret"
	CredentialConsumerKey       = "consumer_key"
	CredentialConsumerSecret    = "consumer_secret"
	CredentialInitiatorName     = "initiator_name"
	CredentialInitiatorPassword = "initiator_password"
	CredentialShortcode         = "shortcode"
	CredentialEnvironment       = "env"
)

const DefaultLineDescription = "No description"

type Account struct {
	ID                string
	TenantID          string
	ProviderKey       string
	BaseURL           string
	Credentials       []byte
	ExternalAccountID string
	LastSyncedAt      *time.Time
	Metadata          map[string]any
}

func (a Account) Validate() error {
	if strings.TrimSpace(a.ProviderKey) == "" {
		return fmt.Errorf("core: account provider key is required")
	}
	if len(a.Credentials) == 0 {
		return fmt.Errorf("core: account credentials are required")
	}
	if strings.TrimSpace(a.ID) == "" {
		return fmt.Errorf("core: account id is required")
	}
	if strings.TrimSpace(a.TenantID) == "" {
		return fmt.Errorf("core: account tenant id is required")
	}
	return nil
}

// Credentials holds decrypted secrets for a single sync pass. Formatting
// verbs never print values.
type Credentials map[string]string

func (c Credentials) Get(key string) string {
	if c == nil {
		return ""
	}
	return strings.TrimSpace(c[key])
}

func (c Credentials) Require(keys ...string) error {
	missing := make([]string, 0, len(keys))
	for _, key := range keys {
		if c.Get(key) == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("core: credentials missing required fields: %s", strings.Join(missing, ", "))
	}
	return nil
}

func (c Credentials) Keys() []string {
	keys := make([]string, 0, len(c))
	for key := range c {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func (c Credentials) String() string {
	return fmt.Sprintf("Credentials{%s}", strings.Join(c.Keys(), ","))
}

func (c Credentials) GoString() string {
	return c.String()
}

// Session is the authenticated state an adapter hands back from
// Authenticate. Only the issuing adapter knows its concrete type.
type Session interface {
	ProviderKey() string
}

type RawTransaction struct {
	ProviderKey string
	Payload     map[string]any
	ObservedAt  time.Time
	Normalized  *NormalizedLine
}

type BalanceCheckMarker struct {
	CorrelationID string
	Message       string
}

type NormalizedLine struct {
	TransactionDate time.Time
	Description     string
	Debit           decimal.Decimal
	Credit          decimal.Decimal
	Reference       string
	BalanceCheck    *BalanceCheckMarker
}

func (l NormalizedLine) IsBalanceCheck() bool {
	return l.BalanceCheck != nil
}

// Exclusive reports whether at most one side carries a non-zero amount and
// neither side is negative.
func (l NormalizedLine) Exclusive() bool {
	if l.Debit.IsNegative() || l.Credit.IsNegative() {
		return false
	}
	if l.IsBalanceCheck() {
		return l.Debit.IsZero() && l.Credit.IsZero()
	}
	return l.Debit.IsZero() || l.Credit.IsZero()
}

type StatementLine struct {
	ID              string
	TenantID        string
	AccountID       string
	ProviderKey     string
	TransactionDate time.Time
	Description     string
	Debit           decimal.Decimal
	Credit          decimal.Decimal
	Reference       string
	IsBalanceCheck  bool
	Matched         bool
	CreatedAt       time.Time
}

func NewStatementLine(account Account, line NormalizedLine) StatementLine {
	return StatementLine{
		TenantID:        strings.TrimSpace(account.TenantID),
		AccountID:       strings.TrimSpace(account.ID),
		ProviderKey:     strings.TrimSpace(account.ProviderKey),
		TransactionDate: line.TransactionDate.UTC(),
		Description:     line.Description,
		Debit:           line.Debit,
		Credit:          line.Credit,
		Reference:       strings.TrimSpace(line.Reference),
		IsBalanceCheck:  line.IsBalanceCheck(),
		Matched:         false,
	}
}

type BalanceCheckKind string

const (
	BalanceCheckKindAccountBalance    BalanceCheckKind = "account_balance"
	BalanceCheckKindTransactionStatus BalanceCheckKind = "transaction_status"
)

type BalanceCheckStatus string

const (
	BalanceCheckStatusPending   BalanceCheckStatus = "pending"
	BalanceCheckStatusCompleted BalanceCheckStatus = "completed"
	BalanceCheckStatusFailed    BalanceCheckStatus = "failed"
	BalanceCheckStatusTimedOut  BalanceCheckStatus = "timed_out"
)

func (s BalanceCheckStatus) Terminal() bool {
	switch s {
	case BalanceCheckStatusCompleted, BalanceCheckStatusFailed, BalanceCheckStatusTimedOut:
		return true
	default:
		return false
	}
}

type AccountBalance struct {
	Name      string
	Currency  string
	Available decimal.Decimal
	Uncleared decimal.Decimal
	Reserved  decimal.Decimal
	Current   decimal.Decimal
}

// BalanceCheckRequest is the synchronous acknowledgement of an async
// provider command. It never carries the balance itself.
type BalanceCheckRequest struct {
	ProviderKey              string
	Kind                     BalanceCheckKind
	CorrelationID            string
	OriginatorConversationID string
	TransactionID            string
	Acknowledged             bool
	ResponseCode             string
	ResponseDescription      string
	RequestedAt              time.Time
}

type BalanceCheck struct {
	ID                       string
	CorrelationID            string
	OriginatorConversationID string
	TenantID                 string
	AccountID                string
	ProviderKey              string
	Kind                     BalanceCheckKind
	TransactionID            string
	Status                   BalanceCheckStatus
	ResultCode               string
	ResultDescription        string
	Balances                 []AccountBalance
	Payload                  map[string]any
	RequestedAt              time.Time
	ResolvedAt               *time.Time
}

// CallbackResult is the provider-neutral reading of an async result
// callback.
type CallbackResult struct {
	CorrelationID            string
	OriginatorConversationID string
	TransactionID            string
	ResultCode               string
	ResultDescription        string
	Success                  bool
	Balances                 []AccountBalance
	Parameters               map[string]any
}

type SyncReport struct {
	AccountID   string
	ProviderKey string
	StartDate   time.Time
	Fetched     int
	Persisted   int
	Skipped     int
	Degraded    bool
	FetchErr    error
}

package core

import (
	"context"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

// Adapter is the contract every provider integration implements. Adapters
// hold no per-call mutable state; the Session returned by Authenticate is
// threaded through every subsequent call.
type Adapter interface {
	ProviderKey() string
	Authenticate(ctx context.Context, credentials Credentials) (Session, error)
	// FetchTransactions returns an empty slice when the provider has no data.
	// Transport and non-2xx failures come back as a FetchFailure together with
	// an empty slice.
	FetchTransactions(ctx context.Context, session Session, account Account, since time.Time) ([]RawTransaction, error)
	// NormalizeTransaction is pure and never panics.
	NormalizeTransaction(raw RawTransaction) NormalizedLine
}

// BalanceCheckAdapter is implemented by providers with an asynchronous
// command protocol.
type BalanceCheckAdapter interface {
	Adapter
	RequestBalanceCheck(ctx context.Context, session Session, account Account) (BalanceCheckRequest, error)
	RequestTransactionStatus(ctx context.Context, session Session, account Account, transactionID string) (BalanceCheckRequest, error)
	ParseCallback(payload []byte) (CallbackResult, error)
}

type AdapterFactory func(ctx context.Context, account Account) (Adapter, error)

type AdapterResolver interface {
	Resolve(ctx context.Context, account Account) (Adapter, error)
	Has(providerKey string) bool
	Keys() []string
}

type StatementLineStore interface {
	// Create persists a single line. A line whose reference already exists
	// for the account fails with a PersistenceConflict.
	Create(ctx context.Context, line StatementLine) (StatementLine, error)
	LatestTransactionDate(ctx context.Context, accountID string) (time.Time, bool, error)
}

type StatementLineReader interface {
	ListByAccount(ctx context.Context, accountID string, limit int) ([]StatementLine, error)
}

type ResolveBalanceCheckInput struct {
	Status            BalanceCheckStatus
	ResultCode        string
	ResultDescription string
	TransactionID     string
	Balances          []AccountBalance
	Payload           map[string]any
	ResolvedAt        time.Time
}

type BalanceCheckStore interface {
	Create(ctx context.Context, check BalanceCheck) (BalanceCheck, error)
	GetByCorrelationID(ctx context.Context, correlationID string) (BalanceCheck, error)
	Resolve(ctx context.Context, correlationID string, in ResolveBalanceCheckInput) (BalanceCheck, error)
}

type BalanceCheckReader interface {
	GetByCorrelationID(ctx context.Context, correlationID string) (BalanceCheck, error)
}

type AccountStore interface {
	Save(ctx context.Context, account Account) (Account, error)
	Get(ctx context.Context, id string) (Account, error)
	List(ctx context.Context, providerKey string) ([]Account, error)
}

// WatermarkRecorder records when an account last completed a sync. The
// value is informational; the next pass always re-derives its start date
// from persisted lines.
type WatermarkRecorder interface {
	RecordSynced(ctx context.Context, accountID string, at time.Time) error
}

type SecretProvider interface {
	Encrypt(ctx context.Context, plaintext []byte) ([]byte, error)
	Decrypt(ctx context.Context, ciphertext []byte) ([]byte, error)
}

type CredentialCodec interface {
	Format() string
	Version() int
	Encode(credentials Credentials) ([]byte, error)
	Decode(payload []byte) (Credentials, error)
}

type CredentialOpener interface {
	Open(ctx context.Context, account Account) (Credentials, error)
}

type MetricsRecorder interface {
	IncCounter(ctx context.Context, name string, value int64, tags map[string]string)
	ObserveHistogram(ctx context.Context, name string, value float64, tags map[string]string)
}

type Clock func() time.Time

type Logger = glog.Logger

type LoggerProvider = glog.LoggerProvider

type FieldsLogger = glog.FieldsLogger

type IntegrationService interface {
	SyncAccount(ctx context.Context, account Account) (int, error)
	Sync(ctx context.Context, account Account) (SyncReport, error)
	RequestBalanceCheck(ctx context.Context, account Account) (BalanceCheck, error)
	RequestTransactionStatus(ctx context.Context, account Account, transactionID string) (BalanceCheck, error)
	ResolveBalanceResult(ctx context.Context, correlationID string, payload []byte) (BalanceCheck, error)
	ResolveStatusResult(ctx context.Context, correlationID string, payload []byte) (BalanceCheck, error)
	RecordCallbackTimeout(ctx context.Context, correlationID string, payload []byte) (BalanceCheck, error)
	GetBalanceCheck(ctx context.Context, correlationID string) (BalanceCheck, error)
}

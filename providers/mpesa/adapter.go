// Package mpesa implements the mobile-money adapter. The provider has no
// statement endpoint: a sync pass submits an account balance query whose
// result arrives later on a callback, correlated by ConversationID.
package mpesa

import (
	"context"
	"strings"
	"time"

	"github.com/goliatone/go-bankfeeds/auth"
	"github.com/goliatone/go-bankfeeds/core"
	"github.com/goliatone/go-bankfeeds/providers"
	"github.com/goliatone/go-bankfeeds/security"
	"github.com/goliatone/go-bankfeeds/transport"
	"github.com/goliatone/go-logger/glog"
)

const (
	TokenPath             = "/oauth/v1/generate"
	AccountBalancePath    = "/mpesa/accountbalance/v1/query"
	TransactionStatusPath = "/mpesa/transactionstatus/v1/query"

	BalanceCheckReferencePrefix = "balance-check:"
	BalanceCheckDescription     = "Balance check requested"

	acknowledgedResponseCode = "0"
)

// Callback dates come as 20060102150405 or RFC3339.
var dateLayouts = []string{
	"20060102150405",
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

type Config struct {
	ProviderKey string
	MobileMoney core.MobileMoneyConfig
	Credentials *security.SecurityCredentialGenerator
	Callbacks   core.CallbackURLResolver
	Location    *time.Location
	Client      transport.Client
	Logger      core.Logger
	Now         func() time.Time
}

type Adapter struct {
	providerKey string
	config      core.MobileMoneyConfig
	credentials *security.SecurityCredentialGenerator
	callbacks   core.CallbackURLResolver
	location    *time.Location
	client      transport.Client
	tokens      *auth.BasicTokenStrategy
	logger      core.Logger
	now         func() time.Time
}

// Session is bound to one environment for its whole lifetime. The
// initiator secret stays inside the session so every command can build a
// fresh security credential.
type Session struct {
	providerKey string
	environment string
	baseURL     string
	token       auth.Token
	initiator   initiator
}

type initiator struct {
	name      string
	password  string
	shortcode string
}

func (s *Session) ProviderKey() string {
	if s == nil {
		return ""
	}
	return s.providerKey
}

func (s *Session) Environment() string {
	if s == nil {
		return ""
	}
	return s.environment
}

func (s *Session) BaseURL() string {
	if s == nil {
		return ""
	}
	return s.baseURL
}

func (s *Session) String() string {
	if s == nil {
		return "mpesa.Session{}"
	}
	return "mpesa.Session{" + s.environment + "}"
}

func New(cfg Config) (*Adapter, error) {
	providerKey := strings.ToLower(strings.TrimSpace(cfg.ProviderKey))
	if providerKey == "" {
		providerKey = core.ProviderKeyMobileMoney
	}
	if cfg.Credentials == nil {
		return nil, core.NewConfigurationError("mpesa: security credential generator is required", map[string]any{
			"provider_key": providerKey,
		})
	}
	mobileMoney := cfg.MobileMoney
	defaults := core.DefaultConfig().MobileMoney
	if strings.TrimSpace(mobileMoney.SandboxBaseURL) == "" {
		mobileMoney.SandboxBaseURL = defaults.SandboxBaseURL
	}
	if strings.TrimSpace(mobileMoney.ProductionBaseURL) == "" {
		mobileMoney.ProductionBaseURL = defaults.ProductionBaseURL
	}
	if strings.TrimSpace(mobileMoney.Remarks) == "" {
		mobileMoney.Remarks = defaults.Remarks
	}
	callbacks := cfg.Callbacks
	if callbacks == nil {
		callbacks = core.ConfigCallbackURLResolver{Config: mobileMoney}
	}
	client := cfg.Client
	if client == nil {
		client = transport.NewRESTAdapter(nil, core.DefaultHTTPTimeout)
	}
	location := cfg.Location
	if location == nil {
		location = time.UTC
	}
	now := cfg.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Adapter{
		providerKey: providerKey,
		config:      mobileMoney,
		credentials: cfg.Credentials,
		callbacks:   callbacks,
		location:    location,
		client:      client,
		tokens: auth.NewBasicTokenStrategy(auth.BasicTokenStrategyConfig{
			ProviderKey: providerKey,
			Client:      client,
			Now:         now,
		}),
		logger: glog.Ensure(cfg.Logger),
		now:    now,
	}, nil
}

func (a *Adapter) ProviderKey() string {
	return a.providerKey
}

// Authenticate selects the environment from the credential "env" field
// (sandbox when absent) and exchanges the consumer key pair for a token.
func (a *Adapter) Authenticate(ctx context.Context, credentials core.Credentials) (core.Session, error) {
	environment, err := resolveEnvironment(credentials.Get(core.CredentialEnvironment))
	if err != nil {
		return nil, err
	}
	baseURL := strings.TrimRight(strings.TrimSpace(a.config.SandboxBaseURL), "/")
	if environment == core.EnvironmentProduction {
		baseURL = strings.TrimRight(strings.TrimSpace(a.config.ProductionBaseURL), "/")
	}
	tokenURL, err := transport.JoinURL(baseURL, TokenPath)
	if err != nil {
		return nil, core.NewConfigurationError("mpesa: base url is invalid", map[string]any{
			"provider_key": a.providerKey,
			"environment":  environment,
		})
	}

	token, err := a.tokens.Generate(ctx, tokenURL, credentials)
	if err != nil {
		a.logger.WithContext(ctx).Error("mpesa authenticate failed",
			"provider_key", a.providerKey,
			"environment", environment,
			"error", err.Error(),
		)
		return nil, err
	}
	return &Session{
		providerKey: a.providerKey,
		environment: environment,
		baseURL:     baseURL,
		token:       token,
		initiator: initiator{
			name:      credentials.Get(core.CredentialInitiatorName),
			password:  credentials.Get(core.CredentialInitiatorPassword),
			shortcode: credentials.Get(core.CredentialShortcode),
		},
	}, nil
}

// FetchTransactions submits a balance query and, once acknowledged,
// returns one pre-normalized zero-value line marking the pending check.
func (a *Adapter) FetchTransactions(
	ctx context.Context,
	session core.Session,
	account core.Account,
	_ time.Time,
) ([]core.RawTransaction, error) {
	request, err := a.RequestBalanceCheck(ctx, session, account)
	if err != nil {
		if core.IsErrorKind(err, core.ErrorCredentialEnvelope) || core.IsErrorKind(err, core.ErrorConfiguration) {
			return []core.RawTransaction{}, err
		}
		a.logger.WithContext(ctx).Warn("mpesa balance check not acknowledged",
			"provider_key", a.providerKey,
			"account_id", account.ID,
			"error", err.Error(),
		)
		if !core.IsErrorKind(err, core.ErrorFetchFailure) {
			err = core.NewFetchFailure(a.providerKey, 0, "", err)
		}
		return []core.RawTransaction{}, err
	}

	line := BalanceCheckLine(request)
	return []core.RawTransaction{{
		ProviderKey: a.providerKey,
		Payload: map[string]any{
			"ConversationID":           request.CorrelationID,
			"OriginatorConversationID": request.OriginatorConversationID,
			"ResponseCode":             request.ResponseCode,
			"ResponseDescription":      request.ResponseDescription,
		},
		ObservedAt: request.RequestedAt,
		Normalized: &line,
	}}, nil
}

// BalanceCheckLine is the synthetic zero-value line surfacing an
// acknowledged balance query.
func BalanceCheckLine(request core.BalanceCheckRequest) core.NormalizedLine {
	message := BalanceCheckDescription
	if desc := strings.TrimSpace(request.ResponseDescription); desc != "" {
		message = BalanceCheckDescription + ": " + desc
	}
	return core.NormalizedLine{
		TransactionDate: request.RequestedAt.UTC(),
		Description:     message,
		Reference:       BalanceCheckReferencePrefix + request.CorrelationID,
		BalanceCheck: &core.BalanceCheckMarker{
			CorrelationID: request.CorrelationID,
			Message:       message,
		},
	}
}

// NormalizeTransaction reads the callback field naming (TransactionID,
// Amount, TransactionType Debit|Credit).
func (a *Adapter) NormalizeTransaction(raw core.RawTransaction) core.NormalizedLine {
	if raw.Normalized != nil {
		return *raw.Normalized
	}
	payload := raw.Payload
	if payload == nil {
		payload = map[string]any{}
	}
	amount, _ := providers.Decimal(payload, "Amount", "TransactionAmount")
	isDebit := strings.EqualFold(providers.String(payload, "TransactionType"), "Debit")
	debit, credit := providers.Split(amount, isDebit)

	date, ok := providers.Time(payload, a.location, dateLayouts, "TransactionDate", "TransCompletedTime", "CompletedTime")
	if !ok {
		date = raw.ObservedAt.UTC()
	}
	description := providers.String(payload, "Description", "Remarks", "ReasonType")
	if description == "" {
		description = core.DefaultLineDescription
	}
	reference := providers.String(payload, "TransactionID", "ReceiptNo", "TransactionReceipt")
	if reference == "" {
		reference = providers.Reference(a.providerKey, payload)
	}
	return core.NormalizedLine{
		TransactionDate: date,
		Description:     description,
		Debit:           debit,
		Credit:          credit,
		Reference:       reference,
	}
}

func resolveEnvironment(raw string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", core.EnvironmentSandbox:
		return core.EnvironmentSandbox, nil
	case core.EnvironmentProduction, "live":
		return core.EnvironmentProduction, nil
	default:
		return "", core.NewConfigurationError("mpesa: credential env must be sandbox or production", map[string]any{
			"env": raw,
		})
	}
}

func sessionFrom(session core.Session) (*Session, error) {
	sess, ok := session.(*Session)
	if !ok || sess == nil || strings.TrimSpace(sess.token.AccessToken) == "" {
		return nil, core.NewConfigurationError("mpesa: session is not an mpesa session", nil)
	}
	return sess, nil
}

var (
	_ core.BalanceCheckAdapter = (*Adapter)(nil)
	_ core.Session             = (*Session)(nil)
)

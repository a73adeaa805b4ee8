// Package rest implements the bank adapter for OAuth2 client-credentials
// REST APIs with a pull-style statement endpoint. Named banks are the same
// adapter pointed at a different base URL.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/goliatone/go-bankfeeds/auth"
	"github.com/goliatone/go-bankfeeds/core"
	"github.com/goliatone/go-bankfeeds/providers"
	"github.com/goliatone/go-bankfeeds/transport"
	"github.com/goliatone/go-logger/glog"
)

const (
	TokenPath = "/oauth2/token"
	dateParam = "2006-01-02"
)

var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

type Config struct {
	ProviderKey string
	BaseURL     string
	Location    *time.Location
	Client      transport.Client
	Logger      core.Logger
	Now         func() time.Time
}

type Adapter struct {
	providerKey string
	baseURL     string
	location    *time.Location
	client      transport.Client
	tokens      *auth.OAuth2ClientCredentialsStrategy
	logger      core.Logger
	now         func() time.Time
}

// Session carries the bearer token issued by Authenticate.
type Session struct {
	providerKey string
	token       auth.Token
}

func (s *Session) ProviderKey() string {
	if s == nil {
		return ""
	}
	return s.providerKey
}

func (s *Session) Token() auth.Token {
	if s == nil {
		return auth.Token{}
	}
	return s.token
}

func New(cfg Config) (*Adapter, error) {
	providerKey := strings.ToLower(strings.TrimSpace(cfg.ProviderKey))
	if providerKey == "" {
		providerKey = core.ProviderKeyGenericREST
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, core.NewConfigurationError("rest: base url is required", map[string]any{
			"provider_key": providerKey,
		})
	}
	tokenURL, err := transport.JoinURL(baseURL, TokenPath)
	if err != nil {
		return nil, core.NewConfigurationError("rest: base url is invalid", map[string]any{
			"provider_key": providerKey,
		})
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
		baseURL:     baseURL,
		location:    location,
		client:      client,
		tokens: auth.NewOAuth2ClientCredentialsStrategy(auth.OAuth2ClientCredentialsStrategyConfig{
			ProviderKey: providerKey,
			TokenURL:    tokenURL,
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

func (a *Adapter) BaseURL() string {
	return a.baseURL
}

func (a *Adapter) Authenticate(ctx context.Context, credentials core.Credentials) (core.Session, error) {
	token, err := a.tokens.Exchange(ctx, credentials)
	if err != nil {
		a.logger.WithContext(ctx).Error("rest authenticate failed",
			"provider_key", a.providerKey,
			"error", err.Error(),
		)
		return nil, err
	}
	return &Session{providerKey: a.providerKey, token: token}, nil
}

// FetchTransactions pulls the statement window [since, today]. Failures are
// logged and returned as FetchFailure next to an empty slice.
func (a *Adapter) FetchTransactions(
	ctx context.Context,
	session core.Session,
	account core.Account,
	since time.Time,
) ([]core.RawTransaction, error) {
	sess, ok := session.(*Session)
	if !ok || sess == nil || strings.TrimSpace(sess.token.AccessToken) == "" {
		return []core.RawTransaction{}, core.NewConfigurationError("rest: session is not a rest session", map[string]any{
			"provider_key": a.providerKey,
		})
	}
	externalID := strings.TrimSpace(account.ExternalAccountID)
	if externalID == "" {
		return []core.RawTransaction{}, core.NewConfigurationError("rest: external account id is required", map[string]any{
			"provider_key": a.providerKey,
			"account_id":   account.ID,
		})
	}
	endpoint, err := transport.JoinURL(a.baseURL, "v1", "accounts", externalID, "transactions")
	if err != nil {
		return []core.RawTransaction{}, core.NewConfigurationError("rest: statement url is invalid", map[string]any{
			"provider_key": a.providerKey,
		})
	}

	now := a.now()
	res, err := a.client.Do(ctx, transport.Request{
		Method: http.MethodGet,
		URL:    endpoint,
		Query: map[string]string{
			"from_date": since.In(a.location).Format(dateParam),
			"to_date":   now.In(a.location).Format(dateParam),
		},
		Headers: map[string]string{"Authorization": sess.token.AuthorizationHeader()},
	})
	if err != nil {
		failure := core.NewFetchFailure(a.providerKey, 0, "", err)
		a.logFetchFailure(ctx, account, 0, err, transport.IsTimeout(err))
		return []core.RawTransaction{}, failure
	}
	if !res.OK() {
		a.logFetchFailure(ctx, account, res.StatusCode, nil, false)
		return []core.RawTransaction{}, core.NewFetchFailure(a.providerKey, res.StatusCode, string(res.Body), nil)
	}

	items, err := decodeTransactions(res.Body)
	if err != nil {
		a.logFetchFailure(ctx, account, res.StatusCode, err, false)
		return []core.RawTransaction{}, core.NewFetchFailure(a.providerKey, res.StatusCode, "", err)
	}
	out := make([]core.RawTransaction, 0, len(items))
	for _, item := range items {
		out = append(out, core.RawTransaction{
			ProviderKey: a.providerKey,
			Payload:     item,
			ObservedAt:  now,
		})
	}
	return out, nil
}

// NormalizeTransaction maps transaction_type DEBIT to the debit column and
// anything else to credit.
func (a *Adapter) NormalizeTransaction(raw core.RawTransaction) core.NormalizedLine {
	payload := raw.Payload
	if payload == nil {
		payload = map[string]any{}
	}
	amount, _ := providers.Decimal(payload, "amount", "transaction_amount")
	isDebit := strings.EqualFold(providers.String(payload, "transaction_type", "type"), "DEBIT")
	debit, credit := providers.Split(amount, isDebit)

	date, ok := providers.Time(payload, a.location, dateLayouts, "transaction_date", "date", "value_date", "booking_date")
	if !ok {
		date = raw.ObservedAt.UTC()
	}
	description := providers.String(payload, "description", "narrative", "remarks", "memo")
	if description == "" {
		description = core.DefaultLineDescription
	}
	reference := providers.String(payload, "transaction_id", "id")
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

func (a *Adapter) logFetchFailure(ctx context.Context, account core.Account, status int, err error, timeout bool) {
	args := []any{
		"provider_key", a.providerKey,
		"account_id", account.ID,
		"timeout", timeout,
	}
	if status > 0 {
		args = append(args, "status", status)
	}
	if err != nil {
		args = append(args, "error", err.Error())
	}
	a.logger.WithContext(ctx).Warn("rest fetch transactions failed", args...)
}

// decodeTransactions accepts {"transactions":[...]}, {"data":[...]} or a
// bare array.
func decodeTransactions(body []byte) ([]map[string]any, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return []map[string]any{}, nil
	}
	decoder := json.NewDecoder(bytes.NewReader(trimmed))
	decoder.UseNumber()

	var rows []any
	if trimmed[0] == '[' {
		if err := decoder.Decode(&rows); err != nil {
			return nil, fmt.Errorf("rest: decode transactions: %w", err)
		}
	} else {
		envelope := map[string]any{}
		if err := decoder.Decode(&envelope); err != nil {
			return nil, fmt.Errorf("rest: decode transactions: %w", err)
		}
		for _, key := range []string{"transactions", "data"} {
			if list, ok := envelope[key].([]any); ok {
				rows = list
				break
			}
		}
	}

	out := make([]map[string]any, 0, len(rows))
	for _, row := range rows {
		if item, ok := row.(map[string]any); ok {
			out = append(out, item)
		}
	}
	return out, nil
}

var (
	_ core.Adapter = (*Adapter)(nil)
	_ core.Session = (*Session)(nil)
)

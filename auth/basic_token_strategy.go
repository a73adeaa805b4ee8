package auth

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/goliatone/go-bankfeeds/core"
	"github.com/goliatone/go-bankfeeds/transport"
)

type BasicTokenStrategyConfig struct {
	ProviderKey string
	KeyField    string
	SecretField string
	Client      transport.Client
	Now         func() time.Time
}

// BasicTokenStrategy fetches a bearer token with
// GET {token url}?grant_type=client_credentials and HTTP basic auth.
type BasicTokenStrategy struct {
	config BasicTokenStrategyConfig
}

func NewBasicTokenStrategy(cfg BasicTokenStrategyConfig) *BasicTokenStrategy {
	now := cfg.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	client := cfg.Client
	if client == nil {
		client = transport.NewRESTAdapter(nil, 0)
	}
	keyField := strings.TrimSpace(cfg.KeyField)
	if keyField == "" {
		keyField = core.CredentialConsumerKey
	}
	secretField := strings.TrimSpace(cfg.SecretField)
	if secretField == "" {
		secretField = core.CredentialConsumerSecret
	}
	return &BasicTokenStrategy{config: BasicTokenStrategyConfig{
		ProviderKey: strings.TrimSpace(cfg.ProviderKey),
		KeyField:    keyField,
		SecretField: secretField,
		Client:      client,
		Now:         now,
	}}
}

func (*BasicTokenStrategy) Type() string {
	return TokenKindBasicGenerate
}

func (s *BasicTokenStrategy) Generate(ctx context.Context, tokenURL string, credentials core.Credentials) (Token, error) {
	if s == nil {
		return Token{}, core.NewConfigurationError("auth: basic token strategy is nil", nil)
	}
	key := credentials.Get(s.config.KeyField)
	secret := credentials.Get(s.config.SecretField)
	if key == "" || secret == "" {
		return Token{}, core.NewAuthFailure(s.config.ProviderKey, 0, "", credentials.Require(s.config.KeyField, s.config.SecretField))
	}
	tokenURL = strings.TrimSpace(tokenURL)
	if tokenURL == "" {
		return Token{}, core.NewConfigurationError("auth: token url is required", map[string]any{
			"provider_key": s.config.ProviderKey,
		})
	}

	res, err := s.config.Client.Do(ctx, transport.Request{
		Method:  http.MethodGet,
		URL:     tokenURL,
		Query:   map[string]string{"grant_type": "client_credentials"},
		Headers: map[string]string{"Authorization": basicAuthorization(key, secret)},
	})
	if err != nil {
		return Token{}, core.NewAuthFailure(s.config.ProviderKey, 0, "", err)
	}
	if !res.OK() {
		return Token{}, core.NewAuthFailure(s.config.ProviderKey, res.StatusCode, string(res.Body), nil)
	}
	return decodeTokenResponse(s.config.ProviderKey, TokenKindBasicGenerate, res, s.config.Now())
}

// Exchange satisfies TokenStrategy when the token url is fixed in the
// credentials under "token_url".
func (s *BasicTokenStrategy) Exchange(ctx context.Context, credentials core.Credentials) (Token, error) {
	return s.Generate(ctx, credentials.Get("token_url"), credentials)
}

var _ TokenStrategy = (*BasicTokenStrategy)(nil)

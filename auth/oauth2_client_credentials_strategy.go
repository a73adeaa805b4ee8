package auth

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/goliatone/go-bankfeeds/core"
	"github.com/goliatone/go-bankfeeds/transport"
)

const (
	TokenKindOAuth2ClientCredentials = "oauth2_client_credentials"
	TokenKindBasicGenerate           = "basic_generate"
)

// Token is a short lived bearer credential. It lives inside a provider
// session and is never persisted.
type Token struct {
	Kind        string
	AccessToken string
	TokenType   string
	Scope       string
	ExpiresAt   time.Time
}

func (t Token) AuthorizationHeader() string {
	tokenType := strings.TrimSpace(t.TokenType)
	if tokenType == "" || strings.EqualFold(tokenType, "bearer") {
		tokenType = "Bearer"
	}
	return tokenType + " " + strings.TrimSpace(t.AccessToken)
}

func (t Token) String() string {
	return "Token{" + t.Kind + "," + t.ExpiresAt.Format(time.RFC3339) + "}"
}

type OAuth2ClientCredentialsStrategyConfig struct {
	ProviderKey   string
	TokenURL      string
	DefaultScopes []string
	Client        transport.Client
	Now           func() time.Time
}

// OAuth2ClientCredentialsStrategy exchanges a client id and secret for a
// bearer token with a form POST. It holds no per-call state.
type OAuth2ClientCredentialsStrategy struct {
	config OAuth2ClientCredentialsStrategyConfig
}

func NewOAuth2ClientCredentialsStrategy(cfg OAuth2ClientCredentialsStrategyConfig) *OAuth2ClientCredentialsStrategy {
	now := cfg.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	client := cfg.Client
	if client == nil {
		client = transport.NewRESTAdapter(nil, 0)
	}
	return &OAuth2ClientCredentialsStrategy{
		config: OAuth2ClientCredentialsStrategyConfig{
			ProviderKey:   strings.TrimSpace(cfg.ProviderKey),
			TokenURL:      strings.TrimSpace(cfg.TokenURL),
			DefaultScopes: normalizeValues(cfg.DefaultScopes),
			Client:        client,
			Now:           now,
		},
	}
}

func (*OAuth2ClientCredentialsStrategy) Type() string {
	return TokenKindOAuth2ClientCredentials
}

func (s *OAuth2ClientCredentialsStrategy) TokenURL() string {
	if s == nil {
		return ""
	}
	return s.config.TokenURL
}

// Exchange posts grant_type=client_credentials to the token url. Any non-2xx
// answer or transport failure is an AuthFailure carrying the response body.
func (s *OAuth2ClientCredentialsStrategy) Exchange(ctx context.Context, credentials core.Credentials) (Token, error) {
	if s == nil {
		return Token{}, core.NewConfigurationError("auth: oauth2 strategy is nil", nil)
	}
	clientID := credentials.Get(core.CredentialClientID)
	clientSecret := credentials.Get(core.CredentialClientSecret)
	if clientID == "" || clientSecret == "" {
		return Token{}, core.NewAuthFailure(s.config.ProviderKey, 0, "", credentials.Require(core.CredentialClientID, core.CredentialClientSecret))
	}
	if s.config.TokenURL == "" {
		return Token{}, core.NewConfigurationError("auth: oauth2 token url is required", map[string]any{
			"provider_key": s.config.ProviderKey,
		})
	}

	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("client_id", clientID)
	form.Set("client_secret", clientSecret)
	if len(s.config.DefaultScopes) > 0 {
		form.Set("scope", strings.Join(s.config.DefaultScopes, " "))
	}
	req := transport.NewFormRequest(s.config.TokenURL, form)
	req.Headers["Authorization"] = basicAuthorization(clientID, clientSecret)

	res, err := s.config.Client.Do(ctx, req)
	if err != nil {
		return Token{}, core.NewAuthFailure(s.config.ProviderKey, 0, "", err)
	}
	if !res.OK() {
		return Token{}, core.NewAuthFailure(s.config.ProviderKey, res.StatusCode, string(res.Body), nil)
	}
	return decodeTokenResponse(s.config.ProviderKey, TokenKindOAuth2ClientCredentials, res, s.config.Now())
}

var _ TokenStrategy = (*OAuth2ClientCredentialsStrategy)(nil)

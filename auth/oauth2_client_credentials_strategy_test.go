package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goliatone/go-bankfeeds/core"
	"github.com/goliatone/go-bankfeeds/transport"
	goerrors "github.com/goliatone/go-errors"
)

var fixedNow = time.Date(2024, 3, 15, 9, 30, 0, 0, time.UTC)

func TestOAuth2ClientCredentialsStrategy_Exchange(t *testing.T) {
	var gotForm, gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Fatalf("expected POST, got %s", r.Method)
		}
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parse form: %v", err)
		}
		gotForm = r.PostForm.Encode()
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"tok-1","token_type":"bearer","expires_in":3600}`))
	}))
	defer server.Close()

	strategy := NewOAuth2ClientCredentialsStrategy(OAuth2ClientCredentialsStrategyConfig{
		ProviderKey:   core.ProviderKeyGenericREST,
		TokenURL:      server.URL + "/oauth2/token",
		DefaultScopes: []string{"transactions", " ", "transactions"},
		Client:        transport.NewRESTAdapter(server.Client(), time.Second),
		Now:           func() time.Time { return fixedNow },
	})
	token, err := strategy.Exchange(context.Background(), core.Credentials{
		core.CredentialClientID:     "client",
		core.CredentialClientSecret: "secret",
	})
	if err != nil {
		t.Fatalf("exchange: %v", err)
	}
	if token.AccessToken != "tok-1" || token.Kind != TokenKindOAuth2ClientCredentials {
		t.Fatalf("unexpected token %#v", token)
	}
	if token.AuthorizationHeader() != "Bearer tok-1" {
		t.Fatalf("unexpected authorization header %q", token.AuthorizationHeader())
	}
	if !token.ExpiresAt.Equal(fixedNow.Add(time.Hour)) {
		t.Fatalf("unexpected expiry %s", token.ExpiresAt)
	}
	if !strings.Contains(gotForm, "grant_type=client_credentials") || !strings.Contains(gotForm, "scope=transactions") {
		t.Fatalf("unexpected form %q", gotForm)
	}
	if gotAuth != basicAuthorization("client", "secret") {
		t.Fatalf("unexpected basic auth %q", gotAuth)
	}
	if strings.Contains(token.String(), "tok-1") {
		t.Fatalf("token string leaks access token: %s", token.String())
	}
}

func TestOAuth2ClientCredentialsStrategy_RejectedIsAuthFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"invalid_client"}`))
	}))
	defer server.Close()

	strategy := NewOAuth2ClientCredentialsStrategy(OAuth2ClientCredentialsStrategyConfig{
		ProviderKey: core.ProviderKeyGenericREST,
		TokenURL:    server.URL,
		Client:      transport.NewRESTAdapter(server.Client(), time.Second),
	})
	_, err := strategy.Exchange(context.Background(), core.Credentials{
		core.CredentialClientID:     "client",
		core.CredentialClientSecret: "wrong",
	})
	if !core.IsErrorKind(err, core.ErrorAuthFailure) {
		t.Fatalf("expected auth failure, got %v", err)
	}
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		t.Fatalf("expected go-errors envelope, got %T", err)
	}
	if body, _ := rich.Metadata["response_body"].(string); !strings.Contains(body, "invalid_client") {
		t.Fatalf("expected response body in metadata, got %#v", rich.Metadata)
	}
}

func TestOAuth2ClientCredentialsStrategy_MissingCredentials(t *testing.T) {
	strategy := NewOAuth2ClientCredentialsStrategy(OAuth2ClientCredentialsStrategyConfig{
		ProviderKey: core.ProviderKeyGenericREST,
		TokenURL:    "https://bank.example.test/token",
	})
	_, err := strategy.Exchange(context.Background(), core.Credentials{core.CredentialClientID: "client"})
	if !core.IsErrorKind(err, core.ErrorAuthFailure) {
		t.Fatalf("expected auth failure, got %v", err)
	}
}

func TestOAuth2ClientCredentialsStrategy_MissingAccessToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"token_type":"bearer"}`))
	}))
	defer server.Close()

	strategy := NewOAuth2ClientCredentialsStrategy(OAuth2ClientCredentialsStrategyConfig{
		TokenURL: server.URL,
		Client:   transport.NewRESTAdapter(server.Client(), time.Second),
	})
	_, err := strategy.Exchange(context.Background(), core.Credentials{
		core.CredentialClientID:     "client",
		core.CredentialClientSecret: "secret",
	})
	if !core.IsErrorKind(err, core.ErrorAuthFailure) {
		t.Fatalf("expected auth failure, got %v", err)
	}
}

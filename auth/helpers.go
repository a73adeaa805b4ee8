package auth

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/goliatone/go-bankfeeds/core"
	"github.com/goliatone/go-bankfeeds/transport"
)

type TokenStrategy interface {
	Type() string
	Exchange(ctx context.Context, credentials core.Credentials) (Token, error)
}

type tokenResponse struct {
	AccessToken string          `json:"access_token"`
	TokenType   string          `json:"token_type"`
	ExpiresIn   json.RawMessage `json:"expires_in"`
	Scope       string          `json:"scope"`
}

func decodeTokenResponse(providerKey, kind string, res transport.Response, now time.Time) (Token, error) {
	decoded := tokenResponse{}
	if err := res.DecodeJSON(&decoded); err != nil {
		return Token{}, core.NewAuthFailure(providerKey, res.StatusCode, "", err)
	}
	accessToken := strings.TrimSpace(decoded.AccessToken)
	if accessToken == "" {
		return Token{}, core.NewAuthFailure(providerKey, res.StatusCode, "", fmt.Errorf("auth: token response has no access_token"))
	}
	token := Token{
		Kind:        kind,
		AccessToken: accessToken,
		TokenType:   strings.TrimSpace(decoded.TokenType),
		Scope:       strings.TrimSpace(decoded.Scope),
	}
	if seconds := parseExpiresIn(decoded.ExpiresIn); seconds > 0 {
		token.ExpiresAt = now.UTC().Add(time.Duration(seconds) * time.Second)
	}
	return token, nil
}

// parseExpiresIn accepts both numeric and quoted seconds.
func parseExpiresIn(raw json.RawMessage) int64 {
	value := strings.Trim(strings.TrimSpace(string(raw)), `"`)
	if value == "" || value == "null" {
		return 0
	}
	seconds, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		parsed, floatErr := strconv.ParseFloat(value, 64)
		if floatErr != nil {
			return 0
		}
		seconds = int64(parsed)
	}
	if seconds < 0 {
		return 0
	}
	return seconds
}

func basicAuthorization(user, password string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(user+":"+password))
}

func normalizeValues(values []string) []string {
	if len(values) == 0 {
		return []string{}
	}
	seen := map[string]struct{}{}
	out := make([]string, 0, len(values))
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed == "" {
			continue
		}
		lowered := strings.ToLower(trimmed)
		if _, ok := seen[lowered]; ok {
			continue
		}
		seen[lowered] = struct{}{}
		out = append(out, trimmed)
	}
	sort.Strings(out)
	return out
}

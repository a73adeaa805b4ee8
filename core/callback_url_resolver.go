package core

import (
	"context"
	"fmt"
	"strings"
)

type CallbackSurface string

const (
	CallbackSurfaceBalanceResult CallbackSurface = "balance_result"
	CallbackSurfaceStatusResult  CallbackSurface = "status_result"
	CallbackSurfaceTimeout       CallbackSurface = "timeout"
)

func (s CallbackSurface) Valid() bool {
	switch s {
	case CallbackSurfaceBalanceResult, CallbackSurfaceStatusResult, CallbackSurfaceTimeout:
		return true
	default:
		return false
	}
}

type CallbackURLResolveRequest struct {
	ProviderKey string
	AccountID   string
	Surface     CallbackSurface
}

// CallbackURLResolver supplies the public URLs a provider posts async
// results to.
type CallbackURLResolver interface {
	ResolveCallbackURL(ctx context.Context, req CallbackURLResolveRequest) (string, error)
}

type CallbackURLResolverFunc func(ctx context.Context, req CallbackURLResolveRequest) (string, error)

func (fn CallbackURLResolverFunc) ResolveCallbackURL(ctx context.Context, req CallbackURLResolveRequest) (string, error) {
	if fn == nil {
		return "", nil
	}
	url, err := fn(ctx, req)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(url), nil
}

// ConfigCallbackURLResolver reads the fixed mobile-money callback URLs.
type ConfigCallbackURLResolver struct {
	Config MobileMoneyConfig
}

func (r ConfigCallbackURLResolver) ResolveCallbackURL(_ context.Context, req CallbackURLResolveRequest) (string, error) {
	var url string
	switch req.Surface {
	case CallbackSurfaceBalanceResult:
		url = r.Config.ResultURL
	case CallbackSurfaceStatusResult:
		url = r.Config.StatusResultURL
		if strings.TrimSpace(url) == "" {
			url = r.Config.ResultURL
		}
	case CallbackSurfaceTimeout:
		url = r.Config.TimeoutURL
	default:
		return "", NewConfigurationError(fmt.Sprintf("core: unknown callback surface %q", req.Surface), nil)
	}
	url = strings.TrimSpace(url)
	if url == "" {
		return "", NewConfigurationError(
			fmt.Sprintf("core: callback url for %s is not configured", req.Surface),
			map[string]any{"provider_key": req.ProviderKey, "surface": string(req.Surface)},
		)
	}
	return url, nil
}

var _ CallbackURLResolver = ConfigCallbackURLResolver{}

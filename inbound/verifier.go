package inbound

import (
	"context"
	"crypto/subtle"
	"fmt"
	"strings"

	"github.com/goliatone/go-bankfeeds/core"
)

const DefaultTokenParam = "token"

// SharedTokenVerifier accepts callbacks whose query string carries the
// secret token embedded in the registered callback URL. Providers that do
// not sign their callbacks are verified this way.
type SharedTokenVerifier struct {
	Param string
	Token string
}

func NewSharedTokenVerifier(token string) SharedTokenVerifier {
	return SharedTokenVerifier{Param: DefaultTokenParam, Token: strings.TrimSpace(token)}
}

func (v SharedTokenVerifier) Verify(_ context.Context, req core.InboundRequest) error {
	expected := strings.TrimSpace(v.Token)
	if expected == "" {
		return fmt.Errorf("inbound: shared token is not configured")
	}
	param := strings.TrimSpace(v.Param)
	if param == "" {
		param = DefaultTokenParam
	}
	got := strings.TrimSpace(req.Query[param])
	if got == "" {
		return fmt.Errorf("inbound: callback token is missing")
	}
	if subtle.ConstantTimeCompare([]byte(got), []byte(expected)) != 1 {
		return fmt.Errorf("inbound: callback token mismatch")
	}
	return nil
}

// VerifierFunc adapts a function to Verifier.
type VerifierFunc func(ctx context.Context, req core.InboundRequest) error

func (fn VerifierFunc) Verify(ctx context.Context, req core.InboundRequest) error {
	if fn == nil {
		return nil
	}
	return fn(ctx, req)
}

var (
	_ Verifier = SharedTokenVerifier{}
	_ Verifier = VerifierFunc(nil)
)

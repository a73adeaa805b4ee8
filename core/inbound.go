package core

import (
	"context"
	"time"
)

// InboundRequest is a provider callback as received on a public endpoint.
type InboundRequest struct {
	ProviderKey string
	Surface     CallbackSurface
	Body        []byte
	Headers     map[string]string
	Query       map[string]string
	Metadata    map[string]any
	ReceivedAt  time.Time
}

type InboundResult struct {
	Accepted   bool
	StatusCode int
	Check      BalanceCheck
	Metadata   map[string]any
}

type InboundHandler interface {
	Surface() CallbackSurface
	Handle(ctx context.Context, req InboundRequest) (InboundResult, error)
}

// IdempotencyClaimStore gives inbound processing claim/complete/fail
// semantics so a failed handler stays retryable while a completed one is
// deduplicated for the key TTL.
type IdempotencyClaimStore interface {
	Claim(ctx context.Context, key string, lease time.Duration) (claimID string, accepted bool, err error)
	Complete(ctx context.Context, claimID string) error
	Fail(ctx context.Context, claimID string, cause error, retryAt time.Time) error
}

// CallbackResolver is the service surface inbound handlers drive.
type CallbackResolver interface {
	ResolveBalanceResult(ctx context.Context, correlationID string, payload []byte) (BalanceCheck, error)
	ResolveStatusResult(ctx context.Context, correlationID string, payload []byte) (BalanceCheck, error)
	RecordCallbackTimeout(ctx context.Context, correlationID string, payload []byte) (BalanceCheck, error)
}

var _ CallbackResolver = (*Service)(nil)

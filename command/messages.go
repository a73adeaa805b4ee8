package command

import (
	"strings"
	"time"

	"github.com/goliatone/go-bankfeeds/core"
)

const (
	TypeSyncAccount              = "bankfeeds.command.sync"
	TypeRequestBalanceCheck      = "bankfeeds.command.balance_check.request"
	TypeRequestTransactionStatus = "bankfeeds.command.transaction_status.request"
	TypeResolveCallback          = "bankfeeds.command.callback.resolve"
	TypeExpireBalanceChecks      = "bankfeeds.command.balance_check.expire"
)

type SyncAccountMessage struct {
	AccountID string
}

func (SyncAccountMessage) Type() string { return TypeSyncAccount }

func (m SyncAccountMessage) Validate() error {
	return requireAccountID(m.AccountID)
}

type RequestBalanceCheckMessage struct {
	AccountID string
}

func (RequestBalanceCheckMessage) Type() string { return TypeRequestBalanceCheck }

func (m RequestBalanceCheckMessage) Validate() error {
	return requireAccountID(m.AccountID)
}

type RequestTransactionStatusMessage struct {
	AccountID     string
	TransactionID string
}

func (RequestTransactionStatusMessage) Type() string { return TypeRequestTransactionStatus }

func (m RequestTransactionStatusMessage) Validate() error {
	if err := requireAccountID(m.AccountID); err != nil {
		return err
	}
	if strings.TrimSpace(m.TransactionID) == "" {
		return commandValidationError("transaction_id", "transaction id is required")
	}
	return nil
}

// ResolveCallbackMessage carries a provider result delivered outside the
// HTTP callback surface, e.g. replayed from a dead letter queue.
type ResolveCallbackMessage struct {
	Surface       core.CallbackSurface
	CorrelationID string
	Payload       []byte
}

func (ResolveCallbackMessage) Type() string { return TypeResolveCallback }

func (m ResolveCallbackMessage) Validate() error {
	if !m.Surface.Valid() {
		return commandValidationError("surface", "unsupported callback surface")
	}
	if m.Surface != core.CallbackSurfaceTimeout && len(m.Payload) == 0 {
		return commandValidationError("payload", "payload is required")
	}
	if m.Surface == core.CallbackSurfaceTimeout && strings.TrimSpace(m.CorrelationID) == "" {
		return commandValidationError("correlation_id", "correlation id is required")
	}
	return nil
}

// ExpireBalanceChecksMessage times out pending checks requested at or
// before Cutoff.
type ExpireBalanceChecksMessage struct {
	Cutoff time.Time
}

func (ExpireBalanceChecksMessage) Type() string { return TypeExpireBalanceChecks }

func (m ExpireBalanceChecksMessage) Validate() error {
	if m.Cutoff.IsZero() {
		return commandValidationError("cutoff", "cutoff is required")
	}
	return nil
}

func requireAccountID(id string) error {
	if strings.TrimSpace(id) == "" {
		return commandValidationError("account_id", "account id is required")
	}
	return nil
}

package query

import (
	"strings"
	"time"
)

const (
	TypeGetBalanceCheck          = "bankfeeds.query.balance_check.get"
	TypeListPendingBalanceChecks = "bankfeeds.query.balance_check.pending"
	TypeListStatementLines       = "bankfeeds.query.statement_lines.list"
	TypeListAccounts             = "bankfeeds.query.accounts.list"
)

const MaxStatementLines = 500

type GetBalanceCheckMessage struct {
	CorrelationID string
}

func (GetBalanceCheckMessage) Type() string { return TypeGetBalanceCheck }

func (m GetBalanceCheckMessage) Validate() error {
	if strings.TrimSpace(m.CorrelationID) == "" {
		return queryValidationError("correlation_id", "correlation id is required")
	}
	return nil
}

type ListPendingBalanceChecksMessage struct {
	Cutoff time.Time
}

func (ListPendingBalanceChecksMessage) Type() string { return TypeListPendingBalanceChecks }

func (m ListPendingBalanceChecksMessage) Validate() error {
	if m.Cutoff.IsZero() {
		return queryValidationError("cutoff", "cutoff is required")
	}
	return nil
}

type ListStatementLinesMessage struct {
	AccountID string
	Limit     int
}

func (ListStatementLinesMessage) Type() string { return TypeListStatementLines }

func (m ListStatementLinesMessage) Validate() error {
	if strings.TrimSpace(m.AccountID) == "" {
		return queryValidationError("account_id", "account id is required")
	}
	if m.Limit < 0 || m.Limit > MaxStatementLines {
		return queryValidationError("limit", "limit must be between 0 and 500")
	}
	return nil
}

// ListAccountsMessage lists every account when ProviderKey is empty.
type ListAccountsMessage struct {
	ProviderKey string
}

func (ListAccountsMessage) Type() string { return TypeListAccounts }

func (ListAccountsMessage) Validate() error { return nil }

package query

import (
	"context"
	"strings"
	"time"

	"github.com/goliatone/go-bankfeeds/core"
)

type BalanceCheckGetter interface {
	GetBalanceCheck(ctx context.Context, correlationID string) (core.BalanceCheck, error)
}

type PendingBalanceCheckLister interface {
	ListPending(ctx context.Context, cutoff time.Time) ([]core.BalanceCheck, error)
}

type AccountLister interface {
	List(ctx context.Context, providerKey string) ([]core.Account, error)
}

type GetBalanceCheckQuery struct {
	reader BalanceCheckGetter
}

func NewGetBalanceCheckQuery(reader BalanceCheckGetter) *GetBalanceCheckQuery {
	return &GetBalanceCheckQuery{reader: reader}
}

func (q *GetBalanceCheckQuery) Query(ctx context.Context, msg GetBalanceCheckMessage) (core.BalanceCheck, error) {
	if q == nil || q.reader == nil {
		return core.BalanceCheck{}, queryDependencyError("query: balance check reader is required")
	}
	if err := msg.Validate(); err != nil {
		return core.BalanceCheck{}, err
	}
	return q.reader.GetBalanceCheck(ctx, strings.TrimSpace(msg.CorrelationID))
}

type ListPendingBalanceChecksQuery struct {
	lister PendingBalanceCheckLister
}

func NewListPendingBalanceChecksQuery(lister PendingBalanceCheckLister) *ListPendingBalanceChecksQuery {
	return &ListPendingBalanceChecksQuery{lister: lister}
}

func (q *ListPendingBalanceChecksQuery) Query(ctx context.Context, msg ListPendingBalanceChecksMessage) ([]core.BalanceCheck, error) {
	if q == nil || q.lister == nil {
		return nil, queryDependencyError("query: pending balance check lister is required")
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return q.lister.ListPending(ctx, msg.Cutoff)
}

type ListStatementLinesQuery struct {
	reader core.StatementLineReader
}

func NewListStatementLinesQuery(reader core.StatementLineReader) *ListStatementLinesQuery {
	return &ListStatementLinesQuery{reader: reader}
}

func (q *ListStatementLinesQuery) Query(ctx context.Context, msg ListStatementLinesMessage) ([]core.StatementLine, error) {
	if q == nil || q.reader == nil {
		return nil, queryDependencyError("query: statement line reader is required")
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	limit := msg.Limit
	if limit == 0 {
		limit = MaxStatementLines
	}
	return q.reader.ListByAccount(ctx, strings.TrimSpace(msg.AccountID), limit)
}

type ListAccountsQuery struct {
	lister AccountLister
}

func NewListAccountsQuery(lister AccountLister) *ListAccountsQuery {
	return &ListAccountsQuery{lister: lister}
}

func (q *ListAccountsQuery) Query(ctx context.Context, msg ListAccountsMessage) ([]core.Account, error) {
	if q == nil || q.lister == nil {
		return nil, queryDependencyError("query: account lister is required")
	}
	return q.lister.List(ctx, strings.TrimSpace(msg.ProviderKey))
}

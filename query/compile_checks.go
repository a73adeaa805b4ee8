package query

import (
	"github.com/goliatone/go-bankfeeds/core"
	gocmd "github.com/goliatone/go-command"
)

var (
	_ gocmd.Querier[GetBalanceCheckMessage, core.BalanceCheck]            = (*GetBalanceCheckQuery)(nil)
	_ gocmd.Querier[ListPendingBalanceChecksMessage, []core.BalanceCheck] = (*ListPendingBalanceChecksQuery)(nil)
	_ gocmd.Querier[ListStatementLinesMessage, []core.StatementLine]      = (*ListStatementLinesQuery)(nil)
	_ gocmd.Querier[ListAccountsMessage, []core.Account]                  = (*ListAccountsQuery)(nil)
)

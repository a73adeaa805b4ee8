package command

import gocmd "github.com/goliatone/go-command"

var (
	_ gocmd.Commander[SyncAccountMessage]              = (*SyncAccountCommand)(nil)
	_ gocmd.Commander[RequestBalanceCheckMessage]      = (*RequestBalanceCheckCommand)(nil)
	_ gocmd.Commander[RequestTransactionStatusMessage] = (*RequestTransactionStatusCommand)(nil)
	_ gocmd.Commander[ResolveCallbackMessage]          = (*ResolveCallbackCommand)(nil)
	_ gocmd.Commander[ExpireBalanceChecksMessage]      = (*ExpireBalanceChecksCommand)(nil)
)

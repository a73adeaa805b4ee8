package command

import (
	"context"
	"errors"
	"time"

	"github.com/goliatone/go-bankfeeds/core"
	gocmd "github.com/goliatone/go-command"
)

type AccountReader interface {
	Get(ctx context.Context, id string) (core.Account, error)
}

type SyncService interface {
	Sync(ctx context.Context, account core.Account) (core.SyncReport, error)
}

type BalanceCheckService interface {
	RequestBalanceCheck(ctx context.Context, account core.Account) (core.BalanceCheck, error)
	RequestTransactionStatus(ctx context.Context, account core.Account, transactionID string) (core.BalanceCheck, error)
}

type PendingBalanceCheckLister interface {
	ListPending(ctx context.Context, cutoff time.Time) ([]core.BalanceCheck, error)
}

type SyncAccountCommand struct {
	accounts AccountReader
	service  SyncService
}

func NewSyncAccountCommand(accounts AccountReader, service SyncService) *SyncAccountCommand {
	return &SyncAccountCommand{accounts: accounts, service: service}
}

func (c *SyncAccountCommand) Execute(ctx context.Context, msg SyncAccountMessage) error {
	if c == nil || c.service == nil || c.accounts == nil {
		return commandDependencyError("command: sync service and account reader are required")
	}
	if err := msg.Validate(); err != nil {
		return err
	}
	account, err := c.accounts.Get(ctx, msg.AccountID)
	if err != nil {
		return accountLookupError(msg.AccountID, err)
	}
	report, err := c.service.Sync(ctx, account)
	if err != nil {
		return err
	}
	storeResult(ctx, report)
	return nil
}

type RequestBalanceCheckCommand struct {
	accounts AccountReader
	service  BalanceCheckService
}

func NewRequestBalanceCheckCommand(accounts AccountReader, service BalanceCheckService) *RequestBalanceCheckCommand {
	return &RequestBalanceCheckCommand{accounts: accounts, service: service}
}

func (c *RequestBalanceCheckCommand) Execute(ctx context.Context, msg RequestBalanceCheckMessage) error {
	if c == nil || c.service == nil || c.accounts == nil {
		return commandDependencyError("command: balance check service and account reader are required")
	}
	if err := msg.Validate(); err != nil {
		return err
	}
	account, err := c.accounts.Get(ctx, msg.AccountID)
	if err != nil {
		return accountLookupError(msg.AccountID, err)
	}
	check, err := c.service.RequestBalanceCheck(ctx, account)
	if err != nil {
		return err
	}
	storeResult(ctx, check)
	return nil
}

type RequestTransactionStatusCommand struct {
	accounts AccountReader
	service  BalanceCheckService
}

func NewRequestTransactionStatusCommand(accounts AccountReader, service BalanceCheckService) *RequestTransactionStatusCommand {
	return &RequestTransactionStatusCommand{accounts: accounts, service: service}
}

func (c *RequestTransactionStatusCommand) Execute(ctx context.Context, msg RequestTransactionStatusMessage) error {
	if c == nil || c.service == nil || c.accounts == nil {
		return commandDependencyError("command: transaction status service and account reader are required")
	}
	if err := msg.Validate(); err != nil {
		return err
	}
	account, err := c.accounts.Get(ctx, msg.AccountID)
	if err != nil {
		return accountLookupError(msg.AccountID, err)
	}
	check, err := c.service.RequestTransactionStatus(ctx, account, msg.TransactionID)
	if err != nil {
		return err
	}
	storeResult(ctx, check)
	return nil
}

type ResolveCallbackCommand struct {
	resolver core.CallbackResolver
}

func NewResolveCallbackCommand(resolver core.CallbackResolver) *ResolveCallbackCommand {
	return &ResolveCallbackCommand{resolver: resolver}
}

func (c *ResolveCallbackCommand) Execute(ctx context.Context, msg ResolveCallbackMessage) error {
	if c == nil || c.resolver == nil {
		return commandDependencyError("command: callback resolver is required")
	}
	if err := msg.Validate(); err != nil {
		return err
	}
	var (
		check core.BalanceCheck
		err   error
	)
	switch msg.Surface {
	case core.CallbackSurfaceBalanceResult:
		check, err = c.resolver.ResolveBalanceResult(ctx, msg.CorrelationID, msg.Payload)
	case core.CallbackSurfaceStatusResult:
		check, err = c.resolver.ResolveStatusResult(ctx, msg.CorrelationID, msg.Payload)
	default:
		check, err = c.resolver.RecordCallbackTimeout(ctx, msg.CorrelationID, msg.Payload)
	}
	if err != nil {
		return err
	}
	storeResult(ctx, check)
	return nil
}

type ExpireBalanceChecksResult struct {
	Expired []string
	Failed  map[string]string
}

// ExpireBalanceChecksCommand records a timeout for every check whose
// provider never called back. Per-check failures are reported in the result
// and do not stop the sweep.
type ExpireBalanceChecksCommand struct {
	pending  PendingBalanceCheckLister
	resolver core.CallbackResolver
}

func NewExpireBalanceChecksCommand(pending PendingBalanceCheckLister, resolver core.CallbackResolver) *ExpireBalanceChecksCommand {
	return &ExpireBalanceChecksCommand{pending: pending, resolver: resolver}
}

func (c *ExpireBalanceChecksCommand) Execute(ctx context.Context, msg ExpireBalanceChecksMessage) error {
	if c == nil || c.pending == nil || c.resolver == nil {
		return commandDependencyError("command: pending lister and callback resolver are required")
	}
	if err := msg.Validate(); err != nil {
		return err
	}
	checks, err := c.pending.ListPending(ctx, msg.Cutoff)
	if err != nil {
		return err
	}
	out := ExpireBalanceChecksResult{Expired: []string{}, Failed: map[string]string{}}
	for _, check := range checks {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := c.resolver.RecordCallbackTimeout(ctx, check.CorrelationID, nil); err != nil {
			out.Failed[check.CorrelationID] = err.Error()
			continue
		}
		out.Expired = append(out.Expired, check.CorrelationID)
	}
	storeResult(ctx, out)
	return nil
}

func accountLookupError(accountID string, err error) error {
	if core.IsErrorKind(err, core.ErrorNotFound) {
		return err
	}
	if errors.Is(err, core.ErrAccountNotFound) {
		return core.NewNotFoundError("command: account not found", map[string]any{"account_id": accountID})
	}
	return err
}

func storeResult[T any](ctx context.Context, value T) {
	collector := gocmd.ResultFromContext[T](ctx)
	if collector == nil {
		return
	}
	collector.Store(value)
}

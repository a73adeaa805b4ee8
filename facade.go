package bankfeeds

import (
	"context"
	"fmt"
	"time"

	"github.com/goliatone/go-bankfeeds/command"
	"github.com/goliatone/go-bankfeeds/core"
	"github.com/goliatone/go-bankfeeds/query"
)

// CommandQueryService is the service surface the facade drives.
type CommandQueryService interface {
	command.SyncService
	command.BalanceCheckService
	core.CallbackResolver
	query.BalanceCheckGetter
}

type AccountDirectory interface {
	Get(ctx context.Context, id string) (core.Account, error)
	List(ctx context.Context, providerKey string) ([]core.Account, error)
}

type PendingBalanceChecks interface {
	ListPending(ctx context.Context, cutoff time.Time) ([]core.BalanceCheck, error)
}

type Commands struct {
	SyncAccount              *command.SyncAccountCommand
	RequestBalanceCheck      *command.RequestBalanceCheckCommand
	RequestTransactionStatus *command.RequestTransactionStatusCommand
	ResolveCallback          *command.ResolveCallbackCommand
	// ExpireBalanceChecks is nil unless a pending lister is configured.
	ExpireBalanceChecks *command.ExpireBalanceChecksCommand
}

type Queries struct {
	GetBalanceCheck          *query.GetBalanceCheckQuery
	ListAccounts             *query.ListAccountsQuery
	ListStatementLines       *query.ListStatementLinesQuery
	ListPendingBalanceChecks *query.ListPendingBalanceChecksQuery
}

type Facade struct {
	service  CommandQueryService
	commands Commands
	queries  Queries
}

type FacadeOption func(*facadeOptions)

type facadeOptions struct {
	lines   core.StatementLineReader
	pending PendingBalanceChecks
}

func WithStatementLineReader(reader core.StatementLineReader) FacadeOption {
	return func(options *facadeOptions) {
		options.lines = reader
	}
}

func WithPendingBalanceChecks(pending PendingBalanceChecks) FacadeOption {
	return func(options *facadeOptions) {
		options.pending = pending
	}
}

func NewFacade(service CommandQueryService, accounts AccountDirectory, opts ...FacadeOption) (*Facade, error) {
	if service == nil {
		return nil, fmt.Errorf("bankfeeds: command/query service is required")
	}
	if accounts == nil {
		return nil, fmt.Errorf("bankfeeds: account directory is required")
	}
	cfg := facadeOptions{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&cfg)
	}
	if cfg.lines == nil {
		if reader, ok := service.(core.StatementLineReader); ok {
			cfg.lines = reader
		}
	}

	facade := &Facade{service: service}
	facade.commands = Commands{
		SyncAccount:              command.NewSyncAccountCommand(accounts, service),
		RequestBalanceCheck:      command.NewRequestBalanceCheckCommand(accounts, service),
		RequestTransactionStatus: command.NewRequestTransactionStatusCommand(accounts, service),
		ResolveCallback:          command.NewResolveCallbackCommand(service),
	}
	facade.queries = Queries{
		GetBalanceCheck: query.NewGetBalanceCheckQuery(service),
		ListAccounts:    query.NewListAccountsQuery(accounts),
	}
	if cfg.lines != nil {
		facade.queries.ListStatementLines = query.NewListStatementLinesQuery(cfg.lines)
	}
	if cfg.pending != nil {
		facade.commands.ExpireBalanceChecks = command.NewExpireBalanceChecksCommand(cfg.pending, service)
		facade.queries.ListPendingBalanceChecks = query.NewListPendingBalanceChecksQuery(cfg.pending)
	}
	return facade, nil
}

func (f *Facade) Commands() Commands {
	if f == nil {
		return Commands{}
	}
	return f.commands
}

func (f *Facade) Queries() Queries {
	if f == nil {
		return Queries{}
	}
	return f.queries
}

func (f *Facade) Service() CommandQueryService {
	if f == nil {
		return nil
	}
	return f.service
}

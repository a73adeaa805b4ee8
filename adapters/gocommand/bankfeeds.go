package gocommand

import (
	"context"
	"fmt"

	"github.com/goliatone/go-bankfeeds/command"
	"github.com/goliatone/go-bankfeeds/core"
	"github.com/goliatone/go-bankfeeds/query"
	commanddispatcher "github.com/goliatone/go-command/dispatcher"
)

// Service is the slice of core.Service the command bus drives.
type Service interface {
	command.SyncService
	command.BalanceCheckService
	core.CallbackResolver
	query.BalanceCheckGetter
}

type AccountStore interface {
	Get(ctx context.Context, id string) (core.Account, error)
	List(ctx context.Context, providerKey string) ([]core.Account, error)
}

// Dependencies wires the bankfeeds commands and queries. Lines and Pending
// are optional; their handlers are skipped when nil.
type Dependencies struct {
	Service  Service
	Accounts AccountStore
	Lines    core.StatementLineReader
	Pending  command.PendingBalanceCheckLister
}

type Subscriptions []commanddispatcher.Subscription

func (s Subscriptions) Unsubscribe() {
	for _, sub := range s {
		if sub != nil {
			sub.Unsubscribe()
		}
	}
}

// RegisterBankfeeds subscribes every command and query to the dispatcher
// and records them in the registry. Nothing stays subscribed on error.
func RegisterBankfeeds(adapter *RegistryAdapter, deps Dependencies) (Subscriptions, error) {
	if deps.Service == nil || deps.Accounts == nil {
		return nil, fmt.Errorf("gocommand: bankfeeds service and account store are required")
	}
	subs := Subscriptions{}
	add := func(sub commanddispatcher.Subscription, err error) error {
		if err != nil {
			subs.Unsubscribe()
			return err
		}
		subs = append(subs, sub)
		return nil
	}

	steps := []func() error{
		func() error {
			return add(RegisterAndSubscribe(adapter, command.NewSyncAccountCommand(deps.Accounts, deps.Service)))
		},
		func() error {
			return add(RegisterAndSubscribe(adapter, command.NewRequestBalanceCheckCommand(deps.Accounts, deps.Service)))
		},
		func() error {
			return add(RegisterAndSubscribe(adapter, command.NewRequestTransactionStatusCommand(deps.Accounts, deps.Service)))
		},
		func() error {
			return add(RegisterAndSubscribe(adapter, command.NewResolveCallbackCommand(deps.Service)))
		},
		func() error {
			return add(RegisterAndSubscribeQuery(adapter, query.NewGetBalanceCheckQuery(deps.Service)))
		},
		func() error {
			return add(RegisterAndSubscribeQuery(adapter, query.NewListAccountsQuery(deps.Accounts)))
		},
	}
	if deps.Lines != nil {
		steps = append(steps, func() error {
			return add(RegisterAndSubscribeQuery(adapter, query.NewListStatementLinesQuery(deps.Lines)))
		})
	}
	if deps.Pending != nil {
		steps = append(steps,
			func() error {
				return add(RegisterAndSubscribe(adapter, command.NewExpireBalanceChecksCommand(deps.Pending, deps.Service)))
			},
			func() error {
				return add(RegisterAndSubscribeQuery(adapter, query.NewListPendingBalanceChecksQuery(deps.Pending)))
			},
		)
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return nil, err
		}
	}
	return subs, nil
}

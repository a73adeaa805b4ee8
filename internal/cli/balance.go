package cli

import (
	"time"

	"github.com/goliatone/go-bankfeeds/adapters/gocommand"
	"github.com/goliatone/go-bankfeeds/command"
	"github.com/goliatone/go-bankfeeds/core"
	"github.com/goliatone/go-bankfeeds/query"
	"github.com/spf13/cobra"
)

func newBalanceCommand(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "balance",
		Short: "Request and inspect asynchronous balance checks",
	}
	cmd.AddCommand(
		newBalanceRequestCommand(flags),
		newBalanceStatusCommand(flags),
		newBalanceGetCommand(flags),
		newBalancePendingCommand(flags),
		newBalanceExpireCommand(flags),
	)
	return cmd
}

// withBus opens the runtime, subscribes the bus and runs fn.
func withBus(cmd *cobra.Command, flags *rootFlags, opts runtimeOptions, fn func(rt *Runtime) error) error {
	rt, err := openRuntime(cmd.Context(), flags, opts)
	if err != nil {
		return err
	}
	defer rt.Close()
	subs, err := rt.Bus()
	if err != nil {
		return err
	}
	defer subs.Unsubscribe()
	return fn(rt)
}

func newBalanceRequestCommand(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "request <account-id>",
		Short: "Ask the provider for an account balance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBus(cmd, flags, runtimeOptions{}, func(*Runtime) error {
				check, err := gocommand.DispatchWithResult[command.RequestBalanceCheckMessage, core.BalanceCheck](
					cmd.Context(), command.RequestBalanceCheckMessage{AccountID: args[0]},
				)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), check)
			})
		},
	}
}

func newBalanceStatusCommand(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "status <account-id> <transaction-id>",
		Short: "Ask the provider for the status of a transaction",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBus(cmd, flags, runtimeOptions{}, func(*Runtime) error {
				check, err := gocommand.DispatchWithResult[command.RequestTransactionStatusMessage, core.BalanceCheck](
					cmd.Context(), command.RequestTransactionStatusMessage{AccountID: args[0], TransactionID: args[1]},
				)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), check)
			})
		},
	}
}

func newBalanceGetCommand(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "get <correlation-id>",
		Short: "Show a balance check by correlation id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBus(cmd, flags, runtimeOptions{skipSecrets: true}, func(*Runtime) error {
				check, err := gocommand.Query[query.GetBalanceCheckMessage, core.BalanceCheck](
					cmd.Context(), query.GetBalanceCheckMessage{CorrelationID: args[0]},
				)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), check)
			})
		},
	}
}

func newBalancePendingCommand(flags *rootFlags) *cobra.Command {
	var olderThan time.Duration
	cmd := &cobra.Command{
		Use:   "pending",
		Short: "List balance checks still waiting for a callback",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withBus(cmd, flags, runtimeOptions{skipSecrets: true}, func(*Runtime) error {
				checks, err := gocommand.Query[query.ListPendingBalanceChecksMessage, []core.BalanceCheck](
					cmd.Context(), query.ListPendingBalanceChecksMessage{Cutoff: time.Now().UTC().Add(-olderThan)},
				)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), checks)
			})
		},
	}
	cmd.Flags().DurationVar(&olderThan, "older-than", 0, "only list checks requested before now minus this duration")
	return cmd
}

func newBalanceExpireCommand(flags *rootFlags) *cobra.Command {
	var olderThan time.Duration
	cmd := &cobra.Command{
		Use:   "expire",
		Short: "Record a timeout for pending checks older than --older-than",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withBus(cmd, flags, runtimeOptions{skipSecrets: true}, func(rt *Runtime) error {
				if olderThan <= 0 {
					olderThan = rt.File.Server.ExpireAfter
				}
				out, err := gocommand.DispatchWithResult[command.ExpireBalanceChecksMessage, command.ExpireBalanceChecksResult](
					cmd.Context(), command.ExpireBalanceChecksMessage{Cutoff: time.Now().UTC().Add(-olderThan)},
				)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), out)
			})
		},
	}
	cmd.Flags().DurationVar(&olderThan, "older-than", 0, "expire checks requested before now minus this duration (defaults to server.expire_after)")
	return cmd
}

package cli

import (
	"fmt"

	"github.com/goliatone/go-bankfeeds/adapters/gocommand"
	"github.com/goliatone/go-bankfeeds/command"
	"github.com/goliatone/go-bankfeeds/core"
	banksync "github.com/goliatone/go-bankfeeds/sync"
	"github.com/spf13/cobra"
)

type syncOutcome struct {
	AccountID string          `json:"account_id"`
	Report    core.SyncReport `json:"report"`
	Error     string          `json:"error,omitempty"`
}

func newSyncCommand(flags *rootFlags) *cobra.Command {
	var (
		all      bool
		provider string
	)
	cmd := &cobra.Command{
		Use:   "sync [account-id]",
		Short: "Fetch and persist new statement lines",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !all && provider == "" && len(args) == 0 {
				return fmt.Errorf("an account id, --all or --provider is required")
			}
			rt, err := openRuntime(cmd.Context(), flags, runtimeOptions{})
			if err != nil {
				return err
			}
			defer rt.Close()

			if len(args) == 1 {
				accountID, err := requireArg(args, "account id")
				if err != nil {
					return err
				}
				subs, err := rt.Bus()
				if err != nil {
					return err
				}
				defer subs.Unsubscribe()

				report, err := gocommand.DispatchWithResult[command.SyncAccountMessage, core.SyncReport](
					cmd.Context(), command.SyncAccountMessage{AccountID: accountID},
				)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), syncOutcome{AccountID: accountID, Report: report})
			}

			accounts, err := rt.Stores.AccountStore().List(cmd.Context(), provider)
			if err != nil {
				return err
			}
			runner := banksync.NewRunner(rt.Service,
				banksync.WithConcurrency(rt.File.Server.Concurrency),
				banksync.WithRunnerLogger(rt.Provider.GetLogger("bankfeeds.sync")),
			)
			results, runErr := runner.Run(cmd.Context(), accounts)
			outcomes := make([]syncOutcome, 0, len(results))
			failed := 0
			for _, result := range results {
				outcome := syncOutcome{AccountID: result.AccountID, Report: result.Report}
				if result.Err != nil {
					outcome.Error = result.Err.Error()
					failed++
				}
				outcomes = append(outcomes, outcome)
			}
			if err := printJSON(cmd.OutOrStdout(), outcomes); err != nil {
				return err
			}
			if runErr != nil {
				return runErr
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d accounts failed to sync", failed, len(results))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "sync every stored account")
	cmd.Flags().StringVar(&provider, "provider", "", "sync every account of this provider key")
	return cmd
}

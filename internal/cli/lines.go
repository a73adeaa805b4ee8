package cli

import (
	"github.com/goliatone/go-bankfeeds/adapters/gocommand"
	"github.com/goliatone/go-bankfeeds/core"
	"github.com/goliatone/go-bankfeeds/query"
	"github.com/spf13/cobra"
)

func newLinesCommand(flags *rootFlags) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "lines <account-id>",
		Short: "List persisted statement lines for an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBus(cmd, flags, runtimeOptions{skipSecrets: true}, func(*Runtime) error {
				lines, err := gocommand.Query[query.ListStatementLinesMessage, []core.StatementLine](
					cmd.Context(), query.ListStatementLinesMessage{AccountID: args[0], Limit: limit},
				)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), lines)
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum number of lines")
	return cmd
}

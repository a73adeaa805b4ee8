package cli

import (
	"fmt"
	"strings"

	"github.com/goliatone/go-bankfeeds/adapters/gocommand"
	"github.com/goliatone/go-bankfeeds/core"
	"github.com/goliatone/go-bankfeeds/query"
	"github.com/spf13/cobra"
)

type accountView struct {
	ID                string `json:"id"`
	TenantID          string `json:"tenant_id"`
	ProviderKey       string `json:"provider_key"`
	ExternalAccountID string `json:"external_account_id,omitempty"`
	BaseURL           string `json:"base_url,omitempty"`
	LastSyncedAt      string `json:"last_synced_at,omitempty"`
}

func newAccountView(account core.Account) accountView {
	view := accountView{
		ID:                account.ID,
		TenantID:          account.TenantID,
		ProviderKey:       account.ProviderKey,
		ExternalAccountID: account.ExternalAccountID,
		BaseURL:           account.BaseURL,
	}
	if account.LastSyncedAt != nil {
		view.LastSyncedAt = account.LastSyncedAt.UTC().Format("2006-01-02T15:04:05Z")
	}
	return view
}

func newAccountsCommand(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "accounts",
		Short: "Manage provider accounts",
	}
	cmd.AddCommand(newAccountsListCommand(flags), newAccountsAddCommand(flags))
	return cmd
}

func newAccountsListCommand(flags *rootFlags) *cobra.Command {
	var provider string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored accounts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := openRuntime(cmd.Context(), flags, runtimeOptions{skipSecrets: true})
			if err != nil {
				return err
			}
			defer rt.Close()
			subs, err := rt.Bus()
			if err != nil {
				return err
			}
			defer subs.Unsubscribe()

			accounts, err := gocommand.Query[query.ListAccountsMessage, []core.Account](cmd.Context(), query.ListAccountsMessage{ProviderKey: provider})
			if err != nil {
				return err
			}
			views := make([]accountView, 0, len(accounts))
			for _, account := range accounts {
				views = append(views, newAccountView(account))
			}
			return printJSON(cmd.OutOrStdout(), views)
		},
	}
	cmd.Flags().StringVar(&provider, "provider", "", "only list accounts of this provider key")
	return cmd
}

func newAccountsAddCommand(flags *rootFlags) *cobra.Command {
	var (
		account     core.Account
		credentials map[string]string
	)
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Store an account with sealed credentials",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := openRuntime(cmd.Context(), flags, runtimeOptions{})
			if err != nil {
				return err
			}
			defer rt.Close()

			account.ProviderKey = strings.ToLower(strings.TrimSpace(account.ProviderKey))
			if !rt.registryHas(account.ProviderKey) {
				return core.NewUnsupportedProviderError(account.ProviderKey)
			}
			sealed, err := core.SealCredentials(cmd.Context(), rt.Secrets, core.JSONCredentialCodec{}, core.Credentials(credentials))
			if err != nil {
				return err
			}
			account.Credentials = sealed
			saved, err := rt.Stores.AccountStore().Save(cmd.Context(), account)
			if err != nil {
				return err
			}
			rt.Logger.Info("account stored", "account_id", saved.ID, "provider_key", saved.ProviderKey)
			return printJSON(cmd.OutOrStdout(), newAccountView(saved))
		},
	}
	cmd.Flags().StringVar(&account.ID, "id", "", "account id (generated when empty)")
	cmd.Flags().StringVar(&account.TenantID, "tenant", "", "tenant id")
	cmd.Flags().StringVar(&account.ProviderKey, "provider", "", "provider key (generic_rest, mpesa or a configured bank)")
	cmd.Flags().StringVar(&account.ExternalAccountID, "external-id", "", "provider-side account number or shortcode")
	cmd.Flags().StringVar(&account.BaseURL, "base-url", "", "bank API base url for generic_rest accounts")
	cmd.Flags().StringToStringVar(&credentials, "credential", nil, "credential key=value, repeatable")
	_ = cmd.MarkFlagRequired("tenant")
	_ = cmd.MarkFlagRequired("provider")
	_ = cmd.MarkFlagRequired("credential")
	return cmd
}

func (r *Runtime) registryHas(providerKey string) bool {
	if r == nil || r.Registry == nil {
		return false
	}
	return r.Registry.Has(providerKey)
}

func requireArg(args []string, name string) (string, error) {
	if len(args) == 0 || strings.TrimSpace(args[0]) == "" {
		return "", fmt.Errorf("%s is required", name)
	}
	return strings.TrimSpace(args[0]), nil
}

package accounts

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/spf13/cobra"

	"github.com/threatengine/onboarding/cmd/cli/client"
	"github.com/threatengine/onboarding/cmd/cli/output"
)

type accountView struct {
	AccountID        string `json:"account_id"`
	AccountName      string `json:"account_name"`
	AccountNumber    string `json:"account_number"`
	ProviderType     string `json:"provider_type"`
	Status           string `json:"status"`
	OnboardingStatus string `json:"onboarding_status"`
	CreatedAt        string `json:"created_at"`
}

var accountsCmd = &cobra.Command{
	Use:   "accounts",
	Short: "Manage onboarded cloud accounts",
}

var (
	listTenantID string
	listProvider string
	listStatus   string
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List accounts for a tenant",
	RunE: func(cmd *cobra.Command, args []string) error {
		q := url.Values{}
		q.Set("tenant_id", listTenantID)
		if listProvider != "" {
			q.Set("provider_type", listProvider)
		}
		if listStatus != "" {
			q.Set("status", listStatus)
		}
		var resp struct {
			Accounts []accountView `json:"accounts"`
		}
		if err := client.Do(http.MethodGet, "/api/v1/onboarding/accounts?"+q.Encode(), nil, &resp); err != nil {
			return err
		}
		rows := make([][]any, 0, len(resp.Accounts))
		for _, a := range resp.Accounts {
			rows = append(rows, []any{a.AccountID, a.ProviderType, a.AccountName, a.AccountNumber, a.Status, a.OnboardingStatus})
		}
		output.RenderTable([]string{"ID", "Provider", "Name", "Account #", "Status", "Onboarding"}, rows)
		return nil
	},
}

var getCmd = &cobra.Command{
	Use:   "get <account-id>",
	Short: "Show one account",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var view map[string]any
		if err := client.Do(http.MethodGet, "/api/v1/onboarding/accounts/"+args[0], nil, &view); err != nil {
			return err
		}
		pretty, err := json.MarshalIndent(view, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(pretty))
		return nil
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <account-id>",
	Short: "Offboard an account and remove its credentials",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := client.Do(http.MethodDelete, "/api/v1/onboarding/accounts/"+args[0], nil, nil); err != nil {
			return err
		}
		fmt.Println("Deleted account", args[0])
		return nil
	},
}

// Init registers account commands on the root command.
func Init(rootCmd *cobra.Command) {
	listCmd.Flags().StringVar(&listTenantID, "tenant", "", "tenant ID")
	listCmd.Flags().StringVar(&listProvider, "provider", "", "filter by provider type")
	listCmd.Flags().StringVar(&listStatus, "status", "", "filter by account status")
	_ = listCmd.MarkFlagRequired("tenant")
	accountsCmd.AddCommand(listCmd, getCmd, deleteCmd)
	rootCmd.AddCommand(accountsCmd)
}

package tenants

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/threatengine/onboarding/cmd/cli/client"
	"github.com/threatengine/onboarding/cmd/cli/output"
	"github.com/threatengine/onboarding/internal/models"
)

var tenantsCmd = &cobra.Command{
	Use:   "tenants",
	Short: "Manage tenants",
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List tenants",
	RunE: func(cmd *cobra.Command, args []string) error {
		var resp struct {
			Tenants []models.Tenant `json:"tenants"`
		}
		if err := client.Do(http.MethodGet, "/api/v1/tenants", nil, &resp); err != nil {
			return err
		}
		rows := make([][]any, 0, len(resp.Tenants))
		for _, t := range resp.Tenants {
			rows = append(rows, []any{t.ID, t.Name, t.CreatedAt.Format("2006-01-02 15:04")})
		}
		output.RenderTable([]string{"ID", "Name", "Created"}, rows)
		return nil
	},
}

var createName string

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a tenant",
	RunE: func(cmd *cobra.Command, args []string) error {
		var tenant models.Tenant
		body := map[string]string{"name": createName}
		if err := client.Do(http.MethodPost, "/api/v1/tenants", body, &tenant); err != nil {
			return err
		}
		fmt.Println("Created tenant", tenant.ID)
		return nil
	},
}

// Init registers tenant commands on the root command.
func Init(rootCmd *cobra.Command) {
	createCmd.Flags().StringVar(&createName, "name", "", "tenant name")
	_ = createCmd.MarkFlagRequired("name")
	tenantsCmd.AddCommand(listCmd, createCmd)
	rootCmd.AddCommand(tenantsCmd)
}

package schedules

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/threatengine/onboarding/cmd/cli/client"
	"github.com/threatengine/onboarding/cmd/cli/output"
	"github.com/threatengine/onboarding/internal/models"
)

var schedulesCmd = &cobra.Command{
	Use:   "schedules",
	Short: "Manage scan schedules",
}

var (
	listTenantID  string
	listAccountID string
	listStatus    string
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List schedules",
	RunE: func(cmd *cobra.Command, args []string) error {
		q := url.Values{}
		if listTenantID != "" {
			q.Set("tenant_id", listTenantID)
		}
		if listAccountID != "" {
			q.Set("account_id", listAccountID)
		}
		if listStatus != "" {
			q.Set("status", listStatus)
		}
		var resp struct {
			Schedules []models.Schedule `json:"schedules"`
		}
		if err := client.Do(http.MethodGet, "/api/v1/schedules?"+q.Encode(), nil, &resp); err != nil {
			return err
		}
		rows := make([][]any, 0, len(resp.Schedules))
		for _, s := range resp.Schedules {
			next := "-"
			if s.NextRunAt != nil {
				next = s.NextRunAt.UTC().Format("2006-01-02 15:04")
			}
			cadence := s.CronExpression
			if s.Kind == models.KindInterval {
				cadence = fmt.Sprintf("every %ds", s.IntervalSeconds)
			} else if s.Kind == models.KindOneTime {
				cadence = "once"
			}
			rows = append(rows, []any{s.ID, s.Name, s.Kind, cadence, s.Enabled, next, s.RunCount, s.FailureCount})
		}
		output.RenderTable([]string{"ID", "Name", "Type", "Cadence", "Enabled", "Next Run (UTC)", "Runs", "Failures"}, rows)
		return nil
	},
}

var (
	createTenantID  string
	createAccountID string
	createName      string
	createKind      string
	createCron      string
	createInterval  int
	createTimezone  string
	createRegions   []string
	createServices  []string
)

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a scan schedule",
	RunE: func(cmd *cobra.Command, args []string) error {
		body := map[string]any{
			"tenant_id":     createTenantID,
			"account_id":    createAccountID,
			"name":          createName,
			"schedule_type": createKind,
			"timezone":      createTimezone,
			"regions":       createRegions,
			"services":      createServices,
		}
		switch createKind {
		case models.KindCron:
			body["cron_expression"] = createCron
		case models.KindInterval:
			body["interval_seconds"] = createInterval
		}
		var schedule models.Schedule
		if err := client.Do(http.MethodPost, "/api/v1/schedules", body, &schedule); err != nil {
			return err
		}
		fmt.Println("Created schedule", schedule.ID)
		return nil
	},
}

var getCmd = &cobra.Command{
	Use:   "get <schedule-id>",
	Short: "Show one schedule",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var schedule map[string]any
		if err := client.Do(http.MethodGet, "/api/v1/schedules/"+args[0], nil, &schedule); err != nil {
			return err
		}
		pretty, err := json.MarshalIndent(schedule, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(pretty))
		return nil
	},
}

var enableCmd = &cobra.Command{
	Use:   "enable <schedule-id>",
	Short: "Enable a schedule",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := client.Do(http.MethodPost, "/api/v1/schedules/"+args[0]+"/enable", nil, nil); err != nil {
			return err
		}
		fmt.Println("Enabled schedule", args[0])
		return nil
	},
}

var disableCmd = &cobra.Command{
	Use:   "disable <schedule-id>",
	Short: "Disable a schedule",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := client.Do(http.MethodPost, "/api/v1/schedules/"+args[0]+"/disable", nil, nil); err != nil {
			return err
		}
		fmt.Println("Disabled schedule", args[0])
		return nil
	},
}

var triggerCmd = &cobra.Command{
	Use:   "trigger <schedule-id>",
	Short: "Run a schedule immediately",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var resp struct {
			Status      string `json:"status"`
			ExecutionID string `json:"execution_id"`
			ScanID      string `json:"scan_id"`
		}
		if err := client.Do(http.MethodPost, "/api/v1/schedules/"+args[0]+"/trigger", nil, &resp); err != nil {
			return err
		}
		fmt.Printf("Triggered: execution=%s scan=%s\n", resp.ExecutionID, resp.ScanID)
		return nil
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <schedule-id>",
	Short: "Delete a schedule",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := client.Do(http.MethodDelete, "/api/v1/schedules/"+args[0], nil, nil); err != nil {
			return err
		}
		fmt.Println("Deleted schedule", args[0])
		return nil
	},
}

var executionsLimit int

var executionsCmd = &cobra.Command{
	Use:   "executions <schedule-id>",
	Short: "List recent executions of a schedule",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var resp struct {
			Executions []models.Execution `json:"executions"`
			Total      int                `json:"total"`
		}
		path := "/api/v1/schedules/" + args[0] + "/executions?limit=" + strconv.Itoa(executionsLimit)
		if err := client.Do(http.MethodGet, path, nil, &resp); err != nil {
			return err
		}
		rows := make([][]any, 0, len(resp.Executions))
		for _, e := range resp.Executions {
			finished := "-"
			if e.CompletedAt != nil {
				finished = e.CompletedAt.UTC().Format("2006-01-02 15:04:05")
			}
			rows = append(rows, []any{e.ID, e.Status, e.TriggeredBy, e.StartedAt.UTC().Format("2006-01-02 15:04:05"), finished, e.ScanID})
		}
		output.RenderTable([]string{"ID", "Status", "Trigger", "Started (UTC)", "Completed (UTC)", "Scan ID"}, rows)
		fmt.Printf("%d of %d executions\n", len(resp.Executions), resp.Total)
		return nil
	},
}

// Init registers schedule commands on the root command.
func Init(rootCmd *cobra.Command) {
	listCmd.Flags().StringVar(&listTenantID, "tenant", "", "filter by tenant ID")
	listCmd.Flags().StringVar(&listAccountID, "account", "", "filter by account ID")
	listCmd.Flags().StringVar(&listStatus, "status", "", "filter by schedule status")

	createCmd.Flags().StringVar(&createTenantID, "tenant", "", "tenant ID")
	createCmd.Flags().StringVar(&createAccountID, "account", "", "account ID")
	createCmd.Flags().StringVar(&createName, "name", "", "schedule name")
	createCmd.Flags().StringVar(&createKind, "type", models.KindCron, "schedule type: cron, interval or one_time")
	createCmd.Flags().StringVar(&createCron, "cron", "", "cron expression (cron schedules)")
	createCmd.Flags().IntVar(&createInterval, "interval", 0, "interval in seconds (interval schedules)")
	createCmd.Flags().StringVar(&createTimezone, "timezone", "UTC", "IANA timezone for cron evaluation")
	createCmd.Flags().StringSliceVar(&createRegions, "regions", nil, "regions to scan")
	createCmd.Flags().StringSliceVar(&createServices, "services", nil, "services to scan")
	_ = createCmd.MarkFlagRequired("tenant")
	_ = createCmd.MarkFlagRequired("account")
	_ = createCmd.MarkFlagRequired("name")

	executionsCmd.Flags().IntVar(&executionsLimit, "limit", 20, "max executions to return")

	schedulesCmd.AddCommand(listCmd, createCmd, getCmd, enableCmd, disableCmd, triggerCmd, deleteCmd, executionsCmd)
	rootCmd.AddCommand(schedulesCmd)
}

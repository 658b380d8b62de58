package commands

import (
	"fmt"
	"os"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/expel-io/workbench-go/internal/constants"
	"github.com/expel-io/workbench-go/pkg/workbench"
)

// NewAlertsCommand creates the alerts command group.
func NewAlertsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "alerts",
		Short: "Manage Expel alerts",
	}

	cmd.AddCommand(newAlertsListCommand())

	return cmd
}

func newAlertsListCommand() *cobra.Command {
	var (
		status   string
		severity string
		limit    int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List Expel alerts",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := createClient(cmd.Context())
			if err != nil {
				return err
			}

			filters := []workbench.Filter{
				workbench.Limit(limit),
				workbench.Sort("created_at", "desc"),
			}

			if status != "" {
				filters = append(filters, workbench.Where("status", status))
			}

			if severity != "" {
				filters = append(filters, workbench.Where("expel_severity", severity))
			}

			instances, err := client.ExpelAlerts().Search(filters...).All(cmd.Context())
			if err != nil {
				return fmt.Errorf("listing alerts: %w", err)
			}

			return renderInstances(instances, renderAlertsTable)
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "filter by status")
	cmd.Flags().StringVar(&severity, "severity", "", "filter by severity")
	cmd.Flags().IntVar(&limit, "limit", constants.CLIPageLimit, "page size")

	return cmd
}

func renderAlertsTable(instances []*workbench.Instance) error {
	if len(instances) == 0 {
		fmt.Println("No alerts found.")

		return nil
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("ID", "Name", "Severity", "Status", "Alerted")

	for _, inst := range instances {
		_ = table.Append(inst.ID(),
			attrString(inst, "expel_name"),
			attrString(inst, "expel_severity"),
			attrString(inst, "status"),
			attrTimestamp(inst, "alert_at"))
	}

	_ = table.Render()

	return nil
}

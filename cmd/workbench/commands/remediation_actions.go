package commands

import (
	"fmt"
	"os"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/expel-io/workbench-go/internal/constants"
	"github.com/expel-io/workbench-go/pkg/workbench"
)

// NewRemediationActionsCommand creates the remediation-actions command group.
func NewRemediationActionsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "remediation-actions",
		Aliases: []string{"rem"},
		Short:   "Manage remediation actions",
	}

	cmd.AddCommand(newRemediationActionsListCommand())

	return cmd
}

func newRemediationActionsListCommand() *cobra.Command {
	var (
		openOnly       bool
		organizationID string
		limit          int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List remediation actions",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := createClient(cmd.Context())
			if err != nil {
				return err
			}

			filters := []workbench.Filter{
				workbench.Limit(limit),
				workbench.Sort("created_at", "desc"),
			}

			if openOnly {
				filters = append(filters,
					workbench.Where("status", workbench.Neq("COMPLETED", "CLOSED")))
			}

			if organizationID != "" {
				filters = append(filters, workbench.Rel("organization.id", organizationID))
			}

			instances, err := client.RemediationActions().Search(filters...).All(cmd.Context())
			if err != nil {
				return fmt.Errorf("listing remediation actions: %w", err)
			}

			return renderInstances(instances, renderRemediationActionsTable)
		},
	}

	cmd.Flags().BoolVar(&openOnly, "open", false, "only actions not yet completed or closed")
	cmd.Flags().StringVar(&organizationID, "organization-id", "", "restrict to one organization")
	cmd.Flags().IntVar(&limit, "limit", constants.CLIPageLimit, "page size")

	return cmd
}

func renderRemediationActionsTable(instances []*workbench.Instance) error {
	if len(instances) == 0 {
		fmt.Println("No remediation actions found.")

		return nil
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("ID", "Action", "Type", "Status", "Created")

	for _, inst := range instances {
		_ = table.Append(inst.ID(),
			attrString(inst, "action"),
			attrString(inst, "action_type"),
			attrString(inst, "status"),
			attrTimestamp(inst, "created_at"))
	}

	_ = table.Render()

	return nil
}

package commands

import (
	"bufio"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/expel-io/workbench-go/internal/constants"
	"github.com/expel-io/workbench-go/pkg/workbench"
)

// NewInvestigationsCommand creates the investigations command group.
func NewInvestigationsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "investigations",
		Aliases: []string{"inv"},
		Short:   "Manage investigations",
	}

	cmd.AddCommand(newInvestigationsListCommand())
	cmd.AddCommand(newInvestigationsShowCommand())
	cmd.AddCommand(newInvestigationsCloseCommand())

	return cmd
}

func newInvestigationsListCommand() *cobra.Command {
	var (
		organizationID string
		openOnly       bool
		incidentsOnly  bool
		limit          int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List investigations",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := createClient(cmd.Context())
			if err != nil {
				return err
			}

			filters := []workbench.Filter{
				workbench.Limit(limit),
				workbench.Sort("created_at", "desc"),
			}

			if organizationID != "" {
				filters = append(filters, workbench.Rel("organization.id", organizationID))
			}

			if openOnly {
				filters = append(filters, workbench.Where("decision", workbench.IsNull()))
			}

			if incidentsOnly {
				filters = append(filters, workbench.Where("is_incident", true))
			}

			instances, err := client.Investigations().Search(filters...).All(cmd.Context())
			if err != nil {
				return fmt.Errorf("listing investigations: %w", err)
			}

			return renderInstances(instances, renderInvestigationsTable)
		},
	}

	cmd.Flags().StringVar(&organizationID, "organization-id", "", "restrict to one organization")
	cmd.Flags().BoolVar(&openOnly, "open", false, "only investigations without a decision")
	cmd.Flags().BoolVar(&incidentsOnly, "incidents", false, "only incidents")
	cmd.Flags().IntVar(&limit, "limit", constants.CLIPageLimit, "page size")

	return cmd
}

func renderInvestigationsTable(instances []*workbench.Instance) error {
	if len(instances) == 0 {
		fmt.Println("No investigations found.")

		return nil
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("ID", "Title", "Decision", "Incident", "Created")

	for _, inst := range instances {
		_ = table.Append(inst.ID(),
			attrString(inst, "title"),
			attrString(inst, "decision"),
			attrString(inst, "is_incident"),
			attrTimestamp(inst, "created_at"))
	}

	_ = table.Render()

	return nil
}

func newInvestigationsShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show INVESTIGATION_ID",
		Short: "Show investigation details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := createClient(cmd.Context())
			if err != nil {
				return err
			}

			inst, err := client.Investigations().Get(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("fetching investigation: %w", err)
			}

			return renderInstances([]*workbench.Instance{inst}, renderInvestigationDetails)
		},
	}
}

func renderInvestigationDetails(instances []*workbench.Instance) error {
	inst := instances[0]

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Property", "Value")

	_ = table.Append("ID", inst.ID())

	attrs := inst.Attributes()

	names := make([]string, 0, len(attrs))
	for name := range attrs {
		names = append(names, name)
	}

	sort.Strings(names)

	for _, name := range names {
		_ = table.Append(name, attrString(inst, name))
	}

	_ = table.Render()

	return nil
}

func newInvestigationsCloseCommand() *cobra.Command {
	var (
		decision string
		comment  string
		force    bool
	)

	cmd := &cobra.Command{
		Use:   "close INVESTIGATION_ID",
		Short: "Close an investigation with a decision",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if args[0] == "" {
				return ErrInvestigationIDEmpty
			}

			if !force {
				reader := bufio.NewReader(os.Stdin)
				fmt.Printf("Close investigation %s with decision %q? [y/N]: ", args[0], decision)

				answer, _ := reader.ReadString('\n')
				if !strings.EqualFold(strings.TrimSpace(answer), "y") {
					fmt.Println("Aborted.")

					return nil
				}
			}

			client, err := createClient(cmd.Context())
			if err != nil {
				return err
			}

			inst, err := client.Investigations().Update(cmd.Context(), args[0], func(inv *workbench.Instance) error {
				if err := inv.SetAttr("decision", decision); err != nil {
					return err
				}

				if comment != "" {
					return inv.SetAttr("close_comment", comment)
				}

				return nil
			})
			if err != nil {
				return fmt.Errorf("closing investigation: %w", err)
			}

			fmt.Printf("Investigation %s closed.\n", inst.ID())

			return nil
		},
	}

	cmd.Flags().StringVar(&decision, "decision", "FALSE_POSITIVE", "close decision")
	cmd.Flags().StringVar(&comment, "comment", "", "close comment")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "skip the confirmation prompt")

	return cmd
}

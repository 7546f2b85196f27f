package cli

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all configured nodes",
		Long:  `List every node defined in the plan configuration and its relationships.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList()
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("🏗 Gantry v%s\n", version)
		},
	}
}

func runList() error {
	cfg, err := loadPlanConfig()
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tCOMMAND\tDEPENDS ON\tFINALIZES\tENABLED")
	for _, node := range cfg.Nodes {
		deps := strings.Join(append(append([]string{}, node.DependsOn...), node.OutcomeDependsOn...), ", ")
		if deps == "" {
			deps = "-"
		}
		finalizes := strings.Join(node.Finalizes, ", ")
		if finalizes == "" {
			finalizes = "-"
		}
		enabled := "yes"
		if !node.IsEnabled() {
			enabled = "no"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", node.Name, node.Command, deps, finalizes, enabled)
	}
	return w.Flush()
}

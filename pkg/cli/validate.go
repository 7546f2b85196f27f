package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the plan configuration",
		Long: `Check the plan configuration for structural problems and dependency cycles
without executing anything.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadPlanConfig()
			if err != nil {
				printError(fmt.Sprintf("Validation failed: %v", err))
				return err
			}
			printSuccess(fmt.Sprintf("Plan %s is valid: %d node(s)", cfg.Name, len(cfg.Nodes)))
			return nil
		},
	}
}

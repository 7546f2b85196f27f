package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/gantry/gantry/pkg/config"
	"github.com/gantry/gantry/pkg/types"
)

func newInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init [name]",
		Short: "Create a starter plan configuration",
		Long:  `Write a gantry.config.json with a small example plan into the project root.`,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := "default"
			if len(args) > 0 {
				name = args[0]
			}
			return runInit(name, force)
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite an existing configuration")

	return cmd
}

func runInit(name string, force bool) error {
	path := filepath.Join(projectRoot, "gantry.config.json")
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("configuration already exists at %s (use --force to overwrite)", path)
	}

	manager := config.NewManager()
	cfg := manager.GetDefaultConfig(name)
	cfg.Nodes = []types.NodeConfig{
		{
			Name:    "build",
			Command: "echo building",
		},
		{
			Name:      "test",
			Command:   "echo testing",
			DependsOn: []string{"build"},
		},
		{
			Name:      "report",
			Command:   "echo reporting",
			Finalizes: []string{"test"},
		},
	}

	if err := manager.SaveConfig(cfg, path); err != nil {
		return err
	}

	printSuccess(fmt.Sprintf("Created %s", path))
	return nil
}

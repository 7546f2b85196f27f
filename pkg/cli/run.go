package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/gantry/gantry/internal/engine"
	"github.com/gantry/gantry/pkg/config"
	"github.com/gantry/gantry/pkg/interfaces"
	"github.com/gantry/gantry/pkg/logger"
	"github.com/gantry/gantry/pkg/notifier"
	"github.com/gantry/gantry/pkg/process"
	"github.com/gantry/gantry/pkg/task"
	"github.com/gantry/gantry/pkg/types"
	"github.com/gantry/gantry/pkg/validation"
)

func newRunCmd() *cobra.Command {
	var parallelism int
	var failFast bool

	cmd := &cobra.Command{
		Use:   "run [nodes...]",
		Short: "Execute the plan",
		Long: `Execute the configured plan. If node names are given, only those nodes and
their dependencies are executed; otherwise every enabled node runs.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlan(args, parallelism, failFast)
		},
	}

	cmd.Flags().IntVarP(&parallelism, "parallelism", "p", 0, "maximum concurrent nodes (default: from config)")
	cmd.Flags().BoolVar(&failFast, "fail-fast", false, "abort remaining work after the first node failure")

	return cmd
}

func runPlan(entryNames []string, parallelism int, failFast bool) error {
	cfg, err := loadPlanConfig()
	if err != nil {
		return err
	}

	log := createLogger(cfg)

	builder := task.NewGraphBuilder(*cfg, projectRoot, log)
	p, err := builder.Build(entryNames...)
	if err != nil {
		return fmt.Errorf("failed to build plan: %w", err)
	}

	if parallelism <= 0 {
		parallelism = cfg.Parallelism
	}

	manager := process.NewManager(log)
	ctx := manager.Start(context.Background())
	defer manager.Stop()

	scheduler := engine.NewScheduler(log, interfaces.SchedulerDependencies{
		Notifier: createNotifier(cfg, log),
	}, engine.Options{
		Parallelism: parallelism,
		FailFast:    failFast,
	})

	printInfo(fmt.Sprintf("Executing plan %s with parallelism %d", cfg.Name, effectiveParallelism(parallelism)))
	start := time.Now()

	if err := scheduler.Execute(ctx, p); err != nil {
		printError(fmt.Sprintf("Plan failed after %s", time.Since(start).Round(time.Millisecond)))
		return err
	}

	printSuccess(fmt.Sprintf("Plan completed in %s", time.Since(start).Round(time.Millisecond)))
	return nil
}

func effectiveParallelism(p int) int {
	if p < 1 {
		return 1
	}
	return p
}

func loadPlanConfig() (*types.PlanConfig, error) {
	manager := config.NewManager()

	path := cfgFile
	if path == "" {
		discovered, err := manager.Discover(projectRoot)
		if err != nil {
			return nil, err
		}
		path = discovered
	}

	cfg, err := manager.LoadConfig(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := validation.ValidateGraph(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func createLogger(cfg *types.PlanConfig) logger.Logger {
	logFile := ""
	level := verbosity
	if cfg.Logging != nil {
		logFile = cfg.Logging.File
		if cfg.Logging.Level != "" && verbosity == "info" {
			level = cfg.Logging.Level
		}
	}
	return logger.CreateLogger(logFile, level)
}

func createNotifier(cfg *types.PlanConfig, log logger.Logger) interfaces.PlanNotifier {
	notifierConfig := notifier.Config{}
	if cfg.Notifications != nil {
		notifierConfig.Enabled = cfg.Notifications.Enabled == nil || *cfg.Notifications.Enabled
		notifierConfig.SuccessSound = cfg.Notifications.SuccessSound
		notifierConfig.FailureSound = cfg.Notifications.FailureSound
	}
	return notifier.New(notifierConfig, log)
}


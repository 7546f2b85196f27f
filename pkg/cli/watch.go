package cli

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/gantry/gantry/internal/engine"
	"github.com/gantry/gantry/pkg/interfaces"
	"github.com/gantry/gantry/pkg/process"
	"github.com/gantry/gantry/pkg/task"
)

func newWatchCmd() *cobra.Command {
	var parallelism int
	var failFast bool
	var settle time.Duration

	cmd := &cobra.Command{
		Use:   "watch [paths...]",
		Short: "Re-run the plan when watched files change",
		Long: `Watch the given paths (default: the project root) and re-execute the plan
whenever a file changes. Events are debounced so a burst of writes triggers a
single run.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(args, parallelism, failFast, settle)
		},
	}

	cmd.Flags().IntVarP(&parallelism, "parallelism", "p", 0, "maximum concurrent nodes (default: from config)")
	cmd.Flags().BoolVar(&failFast, "fail-fast", false, "abort remaining work after the first node failure")
	cmd.Flags().DurationVar(&settle, "settle", time.Second, "quiet period before a change triggers a run")

	return cmd
}

func runWatch(paths []string, parallelism int, failFast bool, settle time.Duration) error {
	cfg, err := loadPlanConfig()
	if err != nil {
		return err
	}

	log := createLogger(cfg)
	if parallelism <= 0 {
		parallelism = cfg.Parallelism
	}

	if len(paths) == 0 {
		paths = []string{projectRoot}
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	for _, path := range paths {
		if err := watcher.Add(path); err != nil {
			return fmt.Errorf("failed to watch %s: %w", path, err)
		}
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

	executeOnce := func() {
		// Plans are single use: nodes end up in terminal states, so each run
		// builds a fresh graph from the configuration
		builder := task.NewGraphBuilder(*cfg, projectRoot, log)
		p, err := builder.Build()
		if err != nil {
			printError(fmt.Sprintf("Failed to build plan: %v", err))
			return
		}
		if err := scheduler.Execute(ctx, p); err != nil {
			printError(fmt.Sprintf("Plan failed: %v", err))
		}
	}

	printInfo(fmt.Sprintf("Watching %d path(s), plan %s", len(paths), cfg.Name))
	executeOnce()

	var timer *time.Timer
	pending := make(chan struct{}, 1)

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			printInfo(fmt.Sprintf("Change detected: %s", filepath.Base(event.Name)))
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(settle, func() {
				select {
				case pending <- struct{}{}:
				default:
				}
			})

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			printWarning(fmt.Sprintf("Watch error: %v", err))

		case <-pending:
			executeOnce()

		case <-ctx.Done():
			printInfo("Watch stopped")
			return nil
		}
	}
}

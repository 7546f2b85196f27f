// Package task provides the command-backed unit of work scheduled by the
// execution engine, and the builder that turns a plan configuration into a
// wired node graph.
package task

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/gantry/gantry/pkg/interfaces"
	"github.com/gantry/gantry/pkg/logger"
	"github.com/gantry/gantry/pkg/types"
)

// CommandTask runs a shell command as the work behind a node. A non-zero exit
// is recorded as the task's failure; a failing verification command is
// recorded as a recoverable verification failure instead.
type CommandTask struct {
	config      types.NodeConfig
	projectRoot string
	logger      logger.Logger

	resources   []interfaces.ResourceLock
	projectLock interfaces.ResourceLock
	project     string

	mu          sync.RWMutex
	failure     error
	lastRunTime time.Duration
	totalRuns   int
	successRuns int
}

// NewCommandTask creates a task for the given node configuration
func NewCommandTask(config types.NodeConfig, projectRoot string, log logger.Logger) *CommandTask {
	var taskLogger logger.Logger
	if log != nil {
		taskLogger = log.WithNode(config.Name)
	}
	return &CommandTask{
		config:      config,
		projectRoot: projectRoot,
		logger:      taskLogger,
	}
}

// SetResources assigns the locks that must be held while the task runs
func (t *CommandTask) SetResources(resources []interfaces.ResourceLock) {
	t.resources = resources
}

// SetProjectLock assigns the project lock this task mutates
func (t *CommandTask) SetProjectLock(project string, lock interfaces.ResourceLock) {
	t.project = project
	t.projectLock = lock
}

// Name identifies the task
func (t *CommandTask) Name() string {
	return t.config.Name
}

// Execute runs the command and, when configured, the verification command.
// The returned error reports faults in the machinery only; command failures
// are recorded and surfaced via NodeFailure.
func (t *CommandTask) Execute(ctx context.Context) error {
	startTime := time.Now()
	defer func() {
		t.mu.Lock()
		t.lastRunTime = time.Since(startTime)
		t.totalRuns++
		t.mu.Unlock()
	}()

	t.setFailure(nil)

	if t.logger != nil {
		t.logger.Info(fmt.Sprintf("Running: %s", t.commandLine()))
	}

	output, err := t.runCommand(ctx, t.commandLine())
	if err != nil {
		failure := fmt.Errorf("command failed: %w\n%s", err, output)
		t.setFailure(failure)
		if t.logger != nil {
			t.logger.Error("Command failed",
				logger.WithField("error", err),
				logger.WithField("output", string(output)))
		}
		return nil
	}

	if t.config.Verify != "" {
		if verifyOutput, verifyErr := t.runCommand(ctx, t.config.Verify); verifyErr != nil {
			failure := types.NewVerificationError(
				fmt.Sprintf("verification failed for %s:\n%s", t.config.Name, verifyOutput),
				verifyErr)
			t.setFailure(failure)
			if t.logger != nil {
				t.logger.Warn("Verification failed",
					logger.WithField("error", verifyErr),
					logger.WithField("output", string(verifyOutput)))
			}
			return nil
		}
	}

	t.mu.Lock()
	t.successRuns++
	t.mu.Unlock()

	if t.logger != nil {
		t.logger.Success(fmt.Sprintf("Completed in %s", time.Since(startTime).Round(time.Millisecond)))
	}
	return nil
}

// NodeFailure returns the failure from the most recent run, nil on success
func (t *CommandTask) NodeFailure() error {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.failure
}

// ResourcesToLock returns the locks that must be held while the task runs
func (t *CommandTask) ResourcesToLock() []interfaces.ResourceLock {
	return t.resources
}

// ProjectToLock returns the project lock the task mutates, or nil
func (t *CommandTask) ProjectToLock() interfaces.ResourceLock {
	return t.projectLock
}

// OwningProject returns the project this task belongs to, empty when none
func (t *CommandTask) OwningProject() string {
	return t.project
}

// LastRunTime returns the most recent run duration
func (t *CommandTask) LastRunTime() time.Duration {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.lastRunTime
}

// SuccessRate returns the fraction of runs that succeeded
func (t *CommandTask) SuccessRate() float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.totalRuns == 0 {
		return 1.0
	}
	return float64(t.successRuns) / float64(t.totalRuns)
}

func (t *CommandTask) setFailure(err error) {
	t.mu.Lock()
	t.failure = err
	t.mu.Unlock()
}

func (t *CommandTask) commandLine() string {
	if len(t.config.Args) == 0 {
		return t.config.Command
	}
	return t.config.Command + " " + strings.Join(t.config.Args, " ")
}

// runCommand executes a command line, collecting combined output
func (t *CommandTask) runCommand(ctx context.Context, command string) ([]byte, error) {
	cmd := t.createCommand(ctx, command)

	if t.config.WorkDir != "" {
		cmd.Dir = t.config.WorkDir
	} else {
		cmd.Dir = t.projectRoot
	}
	cmd.Env = os.Environ()

	var outputBuffer bytes.Buffer
	cmd.Stdout = &outputBuffer
	cmd.Stderr = &outputBuffer

	err := cmd.Run()
	return outputBuffer.Bytes(), err
}

// createCommand creates an exec.Cmd from a command string
func (t *CommandTask) createCommand(ctx context.Context, command string) *exec.Cmd {
	if strings.Contains(command, "&&") || strings.Contains(command, "||") ||
		strings.Contains(command, "|") || strings.Contains(command, ";") {
		// Complex command - use shell
		return exec.CommandContext(ctx, "sh", "-c", command)
	}
	parts := strings.Fields(command)
	if len(parts) > 0 {
		return exec.CommandContext(ctx, parts[0], parts[1:]...)
	}
	return exec.CommandContext(ctx, "sh", "-c", command)
}

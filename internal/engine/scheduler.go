// Package engine drives an execution plan to completion: it sweeps the graph
// for runnable nodes, dispatches their work to a bounded worker pool, and
// feeds completions back into the dependency-completeness propagation.
package engine

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/gantry/gantry/pkg/interfaces"
	"github.com/gantry/gantry/pkg/logger"
	"github.com/gantry/gantry/pkg/plan"
)

// Options configures a scheduler run
type Options struct {
	// Parallelism bounds the number of concurrently executing nodes.
	// Values below 1 are treated as 1.
	Parallelism int
	// FailFast aborts all remaining work after the first node failure instead
	// of running every node whose dependencies still allow it
	FailFast bool
}

// Scheduler executes the nodes of a plan respecting dependency, finalizer and
// ordinal constraints. All graph access happens on the coordinator goroutine;
// workers only run the node's work and report back.
type Scheduler struct {
	logger   logger.Logger
	notifier interfaces.PlanNotifier
	options  Options
}

// NewScheduler creates a scheduler with the given collaborators
func NewScheduler(log logger.Logger, deps interfaces.SchedulerDependencies, options Options) *Scheduler {
	if options.Parallelism < 1 {
		options.Parallelism = 1
	}
	return &Scheduler{
		logger:   log,
		notifier: deps.Notifier,
		options:  options,
	}
}

// nodeResult is what a worker reports back to the coordinator. engineErr is a
// fault in the execution machinery itself, not a failure of the work; work
// failures are read from the node after it finishes.
type nodeResult struct {
	node      *plan.Node
	engineErr error
}

// execution tracks the in-flight state of one scheduler run
type execution struct {
	scheduler *Scheduler
	plan      *plan.Plan
	group     *SafeGroup
	ctx       context.Context

	done     chan nodeResult
	inFlight int
	locks    map[*plan.Node][]interfaces.ResourceLock
	failed   bool
}

// Execute runs the plan to completion and returns the failures it collected.
// The plan must already have its dependencies resolved and its graph finalized.
func (s *Scheduler) Execute(ctx context.Context, p *plan.Plan) error {
	start := time.Now()
	s.notifyPlanStart(p.Name())

	group, ctx := NewSafeGroup(ctx, s.logger)
	ex := &execution{
		scheduler: s,
		plan:      p,
		group:     group,
		ctx:       ctx,
		done:      make(chan nodeResult, s.options.Parallelism),
		locks:     make(map[*plan.Node][]interfaces.ResourceLock),
	}

	err := ex.run()
	if waitErr := group.Wait(); err == nil {
		err = waitErr
	}
	if err != nil {
		s.notifyPlanFailure(p.Name(), err)
		return err
	}

	if failures := p.Failures(); len(failures) > 0 {
		err := fmt.Errorf("plan %s finished with %d failed node(s): %w", p.Name(), len(failures), failures[0])
		s.notifyPlanFailure(p.Name(), err)
		return err
	}

	s.notifyPlanSuccess(p.Name(), time.Since(start))
	s.logger.Success("Plan complete",
		logger.WithField("plan", p.Name()),
		logger.WithField("duration", time.Since(start).Round(time.Millisecond)))
	return nil
}

// run is the coordinator loop: sweep, dispatch, wait, repeat
func (ex *execution) run() error {
	for {
		progress := ex.sweep()
		progress = ex.dispatch() || progress

		if ex.plan.IsComplete() && ex.inFlight == 0 {
			return nil
		}

		if ex.inFlight == 0 {
			if !progress {
				// Nothing running, nothing became runnable: the remaining
				// nodes are waiting on each other
				err := fmt.Errorf("plan %s stalled: no node can make progress", ex.plan.Name())
				ex.abort()
				return err
			}
			continue
		}

		if progress {
			// Completions may have unblocked more work than the current
			// dispatch round could see; try again before blocking
			select {
			case result := <-ex.done:
				if err := ex.complete(result); err != nil {
					return err
				}
			default:
			}
			continue
		}

		select {
		case result := <-ex.done:
			if err := ex.complete(result); err != nil {
				return err
			}
		case <-ex.ctx.Done():
			ex.abort()
			ex.drain()
			return ex.ctx.Err()
		}
	}
}

// sweep recomputes dependency completeness for scheduled nodes and discards
// the ones whose dependencies completed unsuccessfully. Reports whether any
// node changed state.
func (ex *execution) sweep() bool {
	progress := false
	for _, n := range ex.plan.Nodes() {
		if !n.IsReady() || n.IsFiltered() {
			continue
		}
		if n.UpdateAllDependenciesComplete() {
			progress = true
		}
		if n.AllDependenciesComplete() && !n.AllDependenciesSuccessful() {
			ex.scheduler.logger.Debug("Discarding node, dependencies failed",
				logger.WithField("node", n.Name()))
			n.SkipExecution(nil)
			progress = true
		}
	}
	return progress
}

// dispatch starts as many runnable nodes as the parallelism bound allows.
// Priority nodes go first; within a class, creation order decides.
func (ex *execution) dispatch() bool {
	candidates := ex.runnableNodes()
	progress := false
	for _, n := range candidates {
		if ex.inFlight >= ex.scheduler.options.Parallelism {
			break
		}
		if !ex.acquireLocks(n) {
			// Defer to a later round; a completion will release the contended lock
			continue
		}
		ex.startNode(n)
		progress = true
	}
	return progress
}

// runnableNodes collects the nodes whose dependencies are complete and
// successful and whose soft constraints do not hold them back
func (ex *execution) runnableNodes() []*plan.Node {
	var runnable []*plan.Node
	for _, n := range ex.plan.Nodes() {
		if !n.IsReady() || n.IsFiltered() || !n.AllDependenciesComplete() || !n.AllDependenciesSuccessful() {
			continue
		}
		if ex.failed && ex.scheduler.options.FailFast {
			continue
		}
		if ex.softBlocked(n) {
			continue
		}
		runnable = append(runnable, n)
	}
	sort.SliceStable(runnable, func(i, j int) bool {
		if runnable[i].IsPriority() != runnable[j].IsPriority() {
			return runnable[i].IsPriority()
		}
		return runnable[i].Sequence() < runnable[j].Sequence()
	})
	return runnable
}

// softBlocked reports whether a should-run-after constraint defers the node:
// the constraint only applies when the other node is actually in the plan and
// has not finished yet
func (ex *execution) softBlocked(n *plan.Node) bool {
	for _, after := range n.SoftSuccessors() {
		if after.IsInKnownState() && !after.IsComplete() && !after.IsFiltered() {
			return true
		}
	}
	return false
}

// acquireLocks takes every lock the node's work needs, all or nothing
func (ex *execution) acquireLocks(n *plan.Node) bool {
	work := n.Work()
	if work == nil {
		return true
	}
	wanted := work.ResourcesToLock()
	if project := work.ProjectToLock(); project != nil {
		wanted = append(wanted, project)
	}
	var held []interfaces.ResourceLock
	for _, lock := range wanted {
		if !lock.TryLock() {
			for _, h := range held {
				h.Unlock()
			}
			ex.scheduler.logger.Debug("Deferring node, resource lock contended",
				logger.WithField("node", n.Name()),
				logger.WithField("lock", lock.DisplayName()))
			return false
		}
		held = append(held, lock)
	}
	ex.locks[n] = held
	return true
}

func (ex *execution) releaseLocks(n *plan.Node) {
	for _, lock := range ex.locks[n] {
		lock.Unlock()
	}
	delete(ex.locks, n)
}

// startNode transitions the node to Executing and hands its work to the pool.
// Synthetic nodes carry no work and complete immediately.
func (ex *execution) startNode(n *plan.Node) {
	n.StartExecution(func(node *plan.Node) {
		ex.scheduler.logger.Debug("Node started", logger.WithField("node", node.Name()))
	})

	if n.Work() == nil {
		n.FinishExecution(nil)
		return
	}

	ex.inFlight++
	node := n
	ex.group.Go(func() error {
		result := nodeResult{node: node}
		// The coordinator must always hear back, so a panicking work item is
		// converted to a machinery fault before SafeGroup ever sees it
		defer func() {
			if r := recover(); r != nil {
				result.engineErr = fmt.Errorf("worker panic: %v", r)
			}
			ex.done <- result
		}()
		result.engineErr = node.Work().Execute(ex.ctx)
		return nil
	})
}

// complete finishes a node on the coordinator goroutine after its worker
// reported back
func (ex *execution) complete(result nodeResult) error {
	ex.inFlight--
	n := result.node
	ex.releaseLocks(n)

	if result.engineErr != nil {
		// The machinery failed, not the work: the plan cannot be trusted anymore
		n.SetExecutionFailure(result.engineErr)
		n.FinishExecution(nil)
		ex.abort()
		ex.drain()
		return fmt.Errorf("executing %s: %w", n, result.engineErr)
	}

	n.FinishExecution(func(node *plan.Node) {
		if failure := node.NodeFailure(); failure != nil {
			ex.failed = true
			ex.scheduler.logger.Error("Node failed",
				logger.WithField("node", node.Name()),
				logger.WithField("error", failure))
			ex.scheduler.notifyNodeFailure(node.Name(), failure)
		} else {
			ex.scheduler.logger.Info("Node finished", logger.WithField("node", node.Name()))
		}
	})
	if ex.failed && ex.scheduler.options.FailFast {
		ex.abort()
	}
	return nil
}

// abort cancels every node that has not started yet
func (ex *execution) abort() {
	ex.plan.Abort(func(n *plan.Node) {
		ex.scheduler.logger.Debug("Node aborted", logger.WithField("node", n.Name()))
	})
}

// drain waits for every in-flight worker before returning control, so no
// worker outlives the run that started it
func (ex *execution) drain() {
	for ex.inFlight > 0 {
		result := <-ex.done
		ex.inFlight--
		ex.releaseLocks(result.node)
		if result.engineErr == nil {
			result.node.FinishExecution(nil)
		} else {
			result.node.SetExecutionFailure(result.engineErr)
			result.node.FinishExecution(nil)
		}
	}
}

func (s *Scheduler) notifyPlanStart(name string) {
	if s.notifier != nil {
		s.notifier.NotifyPlanStart(name)
	}
}

func (s *Scheduler) notifyPlanSuccess(name string, duration time.Duration) {
	if s.notifier != nil {
		s.notifier.NotifyPlanSuccess(name, duration)
	}
}

func (s *Scheduler) notifyPlanFailure(name string, err error) {
	if s.notifier != nil {
		s.notifier.NotifyPlanFailure(name, err)
	}
}

func (s *Scheduler) notifyNodeFailure(node string, err error) {
	if s.notifier != nil {
		s.notifier.NotifyNodeFailure(node, err)
	}
}

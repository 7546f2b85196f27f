// Package plan implements the work-scheduling core of the Gantry build engine:
// the node execution-state machine, dependency-completeness propagation, node
// grouping for finalizer and ordinal semantics, and the execution-plan
// container that scopes all plan-wide state.
//
// The plan is a shared, mutable graph drained by many worker goroutines. Node
// state transitions and the cached dependency-completeness check are
// synchronization points: callers must ensure that only one goroutine
// observes-and-mutates a given node's state at a time. The scheduler in
// internal/engine confines all graph access to its coordinator goroutine.
package plan

import (
	"fmt"

	"github.com/gantry/gantry/pkg/types"
)

// ExecutionState tracks where a node is in its lifecycle
type ExecutionState int

const (
	// NotScheduled means the node is not scheduled to run in any plan.
	// Nodes move back into this state when the plan is cancelled or aborted.
	NotScheduled ExecutionState = iota
	// ShouldRun means the node has been scheduled and should run if possible
	ShouldRun
	// Executing means the node is currently executing
	Executing
	// Executed means the node has been executed, and possibly failed, in some
	// plan (not necessarily the current one)
	Executed
	// FailedDependency means the node cannot execute because a dependency failed
	FailedDependency
)

// String returns a readable state name
func (s ExecutionState) String() string {
	switch s {
	case NotScheduled:
		return "NOT_SCHEDULED"
	case ShouldRun:
		return "SHOULD_RUN"
	case Executing:
		return "EXECUTING"
	case Executed:
		return "EXECUTED"
	case FailedDependency:
		return "FAILED_DEPENDENCY"
	default:
		return fmt.Sprintf("ExecutionState(%d)", int(s))
	}
}

// DependenciesState caches the result of the dependency-completeness scan
type DependenciesState int

const (
	// DependenciesNotComplete means at least one dependency may still run
	DependenciesNotComplete DependenciesState = iota
	// DependenciesCompleteAndSuccessful means every dependency completed and
	// the node may execute
	DependenciesCompleteAndSuccessful
	// DependenciesCompleteAndNotSuccessful means every dependency completed
	// but at least one blocks this node from executing
	DependenciesCompleteAndNotSuccessful
)

// assertState panics when a scheduling contract has been violated. An illegal
// transition indicates the scheduler invariant is already broken, so failing
// loudly beats absorbing it.
func assertState(cond bool, format string, args ...interface{}) {
	if !cond {
		panic("execution plan contract violated: " + fmt.Sprintf(format, args...))
	}
}

// Node is one vertex in the execution graph: some executable work plus its
// dependency edges and execution-state machine.
type Node struct {
	seq  uint64
	name string
	work WorkItem
	plan *Plan

	state                 ExecutionState
	dependenciesProcessed bool
	dependenciesState     DependenciesState
	executionFailure      error
	filtered              bool
	priority              bool

	group NodeGroup

	dependencySuccessors   *nodeSet
	dependencyPredecessors *nodeSet
	softSuccessors         *nodeSet
	finalizers             *nodeSet
	finalizingSuccessors   *nodeSet
	outcomeDependencies    map[*Node]struct{}

	ordinalRole OrdinalRole

	mutation *MutationInfo
}

// Name returns the node's display name
func (n *Node) Name() string {
	return n.name
}

// String implements fmt.Stringer
func (n *Node) String() string {
	return n.name
}

// Sequence returns the node's creation-sequence number, the total order used
// for deterministic iteration
func (n *Node) Sequence() uint64 {
	return n.seq
}

// Work returns the unit of work behind this node, nil for synthetic nodes
func (n *Node) Work() WorkItem {
	return n.work
}

// State returns the current execution state
func (n *Node) State() ExecutionState {
	return n.state
}

// Group returns the node's group
func (n *Node) Group() NodeGroup {
	return n.group
}

// SetGroup moves the node into a different group, keeping membership
// bookkeeping consistent on both sides
func (n *Node) SetGroup(group NodeGroup) {
	if n.group == group {
		return
	}
	n.group.RemoveMember(n)
	n.group = group
	n.group.AddMember(n)
}

// IsRequired reports whether the node is scheduled to run in the current plan
func (n *Node) IsRequired() bool {
	return n.state == ShouldRun
}

// IsDoNotIncludeInPlan reports whether the node should be left out of the
// current plan entirely
func (n *Node) IsDoNotIncludeInPlan() bool {
	return n.filtered || n.state == NotScheduled || n.IsCannotRunInAnyPlan()
}

// IsCannotRunInAnyPlan reports whether the node is terminal: once executed or
// failed by dependency it cannot run again until reset
func (n *Node) IsCannotRunInAnyPlan() bool {
	return n.state == Executed || n.state == FailedDependency
}

// IsReady reports whether this node is ready to execute. Does not consider
// the dependencies of the node.
func (n *Node) IsReady() bool {
	return n.state == ShouldRun
}

// IsCanCancel reports whether the node may be cancelled when the plan aborts
func (n *Node) IsCanCancel() bool {
	return true
}

// IsInKnownState reports whether the node has entered the current plan
func (n *Node) IsInKnownState() bool {
	return n.state != NotScheduled
}

// IsExecuting reports whether the node is currently executing
func (n *Node) IsExecuting() bool {
	return n.state == Executing
}

// IsComplete reports whether it is impossible for this node to run in the
// current plan. A node may be complete for several reasons: its work executed,
// it cannot run due to a failed dependency, it was never scheduled, or it was
// filtered out of the plan.
func (n *Node) IsComplete() bool {
	return n.state == Executed ||
		n.state == FailedDependency ||
		n.state == NotScheduled ||
		n.filtered
}

// IsSuccessful reports whether the node ran and succeeded, or was filtered
func (n *Node) IsSuccessful() bool {
	return n.filtered || (n.state == Executed && !n.IsFailed())
}

// IsVerificationFailure reports whether the node failed with a verification
// failure: the work ran but a check on its output failed
func (n *Node) IsVerificationFailure() bool {
	return n.NodeFailure() != nil && types.IsVerificationError(n.NodeFailure())
}

// IsFailed reports whether the node carries a work failure or an
// execution-engine failure
func (n *Node) IsFailed() bool {
	return n.NodeFailure() != nil || n.executionFailure != nil
}

// IsExecuted reports whether the node's work actually ran
func (n *Node) IsExecuted() bool {
	return n.state == Executed
}

// IsFiltered reports whether the node was excluded from the plan by selection
// criteria
func (n *Node) IsFiltered() bool {
	return n.filtered
}

// IsPriority reports whether this node should be executed as soon as its
// dependencies are ready, rather than at its default point in the plan.
// Use sparingly, and only for fast work.
func (n *Node) IsPriority() bool {
	return n.priority
}

// SetPriority marks the node for early dispatch
func (n *Node) SetPriority(priority bool) {
	n.priority = priority
}

// OrdinalRole returns the node's relationship to an ordinal barrier,
// RoleNone for ordinary nodes
func (n *Node) OrdinalRole() OrdinalRole {
	return n.ordinalRole
}

// NodeFailure returns any error produced by the unit of work itself, nil for
// synthetic nodes or successful work
func (n *Node) NodeFailure() error {
	if n.work == nil {
		return nil
	}
	return n.work.NodeFailure()
}

// StartExecution transitions the node to Executing and invokes the given
// action. Preconditions: all dependencies complete and successful.
func (n *Node) StartExecution(nodeStartAction func(*Node)) {
	assertState(n.AllDependenciesComplete() && n.AllDependenciesSuccessful(),
		"cannot start %s: dependencies not complete and successful", n)
	n.state = Executing
	if nodeStartAction != nil {
		nodeStartAction(n)
	}
}

// FinishExecution transitions the node to Executed and invokes the given
// completion action
func (n *Node) FinishExecution(completionAction func(*Node)) {
	assertState(n.state == Executing, "cannot finish %s in state %s", n, n.state)
	n.state = Executed
	if completionAction != nil {
		completionAction(n)
	}
}

// SkipExecution marks the node as unable to run because a dependency is
// unsatisfiable, then invokes the given completion action
func (n *Node) SkipExecution(completionAction func(*Node)) {
	assertState(n.state == ShouldRun, "cannot skip %s in state %s", n, n.state)
	n.state = FailedDependency
	if completionAction != nil {
		completionAction(n)
	}
}

// AbortExecution returns the node to NotScheduled when the whole plan is
// cancelled or aborted, then invokes the given completion action
func (n *Node) AbortExecution(completionAction func(*Node)) {
	assertState(!n.IsCannotRunInAnyPlan(), "cannot abort %s in state %s", n, n.state)
	n.state = NotScheduled
	if completionAction != nil {
		completionAction(n)
	}
}

// Require schedules the node to run in the current plan. No-op for terminal
// nodes.
func (n *Node) Require() {
	if n.IsCannotRunInAnyPlan() {
		return
	}
	if n.state != ShouldRun {
		// When the state changes to ShouldRun, the dependencies need to be
		// reprocessed since they also may be required now.
		n.dependenciesProcessed = false
		n.state = ShouldRun
	}
}

// Filtered marks this node as excluded from the current plan. The node will
// be considered complete and successful.
func (n *Node) Filtered() {
	if n.IsCannotRunInAnyPlan() {
		return
	}
	n.filtered = true
}

// Reset discards any plan-specific state for this node, so that it can
// potentially be added to another execution plan. No-op for terminal nodes.
func (n *Node) Reset() {
	if !n.IsCannotRunInAnyPlan() {
		n.filtered = false
		n.dependenciesProcessed = false
		n.state = NotScheduled
	}
}

// SetExecutionFailure records a fault in the scheduling machinery while
// processing this node. Always leads to the abortion of the plan.
func (n *Node) SetExecutionFailure(failure error) {
	assertState(n.state == Executing, "cannot record execution failure for %s in state %s", n, n.state)
	n.executionFailure = failure
}

// ExecutionFailure returns any error that happened in the execution engine
// while processing this node, as opposed to a failure of the work itself
func (n *Node) ExecutionFailure() error {
	return n.executionFailure
}

// DependencyPredecessors returns the nodes that depend on this node, in
// creation order
func (n *Node) DependencyPredecessors() []*Node {
	return n.dependencyPredecessors.Ordered()
}

// DependencySuccessors returns the nodes this node depends on, in creation
// order
func (n *Node) DependencySuccessors() []*Node {
	return n.dependencySuccessors.Ordered()
}

// DependencySuccessorsInReverseOrder returns the dependency successors in
// descending creation order
func (n *Node) DependencySuccessorsInReverseOrder() []*Node {
	return n.dependencySuccessors.ReverseOrdered()
}

// AddDependencySuccessor adds a wiring dependency: this node consumes the
// given node's output, so it cannot run before it completes. A verification
// failure in the successor does not block this node.
func (n *Node) AddDependencySuccessor(toNode *Node) {
	n.dependencySuccessors.Add(toNode)
	toNode.dependencyPredecessors.Add(n)
}

// AddOutcomeSuccessor adds an outcome dependency: any failure in the given
// node, verification or otherwise, blocks this node.
func (n *Node) AddOutcomeSuccessor(toNode *Node) {
	n.AddDependencySuccessor(toNode)
	if n.outcomeDependencies == nil {
		n.outcomeDependencies = make(map[*Node]struct{})
	}
	n.outcomeDependencies[toNode] = struct{}{}
}

// AddSoftSuccessor adds a should-run-after constraint: this node runs after
// the given node when both are scheduled, but the relationship is removable
// and carries no failure propagation.
func (n *Node) AddSoftSuccessor(toNode *Node) {
	n.softSuccessors.Add(toNode)
}

// SoftSuccessors returns the removable ordering constraints of this node
func (n *Node) SoftSuccessors() []*Node {
	return n.softSuccessors.Ordered()
}

// DependsOnOutcome reports whether the relationship to the given successor
// treats its outcome as load-bearing
func (n *Node) DependsOnOutcome(dependency *Node) bool {
	_, ok := n.outcomeDependencies[dependency]
	return ok
}

// doCheckDependenciesComplete scans the successor set and group-level
// constraints
func (n *Node) doCheckDependenciesComplete() bool {
	n.debugLog("Checking if all dependencies are complete for %s", n)
	for _, dependency := range n.dependencySuccessors.Ordered() {
		if !dependency.IsComplete() {
			n.debugLog("Dependency %s for %s not yet completed", dependency, n)
			return false
		}
	}
	// Direct edges are complete; group-level ordering may still block the node
	return n.group.IsSuccessorsCompleteFor(n)
}

// UpdateAllDependenciesComplete recomputes the cached dependencies state when
// still not complete, and reports whether the state changed in this check.
// Callers invalidate exactly once per relevant state change, not per read.
func (n *Node) UpdateAllDependenciesComplete() bool {
	if n.dependenciesState == DependenciesNotComplete {
		n.ForceAllDependenciesCompleteUpdate()
		return n.dependenciesState != DependenciesNotComplete
	}
	return false
}

// ForceAllDependenciesCompleteUpdate unconditionally recomputes the cached
// dependencies state
func (n *Node) ForceAllDependenciesCompleteUpdate() {
	if n.doCheckDependenciesComplete() {
		successful := n.group.IsSuccessorsSuccessfulFor(n)
		if successful {
			for _, dependency := range n.dependencySuccessors.Ordered() {
				if !n.ShouldContinueExecution(dependency) {
					successful = false
					break
				}
			}
		}
		if successful {
			n.dependenciesState = DependenciesCompleteAndSuccessful
		} else {
			n.dependenciesState = DependenciesCompleteAndNotSuccessful
		}
	} else {
		n.dependenciesState = DependenciesNotComplete
	}
}

// AllDependenciesComplete reports whether this node is ready to execute or
// discard (eg because a dependency has failed)
func (n *Node) AllDependenciesComplete() bool {
	return n.state == ShouldRun && n.dependenciesState != DependenciesNotComplete
}

// AllDependenciesSuccessful reports whether this node can execute, as opposed
// to being discarded. Only meaningful when AllDependenciesComplete is true.
func (n *Node) AllDependenciesSuccessful() bool {
	return n.dependenciesState == DependenciesCompleteAndSuccessful
}

// ShouldContinueExecution reports whether this node may continue past the
// given successor: the successor was successful, or it failed with a
// recoverable verification failure and the relationship is wiring rather than
// an explicit outcome dependency.
func (n *Node) ShouldContinueExecution(dependency *Node) bool {
	return dependency.IsSuccessful() || (dependency.IsVerificationFailure() && !n.DependsOnOutcome(dependency))
}

// AllPredecessors returns every node that propagation must visit when this
// node's state changes
func (n *Node) AllPredecessors() []*Node {
	return n.DependencyPredecessors()
}

// ResolveDependencies asks the resolver to turn the work item's declared
// dependencies into successor edges
func (n *Node) ResolveDependencies(resolver DependencyResolver) error {
	if n.work == nil {
		return nil
	}
	resolved, err := resolver.ResolveDependenciesFor(n.work)
	if err != nil {
		return fmt.Errorf("resolving dependencies for %s: %w", n, err)
	}
	for _, dep := range resolved.Wiring {
		n.AddDependencySuccessor(dep)
	}
	for _, dep := range resolved.Outcome {
		n.AddOutcomeSuccessor(dep)
	}
	for _, dep := range resolved.Soft {
		n.AddSoftSuccessor(dep)
	}
	return nil
}

// DependenciesProcessed reports whether successor edges have been computed
// for the current plan
func (n *Node) DependenciesProcessed() bool {
	return n.dependenciesProcessed
}

// MarkDependenciesProcessed records that successor edges are up to date
func (n *Node) MarkDependenciesProcessed() {
	n.dependenciesProcessed = true
}

// AllSuccessors returns every ordering successor, hard and soft
func (n *Node) AllSuccessors() []*Node {
	all := newNodeSet()
	for _, s := range n.dependencySuccessors.Ordered() {
		all.Add(s)
	}
	for _, s := range n.softSuccessors.Ordered() {
		all.Add(s)
	}
	return all.Ordered()
}

// HardSuccessors returns the nodes with a non-removable relationship to this
// node. Soft run-after constraints are not hard successors.
func (n *Node) HardSuccessors() []*Node {
	return n.dependencySuccessors.Ordered()
}

// AllSuccessorsInReverseOrder returns every ordering successor in descending
// creation order
func (n *Node) AllSuccessorsInReverseOrder() []*Node {
	all := newNodeSet()
	for _, s := range n.dependencySuccessors.Ordered() {
		all.Add(s)
	}
	for _, s := range n.softSuccessors.Ordered() {
		all.Add(s)
	}
	return all.ReverseOrdered()
}

// HasHardSuccessor reports whether the given node is a non-removable
// successor of this node
func (n *Node) HasHardSuccessor(successor *Node) bool {
	return n.dependencySuccessors.Contains(successor)
}

// Finalizers returns the nodes that finalize this node
func (n *Node) Finalizers() []*Node {
	return n.finalizers.Ordered()
}

// AddFinalizer records that the given node finalizes this node, and registers
// this node among the finalizer's finalizing successors
func (n *Node) AddFinalizer(finalizer *Node) {
	n.finalizers.Add(finalizer)
	finalizer.AddFinalizingSuccessors(n)
}

// FinalizingSuccessors returns the nodes this node finalizes
func (n *Node) FinalizingSuccessors() []*Node {
	return n.finalizingSuccessors.Ordered()
}

// FinalizingSuccessorsInReverseOrder returns the finalized nodes in
// descending creation order
func (n *Node) FinalizingSuccessorsInReverseOrder() []*Node {
	return n.finalizingSuccessors.ReverseOrdered()
}

// AddFinalizingSuccessors records nodes that this node finalizes
func (n *Node) AddFinalizingSuccessors(finalizingSuccessors ...*Node) {
	for _, s := range finalizingSuccessors {
		n.finalizingSuccessors.Add(s)
	}
}

// MutationInfo returns the record of resources this node reads and writes
func (n *Node) MutationInfo() *MutationInfo {
	return n.mutation
}

func (n *Node) debugLog(format string, args ...interface{}) {
	if n.plan != nil && n.plan.logger != nil {
		n.plan.logger.Debug(fmt.Sprintf(format, args...))
	}
}

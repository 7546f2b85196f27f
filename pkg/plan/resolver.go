package plan

import (
	"context"

	"github.com/gantry/gantry/pkg/interfaces"
)

// WorkItem is the concrete unit of work behind a node. The scheduling core
// never interprets the work; it only schedules it and reads its failure
// state.
type WorkItem interface {
	// Name identifies the work item
	Name() string
	// Execute runs the work. The returned error is the dispatch result; the
	// work failure consulted for propagation is NodeFailure.
	Execute(ctx context.Context) error
	// NodeFailure returns any error produced by the work itself, such as a
	// command exiting non-zero. Distinct from an execution-engine failure.
	NodeFailure() error
	// ResourcesToLock returns the locks that must be held while the work runs
	ResourcesToLock() []interfaces.ResourceLock
	// ProjectToLock returns the project lock the work mutates, or nil
	ProjectToLock() interfaces.ResourceLock
	// OwningProject returns the project this work belongs to, empty when none
	OwningProject() string
}

// ResolvedDependencies partitions a work item's declared dependencies by edge
// kind. The split is the explicit policy table for failure propagation: only
// Outcome edges treat a successor's failure as load-bearing when the failure
// is a recoverable verification failure.
type ResolvedDependencies struct {
	// Wiring edges consume the successor's output as input
	Wiring []*Node
	// Outcome edges depend on the successor having succeeded outright
	Outcome []*Node
	// Soft edges order this node after the successor only when both are
	// scheduled
	Soft []*Node
}

// DependencyResolver turns a work item's declared dependency set into graph
// nodes. The planner supplies an implementation that knows how names map to
// nodes in the current plan.
type DependencyResolver interface {
	ResolveDependenciesFor(item WorkItem) (ResolvedDependencies, error)
}

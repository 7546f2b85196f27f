package plan

import (
	"github.com/google/uuid"

	"github.com/gantry/gantry/pkg/logger"
)

// Plan is the explicit execution-plan context object scoping all plan-wide
// scheduling state: node registration, entry points, ordinal barrier caches.
// Plans are never process-wide singletons, so nested or included builds can
// each carry their own.
type Plan struct {
	id     string
	name   string
	logger logger.Logger

	nextSeq          uint64
	nodes            *nodeSet
	entryNodes       *nodeSet
	ordinals         *OrdinalNodeAccess
	nextEntryOrdinal int
}

// NewPlan creates an empty execution plan
func NewPlan(name string, log logger.Logger) *Plan {
	p := &Plan{
		id:         uuid.New().String(),
		name:       name,
		logger:     log,
		nodes:      newNodeSet(),
		entryNodes: newNodeSet(),
	}
	p.ordinals = newOrdinalNodeAccess(p)
	return p
}

// ID returns the plan's unique identifier
func (p *Plan) ID() string {
	return p.id
}

// Name returns the plan's display name
func (p *Plan) Name() string {
	return p.name
}

// Ordinals returns the factory for ordinal barrier nodes
func (p *Plan) Ordinals() *OrdinalNodeAccess {
	return p.ordinals
}

// newNode creates and registers a node, assigning its creation-sequence
// number. The sequence gives the total, stable node ordering used everywhere
// iteration order matters.
func (p *Plan) newNode(name string, work WorkItem) *Node {
	p.nextSeq++
	n := &Node{
		seq:                    p.nextSeq,
		name:                   name,
		work:                   work,
		plan:                   p,
		group:                  DefaultGroup,
		dependencySuccessors:   newNodeSet(),
		dependencyPredecessors: newNodeSet(),
		softSuccessors:         newNodeSet(),
		finalizers:             newNodeSet(),
		finalizingSuccessors:   newNodeSet(),
	}
	n.mutation = newMutationInfo(n)
	p.nodes.Add(n)
	return n
}

// NewNode creates a node for the given unit of work and registers it with
// the plan
func (p *Plan) NewNode(name string, work WorkItem) *Node {
	return p.newNode(name, work)
}

// Nodes returns every registered node in creation order
func (p *Plan) Nodes() []*Node {
	return p.nodes.Ordered()
}

// EntryNodes returns the explicitly requested nodes in creation order
func (p *Plan) EntryNodes() []*Node {
	return p.entryNodes.Ordered()
}

// AddEntryNodes schedules the given nodes as explicitly requested work. Each
// call forms one entry batch placed at the next ordinal position, so batches
// retain their relative destroy/produce ordering.
func (p *Plan) AddEntryNodes(nodes ...*Node) {
	group := p.ordinals.Group(p.nextEntryOrdinal)
	p.nextEntryOrdinal++
	for _, n := range nodes {
		if n.group == DefaultGroup {
			n.SetGroup(group)
		}
		p.entryNodes.Add(n)
		n.Require()
	}
}

// MarkDestroyer tags the node as destroying resources at the given ordinal:
// the destroyer barrier waits for the node, and the node waits for every
// producer barrier at a smaller ordinal.
func (p *Plan) MarkDestroyer(node *Node, ordinal *OrdinalGroup) {
	node.ordinalRole = RoleDestroyer
	if node.group == DefaultGroup {
		node.SetGroup(ordinal)
	}
	barrier := p.ordinals.DestroyerLocationNode(ordinal)
	barrier.AddDependencySuccessor(node)
	for _, producer := range p.ordinals.PrecedingProducerLocationNodes(ordinal.Ordinal()) {
		node.AddDependencySuccessor(producer)
	}
}

// MarkProducer tags the node as producing outputs at the given ordinal:
// the producer barrier waits for the node, and the node waits for every
// destroyer barrier at a smaller ordinal.
func (p *Plan) MarkProducer(node *Node, ordinal *OrdinalGroup) {
	node.ordinalRole = RoleProducer
	if node.group == DefaultGroup {
		node.SetGroup(ordinal)
	}
	barrier := p.ordinals.ProducerLocationNode(ordinal)
	barrier.AddDependencySuccessor(node)
	for _, destroyer := range p.ordinals.PrecedingDestroyerLocationNodes(ordinal.Ordinal()) {
		node.AddDependencySuccessor(destroyer)
	}
}

// AddFinalizer wires the finalizer node to run once any of the finalized
// nodes has executed. The finalizer moves into its own group; the finalized
// nodes keep theirs, since they must be free to run before the finalizer.
// Nodes reachable from the finalizer join the group during dependency
// resolution.
func (p *Plan) AddFinalizer(finalizer *Node, finalized ...*Node) *FinalizerGroup {
	group := NewFinalizerGroup(finalizer, finalizer.Group())
	finalizer.SetGroup(group)
	for _, node := range finalized {
		node.AddFinalizer(finalizer)
	}
	return group
}

// propagateGroups pushes group membership down the hard edges: dependencies
// of entry-reachable nodes inherit the ordinal cause, and nodes reachable
// from a finalizer join its group so they wait for the group to fire and are
// discarded when it never does. A node reachable both ways carries a
// composite of the causes. Reports whether any membership changed.
func (p *Plan) propagateGroups() bool {
	changed := false
	for _, n := range p.nodes.Ordered() {
		if !n.IsRequired() {
			continue
		}
		group := n.Group()
		for _, successor := range n.DependencySuccessors() {
			if ordinal := group.AsOrdinal(); ordinal != nil && group.IsReachableFromEntryPoint() {
				if p.inheritOrdinal(successor, ordinal) {
					changed = true
				}
			}
			for _, finalizerGroup := range group.FinalizerGroups() {
				if p.spliceIntoFinalizerGroup(successor, finalizerGroup) {
					changed = true
				}
			}
		}
	}
	return changed
}

// inheritOrdinal records that the node is needed by entry-reachable work at
// the given ordinal
func (p *Plan) inheritOrdinal(node *Node, ordinal *OrdinalGroup) bool {
	current := node.Group()
	switch {
	case current == DefaultGroup:
		node.SetGroup(ordinal)
		return true
	case current.IsReachableFromEntryPoint():
		return false
	case len(current.FinalizerGroups()) > 0:
		// Previously only reachable through finalizers; the entry-point cause
		// lifts the group-level gate for the node
		groups := current.FinalizerGroups()
		for _, finalizerGroup := range groups {
			finalizerGroup.MaybeInheritFrom(ordinal)
		}
		node.SetGroup(NewCompositeNodeGroup(ordinal, groups))
		return true
	}
	return false
}

// spliceIntoFinalizerGroup moves a node reachable from a finalizer into the
// finalizer's group, combining with whatever group currently explains the
// node's reachability. Finalized nodes never join: they must be able to run
// before the group fires.
func (p *Plan) spliceIntoFinalizerGroup(node *Node, group *FinalizerGroup) bool {
	for _, finalized := range group.FinalizedNodes() {
		if finalized == node {
			return false
		}
	}
	current := node.Group()
	for _, existing := range current.FinalizerGroups() {
		if existing == group {
			return false
		}
	}
	switch {
	case current == DefaultGroup:
		node.SetGroup(group)
	case current.AsFinalizer() != nil:
		group.MaybeInheritFrom(current)
		node.SetGroup(NewCompositeNodeGroup(nil, []*FinalizerGroup{current.AsFinalizer(), group}))
	case len(current.FinalizerGroups()) > 0:
		group.MaybeInheritFrom(current)
		combined := append([]*FinalizerGroup{}, current.FinalizerGroups()...)
		combined = append(combined, group)
		node.SetGroup(NewCompositeNodeGroup(current.AsOrdinal(), combined))
	case current.AsOrdinal() != nil:
		// Reachable from an entry point as well: keep the entry-point cause
		// alongside the finalizer cause, and let the finalizer inherit the
		// higher ordinal barrier.
		group.MaybeInheritFrom(current)
		node.SetGroup(NewCompositeNodeGroup(current.AsOrdinal(), []*FinalizerGroup{group}))
	default:
		return false
	}
	return true
}

// ResolveDependencies computes successor edges for every required node,
// repeating until the graph reaches a fixpoint: resolving one node may pull
// in dependencies that themselves need resolving, and group membership flows
// down the edges as they appear.
func (p *Plan) ResolveDependencies(resolver DependencyResolver) error {
	for {
		progress := false
		for _, n := range p.nodes.Ordered() {
			if !n.IsRequired() || n.DependenciesProcessed() {
				continue
			}
			if err := n.ResolveDependencies(resolver); err != nil {
				return err
			}
			n.MarkDependenciesProcessed()
			// Soft constraints never pull work into the plan, only hard edges do
			for _, successor := range n.DependencySuccessors() {
				successor.Require()
			}
			// Scheduling a node schedules its finalizers along with it
			for _, finalizer := range n.Finalizers() {
				finalizer.Require()
			}
			progress = true
		}
		if p.propagateGroups() {
			progress = true
		}
		if !progress {
			return nil
		}
	}
}

// FinalizeGraph wires the ordinal barrier relationships. Called once after
// all ordinals are known, before scheduling begins.
func (p *Plan) FinalizeGraph() {
	p.ordinals.CreateInterNodeRelationships()
}

// Abort returns every cancellable, non-terminal node to NotScheduled. Used
// when the plan is torn down due to a fatal failure elsewhere.
func (p *Plan) Abort(completionAction func(*Node)) {
	for _, n := range p.nodes.Ordered() {
		if !n.IsCannotRunInAnyPlan() && n.IsCanCancel() && n.IsInKnownState() && !n.IsExecuting() {
			n.AbortExecution(completionAction)
		}
	}
}

// Reset discards plan-specific state on every node so the graph can be
// reused by a later plan
func (p *Plan) Reset() {
	for _, n := range p.nodes.Ordered() {
		n.Reset()
	}
}

// IsComplete reports whether no node can run anymore in this plan
func (p *Plan) IsComplete() bool {
	for _, n := range p.nodes.Ordered() {
		if !n.IsComplete() {
			return false
		}
	}
	return true
}

// Failures collects the failures recorded across the plan: work failures and
// execution-engine failures
func (p *Plan) Failures() []error {
	var failures []error
	for _, n := range p.nodes.Ordered() {
		if err := n.NodeFailure(); err != nil {
			failures = append(failures, err)
		}
		if err := n.ExecutionFailure(); err != nil {
			failures = append(failures, err)
		}
	}
	return failures
}

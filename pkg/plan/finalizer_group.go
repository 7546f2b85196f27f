package plan

import "fmt"

// FinalizerGroup is the set of nodes reachable from a particular finalizer
// node. Members are blocked from completing until the group fires: the group
// becomes reachable from an entry point through some other path, or at least
// one finalized node actually executes.
type FinalizerGroup struct {
	node     *Node
	delegate NodeGroup
	members  *nodeSet
	ordinal  *OrdinalGroup
}

// NewFinalizerGroup creates the group for the given finalizer node. The
// delegate is the group the finalizer belonged to before, consulted when all
// finalized nodes completed without executing (chained finalizers).
func NewFinalizerGroup(node *Node, delegate NodeGroup) *FinalizerGroup {
	g := &FinalizerGroup{
		node:     node,
		delegate: delegate,
		members:  newNodeSet(),
		ordinal:  delegate.AsOrdinal(),
	}
	g.members.Add(node)
	return g
}

// String implements fmt.Stringer
func (g *FinalizerGroup) String() string {
	return fmt.Sprintf("finalizer in %s", g.ordinal)
}

// Node returns the finalizer node itself
func (g *FinalizerGroup) Node() *Node {
	return g.node
}

// SetDelegate replaces the upstream group, re-homing all members
func (g *FinalizerGroup) SetDelegate(delegate NodeGroup) {
	for _, member := range g.members.Ordered() {
		g.delegate.RemoveMember(member)
	}
	g.delegate = delegate
	for _, member := range g.members.Ordered() {
		delegate.AddMember(member)
	}
}

// FinalizedNodes returns the nodes the finalizer runs after
func (g *FinalizerGroup) FinalizedNodes() []*Node {
	return g.node.FinalizingSuccessors()
}

// AsOrdinal returns the inherited ordinal group, nil when the group has never
// been associated with an ordinal barrier
func (g *FinalizerGroup) AsOrdinal() *OrdinalGroup {
	return g.ordinal
}

// IsReachableFromEntryPoint delegates to the upstream group
func (g *FinalizerGroup) IsReachableFromEntryPoint() bool {
	return g.delegate.IsReachableFromEntryPoint()
}

// AsFinalizer returns the group itself
func (g *FinalizerGroup) AsFinalizer() *FinalizerGroup {
	return g
}

// Successors returns the group-level successors: the finalized nodes
func (g *FinalizerGroup) Successors() []*Node {
	return g.node.FinalizingSuccessors()
}

// SuccessorsInReverseOrder returns the finalized nodes in descending creation
// order
func (g *FinalizerGroup) SuccessorsInReverseOrder() []*Node {
	return g.node.FinalizingSuccessorsInReverseOrder()
}

// MaybeInheritFrom raises this group's ordinal to the given group's ordinal
// when it is higher. The ordinal only ever increases, so a finalizer never
// executes before the latest barrier it has been associated with.
func (g *FinalizerGroup) MaybeInheritFrom(fromGroup NodeGroup) {
	ordinal := fromGroup.AsOrdinal()
	if ordinal != nil && (g.ordinal == nil || g.ordinal.Ordinal() < ordinal.Ordinal()) {
		g.ordinal = ordinal
	}
}

// FinalizerGroups returns the group itself as the single contributing cause
func (g *FinalizerGroup) FinalizerGroups() []*FinalizerGroup {
	return []*FinalizerGroup{g}
}

// AddMember records a node joining the group and its delegate
func (g *FinalizerGroup) AddMember(node *Node) {
	g.members.Add(node)
	g.delegate.AddMember(node)
}

// RemoveMember records a node leaving the group and its delegate
func (g *FinalizerGroup) RemoveMember(node *Node) {
	g.members.Remove(node)
	g.delegate.RemoveMember(node)
}

// VisitAllMembers applies the visitor to every member
func (g *FinalizerGroup) VisitAllMembers(visitor func(*Node)) {
	for _, member := range g.members.Ordered() {
		visitor(member)
	}
}

// IsSuccessorsCompleteFor reports whether the given member may be considered
// done for the purposes of its dependents
func (g *FinalizerGroup) IsSuccessorsCompleteFor(node *Node) bool {
	// If this node is reachable from an entry point and is not the finalizer
	// itself, then it can start at any time
	if g.delegate.IsReachableFromEntryPoint() && node != g.node {
		return true
	}

	// Otherwise, wait for all finalized nodes to complete
	anyExecuted := false
	for _, finalized := range g.FinalizedNodes() {
		if !finalized.IsComplete() {
			return false
		}
		anyExecuted = anyExecuted || finalized.IsExecuted()
	}
	if anyExecuted {
		return true
	}

	// All finalized nodes are complete but none executed, so wait for
	// upstream finalizers
	return g.delegate.IsSuccessorsCompleteFor(node)
}

// IsSuccessorsSuccessfulFor reports whether the given member may run at all
func (g *FinalizerGroup) IsSuccessorsSuccessfulFor(node *Node) bool {
	// If this node is reachable from an entry point, it should run even if
	// none of the finalized nodes have executed
	if g.delegate.IsReachableFromEntryPoint() {
		return true
	}

	// Otherwise, this node can run if any finalized node has executed
	for _, finalized := range g.FinalizedNodes() {
		if finalized.IsExecuted() {
			return true
		}
	}
	return len(g.delegate.FinalizerGroups()) > 0 && g.delegate.IsSuccessorsSuccessfulFor(node)
}

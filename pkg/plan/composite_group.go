package plan

// CompositeNodeGroup represents a node that is reachable from more than one
// root: at least two finalizer chains, or an entry point plus finalizers. The
// node only needs one contributing cause to justify running, so readiness is
// an OR across the contained groups.
type CompositeNodeGroup struct {
	// ordinal is non-nil only when the members are also reachable from an
	// entry point
	ordinal *OrdinalGroup
	groups  []*FinalizerGroup
}

// NewCompositeNodeGroup aggregates the contributing causes for a node
// reachable from several roots. Single-cause nodes use FinalizerGroup
// directly.
func NewCompositeNodeGroup(ordinal *OrdinalGroup, groups []*FinalizerGroup) *CompositeNodeGroup {
	assertState(len(groups) >= 2 || (ordinal != nil && len(groups) >= 1),
		"composite group needs at least two contributing causes, got ordinal=%v and %d finalizer groups", ordinal, len(groups))
	return &CompositeNodeGroup{ordinal: ordinal, groups: groups}
}

// AsOrdinal returns the ordinal component, nil when the members are reachable
// only through finalizers
func (g *CompositeNodeGroup) AsOrdinal() *OrdinalGroup {
	return g.ordinal
}

// AsFinalizer returns nil: the composite is not itself a finalizer group
func (g *CompositeNodeGroup) AsFinalizer() *FinalizerGroup {
	return nil
}

// IsReachableFromEntryPoint reports whether the members are reachable from
// explicitly requested work
func (g *CompositeNodeGroup) IsReachableFromEntryPoint() bool {
	return g.ordinal != nil
}

// IsSuccessorsCompleteFor reports whether any contributing cause considers
// the member done
func (g *CompositeNodeGroup) IsSuccessorsCompleteFor(node *Node) bool {
	if g.IsReachableFromEntryPoint() {
		return true
	}
	for _, fg := range g.groups {
		if fg.IsSuccessorsCompleteFor(node) {
			return true
		}
	}
	return false
}

// IsSuccessorsSuccessfulFor reports whether any contributing cause lets the
// member run
func (g *CompositeNodeGroup) IsSuccessorsSuccessfulFor(node *Node) bool {
	if g.IsReachableFromEntryPoint() {
		return true
	}
	for _, fg := range g.groups {
		if fg.IsSuccessorsSuccessfulFor(node) {
			return true
		}
	}
	return false
}

// AddMember fans membership out to every contained finalizer group so the
// bookkeeping stays consistent when group assignment changes during planning
func (g *CompositeNodeGroup) AddMember(node *Node) {
	for _, fg := range g.groups {
		fg.AddMember(node)
	}
}

// RemoveMember fans removal out to every contained finalizer group
func (g *CompositeNodeGroup) RemoveMember(node *Node) {
	for _, fg := range g.groups {
		fg.RemoveMember(node)
	}
}

// FinalizerGroups returns the contained finalizer groups
func (g *CompositeNodeGroup) FinalizerGroups() []*FinalizerGroup {
	return g.groups
}

// String implements fmt.Stringer
func (g *CompositeNodeGroup) String() string {
	return "composite group"
}

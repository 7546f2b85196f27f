package plan

// NodeGroup encodes why a node's successors might not yet be complete enough
// for the node to run, even when their own state machines say otherwise.
// Every node belongs to exactly one group at a time.
type NodeGroup interface {
	// AsOrdinal returns the ordinal group this group carries, or nil
	AsOrdinal() *OrdinalGroup
	// AsFinalizer returns this group as a finalizer group, or nil
	AsFinalizer() *FinalizerGroup
	// IsReachableFromEntryPoint reports whether the group's members are
	// reachable from the set of nodes the caller explicitly requested
	IsReachableFromEntryPoint() bool
	// IsSuccessorsCompleteFor reports whether the given member may be
	// considered done for the purposes of its dependents
	IsSuccessorsCompleteFor(node *Node) bool
	// IsSuccessorsSuccessfulFor reports whether the given member may run at
	// all given group-level semantics
	IsSuccessorsSuccessfulFor(node *Node) bool
	// AddMember records a node joining the group
	AddMember(node *Node)
	// RemoveMember records a node leaving the group
	RemoveMember(node *Node)
	// FinalizerGroups returns the finalizer groups that can make the group's
	// members runnable, empty when finalizers are not involved
	FinalizerGroups() []*FinalizerGroup
	// String identifies the group in logs
	String() string
}

// DefaultGroup is the group for nodes that have not been placed anywhere yet.
// It imposes no group-level ordering, and its members are not reachable from
// an entry point: entry nodes always move into an ordinal group when they are
// requested.
var DefaultGroup NodeGroup = defaultGroup{}

type defaultGroup struct{}

func (defaultGroup) AsOrdinal() *OrdinalGroup              { return nil }
func (defaultGroup) AsFinalizer() *FinalizerGroup          { return nil }
func (defaultGroup) IsReachableFromEntryPoint() bool       { return false }
func (defaultGroup) IsSuccessorsCompleteFor(*Node) bool    { return true }
func (defaultGroup) IsSuccessorsSuccessfulFor(*Node) bool  { return true }
func (defaultGroup) AddMember(*Node)                       {}
func (defaultGroup) RemoveMember(*Node)                    {}
func (defaultGroup) FinalizerGroups() []*FinalizerGroup    { return nil }
func (defaultGroup) String() string                        { return "default group" }

package plan

// MutationInfo records which resources a node reads and writes. The
// resource-lock layer consumes it when deciding what must be held during
// execution; the scheduling core only carries it.
type MutationInfo struct {
	node *Node

	outputPaths      []string
	destroyablePaths []string
	hasFileInputs    bool
	hasOutputs       bool
	hasLocalState    bool
	resolved         bool
}

func newMutationInfo(node *Node) *MutationInfo {
	return &MutationInfo{node: node}
}

// Node returns the owning node
func (m *MutationInfo) Node() *Node {
	return m.node
}

// AddOutputPath records a path this node produces
func (m *MutationInfo) AddOutputPath(path string) {
	m.outputPaths = append(m.outputPaths, path)
	m.hasOutputs = true
}

// AddDestroyablePath records a path this node destroys
func (m *MutationInfo) AddDestroyablePath(path string) {
	m.destroyablePaths = append(m.destroyablePaths, path)
}

// OutputPaths returns the paths this node produces
func (m *MutationInfo) OutputPaths() []string {
	return m.outputPaths
}

// DestroyablePaths returns the paths this node destroys
func (m *MutationInfo) DestroyablePaths() []string {
	return m.destroyablePaths
}

// SetHasFileInputs records that the node consumes files
func (m *MutationInfo) SetHasFileInputs() {
	m.hasFileInputs = true
}

// HasFileInputs reports whether the node consumes files
func (m *MutationInfo) HasFileInputs() bool {
	return m.hasFileInputs
}

// HasOutputs reports whether the node produces outputs
func (m *MutationInfo) HasOutputs() bool {
	return m.hasOutputs
}

// SetHasLocalState records that the node keeps local state between runs
func (m *MutationInfo) SetHasLocalState() {
	m.hasLocalState = true
}

// HasLocalState reports whether the node keeps local state
func (m *MutationInfo) HasLocalState() bool {
	return m.hasLocalState
}

// MarkResolved records that mutation discovery ran for this node
func (m *MutationInfo) MarkResolved() {
	m.resolved = true
}

// IsResolved reports whether mutation discovery ran
func (m *MutationInfo) IsResolved() bool {
	return m.resolved
}

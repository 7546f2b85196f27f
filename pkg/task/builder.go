package task

import (
	"fmt"

	"github.com/gantry/gantry/internal/engine"
	"github.com/gantry/gantry/pkg/interfaces"
	"github.com/gantry/gantry/pkg/logger"
	"github.com/gantry/gantry/pkg/plan"
	"github.com/gantry/gantry/pkg/types"
)

// GraphBuilder turns a plan configuration into a wired execution plan. It is
// also the dependency resolver for the nodes it creates: names in the
// configuration become graph edges during plan.ResolveDependencies.
type GraphBuilder struct {
	config      types.PlanConfig
	projectRoot string
	logger      logger.Logger

	locks *engine.LockRegistry
	nodes map[string]*plan.Node
	specs map[string]types.NodeConfig
}

// NewGraphBuilder creates a builder for the given configuration
func NewGraphBuilder(config types.PlanConfig, projectRoot string, log logger.Logger) *GraphBuilder {
	return &GraphBuilder{
		config:      config,
		projectRoot: projectRoot,
		logger:      log,
		locks:       engine.NewLockRegistry(),
		nodes:       make(map[string]*plan.Node),
		specs:       make(map[string]types.NodeConfig),
	}
}

// Build creates the plan: one node per configured unit of work, entry points,
// finalizer and ordinal wiring, and resolved dependency edges. When entry
// names are given only those nodes are requested and the rest of the graph is
// pulled in through hard dependencies; otherwise every enabled node that is
// not purely a finalizer becomes an entry point.
func (b *GraphBuilder) Build(entryNames ...string) (*plan.Plan, error) {
	p := plan.NewPlan(b.config.Name, b.logger)

	for _, spec := range b.config.Nodes {
		work := NewCommandTask(spec, b.projectRoot, b.logger)
		b.attachLocks(work, spec)
		node := p.NewNode(spec.Name, work)
		node.SetPriority(spec.Priority)
		b.nodes[spec.Name] = node
		b.specs[spec.Name] = spec
	}

	for _, spec := range b.config.Nodes {
		if !spec.IsEnabled() {
			b.nodes[spec.Name].Filtered()
		}
	}

	var entries []*plan.Node
	if len(entryNames) > 0 {
		for _, name := range entryNames {
			node, ok := b.nodes[name]
			if !ok {
				return nil, fmt.Errorf("unknown node %q", name)
			}
			entries = append(entries, node)
		}
	} else {
		for _, spec := range b.config.Nodes {
			if !spec.IsEnabled() {
				continue
			}
			// Finalizer nodes only run when something they finalize runs
			if len(spec.Finalizes) == 0 {
				entries = append(entries, b.nodes[spec.Name])
			}
		}
	}
	p.AddEntryNodes(entries...)

	for _, spec := range b.config.Nodes {
		if err := b.wireFinalizers(p, spec); err != nil {
			return nil, err
		}
		if err := b.wireOrdinal(p, spec); err != nil {
			return nil, err
		}
	}

	if err := p.ResolveDependencies(b); err != nil {
		return nil, err
	}
	p.FinalizeGraph()
	return p, nil
}

// ResolveDependenciesFor implements plan.DependencyResolver by looking up the
// names declared in the work item's configuration
func (b *GraphBuilder) ResolveDependenciesFor(item plan.WorkItem) (plan.ResolvedDependencies, error) {
	spec, ok := b.specs[item.Name()]
	if !ok {
		return plan.ResolvedDependencies{}, fmt.Errorf("unknown node %q", item.Name())
	}

	var resolved plan.ResolvedDependencies
	var err error
	if resolved.Wiring, err = b.lookup(spec.Name, spec.DependsOn); err != nil {
		return resolved, err
	}
	if resolved.Outcome, err = b.lookup(spec.Name, spec.OutcomeDependsOn); err != nil {
		return resolved, err
	}
	if resolved.Soft, err = b.lookup(spec.Name, spec.RunAfter); err != nil {
		return resolved, err
	}
	return resolved, nil
}

// Node returns the node created for the given name, nil when unknown
func (b *GraphBuilder) Node(name string) *plan.Node {
	return b.nodes[name]
}

func (b *GraphBuilder) lookup(owner string, names []string) ([]*plan.Node, error) {
	if len(names) == 0 {
		return nil, nil
	}
	nodes := make([]*plan.Node, 0, len(names))
	for _, name := range names {
		node, ok := b.nodes[name]
		if !ok {
			return nil, fmt.Errorf("node %q depends on unknown node %q", owner, name)
		}
		nodes = append(nodes, node)
	}
	return nodes, nil
}

func (b *GraphBuilder) wireFinalizers(p *plan.Plan, spec types.NodeConfig) error {
	if len(spec.Finalizes) == 0 {
		return nil
	}
	finalized, err := b.lookup(spec.Name, spec.Finalizes)
	if err != nil {
		return err
	}
	p.AddFinalizer(b.nodes[spec.Name], finalized...)
	return nil
}

func (b *GraphBuilder) wireOrdinal(p *plan.Plan, spec types.NodeConfig) error {
	if spec.Ordinal == nil {
		if spec.Role != "" {
			return fmt.Errorf("node %q declares role %q without an ordinal", spec.Name, spec.Role)
		}
		return nil
	}
	group := p.Ordinals().Group(*spec.Ordinal)
	switch spec.Role {
	case types.OrdinalRoleDestroyer:
		p.MarkDestroyer(b.nodes[spec.Name], group)
	case types.OrdinalRoleProducer:
		p.MarkProducer(b.nodes[spec.Name], group)
	default:
		return fmt.Errorf("node %q declares ordinal %d with unknown role %q", spec.Name, *spec.Ordinal, spec.Role)
	}
	return nil
}

func (b *GraphBuilder) attachLocks(work *CommandTask, spec types.NodeConfig) {
	if len(spec.Resources) == 0 {
		return
	}
	resources := make([]interfaces.ResourceLock, 0, len(spec.Resources))
	for _, name := range spec.Resources {
		resources = append(resources, b.locks.Lock(name))
	}
	work.SetResources(resources)
}

package plan

import (
	"fmt"
	"sort"
)

// OrdinalNodeAccess is the factory for the synthetic barrier nodes that
// enforce global destroyer-before/after-producer sequencing. One destroyer
// and one producer node exist per distinct ordinal actually used, created
// lazily and cached for the lifetime of the plan.
type OrdinalNodeAccess struct {
	plan *Plan

	groups                 map[int]*OrdinalGroup
	destroyerLocationNodes map[int]*Node
	producerLocationNodes  map[int]*Node
}

func newOrdinalNodeAccess(plan *Plan) *OrdinalNodeAccess {
	return &OrdinalNodeAccess{
		plan:                   plan,
		groups:                 make(map[int]*OrdinalGroup),
		destroyerLocationNodes: make(map[int]*Node),
		producerLocationNodes:  make(map[int]*Node),
	}
}

// Group returns the reusable ordinal-group token for the given position
func (a *OrdinalNodeAccess) Group(ordinal int) *OrdinalGroup {
	group, ok := a.groups[ordinal]
	if !ok {
		group = &OrdinalGroup{ordinal: ordinal}
		a.groups[ordinal] = group
	}
	return group
}

// DestroyerLocationNode returns the barrier node for destroy operations at
// the group's ordinal, creating it on first use
func (a *OrdinalNodeAccess) DestroyerLocationNode(ordinal *OrdinalGroup) *Node {
	node, ok := a.destroyerLocationNodes[ordinal.Ordinal()]
	if !ok {
		node = a.createOrdinalNode(RoleDestroyer, ordinal)
		a.destroyerLocationNodes[ordinal.Ordinal()] = node
	}
	return node
}

// ProducerLocationNode returns the barrier node for output-producing
// operations at the group's ordinal, creating it on first use
func (a *OrdinalNodeAccess) ProducerLocationNode(ordinal *OrdinalGroup) *Node {
	node, ok := a.producerLocationNodes[ordinal.Ordinal()]
	if !ok {
		node = a.createOrdinalNode(RoleProducer, ordinal)
		a.producerLocationNodes[ordinal.Ordinal()] = node
	}
	return node
}

// PrecedingDestroyerLocationNodes returns the destroyer barriers strictly
// before the given ordinal, in ascending order
func (a *OrdinalNodeAccess) PrecedingDestroyerLocationNodes(from int) []*Node {
	return precedingNodes(a.destroyerLocationNodes, from)
}

// PrecedingProducerLocationNodes returns the producer barriers strictly
// before the given ordinal, in ascending order
func (a *OrdinalNodeAccess) PrecedingProducerLocationNodes(from int) []*Node {
	return precedingNodes(a.producerLocationNodes, from)
}

// AllNodes returns every barrier node created so far, destroyers then
// producers, each in ascending ordinal order
func (a *OrdinalNodeAccess) AllNodes() []*Node {
	all := make([]*Node, 0, len(a.destroyerLocationNodes)+len(a.producerLocationNodes))
	all = append(all, ascendingNodes(a.destroyerLocationNodes)...)
	all = append(all, ascendingNodes(a.producerLocationNodes)...)
	return all
}

// CreateInterNodeRelationships wires the barrier nodes so that destroyer
// ordinals cannot complete until all preceding producer ordinals have
// completed, and vice versa. This ensures an ordinal does not complete early
// simply because the nodes in its group have no explicit dependencies.
func (a *OrdinalNodeAccess) CreateInterNodeRelationships() {
	for ordinal, destroyer := range a.destroyerLocationNodes {
		for _, producer := range a.PrecedingProducerLocationNodes(ordinal) {
			destroyer.AddDependencySuccessor(producer)
		}
	}
	for ordinal, producer := range a.producerLocationNodes {
		for _, destroyer := range a.PrecedingDestroyerLocationNodes(ordinal) {
			producer.AddDependencySuccessor(destroyer)
		}
	}
}

func (a *OrdinalNodeAccess) createOrdinalNode(role OrdinalRole, ordinal *OrdinalGroup) *Node {
	name := fmt.Sprintf("%s locations for %s", role, ordinal)
	node := a.plan.newNode(name, nil)
	node.ordinalRole = role
	node.group = ordinal
	node.Require()
	return node
}

func precedingNodes(nodes map[int]*Node, from int) []*Node {
	ordinals := make([]int, 0, len(nodes))
	for ordinal := range nodes {
		if ordinal < from {
			ordinals = append(ordinals, ordinal)
		}
	}
	sort.Ints(ordinals)
	out := make([]*Node, 0, len(ordinals))
	for _, ordinal := range ordinals {
		out = append(out, nodes[ordinal])
	}
	return out
}

func ascendingNodes(nodes map[int]*Node) []*Node {
	ordinals := make([]int, 0, len(nodes))
	for ordinal := range nodes {
		ordinals = append(ordinals, ordinal)
	}
	sort.Ints(ordinals)
	out := make([]*Node, 0, len(ordinals))
	for _, ordinal := range ordinals {
		out = append(out, nodes[ordinal])
	}
	return out
}

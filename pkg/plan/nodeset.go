package plan

import "sort"

// nodeSet is an ordered set of nodes. Iteration follows the total order given
// by each node's creation sequence, so traversal is deterministic and
// reproducible across runs regardless of insertion order.
type nodeSet struct {
	nodes []*Node
}

func newNodeSet() *nodeSet {
	return &nodeSet{}
}

// search returns the index where n belongs in the ordered slice
func (s *nodeSet) search(n *Node) int {
	return sort.Search(len(s.nodes), func(i int) bool {
		return s.nodes[i].seq >= n.seq
	})
}

// Add inserts n, returning false if it was already present
func (s *nodeSet) Add(n *Node) bool {
	i := s.search(n)
	if i < len(s.nodes) && s.nodes[i] == n {
		return false
	}
	s.nodes = append(s.nodes, nil)
	copy(s.nodes[i+1:], s.nodes[i:])
	s.nodes[i] = n
	return true
}

// Remove deletes n, returning false if it was not present
func (s *nodeSet) Remove(n *Node) bool {
	i := s.search(n)
	if i >= len(s.nodes) || s.nodes[i] != n {
		return false
	}
	s.nodes = append(s.nodes[:i], s.nodes[i+1:]...)
	return true
}

// Contains reports whether n is in the set
func (s *nodeSet) Contains(n *Node) bool {
	i := s.search(n)
	return i < len(s.nodes) && s.nodes[i] == n
}

// Len returns the number of nodes in the set
func (s *nodeSet) Len() int {
	return len(s.nodes)
}

// Ordered returns the nodes in ascending creation order. The returned slice
// is a copy and safe to retain.
func (s *nodeSet) Ordered() []*Node {
	out := make([]*Node, len(s.nodes))
	copy(out, s.nodes)
	return out
}

// ReverseOrdered returns the nodes in descending creation order
func (s *nodeSet) ReverseOrdered() []*Node {
	out := make([]*Node, len(s.nodes))
	for i, n := range s.nodes {
		out[len(s.nodes)-1-i] = n
	}
	return out
}

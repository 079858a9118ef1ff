package dag

import "sync"

// Graph holds the vertices of one dependency graph, usually the children of
// a single group, and the edges between them. It is safe for concurrent use.
type Graph struct {
	mutex sync.RWMutex
	nodes map[string]*node
	// order is the insertion order of node IDs; every query reports in it.
	order []string
}

// node is one vertex. Callers address vertices by ID only.
type node struct {
	id    string
	index int
	// deps are the vertices this one reads from; dependents read from it.
	deps       map[string]*node
	dependents map[string]*node
}

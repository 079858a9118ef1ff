// Package expr collects HCL expressions and reports the variables and
// functions they reference.
package expr

import (
	"sync"

	"github.com/hashicorp/hcl/v2"
)

// Container is a thread-safe helper that gathers HCL expressions and provides
// analysis results, such as variable references and function calls. Results
// are computed lazily and recomputed after every Add.
type Container struct {
	mu          sync.RWMutex
	expressions []hcl.Expression
	analyzed    bool

	references      []hcl.Traversal
	calledFunctions []string
}

// NewContainer creates a new, empty expression container.
func NewContainer() *Container {
	return &Container{}
}

// Add adds one or more expressions to the container for analysis.
// It safely ignores any nil expressions.
func (c *Container) Add(exprs ...hcl.Expression) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.analyzed = false
	for _, expr := range exprs {
		if expr != nil {
			c.expressions = append(c.expressions, expr)
		}
	}
}

func (c *Container) analyze() {
	c.mu.RLock()
	done := c.analyzed
	c.mu.RUnlock()
	if done {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.analyzed {
		return
	}
	c.references, c.calledFunctions = extractReferencesAndFunctions(c.expressions...)
	c.analyzed = true
}

// References returns all unique variable traversals found in the expressions,
// sorted by their canonical key.
func (c *Container) References() []hcl.Traversal {
	c.analyze()
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.references
}

// CalledFunctions returns all unique function calls found in the expressions.
func (c *Container) CalledFunctions() []string {
	c.analyze()
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.calledFunctions
}

// RootNames returns the unique root names of all references, sorted.
func (c *Container) RootNames() []string {
	seen := make(map[string]struct{})
	var names []string
	for _, t := range c.References() {
		name := t.RootName()
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}
	sortStrings(names)
	return names
}

// Package problem owns a model tree for its lifetime: it sets the tree up,
// runs the root solver, reads and writes variables by name, computes total
// derivatives and records every run.
package problem

// Package app contains the core application logic. It loads a problem file,
// assembles the model tree from registered component types, runs the
// analysis and reports the results, decoupled from any specific entrypoint
// like a CLI.
package app

// Package registry provides the central "glue" for the module system.
//
// The Registry maps the component type names used in problem files (e.g.,
// "exec") to the Go factories that build them. Modules add their types at
// startup, and the registry is then validated so that every option struct
// can be decoded from a problem file before any problem is loaded.
package registry

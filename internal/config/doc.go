// Package config defines the format-agnostic problem model, along with the
// core interfaces (Loader, Converter) for loading and interpreting problem
// files from various sources.
//
// The `config.Model` is the single source of truth for the app's tree
// builder. Concrete implementations of the interfaces, such as for HCL, are
// provided in separate packages.
package config

// Package vars implements the per-component variable registry: declaration of
// parameters, unknowns and their derived residuals, value normalization into
// flat numeric storage or opaque pass-by-object values, and the
// kind-partitioned views handed to component update operations.
package vars

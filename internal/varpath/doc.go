/*
Package varpath provides the naming rules and the structured representation of
variable paths within a model tree.

A path is a dot-separated sequence of segments, e.g. `cycle.d1.y1`. The last
segment may carry an element index, e.g. `px.z[1]`, which is only meaningful
on the source side of a connection.

Variable names follow `[_a-zA-Z][_a-zA-Z0-9]*(:[_a-zA-Z][_a-zA-Z0-9]*)*`.
System names are plain identifiers.
*/
package varpath

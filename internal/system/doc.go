/*
Package system holds the model tree and the machinery that turns it into a
solvable graph.

A Component is a leaf that owns a variable registry and a user supplied
update operation. A Group is an ordered container of named children with a
promotion set per child, explicit connections, and one nonlinear and one
linear solver.

Setup is a multi-phase process:

 1. Ownership: every system in the tree is claimed for one owner. A system
    claimed by another live owner is rejected.

 2. Enumeration: pathnames are assigned and every declared variable is
    recorded under its full path.

 3. Implicit links: promoted names are propagated up the tree. Variables
    that meet under the same name in some group form a collision set, which
    becomes either an implicit connection (one unknown feeding params) or an
    alias set (params only).

 4. Explicit links: Connect calls are resolved in the namespace of the group
    that made them.

 5. Validation: every target may have one inbound connection, and both ends
    of a connection must agree on data-passing mode and size.

 6. Ordering: each group's children are checked in insertion order. A
    connection whose source runs after its target is reported, and feedback
    cycles under a single-pass solver are flagged. The order itself is never
    changed.

 7. Layout and freeze: flat unknowns get offsets in depth-first order so
    every subtree owns a contiguous range of the global vectors, transfer
    lists are attached to groups, and the tree is frozen.

The resulting Model routes values before each child runs and applies the
global linear operator, forward or transposed, for derivative solves.
*/
package system

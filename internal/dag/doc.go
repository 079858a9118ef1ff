// Package dag is a small directed graph keyed by string IDs. Groups use it to
// describe data dependencies among their children: detecting feedback cycles,
// reporting the strongly connected sets involved, and splitting the children
// into waves that may run concurrently.
//
// Node order is significant. Every query returns IDs in insertion order so
// results are deterministic.
package dag

// Copyright (c) 2021 Silvano DAL ZILIO
//
// MIT License

/*
Package dd implements shared, reduced Binary and Zero-suppressed Decision
Diagrams (BDD/ZDD): canonical DAG representations of Boolean functions, and
of families of finite sets, over a fixed collection of variables.

Basics

A Manager owns one unique table, one operation cache, and the variable/level
bijection that every diagram it hands out is relative to (see NewManager).
Diagrams are addressed by the opaque Arc type rather than by pointer: FalseArc
and TrueArc are the reserved constant arcs (False/Empty and True/Base, also
named ZDDEmpty and ZDDBase), every other Arc
value indexes a node in its owning Manager's unique table. Arcs from two
different Managers must never be mixed in the same call.

BDD operations (bdd.go) use a negation-edge encoding, so Not is O(1); Or,
Nand, Nor and Imp all reduce to And by De Morgan's law and Equiv reduces to
Xor, sharing those operations' cache entries instead of needing their own
recursive traversal. ZDD
operations (zdd.go) never set the negation bit; they follow the
zero-suppression reduction rule instead (a node whose 1-child is the empty
family is elided).

Construction from a state-space description, without ever materializing an
unreduced graph, is handled by the Spec/State framework (spec.go) and its
three builders: BuildDFS, BuildBFS and BuildBFSParallel (builder.go,
builder_parallel.go).

Automatic memory management

The package does its own garbage collection of the unique table: nodes are
reclaimed by a mark-and-sweep pass (gc.go) triggered automatically once the
table's load factor crosses a threshold, or on demand via Manager.GC.
Reachability is rooted at whatever the caller has explicitly kept alive with
Manager.Ref (mirrored by Manager.Deref), plus whatever an in-flight
recursive operation is still holding on its internal refstack. Go's own
garbage collector reclaims everything else -- Arc values themselves carry no
finalizers and impose no cleanup obligation beyond Ref/Deref bookkeeping.
*/
package dd

// Copyright (c) 2021 Silvano DAL ZILIO
//
// MIT License

package dd

import "context"

// spec.go defines the top-down construction framework of spec.md §4.9: a
// Spec describes how to explore a state space level by level, and a
// builder (builder.go, builder_parallel.go) turns that exploration into a
// reduced BDD or ZDD without ever materializing the unreduced state graph.
// Grounded on go-zdd's ConstraintSpec/State/GetChild contract
// (zzenonn-go-zdd/zdd.go, states.go), extended with the two-phase BFS and
// parallel-BFS protocols go-zdd lacks, following
// original_source/include/sbdd2/tdzdd/Sbdd2Builder.hpp's descent/
// finalization split.

// State is an application-defined point in the construction's state space.
// Implementations must be safe to Clone, Hash and Equal so the builder can
// detect and merge equivalent states reached via different paths (the
// "merge_states" step of spec.md §4.9).
type State interface {
	Clone() State
	Hash() uint64
	Equal(other State) bool
}

// Kind selects whether a Spec builds a BDD or a ZDD; it determines which
// reduction rule (and which terminal value) the builder applies once a
// state has been explored down to level 0.
type Kind int

const (
	KindBDD Kind = iota
	KindZDD
)

// Spec describes one top-down construction: how many variables it spans,
// what state the root starts in, how a state transitions when a variable
// is assigned, and whether a fully-assigned state counts as a member of
// the family being built.
type Spec interface {
	// Kind reports whether this Spec builds a BDD or a ZDD.
	Kind() Kind

	// Variables returns the number of levels to explore (variables are
	// numbered 1..Variables(), top level is Variables()).
	Variables() int

	// InitialState returns the state at the root, before any variable has
	// been assigned.
	InitialState() State

	// GetChild computes the state reached from state by assigning the
	// variable at level (1-based) to take. An error prunes this branch
	// (the resulting arc becomes False/Empty) rather than aborting the
	// whole build.
	GetChild(ctx context.Context, state State, level int, take bool) (State, error)

	// IsValid is called once a state has been fully explored (level 0); it
	// decides whether that path contributes the True/Base terminal or the
	// False/Empty one.
	IsValid(state State) bool
}

// SkipState lets GetChild short-circuit a run of irrelevant levels: instead
// of returning a state for level-1, it wraps a state together with the
// level the builder should jump straight to, skipping every level in
// between as "don't care" (both children equal, a no-op edge for BDDs and
// ZDDs alike since neither reduction rule distinguishes an intervening
// variable nobody branches on).
type SkipState struct {
	Inner  State
	SkipTo int
}

func (s *SkipState) Clone() State { return &SkipState{Inner: s.Inner.Clone(), SkipTo: s.SkipTo} }
func (s *SkipState) Hash() uint64 { return s.Inner.Hash()*31 + uint64(s.SkipTo) }
func (s *SkipState) Equal(other State) bool {
	o, ok := other.(*SkipState)
	return ok && o.SkipTo == s.SkipTo && s.Inner.Equal(o.Inner)
}

// unwrapSkip peels off any SkipState wrapper, returning the inner state and
// the level the builder should resume descent at.
func unwrapSkip(s State, fallbackLevel int) (State, int) {
	if sk, ok := s.(*SkipState); ok {
		return sk.Inner, sk.SkipTo
	}
	return s, fallbackLevel
}

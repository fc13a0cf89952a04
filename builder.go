// Copyright (c) 2021 Silvano DAL ZILIO
//
// MIT License

package dd

import "context"

// builder.go implements the two builders of spec.md §4.9 over a Spec: a
// DFS builder (recursive, memoized on (level, state)) grounded directly on
// go-zdd's buildRecursive, and a BFS builder that processes one full level
// at a time in two phases — descent, where each node's children are stood
// in for with placeholder Arcs (arc.go's placeholderArc) because the level
// below hasn't been reduced yet, then finalization, where each level is
// folded bottom-up into the Manager's unique table and the placeholders
// above it are patched with the real Arcs. This two-phase split is
// grounded on original_source's Sbdd2Builder.hpp, which go-zdd's
// single-phase buildRecursive does not need because it recurses instead of
// batching a level at a time.

// stateBucket deduplicates states within one level: states that Equal()
// each other share one slot (the state-merging step of spec.md §4.9).
type stateBucket struct {
	state  State
	column int
}

type levelIndex struct {
	buckets map[uint64][]stateBucket
	order   []State // states in column order, for phase 2 lookups
}

func newLevelIndex() *levelIndex {
	return &levelIndex{buckets: make(map[uint64][]stateBucket)}
}

// intern returns the column assigned to s, creating one if s has not been
// seen before at this level.
func (li *levelIndex) intern(s State) int {
	h := s.Hash()
	for _, b := range li.buckets[h] {
		if b.state.Equal(s) {
			return b.column
		}
	}
	col := len(li.order)
	li.buckets[h] = append(li.buckets[h], stateBucket{state: s, column: col})
	li.order = append(li.order, s)
	return col
}

func terminalArc(kind Kind, valid bool) Arc {
	if kind == KindBDD {
		if valid {
			return TrueArc
		}
		return FalseArc
	}
	if valid {
		return ZDDBase
	}
	return ZDDEmpty
}

func (m *Manager) makeNode(kind Kind, v uint32, lo, hi Arc) (Arc, error) {
	if kind == KindBDD {
		return m.getOrCreateNodeBDD(v, lo, hi)
	}
	return m.getOrCreateNodeZDD(v, lo, hi)
}

// BuildDFS constructs a diagram from spec using straightforward recursive
// descent with memoization on (level, state), following go-zdd's
// buildRecursive.
func (m *Manager) BuildDFS(ctx context.Context, spec Spec) (Arc, error) {
	memo := make([]map[uint64][]dfsEntry, spec.Variables()+1)
	for i := range memo {
		memo[i] = make(map[uint64][]dfsEntry)
	}
	return m.buildDFS(ctx, spec, spec.InitialState(), spec.Variables(), memo)
}

type dfsEntry struct {
	state State
	arc   Arc
}

func (m *Manager) buildDFS(ctx context.Context, spec Spec, state State, level int, memo []map[uint64][]dfsEntry) (Arc, error) {
	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	default:
	}
	if level == 0 {
		return terminalArc(spec.Kind(), spec.IsValid(state)), nil
	}
	h := state.Hash()
	for _, e := range memo[level][h] {
		if e.state.Equal(state) {
			return e.arc, nil
		}
	}
	lo, err := m.descendOne(ctx, spec, state, level, false, memo)
	if err != nil {
		return 0, err
	}
	hi, err := m.descendOne(ctx, spec, state, level, true, memo)
	if err != nil {
		return 0, err
	}
	v := m.varOfLevel[uint32(level)]
	res, err := m.makeNode(spec.Kind(), v, lo, hi)
	if err != nil {
		return 0, err
	}
	memo[level][h] = append(memo[level][h], dfsEntry{state: state, arc: res})
	return res, nil
}

// descendOne computes one child (lo if take is false, hi if true) of state
// at level, pruning to the False/Empty terminal if GetChild errors, and
// honoring SkipState jumps.
func (m *Manager) descendOne(ctx context.Context, spec Spec, state State, level int, take bool, memo []map[uint64][]dfsEntry) (Arc, error) {
	child, err := spec.GetChild(ctx, state, level, take)
	if err != nil {
		return terminalArc(spec.Kind(), false), nil
	}
	next, nextLevel := unwrapSkip(child, level-1)
	return m.buildDFS(ctx, spec, next, nextLevel, memo)
}

// BuildBFS constructs a diagram from spec level by level: phase 1 descends
// from the top, deduplicating states per level and recording child edges
// as placeholder Arcs (since the level below is not reduced yet); phase 2
// walks back up from level 0, folding each level into the unique table and
// patching the placeholders above it with the real Arcs that level
// produced.
func (m *Manager) BuildBFS(ctx context.Context, spec Spec) (Arc, error) {
	top := spec.Variables()
	levels := make([]*levelIndex, top+1)
	levels[top] = newLevelIndex()
	levels[top].intern(spec.InitialState())

	// pendingLo/pendingHi[level][column] hold the placeholder arcs for the
	// node at (level, column), pointing into levels[level-1].
	pendingLo := make([][]Arc, top+1)
	pendingHi := make([][]Arc, top+1)
	validAt0 := make([]bool, 0) // column -> IsValid, only meaningful at level 0

	for level := top; level >= 1; level-- {
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		default:
		}
		li := levels[level]
		if li == nil {
			continue
		}
		if levels[level-1] == nil {
			levels[level-1] = newLevelIndex()
		}
		pendingLo[level] = make([]Arc, len(li.order))
		pendingHi[level] = make([]Arc, len(li.order))
		for col, state := range li.order {
			loArc, err := m.bfsChildPlaceholder(ctx, spec, state, level, false, levels)
			if err != nil {
				return 0, err
			}
			hiArc, err := m.bfsChildPlaceholder(ctx, spec, state, level, true, levels)
			if err != nil {
				return 0, err
			}
			pendingLo[level][col] = loArc
			pendingHi[level][col] = hiArc
		}
	}
	if levels[0] != nil {
		validAt0 = make([]bool, len(levels[0].order))
		for col, state := range levels[0].order {
			validAt0[col] = spec.IsValid(state)
		}
	}

	// phase 2: finalize bottom-up.
	resolved := make([][]Arc, top+1)
	if levels[0] != nil {
		resolved[0] = make([]Arc, len(validAt0))
		for col, valid := range validAt0 {
			resolved[0][col] = terminalArc(spec.Kind(), valid)
		}
	}
	for level := 1; level <= top; level++ {
		li := levels[level]
		if li == nil {
			continue
		}
		resolved[level] = make([]Arc, len(li.order))
		v := m.varOfLevel[uint32(level)]
		for col := range li.order {
			lo := m.resolvePlaceholder(pendingLo[level][col], resolved)
			hi := m.resolvePlaceholder(pendingHi[level][col], resolved)
			res, err := m.makeNode(spec.Kind(), v, lo, hi)
			if err != nil {
				return 0, err
			}
			resolved[level][col] = res
		}
	}
	return resolved[top][0], nil
}

// bfsChildPlaceholder computes the state reached by one branch from state
// at level, interns it into the target level's index (honoring SkipState
// jumps and possibly landing several levels down), and returns a
// placeholder Arc recording (landing level, column) for phase 2 to
// resolve. GetChild errors prune the branch to a resolved (non-placeholder)
// False/Empty arc immediately, since a pruned branch never needs a real
// node.
func (m *Manager) bfsChildPlaceholder(ctx context.Context, spec Spec, state State, level int, take bool, levels []*levelIndex) (Arc, error) {
	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	default:
	}
	child, err := spec.GetChild(ctx, state, level, take)
	if err != nil {
		return terminalArc(spec.Kind(), false), nil
	}
	next, nextLevel := unwrapSkip(child, level-1)
	if nextLevel == 0 {
		if levels[0] == nil {
			levels[0] = newLevelIndex()
		}
		col := levels[0].intern(next)
		return placeholderArc(0, uint64(col)), nil
	}
	if levels[nextLevel] == nil {
		levels[nextLevel] = newLevelIndex()
	}
	col := levels[nextLevel].intern(next)
	return placeholderArc(int32(nextLevel), uint64(col)), nil
}

func (m *Manager) resolvePlaceholder(a Arc, resolved [][]Arc) Arc {
	if !a.IsPlaceholder() {
		return a
	}
	level := a.placeholderLevel()
	col := a.placeholderColumn()
	return resolved[level][col]
}

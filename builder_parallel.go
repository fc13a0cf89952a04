// Copyright (c) 2021 Silvano DAL ZILIO
//
// MIT License

package dd

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"
)

// builder_parallel.go implements the parallel BFS builder of spec.md §4.9:
// the same two-phase protocol as BuildBFS, but each level's descent (phase
// 1) fans its states out across configs.workers goroutines, since
// GetChild/IsValid calls for distinct states at the same level never
// interact. Grounded on original_source's Sbdd2BuilderMP.hpp and on
// golang.org/x/sync/errgroup's fan-out-then-join idiom, the only
// concurrency primitive this package reaches for beyond sync.Mutex.

// BuildBFSParallel behaves exactly like BuildBFS but computes each level's
// child placeholders concurrently, using configs.workers goroutines (see
// WithParallelWorkers). Thread safety is achieved by sharding the level
// index's interning behind a per-level mutex rather than by any lock-free
// trick: Spec.GetChild calls run unsynchronized, but every mutation of
// shared level/column bookkeeping is serialized.
func (m *Manager) BuildBFSParallel(ctx context.Context, spec Spec) (Arc, error) {
	top := spec.Variables()
	levels := make([]*syncLevelIndex, top+1)
	for i := range levels {
		levels[i] = newSyncLevelIndex()
	}
	levels[top].intern(spec.InitialState())

	pendingLo := make([][]Arc, top+1)
	pendingHi := make([][]Arc, top+1)

	workers := m.configs.workers
	if workers < 1 {
		workers = 1
	}

	for level := top; level >= 1; level-- {
		li := levels[level]
		if li == nil {
			continue
		}
		states := li.snapshot()
		pendingLo[level] = make([]Arc, len(states))
		pendingHi[level] = make([]Arc, len(states))

		g, gctx := errgroup.WithContext(ctx)
		sem := make(chan struct{}, workers)
		for col, state := range states {
			col, state := col, state
			sem <- struct{}{}
			g.Go(func() error {
				defer func() { <-sem }()
				loArc, err := m.bfsChildPlaceholderSync(gctx, spec, state, level, false, levels)
				if err != nil {
					return err
				}
				hiArc, err := m.bfsChildPlaceholderSync(gctx, spec, state, level, true, levels)
				if err != nil {
					return err
				}
				pendingLo[level][col] = loArc
				pendingHi[level][col] = hiArc
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return 0, err
		}
	}

	validAt0 := []bool(nil)
	if levels[0] != nil {
		states := levels[0].snapshot()
		validAt0 = make([]bool, len(states))
		for col, state := range states {
			validAt0[col] = spec.IsValid(state)
		}
	}

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
		n := len(pendingLo[level])
		resolved[level] = make([]Arc, n)
		v := m.varOfLevel[uint32(level)]
		for col := 0; col < n; col++ {
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

func (m *Manager) bfsChildPlaceholderSync(ctx context.Context, spec Spec, state State, level int, take bool, levels []*syncLevelIndex) (Arc, error) {
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
	if levels[nextLevel] == nil {
		levels[nextLevel] = newSyncLevelIndex()
	}
	col := levels[nextLevel].intern(next)
	return placeholderArc(int32(nextLevel), uint64(col)), nil
}

// syncLevelIndex is levelIndex's mutex-guarded twin, used only by the
// parallel builder where multiple goroutines intern states into the same
// level concurrently.
type syncLevelIndex struct {
	mu      sync.Mutex
	buckets map[uint64][]stateBucket
	order   []State
}

func newSyncLevelIndex() *syncLevelIndex {
	return &syncLevelIndex{buckets: make(map[uint64][]stateBucket)}
}

func (li *syncLevelIndex) intern(s State) int {
	li.mu.Lock()
	defer li.mu.Unlock()
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

func (li *syncLevelIndex) snapshot() []State {
	li.mu.Lock()
	defer li.mu.Unlock()
	out := make([]State, len(li.order))
	copy(out, li.order)
	return out
}

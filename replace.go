// Copyright (c) 2021 Silvano DAL ZILIO
//
// MIT License

package dd

import "fmt"

// replace.go implements simultaneous, multi-variable substitution over BDD
// arcs (one recursive pass renaming every variable in oldvars to its paired
// variable in newvars at once, as opposed to Compose's one-variable-at-a-
// time substitution by an arbitrary sub-formula). Adapted from
// rudd/replace.go's Replacer/NewReplacer, re-expressed over negation-edge
// Arcs and this package's OpCode-keyed cache instead of rudd's dedicated
// replacecache.

var _replaceID uint64 = 1

// Replacer describes a simultaneous variable renaming built by NewReplacer.
// Each Replacer carries a unique id so Manager.Replace can memoize per
// Replacer in the shared operation cache without colliding with any other
// Replacer's entries.
type Replacer struct {
	id    uint64
	image []uint32 // image[v] is the variable v is renamed to; identity where untouched
	last  uint32   // highest level this Replacer actually moves, 0 if none
}

// NewReplacer builds a Replacer substituting oldvars[k] with newvars[k] for
// every k. oldvars and newvars must have the same length, contain no
// duplicate among oldvars, and name only variables already known to m.
func (m *Manager) NewReplacer(oldvars, newvars []uint32) (*Replacer, error) {
	if len(oldvars) != len(newvars) {
		return nil, m.fail(fmt.Errorf("%w: mismatched replacer slice lengths", ErrInvalidArgument))
	}
	r := &Replacer{id: _replaceID}
	_replaceID++
	r.image = make([]uint32, m.nvars+1)
	for v := range r.image {
		r.image[v] = uint32(v)
	}
	seen := make(map[uint32]bool, len(oldvars))
	for k, v := range oldvars {
		if v == 0 || v > m.nvars {
			return nil, m.fail(fmt.Errorf("%w: invalid variable %d in oldvars", ErrInvalidArgument, v))
		}
		if seen[v] {
			return nil, m.fail(fmt.Errorf("%w: duplicate variable %d in oldvars", ErrInvalidArgument, v))
		}
		if newvars[k] == 0 || newvars[k] > m.nvars {
			return nil, m.fail(fmt.Errorf("%w: invalid variable %d in newvars", ErrInvalidArgument, newvars[k]))
		}
		seen[v] = true
		r.image[v] = newvars[k]
		if lvl := m.levelOfVar[v]; lvl > r.last {
			r.last = lvl
		}
		if lvl := m.levelOfVar[newvars[k]]; lvl > r.last {
			r.last = lvl
		}
	}
	return r, nil
}

// Replace returns f with every variable renamed according to r. Like
// rudd/replace.go's Replacer, this assumes oldvars and newvars preserve
// relative variable order; renaming across a level swap produces a BDD that
// violates I1 and is the caller's mistake to avoid, not something Replace
// detects.
func (m *Manager) Replace(f Arc, r *Replacer) (Arc, error) {
	if r.last == 0 {
		return f, nil
	}
	return m.replace(f, r)
}

func (m *Manager) replace(f Arc, r *Replacer) (Arc, error) {
	if f.IsConstant() {
		return f, nil
	}
	fv := m.variableOf(f)
	if m.levelOfVar[fv] > r.last {
		return f, nil
	}
	m.cacheMu.Lock()
	k1 := key1Of(f, OpReplace)
	k2 := r.id
	idx := pairHash(k1, k2) & m.cache.mask
	e := &m.cache.slots[idx]
	if e.valid && e.key1 == k1 && e.key2 == k2 {
		cached := e.result
		m.cacheMu.Unlock()
		return cached, nil
	}
	m.cacheMu.Unlock()

	lo, hi := m.branch(f, fv)
	m.pushRef(f)
	newLo, err := m.replace(lo, r)
	if err != nil {
		m.popRef()
		return 0, err
	}
	m.pushRef(newLo)
	newHi, err := m.replace(hi, r)
	m.popRef()
	if err != nil {
		m.popRef()
		return 0, err
	}
	res, err := m.getOrCreateNodeBDD(r.image[fv], newLo, newHi)
	m.popRef()
	if err != nil {
		return 0, err
	}
	m.cacheMu.Lock()
	m.cache.slots[idx] = cacheEntry{key1: k1, key2: k2, result: res, valid: true}
	m.cacheMu.Unlock()
	return res, nil
}

func (r *Replacer) String() string {
	res := fmt.Sprintf("replacer(last: %d)[", r.last)
	first := true
	for v, nv := range r.image {
		if uint32(v) != nv && v != 0 {
			if !first {
				res += ", "
			}
			first = false
			res += fmt.Sprintf("%d<-%d", v, nv)
		}
	}
	return res + "]"
}

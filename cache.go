// Copyright (c) 2021 Silvano DAL ZILIO
//
// MIT License

package dd

import "fmt"

// OpCode identifies the operation a cache entry memoizes, per spec.md §6.
// CUSTOM is a sentinel: apply folds tagged with it are never cached, which
// is how user-defined folds opt out of memoization.
type OpCode uint8

const (
	OpAnd OpCode = iota
	OpOr
	OpXor
	OpDiff
	OpIte
	OpRestrict
	OpCompose
	OpExist
	OpForall
	OpProduct
	OpQuotient
	OpRemainder
	OpUnion
	OpIntersect
	OpChange
	OpOnset
	OpOnset0
	OpOffset
	OpAt0
	OpAt1
	OpReplace
	OpCustom
)

// cacheEntry is the three-field record of spec.md §3: key1 packs the first
// operand with the op code, key2 the remaining operand(s), result the cached
// answer arc.
type cacheEntry struct {
	key1   uint64
	key2   uint64
	result Arc
	valid  bool
}

// opCache is the direct-mapped, power-of-two operation cache of spec.md
// §4.3: collisions simply overwrite, entries are invalidated wholesale on
// GC/resize, and there is no ownership of the arcs it stores — just a
// memory of what some earlier apply computed. Adapted from the five
// bespoke caches in rudd/cache.go (applycache/itecache/quantcache/
// appexcache/replacecache), generalized into one OpCode-keyed table.
type opCache struct {
	slots []cacheEntry
	mask  uint64
	hits  uint64
	misses uint64
}

func newOpCache(sizeHint int) *opCache {
	size := 1 << 12
	for size < sizeHint {
		size <<= 1
	}
	return &opCache{slots: make([]cacheEntry, size), mask: uint64(size - 1)}
}

func key1Of(a Arc, op OpCode) uint64 {
	return (uint64(a) << 8) | uint64(op)
}

func (c *opCache) lookup2(op OpCode, a, b Arc) (Arc, bool) {
	if op == OpCustom {
		return 0, false
	}
	k1 := key1Of(a, op)
	k2 := uint64(b)
	idx := pairHash(k1, k2) & c.mask
	e := &c.slots[idx]
	if e.valid && e.key1 == k1 && e.key2 == k2 {
		c.hits++
		return e.result, true
	}
	c.misses++
	return 0, false
}

func (c *opCache) insert2(op OpCode, a, b, res Arc) Arc {
	if op == OpCustom {
		return res
	}
	k1 := key1Of(a, op)
	k2 := uint64(b)
	idx := pairHash(k1, k2) & c.mask
	c.slots[idx] = cacheEntry{key1: k1, key2: k2, result: res, valid: true}
	return res
}

// ternaryKey2 packs (g, h) the way spec.md §3 specifies: "(g << 32) |
// (h & 0xFFFFFFFF) for ternary". This is a lossy packing for arcs whose
// index exceeds 32 bits; like the source it is a memoization hint, not a
// source of truth, so a false cache hit is impossible (key1 still carries
// the full f arc) but a possible false miss on very large diagrams only
// costs recomputation, never correctness.
func ternaryKey2(g, h Arc) uint64 {
	return (uint64(g) << 32) | (uint64(h) & 0xFFFFFFFF)
}

func (c *opCache) lookup3(op OpCode, f, g, h Arc) (Arc, bool) {
	if op == OpCustom {
		return 0, false
	}
	k1 := key1Of(f, op)
	k2 := ternaryKey2(g, h)
	idx := pairHash(k1, k2) & c.mask
	e := &c.slots[idx]
	if e.valid && e.key1 == k1 && e.key2 == k2 {
		c.hits++
		return e.result, true
	}
	c.misses++
	return 0, false
}

func (c *opCache) insert3(op OpCode, f, g, h, res Arc) Arc {
	if op == OpCustom {
		return res
	}
	k1 := key1Of(f, op)
	k2 := ternaryKey2(g, h)
	idx := pairHash(k1, k2) & c.mask
	c.slots[idx] = cacheEntry{key1: k1, key2: k2, result: res, valid: true}
	return res
}

// clear flushes the cache wholesale; called on every GC and on explicit
// clear, per spec.md §4.3.
func (c *opCache) clear() {
	for i := range c.slots {
		c.slots[i] = cacheEntry{}
	}
}

// String reports the cache's hit rate, the way rudd/cache.go's
// applycache.String() reports its operator hit/miss tally; surfaced by
// Stats() under _DEBUG.
func (c *opCache) String() string {
	total := c.hits + c.misses
	var rate float64
	if total > 0 {
		rate = (float64(c.hits) * 100) / float64(total)
	}
	res := fmt.Sprintf("== Operation cache %d\n", len(c.slots))
	res += fmt.Sprintf(" Hits:  %d (%.1f%%)\n", c.hits, rate)
	res += fmt.Sprintf(" Miss:  %d\n", c.misses)
	return res
}

// resize grows the cache, matching the cacheratio knob in rudd/config.go:
// a cache ratio > 0 means the cache grows proportionally to the node table.
func (c *opCache) resize(newSize int) {
	size := 1 << 12
	for size < newSize {
		size <<= 1
	}
	if size == len(c.slots) {
		c.clear()
		return
	}
	c.slots = make([]cacheEntry, size)
	c.mask = uint64(size - 1)
}

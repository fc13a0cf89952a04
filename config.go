// Copyright (c) 2021 Silvano DAL ZILIO
//
// MIT License

package dd

import "runtime"

// _MINFREENODES mirrors rudd/kernel.go's minimal percentage of free slots
// after a GC pass. It is stored in configs.minfreenodes, but the GC and
// resize path does not read it: the table grows only when an insert still
// fails after a collection.
const _MINFREENODES = 20

// _DEFAULTMAXNODEINC mirrors rudd/kernel.go's default cap on how much a
// single resize can grow the table by.
const _DEFAULTMAXNODEINC = 1 << 20

// _DEFAULTGCTHRESHOLD is the load factor (spec.md §4.4) above which
// gc_if_needed triggers a collection.
const _DEFAULTGCTHRESHOLD = 0.75

// _DEFAULTMINALIVE is the "min_nodes" floor below which gc_if_needed will
// not bother collecting even if the load factor is high.
const _DEFAULTMINALIVE = 1000

// configs holds the configurable parameters of a Manager, following the
// shape (and most of the fields) of rudd/config.go's own configs struct.
type configs struct {
	varnum          int
	nodesize        int
	cachesize       int
	cacheratio      int
	maxnodesize     int
	maxnodeincrease int
	minfreenodes    int
	gcThreshold     float64
	minAlive        int
	workers         int
}

func makeconfigs(varnum int) *configs {
	c := &configs{varnum: varnum}
	c.minfreenodes = _MINFREENODES
	c.maxnodeincrease = _DEFAULTMAXNODEINC
	c.nodesize = 2*varnum + 2
	c.cachesize = 10000
	c.gcThreshold = _DEFAULTGCTHRESHOLD
	c.minAlive = _DEFAULTMINALIVE
	c.workers = 1
	return c
}

// ManagerOption configures a Manager at construction time, following the
// functional-options pattern of rudd/config.go (Nodesize, Cachesize, ...)
// renamed to the With<Thing> convention used throughout go-zdd/options.go.
type ManagerOption func(*configs)

// WithNodeSize sets a preferred initial size for the unique table. The table
// grows automatically as needed; this only affects how many resizes happen
// early on.
func WithNodeSize(size int) ManagerOption {
	return func(c *configs) {
		if size >= 2*c.varnum+2 {
			c.nodesize = size
		}
	}
}

// WithMaxNodeSize caps the number of nodes the table may ever grow to. Zero
// (the default) means no limit.
func WithMaxNodeSize(size int) ManagerOption {
	return func(c *configs) { c.maxnodesize = size }
}

// WithMaxNodeIncrease caps how many nodes a single resize may add. Zero
// removes the limit.
func WithMaxNodeIncrease(size int) ManagerOption {
	return func(c *configs) { c.maxnodeincrease = size }
}

// WithMinFreeNodes records a minimum percentage of free slots to keep after
// a GC pass. The value is stored but not consulted: the table grows only
// when an insert still fails after a collection, whatever this setting.
func WithMinFreeNodes(pct int) ManagerOption {
	return func(c *configs) { c.minfreenodes = pct }
}

// WithCacheSize sets the initial number of entries in the operation cache.
func WithCacheSize(size int) ManagerOption {
	return func(c *configs) { c.cachesize = size }
}

// WithCacheRatio sets the percentage of cache entries to keep per node-table
// slot; the cache grows along with the node table when this is nonzero.
func WithCacheRatio(pct int) ManagerOption {
	return func(c *configs) { c.cacheratio = pct }
}

// WithGCThreshold sets the unique-table load factor above which gc_if_needed
// triggers a collection (spec.md §4.4). Default 0.75.
func WithGCThreshold(threshold float64) ManagerOption {
	return func(c *configs) { c.gcThreshold = threshold }
}

// WithMinAliveNodes sets the floor below which gc_if_needed will not bother
// collecting even under high load (spec.md §4.4's "min_nodes").
func WithMinAliveNodes(n int) ManagerOption {
	return func(c *configs) { c.minAlive = n }
}

// WithParallelWorkers sets the number of goroutines the parallel BFS builder
// (builder_parallel.go) uses for phase-1 fan-out. A value <= 0 defaults to
// runtime.NumCPU(), matching go-zdd's WithParallel.
func WithParallelWorkers(workers int) ManagerOption {
	return func(c *configs) {
		if workers <= 0 {
			c.workers = runtime.NumCPU()
		} else {
			c.workers = workers
		}
	}
}

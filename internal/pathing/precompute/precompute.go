// Package precompute caches per-state traversability facts.
//
// Each block state gets a 7-bit entry: a completed flag plus a yes bit and a
// maybe bit for walk-on, walk-through and fully-passable. Yes/no answers are
// pure functions of the state and are served from the cache. A maybe bit
// routes the query to the position-aware predicate of the Rules on every call.
package precompute

import (
	"sync/atomic"

	"voxelpath.ai/internal/catalogs"
)

type Ternary uint8

const (
	No Ternary = iota
	Yes
	Maybe
)

type Facts struct {
	WalkOn        Ternary
	WalkThrough   Ternary
	FullyPassable Ternary
}

// View is the block lookup the position-aware predicates read neighbours from.
type View interface {
	StateAt(x, y, z int) catalogs.StateID
}

type Rules interface {
	Classify(state catalogs.StateID) Facts
	WalkOnAt(v View, x, y, z int, state catalogs.StateID) bool
	WalkThroughAt(v View, x, y, z int, state catalogs.StateID) bool
	FullyPassableAt(v View, x, y, z int, state catalogs.StateID) bool
}

const (
	completed uint32 = 1 << iota
	walkOn
	walkOnMaybe
	walkThrough
	walkThroughMaybe
	fullyPassable
	fullyPassableMaybe
)

// Cache is safe for concurrent use. Two goroutines racing on the same unseen
// state compute the same entry, so the last store wins without harm.
type Cache struct {
	rules   Rules
	entries [1 << 16]atomic.Uint32
}

func New(rules Rules) *Cache {
	return &Cache{rules: rules}
}

func (c *Cache) Rules() Rules { return c.rules }

func (c *Cache) CanWalkOn(v View, x, y, z int, state catalogs.StateID) bool {
	e := c.entry(state)
	if e&walkOnMaybe != 0 {
		return c.rules.WalkOnAt(v, x, y, z, state)
	}
	return e&walkOn != 0
}

func (c *Cache) CanWalkThrough(v View, x, y, z int, state catalogs.StateID) bool {
	e := c.entry(state)
	if e&walkThroughMaybe != 0 {
		return c.rules.WalkThroughAt(v, x, y, z, state)
	}
	return e&walkThrough != 0
}

func (c *Cache) FullyPassable(v View, x, y, z int, state catalogs.StateID) bool {
	e := c.entry(state)
	if e&fullyPassableMaybe != 0 {
		return c.rules.FullyPassableAt(v, x, y, z, state)
	}
	return e&fullyPassable != 0
}

func (c *Cache) entry(state catalogs.StateID) uint32 {
	slot := &c.entries[state]
	if e := slot.Load(); e&completed != 0 {
		return e
	}
	e := encode(c.rules.Classify(state))
	slot.Store(e)
	return e
}

func encode(f Facts) uint32 {
	e := completed
	e |= bits(f.WalkOn, walkOn, walkOnMaybe)
	e |= bits(f.WalkThrough, walkThrough, walkThroughMaybe)
	e |= bits(f.FullyPassable, fullyPassable, fullyPassableMaybe)
	return e
}

func bits(t Ternary, yes, maybe uint32) uint32 {
	switch t {
	case Yes:
		return yes
	case Maybe:
		return maybe
	default:
		return 0
	}
}

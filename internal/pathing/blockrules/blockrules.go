// Package blockrules classifies catalog blocks for the traversability cache.
package blockrules

import (
	"voxelpath.ai/internal/catalogs"
	"voxelpath.ai/internal/pathing/precompute"
)

type Rules struct {
	cat               *catalogs.BlockCatalog
	assumeWalkOnWater bool
}

func New(cat *catalogs.BlockCatalog, assumeWalkOnWater bool) *Rules {
	return &Rules{cat: cat, assumeWalkOnWater: assumeWalkOnWater}
}

func (r *Rules) Catalog() *catalogs.BlockCatalog { return r.cat }

func (r *Rules) Def(s catalogs.StateID) catalogs.BlockDef { return r.cat.Def(s) }

func (r *Rules) Classify(s catalogs.StateID) precompute.Facts {
	const yes, no, maybe = precompute.Yes, precompute.No, precompute.Maybe
	def := r.cat.Def(s)
	switch def.Kind {
	case catalogs.KindAir, catalogs.KindPlant:
		return precompute.Facts{WalkOn: no, WalkThrough: yes, FullyPassable: yes}
	case catalogs.KindSolid, catalogs.KindSoulSand, catalogs.KindSlabBottom:
		if def.Danger {
			// Magma and the like hold weight but burn whoever stands on them.
			return precompute.Facts{WalkOn: no, WalkThrough: no, FullyPassable: no}
		}
		return precompute.Facts{WalkOn: yes, WalkThrough: no, FullyPassable: no}
	case catalogs.KindWater:
		walkOn := no
		if r.assumeWalkOnWater {
			walkOn = maybe
		}
		return precompute.Facts{WalkOn: walkOn, WalkThrough: maybe, FullyPassable: no}
	case catalogs.KindClimbable:
		return precompute.Facts{WalkOn: maybe, WalkThrough: yes, FullyPassable: no}
	case catalogs.KindCarpet:
		return precompute.Facts{WalkOn: no, WalkThrough: maybe, FullyPassable: no}
	case catalogs.KindDoorOpen:
		return precompute.Facts{WalkOn: no, WalkThrough: yes, FullyPassable: no}
	default:
		// LAVA, FIRE, DOOR_CLOSED, FENCE
		return precompute.Facts{WalkOn: no, WalkThrough: no, FullyPassable: no}
	}
}

func (r *Rules) WalkOnAt(v precompute.View, x, y, z int, s catalogs.StateID) bool {
	switch r.cat.Def(s).Kind {
	case catalogs.KindWater:
		return r.assumeWalkOnWater && !r.isWater(v.StateAt(x, y+1, z))
	case catalogs.KindClimbable:
		for _, d := range [4][2]int{{1, 0}, {-1, 0}, {0, 1}, {0, -1}} {
			if r.solidKind(v.StateAt(x+d[0], y, z+d[1])) {
				return true
			}
		}
		return false
	}
	return false
}

func (r *Rules) WalkThroughAt(v precompute.View, x, y, z int, s catalogs.StateID) bool {
	switch r.cat.Def(s).Kind {
	case catalogs.KindWater:
		// Deep water drags the agent under.
		return !r.assumeWalkOnWater && !r.isWater(v.StateAt(x, y+1, z))
	case catalogs.KindCarpet:
		return r.solidKind(v.StateAt(x, y-1, z))
	}
	return false
}

func (r *Rules) FullyPassableAt(precompute.View, int, int, int, catalogs.StateID) bool { return false }

func (r *Rules) isWater(s catalogs.StateID) bool { return r.cat.Def(s).Kind == catalogs.KindWater }

// solidKind is the context-free part of walk-on. Neighbour checks must not
// recurse into other maybe rules.
func (r *Rules) solidKind(s catalogs.StateID) bool {
	switch r.cat.Def(s).Kind {
	case catalogs.KindSolid, catalogs.KindSoulSand, catalogs.KindSlabBottom:
		return !r.cat.Def(s).Danger
	}
	return false
}

func (r *Rules) IsWater(s catalogs.StateID) bool      { return r.isWater(s) }
func (r *Rules) IsLava(s catalogs.StateID) bool       { return r.cat.Def(s).Kind == catalogs.KindLava }
func (r *Rules) IsClimbable(s catalogs.StateID) bool  { return r.cat.Def(s).Kind == catalogs.KindClimbable }
func (r *Rules) IsSoulSand(s catalogs.StateID) bool   { return r.cat.Def(s).Kind == catalogs.KindSoulSand }
func (r *Rules) IsBottomSlab(s catalogs.StateID) bool { return r.cat.Def(s).Kind == catalogs.KindSlabBottom }
func (r *Rules) IsLiquid(s catalogs.StateID) bool     { return r.cat.Def(s).Liquid() }
func (r *Rules) Falls(s catalogs.StateID) bool        { return r.cat.Def(s).Falls }

// AvoidWalkingInto marks blocks that hurt on contact.
func (r *Rules) AvoidWalkingInto(s catalogs.StateID) bool {
	d := r.cat.Def(s)
	return d.Danger || d.Kind == catalogs.KindLava || d.Kind == catalogs.KindFire
}

func (r *Rules) IsDanger(s catalogs.StateID) bool { return r.AvoidWalkingInto(s) }

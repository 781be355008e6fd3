// Package worldctx is the read side of the world as seen by one calculation
// or one executor tick.
package worldctx

import (
	"voxelpath.ai/internal/catalogs"
	"voxelpath.ai/internal/pathing/blockrules"
	"voxelpath.ai/internal/pathing/cost"
	"voxelpath.ai/internal/pathing/precompute"
	"voxelpath.ai/internal/pathing/settings"
)

// BlockSource must return the same state for the same coordinate for as long
// as one search holds it. Terrain snapshots satisfy this; the live store does not.
type BlockSource interface {
	StateAt(x, y, z int) catalogs.StateID
	IsLoaded(x, z int) bool
	// Bounds returns the lowest and highest y a block can occupy.
	Bounds() (minY, maxY int)
}

type Context struct {
	src   BlockSource
	cache *precompute.Cache
	rules *blockrules.Rules

	MinY, MaxY int

	AllowBreak            bool
	AllowDownward         bool
	AllowDiagonalDescend  bool
	CanSprint             bool
	AssumeWalkOnWater     bool
	MaxFallHeightNoWater  int
	JumpPenalty           float64
	WalkOnWaterOnePenalty float64
	BreakAdditionalCost   float64
	BreakTicksPerHardness float64
}

func New(src BlockSource, cache *precompute.Cache, rules *blockrules.Rules, s settings.Settings) *Context {
	minY, maxY := src.Bounds()
	return &Context{
		src:   src,
		cache: cache,
		rules: rules,

		MinY: minY,
		MaxY: maxY,

		AllowBreak:            s.AllowBreak,
		AllowDownward:         s.AllowDownward,
		AllowDiagonalDescend:  s.AllowDiagonalDescend,
		CanSprint:             s.AllowSprint,
		AssumeWalkOnWater:     s.AssumeWalkOnWater,
		MaxFallHeightNoWater:  s.MaxFallHeightNoWater,
		JumpPenalty:           s.JumpPenalty,
		WalkOnWaterOnePenalty: s.WalkOnWaterOnePenalty,
		BreakAdditionalCost:   s.BlockBreakAdditionalPenalty,
		BreakTicksPerHardness: s.BreakTicksPerHardness,
	}
}

func (c *Context) Source() BlockSource      { return c.src }
func (c *Context) Rules() *blockrules.Rules { return c.rules }
func (c *Context) Cache() *precompute.Cache { return c.cache }
func (c *Context) IsLoaded(x, z int) bool   { return c.src.IsLoaded(x, z) }
func (c *Context) InHeight(y int) bool      { return y >= c.MinY && y <= c.MaxY }

func (c *Context) StateAt(x, y, z int) catalogs.StateID {
	if !c.InHeight(y) {
		return catalogs.Air
	}
	return c.src.StateAt(x, y, z)
}

func (c *Context) Get(x, y, z int) catalogs.StateID { return c.StateAt(x, y, z) }

func (c *Context) CanWalkOn(x, y, z int) bool {
	return c.CanWalkOnState(x, y, z, c.StateAt(x, y, z))
}

func (c *Context) CanWalkOnState(x, y, z int, s catalogs.StateID) bool {
	return c.cache.CanWalkOn(c, x, y, z, s)
}

func (c *Context) CanWalkThrough(x, y, z int) bool {
	return c.CanWalkThroughState(x, y, z, c.StateAt(x, y, z))
}

func (c *Context) CanWalkThroughState(x, y, z int, s catalogs.StateID) bool {
	return c.cache.CanWalkThrough(c, x, y, z, s)
}

func (c *Context) FullyPassable(x, y, z int) bool {
	return c.cache.FullyPassable(c, x, y, z, c.StateAt(x, y, z))
}

func (c *Context) IsWater(x, y, z int) bool      { return c.rules.IsWater(c.StateAt(x, y, z)) }
func (c *Context) IsLava(x, y, z int) bool       { return c.rules.IsLava(c.StateAt(x, y, z)) }
func (c *Context) IsClimbable(x, y, z int) bool  { return c.rules.IsClimbable(c.StateAt(x, y, z)) }
func (c *Context) IsSoulSand(x, y, z int) bool   { return c.rules.IsSoulSand(c.StateAt(x, y, z)) }
func (c *Context) IsLiquid(x, y, z int) bool     { return c.rules.IsLiquid(c.StateAt(x, y, z)) }
func (c *Context) IsBottomSlab(x, y, z int) bool { return c.rules.IsBottomSlab(c.StateAt(x, y, z)) }
func (c *Context) Falls(x, y, z int) bool        { return c.rules.Falls(c.StateAt(x, y, z)) }

// AvoidWalkingInto reports blocks that hurt on contact, such as lava, fire or magma.
func (c *Context) AvoidWalkingInto(x, y, z int) bool {
	return c.rules.AvoidWalkingInto(c.StateAt(x, y, z))
}

// Breakable reports whether the block at the position can be mined at all,
// ignoring the allow_break setting.
func (c *Context) Breakable(x, y, z int) bool {
	def := c.rules.Def(c.StateAt(x, y, z))
	return def.Breakable() && !def.Liquid()
}

// BreakTicks is the number of ticks a body needs to mine the block.
func (c *Context) BreakTicks(x, y, z int) float64 {
	def := c.rules.Def(c.StateAt(x, y, z))
	return max(def.Hardness*c.BreakTicksPerHardness, 1)
}

// MiningDuration is the tick cost of clearing a block out of the way, zero if
// it can already be walked through and cost.CostInf if it cannot be broken.
// includeFalling adds gravity blocks stacked on top, which drop into the gap.
func (c *Context) MiningDuration(x, y, z int, includeFalling bool) float64 {
	s := c.StateAt(x, y, z)
	if c.CanWalkThroughState(x, y, z, s) {
		return 0
	}
	if !c.AllowBreak {
		return cost.CostInf
	}
	def := c.rules.Def(s)
	if !def.Breakable() || def.Liquid() {
		return cost.CostInf
	}
	if c.avoidBreaking(x, y, z) {
		return cost.CostInf
	}
	result := def.Hardness*c.BreakTicksPerHardness + c.BreakAdditionalCost
	if result <= 0 {
		result = c.BreakAdditionalCost + 1
	}
	if includeFalling && c.rules.Falls(c.StateAt(x, y+1, z)) {
		result += c.MiningDuration(x, y+1, z, true)
	}
	if result >= cost.CostInf {
		return cost.CostInf
	}
	return result
}

// avoidBreaking refuses to open a block next to liquid, which would flood the path.
func (c *Context) avoidBreaking(x, y, z int) bool {
	if c.rules.IsLiquid(c.StateAt(x, y+1, z)) {
		return true
	}
	for _, d := range [4][2]int{{1, 0}, {-1, 0}, {0, 1}, {0, -1}} {
		if c.rules.IsLiquid(c.StateAt(x+d[0], y, z+d[1])) {
			return true
		}
	}
	return false
}

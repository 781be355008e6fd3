package movement

import (
	"voxelpath.ai/internal/pathing/blockpos"
	"voxelpath.ai/internal/pathing/cost"
	"voxelpath.ai/internal/pathing/worldctx"
)

func newPillar(src, dest blockpos.Pos) *Movement {
	return newMovement(KindPillar, src, dest, dest.Up())
}

func newDownward(src, dest blockpos.Pos) *Movement {
	return newMovement(KindDownward, src, dest, dest)
}

// pillarCost climbs one block straight up a ladder, vine or water column.
// Without block placing there is no other way up.
func pillarCost(w *worldctx.Context, x, y, z int) float64 {
	ladder := w.IsClimbable(x, y, z)
	if w.IsWater(x, y+2, z) && w.IsWater(x, y, z) && w.IsWater(x, y+1, z) {
		return cost.LadderUpOneCost
	}
	if !ladder {
		return cost.CostInf
	}
	hardness := w.MiningDuration(x, y+2, z, true)
	if hardness >= cost.CostInf {
		return cost.CostInf
	}
	if hardness != 0 {
		if w.IsClimbable(x, y+2, z) {
			hardness = 0
		} else if w.Falls(x, y+3, z) && (!w.Falls(x, y+2, z) || !w.Falls(x, y+1, z)) {
			return cost.CostInf
		}
	}
	return min(cost.LadderUpOneCost+hardness*5, cost.CostInf)
}

// downwardCost drops one block straight down, either climbing down a
// ladder or mining the block underfoot.
func downwardCost(w *worldctx.Context, x, y, z int) float64 {
	if !w.AllowDownward {
		return cost.CostInf
	}
	if !w.CanWalkOn(x, y-2, z) {
		return cost.CostInf
	}
	if w.IsClimbable(x, y-1, z) {
		return cost.LadderDownOneCost
	}
	return min(cost.FallNBlocksCost[1]+w.MiningDuration(x, y-1, z, false), cost.CostInf)
}

func (m *Movement) updatePillar(w *worldctx.Context, p Player, in *Input) Status {
	feet := p.Feet(w)
	if feet.Y < m.src.Y {
		return Unreachable
	}
	if feet == m.dest {
		return Success
	}
	in.Jump = true
	moveTowards(p, in, m.src)
	return Running
}

func (m *Movement) updateDownward(w *worldctx.Context, p Player, in *Input) Status {
	feet := p.Feet(w)
	if feet == m.dest {
		return Success
	}
	if !m.InValidPosition(feet) {
		return Unreachable
	}
	early := m.numTicks < 10
	m.numTicks++
	if early && FlatDistToCenter(p.Position, m.dest) < 0.2 {
		return Running
	}
	moveTowards(p, in, m.dest)
	return Running
}

package movement

import (
	"voxelpath.ai/internal/pathing/blockpos"
	"voxelpath.ai/internal/pathing/cost"
	"voxelpath.ai/internal/pathing/worldctx"
)

func newTraverse(src, dest blockpos.Pos) *Movement {
	return newMovement(KindTraverse, src, dest, dest.Up(), dest)
}

// traverseCost walks one block horizontally at the same height. There is no
// bridging: the block under the destination must already carry weight.
func traverseCost(w *worldctx.Context, x, y, z, destX, destZ int) float64 {
	if !w.CanWalkOn(destX, y-1, destZ) {
		return cost.CostInf
	}
	wc := cost.WalkOneBlockCost
	water := false
	if w.IsWater(destX, y+1, destZ) || w.IsWater(destX, y, destZ) {
		wc = cost.WalkOneInWaterCost
		water = true
	} else {
		if w.IsWater(destX, y-1, destZ) {
			wc += w.WalkOnWaterOnePenalty
		}
		if w.IsSoulSand(x, y-1, z) {
			wc += (cost.WalkOneOverSoulSandCost - cost.WalkOneBlockCost) / 2
		}
		if w.IsSoulSand(destX, y-1, destZ) {
			wc += (cost.WalkOneOverSoulSandCost - cost.WalkOneBlockCost) / 2
		}
	}
	feet := w.MiningDuration(destX, y, destZ, false)
	if feet >= cost.CostInf {
		return cost.CostInf
	}
	head := w.MiningDuration(destX, y+1, destZ, true)
	if feet == 0 && head == 0 {
		if !water && w.CanSprint {
			wc *= cost.SprintMultiplier
		}
		return wc
	}
	if w.IsClimbable(x, y-1, z) {
		// Mining from a ladder is slow: no ground to stand on.
		feet *= 5
		head *= 5
	}
	return min(wc+feet+head, cost.CostInf)
}

func (m *Movement) updateTraverse(w *worldctx.Context, p Player, in *Input) Status {
	feet := p.Feet(w)
	ladder := w.IsClimbable(m.src.X, m.src.Y-1, m.src.Z)
	if feet.Y != m.dest.Y && !ladder {
		if feet.Y < m.dest.Y {
			return Unreachable
		}
		return Running
	}
	if !w.CanWalkOn(m.dest.X, m.dest.Y-1, m.dest.Z) && !ladder {
		return Unreachable
	}
	if feet == m.dest {
		return Success
	}
	if p.Position.Y() > float64(m.src.Y)+0.1 && !p.OnGround &&
		(w.IsClimbable(m.src.X, m.src.Y, m.src.Z) || w.IsClimbable(m.src.X, m.src.Y+1, m.src.Z)) {
		// Pushing forward against a ladder climbs it; wait to land first.
		return Running
	}
	d := m.Direction()
	into := m.dest.Add(d.X, 0, d.Z)
	if !w.IsLiquid(feet.X, feet.Y, feet.Z) &&
		(!w.AvoidWalkingInto(into.X, into.Y, into.Z) || w.IsWater(into.X, into.Y, into.Z)) &&
		!w.AvoidWalkingInto(into.X, into.Y+1, into.Z) {
		in.Sprint = w.CanSprint
	}
	moveTowards(p, in, m.dest)
	return Running
}

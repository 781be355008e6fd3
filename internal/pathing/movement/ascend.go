package movement

import (
	"math"

	"voxelpath.ai/internal/pathing/blockpos"
	"voxelpath.ai/internal/pathing/cost"
	"voxelpath.ai/internal/pathing/worldctx"
)

func newAscend(src, dest blockpos.Pos) *Movement {
	return newMovement(KindAscend, src, dest, dest, src.Add(0, 2, 0), dest.Up())
}

// ascendCost jumps up one block onto an existing block.
func ascendCost(w *worldctx.Context, x, y, z, destX, destZ int) float64 {
	if !w.CanWalkOn(destX, y, destZ) {
		return cost.CostInf
	}
	// Breaking the block over our head would drop a gravity block onto us,
	// unless the head block is itself part of the same falling column.
	if w.Falls(x, y+3, z) && (w.CanWalkThrough(x, y+1, z) || !w.Falls(x, y+2, z)) {
		return cost.CostInf
	}
	if w.IsClimbable(x, y-1, z) {
		return cost.CostInf
	}
	fromSlab := w.IsBottomSlab(x, y-1, z)
	toSlab := w.IsBottomSlab(destX, y, destZ)
	if fromSlab && !toSlab {
		// A slab to a full block is 1.5 high, more than a jump clears.
		return cost.CostInf
	}
	var walk float64
	switch {
	case toSlab && !fromSlab:
		walk = cost.WalkOneBlockCost
	case toSlab:
		walk = max(cost.JumpOneBlockCost, cost.WalkOneBlockCost) + w.JumpPenalty
	case w.IsSoulSand(destX, y, destZ):
		walk = cost.WalkOneOverSoulSandCost + w.JumpPenalty
	default:
		walk = max(cost.JumpOneBlockCost, cost.WalkOneBlockCost) + w.JumpPenalty
	}
	total := walk + w.MiningDuration(x, y+2, z, false)
	if total >= cost.CostInf {
		return cost.CostInf
	}
	total += w.MiningDuration(destX, y+1, destZ, false)
	if total >= cost.CostInf {
		return cost.CostInf
	}
	total += w.MiningDuration(destX, y+2, destZ, true)
	return min(total, cost.CostInf)
}

func (m *Movement) updateAscend(w *worldctx.Context, p Player, in *Input) Status {
	feet := p.Feet(w)
	d := m.Direction()
	if feet == m.dest || feet == m.dest.Add(d.X, 0, d.Z) {
		return Success
	}
	if !w.CanWalkOn(m.dest.X, m.dest.Y-1, m.dest.Z) {
		return Unreachable
	}
	moveTowards(p, in, m.dest)
	if w.IsBottomSlab(m.dest.X, m.dest.Y-1, m.dest.Z) && !w.IsBottomSlab(m.src.X, m.src.Y-1, m.src.Z) {
		// A half step is climbed by walking.
		return Running
	}
	if feet == m.src.Up() {
		return Running
	}
	xAxis := math.Abs(float64(d.X))
	zAxis := math.Abs(float64(d.Z))
	cx := float64(m.dest.X) + 0.5
	cz := float64(m.dest.Z) + 0.5
	flatDistToNext := xAxis*math.Abs(cx-p.Position.X()) + zAxis*math.Abs(cz-p.Position.Z())
	sideDist := zAxis*math.Abs(cx-p.Position.X()) + xAxis*math.Abs(cz-p.Position.Z())
	lateral := xAxis*p.Velocity.Z() + zAxis*p.Velocity.X()
	if math.Abs(lateral) > 0.1 {
		return Running
	}
	if m.headBonkClear(w) {
		in.Jump = true
		return Running
	}
	if flatDistToNext > 1.2 || sideDist > 0.2 {
		return Running
	}
	in.Jump = true
	return Running
}

// headBonkClear reports that nothing around the head can stop a jump early.
func (m *Movement) headBonkClear(w *worldctx.Context) bool {
	top := m.src.Add(0, 2, 0)
	for _, d := range [4][2]int{{1, 0}, {-1, 0}, {0, 1}, {0, -1}} {
		if !w.CanWalkThrough(top.X+d[0], top.Y, top.Z+d[1]) {
			return false
		}
	}
	return true
}

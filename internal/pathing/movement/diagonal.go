package movement

import (
	"math"

	"voxelpath.ai/internal/pathing/blockpos"
	"voxelpath.ai/internal/pathing/cost"
	"voxelpath.ai/internal/pathing/worldctx"
)

func newDiagonal(src, dest blockpos.Pos) *Movement {
	diagA := blockpos.New(src.X, src.Y, dest.Z)
	diagB := blockpos.New(dest.X, src.Y, src.Z)
	return newMovement(KindDiagonal, src, dest, diagA, diagA.Up(), diagB, diagB.Up(), dest, dest.Up())
}

// diagonalCost moves one block on both horizontal axes, at the same height
// or, when allowed, one lower. It never breaks anything: with one corner
// blocked the body edges along the other one.
func diagonalCost(w *worldctx.Context, x, y, z, destX, destZ int, res *Result) {
	if !w.CanWalkThrough(destX, y+1, destZ) {
		return
	}
	if !w.CanWalkThrough(destX, y, destZ) {
		// Diagonal ascend would need a jump around a corner.
		return
	}
	descend := false
	walkOnY := y - 1
	if !w.CanWalkOn(destX, y-1, destZ) {
		descend = true
		if !w.AllowDiagonalDescend || !w.CanWalkOn(destX, y-2, destZ) || !w.CanWalkThrough(destX, y-1, destZ) {
			return
		}
		walkOnY = y - 2
	}
	multiplier := cost.WalkOneBlockCost
	if w.IsSoulSand(destX, walkOnY, destZ) {
		multiplier += (cost.WalkOneOverSoulSandCost - cost.WalkOneBlockCost) / 2
	} else if w.IsWater(destX, walkOnY, destZ) {
		multiplier += w.WalkOnWaterOnePenalty * math.Sqrt2
	}
	if w.IsClimbable(x, y-1, z) {
		return
	}
	if w.IsSoulSand(x, y-1, z) {
		multiplier += (cost.WalkOneOverSoulSandCost - cost.WalkOneBlockCost) / 2
	}
	// Cutting the corner puts a foot over both side blocks.
	if w.AvoidWalkingInto(x, y-1, destZ) || w.AvoidWalkingInto(destX, y-1, z) {
		return
	}
	water := false
	if w.IsWater(x, y, z) || w.IsWater(destX, y, destZ) {
		multiplier = cost.WalkOneInWaterCost
		water = true
	}
	optionA := w.MiningDuration(x, y, destZ, false)
	optionB := w.MiningDuration(destX, y, z, false)
	if optionA != 0 && optionB != 0 {
		return
	}
	optionA += w.MiningDuration(x, y+1, destZ, true)
	if optionA != 0 && optionB != 0 {
		return
	}
	if optionA == 0 && ((w.AvoidWalkingInto(destX, y, z) && !w.IsWater(destX, y, z)) || w.AvoidWalkingInto(destX, y+1, z)) {
		return
	}
	optionB += w.MiningDuration(destX, y+1, z, true)
	if optionA != 0 && optionB != 0 {
		return
	}
	if optionB == 0 && ((w.AvoidWalkingInto(x, y, destZ) && !w.IsWater(x, y, destZ)) || w.AvoidWalkingInto(x, y+1, destZ)) {
		return
	}
	if optionA != 0 || optionB != 0 {
		multiplier *= math.Sqrt2 - 0.001
		if w.IsClimbable(x, y, z) {
			return
		}
	} else if w.CanSprint && !water {
		multiplier *= cost.SprintMultiplier
	}
	res.X, res.Z = destX, destZ
	res.Y = y
	res.Cost = multiplier * math.Sqrt2
	if descend {
		res.Cost += max(cost.FallNBlocksCost[1], cost.CenterAfterFallCost)
		res.Y = y - 1
	}
}

func (m *Movement) updateDiagonal(w *worldctx.Context, p Player, in *Input) Status {
	feet := p.Feet(w)
	if feet == m.dest {
		return Success
	}
	if !m.InValidPosition(feet) && !(w.IsLiquid(m.src.X, m.src.Y, m.src.Z) && m.InValidPosition(feet.Up())) {
		return Unreachable
	}
	in.Sprint = m.sprintable(w, feet)
	moveTowards(p, in, m.dest)
	return Running
}

// sprintable requires both corners open, otherwise the body scrapes along
// the blocked one.
func (m *Movement) sprintable(w *worldctx.Context, feet blockpos.Pos) bool {
	if !w.CanSprint || w.IsLiquid(feet.X, feet.Y, feet.Z) {
		return false
	}
	for _, b := range m.toBreak[:4] {
		if !w.CanWalkThrough(b.X, b.Y, b.Z) {
			return false
		}
	}
	return true
}

package movement

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"voxelpath.ai/internal/pathing/blockpos"
	"voxelpath.ai/internal/pathing/cost"
	"voxelpath.ai/internal/pathing/worldctx"
)

// unprotectedLadderReset is the longest drop after which grabbing a ladder
// or vine still cancels the accumulated fall.
const unprotectedLadderReset = 11

func newDescend(src, dest blockpos.Pos) *Movement {
	return newMovement(KindDescend, src, dest, dest.Add(0, 2, 0), dest.Up(), dest)
}

// newFall clears the destination column from one above the start height
// down to the landing cell.
func newFall(src, dest blockpos.Pos) *Movement {
	n := src.Y - dest.Y + 2
	toBreak := make([]blockpos.Pos, n)
	for i := range toBreak {
		toBreak[i] = blockpos.New(dest.X, src.Y+1-i, dest.Z)
	}
	return newMovement(KindFall, src, dest, toBreak...)
}

// descendCost steps off the edge onto a block one lower. When nothing
// catches the body there it hands over to dynamicFallCost, which may land
// further down; res.Y tells the two apart.
func descendCost(w *worldctx.Context, x, y, z, destX, destZ int, res *Result) {
	total := w.MiningDuration(destX, y-1, destZ, false)
	if total >= cost.CostInf {
		return
	}
	total += w.MiningDuration(destX, y, destZ, false)
	if total >= cost.CostInf {
		return
	}
	total += w.MiningDuration(destX, y+1, destZ, true)
	if total >= cost.CostInf {
		return
	}
	if w.IsClimbable(x, y-1, z) {
		return
	}
	if !w.CanWalkOn(destX, y-2, destZ) {
		dynamicFallCost(w, x, y, z, destX, destZ, total, res)
		return
	}
	if w.IsClimbable(destX, y-1, destZ) {
		return
	}
	walk := cost.WalkOffBlockCost
	if w.IsSoulSand(x, y-1, z) {
		walk *= cost.WalkOneOverSoulSandCost / cost.WalkOneBlockCost
	}
	res.X, res.Y, res.Z = destX, y-1, destZ
	res.Cost = total + walk + max(cost.FallNBlocksCost[1], cost.CenterAfterFallCost)
}

// dynamicFallCost scans down the destination column for somewhere to land:
// water deep enough to break the fall, a ladder that resets it, or solid
// ground within the safe fall height.
func dynamicFallCost(w *worldctx.Context, x, y, z, destX, destZ int, frontBreak float64, res *Result) {
	if !w.CanWalkThrough(destX, y-2, destZ) {
		return
	}
	costSoFar := 0.0
	effectiveStart := y
	for fallHeight := 3; ; fallHeight++ {
		newY := y - fallHeight
		if newY < w.MinY {
			return
		}
		unprotected := fallHeight - (y - effectiveStart)
		tentative := cost.WalkOffBlockCost + cost.TicksToFall(unprotected) + frontBreak + costSoFar
		if w.IsWater(destX, newY, destZ) {
			if !w.CanWalkThrough(destX, newY, destZ) || w.AssumeWalkOnWater {
				return
			}
			if !w.CanWalkOn(destX, newY-1, destZ) {
				return
			}
			res.X, res.Y, res.Z = destX, newY, destZ
			res.Cost = tentative
			return
		}
		if unprotected <= unprotectedLadderReset && w.IsClimbable(destX, newY, destZ) {
			costSoFar += cost.TicksToFall(unprotected-1) + cost.LadderDownOneCost
			effectiveStart = newY
			continue
		}
		if w.CanWalkThrough(destX, newY, destZ) {
			continue
		}
		if !w.CanWalkOn(destX, newY, destZ) || w.IsBottomSlab(destX, newY, destZ) {
			return
		}
		if unprotected <= w.MaxFallHeightNoWater+1 {
			res.X, res.Y, res.Z = destX, newY+1, destZ
			res.Cost = tentative
		}
		return
	}
}

func (m *Movement) updateDescend(w *worldctx.Context, p Player, in *Input) Status {
	feet := p.Feet(w)
	fakeDest := blockpos.New(2*m.dest.X-m.src.X, m.dest.Y, 2*m.dest.Z-m.src.Z)
	if (feet == m.dest || feet == fakeDest) &&
		(w.IsLiquid(m.dest.X, m.dest.Y, m.dest.Z) || p.Position.Y()-float64(m.dest.Y) < 0.5) {
		return Success
	}
	ab := FlatDistToCenter(p.Position, m.dest)
	fromStart := FlatDistToCenter(p.Position, m.src)
	if feet != m.dest || ab > 0.25 {
		// Aim past the edge first so the body clears it instead of
		// catching on the corner.
		early := m.numTicks < 20
		m.numTicks++
		if early && fromStart < 1.25 {
			moveTowards(p, in, fakeDest)
		} else {
			moveTowards(p, in, m.dest)
		}
	}
	return Running
}

func (m *Movement) updateFall(w *worldctx.Context, p Player, in *Input) Status {
	feet := p.Feet(w)
	water := w.IsWater(m.dest.X, m.dest.Y, m.dest.Z)
	if feet == m.dest && (p.Position.Y()-float64(feet.Y) < 0.094 || water) {
		return Success
	}
	c := Center(m.dest)
	next := p.Position.Add(p.Velocity)
	if math.Abs(next.X()-c.X()) > 0.1 || math.Abs(next.Z()-c.Z()) > 0.1 {
		if !p.OnGround && math.Abs(p.Velocity.Y()) > 0.4 {
			in.Sneak = true
		}
		in.Move = true
	}
	avoid := m.src.Sub(m.dest)
	dist := math.Abs(float64(avoid.X)*(c.X()-float64(avoid.X)/2-p.Position.X())) +
		math.Abs(float64(avoid.Z)*(c.Z()-float64(avoid.Z)/2-p.Position.Z()))
	if dist < 0.6 {
		in.Move = true
	} else if !p.OnGround {
		in.Sneak = false
	}
	// Aim slightly away from the ledge we dropped off.
	in.Target = mgl64.Vec3{c.X() + 0.125*float64(avoid.X), p.Position.Y(), c.Z() + 0.125*float64(avoid.Z)}
	if !in.Move {
		in.Target = mgl64.Vec3{}
	}
	return Running
}

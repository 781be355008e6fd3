// Package goals defines search targets: a predicate over block positions and
// an admissible-ish heuristic in ticks guiding the search toward it.
package goals

import (
	"fmt"
	"math"
	"reflect"

	"voxelpath.ai/internal/pathing/blockpos"
	"voxelpath.ai/internal/pathing/cost"
)

type Goal interface {
	IsInGoal(x, y, z int) bool
	Heuristic(x, y, z int) float64
}

// AtGoal is implemented by goals whose heuristic value inside the goal is not zero.
type AtGoal interface {
	GoalHeuristic() float64
}

// Positioned goals target one block; the search may relax them to XZ when
// their column is not loaded.
type Positioned interface {
	GoalPos() blockpos.Pos
}

// HeuristicAtGoal returns the heuristic value a goal reports once satisfied.
func HeuristicAtGoal(g Goal) float64 {
	if a, ok := g.(AtGoal); ok {
		return a.GoalHeuristic()
	}
	return 0
}

// Equal compares goals structurally. Composite goals hold slices so == is not usable.
func Equal(a, b Goal) bool { return reflect.DeepEqual(a, b) }

// Block is one exact position.
type Block struct{ X, Y, Z int }

func (g Block) IsInGoal(x, y, z int) bool { return x == g.X && y == g.Y && z == g.Z }

func (g Block) Heuristic(x, y, z int) float64 {
	return blockHeuristic(x-g.X, y-g.Y, z-g.Z)
}

func (g Block) GoalPos() blockpos.Pos { return blockpos.New(g.X, g.Y, g.Z) }
func (g Block) String() string        { return fmt.Sprintf("Block{%d,%d,%d}", g.X, g.Y, g.Z) }

// blockHeuristic charges vertical and horizontal distance separately. dy is
// the position minus the goal, so positive dy means the goal is below.
func blockHeuristic(dx, dy, dz int) float64 {
	return yLevelHeuristic(0, dy) + xzHeuristic(float64(dx), float64(dz))
}

// xzHeuristic walks diagonally as far as possible, then straight.
func xzHeuristic(dx, dz float64) float64 {
	x := math.Abs(dx)
	z := math.Abs(dz)
	var straight, diagonal float64
	if x < z {
		straight = z - x
		diagonal = x
	} else {
		straight = x - z
		diagonal = z
	}
	diagonal *= math.Sqrt2
	return (diagonal + straight) * cost.CostHeuristic
}

func yLevelHeuristic(goalY, currentY int) float64 {
	switch {
	case currentY > goalY:
		// Falling two blocks is the cheapest per-block descent.
		return cost.FallNBlocksCost[2] / 2 * float64(currentY-goalY)
	case currentY < goalY:
		return float64(goalY-currentY) * cost.JumpOneBlockCost
	}
	return 0
}

// XZ ignores height. It is the goal long-range searches are relaxed to.
type XZ struct{ X, Z int }

func (g XZ) IsInGoal(x, _, z int) bool { return x == g.X && z == g.Z }

func (g XZ) Heuristic(x, _, z int) float64 {
	return xzHeuristic(float64(x-g.X), float64(z-g.Z))
}

func (g XZ) String() string { return fmt.Sprintf("XZ{%d,%d}", g.X, g.Z) }

type YLevel struct{ Level int }

func (g YLevel) IsInGoal(_, y, _ int) bool { return y == g.Level }

func (g YLevel) Heuristic(_, y, _ int) float64 { return yLevelHeuristic(g.Level, y) }

func (g YLevel) String() string { return fmt.Sprintf("YLevel{%d}", g.Level) }

// Near is satisfied anywhere within a sphere but keeps pulling toward its center.
type Near struct {
	X, Y, Z int
	RangeSq int
}

// NewNear panics on a negative range.
func NewNear(center blockpos.Pos, r int) Near {
	if r < 0 {
		panic(fmt.Sprintf("goals: negative Near range %d", r))
	}
	return Near{X: center.X, Y: center.Y, Z: center.Z, RangeSq: r * r}
}

func (g Near) IsInGoal(x, y, z int) bool {
	dx, dy, dz := x-g.X, y-g.Y, z-g.Z
	return dx*dx+dy*dy+dz*dz <= g.RangeSq
}

func (g Near) Heuristic(x, y, z int) float64 {
	return blockHeuristic(x-g.X, y-g.Y, z-g.Z)
}

// GoalHeuristic is the largest heuristic value that only occurs inside the
// sphere, so an agent that reached the edge reports zero remaining distance.
func (g Near) GoalHeuristic() float64 {
	r := int(math.Ceil(math.Sqrt(float64(g.RangeSq))))
	return boundaryHeuristic(g, g.X-r, g.X+r, g.Y-r, g.Y+r, g.Z-r, g.Z+r)
}

func (g Near) GoalPos() blockpos.Pos { return blockpos.New(g.X, g.Y, g.Z) }

func (g Near) String() string {
	return fmt.Sprintf("Near{%d,%d,%d r=%.1f}", g.X, g.Y, g.Z, math.Sqrt(float64(g.RangeSq)))
}

// boundaryHeuristic scans a box and returns the highest heuristic seen inside
// the goal that is still lower than every heuristic seen outside it.
func boundaryHeuristic(g Goal, minX, maxX, minY, maxY, minZ, maxZ int) float64 {
	var inside []float64
	minOutside := math.Inf(1)
	for x := minX; x <= maxX; x++ {
		for y := minY; y <= maxY; y++ {
			for z := minZ; z <= maxZ; z++ {
				h := g.Heuristic(x, y, z)
				if h < minOutside && g.IsInGoal(x, y, z) {
					inside = append(inside, h)
				} else {
					minOutside = math.Min(minOutside, h)
				}
			}
		}
	}
	maxInside := math.Inf(-1)
	for _, h := range inside {
		if h < minOutside && h > maxInside {
			maxInside = h
		}
	}
	return maxInside
}

// TwoBlocks is satisfied when either cell of a two-tall agent occupies the
// target, i.e. the feet are at the target or one below it.
type TwoBlocks struct{ X, Y, Z int }

func (g TwoBlocks) IsInGoal(x, y, z int) bool {
	return x == g.X && (y == g.Y || y == g.Y-1) && z == g.Z
}

func (g TwoBlocks) Heuristic(x, y, z int) float64 {
	dy := y - g.Y
	if dy < 0 {
		dy++
	}
	return blockHeuristic(x-g.X, dy, z-g.Z)
}

func (g TwoBlocks) GoalPos() blockpos.Pos { return blockpos.New(g.X, g.Y, g.Z) }
func (g TwoBlocks) String() string        { return fmt.Sprintf("TwoBlocks{%d,%d,%d}", g.X, g.Y, g.Z) }

// GetToBlock is satisfied next to the target so that it can be touched.
// Standing on top counts, as does having the head directly beneath it.
type GetToBlock struct{ X, Y, Z int }

func (g GetToBlock) IsInGoal(x, y, z int) bool {
	dx, dy, dz := x-g.X, y-g.Y, z-g.Z
	if dy < 0 {
		dy++
	}
	return blockpos.AbsInt(dx)+blockpos.AbsInt(dy)+blockpos.AbsInt(dz) <= 1
}

func (g GetToBlock) Heuristic(x, y, z int) float64 {
	dy := y - g.Y
	if dy < -1 {
		dy += 2
	}
	return blockHeuristic(x-g.X, dy, z-g.Z)
}

func (g GetToBlock) GoalPos() blockpos.Pos { return blockpos.New(g.X, g.Y, g.Z) }
func (g GetToBlock) String() string        { return fmt.Sprintf("GetToBlock{%d,%d,%d}", g.X, g.Y, g.Z) }

// Composite is satisfied when any member is. An empty composite is never satisfied.
type Composite struct{ Goals []Goal }

func NewComposite(gs ...Goal) *Composite { return &Composite{Goals: gs} }

func (g *Composite) IsInGoal(x, y, z int) bool {
	for _, sub := range g.Goals {
		if sub.IsInGoal(x, y, z) {
			return true
		}
	}
	return false
}

func (g *Composite) Heuristic(x, y, z int) float64 {
	best := math.MaxFloat64
	for _, sub := range g.Goals {
		best = math.Min(best, sub.Heuristic(x, y, z))
	}
	return best
}

func (g *Composite) GoalHeuristic() float64 {
	best := math.MaxFloat64
	for _, sub := range g.Goals {
		best = math.Min(best, HeuristicAtGoal(sub))
	}
	return best
}

func (g *Composite) String() string { return fmt.Sprintf("Composite%v", g.Goals) }

// Inverted paths away from its origin. It is never satisfied, so searches
// toward it always end as best-effort segments.
type Inverted struct{ Origin Goal }

func (g Inverted) IsInGoal(int, int, int) bool { return false }

func (g Inverted) Heuristic(x, y, z int) float64 { return -g.Origin.Heuristic(x, y, z) }

func (g Inverted) GoalHeuristic() float64 { return math.Inf(-1) }

func (g Inverted) String() string { return fmt.Sprintf("Inverted{%v}", g.Origin) }

// RunAway is satisfied once every origin is at least sqrt(DistanceSq) away
// horizontally, optionally at a fixed y.
type RunAway struct {
	From       []blockpos.Pos
	DistanceSq int
	MaintainY  *int
}

func NewRunAway(distance int, maintainY *int, from ...blockpos.Pos) *RunAway {
	if len(from) == 0 {
		panic("goals: RunAway needs at least one origin")
	}
	if distance < 0 {
		panic(fmt.Sprintf("goals: negative RunAway distance %d", distance))
	}
	return &RunAway{From: from, DistanceSq: distance * distance, MaintainY: maintainY}
}

func (g *RunAway) IsInGoal(x, y, z int) bool {
	if g.MaintainY != nil && *g.MaintainY != y {
		return false
	}
	for _, p := range g.From {
		dx, dz := x-p.X, z-p.Z
		if dx*dx+dz*dz < g.DistanceSq {
			return false
		}
	}
	return true
}

func (g *RunAway) Heuristic(x, y, z int) float64 {
	nearest := math.MaxFloat64
	for _, p := range g.From {
		nearest = math.Min(nearest, xzHeuristic(float64(x-p.X), float64(z-p.Z)))
	}
	h := -nearest
	if g.MaintainY != nil {
		h = h*0.6 + yLevelHeuristic(*g.MaintainY, y)*1.5
	}
	return h
}

func (g *RunAway) GoalHeuristic() float64 {
	d := int(math.Ceil(math.Sqrt(float64(g.DistanceSq))))
	minX, maxX := g.From[0].X, g.From[0].X
	minZ, maxZ := g.From[0].Z, g.From[0].Z
	for _, p := range g.From[1:] {
		minX, maxX = min(minX, p.X), max(maxX, p.X)
		minZ, maxZ = min(minZ, p.Z), max(maxZ, p.Z)
	}
	y := 0
	if g.MaintainY != nil {
		y = *g.MaintainY
	}
	return boundaryHeuristic(g, minX-d, maxX+d, y, y, minZ-d, maxZ+d)
}

func (g *RunAway) String() string {
	return fmt.Sprintf("RunAway{from=%v d=%.1f}", g.From, math.Sqrt(float64(g.DistanceSq)))
}

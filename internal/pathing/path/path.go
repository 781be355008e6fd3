// Package path holds calculated paths. A Path never changes once built;
// trimming and splicing return new values that share the movement slice.
package path

import (
	"fmt"

	"voxelpath.ai/internal/pathing/blockpos"
	"voxelpath.ai/internal/pathing/goals"
	"voxelpath.ai/internal/pathing/movement"
	"voxelpath.ai/internal/pathing/worldctx"
)

type Path struct {
	positions []blockpos.Pos
	movements []*movement.Movement
	goal      goals.Goal
	numNodes  int
}

// Raw is a search result before movements are assembled. Costs[i] is the
// cost-so-far recorded on the node at Positions[i].
type Raw struct {
	Positions []blockpos.Pos
	Costs     []float64
	NumNodes  int
	Goal      goals.Goal
}

// Sketch builds a path with positions only. It is what a search publishes
// while still running; it cannot be executed.
func Sketch(positions []blockpos.Pos, goal goals.Goal, numNodes int) *Path {
	return &Path{positions: positions, goal: goal, numNodes: numNodes}
}

// PostProcess turns a raw search result into an executable path. Each edge
// is re-derived from the move table against w and priced at the lower of
// its recomputed cost and the cost the search recorded, which may include
// favoring. If some edge can no longer be derived the path ends before it.
func PostProcess(w *worldctx.Context, raw Raw) *Path {
	if len(raw.Positions) == 0 {
		panic("path: empty")
	}
	if len(raw.Costs) != len(raw.Positions) {
		panic(fmt.Sprintf("path: %d positions but %d costs", len(raw.Positions), len(raw.Costs)))
	}
	p := &Path{positions: raw.Positions, goal: raw.Goal, numNodes: raw.NumNodes}
	movements := make([]*movement.Movement, 0, len(raw.Positions)-1)
	for i := 0; i+1 < len(raw.Positions); i++ {
		m := movement.Derive(w, raw.Positions[i], raw.Positions[i+1])
		if m == nil {
			break
		}
		m.Override(min(m.CalculateCost(w), raw.Costs[i+1]-raw.Costs[i]))
		movements = append(movements, m)
	}
	for _, m := range movements {
		m.CheckLoadedChunk(w)
	}
	p.movements = movements
	if len(movements) != len(raw.Positions)-1 {
		p = p.Cutoff(0, len(movements))
	}
	p.sanityCheck()
	return p
}

func (p *Path) Positions() []blockpos.Pos         { return p.positions }
func (p *Path) Movements() []*movement.Movement   { return p.movements }
func (p *Path) Goal() goals.Goal                  { return p.goal }
func (p *Path) NumNodesConsidered() int           { return p.numNodes }
func (p *Path) Length() int                       { return len(p.positions) }
func (p *Path) Src() blockpos.Pos                 { return p.positions[0] }
func (p *Path) Dest() blockpos.Pos                { return p.positions[len(p.positions)-1] }
func (p *Path) Assembled() bool                   { return len(p.movements) == len(p.positions)-1 }
func (p *Path) Movement(i int) *movement.Movement { return p.movements[i] }
func (p *Path) Position(i int) blockpos.Pos       { return p.positions[i] }

// ReachesGoal reports whether the last position satisfies the goal.
func (p *Path) ReachesGoal() bool {
	d := p.Dest()
	return p.goal != nil && p.goal.IsInGoal(d.X, d.Y, d.Z)
}

// Contains reports whether pos is one of the path's positions.
func (p *Path) Contains(pos blockpos.Pos) bool { return p.IndexOf(pos) >= 0 }

func (p *Path) IndexOf(pos blockpos.Pos) int {
	for i, q := range p.positions {
		if q == pos {
			return i
		}
	}
	return -1
}

// TotalCost sums the recorded movement costs.
func (p *Path) TotalCost() float64 { return p.TicksRemainingFrom(0) }

// TicksRemainingFrom sums the recorded costs of movements from index i on.
func (p *Path) TicksRemainingFrom(i int) float64 {
	sum := 0.0
	for j := max(i, 0); j < len(p.movements); j++ {
		sum += p.movements[j].Cost()
	}
	return sum
}

// Cutoff keeps positions first..last inclusive and the movements between them.
func (p *Path) Cutoff(first, last int) *Path {
	if first < 0 || last >= len(p.positions) || first > last {
		panic(fmt.Sprintf("path: bad cutoff [%d,%d] of %d", first, last, len(p.positions)))
	}
	out := &Path{positions: p.positions[first : last+1], goal: p.goal, numNodes: p.numNodes}
	if p.movements != nil {
		out.movements = p.movements[first:min(last, len(p.movements))]
	}
	out.sanityCheck()
	return out
}

// CutoffAtLoadedChunks ends the path at the last position before the first
// unloaded column. Disabled, it returns p unchanged.
func (p *Path) CutoffAtLoadedChunks(isLoaded func(x, z int) bool, enabled bool) *Path {
	if !enabled {
		return p
	}
	for i, pos := range p.positions {
		if !isLoaded(pos.X, pos.Z) {
			return p.Cutoff(0, max(i-1, 0))
		}
	}
	return p
}

// StaticCutoff shortens a long path that does not reach the goal, since its
// far end was planned against the least reliable information.
func (p *Path) StaticCutoff(goal goals.Goal, minLength int, factor float64) *Path {
	if p.Length() < minLength {
		return p
	}
	if goal == nil {
		return p
	}
	d := p.Dest()
	if goal.IsInGoal(d.X, d.Y, d.Z) {
		return p
	}
	last := int(float64(p.Length()-minLength)*factor) + minLength - 1
	return p.Cutoff(0, last)
}

// Splice joins second onto first when second starts where first ends. With
// allowOverlap, first is cut at its earliest position that second also
// visits; without it, any such overlap rejects the splice.
func Splice(first, second *Path, allowOverlap bool) (*Path, bool) {
	if first == nil || second == nil {
		return nil, false
	}
	if !goals.Equal(first.goal, second.goal) {
		return nil, false
	}
	if first.Dest() != second.Src() {
		return nil, false
	}
	inSecond := make(map[blockpos.Pos]struct{}, len(second.positions))
	for _, pos := range second.positions {
		inSecond[pos] = struct{}{}
	}
	firstInSecond := -1
	for i := 0; i < first.Length()-1; i++ {
		if _, ok := inSecond[first.positions[i]]; ok {
			firstInSecond = i
			break
		}
	}
	if firstInSecond != -1 {
		if !allowOverlap {
			return nil, false
		}
	} else {
		firstInSecond = first.Length() - 1
	}
	posInSecond := second.IndexOf(first.positions[firstInSecond])
	if !allowOverlap && posInSecond != 0 {
		panic("path: splice point is not the start of the second path")
	}
	positions := make([]blockpos.Pos, 0, firstInSecond+second.Length()-posInSecond)
	positions = append(positions, first.positions[:firstInSecond+1]...)
	positions = append(positions, second.positions[posInSecond+1:]...)
	movements := make([]*movement.Movement, 0, len(positions)-1)
	movements = append(movements, first.movements[:firstInSecond]...)
	movements = append(movements, second.movements[posInSecond:]...)
	out := &Path{
		positions: positions,
		movements: movements,
		goal:      first.goal,
		numNodes:  first.numNodes + second.numNodes,
	}
	out.sanityCheck()
	return out, true
}

// sanityCheck panics when positions and movements disagree, which would
// mean a bug in assembly, cutting or splicing.
func (p *Path) sanityCheck() {
	if len(p.positions) == 0 {
		panic("path: empty")
	}
	if p.movements == nil {
		return
	}
	if len(p.movements) != len(p.positions)-1 {
		panic(fmt.Sprintf("path: %d movements for %d positions", len(p.movements), len(p.positions)))
	}
	seen := make(map[blockpos.Pos]struct{}, len(p.positions))
	for i, m := range p.movements {
		if m.Src() != p.positions[i] || m.Dest() != p.positions[i+1] {
			panic(fmt.Sprintf("path: movement %d goes %v->%v, positions say %v->%v", i, m.Src(), m.Dest(), p.positions[i], p.positions[i+1]))
		}
	}
	for _, pos := range p.positions {
		if _, ok := seen[pos]; ok {
			panic(fmt.Sprintf("path: position %v visited twice", pos))
		}
		seen[pos] = struct{}{}
	}
}

func (p *Path) String() string {
	return fmt.Sprintf("Path{%v->%v len=%d nodes=%d}", p.Src(), p.Dest(), p.Length(), p.numNodes)
}

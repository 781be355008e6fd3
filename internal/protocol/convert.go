package protocol

import (
	"fmt"
	"math"
	"time"

	"voxelpath.ai/internal/pathing/behavior"
	"voxelpath.ai/internal/pathing/goals"
	"voxelpath.ai/internal/pathing/path"
)

// GoalSpec describes g for the wire; nil for no goal or one with no wire form.
func GoalSpec(g goals.Goal) *goals.Spec {
	if g == nil {
		return nil
	}
	s, ok := goals.Describe(g)
	if !ok {
		return nil
	}
	return &s
}

func NewPathEvent(e behavior.Event) PathEventMsg {
	return PathEventMsg{
		Type:            TypePathEvent,
		ProtocolVersion: Version,
		Tick:            e.Tick,
		Event:           e.Type.String(),
		Feet:            e.Feet.ToArray(),
	}
}

func NewCalc(r behavior.CalcRecord) CalcMsg {
	m := CalcMsg{
		Type:            TypeCalc,
		ProtocolVersion: Version,
		Tick:            r.Tick,
		Start:           r.Start.ToArray(),
		Goal:            GoalSpec(r.Goal),
		GoalText:        fmt.Sprint(r.Goal),
		Simplified:      r.Simplified,
		PlanAhead:       r.PlanAhead,
		Result:          r.Result.String(),
		NumNodes:        r.NumNodes,
		DurationMS:      float64(r.Duration) / float64(time.Millisecond),
		PathLength:      r.PathLength,
		PathCost:        finite(r.PathCost),
		Reaches:         r.Reaches,
	}
	if r.Err != nil {
		m.Error = r.Err.Error()
	}
	return m
}

// NewPathView renders p with the executor at index pos.
func NewPathView(p *path.Path, pos int) *PathView {
	if p == nil {
		return nil
	}
	v := &PathView{
		Positions: make([][3]int, 0, p.Length()),
		Movements: make([]string, 0, len(p.Movements())),
		Position:  pos,
		Reaches:   p.ReachesGoal(),
		Nodes:     p.NumNodesConsidered(),
	}
	for _, q := range p.Positions() {
		v.Positions = append(v.Positions, q.ToArray())
	}
	for _, m := range p.Movements() {
		v.Movements = append(v.Movements, m.Kind().String())
	}
	if p.Assembled() {
		v.Cost = finite(p.TotalCost())
	}
	return v
}

// finite keeps JSON encodable; encoding/json rejects Inf and NaN.
func finite(v float64) float64 {
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return -1
	}
	return v
}

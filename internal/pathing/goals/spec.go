package goals

import (
	"fmt"

	"voxelpath.ai/internal/pathing/blockpos"
)

// Spec is the wire and snapshot form of a goal.
type Spec struct {
	Kind      string   `json:"kind"`
	Pos       [3]int   `json:"pos,omitempty"`
	Range     int      `json:"range,omitempty"`
	Level     int      `json:"level,omitempty"`
	From      [][3]int `json:"from,omitempty"`
	MaintainY *int     `json:"maintain_y,omitempty"`
	Goals     []Spec   `json:"goals,omitempty"`
	Origin    *Spec    `json:"origin,omitempty"`
}

const (
	KindBlock      = "BLOCK"
	KindXZ         = "XZ"
	KindYLevel     = "Y_LEVEL"
	KindNear       = "NEAR"
	KindTwoBlocks  = "TWO_BLOCKS"
	KindGetToBlock = "GET_TO_BLOCK"
	KindComposite  = "COMPOSITE"
	KindInverted   = "INVERTED"
	KindRunAway    = "RUN_AWAY"
)

// Limits on specs from untrusted input. Near and RunAway scan a box around
// themselves to find their at-goal heuristic, so their size is bounded too.
const (
	maxSpecDepth = 8
	maxSpecGoals = 64
	// MaxRange bounds Near range and RunAway distance.
	MaxRange = 64
	// MaxRunAwayOrigins bounds how many origins a RunAway has, and
	// MaxRunAwaySpread how far each lies from the first on either
	// horizontal axis.
	MaxRunAwayOrigins = 32
	MaxRunAwaySpread  = 128
)

func (s Spec) Build() (Goal, error) {
	n := 0
	return s.build(0, &n)
}

func (s Spec) build(depth int, n *int) (Goal, error) {
	if depth > maxSpecDepth {
		return nil, fmt.Errorf("goal nesting deeper than %d", maxSpecDepth)
	}
	*n++
	if *n > maxSpecGoals {
		return nil, fmt.Errorf("more than %d goals in one spec", maxSpecGoals)
	}
	p := blockpos.FromArray(s.Pos)
	switch s.Kind {
	case KindBlock:
		return Block{X: p.X, Y: p.Y, Z: p.Z}, nil
	case KindXZ:
		return XZ{X: p.X, Z: p.Z}, nil
	case KindYLevel:
		return YLevel{Level: s.Level}, nil
	case KindNear:
		if s.Range < 0 || s.Range > MaxRange {
			return nil, fmt.Errorf("near: range %d outside [0,%d]", s.Range, MaxRange)
		}
		return NewNear(p, s.Range), nil
	case KindTwoBlocks:
		return TwoBlocks{X: p.X, Y: p.Y, Z: p.Z}, nil
	case KindGetToBlock:
		return GetToBlock{X: p.X, Y: p.Y, Z: p.Z}, nil
	case KindComposite:
		subs := make([]Goal, 0, len(s.Goals))
		for i, sub := range s.Goals {
			g, err := sub.build(depth+1, n)
			if err != nil {
				return nil, fmt.Errorf("composite[%d]: %w", i, err)
			}
			subs = append(subs, g)
		}
		return NewComposite(subs...), nil
	case KindInverted:
		if s.Origin == nil {
			return nil, fmt.Errorf("inverted: missing origin")
		}
		g, err := s.Origin.build(depth+1, n)
		if err != nil {
			return nil, fmt.Errorf("inverted: %w", err)
		}
		return Inverted{Origin: g}, nil
	case KindRunAway:
		if len(s.From) == 0 {
			return nil, fmt.Errorf("run_away: no origins")
		}
		if len(s.From) > MaxRunAwayOrigins {
			return nil, fmt.Errorf("run_away: %d origins, at most %d", len(s.From), MaxRunAwayOrigins)
		}
		if s.Range < 0 || s.Range > MaxRange {
			return nil, fmt.Errorf("run_away: distance %d outside [0,%d]", s.Range, MaxRange)
		}
		from := make([]blockpos.Pos, len(s.From))
		for i, a := range s.From {
			from[i] = blockpos.FromArray(a)
			if d := from[i].Sub(from[0]); abs(d.X) > MaxRunAwaySpread || abs(d.Z) > MaxRunAwaySpread {
				return nil, fmt.Errorf("run_away: origin %v more than %d blocks from %v", from[i], MaxRunAwaySpread, from[0])
			}
		}
		return NewRunAway(s.Range, s.MaintainY, from...), nil
	default:
		return nil, fmt.Errorf("unknown goal kind %q", s.Kind)
	}
}

// Describe converts a goal back into its Spec. ok is false for goal types
// defined outside this package.
func Describe(g Goal) (Spec, bool) {
	switch v := g.(type) {
	case Block:
		return Spec{Kind: KindBlock, Pos: [3]int{v.X, v.Y, v.Z}}, true
	case XZ:
		return Spec{Kind: KindXZ, Pos: [3]int{v.X, 0, v.Z}}, true
	case YLevel:
		return Spec{Kind: KindYLevel, Level: v.Level}, true
	case Near:
		return Spec{Kind: KindNear, Pos: [3]int{v.X, v.Y, v.Z}, Range: isqrt(v.RangeSq)}, true
	case TwoBlocks:
		return Spec{Kind: KindTwoBlocks, Pos: [3]int{v.X, v.Y, v.Z}}, true
	case GetToBlock:
		return Spec{Kind: KindGetToBlock, Pos: [3]int{v.X, v.Y, v.Z}}, true
	case *Composite:
		out := Spec{Kind: KindComposite}
		for _, sub := range v.Goals {
			s, ok := Describe(sub)
			if !ok {
				return Spec{}, false
			}
			out.Goals = append(out.Goals, s)
		}
		return out, true
	case Inverted:
		s, ok := Describe(v.Origin)
		if !ok {
			return Spec{}, false
		}
		return Spec{Kind: KindInverted, Origin: &s}, true
	case *RunAway:
		out := Spec{Kind: KindRunAway, Range: isqrt(v.DistanceSq), MaintainY: v.MaintainY}
		for _, p := range v.From {
			out.From = append(out.From, p.ToArray())
		}
		return out, true
	}
	return Spec{}, false
}

func isqrt(v int) int {
	r := 0
	for (r+1)*(r+1) <= v {
		r++
	}
	return r
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

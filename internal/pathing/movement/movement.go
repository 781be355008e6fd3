// Package movement holds the edges of the search graph: one value per step
// between two standing positions, with a tick cost and a per-tick controller
// that turns the step into body intents.
package movement

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"voxelpath.ai/internal/pathing/blockpos"
	"voxelpath.ai/internal/pathing/cost"
	"voxelpath.ai/internal/pathing/worldctx"
)

type Status uint8

const (
	Prepping Status = iota
	Waiting
	Running
	Success
	Unreachable
	Failed
	Canceled
)

func (s Status) IsComplete() bool { return s >= Success }

func (s Status) String() string {
	switch s {
	case Prepping:
		return "PREPPING"
	case Waiting:
		return "WAITING"
	case Running:
		return "RUNNING"
	case Success:
		return "SUCCESS"
	case Unreachable:
		return "UNREACHABLE"
	case Failed:
		return "FAILED"
	case Canceled:
		return "CANCELED"
	default:
		return "UNKNOWN"
	}
}

type Kind uint8

const (
	KindTraverse Kind = iota
	KindAscend
	KindDescend
	KindFall
	KindDiagonal
	KindPillar
	KindDownward
)

func (k Kind) String() string {
	switch k {
	case KindTraverse:
		return "traverse"
	case KindAscend:
		return "ascend"
	case KindDescend:
		return "descend"
	case KindFall:
		return "fall"
	case KindDiagonal:
		return "diagonal"
	case KindPillar:
		return "pillar"
	case KindDownward:
		return "downward"
	default:
		return "unknown"
	}
}

// Input is what a movement asks the body to do for one tick. The zero value
// means stand still.
type Input struct {
	Move   bool
	Target mgl64.Vec3
	Jump   bool
	Sprint bool
	Sneak  bool
	// Break is the block the body should keep mining this tick.
	Break *blockpos.Pos
}

// Player is the body state a movement reads every tick.
type Player struct {
	Position mgl64.Vec3
	Velocity mgl64.Vec3
	OnGround bool
	// HorizontalCollision is set when the last tick's horizontal motion was blocked.
	HorizontalCollision bool
}

// Feet is the block the player stands in. The small upward bias keeps a
// body resting on a block top from rounding into that block; a body sunk
// into a bottom slab is reported as standing above it.
func (p Player) Feet(w *worldctx.Context) blockpos.Pos {
	f := blockpos.New(
		int(math.Floor(p.Position.X())),
		int(math.Floor(p.Position.Y()+0.1251)),
		int(math.Floor(p.Position.Z())),
	)
	if w != nil && w.IsBottomSlab(f.X, f.Y, f.Z) {
		return f.Up()
	}
	return f
}

// Center is the middle of the bottom face of a block, where a body standing
// in it would have its feet.
func Center(p blockpos.Pos) mgl64.Vec3 {
	return mgl64.Vec3{float64(p.X) + 0.5, float64(p.Y), float64(p.Z) + 0.5}
}

// FlatDistToCenter ignores height.
func FlatDistToCenter(pos mgl64.Vec3, p blockpos.Pos) float64 {
	dx := pos.X() - (float64(p.X) + 0.5)
	dz := pos.Z() - (float64(p.Z) + 0.5)
	return math.Sqrt(dx*dx + dz*dz)
}

// DistToCenter measures to the middle of the block volume.
func DistToCenter(pos mgl64.Vec3, p blockpos.Pos) float64 {
	return pos.Sub(mgl64.Vec3{float64(p.X) + 0.5, float64(p.Y) + 0.5, float64(p.Z) + 0.5}).Len()
}

// Movement is one edge of a path. Values are created by the move table and
// owned by a single path; the executor drives them one at a time.
type Movement struct {
	kind Kind
	src  blockpos.Pos
	dest blockpos.Pos

	// toBreak lists the blocks that must be walk-through before the body
	// commits to the movement.
	toBreak []blockpos.Pos
	valid   []blockpos.Pos

	cost      float64
	costKnown bool
	loaded    bool

	status   Status
	numTicks int
	// broke is set while blocks are being cleared and drops once the
	// body has waited a tick for the last one.
	broke bool
}

func newMovement(kind Kind, src, dest blockpos.Pos, toBreak ...blockpos.Pos) *Movement {
	m := &Movement{kind: kind, src: src, dest: dest, toBreak: toBreak}
	m.valid = m.calculateValidPositions()
	return m
}

func (m *Movement) Kind() Kind                     { return m.kind }
func (m *Movement) Src() blockpos.Pos              { return m.src }
func (m *Movement) Dest() blockpos.Pos             { return m.dest }
func (m *Movement) Direction() blockpos.Pos        { return m.dest.Sub(m.src) }
func (m *Movement) Status() Status                 { return m.status }
func (m *Movement) ToBreak() []blockpos.Pos        { return m.toBreak }
func (m *Movement) ValidPositions() []blockpos.Pos { return m.valid }

// Cost is the cost recorded when the path was calculated. It panics if the
// movement was never costed, which would mean it skipped path assembly.
func (m *Movement) Cost() float64 {
	if !m.costKnown {
		panic("movement: cost requested before calculation")
	}
	return m.cost
}

// Override pins the cost used for timeouts and cost-increase checks.
func (m *Movement) Override(c float64) {
	m.cost = c
	m.costKnown = true
}

// CalculateCost prices the movement against the given world without
// touching the recorded cost.
func (m *Movement) CalculateCost(w *worldctx.Context) float64 {
	switch m.kind {
	case KindTraverse:
		return traverseCost(w, m.src.X, m.src.Y, m.src.Z, m.dest.X, m.dest.Z)
	case KindAscend:
		return ascendCost(w, m.src.X, m.src.Y, m.src.Z, m.dest.X, m.dest.Z)
	case KindDescend, KindFall:
		var res Result
		res.Reset()
		descendCost(w, m.src.X, m.src.Y, m.src.Z, m.dest.X, m.dest.Z, &res)
		if res.Cost >= cost.CostInf || res.Y != m.dest.Y {
			return cost.CostInf
		}
		return res.Cost
	case KindDiagonal:
		var res Result
		res.Reset()
		diagonalCost(w, m.src.X, m.src.Y, m.src.Z, m.dest.X, m.dest.Z, &res)
		if res.Cost >= cost.CostInf || res.Y != m.dest.Y {
			return cost.CostInf
		}
		return res.Cost
	case KindPillar:
		return pillarCost(w, m.src.X, m.src.Y, m.src.Z)
	case KindDownward:
		return downwardCost(w, m.src.X, m.src.Y, m.src.Z)
	}
	return cost.CostInf
}

// RecalculateCost replaces the recorded cost with the current one.
func (m *Movement) RecalculateCost(w *worldctx.Context) float64 {
	m.cost = m.CalculateCost(w)
	m.costKnown = true
	return m.cost
}

// CheckLoadedChunk records whether the destination column was loaded when
// the path was assembled. Cost increases on movements priced against loaded
// terrain are trusted, since the rest of the path may have caused them.
func (m *Movement) CheckLoadedChunk(w *worldctx.Context) {
	m.loaded = w.IsLoaded(m.dest.X, m.dest.Z)
}

func (m *Movement) CalculatedWhileLoaded() bool { return m.loaded }

// Reset rewinds the controller so the movement can be run again after the
// executor backs up over it.
func (m *Movement) Reset() {
	m.status = Prepping
	m.numTicks = 0
	m.broke = false
}

// Cancel marks the movement canceled. It is terminal.
func (m *Movement) Cancel() { m.status = Canceled }

// SafeToCancel reports whether abandoning the movement now leaves the body
// standing somewhere a new path can start from.
func (m *Movement) SafeToCancel(w *worldctx.Context, p Player) bool {
	feet := p.Feet(w)
	switch m.kind {
	case KindDescend, KindFall, KindPillar:
		return m.status != Running || feet == m.src
	case KindDiagonal:
		if m.status != Running || feet == m.src {
			return true
		}
		if w.CanWalkOn(m.src.X, m.src.Y-1, m.dest.Z) && w.CanWalkOn(m.dest.X, m.src.Y-1, m.src.Z) {
			return true
		}
		return w.CanWalkOn(feet.X, feet.Y-1, feet.Z)
	}
	return true
}

// InValidPosition reports whether the feet are somewhere this movement can
// be executed from.
func (m *Movement) InValidPosition(feet blockpos.Pos) bool {
	for _, v := range m.valid {
		if v == feet {
			return true
		}
	}
	return false
}

// Update advances the controller by one tick.
func (m *Movement) Update(w *worldctx.Context, p Player) (Status, Input) {
	var in Input
	m.status = m.updateState(w, p, &in)
	feet := p.Feet(w)
	if w.IsLiquid(feet.X, feet.Y, feet.Z) && p.Position.Y() < float64(m.dest.Y)+0.6 {
		in.Jump = true
	}
	return m.status, in
}

func (m *Movement) updateState(w *worldctx.Context, p Player, in *Input) Status {
	if m.kind == KindAscend && p.Feet(w).Y < m.src.Y {
		return Unreachable
	}
	st := m.prepare(w, in)
	if st != Running {
		return st
	}
	switch m.kind {
	case KindTraverse:
		return m.updateTraverse(w, p, in)
	case KindAscend:
		return m.updateAscend(w, p, in)
	case KindDescend:
		return m.updateDescend(w, p, in)
	case KindFall:
		return m.updateFall(w, p, in)
	case KindDiagonal:
		return m.updateDiagonal(w, p, in)
	case KindPillar:
		return m.updatePillar(w, p, in)
	case KindDownward:
		return m.updateDownward(w, p, in)
	}
	return Failed
}

// prepare clears the blocks in the way, one per tick. It runs every tick, so
// a block dropped into the way mid-movement sends it back to Prepping. After
// the last block breaks the movement spends one tick Waiting, standing
// still, before it commits; a way that was clear from the start goes
// straight to Running.
func (m *Movement) prepare(w *worldctx.Context, in *Input) Status {
	if m.kind == KindDiagonal {
		return Running
	}
	for i := range m.toBreak {
		b := m.toBreak[i]
		if w.CanWalkThrough(b.X, b.Y, b.Z) {
			continue
		}
		if !w.Breakable(b.X, b.Y, b.Z) {
			return Unreachable
		}
		in.Break = &b
		m.broke = true
		return Prepping
	}
	if m.broke {
		m.broke = false
		return Waiting
	}
	return Running
}

func (m *Movement) calculateValidPositions() []blockpos.Pos {
	switch m.kind {
	case KindAscend:
		d := m.Direction()
		prior := m.src.Add(-d.X, 0, -d.Z)
		return []blockpos.Pos{m.src, m.src.Up(), m.dest, prior, prior.Up()}
	case KindDescend:
		return []blockpos.Pos{m.src, m.dest.Up(), m.dest}
	case KindFall:
		out := []blockpos.Pos{m.src}
		for y := m.src.Y - m.dest.Y; y >= 0; y-- {
			out = append(out, m.dest.Add(0, y, 0))
		}
		return out
	case KindDiagonal:
		diagA := blockpos.New(m.src.X, m.src.Y, m.dest.Z)
		diagB := blockpos.New(m.dest.X, m.src.Y, m.src.Z)
		if m.dest.Y < m.src.Y {
			return []blockpos.Pos{m.src, m.dest.Up(), diagA, diagB, m.dest, diagA.Down(), diagB.Down()}
		}
		return []blockpos.Pos{m.src, m.dest, diagA, diagB}
	}
	return []blockpos.Pos{m.src, m.dest}
}

// moveTowards steers the body at the center of a block, keeping its height.
func moveTowards(p Player, in *Input, b blockpos.Pos) {
	c := Center(b)
	in.Move = true
	in.Target = mgl64.Vec3{c.X(), p.Position.Y(), c.Z()}
}

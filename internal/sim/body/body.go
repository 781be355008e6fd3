// Package body moves a simulated agent through the terrain store in response
// to the intents an executor produces. It stands in for a real client: just
// enough physics that walking, jumping, falling, climbing and mining take
// roughly the ticks the cost model charges for them.
package body

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"voxelpath.ai/internal/catalogs"
	"voxelpath.ai/internal/pathing/blockpos"
	"voxelpath.ai/internal/pathing/cost"
	"voxelpath.ai/internal/pathing/movement"
	"voxelpath.ai/internal/pathing/worldctx"
)

const (
	HalfWidth = 0.3
	Height    = 1.8
	StepUp    = 0.6

	gravity   = 0.08
	drag      = 0.98
	jumpSpeed = 0.42
	maxFall   = 3.92
	epsilon   = 1e-7
)

// Editor applies block edits the body makes while mining.
type Editor interface {
	SetBlock(x, y, z int, s catalogs.StateID) bool
}

type Body struct {
	pos        mgl64.Vec3
	vel        mgl64.Vec3
	onGround   bool
	hcollision bool

	mining      *blockpos.Pos
	miningTicks float64
}

func New(pos mgl64.Vec3) *Body {
	return &Body{pos: pos}
}

func (b *Body) Position() mgl64.Vec3 { return b.pos }
func (b *Body) Velocity() mgl64.Vec3 { return b.vel }
func (b *Body) OnGround() bool       { return b.onGround }

// Teleport moves the body without any physics and stops it.
func (b *Body) Teleport(pos mgl64.Vec3) {
	b.pos = pos
	b.vel = mgl64.Vec3{}
	b.onGround = false
	b.mining = nil
}

// Player is the state executors read.
func (b *Body) Player() movement.Player {
	return movement.Player{Position: b.pos, Velocity: b.vel, OnGround: b.onGround, HorizontalCollision: b.hcollision}
}

// Step advances the body one tick under input in. Mined blocks are written
// through ed; a nil ed leaves the terrain untouched and mining never ends.
func (b *Body) Step(w *worldctx.Context, ed Editor, in movement.Input) {
	if in.Break != nil {
		b.mine(w, ed, *in.Break)
	} else {
		b.mining = nil
		b.miningTicks = 0
	}

	feet := blockpos.New(int(math.Floor(b.pos.X())), int(math.Floor(b.pos.Y()+0.1251)), int(math.Floor(b.pos.Z())))
	inWater := w.IsWater(feet.X, feet.Y, feet.Z)
	onLadder := w.IsClimbable(feet.X, feet.Y, feet.Z) || w.IsClimbable(feet.X, feet.Y+1, feet.Z)

	// Horizontal intent. Mining holds the body still like a real client would.
	var dx, dz float64
	if in.Move && in.Break == nil {
		speed := 1 / cost.WalkOneBlockCost
		switch {
		case inWater:
			speed = 1 / cost.WalkOneInWaterCost
		case in.Sneak:
			speed = 1 / cost.SneakOneBlockCost
		case in.Sprint:
			speed = 1 / cost.SprintOneBlockCost
		}
		if b.onGround && w.IsSoulSand(feet.X, feet.Y-1, feet.Z) {
			speed /= 2
		}
		d := mgl64.Vec2{in.Target.X() - b.pos.X(), in.Target.Z() - b.pos.Z()}
		if l := d.Len(); l > epsilon {
			if l > speed {
				d = d.Mul(speed / l)
			}
			dx, dz = d.X(), d.Y()
		}
	}

	vy := b.vel.Y()
	switch {
	case onLadder:
		switch {
		case in.Jump || (in.Move && b.hcollision):
			vy = 1 / cost.LadderUpOneCost
		case in.Sneak:
			vy = 0
		default:
			vy = math.Max(vy-gravity, -1/cost.LadderDownOneCost)
		}
	case inWater:
		if in.Jump {
			vy = 0.1
		} else {
			vy = math.Max((vy-0.02)*0.8, -0.1)
		}
	case b.onGround && in.Jump:
		vy = jumpSpeed
	default:
		vy = math.Max((vy-gravity)*drag, -maxFall)
	}

	b.hcollision = false
	wasOnGround := b.onGround
	b.moveY(w, vy)
	b.moveHorizontal(w, 0, dx, wasOnGround)
	b.moveHorizontal(w, 2, dz, wasOnGround)
	b.vel = mgl64.Vec3{dx, b.vel.Y(), dz}
}

func (b *Body) mine(w *worldctx.Context, ed Editor, target blockpos.Pos) {
	if b.mining == nil || *b.mining != target {
		b.mining = &target
		b.miningTicks = 0
	}
	if !w.Breakable(target.X, target.Y, target.Z) || ed == nil {
		return
	}
	b.miningTicks++
	if b.miningTicks >= w.BreakTicks(target.X, target.Y, target.Z) {
		ed.SetBlock(target.X, target.Y, target.Z, catalogs.Air)
		b.mining = nil
		b.miningTicks = 0
	}
}

// Mining reports the block being mined and the ticks spent on it.
func (b *Body) Mining() (blockpos.Pos, float64, bool) {
	if b.mining == nil {
		return blockpos.Pos{}, 0, false
	}
	return *b.mining, b.miningTicks, true
}

type box struct {
	min, max mgl64.Vec3
}

func (b *Body) boxAt(pos mgl64.Vec3) box {
	return box{
		min: mgl64.Vec3{pos.X() - HalfWidth, pos.Y(), pos.Z() - HalfWidth},
		max: mgl64.Vec3{pos.X() + HalfWidth, pos.Y() + Height, pos.Z() + HalfWidth},
	}
}

// blockTop is how high inside its cell a block's collision box reaches.
func blockTop(w *worldctx.Context, x, y, z int) float64 {
	if !w.IsLoaded(x, z) {
		return 1
	}
	switch w.Rules().Def(w.StateAt(x, y, z)).Kind {
	case catalogs.KindSolid, catalogs.KindSoulSand, catalogs.KindDoorClosed:
		return 1
	case catalogs.KindSlabBottom:
		return 0.5
	case catalogs.KindFence:
		return 1.5
	default:
		return 0
	}
}

// colliders returns the collision boxes that overlap bx.
func colliders(w *worldctx.Context, bx box) []box {
	var out []box
	x0, x1 := int(math.Floor(bx.min.X()+epsilon)), int(math.Floor(bx.max.X()-epsilon))
	z0, z1 := int(math.Floor(bx.min.Z()+epsilon)), int(math.Floor(bx.max.Z()-epsilon))
	// Fences poke into the cell above them.
	y0, y1 := int(math.Floor(bx.min.Y()+epsilon))-1, int(math.Floor(bx.max.Y()-epsilon))
	for x := x0; x <= x1; x++ {
		for z := z0; z <= z1; z++ {
			for y := y0; y <= y1; y++ {
				top := blockTop(w, x, y, z)
				if top == 0 {
					continue
				}
				c := box{min: mgl64.Vec3{float64(x), float64(y), float64(z)}, max: mgl64.Vec3{float64(x + 1), float64(y) + top, float64(z + 1)}}
				if overlaps(bx, c) {
					out = append(out, c)
				}
			}
		}
	}
	return out
}

func overlaps(a, c box) bool {
	return a.min.X() < c.max.X()-epsilon && a.max.X() > c.min.X()+epsilon &&
		a.min.Y() < c.max.Y()-epsilon && a.max.Y() > c.min.Y()+epsilon &&
		a.min.Z() < c.max.Z()-epsilon && a.max.Z() > c.min.Z()+epsilon
}

func (b *Body) moveY(w *worldctx.Context, vy float64) {
	b.onGround = false
	steps := int(math.Ceil(math.Abs(vy) / 0.5))
	if steps == 0 {
		steps = 1
	}
	d := vy / float64(steps)
	for i := 0; i < steps; i++ {
		next := b.pos.Add(mgl64.Vec3{0, d, 0})
		hits := colliders(w, b.boxAt(next))
		if len(hits) == 0 {
			b.pos = next
			continue
		}
		if d < 0 {
			top := math.Inf(-1)
			for _, c := range hits {
				top = math.Max(top, c.max.Y())
			}
			b.pos = mgl64.Vec3{b.pos.X(), top, b.pos.Z()}
			b.onGround = true
		} else {
			bottom := math.Inf(1)
			for _, c := range hits {
				bottom = math.Min(bottom, c.min.Y())
			}
			b.pos = mgl64.Vec3{b.pos.X(), bottom - Height, b.pos.Z()}
		}
		b.vel = mgl64.Vec3{b.vel.X(), 0, b.vel.Z()}
		return
	}
	b.vel = mgl64.Vec3{b.vel.X(), vy, b.vel.Z()}
}

// moveHorizontal moves along axis 0 (x) or 2 (z). A grounded body steps up
// ledges no higher than StepUp.
func (b *Body) moveHorizontal(w *worldctx.Context, axis int, delta float64, grounded bool) {
	if delta == 0 {
		return
	}
	next := b.pos
	next[axis] += delta
	hits := colliders(w, b.boxAt(next))
	if len(hits) == 0 {
		b.pos = next
		return
	}
	if grounded {
		top := b.pos.Y()
		for _, c := range hits {
			top = math.Max(top, c.max.Y())
		}
		if rise := top - b.pos.Y(); rise <= StepUp {
			raised := mgl64.Vec3{next.X(), top, next.Z()}
			if len(colliders(w, b.boxAt(raised))) == 0 {
				b.pos = raised
				b.onGround = true
				return
			}
		}
	}
	// Slide flush against the obstacle.
	for _, c := range hits {
		if delta > 0 {
			next[axis] = math.Min(next[axis], c.min[axis]-HalfWidth)
		} else {
			next[axis] = math.Max(next[axis], c.max[axis]+HalfWidth)
		}
	}
	if delta > 0 {
		next[axis] = math.Max(next[axis], b.pos[axis])
	} else {
		next[axis] = math.Min(next[axis], b.pos[axis])
	}
	b.pos = next
	b.hcollision = true
}

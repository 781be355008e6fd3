package movement

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"

	"voxelpath.ai/internal/catalogs"
	"voxelpath.ai/internal/pathing/blockpos"
	"voxelpath.ai/internal/pathing/blockrules"
	"voxelpath.ai/internal/pathing/cost"
	"voxelpath.ai/internal/pathing/precompute"
	"voxelpath.ai/internal/pathing/settings"
	"voxelpath.ai/internal/pathing/worldctx"
	"voxelpath.ai/internal/terrain/store"
	"voxelpath.ai/internal/terrain/terraintest"
)

const floor = terraintest.FloorY

func newWorld(st *store.Store, s settings.Settings) *worldctx.Context {
	rules := blockrules.New(catalogs.Default(), s.AssumeWalkOnWater)
	return worldctx.New(st, precompute.New(rules), rules, s)
}

func flat(t *testing.T) (*store.Store, *catalogs.BlockCatalog) {
	t.Helper()
	cat := catalogs.Default()
	return terraintest.Flat(cat, 8), cat
}

func near(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func applyMove(t *testing.T, w *worldctx.Context, name string, src blockpos.Pos) Result {
	t.Helper()
	for _, mv := range Moves {
		if mv.Name == name {
			var res Result
			res.Reset()
			mv.Apply(w, src.X, src.Y, src.Z, &res)
			return res
		}
	}
	t.Fatalf("no move %q", name)
	return Result{}
}

func TestTraverseCost(t *testing.T) {
	st, cat := flat(t)
	s := settings.Defaults()
	w := newWorld(st, s)
	src := blockpos.New(0, floor+1, 0)

	res := applyMove(t, w, "traverse_east", src)
	if !near(res.Cost, cost.WalkOneBlockCost*cost.SprintMultiplier) {
		t.Fatalf("sprint traverse=%v", res.Cost)
	}
	if res.X != 1 || res.Y != src.Y || res.Z != 0 {
		t.Fatalf("landed at %d,%d,%d", res.X, res.Y, res.Z)
	}

	s.AllowSprint = false
	if got := traverseCost(newWorld(st, s), 0, src.Y, 0, 1, 0); !near(got, cost.WalkOneBlockCost) {
		t.Fatalf("walk traverse=%v", got)
	}

	terraintest.Wall(st, cat, "STONE", 1, 0, 1, 0, 2)
	mine := 1.5*s.BreakTicksPerHardness + s.BlockBreakAdditionalPenalty
	if got := traverseCost(newWorld(st, s), 0, src.Y, 0, 1, 0); !near(got, cost.WalkOneBlockCost+2*mine) {
		t.Fatalf("mining traverse=%v want %v", got, cost.WalkOneBlockCost+2*mine)
	}

	terraintest.Set(st, cat, "MAGMA_BLOCK", 0, floor, 3)
	if got := traverseCost(newWorld(st, s), 0, src.Y, 2, 0, 3); got != cost.CostInf {
		t.Fatalf("walking onto magma should be impossible, got %v", got)
	}
}

func TestAscendCost(t *testing.T) {
	st, cat := flat(t)
	terraintest.Set(st, cat, "STONE", 1, floor+1, 0)
	terraintest.Set(st, cat, "STONE_SLAB", 0, floor+1, 2)
	w := newWorld(st, settings.Defaults())
	src := blockpos.New(0, floor+1, 0)

	res := applyMove(t, w, "ascend_east", src)
	want := max(cost.JumpOneBlockCost, cost.WalkOneBlockCost) + w.JumpPenalty
	if !near(res.Cost, want) || res.Y != floor+2 {
		t.Fatalf("ascend=%v y=%d want %v", res.Cost, res.Y, want)
	}
	if got := applyMove(t, w, "ascend_west", src); got.Cost != cost.CostInf {
		t.Fatalf("ascend with nothing to stand on=%v", got.Cost)
	}
	// Onto a half block from flat ground is a plain walk.
	if got := ascendCost(w, 0, floor+1, 1, 0, 2); !near(got, cost.WalkOneBlockCost) {
		t.Fatalf("ascend onto slab=%v", got)
	}
}

func TestDescendAndFall(t *testing.T) {
	st, cat := flat(t)
	// One-block step at x=0, three-block tower at z=4, five-block tower at z=-4.
	terraintest.Set(st, cat, "STONE", 0, floor+1, 0)
	terraintest.Wall(st, cat, "STONE", 0, 4, 0, 4, 3)
	terraintest.Wall(st, cat, "STONE", 0, -4, 0, -4, 5)
	s := settings.Defaults()
	w := newWorld(st, s)

	res := applyMove(t, w, "descend_east", blockpos.New(0, floor+2, 0))
	want := cost.WalkOffBlockCost + max(cost.FallNBlocksCost[1], cost.CenterAfterFallCost)
	if !near(res.Cost, want) || res.Y != floor+1 {
		t.Fatalf("descend=%v y=%d", res.Cost, res.Y)
	}

	top := blockpos.New(0, floor+4, 4)
	res = applyMove(t, w, "descend_east", top)
	if res.Y != floor+1 || !near(res.Cost, cost.WalkOffBlockCost+cost.FallNBlocksCost[4]) {
		t.Fatalf("fall=%v y=%d", res.Cost, res.Y)
	}
	m := Moves[10].Build(w, top)
	if m.Kind() != KindFall || m.Dest() != blockpos.New(1, floor+1, 4) {
		t.Fatalf("built %v to %v", m.Kind(), m.Dest())
	}
	if got := len(m.ValidPositions()); got != 5 {
		t.Fatalf("fall valid positions=%d", got)
	}
	if !near(m.CalculateCost(w), res.Cost) {
		t.Fatalf("recomputed fall cost %v", m.CalculateCost(w))
	}

	if res := applyMove(t, w, "descend_east", blockpos.New(0, floor+6, -4)); res.Cost != cost.CostInf {
		t.Fatalf("five block drop should exceed the safe height, got %v at y=%d", res.Cost, res.Y)
	}
}

func TestFallIntoWater(t *testing.T) {
	st, cat := flat(t)
	terraintest.Wall(st, cat, "STONE", 0, 0, 0, 0, 8)
	terraintest.Set(st, cat, "WATER", 1, floor+1, 0)
	w := newWorld(st, settings.Defaults())
	res := applyMove(t, w, "descend_east", blockpos.New(0, floor+9, 0))
	if res.Cost >= cost.CostInf || res.Y != floor+1 {
		t.Fatalf("water landing cost=%v y=%d", res.Cost, res.Y)
	}
}

func TestDiagonalCost(t *testing.T) {
	st, cat := flat(t)
	s := settings.Defaults()
	w := newWorld(st, s)
	src := blockpos.New(0, floor+1, 0)
	res := applyMove(t, w, "diagonal_southeast", src)
	if !near(res.Cost, cost.WalkOneBlockCost*cost.SprintMultiplier*math.Sqrt2) || res.Y != src.Y {
		t.Fatalf("open diagonal=%v", res.Cost)
	}

	terraintest.Wall(st, cat, "STONE", 1, 0, 1, 0, 2)
	w = newWorld(st, s)
	res = applyMove(t, w, "diagonal_southeast", src)
	if !near(res.Cost, cost.WalkOneBlockCost*(math.Sqrt2-0.001)*math.Sqrt2) {
		t.Fatalf("edging diagonal=%v", res.Cost)
	}

	terraintest.Wall(st, cat, "STONE", 0, 1, 0, 1, 2)
	w = newWorld(st, s)
	if res := applyMove(t, w, "diagonal_southeast", src); res.Cost != cost.CostInf {
		t.Fatalf("both corners blocked=%v", res.Cost)
	}
}

func TestPillarAndDownward(t *testing.T) {
	st, cat := flat(t)
	s := settings.Defaults()
	terraintest.Wall(st, cat, "STONE", 1, 0, 1, 0, 4)
	terraintest.Wall(st, cat, "LADDER", 0, 0, 0, 0, 3)
	w := newWorld(st, s)
	if got := pillarCost(w, 0, floor+1, 0); !near(got, cost.LadderUpOneCost) {
		t.Fatalf("ladder pillar=%v", got)
	}
	if got := pillarCost(w, 3, floor+1, 3); got != cost.CostInf {
		t.Fatalf("pillar without ladder=%v", got)
	}
	if got := downwardCost(w, 0, floor+2, 0); !near(got, cost.LadderDownOneCost) {
		t.Fatalf("ladder down=%v", got)
	}
	mine := 1.5*s.BreakTicksPerHardness + s.BlockBreakAdditionalPenalty
	if got := downwardCost(w, 3, floor+1, 3); !near(got, cost.FallNBlocksCost[1]+mine) {
		t.Fatalf("dig down=%v", got)
	}
	s.AllowDownward = false
	if got := downwardCost(newWorld(st, s), 3, floor+1, 3); got != cost.CostInf {
		t.Fatalf("downward disabled=%v", got)
	}
}

func TestDerive(t *testing.T) {
	st, _ := flat(t)
	w := newWorld(st, settings.Defaults())
	src := blockpos.New(0, floor+1, 0)
	if m := Derive(w, src, src.Add(1, 0, 0)); m == nil || m.Kind() != KindTraverse {
		t.Fatalf("derive traverse: %+v", m)
	}
	if m := Derive(w, src, src.Add(1, 0, 1)); m == nil || m.Kind() != KindDiagonal {
		t.Fatalf("derive diagonal: %+v", m)
	}
	if m := Derive(w, src, src.Add(3, 0, 0)); m != nil {
		t.Fatalf("non adjacent destination derived %v", m.Kind())
	}
}

func TestTraverseUpdate(t *testing.T) {
	st, cat := flat(t)
	w := newWorld(st, settings.Defaults())
	src := blockpos.New(0, floor+1, 0)
	dest := src.Add(1, 0, 0)

	m := newTraverse(src, dest)
	status, in := m.Update(w, Player{Position: Center(src), OnGround: true})
	if status != Running || !in.Move || in.Break != nil {
		t.Fatalf("status=%v input=%+v", status, in)
	}
	if in.Target.X() != 1.5 || in.Target.Z() != 0.5 {
		t.Fatalf("target=%v", in.Target)
	}
	if status, _ := m.Update(w, Player{Position: Center(dest), OnGround: true}); status != Success {
		t.Fatalf("at destination status=%v", status)
	}

	terraintest.Set(st, cat, "DIRT", 1, floor+1, 0)
	m = newTraverse(src, dest)
	status, in = m.Update(w, Player{Position: Center(src), OnGround: true})
	if status != Prepping || in.Break == nil || *in.Break != dest {
		t.Fatalf("blocked traverse status=%v break=%v", status, in.Break)
	}
	// Once the block is gone the movement holds still for a tick, then runs.
	terraintest.Set(st, cat, "AIR", 1, floor+1, 0)
	status, in = m.Update(w, Player{Position: Center(src), OnGround: true})
	if status != Waiting || in.Move || in.Break != nil {
		t.Fatalf("after clearing status=%v input=%+v", status, in)
	}
	if !m.SafeToCancel(w, Player{Position: Center(src), OnGround: true}) {
		t.Fatalf("waiting movement not safe to cancel")
	}
	status, in = m.Update(w, Player{Position: Center(src), OnGround: true})
	if status != Running || !in.Move {
		t.Fatalf("after waiting status=%v input=%+v", status, in)
	}

	terraintest.Set(st, cat, "BEDROCK", 1, floor+1, 0)
	m = newTraverse(src, dest)
	if status, _ := m.Update(w, Player{Position: Center(src), OnGround: true}); status != Unreachable {
		t.Fatalf("bedrock in the way status=%v", status)
	}
}

func TestFeetOnSlab(t *testing.T) {
	st, cat := flat(t)
	terraintest.Set(st, cat, "STONE_SLAB", 0, floor+1, 0)
	w := newWorld(st, settings.Defaults())
	p := Player{Position: mgl64.Vec3{0.5, floor + 1.5, 0.5}}
	if got := p.Feet(w); got != blockpos.New(0, floor+2, 0) {
		t.Fatalf("feet on slab=%v", got)
	}
}

package blockrules

import (
	"testing"

	"voxelpath.ai/internal/catalogs"
	"voxelpath.ai/internal/pathing/precompute"
)

type mapView map[[3]int]catalogs.StateID

func (m mapView) StateAt(x, y, z int) catalogs.StateID { return m[[3]int{x, y, z}] }

func TestClassifyTable(t *testing.T) {
	cat := catalogs.Default()
	r := New(cat, false)
	const yes, no, maybe = precompute.Yes, precompute.No, precompute.Maybe
	cases := []struct {
		block string
		want  precompute.Facts
	}{
		{"AIR", precompute.Facts{WalkOn: no, WalkThrough: yes, FullyPassable: yes}},
		{"STONE", precompute.Facts{WalkOn: yes, WalkThrough: no, FullyPassable: no}},
		{"SOUL_SAND", precompute.Facts{WalkOn: yes, WalkThrough: no, FullyPassable: no}},
		{"STONE_SLAB", precompute.Facts{WalkOn: yes, WalkThrough: no, FullyPassable: no}},
		{"WATER", precompute.Facts{WalkOn: no, WalkThrough: maybe, FullyPassable: no}},
		{"LAVA", precompute.Facts{WalkOn: no, WalkThrough: no, FullyPassable: no}},
		{"FIRE", precompute.Facts{WalkOn: no, WalkThrough: no, FullyPassable: no}},
		{"LADDER", precompute.Facts{WalkOn: maybe, WalkThrough: yes, FullyPassable: no}},
		{"CARPET", precompute.Facts{WalkOn: no, WalkThrough: maybe, FullyPassable: no}},
		{"TALL_GRASS", precompute.Facts{WalkOn: no, WalkThrough: yes, FullyPassable: yes}},
		{"DOOR_OPEN", precompute.Facts{WalkOn: no, WalkThrough: yes, FullyPassable: no}},
		{"DOOR_CLOSED", precompute.Facts{WalkOn: no, WalkThrough: no, FullyPassable: no}},
		{"FENCE", precompute.Facts{WalkOn: no, WalkThrough: no, FullyPassable: no}},
	}
	for _, tc := range cases {
		if got := r.Classify(cat.MustID(tc.block)); got != tc.want {
			t.Fatalf("%s: got %+v want %+v", tc.block, got, tc.want)
		}
	}
}

func TestWaterDependsOnWhatIsAbove(t *testing.T) {
	cat := catalogs.Default()
	water := cat.MustID("WATER")
	v := mapView{{0, 1, 0}: water}

	r := New(cat, false)
	if r.WalkThroughAt(v, 0, 0, 0, water) {
		t.Fatalf("deep water should not be walk-through")
	}
	if !r.WalkThroughAt(v, 0, 1, 0, water) {
		t.Fatalf("surface water should be walk-through")
	}

	walking := New(cat, true)
	if walking.Classify(water).WalkOn != precompute.Maybe {
		t.Fatalf("walk-on-water should make water walk-on maybe")
	}
	if walking.WalkOnAt(v, 0, 0, 0, water) {
		t.Fatalf("covered water should not carry the agent")
	}
	if !walking.WalkOnAt(v, 0, 1, 0, water) {
		t.Fatalf("surface water should carry the agent")
	}
	if walking.WalkThroughAt(v, 0, 1, 0, water) {
		t.Fatalf("walk-on-water water is never walked through")
	}
}

func TestClimbableNeedsSupport(t *testing.T) {
	cat := catalogs.Default()
	r := New(cat, false)
	vine := cat.MustID("VINE")
	v := mapView{{1, 5, 0}: cat.MustID("STONE")}
	if !r.WalkOnAt(v, 0, 5, 0, vine) {
		t.Fatalf("vine against stone should be walk-on")
	}
	if r.WalkOnAt(v, 0, 9, 0, vine) {
		t.Fatalf("free-hanging vine should not be walk-on")
	}
}

func TestCarpetNeedsFloor(t *testing.T) {
	cat := catalogs.Default()
	r := New(cat, false)
	carpet := cat.MustID("CARPET")
	v := mapView{{0, 0, 0}: cat.MustID("DIRT")}
	if !r.WalkThroughAt(v, 0, 1, 0, carpet) {
		t.Fatalf("carpet on dirt should be walk-through")
	}
	if r.WalkThroughAt(v, 4, 1, 4, carpet) {
		t.Fatalf("floating carpet should not be walk-through")
	}
}

func TestDangerFlags(t *testing.T) {
	cat := catalogs.Default()
	r := New(cat, false)
	for _, b := range []string{"LAVA", "FIRE", "MAGMA_BLOCK", "CACTUS"} {
		if !r.AvoidWalkingInto(cat.MustID(b)) {
			t.Fatalf("%s should be avoided", b)
		}
	}
	if r.AvoidWalkingInto(cat.MustID("STONE")) {
		t.Fatalf("stone should not be avoided")
	}
}

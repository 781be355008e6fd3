package scene

import (
	"testing"

	"github.com/go-gl/mathgl/mgl64"

	"voxelpath.ai/internal/catalogs"
	"voxelpath.ai/internal/pathing/blockpos"
	"voxelpath.ai/internal/pathing/calc"
	"voxelpath.ai/internal/pathing/favoring"
	"voxelpath.ai/internal/pathing/goals"
	"voxelpath.ai/internal/pathing/settings"
	"voxelpath.ai/internal/terrain/terraintest"
)

func TestPlanOnFlatScene(t *testing.T) {
	cat := catalogs.Default()
	y := terraintest.FloorY + 1
	s := &Scene{
		ID:      "flat",
		Store:   terraintest.Flat(cat, 16),
		Agent:   mgl64.Vec3{0.5, float64(y), 0.5},
		Hazards: favoring.NewHazards(),
	}
	if got := s.Start(); got != blockpos.New(0, y, 0) {
		t.Fatalf("start=%v", got)
	}
	rec, res := s.Plan(cat, settings.Defaults(), s.Start(), goals.Block{X: 7, Y: y, Z: 0})
	if rec.Result != calc.SuccessToGoal || !rec.Reaches || res.Path == nil {
		t.Fatalf("rec=%+v", rec)
	}
	if rec.PathLength != 8 || rec.PathCost <= 0 || rec.NumNodes == 0 {
		t.Fatalf("rec=%+v", rec)
	}
}

func TestPlanDetoursAroundHazard(t *testing.T) {
	cat := catalogs.Default()
	y := terraintest.FloorY + 1
	s := &Scene{ID: "flat", Store: terraintest.Flat(cat, 16), Agent: mgl64.Vec3{0.5, float64(y), 0.5}, Hazards: favoring.NewHazards()}
	goal := goals.Block{X: 10, Y: y, Z: 0}
	cfg := settings.Defaults()
	cfg.Avoidance = true

	_, direct := s.Plan(cat, cfg, s.Start(), goal)
	s.Hazards.Set("fire", favoring.Avoidance{Center: blockpos.New(5, y, 0), Radius: 2, Coefficient: 50})
	_, around := s.Plan(cat, cfg, s.Start(), goal)
	if direct.Path == nil || around.Path == nil {
		t.Fatalf("missing path")
	}
	for _, p := range around.Path.Positions() {
		if p.DistSq(blockpos.New(5, y, 0)) <= 4 {
			t.Fatalf("path crosses hazard at %v", p)
		}
	}
	if around.Path.TotalCost() <= direct.Path.TotalCost() {
		t.Fatalf("detour cost %.2f not above direct %.2f", around.Path.TotalCost(), direct.Path.TotalCost())
	}
}

// Package scene builds and saves the world a planner runs in: terrain, the
// agent's starting point and goal, and the hazards in force.
package scene

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl64"

	"voxelpath.ai/internal/catalogs"
	"voxelpath.ai/internal/pathing/blockpos"
	"voxelpath.ai/internal/pathing/favoring"
	"voxelpath.ai/internal/pathing/goals"
	"voxelpath.ai/internal/persistence/snapshot"
	"voxelpath.ai/internal/terrain/gen"
	"voxelpath.ai/internal/terrain/store"
)

type Scene struct {
	ID    string
	Tick  uint64
	Store *store.Store

	Seed int64
	// Gen is nil for hand-built scenes.
	Gen *gen.Params

	Agent   mgl64.Vec3
	Goal    *goals.Spec
	Hazards *favoring.Hazards
}

// Generated creates a seeded world with the chunks within loadRadius of the
// origin loaded and the agent standing on the spawn column.
func Generated(cat *catalogs.BlockCatalog, id string, seed int64, loadRadius int) *Scene {
	p := gen.DefaultParams(seed)
	g := gen.New(p, gen.PaletteFrom(cat))
	st := store.New(p.Height, g)
	st.EnsureLoaded(0, 0, loadRadius)
	return &Scene{
		ID:      id,
		Store:   st,
		Seed:    seed,
		Gen:     &p,
		Agent:   mgl64.Vec3{0.5, float64(g.SurfaceY(0, 0) + 1), 0.5},
		Hazards: favoring.NewHazards(),
	}
}

// Load reads a scene file and rebuilds it against cat, remapping block ids
// when the file was written with a different palette.
func Load(path string, cat *catalogs.BlockCatalog) (*Scene, error) {
	sc, err := snapshot.ReadScene(path)
	if err != nil {
		return nil, err
	}
	if sc.Header.Version != snapshot.Version {
		return nil, fmt.Errorf("scene %s: unsupported version %d", path, sc.Header.Version)
	}
	var remap []catalogs.StateID
	if sc.PaletteDigest != cat.PaletteDigest {
		remap, err = store.PaletteRemap(sc.Palette, cat)
		if err != nil {
			return nil, fmt.Errorf("scene %s: %w", path, err)
		}
	}
	out := &Scene{
		ID:      sc.Header.SceneID,
		Tick:    sc.Header.Tick,
		Seed:    sc.Seed,
		Agent:   mgl64.Vec3{sc.Agent.Pos[0], sc.Agent.Pos[1], sc.Agent.Pos[2]},
		Goal:    sc.Agent.Goal,
		Hazards: favoring.NewHazards(),
	}
	var g *gen.Generator
	if sc.Generate {
		p := gen.Params{
			Seed:                sc.Seed,
			Height:              sc.Height,
			GroundY:             sc.Gen.GroundY,
			HillAmplitude:       sc.Gen.HillAmplitude,
			HillGrid:            sc.Gen.HillGrid,
			SeaLevel:            sc.Gen.SeaLevel,
			BiomeRegionSize:     sc.Gen.BiomeRegionSize,
			SpawnClearRadius:    sc.Gen.SpawnClearRadius,
			TreePermille:        sc.Gen.TreePermille,
			LavaClusterPermille: sc.Gen.LavaClusterPermille,
		}
		out.Gen = &p
		g = gen.New(p, gen.PaletteFrom(cat))
	}
	out.Store, err = store.ImportChunks(sc.Height, g, sc.Chunks, remap)
	if err != nil {
		return nil, fmt.Errorf("scene %s: %w", path, err)
	}
	for _, h := range sc.Hazards {
		zone, err := favoring.NewAvoidance(blockpos.FromArray(h.Center), h.Radius, h.Coefficient)
		if err == nil {
			err = out.Hazards.Set(h.ID, zone)
		}
		if err != nil {
			return nil, fmt.Errorf("scene %s: %w", path, err)
		}
	}
	return out, nil
}

// Export captures the scene with the agent at pos pursuing goal.
func (s *Scene) Export(cat *catalogs.BlockCatalog, tick uint64, pos mgl64.Vec3, goal goals.Goal) snapshot.SceneV1 {
	sc := snapshot.SceneV1{
		Header:        snapshot.Header{Version: snapshot.Version, SceneID: s.ID, Tick: tick},
		Seed:          s.Seed,
		Height:        s.Store.Height(),
		PaletteDigest: cat.PaletteDigest,
		Palette:       append([]string(nil), cat.Palette...),
		Chunks:        s.Store.ExportLoadedChunks(),
		Agent:         snapshot.AgentV1{Pos: [3]float64{pos.X(), pos.Y(), pos.Z()}},
	}
	if goal != nil {
		if spec, ok := goals.Describe(goal); ok {
			sc.Agent.Goal = &spec
		}
	}
	if s.Gen != nil {
		sc.Generate = true
		sc.Gen = snapshot.GenV1{
			GroundY:             s.Gen.GroundY,
			HillAmplitude:       s.Gen.HillAmplitude,
			HillGrid:            s.Gen.HillGrid,
			SeaLevel:            s.Gen.SeaLevel,
			BiomeRegionSize:     s.Gen.BiomeRegionSize,
			SpawnClearRadius:    s.Gen.SpawnClearRadius,
			TreePermille:        s.Gen.TreePermille,
			LavaClusterPermille: s.Gen.LavaClusterPermille,
		}
	}
	for _, h := range s.Hazards.List() {
		sc.Hazards = append(sc.Hazards, snapshot.HazardV1{ID: h.ID, Center: h.Center.ToArray(), Radius: h.Radius, Coefficient: h.Coefficient})
	}
	return sc
}

// Save writes Export to path.
func (s *Scene) Save(path string, cat *catalogs.BlockCatalog, tick uint64, pos mgl64.Vec3, goal goals.Goal) error {
	return snapshot.WriteScene(path, s.Export(cat, tick, pos, goal))
}

// Package gen produces deterministic terrain columns from a seed.
package gen

import (
	"voxelpath.ai/internal/catalogs"
	"voxelpath.ai/internal/pathing/blockpos"
)

type Params struct {
	Seed   int64
	Height int

	GroundY          int
	HillAmplitude    int
	HillGrid         int
	SeaLevel         int
	BiomeRegionSize  int
	SpawnClearRadius int

	TreePermille        int
	LavaClusterPermille int
}

func DefaultParams(seed int64) Params {
	return Params{
		Seed:                seed,
		Height:              64,
		GroundY:             32,
		HillAmplitude:       5,
		HillGrid:            24,
		SeaLevel:            30,
		BiomeRegionSize:     64,
		SpawnClearRadius:    6,
		TreePermille:        12,
		LavaClusterPermille: 120,
	}
}

type Palette struct {
	Air, Bedrock, Stone, Dirt, Grass, Sand, Gravel, Log, Water, Lava catalogs.StateID
}

func PaletteFrom(cat *catalogs.BlockCatalog) Palette {
	return Palette{
		Air:     catalogs.Air,
		Bedrock: cat.MustID("BEDROCK"),
		Stone:   cat.MustID("STONE"),
		Dirt:    cat.MustID("DIRT"),
		Grass:   cat.MustID("GRASS_BLOCK"),
		Sand:    cat.MustID("SAND"),
		Gravel:  cat.MustID("GRAVEL"),
		Log:     cat.MustID("LOG"),
		Water:   cat.MustID("WATER"),
		Lava:    cat.MustID("LAVA"),
	}
}

type Generator struct {
	P   Params
	Pal Palette
}

func New(p Params, pal Palette) *Generator { return &Generator{P: p, Pal: pal} }

// SurfaceY is the y of the topmost ground block of a column.
func (g *Generator) SurfaceY(x, z int) int {
	h := g.P.GroundY
	if g.P.HillAmplitude > 0 && g.P.HillGrid > 0 && !WithinSpawnClear(x, z, g.P.SpawnClearRadius) {
		n := valueNoise(g.P.Seed+17, x, z, g.P.HillGrid)
		h += int(float64(g.P.HillAmplitude)*(2*n-1) + 0.5)
	}
	if h < 1 {
		h = 1
	}
	if h > g.P.Height-8 {
		h = g.P.Height - 8
	}
	return h
}

// Column fills out[y] for 0 <= y < len(out).
func (g *Generator) Column(x, z int, out []catalogs.StateID) {
	surface := g.SurfaceY(x, z)
	biome := BiomeAt(g.P.Seed, x, z, g.P.BiomeRegionSize)
	clear := WithinSpawnClear(x, z, g.P.SpawnClearRadius)
	top := g.Pal.Grass
	if biome == "DESERT" || surface < g.P.SeaLevel {
		top = g.Pal.Sand
	}
	if !clear && InCluster(g.P.Seed+11, x, z, 40, 2, uint64(ClampPermille(g.P.LavaClusterPermille))) {
		top = g.Pal.Lava
	}

	for y := range out {
		var b catalogs.StateID
		switch {
		case y == 0:
			b = g.Pal.Bedrock
		case y < surface-3:
			b = g.Pal.Stone
			if Hash3(g.P.Seed+5, x, y, z)%1000 < 15 {
				b = g.Pal.Gravel
			}
		case y < surface:
			b = g.Pal.Dirt
		case y == surface:
			b = top
		case y <= g.P.SeaLevel:
			b = g.Pal.Water
		default:
			b = g.Pal.Air
		}
		out[y] = b
	}

	if clear || biome != "FOREST" || surface < g.P.SeaLevel || top == g.Pal.Lava {
		return
	}
	if Hash2(g.P.Seed+7, x, z)%1000 < uint64(ClampPermille(g.P.TreePermille)) {
		for y := surface + 1; y <= surface+4 && y < len(out); y++ {
			out[y] = g.Pal.Log
		}
	}
}

func mix64(z uint64) uint64 {
	z += 0x9e3779b97f4a7c15
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}

func Hash2(seed int64, x, z int) uint64 {
	ux := uint64(uint32(int32(x)))
	uz := uint64(uint32(int32(z)))
	v := uint64(seed) ^ (ux * 0x9e3779b97f4a7c15) ^ (uz * 0xbf58476d1ce4e5b9)
	return mix64(v)
}

func Hash3(seed int64, x, y, z int) uint64 {
	ux := uint64(uint32(int32(x)))
	uy := uint64(uint32(int32(y)))
	uz := uint64(uint32(int32(z)))
	v := uint64(seed) ^ (ux * 0x9e3779b97f4a7c15) ^ (uy * 0xc2b2ae3d27d4eb4f) ^ (uz * 0xbf58476d1ce4e5b9)
	return mix64(v)
}

// valueNoise is bilinear value noise in [0,1) with smoothstep easing.
func valueNoise(seed int64, x, z, grid int) float64 {
	gx := blockpos.FloorDiv(x, grid)
	gz := blockpos.FloorDiv(z, grid)
	fx := smooth(float64(blockpos.Mod(x, grid)) / float64(grid))
	fz := smooth(float64(blockpos.Mod(z, grid)) / float64(grid))

	v00 := unit(Hash2(seed, gx, gz))
	v10 := unit(Hash2(seed, gx+1, gz))
	v01 := unit(Hash2(seed, gx, gz+1))
	v11 := unit(Hash2(seed, gx+1, gz+1))

	a := v00 + (v10-v00)*fx
	b := v01 + (v11-v01)*fx
	return a + (b-a)*fz
}

func unit(h uint64) float64 { return float64(h>>11) / float64(uint64(1)<<53) }

func smooth(t float64) float64 { return t * t * (3 - 2*t) }

func BiomeFrom(noise uint64) string {
	switch noise % 3 {
	case 0:
		return "PLAINS"
	case 1:
		return "FOREST"
	default:
		return "DESERT"
	}
}

func BiomeAt(seed int64, x, z, regionSize int) string {
	if regionSize <= 0 {
		regionSize = 1
	}
	rx := blockpos.FloorDiv(x, regionSize)
	rz := blockpos.FloorDiv(z, regionSize)
	return BiomeFrom(Hash2(seed, rx, rz))
}

func WithinSpawnClear(x, z, radius int) bool {
	if radius <= 0 {
		return false
	}
	r := int64(radius)
	dx := int64(x)
	dz := int64(z)
	return dx*dx+dz*dz <= r*r
}

func ClampPermille(v int) int {
	if v < 0 {
		return 0
	}
	if v > 1000 {
		return 1000
	}
	return v
}

// InCluster reports whether (x,z) falls inside one of the sparse discs
// scattered over a grid of the given cell size.
func InCluster(seed int64, x, z, grid, radius int, probPermille uint64) bool {
	if grid <= 0 || radius <= 0 || probPermille == 0 {
		return false
	}
	gx := blockpos.FloorDiv(x, grid)
	gz := blockpos.FloorDiv(z, grid)
	r2 := radius * radius

	for dz := -1; dz <= 1; dz++ {
		for dx := -1; dx <= 1; dx++ {
			cgx := gx + dx
			cgz := gz + dz
			h := Hash2(seed, cgx, cgz)
			if h%1000 >= probPermille {
				continue
			}

			ox := int((h >> 10) % uint64(grid))
			oz := int((h >> 20) % uint64(grid))
			cx := cgx*grid + ox
			cz := cgz*grid + oz

			ddx := x - cx
			ddz := z - cz
			if ddx*ddx+ddz*ddz <= r2 {
				return true
			}
		}
	}
	return false
}

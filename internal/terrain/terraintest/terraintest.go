// Package terraintest builds small in-memory worlds for tests.
package terraintest

import (
	"voxelpath.ai/internal/catalogs"
	"voxelpath.ai/internal/pathing/blockpos"
	"voxelpath.ai/internal/terrain/store"
)

const (
	Height = 32
	// FloorY is the top of the floor; agents stand at FloorY+1.
	FloorY = 4
)

// Flat returns a store with a stone floor covering [-r, r] on both axes and
// bedrock underneath. Everything above the floor is air.
func Flat(cat *catalogs.BlockCatalog, r int) *store.Store {
	s := store.New(Height, nil)
	s.Fill(blockpos.New(-r, 0, -r), blockpos.New(r, 0, r), cat.MustID("BEDROCK"))
	s.Fill(blockpos.New(-r, 1, -r), blockpos.New(r, FloorY, r), cat.MustID("STONE"))
	return s
}

// Wall places a straight wall of block along x=x0..x1, z=z0..z1 from the
// floor up, h blocks tall.
func Wall(s *store.Store, cat *catalogs.BlockCatalog, block string, x0, z0, x1, z1, h int) {
	s.Fill(blockpos.New(min(x0, x1), FloorY+1, min(z0, z1)), blockpos.New(max(x0, x1), FloorY+h, max(z0, z1)), cat.MustID(block))
}

// Set writes a single block, loading its chunk if needed.
func Set(s *store.Store, cat *catalogs.BlockCatalog, block string, x, y, z int) {
	p := blockpos.New(x, y, z)
	s.Fill(p, p, cat.MustID(block))
}

// SealBox encloses the two-tall cell above (x, FloorY, z) in bedrock on all
// sides, top and bottom, so nothing inside can reach anything outside.
func SealBox(s *store.Store, cat *catalogs.BlockCatalog, x, z int) {
	bedrock := cat.MustID("BEDROCK")
	s.Fill(blockpos.New(x-1, FloorY, z-1), blockpos.New(x+1, FloorY+3, z+1), bedrock)
	s.Fill(blockpos.New(x, FloorY+1, z), blockpos.New(x, FloorY+2, z), catalogs.Air)
}

// Stairs builds a one-wide staircase rising along +x from (x, FloorY+1, z).
func Stairs(s *store.Store, cat *catalogs.BlockCatalog, block string, x, z, steps int) {
	id := cat.MustID(block)
	for i := 0; i < steps; i++ {
		s.Fill(blockpos.New(x+i, FloorY+1, z), blockpos.New(x+i, FloorY+1+i, z), id)
	}
}

package store

import (
	"crypto/sha256"
	"encoding/binary"

	"voxelpath.ai/internal/catalogs"
	"voxelpath.ai/internal/pathing/blockpos"
)

const ChunkSize = 16

type ChunkKey struct {
	CX int
	CZ int
}

func KeyOf(x, z int) ChunkKey {
	return ChunkKey{CX: blockpos.FloorDiv(x, ChunkSize), CZ: blockpos.FloorDiv(z, ChunkSize)}
}

// Chunk is a 16x16 column of Height blocks. Once frozen it may be shared with
// snapshots and must not be written; the store copies it first.
type Chunk struct {
	CX, CZ int
	Height int
	Blocks []catalogs.StateID // len = 16*16*Height, index x + z*16 + y*256

	frozen bool
	dirty  bool
	hash   [32]byte
}

func newChunk(cx, cz, height int) *Chunk {
	return &Chunk{
		CX:     cx,
		CZ:     cz,
		Height: height,
		Blocks: make([]catalogs.StateID, ChunkSize*ChunkSize*height),
		dirty:  true,
	}
}

func (c *Chunk) index(x, y, z int) int {
	return x + z*ChunkSize + y*ChunkSize*ChunkSize
}

func (c *Chunk) Get(x, y, z int) catalogs.StateID {
	return c.Blocks[c.index(x, y, z)]
}

func (c *Chunk) set(x, y, z int, b catalogs.StateID) {
	i := c.index(x, y, z)
	if c.Blocks[i] == b {
		return
	}
	c.Blocks[i] = b
	c.dirty = true
}

func (c *Chunk) clone() *Chunk {
	out := &Chunk{CX: c.CX, CZ: c.CZ, Height: c.Height, dirty: c.dirty, hash: c.hash}
	out.Blocks = make([]catalogs.StateID, len(c.Blocks))
	copy(out.Blocks, c.Blocks)
	return out
}

func (c *Chunk) Digest() [32]byte {
	if c.dirty || c.hash == ([32]byte{}) {
		h := sha256.New()
		var tmp [2]byte
		for _, v := range c.Blocks {
			binary.LittleEndian.PutUint16(tmp[:], uint16(v))
			h.Write(tmp[:])
		}
		copy(c.hash[:], h.Sum(nil))
		c.dirty = false
	}
	return c.hash
}

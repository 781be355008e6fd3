package store

import (
	"fmt"

	"voxelpath.ai/internal/catalogs"
	snapv1 "voxelpath.ai/internal/persistence/snapshot"
	genpkg "voxelpath.ai/internal/terrain/gen"
)

// ExportLoadedChunks converts the loaded terrain into snapshot chunks,
// ordered by chunk key.
func (s *Store) ExportLoadedChunks() []snapv1.ChunkV1 {
	keys := s.LoadedChunkKeys()
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]snapv1.ChunkV1, 0, len(keys))
	for _, k := range keys {
		ch := s.chunks[k]
		if ch == nil {
			continue
		}
		blocks := make([]uint16, len(ch.Blocks))
		for i, b := range ch.Blocks {
			blocks[i] = uint16(b)
		}
		out = append(out, snapv1.ChunkV1{
			CX:     k.CX,
			CZ:     k.CZ,
			Height: ch.Height,
			Blocks: blocks,
		})
	}
	return out
}

// ImportChunks rebuilds a store from snapshot chunks. remap translates the
// stored ids into the running catalog and may be nil when palettes match.
func ImportChunks(height int, gen *genpkg.Generator, chunks []snapv1.ChunkV1, remap []catalogs.StateID) (*Store, error) {
	store := New(height, gen)
	want := ChunkSize * ChunkSize * height
	for _, ch := range chunks {
		if ch.Height != height {
			return nil, fmt.Errorf("snapshot chunk height mismatch: got %d want %d", ch.Height, height)
		}
		if len(ch.Blocks) != want {
			return nil, fmt.Errorf("snapshot chunk blocks length mismatch: got %d want %d", len(ch.Blocks), want)
		}
		k := ChunkKey{CX: ch.CX, CZ: ch.CZ}
		if _, dup := store.chunks[k]; dup {
			return nil, fmt.Errorf("duplicate snapshot chunk %d,%d", k.CX, k.CZ)
		}
		c := newChunk(ch.CX, ch.CZ, height)
		for i, b := range ch.Blocks {
			id := catalogs.StateID(b)
			if remap != nil {
				if int(b) >= len(remap) {
					return nil, fmt.Errorf("chunk %d,%d: block id %d outside palette", k.CX, k.CZ, b)
				}
				id = remap[b]
			}
			c.Blocks[i] = id
		}
		_ = c.Digest()
		store.chunks[k] = c
	}
	return store, nil
}

// PaletteRemap maps ids of a stored palette onto cat. Names the catalog does
// not know are an error.
func PaletteRemap(stored []string, cat *catalogs.BlockCatalog) ([]catalogs.StateID, error) {
	out := make([]catalogs.StateID, len(stored))
	for i, name := range stored {
		id, ok := cat.ID(name)
		if !ok {
			return nil, fmt.Errorf("unknown block %q in stored palette", name)
		}
		out[i] = id
	}
	return out, nil
}

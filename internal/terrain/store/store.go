// Package store holds the live terrain. Calculations never read it directly;
// they take a Snapshot, which stays consistent while the store keeps changing.
package store

import (
	"sort"
	"sync"

	"voxelpath.ai/internal/catalogs"
	"voxelpath.ai/internal/pathing/blockpos"
	genpkg "voxelpath.ai/internal/terrain/gen"
)

// BlockListener is told about every block that changes after it registers.
// Calls happen outside the store lock, in change order, on the writer goroutine.
type BlockListener interface {
	OnBlockChanged(x, y, z int, old, cur catalogs.StateID)
}

type Store struct {
	mu     sync.RWMutex
	height int
	gen    *genpkg.Generator
	chunks map[ChunkKey]*Chunk

	// version increases with every mutation, so snapshots can be reused while it holds.
	version uint64
	snap    *Snapshot

	lmu       sync.Mutex
	listeners []BlockListener
}

// New creates an empty store. With a nil generator, chunks that are loaded
// without data are all air.
func New(height int, gen *genpkg.Generator) *Store {
	return &Store{
		height: height,
		gen:    gen,
		chunks: map[ChunkKey]*Chunk{},
	}
}

func (s *Store) Height() int { return s.height }

func (s *Store) Generator() *genpkg.Generator { return s.gen }

func (s *Store) Bounds() (minY, maxY int) { return 0, s.height - 1 }

func (s *Store) AddListener(l BlockListener) {
	s.lmu.Lock()
	s.listeners = append(s.listeners, l)
	s.lmu.Unlock()
}

func (s *Store) RemoveListener(l BlockListener) {
	s.lmu.Lock()
	defer s.lmu.Unlock()
	for i, cur := range s.listeners {
		if cur == l {
			s.listeners = append(s.listeners[:i], s.listeners[i+1:]...)
			return
		}
	}
}

func (s *Store) StateAt(x, y, z int) catalogs.StateID {
	if y < 0 || y >= s.height {
		return catalogs.Air
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	ch := s.chunks[KeyOf(x, z)]
	if ch == nil {
		return catalogs.Air
	}
	return ch.Get(blockpos.Mod(x, ChunkSize), y, blockpos.Mod(z, ChunkSize))
}

func (s *Store) IsLoaded(x, z int) bool {
	s.mu.RLock()
	_, ok := s.chunks[KeyOf(x, z)]
	s.mu.RUnlock()
	return ok
}

func (s *Store) LoadedChunkKeys() []ChunkKey {
	s.mu.RLock()
	keys := make([]ChunkKey, 0, len(s.chunks))
	for k := range s.chunks {
		keys = append(keys, k)
	}
	s.mu.RUnlock()
	sortKeys(keys)
	return keys
}

func sortKeys(keys []ChunkKey) {
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].CX != keys[j].CX {
			return keys[i].CX < keys[j].CX
		}
		return keys[i].CZ < keys[j].CZ
	})
}

// LoadChunk makes a chunk available, generating it when the store has a generator.
func (s *Store) LoadChunk(cx, cz int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loadLocked(cx, cz)
}

func (s *Store) loadLocked(cx, cz int) bool {
	k := ChunkKey{CX: cx, CZ: cz}
	if _, ok := s.chunks[k]; ok {
		return false
	}
	ch := newChunk(cx, cz, s.height)
	if s.gen != nil {
		s.generate(ch)
	}
	s.chunks[k] = ch
	s.version++
	return true
}

func (s *Store) generate(ch *Chunk) {
	col := make([]catalogs.StateID, s.height)
	for z := 0; z < ChunkSize; z++ {
		for x := 0; x < ChunkSize; x++ {
			s.gen.Column(ch.CX*ChunkSize+x, ch.CZ*ChunkSize+z, col)
			for y, b := range col {
				ch.Blocks[ch.index(x, y, z)] = b
			}
		}
	}
}

// EnsureLoaded loads every chunk within radius chunks of the block column
// (x, z) and returns how many were new.
func (s *Store) EnsureLoaded(x, z, radius int) int {
	c := KeyOf(x, z)
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for dz := -radius; dz <= radius; dz++ {
		for dx := -radius; dx <= radius; dx++ {
			if s.loadLocked(c.CX+dx, c.CZ+dz) {
				n++
			}
		}
	}
	return n
}

func (s *Store) UnloadChunk(cx, cz int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := ChunkKey{CX: cx, CZ: cz}
	if _, ok := s.chunks[k]; ok {
		delete(s.chunks, k)
		s.version++
	}
}

// SetBlock writes into a loaded chunk. It reports false for unloaded columns
// and heights outside the world.
func (s *Store) SetBlock(x, y, z int, b catalogs.StateID) bool {
	old, changed, ok := s.set(x, y, z, b)
	if ok && changed {
		s.notify(x, y, z, old, b)
	}
	return ok
}

func (s *Store) set(x, y, z int, b catalogs.StateID) (old catalogs.StateID, changed, ok bool) {
	if y < 0 || y >= s.height {
		return catalogs.Air, false, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	k := KeyOf(x, z)
	ch := s.chunks[k]
	if ch == nil {
		return catalogs.Air, false, false
	}
	lx, lz := blockpos.Mod(x, ChunkSize), blockpos.Mod(z, ChunkSize)
	old = ch.Get(lx, y, lz)
	if old == b {
		return old, false, true
	}
	if ch.frozen {
		ch = ch.clone()
		s.chunks[k] = ch
	}
	ch.set(lx, y, lz, b)
	s.version++
	return old, true, true
}

// Fill sets every block in the inclusive box, loading chunks as needed. It
// is meant for building scenes and fires listeners like SetBlock.
func (s *Store) Fill(lo, hi blockpos.Pos, b catalogs.StateID) {
	for x := lo.X; x <= hi.X; x++ {
		for z := lo.Z; z <= hi.Z; z++ {
			k := KeyOf(x, z)
			s.LoadChunk(k.CX, k.CZ)
			for y := lo.Y; y <= hi.Y; y++ {
				s.SetBlock(x, y, z, b)
			}
		}
	}
}

func (s *Store) notify(x, y, z int, old, b catalogs.StateID) {
	s.lmu.Lock()
	ls := append([]BlockListener(nil), s.listeners...)
	s.lmu.Unlock()
	for _, l := range ls {
		l.OnBlockChanged(x, y, z, old, b)
	}
}

// ChunkDigest returns the content hash of a loaded chunk.
func (s *Store) ChunkDigest(cx, cz int) ([32]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch := s.chunks[ChunkKey{CX: cx, CZ: cz}]
	if ch == nil {
		return [32]byte{}, false
	}
	if ch.frozen {
		// Frozen chunks are read concurrently; hash a private copy.
		return ch.clone().Digest(), true
	}
	return ch.Digest(), true
}

// Snapshot returns a read-only view of the loaded terrain. Taking one is
// O(loaded chunks); later writes copy the affected chunk instead of touching it.
func (s *Store) Snapshot() *Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.snap != nil && s.snap.version == s.version {
		return s.snap
	}
	chunks := make(map[ChunkKey]*Chunk, len(s.chunks))
	for k, ch := range s.chunks {
		ch.frozen = true
		chunks[k] = ch
	}
	s.snap = &Snapshot{height: s.height, chunks: chunks, version: s.version}
	return s.snap
}

// Snapshot is immutable and safe for concurrent readers.
type Snapshot struct {
	height  int
	chunks  map[ChunkKey]*Chunk
	version uint64
}

func (v *Snapshot) StateAt(x, y, z int) catalogs.StateID {
	if y < 0 || y >= v.height {
		return catalogs.Air
	}
	ch := v.chunks[KeyOf(x, z)]
	if ch == nil {
		return catalogs.Air
	}
	return ch.Get(blockpos.Mod(x, ChunkSize), y, blockpos.Mod(z, ChunkSize))
}

func (v *Snapshot) IsLoaded(x, z int) bool {
	_, ok := v.chunks[KeyOf(x, z)]
	return ok
}

func (v *Snapshot) Bounds() (minY, maxY int) { return 0, v.height - 1 }

func (v *Snapshot) Version() uint64 { return v.version }

func (v *Snapshot) ChunkCount() int { return len(v.chunks) }

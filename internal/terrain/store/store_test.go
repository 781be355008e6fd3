package store

import (
	"sync"
	"testing"

	"voxelpath.ai/internal/catalogs"
	"voxelpath.ai/internal/pathing/blockpos"
	snapv1 "voxelpath.ai/internal/persistence/snapshot"
	genpkg "voxelpath.ai/internal/terrain/gen"
)

type recorder struct {
	mu      sync.Mutex
	changes [][5]int
}

func (r *recorder) OnBlockChanged(x, y, z int, old, cur catalogs.StateID) {
	r.mu.Lock()
	r.changes = append(r.changes, [5]int{x, y, z, int(old), int(cur)})
	r.mu.Unlock()
}

func TestUnloadedReadsAsAir(t *testing.T) {
	s := New(32, nil)
	if s.IsLoaded(5, 5) {
		t.Fatalf("fresh store should have nothing loaded")
	}
	if got := s.StateAt(5, 3, 5); got != catalogs.Air {
		t.Fatalf("unloaded block=%d", got)
	}
	if s.SetBlock(5, 3, 5, 7) {
		t.Fatalf("SetBlock into an unloaded chunk should fail")
	}
}

func TestSetBlockNegativeCoordinates(t *testing.T) {
	s := New(16, nil)
	s.LoadChunk(-1, -1)
	if !s.SetBlock(-1, 4, -16, 9) {
		t.Fatalf("SetBlock failed")
	}
	if got := s.StateAt(-1, 4, -16); got != 9 {
		t.Fatalf("StateAt=%d want 9", got)
	}
	if got := s.StateAt(-1, 5, -16); got != catalogs.Air {
		t.Fatalf("neighbour above changed: %d", got)
	}
	if s.SetBlock(-1, 16, -16, 9) || s.SetBlock(-1, -1, -16, 9) {
		t.Fatalf("writes outside the height range should fail")
	}
}

func TestSnapshotIsolatedFromLaterWrites(t *testing.T) {
	s := New(16, nil)
	s.Fill(blockpos.New(0, 0, 0), blockpos.New(3, 0, 3), 2)
	snap := s.Snapshot()
	if snap.StateAt(1, 0, 1) != 2 {
		t.Fatalf("snapshot missing filled block")
	}
	s.SetBlock(1, 0, 1, 5)
	if got := snap.StateAt(1, 0, 1); got != 2 {
		t.Fatalf("snapshot saw a later write: %d", got)
	}
	if got := s.StateAt(1, 0, 1); got != 5 {
		t.Fatalf("store lost the write: %d", got)
	}
	if again := s.Snapshot(); again == snap || again.StateAt(1, 0, 1) != 5 {
		t.Fatalf("new snapshot should reflect the write")
	}
}

func TestSnapshotReusedWhileUnchanged(t *testing.T) {
	s := New(16, nil)
	s.LoadChunk(0, 0)
	a := s.Snapshot()
	b := s.Snapshot()
	if a != b {
		t.Fatalf("expected the cached snapshot")
	}
	s.UnloadChunk(0, 0)
	if c := s.Snapshot(); c == a || c.IsLoaded(0, 0) {
		t.Fatalf("unload should invalidate the snapshot")
	}
}

func TestListenersSeeChanges(t *testing.T) {
	s := New(16, nil)
	s.LoadChunk(0, 0)
	r := &recorder{}
	s.AddListener(r)
	s.SetBlock(2, 3, 4, 6)
	s.SetBlock(2, 3, 4, 6)
	s.SetBlock(2, 3, 4, 0)
	if len(r.changes) != 2 {
		t.Fatalf("changes=%v", r.changes)
	}
	if r.changes[0] != [5]int{2, 3, 4, 0, 6} || r.changes[1] != [5]int{2, 3, 4, 6, 0} {
		t.Fatalf("unexpected changes %v", r.changes)
	}
	s.RemoveListener(r)
	s.SetBlock(2, 3, 4, 1)
	if len(r.changes) != 2 {
		t.Fatalf("removed listener still notified")
	}
}

func TestEnsureLoadedGenerates(t *testing.T) {
	cat := catalogs.Default()
	p := genpkg.DefaultParams(3)
	s := New(p.Height, genpkg.New(p, genpkg.PaletteFrom(cat)))
	if n := s.EnsureLoaded(0, 0, 1); n != 9 {
		t.Fatalf("loaded %d chunks want 9", n)
	}
	if n := s.EnsureLoaded(0, 0, 1); n != 0 {
		t.Fatalf("second call loaded %d", n)
	}
	if got := s.StateAt(0, 0, 0); got != cat.MustID("BEDROCK") {
		t.Fatalf("y=0 is %s", cat.Name(got))
	}
	if !s.IsLoaded(-16, 31) || s.IsLoaded(32, 0) {
		t.Fatalf("loaded area mismatch")
	}
}

func TestChunkDigestTracksContent(t *testing.T) {
	s := New(8, nil)
	s.LoadChunk(0, 0)
	a, ok := s.ChunkDigest(0, 0)
	if !ok {
		t.Fatalf("missing chunk")
	}
	s.SetBlock(1, 1, 1, 3)
	b, _ := s.ChunkDigest(0, 0)
	if a == b {
		t.Fatalf("digest did not change")
	}
	s.SetBlock(1, 1, 1, 0)
	_ = s.Snapshot()
	c, _ := s.ChunkDigest(0, 0)
	if c != a {
		t.Fatalf("digest should depend only on content")
	}
}

func TestExportAndImportChunksRoundTrip(t *testing.T) {
	s := New(4, nil)
	s.LoadChunk(1, -2)
	s.SetBlock(16, 0, -32, 3)
	s.SetBlock(17, 2, -31, 9)

	exported := s.ExportLoadedChunks()
	if len(exported) != 1 {
		t.Fatalf("expected 1 exported chunk, got %d", len(exported))
	}
	if exported[0].Height != 4 || exported[0].Blocks[0] != 3 {
		t.Fatalf("unexpected exported chunk %+v", exported[0].Blocks[:4])
	}

	imported, err := ImportChunks(4, nil, exported, nil)
	if err != nil {
		t.Fatalf("import failed: %v", err)
	}
	if got := imported.StateAt(16, 0, -32); got != 3 {
		t.Fatalf("block 0 = %d", got)
	}
	if got := imported.StateAt(17, 2, -31); got != 9 {
		t.Fatalf("block 1 = %d", got)
	}
}

func TestImportChunksRemapsPalette(t *testing.T) {
	cat := catalogs.Default()
	remap, err := PaletteRemap([]string{"AIR", "STONE"}, cat)
	if err != nil {
		t.Fatalf("PaletteRemap: %v", err)
	}
	blocks := make([]uint16, ChunkSize*ChunkSize)
	blocks[0] = 1
	s, err := ImportChunks(1, nil, []snapv1.ChunkV1{{Height: 1, Blocks: blocks}}, remap)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if got := s.StateAt(0, 0, 0); got != cat.MustID("STONE") {
		t.Fatalf("remapped id = %d", got)
	}
	if _, err := PaletteRemap([]string{"UNOBTAINIUM"}, cat); err == nil {
		t.Fatalf("expected unknown block error")
	}
}

func TestImportChunksRejectsInvalidShape(t *testing.T) {
	_, err := ImportChunks(2, nil, []snapv1.ChunkV1{{
		CX:     0,
		CZ:     0,
		Height: 2,
		Blocks: make([]uint16, 16*16),
	}}, nil)
	if err == nil {
		t.Fatalf("expected error for invalid chunk shape")
	}
}

package catalogs

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultCatalogAirIsZero(t *testing.T) {
	c := Default()
	if c.Palette[0] != "AIR" {
		t.Fatalf("palette[0]=%q", c.Palette[0])
	}
	if c.Def(Air).Kind != KindAir {
		t.Fatalf("state 0 kind=%q", c.Def(Air).Kind)
	}
	stone := c.MustID("STONE")
	if c.Def(stone).Kind != KindSolid || !c.Def(stone).Breakable() {
		t.Fatalf("stone def=%+v", c.Def(stone))
	}
	if c.Def(c.MustID("BEDROCK")).Breakable() {
		t.Fatalf("bedrock should be unbreakable")
	}
	if c.PaletteDigest == "" || c.DefsDigest == "" {
		t.Fatalf("missing digests")
	}
}

func TestParseRejectsBadInput(t *testing.T) {
	cases := map[string]string{
		"missing air":  `[{"id":"STONE","kind":"SOLID"}]`,
		"unknown kind": `[{"id":"AIR","kind":"AIR"},{"id":"X","kind":"JELLY"}]`,
		"empty id":     `[{"id":"AIR","kind":"AIR"},{"id":"","kind":"SOLID"}]`,
		"duplicate":    `[{"id":"AIR","kind":"AIR"},{"id":"AIR","kind":"AIR"}]`,
		"not json":     `{`,
	}
	for name, raw := range cases {
		if _, err := Parse([]byte(raw)); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestUnknownStateReadsAsAir(t *testing.T) {
	c := Default()
	if c.Known(StateID(60000)) {
		t.Fatalf("state 60000 should be unknown")
	}
	if c.Def(StateID(60000)).Kind != KindAir {
		t.Fatalf("unknown state should read as air")
	}
}

func TestLoadFromDir(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "blocks.json"), defaultBlocks, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	c, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.PaletteDigest != Default().PaletteDigest {
		t.Fatalf("digest mismatch")
	}
}

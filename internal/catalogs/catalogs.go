package catalogs

import (
	"crypto/sha256"
	_ "embed"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// StateID is the palette index of a block. It is stable for the lifetime of a catalog.
type StateID uint16

const Air StateID = 0

type Kind string

const (
	KindAir        Kind = "AIR"
	KindSolid      Kind = "SOLID"
	KindSoulSand   Kind = "SOUL_SAND"
	KindSlabBottom Kind = "SLAB_BOTTOM"
	KindWater      Kind = "WATER"
	KindLava       Kind = "LAVA"
	KindFire       Kind = "FIRE"
	KindClimbable  Kind = "CLIMBABLE"
	KindCarpet     Kind = "CARPET"
	KindPlant      Kind = "PLANT"
	KindDoorOpen   Kind = "DOOR_OPEN"
	KindDoorClosed Kind = "DOOR_CLOSED"
	KindFence      Kind = "FENCE"
)

var knownKinds = map[Kind]bool{
	KindAir: true, KindSolid: true, KindSoulSand: true, KindSlabBottom: true, KindWater: true,
	KindLava: true, KindFire: true, KindClimbable: true, KindCarpet: true, KindPlant: true,
	KindDoorOpen: true, KindDoorClosed: true, KindFence: true,
}

//go:embed blocks.json
var defaultBlocks []byte

type BlockCatalog struct {
	Palette       []string
	Index         map[string]StateID
	Defs          map[string]BlockDef
	PaletteDigest string
	DefsDigest    string

	byState []BlockDef
}

type BlockDef struct {
	ID   string `json:"id"`
	Kind Kind   `json:"kind"`
	// Hardness is the break time scale. Negative means the block cannot be broken.
	Hardness float64 `json:"hardness"`
	Falls    bool    `json:"falls,omitempty"`
	Danger   bool    `json:"danger,omitempty"`
}

func (d BlockDef) Breakable() bool { return d.Hardness >= 0 && d.Kind != KindAir }

func (d BlockDef) Liquid() bool { return d.Kind == KindWater || d.Kind == KindLava }

// Load reads blocks.json from configDir.
func Load(configDir string) (*BlockCatalog, error) {
	raw, err := os.ReadFile(filepath.Join(configDir, "blocks.json"))
	if err != nil {
		return nil, err
	}
	return Parse(raw)
}

// Default returns the catalog compiled into the binary.
func Default() *BlockCatalog {
	c, err := Parse(defaultBlocks)
	if err != nil {
		panic(fmt.Sprintf("catalogs: embedded blocks.json: %v", err))
	}
	return c
}

func Parse(raw []byte) (*BlockCatalog, error) {
	out := &BlockCatalog{DefsDigest: sha256Hex(raw)}

	var defs []BlockDef
	if err := json.Unmarshal(raw, &defs); err != nil {
		return nil, fmt.Errorf("blocks.json: %w", err)
	}
	out.Defs = map[string]BlockDef{}
	for _, d := range defs {
		if d.ID == "" {
			return nil, fmt.Errorf("blocks.json: empty id")
		}
		if !knownKinds[d.Kind] {
			return nil, fmt.Errorf("blocks.json: %s: unknown kind %q", d.ID, d.Kind)
		}
		if _, dup := out.Defs[d.ID]; dup {
			return nil, fmt.Errorf("blocks.json: duplicate id %s", d.ID)
		}
		out.Defs[d.ID] = d
	}
	if len(out.Defs) > 1<<16 {
		return nil, fmt.Errorf("blocks.json: %d blocks exceed the state id space", len(out.Defs))
	}

	ids := make([]string, 0, len(out.Defs))
	for id := range out.Defs {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	// Ensure AIR exists and is palette id 0.
	air, ok := out.Defs["AIR"]
	if !ok {
		return nil, fmt.Errorf("blocks.json: missing AIR")
	}
	if air.Kind != KindAir {
		return nil, fmt.Errorf("blocks.json: AIR must have kind AIR")
	}
	ids = append([]string{"AIR"}, filterOut(ids, "AIR")...)

	out.Palette = ids
	out.Index = make(map[string]StateID, len(ids))
	out.byState = make([]BlockDef, len(ids))
	for i, id := range ids {
		out.Index[id] = StateID(i)
		out.byState[i] = out.Defs[id]
	}
	palJSON, _ := json.Marshal(ids)
	out.PaletteDigest = sha256Hex(palJSON)
	return out, nil
}

// Def returns the definition for a state. Unknown states read as AIR.
func (c *BlockCatalog) Def(s StateID) BlockDef {
	if int(s) < len(c.byState) {
		return c.byState[s]
	}
	return c.byState[Air]
}

func (c *BlockCatalog) Known(s StateID) bool { return int(s) < len(c.byState) }

func (c *BlockCatalog) ID(name string) (StateID, bool) {
	s, ok := c.Index[name]
	return s, ok
}

// MustID is for fixtures and generators that reference catalog entries by name.
func (c *BlockCatalog) MustID(name string) StateID {
	s, ok := c.Index[name]
	if !ok {
		panic("catalogs: unknown block " + name)
	}
	return s
}

func (c *BlockCatalog) Name(s StateID) string {
	if int(s) < len(c.Palette) {
		return c.Palette[s]
	}
	return fmt.Sprintf("UNKNOWN_%d", s)
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func filterOut(ids []string, drop string) []string {
	out := ids[:0]
	for _, id := range ids {
		if id != drop {
			out = append(out, id)
		}
	}
	return out
}

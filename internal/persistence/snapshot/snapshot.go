package snapshot

import (
	"bufio"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"

	"voxelpath.ai/internal/pathing/goals"
)

const Version = 1

type Header struct {
	Version int    `json:"version"`
	SceneID string `json:"scene_id"`
	Tick    uint64 `json:"tick"`
}

// SceneV1 is everything needed to rerun a calculation: the terrain that was
// loaded, how missing terrain is generated, the agent and the active hazards.
type SceneV1 struct {
	Header Header `json:"header"`

	Seed   int64 `json:"seed"`
	Height int   `json:"height"`

	// Palette pins state ids to block names. Loading a scene against a catalog
	// with a different digest remaps by name.
	PaletteDigest string   `json:"palette_digest"`
	Palette       []string `json:"palette"`

	// Generate is false for hand-built scenes: terrain outside Chunks stays unloaded.
	Generate bool  `json:"generate"`
	Gen      GenV1 `json:"gen"`

	Chunks  []ChunkV1  `json:"chunks"`
	Agent   AgentV1    `json:"agent"`
	Hazards []HazardV1 `json:"hazards,omitempty"`
}

type GenV1 struct {
	GroundY             int `json:"ground_y"`
	HillAmplitude       int `json:"hill_amplitude"`
	HillGrid            int `json:"hill_grid"`
	SeaLevel            int `json:"sea_level"`
	BiomeRegionSize     int `json:"biome_region_size"`
	SpawnClearRadius    int `json:"spawn_clear_radius"`
	TreePermille        int `json:"tree_permille"`
	LavaClusterPermille int `json:"lava_cluster_permille"`
}

type ChunkV1 struct {
	CX     int      `json:"cx"`
	CZ     int      `json:"cz"`
	Height int      `json:"height"`
	Blocks []uint16 `json:"blocks"`
}

type AgentV1 struct {
	Pos  [3]float64  `json:"pos"`
	Goal *goals.Spec `json:"goal,omitempty"`
}

type HazardV1 struct {
	ID          string  `json:"id"`
	Center      [3]int  `json:"center"`
	Radius      int     `json:"radius"`
	Coefficient float64 `json:"coefficient"`
}

func WriteScene(path string, scene SceneV1) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	defer enc.Close()

	bw := bufio.NewWriterSize(enc, 256*1024)
	defer bw.Flush()

	if scene.Header.Version == 0 {
		scene.Header.Version = Version
	}
	hb, _ := json.Marshal(scene.Header)
	if _, err := bw.Write(hb); err != nil {
		return err
	}
	if err := bw.WriteByte('\n'); err != nil {
		return err
	}

	if err := gob.NewEncoder(bw).Encode(&scene); err != nil {
		return fmt.Errorf("gob encode: %w", err)
	}
	return nil
}

// ReadHeader decodes only the leading JSON line, for listing scenes cheaply.
func ReadHeader(path string) (Header, error) {
	var h Header
	f, err := os.Open(path)
	if err != nil {
		return h, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return h, err
	}
	defer dec.Close()

	line, err := bufio.NewReader(dec).ReadBytes('\n')
	if err != nil {
		return h, fmt.Errorf("read header: %w", err)
	}
	if err := json.Unmarshal(line, &h); err != nil {
		return h, fmt.Errorf("decode header: %w", err)
	}
	return h, nil
}

func ReadScene(path string) (SceneV1, error) {
	var scene SceneV1
	f, err := os.Open(path)
	if err != nil {
		return scene, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return scene, err
	}
	defer dec.Close()

	br := bufio.NewReaderSize(dec, 256*1024)

	// The gob payload repeats the header.
	if _, err := br.ReadBytes('\n'); err != nil {
		return scene, fmt.Errorf("read header: %w", err)
	}

	if err := gob.NewDecoder(br).Decode(&scene); err != nil {
		return scene, fmt.Errorf("gob decode: %w", err)
	}
	if scene.Header.Version != Version {
		return scene, fmt.Errorf("unsupported scene version %d", scene.Header.Version)
	}
	return scene, nil
}

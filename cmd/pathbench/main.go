package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"voxelpath.ai/internal/catalogs"
	"voxelpath.ai/internal/pathing/goals"
	"voxelpath.ai/internal/pathing/settings"
	"voxelpath.ai/internal/persistence/indexdb"
	"voxelpath.ai/internal/protocol"
	"voxelpath.ai/internal/scene"
)

func main() {
	var (
		configDir  = flag.String("configs", "./configs", "config directory")
		tuningPath = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
		scenePath  = flag.String("scene", "", "scene file (default: generate one)")
		seed       = flag.Int64("seed", 1337, "terrain seed for generated scenes")
		loadRadius = flag.Int("load_radius", 4, "chunks loaded around the origin in generated scenes")
		goalJSON   = flag.String("goal", "", `goal spec as JSON, e.g. {"kind":"XZ","pos":[40,0,12]} (default: the scene's goal)`)
		runs       = flag.Int("runs", 5, "calculations to run")
		dbPath     = flag.String("db", "", "sqlite index to record each run in (optional)")
	)
	flag.Parse()

	cat, err := catalogs.Load(*configDir)
	if err != nil {
		if !os.IsNotExist(err) {
			fatal("load catalogs", err)
		}
		cat = catalogs.Default()
	}
	tp := strings.TrimSpace(*tuningPath)
	if tp == "" {
		tp = filepath.Join(*configDir, "tuning.yaml")
	}
	tune, err := settings.Load(tp)
	if err != nil {
		if !os.IsNotExist(err) {
			fatal("load tuning", err)
		}
		tune = settings.Defaults()
	}
	tune.Normalize()

	var sc *scene.Scene
	if *scenePath != "" {
		if sc, err = scene.Load(*scenePath, cat); err != nil {
			fatal("load scene", err)
		}
	} else {
		sc = scene.Generated(cat, "bench", *seed, *loadRadius)
	}

	spec := sc.Goal
	if *goalJSON != "" {
		spec = &goals.Spec{}
		if err := json.Unmarshal([]byte(*goalJSON), spec); err != nil {
			fatal("parse -goal", err)
		}
	}
	if spec == nil {
		fmt.Fprintln(os.Stderr, "no goal: pass -goal or use a scene that carries one")
		os.Exit(2)
	}
	goal, err := spec.Build()
	if err != nil {
		fatal("goal", err)
	}

	var idx *indexdb.SQLiteIndex
	if *dbPath != "" {
		if idx, err = indexdb.OpenSQLite(*dbPath); err != nil {
			fatal("open index", err)
		}
		defer idx.Close()
	}

	start := sc.Start()
	fmt.Printf("scene=%s chunks=%d start=%v goal=%v runs=%d\n", sc.ID, len(sc.Store.LoadedChunkKeys()), start, goal, *runs)

	durs := make([]time.Duration, 0, *runs)
	for i := 0; i < *runs; i++ {
		rec, _ := sc.Plan(cat, tune, start, goal)
		rec.Tick = uint64(i)
		durs = append(durs, rec.Duration)
		fmt.Printf("run %d: result=%s nodes=%d len=%d cost=%.1f reaches=%v took=%s\n",
			i, rec.Result, rec.NumNodes, rec.PathLength, rec.PathCost, rec.Reaches, rec.Duration.Round(time.Microsecond))
		if idx != nil {
			idx.WriteCalc(protocol.NewCalc(rec))
		}
	}
	if len(durs) == 0 {
		return
	}
	sort.Slice(durs, func(i, j int) bool { return durs[i] < durs[j] })
	fmt.Printf("p50=%s max=%s\n", durs[len(durs)/2].Round(time.Microsecond), durs[len(durs)-1].Round(time.Microsecond))
}

func fatal(what string, err error) {
	fmt.Fprintf(os.Stderr, "%s: %v\n", what, err)
	os.Exit(1)
}

package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"voxelpath.ai/internal/catalogs"
	"voxelpath.ai/internal/pathing/blockpos"
	"voxelpath.ai/internal/pathing/settings"
	persistlog "voxelpath.ai/internal/persistence/log"
	"voxelpath.ai/internal/protocol"
	"voxelpath.ai/internal/scene"
)

// replay summarizes the calculation and path-event logs a pathd data
// directory holds. Given a scene, it also reruns every logged calculation
// against that terrain and reports the ones whose outcome changed.
func main() {
	var (
		dataDir   = flag.String("data", "./data", "pathd data directory (calcs/ and events/)")
		scenePath = flag.String("scene", "", "scene file to rerun calculations against (optional)")
		configDir = flag.String("configs", "./configs", "config directory")
		fromTick  = flag.Uint64("from_tick", 0, "ignore entries before tick (inclusive, optional)")
		toTick    = flag.Uint64("to_tick", 0, "stop at tick (inclusive, optional)")
	)
	flag.Parse()

	calcs, err := readCalcs(filepath.Join(*dataDir, "calcs"), *fromTick, *toTick)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read calcs:", err)
		os.Exit(1)
	}
	events, err := countEvents(filepath.Join(*dataDir, "events"), *fromTick, *toTick)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read events:", err)
		os.Exit(1)
	}
	printSummary(calcs, events)

	if *scenePath == "" {
		return
	}
	cat, err := catalogs.Load(*configDir)
	if err != nil {
		if !os.IsNotExist(err) {
			fmt.Fprintln(os.Stderr, "load catalogs:", err)
			os.Exit(1)
		}
		cat = catalogs.Default()
	}
	tune, err := settings.Load(filepath.Join(*configDir, "tuning.yaml"))
	if err != nil {
		tune = settings.Defaults()
	}
	tune.Normalize()
	sc, err := scene.Load(*scenePath, cat)
	if err != nil {
		fmt.Fprintln(os.Stderr, "load scene:", err)
		os.Exit(1)
	}

	var checked, changed int
	for _, m := range calcs {
		if m.Goal == nil || m.Result == "CANCELLATION" {
			continue
		}
		g, err := m.Goal.Build()
		if err != nil {
			continue
		}
		rec, _ := sc.Plan(cat, tune, blockpos.FromArray(m.Start), g)
		checked++
		if rec.Reaches != m.Reaches {
			changed++
			fmt.Printf("tick %d: %s from %v: logged reaches=%v, now reaches=%v (%s)\n", m.Tick, m.GoalText, m.Start, m.Reaches, rec.Reaches, rec.Result)
		}
	}
	fmt.Printf("replay: checked=%d changed=%d against scene=%s tick=%d\n", checked, changed, sc.ID, sc.Tick)
	if changed > 0 {
		os.Exit(1)
	}
}

func inRange(tick, from, to uint64) bool {
	return tick >= from && (to == 0 || tick <= to)
}

func readCalcs(dir string, from, to uint64) ([]protocol.CalcMsg, error) {
	files, err := persistlog.ListFiles(dir, "calcs")
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var out []protocol.CalcMsg
	for _, path := range files {
		err := persistlog.ReadFile(path, func(line []byte) error {
			var m protocol.CalcMsg
			if err := json.Unmarshal(line, &m); err != nil {
				return fmt.Errorf("unmarshal: %w", err)
			}
			if inRange(m.Tick, from, to) {
				out = append(out, m)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

func countEvents(dir string, from, to uint64) (map[string]int, error) {
	files, err := persistlog.ListFiles(dir, "events")
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]int{}, nil
		}
		return nil, err
	}
	out := map[string]int{}
	for _, path := range files {
		err := persistlog.ReadFile(path, func(line []byte) error {
			var m protocol.PathEventMsg
			if err := json.Unmarshal(line, &m); err != nil {
				return fmt.Errorf("unmarshal: %w", err)
			}
			if inRange(m.Tick, from, to) {
				out[m.Event]++
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

func printSummary(calcs []protocol.CalcMsg, events map[string]int) {
	byResult := map[string]int{}
	var nodes int
	var ms []float64
	for _, m := range calcs {
		byResult[m.Result]++
		nodes += m.NumNodes
		ms = append(ms, m.DurationMS)
	}
	fmt.Printf("calcs=%d nodes=%d %s\n", len(calcs), nodes, formatCounts(byResult))
	if len(ms) > 0 {
		sort.Float64s(ms)
		fmt.Printf("duration_ms p50=%.2f p95=%.2f max=%.2f\n", ms[len(ms)/2], ms[len(ms)*95/100], ms[len(ms)-1])
	}
	fmt.Printf("events %s\n", formatCounts(events))
}

func formatCounts(m map[string]int) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%d", k, m[k]))
	}
	return strings.Join(parts, " ")
}

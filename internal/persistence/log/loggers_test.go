package log

import (
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"voxelpath.ai/internal/pathing/behavior"
	"voxelpath.ai/internal/pathing/blockpos"
	"voxelpath.ai/internal/pathing/calc"
	"voxelpath.ai/internal/pathing/goals"
	"voxelpath.ai/internal/protocol"
)

func readAll[T any](t *testing.T, dir, prefix string) []T {
	t.Helper()
	files, err := ListFiles(dir, prefix)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	var out []T
	for _, f := range files {
		err := ReadFile(f, func(line []byte) error {
			var v T
			if err := json.Unmarshal(line, &v); err != nil {
				return err
			}
			out = append(out, v)
			return nil
		})
		if err != nil {
			t.Fatalf("read %s: %v", f, err)
		}
	}
	return out
}

func TestWriterRotatesHourly(t *testing.T) {
	dir := t.TempDir()
	w := NewJSONLZstdWriter(dir, "x")
	now := time.Date(2024, 5, 1, 10, 59, 0, 0, time.UTC)
	w.now = func() time.Time { return now }
	var closed []string
	w.OnSegmentClosed(func(p string) { closed = append(closed, filepath.Base(p)) })

	for i := 0; i < 3; i++ {
		if err := w.Write(map[string]int{"i": i}); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	now = now.Add(2 * time.Minute)
	if err := w.Write(map[string]int{"i": 3}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	files, err := ListFiles(dir, "x")
	if err != nil || len(files) != 2 {
		t.Fatalf("files=%v err=%v", files, err)
	}
	if filepath.Base(files[0]) != "x-2024-05-01-10.jsonl.zst" || filepath.Base(files[1]) != "x-2024-05-01-11.jsonl.zst" {
		t.Fatalf("files=%v", files)
	}
	if len(closed) != 2 || closed[0] != "x-2024-05-01-10.jsonl.zst" || closed[1] != "x-2024-05-01-11.jsonl.zst" {
		t.Fatalf("closed=%v", closed)
	}
	rows := readAll[map[string]int](t, dir, "x")
	if len(rows) != 4 {
		t.Fatalf("rows=%v", rows)
	}
	for i, r := range rows {
		if r["i"] != i {
			t.Fatalf("row %d = %v", i, r)
		}
	}
}

func TestReopenAppends(t *testing.T) {
	dir := t.TempDir()
	fixed := func() time.Time { return time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC) }
	for i := 0; i < 2; i++ {
		w := NewJSONLZstdWriter(dir, "x")
		w.now = fixed
		if err := w.Write(map[string]int{"i": i}); err != nil {
			t.Fatalf("write: %v", err)
		}
		if err := w.Close(); err != nil {
			t.Fatalf("close: %v", err)
		}
	}
	if rows := readAll[map[string]int](t, dir, "x"); len(rows) != 2 || rows[1]["i"] != 1 {
		t.Fatalf("rows=%v", rows)
	}
}

func TestListenersWriteProtocolLines(t *testing.T) {
	dir := t.TempDir()
	calcs := NewCalcLogger(dir, nil)
	events := NewEventLogger(dir, nil)

	calcs.OnCalcFinished(behavior.CalcRecord{
		Tick:       12,
		Start:      blockpos.New(1, 5, 1),
		Goal:       goals.Block{X: 9, Y: 5, Z: 9},
		Result:     calc.SuccessToGoal,
		NumNodes:   321,
		Duration:   3 * time.Millisecond,
		PathLength: 9,
		PathCost:   42,
		Reaches:    true,
	})
	events.OnPathEvent(behavior.Event{Type: behavior.CalcFinishedNowExecuting, Tick: 13, Feet: blockpos.New(1, 5, 1)})
	events.OnPathEvent(behavior.Event{Type: behavior.AtGoal, Tick: 60, Feet: blockpos.New(9, 5, 9)})
	if err := calcs.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := events.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	cs := readAll[protocol.CalcMsg](t, filepath.Join(dir, "calcs"), "calcs")
	if len(cs) != 1 {
		t.Fatalf("calcs=%v", cs)
	}
	c := cs[0]
	if c.Type != protocol.TypeCalc || c.Result != "SUCCESS_TO_GOAL" || c.Goal == nil || c.Goal.Pos != [3]int{9, 5, 9} || c.DurationMS != 3 {
		t.Fatalf("calc=%+v", c)
	}

	es := readAll[protocol.PathEventMsg](t, filepath.Join(dir, "events"), "events")
	if len(es) != 2 || es[0].Event != "CALC_FINISHED_NOW_EXECUTING" || es[1].Event != "AT_GOAL" || es[1].Feet != [3]int{9, 5, 9} {
		t.Fatalf("events=%+v", es)
	}
}

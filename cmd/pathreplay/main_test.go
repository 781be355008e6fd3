package main

import (
	"testing"

	persistlog "voxelpath.ai/internal/persistence/log"
	"voxelpath.ai/internal/protocol"
)

func TestReadLogs(t *testing.T) {
	dir := t.TempDir()
	calcs := persistlog.NewCalcLogger(dir, nil)
	for i, res := range []string{"SUCCESS_TO_GOAL", "FAILURE", "SUCCESS_TO_GOAL"} {
		if err := calcs.WriteCalc(protocol.CalcMsg{Type: protocol.TypeCalc, ProtocolVersion: protocol.Version, Tick: uint64(10 * i), Result: res, NumNodes: 100}); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	if err := calcs.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	events := persistlog.NewEventLogger(dir, nil)
	for _, ev := range []string{"CALC_STARTED", "AT_GOAL", "CALC_STARTED"} {
		if err := events.WriteEvent(protocol.PathEventMsg{Type: protocol.TypePathEvent, ProtocolVersion: protocol.Version, Tick: 5, Event: ev}); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	if err := events.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	got, err := readCalcs(dir+"/calcs", 10, 0)
	if err != nil {
		t.Fatalf("readCalcs: %v", err)
	}
	if len(got) != 2 || got[0].Result != "FAILURE" || got[1].Tick != 20 {
		t.Fatalf("calcs=%+v", got)
	}
	counts, err := countEvents(dir+"/events", 0, 0)
	if err != nil {
		t.Fatalf("countEvents: %v", err)
	}
	if counts["CALC_STARTED"] != 2 || counts["AT_GOAL"] != 1 {
		t.Fatalf("counts=%v", counts)
	}
	if s := formatCounts(counts); s != "AT_GOAL=1 CALC_STARTED=2" {
		t.Fatalf("formatCounts=%q", s)
	}

	missing, err := readCalcs(dir+"/nope", 0, 0)
	if err != nil || len(missing) != 0 {
		t.Fatalf("missing dir: %v %v", missing, err)
	}
}

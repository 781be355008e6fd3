package protocol_test

import (
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"voxelpath.ai/internal/catalogs"
	"voxelpath.ai/internal/pathing/behavior"
	"voxelpath.ai/internal/pathing/blockpos"
	"voxelpath.ai/internal/pathing/blockrules"
	"voxelpath.ai/internal/pathing/calc"
	"voxelpath.ai/internal/pathing/goals"
	"voxelpath.ai/internal/pathing/path"
	"voxelpath.ai/internal/pathing/precompute"
	"voxelpath.ai/internal/pathing/settings"
	"voxelpath.ai/internal/pathing/worldctx"
	"voxelpath.ai/internal/protocol"
	"voxelpath.ai/internal/terrain/terraintest"
)

func compile(t *testing.T, name string) *jsonschema.Schema {
	t.Helper()
	p := filepath.Join("..", "..", "schemas", name)
	s, err := jsonschema.Compile(p)
	if err != nil {
		t.Fatalf("compile %s: %v", name, err)
	}
	return s
}

// asJSON round-trips v so the validator sees what a client would.
func asJSON(t *testing.T, v any) any {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal %T: %v", v, err)
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	return out
}

func validate(t *testing.T, s *jsonschema.Schema, v any) {
	t.Helper()
	if err := s.Validate(asJSON(t, v)); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestSchemas_ValidateSamples(t *testing.T) {
	y := terraintest.FloorY + 1
	maintain := 64
	goal := protocol.GoalReq{
		Type:            protocol.TypeGoal,
		ProtocolVersion: protocol.Version,
		ID:              "G1",
		Mode:            protocol.GoalModeSetAndPath,
		Goal: &goals.Spec{Kind: goals.KindComposite, Goals: []goals.Spec{
			{Kind: goals.KindBlock, Pos: [3]int{1, 2, 3}},
			{Kind: goals.KindInverted, Origin: &goals.Spec{Kind: goals.KindNear, Pos: [3]int{0, 64, 0}, Range: 4}},
			{Kind: goals.KindRunAway, Range: 10, MaintainY: &maintain, From: [][3]int{{0, 64, 0}}},
		}},
	}
	validate(t, compile(t, "goal.schema.json"), goal)

	eta := 12.5
	validate(t, compile(t, "status.schema.json"), protocol.StatusMsg{
		Type:            protocol.TypeStatus,
		ProtocolVersion: protocol.Version,
		Tick:            7,
		Pos:             [3]float64{0.5, float64(y), 0.5},
		Feet:            [3]int{0, y, 0},
		OnGround:        true,
		Goal:            protocol.GoalSpec(goals.XZ{X: 10, Z: -4}),
		HasPath:         true,
		ETATicks:        &eta,
	})

	cat := catalogs.Default()
	st := terraintest.Flat(cat, 8)
	s := settings.Defaults()
	rules := blockrules.New(cat, s.AssumeWalkOnWater)
	w := worldctx.New(st, precompute.New(rules), rules, s)
	p := path.PostProcess(w, path.Raw{
		Positions: []blockpos.Pos{blockpos.New(0, y, 0), blockpos.New(1, y, 0), blockpos.New(2, y, 1)},
		Costs:     []float64{0, 100, 200},
		Goal:      goals.Block{X: 2, Y: y, Z: 1},
	})
	validate(t, compile(t, "path.schema.json"), protocol.PathMsg{
		Type:            protocol.TypePath,
		ProtocolVersion: protocol.Version,
		Tick:            3,
		Current:         protocol.NewPathView(p, 1),
		Goal:            protocol.GoalSpec(p.Goal()),
	})

	for e := behavior.CalcStarted; e <= behavior.Canceled; e++ {
		validate(t, compile(t, "path_event.schema.json"), protocol.NewPathEvent(behavior.Event{Type: e, Tick: 9, Feet: blockpos.New(1, y, 1)}))
	}

	validate(t, compile(t, "calc.schema.json"), protocol.NewCalc(behavior.CalcRecord{
		Tick:       4,
		Start:      blockpos.New(0, y, 0),
		Goal:       goals.Block{X: 5, Y: y, Z: 5},
		Result:     calc.SuccessSegment,
		NumNodes:   1234,
		Duration:   15 * time.Millisecond,
		PathLength: 6,
		PathCost:   30.5,
	}))
	validate(t, compile(t, "calc.schema.json"), protocol.NewCalc(behavior.CalcRecord{
		Goal:   goals.YLevel{Level: 3},
		Result: calc.Exception,
		Err:    errors.New("boom"),
	}))

	validate(t, compile(t, "subscribe.schema.json"), protocol.SubscribeMsg{
		Type:            protocol.TypeSubscribe,
		ProtocolVersion: protocol.Version,
		Streams:         []string{protocol.StreamStatus, protocol.StreamEvents},
	})
}

func TestSchemas_RejectBadGoal(t *testing.T) {
	s := compile(t, "goal.schema.json")
	var bad any
	_ = json.Unmarshal([]byte(`{
	  "type":"GOAL",
	  "protocol_version":"1.0",
	  "goal":{"kind":"TELEPORT","pos":[1,2,3]}
	}`), &bad)
	if err := s.Validate(bad); err == nil {
		t.Fatalf("unknown goal kind accepted")
	}
	_ = json.Unmarshal([]byte(`{
	  "type":"GOAL",
	  "protocol_version":"1.0",
	  "goal":{"kind":"NEAR","pos":[1,2],"range":-1}
	}`), &bad)
	if err := s.Validate(bad); err == nil {
		t.Fatalf("short pos and negative range accepted")
	}
}

func TestDecodeBase(t *testing.T) {
	m, err := protocol.DecodeBase([]byte(`{"type":"CANCEL","protocol_version":"1.0","force":true}`))
	if err != nil || m.Type != protocol.TypeCancel || m.ProtocolVersion != protocol.Version {
		t.Fatalf("m=%+v err=%v", m, err)
	}
	if _, err := protocol.DecodeBase([]byte(`{`)); err == nil {
		t.Fatalf("truncated message decoded")
	}
}

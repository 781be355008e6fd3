package protocol

import "voxelpath.ai/internal/pathing/goals"

// Goal modes.
const (
	GoalModeSet        = "SET"
	GoalModeSetAndPath = "SET_AND_PATH"
)

// GOAL (client -> server)
type GoalReq struct {
	Type            string      `json:"type"`
	ProtocolVersion string      `json:"protocol_version"`
	ID              string      `json:"id,omitempty"`
	Mode            string      `json:"mode,omitempty"`
	Goal            *goals.Spec `json:"goal"`
}

// CANCEL (client -> server)
type CancelReq struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	ID              string `json:"id,omitempty"`
	// Force stops mid-movement and drops the running calculation.
	Force bool `json:"force,omitempty"`
}

type AckMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	AckFor          string `json:"ack_for,omitempty"`
	Accepted        bool   `json:"accepted"`
	Code            string `json:"code,omitempty"`
	Message         string `json:"message,omitempty"`
	ServerTick      uint64 `json:"server_tick,omitempty"`
}

// Observer streams.
const (
	StreamStatus = "status"
	StreamPath   = "path"
	StreamEvents = "events"
	StreamCalcs  = "calcs"
)

// SUBSCRIBE (observer -> server). First message on the observer connection;
// it can be re-sent to change streams. No streams means all of them.
type SubscribeMsg struct {
	Type            string   `json:"type"`
	ProtocolVersion string   `json:"protocol_version"`
	Streams         []string `json:"streams,omitempty"`
	// EveryTicks thins the status stream to one message per N ticks.
	EveryTicks int `json:"every_ticks,omitempty"`
}

// STATUS (server -> observer), once per tick.
type StatusMsg struct {
	Type            string      `json:"type"`
	ProtocolVersion string      `json:"protocol_version"`
	Tick            uint64      `json:"tick"`
	Pos             [3]float64  `json:"pos"`
	Feet            [3]int      `json:"feet"`
	OnGround        bool        `json:"on_ground"`
	Goal            *goals.Spec `json:"goal,omitempty"`
	HasPath         bool        `json:"has_path"`
	PathPosition    int         `json:"path_position"`
	HasNext         bool        `json:"has_next"`
	Calculating     bool        `json:"calculating"`
	SafeToCancel    bool        `json:"safe_to_cancel"`
	ETATicks        *float64    `json:"eta_ticks,omitempty"`
}

// PATH (server -> observer), whenever the walked path changes, and the body
// of GET /v1/path.
type PathMsg struct {
	Type            string      `json:"type"`
	ProtocolVersion string      `json:"protocol_version"`
	Tick            uint64      `json:"tick"`
	Current         *PathView   `json:"current,omitempty"`
	Next            *PathView   `json:"next,omitempty"`
	Goal            *goals.Spec `json:"goal,omitempty"`
}

type PathView struct {
	Positions [][3]int `json:"positions"`
	Movements []string `json:"movements"`
	Position  int      `json:"position"`
	Cost      float64  `json:"cost"`
	Reaches   bool     `json:"reaches_goal"`
	Nodes     int      `json:"nodes_considered"`
}

// PATH_EVENT (server -> observer; also the JSONL event log line).
type PathEventMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Tick            uint64 `json:"tick"`
	Event           string `json:"event"`
	Feet            [3]int `json:"feet"`
}

// CALC (server -> observer; also the JSONL calculation log line).
type CalcMsg struct {
	Type            string      `json:"type"`
	ProtocolVersion string      `json:"protocol_version"`
	Tick            uint64      `json:"tick"`
	Start           [3]int      `json:"start"`
	Goal            *goals.Spec `json:"goal,omitempty"`
	GoalText        string      `json:"goal_text"`
	Simplified      bool        `json:"simplified,omitempty"`
	PlanAhead       bool        `json:"plan_ahead,omitempty"`
	Result          string      `json:"result"`
	NumNodes        int         `json:"num_nodes"`
	DurationMS      float64     `json:"duration_ms"`
	PathLength      int         `json:"path_length"`
	PathCost        float64     `json:"path_cost"`
	Reaches         bool        `json:"reaches_goal"`
	Error           string      `json:"error,omitempty"`
}

package scene

import (
	"math"
	"time"

	"voxelpath.ai/internal/catalogs"
	"voxelpath.ai/internal/pathing/behavior"
	"voxelpath.ai/internal/pathing/blockpos"
	"voxelpath.ai/internal/pathing/blockrules"
	"voxelpath.ai/internal/pathing/calc"
	"voxelpath.ai/internal/pathing/favoring"
	"voxelpath.ai/internal/pathing/goals"
	"voxelpath.ai/internal/pathing/precompute"
	"voxelpath.ai/internal/pathing/settings"
	"voxelpath.ai/internal/pathing/worldctx"
)

// Start is the block the agent's feet occupy.
func (s *Scene) Start() blockpos.Pos {
	return blockpos.New(int(math.Floor(s.Agent.X())), int(math.Floor(s.Agent.Y())), int(math.Floor(s.Agent.Z())))
}

// Plan runs a single calculation over a snapshot of the scene's terrain,
// with the scene's hazards and the block danger scan feeding favoring the
// same way a live agent's would.
func (s *Scene) Plan(cat *catalogs.BlockCatalog, cfg settings.Settings, start blockpos.Pos, goal goals.Goal) (behavior.CalcRecord, calc.Result) {
	rules := blockrules.New(cat, cfg.AssumeWalkOnWater)
	snap := s.Store.Snapshot()
	ctx := worldctx.New(snap, precompute.New(rules), rules, cfg)

	var zones []favoring.Avoidance
	if cfg.Avoidance {
		scanner := favoring.BlockScanner{
			View:         snap,
			IsDanger:     rules.IsDanger,
			ScanRadius:   cfg.DangerScanRadius,
			ZoneRadius:   cfg.DangerAvoidanceRadius,
			Coefficient:  cfg.DangerAvoidanceCoefficient,
			MaxZoneCount: 64,
		}
		var hz favoring.DangerSource
		if s.Hazards != nil {
			hz = s.Hazards
		}
		zones = favoring.Collect(start, scanner, hz)
	}
	search := calc.New(start, goal, favoring.New(nil, cfg.BacktrackCostFavoringCoefficient, zones), ctx, cfg)
	res := search.Calculate(
		time.Duration(cfg.PrimaryTimeoutMs)*time.Millisecond,
		time.Duration(cfg.FailureTimeoutMs)*time.Millisecond,
	)
	rec := behavior.CalcRecord{
		Tick:     s.Tick,
		Start:    start,
		Goal:     goal,
		Result:   res.Type,
		NumNodes: res.NumNodes,
		Duration: res.Duration,
		Err:      res.Err,
	}
	if res.Path != nil {
		rec.PathLength = res.Path.Length()
		rec.PathCost = res.Path.TotalCost()
		rec.Reaches = res.Path.ReachesGoal()
	}
	return rec, res
}

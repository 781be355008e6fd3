package settings

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"voxelpath.ai/internal/pathing/favoring"
)

// Settings is threaded through the orchestrator, the calculation context and
// the executor. A value is copied into every calculation so that edits made
// while a search runs never affect it.
type Settings struct {
	TickRateHz int `yaml:"tick_rate_hz"`

	AllowBreak             bool `yaml:"allow_break"`
	AllowSprint            bool `yaml:"allow_sprint"`
	AllowDownward          bool `yaml:"allow_downward"`
	AllowDiagonalDescend   bool `yaml:"allow_diagonal_descend"`
	AssumeWalkOnWater      bool `yaml:"assume_walk_on_water"`
	MaxFallHeightNoWater   int  `yaml:"max_fall_height_no_water"`
	SimplifyUnloadedYCoord bool `yaml:"simplify_unloaded_y_coord"`
	CutoffAtLoadBoundary   bool `yaml:"cutoff_at_load_boundary"`
	SplicePath             bool `yaml:"splice_path"`

	JumpPenalty                 float64 `yaml:"jump_penalty"`
	WalkOnWaterOnePenalty       float64 `yaml:"walk_on_water_one_penalty"`
	BlockBreakAdditionalPenalty float64 `yaml:"block_break_additional_penalty"`
	BreakTicksPerHardness       float64 `yaml:"break_ticks_per_hardness"`

	PrimaryTimeoutMs          int64 `yaml:"primary_timeout_ms"`
	FailureTimeoutMs          int64 `yaml:"failure_timeout_ms"`
	PlanAheadPrimaryTimeoutMs int64 `yaml:"plan_ahead_primary_timeout_ms"`
	PlanAheadFailureTimeoutMs int64 `yaml:"plan_ahead_failure_timeout_ms"`

	PathingMaxChunkBorderFetch      int  `yaml:"pathing_max_chunk_border_fetch"`
	MinimumImprovementRepropagation bool `yaml:"minimum_improvement_repropagation"`

	BacktrackCostFavoringCoefficient float64 `yaml:"backtrack_cost_favoring_coefficient"`
	Avoidance                        bool    `yaml:"avoidance"`
	DangerAvoidanceCoefficient       float64 `yaml:"danger_avoidance_coefficient"`
	DangerAvoidanceRadius            int     `yaml:"danger_avoidance_radius"`
	DangerScanRadius                 int     `yaml:"danger_scan_radius"`

	MaxCostIncrease           float64 `yaml:"max_cost_increase"`
	CostVerificationLookahead int     `yaml:"cost_verification_lookahead"`
	MovementTimeoutTicks      int     `yaml:"movement_timeout_ticks"`
	PlanningTickLookahead     int     `yaml:"planning_tick_lookahead"`
	MaxPathHistoryLength      int     `yaml:"max_path_history_length"`
	PathHistoryCutoffAmount   int     `yaml:"path_history_cutoff_amount"`

	PathCutoffMinimumLength int     `yaml:"path_cutoff_minimum_length"`
	PathCutoffFactor        float64 `yaml:"path_cutoff_factor"`
}

func Defaults() Settings {
	return Settings{
		TickRateHz: 20,

		AllowBreak:             true,
		AllowSprint:            true,
		AllowDownward:          true,
		AllowDiagonalDescend:   false,
		AssumeWalkOnWater:      false,
		MaxFallHeightNoWater:   3,
		SimplifyUnloadedYCoord: true,
		CutoffAtLoadBoundary:   false,
		SplicePath:             true,

		JumpPenalty:                 2,
		WalkOnWaterOnePenalty:       3,
		BlockBreakAdditionalPenalty: 2,
		BreakTicksPerHardness:       30,

		PrimaryTimeoutMs:          500,
		FailureTimeoutMs:          2000,
		PlanAheadPrimaryTimeoutMs: 4000,
		PlanAheadFailureTimeoutMs: 5000,

		PathingMaxChunkBorderFetch:      50,
		MinimumImprovementRepropagation: true,

		BacktrackCostFavoringCoefficient: 0.5,
		Avoidance:                        true,
		DangerAvoidanceCoefficient:       1.5,
		DangerAvoidanceRadius:            4,
		DangerScanRadius:                 24,

		MaxCostIncrease:           10,
		CostVerificationLookahead: 5,
		MovementTimeoutTicks:      100,
		PlanningTickLookahead:     150,
		MaxPathHistoryLength:      300,
		PathHistoryCutoffAmount:   50,

		PathCutoffMinimumLength: 30,
		PathCutoffFactor:        0.9,
	}
}

// Load overlays a yaml file on top of Defaults.
func Load(path string) (Settings, error) {
	s := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return s, err
	}
	if err := yaml.Unmarshal(raw, &s); err != nil {
		return s, fmt.Errorf("tuning.yaml: %w", err)
	}
	s.Normalize()
	if err := s.Validate(); err != nil {
		return s, fmt.Errorf("tuning.yaml: %w", err)
	}
	return s, nil
}

// Normalize clamps values that have an obvious safe replacement.
func (s *Settings) Normalize() {
	d := Defaults()
	if s.TickRateHz <= 0 {
		s.TickRateHz = d.TickRateHz
	}
	if s.MaxFallHeightNoWater < 0 {
		s.MaxFallHeightNoWater = 0
	}
	if s.BreakTicksPerHardness <= 0 {
		s.BreakTicksPerHardness = d.BreakTicksPerHardness
	}
	if s.PathingMaxChunkBorderFetch <= 0 {
		s.PathingMaxChunkBorderFetch = d.PathingMaxChunkBorderFetch
	}
	if s.CostVerificationLookahead < 0 {
		s.CostVerificationLookahead = 0
	}
	if s.PathHistoryCutoffAmount > s.MaxPathHistoryLength {
		s.PathHistoryCutoffAmount = s.MaxPathHistoryLength
	}
}

func (s Settings) Validate() error {
	if s.PrimaryTimeoutMs <= 0 || s.FailureTimeoutMs <= 0 {
		return fmt.Errorf("timeouts must be positive")
	}
	if s.PrimaryTimeoutMs > s.FailureTimeoutMs {
		return fmt.Errorf("primary_timeout_ms %d exceeds failure_timeout_ms %d", s.PrimaryTimeoutMs, s.FailureTimeoutMs)
	}
	if s.PlanAheadPrimaryTimeoutMs <= 0 || s.PlanAheadPrimaryTimeoutMs > s.PlanAheadFailureTimeoutMs {
		return fmt.Errorf("bad plan-ahead timeouts %d/%d", s.PlanAheadPrimaryTimeoutMs, s.PlanAheadFailureTimeoutMs)
	}
	if s.BacktrackCostFavoringCoefficient <= 0 {
		return fmt.Errorf("backtrack_cost_favoring_coefficient must be positive")
	}
	if err := (favoring.Avoidance{Radius: s.DangerAvoidanceRadius, Coefficient: s.DangerAvoidanceCoefficient}).Validate(); err != nil {
		return fmt.Errorf("danger avoidance: %w", err)
	}
	if s.PathCutoffFactor <= 0 || s.PathCutoffFactor > 1 {
		return fmt.Errorf("path_cutoff_factor must be in (0,1]")
	}
	if s.PathCutoffMinimumLength < 1 {
		return fmt.Errorf("path_cutoff_minimum_length must be >= 1")
	}
	if s.JumpPenalty < 0 || s.WalkOnWaterOnePenalty < 0 || s.BlockBreakAdditionalPenalty < 0 {
		return fmt.Errorf("penalties must be non-negative")
	}
	return nil
}

// Package cost holds the tick-based movement cost model.
//
// Every cost is measured in game ticks (20 per second). Speeds are the
// real movement speeds of a player in blocks per second.
package cost

import "math"

const (
	TicksPerSecond = 20.0

	WalkOneBlockCost        = TicksPerSecond / 4.317
	WalkOneInWaterCost      = TicksPerSecond / 2.2
	WalkOneOverSoulSandCost = WalkOneBlockCost * 2
	LadderUpOneCost         = TicksPerSecond / 2.35
	LadderDownOneCost       = TicksPerSecond / 3.0
	SneakOneBlockCost       = TicksPerSecond / 1.3
	SprintOneBlockCost      = TicksPerSecond / 5.612
	SprintMultiplier        = SprintOneBlockCost / WalkOneBlockCost

	// WalkOffBlockCost covers walking from the block center to its edge before dropping.
	WalkOffBlockCost    = WalkOneBlockCost * 0.8
	CenterAfterFallCost = WalkOneBlockCost - WalkOffBlockCost

	// CostInf marks an impossible movement. It is finite so that sums of a
	// handful of costs never overflow or turn into NaN.
	CostInf = 1000000.0

	// CostHeuristic scales horizontal distance into ticks for goal heuristics.
	CostHeuristic = 3.563

	MaxFallDistance = 4096
)

// FallNBlocksCost[n] is the number of ticks needed to fall n blocks from rest.
var FallNBlocksCost = generateFallNBlocksCost()

var (
	Fall125BlocksCost = DistanceToTicks(1.25)
	Fall025BlocksCost = DistanceToTicks(0.25)

	// JumpOneBlockCost uses the symmetry of the jump parabola: rising one block
	// takes as long as falling from 1.25 down to 0.25 below the apex.
	JumpOneBlockCost = Fall125BlocksCost - Fall025BlocksCost
)

// Velocity is the downward speed in blocks per tick after falling for the given ticks.
func Velocity(ticks int) float64 {
	return (math.Pow(0.98, float64(ticks)) - 1) * -3.92
}

// DistanceToTicks integrates Velocity until distance is covered. The last,
// partial tick is interpolated linearly.
func DistanceToTicks(distance float64) float64 {
	if distance == 0 {
		return 0
	}
	remaining := distance
	ticks := 0
	for {
		v := Velocity(ticks)
		if remaining <= v {
			return float64(ticks) + remaining/v
		}
		remaining -= v
		ticks++
	}
}

// TicksToFall looks up the precomputed fall time for an integer distance.
// Distances past the table saturate to CostInf.
func TicksToFall(blocks int) float64 {
	if blocks < 0 {
		panic("cost: negative fall distance")
	}
	if blocks >= len(FallNBlocksCost) {
		return CostInf
	}
	return FallNBlocksCost[blocks]
}

func generateFallNBlocksCost() []float64 {
	costs := make([]float64, MaxFallDistance+1)
	for i := range costs {
		costs[i] = DistanceToTicks(float64(i))
	}
	return costs
}

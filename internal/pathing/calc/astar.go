package calc

import (
	"fmt"
	"math"
	"time"

	"voxelpath.ai/internal/pathing/blockpos"
	"voxelpath.ai/internal/pathing/cost"
	"voxelpath.ai/internal/pathing/movement"
	"voxelpath.ai/internal/pathing/path"
	"voxelpath.ai/internal/terrain/store"
)

// coefficients weight cost-so-far against the heuristic when tracking the
// best partial result. Larger values trust the heuristic more.
var coefficients = [...]float64{1.5, 2, 2.5, 3, 4, 5, 10}

const (
	// minDistPath is how far, in blocks, a partial result must get from
	// the start before it counts as progress.
	minDistPath = 5
	// minImprovement is the smallest cost drop that reopens a node.
	minImprovement = 0.01
	// timeCheckInterval must be a power of two.
	timeCheckInterval = 1 << 6
)

func (s *Search) run(begin time.Time, primary, failure time.Duration) (path.Raw, ResultType, State) {
	s.arena = newArena(s.goal)
	s.open = newOpenSet(s.arena)

	start := s.start
	s.root = s.arena.get(start.X, start.Y, start.Z, start.Hash())
	root := s.arena.at(s.root)
	root.cost = 0
	root.combinedCost = root.estimate
	s.open.insert(s.root)

	var bestSoFar [len(coefficients)]int32
	var bestHeuristicSoFar [len(coefficients)]float64
	for i := range coefficients {
		bestSoFar[i] = s.root
		bestHeuristicSoFar[i] = root.estimate
	}
	closest := s.root

	primaryDeadline := begin.Add(primary)
	failureDeadline := begin.Add(failure)
	isFavoring := !s.favoring.IsEmpty()
	failing := true
	numNodes := 0
	numEmptyChunk := 0
	final := Exhausted
	var res movement.Result

	for !s.open.isEmpty() && numEmptyChunk < s.maxChunkBorderFetch && !s.cancelRequested.Load() {
		if numNodes&(timeCheckInterval-1) == 0 {
			if numNodes > 0 {
				s.publish(bestSoFar[:])
			}
			now := time.Now()
			if !now.Before(failureDeadline) || (!failing && !now.Before(primaryDeadline)) {
				final = TimedOut
				break
			}
		}
		current := s.open.removeLowest()
		numNodes++
		s.numNodes = numNodes
		cur := *s.arena.at(current)
		s.recentIdx = current

		if s.goal.IsInGoal(cur.x, cur.y, cur.z) {
			positions, costs := s.arena.walkBack(current)
			return path.Raw{Positions: positions, Costs: costs, NumNodes: numNodes, Goal: s.goal}, SuccessToGoal, GoalReached
		}

		for _, mv := range movement.Moves {
			newX, newZ := cur.x+mv.DX, cur.z+mv.DZ
			if chunkOf(newX) != chunkOf(cur.x) || chunkOf(newZ) != chunkOf(cur.z) {
				if !s.ctx.IsLoaded(newX, newZ) {
					if !mv.DynamicXZ {
						numEmptyChunk++
					}
					continue
				}
			}
			if newY := cur.y + mv.DY; newY < s.ctx.MinY || newY > s.ctx.MaxY {
				continue
			}
			res.Reset()
			mv.Apply(s.ctx, cur.x, cur.y, cur.z, &res)
			actionCost := res.Cost
			if actionCost >= cost.CostInf {
				continue
			}
			if actionCost <= 0 || math.IsNaN(actionCost) {
				panic(fmt.Sprintf("calc: %s from (%d,%d,%d) calculated implausible cost %v", mv.Name, cur.x, cur.y, cur.z, actionCost))
			}
			if !mv.DynamicXZ && (res.X != newX || res.Z != newZ) {
				panic(fmt.Sprintf("calc: %s from (%d,%d,%d) landed on column (%d,%d)", mv.Name, cur.x, cur.y, cur.z, res.X, res.Z))
			}
			if !mv.DynamicY && res.Y != cur.y+mv.DY {
				panic(fmt.Sprintf("calc: %s from (%d,%d,%d) landed at y=%d", mv.Name, cur.x, cur.y, cur.z, res.Y))
			}
			hash := blockpos.Hash(res.X, res.Y, res.Z)
			if isFavoring {
				actionCost *= s.favoring.Calculate(hash)
			}
			ni := s.arena.get(res.X, res.Y, res.Z, hash)
			neighbor := s.arena.at(ni)
			tentative := cur.cost + actionCost
			if neighbor.cost-tentative <= s.minImprovement {
				continue
			}
			neighbor.prev = current
			neighbor.cost = tentative
			neighbor.combinedCost = tentative + neighbor.estimate
			if neighbor.heapPos != 0 {
				s.open.update(ni)
			} else {
				s.open.insert(ni)
			}
			if neighbor.estimate < s.arena.at(closest).estimate {
				closest = ni
			}
			for i, coef := range coefficients {
				h := neighbor.estimate + neighbor.cost/coef
				if bestHeuristicSoFar[i]-h > s.minImprovement {
					bestHeuristicSoFar[i] = h
					bestSoFar[i] = ni
					if failing && s.distFromStartSq(ni) > minDistPath*minDistPath {
						failing = false
					}
				}
			}
		}
	}
	if s.cancelRequested.Load() {
		return path.Raw{}, Cancellation, final
	}
	if best, ok := s.bestProgress(bestSoFar[:]); ok {
		positions, costs := s.arena.walkBack(best)
		return path.Raw{Positions: positions, Costs: costs, NumNodes: numNodes, Goal: s.goal}, SuccessSegment, final
	}
	positions, costs := s.arena.walkBack(closest)
	return path.Raw{Positions: positions, Costs: costs, NumNodes: numNodes, Goal: s.goal}, Failure, final
}

func chunkOf(v int) int { return blockpos.FloorDiv(v, store.ChunkSize) }

func (s *Search) distFromStartSq(i int32) int {
	return s.arena.at(i).pos().DistSq(s.start)
}

// bestProgress picks the first coefficient whose best node got far enough
// from the start to be worth walking to.
func (s *Search) bestProgress(bestSoFar []int32) (int32, bool) {
	for _, i := range bestSoFar {
		if s.distFromStartSq(i) > minDistPath*minDistPath {
			return i, true
		}
	}
	return noNode, false
}

// publish stores position-only paths for readers on other goroutines.
func (s *Search) publish(bestSoFar []int32) {
	n := s.arena.len()
	if best, ok := s.bestProgress(bestSoFar); ok {
		positions, _ := s.arena.walkBack(best)
		s.best.Store(path.Sketch(positions, s.goal, n))
	}
	if s.recentIdx != noNode {
		positions, _ := s.arena.walkBack(s.recentIdx)
		s.recent.Store(path.Sketch(positions, s.goal, n))
	}
}

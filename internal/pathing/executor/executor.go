// Package executor walks one path, one movement at a time, and decides every
// tick whether the path is still worth following.
package executor

import (
	"fmt"
	"log"

	"voxelpath.ai/internal/pathing/cost"
	"voxelpath.ai/internal/pathing/movement"
	"voxelpath.ai/internal/pathing/path"
	"voxelpath.ai/internal/pathing/settings"
	"voxelpath.ai/internal/pathing/worldctx"
)

const (
	// maxDistFromPath is how far the body may stray from every valid
	// position before the off-path counter starts.
	maxDistFromPath = 2.0
	// maxMaxDistFromPath ends the path immediately.
	maxMaxDistFromPath = 3.0
	maxTicksAway       = 200
)

// InProgress returns the partial path of the calculation currently running
// for the next segment, if any.
type InProgress func() (*path.Path, bool)

// Step is what one tick produced.
type Step struct {
	// Status is the current movement's status, Success once the whole path
	// is done, or Canceled when the executor gave up on the path.
	Status movement.Status
	// SafeToCancel is true when the orchestrator may switch to another
	// path right now without stranding the body mid-movement.
	SafeToCancel bool
	Input        movement.Input
	// Paused ticks hold still without advancing the movement.
	Paused bool
}

type Executor struct {
	path       *path.Path
	s          settings.Settings
	inProgress InProgress
	log        *log.Logger

	pathPosition   int
	ticksAway      int
	ticksOnCurrent int

	origCostEstimate  float64
	costEstimateIndex int

	failed bool
	reason string
}

func New(p *path.Path, s settings.Settings, inProgress InProgress, logger *log.Logger) *Executor {
	if !p.Assembled() {
		panic(fmt.Sprintf("executor: path %v has no movements", p))
	}
	return &Executor{
		path:              p,
		s:                 s,
		inProgress:        inProgress,
		log:               logger,
		costEstimateIndex: -1,
	}
}

func (e *Executor) Path() *path.Path { return e.path }
func (e *Executor) Position() int    { return e.pathPosition }
func (e *Executor) Finished() bool   { return e.pathPosition >= e.path.Length() }
func (e *Executor) Failed() bool     { return e.failed }

// FailureReason says why the executor gave up, empty while it has not.
func (e *Executor) FailureReason() string { return e.reason }

// TicksRemaining estimates the ticks left on the path from the current movement.
func (e *Executor) TicksRemaining() float64 { return e.path.TicksRemainingFrom(e.pathPosition) }

func (e *Executor) logf(format string, args ...any) {
	if e.log != nil {
		e.log.Printf(format, args...)
	}
}

// Tick advances the path by one game tick. w must reflect the live world.
func (e *Executor) Tick(w *worldctx.Context, p movement.Player) Step {
	var forced *bool
	// Re-syncing and completed movements re-run the tick on the new
	// movement; each pass either advances or settles.
	for guard := 0; guard < e.path.Length()+4; guard++ {
		step, again, safe := e.tickOnce(w, p)
		if safe != nil && forced == nil {
			forced = safe
		}
		if !again {
			if forced != nil {
				step.SafeToCancel = *forced
			}
			return step
		}
	}
	e.cancel("path position did not settle")
	return Step{Status: movement.Canceled, SafeToCancel: true}
}

func ptr(b bool) *bool { return &b }

func (e *Executor) tickOnce(w *worldctx.Context, p movement.Player) (Step, bool, *bool) {
	if e.pathPosition == e.path.Length()-1 {
		e.pathPosition++
	}
	if e.pathPosition >= e.path.Length() {
		if e.failed {
			return Step{Status: movement.Canceled, SafeToCancel: true}, false, nil
		}
		return Step{Status: movement.Success, SafeToCancel: true}, false, nil
	}
	mv := e.path.Movement(e.pathPosition)
	feet := p.Feet(w)

	if !mv.InValidPosition(feet) {
		// Teleported or lagged back onto an earlier movement.
		for i := 0; i < e.pathPosition; i++ {
			if e.path.Movement(i).InValidPosition(feet) {
				prev := e.pathPosition
				e.pathPosition = i
				for j := i; j <= prev && j < len(e.path.Movements()); j++ {
					e.path.Movement(j).Reset()
				}
				e.onChangeInPathPosition()
				return Step{}, true, ptr(false)
			}
		}
		// The next two movements report their own completion.
		for i := e.pathPosition + 3; i < e.path.Length()-1; i++ {
			if e.path.Movement(i).InValidPosition(feet) {
				if i-e.pathPosition > 2 {
					e.logf("skipping forward %d steps, to %d", i-e.pathPosition, i)
				}
				e.pathPosition = i - 1
				e.onChangeInPathPosition()
				return Step{}, true, ptr(false)
			}
		}
	}

	dist := e.closestPathDist(p)
	if e.possiblyOffPath(p, dist, maxDistFromPath) {
		e.ticksAway++
		if e.ticksAway > maxTicksAway {
			e.cancel("too far away from path for too long")
			return e.canceled(), false, nil
		}
	} else {
		e.ticksAway = 0
	}
	if e.possiblyOffPath(p, dist, maxMaxDistFromPath) {
		e.cancel(fmt.Sprintf("too far from path (%.2f blocks)", dist))
		return e.canceled(), false, nil
	}

	if e.pathPosition < len(e.path.Movements())-1 {
		next := e.path.Movement(e.pathPosition + 1).Dest()
		if !w.IsLoaded(next.X, next.Z) {
			e.logf("pausing since destination is at edge of loaded chunks")
			return Step{Status: mv.Status(), SafeToCancel: true, Paused: true}, false, nil
		}
	}

	canCancel := mv.SafeToCancel(w, p)
	if e.costEstimateIndex != e.pathPosition {
		e.costEstimateIndex = e.pathPosition
		// Captured once, from the cost recorded at calculation time.
		e.origCostEstimate = mv.Cost()
		for i := 1; i < e.s.CostVerificationLookahead && e.pathPosition+i < e.path.Length()-1; i++ {
			if e.path.Movement(e.pathPosition+i).CalculateCost(w) >= cost.CostInf && canCancel {
				e.cancel("a future movement has become impossible")
				return e.canceled(), false, nil
			}
		}
	}
	current := mv.RecalculateCost(w)
	if current >= cost.CostInf && canCancel {
		e.cancel("this movement has become impossible")
		return e.canceled(), false, nil
	}
	if !mv.CalculatedWhileLoaded() && current-e.origCostEstimate > e.s.MaxCostIncrease && canCancel {
		e.cancel(fmt.Sprintf("original cost %.2f current cost %.2f", e.origCostEstimate, current))
		return e.canceled(), false, nil
	}
	if e.shouldPause(w, p, mv) {
		e.logf("pausing since current best path is a backtrack")
		return Step{Status: mv.Status(), SafeToCancel: true, Paused: true}, false, nil
	}

	status, in := mv.Update(w, p)
	if !e.s.AllowSprint {
		in.Sprint = false
	}
	switch status {
	case movement.Unreachable, movement.Failed:
		e.cancel(fmt.Sprintf("movement %v returned %v", mv.Kind(), status))
		return Step{Status: status, SafeToCancel: true}, false, nil
	case movement.Success:
		e.pathPosition++
		e.onChangeInPathPosition()
		return Step{}, true, ptr(true)
	}
	e.ticksOnCurrent++
	if float64(e.ticksOnCurrent) > e.origCostEstimate+float64(e.s.MovementTimeoutTicks) {
		// Compared against the original estimate: mining lowers the live
		// cost as it goes.
		e.cancel(fmt.Sprintf("movement took too long (%d ticks, expected %.1f)", e.ticksOnCurrent, e.origCostEstimate))
		return e.canceled(), false, nil
	}
	return Step{Status: status, SafeToCancel: canCancel, Input: in}, false, nil
}

func (e *Executor) canceled() Step {
	return Step{Status: movement.Canceled, SafeToCancel: true}
}

func (e *Executor) onChangeInPathPosition() {
	e.ticksOnCurrent = 0
}

// cancel ends the path. The executor reports Finished and Failed from here on.
func (e *Executor) cancel(reason string) {
	e.logf("cancelling path: %s", reason)
	if e.pathPosition < len(e.path.Movements()) {
		e.path.Movement(e.pathPosition).Cancel()
	}
	e.pathPosition = e.path.Length() + 3
	e.failed = true
	e.reason = reason
}

// Cancel abandons the path from outside, e.g. when the goal changes.
func (e *Executor) Cancel(reason string) { e.cancel(reason) }

func (e *Executor) closestPathDist(p movement.Player) float64 {
	best := -1.0
	for _, m := range e.path.Movements() {
		for _, pos := range m.ValidPositions() {
			if d := movement.DistToCenter(p.Position, pos); best < 0 || d < best {
				best = d
			}
		}
	}
	return best
}

// possiblyOffPath treats a body mid-fall as on path while it is above the
// landing column.
func (e *Executor) possiblyOffPath(p movement.Player, dist, leniency float64) bool {
	if dist <= leniency {
		return false
	}
	if e.path.Movement(e.pathPosition).Kind() == movement.KindFall {
		landing := e.path.Position(e.pathPosition + 1)
		return movement.FlatDistToCenter(p.Position, landing) >= leniency
	}
	return true
}

// shouldPause holds still while the next segment's search is heading back
// over where the body stands, so the body does not walk away from it.
func (e *Executor) shouldPause(w *worldctx.Context, p movement.Player, mv *movement.Movement) bool {
	if e.inProgress == nil {
		return false
	}
	best, ok := e.inProgress()
	if !ok {
		return false
	}
	if !p.OnGround {
		return false
	}
	feet := p.Feet(w)
	if !w.CanWalkOn(feet.X, feet.Y-1, feet.Z) {
		return false
	}
	if !w.CanWalkThrough(feet.X, feet.Y, feet.Z) || !w.CanWalkThrough(feet.X, feet.Y+1, feet.Z) {
		return false
	}
	if !mv.SafeToCancel(w, p) {
		return false
	}
	positions := best.Positions()
	if len(positions) < 3 {
		return false
	}
	// The first position always overlaps the end of this path.
	for _, pos := range positions[1:] {
		if pos == feet {
			return true
		}
	}
	return false
}

// SnipsnapIfPossible jumps straight to the body's current position when it
// stands on the path, e.g. after switching onto a path that overlaps the
// old one. It refuses mid-air outside liquid and while moving downward.
func (e *Executor) SnipsnapIfPossible(w *worldctx.Context, p movement.Player) bool {
	feet := p.Feet(w)
	if !p.OnGround && !w.IsLiquid(feet.X, feet.Y, feet.Z) {
		return false
	}
	if p.Velocity.Y() < -0.1 {
		return false
	}
	i := e.path.IndexOf(feet)
	if i < 0 {
		return false
	}
	e.pathPosition = i
	return true
}

// TrySplice joins next onto this path while keeping the current movement's
// progress. Without next, or when the paths do not join, it trims history.
func (e *Executor) TrySplice(next *Executor) *Executor {
	if next == nil {
		return e.CutIfTooLong()
	}
	spliced, ok := path.Splice(e.path, next.path, false)
	if !ok {
		return e.CutIfTooLong()
	}
	if spliced.Dest() != next.path.Dest() {
		panic(fmt.Sprintf("executor: splice ends at %v, next path at %v", spliced.Dest(), next.path.Dest()))
	}
	ret := New(spliced, e.s, e.inProgress, e.log)
	ret.pathPosition = e.pathPosition
	ret.origCostEstimate = e.origCostEstimate
	ret.costEstimateIndex = e.costEstimateIndex
	ret.ticksOnCurrent = e.ticksOnCurrent
	return ret
}

// CutIfTooLong drops the oldest movements once the walked part of the path
// grows past the history limit.
func (e *Executor) CutIfTooLong() *Executor {
	if e.pathPosition <= e.s.MaxPathHistoryLength || e.Finished() {
		return e
	}
	amt := e.s.PathHistoryCutoffAmount
	cut := e.path.Cutoff(amt, e.path.Length()-1)
	if cut.Dest() != e.path.Dest() {
		panic("executor: history cut changed the destination")
	}
	e.logf("discarding earliest segment movements, length cut from %d to %d", e.path.Length(), cut.Length())
	ret := New(cut, e.s, e.inProgress, e.log)
	ret.pathPosition = e.pathPosition - amt
	ret.origCostEstimate = e.origCostEstimate
	if e.costEstimateIndex >= 0 {
		ret.costEstimateIndex = e.costEstimateIndex - amt
	}
	ret.ticksOnCurrent = e.ticksOnCurrent
	return ret
}

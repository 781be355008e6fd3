// Package behavior owns the goal, the path being walked and the one planned
// after it, and the calculations running in the background. It is driven
// by Tick from a single goroutine; calculations hand their results over
// under the plan lock and take effect on a later tick.
package behavior

import (
	"log"
	"math"
	"sort"
	"sync"
	"time"

	"voxelpath.ai/internal/catalogs"
	"voxelpath.ai/internal/pathing/blockpos"
	"voxelpath.ai/internal/pathing/blockrules"
	"voxelpath.ai/internal/pathing/calc"
	"voxelpath.ai/internal/pathing/executor"
	"voxelpath.ai/internal/pathing/favoring"
	"voxelpath.ai/internal/pathing/goals"
	"voxelpath.ai/internal/pathing/movement"
	"voxelpath.ai/internal/pathing/path"
	"voxelpath.ai/internal/pathing/precompute"
	"voxelpath.ai/internal/pathing/settings"
	"voxelpath.ai/internal/pathing/worldctx"
)

type Config struct {
	// World is the live terrain the body moves through.
	World worldctx.BlockSource
	// Snapshot returns a read-consistent view for one calculation. Without
	// it calculations read World directly.
	Snapshot func() worldctx.BlockSource

	Settings settings.Settings
	Rules    *blockrules.Rules
	Cache    *precompute.Cache
	Dangers  []favoring.DangerSource
	Logger   *log.Logger
}

type Behavior struct {
	cfg Config

	// planMu guards the goal, the executors and everything the tick
	// goroutine shares with finishing calculations. calcMu guards
	// inProgress and inProgressGoal; it is only ever taken with planMu
	// held or alone.
	planMu sync.Mutex
	calcMu sync.Mutex

	goal            goals.Goal
	goalHeuristic   float64
	current         *executor.Executor
	next            *executor.Executor
	inProgress      *calc.Search
	inProgressGoal  goals.Goal
	safeToCancel    bool
	cancelRequested bool
	calcFailed      bool

	feet                 blockpos.Pos
	expectedSegmentStart blockpos.Pos
	tick                 uint64
	ticksElapsed         int
	etaStart             *blockpos.Pos

	evMu    sync.Mutex
	events  []Event
	records []CalcRecord

	lmu           sync.Mutex
	listeners     []EventListener
	calcListeners []CalcListener

	wg sync.WaitGroup
}

func New(cfg Config) *Behavior {
	if cfg.Rules == nil {
		panic("behavior: nil rules")
	}
	if cfg.Cache == nil {
		cfg.Cache = precompute.New(cfg.Rules)
	}
	return &Behavior{cfg: cfg, safeToCancel: true}
}

// NewFromCatalog builds rules and cache from a catalog.
func NewFromCatalog(cfg Config, cat *catalogs.BlockCatalog) *Behavior {
	if cfg.Rules == nil {
		cfg.Rules = blockrules.New(cat, cfg.Settings.AssumeWalkOnWater)
	}
	return New(cfg)
}

func (b *Behavior) AddListener(l EventListener) {
	b.lmu.Lock()
	b.listeners = append(b.listeners, l)
	b.lmu.Unlock()
}

func (b *Behavior) AddCalcListener(l CalcListener) {
	b.lmu.Lock()
	b.calcListeners = append(b.calcListeners, l)
	b.lmu.Unlock()
}

func (b *Behavior) logf(format string, args ...any) {
	if b.cfg.Logger != nil {
		b.cfg.Logger.Printf(format, args...)
	}
}

func (b *Behavior) liveContext() *worldctx.Context {
	return worldctx.New(b.cfg.World, b.cfg.Cache, b.cfg.Rules, b.cfg.Settings)
}

func (b *Behavior) calcContext() *worldctx.Context {
	src := b.cfg.World
	if b.cfg.Snapshot != nil {
		src = b.cfg.Snapshot()
	}
	return worldctx.New(src, b.cfg.Cache, b.cfg.Rules, b.cfg.Settings)
}

// queue must be called with planMu held so that Tick and Feet are current.
func (b *Behavior) queue(t EventType) {
	b.evMu.Lock()
	b.events = append(b.events, Event{Type: t, Tick: b.tick, Feet: b.feet})
	b.evMu.Unlock()
}

func (b *Behavior) dispatchEvents() {
	b.evMu.Lock()
	events, records := b.events, b.records
	b.events, b.records = nil, nil
	b.evMu.Unlock()
	if len(events) == 0 && len(records) == 0 {
		return
	}
	b.lmu.Lock()
	ls := append([]EventListener(nil), b.listeners...)
	cls := append([]CalcListener(nil), b.calcListeners...)
	b.lmu.Unlock()
	for _, r := range records {
		for _, l := range cls {
			l.OnCalcFinished(r)
		}
	}
	for _, e := range events {
		for _, l := range ls {
			l.OnPathEvent(e)
		}
	}
}

// Tick runs one game tick for a body in state p and returns the input to
// apply. A zero Input means stand still.
func (b *Behavior) Tick(p movement.Player) movement.Input {
	b.dispatchEvents()
	w := b.liveContext()
	b.planMu.Lock()
	b.feet = p.Feet(w)
	b.expectedSegmentStart = pathStart(w, p)
	in := b.tickPath(w, p)
	b.ticksElapsed++
	b.tick++
	b.planMu.Unlock()
	b.dispatchEvents()
	return in
}

func (b *Behavior) tickPath(w *worldctx.Context, p movement.Player) movement.Input {
	if b.cancelRequested && b.safeToCancel {
		b.cancelRequested = false
		b.segmentCancel()
	}

	b.calcMu.Lock()
	if b.inProgress != nil {
		// A calculation from somewhere we no longer are is useless.
		from := b.inProgress.Start()
		best, ok := b.inProgress.BestPathSoFar()
		if (b.current == nil || b.current.Path().Dest() != from) &&
			from != b.feet && from != b.expectedSegmentStart &&
			(!ok || (!best.Contains(b.feet) && !best.Contains(b.expectedSegmentStart))) {
			b.inProgress.Cancel()
		}
	}
	b.calcMu.Unlock()

	if b.current == nil {
		b.maybeReplan()
		return movement.Input{}
	}

	step := b.current.Tick(w, p)
	b.safeToCancel = step.SafeToCancel
	if b.current.Failed() || b.current.Finished() {
		b.current = nil
		if b.goal == nil || b.goal.IsInGoal(b.feet.X, b.feet.Y, b.feet.Z) {
			b.logf("all done, at %v", b.goal)
			b.queue(AtGoal)
			b.next = nil
			b.resetETA(b.expectedSegmentStart)
			return movement.Input{}
		}
		if b.next != nil && !b.next.Path().Contains(b.feet) && !b.next.Path().Contains(b.expectedSegmentStart) {
			// Failing midway leaves us nowhere near the planned next segment.
			b.logf("discarding next path as it does not contain current position")
			b.queue(DiscardNext)
			b.next = nil
		}
		if b.next != nil {
			b.logf("continuing on to planned next path")
			b.queue(ContinuingOntoPlannedNext)
			b.current, b.next = b.next, nil
			return b.tickCurrent(w, p)
		}
		b.calcMu.Lock()
		defer b.calcMu.Unlock()
		if b.inProgress != nil {
			b.queue(PathFinishedNextStillCalculating)
			return movement.Input{}
		}
		b.queue(CalcStarted)
		b.findPathInNewThread(b.expectedSegmentStart, true)
		return movement.Input{}
	}

	if step.SafeToCancel && b.next != nil && b.next.SnipsnapIfPossible(w, p) {
		b.logf("splicing into planned next path early")
		b.queue(SplicingOntoNextEarly)
		b.current, b.next = b.next, nil
		return b.tickCurrent(w, p)
	}
	if b.cfg.Settings.SplicePath {
		b.current = b.current.TrySplice(b.next)
	}
	if b.next != nil && b.current.Path().Dest() == b.next.Path().Dest() {
		b.next = nil
	}

	b.calcMu.Lock()
	defer b.calcMu.Unlock()
	if b.inProgress != nil || b.next != nil {
		return inputOf(step)
	}
	if b.goal == nil {
		return inputOf(step)
	}
	if d := b.current.Path().Dest(); b.goal.IsInGoal(d.X, d.Y, d.Z) {
		return inputOf(step)
	}
	// The current movement is left out so one long movement at the end
	// does not hold planning back until it is done.
	if b.current.Path().TicksRemainingFrom(b.current.Position()+1) < float64(b.cfg.Settings.PlanningTickLookahead) {
		b.logf("path almost over, planning ahead")
		b.queue(NextSegmentCalcStarted)
		b.findPathInNewThread(b.current.Path().Dest(), false)
	}
	return inputOf(step)
}

func (b *Behavior) tickCurrent(w *worldctx.Context, p movement.Player) movement.Input {
	step := b.current.Tick(w, p)
	b.safeToCancel = step.SafeToCancel
	return inputOf(step)
}

func inputOf(step executor.Step) movement.Input {
	if step.Paused || step.Status.IsComplete() {
		return movement.Input{}
	}
	return step.Input
}

// maybeReplan restarts planning toward a goal nothing is working on, unless
// the last attempt at it already failed.
func (b *Behavior) maybeReplan() {
	if b.goal == nil || b.calcFailed {
		return
	}
	if b.goal.IsInGoal(b.feet.X, b.feet.Y, b.feet.Z) || b.goal.IsInGoal(b.expectedSegmentStart.X, b.expectedSegmentStart.Y, b.expectedSegmentStart.Z) {
		return
	}
	b.calcMu.Lock()
	defer b.calcMu.Unlock()
	if b.inProgress != nil {
		return
	}
	b.queue(CalcStarted)
	b.findPathInNewThread(b.expectedSegmentStart, true)
}

// SetGoal replaces the goal without starting a calculation.
func (b *Behavior) SetGoal(g goals.Goal) {
	b.planMu.Lock()
	b.setGoalLocked(g)
	b.planMu.Unlock()
}

func (b *Behavior) setGoalLocked(g goals.Goal) {
	if !goals.Equal(b.goal, g) {
		b.resetETA(b.expectedSegmentStart)
		// Near and RunAway scan a box for this; once per goal is enough.
		b.goalHeuristic = 0
		if g != nil {
			b.goalHeuristic = goals.HeuristicAtGoal(g)
		}
	}
	b.calcMu.Lock()
	if b.inProgress != nil && !goals.Equal(b.inProgressGoal, g) {
		// Nothing it finds is wanted any more, and leaving it tracked
		// would hold back the calculation toward g.
		b.logf("abandoning calculation toward replaced goal %v", b.inProgressGoal)
		b.inProgress.Cancel()
		b.inProgress, b.inProgressGoal = nil, nil
	}
	b.calcMu.Unlock()
	b.goal = g
	b.calcFailed = false
}

// SetGoalAndPath sets the goal and starts calculating toward it from where
// the body stands. It reports false when there is nothing to start: no
// goal, already there, or a path or calculation already in flight.
func (b *Behavior) SetGoalAndPath(g goals.Goal) bool {
	b.planMu.Lock()
	defer b.planMu.Unlock()
	b.setGoalLocked(g)
	if g == nil {
		return false
	}
	if b.tick == 0 {
		// Nothing knows where the body is yet; the first tick starts it.
		return true
	}
	if g.IsInGoal(b.feet.X, b.feet.Y, b.feet.Z) || g.IsInGoal(b.expectedSegmentStart.X, b.expectedSegmentStart.Y, b.expectedSegmentStart.Z) {
		return false
	}
	if b.current != nil {
		return false
	}
	b.calcMu.Lock()
	defer b.calcMu.Unlock()
	if b.inProgress != nil {
		return false
	}
	b.queue(CalcStarted)
	b.findPathInNewThread(b.expectedSegmentStart, true)
	return true
}

func (b *Behavior) Goal() goals.Goal {
	b.planMu.Lock()
	defer b.planMu.Unlock()
	return b.goal
}

// Cancel drops the goal and stops calculating. The path being walked stops
// at once when that is safe and the call returns true; otherwise it stops
// at the first safe tick and the call returns false.
func (b *Behavior) Cancel() bool {
	b.planMu.Lock()
	defer b.planMu.Unlock()
	b.goal = nil
	b.calcMu.Lock()
	if b.inProgress != nil {
		b.inProgress.Cancel()
	}
	b.calcMu.Unlock()
	if b.current == nil || b.safeToCancel {
		b.segmentCancel()
		return true
	}
	b.cancelRequested = true
	return false
}

// ForceCancel stops everything now, even mid-movement, and forgets the
// running calculation so its result is never used.
func (b *Behavior) ForceCancel() {
	b.planMu.Lock()
	defer b.planMu.Unlock()
	b.goal = nil
	b.cancelRequested = false
	b.segmentCancel()
	b.calcMu.Lock()
	b.inProgress, b.inProgressGoal = nil, nil
	b.calcMu.Unlock()
}

// segmentCancel requires planMu.
func (b *Behavior) segmentCancel() {
	b.queue(Canceled)
	b.calcMu.Lock()
	if b.inProgress != nil {
		b.inProgress.Cancel()
	}
	b.calcMu.Unlock()
	if b.current != nil {
		b.current.Cancel("segment canceled")
		b.current = nil
		b.next = nil
	}
	b.safeToCancel = true
}

// findPathInNewThread requires planMu and calcMu.
func (b *Behavior) findPathInNewThread(start blockpos.Pos, talkAboutIt bool) {
	if b.inProgress != nil {
		panic("behavior: calculation already in progress")
	}
	goal := b.goal
	if goal == nil {
		b.logf("no goal")
		return
	}
	s := b.cfg.Settings
	primary := time.Duration(s.PrimaryTimeoutMs) * time.Millisecond
	failure := time.Duration(s.FailureTimeoutMs) * time.Millisecond
	planAhead := b.current != nil
	if planAhead {
		primary = time.Duration(s.PlanAheadPrimaryTimeoutMs) * time.Millisecond
		failure = time.Duration(s.PlanAheadFailureTimeoutMs) * time.Millisecond
	}
	ctx := b.calcContext()
	var previous *path.Path
	if b.current != nil {
		previous = b.current.Path()
	}
	search := b.createPathfinder(start, goal, previous, ctx)
	simplified := !goals.Equal(search.Goal(), goal)
	if simplified {
		b.logf("simplifying %v to %v since its column is not loaded", goal, search.Goal())
	}
	b.inProgress, b.inProgressGoal = search, goal
	tick := b.tick

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		if talkAboutIt {
			b.logf("starting to search for path from %v to %v", start, goal)
		}
		res := search.Calculate(primary, failure)

		b.planMu.Lock()
		defer b.planMu.Unlock()
		b.record(CalcRecord{
			Tick: tick, Start: start, Goal: search.Goal(), Simplified: simplified, PlanAhead: planAhead,
			Result: res.Type, NumNodes: res.NumNodes, Duration: res.Duration, Err: res.Err,
		}, res.Path)

		b.calcMu.Lock()
		stale := b.inProgress != search
		if !stale {
			b.inProgress, b.inProgressGoal = nil, nil
		}
		b.calcMu.Unlock()
		if stale {
			b.logf("discarding result of a forgotten calculation")
			return
		}
		if res.Err != nil {
			b.logf("calculation failed: %v", res.Err)
		}
		// goal is the one asked for, before any simplification.
		if !goals.Equal(goal, b.goal) {
			b.logf("discarding path toward %v, goal is now %v", goal, b.goal)
			return
		}

		var exec *executor.Executor
		if res.Executable() {
			p := res.Path.
				CutoffAtLoadedChunks(ctx.IsLoaded, s.CutoffAtLoadBoundary).
				StaticCutoff(goal, s.PathCutoffMinimumLength, s.PathCutoffFactor)
			exec = executor.New(p, s, b.nextBestPath, b.cfg.Logger)
		}
		if b.current == nil {
			switch {
			case exec != nil && exec.Path().Contains(b.expectedSegmentStart):
				b.queue(CalcFinishedNowExecuting)
				b.current = exec
				b.resetETA(start)
			case exec != nil:
				b.logf("discarding orphan path segment with incorrect start")
			case res.Type != calc.Cancellation && res.Type != calc.Exception:
				b.calcFailed = true
				b.queue(CalcFailed)
			}
		} else if b.next == nil {
			switch {
			case exec != nil && exec.Path().Src() == b.current.Path().Dest():
				b.queue(NextSegmentCalcFinished)
				b.next = exec
			case exec != nil:
				b.logf("discarding orphan next segment with incorrect start")
			default:
				b.queue(NextCalcFailed)
			}
		} else {
			b.logf("discarding a path calculated while a next segment was already planned")
		}
		if talkAboutIt && b.current != nil {
			cp := b.current.Path()
			if d := cp.Dest(); goal.IsInGoal(d.X, d.Y, d.Z) {
				b.logf("finished finding a path from %v to %v, %d nodes considered", start, goal, cp.NumNodesConsidered())
			} else {
				b.logf("found path segment from %v towards %v, %d nodes considered", start, goal, cp.NumNodesConsidered())
			}
		}
	}()
}

// record requires planMu.
func (b *Behavior) record(r CalcRecord, p *path.Path) {
	if p != nil {
		r.PathLength = p.Length()
		if p.Assembled() {
			r.PathCost = p.TotalCost()
		}
		r.Reaches = p.ReachesGoal()
	}
	b.evMu.Lock()
	b.records = append(b.records, r)
	b.evMu.Unlock()
}

// nextBestPath is what executors consult to decide whether to hold still
// while the next segment is being planned.
func (b *Behavior) nextBestPath() (*path.Path, bool) {
	b.calcMu.Lock()
	s := b.inProgress
	b.calcMu.Unlock()
	if s == nil {
		return nil, false
	}
	return s.BestPathSoFar()
}

func (b *Behavior) createPathfinder(start blockpos.Pos, goal goals.Goal, previous *path.Path, ctx *worldctx.Context) *calc.Search {
	s := b.cfg.Settings
	transformed := goal
	if s.SimplifyUnloadedYCoord {
		if pg, ok := goal.(goals.Positioned); ok {
			pos := pg.GoalPos()
			if !ctx.IsLoaded(pos.X, pos.Z) {
				transformed = goals.XZ{X: pos.X, Z: pos.Z}
			}
		}
	}
	var prev []blockpos.Pos
	if previous != nil {
		prev = previous.Positions()
	}
	var zones []favoring.Avoidance
	if s.Avoidance {
		zones = favoring.Collect(start, b.cfg.Dangers...)
	}
	fav := favoring.New(prev, s.BacktrackCostFavoringCoefficient, zones)
	return calc.New(start, transformed, fav, ctx, s)
}

// pathStart is where the next path should begin. A body sneaking over an
// edge stands above air but is still supported by a neighbour; one in the
// middle of a jump belongs on the block below.
func pathStart(w *worldctx.Context, p movement.Player) blockpos.Pos {
	feet := p.Feet(w)
	if w.CanWalkOn(feet.X, feet.Y-1, feet.Z) {
		return feet
	}
	if !p.OnGround {
		if w.CanWalkOn(feet.X, feet.Y-2, feet.Z) {
			return feet.Down()
		}
		return feet
	}
	px, pz := p.Position.X(), p.Position.Z()
	flatSq := func(q blockpos.Pos) float64 {
		dx := float64(q.X) + 0.5 - px
		dz := float64(q.Z) + 0.5 - pz
		return dx*dx + dz*dz
	}
	closest := make([]blockpos.Pos, 0, 9)
	for dx := -1; dx <= 1; dx++ {
		for dz := -1; dz <= 1; dz++ {
			closest = append(closest, feet.Add(dx, 0, dz))
		}
	}
	sort.SliceStable(closest, func(i, j int) bool { return flatSq(closest[i]) < flatSq(closest[j]) })
	for _, q := range closest[:4] {
		xDist := math.Abs(float64(q.X) + 0.5 - px)
		zDist := math.Abs(float64(q.Z) + 0.5 - pz)
		if xDist > 0.8 && zDist > 0.8 {
			continue
		}
		if w.CanWalkOn(q.X, q.Y-1, q.Z) && w.CanWalkThrough(q.X, q.Y, q.Z) && w.CanWalkThrough(q.X, q.Y+1, q.Z) {
			return q
		}
	}
	return feet
}

// resetETA requires planMu.
func (b *Behavior) resetETA(start blockpos.Pos) {
	b.ticksElapsed = 0
	b.etaStart = &start
}

// EstimatedTicksToGoal extrapolates from progress made toward the goal
// since the current path started.
func (b *Behavior) EstimatedTicksToGoal() (float64, bool) {
	b.planMu.Lock()
	defer b.planMu.Unlock()
	if b.goal == nil || b.etaStart == nil {
		return 0, false
	}
	if b.goal.IsInGoal(b.feet.X, b.feet.Y, b.feet.Z) {
		b.resetETA(b.feet)
		return 0, true
	}
	if b.ticksElapsed == 0 {
		return 0, false
	}
	current := b.goal.Heuristic(b.feet.X, b.feet.Y, b.feet.Z)
	start := b.goal.Heuristic(b.etaStart.X, b.etaStart.Y, b.etaStart.Z)
	if current == start {
		return 0, false
	}
	eta := math.Abs(current-b.goalHeuristic) * float64(b.ticksElapsed) / math.Abs(start-current)
	if math.IsNaN(eta) || math.IsInf(eta, 0) {
		return 0, false
	}
	return eta, true
}

// CurrentPath returns the path being walked.
func (b *Behavior) CurrentPath() (*path.Path, bool) {
	b.planMu.Lock()
	defer b.planMu.Unlock()
	if b.current == nil {
		return nil, false
	}
	return b.current.Path(), true
}

// CurrentPosition is the index of the movement being executed.
func (b *Behavior) CurrentPosition() (int, bool) {
	b.planMu.Lock()
	defer b.planMu.Unlock()
	if b.current == nil {
		return 0, false
	}
	return b.current.Position(), true
}

func (b *Behavior) NextPath() (*path.Path, bool) {
	b.planMu.Lock()
	defer b.planMu.Unlock()
	if b.next == nil {
		return nil, false
	}
	return b.next.Path(), true
}

// InProgress returns the running calculation, if any.
func (b *Behavior) InProgress() (*calc.Search, bool) {
	b.calcMu.Lock()
	defer b.calcMu.Unlock()
	return b.inProgress, b.inProgress != nil
}

func (b *Behavior) HasPath() bool {
	b.planMu.Lock()
	defer b.planMu.Unlock()
	return b.current != nil
}

func (b *Behavior) IsSafeToCancel() bool {
	b.planMu.Lock()
	defer b.planMu.Unlock()
	return b.current == nil || b.safeToCancel
}

// Wait blocks until every calculation started so far has handed over.
func (b *Behavior) Wait() { b.wg.Wait() }

// OnBlockChanged discards the planned next segment when a block it relies
// on changes. The current path re-checks its own costs every tick.
func (b *Behavior) OnBlockChanged(x, y, z int, _, _ catalogs.StateID) {
	pos := blockpos.New(x, y, z)
	b.planMu.Lock()
	defer b.planMu.Unlock()
	if b.next == nil {
		return
	}
	np := b.next.Path()
	if np.Contains(pos) || np.Contains(pos.Up()) || np.Contains(pos.Down()) {
		b.logf("discarding next path since block %v changed", pos)
		b.queue(DiscardNext)
		b.next = nil
	}
}

package behavior

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"

	"voxelpath.ai/internal/catalogs"
	"voxelpath.ai/internal/pathing/blockpos"
	"voxelpath.ai/internal/pathing/calc"
	"voxelpath.ai/internal/pathing/executor"
	"voxelpath.ai/internal/pathing/favoring"
	"voxelpath.ai/internal/pathing/goals"
	"voxelpath.ai/internal/pathing/movement"
	"voxelpath.ai/internal/pathing/path"
	"voxelpath.ai/internal/pathing/settings"
	"voxelpath.ai/internal/pathing/worldctx"
	"voxelpath.ai/internal/terrain/store"
	"voxelpath.ai/internal/terrain/terraintest"
)

const y = terraintest.FloorY + 1

type recorder struct {
	events  []EventType
	records []CalcRecord
}

func (r *recorder) OnPathEvent(e Event)         { r.events = append(r.events, e.Type) }
func (r *recorder) OnCalcFinished(c CalcRecord) { r.records = append(r.records, c) }

func (r *recorder) count(t EventType) int {
	n := 0
	for _, e := range r.events {
		if e == t {
			n++
		}
	}
	return n
}

func (r *recorder) has(t EventType) bool {
	for _, e := range r.events {
		if e == t {
			return true
		}
	}
	return false
}

type harness struct {
	t   *testing.T
	cat *catalogs.BlockCatalog
	st  *store.Store
	b   *Behavior
	rec *recorder
	p   movement.Player
}

func newHarness(t *testing.T, r int) *harness {
	t.Helper()
	return newHarnessWith(t, r, settings.Defaults())
}

func newHarnessWith(t *testing.T, r int, cfg settings.Settings) *harness {
	t.Helper()
	cat := catalogs.Default()
	st := terraintest.Flat(cat, r)
	h := &harness{t: t, cat: cat, st: st, rec: &recorder{}}
	h.b = NewFromCatalog(Config{
		World:    st,
		Snapshot: func() worldctx.BlockSource { return st.Snapshot() },
		Settings: cfg,
	}, cat)
	h.b.AddListener(h.rec)
	h.b.AddCalcListener(h.rec)
	h.p = movement.Player{Position: mgl64.Vec3{0.5, y, 0.5}, OnGround: true}
	return h
}

// step ticks once, lets any calculation it started hand over, and moves the
// body a little toward whatever it was asked to walk to.
func (h *harness) step() movement.Input {
	in := h.b.Tick(h.p)
	h.b.Wait()
	if in.Move {
		d := mgl64.Vec3{in.Target.X() - h.p.Position.X(), 0, in.Target.Z() - h.p.Position.Z()}
		if l := d.Len(); l > 0.3 {
			d = d.Mul(0.3 / l)
		}
		h.p.Position = h.p.Position.Add(d)
	}
	return in
}

func (h *harness) feet() blockpos.Pos {
	return blockpos.New(int(math.Floor(h.p.Position.X())), y, int(math.Floor(h.p.Position.Z())))
}

func TestWalksFlatWorldToGoal(t *testing.T) {
	h := newHarness(t, 16)
	goal := goals.Block{X: 10, Y: y, Z: 0}
	if !h.b.SetGoalAndPath(goal) {
		t.Fatalf("SetGoalAndPath refused a fresh goal")
	}
	sawETA := false
	for i := 0; i < 400 && !h.rec.has(AtGoal); i++ {
		h.step()
		if eta, ok := h.b.EstimatedTicksToGoal(); ok && eta > 0 {
			sawETA = true
		}
	}
	if !h.rec.has(AtGoal) {
		t.Fatalf("never reached goal, feet=%v events=%v", h.feet(), h.rec.events)
	}
	if !goal.IsInGoal(h.feet().X, h.feet().Y, h.feet().Z) {
		t.Fatalf("AtGoal at %v", h.feet())
	}
	if h.rec.events[0] != CalcStarted || h.rec.events[1] != CalcFinishedNowExecuting {
		t.Fatalf("events=%v", h.rec.events)
	}
	if !sawETA {
		t.Fatalf("no estimate while walking")
	}
	if len(h.rec.records) != 1 || !h.rec.records[0].Reaches || h.rec.records[0].PathCost <= 0 {
		t.Fatalf("records=%+v", h.rec.records)
	}
	if h.b.HasPath() {
		t.Fatalf("path kept after arriving")
	}
	// Standing in the goal there is nothing to do.
	if h.b.SetGoalAndPath(goal) {
		t.Fatalf("started a calculation while in the goal")
	}
}

func TestUnreachableGoalFailsOnce(t *testing.T) {
	h := newHarness(t, 8)
	terraintest.SealBox(h.st, h.cat, 0, 0)
	h.b.SetGoal(goals.Block{X: 5, Y: y, Z: 5})
	for i := 0; i < 5; i++ {
		h.step()
	}
	started, failed := 0, 0
	for _, e := range h.rec.events {
		switch e {
		case CalcStarted:
			started++
		case CalcFailed:
			failed++
		}
	}
	if started != 1 || failed != 1 {
		t.Fatalf("events=%v", h.rec.events)
	}
	if h.b.HasPath() {
		t.Fatalf("failed calculation produced a path")
	}

	// A new goal gets a fresh attempt.
	h.b.SetGoal(goals.Block{X: 4, Y: y, Z: 4})
	h.step()
	h.step()
	if n := len(h.rec.records); n != 2 {
		t.Fatalf("records=%d", n)
	}
}

func TestCancelStopsWalking(t *testing.T) {
	h := newHarness(t, 16)
	h.b.SetGoal(goals.Block{X: 12, Y: y, Z: 0})
	for i := 0; i < 4; i++ {
		h.step()
	}
	if !h.b.HasPath() {
		t.Fatalf("no path after a few ticks, events=%v", h.rec.events)
	}
	if !h.b.Cancel() {
		t.Fatalf("walking on flat ground should be safe to cancel")
	}
	if in := h.step(); in.Move {
		t.Fatalf("still moving after cancel: %+v", in)
	}
	if h.b.HasPath() || h.b.Goal() != nil {
		t.Fatalf("cancel left path=%v goal=%v", h.b.HasPath(), h.b.Goal())
	}
	if !h.rec.has(Canceled) {
		t.Fatalf("events=%v", h.rec.events)
	}
}

func TestForceCancelForgetsRunningCalculation(t *testing.T) {
	h := newHarness(t, 16)
	h.step()
	if !h.b.SetGoalAndPath(goals.Block{X: 10, Y: y, Z: 0}) {
		t.Fatalf("no calculation started")
	}
	h.b.ForceCancel()
	h.b.Wait()
	h.step()
	if h.b.HasPath() || h.b.Goal() != nil {
		t.Fatalf("force cancel left a path or goal")
	}
	if _, ok := h.b.InProgress(); ok {
		t.Fatalf("calculation still tracked")
	}
	if h.rec.has(CalcFinishedNowExecuting) {
		t.Fatalf("forgotten calculation was executed")
	}
}

func TestBlockChangeDiscardsNext(t *testing.T) {
	h := newHarness(t, 16)
	w := h.b.liveContext()
	raw := path.Raw{
		Positions: []blockpos.Pos{blockpos.New(3, y, 0), blockpos.New(4, y, 0), blockpos.New(5, y, 0)},
		Costs:     []float64{0, 4, 8},
	}
	h.b.next = executor.New(path.PostProcess(w, raw), h.b.cfg.Settings, nil, nil)

	h.b.OnBlockChanged(9, y, 9, catalogs.Air, catalogs.Air)
	if _, ok := h.b.NextPath(); !ok {
		t.Fatalf("unrelated block change discarded next")
	}
	h.b.OnBlockChanged(4, y-1, 0, catalogs.Air, catalogs.Air)
	if _, ok := h.b.NextPath(); ok {
		t.Fatalf("next survived a change under its path")
	}
	h.step()
	if !h.rec.has(DiscardNext) {
		t.Fatalf("events=%v", h.rec.events)
	}
}

func TestPathStartOverAnEdge(t *testing.T) {
	h := newHarness(t, 8)
	h.st.SetBlock(0, y-1, 0, catalogs.Air)
	w := h.b.liveContext()
	p := movement.Player{Position: mgl64.Vec3{0.9, y, 0.5}, OnGround: true}
	if got := pathStart(w, p); got != blockpos.New(1, y, 0) {
		t.Fatalf("sneaking over edge starts at %v", got)
	}
	p = movement.Player{Position: mgl64.Vec3{3.5, y + 1, 3.5}}
	if got := pathStart(w, p); got != blockpos.New(3, y, 3) {
		t.Fatalf("mid-jump starts at %v", got)
	}
}

func TestEventTypeNames(t *testing.T) {
	for e := CalcStarted; e <= Canceled; e++ {
		back, ok := ParseEventType(e.String())
		if !ok || back != e {
			t.Fatalf("%v parsed back as %v", e, back)
		}
	}
	if _, ok := ParseEventType("NOPE"); ok {
		t.Fatalf("parsed unknown name")
	}
}

// startCalc starts a calculation toward g the way a tick would, and returns
// with planMu still held so the result cannot hand over yet.
func (h *harness) startCalc(g goals.Goal) *calc.Search {
	h.b.planMu.Lock()
	h.b.goal = g
	h.b.calcMu.Lock()
	h.b.findPathInNewThread(h.b.expectedSegmentStart, true)
	search := h.b.inProgress
	h.b.calcMu.Unlock()
	return search
}

func TestNewGoalAbandonsRunningCalculation(t *testing.T) {
	h := newHarness(t, 16)
	h.step()
	east, west := goals.Block{X: 12, Y: y, Z: 0}, goals.Block{X: -12, Y: y, Z: 0}

	if h.startCalc(east) == nil {
		h.b.planMu.Unlock()
		t.Fatalf("no calculation started")
	}
	h.b.setGoalLocked(west)
	_, tracked := h.b.InProgress()
	h.b.planMu.Unlock()
	h.b.Wait()
	if tracked {
		t.Fatalf("calculation toward the old goal still tracked")
	}
	if h.b.HasPath() {
		t.Fatalf("path toward the old goal installed")
	}

	for i := 0; i < 3 && !h.b.HasPath(); i++ {
		h.step()
	}
	p, ok := h.b.CurrentPath()
	if !ok {
		t.Fatalf("no path toward the new goal, events=%v", h.rec.events)
	}
	if d := p.Dest(); !west.IsInGoal(d.X, d.Y, d.Z) {
		t.Fatalf("path ends at %v, want %v", d, west)
	}
}

func TestHandOffDropsPathForReplacedGoal(t *testing.T) {
	h := newHarness(t, 16)
	h.step()
	h.startCalc(goals.Block{X: 12, Y: y, Z: 0})
	// The goal changes under the calculation without going through
	// SetGoal, so only the hand-off can notice.
	h.b.goal = goals.Block{X: -12, Y: y, Z: 0}
	h.b.planMu.Unlock()
	h.b.Wait()
	if h.b.HasPath() {
		p, _ := h.b.CurrentPath()
		t.Fatalf("installed %v for goal %v", p, h.b.Goal())
	}
	if h.rec.has(CalcFinishedNowExecuting) {
		t.Fatalf("events=%v", h.rec.events)
	}
}

func TestSameGoalKeepsRunningCalculation(t *testing.T) {
	h := newHarness(t, 16)
	h.step()
	goal := goals.Block{X: 12, Y: y, Z: 0}
	search := h.startCalc(goal)
	h.b.setGoalLocked(goals.Block{X: 12, Y: y, Z: 0})
	got, _ := h.b.InProgress()
	h.b.planMu.Unlock()
	h.b.Wait()
	if got != search {
		t.Fatalf("re-sending the same goal dropped its calculation")
	}
	if !h.b.HasPath() {
		t.Fatalf("no path, events=%v", h.rec.events)
	}
}

// scanCounter counts at-goal heuristic scans.
type scanCounter struct {
	goals.Block
	scans *int
}

func (g scanCounter) GoalHeuristic() float64 {
	*g.scans++
	return 0
}

func TestGoalHeuristicScannedOncePerGoal(t *testing.T) {
	h := newHarness(t, 16)
	scans := 0
	goal := scanCounter{Block: goals.Block{X: 10, Y: y, Z: 0}, scans: &scans}
	if !h.b.SetGoalAndPath(goal) {
		t.Fatalf("SetGoalAndPath refused a fresh goal")
	}
	for i := 0; i < 40; i++ {
		h.step()
		h.b.EstimatedTicksToGoal()
	}
	if scans != 1 {
		t.Fatalf("at-goal heuristic computed %d times", scans)
	}
	h.b.SetGoal(goals.Block{X: 3, Y: y, Z: 3})
	h.b.SetGoal(goal)
	if scans != 2 {
		t.Fatalf("changing goal back computed it %d times in total", scans)
	}
}

func TestPlanAheadContinuesOntoNextSegment(t *testing.T) {
	cfg := settings.Defaults()
	// Cut the first path roughly in half so the rest is planned ahead.
	cfg.PathCutoffMinimumLength = 5
	cfg.PathCutoffFactor = 0.5
	cfg.SplicePath = false
	h := newHarnessWith(t, 32, cfg)
	goal := goals.Block{X: 30, Y: y, Z: 0}
	h.b.SetGoal(goal)

	h.step()
	first, ok := h.b.CurrentPath()
	if !ok {
		t.Fatalf("no first segment, events=%v", h.rec.events)
	}
	if d := first.Dest(); goal.IsInGoal(d.X, d.Y, d.Z) {
		t.Fatalf("first segment was not cut: %v", first)
	}
	h.step()
	next, ok := h.b.NextPath()
	if !ok {
		t.Fatalf("nothing planned ahead, events=%v", h.rec.events)
	}
	if next.Src() != first.Dest() {
		t.Fatalf("next starts at %v, current ends at %v", next.Src(), first.Dest())
	}

	swapped := false
	for i := 0; i < 600 && !h.rec.has(AtGoal); i++ {
		h.step()
		if cp, ok := h.b.CurrentPath(); ok && cp == next {
			swapped = true
			if _, ok := h.b.NextPath(); ok {
				t.Fatalf("next kept after becoming current")
			}
		}
	}
	if !swapped {
		t.Fatalf("next segment never became current, events=%v", h.rec.events)
	}
	if !goal.IsInGoal(h.feet().X, h.feet().Y, h.feet().Z) {
		t.Fatalf("stopped at %v, events=%v", h.feet(), h.rec.events)
	}
	want := []EventType{CalcStarted, CalcFinishedNowExecuting, NextSegmentCalcStarted, NextSegmentCalcFinished, ContinuingOntoPlannedNext, AtGoal}
	if len(h.rec.events) != len(want) {
		t.Fatalf("events=%v, want %v", h.rec.events, want)
	}
	for i := range want {
		if h.rec.events[i] != want[i] {
			t.Fatalf("events=%v, want %v", h.rec.events, want)
		}
	}
	if len(h.rec.records) != 2 || h.rec.records[0].PlanAhead || !h.rec.records[1].PlanAhead {
		t.Fatalf("records=%+v", h.rec.records)
	}
}

func TestSplicePathJoinsNextIntoCurrent(t *testing.T) {
	cfg := settings.Defaults()
	cfg.PathCutoffMinimumLength = 5
	cfg.PathCutoffFactor = 0.5
	h := newHarnessWith(t, 32, cfg)
	goal := goals.Block{X: 30, Y: y, Z: 0}
	h.b.SetGoal(goal)
	h.step()
	h.step()
	h.step()
	cp, ok := h.b.CurrentPath()
	if !ok {
		t.Fatalf("no path, events=%v", h.rec.events)
	}
	if d := cp.Dest(); !goal.IsInGoal(d.X, d.Y, d.Z) {
		t.Fatalf("current still ends at %v after planning ahead", d)
	}
	if cp.Src() != blockpos.New(0, y, 0) {
		t.Fatalf("spliced path starts at %v", cp.Src())
	}
	if _, ok := h.b.NextPath(); ok {
		t.Fatalf("next kept after splicing")
	}
	if !h.rec.has(NextSegmentCalcFinished) || h.rec.has(ContinuingOntoPlannedNext) {
		t.Fatalf("events=%v", h.rec.events)
	}
}

func TestPlanAheadFailureAtAWall(t *testing.T) {
	cfg := settings.Defaults()
	cfg.AllowBreak = false
	h := newHarnessWith(t, 16, cfg)
	terraintest.Wall(h.st, h.cat, "BEDROCK", 8, -16, 8, 16, 3)
	h.b.SetGoal(goals.Block{X: 12, Y: y, Z: 0})

	for i := 0; i < 300 && !h.rec.has(CalcFailed); i++ {
		h.step()
	}
	if !h.rec.has(CalcFinishedNowExecuting) {
		t.Fatalf("no best-effort segment toward the wall, events=%v", h.rec.events)
	}
	if !h.rec.has(NextSegmentCalcStarted) || !h.rec.has(NextCalcFailed) {
		t.Fatalf("events=%v", h.rec.events)
	}
	if h.rec.has(NextSegmentCalcFinished) || h.rec.has(ContinuingOntoPlannedNext) {
		t.Fatalf("events=%v", h.rec.events)
	}
	if !h.rec.has(CalcFailed) {
		t.Fatalf("segment end never replanned, events=%v", h.rec.events)
	}
	if f := h.feet(); f.X >= 8 {
		t.Fatalf("walked through the wall to %v", f)
	}
	// A failed goal is not retried until it changes.
	n := h.rec.count(CalcStarted)
	h.step()
	h.step()
	if h.rec.count(CalcStarted) != n {
		t.Fatalf("failed goal retried, events=%v", h.rec.events)
	}
}

func straightPath(w *worldctx.Context, positions ...blockpos.Pos) *path.Path {
	costs := make([]float64, len(positions))
	for i := range costs {
		costs[i] = 4.633 * float64(i)
	}
	return path.PostProcess(w, path.Raw{Positions: positions, Costs: costs})
}

func TestSnipsnapOntoNextEarly(t *testing.T) {
	h := newHarness(t, 16)
	h.step()
	w := h.b.liveContext()
	h.b.planMu.Lock()
	h.b.goal = goals.Block{X: 0, Y: y, Z: 2}
	h.b.current = executor.New(straightPath(w, blockpos.New(0, y, 0), blockpos.New(1, y, 0), blockpos.New(2, y, 0)), h.b.cfg.Settings, nil, nil)
	next := executor.New(straightPath(w, blockpos.New(0, y, 0), blockpos.New(0, y, 1), blockpos.New(0, y, 2)), h.b.cfg.Settings, nil, nil)
	h.b.next = next
	h.b.planMu.Unlock()

	h.step()
	if !h.rec.has(SplicingOntoNextEarly) {
		t.Fatalf("events=%v", h.rec.events)
	}
	cp, ok := h.b.CurrentPath()
	if !ok || cp != next.Path() {
		t.Fatalf("current=%v, want the former next", cp)
	}
	if _, ok := h.b.NextPath(); ok {
		t.Fatalf("next kept after splicing onto it")
	}
}

func TestSegmentEndsWhileNextStillCalculating(t *testing.T) {
	h := newHarness(t, 16)
	h.step()
	w := h.b.liveContext()
	goal := goals.Block{X: 10, Y: y, Z: 0}
	end := blockpos.New(1, y, 0)
	h.b.planMu.Lock()
	h.b.goal = goal
	h.b.current = executor.New(straightPath(w, blockpos.New(0, y, 0), end), h.b.cfg.Settings, nil, nil)
	// Never run, so it stays in progress.
	h.b.inProgress = calc.New(end, goal, favoring.New(nil, 1, nil), w, h.b.cfg.Settings)
	h.b.inProgressGoal = goal
	h.b.planMu.Unlock()

	h.p.Position = mgl64.Vec3{1.5, y, 0.5}
	if in := h.step(); in.Move {
		t.Fatalf("moving with no path: %+v", in)
	}
	if !h.rec.has(PathFinishedNextStillCalculating) {
		t.Fatalf("events=%v", h.rec.events)
	}
	if h.b.HasPath() || h.rec.has(CalcStarted) {
		t.Fatalf("started over while a calculation was running, events=%v", h.rec.events)
	}
}

// Package calc runs one A* search from a start position toward a goal over
// the movement table. A Search is single-use: build it, call Calculate once
// (usually on its own goroutine) and read the Result.
package calc

import (
	"fmt"
	"sync/atomic"
	"time"

	"voxelpath.ai/internal/pathing/blockpos"
	"voxelpath.ai/internal/pathing/favoring"
	"voxelpath.ai/internal/pathing/goals"
	"voxelpath.ai/internal/pathing/path"
	"voxelpath.ai/internal/pathing/settings"
	"voxelpath.ai/internal/pathing/worldctx"
)

type State int32

const (
	Ready State = iota
	Searching
	GoalReached
	TimedOut
	Exhausted
)

func (s State) String() string {
	switch s {
	case Ready:
		return "READY"
	case Searching:
		return "SEARCHING"
	case GoalReached:
		return "GOAL_REACHED"
	case TimedOut:
		return "TIMED_OUT"
	case Exhausted:
		return "EXHAUSTED"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

type ResultType int

const (
	// SuccessToGoal paths end inside the goal.
	SuccessToGoal ResultType = iota
	// SuccessSegment paths make real progress but stop short of the goal.
	SuccessSegment
	// Failure paths lead to the node closest to the goal by heuristic and
	// may be the start alone.
	Failure
	Cancellation
	Exception
)

func (t ResultType) String() string {
	switch t {
	case SuccessToGoal:
		return "SUCCESS_TO_GOAL"
	case SuccessSegment:
		return "SUCCESS_SEGMENT"
	case Failure:
		return "FAILURE"
	case Cancellation:
		return "CANCELLATION"
	case Exception:
		return "EXCEPTION"
	default:
		return fmt.Sprintf("ResultType(%d)", int(t))
	}
}

type Result struct {
	Type ResultType
	// Path is nil for Cancellation and Exception.
	Path     *path.Path
	NumNodes int
	Duration time.Duration
	Err      error
}

// Executable reports whether the result carries a path worth walking.
func (r Result) Executable() bool {
	return r.Path != nil && (r.Type == SuccessToGoal || r.Type == SuccessSegment)
}

// Search state shared with other goroutines is limited to the atomics; the
// arena and open set belong to whichever goroutine runs Calculate.
type Search struct {
	start    blockpos.Pos
	goal     goals.Goal
	ctx      *worldctx.Context
	favoring *favoring.Favoring

	maxChunkBorderFetch int
	minImprovement      float64

	state           atomic.Int32
	cancelRequested atomic.Bool
	best            atomic.Pointer[path.Path]
	recent          atomic.Pointer[path.Path]

	arena     *arena
	open      *openSet
	root      int32
	recentIdx int32
	numNodes  int
}

func New(start blockpos.Pos, goal goals.Goal, fav *favoring.Favoring, ctx *worldctx.Context, s settings.Settings) *Search {
	if goal == nil {
		panic("calc: nil goal")
	}
	if fav == nil {
		fav = favoring.New(nil, 1, nil)
	}
	sr := &Search{
		start:               start,
		goal:                goal,
		ctx:                 ctx,
		favoring:            fav,
		maxChunkBorderFetch: s.PathingMaxChunkBorderFetch,
		root:                noNode,
		recentIdx:           noNode,
	}
	if s.MinimumImprovementRepropagation {
		sr.minImprovement = minImprovement
	}
	return sr
}

func (s *Search) Start() blockpos.Pos { return s.start }
func (s *Search) Goal() goals.Goal    { return s.goal }
func (s *Search) State() State        { return State(s.state.Load()) }

// IsFinished reports whether Calculate has returned.
func (s *Search) IsFinished() bool { return s.State() > Searching }

// Cancel asks a running search to stop at its next pop. It is safe to call
// from any goroutine, before or during Calculate.
func (s *Search) Cancel() { s.cancelRequested.Store(true) }

// BestPathSoFar returns the most promising partial path published by the
// running search. Paths are positions only and cannot be executed.
func (s *Search) BestPathSoFar() (*path.Path, bool) {
	p := s.best.Load()
	return p, p != nil
}

// PathToMostRecentNodeConsidered is the branch the search was expanding at
// its last publication point.
func (s *Search) PathToMostRecentNodeConsidered() (*path.Path, bool) {
	p := s.recent.Load()
	return p, p != nil
}

// Calculate runs the search. The failure timeout bounds the whole run; the
// primary timeout ends it early once a path making real progress exists.
// Invariant violations inside the search come back as an Exception result.
func (s *Search) Calculate(primary, failure time.Duration) (res Result) {
	if !s.state.CompareAndSwap(int32(Ready), int32(Searching)) {
		panic(fmt.Sprintf("calc: Calculate called on a search in state %v", s.State()))
	}
	begin := time.Now()
	defer func() {
		if r := recover(); r != nil {
			s.state.Store(int32(Exhausted))
			res = Result{Type: Exception, Err: fmt.Errorf("calc: %v", r)}
		}
		res.Duration = time.Since(begin)
		res.NumNodes = s.numNodes
	}()

	raw, typ, final := s.run(begin, primary, failure)
	s.state.Store(int32(final))
	if typ == Cancellation {
		return Result{Type: Cancellation}
	}
	p := path.PostProcess(s.ctx, raw)
	if typ == SuccessToGoal && !p.ReachesGoal() {
		// Post-processing cut the path short of the goal.
		typ = SuccessSegment
	}
	return Result{Type: typ, Path: p}
}

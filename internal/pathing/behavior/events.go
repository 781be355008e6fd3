package behavior

import (
	"fmt"
	"time"

	"voxelpath.ai/internal/pathing/blockpos"
	"voxelpath.ai/internal/pathing/calc"
	"voxelpath.ai/internal/pathing/goals"
)

type EventType int

const (
	CalcStarted EventType = iota
	CalcFinishedNowExecuting
	CalcFailed
	NextSegmentCalcStarted
	NextSegmentCalcFinished
	ContinuingOntoPlannedNext
	SplicingOntoNextEarly
	AtGoal
	PathFinishedNextStillCalculating
	NextCalcFailed
	DiscardNext
	Canceled
)

var eventNames = [...]string{
	CalcStarted:                      "CALC_STARTED",
	CalcFinishedNowExecuting:         "CALC_FINISHED_NOW_EXECUTING",
	CalcFailed:                       "CALC_FAILED",
	NextSegmentCalcStarted:           "NEXT_SEGMENT_CALC_STARTED",
	NextSegmentCalcFinished:          "NEXT_SEGMENT_CALC_FINISHED",
	ContinuingOntoPlannedNext:        "CONTINUING_ONTO_PLANNED_NEXT",
	SplicingOntoNextEarly:            "SPLICING_ONTO_NEXT_EARLY",
	AtGoal:                           "AT_GOAL",
	PathFinishedNextStillCalculating: "PATH_FINISHED_NEXT_STILL_CALCULATING",
	NextCalcFailed:                   "NEXT_CALC_FAILED",
	DiscardNext:                      "DISCARD_NEXT",
	Canceled:                         "CANCELED",
}

func (t EventType) String() string {
	if t >= 0 && int(t) < len(eventNames) {
		return eventNames[t]
	}
	return fmt.Sprintf("EventType(%d)", int(t))
}

// ParseEventType is the inverse of String.
func ParseEventType(s string) (EventType, bool) {
	for i, n := range eventNames {
		if n == s {
			return EventType(i), true
		}
	}
	return 0, false
}

type Event struct {
	Type EventType
	Tick uint64
	// Feet is where the body stood on the tick the event was queued.
	Feet blockpos.Pos
}

// EventListener receives path events on the tick goroutine, in order.
type EventListener interface {
	OnPathEvent(Event)
}

// CalcRecord describes one finished calculation.
type CalcRecord struct {
	Tick       uint64
	Start      blockpos.Pos
	Goal       goals.Goal
	Simplified bool
	PlanAhead  bool
	Result     calc.ResultType
	NumNodes   int
	Duration   time.Duration
	PathLength int
	PathCost   float64
	Reaches    bool
	Err        error
}

// CalcListener receives calculation records on the tick goroutine.
type CalcListener interface {
	OnCalcFinished(CalcRecord)
}

// EventFunc adapts a function to EventListener.
type EventFunc func(Event)

func (f EventFunc) OnPathEvent(e Event) { f(e) }

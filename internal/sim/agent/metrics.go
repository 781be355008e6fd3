package agent

import "voxelpath.ai/internal/pathing/calc"

type QueueDepths struct {
	Goals   int `json:"goals"`
	Cancels int `json:"cancels"`
	Saves   int `json:"saves"`
}

type Metrics struct {
	Tick          uint64            `json:"tick"`
	LoadedChunks  int               `json:"loaded_chunks"`
	Hazards       int               `json:"hazards"`
	GoalsAccepted uint64            `json:"goals_accepted"`
	GoalsRejected uint64            `json:"goals_rejected"`
	Calcs         map[string]uint64 `json:"calcs"`
	PathEvents    uint64            `json:"path_events"`
	TicksBehind   uint64            `json:"ticks_behind"`
	QueueDepths   QueueDepths       `json:"queue_depths"`
}

// Metrics is safe to call from any goroutine.
func (a *Agent) Metrics() Metrics {
	m := Metrics{
		Tick:          a.tick.Load(),
		LoadedChunks:  len(a.st.LoadedChunkKeys()),
		Hazards:       len(a.hazards.List()),
		GoalsAccepted: a.goalsAccepted.Load(),
		GoalsRejected: a.goalsRejected.Load(),
		Calcs:         map[string]uint64{},
		PathEvents:    a.events.Load(),
		TicksBehind:   a.ticksBehind.Load(),
		QueueDepths: QueueDepths{
			Goals:   len(a.goalReq),
			Cancels: len(a.cancelReq),
			Saves:   len(a.saveReq),
		},
	}
	for i := range a.calcsByResult {
		m.Calcs[calc.ResultType(i).String()] = a.calcsByResult[i].Load()
	}
	return m
}

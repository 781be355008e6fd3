package agent

import (
	"encoding/json"
	"strings"

	"voxelpath.ai/internal/pathing/behavior"
	"voxelpath.ai/internal/pathing/calc"
	"voxelpath.ai/internal/pathing/path"
	"voxelpath.ai/internal/protocol"
)

type ObserverJoinRequest struct {
	SessionID string
	// TickOut carries STATUS and PATH; a full channel skips the tick.
	TickOut chan []byte
	// DataOut carries PATH_EVENT and CALC; a full channel drops the message.
	DataOut chan []byte

	Streams    []string
	EveryTicks int
}

type ObserverSubscribeRequest struct {
	SessionID  string
	Streams    []string
	EveryTicks int
}

type observerCfg struct {
	status, path, events, calcs bool
	everyTicks                  uint64
}

type observerClient struct {
	id      string
	tickOut chan []byte
	dataOut chan []byte
	cfg     observerCfg

	// Paths last sent, so PATH goes out only when they change.
	sentCur, sentNext *path.Path
	sentAny           bool
}

func clampInt(v, min, max, def int) int {
	if v == 0 {
		return def
	}
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

func observerConfig(streams []string, everyTicks int) observerCfg {
	cfg := observerCfg{everyTicks: uint64(clampInt(everyTicks, 1, 200, 1))}
	if len(streams) == 0 {
		cfg.status, cfg.path, cfg.events, cfg.calcs = true, true, true, true
		return cfg
	}
	for _, s := range streams {
		switch strings.ToLower(strings.TrimSpace(s)) {
		case protocol.StreamStatus:
			cfg.status = true
		case protocol.StreamPath:
			cfg.path = true
		case protocol.StreamEvents:
			cfg.events = true
		case protocol.StreamCalcs:
			cfg.calcs = true
		}
	}
	return cfg
}

func (a *Agent) handleObserverJoin(req ObserverJoinRequest) {
	if req.SessionID == "" || req.TickOut == nil || req.DataOut == nil {
		return
	}
	if old := a.observers[req.SessionID]; old != nil {
		close(old.tickOut)
		close(old.dataOut)
	}
	a.observers[req.SessionID] = &observerClient{
		id:      req.SessionID,
		tickOut: req.TickOut,
		dataOut: req.DataOut,
		cfg:     observerConfig(req.Streams, req.EveryTicks),
	}
}

func (a *Agent) handleObserverSubscribe(req ObserverSubscribeRequest) {
	c := a.observers[req.SessionID]
	if c == nil {
		return
	}
	c.cfg = observerConfig(req.Streams, req.EveryTicks)
	c.sentAny = false
}

func (a *Agent) handleObserverLeave(sessionID string) {
	c := a.observers[sessionID]
	if c == nil {
		return
	}
	delete(a.observers, sessionID)
	close(c.tickOut)
	close(c.dataOut)
}

func (a *Agent) closeObservers() {
	for id := range a.observers {
		a.handleObserverLeave(id)
	}
}

func (a *Agent) ObserverCount() int { return len(a.observers) }

// OnPathEvent fans path events out to observers. Behavior calls it on the
// Run goroutine while ticking.
func (a *Agent) OnPathEvent(e behavior.Event) {
	a.events.Add(1)
	if len(a.observers) == 0 {
		return
	}
	b, err := json.Marshal(protocol.NewPathEvent(e))
	if err != nil {
		return
	}
	for _, c := range a.observers {
		if c.cfg.events {
			sendData(c, b)
		}
	}
}

func (a *Agent) OnCalcFinished(r behavior.CalcRecord) {
	if int(r.Result) >= 0 && int(r.Result) < len(a.calcsByResult) {
		a.calcsByResult[r.Result].Add(1)
	}
	if r.Result == calc.Failure || r.Result == calc.Exception {
		a.logf("calculation %s toward %v from %v: nodes=%d err=%v", r.Result, r.Goal, r.Start, r.NumNodes, r.Err)
	}
	if len(a.observers) == 0 {
		return
	}
	b, err := json.Marshal(protocol.NewCalc(r))
	if err != nil {
		return
	}
	for _, c := range a.observers {
		if c.cfg.calcs {
			sendData(c, b)
		}
	}
}

func sendData(c *observerClient, b []byte) {
	select {
	case c.dataOut <- b:
	default:
	}
}

func (a *Agent) stepObservers() {
	if len(a.observers) == 0 {
		return
	}
	tick := a.tick.Load()
	var statusJSON, pathJSON []byte
	cur, _ := a.beh.CurrentPath()
	next, _ := a.beh.NextPath()
	for _, c := range a.observers {
		if c.cfg.status && tick%c.cfg.everyTicks == 0 {
			if statusJSON == nil {
				statusJSON, _ = json.Marshal(a.Status())
			}
			sendTick(c, statusJSON)
		}
		if c.cfg.path && (!c.sentAny || c.sentCur != cur || c.sentNext != next) {
			if pathJSON == nil {
				pathJSON, _ = json.Marshal(a.Path())
			}
			if sendTick(c, pathJSON) {
				c.sentCur, c.sentNext, c.sentAny = cur, next, true
			}
		}
	}
}

func sendTick(c *observerClient, b []byte) bool {
	select {
	case c.tickOut <- b:
		return true
	default:
		return false
	}
}

// Package agent runs one simulated body under a path-planning behavior at a
// fixed tick rate. All mutation happens on the Run goroutine; other
// goroutines talk to it through request channels.
package agent

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"sync/atomic"
	"time"

	"voxelpath.ai/internal/catalogs"
	"voxelpath.ai/internal/pathing/behavior"
	"voxelpath.ai/internal/pathing/blockpos"
	"voxelpath.ai/internal/pathing/blockrules"
	"voxelpath.ai/internal/pathing/favoring"
	"voxelpath.ai/internal/pathing/goals"
	"voxelpath.ai/internal/pathing/precompute"
	"voxelpath.ai/internal/pathing/settings"
	"voxelpath.ai/internal/pathing/worldctx"
	"voxelpath.ai/internal/persistence/snapshot"
	"voxelpath.ai/internal/protocol"
	"voxelpath.ai/internal/scene"
	"voxelpath.ai/internal/sim/body"
	"voxelpath.ai/internal/terrain/store"
)

type Config struct {
	Scene    *scene.Scene
	Catalog  *catalogs.BlockCatalog
	Settings settings.Settings

	// LoadRadius is how many chunks around the body stay loaded in
	// generated scenes. Hand-built scenes never grow.
	LoadRadius int
	Logger     *log.Logger

	// OnSceneSaved is called on the Run goroutine after a save succeeds.
	OnSceneSaved func(path string, sc snapshot.SceneV1)
}

// Request Resp channels must be buffered: Run never waits on a reader.
type GoalRequest struct {
	Msg  protocol.GoalReq
	Resp chan protocol.AckMsg
}

type CancelRequest struct {
	Msg  protocol.CancelReq
	Resp chan protocol.AckMsg
}

type SaveRequest struct {
	Path string
	Resp chan SaveResult
}

type SaveResult struct {
	Scene snapshot.Header
	Err   error
}

type Agent struct {
	cfg Config
	log *log.Logger

	st      *store.Store
	live    *worldctx.Context
	beh     *behavior.Behavior
	body    *body.Body
	hazards *favoring.Hazards

	goalReq   chan GoalRequest
	cancelReq chan CancelRequest
	saveReq   chan SaveRequest

	observerJoin  chan ObserverJoinRequest
	observerSub   chan ObserverSubscribeRequest
	observerLeave chan string
	observers     map[string]*observerClient

	stop chan struct{}

	tick   atomic.Uint64
	status atomic.Pointer[protocol.StatusMsg]

	goalsAccepted atomic.Uint64
	goalsRejected atomic.Uint64
	calcsByResult [5]atomic.Uint64
	events        atomic.Uint64
	ticksBehind   atomic.Uint64
}

func New(cfg Config) (*Agent, error) {
	if cfg.Scene == nil || cfg.Scene.Store == nil {
		return nil, errors.New("agent: nil scene")
	}
	if cfg.Catalog == nil {
		return nil, errors.New("agent: nil catalog")
	}
	cfg.Settings.Normalize()
	if err := cfg.Settings.Validate(); err != nil {
		return nil, fmt.Errorf("agent: %w", err)
	}
	if cfg.LoadRadius <= 0 {
		cfg.LoadRadius = 4
	}
	st := cfg.Scene.Store
	rules := blockrules.New(cfg.Catalog, cfg.Settings.AssumeWalkOnWater)
	cache := precompute.New(rules)
	hazards := cfg.Scene.Hazards
	if hazards == nil {
		hazards = favoring.NewHazards()
	}
	scanner := favoring.BlockScanner{
		View:         st,
		IsDanger:     rules.IsDanger,
		ScanRadius:   cfg.Settings.DangerScanRadius,
		ZoneRadius:   cfg.Settings.DangerAvoidanceRadius,
		Coefficient:  cfg.Settings.DangerAvoidanceCoefficient,
		MaxZoneCount: 64,
	}

	a := &Agent{
		cfg:           cfg,
		log:           cfg.Logger,
		st:            st,
		live:          worldctx.New(st, cache, rules, cfg.Settings),
		body:          body.New(cfg.Scene.Agent),
		hazards:       hazards,
		goalReq:       make(chan GoalRequest, 16),
		cancelReq:     make(chan CancelRequest, 16),
		saveReq:       make(chan SaveRequest, 4),
		observerJoin:  make(chan ObserverJoinRequest, 16),
		observerSub:   make(chan ObserverSubscribeRequest, 64),
		observerLeave: make(chan string, 16),
		observers:     map[string]*observerClient{},
		stop:          make(chan struct{}),
	}
	a.beh = behavior.New(behavior.Config{
		World:    st,
		Snapshot: func() worldctx.BlockSource { return st.Snapshot() },
		Settings: cfg.Settings,
		Rules:    rules,
		Cache:    cache,
		Dangers:  []favoring.DangerSource{scanner, hazards},
		Logger:   cfg.Logger,
	})
	a.beh.AddListener(a)
	a.beh.AddCalcListener(a)
	st.AddListener(a.beh)
	a.tick.Store(cfg.Scene.Tick)

	if cfg.Scene.Goal != nil {
		g, err := cfg.Scene.Goal.Build()
		if err != nil {
			return nil, fmt.Errorf("agent: scene goal: %w", err)
		}
		a.beh.SetGoal(g)
	}
	a.publishStatus()
	return a, nil
}

func (a *Agent) logf(format string, args ...any) {
	if a.log != nil {
		a.log.Printf(format, args...)
	}
}

func (a *Agent) Behavior() *behavior.Behavior { return a.beh }
func (a *Agent) Hazards() *favoring.Hazards   { return a.hazards }
func (a *Agent) Store() *store.Store          { return a.st }
func (a *Agent) CurrentTick() uint64          { return a.tick.Load() }

func (a *Agent) Goals() chan<- GoalRequest     { return a.goalReq }
func (a *Agent) Cancels() chan<- CancelRequest { return a.cancelReq }
func (a *Agent) Saves() chan<- SaveRequest     { return a.saveReq }

func (a *Agent) ObserverJoin() chan<- ObserverJoinRequest           { return a.observerJoin }
func (a *Agent) ObserverSubscribe() chan<- ObserverSubscribeRequest { return a.observerSub }
func (a *Agent) ObserverLeave() chan<- string                       { return a.observerLeave }

// Status is the status published at the end of the last tick.
func (a *Agent) Status() protocol.StatusMsg { return *a.status.Load() }

// Path describes the current and planned segments.
func (a *Agent) Path() protocol.PathMsg {
	m := protocol.PathMsg{Type: protocol.TypePath, ProtocolVersion: protocol.Version, Tick: a.tick.Load()}
	if p, ok := a.beh.CurrentPath(); ok {
		pos, _ := a.beh.CurrentPosition()
		m.Current = protocol.NewPathView(p, pos)
	}
	if p, ok := a.beh.NextPath(); ok {
		m.Next = protocol.NewPathView(p, 0)
	}
	m.Goal = protocol.GoalSpec(a.beh.Goal())
	return m
}

func (a *Agent) Run(ctx context.Context) error {
	interval := time.Second / time.Duration(a.cfg.Settings.TickRateHz)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	defer a.closeObservers()
	defer a.beh.ForceCancel()

	var (
		pendingGoals   []GoalRequest
		pendingCancels []CancelRequest
		pendingSaves   []SaveRequest
		last           = time.Now()
	)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-a.stop:
			return nil
		case req := <-a.goalReq:
			pendingGoals = append(pendingGoals, req)
		case req := <-a.cancelReq:
			pendingCancels = append(pendingCancels, req)
		case req := <-a.saveReq:
			pendingSaves = append(pendingSaves, req)
		case req := <-a.observerJoin:
			a.handleObserverJoin(req)
		case req := <-a.observerSub:
			a.handleObserverSubscribe(req)
		case id := <-a.observerLeave:
			a.handleObserverLeave(id)
		case now := <-ticker.C:
			if now.Sub(last) > 2*interval {
				a.ticksBehind.Add(1)
			}
			last = now
			for _, r := range pendingCancels {
				r.Resp <- a.handleCancel(r.Msg)
			}
			for _, r := range pendingGoals {
				r.Resp <- a.handleGoal(r.Msg)
			}
			a.Step()
			for _, r := range pendingSaves {
				r.Resp <- a.handleSave(r.Path)
			}
			pendingGoals = pendingGoals[:0]
			pendingCancels = pendingCancels[:0]
			pendingSaves = pendingSaves[:0]
		}
	}
}

func (a *Agent) Stop() { close(a.stop) }

// SubmitGoal hands req to the Run goroutine and waits for its answer.
func (a *Agent) SubmitGoal(ctx context.Context, req protocol.GoalReq) (protocol.AckMsg, error) {
	resp := make(chan protocol.AckMsg, 1)
	return roundTrip(ctx, a.goalReq, GoalRequest{Msg: req, Resp: resp}, resp)
}

func (a *Agent) SubmitCancel(ctx context.Context, req protocol.CancelReq) (protocol.AckMsg, error) {
	resp := make(chan protocol.AckMsg, 1)
	return roundTrip(ctx, a.cancelReq, CancelRequest{Msg: req, Resp: resp}, resp)
}

func (a *Agent) SaveScene(ctx context.Context, path string) (snapshot.Header, error) {
	resp := make(chan SaveResult, 1)
	res, err := roundTrip(ctx, a.saveReq, SaveRequest{Path: path, Resp: resp}, resp)
	if err != nil {
		return snapshot.Header{}, err
	}
	return res.Scene, res.Err
}

func roundTrip[Req, Resp any](ctx context.Context, ch chan<- Req, req Req, resp <-chan Resp) (Resp, error) {
	var zero Resp
	select {
	case ch <- req:
	case <-ctx.Done():
		return zero, ctx.Err()
	}
	select {
	case r := <-resp:
		return r, nil
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// Step advances one tick. Run calls it; tests may drive it directly as
// long as Run is not running.
func (a *Agent) Step() {
	if a.cfg.Scene.Gen != nil {
		p := a.body.Position()
		a.st.EnsureLoaded(int(math.Floor(p.X())), int(math.Floor(p.Z())), a.cfg.LoadRadius)
	}
	in := a.beh.Tick(a.body.Player())
	a.body.Step(a.live, a.st, in)
	a.tick.Add(1)
	a.publishStatus()
	a.stepObservers()
}

func (a *Agent) publishStatus() {
	pl := a.body.Player()
	feet := pl.Feet(a.live)
	p := a.body.Position()
	m := &protocol.StatusMsg{
		Type:            protocol.TypeStatus,
		ProtocolVersion: protocol.Version,
		Tick:            a.tick.Load(),
		Pos:             [3]float64{p.X(), p.Y(), p.Z()},
		Feet:            feet.ToArray(),
		OnGround:        a.body.OnGround(),
		Goal:            protocol.GoalSpec(a.beh.Goal()),
		HasPath:         a.beh.HasPath(),
		SafeToCancel:    a.beh.IsSafeToCancel(),
	}
	if pos, ok := a.beh.CurrentPosition(); ok {
		m.PathPosition = pos
	}
	_, m.HasNext = a.beh.NextPath()
	_, m.Calculating = a.beh.InProgress()
	if eta, ok := a.beh.EstimatedTicksToGoal(); ok {
		m.ETATicks = &eta
	}
	a.status.Store(m)
}

func ack(m protocol.AckMsg, tick uint64) protocol.AckMsg {
	m.Type = protocol.TypeAck
	m.ProtocolVersion = protocol.Version
	m.ServerTick = tick
	return m
}

func (a *Agent) reject(id, code, msg string) protocol.AckMsg {
	a.goalsRejected.Add(1)
	return ack(protocol.AckMsg{AckFor: id, Code: code, Message: msg}, a.tick.Load())
}

func (a *Agent) handleGoal(req protocol.GoalReq) protocol.AckMsg {
	if req.ProtocolVersion != "" && req.ProtocolVersion != protocol.Version {
		return a.reject(req.ID, protocol.ErrProtoBadRequest, "unsupported protocol_version")
	}
	if req.Goal == nil {
		return a.reject(req.ID, protocol.ErrBadRequest, "missing goal")
	}
	g, err := req.Goal.Build()
	if err != nil {
		return a.reject(req.ID, protocol.ErrInvalidTarget, err.Error())
	}
	feet := a.body.Player().Feet(a.live)

	switch req.Mode {
	case "", protocol.GoalModeSetAndPath:
		if g.IsInGoal(feet.X, feet.Y, feet.Z) {
			a.beh.SetGoal(g)
			return a.reject(req.ID, protocol.ErrAtGoal, "already in goal")
		}
		if prev := a.beh.Goal(); prev != nil && !goals.Equal(prev, g) && a.beh.HasPath() {
			// Stop the old path at its next safe point; the new goal is
			// planned as soon as it is gone.
			a.beh.Cancel()
		}
		started := a.beh.SetGoalAndPath(g)
		a.goalsAccepted.Add(1)
		msg := "calculating"
		if !started {
			msg = "queued"
		}
		a.logf("goal %v from %v: %s", g, feet, msg)
		return ack(protocol.AckMsg{AckFor: req.ID, Accepted: true, Message: msg}, a.tick.Load())
	case protocol.GoalModeSet:
		a.beh.SetGoal(g)
		a.goalsAccepted.Add(1)
		return ack(protocol.AckMsg{AckFor: req.ID, Accepted: true, Message: "goal set"}, a.tick.Load())
	default:
		return a.reject(req.ID, protocol.ErrBadRequest, "unknown mode "+req.Mode)
	}
}

func (a *Agent) handleCancel(req protocol.CancelReq) protocol.AckMsg {
	if req.Force {
		a.beh.ForceCancel()
		return ack(protocol.AckMsg{AckFor: req.ID, Accepted: true, Message: "canceled"}, a.tick.Load())
	}
	msg := "canceled"
	if !a.beh.Cancel() {
		msg = "cancel pending until safe"
	}
	return ack(protocol.AckMsg{AckFor: req.ID, Accepted: true, Message: msg}, a.tick.Load())
}

func (a *Agent) handleSave(path string) SaveResult {
	sc := a.cfg.Scene
	sc.Hazards = a.hazards
	out := sc.Export(a.cfg.Catalog, a.tick.Load(), a.body.Position(), a.beh.Goal())
	if err := snapshot.WriteScene(path, out); err != nil {
		return SaveResult{Err: err}
	}
	a.logf("scene saved: %s (%d chunks)", path, len(out.Chunks))
	if a.cfg.OnSceneSaved != nil {
		a.cfg.OnSceneSaved(path, out)
	}
	return SaveResult{Scene: out.Header}
}

// Feet is where the body stands, for tests and tools driving Step directly.
func (a *Agent) Feet() blockpos.Pos { return a.body.Player().Feet(a.live) }

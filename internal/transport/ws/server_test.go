package ws

import (
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"voxelpath.ai/internal/pathing/goals"
	"voxelpath.ai/internal/protocol"
)

type fakeController struct {
	mu      sync.Mutex
	goals   []protocol.GoalReq
	cancels []protocol.CancelReq
	busy    bool
}

func (f *fakeController) SubmitGoal(_ context.Context, req protocol.GoalReq) (protocol.AckMsg, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.busy {
		return protocol.AckMsg{}, errors.New("agent stopped")
	}
	f.goals = append(f.goals, req)
	return protocol.AckMsg{Type: protocol.TypeAck, ProtocolVersion: protocol.Version, AckFor: req.ID, Accepted: true}, nil
}

func (f *fakeController) SubmitCancel(_ context.Context, req protocol.CancelReq) (protocol.AckMsg, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancels = append(f.cancels, req)
	return protocol.AckMsg{Type: protocol.TypeAck, ProtocolVersion: protocol.Version, AckFor: req.ID, Accepted: true}, nil
}

func (f *fakeController) CurrentTick() uint64 { return 42 }

func roundTrip(t *testing.T, conn *websocket.Conn, v any) protocol.AckMsg {
	t.Helper()
	var err error
	if s, ok := v.(string); ok {
		err = conn.WriteMessage(websocket.TextMessage, []byte(s))
	} else {
		err = conn.WriteJSON(v)
	}
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var ack protocol.AckMsg
	if err := conn.ReadJSON(&ack); err != nil {
		t.Fatalf("read: %v", err)
	}
	if ack.Type != protocol.TypeAck {
		t.Fatalf("type=%s", ack.Type)
	}
	return ack
}

func TestControlSocket(t *testing.T) {
	ctl := &fakeController{}
	srv := httptest.NewServer(NewServer(ctl, nil).Handler())
	defer srv.Close()
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	ack := roundTrip(t, conn, protocol.GoalReq{
		Type:            protocol.TypeGoal,
		ProtocolVersion: protocol.Version,
		ID:              "g1",
		Goal:            &goals.Spec{Kind: goals.KindXZ, Pos: [3]int{10, 0, -3}},
	})
	if !ack.Accepted || ack.AckFor != "g1" {
		t.Fatalf("ack=%+v", ack)
	}
	ack = roundTrip(t, conn, protocol.CancelReq{Type: protocol.TypeCancel, ProtocolVersion: protocol.Version, ID: "c1", Force: true})
	if !ack.Accepted || ack.AckFor != "c1" {
		t.Fatalf("ack=%+v", ack)
	}
	ctl.mu.Lock()
	gs, cs := ctl.goals, ctl.cancels
	ctl.mu.Unlock()
	if len(gs) != 1 || gs[0].Goal.Kind != goals.KindXZ || len(cs) != 1 || !cs[0].Force {
		t.Fatalf("goals=%+v cancels=%+v", gs, cs)
	}

	for _, tc := range []struct {
		msg  string
		code string
	}{
		{`{`, protocol.ErrProtoBadRequest},
		{`{"type":"GOAL","protocol_version":"9"}`, protocol.ErrProtoBadRequest},
		{`{"type":"DANCE","protocol_version":"1.0"}`, protocol.ErrBadRequest},
		{`{"type":"GOAL","protocol_version":"1.0","goal":7}`, protocol.ErrBadRequest},
	} {
		ack := roundTrip(t, conn, tc.msg)
		if ack.Accepted || ack.Code != tc.code || ack.ServerTick != 42 {
			t.Fatalf("%s: ack=%+v", tc.msg, ack)
		}
	}

	ctl.mu.Lock()
	ctl.busy = true
	ctl.mu.Unlock()
	ack = roundTrip(t, conn, protocol.GoalReq{Type: protocol.TypeGoal, ProtocolVersion: protocol.Version, ID: "g2"})
	if ack.Accepted || ack.Code != protocol.ErrBusy || ack.AckFor != "g2" {
		t.Fatalf("ack=%+v", ack)
	}
}

// Package ws serves the control socket: clients send GOAL and CANCEL and
// get one ACK back per request.
package ws

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"voxelpath.ai/internal/protocol"
)

// Controller applies requests on the agent's tick goroutine.
type Controller interface {
	SubmitGoal(ctx context.Context, req protocol.GoalReq) (protocol.AckMsg, error)
	SubmitCancel(ctx context.Context, req protocol.CancelReq) (protocol.AckMsg, error)
	CurrentTick() uint64
}

type Server struct {
	ctl Controller
	log *log.Logger

	upgrader websocket.Upgrader
}

func NewServer(c Controller, logger *log.Logger) *Server {
	return &Server{
		ctl: c,
		log: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 16 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		for {
			_ = conn.SetReadDeadline(time.Now().Add(120 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if err := writeJSON(conn, s.handle(r.Context(), msg)); err != nil {
				return
			}
		}
	}
}

func (s *Server) reject(id, code, text string) protocol.AckMsg {
	return protocol.AckMsg{
		Type:            protocol.TypeAck,
		ProtocolVersion: protocol.Version,
		AckFor:          id,
		Code:            code,
		Message:         text,
		ServerTick:      s.ctl.CurrentTick(),
	}
}

// handle decodes one request and waits for the agent's answer.
func (s *Server) handle(ctx context.Context, msg []byte) protocol.AckMsg {
	base, err := protocol.DecodeBase(msg)
	if err != nil {
		return s.reject("", protocol.ErrProtoBadRequest, "malformed json")
	}
	if base.ProtocolVersion != protocol.Version {
		return s.reject("", protocol.ErrProtoBadRequest, "bad protocol_version")
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var (
		ack protocol.AckMsg
		id  string
	)
	switch base.Type {
	case protocol.TypeGoal:
		var req protocol.GoalReq
		if err := json.Unmarshal(msg, &req); err != nil {
			return s.reject("", protocol.ErrBadRequest, err.Error())
		}
		id = req.ID
		ack, err = s.ctl.SubmitGoal(ctx, req)
	case protocol.TypeCancel:
		var req protocol.CancelReq
		if err := json.Unmarshal(msg, &req); err != nil {
			return s.reject("", protocol.ErrBadRequest, err.Error())
		}
		id = req.ID
		ack, err = s.ctl.SubmitCancel(ctx, req)
	default:
		return s.reject("", protocol.ErrBadRequest, "unknown type "+base.Type)
	}
	if err != nil {
		return s.reject(id, protocol.ErrBusy, err.Error())
	}
	return ack
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, b)
}

package main

import (
	"encoding/json"
	"flag"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"voxelpath.ai/internal/pathing/goals"
	"voxelpath.ai/internal/protocol"
)

func main() {
	var (
		url     = flag.String("url", "ws://localhost:8080/v1/observer/ws", "observer ws url")
		control = flag.String("control", "ws://localhost:8080/v1/ws", "control ws url, used with -goal")
		goal    = flag.String("goal", "", `goal spec to send first, e.g. {"kind":"XZ","pos":[40,0,12]}`)
		streams = flag.String("streams", "status,path,events,calcs", "comma separated streams")
		every   = flag.Int("every", 20, "status every N ticks")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[pathwatch] ", log.LstdFlags|log.Lmicroseconds)

	if *goal != "" {
		if err := sendGoal(*control, *goal, logger); err != nil {
			logger.Fatalf("goal: %v", err)
		}
	}

	conn, _, err := websocket.DefaultDialer.Dial(*url, nil)
	if err != nil {
		logger.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	sub := protocol.SubscribeMsg{
		Type:            protocol.TypeSubscribe,
		ProtocolVersion: protocol.Version,
		EveryTicks:      *every,
	}
	for _, s := range strings.Split(*streams, ",") {
		if s = strings.TrimSpace(s); s != "" {
			sub.Streams = append(sub.Streams, s)
		}
	}
	if err := conn.WriteJSON(sub); err != nil {
		logger.Fatalf("send SUBSCRIBE: %v", err)
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)
	go func() {
		<-stop
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"), time.Now().Add(time.Second))
		_ = conn.Close()
	}()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		base, err := protocol.DecodeBase(msg)
		if err != nil {
			continue
		}
		switch base.Type {
		case protocol.TypeStatus:
			var s protocol.StatusMsg
			if err := json.Unmarshal(msg, &s); err != nil {
				continue
			}
			eta := "-"
			if s.ETATicks != nil {
				eta = strconv.FormatFloat(*s.ETATicks, 'f', 0, 64)
			}
			logger.Printf("STATUS tick=%d feet=%v path=%v@%d next=%v calc=%v eta=%s", s.Tick, s.Feet, s.HasPath, s.PathPosition, s.HasNext, s.Calculating, eta)
		case protocol.TypePath:
			var p protocol.PathMsg
			if err := json.Unmarshal(msg, &p); err != nil {
				continue
			}
			if p.Current == nil {
				logger.Printf("PATH tick=%d none", p.Tick)
				continue
			}
			logger.Printf("PATH tick=%d len=%d cost=%.1f reaches=%v nodes=%d next=%v", p.Tick, len(p.Current.Positions), p.Current.Cost, p.Current.Reaches, p.Current.Nodes, p.Next != nil)
		case protocol.TypePathEvent:
			var e protocol.PathEventMsg
			if err := json.Unmarshal(msg, &e); err != nil {
				continue
			}
			logger.Printf("EVENT tick=%d %s feet=%v", e.Tick, e.Event, e.Feet)
		case protocol.TypeCalc:
			var c protocol.CalcMsg
			if err := json.Unmarshal(msg, &c); err != nil {
				continue
			}
			logger.Printf("CALC tick=%d %s goal=%s nodes=%d len=%d %.1fms", c.Tick, c.Result, c.GoalText, c.NumNodes, c.PathLength, c.DurationMS)
		}
	}
}

func sendGoal(url, spec string, logger *log.Logger) error {
	var g goals.Spec
	if err := json.Unmarshal([]byte(spec), &g); err != nil {
		return err
	}
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		return err
	}
	defer conn.Close()
	req := protocol.GoalReq{
		Type:            protocol.TypeGoal,
		ProtocolVersion: protocol.Version,
		ID:              "pathwatch",
		Mode:            protocol.GoalModeSetAndPath,
		Goal:            &g,
	}
	if err := conn.WriteJSON(req); err != nil {
		return err
	}
	_ = conn.SetReadDeadline(time.Now().Add(10 * time.Second))
	var ack protocol.AckMsg
	if err := conn.ReadJSON(&ack); err != nil {
		return err
	}
	logger.Printf("ACK accepted=%v code=%s msg=%s tick=%d", ack.Accepted, ack.Code, ack.Message, ack.ServerTick)
	return nil
}

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"voxelpath.ai/internal/pathing/blockpos"
	"voxelpath.ai/internal/pathing/favoring"
	"voxelpath.ai/internal/persistence/indexdb"
	"voxelpath.ai/internal/persistence/mirror"
	"voxelpath.ai/internal/protocol"
	"voxelpath.ai/internal/sim/agent"
	"voxelpath.ai/internal/transport/observer"
	"voxelpath.ai/internal/transport/ws"
)

type muxOptions struct {
	SceneDir    string
	EnableAdmin bool
	Validator   *requestValidator
	Mirror      *mirror.Mirror
	Logger      *log.Logger
}

const maxBodyBytes = 1 << 20

type hazardReq struct {
	ID          string  `json:"id"`
	Center      [3]int  `json:"center"`
	Radius      int     `json:"radius"`
	Coefficient float64 `json:"coefficient"`
}

func writeJSON(rw http.ResponseWriter, status int, v any) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(status)
	_ = json.NewEncoder(rw).Encode(v)
}

func ackStatus(ack protocol.AckMsg) int {
	switch {
	case ack.Accepted:
		return http.StatusOK
	case ack.Code == protocol.ErrBusy:
		return http.StatusServiceUnavailable
	case ack.Code == protocol.ErrAtGoal || ack.Code == protocol.ErrConflict:
		return http.StatusConflict
	default:
		return http.StatusBadRequest
	}
}

func badRequest(code, msg string) protocol.AckMsg {
	return protocol.AckMsg{Type: protocol.TypeAck, ProtocolVersion: protocol.Version, Code: code, Message: msg}
}

func buildMux(ag *agent.Agent, idx *indexdb.SQLiteIndex, opts muxOptions) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")
		writeMetrics(rw, ag, idx, opts.Mirror)
	})

	mux.HandleFunc("/v1/goal", func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
		if err != nil {
			writeJSON(rw, http.StatusBadRequest, badRequest(protocol.ErrProtoBadRequest, err.Error()))
			return
		}
		if err := opts.Validator.ValidateGoal(body); err != nil {
			writeJSON(rw, http.StatusBadRequest, badRequest(protocol.ErrBadRequest, err.Error()))
			return
		}
		var req protocol.GoalReq
		if err := json.Unmarshal(body, &req); err != nil {
			writeJSON(rw, http.StatusBadRequest, badRequest(protocol.ErrProtoBadRequest, err.Error()))
			return
		}
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		ack, err := ag.SubmitGoal(ctx, req)
		if err != nil {
			ack = badRequest(protocol.ErrBusy, err.Error())
			ack.AckFor = req.ID
		}
		writeJSON(rw, ackStatus(ack), ack)
	})
	mux.HandleFunc("/v1/status", func(rw http.ResponseWriter, r *http.Request) {
		writeJSON(rw, http.StatusOK, ag.Status())
	})
	mux.HandleFunc("/v1/path", func(rw http.ResponseWriter, r *http.Request) {
		writeJSON(rw, http.StatusOK, ag.Path())
	})
	mux.HandleFunc("/v1/calcs", func(rw http.ResponseWriter, r *http.Request) {
		if idx == nil {
			http.Error(rw, "index disabled", http.StatusNotFound)
			return
		}
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		rows, err := idx.RecentCalcs(r.Context(), limit)
		if err != nil {
			http.Error(rw, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(rw, http.StatusOK, rows)
	})
	mux.HandleFunc("/v1/ws", ws.NewServer(ag, opts.Logger).Handler())
	mux.HandleFunc("/v1/observer/ws", observer.NewServer(ag, opts.Logger).WSHandler())

	if !opts.EnableAdmin {
		if opts.Logger != nil {
			opts.Logger.Printf("admin endpoints disabled (VP_ENABLE_ADMIN_HTTP=false)")
		}
		return mux
	}

	// Local-only admin endpoints.
	mux.HandleFunc("/admin/v1/cancel", func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		req := protocol.CancelReq{Type: protocol.TypeCancel, ProtocolVersion: protocol.Version}
		if body, _ := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes)); len(strings.TrimSpace(string(body))) > 0 {
			if err := json.Unmarshal(body, &req); err != nil {
				writeJSON(rw, http.StatusBadRequest, badRequest(protocol.ErrProtoBadRequest, err.Error()))
				return
			}
		}
		if f := r.URL.Query().Get("force"); f == "1" || f == "true" {
			req.Force = true
		}
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		ack, err := ag.SubmitCancel(ctx, req)
		if err != nil {
			ack = badRequest(protocol.ErrBusy, err.Error())
		}
		writeJSON(rw, ackStatus(ack), ack)
	})
	mux.HandleFunc("/admin/v1/scene", func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		tick := ag.CurrentTick()
		path := filepath.Join(opts.SceneDir, fmt.Sprintf("%d.scene.zst", tick))
		ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
		defer cancel()
		hdr, err := ag.SaveScene(ctx, path)
		if err != nil {
			writeJSON(rw, http.StatusServiceUnavailable, map[string]any{"ok": false, "error": err.Error()})
			return
		}
		writeJSON(rw, http.StatusOK, map[string]any{"ok": true, "tick": hdr.Tick, "scene_id": hdr.SceneID, "path": path})
	})
	mux.HandleFunc("/admin/v1/hazards", func(rw http.ResponseWriter, r *http.Request) {
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		hz := ag.Hazards()
		switch r.Method {
		case http.MethodGet:
			list := hz.List()
			out := make([]hazardReq, 0, len(list))
			for _, h := range list {
				out = append(out, hazardReq{ID: h.ID, Center: h.Center.ToArray(), Radius: h.Radius, Coefficient: h.Coefficient})
			}
			writeJSON(rw, http.StatusOK, out)
		case http.MethodPost:
			var req hazardReq
			if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err != nil {
				http.Error(rw, err.Error(), http.StatusBadRequest)
				return
			}
			zone, err := favoring.NewAvoidance(blockpos.FromArray(req.Center), req.Radius, req.Coefficient)
			if err == nil {
				err = hz.Set(req.ID, zone)
			}
			if err != nil {
				http.Error(rw, err.Error(), http.StatusBadRequest)
				return
			}
			writeJSON(rw, http.StatusOK, map[string]any{"ok": true})
		case http.MethodDelete:
			id := r.URL.Query().Get("id")
			if !hz.Remove(id) {
				http.Error(rw, "not found", http.StatusNotFound)
				return
			}
			writeJSON(rw, http.StatusOK, map[string]any{"ok": true})
		default:
			rw.WriteHeader(http.StatusMethodNotAllowed)
		}
	})
	return mux
}

func writeMetrics(rw io.Writer, ag *agent.Agent, idx *indexdb.SQLiteIndex, mir *mirror.Mirror) {
	m := ag.Metrics()
	st := ag.Status()

	// Minimal Prometheus exposition format.
	fmt.Fprintf(rw, "# HELP voxelpath_tick Current agent tick.\n")
	fmt.Fprintf(rw, "# TYPE voxelpath_tick gauge\n")
	fmt.Fprintf(rw, "voxelpath_tick %d\n", m.Tick)

	fmt.Fprintf(rw, "# HELP voxelpath_loaded_chunks Loaded chunk count.\n")
	fmt.Fprintf(rw, "# TYPE voxelpath_loaded_chunks gauge\n")
	fmt.Fprintf(rw, "voxelpath_loaded_chunks %d\n", m.LoadedChunks)

	fmt.Fprintf(rw, "# HELP voxelpath_hazards Runtime hazards in force.\n")
	fmt.Fprintf(rw, "# TYPE voxelpath_hazards gauge\n")
	fmt.Fprintf(rw, "voxelpath_hazards %d\n", m.Hazards)

	fmt.Fprintf(rw, "# HELP voxelpath_has_path Whether a path is being executed.\n")
	fmt.Fprintf(rw, "# TYPE voxelpath_has_path gauge\n")
	fmt.Fprintf(rw, "voxelpath_has_path %d\n", b2i(st.HasPath))
	fmt.Fprintf(rw, "# HELP voxelpath_calculating Whether a calculation is running.\n")
	fmt.Fprintf(rw, "# TYPE voxelpath_calculating gauge\n")
	fmt.Fprintf(rw, "voxelpath_calculating %d\n", b2i(st.Calculating))

	fmt.Fprintf(rw, "# HELP voxelpath_goals_total Goal requests by outcome.\n")
	fmt.Fprintf(rw, "# TYPE voxelpath_goals_total counter\n")
	fmt.Fprintf(rw, "voxelpath_goals_total{outcome=%q} %d\n", "accepted", m.GoalsAccepted)
	fmt.Fprintf(rw, "voxelpath_goals_total{outcome=%q} %d\n", "rejected", m.GoalsRejected)

	fmt.Fprintf(rw, "# HELP voxelpath_calcs_total Finished calculations by result.\n")
	fmt.Fprintf(rw, "# TYPE voxelpath_calcs_total counter\n")
	for _, res := range []string{"SUCCESS_TO_GOAL", "SUCCESS_SEGMENT", "FAILURE", "CANCELLATION", "EXCEPTION"} {
		fmt.Fprintf(rw, "voxelpath_calcs_total{result=%q} %d\n", res, m.Calcs[res])
	}

	fmt.Fprintf(rw, "# HELP voxelpath_path_events_total Path events raised.\n")
	fmt.Fprintf(rw, "# TYPE voxelpath_path_events_total counter\n")
	fmt.Fprintf(rw, "voxelpath_path_events_total %d\n", m.PathEvents)

	fmt.Fprintf(rw, "# HELP voxelpath_ticks_behind_total Ticks that started late.\n")
	fmt.Fprintf(rw, "# TYPE voxelpath_ticks_behind_total counter\n")
	fmt.Fprintf(rw, "voxelpath_ticks_behind_total %d\n", m.TicksBehind)

	fmt.Fprintf(rw, "# HELP voxelpath_queue_depth Request channel backlog depth.\n")
	fmt.Fprintf(rw, "# TYPE voxelpath_queue_depth gauge\n")
	fmt.Fprintf(rw, "voxelpath_queue_depth{queue=%q} %d\n", "goals", m.QueueDepths.Goals)
	fmt.Fprintf(rw, "voxelpath_queue_depth{queue=%q} %d\n", "cancels", m.QueueDepths.Cancels)
	fmt.Fprintf(rw, "voxelpath_queue_depth{queue=%q} %d\n", "saves", m.QueueDepths.Saves)

	if idx != nil {
		s := idx.Stats()
		fmt.Fprintf(rw, "# HELP voxelpath_index_queue_depth Index writer backlog.\n")
		fmt.Fprintf(rw, "# TYPE voxelpath_index_queue_depth gauge\n")
		fmt.Fprintf(rw, "voxelpath_index_queue_depth %d\n", s.QueueDepth)
		fmt.Fprintf(rw, "# HELP voxelpath_index_dropped_total Rows the index dropped under load.\n")
		fmt.Fprintf(rw, "# TYPE voxelpath_index_dropped_total counter\n")
		fmt.Fprintf(rw, "voxelpath_index_dropped_total{kind=%q} %d\n", "calc", s.DropCalcTotal)
		fmt.Fprintf(rw, "voxelpath_index_dropped_total{kind=%q} %d\n", "event", s.DropEventTotal)
		fmt.Fprintf(rw, "voxelpath_index_dropped_total{kind=%q} %d\n", "scene", s.DropSceneTotal)
	}

	if mir != nil {
		s := mir.Stats()
		fmt.Fprintf(rw, "# HELP voxelpath_mirror_queue_depth Files waiting for upload.\n")
		fmt.Fprintf(rw, "# TYPE voxelpath_mirror_queue_depth gauge\n")
		fmt.Fprintf(rw, "voxelpath_mirror_queue_depth %d\n", s.QueueDepth)
		fmt.Fprintf(rw, "# HELP voxelpath_mirror_files_total Mirrored files by outcome.\n")
		fmt.Fprintf(rw, "# TYPE voxelpath_mirror_files_total counter\n")
		fmt.Fprintf(rw, "voxelpath_mirror_files_total{outcome=%q} %d\n", "uploaded", s.UploadedTotal)
		fmt.Fprintf(rw, "voxelpath_mirror_files_total{outcome=%q} %d\n", "failed", s.FailedTotal)
		fmt.Fprintf(rw, "voxelpath_mirror_files_total{outcome=%q} %d\n", "dropped", s.DroppedTotal)
		fmt.Fprintf(rw, "# HELP voxelpath_mirror_last_success_unix Last successful upload time.\n")
		fmt.Fprintf(rw, "# TYPE voxelpath_mirror_last_success_unix gauge\n")
		fmt.Fprintf(rw, "voxelpath_mirror_last_success_unix %d\n", s.LastSuccess)
	}
}

func b2i(b bool) int {
	if b {
		return 1
	}
	return 0
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

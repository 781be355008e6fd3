package main

import (
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

// dbCmd queries the index pathd keeps next to its logs.
func dbCmd(args []string) {
	fs := flag.NewFlagSet("db", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "pathd data directory")
	dbPath := fs.String("db", "", "sqlite db path (default: <data>/index.db)")
	limit := fs.Int("limit", 20, "result limit")
	result := fs.String("result", "", "result filter (calcs)")
	_ = fs.Parse(args)

	q := "results"
	if fs.NArg() > 0 {
		q = strings.TrimSpace(fs.Arg(0))
	}
	path := strings.TrimSpace(*dbPath)
	if path == "" {
		path = filepath.Join(*dataDir, "index.db")
	}
	if *limit <= 0 {
		*limit = 20
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		fail("open", err)
	}
	defer db.Close()

	switch q {
	case "results":
		rows, err := db.Query(`SELECT result, COUNT(*), COALESCE(SUM(num_nodes),0), COALESCE(AVG(duration_ms),0) FROM calcs GROUP BY result ORDER BY result`)
		if err != nil {
			fail("query", err)
		}
		defer rows.Close()
		for rows.Next() {
			var r struct {
				Result string  `json:"result"`
				Count  int     `json:"count"`
				Nodes  int64   `json:"nodes"`
				AvgMS  float64 `json:"avg_ms"`
			}
			if err := rows.Scan(&r.Result, &r.Count, &r.Nodes, &r.AvgMS); err != nil {
				fail("scan", err)
			}
			printJSON(r)
		}
		if err := rows.Err(); err != nil {
			fail("rows", err)
		}

	case "calcs":
		query := `SELECT tick,start_x,start_y,start_z,goal_text,result,num_nodes,duration_ms,path_length,reaches,COALESCE(error,'') FROM calcs`
		qargs := []any{}
		if *result != "" {
			query += ` WHERE result=?`
			qargs = append(qargs, strings.ToUpper(*result))
		}
		query += ` ORDER BY id DESC LIMIT ?`
		qargs = append(qargs, *limit)
		rows, err := db.Query(query, qargs...)
		if err != nil {
			fail("query", err)
		}
		defer rows.Close()
		for rows.Next() {
			var r struct {
				Tick       uint64  `json:"tick"`
				Start      [3]int  `json:"start"`
				Goal       string  `json:"goal"`
				Result     string  `json:"result"`
				NumNodes   int     `json:"num_nodes"`
				DurationMS float64 `json:"duration_ms"`
				PathLength int     `json:"path_length"`
				Reaches    bool    `json:"reaches_goal"`
				Error      string  `json:"error,omitempty"`
			}
			if err := rows.Scan(&r.Tick, &r.Start[0], &r.Start[1], &r.Start[2], &r.Goal, &r.Result, &r.NumNodes, &r.DurationMS, &r.PathLength, &r.Reaches, &r.Error); err != nil {
				fail("scan", err)
			}
			printJSON(r)
		}
		if err := rows.Err(); err != nil {
			fail("rows", err)
		}

	case "events":
		rows, err := db.Query(`SELECT event, COUNT(*) FROM path_events GROUP BY event ORDER BY event`)
		if err != nil {
			fail("query", err)
		}
		defer rows.Close()
		for rows.Next() {
			var r struct {
				Event string `json:"event"`
				Count int    `json:"count"`
			}
			if err := rows.Scan(&r.Event, &r.Count); err != nil {
				fail("scan", err)
			}
			printJSON(r)
		}
		if err := rows.Err(); err != nil {
			fail("rows", err)
		}

	case "scenes":
		rows, err := db.Query(`SELECT path,scene_id,tick,chunks,hazards,recorded_at FROM scenes ORDER BY tick DESC LIMIT ?`, *limit)
		if err != nil {
			fail("query", err)
		}
		defer rows.Close()
		for rows.Next() {
			var r struct {
				Path       string `json:"path"`
				SceneID    string `json:"scene_id"`
				Tick       uint64 `json:"tick"`
				Chunks     int    `json:"chunks"`
				Hazards    int    `json:"hazards"`
				RecordedAt string `json:"recorded_at"`
			}
			if err := rows.Scan(&r.Path, &r.SceneID, &r.Tick, &r.Chunks, &r.Hazards, &r.RecordedAt); err != nil {
				fail("scan", err)
			}
			printJSON(r)
		}
		if err := rows.Err(); err != nil {
			fail("rows", err)
		}

	default:
		fmt.Fprintln(os.Stderr, "unknown query:", q, "(results|calcs|events|scenes)")
		os.Exit(2)
	}
}

func printJSON(v any) {
	b, _ := json.Marshal(v)
	fmt.Println(string(b))
}

func fail(what string, err error) {
	fmt.Fprintf(os.Stderr, "%s: %v\n", what, err)
	os.Exit(1)
}

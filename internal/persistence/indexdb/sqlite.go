// Package indexdb keeps a queryable SQLite read model of planner activity.
// The compressed JSONL logs remain the source of truth; the index may drop
// rows when its writer falls behind.
package indexdb

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"voxelpath.ai/internal/catalogs"
	"voxelpath.ai/internal/pathing/behavior"
	"voxelpath.ai/internal/pathing/settings"
	"voxelpath.ai/internal/persistence/snapshot"
	"voxelpath.ai/internal/protocol"
)

const defaultQueueSize = 65536

type SQLiteIndex struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool

	dropCalc  atomic.Uint64
	dropEvent atomic.Uint64
	dropScene atomic.Uint64
}

type reqKind int

const (
	reqCalc reqKind = iota + 1
	reqEvent
	reqScene
)

type req struct {
	kind reqKind

	calc  protocol.CalcMsg
	event protocol.PathEventMsg
	scene sceneRow
}

type sceneRow struct {
	Path       string
	SceneID    string
	Tick       uint64
	Chunks     int
	Hazards    int
	RecordedAt string
}

// Stats reports the writer queue and the rows dropped because it was full.
type Stats struct {
	QueueDepth     int
	QueueCapacity  int
	DropCalcTotal  uint64
	DropEventTotal uint64
	DropSceneTotal uint64
}

func OpenSQLite(path string) (*SQLiteIndex, error) {
	return openSQLite(path, defaultQueueSize)
}

func openSQLite(path string, queue int) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteIndex{
		db: db,
		ch: make(chan req, queue),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	// WAL is much faster for append-style workloads.
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS catalogs (
			name TEXT PRIMARY KEY,
			digest TEXT NOT NULL,
			json TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS calcs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			tick INTEGER NOT NULL,
			start_x INTEGER NOT NULL,
			start_y INTEGER NOT NULL,
			start_z INTEGER NOT NULL,
			goal_json TEXT,
			goal_text TEXT NOT NULL,
			result TEXT NOT NULL,
			num_nodes INTEGER NOT NULL,
			duration_ms REAL NOT NULL,
			path_length INTEGER NOT NULL,
			path_cost REAL NOT NULL,
			reaches INTEGER NOT NULL,
			plan_ahead INTEGER NOT NULL,
			simplified INTEGER NOT NULL,
			error TEXT,
			raw_json TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_calcs_tick ON calcs(tick);`,
		`CREATE INDEX IF NOT EXISTS idx_calcs_result ON calcs(result, tick);`,
		`CREATE TABLE IF NOT EXISTS path_events (
			tick INTEGER NOT NULL,
			seq INTEGER NOT NULL,
			event TEXT NOT NULL,
			x INTEGER NOT NULL,
			y INTEGER NOT NULL,
			z INTEGER NOT NULL,
			PRIMARY KEY (tick, seq)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_path_events_event ON path_events(event, tick);`,
		`CREATE TABLE IF NOT EXISTS scenes (
			path TEXT PRIMARY KEY,
			scene_id TEXT NOT NULL,
			tick INTEGER NOT NULL,
			chunks INTEGER NOT NULL,
			hazards INTEGER NOT NULL,
			recorded_at TEXT NOT NULL
		);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

func (s *SQLiteIndex) Stats() Stats {
	if s == nil {
		return Stats{}
	}
	return Stats{
		QueueDepth:     len(s.ch),
		QueueCapacity:  cap(s.ch),
		DropCalcTotal:  s.dropCalc.Load(),
		DropEventTotal: s.dropEvent.Load(),
		DropSceneTotal: s.dropScene.Load(),
	}
}

// enqueue never blocks the caller; a full queue drops the row.
func (s *SQLiteIndex) enqueue(r req) {
	if s == nil || s.closed.Load() {
		return
	}
	select {
	case s.ch <- r:
	default:
		switch r.kind {
		case reqCalc:
			s.dropCalc.Add(1)
		case reqEvent:
			s.dropEvent.Add(1)
		case reqScene:
			s.dropScene.Add(1)
		}
	}
}

func (s *SQLiteIndex) WriteCalc(m protocol.CalcMsg) {
	s.enqueue(req{kind: reqCalc, calc: m})
}

func (s *SQLiteIndex) WriteEvent(m protocol.PathEventMsg) {
	s.enqueue(req{kind: reqEvent, event: m})
}

func (s *SQLiteIndex) OnCalcFinished(r behavior.CalcRecord) { s.WriteCalc(protocol.NewCalc(r)) }
func (s *SQLiteIndex) OnPathEvent(e behavior.Event)         { s.WriteEvent(protocol.NewPathEvent(e)) }

// RecordScene notes that a scene file was written.
func (s *SQLiteIndex) RecordScene(path string, sc snapshot.SceneV1) {
	if path == "" {
		return
	}
	s.enqueue(req{kind: reqScene, scene: sceneRow{
		Path:       path,
		SceneID:    sc.Header.SceneID,
		Tick:       sc.Header.Tick,
		Chunks:     len(sc.Chunks),
		Hazards:    len(sc.Hazards),
		RecordedAt: time.Now().UTC().Format(time.RFC3339Nano),
	}})
}

// UpsertCatalogs stores the block catalog and the tuning in force so rows
// can be matched with the configuration that produced them.
func (s *SQLiteIndex) UpsertCatalogs(configDir string, cat *catalogs.BlockCatalog, tune settings.Settings) error {
	if s == nil {
		return nil
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)

	type kv struct {
		name   string
		digest string
		json   []byte
	}
	var rows []kv
	if configDir != "" {
		if b, err := os.ReadFile(filepath.Join(configDir, "blocks.json")); err == nil {
			rows = append(rows, kv{name: "blocks_defs", digest: cat.DefsDigest, json: b})
		}
	}
	if b, _ := json.Marshal(cat.Palette); len(b) > 0 {
		rows = append(rows, kv{name: "blocks_palette", digest: cat.PaletteDigest, json: b})
	}
	{
		b, _ := json.Marshal(tune)
		sum := sha256.Sum256(b)
		rows = append(rows, kv{name: "tuning", digest: hex.EncodeToString(sum[:]), json: b})
	}

	tx, err := s.db.BeginTx(context.Background(), nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1')`); err != nil {
		return err
	}
	stmt, err := tx.Prepare(`INSERT OR REPLACE INTO catalogs(name,digest,json,updated_at) VALUES(?,?,?,?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, r := range rows {
		if r.digest == "" || len(r.json) == 0 {
			continue
		}
		if _, err := stmt.Exec(r.name, r.digest, string(r.json), now); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	insertCalc, _ := s.db.Prepare(`INSERT INTO calcs(tick,start_x,start_y,start_z,goal_json,goal_text,result,num_nodes,duration_ms,path_length,path_cost,reaches,plan_ahead,simplified,error,raw_json) VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`)
	insertEvent, _ := s.db.Prepare(`INSERT OR REPLACE INTO path_events(tick,seq,event,x,y,z) VALUES(?,?,?,?,?,?)`)
	insertScene, _ := s.db.Prepare(`INSERT OR REPLACE INTO scenes(path,scene_id,tick,chunks,hazards,recorded_at) VALUES(?,?,?,?,?,?)`)
	defer func() {
		for _, st := range []*sql.Stmt{insertCalc, insertEvent, insertScene} {
			if st != nil {
				_ = st.Close()
			}
		}
	}()

	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 500
		commitMaxWait = time.Second

		lastEventTick uint64
		eventSeq      int
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
		lastCommit = time.Now()
	}
	commit := func() {
		if tx == nil {
			return
		}
		_ = tx.Commit()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	rollback := func() {
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	exec := func(st *sql.Stmt, args ...any) {
		if st == nil || tx == nil {
			return
		}
		if _, err := tx.Stmt(st).Exec(args...); err != nil {
			rollback()
			return
		}
		opCount++
	}

	for r := range s.ch {
		begin()
		if tx == nil {
			continue
		}
		switch r.kind {
		case reqCalc:
			c := r.calc
			raw, _ := json.Marshal(c)
			var goalJSON any
			if c.Goal != nil {
				b, _ := json.Marshal(c.Goal)
				goalJSON = string(b)
			}
			var errText any
			if c.Error != "" {
				errText = c.Error
			}
			exec(insertCalc,
				int64(c.Tick),
				c.Start[0], c.Start[1], c.Start[2],
				goalJSON,
				c.GoalText,
				c.Result,
				c.NumNodes,
				c.DurationMS,
				c.PathLength,
				c.PathCost,
				boolInt(c.Reaches),
				boolInt(c.PlanAhead),
				boolInt(c.Simplified),
				errText,
				string(raw),
			)

		case reqEvent:
			e := r.event
			if e.Tick != lastEventTick {
				lastEventTick = e.Tick
				eventSeq = 0
			}
			seq := eventSeq
			eventSeq++
			exec(insertEvent, int64(e.Tick), seq, e.Event, e.Feet[0], e.Feet[1], e.Feet[2])

		case reqScene:
			sc := r.scene
			exec(insertScene, sc.Path, sc.SceneID, int64(sc.Tick), sc.Chunks, sc.Hazards, sc.RecordedAt)
		}
		// An idle writer never holds a tx open: readers share the single connection.
		if tx != nil && (len(s.ch) == 0 || opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait) {
			commit()
		}
	}

	commit()
}

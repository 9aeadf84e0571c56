// Package plandb keeps a queryable sqlite index of plan outcomes. Writes go
// through a background goroutine so the planner never blocks on disk.
package plandb

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"fieldline.dev/internal/protocol"
)

type SQLiteIndex struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool
}

type reqKind int

const (
	reqPlan reqKind = iota + 1
	reqRobot
	reqSync
)

type req struct {
	kind  reqKind
	plan  planRow
	robot robotRow
	sync  chan struct{}
}

type planRow struct {
	RecordedAt string
	RequestID  string
	Robot      string
	OK         bool
	Code       string
	TravelTime float64
	PathLength float64
	Samples    int
	RawJSON    string
}

type robotRow struct {
	Name       string
	RawJSON    string
	RecordedAt string
}

func OpenSQLite(path string) (*SQLiteIndex, error) {
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
		ch: make(chan req, 4096),
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
		`CREATE TABLE IF NOT EXISTS plans (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			recorded_at TEXT NOT NULL,
			request_id TEXT,
			robot TEXT NOT NULL,
			ok INTEGER NOT NULL,
			code TEXT,
			travel_time REAL NOT NULL,
			path_length REAL NOT NULL,
			samples INTEGER NOT NULL,
			raw_json TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_plans_robot ON plans(robot, recorded_at);`,
		`CREATE INDEX IF NOT EXISTS idx_plans_code ON plans(code);`,
		`CREATE TABLE IF NOT EXISTS robots (
			name TEXT PRIMARY KEY,
			raw_json TEXT NOT NULL,
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

// RecordPlan queues a plan outcome for indexing. Drops the row if the
// indexer falls behind; the planlog JSONL stays the source of truth.
func (s *SQLiteIndex) RecordPlan(res protocol.PlanResultMsg) {
	if s == nil || s.closed.Load() {
		return
	}
	raw, err := json.Marshal(res)
	if err != nil {
		return
	}
	r := planRow{
		RecordedAt: time.Now().UTC().Format(time.RFC3339Nano),
		RequestID:  res.RequestID,
		Robot:      res.Robot,
		OK:         res.OK,
		Code:       res.Code,
		TravelTime: res.TravelTime,
		PathLength: res.PathLength,
		Samples:    len(res.Samples),
		RawJSON:    string(raw),
	}
	select {
	case s.ch <- req{kind: reqPlan, plan: r}:
	default:
	}
}

// RecordRobot upserts the latest registration for a robot.
func (s *SQLiteIndex) RecordRobot(spec protocol.RobotSpec) {
	if s == nil || s.closed.Load() {
		return
	}
	raw, err := json.Marshal(spec)
	if err != nil {
		return
	}
	r := robotRow{
		Name:       spec.Name,
		RawJSON:    string(raw),
		RecordedAt: time.Now().UTC().Format(time.RFC3339Nano),
	}
	select {
	case s.ch <- req{kind: reqRobot, robot: r}:
	default:
	}
}

func (s *SQLiteIndex) loop() {
	for r := range s.ch {
		switch r.kind {
		case reqPlan:
			_, _ = s.db.Exec(
				`INSERT INTO plans (recorded_at, request_id, robot, ok, code, travel_time, path_length, samples, raw_json)
				 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				r.plan.RecordedAt, r.plan.RequestID, r.plan.Robot, boolInt(r.plan.OK),
				r.plan.Code, r.plan.TravelTime, r.plan.PathLength, r.plan.Samples, r.plan.RawJSON,
			)
		case reqRobot:
			_, _ = s.db.Exec(
				`INSERT INTO robots (name, raw_json, recorded_at) VALUES (?, ?, ?)
				 ON CONFLICT(name) DO UPDATE SET raw_json=excluded.raw_json, recorded_at=excluded.recorded_at`,
				r.robot.Name, r.robot.RawJSON, r.robot.RecordedAt,
			)
		case reqSync:
			close(r.sync)
		}
	}
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// PlanStats summarizes indexed outcomes for one robot.
type PlanStats struct {
	Total     int
	Succeeded int
	Failed    int
	AvgTime   float64
}

// StatsFor reads plan statistics for a robot. It drains pending writes
// first so callers observe their own records.
func (s *SQLiteIndex) StatsFor(robot string) (PlanStats, error) {
	if s == nil {
		return PlanStats{}, fmt.Errorf("nil index")
	}
	s.Flush()
	var st PlanStats
	row := s.db.QueryRow(
		`SELECT COUNT(*),
		        COALESCE(SUM(ok), 0),
		        COALESCE(AVG(CASE WHEN ok = 1 THEN travel_time END), 0)
		 FROM plans WHERE robot = ?`, robot)
	if err := row.Scan(&st.Total, &st.Succeeded, &st.AvgTime); err != nil {
		return PlanStats{}, err
	}
	st.Failed = st.Total - st.Succeeded
	return st, nil
}

// FailureCounts groups indexed failures by error code.
func (s *SQLiteIndex) FailureCounts() (map[string]int, error) {
	if s == nil {
		return nil, fmt.Errorf("nil index")
	}
	s.Flush()
	rows, err := s.db.Query(`SELECT code, COUNT(*) FROM plans WHERE ok = 0 GROUP BY code`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[string]int{}
	for rows.Next() {
		var code string
		var n int
		if err := rows.Scan(&code, &n); err != nil {
			return nil, err
		}
		out[code] = n
	}
	return out, rows.Err()
}

// Flush blocks until every write queued before the call has been applied.
func (s *SQLiteIndex) Flush() {
	if s == nil || s.closed.Load() {
		return
	}
	done := make(chan struct{})
	s.ch <- req{kind: reqSync, sync: done}
	<-done
}

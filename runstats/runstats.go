// ════════════════════════════════════════════════════════════════════════════════════════════════
// Run Statistics Sink
// ────────────────────────────────────────────────────────────────────────────────────────────────
// Project: Task-Parallel Runtime
// Component: Post-Run Counter Persistence
//
// Description:
//   Persists one scheduling run — configuration, topology fingerprint and
//   per-worker counters — into a SQLite database after the scheduler has
//   observed global quiescence. Strictly a cold path: nothing here runs
//   while workers are live.
//
// Schema:
//   runs(id, started_unix, finished_unix, fingerprint, config_json)
//   worker_stats(run_id, worker, partition, tasks_executed, tasks_sent,
//                tasks_shared, requests_sent, requests_one, requests_half,
//                requests_forwarded, steals_completed, requests_dropped)
//
// The fingerprint is Keccak-256 over the canonical config JSON, so runs over
// identical topologies group under one key across databases.
//
// ════════════════════════════════════════════════════════════════════════════════════════════════

package runstats

import (
	"database/sql"
	"encoding/hex"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/sugawarayuuta/sonnet"
	"golang.org/x/crypto/sha3"

	"taskrt/config"
	"taskrt/sched"
)

// configBlob is the canonical JSON surface of one run's configuration.
// Field order is fixed by the struct, which keeps the fingerprint stable.
type configBlob struct {
	NumWorkers         int32   `json:"num_workers"`
	Partitions         []int32 `json:"partitions"`
	MaxSteal           int32   `json:"max_steal"`
	MaxStealAttempts   int32   `json:"max_steal_attempts"`
	Strategy           string  `json:"steal_strategy"`
	AdaptativeInterval int32   `json:"steal_adaptative_interval"`
	VictimCheck        bool    `json:"victim_check"`
	StealLastVictim    bool    `json:"steal_last_victim"`
	StealLastThief     bool    `json:"steal_last_thief"`
}

// Fingerprint derives the topology key for a configuration: Keccak-256 over
// its canonical JSON, hex encoded.
func Fingerprint(o *config.Options) (string, []byte, error) {
	blob, err := sonnet.Marshal(&configBlob{
		NumWorkers:         o.NumWorkers,
		Partitions:         o.Partitions,
		MaxSteal:           o.MaxSteal,
		MaxStealAttempts:   o.MaxStealAttempts,
		Strategy:           o.Strategy.String(),
		AdaptativeInterval: o.AdaptativeInterval,
		VictimCheck:        o.VictimCheck,
		StealLastVictim:    o.StealLastVictim,
		StealLastThief:     o.StealLastThief,
	})
	if err != nil {
		return "", nil, err
	}
	h := sha3.NewLegacyKeccak256()
	h.Write(blob)
	return hex.EncodeToString(h.Sum(nil)), blob, nil
}

// Sink is an open statistics database.
type Sink struct {
	db *sql.DB
}

// Open creates (or opens) the statistics database and ensures the schema.
func Open(path string) (*Sink, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	started_unix  INTEGER NOT NULL,
	finished_unix INTEGER NOT NULL,
	fingerprint   TEXT    NOT NULL,
	config_json   TEXT    NOT NULL
);
CREATE TABLE IF NOT EXISTS worker_stats (
	run_id             INTEGER NOT NULL REFERENCES runs(id),
	worker             INTEGER NOT NULL,
	partition          INTEGER NOT NULL,
	tasks_executed     INTEGER NOT NULL,
	tasks_sent         INTEGER NOT NULL,
	tasks_shared       INTEGER NOT NULL,
	requests_sent      INTEGER NOT NULL,
	requests_one       INTEGER NOT NULL,
	requests_half      INTEGER NOT NULL,
	requests_forwarded INTEGER NOT NULL,
	steals_completed   INTEGER NOT NULL,
	requests_dropped   INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_runs_fingerprint ON runs(fingerprint);
CREATE INDEX IF NOT EXISTS idx_worker_stats_run ON worker_stats(run_id);`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, err
	}
	return &Sink{db: db}, nil
}

// Close releases the database handle.
func (s *Sink) Close() error { return s.db.Close() }

// RecordRun stores one completed run and its per-worker counters, returning
// the run row ID.
func (s *Sink) RecordRun(o *config.Options, started, finished time.Time,
	stats []sched.WorkerStats) (int64, error) {

	fp, blob, err := Fingerprint(o)
	if err != nil {
		return 0, err
	}

	tx, err := s.db.Begin()
	if err != nil {
		return 0, err
	}
	res, err := tx.Exec(
		`INSERT INTO runs (started_unix, finished_unix, fingerprint, config_json)
		 VALUES (?, ?, ?, ?)`,
		started.Unix(), finished.Unix(), fp, string(blob))
	if err != nil {
		tx.Rollback()
		return 0, err
	}
	runID, err := res.LastInsertId()
	if err != nil {
		tx.Rollback()
		return 0, err
	}
	stmt, err := tx.Prepare(
		`INSERT INTO worker_stats (run_id, worker, partition,
		 tasks_executed, tasks_sent, tasks_shared,
		 requests_sent, requests_one, requests_half,
		 requests_forwarded, steals_completed, requests_dropped)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return 0, err
	}
	for _, ws := range stats {
		c := ws.Counters
		if _, err := stmt.Exec(runID, ws.ID, ws.Partition,
			int64(c.TasksExecuted), int64(c.TasksSent), int64(c.TasksShared),
			int64(c.RequestsSent), int64(c.RequestsStealOne), int64(c.RequestsStealHalf),
			int64(c.RequestsForwarded), int64(c.StealsCompleted),
			int64(c.RequestsDropped)); err != nil {
			stmt.Close()
			tx.Rollback()
			return 0, err
		}
	}
	stmt.Close()
	return runID, tx.Commit()
}

// RunSummary is one aggregated run row, decoded for tooling.
type RunSummary struct {
	RunID       int64  `json:"run_id"`
	Fingerprint string `json:"fingerprint"`
	Workers     int64  `json:"workers"`
	Tasks       int64  `json:"tasks_executed"`
	Requests    int64  `json:"requests_sent"`
	Steals      int64  `json:"steals_completed"`
}

// Summarize aggregates one stored run.
func (s *Sink) Summarize(runID int64) (*RunSummary, error) {
	row := s.db.QueryRow(
		`SELECT r.fingerprint,
		        COUNT(w.worker),
		        COALESCE(SUM(w.tasks_executed), 0),
		        COALESCE(SUM(w.requests_sent), 0),
		        COALESCE(SUM(w.steals_completed), 0)
		 FROM runs r LEFT JOIN worker_stats w ON w.run_id = r.id
		 WHERE r.id = ?
		 GROUP BY r.id`, runID)
	sum := &RunSummary{RunID: runID}
	if err := row.Scan(&sum.Fingerprint, &sum.Workers, &sum.Tasks,
		&sum.Requests, &sum.Steals); err != nil {
		return nil, err
	}
	return sum, nil
}

// SummaryJSON renders an aggregated run as JSON for log shipping.
func (s *Sink) SummaryJSON(runID int64) ([]byte, error) {
	sum, err := s.Summarize(runID)
	if err != nil {
		return nil, err
	}
	return sonnet.Marshal(sum)
}

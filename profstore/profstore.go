// Package profstore persists profiler snapshots in a SQLite database so that
// runs can be compared after the process exits.
package profstore

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/chazu/garnet/vm"
	_ "modernc.org/sqlite"
)

// ErrNoRuns indicates the store holds no snapshots yet.
var ErrNoRuns = errors.New("profstore: no profile runs")

const schema = `CREATE TABLE IF NOT EXISTS profile_runs (
	id                INTEGER PRIMARY KEY AUTOINCREMENT,
	taken_at          INTEGER NOT NULL,
	label             TEXT NOT NULL DEFAULT '',
	clock_ticks       INTEGER NOT NULL,
	total_invocations INTEGER NOT NULL,
	op_counts         JSON NOT NULL,
	call_sites        JSON NOT NULL,
	hot_units         JSON NOT NULL,
	line_coverage     JSON NOT NULL DEFAULT '{}'
)`

// Run is one stored snapshot.
type Run struct {
	ID       int64
	TakenAt  time.Time
	Label    string
	Snapshot vm.ProfileSnapshot
}

// Store is a handle on a profile database.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

// Open opens (creating if needed) the database at path.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating table: %w", err)
	}
	if err := addCoverageColumn(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// addCoverageColumn upgrades databases created before runs carried line
// coverage.
func addCoverageColumn(db *sql.DB) error {
	var n int
	err := db.QueryRow(`SELECT COUNT(*) FROM pragma_table_info('profile_runs') WHERE name = 'line_coverage'`).Scan(&n)
	if err != nil {
		return fmt.Errorf("inspecting profile_runs: %w", err)
	}
	if n > 0 {
		return nil
	}
	if _, err := db.Exec(`ALTER TABLE profile_runs ADD COLUMN line_coverage JSON NOT NULL DEFAULT '{}'`); err != nil {
		return fmt.Errorf("adding line_coverage: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Save stores snap under label and returns its run id.
func (s *Store) Save(label string, snap vm.ProfileSnapshot) (int64, error) {
	ops, err := json.Marshal(snap.OpCounts)
	if err != nil {
		return 0, fmt.Errorf("encoding op counts: %w", err)
	}
	sites, err := json.Marshal(snap.CallSites)
	if err != nil {
		return 0, fmt.Errorf("encoding call sites: %w", err)
	}
	hot, err := json.Marshal(snap.HotUnits)
	if err != nil {
		return 0, fmt.Errorf("encoding hot units: %w", err)
	}
	cov := []byte("{}")
	if len(snap.Coverage) > 0 {
		if cov, err = json.Marshal(snap.Coverage); err != nil {
			return 0, fmt.Errorf("encoding line coverage: %w", err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.db.Exec(
		`INSERT INTO profile_runs (taken_at, label, clock_ticks, total_invocations, op_counts, call_sites, hot_units, line_coverage)
		 VALUES (?, ?, ?, ?, json(?), json(?), json(?), json(?))`,
		time.Now().UnixNano(), label, int64(snap.ClockTicks), int64(snap.TotalInvocations),
		string(ops), string(sites), string(hot), string(cov),
	)
	if err != nil {
		return 0, fmt.Errorf("saving profile run: %w", err)
	}
	return res.LastInsertId()
}

const selectRun = `SELECT id, taken_at, label, clock_ticks, total_invocations, op_counts, call_sites, hot_units, line_coverage FROM profile_runs`

// Latest returns the most recently saved run.
func (s *Store) Latest() (*Run, error) {
	run, err := scanRun(s.db.QueryRow(selectRun + " ORDER BY id DESC LIMIT 1"))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoRuns
	}
	return run, err
}

// Get returns the run with the given id.
func (s *Store) Get(id int64) (*Run, error) {
	run, err := scanRun(s.db.QueryRow(selectRun+" WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("profstore: run %d not found", id)
	}
	return run, err
}

// List returns up to limit runs, newest first.
func (s *Store) List(limit int) ([]*Run, error) {
	rows, err := s.db.Query(selectRun+" ORDER BY id DESC LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("querying profile runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*Run, error) {
	var (
		run                 Run
		takenAt             int64
		ticks, invocations  int64
		ops, sites, hotJSON string
		covJSON             string
	)
	if err := row.Scan(&run.ID, &takenAt, &run.Label, &ticks, &invocations, &ops, &sites, &hotJSON, &covJSON); err != nil {
		return nil, err
	}
	run.TakenAt = time.Unix(0, takenAt)
	run.Snapshot.ClockTicks = uint64(ticks)
	run.Snapshot.TotalInvocations = uint64(invocations)
	if err := json.Unmarshal([]byte(ops), &run.Snapshot.OpCounts); err != nil {
		return nil, fmt.Errorf("decoding op counts of run %d: %w", run.ID, err)
	}
	if err := json.Unmarshal([]byte(sites), &run.Snapshot.CallSites); err != nil {
		return nil, fmt.Errorf("decoding call sites of run %d: %w", run.ID, err)
	}
	if err := json.Unmarshal([]byte(hotJSON), &run.Snapshot.HotUnits); err != nil {
		return nil, fmt.Errorf("decoding hot units of run %d: %w", run.ID, err)
	}
	var cov map[string]map[int]uint64
	if err := json.Unmarshal([]byte(covJSON), &cov); err != nil {
		return nil, fmt.Errorf("decoding line coverage of run %d: %w", run.ID, err)
	}
	if len(cov) > 0 {
		run.Snapshot.Coverage = cov
	}
	return &run, nil
}

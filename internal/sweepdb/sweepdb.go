// Package sweepdb stores sweep results in sqlite, alongside the XML
// document, so finished sweeps can be queried without re-parsing XML.
package sweepdb

import (
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"

	"github.com/msd-research/metropolis/internal/msd"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// DB is a handle to the results database.
type DB struct {
	*sql.DB
}

// Open opens (creating if needed) the database at path and applies any
// pending schema migrations.
func Open(path string) (*DB, error) {
	sqldb, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open results database: %w", err)
	}
	db := &DB{sqldb}
	if err := db.migrateUp(); err != nil {
		sqldb.Close()
		return nil, err
	}
	return db, nil
}

func (db *DB) migrateUp() error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("load embedded migrations: %w", err)
	}
	driver, err := sqlite.WithInstance(db.DB, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("create sqlite migrate driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}
	// Not closed: closing would close the shared DB connection.
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

// Run describes one sweep invocation.
type Run struct {
	ID         string
	Program    string
	Model      string
	InitMode   string
	ParamFile  string
	OutputFile string
}

// InsertRun records the start of a sweep.
func (db *DB) InsertRun(run Run) error {
	_, err := db.Exec(`
		INSERT INTO runs (id, program, model, init_mode, param_file, output_file)
		VALUES (?, ?, ?, ?, ?, ?)
	`, run.ID, run.Program, run.Model, run.InitMode, run.ParamFile, run.OutputFile)
	if err != nil {
		return fmt.Errorf("insert run %s: %w", run.ID, err)
	}
	return nil
}

// InsertResult records one finished task. seq is the recording order within
// the run.
func (db *DB) InsertResult(runID string, seq int, res msd.Result) error {
	paramsJSON, err := json.Marshal(namedValuesMap(res.Job.Params.List()))
	if err != nil {
		return fmt.Errorf("marshal parameters: %w", err)
	}
	resultsJSON, err := json.Marshal(namedValuesMap(res.Observables()))
	if err != nil {
		return fmt.Errorf("marshal observables: %w", err)
	}

	_, err = db.Exec(`
		INSERT INTO results (run_id, seq, kt, params_json, results_json)
		VALUES (?, ?, ?, ?, ?)
	`, runID, seq, res.Job.Params.KT, string(paramsJSON), string(resultsJSON))
	if err != nil {
		return fmt.Errorf("insert result %d of run %s: %w", seq, runID, err)
	}
	return nil
}

// StoredResult is one row read back from the results table.
type StoredResult struct {
	Seq     int
	KT      float64
	Params  map[string]float64
	Results map[string]float64
}

// Results returns every result of a run in recording order.
func (db *DB) Results(runID string) ([]StoredResult, error) {
	rows, err := db.Query(`
		SELECT seq, kt, params_json, results_json
		FROM results WHERE run_id = ? ORDER BY seq
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query results of run %s: %w", runID, err)
	}
	defer rows.Close()

	var out []StoredResult
	for rows.Next() {
		var r StoredResult
		var paramsJSON, resultsJSON string
		if err := rows.Scan(&r.Seq, &r.KT, &paramsJSON, &resultsJSON); err != nil {
			return nil, fmt.Errorf("scan result row: %w", err)
		}
		if err := json.Unmarshal([]byte(paramsJSON), &r.Params); err != nil {
			return nil, fmt.Errorf("decode parameters of seq %d: %w", r.Seq, err)
		}
		if err := json.Unmarshal([]byte(resultsJSON), &r.Results); err != nil {
			return nil, fmt.Errorf("decode observables of seq %d: %w", r.Seq, err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// CountResults returns the number of recorded results for a run.
func (db *DB) CountResults(runID string) (int, error) {
	var n int
	err := db.QueryRow(`SELECT COUNT(*) FROM results WHERE run_id = ?`, runID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count results of run %s: %w", runID, err)
	}
	return n, nil
}

func namedValuesMap(list []msd.NamedValue) map[string]float64 {
	m := make(map[string]float64, len(list))
	for _, nv := range list {
		m[nv.Name] = nv.Value
	}
	return m
}

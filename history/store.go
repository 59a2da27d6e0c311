// Package history keeps a record of past checks in a local SQLite
// database, so results can be compared across runs.
package history

import (
	"bufio"
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/Abhishekkr206/WebBaseline/baseline"
)

// Run is one recorded check.
type Run struct {
	ID      string
	Started time.Time
	Path    string
	Files   int
	Skipped int
	Limited int
	Newly   int
	Widely  int
	Worst   baseline.Tier
	Dataset string
	Elapsed time.Duration
}

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY,
	started    TEXT NOT NULL,
	path       TEXT NOT NULL,
	files      INTEGER NOT NULL,
	skipped    INTEGER NOT NULL,
	limited    INTEGER NOT NULL,
	newly      INTEGER NOT NULL,
	widely     INTEGER NOT NULL,
	worst      TEXT NOT NULL,
	dataset    TEXT NOT NULL,
	elapsed_ms INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS runs_by_started ON runs(started);
`

// Store wraps a single SQLite connection. Not safe for concurrent use.
type Store struct {
	conn *sqlite.Conn
	log  *zap.Logger
}

// Open opens the run database at path, creating it when necessary. Pass
// ":memory:" for a throwaway in-memory store. Logger may be nil.
func Open(path string, log *zap.Logger) (*Store, error) {
	if log == nil {
		log = zap.NewNop()
	}
	flags := []sqlite.OpenFlags{sqlite.OpenReadWrite, sqlite.OpenCreate}
	if path == ":memory:" {
		flags = []sqlite.OpenFlags{sqlite.OpenReadWrite, sqlite.OpenMemory}
	}
	conn, err := sqlite.OpenConn(path, flags...)
	if err != nil {
		return nil, fmt.Errorf("failed to open run database %s: %w", path, err)
	}
	if err := sqlitex.ExecuteScript(conn, schema, nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to prepare run database: %w", err)
	}
	return &Store{conn: conn, log: log.Named("history")}, nil
}

// Close releases the underlying connection.
func (s *Store) Close() error {
	return s.conn.Close()
}

// Record stores one run, filling in the ID and start time when the caller
// left them empty.
func (s *Store) Record(run Run) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.Started.IsZero() {
		run.Started = time.Now()
	}
	err := sqlitex.Execute(s.conn,
		`INSERT INTO runs (id, started, path, files, skipped, limited, newly, widely, worst, dataset, elapsed_ms)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		&sqlitex.ExecOptions{Args: []any{
			run.ID,
			run.Started.UTC().Format(time.RFC3339Nano),
			run.Path,
			run.Files,
			run.Skipped,
			run.Limited,
			run.Newly,
			run.Widely,
			run.Worst.String(),
			run.Dataset,
			run.Elapsed.Milliseconds(),
		}})
	if err != nil {
		return fmt.Errorf("failed to record run: %w", err)
	}
	s.log.Debug("Run recorded", zap.String("id", run.ID), zap.String("path", run.Path))
	return nil
}

// List returns up to limit runs, newest first. limit <= 0 returns all.
func (s *Store) List(limit int) ([]Run, error) {
	query := `SELECT id, started, path, files, skipped, limited, newly, widely, worst, dataset, elapsed_ms
		FROM runs ORDER BY started DESC`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	var runs []Run
	err := sqlitex.Execute(s.conn, query, &sqlitex.ExecOptions{
		Args: args,
		ResultFunc: func(stmt *sqlite.Stmt) error {
			run := Run{
				ID:      stmt.ColumnText(0),
				Path:    stmt.ColumnText(2),
				Files:   int(stmt.ColumnInt64(3)),
				Skipped: int(stmt.ColumnInt64(4)),
				Limited: int(stmt.ColumnInt64(5)),
				Newly:   int(stmt.ColumnInt64(6)),
				Widely:  int(stmt.ColumnInt64(7)),
				Dataset: stmt.ColumnText(9),
				Elapsed: time.Duration(stmt.ColumnInt64(10)) * time.Millisecond,
			}
			if ts, err := time.Parse(time.RFC3339Nano, stmt.ColumnText(1)); err == nil {
				run.Started = ts
			}
			if tier, err := baseline.ParseTier(stmt.ColumnText(8)); err == nil {
				run.Worst = tier
			}
			runs = append(runs, run)
			return nil
		}})
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	return runs, nil
}

// Prune drops everything but the newest keep runs.
func (s *Store) Prune(keep int) error {
	if keep < 0 {
		keep = 0
	}
	err := sqlitex.Execute(s.conn,
		`DELETE FROM runs WHERE id NOT IN (SELECT id FROM runs ORDER BY started DESC LIMIT ?)`,
		&sqlitex.ExecOptions{Args: []any{keep}})
	if err != nil {
		return fmt.Errorf("failed to prune runs: %w", err)
	}
	return nil
}

// Write prints runs as an aligned table, one line per run.
func Write(w io.Writer, runs []Run) error {
	if len(runs) == 0 {
		_, err := fmt.Fprintln(w, "no recorded runs")
		return err
	}
	buf := bufio.NewWriter(w)
	fmt.Fprintf(buf, "%-22s %-8s %6s %8s %6s %7s  %s\n", "WHEN", "WORST", "FILES", "LIMITED", "NEWLY", "WIDELY", "PATH")
	for _, run := range runs {
		fmt.Fprintf(buf, "%-22s %-8s %6d %8d %6d %7d  %s\n",
			humanize.Time(run.Started), run.Worst, run.Files, run.Limited, run.Newly, run.Widely, run.Path)
	}
	return buf.Flush()
}

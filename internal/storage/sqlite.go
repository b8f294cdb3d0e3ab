package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	logx "tickkit/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

const defaultRetention = 100000

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger

	retention  int
	opCount    atomic.Uint64
	pruneEvery uint64
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	path := cfg.Path
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	retention := cfg.Retention
	if retention <= 0 {
		retention = defaultRetention
	}
	st := &sqliteStore{db: db, log: log, retention: retention, pruneEvery: 200}

	// Basic pragmas.
	if cfg.BusyTimeout > 0 {
		ms := cfg.BusyTimeout.Milliseconds()
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", ms))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return st, nil
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *sqliteStore) AppendFrames(ctx context.Context, rows []FrameRow) error {
	if s == nil || s.db == nil {
		return ErrDisabled
	}
	if len(rows) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO frames(tick, at, registered, late_reg, due, invoked, late_due, late_invoke, purged, recovered, elapsed_us)
		 VALUES(?,?,?,?,?,?,?,?,?,?,?)`)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	for _, r := range rows {
		at := r.At
		if at.IsZero() {
			at = time.Now()
		}
		if _, err := stmt.ExecContext(ctx,
			r.Tick, at.Format(time.RFC3339Nano), r.Registered, r.LateReg, r.Due, r.Invoked,
			r.LateDue, r.LateInvoke, r.Purged, r.Recovered, r.Elapsed.Microseconds(),
		); err != nil {
			_ = stmt.Close()
			_ = tx.Rollback()
			return err
		}
	}
	_ = stmt.Close()
	if err := tx.Commit(); err != nil {
		return err
	}

	if s.opCount.Add(1)%s.pruneEvery == 0 {
		pctx, cancel := context.WithTimeout(context.Background(), 250*time.Millisecond)
		s.pruneFrames(pctx)
		cancel()
	}
	return nil
}

func (s *sqliteStore) AppendSummary(ctx context.Context, row SummaryRow) error {
	if s == nil || s.db == nil {
		return ErrDisabled
	}
	at := row.At
	if at.IsZero() {
		at = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO summaries(at, ticks, invoked, late_invoked, purged, recovered, registered, late_registered, agents)
		 VALUES(?,?,?,?,?,?,?,?,?)`,
		at.Format(time.RFC3339Nano), row.Ticks, row.Invoked, row.LateInvoked,
		row.Purged, row.Recovered, row.Registered, row.LateRegistered, row.Agents,
	)
	return err
}

// pruneFrames enforces the retention bound; best-effort.
func (s *sqliteStore) pruneFrames(ctx context.Context) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM frames WHERE rowid IN (
			SELECT rowid FROM frames ORDER BY tick DESC LIMIT -1 OFFSET ?
		)`, s.retention)
	if err != nil {
		s.log.Debug("frame prune failed", logx.Any("err", err))
		return
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		s.log.Debug("pruned frame rows", logx.Int64("rows", n))
	}
}

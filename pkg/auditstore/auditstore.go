// Package auditstore provides optional, best-effort persistence of match
// phase transitions to PostgreSQL (§3.3 of the protocol: the validator's
// in-memory view of a match is authoritative; nothing here is required for
// correctness, and a missing or unreachable database never blocks a match
// from progressing). Grounded in the teacher's pkg/database client: a
// connection-pooled *sql.DB over the lib/pq driver with embedded,
// self-recording SQL migrations.
package auditstore

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"log"
	"sort"
	"strings"
	"time"

	_ "github.com/lib/pq"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store records match phase transitions for post-hoc audit and dispute
// resolution. It is never consulted to decide protocol outcomes; the live
// MatchRecord in memory is always authoritative (§3.3, §3.4).
type Store struct {
	db     *sql.DB
	logger *log.Logger
}

// Open connects to databaseURL and runs any pending migrations.
func Open(ctx context.Context, databaseURL string) (*Store, error) {
	if databaseURL == "" {
		return nil, fmt.Errorf("auditstore: database URL cannot be empty")
	}

	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("auditstore: open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(time.Hour)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("auditstore: ping: %w", err)
	}

	s := &Store{
		db:     db,
		logger: log.New(log.Writer(), "[auditstore] ", log.LstdFlags),
	}
	if err := s.migrateUp(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// RecordTransition appends one audit row for matchID entering phase, with an
// arbitrary JSON-serializable detail payload (typically the MatchRecord's
// public fields). Failures are returned, never panicked on: callers log and
// continue rather than let an audit-write failure affect match processing.
func (s *Store) RecordTransition(ctx context.Context, matchID, phase string, detail interface{}) error {
	payload, err := json.Marshal(detail)
	if err != nil {
		return fmt.Errorf("auditstore: marshal detail: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO match_audit (match_id, phase, detail) VALUES ($1, $2, $3)`,
		matchID, phase, payload,
	)
	if err != nil {
		return fmt.Errorf("auditstore: insert: %w", err)
	}
	return nil
}

type migration struct {
	version string
	sql     string
}

func (s *Store) migrateUp(ctx context.Context) error {
	migrations, err := s.loadMigrations()
	if err != nil {
		return fmt.Errorf("auditstore: load migrations: %w", err)
	}

	applied, err := s.appliedMigrations(ctx)
	if err != nil {
		if !strings.Contains(err.Error(), "does not exist") {
			return fmt.Errorf("auditstore: applied migrations: %w", err)
		}
		applied = make(map[string]bool)
	}

	for _, m := range migrations {
		if applied[m.version] {
			continue
		}
		s.logger.Printf("applying migration %s", m.version)
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("auditstore: begin migration %s: %w", m.version, err)
		}
		if _, err := tx.ExecContext(ctx, m.sql); err != nil {
			tx.Rollback()
			return fmt.Errorf("auditstore: apply migration %s: %w", m.version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("auditstore: commit migration %s: %w", m.version, err)
		}
	}
	return nil
}

func (s *Store) loadMigrations() ([]migration, error) {
	var out []migration
	err := fs.WalkDir(migrationsFS, "migrations", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, ".sql") {
			return nil
		}
		content, err := migrationsFS.ReadFile(path)
		if err != nil {
			return err
		}
		out = append(out, migration{
			version: strings.TrimSuffix(d.Name(), ".sql"),
			sql:     string(content),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].version < out[j].version })
	return out, nil
}

func (s *Store) appliedMigrations(ctx context.Context) (map[string]bool, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	applied := make(map[string]bool)
	for rows.Next() {
		var version string
		if err := rows.Scan(&version); err != nil {
			return nil, err
		}
		applied[version] = true
	}
	return applied, rows.Err()
}

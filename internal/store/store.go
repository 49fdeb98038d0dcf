package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// ErrMigrationName is returned for schema files not named NNN_name.up.sql.
var ErrMigrationName = errors.New("bad migration file name")

var migrationRe = regexp.MustCompile(`^(\d+_[a-z0-9_]+)\.up\.sql$`)

const schemaMigrations = `CREATE TABLE IF NOT EXISTS schema_migrations (
    version    TEXT PRIMARY KEY,
    applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

// Store persists payments and finished visits in PostgreSQL. Each schema
// file is applied once and recorded in schema_migrations.
type Store struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

// Migration is one applied schema file.
type Migration struct {
	Version   string    `json:"version"`
	AppliedAt time.Time `json:"applied_at"`
}

// Health is the pool state served by the API.
type Health struct {
	Reachable     bool   `json:"reachable"`
	Error         string `json:"error,omitempty"`
	TotalConns    int32  `json:"total_conns"`
	IdleConns     int32  `json:"idle_conns"`
	AcquiredConns int32  `json:"acquired_conns"`
}

// New connects a pool tagged with the resort's application name.
func New(ctx context.Context, dsn string, logger *zap.Logger) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if _, ok := cfg.ConnConfig.RuntimeParams["application_name"]; !ok {
		cfg.ConnConfig.RuntimeParams["application_name"] = "nuka-resort"
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	logger.Info("postgres connected",
		zap.String("database", cfg.ConnConfig.Database),
		zap.Int32("max_conns", cfg.MaxConns))
	return &Store{db: pool, logger: logger}, nil
}

// migrationVersion turns "001_init.up.sql" into "001_init".
func migrationVersion(file string) (string, error) {
	m := migrationRe.FindStringSubmatch(file)
	if m == nil {
		return "", fmt.Errorf("%w: %s", ErrMigrationName, file)
	}
	return m[1], nil
}

// Migrate applies every *.up.sql file in migrationsDir that is not yet
// recorded, in name order. Each file runs in its own transaction together
// with its schema_migrations row.
func (s *Store) Migrate(ctx context.Context, migrationsDir string) error {
	matches, err := filepath.Glob(filepath.Join(migrationsDir, "*.up.sql"))
	if err != nil {
		return fmt.Errorf("list migrations: %w", err)
	}
	sort.Strings(matches)

	if _, err := s.db.Exec(ctx, schemaMigrations); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}
	done, err := s.Applied(ctx)
	if err != nil {
		return err
	}
	applied := make(map[string]bool, len(done))
	for _, m := range done {
		applied[m.Version] = true
	}

	n := 0
	for _, path := range matches {
		version, err := migrationVersion(filepath.Base(path))
		if err != nil {
			return err
		}
		if applied[version] {
			continue
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", version, err)
		}
		err = pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
			if _, err := tx.Exec(ctx, string(data)); err != nil {
				return err
			}
			_, err := tx.Exec(ctx, `INSERT INTO schema_migrations (version) VALUES ($1)`, version)
			return err
		})
		if err != nil {
			return fmt.Errorf("apply migration %s: %w", version, err)
		}
		s.logger.Info("migration applied", zap.String("version", version))
		n++
	}
	s.logger.Debug("schema up to date", zap.Int("applied", n), zap.Int("known", len(matches)))
	return nil
}

// Applied lists recorded migrations, oldest first.
func (s *Store) Applied(ctx context.Context) ([]Migration, error) {
	rows, err := s.db.Query(ctx, `SELECT version, applied_at FROM schema_migrations ORDER BY version`)
	if err != nil {
		return nil, fmt.Errorf("list migrations: %w", err)
	}
	defer rows.Close()

	var out []Migration
	for rows.Next() {
		var m Migration
		if err := rows.Scan(&m.Version, &m.AppliedAt); err != nil {
			return nil, fmt.Errorf("scan migration: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// Health pings the database and reports pool usage.
func (s *Store) Health(ctx context.Context) Health {
	st := s.db.Stat()
	h := Health{
		Reachable:     true,
		TotalConns:    st.TotalConns(),
		IdleConns:     st.IdleConns(),
		AcquiredConns: st.AcquiredConns(),
	}
	if err := s.db.Ping(ctx); err != nil {
		h.Reachable = false
		h.Error = err.Error()
	}
	return h
}

// Close shuts down the connection pool.
func (s *Store) Close() {
	s.db.Close()
}

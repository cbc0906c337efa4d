package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"log/slog"
	"net/url"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// migration upgrades the schema from version-1 to version.
type migration struct {
	version int
	name    string
	stmt    string
}

var migrations = []migration{
	{1, "index pipelines by model", `CREATE INDEX IF NOT EXISTS idx_pipelines_model ON pipelines(model, seq)`},
	{2, "index validators by fingerprint", `CREATE INDEX IF NOT EXISTS idx_validators_fingerprint ON validators(fingerprint)`},
}

// currentSchemaVersion is the user_version of a fully migrated store.
var currentSchemaVersion = migrations[len(migrations)-1].version

// Store holds compiled pipelines and validators in a SQLite file.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used for schema migrations.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// dsn builds the go-sqlite3 connection string as a file URI, so path is
// percent-escaped and may contain '?' or '#'. Pragmas set here apply to every
// connection the pool opens.
func dsn(path string) string {
	q := url.Values{}
	q.Set("_journal_mode", "WAL")
	q.Set("_synchronous", "NORMAL")
	q.Set("_busy_timeout", "5000")
	u := url.URL{Scheme: "file", Path: filepath.ToSlash(path), RawQuery: q.Encode()}
	return u.String()
}

// Open creates or opens the plan store at path and brings its schema up to
// date. Opening an existing store is a no-op apart from pending migrations.
func Open(path string, opts ...Option) (*Store, error) {
	s := &Store{logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}

	db, err := sql.Open("sqlite3", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("open plan store %s: %w", path, err)
	}
	// One writer at a time.
	db.SetMaxOpenConns(1)
	s.db = db

	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("open plan store %s: %w", path, err)
	}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate plan store %s: %w", path, err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// SchemaVersion returns the database's user_version.
func (s *Store) SchemaVersion(ctx context.Context) (int, error) {
	var version int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return 0, fmt.Errorf("read user_version: %w", err)
	}
	return version, nil
}

// migrate creates the base tables and runs every migration newer than the
// stored user_version inside one transaction.
func (s *Store) migrate(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create tables: %w", err)
	}

	var version int
	if err := tx.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("read user_version: %w", err)
	}
	for _, m := range migrations {
		if m.version <= version {
			continue
		}
		if _, err := tx.ExecContext(ctx, m.stmt); err != nil {
			return fmt.Errorf("migration %d (%s): %w", m.version, m.name, err)
		}
		s.logger.Debug("applied plan store migration", "version", m.version, "name", m.name)
	}
	if version < currentSchemaVersion {
		// PRAGMA does not take bound parameters.
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
			return fmt.Errorf("write user_version: %w", err)
		}
	}
	return tx.Commit()
}

// pragma reads the current value of a connection pragma.
func (s *Store) pragma(ctx context.Context, name string) (string, error) {
	var value string
	if err := s.db.QueryRowContext(ctx, "PRAGMA "+name).Scan(&value); err != nil {
		return "", fmt.Errorf("read pragma %s: %w", name, err)
	}
	return value, nil
}

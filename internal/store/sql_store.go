package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

const (
	dialectSQLite   = "sqlite"
	dialectPostgres = "postgres"
)

// SQLStore implements the Store interface on top of sqlx. It speaks both
// SQLite (modernc.org/sqlite) and PostgreSQL (lib/pq); queries are written
// with ? placeholders and rebound per driver.
type SQLStore struct {
	db      *sqlx.DB
	dialect string
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath,
// enables WAL mode and foreign keys, and runs any pending schema migrations.
func NewSQLiteStore(dbPath string) (*SQLStore, error) {
	return Open(dialectSQLite, dbPath)
}

// Open connects to the database selected by driver ("sqlite" or
// "postgres") and runs any pending schema migrations.
func Open(driver, dsn string) (*SQLStore, error) {
	var (
		db  *sqlx.DB
		err error
	)

	switch driver {
	case dialectSQLite:
		db, err = openSQLite(dsn)
	case dialectPostgres:
		db, err = openPostgres(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
	if err != nil {
		return nil, err
	}

	s := &SQLStore{db: db, dialect: driver}
	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

func openSQLite(dbPath string) (*sqlx.DB, error) {
	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	// A single connection keeps PRAGMAs and :memory: databases consistent
	// and serializes writers instead of failing with SQLITE_BUSY.
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	// Enable foreign keys.
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	return db, nil
}

func openPostgres(dsn string) (*sqlx.DB, error) {
	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening postgres db: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging postgres db: %w", err)
	}

	return db, nil
}

// Close closes the underlying database connection.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// SchemaVersion reports the highest applied migration.
func (s *SQLStore) SchemaVersion(ctx context.Context) (int, error) {
	var version int
	err := s.db.GetContext(ctx, &version,
		"SELECT COALESCE(MAX(version), 0) FROM schema_version")
	if err != nil {
		return 0, fmt.Errorf("reading schema version: %w", err)
	}
	return version, nil
}

// runMigrations checks the current schema version and applies any
// outstanding migrations in order, each in its own transaction.
func (s *SQLStore) runMigrations() error {
	if _, err := s.db.Exec(
		"CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL)",
	); err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}

	currentVersion, err := s.SchemaVersion(context.Background())
	if err != nil {
		return err
	}

	for _, m := range migrations[s.dialect] {
		if m.version <= currentVersion {
			continue
		}
		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("beginning migration v%d: %w", m.version, err)
		}
		if _, err := tx.Exec(m.sql); err != nil {
			tx.Rollback()
			return fmt.Errorf("applying migration v%d: %w", m.version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration v%d: %w", m.version, err)
		}
	}

	return nil
}

// inTx runs fn inside a transaction, committing when fn returns nil.
func (s *SQLStore) inTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}

	return tx.Commit()
}

// insertReturningID runs an INSERT ... RETURNING id statement.
// Both SQLite (3.35+) and PostgreSQL support RETURNING, while lib/pq
// does not implement LastInsertId.
func insertReturningID(ctx context.Context, tx *sqlx.Tx, query string, args ...interface{}) (int64, error) {
	var id int64
	if err := tx.GetContext(ctx, &id, tx.Rebind(query), args...); err != nil {
		return 0, err
	}
	return id, nil
}

// notFound maps sql.ErrNoRows onto ErrNotFound.
func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

// generateID returns a time-ordered UUID v7 for backup ids.
func generateID() string {
	id, err := uuid.NewV7()
	if err != nil {
		// Fallback to UUID v4 if v7 generation fails
		return uuid.New().String()
	}
	return id.String()
}

// nowUTC is the store's clock for created_at/updated_at columns.
var nowUTC = func() time.Time { return time.Now().UTC() }

var _ Store = (*SQLStore)(nil)

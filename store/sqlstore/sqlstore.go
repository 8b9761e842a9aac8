/*
Package sqlstore provides the relational implementation of brokerage.Store.

PURPOSE:
  Implements every persistence interface of the brokerage core over
  database/sql. Two dialects are supported:

    sqlite: development, demos and tests (":memory:" works)
    mysql:  production, the database the back office has always run on

  Only a handful of fragments differ between them (DDL, insert-ignore,
  current date arithmetic); see dialect.go.

INTERFACES IMPLEMENTED:
  brokerage.Store:  transactions, projections, audit
  brokerage.Tx:     writes inside one transaction

KEY TABLES:
  insured, insurer, policy_type,
  claim_status, claim_subject_type: dimensions, UNIQUE case-sensitive names
  policy:                           primary record, provisional flag
  vehicle:                          plates of a policy and/or insured party
  claim:                            primary record
  commission_payment:               commission receipts
  audit_logs:                       append-only audit trail
  employee_info:                    actor display names (read-only here)

TRANSACTIONS:
  WithTx binds the transaction to the caller's context. When the context is
  cancelled database/sql rolls the transaction back, so a disconnected
  caller never leaves half a write behind.

MIGRATION:
  Schema is created idempotently on Open. There is no versioned migration
  tooling.

USAGE:
  store, err := sqlstore.Open("sqlite", "./data/brokerage.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  services := brokerage.NewServices(store, logger, nil)

SEE ALSO:
  - brokerage/store.go: Interface definitions
*/
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/warp/brokerdesk/brokerage"
)

// querier is the subset of *sql.DB and *sql.Tx the queries need.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store implements brokerage.Store over database/sql.
type Store struct {
	db      *sql.DB
	dialect Dialect
}

var _ brokerage.Store = (*Store)(nil)

// Open connects to the database for driver ("sqlite" or "mysql") and
// creates the schema.
func Open(driver, dsn string) (*Store, error) {
	switch strings.ToLower(driver) {
	case "sqlite", "sqlite3", "":
		return OpenSQLite(dsn)
	case "mysql":
		return OpenMySQL(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
}

// OpenSQLite opens a SQLite database at path. Use ":memory:" for an
// in-memory database.
func OpenSQLite(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite allows one writer, and each connection to ":memory:" is its own
	// database, so the pool is pinned to one connection.
	db.SetMaxOpenConns(1)
	return newMigrated(db, SQLite)
}

// OpenMySQL opens a MySQL database from a go-sql-driver DSN.
func OpenMySQL(dsn string) (*Store, error) {
	cfg, err := parseMySQLDSN(dsn)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open("mysql", cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(10)
	return newMigrated(db, MySQL)
}

func newMigrated(db *sql.DB, d Dialect) (*Store, error) {
	s := New(db, d)
	if err := s.migrate(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return s, nil
}

// New wraps an open database without touching the schema.
func New(db *sql.DB, d Dialect) *Store {
	return &Store{db: db, dialect: d}
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Dialect returns the SQL dialect of the store.
func (s *Store) Dialect() Dialect {
	return s.dialect
}

func (s *Store) migrate(ctx context.Context) error {
	for _, stmt := range s.dialect.Schema() {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// =============================================================================
// TRANSACTIONAL STORE
// =============================================================================

// WithTx executes fn within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(brokerage.Tx) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{q: sqlTx, dialect: s.dialect}); err != nil {
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

type txStore struct {
	q       querier
	dialect Dialect
}

var _ brokerage.Tx = (*txStore)(nil)

// =============================================================================
// ADMIN
// =============================================================================

// SaveEmployee inserts or renames an employee so audit entries can show the
// actor's name. Employees are otherwise managed outside this store.
func (s *Store) SaveEmployee(ctx context.Context, id int64, firstName string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE employee_info SET employee_first_name = ? WHERE employee_id = ?", firstName, id)
	if err != nil {
		return fmt.Errorf("failed to save employee: %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}
	_, err = s.db.ExecContext(ctx,
		"INSERT INTO employee_info (employee_id, employee_first_name) VALUES (?, ?)", id, firstName)
	if err != nil {
		return fmt.Errorf("failed to save employee: %w", err)
	}
	return nil
}

// Reset deletes all data. Only for demo/test environments.
func (s *Store) Reset(ctx context.Context) error {
	tables := []string{
		"audit_logs", "commission_payment", "claim", "vehicle", "policy",
		"claim_subject_type", "claim_status", "policy_type", "insurer", "insured",
	}
	return s.WithTx(ctx, func(tx brokerage.Tx) error {
		q := tx.(*txStore).q
		for _, t := range tables {
			if _, err := q.ExecContext(ctx, "DELETE FROM "+t); err != nil {
				return fmt.Errorf("failed to reset %s: %w", t, err)
			}
		}
		return nil
	})
}

// =============================================================================
// HELPERS
// =============================================================================

func rowsAffected(res sql.Result, err error) (int64, error) {
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func lastInsertID(res sql.Result, err error) (int64, error) {
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

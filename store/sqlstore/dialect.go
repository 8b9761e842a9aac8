package sqlstore

import (
	"fmt"
	"strconv"

	"github.com/go-sql-driver/mysql"
	_ "github.com/mattn/go-sqlite3"
)

// Dialect captures the SQL fragments that differ between databases.
type Dialect interface {
	Name() string
	Schema() []string

	// InsertIgnore is the statement prefix of an insert that silently skips
	// rows violating a unique index.
	InsertIgnore() string

	// Today is an expression for the database's current date.
	Today() string

	// TodayPlus returns an expression for today + days and its bind argument.
	TodayPlus(days int) (string, any)

	// DaysUntil is an expression for the whole days from today to col.
	DaysUntil(col string) string

	// LockingRead is the suffix that makes a SELECT read the latest
	// committed rows instead of the transaction's snapshot.
	LockingRead() string
}

var (
	SQLite Dialect = sqliteDialect{}
	MySQL  Dialect = mysqlDialect{}
)

type sqliteDialect struct{}

func (sqliteDialect) Name() string         { return "sqlite" }
func (sqliteDialect) Schema() []string     { return sqliteSchema }
func (sqliteDialect) InsertIgnore() string { return "INSERT OR IGNORE" }
func (sqliteDialect) Today() string        { return "date('now')" }
func (sqliteDialect) LockingRead() string  { return "" }

func (sqliteDialect) TodayPlus(days int) (string, any) {
	return "date('now', ?)", "+" + strconv.Itoa(days) + " days"
}

func (sqliteDialect) DaysUntil(col string) string {
	return fmt.Sprintf("CAST(julianday(%s) - julianday(date('now')) AS INTEGER)", col)
}

type mysqlDialect struct{}

func (mysqlDialect) Name() string         { return "mysql" }
func (mysqlDialect) Schema() []string     { return mysqlSchema }
func (mysqlDialect) InsertIgnore() string { return "INSERT IGNORE" }
func (mysqlDialect) Today() string        { return "CURDATE()" }
func (mysqlDialect) LockingRead() string  { return " FOR SHARE" }

func (mysqlDialect) TodayPlus(days int) (string, any) {
	return "DATE_ADD(CURDATE(), INTERVAL ? DAY)", days
}

func (mysqlDialect) DaysUntil(col string) string {
	return fmt.Sprintf("DATEDIFF(%s, CURDATE())", col)
}

// parseMySQLDSN normalizes a DSN: dates and timestamps are scanned as text
// and parsed by the store, so parseTime must stay off.
func parseMySQLDSN(dsn string) (string, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", fmt.Errorf("invalid mysql dsn: %w", err)
	}
	cfg.ParseTime = false
	if cfg.Params == nil {
		cfg.Params = map[string]string{}
	}
	cfg.Params["charset"] = "utf8mb4"
	return cfg.FormatDSN(), nil
}

package store

import (
	"errors"
	"fmt"
	"strings"

	mysqldriver "github.com/go-sql-driver/mysql"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	mssql "github.com/microsoft/go-mssqldb"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// Supported dialect names.
const (
	DialectSQLite    = "sqlite"
	DialectMySQL     = "mysql"
	DialectPostgres  = "postgres"
	DialectSQLServer = "sqlserver"
)

// idStrategy describes how a dialect hands back the generated primary key of
// an INSERT.
type idStrategy int

const (
	idLastInsert idStrategy = iota // sql.Result.LastInsertId
	idReturning                    // INSERT ... RETURNING col
	idOutput                       // INSERT ... OUTPUT INSERTED.col VALUES ...
)

// Dialect captures the per-database differences the store cares about: the
// database/sql driver, DDL and id retrieval.
type Dialect struct {
	Name       string
	DriverName string
	ids        idStrategy
	migrations []string
}

var dialects = map[string]Dialect{
	DialectSQLite: {
		Name:       DialectSQLite,
		DriverName: "sqlite",
		ids:        idLastInsert,
		migrations: sqliteMigrations,
	},
	DialectMySQL: {
		Name:       DialectMySQL,
		DriverName: "mysql",
		ids:        idLastInsert,
		migrations: mysqlMigrations,
	},
	DialectPostgres: {
		Name:       DialectPostgres,
		DriverName: "pgx",
		ids:        idReturning,
		migrations: postgresMigrations,
	},
	DialectSQLServer: {
		Name:       DialectSQLServer,
		DriverName: "sqlserver",
		ids:        idOutput,
		migrations: sqlserverMigrations,
	},
}

// LookupDialect returns the dialect registered under name. "postgresql",
// "pgx" and "mssql" are accepted as aliases.
func LookupDialect(name string) (Dialect, error) {
	switch strings.ToLower(name) {
	case "", "sqlite3":
		name = DialectSQLite
	case "postgresql", "pgx":
		name = DialectPostgres
	case "mssql":
		name = DialectSQLServer
	}
	d, ok := dialects[strings.ToLower(name)]
	if !ok {
		return Dialect{}, fmt.Errorf("unsupported store dialect %q (available: sqlite, mysql, postgres, sqlserver)", name)
	}
	return d, nil
}

// normalizeDSN applies the connection parameters the store depends on.
func (d Dialect) normalizeDSN(dsn string) (string, error) {
	switch d.Name {
	case DialectSQLite:
		if dsn == "" {
			return ":memory:?_pragma=foreign_keys(1)", nil
		}
		if strings.Contains(dsn, "?") {
			return dsn, nil
		}
		return dsn + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", nil
	case DialectMySQL:
		// DATETIME columns only scan into time.Time with parseTime enabled.
		cfg, err := mysqldriver.ParseDSN(dsn)
		if err != nil {
			return "", fmt.Errorf("parse mysql dsn: %w", err)
		}
		cfg.ParseTime = true
		return cfg.FormatDSN(), nil
	default:
		if dsn == "" {
			return "", fmt.Errorf("%s store requires a dsn", d.Name)
		}
		return dsn, nil
	}
}

// insertSQL builds an INSERT for table that also yields idCol when the
// dialect can't report it through LastInsertId. Placeholders are '?' and
// must be rebound before use.
func (d Dialect) insertSQL(table, idCol string, cols []string) string {
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
	colList := strings.Join(cols, ", ")

	switch d.ids {
	case idReturning:
		return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING %s", table, colList, placeholders, idCol)
	case idOutput:
		return fmt.Sprintf("INSERT INTO %s (%s) OUTPUT INSERTED.%s VALUES (%s)", table, colList, idCol, placeholders)
	default:
		return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", table, colList, placeholders)
	}
}

// isUniqueViolation reports whether err was caused by a UNIQUE or PRIMARY KEY
// constraint, whichever driver produced it.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}

	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		switch liteErr.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return true
		case sqlite3.SQLITE_CONSTRAINT:
			return strings.Contains(liteErr.Error(), "UNIQUE")
		}
		return false
	}

	var myErr *mysqldriver.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == 1062 // ER_DUP_ENTRY
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgerrcode.UniqueViolation
	}

	var msErr mssql.Error
	if errors.As(err, &msErr) {
		return msErr.Number == 2627 || msErr.Number == 2601
	}

	// Drivers without typed errors (and test doubles) only leave the message.
	lower := strings.ToLower(err.Error())
	return strings.Contains(lower, "unique constraint") ||
		strings.Contains(lower, "duplicate key") ||
		strings.Contains(lower, "duplicate entry")
}

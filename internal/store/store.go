package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/sethvargo/go-retry"

	"github.com/keygate/keygate/internal/model"
)

// Options configures how Open connects to the backing database.
type Options struct {
	// Dialect is one of sqlite, mysql, postgres or sqlserver. Empty means sqlite.
	Dialect string
	// DSN is the driver connection string. For sqlite it is a file path, and
	// empty means a private in-memory database.
	DSN string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration

	// ConnectRetries bounds how many times the initial ping is retried, with
	// exponential backoff starting at ConnectBackoff.
	ConnectRetries uint64
	ConnectBackoff time.Duration
}

// Store persists admins, users and API keys. Every method is safe for
// concurrent use; the connection pool is the only shared state.
type Store struct {
	db      *sqlx.DB
	dialect Dialect
}

// Open connects to the database described by opts, waits for it to answer a
// ping and brings the schema up to date.
func Open(ctx context.Context, opts Options) (*Store, error) {
	dialect, err := LookupDialect(opts.Dialect)
	if err != nil {
		return nil, err
	}

	dsn, err := dialect.normalizeDSN(opts.DSN)
	if err != nil {
		return nil, err
	}
	if dialect.Name == DialectSQLite && opts.DSN != "" {
		path, _, _ := strings.Cut(opts.DSN, "?")
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("create data dir: %w", err)
			}
		}
	}

	db, err := sqlx.Open(dialect.DriverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", dialect.Name, err)
	}

	if dialect.Name == DialectSQLite {
		// One connection: SQLite serializes writers, and each connection to
		// :memory: would otherwise see its own empty database.
		db.SetMaxOpenConns(1)
	} else {
		if opts.MaxOpenConns > 0 {
			db.SetMaxOpenConns(opts.MaxOpenConns)
		}
		if opts.MaxIdleConns > 0 {
			db.SetMaxIdleConns(opts.MaxIdleConns)
		}
		if opts.ConnMaxLifetime > 0 {
			db.SetConnMaxLifetime(opts.ConnMaxLifetime)
		}
	}

	if err := ping(ctx, db, opts.ConnectRetries, opts.ConnectBackoff); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect %s store: %w", dialect.Name, err)
	}

	s := &Store{db: db, dialect: dialect}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate %s store: %w", dialect.Name, err)
	}
	return s, nil
}

// NewInMemory opens a migrated, private in-memory SQLite store.
func NewInMemory() (*Store, error) {
	return Open(context.Background(), Options{Dialect: DialectSQLite})
}

// NewWithDB wraps an existing handle without running migrations. The schema
// must already exist.
func NewWithDB(db *sqlx.DB, dialect string) (*Store, error) {
	d, err := LookupDialect(dialect)
	if err != nil {
		return nil, err
	}
	return &Store{db: db, dialect: d}, nil
}

func ping(ctx context.Context, db *sqlx.DB, retries uint64, base time.Duration) error {
	if base <= 0 {
		base = 250 * time.Millisecond
	}
	backoff := retry.WithMaxRetries(retries, retry.NewExponential(base))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := db.PingContext(ctx); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
}

// Close closes the underlying connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping verifies the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Dialect returns the name of the SQL dialect in use.
func (s *Store) Dialect() string {
	return s.dialect.Name
}

// InTx runs fn inside a single transaction. The transaction commits only if
// fn returns nil; any error, or a panic escaping fn, rolls it back. The
// connection is returned to the pool on every path.
func (s *Store) InTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op once committed

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// insert executes an INSERT and returns the generated primary key.
func (s *Store) insert(ctx context.Context, q sqlx.ExtContext, table, idCol string, cols []string, args ...interface{}) (int64, error) {
	query := q.Rebind(s.dialect.insertSQL(table, idCol, cols))

	if s.dialect.ids == idLastInsert {
		result, err := q.ExecContext(ctx, query, args...)
		if err != nil {
			return 0, err
		}
		return result.LastInsertId()
	}

	var id int64
	if err := q.QueryRowxContext(ctx, query, args...).Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

// classify wraps err, tagging unique constraint violations with ErrConflict.
func classify(op string, err error) error {
	if isUniqueViolation(err) {
		return fmt.Errorf("%s: %w: %w", op, ErrConflict, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// ---------------------------------------------------------------------------
// Admins
// ---------------------------------------------------------------------------

// CreateAdmin inserts a new admin. The ID and CreatedAt fields are populated
// after a successful insert. A duplicate email yields ErrConflict.
func (s *Store) CreateAdmin(ctx context.Context, admin *model.Admin) error {
	createdAt := time.Now().UTC()

	id, err := s.insert(ctx, s.db, "admins", "admin_id",
		[]string{"email", "password_hash", "created_at"},
		admin.Email, admin.PasswordHash, createdAt)
	if err != nil {
		return classify("insert admin", err)
	}

	admin.ID = id
	admin.CreatedAt = createdAt
	return nil
}

// FindAdminByEmail returns the admin registered under email, or ErrNotFound.
func (s *Store) FindAdminByEmail(ctx context.Context, email string) (*model.Admin, error) {
	var admin model.Admin
	q := s.db.Rebind("SELECT admin_id, email, password_hash, created_at FROM admins WHERE email = ?")
	if err := s.db.GetContext(ctx, &admin, q, email); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get admin by email: %w", err)
	}
	return &admin, nil
}

// ListAdmins returns all admins ordered by email.
func (s *Store) ListAdmins(ctx context.Context) ([]model.Admin, error) {
	admins := []model.Admin{}
	if err := s.db.SelectContext(ctx, &admins,
		"SELECT admin_id, email, password_hash, created_at FROM admins ORDER BY email"); err != nil {
		return nil, fmt.Errorf("list admins: %w", err)
	}
	return admins, nil
}

// CountAdmins returns how many admins exist. Zero means first run.
func (s *Store) CountAdmins(ctx context.Context) (int, error) {
	var count int
	if err := s.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM admins"); err != nil {
		return 0, fmt.Errorf("count admins: %w", err)
	}
	return count, nil
}

// ---------------------------------------------------------------------------
// Users and API keys
// ---------------------------------------------------------------------------

// CreateUserWithKey writes user and key in one transaction: the user row
// first, then the key row referencing the new user id. Either both rows are
// committed or neither is. On success user.ID, user.UserSince, key.ID,
// key.UserID and key.CreatedAt are populated. A duplicate user email (or key
// digest) yields ErrConflict.
func (s *Store) CreateUserWithKey(ctx context.Context, user *model.User, key *model.APIKey) error {
	now := time.Now().UTC()
	status := key.Status
	if status == "" {
		status = model.KeyStatusActive
	}

	var userID, keyID int64
	err := s.InTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		userID, err = s.insert(ctx, tx, "users", "user_id",
			[]string{"first_name", "last_name", "email", "user_since"},
			user.FirstName, user.LastName, user.Email, now)
		if err != nil {
			return classify("insert user", err)
		}

		keyID, err = s.insert(ctx, tx, "api_keys", "key_id",
			[]string{"user_id", "api_key_hash", "api_key_value", "status", "expiry_date", "created_at"},
			userID, key.KeyHash, key.KeyValue, status, key.ExpiryDate.UTC(), now)
		if err != nil {
			return classify("insert api key", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	user.ID = userID
	user.UserSince = now
	key.ID = keyID
	key.UserID = userID
	key.Status = status
	key.CreatedAt = now
	return nil
}

// ListUserKeyRows joins every user with its key, newest user first.
func (s *Store) ListUserKeyRows(ctx context.Context) ([]model.DashboardRow, error) {
	const q = `SELECT
			u.user_id,
			u.first_name,
			u.email,
			u.user_since,
			k.api_key_value,
			k.status,
			k.expiry_date
		FROM users u
		JOIN api_keys k ON u.user_id = k.user_id
		ORDER BY u.user_id DESC`

	rows := []model.DashboardRow{}
	if err := s.db.SelectContext(ctx, &rows, q); err != nil {
		return nil, fmt.Errorf("list user key rows: %w", err)
	}
	return rows, nil
}

// FindAPIKeyByHash looks up a key by its SHA-256 digest.
func (s *Store) FindAPIKeyByHash(ctx context.Context, hash string) (*model.APIKey, error) {
	var key model.APIKey
	q := s.db.Rebind(`SELECT key_id, user_id, api_key_hash, api_key_value, status, expiry_date, created_at
		FROM api_keys WHERE api_key_hash = ?`)
	if err := s.db.GetContext(ctx, &key, q, hash); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get api key by hash: %w", err)
	}
	return &key, nil
}

// CountUsers returns the number of users, and with them keys, issued so far.
func (s *Store) CountUsers(ctx context.Context) (int, error) {
	var count int
	if err := s.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM users"); err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return count, nil
}

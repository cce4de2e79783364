package store

import (
	"context"
	"fmt"
	"strings"
)

var sqliteMigrations = []string{
	`CREATE TABLE IF NOT EXISTS admins (
		admin_id INTEGER PRIMARY KEY AUTOINCREMENT,
		email TEXT UNIQUE NOT NULL,
		password_hash TEXT NOT NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,

	`CREATE TABLE IF NOT EXISTS users (
		user_id INTEGER PRIMARY KEY AUTOINCREMENT,
		first_name TEXT NOT NULL,
		last_name TEXT,
		email TEXT UNIQUE NOT NULL,
		user_since DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,

	`CREATE TABLE IF NOT EXISTS api_keys (
		key_id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL REFERENCES users(user_id) ON DELETE CASCADE,
		api_key_hash TEXT UNIQUE NOT NULL,
		api_key_value TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'active',
		expiry_date DATETIME NOT NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,

	`CREATE INDEX IF NOT EXISTS idx_api_keys_user_id ON api_keys(user_id)`,
}

var mysqlMigrations = []string{
	`CREATE TABLE IF NOT EXISTS admins (
		admin_id BIGINT AUTO_INCREMENT PRIMARY KEY,
		email VARCHAR(255) NOT NULL UNIQUE,
		password_hash VARCHAR(255) NOT NULL,
		created_at DATETIME(6) NOT NULL DEFAULT CURRENT_TIMESTAMP(6)
	) ENGINE=InnoDB`,

	`CREATE TABLE IF NOT EXISTS users (
		user_id BIGINT AUTO_INCREMENT PRIMARY KEY,
		first_name VARCHAR(255) NOT NULL,
		last_name VARCHAR(255) NULL,
		email VARCHAR(255) NOT NULL UNIQUE,
		user_since DATETIME(6) NOT NULL DEFAULT CURRENT_TIMESTAMP(6)
	) ENGINE=InnoDB`,

	`CREATE TABLE IF NOT EXISTS api_keys (
		key_id BIGINT AUTO_INCREMENT PRIMARY KEY,
		user_id BIGINT NOT NULL,
		api_key_hash CHAR(64) NOT NULL UNIQUE,
		api_key_value VARCHAR(128) NOT NULL DEFAULT '',
		status VARCHAR(32) NOT NULL DEFAULT 'active',
		expiry_date DATETIME(6) NOT NULL,
		created_at DATETIME(6) NOT NULL DEFAULT CURRENT_TIMESTAMP(6),
		KEY idx_api_keys_user_id (user_id),
		CONSTRAINT fk_api_keys_user FOREIGN KEY (user_id) REFERENCES users(user_id) ON DELETE CASCADE
	) ENGINE=InnoDB`,
}

var postgresMigrations = []string{
	`CREATE TABLE IF NOT EXISTS admins (
		admin_id BIGSERIAL PRIMARY KEY,
		email TEXT UNIQUE NOT NULL,
		password_hash TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,

	`CREATE TABLE IF NOT EXISTS users (
		user_id BIGSERIAL PRIMARY KEY,
		first_name TEXT NOT NULL,
		last_name TEXT,
		email TEXT UNIQUE NOT NULL,
		user_since TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,

	`CREATE TABLE IF NOT EXISTS api_keys (
		key_id BIGSERIAL PRIMARY KEY,
		user_id BIGINT NOT NULL REFERENCES users(user_id) ON DELETE CASCADE,
		api_key_hash TEXT UNIQUE NOT NULL,
		api_key_value TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'active',
		expiry_date TIMESTAMPTZ NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,

	`CREATE INDEX IF NOT EXISTS idx_api_keys_user_id ON api_keys(user_id)`,
}

// SQL Server has no CREATE TABLE IF NOT EXISTS; guard on OBJECT_ID instead.
var sqlserverMigrations = []string{
	`IF OBJECT_ID(N'admins', N'U') IS NULL
	CREATE TABLE admins (
		admin_id BIGINT IDENTITY(1,1) PRIMARY KEY,
		email NVARCHAR(255) NOT NULL UNIQUE,
		password_hash NVARCHAR(255) NOT NULL,
		created_at DATETIME2 NOT NULL DEFAULT SYSUTCDATETIME()
	)`,

	`IF OBJECT_ID(N'users', N'U') IS NULL
	CREATE TABLE users (
		user_id BIGINT IDENTITY(1,1) PRIMARY KEY,
		first_name NVARCHAR(255) NOT NULL,
		last_name NVARCHAR(255) NULL,
		email NVARCHAR(255) NOT NULL UNIQUE,
		user_since DATETIME2 NOT NULL DEFAULT SYSUTCDATETIME()
	)`,

	`IF OBJECT_ID(N'api_keys', N'U') IS NULL
	CREATE TABLE api_keys (
		key_id BIGINT IDENTITY(1,1) PRIMARY KEY,
		user_id BIGINT NOT NULL REFERENCES users(user_id) ON DELETE CASCADE,
		api_key_hash CHAR(64) NOT NULL UNIQUE,
		api_key_value NVARCHAR(128) NOT NULL DEFAULT '',
		status NVARCHAR(32) NOT NULL DEFAULT 'active',
		expiry_date DATETIME2 NOT NULL,
		created_at DATETIME2 NOT NULL DEFAULT SYSUTCDATETIME()
	)`,

	`IF NOT EXISTS (SELECT 1 FROM sys.indexes WHERE name = N'idx_api_keys_user_id')
	CREATE INDEX idx_api_keys_user_id ON api_keys(user_id)`,
}

func (s *Store) migrate(ctx context.Context) error {
	for _, m := range s.dialect.migrations {
		if _, err := s.db.ExecContext(ctx, m); err != nil {
			// Re-running against a schema created by an older build can trip
			// over objects that already exist.
			if strings.Contains(strings.ToLower(err.Error()), "already exists") {
				continue
			}
			return fmt.Errorf("migration failed: %w\nSQL: %s", err, m)
		}
	}
	return nil
}

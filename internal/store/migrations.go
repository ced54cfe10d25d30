package store

import (
	"fmt"
	"strings"
)

func (s *Store) migrate() error {
	for _, stmt := range ddl(s.driver) {
		if _, err := s.db.Exec(stmt); err != nil {
			// Re-running ALTER/CREATE on an existing schema is fine.
			if isAlreadyExists(err) {
				continue
			}
			return fmt.Errorf("migration failed: %w\nstatement: %s", err, stmt)
		}
	}
	return nil
}

// ddl returns the schema statements for the given driver. The logical schema
// is identical everywhere; only column types and identity-column syntax vary.
func ddl(driver string) []string {
	switch driver {
	case DriverPostgres:
		return []string{
			`CREATE TABLE IF NOT EXISTS identities (
				id TEXT PRIMARY KEY,
				email TEXT UNIQUE NOT NULL,
				password_hash TEXT NOT NULL,
				display_name TEXT NOT NULL DEFAULT '',
				role TEXT NOT NULL,
				unit_no TEXT NOT NULL DEFAULT '',
				street_no TEXT NOT NULL DEFAULT '',
				failed_logins INTEGER NOT NULL DEFAULT 0,
				locked_until TIMESTAMPTZ,
				created_at TIMESTAMPTZ NOT NULL,
				updated_at TIMESTAMPTZ NOT NULL
			)`,
			`CREATE TABLE IF NOT EXISTS visitor_requests (
				id BIGSERIAL PRIMARY KEY,
				public_code TEXT UNIQUE NOT NULL,
				owner_id TEXT NOT NULL REFERENCES identities(id),
				visitor_name TEXT NOT NULL,
				vehicle_plate TEXT NOT NULL,
				scheduled_start TIMESTAMPTZ NOT NULL,
				valid_until TIMESTAMPTZ NOT NULL,
				created_at TIMESTAMPTZ NOT NULL
			)`,
			`CREATE TABLE IF NOT EXISTS settings (
				key TEXT PRIMARY KEY,
				value TEXT NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_visitor_requests_owner ON visitor_requests(owner_id)`,
			`CREATE INDEX IF NOT EXISTS idx_visitor_requests_created ON visitor_requests(created_at)`,
		}

	case DriverMySQL:
		return []string{
			`CREATE TABLE IF NOT EXISTS identities (
				id VARCHAR(36) PRIMARY KEY,
				email VARCHAR(320) UNIQUE NOT NULL,
				password_hash VARCHAR(255) NOT NULL,
				display_name VARCHAR(120) NOT NULL DEFAULT '',
				role VARCHAR(16) NOT NULL,
				unit_no VARCHAR(20) NOT NULL DEFAULT '',
				street_no VARCHAR(20) NOT NULL DEFAULT '',
				failed_logins INT NOT NULL DEFAULT 0,
				locked_until DATETIME(6),
				created_at DATETIME(6) NOT NULL,
				updated_at DATETIME(6) NOT NULL
			)`,
			`CREATE TABLE IF NOT EXISTS visitor_requests (
				id BIGINT PRIMARY KEY AUTO_INCREMENT,
				public_code VARCHAR(36) UNIQUE NOT NULL,
				owner_id VARCHAR(36) NOT NULL,
				visitor_name VARCHAR(30) NOT NULL,
				vehicle_plate VARCHAR(10) NOT NULL,
				scheduled_start DATETIME(6) NOT NULL,
				valid_until DATETIME(6) NOT NULL,
				created_at DATETIME(6) NOT NULL,
				CONSTRAINT fk_visitor_requests_owner FOREIGN KEY (owner_id) REFERENCES identities(id)
			)`,
			`CREATE TABLE IF NOT EXISTS settings (
				` + "`key`" + ` VARCHAR(128) PRIMARY KEY,
				value TEXT NOT NULL
			)`,
			`CREATE INDEX idx_visitor_requests_owner ON visitor_requests(owner_id)`,
			`CREATE INDEX idx_visitor_requests_created ON visitor_requests(created_at)`,
		}

	case DriverSQLServer:
		return []string{
			`IF OBJECT_ID('identities', 'U') IS NULL
			CREATE TABLE identities (
				id NVARCHAR(36) PRIMARY KEY,
				email NVARCHAR(320) NOT NULL UNIQUE,
				password_hash NVARCHAR(255) NOT NULL,
				display_name NVARCHAR(120) NOT NULL DEFAULT '',
				role NVARCHAR(16) NOT NULL,
				unit_no NVARCHAR(20) NOT NULL DEFAULT '',
				street_no NVARCHAR(20) NOT NULL DEFAULT '',
				failed_logins INT NOT NULL DEFAULT 0,
				locked_until DATETIME2,
				created_at DATETIME2 NOT NULL,
				updated_at DATETIME2 NOT NULL
			)`,
			`IF OBJECT_ID('visitor_requests', 'U') IS NULL
			CREATE TABLE visitor_requests (
				id BIGINT IDENTITY(1,1) PRIMARY KEY,
				public_code NVARCHAR(36) NOT NULL UNIQUE,
				owner_id NVARCHAR(36) NOT NULL REFERENCES identities(id),
				visitor_name NVARCHAR(30) NOT NULL,
				vehicle_plate NVARCHAR(10) NOT NULL,
				scheduled_start DATETIME2 NOT NULL,
				valid_until DATETIME2 NOT NULL,
				created_at DATETIME2 NOT NULL
			)`,
			`IF OBJECT_ID('settings', 'U') IS NULL
			CREATE TABLE settings (
				[key] NVARCHAR(128) PRIMARY KEY,
				value NVARCHAR(MAX) NOT NULL
			)`,
		}

	default: // sqlite
		return []string{
			`CREATE TABLE IF NOT EXISTS identities (
				id TEXT PRIMARY KEY,
				email TEXT UNIQUE NOT NULL,
				password_hash TEXT NOT NULL,
				display_name TEXT NOT NULL DEFAULT '',
				role TEXT NOT NULL,
				unit_no TEXT NOT NULL DEFAULT '',
				street_no TEXT NOT NULL DEFAULT '',
				failed_logins INTEGER NOT NULL DEFAULT 0,
				locked_until DATETIME,
				created_at DATETIME NOT NULL,
				updated_at DATETIME NOT NULL
			)`,
			`CREATE TABLE IF NOT EXISTS visitor_requests (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				public_code TEXT UNIQUE NOT NULL,
				owner_id TEXT NOT NULL REFERENCES identities(id),
				visitor_name TEXT NOT NULL,
				vehicle_plate TEXT NOT NULL,
				scheduled_start DATETIME NOT NULL,
				valid_until DATETIME NOT NULL,
				created_at DATETIME NOT NULL
			)`,
			`CREATE TABLE IF NOT EXISTS settings (
				key TEXT PRIMARY KEY,
				value TEXT NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_visitor_requests_owner ON visitor_requests(owner_id)`,
			`CREATE INDEX IF NOT EXISTS idx_visitor_requests_created ON visitor_requests(created_at)`,
		}
	}
}

// isAlreadyExists matches the "already exists" errors the drivers without
// IF NOT EXISTS support for indexes return on re-migration.
func isAlreadyExists(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "already exists") ||
		strings.Contains(msg, "duplicate key name") ||
		strings.Contains(msg, "there is already an object")
}

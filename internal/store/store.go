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

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/microsoft/go-mssqldb"
	_ "modernc.org/sqlite"

	"github.com/JeffCSZ/vms/internal/model"
)

// Supported database drivers. SQLite is the zero-configuration default;
// the others are for deployments with an existing database server.
const (
	DriverSQLite    = "sqlite"
	DriverPostgres  = "postgres"
	DriverMySQL     = "mysql"
	DriverSQLServer = "sqlserver"
)

// Store is the durable record of identities and visitor authorization
// requests. It owns public-code uniqueness and the newest-first ordering of
// list results.
type Store struct {
	db     *sqlx.DB
	driver string
}

// Open connects to the database and runs migrations. With the SQLite driver
// an empty DSN places the database file under dataDir, and an empty dataDir
// yields an in-memory store (used by tests).
func Open(driver, dsn, dataDir string) (*Store, error) {
	if driver == "" {
		driver = DriverSQLite
	}

	sqlDriver := driver
	switch driver {
	case DriverSQLite:
		if dsn == "" {
			if dataDir == "" {
				dsn = ":memory:?_journal_mode=WAL"
			} else {
				if err := os.MkdirAll(dataDir, 0755); err != nil {
					return nil, fmt.Errorf("create data dir: %w", err)
				}
				dsn = filepath.Join(dataDir, "vms.db") + "?_journal_mode=WAL&_busy_timeout=5000"
			}
		}
	case DriverPostgres:
		sqlDriver = "pgx"
	case DriverMySQL, DriverSQLServer:
		// driver name matches the registered sql driver
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
	if driver != DriverSQLite && dsn == "" {
		return nil, fmt.Errorf("driver %q requires a DSN", driver)
	}

	db, err := sqlx.Connect(sqlDriver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if driver == DriverSQLite {
		db.SetMaxOpenConns(1) // SQLite doesn't support concurrent writes
		if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
			return nil, fmt.Errorf("enable foreign keys: %w", err)
		}
	}

	s := &Store{db: db, driver: driver}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks database connectivity, used by the readiness probe.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// ---------------------------------------------------------------------------
// Identities
// ---------------------------------------------------------------------------

// CreateIdentity persists a new identity. The caller provides the bcrypt
// password hash; the store assigns the ID and timestamps. Role is immutable
// after this call: no update path exists for it.
func (s *Store) CreateIdentity(ctx context.Context, id *model.Identity) error {
	if id.ID == "" {
		id.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	id.CreatedAt = now
	id.UpdatedAt = now

	query := s.db.Rebind(`INSERT INTO identities
		(id, email, password_hash, display_name, role, unit_no, street_no, failed_logins, locked_until, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err := s.db.ExecContext(ctx, query,
		id.ID, id.Email, id.PasswordHash, id.DisplayName, string(id.Role),
		id.UnitNo, id.StreetNo, id.FailedLogins, id.LockedUntil, id.CreatedAt, id.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateEmail
		}
		return fmt.Errorf("create identity: %w", err)
	}
	return nil
}

// GetIdentityByEmail looks up an identity by its unique email.
func (s *Store) GetIdentityByEmail(ctx context.Context, email string) (*model.Identity, error) {
	var id model.Identity
	query := s.db.Rebind(`SELECT * FROM identities WHERE email = ?`)
	if err := s.db.GetContext(ctx, &id, query, email); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get identity by email: %w", err)
	}
	return &id, nil
}

// GetIdentityByID looks up an identity by its ID.
func (s *Store) GetIdentityByID(ctx context.Context, identityID string) (*model.Identity, error) {
	var id model.Identity
	query := s.db.Rebind(`SELECT * FROM identities WHERE id = ?`)
	if err := s.db.GetContext(ctx, &id, query, identityID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get identity: %w", err)
	}
	return &id, nil
}

// UpdateLoginState records the failed-login counter and lockout deadline
// after an authentication attempt.
func (s *Store) UpdateLoginState(ctx context.Context, identityID string, failedLogins int, lockedUntil *time.Time) error {
	query := s.db.Rebind(`UPDATE identities
		SET failed_logins = ?, locked_until = ?, updated_at = ?
		WHERE id = ?`)
	_, err := s.db.ExecContext(ctx, query, failedLogins, lockedUntil, time.Now().UTC(), identityID)
	if err != nil {
		return fmt.Errorf("update login state: %w", err)
	}
	return nil
}

// ListIdentities returns all identities ordered by registration time.
func (s *Store) ListIdentities(ctx context.Context) ([]model.Identity, error) {
	var ids []model.Identity
	if err := s.db.SelectContext(ctx, &ids, `SELECT * FROM identities ORDER BY created_at`); err != nil {
		return nil, fmt.Errorf("list identities: %w", err)
	}
	return ids, nil
}

// HasAnyIdentity reports whether at least one identity exists, used for the
// first-run warning at startup.
func (s *Store) HasAnyIdentity(ctx context.Context) (bool, error) {
	var count int
	if err := s.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM identities`); err != nil {
		return false, fmt.Errorf("count identities: %w", err)
	}
	return count > 0, nil
}

// CountIdentities returns the number of registered identities.
func (s *Store) CountIdentities(ctx context.Context) (int, error) {
	var count int
	if err := s.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM identities`); err != nil {
		return 0, fmt.Errorf("count identities: %w", err)
	}
	return count, nil
}

// ---------------------------------------------------------------------------
// Visitor requests
// ---------------------------------------------------------------------------

const requestColumns = `vr.id, vr.public_code, vr.owner_id, vr.visitor_name, vr.vehicle_plate,
	vr.scheduled_start, vr.valid_until, vr.created_at,
	i.email AS owner_email, i.unit_no AS owner_unit_no, i.street_no AS owner_street_no`

// CreateRequest persists a new visitor request. The store assigns the
// sequential ID, the public code (random 128-bit UUID, the only identifier
// that ever goes into the scannable artifact), and the creation timestamp.
func (s *Store) CreateRequest(ctx context.Context, req *model.VisitorRequest) error {
	req.PublicCode = uuid.NewString()
	req.CreatedAt = time.Now().UTC()

	const insert = `INSERT INTO visitor_requests
		(public_code, owner_id, visitor_name, vehicle_plate, scheduled_start, valid_until, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`
	args := []any{req.PublicCode, req.OwnerID, req.VisitorName, req.VehiclePlate,
		req.ScheduledStart.UTC(), req.ValidUntil.UTC(), req.CreatedAt}

	switch s.driver {
	case DriverPostgres:
		query := s.db.Rebind(insert + ` RETURNING id`)
		if err := s.db.QueryRowxContext(ctx, query, args...).Scan(&req.ID); err != nil {
			return fmt.Errorf("create request: %w", err)
		}
	case DriverSQLServer:
		query := s.db.Rebind(`INSERT INTO visitor_requests
			(public_code, owner_id, visitor_name, vehicle_plate, scheduled_start, valid_until, created_at)
			OUTPUT INSERTED.id
			VALUES (?, ?, ?, ?, ?, ?, ?)`)
		if err := s.db.QueryRowxContext(ctx, query, args...).Scan(&req.ID); err != nil {
			return fmt.Errorf("create request: %w", err)
		}
	default: // sqlite, mysql
		res, err := s.db.ExecContext(ctx, s.db.Rebind(insert), args...)
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("create request: last insert id: %w", err)
		}
		req.ID = id
	}
	return nil
}

// GetRequestByID fetches a request with its owner's contact columns joined.
func (s *Store) GetRequestByID(ctx context.Context, id int64) (*model.VisitorRequest, error) {
	var req model.VisitorRequest
	query := s.db.Rebind(`SELECT ` + requestColumns + `
		FROM visitor_requests vr
		JOIN identities i ON i.id = vr.owner_id
		WHERE vr.id = ?`)
	if err := s.db.GetContext(ctx, &req, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get request: %w", err)
	}
	return &req, nil
}

// GetRequestByCode fetches a request by its public code. This is the scan
// verification path: the code itself is the presented credential, so there
// is deliberately no ownership filter here.
func (s *Store) GetRequestByCode(ctx context.Context, publicCode string) (*model.VisitorRequest, error) {
	var req model.VisitorRequest
	query := s.db.Rebind(`SELECT ` + requestColumns + `
		FROM visitor_requests vr
		JOIN identities i ON i.id = vr.owner_id
		WHERE vr.public_code = ?`)
	if err := s.db.GetContext(ctx, &req, query, publicCode); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get request by code: %w", err)
	}
	return &req, nil
}

// ListRequestsByOwner returns one owner's requests, newest first. The
// ordering is part of the API contract: clients render "recent" lists
// without re-sorting.
func (s *Store) ListRequestsByOwner(ctx context.Context, ownerID string) ([]model.VisitorRequest, error) {
	var reqs []model.VisitorRequest
	query := s.db.Rebind(`SELECT ` + requestColumns + `
		FROM visitor_requests vr
		JOIN identities i ON i.id = vr.owner_id
		WHERE vr.owner_id = ?
		ORDER BY vr.created_at DESC, vr.id DESC`)
	if err := s.db.SelectContext(ctx, &reqs, query, ownerID); err != nil {
		return nil, fmt.Errorf("list requests by owner: %w", err)
	}
	return reqs, nil
}

// ListAllRequests returns every request, newest first.
func (s *Store) ListAllRequests(ctx context.Context) ([]model.VisitorRequest, error) {
	var reqs []model.VisitorRequest
	query := `SELECT ` + requestColumns + `
		FROM visitor_requests vr
		JOIN identities i ON i.id = vr.owner_id
		ORDER BY vr.created_at DESC, vr.id DESC`
	if err := s.db.SelectContext(ctx, &reqs, query); err != nil {
		return nil, fmt.Errorf("list all requests: %w", err)
	}
	return reqs, nil
}

// UpdateRequest replaces exactly the four editable fields of a request. The
// owner and public code are not in the SET list, so they can never change.
// Returns ErrNotFound when the row vanished under a concurrent delete.
func (s *Store) UpdateRequest(ctx context.Context, id int64, visitorName, vehiclePlate string, scheduledStart, validUntil time.Time) (*model.VisitorRequest, error) {
	query := s.db.Rebind(`UPDATE visitor_requests
		SET visitor_name = ?, vehicle_plate = ?, scheduled_start = ?, valid_until = ?
		WHERE id = ?`)
	res, err := s.db.ExecContext(ctx, query, visitorName, vehiclePlate, scheduledStart.UTC(), validUntil.UTC(), id)
	if err != nil {
		return nil, fmt.Errorf("update request: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("update request: rows affected: %w", err)
	}
	if affected == 0 {
		return nil, ErrNotFound
	}
	return s.GetRequestByID(ctx, id)
}

// DeleteRequest hard-deletes a request. No tombstone is kept.
func (s *Store) DeleteRequest(ctx context.Context, id int64) error {
	query := s.db.Rebind(`DELETE FROM visitor_requests WHERE id = ?`)
	res, err := s.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete request: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete request: rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// CountRequests returns the number of stored visitor requests.
func (s *Store) CountRequests(ctx context.Context) (int, error) {
	var count int
	if err := s.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM visitor_requests`); err != nil {
		return 0, fmt.Errorf("count requests: %w", err)
	}
	return count, nil
}

// ---------------------------------------------------------------------------
// Settings
// ---------------------------------------------------------------------------

// GetSetting returns the value for a settings key, or ErrNotFound.
func (s *Store) GetSetting(ctx context.Context, key string) (string, error) {
	var value string
	query := s.db.Rebind(`SELECT value FROM settings WHERE ` + s.settingsKeyColumn() + ` = ?`)
	if err := s.db.GetContext(ctx, &value, query, key); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("get setting: %w", err)
	}
	return value, nil
}

// SetSetting stores a settings key-value pair, overwriting any prior value.
func (s *Store) SetSetting(ctx context.Context, key, value string) error {
	update := s.db.Rebind(`UPDATE settings SET value = ? WHERE ` + s.settingsKeyColumn() + ` = ?`)
	res, err := s.db.ExecContext(ctx, update, value, key)
	if err != nil {
		return fmt.Errorf("set setting: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected > 0 {
		return nil
	}
	insert := s.db.Rebind(`INSERT INTO settings (` + s.settingsKeyColumn() + `, value) VALUES (?, ?)`)
	if _, err := s.db.ExecContext(ctx, insert, key, value); err != nil {
		return fmt.Errorf("set setting: %w", err)
	}
	return nil
}

// settingsKeyColumn quotes the "key" column where it collides with a
// reserved word.
func (s *Store) settingsKeyColumn() string {
	switch s.driver {
	case DriverMySQL:
		return "`key`"
	case DriverSQLServer:
		return "[key]"
	default:
		return "key"
	}
}

// isUniqueViolation matches unique-constraint errors across the supported
// drivers.
func isUniqueViolation(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "duplicate entry") ||
		strings.Contains(msg, "violation of unique")
}

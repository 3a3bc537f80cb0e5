package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rentwire/rentwire-server/internal/store"
)

// Schema is the full database schema, applied on open.
const Schema = `
CREATE TABLE IF NOT EXISTS users (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	name          TEXT NOT NULL,
	email         TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	role          TEXT NOT NULL DEFAULT 'landlord',
	room_id       TEXT NOT NULL DEFAULT '',
	created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS tenants (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	name       TEXT NOT NULL,
	email      TEXT NOT NULL,
	phone      TEXT NOT NULL,
	property   TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS payments (
	id        INTEGER PRIMARY KEY AUTOINCREMENT,
	tenant_id INTEGER NOT NULL REFERENCES tenants(id),
	property  TEXT NOT NULL,
	amount    REAL NOT NULL,
	status    TEXT NOT NULL DEFAULT 'paid',
	date      DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS leases (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	tenant_id  INTEGER NOT NULL REFERENCES tenants(id),
	property   TEXT NOT NULL,
	start_date DATETIME NOT NULL,
	end_date   DATETIME NOT NULL,
	rent       REAL NOT NULL,
	status     TEXT NOT NULL DEFAULT 'Active',
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS maintenance (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	tenant_id  INTEGER NOT NULL REFERENCES tenants(id),
	property   TEXT NOT NULL,
	issue      TEXT NOT NULL,
	priority   TEXT NOT NULL DEFAULT 'medium',
	status     TEXT NOT NULL DEFAULT 'Pending',
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS messages (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	room_id    TEXT NOT NULL,
	sender_id  INTEGER NOT NULL,
	sender     TEXT NOT NULL,
	body       TEXT NOT NULL,
	read       BOOLEAN NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_messages_room ON messages(room_id, id);
CREATE INDEX IF NOT EXISTS idx_payments_tenant ON payments(tenant_id, date);
`

// SQLiteStore implements store.Store for SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// New creates a new SQLite store and applies the schema.
// dbPath is the path to the SQLite database file.
func New(dbPath string) (*SQLiteStore, error) {
	return NewWithSetup(dbPath, func(db *sql.DB) error {
		_, err := db.Exec(Schema)
		return err
	})
}

// NewWithSetup creates a new SQLite store and runs a setup function.
// Useful for tests to apply a custom schema or seed data.
func NewWithSetup(dbPath string, setup func(*sql.DB) error) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite works best with a single connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if setup != nil {
		if err := setup(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("setup: %w", err)
		}
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ==== UserStore implementation ====

// CreateUser creates a new account with a pre-hashed password.
func (s *SQLiteStore) CreateUser(ctx context.Context, name, email, passwordHash string, role store.Role, roomID string) (*store.User, error) {
	query := `
		INSERT INTO users (name, email, password_hash, role, room_id)
		VALUES (?, ?, ?, ?, ?)
	`
	result, err := s.db.ExecContext(ctx, query, name, email, passwordHash, role, roomID)
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("get last insert id: %w", err)
	}

	return s.GetUserByID(ctx, id)
}

// GetUserByID retrieves an account by id.
func (s *SQLiteStore) GetUserByID(ctx context.Context, id int64) (*store.User, error) {
	return s.getUser(ctx, `WHERE id = ?`, id)
}

// GetUserByEmail retrieves an account by email.
func (s *SQLiteStore) GetUserByEmail(ctx context.Context, email string) (*store.User, error) {
	return s.getUser(ctx, `WHERE email = ?`, email)
}

func (s *SQLiteStore) getUser(ctx context.Context, where string, arg any) (*store.User, error) {
	query := `
		SELECT id, name, email, password_hash, role, room_id, created_at
		FROM users ` + where
	var user store.User
	err := s.db.QueryRowContext(ctx, query, arg).Scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&user.PasswordHash,
		&user.Role,
		&user.RoomID,
		&user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user: %w", store.ErrNotFound)
		}
		return nil, fmt.Errorf("query user: %w", err)
	}

	return &user, nil
}

// ==== TenantStore implementation ====

// CreateTenant creates a new tenant record.
func (s *SQLiteStore) CreateTenant(ctx context.Context, t *store.Tenant) (*store.Tenant, error) {
	query := `
		INSERT INTO tenants (name, email, phone, property)
		VALUES (?, ?, ?, ?)
	`
	result, err := s.db.ExecContext(ctx, query, t.Name, t.Email, t.Phone, t.Property)
	if err != nil {
		return nil, fmt.Errorf("insert tenant: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("get last insert id: %w", err)
	}

	return s.GetTenantByID(ctx, id)
}

// GetTenantByID retrieves a tenant by id.
func (s *SQLiteStore) GetTenantByID(ctx context.Context, id int64) (*store.Tenant, error) {
	query := `
		SELECT id, name, email, phone, property, created_at
		FROM tenants
		WHERE id = ?
	`
	var t store.Tenant
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&t.ID, &t.Name, &t.Email, &t.Phone, &t.Property, &t.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("tenant: %w", store.ErrNotFound)
		}
		return nil, fmt.Errorf("query tenant: %w", err)
	}

	return &t, nil
}

// ListTenants lists all tenant records.
func (s *SQLiteStore) ListTenants(ctx context.Context) ([]*store.Tenant, error) {
	query := `
		SELECT id, name, email, phone, property, created_at
		FROM tenants
		ORDER BY name
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query tenants: %w", err)
	}
	defer rows.Close()

	tenants := make([]*store.Tenant, 0)
	for rows.Next() {
		var t store.Tenant
		if err := rows.Scan(&t.ID, &t.Name, &t.Email, &t.Phone, &t.Property, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan tenant: %w", err)
		}
		tenants = append(tenants, &t)
	}
	return tenants, rows.Err()
}

// UpdateTenant updates a tenant record.
func (s *SQLiteStore) UpdateTenant(ctx context.Context, t *store.Tenant) (*store.Tenant, error) {
	query := `
		UPDATE tenants
		SET name = ?, email = ?, phone = ?, property = ?
		WHERE id = ?
	`
	result, err := s.db.ExecContext(ctx, query, t.Name, t.Email, t.Phone, t.Property, t.ID)
	if err != nil {
		return nil, fmt.Errorf("update tenant: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return nil, fmt.Errorf("tenant: %w", store.ErrNotFound)
	}

	return s.GetTenantByID(ctx, t.ID)
}

// DeleteTenant removes a tenant record.
func (s *SQLiteStore) DeleteTenant(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM tenants WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete tenant: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("tenant: %w", store.ErrNotFound)
	}
	return nil
}

// ==== PaymentStore implementation ====

// CreatePayment records a payment.
func (s *SQLiteStore) CreatePayment(ctx context.Context, p *store.Payment) (*store.Payment, error) {
	status := p.Status
	if status == "" {
		status = store.PaymentStatusPaid
	}
	query := `
		INSERT INTO payments (tenant_id, property, amount, status, date)
		VALUES (?, ?, ?, ?, COALESCE(?, CURRENT_TIMESTAMP))
	`
	var date any
	if !p.Date.IsZero() {
		date = p.Date
	}
	result, err := s.db.ExecContext(ctx, query, p.TenantID, p.Property, p.Amount, status, date)
	if err != nil {
		return nil, fmt.Errorf("insert payment: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("get last insert id: %w", err)
	}

	return s.getPayment(ctx, id)
}

func (s *SQLiteStore) getPayment(ctx context.Context, id int64) (*store.Payment, error) {
	query := `
		SELECT id, tenant_id, property, amount, status, date
		FROM payments
		WHERE id = ?
	`
	var p store.Payment
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&p.ID, &p.TenantID, &p.Property, &p.Amount, &p.Status, &p.Date,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("payment: %w", store.ErrNotFound)
		}
		return nil, fmt.Errorf("query payment: %w", err)
	}
	return &p, nil
}

// ListPayments lists all payments, most recent first.
func (s *SQLiteStore) ListPayments(ctx context.Context) ([]*store.Payment, error) {
	query := `
		SELECT id, tenant_id, property, amount, status, date
		FROM payments
		ORDER BY date DESC, id DESC
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query payments: %w", err)
	}
	defer rows.Close()

	payments := make([]*store.Payment, 0)
	for rows.Next() {
		var p store.Payment
		if err := rows.Scan(&p.ID, &p.TenantID, &p.Property, &p.Amount, &p.Status, &p.Date); err != nil {
			return nil, fmt.Errorf("scan payment: %w", err)
		}
		payments = append(payments, &p)
	}
	return payments, rows.Err()
}

// UpdatePaymentStatus updates the status of a payment.
func (s *SQLiteStore) UpdatePaymentStatus(ctx context.Context, id int64, status store.PaymentStatus) (*store.Payment, error) {
	result, err := s.db.ExecContext(ctx, `UPDATE payments SET status = ? WHERE id = ?`, status, id)
	if err != nil {
		return nil, fmt.Errorf("update payment: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return nil, fmt.Errorf("payment: %w", store.ErrNotFound)
	}
	return s.getPayment(ctx, id)
}

// ==== LeaseStore implementation ====

// CreateLease creates a lease agreement.
func (s *SQLiteStore) CreateLease(ctx context.Context, l *store.Lease) (*store.Lease, error) {
	status := l.Status
	if status == "" {
		status = store.LeaseStatusActive
	}
	query := `
		INSERT INTO leases (tenant_id, property, start_date, end_date, rent, status)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	result, err := s.db.ExecContext(ctx, query, l.TenantID, l.Property, l.StartDate, l.EndDate, l.Rent, status)
	if err != nil {
		return nil, fmt.Errorf("insert lease: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("get last insert id: %w", err)
	}

	return s.GetLeaseByID(ctx, id)
}

// GetLeaseByID retrieves a lease by id.
func (s *SQLiteStore) GetLeaseByID(ctx context.Context, id int64) (*store.Lease, error) {
	query := `
		SELECT id, tenant_id, property, start_date, end_date, rent, status, created_at
		FROM leases
		WHERE id = ?
	`
	var l store.Lease
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&l.ID, &l.TenantID, &l.Property, &l.StartDate, &l.EndDate, &l.Rent, &l.Status, &l.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("lease: %w", store.ErrNotFound)
		}
		return nil, fmt.Errorf("query lease: %w", err)
	}
	return &l, nil
}

// ListLeases lists all leases, most recent start date first.
func (s *SQLiteStore) ListLeases(ctx context.Context) ([]*store.Lease, error) {
	query := `
		SELECT id, tenant_id, property, start_date, end_date, rent, status, created_at
		FROM leases
		ORDER BY start_date DESC, id DESC
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query leases: %w", err)
	}
	defer rows.Close()

	leases := make([]*store.Lease, 0)
	for rows.Next() {
		var l store.Lease
		if err := rows.Scan(&l.ID, &l.TenantID, &l.Property, &l.StartDate, &l.EndDate, &l.Rent, &l.Status, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan lease: %w", err)
		}
		leases = append(leases, &l)
	}
	return leases, rows.Err()
}

// UpdateLease updates a lease agreement.
func (s *SQLiteStore) UpdateLease(ctx context.Context, l *store.Lease) (*store.Lease, error) {
	query := `
		UPDATE leases
		SET property = ?, start_date = ?, end_date = ?, rent = ?, status = ?
		WHERE id = ?
	`
	result, err := s.db.ExecContext(ctx, query, l.Property, l.StartDate, l.EndDate, l.Rent, l.Status, l.ID)
	if err != nil {
		return nil, fmt.Errorf("update lease: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return nil, fmt.Errorf("lease: %w", store.ErrNotFound)
	}
	return s.GetLeaseByID(ctx, l.ID)
}

// ==== MaintenanceStore implementation ====

// CreateTicket creates a maintenance ticket.
func (s *SQLiteStore) CreateTicket(ctx context.Context, m *store.MaintenanceTicket) (*store.MaintenanceTicket, error) {
	priority := m.Priority
	if priority == "" {
		priority = store.TicketPriorityMedium
	}
	status := m.Status
	if status == "" {
		status = store.TicketStatusPending
	}
	query := `
		INSERT INTO maintenance (tenant_id, property, issue, priority, status)
		VALUES (?, ?, ?, ?, ?)
	`
	result, err := s.db.ExecContext(ctx, query, m.TenantID, m.Property, m.Issue, priority, status)
	if err != nil {
		return nil, fmt.Errorf("insert ticket: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("get last insert id: %w", err)
	}

	return s.getTicket(ctx, id)
}

func (s *SQLiteStore) getTicket(ctx context.Context, id int64) (*store.MaintenanceTicket, error) {
	query := `
		SELECT id, tenant_id, property, issue, priority, status, created_at
		FROM maintenance
		WHERE id = ?
	`
	var m store.MaintenanceTicket
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&m.ID, &m.TenantID, &m.Property, &m.Issue, &m.Priority, &m.Status, &m.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("ticket: %w", store.ErrNotFound)
		}
		return nil, fmt.Errorf("query ticket: %w", err)
	}
	return &m, nil
}

// ListTickets lists all maintenance tickets, most recent first.
func (s *SQLiteStore) ListTickets(ctx context.Context) ([]*store.MaintenanceTicket, error) {
	query := `
		SELECT id, tenant_id, property, issue, priority, status, created_at
		FROM maintenance
		ORDER BY created_at DESC, id DESC
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query tickets: %w", err)
	}
	defer rows.Close()

	tickets := make([]*store.MaintenanceTicket, 0)
	for rows.Next() {
		var m store.MaintenanceTicket
		if err := rows.Scan(&m.ID, &m.TenantID, &m.Property, &m.Issue, &m.Priority, &m.Status, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan ticket: %w", err)
		}
		tickets = append(tickets, &m)
	}
	return tickets, rows.Err()
}

// UpdateTicketStatus updates the status of a maintenance ticket.
func (s *SQLiteStore) UpdateTicketStatus(ctx context.Context, id int64, status store.TicketStatus) (*store.MaintenanceTicket, error) {
	result, err := s.db.ExecContext(ctx, `UPDATE maintenance SET status = ? WHERE id = ?`, status, id)
	if err != nil {
		return nil, fmt.Errorf("update ticket: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return nil, fmt.Errorf("ticket: %w", store.ErrNotFound)
	}
	return s.getTicket(ctx, id)
}

// ==== MessageStore implementation ====

// AppendMessage persists a message and returns it with its assigned id.
func (s *SQLiteStore) AppendMessage(ctx context.Context, msg *store.Message) (*store.Message, error) {
	query := `
		INSERT INTO messages (room_id, sender_id, sender, body, read, created_at)
		VALUES (?, ?, ?, ?, 0, COALESCE(?, CURRENT_TIMESTAMP))
	`
	var created any
	if !msg.CreatedAt.IsZero() {
		created = msg.CreatedAt.UTC()
	}
	result, err := s.db.ExecContext(ctx, query, msg.RoomID, msg.SenderID, msg.Sender, msg.Body, created)
	if err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("get last insert id: %w", err)
	}

	return s.GetMessageByID(ctx, id)
}

// GetMessageByID retrieves a message by id.
func (s *SQLiteStore) GetMessageByID(ctx context.Context, id int64) (*store.Message, error) {
	query := `
		SELECT id, room_id, sender_id, sender, body, read, created_at
		FROM messages
		WHERE id = ?
	`
	var m store.Message
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&m.ID, &m.RoomID, &m.SenderID, &m.Sender, &m.Body, &m.Read, &m.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("message: %w", store.ErrNotFound)
		}
		return nil, fmt.Errorf("query message: %w", err)
	}
	return &m, nil
}

// ListRoomMessages returns messages in a room after sinceID, oldest first.
func (s *SQLiteStore) ListRoomMessages(ctx context.Context, roomID string, sinceID int64) ([]*store.Message, error) {
	query := `
		SELECT id, room_id, sender_id, sender, body, read, created_at
		FROM messages
		WHERE room_id = ? AND id > ?
		ORDER BY created_at ASC, id ASC
	`
	return s.listMessages(ctx, query, roomID, sinceID)
}

// ListMessages returns messages across all rooms after sinceID, oldest first.
func (s *SQLiteStore) ListMessages(ctx context.Context, sinceID int64) ([]*store.Message, error) {
	query := `
		SELECT id, room_id, sender_id, sender, body, read, created_at
		FROM messages
		WHERE id > ?
		ORDER BY created_at ASC, id ASC
	`
	return s.listMessages(ctx, query, sinceID)
}

func (s *SQLiteStore) listMessages(ctx context.Context, query string, args ...any) ([]*store.Message, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	messages := make([]*store.Message, 0)
	for rows.Next() {
		var m store.Message
		if err := rows.Scan(&m.ID, &m.RoomID, &m.SenderID, &m.Sender, &m.Body, &m.Read, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, &m)
	}
	return messages, rows.Err()
}

// MarkMessageRead flips the read flag on a message.
func (s *SQLiteStore) MarkMessageRead(ctx context.Context, id int64) (*store.Message, error) {
	result, err := s.db.ExecContext(ctx, `UPDATE messages SET read = 1 WHERE id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("update message: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return nil, fmt.Errorf("message: %w", store.ErrNotFound)
	}
	return s.GetMessageByID(ctx, id)
}

// ==== FinancialSource implementation ====

// ListActiveTenants returns tenants holding a lease in the given status.
func (s *SQLiteStore) ListActiveTenants(ctx context.Context, leaseStatus store.LeaseStatus) ([]*store.Tenant, error) {
	query := `
		SELECT DISTINCT t.id, t.name, t.email, t.phone, t.property, t.created_at
		FROM tenants t
		JOIN leases l ON l.tenant_id = t.id
		WHERE l.status = ?
		ORDER BY t.id
	`
	rows, err := s.db.QueryContext(ctx, query, leaseStatus)
	if err != nil {
		return nil, fmt.Errorf("query active tenants: %w", err)
	}
	defer rows.Close()

	tenants := make([]*store.Tenant, 0)
	for rows.Next() {
		var t store.Tenant
		if err := rows.Scan(&t.ID, &t.Name, &t.Email, &t.Phone, &t.Property, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan tenant: %w", err)
		}
		tenants = append(tenants, &t)
	}
	return tenants, rows.Err()
}

// LastPaymentFor returns the most recent payment for a tenant, or nil if none.
func (s *SQLiteStore) LastPaymentFor(ctx context.Context, tenantID int64) (*store.Payment, error) {
	query := `
		SELECT id, tenant_id, property, amount, status, date
		FROM payments
		WHERE tenant_id = ?
		ORDER BY date DESC, id DESC
		LIMIT 1
	`
	var p store.Payment
	err := s.db.QueryRowContext(ctx, query, tenantID).Scan(
		&p.ID, &p.TenantID, &p.Property, &p.Amount, &p.Status, &p.Date,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("query last payment: %w", err)
	}
	return &p, nil
}

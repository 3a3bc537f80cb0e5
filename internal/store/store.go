package store

import (
	"context"
	"errors"
	"strconv"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Role distinguishes landlord and tenant accounts.
type Role string

const (
	RoleLandlord Role = "landlord"
	RoleTenant   Role = "tenant"
)

// User represents an account that can authenticate.
type User struct {
	ID           int64
	Name         string
	Email        string
	PasswordHash string
	Role         Role
	RoomID       string // tenant room affiliation; empty for landlords
	CreatedAt    time.Time
}

// Tenant represents a tenant record managed by the landlord.
type Tenant struct {
	ID        int64
	Name      string
	Email     string
	Phone     string
	Property  string
	CreatedAt time.Time
}

// RoomID returns the chat room identifier scoped to this tenant.
func (t *Tenant) RoomID() string {
	return RoomIDForTenant(t.ID)
}

// RoomIDForTenant derives the room identifier for a tenant id.
func RoomIDForTenant(tenantID int64) string {
	return "tenant-" + strconv.FormatInt(tenantID, 10)
}

// PaymentStatus defines payment states.
type PaymentStatus string

const (
	PaymentStatusPaid    PaymentStatus = "paid"
	PaymentStatusPending PaymentStatus = "pending"
)

// Payment represents a recorded rent payment.
type Payment struct {
	ID       int64
	TenantID int64
	Property string
	Amount   float64
	Status   PaymentStatus
	Date     time.Time
}

// LeaseStatus defines lease states.
type LeaseStatus string

const (
	LeaseStatusActive     LeaseStatus = "Active"
	LeaseStatusExpired    LeaseStatus = "Expired"
	LeaseStatusTerminated LeaseStatus = "Terminated"
)

// Lease represents a lease agreement.
type Lease struct {
	ID        int64
	TenantID  int64
	Property  string
	StartDate time.Time
	EndDate   time.Time
	Rent      float64
	Status    LeaseStatus
	CreatedAt time.Time
}

// TicketPriority defines maintenance ticket priorities.
type TicketPriority string

const (
	TicketPriorityLow    TicketPriority = "low"
	TicketPriorityMedium TicketPriority = "medium"
	TicketPriorityHigh   TicketPriority = "high"
)

// TicketStatus defines maintenance ticket states.
type TicketStatus string

const (
	TicketStatusPending    TicketStatus = "Pending"
	TicketStatusInProgress TicketStatus = "In Progress"
	TicketStatusCompleted  TicketStatus = "Completed"
)

// MaintenanceTicket represents a maintenance request.
type MaintenanceTicket struct {
	ID        int64
	TenantID  int64
	Property  string
	Issue     string
	Priority  TicketPriority
	Status    TicketStatus
	CreatedAt time.Time
}

// Message represents a persisted chat or reminder message.
type Message struct {
	ID        int64
	RoomID    string
	SenderID  int64
	Sender    string // sender email at time of send
	Body      string
	Read      bool
	CreatedAt time.Time
}

// UserStore handles account persistence.
type UserStore interface {
	// CreateUser creates a new account with a pre-hashed password.
	CreateUser(ctx context.Context, name, email, passwordHash string, role Role, roomID string) (*User, error)

	// GetUserByID retrieves an account by id.
	GetUserByID(ctx context.Context, id int64) (*User, error)

	// GetUserByEmail retrieves an account by email.
	GetUserByEmail(ctx context.Context, email string) (*User, error)
}

// TenantStore handles tenant record persistence.
type TenantStore interface {
	CreateTenant(ctx context.Context, t *Tenant) (*Tenant, error)
	GetTenantByID(ctx context.Context, id int64) (*Tenant, error)
	ListTenants(ctx context.Context) ([]*Tenant, error)
	UpdateTenant(ctx context.Context, t *Tenant) (*Tenant, error)
	DeleteTenant(ctx context.Context, id int64) error
}

// PaymentStore handles payment persistence.
type PaymentStore interface {
	CreatePayment(ctx context.Context, p *Payment) (*Payment, error)
	ListPayments(ctx context.Context) ([]*Payment, error)
	UpdatePaymentStatus(ctx context.Context, id int64, status PaymentStatus) (*Payment, error)
}

// LeaseStore handles lease persistence.
type LeaseStore interface {
	CreateLease(ctx context.Context, l *Lease) (*Lease, error)
	GetLeaseByID(ctx context.Context, id int64) (*Lease, error)
	ListLeases(ctx context.Context) ([]*Lease, error)
	UpdateLease(ctx context.Context, l *Lease) (*Lease, error)
}

// MaintenanceStore handles maintenance ticket persistence.
type MaintenanceStore interface {
	CreateTicket(ctx context.Context, m *MaintenanceTicket) (*MaintenanceTicket, error)
	ListTickets(ctx context.Context) ([]*MaintenanceTicket, error)
	UpdateTicketStatus(ctx context.Context, id int64, status TicketStatus) (*MaintenanceTicket, error)
}

// MessageStore handles durable message persistence.
type MessageStore interface {
	// AppendMessage persists a message and returns it with its assigned id.
	// The message is not considered delivered until this succeeds.
	AppendMessage(ctx context.Context, msg *Message) (*Message, error)

	// GetMessageByID retrieves a message by id. Returns ErrNotFound for an
	// unknown id.
	GetMessageByID(ctx context.Context, id int64) (*Message, error)

	// ListRoomMessages returns messages in a room with id greater than
	// sinceID, ordered by creation time ascending.
	ListRoomMessages(ctx context.Context, roomID string, sinceID int64) ([]*Message, error)

	// ListMessages returns messages across all rooms with id greater than
	// sinceID, ordered by creation time ascending.
	ListMessages(ctx context.Context, sinceID int64) ([]*Message, error)

	// MarkMessageRead flips the read flag and returns the updated message.
	// Returns ErrNotFound for an unknown id.
	MarkMessageRead(ctx context.Context, id int64) (*Message, error)
}

// FinancialSource exposes the financial state the reminder sweep reads.
type FinancialSource interface {
	// ListActiveTenants returns tenants holding a lease in the given status.
	ListActiveTenants(ctx context.Context, leaseStatus LeaseStatus) ([]*Tenant, error)

	// LastPaymentFor returns the most recent payment for a tenant, or nil
	// if the tenant has never paid.
	LastPaymentFor(ctx context.Context, tenantID int64) (*Payment, error)
}

// Store aggregates all storage interfaces.
type Store interface {
	UserStore
	TenantStore
	PaymentStore
	LeaseStore
	MaintenanceStore
	MessageStore
	FinancialSource

	// Close closes the underlying database connection.
	Close() error
}

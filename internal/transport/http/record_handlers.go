package http

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/rentwire/rentwire-server/internal/store"
)

// RecordHandlers provides the CRUD surface for tenants, payments, leases,
// and maintenance tickets.
type RecordHandlers struct {
	store store.Store
	log   *zerolog.Logger
}

// NewRecordHandlers creates a new record handlers instance.
func NewRecordHandlers(st store.Store, logger *zerolog.Logger) *RecordHandlers {
	return &RecordHandlers{store: st, log: logger}
}

func (h *RecordHandlers) writeStoreError(c *gin.Context, err error, what string) {
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: what + " not found"})
		return
	}
	h.log.Error().Err(err).Msg("store operation failed")
	c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
}

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid id"})
		return 0, false
	}
	return id, true
}

// ==== Tenants ====

// TenantRequest represents a tenant create/update body.
type TenantRequest struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Phone    string `json:"phone" binding:"required"`
	Property string `json:"property" binding:"required"`
}

// TenantResponse represents a tenant in API responses.
type TenantResponse struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Property string `json:"property"`
	RoomID   string `json:"room_id"`
}

func tenantToResponse(t *store.Tenant) TenantResponse {
	return TenantResponse{
		ID:       t.ID,
		Name:     t.Name,
		Email:    t.Email,
		Phone:    t.Phone,
		Property: t.Property,
		RoomID:   t.RoomID(),
	}
}

// CreateTenant handles POST /api/tenants (landlord only).
func (h *RecordHandlers) CreateTenant(c *gin.Context) {
	var req TenantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	tenant, err := h.store.CreateTenant(c.Request.Context(), &store.Tenant{
		Name:     req.Name,
		Email:    req.Email,
		Phone:    req.Phone,
		Property: req.Property,
	})
	if err != nil {
		h.writeStoreError(c, err, "tenant")
		return
	}
	c.JSON(http.StatusCreated, tenantToResponse(tenant))
}

// ListTenants handles GET /api/tenants.
func (h *RecordHandlers) ListTenants(c *gin.Context) {
	tenants, err := h.store.ListTenants(c.Request.Context())
	if err != nil {
		h.writeStoreError(c, err, "tenant")
		return
	}
	out := make([]TenantResponse, 0, len(tenants))
	for _, t := range tenants {
		out = append(out, tenantToResponse(t))
	}
	c.JSON(http.StatusOK, out)
}

// GetTenant handles GET /api/tenants/:id.
func (h *RecordHandlers) GetTenant(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	tenant, err := h.store.GetTenantByID(c.Request.Context(), id)
	if err != nil {
		h.writeStoreError(c, err, "tenant")
		return
	}
	c.JSON(http.StatusOK, tenantToResponse(tenant))
}

// UpdateTenant handles PATCH /api/tenants/:id (landlord only).
func (h *RecordHandlers) UpdateTenant(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req TenantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	tenant, err := h.store.UpdateTenant(c.Request.Context(), &store.Tenant{
		ID:       id,
		Name:     req.Name,
		Email:    req.Email,
		Phone:    req.Phone,
		Property: req.Property,
	})
	if err != nil {
		h.writeStoreError(c, err, "tenant")
		return
	}
	c.JSON(http.StatusOK, tenantToResponse(tenant))
}

// DeleteTenant handles DELETE /api/tenants/:id (landlord only).
func (h *RecordHandlers) DeleteTenant(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.store.DeleteTenant(c.Request.Context(), id); err != nil {
		h.writeStoreError(c, err, "tenant")
		return
	}
	c.Status(http.StatusNoContent)
}

// ==== Payments ====

// PaymentRequest represents a payment create body.
type PaymentRequest struct {
	TenantID int64   `json:"tenant_id" binding:"required"`
	Property string  `json:"property" binding:"required"`
	Amount   float64 `json:"amount" binding:"required,gt=0"`
}

// PaymentStatusRequest represents a payment status update body.
type PaymentStatusRequest struct {
	Status store.PaymentStatus `json:"status" binding:"required,oneof=paid pending"`
}

// PaymentResponse represents a payment in API responses.
type PaymentResponse struct {
	ID       int64   `json:"id"`
	TenantID int64   `json:"tenant_id"`
	Property string  `json:"property"`
	Amount   float64 `json:"amount"`
	Status   string  `json:"status"`
	Date     string  `json:"date"`
}

func paymentToResponse(p *store.Payment) PaymentResponse {
	return PaymentResponse{
		ID:       p.ID,
		TenantID: p.TenantID,
		Property: p.Property,
		Amount:   p.Amount,
		Status:   string(p.Status),
		Date:     p.Date.Format(time.RFC3339),
	}
}

// CreatePayment handles POST /api/payments (landlord only).
func (h *RecordHandlers) CreatePayment(c *gin.Context) {
	var req PaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	payment, err := h.store.CreatePayment(c.Request.Context(), &store.Payment{
		TenantID: req.TenantID,
		Property: req.Property,
		Amount:   req.Amount,
		Status:   store.PaymentStatusPaid,
	})
	if err != nil {
		h.writeStoreError(c, err, "payment")
		return
	}
	c.JSON(http.StatusCreated, paymentToResponse(payment))
}

// ListPayments handles GET /api/payments.
func (h *RecordHandlers) ListPayments(c *gin.Context) {
	payments, err := h.store.ListPayments(c.Request.Context())
	if err != nil {
		h.writeStoreError(c, err, "payment")
		return
	}
	out := make([]PaymentResponse, 0, len(payments))
	for _, p := range payments {
		out = append(out, paymentToResponse(p))
	}
	c.JSON(http.StatusOK, out)
}

// UpdatePaymentStatus handles PATCH /api/payments/:id (landlord only).
func (h *RecordHandlers) UpdatePaymentStatus(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req PaymentStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid status"})
		return
	}

	payment, err := h.store.UpdatePaymentStatus(c.Request.Context(), id, req.Status)
	if err != nil {
		h.writeStoreError(c, err, "payment")
		return
	}
	c.JSON(http.StatusOK, paymentToResponse(payment))
}

// ==== Leases ====

// LeaseRequest represents a lease create/update body.
type LeaseRequest struct {
	TenantID  int64             `json:"tenant_id" binding:"required"`
	Property  string            `json:"property" binding:"required"`
	StartDate time.Time         `json:"start_date" binding:"required"`
	EndDate   time.Time         `json:"end_date" binding:"required"`
	Rent      float64           `json:"rent" binding:"required,gt=0"`
	Status    store.LeaseStatus `json:"status" binding:"omitempty,oneof=Active Expired Terminated"`
}

// LeaseResponse represents a lease in API responses.
type LeaseResponse struct {
	ID        int64   `json:"id"`
	TenantID  int64   `json:"tenant_id"`
	Property  string  `json:"property"`
	StartDate string  `json:"start_date"`
	EndDate   string  `json:"end_date"`
	Rent      float64 `json:"rent"`
	Status    string  `json:"status"`
}

func leaseToResponse(l *store.Lease) LeaseResponse {
	return LeaseResponse{
		ID:        l.ID,
		TenantID:  l.TenantID,
		Property:  l.Property,
		StartDate: l.StartDate.Format(time.RFC3339),
		EndDate:   l.EndDate.Format(time.RFC3339),
		Rent:      l.Rent,
		Status:    string(l.Status),
	}
}

// CreateLease handles POST /api/leases (landlord only).
func (h *RecordHandlers) CreateLease(c *gin.Context) {
	var req LeaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	lease, err := h.store.CreateLease(c.Request.Context(), &store.Lease{
		TenantID:  req.TenantID,
		Property:  req.Property,
		StartDate: req.StartDate,
		EndDate:   req.EndDate,
		Rent:      req.Rent,
		Status:    store.LeaseStatusActive,
	})
	if err != nil {
		h.writeStoreError(c, err, "lease")
		return
	}
	c.JSON(http.StatusCreated, leaseToResponse(lease))
}

// ListLeases handles GET /api/leases.
func (h *RecordHandlers) ListLeases(c *gin.Context) {
	leases, err := h.store.ListLeases(c.Request.Context())
	if err != nil {
		h.writeStoreError(c, err, "lease")
		return
	}
	out := make([]LeaseResponse, 0, len(leases))
	for _, l := range leases {
		out = append(out, leaseToResponse(l))
	}
	c.JSON(http.StatusOK, out)
}

// UpdateLease handles PATCH /api/leases/:id (landlord only).
func (h *RecordHandlers) UpdateLease(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req LeaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	status := req.Status
	if status == "" {
		status = store.LeaseStatusActive
	}
	lease, err := h.store.UpdateLease(c.Request.Context(), &store.Lease{
		ID:        id,
		TenantID:  req.TenantID,
		Property:  req.Property,
		StartDate: req.StartDate,
		EndDate:   req.EndDate,
		Rent:      req.Rent,
		Status:    status,
	})
	if err != nil {
		h.writeStoreError(c, err, "lease")
		return
	}
	c.JSON(http.StatusOK, leaseToResponse(lease))
}

// ==== Maintenance ====

// TicketRequest represents a maintenance ticket create body.
type TicketRequest struct {
	TenantID int64                `json:"tenant_id" binding:"required"`
	Property string               `json:"property" binding:"required"`
	Issue    string               `json:"issue" binding:"required"`
	Priority store.TicketPriority `json:"priority" binding:"omitempty,oneof=low medium high"`
}

// TicketStatusRequest represents a ticket status update body.
type TicketStatusRequest struct {
	Status store.TicketStatus `json:"status" binding:"required,oneof=Pending 'In Progress' Completed"`
}

// TicketResponse represents a maintenance ticket in API responses.
type TicketResponse struct {
	ID       int64  `json:"id"`
	TenantID int64  `json:"tenant_id"`
	Property string `json:"property"`
	Issue    string `json:"issue"`
	Priority string `json:"priority"`
	Status   string `json:"status"`
	Date     string `json:"date"`
}

func ticketToResponse(m *store.MaintenanceTicket) TicketResponse {
	return TicketResponse{
		ID:       m.ID,
		TenantID: m.TenantID,
		Property: m.Property,
		Issue:    m.Issue,
		Priority: string(m.Priority),
		Status:   string(m.Status),
		Date:     m.CreatedAt.Format(time.RFC3339),
	}
}

// CreateTicket handles POST /api/maintenance (tenant-accessible).
func (h *RecordHandlers) CreateTicket(c *gin.Context) {
	var req TicketRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	ticket, err := h.store.CreateTicket(c.Request.Context(), &store.MaintenanceTicket{
		TenantID: req.TenantID,
		Property: req.Property,
		Issue:    req.Issue,
		Priority: req.Priority,
	})
	if err != nil {
		h.writeStoreError(c, err, "ticket")
		return
	}
	c.JSON(http.StatusCreated, ticketToResponse(ticket))
}

// ListTickets handles GET /api/maintenance.
func (h *RecordHandlers) ListTickets(c *gin.Context) {
	tickets, err := h.store.ListTickets(c.Request.Context())
	if err != nil {
		h.writeStoreError(c, err, "ticket")
		return
	}
	out := make([]TicketResponse, 0, len(tickets))
	for _, m := range tickets {
		out = append(out, ticketToResponse(m))
	}
	c.JSON(http.StatusOK, out)
}

// UpdateTicketStatus handles PATCH /api/maintenance/:id (landlord only).
func (h *RecordHandlers) UpdateTicketStatus(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req TicketStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid status"})
		return
	}

	ticket, err := h.store.UpdateTicketStatus(c.Request.Context(), id, req.Status)
	if err != nil {
		h.writeStoreError(c, err, "ticket")
		return
	}
	c.JSON(http.StatusOK, ticketToResponse(ticket))
}

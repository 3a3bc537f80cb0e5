package http

import (
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/rentwire/rentwire-server/internal/auth"
	"github.com/rentwire/rentwire-server/internal/config"
	"github.com/rentwire/rentwire-server/internal/core"
	"github.com/rentwire/rentwire-server/internal/store"
)

// NewServer builds the HTTP server. Every route except health and the auth
// boundary sits behind the credential middleware; mutations of financial and
// lease state are additionally gated to the landlord role. The route table
// below is the authorization allow-list.
func NewServer(cfg *config.Config, logger *zerolog.Logger, authService *auth.Service, channel *core.Channel, st store.Store) *stdhttp.Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), LoggerMiddleware(logger))

	authHandlers := NewAuthHandlers(authService, logger)
	messageHandlers := NewMessageHandlers(channel, logger)
	recordHandlers := NewRecordHandlers(st, logger)
	wsHandler := NewWSHandler(channel, cfg.Channel.EventBuffer, logger)

	router.GET("/health", func(c *gin.Context) {
		c.String(stdhttp.StatusOK, "ok")
	})

	api := router.Group("/api")
	api.POST("/auth/register", authHandlers.Register)
	api.POST("/auth/login", authHandlers.Login)

	authed := api.Group("", AuthMiddleware(authService, logger))
	landlordOnly := RequireRole(store.RoleLandlord)

	authed.GET("/messages", messageHandlers.List)
	authed.POST("/messages", messageHandlers.Send)
	authed.PATCH("/messages/:id/read", messageHandlers.MarkRead)

	authed.GET("/tenants", recordHandlers.ListTenants)
	authed.GET("/tenants/:id", recordHandlers.GetTenant)
	authed.POST("/tenants", landlordOnly, recordHandlers.CreateTenant)
	authed.PATCH("/tenants/:id", landlordOnly, recordHandlers.UpdateTenant)
	authed.DELETE("/tenants/:id", landlordOnly, recordHandlers.DeleteTenant)

	authed.GET("/payments", recordHandlers.ListPayments)
	authed.POST("/payments", landlordOnly, recordHandlers.CreatePayment)
	authed.PATCH("/payments/:id", landlordOnly, recordHandlers.UpdatePaymentStatus)

	authed.GET("/leases", recordHandlers.ListLeases)
	authed.POST("/leases", landlordOnly, recordHandlers.CreateLease)
	authed.PATCH("/leases/:id", landlordOnly, recordHandlers.UpdateLease)

	authed.GET("/maintenance", recordHandlers.ListTickets)
	authed.POST("/maintenance", recordHandlers.CreateTicket) // tenant-accessible
	authed.PATCH("/maintenance/:id", landlordOnly, recordHandlers.UpdateTicketStatus)

	router.GET("/ws", AuthMiddleware(authService, logger), wsHandler.Serve)

	return &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}

package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/rentwire/rentwire-server/internal/auth"
	"github.com/rentwire/rentwire-server/internal/store"
)

// AuthHandlers provides HTTP handlers for the credential-issuance boundary.
type AuthHandlers struct {
	authService *auth.Service
	log         *zerolog.Logger
}

// NewAuthHandlers creates a new auth handlers instance.
func NewAuthHandlers(authService *auth.Service, logger *zerolog.Logger) *AuthHandlers {
	return &AuthHandlers{
		authService: authService,
		log:         logger,
	}
}

// RegisterRequest represents the registration request body.
type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
	Role     string `json:"role" binding:"omitempty,oneof=landlord tenant"`
	TenantID int64  `json:"tenant_id"`
}

// LoginRequest represents the login request body.
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// AuthResponse represents the authentication response body.
type AuthResponse struct {
	Token string `json:"token"`
}

// Register handles account registration.
// POST /api/auth/register
func (h *AuthHandlers) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid register request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	var (
		token string
		err   error
	)
	if req.Role == string(store.RoleTenant) {
		token, err = h.authService.RegisterTenant(c.Request.Context(), req.Name, req.Email, req.Password, req.TenantID)
	} else {
		token, err = h.authService.RegisterLandlord(c.Request.Context(), req.Name, req.Email, req.Password)
	}
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrUserExists):
			c.JSON(http.StatusConflict, ErrorResponse{Error: "user already exists"})
		case errors.Is(err, auth.ErrInvalidEmail), errors.Is(err, auth.ErrInvalidPassword):
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		case errors.Is(err, auth.ErrUnknownTenant):
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "unknown tenant"})
		default:
			h.log.Error().Err(err).Str("email", req.Email).Msg("failed to register user")
			c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		}
		return
	}

	h.log.Info().Str("email", req.Email).Str("role", req.Role).Msg("user registered")
	c.JSON(http.StatusCreated, AuthResponse{Token: token})
}

// Login handles account login.
// POST /api/auth/login
func (h *AuthHandlers) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid login request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	token, err := h.authService.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "invalid credentials"})
			return
		}
		h.log.Error().Err(err).Str("email", req.Email).Msg("failed to login user")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	c.JSON(http.StatusOK, AuthResponse{Token: token})
}

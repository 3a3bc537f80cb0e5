package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rentwire/rentwire-server/internal/store"
)

var (
	// ErrInvalidCredentials is returned when email/password don't match.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUserExists is returned when registering with an existing email.
	ErrUserExists = errors.New("user already exists")
	// ErrInvalidEmail is returned when the email doesn't meet constraints.
	ErrInvalidEmail = errors.New("invalid email")
	// ErrInvalidPassword is returned when the password doesn't meet constraints.
	ErrInvalidPassword = errors.New("invalid password")
	// ErrUnknownTenant is returned when a tenant registration references a
	// tenant record that does not exist.
	ErrUnknownTenant = errors.New("unknown tenant")
)

// Service provides authentication operations at the credential-issuance boundary.
type Service struct {
	users     store.UserStore
	tenants   store.TenantStore
	jwtConfig *JWTConfig
}

// NewService creates a new authentication service.
func NewService(users store.UserStore, tenants store.TenantStore, jwtConfig *JWTConfig) *Service {
	return &Service{
		users:     users,
		tenants:   tenants,
		jwtConfig: jwtConfig,
	}
}

// RegisterLandlord creates a landlord account and returns a signed token.
func (s *Service) RegisterLandlord(ctx context.Context, name, email, password string) (string, error) {
	return s.register(ctx, name, email, password, store.RoleLandlord, "")
}

// RegisterTenant creates a tenant account bound to an existing tenant record
// and returns a signed token. The room affiliation is derived from the tenant
// record, never from the caller.
func (s *Service) RegisterTenant(ctx context.Context, name, email, password string, tenantID int64) (string, error) {
	tenant, err := s.tenants.GetTenantByID(ctx, tenantID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", ErrUnknownTenant
		}
		return "", fmt.Errorf("lookup tenant: %w", err)
	}
	return s.register(ctx, name, email, password, store.RoleTenant, tenant.RoomID())
}

func (s *Service) register(ctx context.Context, name, email, password string, role store.Role, roomID string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if len(email) < 3 || !strings.Contains(email, "@") {
		return "", ErrInvalidEmail
	}
	if len(password) < 6 {
		return "", ErrInvalidPassword
	}
	if name == "" {
		name = email
	}

	existing, err := s.users.GetUserByEmail(ctx, email)
	if err == nil && existing != nil {
		return "", ErrUserExists
	}

	hashedPassword, err := HashPassword(password)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}

	user, err := s.users.CreateUser(ctx, name, email, hashedPassword, role, roomID)
	if err != nil {
		return "", fmt.Errorf("create user: %w", err)
	}

	token, err := GenerateToken(s.jwtConfig, user)
	if err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}

	return token, nil
}

// Login validates credentials and returns a signed token.
func (s *Service) Login(ctx context.Context, email, password string) (string, error) {
	user, err := s.users.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return "", ErrInvalidCredentials
	}

	if errPwd := ComparePassword(user.PasswordHash, password); errPwd != nil {
		return "", ErrInvalidCredentials
	}

	token, err := GenerateToken(s.jwtConfig, user)
	if err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}

	return token, nil
}

// VerifyToken validates a bearer token and returns its claims.
func (s *Service) VerifyToken(tokenString string) (*Claims, error) {
	return VerifyToken(s.jwtConfig, tokenString)
}

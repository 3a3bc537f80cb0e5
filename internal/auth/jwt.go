package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/rentwire/rentwire-server/internal/store"
)

// Credential verification failures. A token is either fully valid or
// rejected with one of these; there is no partial trust.
var (
	// ErrTokenMissing is returned when no credential was presented.
	ErrTokenMissing = errors.New("token missing")
	// ErrTokenMalformed is returned when the credential cannot be parsed.
	ErrTokenMalformed = errors.New("token malformed")
	// ErrTokenExpired is returned when the credential is past its validity window.
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenSignature is returned when the signature check fails.
	ErrTokenSignature = errors.New("token signature invalid")
)

// Claims represents JWT claims for RentWire authentication.
type Claims struct {
	UserID int64      `json:"user_id"`
	Email  string     `json:"email"`
	Role   store.Role `json:"role"`
	RoomID string     `json:"room_id,omitempty"`
	jwt.RegisteredClaims
}

// JWTConfig holds JWT configuration.
type JWTConfig struct {
	Secret   []byte
	Issuer   string
	Audience string
	TTL      time.Duration
}

// GenerateToken creates a new JWT token for the given account.
func GenerateToken(cfg *JWTConfig, user *store.User) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID: user.ID,
		Email:  user.Email,
		Role:   user.Role,
		RoomID: user.RoomID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    cfg.Issuer,
			Audience:  jwt.ClaimStrings{cfg.Audience},
			ExpiresAt: jwt.NewNumericDate(now.Add(cfg.TTL)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(cfg.Secret)
}

// VerifyToken parses and validates a bearer token. Role and room affiliation
// come only from the verified claims, never from caller-supplied fields.
func VerifyToken(cfg *JWTConfig, tokenString string) (*Claims, error) {
	if tokenString == "" {
		return nil, ErrTokenMissing
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return cfg.Secret, nil
	})
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, ErrTokenExpired
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return nil, ErrTokenSignature
		default:
			return nil, fmt.Errorf("%w: %v", ErrTokenMalformed, err)
		}
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrTokenMalformed
	}

	if cfg.Issuer != "" && claims.Issuer != cfg.Issuer {
		return nil, fmt.Errorf("%w: invalid issuer", ErrTokenMalformed)
	}

	if cfg.Audience != "" {
		validAudience := false
		for _, aud := range claims.Audience {
			if aud == cfg.Audience {
				validAudience = true
				break
			}
		}
		if !validAudience {
			return nil, fmt.Errorf("%w: invalid audience", ErrTokenMalformed)
		}
	}

	return claims, nil
}

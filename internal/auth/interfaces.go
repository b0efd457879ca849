package auth

import (
	"context"

	"github.com/google/uuid"
	"github.com/hugh/brokerdesk/internal/database/models"
	"github.com/hugh/brokerdesk/internal/tenancy"
)

// Authenticator defines the interface for user authentication operations.
type Authenticator interface {
	Login(ctx context.Context, input LoginInput) (*AuthResponse, error)
	GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	LoadPrincipal(ctx context.Context, userID uuid.UUID) (tenancy.Principal, error)
}

// TokenService defines the interface for JWT token operations.
type TokenService interface {
	GenerateToken(userID uuid.UUID, companyID *uuid.UUID, email string, role tenancy.Role) (string, error)
	ValidateToken(tokenString string) (*Claims, error)
}

// Compile-time interface satisfaction checks
var (
	_ Authenticator = (*Service)(nil)
	_ TokenService  = (*JWTService)(nil)
)

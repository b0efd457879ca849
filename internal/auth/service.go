package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/hugh/brokerdesk/internal/database/models"
	"github.com/hugh/brokerdesk/internal/tenancy"
	"gorm.io/gorm"
)

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInactiveUser       = errors.New("user is inactive")
	ErrInactiveCompany    = errors.New("company is inactive")
)

type Service struct {
	db  *gorm.DB
	jwt *JWTService
}

func NewService(db *gorm.DB, jwt *JWTService) *Service {
	return &Service{db: db, jwt: jwt}
}

type LoginInput struct {
	Email    string
	Password string
}

type AuthResponse struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

func (s *Service) Login(ctx context.Context, input LoginInput) (*AuthResponse, error) {
	var user models.User
	if err := s.db.WithContext(ctx).
		Preload("Company").
		Where("email = ?", strings.ToLower(strings.TrimSpace(input.Email))).
		First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if !CheckPassword(input.Password, user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}

	if !user.IsActive {
		return nil, ErrInactiveUser
	}
	if user.Company != nil && !user.Company.IsActive {
		return nil, ErrInactiveCompany
	}

	token, err := s.jwt.GenerateToken(user.ID, user.CompanyID, user.Email, user.Role)
	if err != nil {
		return nil, err
	}

	return &AuthResponse{
		Token: token,
		User:  &user,
	}, nil
}

func (s *Service) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).
		Preload("Company").
		First(&user, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

// LoadPrincipal resolves the acting principal from storage so role changes
// and deactivations take effect before the token expires.
func (s *Service) LoadPrincipal(ctx context.Context, userID uuid.UUID) (tenancy.Principal, error) {
	user, err := s.GetUserByID(ctx, userID)
	if err != nil {
		return tenancy.Principal{}, err
	}
	if !user.IsActive {
		return tenancy.Principal{}, ErrInactiveUser
	}
	if user.Company != nil && !user.Company.IsActive {
		return tenancy.Principal{}, ErrInactiveCompany
	}
	return user.Principal(), nil
}

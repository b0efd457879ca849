// Package user manages principals. Creating or deactivating broker staff
// moves the broker's staff counter in the same transaction.
package user

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/hugh/brokerdesk/internal/access"
	"github.com/hugh/brokerdesk/internal/apperr"
	"github.com/hugh/brokerdesk/internal/auth"
	"github.com/hugh/brokerdesk/internal/database/models"
	"github.com/hugh/brokerdesk/internal/quota"
	"github.com/hugh/brokerdesk/internal/tenancy"
	"github.com/hugh/brokerdesk/internal/validation"
	"gorm.io/gorm"
)

type Service struct {
	db      *gorm.DB
	tracker *quota.Tracker
	logger  *slog.Logger
}

func NewService(db *gorm.DB, tracker *quota.Tracker, logger *slog.Logger) *Service {
	return &Service{db: db, tracker: tracker, logger: logger}
}

type CreateInput struct {
	Email     string
	Password  string
	Name      string
	Role      tenancy.Role
	CompanyID *uuid.UUID
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validatePassword(fields map[string]string, password string) {
	if ok, msg := validation.IsValidPassword(password); !ok {
		fields["password"] = msg
	}
}

func (in CreateInput) validate() error {
	fields := map[string]string{}
	if !validation.IsValidEmail(normalizeEmail(in.Email)) {
		fields["email"] = "is not a valid address"
	}
	validatePassword(fields, in.Password)
	if strings.TrimSpace(in.Name) == "" {
		fields["name"] = "is required"
	}
	if !in.Role.Valid() {
		fields["role"] = "is not a known role"
	}
	if len(fields) > 0 {
		return apperr.ValidationFields(fields)
	}
	return nil
}

func (s *Service) emailTaken(tx *gorm.DB, email string, except uuid.UUID) (bool, error) {
	var count int64
	q := tx.Unscoped().Model(&models.User{}).Where("email = ?", email)
	if except != uuid.Nil {
		q = q.Where("id <> ?", except)
	}
	if err := q.Count(&count).Error; err != nil {
		return false, fmt.Errorf("checking email: %w", err)
	}
	return count > 0, nil
}

// Create adds a principal. Staff roles consume a slot from the broker's
// staff quota; the slot is returned if the insert fails.
func (s *Service) Create(ctx context.Context, actor tenancy.Principal, in CreateInput) (*models.User, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	user := &models.User{
		Email:        normalizeEmail(in.Email),
		PasswordHash: hash,
		Name:         strings.TrimSpace(in.Name),
		Role:         in.Role,
		IsActive:     true,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var company *models.Company
		if in.CompanyID != nil {
			var c models.Company
			if err := tx.First(&c, "id = ?", *in.CompanyID).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return apperr.NotFound("company not found")
				}
				return fmt.Errorf("loading company: %w", err)
			}
			if d := access.Authorize(actor, access.CompanyView, access.Target{Company: c.Node()}); !d.Allowed {
				return apperr.NotFound("company not found")
			}
			if !c.IsActive {
				return apperr.Validation("company %s is inactive", c.ID)
			}
			company = &c
		}

		if !tenancy.ValidateAffiliation(in.Role, company.Node()) {
			return apperr.ValidationFields(map[string]string{"company_id": affiliationHint(in.Role)})
		}
		if err := access.Require(actor, access.UserCreate, access.Target{Role: in.Role, Company: company.Node()}); err != nil {
			return err
		}

		taken, err := s.emailTaken(tx, user.Email, uuid.Nil)
		if err != nil {
			return err
		}
		if taken {
			return apperr.Conflict("email %s is already registered", user.Email)
		}

		if in.Role.IsStaff() {
			if err := s.tracker.WithTx(tx).OnStaffAdded(ctx, company.ID); err != nil {
				return err
			}
		}

		if company != nil {
			user.CompanyID = &company.ID
		}
		if err := tx.Omit("Company").Create(user).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return apperr.Conflict("email %s is already registered", user.Email)
			}
			return fmt.Errorf("creating user: %w", err)
		}
		user.Company = company
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("user created", "user_id", user.ID, "role", user.Role, "actor_id", actor.UserID)
	return user, nil
}

func affiliationHint(role tenancy.Role) string {
	switch role {
	case tenancy.RoleSuperAdmin:
		return "must be empty for a super admin"
	case tenancy.RoleBrokerAdmin, tenancy.RoleBrokerUser:
		return "must reference a customs broker"
	case tenancy.RoleClientUser:
		return "must reference a client company"
	}
	return "is not valid for this role"
}

func (s *Service) load(ctx context.Context, actor tenancy.Principal, id uuid.UUID, op access.Operation) (*models.User, error) {
	var u models.User
	if err := s.db.WithContext(ctx).Preload("Company").First(&u, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("user not found")
		}
		return nil, fmt.Errorf("loading user: %w", err)
	}
	target := u.Principal()
	if err := access.Guard(actor, access.UserView, op, access.Target{User: &target}, "user"); err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *Service) Get(ctx context.Context, actor tenancy.Principal, id uuid.UUID) (*models.User, error) {
	return s.load(ctx, actor, id, access.UserView)
}

// EditInput carries optional changes. Role and company are fixed at creation.
type EditInput struct {
	Name     *string
	Email    *string
	Password *string
}

func (s *Service) Edit(ctx context.Context, actor tenancy.Principal, id uuid.UUID, in EditInput) (*models.User, error) {
	u, err := s.load(ctx, actor, id, access.UserEdit)
	if err != nil {
		return nil, err
	}

	fields := map[string]string{}
	if in.Name != nil {
		if strings.TrimSpace(*in.Name) == "" {
			fields["name"] = "is required"
		}
		u.Name = strings.TrimSpace(*in.Name)
	}
	if in.Email != nil {
		u.Email = normalizeEmail(*in.Email)
		if !validation.IsValidEmail(u.Email) {
			fields["email"] = "is not a valid address"
		}
	}
	if in.Password != nil {
		validatePassword(fields, *in.Password)
	}
	if len(fields) > 0 {
		return nil, apperr.ValidationFields(fields)
	}

	if in.Password != nil {
		hash, err := auth.HashPassword(*in.Password)
		if err != nil {
			return nil, fmt.Errorf("hashing password: %w", err)
		}
		u.PasswordHash = hash
	}

	db := s.db.WithContext(ctx)
	if in.Email != nil {
		taken, err := s.emailTaken(db, u.Email, u.ID)
		if err != nil {
			return nil, err
		}
		if taken {
			return nil, apperr.Conflict("email %s is already registered", u.Email)
		}
	}

	if err := db.Omit("Company").Save(u).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, apperr.Conflict("email %s is already registered", u.Email)
		}
		return nil, fmt.Errorf("updating user: %w", err)
	}
	return u, nil
}

// Deactivate disables a principal. Deactivating active staff frees a slot in
// the broker's staff quota.
func (s *Service) Deactivate(ctx context.Context, actor tenancy.Principal, id uuid.UUID) error {
	u, err := s.load(ctx, actor, id, access.UserDelete)
	if err != nil {
		return err
	}
	if !u.IsActive {
		return apperr.InvalidTransition("user is already inactive")
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.User{}).
			Where("id = ? AND is_active = ?", u.ID, true).
			Update("is_active", false)
		if res.Error != nil {
			return fmt.Errorf("deactivating user: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return apperr.InvalidTransition("user is already inactive")
		}
		if u.Role.IsStaff() && u.CompanyID != nil {
			return s.tracker.WithTx(tx).OnStaffRemoved(ctx, *u.CompanyID)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info("user deactivated", "user_id", u.ID, "role", u.Role, "actor_id", actor.UserID)
	return nil
}

type ListFilter struct {
	CompanyID       *uuid.UUID
	Role            tenancy.Role
	IncludeInactive bool
}

// List returns the users actor may view.
func (s *Service) List(ctx context.Context, actor tenancy.Principal, f ListFilter) ([]models.User, error) {
	db := s.db.WithContext(ctx)
	q := db.Model(&models.User{})

	switch actor.Role {
	case tenancy.RoleSuperAdmin:
	case tenancy.RoleBrokerAdmin, tenancy.RoleBrokerUser:
		own, ok := tenancy.OwnBroker(actor)
		if !ok {
			return nil, nil
		}
		subtree := db.Model(&models.Company{}).Select("id").
			Where("id = ? OR parent_broker_id = ?", own, own)
		q = q.Where("(company_id IN (?) OR id = ?)", subtree, actor.UserID)
	case tenancy.RoleClientUser:
		q = q.Where("(company_id = ? OR id = ?)", actor.CompanyID(), actor.UserID)
	default:
		return nil, nil
	}

	if f.CompanyID != nil {
		q = q.Where("company_id = ?", *f.CompanyID)
	}
	if f.Role != "" {
		q = q.Where("role = ?", f.Role)
	}
	if !f.IncludeInactive {
		q = q.Where("is_active = ?", true)
	}

	var out []models.User
	if err := q.Order("email ASC").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	return out, nil
}

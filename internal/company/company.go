// Package company manages brokers and their client companies.
package company

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/hugh/brokerdesk/internal/access"
	"github.com/hugh/brokerdesk/internal/apperr"
	"github.com/hugh/brokerdesk/internal/database/models"
	"github.com/hugh/brokerdesk/internal/quota"
	"github.com/hugh/brokerdesk/internal/tenancy"
	"github.com/hugh/brokerdesk/internal/validation"
	"github.com/hugh/brokerdesk/pkg/crypto"
	"gorm.io/gorm"
)

type Service struct {
	db      *gorm.DB
	tracker *quota.Tracker
	sealer  *crypto.Sealer
	logger  *slog.Logger
}

func NewService(db *gorm.DB, tracker *quota.Tracker, sealer *crypto.Sealer, logger *slog.Logger) *Service {
	return &Service{db: db, tracker: tracker, sealer: sealer, logger: logger}
}

// Input is shared by broker and client creation.
type Input struct {
	Name     string
	Email    string
	Phone    string
	Address  string
	TaxID    string
	ParentID *uuid.UUID
}

func (in Input) validate() error {
	fields := map[string]string{}
	if strings.TrimSpace(in.Name) == "" {
		fields["name"] = "is required"
	}
	if in.Email != "" && !validation.IsValidEmail(in.Email) {
		fields["email"] = "is not a valid address"
	}
	if in.Phone != "" && !validation.IsValidPhone(in.Phone) {
		fields["phone"] = "is not a valid phone number"
	}
	if len(fields) > 0 {
		return apperr.ValidationFields(fields)
	}
	return nil
}

func (s *Service) build(in Input, kind tenancy.CompanyKind) (*models.Company, error) {
	sealed, err := s.sealer.Seal(strings.TrimSpace(in.TaxID))
	if err != nil {
		return nil, fmt.Errorf("sealing tax id: %w", err)
	}
	return &models.Company{
		Name:        strings.TrimSpace(in.Name),
		Type:        kind,
		Email:       strings.TrimSpace(in.Email),
		Phone:       strings.TrimSpace(in.Phone),
		Address:     strings.TrimSpace(in.Address),
		SealedTaxID: sealed,
		IsActive:    true,
	}, nil
}

// CreateBroker onboards a new customs broker. Super admins only.
func (s *Service) CreateBroker(ctx context.Context, actor tenancy.Principal, in Input) (*models.Company, error) {
	if err := access.Require(actor, access.CompanyCreateBroker, access.Target{}); err != nil {
		return nil, err
	}
	if in.ParentID != nil {
		return nil, apperr.ValidationFields(map[string]string{"parent_id": "must be empty for a broker"})
	}
	if err := in.validate(); err != nil {
		return nil, err
	}

	broker, err := s.build(in, tenancy.KindBroker)
	if err != nil {
		return nil, err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(broker).Error; err != nil {
			return fmt.Errorf("creating broker: %w", err)
		}
		return s.tracker.WithTx(tx).EnsureUsage(ctx, broker.ID)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("broker created", "broker_id", broker.ID, "name", broker.Name)
	return broker, nil
}

// CreateClient adds a client under ParentID and reserves a client slot from
// the parent broker's quota in the same transaction.
func (s *Service) CreateClient(ctx context.Context, actor tenancy.Principal, in Input) (*models.Company, error) {
	if in.ParentID == nil || *in.ParentID == uuid.Nil {
		return nil, apperr.ValidationFields(map[string]string{"parent_id": "a client must belong to a broker"})
	}
	if err := in.validate(); err != nil {
		return nil, err
	}

	client, err := s.build(in, tenancy.KindClient)
	if err != nil {
		return nil, err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var parent models.Company
		if err := tx.First(&parent, "id = ?", *in.ParentID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound("parent broker not found")
			}
			return fmt.Errorf("loading parent: %w", err)
		}
		if d := access.Authorize(actor, access.CompanyView, access.Target{Company: parent.Node()}); !d.Allowed {
			return apperr.NotFound("parent broker not found")
		}
		if parent.Type != tenancy.KindBroker {
			return apperr.ValidationFields(map[string]string{"parent_id": "must reference a customs broker"})
		}
		if !parent.IsActive {
			return apperr.Validation("broker %s is inactive", parent.ID)
		}
		if err := access.Require(actor, access.CompanyCreateClient, access.Target{Company: parent.Node()}); err != nil {
			return err
		}

		if err := s.tracker.WithTx(tx).OnClientAdded(ctx, parent.ID); err != nil {
			return err
		}

		client.ParentBrokerID = &parent.ID
		if err := tx.Create(client).Error; err != nil {
			return fmt.Errorf("creating client: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("client created", "client_id", client.ID, "broker_id", *client.ParentBrokerID)
	return client, nil
}

func (s *Service) load(ctx context.Context, actor tenancy.Principal, id uuid.UUID, op access.Operation) (*models.Company, error) {
	var c models.Company
	if err := s.db.WithContext(ctx).First(&c, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("company not found")
		}
		return nil, fmt.Errorf("loading company: %w", err)
	}
	if err := access.Guard(actor, access.CompanyView, op, access.Target{Company: c.Node()}, "company"); err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *Service) Get(ctx context.Context, actor tenancy.Principal, id uuid.UUID) (*models.Company, error) {
	return s.load(ctx, actor, id, access.CompanyView)
}

// UpdateInput carries optional changes; nil leaves a field as is. Kind and
// parent never change.
type UpdateInput struct {
	Name    *string
	Email   *string
	Phone   *string
	Address *string
	TaxID   *string
}

func (s *Service) Update(ctx context.Context, actor tenancy.Principal, id uuid.UUID, in UpdateInput) (*models.Company, error) {
	c, err := s.load(ctx, actor, id, access.CompanyUpdate)
	if err != nil {
		return nil, err
	}

	if in.Name != nil {
		c.Name = strings.TrimSpace(*in.Name)
	}
	if in.Email != nil {
		c.Email = strings.TrimSpace(*in.Email)
	}
	if in.Phone != nil {
		c.Phone = strings.TrimSpace(*in.Phone)
	}
	if in.Address != nil {
		c.Address = strings.TrimSpace(*in.Address)
	}
	if err := (Input{Name: c.Name, Email: c.Email, Phone: c.Phone}).validate(); err != nil {
		return nil, err
	}
	if in.TaxID != nil {
		sealed, err := s.sealer.Seal(strings.TrimSpace(*in.TaxID))
		if err != nil {
			return nil, fmt.Errorf("sealing tax id: %w", err)
		}
		c.SealedTaxID = sealed
	}

	if err := s.db.WithContext(ctx).Omit("ParentBroker").Save(c).Error; err != nil {
		return nil, fmt.Errorf("updating company: %w", err)
	}
	return c, nil
}

// Deactivate soft-deletes a company. Deactivating a client frees its slot
// in the parent broker's quota.
func (s *Service) Deactivate(ctx context.Context, actor tenancy.Principal, id uuid.UUID) error {
	c, err := s.load(ctx, actor, id, access.CompanyDelete)
	if err != nil {
		return err
	}
	if !c.IsActive {
		return apperr.InvalidTransition("company is already inactive")
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Company{}).
			Where("id = ? AND is_active = ?", c.ID, true).
			Update("is_active", false)
		if res.Error != nil {
			return fmt.Errorf("deactivating company: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return apperr.InvalidTransition("company is already inactive")
		}
		if c.Type == tenancy.KindClient && c.ParentBrokerID != nil {
			return s.tracker.WithTx(tx).OnClientRemoved(ctx, *c.ParentBrokerID)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info("company deactivated", "company_id", c.ID, "type", c.Type, "actor_id", actor.UserID)
	return nil
}

// RevealTaxID opens the sealed tax identifier. Only principals allowed to
// update the company may read it.
func (s *Service) RevealTaxID(ctx context.Context, actor tenancy.Principal, id uuid.UUID) (string, error) {
	c, err := s.load(ctx, actor, id, access.CompanyUpdate)
	if err != nil {
		return "", err
	}
	taxID, err := s.sealer.Open(c.SealedTaxID)
	if err != nil {
		return "", fmt.Errorf("opening tax id: %w", err)
	}
	return taxID, nil
}

type ListFilter struct {
	Type            tenancy.CompanyKind
	ParentID        *uuid.UUID
	IncludeInactive bool
}

// List returns the companies actor may view.
func (s *Service) List(ctx context.Context, actor tenancy.Principal, f ListFilter) ([]models.Company, error) {
	q := s.db.WithContext(ctx).Model(&models.Company{})

	switch actor.Role {
	case tenancy.RoleSuperAdmin:
	case tenancy.RoleBrokerAdmin, tenancy.RoleBrokerUser:
		own, ok := tenancy.OwnBroker(actor)
		if !ok {
			return nil, nil
		}
		q = q.Where("(id = ? OR parent_broker_id = ?)", own, own)
	case tenancy.RoleClientUser:
		q = q.Where("id = ?", actor.CompanyID())
	default:
		return nil, nil
	}

	if f.Type != "" {
		q = q.Where("type = ?", f.Type)
	}
	if f.ParentID != nil {
		q = q.Where("parent_broker_id = ?", *f.ParentID)
	}
	if !f.IncludeInactive {
		q = q.Where("is_active = ?", true)
	}

	var out []models.Company
	if err := q.Order("name ASC").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("listing companies: %w", err)
	}
	return out, nil
}

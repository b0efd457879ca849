// Package subscription manages the plan catalog and binds brokers to plans.
package subscription

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hugh/brokerdesk/internal/access"
	"github.com/hugh/brokerdesk/internal/apperr"
	"github.com/hugh/brokerdesk/internal/database/models"
	"github.com/hugh/brokerdesk/internal/tenancy"
	"gorm.io/gorm"
)

type Service struct {
	db     *gorm.DB
	now    func() time.Time
	logger *slog.Logger
}

func NewService(db *gorm.DB, logger *slog.Logger) *Service {
	return &Service{db: db, now: time.Now, logger: logger}
}

// WithClock replaces the time source.
func (s *Service) WithClock(now func() time.Time) *Service {
	cp := *s
	cp.now = now
	return &cp
}

type PlanInput struct {
	Name         string
	Description  string
	MaxStaff     int
	MaxClients   int
	MonthlyPrice int64
	Currency     string
	IsActive     *bool
}

func (in PlanInput) validate() error {
	fields := map[string]string{}
	if strings.TrimSpace(in.Name) == "" {
		fields["name"] = "is required"
	}
	if in.MaxStaff < 0 {
		fields["max_staff"] = "must not be negative"
	}
	if in.MaxClients < 0 {
		fields["max_clients"] = "must not be negative"
	}
	if in.MonthlyPrice < 0 {
		fields["monthly_price"] = "must not be negative"
	}
	if in.Currency != "" && len(in.Currency) != 3 {
		fields["currency"] = "must be a 3-letter code"
	}
	if len(fields) > 0 {
		return apperr.ValidationFields(fields)
	}
	return nil
}

func (s *Service) CreatePlan(ctx context.Context, actor tenancy.Principal, in PlanInput) (*models.SubscriptionPlan, error) {
	if err := access.Require(actor, access.SubscriptionManage, access.Target{}); err != nil {
		return nil, err
	}
	if err := in.validate(); err != nil {
		return nil, err
	}

	plan := &models.SubscriptionPlan{
		Name:         strings.TrimSpace(in.Name),
		Description:  in.Description,
		MaxStaff:     in.MaxStaff,
		MaxClients:   in.MaxClients,
		MonthlyPrice: in.MonthlyPrice,
		Currency:     strings.ToUpper(in.Currency),
		IsActive:     true,
	}
	if plan.Currency == "" {
		plan.Currency = "USD"
	}

	if err := s.db.WithContext(ctx).Create(plan).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, apperr.Conflict("plan %q already exists", plan.Name)
		}
		return nil, fmt.Errorf("creating plan: %w", err)
	}

	s.logger.Info("plan created", "plan_id", plan.ID, "name", plan.Name)
	return plan, nil
}

func (s *Service) UpdatePlan(ctx context.Context, actor tenancy.Principal, id uuid.UUID, in PlanInput) (*models.SubscriptionPlan, error) {
	if err := access.Require(actor, access.SubscriptionManage, access.Target{}); err != nil {
		return nil, err
	}
	if err := in.validate(); err != nil {
		return nil, err
	}

	var plan models.SubscriptionPlan
	if err := s.db.WithContext(ctx).First(&plan, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("plan not found")
		}
		return nil, fmt.Errorf("loading plan: %w", err)
	}

	plan.Name = strings.TrimSpace(in.Name)
	plan.Description = in.Description
	plan.MaxStaff = in.MaxStaff
	plan.MaxClients = in.MaxClients
	plan.MonthlyPrice = in.MonthlyPrice
	if in.Currency != "" {
		plan.Currency = strings.ToUpper(in.Currency)
	}
	if in.IsActive != nil {
		plan.IsActive = *in.IsActive
	}

	if err := s.db.WithContext(ctx).Save(&plan).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, apperr.Conflict("plan %q already exists", plan.Name)
		}
		return nil, fmt.Errorf("updating plan: %w", err)
	}

	s.logger.Info("plan updated", "plan_id", plan.ID)
	return &plan, nil
}

// ListPlans returns the catalog. Inactive plans are included only when
// requested.
func (s *Service) ListPlans(ctx context.Context, includeInactive bool) ([]models.SubscriptionPlan, error) {
	var plans []models.SubscriptionPlan
	q := s.db.WithContext(ctx).Order("max_staff ASC, name ASC")
	if !includeInactive {
		q = q.Where("is_active = ?", true)
	}
	if err := q.Find(&plans).Error; err != nil {
		return nil, fmt.Errorf("listing plans: %w", err)
	}
	return plans, nil
}

type SubscribeInput struct {
	PlanID           uuid.UUID
	StartDate        *time.Time
	EndDate          *time.Time
	CustomMaxStaff   *int
	CustomMaxClients *int
}

// Subscribe records a new subscription for the broker, deactivating any
// subscription that is currently in effect.
func (s *Service) Subscribe(ctx context.Context, actor tenancy.Principal, brokerID uuid.UUID, in SubscribeInput) (*models.BrokerSubscription, error) {
	if err := access.Require(actor, access.SubscriptionManage, access.Target{BrokerID: brokerID}); err != nil {
		return nil, err
	}

	now := s.now()
	start := now
	if in.StartDate != nil {
		start = *in.StartDate
	}

	fields := map[string]string{}
	if in.PlanID == uuid.Nil {
		fields["plan_id"] = "is required"
	}
	if in.EndDate != nil && !in.EndDate.After(start) {
		fields["end_date"] = "must be after start_date"
	}
	if in.CustomMaxStaff != nil && *in.CustomMaxStaff < 0 {
		fields["custom_max_staff"] = "must not be negative"
	}
	if in.CustomMaxClients != nil && *in.CustomMaxClients < 0 {
		fields["custom_max_clients"] = "must not be negative"
	}
	if len(fields) > 0 {
		return nil, apperr.ValidationFields(fields)
	}

	var sub models.BrokerSubscription
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var broker models.Company
		if err := tx.First(&broker, "id = ?", brokerID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound("broker not found")
			}
			return err
		}
		if broker.Type != tenancy.KindBroker {
			return apperr.Validation("company %s is not a customs broker", brokerID)
		}

		var plan models.SubscriptionPlan
		if err := tx.First(&plan, "id = ?", in.PlanID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound("plan not found")
			}
			return err
		}
		if !plan.IsActive {
			return apperr.Validation("plan %q is not available", plan.Name)
		}

		if err := tx.Model(&models.BrokerSubscription{}).
			Where("broker_id = ? AND is_active = ?", brokerID, true).
			Updates(map[string]interface{}{"is_active": false, "cancelled_at": now}).Error; err != nil {
			return fmt.Errorf("superseding subscription: %w", err)
		}

		sub = models.BrokerSubscription{
			BrokerID:         brokerID,
			PlanID:           plan.ID,
			StartDate:        start,
			EndDate:          in.EndDate,
			IsActive:         true,
			CustomMaxStaff:   in.CustomMaxStaff,
			CustomMaxClients: in.CustomMaxClients,
			Plan:             &plan,
		}
		return tx.Omit("Plan", "Broker").Create(&sub).Error
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("broker subscribed",
		"broker_id", brokerID,
		"plan_id", sub.PlanID,
		"subscription_id", sub.ID,
	)
	return &sub, nil
}

// Cancel deactivates a subscription. The broker drops to zero quota until
// a new one is recorded.
func (s *Service) Cancel(ctx context.Context, actor tenancy.Principal, id uuid.UUID) (*models.BrokerSubscription, error) {
	var sub models.BrokerSubscription
	if err := s.db.WithContext(ctx).Preload("Plan").First(&sub, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("subscription not found")
		}
		return nil, fmt.Errorf("loading subscription: %w", err)
	}

	if err := access.Guard(actor, access.SubscriptionView, access.SubscriptionManage,
		access.Target{BrokerID: sub.BrokerID}, "subscription"); err != nil {
		return nil, err
	}
	if !sub.IsActive {
		return nil, apperr.InvalidTransition("subscription is already inactive")
	}

	now := s.now()
	sub.IsActive = false
	sub.CancelledAt = &now
	if err := s.db.WithContext(ctx).Model(&sub).
		Updates(map[string]interface{}{"is_active": false, "cancelled_at": now}).Error; err != nil {
		return nil, fmt.Errorf("cancelling subscription: %w", err)
	}

	s.logger.Info("subscription cancelled", "subscription_id", sub.ID, "broker_id", sub.BrokerID)
	return &sub, nil
}

// Current returns the broker's subscription in effect, as seen by actor.
func (s *Service) Current(ctx context.Context, actor tenancy.Principal, brokerID uuid.UUID) (*models.BrokerSubscription, error) {
	if d := access.Authorize(actor, access.SubscriptionView, access.Target{BrokerID: brokerID}); !d.Allowed {
		return nil, apperr.NotFound("subscription not found")
	}
	return Active(ctx, s.db, brokerID, s.now())
}

// History lists every subscription the broker ever had, newest first.
func (s *Service) History(ctx context.Context, actor tenancy.Principal, brokerID uuid.UUID) ([]models.BrokerSubscription, error) {
	if d := access.Authorize(actor, access.SubscriptionView, access.Target{BrokerID: brokerID}); !d.Allowed {
		return nil, apperr.NotFound("broker not found")
	}
	var subs []models.BrokerSubscription
	if err := s.db.WithContext(ctx).Preload("Plan").
		Where("broker_id = ?", brokerID).
		Order("start_date DESC").
		Find(&subs).Error; err != nil {
		return nil, fmt.Errorf("listing subscriptions: %w", err)
	}
	return subs, nil
}

// Active loads the subscription in effect for brokerID at now, with its
// plan. It returns apperr.ErrSubscriptionMissing when there is none.
func Active(ctx context.Context, db *gorm.DB, brokerID uuid.UUID, now time.Time) (*models.BrokerSubscription, error) {
	var sub models.BrokerSubscription
	err := db.WithContext(ctx).Preload("Plan").
		Where("broker_id = ? AND is_active = ?", brokerID, true).
		Where("end_date IS NULL OR end_date > ?", now).
		Order("start_date DESC").
		First(&sub).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.SubscriptionMissing("broker %s has no active subscription", brokerID)
		}
		return nil, fmt.Errorf("loading subscription: %w", err)
	}
	return &sub, nil
}

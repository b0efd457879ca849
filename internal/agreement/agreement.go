// Package agreement manages agency agreements, the records that allow a
// broker to file customs transactions for a client.
//
//	create -> ACTIVE
//	ACTIVE -> SUSPENDED -> ACTIVE   (not after the end date)
//	ACTIVE | SUSPENDED -> TERMINATED (final)
package agreement

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
	"github.com/hugh/brokerdesk/internal/idgen"
	"github.com/hugh/brokerdesk/internal/tenancy"
	"gorm.io/gorm"
)

const (
	numberPrefix = "AGR"

	// maxNumberAttempts bounds retries when a generated agreement number
	// collides with an existing one.
	maxNumberAttempts = 3
)

type Service struct {
	db     *gorm.DB
	now    func() time.Time
	number func(time.Time) string
	logger *slog.Logger
}

func NewService(db *gorm.DB, logger *slog.Logger) *Service {
	return &Service{db: db, now: time.Now, number: newNumber, logger: logger}
}

func newNumber(at time.Time) string {
	return idgen.DatedNumber(numberPrefix, at)
}

func (s *Service) WithTx(tx *gorm.DB) *Service {
	cp := *s
	cp.db = tx
	return &cp
}

func (s *Service) WithClock(now func() time.Time) *Service {
	cp := *s
	cp.now = now
	return &cp
}

type CreateInput struct {
	BrokerID  uuid.UUID
	ClientID  uuid.UUID
	StartDate *time.Time
	EndDate   *time.Time
	Notes     string
}

func target(a *models.AgencyAgreement) access.Target {
	return access.Target{Broker: a.Broker.Node(), Client: a.Client.Node()}
}

func (s *Service) company(ctx context.Context, id uuid.UUID, what string) (*models.Company, error) {
	var c models.Company
	if err := s.db.WithContext(ctx).First(&c, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("%s not found", what)
		}
		return nil, fmt.Errorf("loading %s: %w", what, err)
	}
	return &c, nil
}

// Create opens an ACTIVE agreement between a broker and a client. Only one
// ACTIVE agreement may exist per pair.
func (s *Service) Create(ctx context.Context, actor tenancy.Principal, in CreateInput) (*models.AgencyAgreement, error) {
	now := s.now()
	start := now
	if in.StartDate != nil {
		start = *in.StartDate
	}
	if in.EndDate != nil && !in.EndDate.After(start) {
		return nil, apperr.ValidationFields(map[string]string{"end_date": "must be after start_date"})
	}

	broker, err := s.company(ctx, in.BrokerID, "broker")
	if err != nil {
		return nil, err
	}
	client, err := s.company(ctx, in.ClientID, "client")
	if err != nil {
		return nil, err
	}

	t := access.Target{Broker: broker.Node(), Client: client.Node()}
	if err := access.Guard(actor, access.AgreementView, access.AgreementCreate, t, "agreement party"); err != nil {
		return nil, err
	}

	if broker.Type != tenancy.KindBroker {
		return nil, apperr.Validation("company %s is not a customs broker", broker.ID)
	}
	if client.Type != tenancy.KindClient {
		return nil, apperr.Validation("company %s is not a client", client.ID)
	}
	if !broker.IsActive || !client.IsActive {
		return nil, apperr.Validation("agreements require active companies")
	}

	active, err := s.HasActiveAgreement(ctx, broker.ID, client.ID)
	if err != nil {
		return nil, err
	}
	if active {
		return nil, apperr.Conflict("an active agreement already exists between this broker and client")
	}

	a := &models.AgencyAgreement{
		BrokerID:    broker.ID,
		ClientID:    client.ID,
		Status:      models.AgreementStatusActive,
		StartDate:   start,
		EndDate:     in.EndDate,
		Notes:       strings.TrimSpace(in.Notes),
		CreatedByID: actor.UserID,
	}
	if err := s.insert(ctx, a, now); err != nil {
		return nil, err
	}
	a.Broker, a.Client = broker, client

	s.logger.Info("agreement created",
		"agreement_id", a.ID,
		"agreement_number", a.AgreementNumber,
		"broker_id", a.BrokerID,
		"client_id", a.ClientID,
	)
	return a, nil
}

// insert stores a with a fresh agreement number. A unique violation is either
// a concurrent ACTIVE agreement for the same pair, reported as a conflict, or
// a number collision, retried with a new number.
func (s *Service) insert(ctx context.Context, a *models.AgencyAgreement, now time.Time) error {
	for attempt := 1; ; attempt++ {
		a.AgreementNumber = s.number(now)
		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			return tx.Create(a).Error
		})
		if err == nil {
			return nil
		}
		if !errors.Is(err, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("creating agreement: %w", err)
		}

		active, checkErr := s.HasActiveAgreement(ctx, a.BrokerID, a.ClientID)
		if checkErr != nil {
			return checkErr
		}
		if active {
			return apperr.Conflict("an active agreement already exists between this broker and client")
		}
		if attempt == maxNumberAttempts {
			return fmt.Errorf("creating agreement: no free agreement number after %d attempts: %w", attempt, err)
		}
		s.logger.Warn("agreement number collision, retrying", "agreement_number", a.AgreementNumber, "attempt", attempt)
		a.ID = uuid.Nil
	}
}

// load fetches an agreement and applies the visibility policy for op.
func (s *Service) load(ctx context.Context, actor tenancy.Principal, id uuid.UUID, op access.Operation) (*models.AgencyAgreement, error) {
	var a models.AgencyAgreement
	if err := s.db.WithContext(ctx).
		Preload("Broker").
		Preload("Client").
		First(&a, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("agreement not found")
		}
		return nil, fmt.Errorf("loading agreement: %w", err)
	}
	if err := access.Guard(actor, access.AgreementView, op, target(&a), "agreement"); err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *Service) Get(ctx context.Context, actor tenancy.Principal, id uuid.UUID) (*models.AgencyAgreement, error) {
	return s.load(ctx, actor, id, access.AgreementView)
}

// Suspend moves an ACTIVE agreement to SUSPENDED. A reason is required.
func (s *Service) Suspend(ctx context.Context, actor tenancy.Principal, id uuid.UUID, reason string) (*models.AgencyAgreement, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, apperr.ValidationFields(map[string]string{"reason": "is required"})
	}

	a, err := s.load(ctx, actor, id, access.AgreementSuspend)
	if err != nil {
		return nil, err
	}
	if a.Status != models.AgreementStatusActive {
		return nil, apperr.InvalidTransition("cannot suspend a %s agreement", a.Status)
	}

	now := s.now()
	a.Status = models.AgreementStatusSuspended
	a.SuspendedAt = &now
	a.SuspensionReason = reason

	if err := s.save(ctx, a); err != nil {
		return nil, err
	}
	s.logger.Info("agreement suspended", "agreement_id", a.ID, "reason", reason)
	return a, nil
}

// Reactivate returns a SUSPENDED agreement to ACTIVE, unless its end date
// has passed.
func (s *Service) Reactivate(ctx context.Context, actor tenancy.Principal, id uuid.UUID) (*models.AgencyAgreement, error) {
	a, err := s.load(ctx, actor, id, access.AgreementReactivate)
	if err != nil {
		return nil, err
	}
	if a.Status != models.AgreementStatusSuspended {
		return nil, apperr.InvalidTransition("cannot reactivate a %s agreement", a.Status)
	}
	now := s.now()
	if a.EndDate != nil && a.EndDate.Before(now) {
		return nil, apperr.InvalidTransition("agreement expired on %s", a.EndDate.Format("2006-01-02"))
	}

	active, err := s.HasActiveAgreement(ctx, a.BrokerID, a.ClientID)
	if err != nil {
		return nil, err
	}
	if active {
		return nil, apperr.Conflict("another active agreement exists between this broker and client")
	}

	a.Status = models.AgreementStatusActive
	a.SuspendedAt = nil
	a.SuspensionReason = ""

	if err := s.save(ctx, a); err != nil {
		return nil, err
	}
	s.logger.Info("agreement reactivated", "agreement_id", a.ID)
	return a, nil
}

// Terminate ends an agreement for good and sets its end date to now.
func (s *Service) Terminate(ctx context.Context, actor tenancy.Principal, id uuid.UUID, note string) (*models.AgencyAgreement, error) {
	a, err := s.load(ctx, actor, id, access.AgreementTerminate)
	if err != nil {
		return nil, err
	}
	switch a.Status {
	case models.AgreementStatusActive, models.AgreementStatusSuspended:
	default:
		return nil, apperr.InvalidTransition("cannot terminate a %s agreement", a.Status)
	}

	now := s.now()
	a.Status = models.AgreementStatusTerminated
	a.EndDate = &now
	a.TerminatedAt = &now
	a.TerminationNote = strings.TrimSpace(note)

	if err := s.save(ctx, a); err != nil {
		return nil, err
	}
	s.logger.Info("agreement terminated", "agreement_id", a.ID)
	return a, nil
}

func (s *Service) save(ctx context.Context, a *models.AgencyAgreement) error {
	err := s.db.WithContext(ctx).Omit("Broker", "Client").Save(a).Error
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return apperr.Conflict("another active agreement exists between this broker and client")
		}
		return fmt.Errorf("saving agreement: %w", err)
	}
	return nil
}

// HasActiveAgreement reports whether brokerID may currently transact for
// clientID.
func (s *Service) HasActiveAgreement(ctx context.Context, brokerID, clientID uuid.UUID) (bool, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.AgencyAgreement{}).
		Where("broker_id = ? AND client_id = ? AND status = ?", brokerID, clientID, models.AgreementStatusActive).
		Count(&n).Error
	if err != nil {
		return false, fmt.Errorf("checking agreement: %w", err)
	}
	return n > 0, nil
}

type ListFilter struct {
	BrokerID *uuid.UUID
	ClientID *uuid.UUID
	Status   models.AgreementStatus
}

// List returns the agreements actor may view, newest first.
func (s *Service) List(ctx context.Context, actor tenancy.Principal, f ListFilter) ([]models.AgencyAgreement, error) {
	q := s.db.WithContext(ctx).Model(&models.AgencyAgreement{})

	switch actor.Role {
	case tenancy.RoleSuperAdmin:
	case tenancy.RoleBrokerAdmin:
		own, ok := tenancy.OwnBroker(actor)
		if !ok {
			return nil, nil
		}
		clients := s.db.Model(&models.Company{}).Select("id").Where("parent_broker_id = ?", own)
		q = q.Where("(broker_id = ? OR client_id IN (?))", own, clients)
	case tenancy.RoleBrokerUser:
		own, ok := tenancy.OwnBroker(actor)
		if !ok {
			return nil, nil
		}
		q = q.Where("broker_id = ?", own)
	case tenancy.RoleClientUser:
		q = q.Where("client_id = ?", actor.CompanyID())
	default:
		return nil, nil
	}

	if f.BrokerID != nil {
		q = q.Where("broker_id = ?", *f.BrokerID)
	}
	if f.ClientID != nil {
		q = q.Where("client_id = ?", *f.ClientID)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}

	var out []models.AgencyAgreement
	if err := q.Order("created_at DESC").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("listing agreements: %w", err)
	}
	return out, nil
}

// Package customs manages customs transactions (file work items) filed by a
// broker for a client under an active agency agreement.
package customs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hugh/brokerdesk/internal/access"
	"github.com/hugh/brokerdesk/internal/agreement"
	"github.com/hugh/brokerdesk/internal/apperr"
	"github.com/hugh/brokerdesk/internal/database/models"
	"github.com/hugh/brokerdesk/internal/tenancy"
	"github.com/hugh/brokerdesk/internal/validation"
	"gorm.io/gorm"
)

type Service struct {
	db         *gorm.DB
	agreements *agreement.Service
	now        func() time.Time
	logger     *slog.Logger
}

func NewService(db *gorm.DB, agreements *agreement.Service, logger *slog.Logger) *Service {
	return &Service{db: db, agreements: agreements, now: time.Now, logger: logger}
}

type CreateInput struct {
	FileNo           string
	BrokerID         uuid.UUID
	ClientID         uuid.UUID
	DeclarationNo    string
	CustomsOffice    string
	GoodsDescription string
	DeclaredValue    float64
	Currency         string
	RegistrationDate *time.Time
	WithdrawalDate   *time.Time
}

func validateDates(registered, withdrawn *time.Time, fields map[string]string) {
	if registered != nil && withdrawn != nil && withdrawn.Before(*registered) {
		fields["withdrawal_date"] = "must not be before registration_date"
	}
}

func (in CreateInput) validate() error {
	fields := map[string]string{}
	if fileNo := strings.TrimSpace(in.FileNo); fileNo == "" {
		fields["file_no"] = "is required"
	} else if !validation.IsValidFileNo(fileNo) {
		fields["file_no"] = "may contain letters, digits and . / _ - only"
	}
	if in.Currency != "" && !validation.IsValidCurrency(strings.ToUpper(in.Currency)) {
		fields["currency"] = "must be a 3-letter code"
	}
	if in.BrokerID == uuid.Nil {
		fields["broker_id"] = "is required"
	}
	if in.ClientID == uuid.Nil {
		fields["client_id"] = "is required"
	}
	if in.DeclaredValue < 0 {
		fields["declared_value"] = "must not be negative"
	}
	validateDates(in.RegistrationDate, in.WithdrawalDate, fields)
	if len(fields) > 0 {
		return apperr.ValidationFields(fields)
	}
	return nil
}

// Create files a new PENDING transaction. Preconditions are checked in a
// fixed order and the first failure is returned: file number free, broker
// and client exist with the right kinds, an ACTIVE agreement links them,
// and the actor may create transactions for the broker.
func (s *Service) Create(ctx context.Context, actor tenancy.Principal, in CreateInput) (*models.CustomsTransaction, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	fileNo := strings.TrimSpace(in.FileNo)
	db := s.db.WithContext(ctx)

	var taken int64
	if err := db.Unscoped().Model(&models.CustomsTransaction{}).
		Where("file_no = ?", fileNo).Count(&taken).Error; err != nil {
		return nil, fmt.Errorf("checking file number: %w", err)
	}
	if taken > 0 {
		return nil, apperr.Conflict("file number %q is already in use", fileNo)
	}

	var broker, client models.Company
	if err := db.First(&broker, "id = ?", in.BrokerID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("broker not found")
		}
		return nil, fmt.Errorf("loading broker: %w", err)
	}
	if err := db.First(&client, "id = ?", in.ClientID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("client not found")
		}
		return nil, fmt.Errorf("loading client: %w", err)
	}
	if broker.Type != tenancy.KindBroker {
		return nil, apperr.Validation("company %s is not a customs broker", broker.ID)
	}
	if client.Type != tenancy.KindClient {
		return nil, apperr.Validation("company %s is not a client", client.ID)
	}

	active, err := s.agreements.HasActiveAgreement(ctx, broker.ID, client.ID)
	if err != nil {
		return nil, err
	}
	if !active {
		return nil, apperr.NoActiveAgreement("broker has no active agency agreement with this client")
	}

	if err := access.Require(actor, access.TransactionCreate, access.Target{BrokerID: broker.ID, ClientID: client.ID}); err != nil {
		return nil, err
	}

	txn := &models.CustomsTransaction{
		FileNo:           fileNo,
		BrokerID:         broker.ID,
		ClientID:         client.ID,
		Status:           models.TransactionStatusPending,
		DeclarationNo:    strings.TrimSpace(in.DeclarationNo),
		CustomsOffice:    strings.TrimSpace(in.CustomsOffice),
		GoodsDescription: in.GoodsDescription,
		DeclaredValue:    in.DeclaredValue,
		Currency:         strings.ToUpper(in.Currency),
		RegistrationDate: in.RegistrationDate,
		WithdrawalDate:   in.WithdrawalDate,
		CreatedByID:      actor.UserID,
	}
	if err := db.Create(txn).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, apperr.Conflict("file number %q is already in use", fileNo)
		}
		return nil, fmt.Errorf("creating transaction: %w", err)
	}

	s.logger.Info("transaction created",
		"transaction_id", txn.ID,
		"file_no", txn.FileNo,
		"broker_id", txn.BrokerID,
		"client_id", txn.ClientID,
	)
	return txn, nil
}

func txnTarget(t *models.CustomsTransaction) access.Target {
	return access.Target{BrokerID: t.BrokerID, ClientID: t.ClientID}
}

func (s *Service) load(ctx context.Context, actor tenancy.Principal, id uuid.UUID, op access.Operation) (*models.CustomsTransaction, error) {
	var txn models.CustomsTransaction
	if err := s.db.WithContext(ctx).First(&txn, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("transaction not found")
		}
		return nil, fmt.Errorf("loading transaction: %w", err)
	}
	if err := access.Guard(actor, access.TransactionView, op, txnTarget(&txn), "transaction"); err != nil {
		return nil, err
	}
	return &txn, nil
}

func (s *Service) Get(ctx context.Context, actor tenancy.Principal, id uuid.UUID) (*models.CustomsTransaction, error) {
	return s.load(ctx, actor, id, access.TransactionView)
}

// UpdateInput carries optional field changes; nil leaves a field as is.
type UpdateInput struct {
	DeclarationNo    *string
	CustomsOffice    *string
	GoodsDescription *string
	DeclaredValue    *float64
	Currency         *string
	RegistrationDate *time.Time
	WithdrawalDate   *time.Time
}

// Update edits a PENDING transaction. Editing a completed or cancelled
// transaction fails with apperr.ErrInvalidTransition.
func (s *Service) Update(ctx context.Context, actor tenancy.Principal, id uuid.UUID, in UpdateInput) (*models.CustomsTransaction, error) {
	txn, err := s.load(ctx, actor, id, access.TransactionUpdate)
	if err != nil {
		return nil, err
	}
	if txn.Status != models.TransactionStatusPending {
		return nil, apperr.InvalidTransition("transaction is %s; only PENDING transactions can be edited", txn.Status)
	}

	if in.DeclarationNo != nil {
		txn.DeclarationNo = strings.TrimSpace(*in.DeclarationNo)
	}
	if in.CustomsOffice != nil {
		txn.CustomsOffice = strings.TrimSpace(*in.CustomsOffice)
	}
	if in.GoodsDescription != nil {
		txn.GoodsDescription = *in.GoodsDescription
	}
	if in.DeclaredValue != nil {
		txn.DeclaredValue = *in.DeclaredValue
	}
	if in.Currency != nil {
		txn.Currency = strings.ToUpper(*in.Currency)
	}
	if in.RegistrationDate != nil {
		txn.RegistrationDate = in.RegistrationDate
	}
	if in.WithdrawalDate != nil {
		txn.WithdrawalDate = in.WithdrawalDate
	}

	fields := map[string]string{}
	if txn.Currency != "" && !validation.IsValidCurrency(txn.Currency) {
		fields["currency"] = "must be a 3-letter code"
	}
	if txn.DeclaredValue < 0 {
		fields["declared_value"] = "must not be negative"
	}
	validateDates(txn.RegistrationDate, txn.WithdrawalDate, fields)
	if len(fields) > 0 {
		return nil, apperr.ValidationFields(fields)
	}

	if err := s.db.WithContext(ctx).Save(txn).Error; err != nil {
		return nil, fmt.Errorf("updating transaction: %w", err)
	}
	return txn, nil
}

func canOverwriteFinal(p tenancy.Principal) bool {
	switch p.Role {
	case tenancy.RoleSuperAdmin, tenancy.RoleBrokerAdmin:
		return true
	case tenancy.RoleBrokerUser, tenancy.RoleClientUser:
		return false
	}
	return false
}

// ChangeStatus moves a transaction to COMPLETED or CANCELLED. Leaving a
// final status (overwriting one with the other) is reserved to admins;
// nothing returns to PENDING. Cancelling requires a reason.
func (s *Service) ChangeStatus(ctx context.Context, actor tenancy.Principal, id uuid.UUID, status models.TransactionStatus, reason string) (*models.CustomsTransaction, error) {
	switch status {
	case models.TransactionStatusCompleted, models.TransactionStatusCancelled:
	case models.TransactionStatusPending:
		return nil, apperr.InvalidTransition("transactions cannot return to PENDING")
	default:
		return nil, apperr.ValidationFields(map[string]string{"status": "must be COMPLETED or CANCELLED"})
	}
	reason = strings.TrimSpace(reason)
	if status == models.TransactionStatusCancelled && reason == "" {
		return nil, apperr.ValidationFields(map[string]string{"reason": "is required when cancelling"})
	}

	txn, err := s.load(ctx, actor, id, access.TransactionChangeStatus)
	if err != nil {
		return nil, err
	}
	if txn.Status == status {
		return nil, apperr.InvalidTransition("transaction is already %s", status)
	}
	if txn.Status != models.TransactionStatusPending && !canOverwriteFinal(actor) {
		return nil, apperr.Unauthorized("only administrators can change a %s transaction", txn.Status)
	}

	now := s.now()
	previous := txn.Status
	txn.Status = status
	switch status {
	case models.TransactionStatusCompleted:
		txn.CompletedAt = &now
		txn.CancelReason = ""
	case models.TransactionStatusCancelled:
		txn.CompletedAt = nil
		txn.CancelReason = reason
	}

	if err := s.db.WithContext(ctx).Save(txn).Error; err != nil {
		return nil, fmt.Errorf("changing transaction status: %w", err)
	}

	s.logger.Info("transaction status changed",
		"transaction_id", txn.ID,
		"from", previous,
		"to", status,
		"actor_id", actor.UserID,
	)
	return txn, nil
}

func (s *Service) Complete(ctx context.Context, actor tenancy.Principal, id uuid.UUID) (*models.CustomsTransaction, error) {
	return s.ChangeStatus(ctx, actor, id, models.TransactionStatusCompleted, "")
}

func (s *Service) Cancel(ctx context.Context, actor tenancy.Principal, id uuid.UUID, reason string) (*models.CustomsTransaction, error) {
	return s.ChangeStatus(ctx, actor, id, models.TransactionStatusCancelled, reason)
}

// Delete soft-deletes a transaction. The file number stays reserved.
func (s *Service) Delete(ctx context.Context, actor tenancy.Principal, id uuid.UUID) error {
	txn, err := s.load(ctx, actor, id, access.TransactionDelete)
	if err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Delete(txn).Error; err != nil {
		return fmt.Errorf("deleting transaction: %w", err)
	}
	s.logger.Info("transaction deleted", "transaction_id", txn.ID, "actor_id", actor.UserID)
	return nil
}

type ListFilter struct {
	ClientID *uuid.UUID
	Status   models.TransactionStatus
	Limit    int
	Offset   int
}

// List returns transactions visible to actor: all for super admins, the own
// broker's for staff, the own company's for client users.
func (s *Service) List(ctx context.Context, actor tenancy.Principal, f ListFilter) ([]models.CustomsTransaction, int64, error) {
	q := s.db.WithContext(ctx).Model(&models.CustomsTransaction{})

	switch actor.Role {
	case tenancy.RoleSuperAdmin:
	case tenancy.RoleBrokerAdmin, tenancy.RoleBrokerUser:
		own, ok := tenancy.OwnBroker(actor)
		if !ok {
			return nil, 0, nil
		}
		q = q.Where("broker_id = ?", own)
	case tenancy.RoleClientUser:
		q = q.Where("client_id = ?", actor.CompanyID())
	default:
		return nil, 0, nil
	}

	if f.ClientID != nil {
		q = q.Where("client_id = ?", *f.ClientID)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("counting transactions: %w", err)
	}

	if f.Limit <= 0 || f.Limit > 100 {
		f.Limit = 20
	}
	var out []models.CustomsTransaction
	if err := q.Order("created_at DESC").Limit(f.Limit).Offset(f.Offset).Find(&out).Error; err != nil {
		return nil, 0, fmt.Errorf("listing transactions: %w", err)
	}
	return out, total, nil
}

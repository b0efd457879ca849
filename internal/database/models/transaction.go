package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "PENDING"
	TransactionStatusCompleted TransactionStatus = "COMPLETED"
	TransactionStatusCancelled TransactionStatus = "CANCELLED"
)

// CustomsTransaction is a customs work item owned by a broker on behalf of a client.
type CustomsTransaction struct {
	Base
	FileNo   string            `gorm:"uniqueIndex;not null" json:"file_no"`
	BrokerID uuid.UUID         `gorm:"type:uuid;index;not null" json:"broker_id"`
	ClientID uuid.UUID         `gorm:"type:uuid;index;not null" json:"client_id"`
	Status   TransactionStatus `gorm:"not null;index" json:"status"`

	DeclarationNo    string  `json:"declaration_no,omitempty"`
	CustomsOffice    string  `json:"customs_office,omitempty"`
	GoodsDescription string  `gorm:"type:text" json:"goods_description,omitempty"`
	DeclaredValue    float64 `json:"declared_value,omitempty"`
	Currency         string  `gorm:"size:3" json:"currency,omitempty"`

	RegistrationDate *time.Time `json:"registration_date,omitempty"`
	WithdrawalDate   *time.Time `json:"withdrawal_date,omitempty"`
	ProcessingDays   *int       `json:"processing_days,omitempty"` // derived

	CancelReason string     `json:"cancel_reason,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	CreatedByID  uuid.UUID  `gorm:"type:uuid" json:"created_by_id"`

	// Relationships
	Broker *Company `gorm:"foreignKey:BrokerID" json:"-"`
	Client *Company `gorm:"foreignKey:ClientID" json:"-"`
}

func (CustomsTransaction) TableName() string {
	return "customs_transactions"
}

// BeforeSave recomputes the derived processing time whenever both dates are
// present. Missing either date leaves the stored value untouched.
func (t *CustomsTransaction) BeforeSave(tx *gorm.DB) error {
	if t.RegistrationDate == nil || t.WithdrawalDate == nil {
		return nil
	}
	days := ProcessingDaysBetween(*t.RegistrationDate, *t.WithdrawalDate)
	t.ProcessingDays = &days
	return nil
}

// ProcessingDaysBetween counts calendar days from registration to withdrawal.
func ProcessingDaysBetween(registered, withdrawn time.Time) int {
	r := time.Date(registered.Year(), registered.Month(), registered.Day(), 0, 0, 0, 0, time.UTC)
	w := time.Date(withdrawn.Year(), withdrawn.Month(), withdrawn.Day(), 0, 0, 0, 0, time.UTC)
	return int(w.Sub(r).Hours() / 24)
}

package models

import (
	"time"

	"github.com/google/uuid"
)

type AgreementStatus string

const (
	AgreementStatusActive     AgreementStatus = "ACTIVE"
	AgreementStatusSuspended  AgreementStatus = "SUSPENDED"
	AgreementStatusTerminated AgreementStatus = "TERMINATED" // terminal
)

// AgencyAgreement authorizes a broker to transact on behalf of a client.
// At most one ACTIVE agreement exists per (broker, client); see
// database.AutoMigrate for the partial unique index.
type AgencyAgreement struct {
	Base
	AgreementNumber string          `gorm:"uniqueIndex;not null" json:"agreement_number"`
	BrokerID        uuid.UUID       `gorm:"type:uuid;index;not null" json:"broker_id"`
	ClientID        uuid.UUID       `gorm:"type:uuid;index;not null" json:"client_id"`
	Status          AgreementStatus `gorm:"not null;index" json:"status"`

	StartDate time.Time  `gorm:"not null" json:"start_date"`
	EndDate   *time.Time `json:"end_date,omitempty"`
	Notes     string     `json:"notes,omitempty"`

	SuspendedAt      *time.Time `json:"suspended_at,omitempty"`
	SuspensionReason string     `json:"suspension_reason,omitempty"`
	TerminatedAt     *time.Time `json:"terminated_at,omitempty"`
	TerminationNote  string     `json:"termination_note,omitempty"`

	CreatedByID uuid.UUID `gorm:"type:uuid" json:"created_by_id"`

	// Relationships
	Broker *Company `gorm:"foreignKey:BrokerID" json:"-"`
	Client *Company `gorm:"foreignKey:ClientID" json:"-"`
}

func (AgencyAgreement) TableName() string {
	return "agency_agreements"
}

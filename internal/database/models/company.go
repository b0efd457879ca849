package models

import (
	"github.com/google/uuid"
	"github.com/hugh/brokerdesk/internal/tenancy"
)

// Company is either a customs broker (tenant root) or one of its clients.
type Company struct {
	Base
	Name           string              `gorm:"not null" json:"name"`
	Type           tenancy.CompanyKind `gorm:"not null;index" json:"type"`
	ParentBrokerID *uuid.UUID          `gorm:"type:uuid;index" json:"parent_broker_id,omitempty"`

	Email   string `json:"email,omitempty"`
	Phone   string `json:"phone,omitempty"`
	Address string `json:"address,omitempty"`

	// Customs tax identifier, sealed with pkg/crypto
	SealedTaxID []byte `json:"-"`

	IsActive bool `gorm:"default:true;index" json:"is_active"`

	// Relationships
	ParentBroker *Company `gorm:"foreignKey:ParentBrokerID" json:"-"`
}

func (Company) TableName() string {
	return "companies"
}

// Node converts the record into the hierarchy value used by authorization.
func (c *Company) Node() *tenancy.Company {
	if c == nil {
		return nil
	}
	return &tenancy.Company{
		ID:             c.ID,
		Kind:           c.Type,
		ParentBrokerID: c.ParentBrokerID,
		Active:         c.IsActive,
	}
}

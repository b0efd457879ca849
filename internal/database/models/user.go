package models

import (
	"github.com/google/uuid"
	"github.com/hugh/brokerdesk/internal/tenancy"
)

type User struct {
	Base
	Email        string       `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash string       `gorm:"not null" json:"-"`
	Name         string       `json:"name"`
	Role         tenancy.Role `gorm:"not null;index" json:"role"`
	CompanyID    *uuid.UUID   `gorm:"type:uuid;index" json:"company_id,omitempty"`
	IsActive     bool         `gorm:"default:true;index" json:"is_active"`

	// Relationships
	Company *Company `gorm:"foreignKey:CompanyID" json:"company,omitempty"`
}

func (User) TableName() string {
	return "users"
}

// Principal builds the acting identity. Company must be preloaded for
// company-affiliated users.
func (u *User) Principal() tenancy.Principal {
	return tenancy.Principal{
		UserID:  u.ID,
		Role:    u.Role,
		Company: u.Company.Node(),
	}
}

package models

import (
	"time"

	"github.com/google/uuid"
)

// SubscriptionPlan is a catalog tier with hard caps on staff and clients.
type SubscriptionPlan struct {
	Base
	Name        string `gorm:"uniqueIndex;not null" json:"name"`
	Description string `json:"description,omitempty"`
	MaxStaff    int    `gorm:"not null" json:"max_staff"`
	MaxClients  int    `gorm:"not null" json:"max_clients"`

	// Pricing metadata, minor currency units
	MonthlyPrice int64  `json:"monthly_price"`
	Currency     string `gorm:"size:3;default:'USD'" json:"currency"`

	IsActive bool `gorm:"default:true" json:"is_active"`
}

func (SubscriptionPlan) TableName() string {
	return "subscription_plans"
}

// BrokerSubscription binds a broker to a plan for [StartDate, EndDate).
// Custom caps, when set, take precedence over the plan's.
type BrokerSubscription struct {
	Base
	BrokerID  uuid.UUID  `gorm:"type:uuid;index;not null" json:"broker_id"`
	PlanID    uuid.UUID  `gorm:"type:uuid;index;not null" json:"plan_id"`
	StartDate time.Time  `gorm:"not null" json:"start_date"`
	EndDate   *time.Time `gorm:"index" json:"end_date,omitempty"`
	IsActive  bool       `gorm:"index" json:"is_active"`

	CustomMaxStaff   *int `json:"custom_max_staff,omitempty"`
	CustomMaxClients *int `json:"custom_max_clients,omitempty"`

	CancelledAt *time.Time `json:"cancelled_at,omitempty"`

	// Relationships
	Plan   *SubscriptionPlan `gorm:"foreignKey:PlanID" json:"plan,omitempty"`
	Broker *Company          `gorm:"foreignKey:BrokerID" json:"-"`
}

func (BrokerSubscription) TableName() string {
	return "broker_subscriptions"
}

// ActiveAt reports isActive && (end == nil || end > now).
func (s *BrokerSubscription) ActiveAt(now time.Time) bool {
	return s.IsActive && (s.EndDate == nil || s.EndDate.After(now))
}

// EffectiveMaxStaff returns the override if present, else the plan's cap.
func (s *BrokerSubscription) EffectiveMaxStaff() int {
	if s.CustomMaxStaff != nil {
		return *s.CustomMaxStaff
	}
	if s.Plan == nil {
		return 0
	}
	return s.Plan.MaxStaff
}

// EffectiveMaxClients returns the override if present, else the plan's cap.
func (s *BrokerSubscription) EffectiveMaxClients() int {
	if s.CustomMaxClients != nil {
		return *s.CustomMaxClients
	}
	if s.Plan == nil {
		return 0
	}
	return s.Plan.MaxClients
}

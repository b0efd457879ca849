package models

import (
	"time"

	"github.com/google/uuid"
)

// UsageTracking holds the live staff/client counters of one broker. Only the
// quota tracker writes it.
type UsageTracking struct {
	BrokerID         uuid.UUID  `gorm:"type:uuid;primaryKey" json:"broker_id"`
	CurrentStaff     int        `gorm:"not null;default:0" json:"current_staff"`
	CurrentClients   int        `gorm:"not null;default:0" json:"current_clients"`
	LastReconciledAt *time.Time `json:"last_reconciled_at,omitempty"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

func (UsageTracking) TableName() string {
	return "usage_tracking"
}

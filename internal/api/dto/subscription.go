package dto

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/hugh/brokerdesk/internal/quota"
	"github.com/hugh/brokerdesk/internal/subscription"
)

type PlanRequest struct {
	Name         string `json:"name"`
	Description  string `json:"description,omitempty"`
	MaxStaff     int    `json:"max_staff"`
	MaxClients   int    `json:"max_clients"`
	MonthlyPrice int64  `json:"monthly_price"`
	Currency     string `json:"currency,omitempty"`
	IsActive     *bool  `json:"is_active,omitempty"`
}

func (r PlanRequest) Input() subscription.PlanInput {
	return subscription.PlanInput{
		Name:         r.Name,
		Description:  r.Description,
		MaxStaff:     r.MaxStaff,
		MaxClients:   r.MaxClients,
		MonthlyPrice: r.MonthlyPrice,
		Currency:     r.Currency,
		IsActive:     r.IsActive,
	}
}

type SubscribeRequest struct {
	PlanID           uuid.UUID  `json:"plan_id"`
	StartDate        *time.Time `json:"start_date,omitempty"`
	EndDate          *time.Time `json:"end_date,omitempty"`
	CustomMaxStaff   *int       `json:"custom_max_staff,omitempty"`
	CustomMaxClients *int       `json:"custom_max_clients,omitempty"`
}

func (r SubscribeRequest) Input() subscription.SubscribeInput {
	return subscription.SubscribeInput{
		PlanID:           r.PlanID,
		StartDate:        r.StartDate,
		EndDate:          r.EndDate,
		CustomMaxStaff:   r.CustomMaxStaff,
		CustomMaxClients: r.CustomMaxClients,
	}
}

type QuotaResponse struct {
	BrokerID         string `json:"broker_id"`
	HasSubscription  bool   `json:"has_subscription"`
	MaxStaff         int    `json:"max_staff"`
	CurrentStaff     int    `json:"current_staff"`
	RemainingStaff   int    `json:"remaining_staff"`
	MaxClients       int    `json:"max_clients"`
	CurrentClients   int    `json:"current_clients"`
	RemainingClients int    `json:"remaining_clients"`
	DaysUntilExpiry  *int   `json:"days_until_expiry,omitempty"`
}

func NewQuotaResponse(s *quota.Snapshot) QuotaResponse {
	return QuotaResponse{
		BrokerID:         s.BrokerID.String(),
		HasSubscription:  s.HasSubscription,
		MaxStaff:         s.MaxStaff,
		CurrentStaff:     s.CurrentStaff,
		RemainingStaff:   s.RemainingStaff(),
		MaxClients:       s.MaxClients,
		CurrentClients:   s.CurrentClients,
		RemainingClients: s.RemainingClients(),
		DaysUntilExpiry:  s.DaysUntilExpiry,
	}
}

type ReconcileResponse struct {
	TaskID string `json:"task_id"`
	Queue  string `json:"queue"`
}

type TaskStatusResponse struct {
	TaskID  string          `json:"task_id"`
	State   string          `json:"state"`
	Retried int             `json:"retried"`
	LastErr string          `json:"last_error,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
}

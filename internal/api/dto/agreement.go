package dto

import (
	"time"

	"github.com/google/uuid"
	"github.com/hugh/brokerdesk/internal/agreement"
)

type CreateAgreementRequest struct {
	BrokerID  uuid.UUID  `json:"broker_id"`
	ClientID  uuid.UUID  `json:"client_id"`
	StartDate *time.Time `json:"start_date,omitempty"`
	EndDate   *time.Time `json:"end_date,omitempty"`
	Notes     string     `json:"notes,omitempty"`
}

func (r CreateAgreementRequest) Validate() map[string]string {
	errors := make(map[string]string)
	if r.BrokerID == uuid.Nil {
		errors["broker_id"] = "Broker is required"
	}
	if r.ClientID == uuid.Nil {
		errors["client_id"] = "Client is required"
	}
	return errors
}

func (r CreateAgreementRequest) Input() agreement.CreateInput {
	return agreement.CreateInput{
		BrokerID:  r.BrokerID,
		ClientID:  r.ClientID,
		StartDate: r.StartDate,
		EndDate:   r.EndDate,
		Notes:     r.Notes,
	}
}

// ReasonRequest carries the free-text reason for suspend, terminate and
// cancel transitions.
type ReasonRequest struct {
	Reason string `json:"reason"`
}

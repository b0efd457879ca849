package dto

import (
	"github.com/google/uuid"
	"github.com/hugh/brokerdesk/internal/company"
)

type CreateCompanyRequest struct {
	Name     string     `json:"name"`
	Type     string     `json:"type"`
	Email    string     `json:"email,omitempty"`
	Phone    string     `json:"phone,omitempty"`
	Address  string     `json:"address,omitempty"`
	TaxID    string     `json:"tax_id,omitempty"`
	ParentID *uuid.UUID `json:"parent_broker_id,omitempty"`
}

func (r CreateCompanyRequest) Input() company.Input {
	return company.Input{
		Name:     r.Name,
		Email:    r.Email,
		Phone:    r.Phone,
		Address:  r.Address,
		TaxID:    r.TaxID,
		ParentID: r.ParentID,
	}
}

type UpdateCompanyRequest struct {
	Name    *string `json:"name,omitempty"`
	Email   *string `json:"email,omitempty"`
	Phone   *string `json:"phone,omitempty"`
	Address *string `json:"address,omitempty"`
	TaxID   *string `json:"tax_id,omitempty"`
}

func (r UpdateCompanyRequest) Input() company.UpdateInput {
	return company.UpdateInput{
		Name:    r.Name,
		Email:   r.Email,
		Phone:   r.Phone,
		Address: r.Address,
		TaxID:   r.TaxID,
	}
}

type TaxIDResponse struct {
	TaxID string `json:"tax_id"`
}

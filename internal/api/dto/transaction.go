package dto

import (
	"time"

	"github.com/google/uuid"
	"github.com/hugh/brokerdesk/internal/customs"
)

type CreateTransactionRequest struct {
	FileNo           string     `json:"file_no"`
	BrokerID         uuid.UUID  `json:"broker_id"`
	ClientID         uuid.UUID  `json:"client_id"`
	DeclarationNo    string     `json:"declaration_no,omitempty"`
	CustomsOffice    string     `json:"customs_office,omitempty"`
	GoodsDescription string     `json:"goods_description,omitempty"`
	DeclaredValue    float64    `json:"declared_value,omitempty"`
	Currency         string     `json:"currency,omitempty"`
	RegistrationDate *time.Time `json:"registration_date,omitempty"`
	WithdrawalDate   *time.Time `json:"withdrawal_date,omitempty"`
}

func (r CreateTransactionRequest) Input() customs.CreateInput {
	return customs.CreateInput{
		FileNo:           r.FileNo,
		BrokerID:         r.BrokerID,
		ClientID:         r.ClientID,
		DeclarationNo:    r.DeclarationNo,
		CustomsOffice:    r.CustomsOffice,
		GoodsDescription: r.GoodsDescription,
		DeclaredValue:    r.DeclaredValue,
		Currency:         r.Currency,
		RegistrationDate: r.RegistrationDate,
		WithdrawalDate:   r.WithdrawalDate,
	}
}

type UpdateTransactionRequest struct {
	DeclarationNo    *string    `json:"declaration_no,omitempty"`
	CustomsOffice    *string    `json:"customs_office,omitempty"`
	GoodsDescription *string    `json:"goods_description,omitempty"`
	DeclaredValue    *float64   `json:"declared_value,omitempty"`
	Currency         *string    `json:"currency,omitempty"`
	RegistrationDate *time.Time `json:"registration_date,omitempty"`
	WithdrawalDate   *time.Time `json:"withdrawal_date,omitempty"`
}

func (r UpdateTransactionRequest) Input() customs.UpdateInput {
	return customs.UpdateInput{
		DeclarationNo:    r.DeclarationNo,
		CustomsOffice:    r.CustomsOffice,
		GoodsDescription: r.GoodsDescription,
		DeclaredValue:    r.DeclaredValue,
		Currency:         r.Currency,
		RegistrationDate: r.RegistrationDate,
		WithdrawalDate:   r.WithdrawalDate,
	}
}

type ChangeStatusRequest struct {
	Status string `json:"status"`
	Reason string `json:"reason,omitempty"`
}

package dto

import (
	"github.com/google/uuid"
	"github.com/hugh/brokerdesk/internal/tenancy"
	"github.com/hugh/brokerdesk/internal/user"
)

type CreateUserRequest struct {
	Email     string     `json:"email"`
	Password  string     `json:"password"`
	Name      string     `json:"name"`
	Role      string     `json:"role"`
	CompanyID *uuid.UUID `json:"company_id,omitempty"`
}

func (r CreateUserRequest) Input() user.CreateInput {
	return user.CreateInput{
		Email:     r.Email,
		Password:  r.Password,
		Name:      r.Name,
		Role:      tenancy.Role(r.Role),
		CompanyID: r.CompanyID,
	}
}

type EditUserRequest struct {
	Name     *string `json:"name,omitempty"`
	Email    *string `json:"email,omitempty"`
	Password *string `json:"password,omitempty"`
}

func (r EditUserRequest) Input() user.EditInput {
	return user.EditInput{Name: r.Name, Email: r.Email, Password: r.Password}
}

// Package tenancy models the broker/client hierarchy and the roles principals
// hold in it. Everything here is pure: callers load records from storage and
// ask questions about them.
package tenancy

import "github.com/google/uuid"

// Role is the global role of a principal. The set is closed; Valid reports
// membership.
type Role string

const (
	RoleSuperAdmin  Role = "SUPER_ADMIN"
	RoleBrokerAdmin Role = "BROKER_ADMIN"
	RoleBrokerUser  Role = "BROKER_USER"
	RoleClientUser  Role = "CLIENT_USER"
)

// Roles lists every role in a stable order.
var Roles = []Role{RoleSuperAdmin, RoleBrokerAdmin, RoleBrokerUser, RoleClientUser}

func (r Role) Valid() bool {
	switch r {
	case RoleSuperAdmin, RoleBrokerAdmin, RoleBrokerUser, RoleClientUser:
		return true
	}
	return false
}

// IsStaff reports whether the role counts against a broker's staff quota.
func (r Role) IsStaff() bool {
	return r == RoleBrokerAdmin || r == RoleBrokerUser
}

// CompanyKind distinguishes tenant roots from their clients.
type CompanyKind string

const (
	KindBroker CompanyKind = "CUSTOMS_BROKER"
	KindClient CompanyKind = "CLIENT"
)

func (k CompanyKind) Valid() bool {
	return k == KindBroker || k == KindClient
}

// Company is a node of the two-level hierarchy. A broker has no parent; a
// client's ParentBrokerID names its broker.
type Company struct {
	ID             uuid.UUID
	Kind           CompanyKind
	ParentBrokerID *uuid.UUID
	Active         bool
}

func (c *Company) IsBroker() bool { return c != nil && c.Kind == KindBroker }
func (c *Company) IsClient() bool { return c != nil && c.Kind == KindClient }

// Principal is the acting identity. Company is nil for super admins.
type Principal struct {
	UserID  uuid.UUID
	Role    Role
	Company *Company
}

// CompanyID returns the principal's company id, or uuid.Nil.
func (p Principal) CompanyID() uuid.UUID {
	if p.Company == nil {
		return uuid.Nil
	}
	return p.Company.ID
}

package access

import (
	"github.com/google/uuid"
	"github.com/hugh/brokerdesk/internal/tenancy"
	"github.com/hugh/brokerdesk/pkg/metrics"
)

// Authorize evaluates op for p against t. Super admins are allowed
// everything; an unrecognized role or operation is denied.
func Authorize(p tenancy.Principal, op Operation, t Target) Decision {
	d := decide(p, op, t)
	result := "deny"
	if d.Allowed {
		result = "allow"
	}
	metrics.AccessDecisionsTotal.WithLabelValues(string(op), result).Inc()
	return d
}

func decide(p tenancy.Principal, op Operation, t Target) Decision {
	switch p.Role {
	case tenancy.RoleSuperAdmin:
		return allow(ReasonSuperAdmin)
	case tenancy.RoleBrokerAdmin, tenancy.RoleBrokerUser, tenancy.RoleClientUser:
	default:
		return deny(ReasonUnknownRole)
	}

	switch op {
	case CompanyCreateBroker, CompanyCreateClient, CompanyUpdate, CompanyDelete, CompanyView:
		return companyRule(p, op, t)
	case UserCreate, UserEdit, UserDelete, UserView:
		return userRule(p, op, t)
	case TransactionCreate, TransactionUpdate, TransactionChangeStatus, TransactionDelete, TransactionView:
		return transactionRule(p, op, t)
	case AgreementCreate, AgreementSuspend, AgreementTerminate, AgreementReactivate, AgreementView:
		return agreementRule(p, op, t)
	case QuotaView, SubscriptionView, SubscriptionManage:
		return subscriptionRule(p, op, t)
	}
	return deny(ReasonUnknownOp)
}

func adminOf(p tenancy.Principal, c *tenancy.Company) Decision {
	if c == nil {
		return deny(ReasonMissingTarget)
	}
	if tenancy.IsAdminOfCompany(p, c) {
		return allow(ReasonAllow)
	}
	return deny(ReasonNotAdmin)
}

func ownBrokerIs(p tenancy.Principal, brokerID uuid.UUID) bool {
	own, ok := tenancy.OwnBroker(p)
	return ok && own == brokerID
}

func companyRule(p tenancy.Principal, op Operation, t Target) Decision {
	switch op {
	case CompanyCreateBroker:
		return deny(ReasonRoleDenied)

	case CompanyCreateClient:
		switch p.Role {
		case tenancy.RoleBrokerAdmin:
			if !t.Company.IsBroker() {
				return deny(ReasonMissingTarget)
			}
			if !ownBrokerIs(p, t.Company.ID) {
				return deny(ReasonOutsideTenant)
			}
			return allow(ReasonAllow)
		case tenancy.RoleBrokerUser, tenancy.RoleClientUser:
			return deny(ReasonRoleDenied)
		}

	case CompanyUpdate, CompanyDelete:
		switch p.Role {
		case tenancy.RoleBrokerAdmin:
			return adminOf(p, t.Company)
		case tenancy.RoleBrokerUser, tenancy.RoleClientUser:
			return deny(ReasonRoleDenied)
		}

	case CompanyView:
		if t.Company == nil {
			return deny(ReasonMissingTarget)
		}
		switch p.Role {
		case tenancy.RoleBrokerAdmin, tenancy.RoleBrokerUser:
			if tenancy.SameSubtree(p.Company, t.Company) {
				return allow(ReasonAllow)
			}
			return deny(ReasonOutsideTenant)
		case tenancy.RoleClientUser:
			if p.Company != nil && p.Company.ID == t.Company.ID {
				return allow(ReasonAllow)
			}
			return deny(ReasonOutsideTenant)
		}
	}
	return deny(ReasonUnknownOp)
}

func isSelf(p tenancy.Principal, t Target) bool {
	return t.User != nil && t.User.UserID == p.UserID
}

func userRule(p tenancy.Principal, op Operation, t Target) Decision {
	switch op {
	case UserCreate:
		switch p.Role {
		case tenancy.RoleBrokerAdmin:
			switch t.Role {
			case tenancy.RoleBrokerUser:
				if !t.Company.IsBroker() {
					return deny(ReasonMissingTarget)
				}
				if !ownBrokerIs(p, t.Company.ID) {
					return deny(ReasonOutsideTenant)
				}
				return allow(ReasonAllow)
			case tenancy.RoleClientUser:
				if !t.Company.IsClient() {
					return deny(ReasonMissingTarget)
				}
				return adminOf(p, t.Company)
			case tenancy.RoleSuperAdmin, tenancy.RoleBrokerAdmin:
				return deny(ReasonRoleNotGranted)
			}
			return deny(ReasonUnknownRole)
		case tenancy.RoleBrokerUser, tenancy.RoleClientUser:
			return deny(ReasonRoleDenied)
		}

	case UserEdit:
		if isSelf(p, t) {
			return allow(ReasonSelf)
		}
		switch p.Role {
		case tenancy.RoleBrokerAdmin:
			if t.User == nil {
				return deny(ReasonMissingTarget)
			}
			return adminOf(p, t.User.Company)
		case tenancy.RoleBrokerUser, tenancy.RoleClientUser:
			return deny(ReasonRoleDenied)
		}

	case UserDelete:
		switch p.Role {
		case tenancy.RoleBrokerAdmin:
			if t.User == nil {
				return deny(ReasonMissingTarget)
			}
			return adminOf(p, t.User.Company)
		case tenancy.RoleBrokerUser, tenancy.RoleClientUser:
			return deny(ReasonRoleDenied)
		}

	case UserView:
		if isSelf(p, t) {
			return allow(ReasonSelf)
		}
		if t.User == nil || t.User.Company == nil {
			return deny(ReasonOutsideTenant)
		}
		switch p.Role {
		case tenancy.RoleBrokerAdmin, tenancy.RoleBrokerUser:
			if tenancy.SameSubtree(p.Company, t.User.Company) {
				return allow(ReasonAllow)
			}
			return deny(ReasonOutsideTenant)
		case tenancy.RoleClientUser:
			if p.Company != nil && p.Company.ID == t.User.Company.ID {
				return allow(ReasonAllow)
			}
			return deny(ReasonOutsideTenant)
		}
	}
	return deny(ReasonUnknownOp)
}

func transactionRule(p tenancy.Principal, op Operation, t Target) Decision {
	switch p.Role {
	case tenancy.RoleClientUser:
		if op == TransactionView && p.Company != nil && p.Company.ID == t.ClientID {
			return allow(ReasonAllow)
		}
		if op == TransactionView {
			return deny(ReasonOutsideTenant)
		}
		return deny(ReasonRoleDenied)

	case tenancy.RoleBrokerUser:
		if op == TransactionDelete {
			return deny(ReasonRoleDenied)
		}
		if ownBrokerIs(p, t.BrokerID) {
			return allow(ReasonAllow)
		}
		return deny(ReasonOutsideTenant)

	case tenancy.RoleBrokerAdmin:
		if ownBrokerIs(p, t.BrokerID) {
			return allow(ReasonAllow)
		}
		return deny(ReasonOutsideTenant)
	}
	return deny(ReasonUnknownRole)
}

func agreementRule(p tenancy.Principal, op Operation, t Target) Decision {
	if op == AgreementView {
		switch p.Role {
		case tenancy.RoleBrokerAdmin:
			if t.Broker != nil && tenancy.IsAdminOfCompany(p, t.Broker) {
				return allow(ReasonAllow)
			}
			if t.Client != nil && tenancy.IsAdminOfCompany(p, t.Client) {
				return allow(ReasonAllow)
			}
			return deny(ReasonOutsideTenant)
		case tenancy.RoleBrokerUser:
			if t.Broker != nil && ownBrokerIs(p, t.Broker.ID) {
				return allow(ReasonAllow)
			}
			return deny(ReasonOutsideTenant)
		case tenancy.RoleClientUser:
			if t.Client != nil && p.Company != nil && p.Company.ID == t.Client.ID {
				return allow(ReasonAllow)
			}
			return deny(ReasonOutsideTenant)
		}
		return deny(ReasonUnknownRole)
	}

	switch p.Role {
	case tenancy.RoleBrokerAdmin:
		return adminOf(p, t.Broker)
	case tenancy.RoleBrokerUser, tenancy.RoleClientUser:
		return deny(ReasonRoleDenied)
	}
	return deny(ReasonUnknownRole)
}

func subscriptionRule(p tenancy.Principal, op Operation, t Target) Decision {
	switch op {
	case SubscriptionManage:
		return deny(ReasonRoleDenied)
	case QuotaView:
		if tenancy.IsAuthorizedForBroker(p, t.BrokerID) {
			return allow(ReasonAllow)
		}
		if p.Role == tenancy.RoleClientUser {
			return deny(ReasonRoleDenied)
		}
		return deny(ReasonOutsideTenant)
	case SubscriptionView:
		switch p.Role {
		case tenancy.RoleBrokerAdmin:
			if ownBrokerIs(p, t.BrokerID) {
				return allow(ReasonAllow)
			}
			return deny(ReasonOutsideTenant)
		case tenancy.RoleBrokerUser, tenancy.RoleClientUser:
			return deny(ReasonRoleDenied)
		}
	}
	return deny(ReasonUnknownOp)
}

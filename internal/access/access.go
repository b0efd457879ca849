// Package access decides whether a principal may perform an operation on a
// company, user, agreement or customs transaction. Decisions are values; a
// deny is never an error until the caller turns it into one.
package access

import (
	"github.com/google/uuid"
	"github.com/hugh/brokerdesk/internal/tenancy"
)

type Operation string

const (
	CompanyCreateBroker Operation = "company.create_broker"
	CompanyCreateClient Operation = "company.create_client"
	CompanyUpdate       Operation = "company.update"
	CompanyDelete       Operation = "company.delete"
	CompanyView         Operation = "company.view"

	UserCreate Operation = "user.create"
	UserEdit   Operation = "user.edit"
	UserDelete Operation = "user.delete"
	UserView   Operation = "user.view"

	TransactionCreate       Operation = "transaction.create"
	TransactionUpdate       Operation = "transaction.update"
	TransactionChangeStatus Operation = "transaction.change_status"
	TransactionDelete       Operation = "transaction.delete"
	TransactionView         Operation = "transaction.view"

	AgreementCreate     Operation = "agreement.create"
	AgreementSuspend    Operation = "agreement.suspend"
	AgreementTerminate  Operation = "agreement.terminate"
	AgreementReactivate Operation = "agreement.reactivate"
	AgreementView       Operation = "agreement.view"

	QuotaView          Operation = "quota.view"
	SubscriptionManage Operation = "subscription.manage"
	SubscriptionView   Operation = "subscription.view"
)

const (
	ReasonSuperAdmin     = "SUPER_ADMIN"
	ReasonAllow          = "RULE_ALLOW"
	ReasonSelf           = "SELF"
	ReasonRoleDenied     = "ROLE_DENIED"
	ReasonOutsideTenant  = "OUTSIDE_TENANT"
	ReasonNotAdmin       = "NOT_ADMIN_OF_TARGET"
	ReasonMissingTarget  = "MISSING_TARGET"
	ReasonUnknownRole    = "UNKNOWN_ROLE"
	ReasonUnknownOp      = "UNKNOWN_OPERATION"
	ReasonRoleNotGranted = "ROLE_NOT_GRANTABLE"
)

type Decision struct {
	Allowed bool
	Reason  string
}

func allow(reason string) Decision { return Decision{Allowed: true, Reason: reason} }
func deny(reason string) Decision  { return Decision{Allowed: false, Reason: reason} }

// Target describes the resource an operation acts on. Each operation reads
// only the fields it needs:
//
//   - company operations: Company (for create_client, the intended parent)
//   - user operations: User (existing target) or Role+Company (creation)
//   - transaction operations: BrokerID, ClientID
//   - agreement operations: Broker, Client
//   - quota/subscription operations: BrokerID
type Target struct {
	Company *tenancy.Company
	User    *tenancy.Principal
	Role    tenancy.Role

	Broker *tenancy.Company
	Client *tenancy.Company

	BrokerID uuid.UUID
	ClientID uuid.UUID
}

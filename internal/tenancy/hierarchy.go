package tenancy

import "github.com/google/uuid"

func IsSuperAdmin(p Principal) bool  { return p.Role == RoleSuperAdmin }
func IsBrokerAdmin(p Principal) bool { return p.Role == RoleBrokerAdmin }
func IsBrokerUser(p Principal) bool  { return p.Role == RoleBrokerUser }
func IsClientUser(p Principal) bool  { return p.Role == RoleClientUser }
func IsBrokerStaff(p Principal) bool { return p.Role.IsStaff() }

// BrokerOf resolves the broker at the root of c's subtree in one hop. It
// returns false for a nil company, an unknown kind, or a client without a
// parent.
func BrokerOf(c *Company) (uuid.UUID, bool) {
	if c == nil {
		return uuid.Nil, false
	}
	switch c.Kind {
	case KindBroker:
		return c.ID, true
	case KindClient:
		if c.ParentBrokerID == nil || *c.ParentBrokerID == uuid.Nil {
			return uuid.Nil, false
		}
		return *c.ParentBrokerID, true
	}
	return uuid.Nil, false
}

// OwnBroker returns the broker the principal belongs to, if any.
func OwnBroker(p Principal) (uuid.UUID, bool) {
	return BrokerOf(p.Company)
}

// IsAdminOfCompany is the authority check every higher rule builds on: super
// admins administer everything, a broker admin administers its broker and
// that broker's clients. It never panics and answers false for malformed
// input.
func IsAdminOfCompany(p Principal, c *Company) bool {
	switch p.Role {
	case RoleSuperAdmin:
		return true
	case RoleBrokerAdmin:
		own, ok := OwnBroker(p)
		if !ok {
			return false
		}
		target, ok := BrokerOf(c)
		return ok && target == own
	case RoleBrokerUser, RoleClientUser:
		return false
	}
	return false
}

// IsAuthorizedForBroker reports whether p is a super admin or staff of brokerID.
func IsAuthorizedForBroker(p Principal, brokerID uuid.UUID) bool {
	switch p.Role {
	case RoleSuperAdmin:
		return true
	case RoleBrokerAdmin, RoleBrokerUser:
		own, ok := OwnBroker(p)
		return ok && brokerID != uuid.Nil && own == brokerID
	case RoleClientUser:
		return false
	}
	return false
}

// SameSubtree reports whether two companies hang off the same broker.
func SameSubtree(a, b *Company) bool {
	ba, ok := BrokerOf(a)
	if !ok {
		return false
	}
	bb, ok := BrokerOf(b)
	return ok && ba == bb
}

// ValidateAffiliation checks the principal/company invariant: super admins
// have no company, staff belong to a broker, client users to a client.
func ValidateAffiliation(role Role, c *Company) bool {
	switch role {
	case RoleSuperAdmin:
		return c == nil
	case RoleBrokerAdmin, RoleBrokerUser:
		return c.IsBroker()
	case RoleClientUser:
		if !c.IsClient() {
			return false
		}
		_, ok := BrokerOf(c)
		return ok
	}
	return false
}

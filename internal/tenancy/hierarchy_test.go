package tenancy

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func broker() *Company {
	return &Company{ID: uuid.New(), Kind: KindBroker, Active: true}
}

func clientOf(b *Company) *Company {
	id := b.ID
	return &Company{ID: uuid.New(), Kind: KindClient, ParentBrokerID: &id, Active: true}
}

func TestBrokerOf(t *testing.T) {
	b := broker()
	c := clientOf(b)

	got, ok := BrokerOf(b)
	assert.True(t, ok)
	assert.Equal(t, b.ID, got)

	got, ok = BrokerOf(c)
	assert.True(t, ok)
	assert.Equal(t, b.ID, got)

	_, ok = BrokerOf(nil)
	assert.False(t, ok)

	_, ok = BrokerOf(&Company{ID: uuid.New(), Kind: KindClient})
	assert.False(t, ok, "orphan client has no broker")

	nilID := uuid.Nil
	_, ok = BrokerOf(&Company{ID: uuid.New(), Kind: KindClient, ParentBrokerID: &nilID})
	assert.False(t, ok)

	_, ok = BrokerOf(&Company{ID: uuid.New(), Kind: "SHIPPER"})
	assert.False(t, ok)
}

func TestIsAdminOfCompany(t *testing.T) {
	b1 := broker()
	b2 := broker()
	c1 := clientOf(b1)
	c2 := clientOf(b2)
	orphan := &Company{ID: uuid.New(), Kind: KindClient}

	super := Principal{UserID: uuid.New(), Role: RoleSuperAdmin}
	admin := Principal{UserID: uuid.New(), Role: RoleBrokerAdmin, Company: b1}
	user := Principal{UserID: uuid.New(), Role: RoleBrokerUser, Company: b1}
	clientUser := Principal{UserID: uuid.New(), Role: RoleClientUser, Company: c1}
	adminWithoutCompany := Principal{UserID: uuid.New(), Role: RoleBrokerAdmin}

	t.Run("super admin administers everything", func(t *testing.T) {
		for _, c := range []*Company{b1, b2, c1, c2, orphan, nil} {
			assert.True(t, IsAdminOfCompany(super, c))
		}
	})

	t.Run("broker admin scoped to own subtree", func(t *testing.T) {
		assert.True(t, IsAdminOfCompany(admin, b1))
		assert.True(t, IsAdminOfCompany(admin, c1))
		assert.False(t, IsAdminOfCompany(admin, b2))
		assert.False(t, IsAdminOfCompany(admin, c2))
		assert.False(t, IsAdminOfCompany(admin, orphan))
		assert.False(t, IsAdminOfCompany(admin, nil))
	})

	t.Run("non admins never administer", func(t *testing.T) {
		assert.False(t, IsAdminOfCompany(user, b1))
		assert.False(t, IsAdminOfCompany(clientUser, c1))
		assert.False(t, IsAdminOfCompany(adminWithoutCompany, b1))
		assert.False(t, IsAdminOfCompany(Principal{Role: "AUDITOR", Company: b1}, b1))
	})
}

func TestIsAuthorizedForBroker(t *testing.T) {
	b1 := broker()
	b2 := broker()
	c1 := clientOf(b1)

	assert.True(t, IsAuthorizedForBroker(Principal{Role: RoleSuperAdmin}, b2.ID))
	assert.True(t, IsAuthorizedForBroker(Principal{Role: RoleBrokerAdmin, Company: b1}, b1.ID))
	assert.True(t, IsAuthorizedForBroker(Principal{Role: RoleBrokerUser, Company: b1}, b1.ID))
	assert.False(t, IsAuthorizedForBroker(Principal{Role: RoleBrokerUser, Company: b1}, b2.ID))
	assert.False(t, IsAuthorizedForBroker(Principal{Role: RoleClientUser, Company: c1}, b1.ID))
	assert.False(t, IsAuthorizedForBroker(Principal{Role: RoleBrokerUser, Company: b1}, uuid.Nil))
}

func TestValidateAffiliation(t *testing.T) {
	b := broker()
	c := clientOf(b)

	assert.True(t, ValidateAffiliation(RoleSuperAdmin, nil))
	assert.False(t, ValidateAffiliation(RoleSuperAdmin, b))
	assert.True(t, ValidateAffiliation(RoleBrokerAdmin, b))
	assert.False(t, ValidateAffiliation(RoleBrokerUser, c))
	assert.True(t, ValidateAffiliation(RoleClientUser, c))
	assert.False(t, ValidateAffiliation(RoleClientUser, b))
	assert.False(t, ValidateAffiliation(RoleClientUser, &Company{ID: uuid.New(), Kind: KindClient}))
	assert.False(t, ValidateAffiliation("GUEST", b))
}

func TestRolePredicates(t *testing.T) {
	for _, r := range Roles {
		assert.True(t, r.Valid())
	}
	assert.False(t, Role("OWNER").Valid())

	p := Principal{Role: RoleBrokerUser}
	assert.True(t, IsBrokerStaff(p))
	assert.True(t, IsBrokerUser(p))
	assert.False(t, IsBrokerAdmin(p))
	assert.False(t, IsSuperAdmin(p))
	assert.False(t, IsClientUser(p))
	assert.Equal(t, uuid.Nil, p.CompanyID())
}

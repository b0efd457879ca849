package access

import (
	"testing"

	"github.com/google/uuid"
	"github.com/hugh/brokerdesk/internal/apperr"
	"github.com/hugh/brokerdesk/internal/tenancy"
	"github.com/stretchr/testify/assert"
)

type world struct {
	b1, b2   *tenancy.Company
	c1, c2   *tenancy.Company // c1 under b1, c2 under b2
	super    tenancy.Principal
	admin1   tenancy.Principal
	user1    tenancy.Principal
	client1  tenancy.Principal
	admin2   tenancy.Principal
	orphaned *tenancy.Company
}

func newWorld() world {
	b1 := &tenancy.Company{ID: uuid.New(), Kind: tenancy.KindBroker, Active: true}
	b2 := &tenancy.Company{ID: uuid.New(), Kind: tenancy.KindBroker, Active: true}
	c1 := &tenancy.Company{ID: uuid.New(), Kind: tenancy.KindClient, ParentBrokerID: &b1.ID, Active: true}
	c2 := &tenancy.Company{ID: uuid.New(), Kind: tenancy.KindClient, ParentBrokerID: &b2.ID, Active: true}
	return world{
		b1: b1, b2: b2, c1: c1, c2: c2,
		super:    tenancy.Principal{UserID: uuid.New(), Role: tenancy.RoleSuperAdmin},
		admin1:   tenancy.Principal{UserID: uuid.New(), Role: tenancy.RoleBrokerAdmin, Company: b1},
		user1:    tenancy.Principal{UserID: uuid.New(), Role: tenancy.RoleBrokerUser, Company: b1},
		client1:  tenancy.Principal{UserID: uuid.New(), Role: tenancy.RoleClientUser, Company: c1},
		admin2:   tenancy.Principal{UserID: uuid.New(), Role: tenancy.RoleBrokerAdmin, Company: b2},
		orphaned: &tenancy.Company{ID: uuid.New(), Kind: tenancy.KindClient},
	}
}

func TestAuthorize_Company(t *testing.T) {
	w := newWorld()

	tests := []struct {
		name string
		p    tenancy.Principal
		op   Operation
		t    Target
		want bool
	}{
		{"super admin creates broker", w.super, CompanyCreateBroker, Target{}, true},
		{"broker admin cannot create broker", w.admin1, CompanyCreateBroker, Target{}, false},
		{"broker admin creates client under own broker", w.admin1, CompanyCreateClient, Target{Company: w.b1}, true},
		{"broker admin cannot create client under other broker", w.admin1, CompanyCreateClient, Target{Company: w.b2}, false},
		{"broker admin cannot parent client to client", w.admin1, CompanyCreateClient, Target{Company: w.c1}, false},
		{"broker user cannot create client", w.user1, CompanyCreateClient, Target{Company: w.b1}, false},
		{"client user cannot create client", w.client1, CompanyCreateClient, Target{Company: w.b1}, false},
		{"broker admin updates own client", w.admin1, CompanyUpdate, Target{Company: w.c1}, true},
		{"broker admin updates own broker", w.admin1, CompanyUpdate, Target{Company: w.b1}, true},
		{"broker admin cannot update foreign client", w.admin1, CompanyUpdate, Target{Company: w.c2}, false},
		{"broker admin cannot delete orphaned client", w.admin1, CompanyDelete, Target{Company: w.orphaned}, false},
		{"broker user cannot update", w.user1, CompanyUpdate, Target{Company: w.c1}, false},
		{"broker user views own subtree", w.user1, CompanyView, Target{Company: w.c1}, true},
		{"broker user cannot view other subtree", w.user1, CompanyView, Target{Company: w.c2}, false},
		{"client user views own company", w.client1, CompanyView, Target{Company: w.c1}, true},
		{"client user cannot view own broker", w.client1, CompanyView, Target{Company: w.b1}, false},
		{"view with no target", w.admin1, CompanyView, Target{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Authorize(tt.p, tt.op, tt.t).Allowed)
		})
	}
}

func TestAuthorize_User(t *testing.T) {
	w := newWorld()
	user1 := w.user1
	client1 := w.client1
	admin2 := w.admin2

	tests := []struct {
		name string
		p    tenancy.Principal
		op   Operation
		t    Target
		want bool
	}{
		{"admin creates broker user in own broker", w.admin1, UserCreate, Target{Role: tenancy.RoleBrokerUser, Company: w.b1}, true},
		{"admin cannot create broker user elsewhere", w.admin1, UserCreate, Target{Role: tenancy.RoleBrokerUser, Company: w.b2}, false},
		{"admin creates client user for own client", w.admin1, UserCreate, Target{Role: tenancy.RoleClientUser, Company: w.c1}, true},
		{"admin cannot create client user for foreign client", w.admin1, UserCreate, Target{Role: tenancy.RoleClientUser, Company: w.c2}, false},
		{"admin cannot create client user on broker", w.admin1, UserCreate, Target{Role: tenancy.RoleClientUser, Company: w.b1}, false},
		{"admin cannot grant broker admin", w.admin1, UserCreate, Target{Role: tenancy.RoleBrokerAdmin, Company: w.b1}, false},
		{"admin cannot grant super admin", w.admin1, UserCreate, Target{Role: tenancy.RoleSuperAdmin}, false},
		{"broker user cannot create users", w.user1, UserCreate, Target{Role: tenancy.RoleBrokerUser, Company: w.b1}, false},
		{"super admin creates broker admin", w.super, UserCreate, Target{Role: tenancy.RoleBrokerAdmin, Company: w.b2}, true},

		{"admin edits own staff", w.admin1, UserEdit, Target{User: &user1}, true},
		{"admin edits own client's user", w.admin1, UserEdit, Target{User: &client1}, true},
		{"admin cannot edit other broker's admin", w.admin1, UserEdit, Target{User: &admin2}, false},
		{"broker user edits self", w.user1, UserEdit, Target{User: &user1}, true},
		{"broker user cannot edit others", w.user1, UserEdit, Target{User: &client1}, false},
		{"client user edits self", w.client1, UserEdit, Target{User: &client1}, true},

		{"admin deletes own staff", w.admin1, UserDelete, Target{User: &user1}, true},
		{"admin cannot delete foreign", w.admin1, UserDelete, Target{User: &admin2}, false},
		{"broker user cannot delete", w.user1, UserDelete, Target{User: &client1}, false},

		{"staff views subtree user", w.user1, UserView, Target{User: &client1}, true},
		{"client user cannot view staff", w.client1, UserView, Target{User: &user1}, false},
		{"admin cannot view foreign user", w.admin1, UserView, Target{User: &admin2}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Authorize(tt.p, tt.op, tt.t).Allowed)
		})
	}
}

func TestAuthorize_Transaction(t *testing.T) {
	w := newWorld()
	own := Target{BrokerID: w.b1.ID, ClientID: w.c1.ID}
	foreign := Target{BrokerID: w.b2.ID, ClientID: w.c2.ID}

	tests := []struct {
		name string
		p    tenancy.Principal
		op   Operation
		t    Target
		want bool
	}{
		{"admin creates for own broker", w.admin1, TransactionCreate, own, true},
		{"admin cannot create for other broker", w.admin1, TransactionCreate, foreign, false},
		{"user creates for own broker", w.user1, TransactionCreate, own, true},
		{"client user cannot create", w.client1, TransactionCreate, own, false},
		{"user updates own", w.user1, TransactionUpdate, own, true},
		{"user changes status own", w.user1, TransactionChangeStatus, own, true},
		{"user cannot update foreign", w.user1, TransactionUpdate, foreign, false},
		{"admin deletes own", w.admin1, TransactionDelete, own, true},
		{"user cannot delete", w.user1, TransactionDelete, own, false},
		{"client user views own company's", w.client1, TransactionView, own, true},
		{"client user cannot view others", w.client1, TransactionView, foreign, false},
		{"nil broker id denied", w.admin1, TransactionCreate, Target{}, false},
		{"super admin anything", w.super, TransactionDelete, foreign, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Authorize(tt.p, tt.op, tt.t).Allowed)
		})
	}
}

func TestAuthorize_ClientUserNeverUpdatesTransactions(t *testing.T) {
	w := newWorld()
	targets := []Target{
		{BrokerID: w.b1.ID, ClientID: w.c1.ID},
		{BrokerID: w.b2.ID, ClientID: w.c2.ID},
		{BrokerID: w.b1.ID, ClientID: w.c2.ID},
		{},
	}
	for _, target := range targets {
		for _, op := range []Operation{TransactionUpdate, TransactionChangeStatus, TransactionDelete, TransactionCreate} {
			d := Authorize(w.client1, op, target)
			assert.False(t, d.Allowed, "op %s", op)
			assert.Equal(t, ReasonRoleDenied, d.Reason)
		}
	}
}

func TestAuthorize_Agreement(t *testing.T) {
	w := newWorld()
	own := Target{Broker: w.b1, Client: w.c1}
	foreign := Target{Broker: w.b2, Client: w.c2}
	crossed := Target{Broker: w.b2, Client: w.c1}

	for _, op := range []Operation{AgreementCreate, AgreementSuspend, AgreementTerminate, AgreementReactivate} {
		assert.True(t, Authorize(w.admin1, op, own).Allowed, "%s own", op)
		assert.False(t, Authorize(w.admin1, op, foreign).Allowed, "%s foreign", op)
		assert.False(t, Authorize(w.admin1, op, crossed).Allowed, "%s crossed", op)
		assert.False(t, Authorize(w.user1, op, own).Allowed, "%s broker user", op)
		assert.False(t, Authorize(w.client1, op, own).Allowed, "%s client user", op)
		assert.True(t, Authorize(w.super, op, foreign).Allowed, "%s super", op)
	}

	assert.True(t, Authorize(w.admin1, AgreementView, own).Allowed)
	assert.True(t, Authorize(w.admin1, AgreementView, crossed).Allowed, "admin of the client side may view")
	assert.False(t, Authorize(w.admin1, AgreementView, foreign).Allowed)
	assert.True(t, Authorize(w.user1, AgreementView, own).Allowed)
	assert.True(t, Authorize(w.client1, AgreementView, own).Allowed)
	assert.False(t, Authorize(w.client1, AgreementView, foreign).Allowed)
}

func TestAuthorize_Subscription(t *testing.T) {
	w := newWorld()

	assert.True(t, Authorize(w.super, SubscriptionManage, Target{BrokerID: w.b1.ID}).Allowed)
	assert.False(t, Authorize(w.admin1, SubscriptionManage, Target{BrokerID: w.b1.ID}).Allowed)
	assert.True(t, Authorize(w.admin1, SubscriptionView, Target{BrokerID: w.b1.ID}).Allowed)
	assert.False(t, Authorize(w.user1, SubscriptionView, Target{BrokerID: w.b1.ID}).Allowed)

	assert.True(t, Authorize(w.user1, QuotaView, Target{BrokerID: w.b1.ID}).Allowed)
	assert.False(t, Authorize(w.user1, QuotaView, Target{BrokerID: w.b2.ID}).Allowed)
	assert.False(t, Authorize(w.client1, QuotaView, Target{BrokerID: w.b1.ID}).Allowed)
}

func TestAuthorize_UnknownRoleAndOperation(t *testing.T) {
	w := newWorld()

	ghost := tenancy.Principal{UserID: uuid.New(), Role: tenancy.Role("AUDITOR"), Company: w.b1}
	d := Authorize(ghost, CompanyView, Target{Company: w.b1})
	assert.False(t, d.Allowed)
	assert.Equal(t, ReasonUnknownRole, d.Reason)

	d = Authorize(w.admin1, Operation("company.export"), Target{Company: w.b1})
	assert.False(t, d.Allowed)
	assert.Equal(t, ReasonUnknownOp, d.Reason)
}

func TestGuard(t *testing.T) {
	w := newWorld()

	err := Guard(w.admin2, CompanyView, CompanyUpdate, Target{Company: w.c1}, "company")
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	err = Guard(w.user1, CompanyView, CompanyUpdate, Target{Company: w.c1}, "company")
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)

	err = Guard(w.admin1, CompanyView, CompanyUpdate, Target{Company: w.c1}, "company")
	assert.NoError(t, err)

	err = Guard(w.client1, CompanyView, CompanyView, Target{Company: w.c1}, "company")
	assert.NoError(t, err)
}

package subscription

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hugh/brokerdesk/internal/apperr"
	"github.com/hugh/brokerdesk/internal/database/models"
	"github.com/hugh/brokerdesk/internal/testutil"
	"github.com/hugh/brokerdesk/pkg/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreatePlan(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := testutil.TestContext(t)
	svc := NewService(db, util.DiscardLogger())
	super := testutil.SuperAdmin(t, db).Principal()

	t.Run("super admin creates plan", func(t *testing.T) {
		plan, err := svc.CreatePlan(ctx, super, PlanInput{Name: "Starter", MaxStaff: 3, MaxClients: 10, MonthlyPrice: 4900})
		require.NoError(t, err)
		assert.Equal(t, "USD", plan.Currency)
		assert.True(t, plan.IsActive)
	})

	t.Run("duplicate name conflicts", func(t *testing.T) {
		_, err := svc.CreatePlan(ctx, super, PlanInput{Name: "Starter", MaxStaff: 1, MaxClients: 1})
		assert.ErrorIs(t, err, apperr.ErrConflict)
	})

	t.Run("negative caps rejected", func(t *testing.T) {
		_, err := svc.CreatePlan(ctx, super, PlanInput{Name: "Broken", MaxStaff: -1})
		assert.ErrorIs(t, err, apperr.ErrValidation)
		assert.Contains(t, apperr.Fields(err), "max_staff")
	})

	t.Run("broker admin denied", func(t *testing.T) {
		tenant := testutil.NewTenant(t, db, 5, 5)
		_, err := svc.CreatePlan(ctx, tenant.BrokerAdmin.Principal(), PlanInput{Name: "Sneaky", MaxStaff: 99, MaxClients: 99})
		assert.ErrorIs(t, err, apperr.ErrUnauthorized)
	})
}

func TestUpdatePlan_Deactivate(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := testutil.TestContext(t)
	svc := NewService(db, util.DiscardLogger())
	super := testutil.SuperAdmin(t, db).Principal()

	plan, err := svc.CreatePlan(ctx, super, PlanInput{Name: "Legacy", MaxStaff: 2, MaxClients: 2})
	require.NoError(t, err)

	inactive := false
	_, err = svc.UpdatePlan(ctx, super, plan.ID, PlanInput{Name: "Legacy", MaxStaff: 2, MaxClients: 2, IsActive: &inactive})
	require.NoError(t, err)

	plans, err := svc.ListPlans(ctx, false)
	require.NoError(t, err)
	assert.Empty(t, plans)

	plans, err = svc.ListPlans(ctx, true)
	require.NoError(t, err)
	assert.Len(t, plans, 1)

	_, err = svc.UpdatePlan(ctx, super, uuid.New(), PlanInput{Name: "x"})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestSubscribe_SupersedesPrevious(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := testutil.TestContext(t)
	svc := NewService(db, util.DiscardLogger())
	super := testutil.SuperAdmin(t, db).Principal()

	tenant := testutil.NewTenant(t, db, 3, 10)
	bigger := testutil.CreateTestPlan(t, db, 10, 50)

	override := 12
	sub, err := svc.Subscribe(ctx, super, tenant.Broker.ID, SubscribeInput{PlanID: bigger.ID, CustomMaxStaff: &override})
	require.NoError(t, err)
	assert.Equal(t, 12, sub.EffectiveMaxStaff())
	assert.Equal(t, 50, sub.EffectiveMaxClients())

	var old models.BrokerSubscription
	require.NoError(t, db.First(&old, "id = ?", tenant.Subscription.ID).Error)
	assert.False(t, old.IsActive)
	assert.NotNil(t, old.CancelledAt)

	active, err := Active(ctx, db, tenant.Broker.ID, time.Now())
	require.NoError(t, err)
	assert.Equal(t, sub.ID, active.ID)
}

func TestSubscribe_Validation(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := testutil.TestContext(t)
	svc := NewService(db, util.DiscardLogger())
	super := testutil.SuperAdmin(t, db).Principal()
	tenant := testutil.NewTenant(t, db, 3, 10)

	past := time.Now().Add(-time.Hour)
	_, err := svc.Subscribe(ctx, super, tenant.Broker.ID, SubscribeInput{PlanID: tenant.Plan.ID, EndDate: &past})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = svc.Subscribe(ctx, super, tenant.Client.ID, SubscribeInput{PlanID: tenant.Plan.ID})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = svc.Subscribe(ctx, super, uuid.New(), SubscribeInput{PlanID: tenant.Plan.ID})
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = svc.Subscribe(ctx, tenant.BrokerAdmin.Principal(), tenant.Broker.ID, SubscribeInput{PlanID: tenant.Plan.ID})
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)
}

func TestActive(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := testutil.TestContext(t)

	t.Run("no subscription", func(t *testing.T) {
		broker := testutil.CreateTestBroker(t, db)
		_, err := Active(ctx, db, broker.ID, time.Now())
		assert.ErrorIs(t, err, apperr.ErrSubscriptionMissing)
	})

	t.Run("expired subscription", func(t *testing.T) {
		broker := testutil.CreateTestBroker(t, db)
		plan := testutil.CreateTestPlan(t, db, 3, 3)
		end := time.Now().Add(-time.Minute)
		testutil.CreateTestSubscription(t, db, broker, plan, &end)

		_, err := Active(ctx, db, broker.ID, time.Now())
		assert.ErrorIs(t, err, apperr.ErrSubscriptionMissing)
	})

	t.Run("future end date", func(t *testing.T) {
		broker := testutil.CreateTestBroker(t, db)
		plan := testutil.CreateTestPlan(t, db, 3, 3)
		end := time.Now().Add(30 * 24 * time.Hour)
		testutil.CreateTestSubscription(t, db, broker, plan, &end)

		sub, err := Active(ctx, db, broker.ID, time.Now())
		require.NoError(t, err)
		require.NotNil(t, sub.Plan)
		assert.Equal(t, 3, sub.Plan.MaxStaff)
	})
}

func TestCancel(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := testutil.TestContext(t)
	svc := NewService(db, util.DiscardLogger())
	super := testutil.SuperAdmin(t, db).Principal()
	tenant := testutil.NewTenant(t, db, 3, 10)
	other := testutil.NewTenant(t, db, 3, 10)

	_, err := svc.Cancel(ctx, other.BrokerAdmin.Principal(), tenant.Subscription.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound, "foreign subscriptions are hidden")

	_, err = svc.Cancel(ctx, tenant.BrokerAdmin.Principal(), tenant.Subscription.ID)
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)

	sub, err := svc.Cancel(ctx, super, tenant.Subscription.ID)
	require.NoError(t, err)
	assert.False(t, sub.IsActive)

	_, err = svc.Cancel(ctx, super, tenant.Subscription.ID)
	assert.ErrorIs(t, err, apperr.ErrInvalidTransition)

	_, err = svc.Current(ctx, tenant.BrokerAdmin.Principal(), tenant.Broker.ID)
	assert.ErrorIs(t, err, apperr.ErrSubscriptionMissing)
}

package company

import (
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/hugh/brokerdesk/internal/apperr"
	"github.com/hugh/brokerdesk/internal/database/models"
	"github.com/hugh/brokerdesk/internal/quota"
	"github.com/hugh/brokerdesk/internal/tenancy"
	"github.com/hugh/brokerdesk/internal/testutil"
	"github.com/hugh/brokerdesk/pkg/crypto"
	"github.com/hugh/brokerdesk/pkg/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newService(t *testing.T, db *gorm.DB) *Service {
	t.Helper()
	sealer, err := crypto.NewSealer("")
	require.NoError(t, err)
	logger := util.DiscardLogger()
	return NewService(db, quota.NewTracker(db, logger), sealer, logger)
}

func TestCreateBroker(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := testutil.TestContext(t)
	svc := newService(t, db)
	super := testutil.SuperAdmin(t, db).Principal()

	broker, err := svc.CreateBroker(ctx, super, Input{Name: "Anatolia Customs", Email: "ops@anatolia.example", TaxID: "TR-0099"})
	require.NoError(t, err)
	assert.Equal(t, tenancy.KindBroker, broker.Type)
	assert.Nil(t, broker.ParentBrokerID)
	assert.NotContains(t, string(broker.SealedTaxID), "TR-0099")

	var usage models.UsageTracking
	require.NoError(t, db.First(&usage, "broker_id = ?", broker.ID).Error)
	assert.Zero(t, usage.CurrentClients)

	taxID, err := svc.RevealTaxID(ctx, super, broker.ID)
	require.NoError(t, err)
	assert.Equal(t, "TR-0099", taxID)

	t.Run("broker admins cannot create brokers", func(t *testing.T) {
		tenant := testutil.NewTenant(t, db, 1, 1)
		_, err := svc.CreateBroker(ctx, tenant.BrokerAdmin.Principal(), Input{Name: "Rogue"})
		assert.ErrorIs(t, err, apperr.ErrUnauthorized)
	})

	t.Run("brokers have no parent", func(t *testing.T) {
		parent := uuid.New()
		_, err := svc.CreateBroker(ctx, super, Input{Name: "Nested", ParentID: &parent})
		assert.ErrorIs(t, err, apperr.ErrValidation)
	})

	t.Run("invalid email", func(t *testing.T) {
		_, err := svc.CreateBroker(ctx, super, Input{Name: "Typo", Email: "ops@"})
		assert.ErrorIs(t, err, apperr.ErrValidation)
		assert.Contains(t, apperr.Fields(err), "email")
	})
}

func TestCreateClient(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := testutil.TestContext(t)
	svc := newService(t, db)
	tenant := testutil.NewTenant(t, db, 5, 2)
	admin := tenant.BrokerAdmin.Principal()

	client, err := svc.CreateClient(ctx, admin, Input{Name: "Importer A", ParentID: &tenant.Broker.ID})
	require.NoError(t, err)
	require.NotNil(t, client.ParentBrokerID)
	assert.Equal(t, tenant.Broker.ID, *client.ParentBrokerID)

	t.Run("missing parent is rejected", func(t *testing.T) {
		_, err := svc.CreateClient(ctx, admin, Input{Name: "Orphan"})
		assert.ErrorIs(t, err, apperr.ErrValidation)
	})

	t.Run("client cannot parent a client", func(t *testing.T) {
		_, err := svc.CreateClient(ctx, admin, Input{Name: "Nested", ParentID: &client.ID})
		assert.ErrorIs(t, err, apperr.ErrValidation)
	})

	t.Run("broker user denied", func(t *testing.T) {
		_, err := svc.CreateClient(ctx, tenant.BrokerUser.Principal(), Input{Name: "Nope", ParentID: &tenant.Broker.ID})
		assert.ErrorIs(t, err, apperr.ErrUnauthorized)
	})

	t.Run("other broker's admin cannot see the parent", func(t *testing.T) {
		other := testutil.NewTenant(t, db, 5, 5)
		_, err := svc.CreateClient(ctx, other.BrokerAdmin.Principal(), Input{Name: "Poach", ParentID: &tenant.Broker.ID})
		assert.ErrorIs(t, err, apperr.ErrNotFound)
	})

	t.Run("quota enforced and rolled back with the insert", func(t *testing.T) {
		_, err := svc.CreateClient(ctx, admin, Input{Name: "Importer B", ParentID: &tenant.Broker.ID})
		require.NoError(t, err)

		_, err = svc.CreateClient(ctx, admin, Input{Name: "Importer C", ParentID: &tenant.Broker.ID})
		require.ErrorIs(t, err, apperr.ErrLimitExceeded)

		var count int64
		require.NoError(t, db.Model(&models.Company{}).Where("name = ?", "Importer C").Count(&count).Error)
		assert.Zero(t, count)
	})
}

func TestCreateClient_ConcurrentNeverExceedsQuota(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := testutil.TestContext(t)
	svc := newService(t, db)
	tenant := testutil.NewTenant(t, db, 5, 3)
	admin := tenant.BrokerAdmin.Principal()

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := svc.CreateClient(ctx, admin, Input{Name: "Racer " + uuid.NewString()[:6], ParentID: &tenant.Broker.ID})
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)

	ok, limited := 0, 0
	for err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, apperr.ErrLimitExceeded):
			limited++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 3, ok)
	assert.Equal(t, 5, limited)
}

func TestCreateClient_NoSubscription(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := testutil.TestContext(t)
	svc := newService(t, db)
	super := testutil.SuperAdmin(t, db).Principal()

	broker := testutil.CreateTestBroker(t, db)
	_, err := svc.CreateClient(ctx, super, Input{Name: "Too Early", ParentID: &broker.ID})
	assert.ErrorIs(t, err, apperr.ErrSubscriptionMissing)
}

func TestDeactivate_ReleasesClientSlot(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := testutil.TestContext(t)
	svc := newService(t, db)
	tenant := testutil.NewTenant(t, db, 5, 1)
	admin := tenant.BrokerAdmin.Principal()
	tracker := quota.NewTracker(db, util.DiscardLogger())

	client, err := svc.CreateClient(ctx, admin, Input{Name: "Seasonal", ParentID: &tenant.Broker.ID})
	require.NoError(t, err)

	left, err := tracker.RemainingClientQuota(ctx, tenant.Broker.ID)
	require.NoError(t, err)
	assert.Zero(t, left)

	require.NoError(t, svc.Deactivate(ctx, admin, client.ID))

	left, err = tracker.RemainingClientQuota(ctx, tenant.Broker.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, left)

	err = svc.Deactivate(ctx, admin, client.ID)
	assert.ErrorIs(t, err, apperr.ErrInvalidTransition)
}

func TestUpdateAndVisibility(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := testutil.TestContext(t)
	svc := newService(t, db)
	tenant := testutil.NewTenant(t, db, 5, 5)
	other := testutil.NewTenant(t, db, 5, 5)

	name := "Renamed Importer"
	updated, err := svc.Update(ctx, tenant.BrokerAdmin.Principal(), tenant.Client.ID, UpdateInput{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, name, updated.Name)

	_, err = svc.Update(ctx, tenant.BrokerUser.Principal(), tenant.Client.ID, UpdateInput{Name: &name})
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)

	_, err = svc.Update(ctx, other.BrokerAdmin.Principal(), tenant.Client.ID, UpdateInput{Name: &name})
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = svc.Get(ctx, tenant.ClientUser.Principal(), tenant.Client.ID)
	assert.NoError(t, err)
	_, err = svc.Get(ctx, tenant.ClientUser.Principal(), tenant.Broker.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = svc.RevealTaxID(ctx, tenant.BrokerUser.Principal(), tenant.Client.ID)
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)
}

func TestList(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := testutil.TestContext(t)
	svc := newService(t, db)
	tenant := testutil.NewTenant(t, db, 5, 5)
	testutil.NewTenant(t, db, 5, 5)
	super := testutil.SuperAdmin(t, db).Principal()

	all, err := svc.List(ctx, super, ListFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 4)

	mine, err := svc.List(ctx, tenant.BrokerUser.Principal(), ListFilter{})
	require.NoError(t, err)
	assert.Len(t, mine, 2)

	clients, err := svc.List(ctx, tenant.BrokerUser.Principal(), ListFilter{Type: tenancy.KindClient})
	require.NoError(t, err)
	require.Len(t, clients, 1)
	assert.Equal(t, tenant.Client.ID, clients[0].ID)

	own, err := svc.List(ctx, tenant.ClientUser.Principal(), ListFilter{})
	require.NoError(t, err)
	require.Len(t, own, 1)
	assert.Equal(t, tenant.Client.ID, own[0].ID)
}

package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hugh/brokerdesk/internal/auth"
	"github.com/hugh/brokerdesk/internal/database"
	"github.com/hugh/brokerdesk/internal/database/models"
	"github.com/hugh/brokerdesk/internal/tenancy"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const TestPassword = "testpassword123"

// SetupTestDB creates an in-memory SQLite database for testing. It uses a
// single connection, so concurrent goroutines queue on it; code under test
// must run every query of a transaction through the transaction handle.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := database.AutoMigrate(db); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	t.Cleanup(func() { sqlDB.Close() })
	return db
}

// CreateTestBroker creates an active broker with a zeroed usage row.
func CreateTestBroker(t *testing.T, db *gorm.DB) *models.Company {
	t.Helper()

	broker := &models.Company{
		Base:     models.Base{ID: uuid.New()},
		Name:     "Broker " + uuid.New().String()[:8],
		Type:     tenancy.KindBroker,
		IsActive: true,
	}
	if err := db.Create(broker).Error; err != nil {
		t.Fatalf("failed to create test broker: %v", err)
	}
	if err := db.Create(&models.UsageTracking{BrokerID: broker.ID}).Error; err != nil {
		t.Fatalf("failed to create usage row: %v", err)
	}
	return broker
}

// CreateTestClient creates an active client under broker. The usage counter
// is not touched; use the quota tracker when the test depends on it.
func CreateTestClient(t *testing.T, db *gorm.DB, broker *models.Company) *models.Company {
	t.Helper()

	client := &models.Company{
		Base:           models.Base{ID: uuid.New()},
		Name:           "Client " + uuid.New().String()[:8],
		Type:           tenancy.KindClient,
		ParentBrokerID: &broker.ID,
		IsActive:       true,
	}
	if err := db.Create(client).Error; err != nil {
		t.Fatalf("failed to create test client: %v", err)
	}
	return client
}

// CreateTestUser creates an active user with the given role. company must be
// nil for super admins.
func CreateTestUser(t *testing.T, db *gorm.DB, role tenancy.Role, company *models.Company) *models.User {
	t.Helper()

	hash, err := auth.HashPassword(TestPassword)
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}

	user := &models.User{
		Base:         models.Base{ID: uuid.New()},
		Email:        "test-" + uuid.New().String()[:8] + "@example.com",
		PasswordHash: hash,
		Name:         "Test User",
		Role:         role,
		IsActive:     true,
	}
	if company != nil {
		user.CompanyID = &company.ID
	}

	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}

	user.Company = company
	return user
}

// CreateTestPlan creates a plan with the given caps.
func CreateTestPlan(t *testing.T, db *gorm.DB, maxStaff, maxClients int) *models.SubscriptionPlan {
	t.Helper()

	plan := &models.SubscriptionPlan{
		Base:         models.Base{ID: uuid.New()},
		Name:         "Plan " + uuid.New().String()[:8],
		MaxStaff:     maxStaff,
		MaxClients:   maxClients,
		MonthlyPrice: 9900,
		Currency:     "USD",
		IsActive:     true,
	}
	if err := db.Create(plan).Error; err != nil {
		t.Fatalf("failed to create test plan: %v", err)
	}
	return plan
}

// CreateTestSubscription subscribes broker to plan from yesterday until end
// (nil for open-ended).
func CreateTestSubscription(t *testing.T, db *gorm.DB, broker *models.Company, plan *models.SubscriptionPlan, end *time.Time) *models.BrokerSubscription {
	t.Helper()

	sub := &models.BrokerSubscription{
		Base:      models.Base{ID: uuid.New()},
		BrokerID:  broker.ID,
		PlanID:    plan.ID,
		StartDate: time.Now().Add(-24 * time.Hour),
		EndDate:   end,
		IsActive:  true,
	}
	if err := db.Create(sub).Error; err != nil {
		t.Fatalf("failed to create test subscription: %v", err)
	}
	sub.Plan = plan
	return sub
}

// CreateTestAgreement creates an agreement between broker and client.
func CreateTestAgreement(t *testing.T, db *gorm.DB, broker, client *models.Company, status models.AgreementStatus) *models.AgencyAgreement {
	t.Helper()

	agreement := &models.AgencyAgreement{
		Base:            models.Base{ID: uuid.New()},
		AgreementNumber: "AGR-TEST-" + uuid.New().String()[:8],
		BrokerID:        broker.ID,
		ClientID:        client.ID,
		Status:          status,
		StartDate:       time.Now().Add(-24 * time.Hour),
	}
	if err := db.Create(agreement).Error; err != nil {
		t.Fatalf("failed to create test agreement: %v", err)
	}
	return agreement
}

// CreateTestJWTService creates a JWT service for testing
func CreateTestJWTService() *auth.JWTService {
	return auth.NewJWTService("test-secret-key-for-testing", 24*time.Hour)
}

// GenerateTestToken generates a valid JWT token for the given user
func GenerateTestToken(t *testing.T, jwtService *auth.JWTService, user *models.User) string {
	t.Helper()

	token, err := jwtService.GenerateToken(user.ID, user.CompanyID, user.Email, user.Role)
	if err != nil {
		t.Fatalf("failed to generate test token: %v", err)
	}

	return token
}

// AuthenticatedRequest creates an HTTP request with authentication
func AuthenticatedRequest(t *testing.T, method, path string, body interface{}, token string) *http.Request {
	t.Helper()

	var reqBody *bytes.Buffer
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal request body: %v", err)
		}
		reqBody = bytes.NewBuffer(jsonData)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req := httptest.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	return req
}

// UnauthenticatedRequest creates an HTTP request without authentication
func UnauthenticatedRequest(t *testing.T, method, path string, body interface{}) *http.Request {
	t.Helper()
	return AuthenticatedRequest(t, method, path, body, "")
}

// AssertStatus checks if the response has the expected status code
func AssertStatus(t *testing.T, rr *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if rr.Code != expected {
		t.Errorf("expected status %d, got %d. Body: %s", expected, rr.Code, rr.Body.String())
	}
}

// ParseJSONResponse parses the response body into the given struct
func ParseJSONResponse(t *testing.T, rr *httptest.ResponseRecorder, v interface{}) {
	t.Helper()

	if err := json.Unmarshal(rr.Body.Bytes(), v); err != nil {
		t.Fatalf("failed to parse response body: %v. Body: %s", err, rr.Body.String())
	}
}

// TestContext creates a context with a timeout for tests
func TestContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// Tenant is a ready-made broker with one client, an active subscription,
// an ACTIVE agreement and one principal per role.
type Tenant struct {
	Broker       *models.Company
	Client       *models.Company
	Plan         *models.SubscriptionPlan
	Subscription *models.BrokerSubscription
	Agreement    *models.AgencyAgreement

	BrokerAdmin *models.User
	BrokerUser  *models.User
	ClientUser  *models.User
}

// NewTenant builds a Tenant whose plan allows maxStaff staff and maxClients
// clients. Usage counters start at zero regardless of the fixture users.
func NewTenant(t *testing.T, db *gorm.DB, maxStaff, maxClients int) *Tenant {
	t.Helper()

	broker := CreateTestBroker(t, db)
	client := CreateTestClient(t, db, broker)
	plan := CreateTestPlan(t, db, maxStaff, maxClients)

	return &Tenant{
		Broker:       broker,
		Client:       client,
		Plan:         plan,
		Subscription: CreateTestSubscription(t, db, broker, plan, nil),
		Agreement:    CreateTestAgreement(t, db, broker, client, models.AgreementStatusActive),
		BrokerAdmin:  CreateTestUser(t, db, tenancy.RoleBrokerAdmin, broker),
		BrokerUser:   CreateTestUser(t, db, tenancy.RoleBrokerUser, broker),
		ClientUser:   CreateTestUser(t, db, tenancy.RoleClientUser, client),
	}
}

// SuperAdmin creates a super admin principal.
func SuperAdmin(t *testing.T, db *gorm.DB) *models.User {
	t.Helper()
	return CreateTestUser(t, db, tenancy.RoleSuperAdmin, nil)
}

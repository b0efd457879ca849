//go:build ignore

package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/hugh/brokerdesk/internal/auth"
	"github.com/hugh/brokerdesk/internal/database"
	"github.com/hugh/brokerdesk/internal/database/models"
	"github.com/hugh/brokerdesk/internal/subscription"
	"github.com/hugh/brokerdesk/internal/tenancy"
	"github.com/hugh/brokerdesk/pkg/config"
	"github.com/hugh/brokerdesk/pkg/crypto"
	"github.com/hugh/brokerdesk/pkg/util"
	"github.com/joho/godotenv"
	"gorm.io/gorm"
)

var plans = []subscription.PlanInput{
	{Name: "Starter", Description: "Single office", MaxStaff: 3, MaxClients: 10, MonthlyPrice: 4900, Currency: "USD"},
	{Name: "Professional", Description: "Growing brokerage", MaxStaff: 15, MaxClients: 75, MonthlyPrice: 19900, Currency: "USD"},
	{Name: "Enterprise", Description: "Multi-office brokerage", MaxStaff: 100, MaxClients: 1000, MonthlyPrice: 79900, Currency: "USD"},
}

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := util.NewLogger(cfg.Server.Env)

	db, err := database.Connect(&cfg.Database, logger)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	if err := database.AutoMigrate(db); err != nil {
		log.Fatalf("failed to run migrations: %v", err)
	}

	ctx := context.Background()

	email := strings.ToLower(strings.TrimSpace(os.Getenv("ADMIN_EMAIL")))
	if email == "" {
		email = "admin@brokerdesk.local"
	}
	password := os.Getenv("ADMIN_PASSWORD")
	generated := password == ""
	if generated {
		token, err := crypto.RandomToken(18)
		if err != nil {
			log.Fatalf("failed to generate password: %v", err)
		}
		password = token + "!9a"
	}

	var admin models.User
	err = db.WithContext(ctx).Where("email = ?", email).First(&admin).Error
	switch {
	case err == nil:
		fmt.Printf("Super admin already exists: %s\n", email)
	case errors.Is(err, gorm.ErrRecordNotFound):
		hash, err := auth.HashPassword(password)
		if err != nil {
			log.Fatalf("failed to hash password: %v", err)
		}
		admin = models.User{
			Email:        email,
			PasswordHash: hash,
			Name:         "Platform Admin",
			Role:         tenancy.RoleSuperAdmin,
			IsActive:     true,
		}
		if err := db.WithContext(ctx).Create(&admin).Error; err != nil {
			log.Fatalf("failed to create super admin: %v", err)
		}
		fmt.Printf("Super admin created: %s\n", email)
		if generated {
			fmt.Printf("Generated password: %s\n", password)
		}
	default:
		log.Fatalf("failed to look up super admin: %v", err)
	}

	subs := subscription.NewService(db, logger)
	existing, err := subs.ListPlans(ctx, true)
	if err != nil {
		log.Fatalf("failed to list plans: %v", err)
	}
	have := make(map[string]bool, len(existing))
	for _, p := range existing {
		have[p.Name] = true
	}

	for _, in := range plans {
		if have[in.Name] {
			continue
		}
		p, err := subs.CreatePlan(ctx, admin.Principal(), in)
		if err != nil {
			log.Fatalf("failed to create plan %s: %v", in.Name, err)
		}
		fmt.Printf("Plan created: %s (staff %d, clients %d)\n", p.Name, p.MaxStaff, p.MaxClients)
	}
}

package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/shopspring/decimal"

	"github.com/medistock/medistock/internal/app"
	"github.com/medistock/medistock/internal/auth"
	"github.com/medistock/medistock/internal/catalog"
	"github.com/medistock/medistock/internal/platform/db"
	"github.com/medistock/medistock/internal/shared"
	"github.com/medistock/medistock/internal/users"
)

func main() {
	cfg, err := app.LoadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	ctx := context.Background()
	pool, err := db.New(ctx, cfg.PGDSN, db.Options{})
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	if _, err := db.Migrate(ctx, pool); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	access, err := auth.NewTokenService(cfg.JWTAccessSecret)
	if err != nil {
		log.Fatalf("access tokens: %v", err)
	}
	refresh, err := auth.NewTokenService(cfg.JWTRefreshSecret)
	if err != nil {
		log.Fatalf("refresh tokens: %v", err)
	}
	usersService := users.NewService(users.NewRepository(pool), access, refresh, users.Config{})

	fmt.Println("→ Seeding super admin...")
	root, err := usersService.CreateSuperAdmin(ctx,
		getenv("SEED_SUPER_ADMIN_NAME", "Super Admin"),
		getenv("SEED_SUPER_ADMIN_EMAIL", "admin@medistock.local"),
		getenv("SEED_SUPER_ADMIN_MOBILE", "01700000000"),
		getenv("SEED_SUPER_ADMIN_PASSWORD", "change-me-now"),
	)
	switch {
	case errors.Is(err, shared.ErrConflict):
		fmt.Println("  super admin already present, skipping")
	case err != nil:
		log.Fatalf("seed super admin: %v", err)
	default:
		fmt.Println("  created", root.Email)
	}

	if os.Getenv("SEED_DEMO") != "1" {
		fmt.Println("✓ Seed complete at", time.Now().Format(time.RFC3339))
		return
	}

	fmt.Println("→ Seeding demo pharmacy...")
	caller := auth.Subject{UserID: root.ID, Role: auth.RoleSuperAdmin}
	if caller.UserID == 0 {
		caller.UserID = 1
	}
	admin, err := usersService.Register(ctx, caller, users.RegisterInput{
		Name:         "Demo Admin",
		Email:        "demo@medistock.local",
		Mobile:       "01711111111",
		PharmacyName: "Demo Pharmacy",
		Password:     "demo-password",
	})
	if errors.Is(err, shared.ErrConflict) {
		fmt.Println("  demo pharmacy already present, skipping")
		fmt.Println("✓ Seed complete at", time.Now().Format(time.RFC3339))
		return
	}
	if err != nil {
		log.Fatalf("seed demo pharmacy: %v", err)
	}
	if err := seedCatalog(ctx, catalog.NewService(catalog.NewRepository(pool), nil, nil), admin.PharmacyID); err != nil {
		log.Fatalf("seed catalog: %v", err)
	}

	fmt.Println("✓ Seed complete at", time.Now().Format(time.RFC3339))
}

func seedCatalog(ctx context.Context, svc *catalog.Service, pharmacyID string) error {
	references := map[catalog.Kind][]string{
		catalog.KindDosageForm: {"Tablet", "Capsule", "Syrup"},
		catalog.KindGroup:      {"Paracetamol", "Omeprazole"},
		catalog.KindCompany:    {"Beximco Pharmaceuticals", "Square Pharmaceuticals"},
	}
	for kind, names := range references {
		for _, name := range names {
			if _, err := svc.CreateReference(ctx, pharmacyID, kind, name); err != nil && !errors.Is(err, shared.ErrConflict) {
				return fmt.Errorf("%s %q: %w", kind, name, err)
			}
		}
	}

	medicines := []catalog.MedicineInput{
		demoMedicine("Napa 500", "Paracetamol", "Beximco Pharmaceuticals", "Tablet", "0.80", "1.20"),
		demoMedicine("Seclo 20", "Omeprazole", "Square Pharmaceuticals", "Capsule", "4.50", "6.00"),
	}
	for _, m := range medicines {
		if _, err := svc.CreateMedicine(ctx, pharmacyID, m); err != nil && !errors.Is(err, shared.ErrConflict) {
			return fmt.Errorf("medicine %q: %w", m.Name, err)
		}
	}
	return nil
}

func demoMedicine(name, group, company, form, purchase, sell string) catalog.MedicineInput {
	p := decimal.RequireFromString(purchase)
	s := decimal.RequireFromString(sell)
	return catalog.MedicineInput{
		Name:          name,
		Group:         group,
		Company:       company,
		Strength:      "500 mg",
		DosageForm:    form,
		Category:      catalog.CategoryMedicine,
		PurchasePrice: &p,
		SellPrice:     &s,
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

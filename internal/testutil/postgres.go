//go:build integration

// Package testutil starts disposable PostgreSQL instances for integration tests.
package testutil

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/medistock/medistock/internal/platform/db"
)

// NewPool starts a PostgreSQL container, applies migrations and returns a pool.
// The container is terminated when the test finishes.
func NewPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()

	container, err := postgres.RunContainer(ctx,
		testcontainers.WithImage("postgres:16-alpine"),
		postgres.WithDatabase("medistock_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("start postgres container: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("connection string: %v", err)
	}
	pool, err := db.New(ctx, dsn, db.Options{MaxConns: 4})
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(pool.Close)

	if _, err := db.Migrate(ctx, pool); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return pool
}

// InsertMedicine adds a medicine row with the given stock and returns its id.
func InsertMedicine(t *testing.T, pool *pgxpool.Pool, pharmacyID, name string, stock int64) int64 {
	t.Helper()
	var id int64
	err := pool.QueryRow(context.Background(), `INSERT INTO medicines (pharmacy_id, title, name, strength, dosage_form, company, group_name, category, purchase_price, sell_price, stock)
VALUES ($1, $2, $3, '10mg', 'Tablet', 'Square', 'General', 'medicine', 1, 2, $4) RETURNING id`,
		pharmacyID, fmt.Sprintf("Tablet %s 10mg", name), name, stock).Scan(&id)
	if err != nil {
		t.Fatalf("insert medicine: %v", err)
	}
	return id
}

// Stock reads the current stock of a medicine.
func Stock(t *testing.T, pool *pgxpool.Pool, id int64) int64 {
	t.Helper()
	var stock int64
	if err := pool.QueryRow(context.Background(), `SELECT stock FROM medicines WHERE id = $1`, id).Scan(&stock); err != nil {
		t.Fatalf("read stock: %v", err)
	}
	return stock
}

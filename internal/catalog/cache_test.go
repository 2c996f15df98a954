package catalog

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newCachedService(t *testing.T, repo Repository) *Service {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewService(repo, NewCache(client, time.Minute), nil)
}

func TestListMedicinesServesRepeatedReadsFromCache(t *testing.T) {
	repo := newMemoryRepo()
	svc := newCachedService(t, repo)
	ctx := context.Background()

	_, err := svc.CreateMedicine(ctx, "ph-a", medicineInput("Napa"))
	require.NoError(t, err)

	first, err := svc.ListMedicines(ctx, "ph-a", MedicineFilters{})
	require.NoError(t, err)
	second, err := svc.ListMedicines(ctx, "ph-a", MedicineFilters{})
	require.NoError(t, err)
	require.Equal(t, 1, repo.listCalls)
	require.Equal(t, first.Total, second.Total)
	require.Equal(t, first.Items[0].Title, second.Items[0].Title)
	require.True(t, first.Totals.Sales.Equal(second.Totals.Sales))
}

func TestInvalidateMedicinesForcesReload(t *testing.T) {
	repo := newMemoryRepo()
	svc := newCachedService(t, repo)
	ctx := context.Background()

	med, err := svc.CreateMedicine(ctx, "ph-a", medicineInput("Napa"))
	require.NoError(t, err)

	_, err = svc.ListMedicines(ctx, "ph-a", MedicineFilters{})
	require.NoError(t, err)

	repo.setStock(med.ID, 9)
	cached, err := svc.ListMedicines(ctx, "ph-a", MedicineFilters{})
	require.NoError(t, err)
	require.Zero(t, cached.Items[0].Stock)

	require.NoError(t, svc.InvalidateMedicines(ctx, "ph-a"))
	fresh, err := svc.ListMedicines(ctx, "ph-a", MedicineFilters{})
	require.NoError(t, err)
	require.EqualValues(t, 9, fresh.Items[0].Stock)
	require.Equal(t, 2, repo.listCalls)
}

func TestCacheVersionsArePerPharmacy(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	cache := NewCache(client, time.Minute)
	ctx := context.Background()

	keyA, err := cache.BuildKey(ctx, "ph-a", "medicines")
	require.NoError(t, err)
	require.Equal(t, "catalog:ph-a:medicines:1", keyA)

	require.NoError(t, cache.Bump(ctx, "ph-a"))
	keyA, err = cache.BuildKey(ctx, "ph-a", "medicines")
	require.NoError(t, err)
	require.Equal(t, "catalog:ph-a:medicines:2", keyA)

	keyB, err := cache.BuildKey(ctx, "ph-b", "medicines")
	require.NoError(t, err)
	require.Equal(t, "catalog:ph-b:medicines:1", keyB)
}

func TestNilCacheCallsLoader(t *testing.T) {
	var cache *Cache
	var out []string
	err := cache.FetchJSON(context.Background(), "k", &out, func(context.Context) (any, error) {
		return []string{"a"}, nil
	})
	require.NoError(t, err)
	require.Equal(t, []string{"a"}, out)
	require.NoError(t, cache.Bump(context.Background(), "ph-a"))
}

package store

import (
	"context"
	"testing"
	"time"

	"loan-api/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleApplication(id string) *models.Application {
	return &models.Application{
		ID:        id,
		FirstName: "Alice",
		LastName:  "Johnson",
		Email:     "alice@example.com",
		Income:    85000,
		Amount:    25000,
		Status:    models.StatusApproved,
		Decision:  &models.Decision{Approved: true, Reason: "Income meets minimum requirements"},
		CreatedAt: time.Date(2024, 1, 2, 3, 4, 5, 6000000, time.UTC),
	}
}

func TestMemoryRepository_Sequence(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	n, err := repo.NextSequence(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	require.NoError(t, repo.AdvanceSequence(ctx, 10))
	n, _ = repo.NextSequence(ctx)
	assert.Equal(t, int64(11), n)

	// never lowers
	require.NoError(t, repo.AdvanceSequence(ctx, 3))
	n, _ = repo.NextSequence(ctx)
	assert.Equal(t, int64(12), n)
}

func TestMemoryRepository_InsertFindSave(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	app := sampleApplication("APP-001")
	require.NoError(t, repo.Insert(ctx, app))
	assert.ErrorIs(t, repo.Insert(ctx, app), ErrDuplicateID)

	// mutating the caller's copy does not reach the stored record
	app.Status = models.StatusFunded

	found, err := repo.FindByID(ctx, "APP-001")
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, found.Status)

	found.Status = models.StatusFunded
	require.NoError(t, repo.Save(ctx, found))

	again, err := repo.FindByID(ctx, "APP-001")
	require.NoError(t, err)
	assert.Equal(t, models.StatusFunded, again.Status)

	_, err = repo.FindByID(ctx, "APP-404")
	assert.ErrorIs(t, err, ErrRecordNotFound)
	assert.ErrorIs(t, repo.Save(ctx, sampleApplication("APP-404")), ErrRecordNotFound)
}

func TestMemoryRepository_ListOrder(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	for _, id := range []string{"APP-003", "APP-001", "APP-002"} {
		require.NoError(t, repo.Insert(ctx, sampleApplication(id)))
	}

	apps, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, apps, 3)
	assert.Equal(t, "APP-003", apps[0].ID)
	assert.Equal(t, "APP-001", apps[1].ID)
	assert.Equal(t, "APP-002", apps[2].ID)
	assert.NoError(t, repo.Ping(ctx))
}

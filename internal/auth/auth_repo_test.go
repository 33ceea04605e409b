package auth

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/katharos/storefront/internal/database"
	"github.com/katharos/storefront/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := database.OpenSQLite(filepath.Join(t.TempDir(), "users.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, RunMigrations(db))
	return db
}

func testUser(id, email string) domain.User {
	return domain.User{
		ID:           id,
		Email:        email,
		DisplayName:  "Ana",
		PasswordHash: "hash",
		Role:         domain.RoleCustomer,
		CreatedAt:    time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC),
	}
}

func TestRunMigrations_Idempotent(t *testing.T) {
	db := setupTestDB(t)

	assert.NoError(t, RunMigrations(db))
}

func TestRepository_CreateAndGet(t *testing.T) {
	repo := NewRepository(setupTestDB(t))
	ctx := context.Background()

	u := testUser("u-1", "ana@example.com")
	require.NoError(t, repo.Create(ctx, u))

	byEmail, err := repo.GetByEmail(ctx, "ana@example.com")
	require.NoError(t, err)
	assert.Equal(t, u, *byEmail)

	byID, err := repo.GetByID(ctx, "u-1")
	require.NoError(t, err)
	assert.Equal(t, u, *byID)
}

func TestRepository_DuplicateEmail(t *testing.T) {
	repo := NewRepository(setupTestDB(t))
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, testUser("u-1", "ana@example.com")))

	err := repo.Create(ctx, testUser("u-2", "ana@example.com"))
	assert.ErrorIs(t, err, ErrEmailTaken)
}

func TestRepository_NotFound(t *testing.T) {
	repo := NewRepository(setupTestDB(t))
	ctx := context.Background()

	_, err := repo.GetByEmail(ctx, "nobody@example.com")
	assert.ErrorIs(t, err, ErrUserNotFound)

	_, err = repo.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestRepository_Count(t *testing.T) {
	repo := NewRepository(setupTestDB(t))
	ctx := context.Background()

	n, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)

	require.NoError(t, repo.Create(ctx, testUser("u-1", "a@example.com")))
	require.NoError(t, repo.Create(ctx, testUser("u-2", "b@example.com")))

	n, err = repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestRepository_CancelledContext(t *testing.T) {
	repo := NewRepository(setupTestDB(t))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := repo.GetByID(ctx, "u-1")
	assert.Error(t, err)
}

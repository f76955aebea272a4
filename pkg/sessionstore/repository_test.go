package sessionstore

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisTestRepository(t *testing.T) Repository {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisRepository(client, 0)
}

// runRepositoryTests exercises the Repository contract against any implementation
func runRepositoryTests(t *testing.T, newRepo func(t *testing.T) Repository) {
	ctx := context.Background()

	t.Run("PersistAndIsActive", func(t *testing.T) {
		repo := newRepo(t)
		userID := uuid.New()

		record, err := repo.Persist(ctx, CreateSessionParams{
			UserID:    userID,
			JTI:       "jti-1",
			ExpiresAt: time.Now().UTC().Add(time.Hour),
		})
		require.NoError(t, err)
		assert.Equal(t, userID, record.UserID)
		assert.Nil(t, record.ImpersonatorID)
		assert.Nil(t, record.RevokedAt)

		active, err := repo.IsActive(ctx, "jti-1")
		require.NoError(t, err)
		assert.True(t, active)
	})

	t.Run("UnknownJTIIsInactive", func(t *testing.T) {
		repo := newRepo(t)

		active, err := repo.IsActive(ctx, "no-such-jti")
		require.NoError(t, err)
		assert.False(t, active)
	})

	t.Run("DuplicateJTIRejected", func(t *testing.T) {
		repo := newRepo(t)
		userID := uuid.New()
		params := CreateSessionParams{
			UserID:    userID,
			JTI:       "jti-dup",
			ExpiresAt: time.Now().UTC().Add(time.Hour),
		}

		_, err := repo.Persist(ctx, params)
		require.NoError(t, err)

		_, err = repo.Persist(ctx, params)
		assert.ErrorIs(t, err, ErrDuplicateJTI)
	})

	t.Run("RevokeIsIdempotent", func(t *testing.T) {
		repo := newRepo(t)
		userID := uuid.New()

		_, err := repo.Persist(ctx, CreateSessionParams{
			UserID:    userID,
			JTI:       "jti-revoke",
			ExpiresAt: time.Now().UTC().Add(time.Hour),
		})
		require.NoError(t, err)

		require.NoError(t, repo.Revoke(ctx, userID, "jti-revoke"))

		active, err := repo.IsActive(ctx, "jti-revoke")
		require.NoError(t, err)
		assert.False(t, active)

		// second revoke and revoking an unknown jti are both no-ops
		require.NoError(t, repo.Revoke(ctx, userID, "jti-revoke"))
		require.NoError(t, repo.Revoke(ctx, userID, "never-issued"))

		active, err = repo.IsActive(ctx, "jti-revoke")
		require.NoError(t, err)
		assert.False(t, active)
	})

	t.Run("LatestForUser", func(t *testing.T) {
		repo := newRepo(t)
		userID := uuid.New()

		latest, err := repo.LatestForUser(ctx, userID)
		require.NoError(t, err)
		assert.Nil(t, latest)

		impersonator := uuid.New()
		for i, params := range []CreateSessionParams{
			{UserID: userID, JTI: "jti-a", ExpiresAt: time.Now().UTC().Add(time.Hour)},
			{UserID: userID, JTI: "jti-b", ImpersonatorID: &impersonator, ExpiresAt: time.Now().UTC().Add(time.Hour)},
		} {
			_, err := repo.Persist(ctx, params)
			require.NoError(t, err, "persist %d", i)
		}

		latest, err = repo.LatestForUser(ctx, userID)
		require.NoError(t, err)
		require.NotNil(t, latest)
		assert.Equal(t, "jti-b", latest.JTI)
		require.NotNil(t, latest.ImpersonatorID)
		assert.Equal(t, impersonator, *latest.ImpersonatorID)

		// revocation does not hide lineage
		require.NoError(t, repo.Revoke(ctx, userID, "jti-b"))
		latest, err = repo.LatestForUser(ctx, userID)
		require.NoError(t, err)
		require.NotNil(t, latest)
		assert.Equal(t, "jti-b", latest.JTI)
		assert.NotNil(t, latest.RevokedAt)
	})

	t.Run("ListActiveForUser", func(t *testing.T) {
		repo := newRepo(t)
		userID := uuid.New()

		for _, params := range []CreateSessionParams{
			{UserID: userID, JTI: "jti-live", ExpiresAt: time.Now().UTC().Add(time.Hour)},
			{UserID: userID, JTI: "jti-expired", ExpiresAt: time.Now().UTC().Add(-time.Hour)},
			{UserID: userID, JTI: "jti-gone", ExpiresAt: time.Now().UTC().Add(time.Hour)},
		} {
			_, err := repo.Persist(ctx, params)
			require.NoError(t, err)
		}
		require.NoError(t, repo.Revoke(ctx, userID, "jti-gone"))

		records, err := repo.ListActiveForUser(ctx, userID)
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Equal(t, "jti-live", records[0].JTI)
	})
}

func TestInMemoryRepository(t *testing.T) {
	runRepositoryTests(t, func(t *testing.T) Repository {
		return NewInMemoryRepository()
	})
}

func TestRedisRepository(t *testing.T) {
	runRepositoryTests(t, newRedisTestRepository)
}

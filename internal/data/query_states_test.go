package data

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corvidmail/mail-backend/internal/entities"
)

func Test_QueryStateModel(t *testing.T) {
	models, _ := openTestModels(t)
	ctx := context.Background()
	require.NoError(t, models.Accounts.Ensure(ctx, "acc-1"))

	filter := mustFilter(t, `{"subject":"hi","from":"ana"}`)
	sortSpec := []entities.SortComparator{{Property: "receivedAt", IsAscending: false}}

	t.Run("Persist_then_Load_returns_the_canonical_snapshot", func(t *testing.T) {
		id, err := models.QueryStates.Persist(ctx, "acc-1", entities.CollectionEmail, filter, sortSpec)
		require.NoError(t, err)
		require.NotEmpty(t, id)

		loaded, err := models.QueryStates.Load(ctx, "acc-1", id)
		require.NoError(t, err)
		assert.Equal(t, entities.CollectionEmail, loaded.CollectionType)
		assert.Equal(t, `{"from":"ana","subject":"hi"}`, loaded.FilterJSON)
		assert.Equal(t, `[{"isAscending":false,"property":"receivedAt"}]`, loaded.SortJSON)

		storedFilter, err := loaded.Filter()
		require.NoError(t, err)
		equal, err := entities.FiltersEqual(filter, storedFilter)
		require.NoError(t, err)
		assert.True(t, equal)

		storedSort, err := loaded.Sort()
		require.NoError(t, err)
		assert.Equal(t, sortSpec, storedSort)
	})

	t.Run("equivalent_filters_canonicalize_to_the_same_snapshot_body", func(t *testing.T) {
		reordered := mustFilter(t, `{"from":"ana","subject":"hi"}`)
		id, err := models.QueryStates.Persist(ctx, "acc-1", entities.CollectionEmail, reordered, sortSpec)
		require.NoError(t, err)

		loaded, err := models.QueryStates.Load(ctx, "acc-1", id)
		require.NoError(t, err)
		assert.Equal(t, `{"from":"ana","subject":"hi"}`, loaded.FilterJSON)
	})

	t.Run("a_foreign_account_cannot_load_the_snapshot", func(t *testing.T) {
		id, err := models.QueryStates.Persist(ctx, "acc-1", entities.CollectionEmail, filter, nil)
		require.NoError(t, err)

		_, err = models.QueryStates.Load(ctx, "acc-other", id)
		assert.ErrorIs(t, err, ErrRecordNotFound)
	})

	t.Run("an_unknown_id_is_not_found", func(t *testing.T) {
		_, err := models.QueryStates.Load(ctx, "acc-1", "nope")
		assert.ErrorIs(t, err, ErrRecordNotFound)
	})

	t.Run("PurgeStale_only_removes_unaccessed_snapshots", func(t *testing.T) {
		staleID, err := models.QueryStates.Persist(ctx, "acc-1", entities.CollectionEmail, filter, nil)
		require.NoError(t, err)
		freshID, err := models.QueryStates.Persist(ctx, "acc-1", entities.CollectionEmail, filter, nil)
		require.NoError(t, err)

		// Age one snapshot past the TTL.
		_, err = models.QueryStates.DB.ExecContext(ctx,
			`UPDATE query_states SET last_accessed_at = NOW() - INTERVAL '8 days' WHERE id = $1`, staleID)
		require.NoError(t, err)

		purged, err := models.QueryStates.PurgeStale(ctx, QueryStateTTL)
		require.NoError(t, err)
		assert.Equal(t, int64(1), purged)

		_, err = models.QueryStates.Load(ctx, "acc-1", staleID)
		assert.ErrorIs(t, err, ErrRecordNotFound)
		_, err = models.QueryStates.Load(ctx, "acc-1", freshID)
		assert.NoError(t, err)
	})
}

func Test_QueryStateModel_LoadRefreshesLastAccessed(t *testing.T) {
	models, _ := openTestModels(t)
	ctx := context.Background()
	require.NoError(t, models.Accounts.Ensure(ctx, "acc-1"))

	id, err := models.QueryStates.Persist(ctx, "acc-1", entities.CollectionEmail, entities.Filter{}, nil)
	require.NoError(t, err)

	_, err = models.QueryStates.DB.ExecContext(ctx,
		`UPDATE query_states SET last_accessed_at = NOW() - INTERVAL '8 days' WHERE id = $1`, id)
	require.NoError(t, err)

	// Loading refreshes the timestamp, so the snapshot survives the purge.
	loaded, err := models.QueryStates.Load(ctx, "acc-1", id)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now(), loaded.LastAccessedAt, time.Minute)

	purged, err := models.QueryStates.PurgeStale(ctx, QueryStateTTL)
	require.NoError(t, err)
	assert.Equal(t, int64(0), purged)
}

package data

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corvidmail/mail-backend/internal/db"
	"github.com/corvidmail/mail-backend/internal/db/dbtest"
	"github.com/corvidmail/mail-backend/internal/entities"
)

func openTestModels(t *testing.T) (*Models, db.ConnectionPool) {
	t.Helper()

	dbt := dbtest.Open(t)
	t.Cleanup(dbt.Close)

	pool, err := db.OpenDBConnectionPool(dbt.DSN)
	require.NoError(t, err)
	t.Cleanup(func() { pool.Close() })

	models, err := NewModels(pool, nil)
	require.NoError(t, err)
	return models, pool
}

func recordChange(t *testing.T, models *Models, pool db.ConnectionPool, accountID string, collection entities.CollectionType, objectID string, op entities.ChangeOp, props ...string) int64 {
	t.Helper()

	ctx := context.Background()
	modSeq, err := db.RunInTransactionWithResult(ctx, pool, nil, func(dbTx db.Transaction) (int64, error) {
		return models.ChangeLog.Record(ctx, dbTx, accountID, collection, objectID, op, props)
	})
	require.NoError(t, err)
	return modSeq
}

func Test_AccountStateModel_Bump(t *testing.T) {
	models, pool := openTestModels(t)
	ctx := context.Background()
	require.NoError(t, models.Accounts.Ensure(ctx, "acc-1"))

	t.Run("first_bump_creates_the_ledger_row_at_1", func(t *testing.T) {
		modSeq, err := db.RunInTransactionWithResult(ctx, pool, nil, func(dbTx db.Transaction) (int64, error) {
			return models.AccountStates.Bump(ctx, dbTx, "acc-1", entities.CollectionEmail)
		})
		require.NoError(t, err)
		assert.Equal(t, int64(1), modSeq)
	})

	t.Run("bumps_are_strictly_monotonic_per_collection", func(t *testing.T) {
		var seqs []int64
		for i := 0; i < 3; i++ {
			modSeq, err := db.RunInTransactionWithResult(ctx, pool, nil, func(dbTx db.Transaction) (int64, error) {
				return models.AccountStates.Bump(ctx, dbTx, "acc-1", entities.CollectionEmail)
			})
			require.NoError(t, err)
			seqs = append(seqs, modSeq)
		}
		assert.Equal(t, []int64{2, 3, 4}, seqs)
	})

	t.Run("collections_advance_independently", func(t *testing.T) {
		modSeq, err := db.RunInTransactionWithResult(ctx, pool, nil, func(dbTx db.Transaction) (int64, error) {
			return models.AccountStates.Bump(ctx, dbTx, "acc-1", entities.CollectionMailbox)
		})
		require.NoError(t, err)
		assert.Equal(t, int64(1), modSeq)
	})

	t.Run("CurrentState_returns_zero_for_an_untouched_collection", func(t *testing.T) {
		modSeq, err := models.AccountStates.CurrentState(ctx, models.AccountStates.DB, "acc-1", entities.CollectionThread)
		require.NoError(t, err)
		assert.Equal(t, int64(0), modSeq)
	})

	t.Run("GlobalState_is_the_maximum_across_collections", func(t *testing.T) {
		modSeq, err := models.AccountStates.GlobalState(ctx, models.AccountStates.DB, "acc-1")
		require.NoError(t, err)
		assert.Equal(t, int64(4), modSeq)
	})
}

func Test_ChangeLogModel_RecordAndListSince(t *testing.T) {
	models, pool := openTestModels(t)
	ctx := context.Background()
	require.NoError(t, models.Accounts.Ensure(ctx, "acc-1"))

	recordChange(t, models, pool, "acc-1", entities.CollectionEmail, "e1", entities.ChangeOpCreate)
	recordChange(t, models, pool, "acc-1", entities.CollectionEmail, "e1", entities.ChangeOpUpdate, "keywords")
	recordChange(t, models, pool, "acc-1", entities.CollectionEmail, "e2", entities.ChangeOpCreate)
	recordChange(t, models, pool, "acc-1", entities.CollectionMailbox, "mb1", entities.ChangeOpCreate)

	t.Run("lists_entries_after_sinceModSeq_in_ascending_order", func(t *testing.T) {
		entries, err := models.ChangeLog.ListSince(ctx, "acc-1", entities.CollectionEmail, 1, 0, 10)
		require.NoError(t, err)
		require.Len(t, entries, 2)
		assert.Equal(t, "e1", entries[0].ObjectID)
		assert.Equal(t, entities.ChangeOpUpdate, entries[0].Op)
		assert.Equal(t, []string{"keywords"}, []string(entries[0].UpdatedProperties))
		assert.Equal(t, "e2", entries[1].ObjectID)
		assert.Less(t, entries[0].ModSeq, entries[1].ModSeq)
	})

	t.Run("entries_are_scoped_to_the_collection", func(t *testing.T) {
		entries, err := models.ChangeLog.ListSince(ctx, "acc-1", entities.CollectionMailbox, 0, 0, 10)
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, "mb1", entries[0].ObjectID)
	})

	t.Run("upToModSeq_bounds_the_window", func(t *testing.T) {
		entries, err := models.ChangeLog.ListSince(ctx, "acc-1", entities.CollectionEmail, 0, 2, 10)
		require.NoError(t, err)
		require.Len(t, entries, 2)
		assert.Equal(t, int64(2), entries[1].ModSeq)
	})

	t.Run("limit_truncates", func(t *testing.T) {
		entries, err := models.ChangeLog.ListSince(ctx, "acc-1", entities.CollectionEmail, 0, 0, 1)
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, entities.ChangeOpCreate, entries[0].Op)
	})

	t.Run("a_caught-up_client_gets_an_empty_window", func(t *testing.T) {
		entries, err := models.ChangeLog.ListSince(ctx, "acc-1", entities.CollectionEmail, 3, 0, 10)
		require.NoError(t, err)
		assert.Empty(t, entries)
	})
}

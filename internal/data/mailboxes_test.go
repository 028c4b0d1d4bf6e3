package data

import (
	"context"
	"testing"

	"github.com/guregu/null"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corvidmail/mail-backend/internal/db"
	"github.com/corvidmail/mail-backend/internal/entities"
)

func Test_MailboxModel_query(t *testing.T) {
	models, pool := openTestModels(t)
	ctx := context.Background()
	require.NoError(t, models.Accounts.Ensure(ctx, "acc-1"))

	insertTestMailbox(t, models, pool, Mailbox{ID: "mb-inbox", AccountID: "acc-1", Name: "Inbox", Role: null.StringFrom("inbox"), SortOrder: 1})
	insertTestMailbox(t, models, pool, Mailbox{ID: "mb-drafts", AccountID: "acc-1", Name: "Drafts", Role: null.StringFrom("drafts"), SortOrder: 2})
	insertTestMailbox(t, models, pool, Mailbox{ID: "mb-archive", AccountID: "acc-1", Name: "Archive", Role: null.StringFrom("archive"), SortOrder: 3})
	insertTestMailbox(t, models, pool, Mailbox{ID: "mb-projects", AccountID: "acc-1", Name: "Projects", SortOrder: 10})
	insertTestMailbox(t, models, pool, Mailbox{ID: "mb-receipts", AccountID: "acc-1", Name: "Receipts", ParentID: null.StringFrom("mb-projects"), SortOrder: 10})

	sortBySortOrder := []entities.SortComparator{{Property: "sortOrder", IsAscending: true}}

	t.Run("none_filter_lists_everything_in_sort_order", func(t *testing.T) {
		ids, err := models.Mailboxes.QueryAllIDs(ctx, "acc-1", entities.Filter{}, sortBySortOrder)
		require.NoError(t, err)
		assert.Equal(t, []string{"mb-inbox", "mb-drafts", "mb-archive", "mb-projects", "mb-receipts"}, ids)
	})

	t.Run("equal_sortOrder_ties_break_on_id", func(t *testing.T) {
		ids, err := models.Mailboxes.QueryAllIDs(ctx, "acc-1", mustFilter(t, `{"hasAnyRole":false}`), sortBySortOrder)
		require.NoError(t, err)
		assert.Equal(t, []string{"mb-projects", "mb-receipts"}, ids)
	})

	t.Run("role_selects_the_special_mailbox", func(t *testing.T) {
		ids, err := models.Mailboxes.QueryAllIDs(ctx, "acc-1", mustFilter(t, `{"role":"inbox"}`), sortBySortOrder)
		require.NoError(t, err)
		assert.Equal(t, []string{"mb-inbox"}, ids)
	})

	t.Run("parentId_lists_the_children", func(t *testing.T) {
		ids, err := models.Mailboxes.QueryAllIDs(ctx, "acc-1", mustFilter(t, `{"parentId":"mb-projects"}`), sortBySortOrder)
		require.NoError(t, err)
		assert.Equal(t, []string{"mb-receipts"}, ids)
	})

	t.Run("name_is_a_case_insensitive_substring_match", func(t *testing.T) {
		ids, err := models.Mailboxes.QueryAllIDs(ctx, "acc-1", mustFilter(t, `{"name":"chive"}`), sortBySortOrder)
		require.NoError(t, err)
		assert.Equal(t, []string{"mb-archive"}, ids)
	})

	t.Run("name_sort_orders_alphabetically", func(t *testing.T) {
		ids, err := models.Mailboxes.QueryAllIDs(ctx, "acc-1", mustFilter(t, `{"hasAnyRole":true}`), []entities.SortComparator{{Property: "name", IsAscending: true}})
		require.NoError(t, err)
		assert.Equal(t, []string{"mb-archive", "mb-drafts", "mb-inbox"}, ids)
	})

	t.Run("offset_and_limit_page_through_the_list", func(t *testing.T) {
		ids, err := models.Mailboxes.QueryIDs(ctx, "acc-1", entities.Filter{}, sortBySortOrder, 1, 2)
		require.NoError(t, err)
		assert.Equal(t, []string{"mb-drafts", "mb-archive"}, ids)
	})

	t.Run("CountQuery_matches_the_filtered_size", func(t *testing.T) {
		total, err := models.Mailboxes.CountQuery(ctx, "acc-1", mustFilter(t, `{"hasAnyRole":true}`))
		require.NoError(t, err)
		assert.Equal(t, int64(3), total)
	})

	t.Run("MatchesFilter_re-evaluates_one_object", func(t *testing.T) {
		matches, err := models.Mailboxes.MatchesFilter(ctx, "acc-1", "mb-inbox", mustFilter(t, `{"role":"inbox"}`))
		require.NoError(t, err)
		assert.True(t, matches)

		matches, err = models.Mailboxes.MatchesFilter(ctx, "acc-1", "mb-projects", mustFilter(t, `{"role":"inbox"}`))
		require.NoError(t, err)
		assert.False(t, matches)
	})

	t.Run("results_are_scoped_to_the_account", func(t *testing.T) {
		ids, err := models.Mailboxes.QueryAllIDs(ctx, "acc-other", entities.Filter{}, sortBySortOrder)
		require.NoError(t, err)
		assert.Empty(t, ids)
	})

	t.Run("unknown_predicate_key_fails_validation", func(t *testing.T) {
		err := models.Mailboxes.ValidateQuery(mustFilter(t, `{"isSubscribed":true}`), nil)
		me, ok := entities.AsMethodError(err)
		require.True(t, ok)
		assert.Equal(t, entities.ErrCodeUnsupportedFilter, me.Code)
	})

	t.Run("unknown_sort_property_fails_validation", func(t *testing.T) {
		err := models.Mailboxes.ValidateQuery(entities.Filter{}, []entities.SortComparator{{Property: "parentId"}})
		me, ok := entities.AsMethodError(err)
		require.True(t, ok)
		assert.Equal(t, entities.ErrCodeUnsupportedSort, me.Code)
	})
}

func Test_MailboxModel_mutations(t *testing.T) {
	models, pool := openTestModels(t)
	ctx := context.Background()
	require.NoError(t, models.Accounts.Ensure(ctx, "acc-1"))

	insertTestMailbox(t, models, pool, Mailbox{ID: "mb-1", AccountID: "acc-1", Name: "Paperwork", SortOrder: 5})

	t.Run("Update_renames_without_touching_sort_order", func(t *testing.T) {
		newName := "Receipts"
		err := db.RunInTransaction(ctx, pool, nil, func(dbTx db.Transaction) error {
			return models.Mailboxes.Update(ctx, dbTx, "acc-1", "mb-1", &newName, nil)
		})
		require.NoError(t, err)

		mailbox, err := models.Mailboxes.Get(ctx, "acc-1", "mb-1")
		require.NoError(t, err)
		assert.Equal(t, "Receipts", mailbox.Name)
		assert.Equal(t, 5, mailbox.SortOrder)
	})

	t.Run("Update_reorders", func(t *testing.T) {
		newOrder := 1
		err := db.RunInTransaction(ctx, pool, nil, func(dbTx db.Transaction) error {
			return models.Mailboxes.Update(ctx, dbTx, "acc-1", "mb-1", nil, &newOrder)
		})
		require.NoError(t, err)

		mailbox, err := models.Mailboxes.Get(ctx, "acc-1", "mb-1")
		require.NoError(t, err)
		assert.Equal(t, 1, mailbox.SortOrder)
	})

	t.Run("missing_mailbox_surfaces_as_not_found", func(t *testing.T) {
		newName := "nope"
		err := db.RunInTransaction(ctx, pool, nil, func(dbTx db.Transaction) error {
			return models.Mailboxes.Update(ctx, dbTx, "acc-1", "nope", &newName, nil)
		})
		assert.ErrorIs(t, err, ErrRecordNotFound)
	})

	t.Run("Delete_removes_the_mailbox", func(t *testing.T) {
		err := db.RunInTransaction(ctx, pool, nil, func(dbTx db.Transaction) error {
			return models.Mailboxes.Delete(ctx, dbTx, "acc-1", "mb-1")
		})
		require.NoError(t, err)

		_, err = models.Mailboxes.Get(ctx, "acc-1", "mb-1")
		assert.ErrorIs(t, err, ErrRecordNotFound)
	})
}

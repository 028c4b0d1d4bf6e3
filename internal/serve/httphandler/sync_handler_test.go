package httphandler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corvidmail/mail-backend/internal/data"
	"github.com/corvidmail/mail-backend/internal/db"
	"github.com/corvidmail/mail-backend/internal/db/dbtest"
	"github.com/corvidmail/mail-backend/internal/serve/middleware"
	"github.com/corvidmail/mail-backend/internal/services"
)

func TestSyncHandler(t *testing.T) {
	dbt := dbtest.Open(t)
	defer dbt.Close()

	dbConnectionPool, err := db.OpenDBConnectionPool(dbt.DSN)
	require.NoError(t, err)
	defer dbConnectionPool.Close()

	models, err := data.NewModels(dbConnectionPool, nil)
	require.NoError(t, err)
	syncService := services.NewSyncService(models, services.SyncLimits{}, nil, nil)
	emailService := services.NewEmailService(models, dbConnectionPool)
	mailboxService := services.NewMailboxService(models, dbConnectionPool)
	handler := SyncHandler{SyncService: syncService}

	// Setup router with the same shape Serve uses.
	r := chi.NewRouter()
	r.Use(middleware.BodySizeLimit(1 << 10))
	r.Route("/accounts/{accountID}", func(r chi.Router) {
		r.Get("/state", handler.GlobalState)
		r.Route("/{collectionType}", func(r chi.Router) {
			r.Get("/state", handler.CollectionState)
			r.Post("/changes", handler.Changes)
			r.Post("/query", handler.Query)
			r.Post("/queryChanges", handler.QueryChanges)
		})
	})

	get := func(t *testing.T, path string) *httptest.ResponseRecorder {
		t.Helper()
		req, err := http.NewRequest(http.MethodGet, path, nil)
		require.NoError(t, err)
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, req)
		return rr
	}
	post := func(t *testing.T, path, body string) *httptest.ResponseRecorder {
		t.Helper()
		req, err := http.NewRequest(http.MethodPost, path, strings.NewReader(body))
		require.NoError(t, err)
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, req)
		return rr
	}

	ctx := context.Background()
	inbox, err := mailboxService.Create(ctx, "acc-1", services.CreateMailboxInput{Name: "Inbox"})
	require.NoError(t, err)
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	first, err := emailService.Create(ctx, "acc-1", services.CreateEmailInput{
		Subject: "first", From: "ana@example.com", To: []string{"bo@example.com"},
		ReceivedAt: base, MailboxIDs: []string{inbox.ID},
	})
	require.NoError(t, err)
	second, err := emailService.Create(ctx, "acc-1", services.CreateEmailInput{
		Subject: "second", From: "ana@example.com", To: []string{"bo@example.com"},
		ReceivedAt: base.Add(time.Hour), MailboxIDs: []string{inbox.ID},
	})
	require.NoError(t, err)

	t.Run("collection_state_reports_the_ledger_position", func(t *testing.T) {
		rr := get(t, "/accounts/acc-1/Email/state")
		assert.Equal(t, http.StatusOK, rr.Code)
		assert.JSONEq(t, `{"state":"2"}`, rr.Body.String())
	})

	t.Run("global_state_is_the_max_across_collections", func(t *testing.T) {
		rr := get(t, "/accounts/acc-1/state")
		assert.Equal(t, http.StatusOK, rr.Code)
		assert.JSONEq(t, `{"state":"3"}`, rr.Body.String())
	})

	t.Run("changes_returns_the_incremental_diff", func(t *testing.T) {
		rr := post(t, "/accounts/acc-1/Email/changes", `{"sinceState":"0"}`)
		assert.Equal(t, http.StatusOK, rr.Code)

		var resp services.ChangesResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		assert.Equal(t, []string{first.ID, second.ID}, resp.Created)
		assert.Equal(t, "2", resp.NewState)
		assert.False(t, resp.HasMoreChanges)
	})

	t.Run("an_unparseable_state_renders_cannotCalculateChanges", func(t *testing.T) {
		rr := post(t, "/accounts/acc-1/Email/changes", `{"sinceState":"bogus"}`)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.JSONEq(t, `{"status":400, "error":"cannot parse state \"bogus\"", "extras":{"type":"cannotCalculateChanges"}}`, rr.Body.String())
	})

	t.Run("an_unknown_collection_type_is_a_bad_request", func(t *testing.T) {
		rr := post(t, "/accounts/acc-1/Calendar/changes", `{"sinceState":"0"}`)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.JSONEq(t, `{"status":400, "error":"Unknown collection type"}`, rr.Body.String())
	})

	t.Run("query_hands_back_a_token_that_queryChanges_accepts", func(t *testing.T) {
		rr := post(t, "/accounts/acc-1/Email/query", `{"sort":[{"property":"receivedAt"}]}`)
		assert.Equal(t, http.StatusOK, rr.Code)

		var queryResp services.QueryResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &queryResp))
		assert.Equal(t, []string{first.ID, second.ID}, queryResp.IDs)
		assert.True(t, queryResp.CanCalculateChanges)

		rr = post(t, "/accounts/acc-1/Email/queryChanges", `{"sinceQueryState":"`+queryResp.QueryState+`"}`)
		assert.Equal(t, http.StatusOK, rr.Code)

		var qcResp services.QueryChangesResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &qcResp))
		assert.Empty(t, qcResp.Added)
		assert.Empty(t, qcResp.Removed)
		assert.Equal(t, queryResp.QueryState, qcResp.OldQueryState)
	})

	t.Run("an_unsupported_filter_is_rejected_with_its_code", func(t *testing.T) {
		rr := post(t, "/accounts/acc-1/Email/query", `{"filter":{"favoriteColor":"red"}}`)
		assert.Equal(t, http.StatusBadRequest, rr.Code)

		var errResp struct {
			Extras map[string]string `json:"extras"`
		}
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &errResp))
		assert.Equal(t, "unsupportedFilter", errResp.Extras["type"])
	})

	t.Run("an_anchor_outside_the_result_set_is_anchorNotFound", func(t *testing.T) {
		rr := post(t, "/accounts/acc-1/Email/query", `{"anchor":"nope"}`)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.JSONEq(t, `{"status":400, "error":"anchor \"nope\" is not in the result set", "extras":{"type":"anchorNotFound"}}`, rr.Body.String())
	})

	t.Run("a_body_over_the_cap_is_requestTooLarge", func(t *testing.T) {
		oversized := `{"sinceState":"0","upToId":"` + strings.Repeat("9", 2048) + `"}`
		rr := post(t, "/accounts/acc-1/Email/changes", oversized)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.JSONEq(t, `{"status":400, "error":"request body exceeds 1024 bytes", "extras":{"type":"requestTooLarge"}}`, rr.Body.String())
	})
}

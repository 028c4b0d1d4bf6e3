// Package httphandler implements the HTTP request handlers.
package httphandler

import (
	"net/http"

	"github.com/go-chi/chi"

	"github.com/corvidmail/mail-backend/internal/apptracker"
	"github.com/corvidmail/mail-backend/internal/entities"
	"github.com/corvidmail/mail-backend/internal/serve/httperror"
	"github.com/corvidmail/mail-backend/internal/serve/httpjson"
	"github.com/corvidmail/mail-backend/internal/services"
)

// SyncHandler serves the synchronization methods: state reads, incremental
// changes, queries and query reconciliation.
type SyncHandler struct {
	SyncService *services.SyncService
	AppTracker  apptracker.AppTracker
}

func (h SyncHandler) collectionType(r *http.Request) (entities.CollectionType, bool) {
	return entities.ParseCollectionType(chi.URLParam(r, "collectionType"))
}

// renderSyncError maps a service error onto the response: modeled method
// errors are client-facing 400s, anything else is an opaque 500.
func (h SyncHandler) renderSyncError(w http.ResponseWriter, r *http.Request, message string, err error) {
	if me, ok := entities.AsMethodError(err); ok {
		httperror.MethodError(me).Render(w)
		return
	}
	httperror.InternalServerError(r.Context(), message, err, h.AppTracker).Render(w)
}

type stateResponse struct {
	State string `json:"state"`
}

func (h SyncHandler) GlobalState(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "accountID")
	state, err := h.SyncService.GlobalState(r.Context(), accountID)
	if err != nil {
		httperror.InternalServerError(r.Context(), "reading global state", err, h.AppTracker).Render(w)
		return
	}
	httpjson.Render(w, stateResponse{State: state})
}

func (h SyncHandler) CollectionState(w http.ResponseWriter, r *http.Request) {
	collection, ok := h.collectionType(r)
	if !ok {
		httperror.BadRequest("Unknown collection type", nil).Render(w)
		return
	}
	accountID := chi.URLParam(r, "accountID")
	state, err := h.SyncService.CurrentState(r.Context(), accountID, collection)
	if err != nil {
		httperror.InternalServerError(r.Context(), "reading collection state", err, h.AppTracker).Render(w)
		return
	}
	httpjson.Render(w, stateResponse{State: state})
}

type changesRequest struct {
	SinceState               string `json:"sinceState"`
	MaxChanges               int    `json:"maxChanges"`
	UpToID                   string `json:"upToId"`
	IncludeUpdatedProperties bool   `json:"includeUpdatedProperties"`
}

func (h SyncHandler) Changes(w http.ResponseWriter, r *http.Request) {
	collection, ok := h.collectionType(r)
	if !ok {
		httperror.BadRequest("Unknown collection type", nil).Render(w)
		return
	}
	var reqBody changesRequest
	if err := httpjson.DecodeJSON(r, &reqBody); err != nil {
		httperror.DecodeError(err).Render(w)
		return
	}

	resp, err := h.SyncService.Changes(r.Context(), services.ChangesRequest{
		AccountID:                chi.URLParam(r, "accountID"),
		Collection:               collection,
		SinceState:               reqBody.SinceState,
		MaxChanges:               reqBody.MaxChanges,
		UpToID:                   reqBody.UpToID,
		IncludeUpdatedProperties: reqBody.IncludeUpdatedProperties,
	})
	if err != nil {
		h.renderSyncError(w, r, "computing changes", err)
		return
	}
	httpjson.Render(w, resp)
}

type queryRequest struct {
	Filter         entities.Filter           `json:"filter"`
	Sort           []entities.SortComparator `json:"sort"`
	Position       int                       `json:"position"`
	Anchor         string                    `json:"anchor"`
	AnchorOffset   int                       `json:"anchorOffset"`
	Limit          int                       `json:"limit"`
	CalculateTotal bool                      `json:"calculateTotal"`
}

func (h SyncHandler) Query(w http.ResponseWriter, r *http.Request) {
	collection, ok := h.collectionType(r)
	if !ok {
		httperror.BadRequest("Unknown collection type", nil).Render(w)
		return
	}
	var reqBody queryRequest
	if err := httpjson.DecodeJSON(r, &reqBody); err != nil {
		httperror.DecodeError(err).Render(w)
		return
	}

	resp, err := h.SyncService.Query(r.Context(), services.QueryRequest{
		AccountID:      chi.URLParam(r, "accountID"),
		Collection:     collection,
		Filter:         reqBody.Filter,
		Sort:           reqBody.Sort,
		Position:       reqBody.Position,
		Anchor:         reqBody.Anchor,
		AnchorOffset:   reqBody.AnchorOffset,
		Limit:          reqBody.Limit,
		CalculateTotal: reqBody.CalculateTotal,
	})
	if err != nil {
		h.renderSyncError(w, r, "running query", err)
		return
	}
	httpjson.Render(w, resp)
}

type queryChangesRequest struct {
	SinceQueryState string                    `json:"sinceQueryState"`
	Filter          *entities.Filter          `json:"filter"`
	Sort            []entities.SortComparator `json:"sort"`
	MaxChanges      int                       `json:"maxChanges"`
}

func (h SyncHandler) QueryChanges(w http.ResponseWriter, r *http.Request) {
	collection, ok := h.collectionType(r)
	if !ok {
		httperror.BadRequest("Unknown collection type", nil).Render(w)
		return
	}
	var reqBody queryChangesRequest
	if err := httpjson.DecodeJSON(r, &reqBody); err != nil {
		httperror.DecodeError(err).Render(w)
		return
	}

	resp, err := h.SyncService.QueryChanges(r.Context(), services.QueryChangesRequest{
		AccountID:       chi.URLParam(r, "accountID"),
		Collection:      collection,
		SinceQueryState: reqBody.SinceQueryState,
		Filter:          reqBody.Filter,
		Sort:            reqBody.Sort,
		MaxChanges:      reqBody.MaxChanges,
	})
	if err != nil {
		h.renderSyncError(w, r, "reconciling query changes", err)
		return
	}
	httpjson.Render(w, resp)
}

package services

import (
	"context"
	"sort"
	"time"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/corvidmail/mail-backend/internal/entities"
)

type QueryChangesRequest struct {
	AccountID       string
	Collection      entities.CollectionType
	SinceQueryState string
	Filter          *entities.Filter
	Sort            []entities.SortComparator
	MaxChanges      int
}

// AddedItem places an id at its index in the current result list.
type AddedItem struct {
	ID    string `json:"id"`
	Index int    `json:"index"`
}

type QueryChangesResponse struct {
	OldQueryState  string      `json:"oldQueryState"`
	NewQueryState  string      `json:"newQueryState"`
	Added          []AddedItem `json:"added"`
	Removed        []string    `json:"removed"`
	TotalChanged   int         `json:"totalChanged"`
	HasMoreChanges bool        `json:"hasMoreChanges"`
}

// QueryChanges reconciles a previously returned query-state token against
// the current result set: which ids left the list, and which entered it and
// where. The filter and sort are taken from the persisted snapshot the token
// binds, so a client cannot diff one query against another.
func (s *SyncService) QueryChanges(ctx context.Context, req QueryChangesRequest) (resp QueryChangesResponse, err error) {
	start := time.Now()
	defer func() { s.observeMethod(req.Collection, "queryChanges", start, err) }()

	collection, err := s.queryable(req.Collection)
	if err != nil {
		return QueryChangesResponse{}, err
	}

	var (
		sinceModSeq int64
		filter      entities.Filter
		sortSpec    []entities.SortComparator
	)
	if decoded, ok := entities.DecodeQueryState(req.SinceQueryState); ok {
		record, err := s.models.QueryStates.Load(ctx, req.AccountID, decoded.RecordID)
		if err != nil {
			if IsNotFound(err) {
				return QueryChangesResponse{}, entities.NewMethodError(entities.ErrCodeInvalidArguments, "unknown or expired queryState %q", req.SinceQueryState)
			}
			return QueryChangesResponse{}, err
		}
		filter, err = record.Filter()
		if err != nil {
			return QueryChangesResponse{}, err
		}
		sortSpec, err = record.Sort()
		if err != nil {
			return QueryChangesResponse{}, err
		}
		if req.Filter != nil {
			equal, err := entities.FiltersEqual(*req.Filter, filter)
			if err != nil {
				return QueryChangesResponse{}, err
			}
			if !equal {
				return QueryChangesResponse{}, entities.NewMethodError(entities.ErrCodeInvalidArguments, "filter does not match the one bound to queryState %q", req.SinceQueryState)
			}
		}
		sinceModSeq = decoded.ModSeq
	} else {
		// A plain token carries no snapshot; it can only stand for the
		// unfiltered, default-ordered listing.
		sinceModSeq, err = entities.ParseState(req.SinceQueryState)
		if err != nil {
			return QueryChangesResponse{}, entities.NewMethodError(entities.ErrCodeCannotCalculateChanges, "cannot parse queryState %q", req.SinceQueryState)
		}
		if req.Filter != nil && !req.Filter.IsNone() {
			return QueryChangesResponse{}, entities.NewMethodError(entities.ErrCodeInvalidArguments, "queryState %q is not bound to a filter", req.SinceQueryState)
		}
		sortSpec = req.Sort
	}

	if err = collection.ValidateQuery(filter, sortSpec); err != nil {
		return QueryChangesResponse{}, err
	}

	window, err := s.changesWindow(ctx, req.AccountID, req.Collection, sinceModSeq, 0, req.MaxChanges, false)
	if err != nil {
		return QueryChangesResponse{}, err
	}

	currentIDs, err := collection.QueryAllIDs(ctx, req.AccountID, filter, sortSpec)
	if err != nil {
		return QueryChangesResponse{}, err
	}
	currentIndex := make(map[string]int, len(currentIDs))
	for i, id := range currentIDs {
		currentIndex[id] = i
	}

	removedSet := mapset.NewThreadUnsafeSet[string](window.Destroyed...)
	added := []AddedItem{}

	// Created and updated objects are re-evaluated against the snapshot
	// filter one id at a time, not by re-diffing the whole collection. A
	// match enters the list at its current index; an updated object that
	// stopped matching leaves it.
	createdSet := mapset.NewThreadUnsafeSet[string](window.Created...)
	candidates := append(append([]string{}, window.Created...), window.Updated...)
	for _, objectID := range candidates {
		matches, err := collection.MatchesFilter(ctx, req.AccountID, objectID, filter)
		if err != nil {
			return QueryChangesResponse{}, err
		}
		if matches {
			if index, inList := currentIndex[objectID]; inList {
				added = append(added, AddedItem{ID: objectID, Index: index})
			}
			continue
		}
		// A created object that never matched (or was destroyed again past
		// the window edge) never entered the client's view; stay silent.
		if !createdSet.Contains(objectID) {
			removedSet.Add(objectID)
		}
	}

	sort.Slice(added, func(i, j int) bool { return added[i].Index < added[j].Index })
	removed := removedSet.ToSlice()
	sort.Strings(removed)

	recordID, err := s.models.QueryStates.Persist(ctx, req.AccountID, req.Collection, filter, sortSpec)
	if err != nil {
		return QueryChangesResponse{}, err
	}

	if s.purger != nil {
		s.purger.MaybeSchedule()
	}
	return QueryChangesResponse{
		OldQueryState:  req.SinceQueryState,
		NewQueryState:  entities.EncodeQueryState(recordID, window.NewModSeq),
		Added:          added,
		Removed:        removed,
		TotalChanged:   len(added) + len(removed),
		HasMoreChanges: window.HasMoreChanges,
	}, nil
}

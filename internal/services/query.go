package services

import (
	"context"
	"time"

	"github.com/guregu/null"
	log "github.com/sirupsen/logrus"

	"github.com/corvidmail/mail-backend/internal/entities"
)

type QueryRequest struct {
	AccountID      string
	Collection     entities.CollectionType
	Filter         entities.Filter
	Sort           []entities.SortComparator
	Position       int
	Anchor         string
	AnchorOffset   int
	Limit          int
	CalculateTotal bool
}

type QueryResponse struct {
	QueryState          string   `json:"queryState"`
	CanCalculateChanges bool     `json:"canCalculateChanges"`
	Position            int      `json:"position"`
	IDs                 []string `json:"ids"`
	Total               null.Int `json:"total"`
}

// Query runs a filtered, ordered, windowed listing and hands back a
// query-state token bound to a persisted snapshot of the filter and sort.
func (s *SyncService) Query(ctx context.Context, req QueryRequest) (resp QueryResponse, err error) {
	start := time.Now()
	defer func() { s.observeMethod(req.Collection, "query", start, err) }()

	collection, err := s.queryable(req.Collection)
	if err != nil {
		return QueryResponse{}, err
	}
	if err = collection.ValidateQuery(req.Filter, req.Sort); err != nil {
		return QueryResponse{}, err
	}

	limit := req.Limit
	if limit <= 0 {
		limit = s.limits.MaxObjectsPerPage
	}
	if limit > s.limits.MaxObjectsPerPage {
		return QueryResponse{}, entities.NewMethodError(entities.ErrCodeLimitExceeded, "limit %d exceeds the maximum of %d", limit, s.limits.MaxObjectsPerPage)
	}

	// The ledger position is read before the listing so a concurrent write
	// surfaces as a change against this token rather than being lost.
	headModSeq, err := s.models.AccountStates.CurrentState(ctx, s.models.AccountStates.DB, req.AccountID, req.Collection)
	if err != nil {
		return QueryResponse{}, err
	}

	resp = QueryResponse{IDs: []string{}}

	if req.Anchor != "" {
		allIDs, err := collection.QueryAllIDs(ctx, req.AccountID, req.Filter, req.Sort)
		if err != nil {
			return QueryResponse{}, err
		}
		anchorIndex := -1
		for i, id := range allIDs {
			if id == req.Anchor {
				anchorIndex = i
				break
			}
		}
		if anchorIndex < 0 {
			return QueryResponse{}, entities.NewMethodError(entities.ErrCodeAnchorNotFound, "anchor %q is not in the result set", req.Anchor)
		}
		position := anchorIndex + req.AnchorOffset
		if position < 0 {
			position = 0
		}
		resp.Position = position
		if position < len(allIDs) {
			end := position + limit
			if end > len(allIDs) {
				end = len(allIDs)
			}
			resp.IDs = append(resp.IDs, allIDs[position:end]...)
		}
		if req.CalculateTotal {
			resp.Total = null.IntFrom(int64(len(allIDs)))
		}
	} else {
		position := req.Position
		if position < 0 {
			position = 0
		}
		resp.Position = position
		ids, err := collection.QueryIDs(ctx, req.AccountID, req.Filter, req.Sort, position, limit)
		if err != nil {
			return QueryResponse{}, err
		}
		resp.IDs = append(resp.IDs, ids...)
		if req.CalculateTotal {
			total, err := collection.CountQuery(ctx, req.AccountID, req.Filter)
			if err != nil {
				return QueryResponse{}, err
			}
			resp.Total = null.IntFrom(total)
		}
	}

	recordID, persistErr := s.models.QueryStates.Persist(ctx, req.AccountID, req.Collection, req.Filter, req.Sort)
	if persistErr != nil {
		// The listing itself succeeded; degrade to a plain token and tell the
		// client incremental query sync is unavailable for it.
		log.WithContext(ctx).WithError(persistErr).Warnf("persisting query state for account %s", req.AccountID)
		resp.QueryState = entities.FormatState(headModSeq)
		resp.CanCalculateChanges = false
	} else {
		resp.QueryState = entities.EncodeQueryState(recordID, headModSeq)
		resp.CanCalculateChanges = true
	}

	if s.purger != nil {
		s.purger.MaybeSchedule()
	}
	return resp, nil
}

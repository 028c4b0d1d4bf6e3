// Package services implements the synchronization engine: incremental
// change reconciliation, query execution with opaque query-state tokens,
// and the mutation services that feed the change log.
package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/corvidmail/mail-backend/internal/data"
	"github.com/corvidmail/mail-backend/internal/entities"
	"github.com/corvidmail/mail-backend/internal/metrics"
)

// SyncLimits are the server-wide ceilings applied to reconciliation and
// query calls. They are owned by configuration, not by this package.
type SyncLimits struct {
	MaxChangesPerPage int
	MaxObjectsPerPage int
}

const (
	defaultMaxChangesPerPage = 512
	defaultMaxObjectsPerPage = 500
)

func (l SyncLimits) withDefaults() SyncLimits {
	if l.MaxChangesPerPage <= 0 {
		l.MaxChangesPerPage = defaultMaxChangesPerPage
	}
	if l.MaxObjectsPerPage <= 0 {
		l.MaxObjectsPerPage = defaultMaxObjectsPerPage
	}
	return l
}

// Queryable is a collection the query engine can filter, order and count.
// Collections without an implementation still synchronize through */changes
// but reject */query and */queryChanges.
type Queryable interface {
	ValidateQuery(filter entities.Filter, sort []entities.SortComparator) error
	QueryIDs(ctx context.Context, accountID string, filter entities.Filter, sort []entities.SortComparator, offset, limit int) ([]string, error)
	QueryAllIDs(ctx context.Context, accountID string, filter entities.Filter, sort []entities.SortComparator) ([]string, error)
	CountQuery(ctx context.Context, accountID string, filter entities.Filter) (int64, error)
	MatchesFilter(ctx context.Context, accountID, objectID string, filter entities.Filter) (bool, error)
}

type SyncService struct {
	models         *data.Models
	limits         SyncLimits
	purger         *PurgeScheduler
	metricsService metrics.MetricsService
	queryables     map[entities.CollectionType]Queryable
}

// NewSyncService wires the engine. purger and metricsService may be nil.
func NewSyncService(models *data.Models, limits SyncLimits, purger *PurgeScheduler, metricsService metrics.MetricsService) *SyncService {
	return &SyncService{
		models:         models,
		limits:         limits.withDefaults(),
		purger:         purger,
		metricsService: metricsService,
		queryables: map[entities.CollectionType]Queryable{
			entities.CollectionEmail:   models.Emails,
			entities.CollectionMailbox: models.Mailboxes,
		},
	}
}

func (s *SyncService) observeMethod(collection entities.CollectionType, method string, start time.Time, err error) {
	if s.metricsService == nil {
		return
	}
	s.metricsService.IncMethodCall(string(collection), method)
	s.metricsService.ObserveMethodDuration(string(collection), method, time.Since(start).Seconds())
	if me, ok := entities.AsMethodError(err); ok {
		s.metricsService.IncMethodError(string(collection), method, string(me.Code))
	}
}

// CurrentState returns the opaque state token for one collection.
func (s *SyncService) CurrentState(ctx context.Context, accountID string, collection entities.CollectionType) (string, error) {
	modSeq, err := s.models.AccountStates.CurrentState(ctx, s.models.AccountStates.DB, accountID, collection)
	if err != nil {
		return "", err
	}
	return entities.FormatState(modSeq), nil
}

// GlobalState returns the coarse account-wide state token: the maximum
// modSeq across all collections.
func (s *SyncService) GlobalState(ctx context.Context, accountID string) (string, error) {
	modSeq, err := s.models.AccountStates.GlobalState(ctx, s.models.AccountStates.DB, accountID)
	if err != nil {
		return "", err
	}
	return entities.FormatState(modSeq), nil
}

type ChangesRequest struct {
	AccountID  string
	Collection entities.CollectionType
	SinceState string
	MaxChanges int
	// UpToID optionally bounds the window from above so a client can page
	// toward a fixed ledger position instead of a moving head.
	UpToID                   string
	IncludeUpdatedProperties bool
}

type ChangesResponse struct {
	OldState          string              `json:"oldState"`
	NewState          string              `json:"newState"`
	Created           []string            `json:"created"`
	Updated           []string            `json:"updated"`
	Destroyed         []string            `json:"destroyed"`
	UpdatedProperties map[string][]string `json:"updatedProperties,omitempty"`
	HasMoreChanges    bool                `json:"hasMoreChanges"`
}

// Changes computes the incremental created/updated/destroyed sets between
// the presented state and the current ledger position.
func (s *SyncService) Changes(ctx context.Context, req ChangesRequest) (resp ChangesResponse, err error) {
	start := time.Now()
	defer func() { s.observeMethod(req.Collection, "changes", start, err) }()

	since, parseErr := entities.ParseState(req.SinceState)
	if parseErr != nil {
		return ChangesResponse{}, entities.NewMethodError(entities.ErrCodeCannotCalculateChanges, "cannot parse state %q", req.SinceState)
	}
	var upTo int64
	if req.UpToID != "" {
		upTo, parseErr = entities.ParseState(req.UpToID)
		if parseErr != nil {
			return ChangesResponse{}, entities.NewMethodError(entities.ErrCodeInvalidArguments, "cannot parse upToId %q", req.UpToID)
		}
	}

	window, err := s.changesWindow(ctx, req.AccountID, req.Collection, since, upTo, req.MaxChanges, req.IncludeUpdatedProperties)
	if err != nil {
		return ChangesResponse{}, err
	}

	return ChangesResponse{
		OldState:          entities.FormatState(window.OldModSeq),
		NewState:          entities.FormatState(window.NewModSeq),
		Created:           window.Created,
		Updated:           window.Updated,
		Destroyed:         window.Destroyed,
		UpdatedProperties: window.UpdatedProperties,
		HasMoreChanges:    window.HasMoreChanges,
	}, nil
}

// changesResult is the internal form shared by Changes and QueryChanges.
type changesResult struct {
	OldModSeq         int64
	NewModSeq         int64
	Created           []string
	Updated           []string
	Destroyed         []string
	UpdatedProperties map[string][]string
	HasMoreChanges    bool
}

func (s *SyncService) changesWindow(ctx context.Context, accountID string, collection entities.CollectionType, since, upTo int64, maxChanges int, includeProps bool) (changesResult, error) {
	limit := maxChanges
	if limit <= 0 || limit > s.limits.MaxChangesPerPage {
		limit = s.limits.MaxChangesPerPage
	}

	entries, err := s.models.ChangeLog.ListSince(ctx, accountID, collection, since, upTo, limit+1)
	if err != nil {
		return changesResult{}, fmt.Errorf("reading change log window: %w", err)
	}

	result := changesResult{
		OldModSeq: since,
		Created:   []string{},
		Updated:   []string{},
		Destroyed: []string{},
	}

	if len(entries) == 0 {
		head, err := s.models.AccountStates.CurrentState(ctx, s.models.AccountStates.DB, accountID, collection)
		if err != nil {
			return changesResult{}, err
		}
		if since > head {
			// The client presents a state this server never handed out.
			return changesResult{}, entities.NewMethodError(entities.ErrCodeCannotCalculateChanges, "state %d is ahead of the server", since)
		}
		result.NewModSeq = head
		return result, nil
	}

	if len(entries) > limit {
		result.HasMoreChanges = true
		entries = entries[:limit]
	}
	// On truncation the new state is the last entry inside the window, so
	// the client can resume from there; otherwise it equals the ledger head
	// at snapshot time.
	result.NewModSeq = entries[len(entries)-1].ModSeq

	result.Created, result.Updated, result.Destroyed, result.UpdatedProperties = classifyWindow(entries, includeProps)
	return result, nil
}

// classifyWindow compacts a window of change log entries into the net
// effect per object id: if the last op is destroy the object is destroyed
// (an in-window create is elided); otherwise a first op of create makes it
// created; anything else is updated. Clients never see transient
// intermediate states.
func classifyWindow(entries []data.ChangeLogEntry, includeProps bool) (created, updated, destroyed []string, updatedProperties map[string][]string) {
	type objectWindow struct {
		firstOp entities.ChangeOp
		lastOp  entities.ChangeOp
	}

	windows := make(map[string]*objectWindow)
	propSets := make(map[string]mapset.Set[string])
	var order []string

	for _, entry := range entries {
		w, seen := windows[entry.ObjectID]
		if !seen {
			windows[entry.ObjectID] = &objectWindow{firstOp: entry.Op, lastOp: entry.Op}
			order = append(order, entry.ObjectID)
		} else {
			w.lastOp = entry.Op
		}
		if includeProps && len(entry.UpdatedProperties) > 0 {
			set, ok := propSets[entry.ObjectID]
			if !ok {
				set = mapset.NewThreadUnsafeSet[string]()
				propSets[entry.ObjectID] = set
			}
			set.Append(entry.UpdatedProperties...)
		}
	}

	created, updated, destroyed = []string{}, []string{}, []string{}
	for _, objectID := range order {
		w := windows[objectID]
		switch {
		case w.lastOp == entities.ChangeOpDestroy:
			destroyed = append(destroyed, objectID)
		case w.firstOp == entities.ChangeOpCreate:
			created = append(created, objectID)
		default:
			updated = append(updated, objectID)
		}
	}

	if includeProps {
		updatedProperties = make(map[string][]string, len(updated))
		for _, objectID := range updated {
			set, ok := propSets[objectID]
			if !ok {
				continue
			}
			props := set.ToSlice()
			sort.Strings(props)
			updatedProperties[objectID] = props
		}
	}
	return created, updated, destroyed, updatedProperties
}

func (s *SyncService) queryable(collection entities.CollectionType) (Queryable, error) {
	q, ok := s.queryables[collection]
	if !ok {
		return nil, entities.NewMethodError(entities.ErrCodeInvalidArguments, "collection %s does not support queries", collection)
	}
	return q, nil
}

// IsNotFound reports whether err means a missing, account-scoped record.
func IsNotFound(err error) bool {
	return errors.Is(err, data.ErrRecordNotFound)
}

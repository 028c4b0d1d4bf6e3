package data

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/corvidmail/mail-backend/internal/db"
	"github.com/corvidmail/mail-backend/internal/entities"
	"github.com/corvidmail/mail-backend/internal/metrics"
)

// QueryStateTTL is how long an unused query-state snapshot is kept before
// the purge removes it.
const QueryStateTTL = 7 * 24 * time.Hour

// QueryState persists the (filter, sort) pair a query ran with, addressable
// by an opaque id. Records are write-once: a changed filter or sort always
// creates a new record.
type QueryState struct {
	ID             string                  `db:"id"`
	AccountID      string                  `db:"account_id"`
	CollectionType entities.CollectionType `db:"collection_type"`
	FilterJSON     string                  `db:"filter_json"`
	SortJSON       string                  `db:"sort_json"`
	CreatedAt      time.Time               `db:"created_at"`
	LastAccessedAt time.Time               `db:"last_accessed_at"`
}

// Filter decodes the stored canonical filter.
func (qs QueryState) Filter() (entities.Filter, error) {
	var f entities.Filter
	if err := json.Unmarshal([]byte(qs.FilterJSON), &f); err != nil {
		return entities.Filter{}, fmt.Errorf("decoding stored filter of query state %s: %w", qs.ID, err)
	}
	return f, nil
}

// Sort decodes the stored canonical sort spec.
func (qs QueryState) Sort() ([]entities.SortComparator, error) {
	var sort []entities.SortComparator
	if err := json.Unmarshal([]byte(qs.SortJSON), &sort); err != nil {
		return nil, fmt.Errorf("decoding stored sort of query state %s: %w", qs.ID, err)
	}
	return sort, nil
}

type QueryStateModel struct {
	DB             db.ConnectionPool
	MetricsService metrics.MetricsService
}

// Persist canonicalizes filter and sort and inserts a new snapshot record,
// returning its id.
func (m *QueryStateModel) Persist(ctx context.Context, accountID string, collection entities.CollectionType, filter entities.Filter, sort []entities.SortComparator) (string, error) {
	filterJSON, err := entities.CanonicalFilter(filter)
	if err != nil {
		return "", fmt.Errorf("canonicalizing filter: %w", err)
	}
	sortJSON, err := entities.CanonicalSort(sort)
	if err != nil {
		return "", fmt.Errorf("canonicalizing sort: %w", err)
	}

	const query = `
		INSERT INTO query_states (id, account_id, collection_type, filter_json, sort_json)
		VALUES ($1, $2, $3, $4, $5)`
	id := uuid.NewString()
	start := time.Now()
	_, err = m.DB.ExecContext(ctx, query, id, accountID, collection, filterJSON, sortJSON)
	observeQuery(m.MetricsService, "Persist", "query_states", start, err)
	if err != nil {
		return "", fmt.Errorf("persisting query state for account %s: %w", accountID, err)
	}
	return id, nil
}

// Load returns the snapshot bound to id, refreshing its last-accessed
// timestamp. Records are scoped to the creating account; a foreign id
// behaves as not found.
func (m *QueryStateModel) Load(ctx context.Context, accountID, id string) (QueryState, error) {
	const query = `
		UPDATE query_states SET last_accessed_at = NOW()
		WHERE id = $1 AND account_id = $2
		RETURNING *`
	var qs QueryState
	start := time.Now()
	err := m.DB.GetContext(ctx, &qs, query, id, accountID)
	if errors.Is(err, sql.ErrNoRows) {
		observeQuery(m.MetricsService, "Load", "query_states", start, nil)
		return QueryState{}, ErrRecordNotFound
	}
	observeQuery(m.MetricsService, "Load", "query_states", start, err)
	if err != nil {
		return QueryState{}, fmt.Errorf("loading query state %s for account %s: %w", id, accountID, err)
	}
	return qs, nil
}

// PurgeStale deletes snapshots not accessed within ttl and returns how many
// were removed.
func (m *QueryStateModel) PurgeStale(ctx context.Context, ttl time.Duration) (int64, error) {
	const query = `DELETE FROM query_states WHERE last_accessed_at < $1`
	start := time.Now()
	res, err := m.DB.ExecContext(ctx, query, time.Now().Add(-ttl))
	observeQuery(m.MetricsService, "PurgeStale", "query_states", start, err)
	if err != nil {
		return 0, fmt.Errorf("purging stale query states: %w", err)
	}
	purged, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("counting purged query states: %w", err)
	}
	return purged, nil
}

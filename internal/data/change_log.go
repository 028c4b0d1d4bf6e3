package data

import (
	"context"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/corvidmail/mail-backend/internal/db"
	"github.com/corvidmail/mail-backend/internal/entities"
	"github.com/corvidmail/mail-backend/internal/metrics"
)

// ChangeLogEntry is one append-only record of a create/update/destroy
// applied to an object. Entries are never updated; an object's lifecycle is
// reconstructed by scanning its entries in modSeq order.
type ChangeLogEntry struct {
	ID                int64                   `db:"id"`
	AccountID         string                  `db:"account_id"`
	CollectionType    entities.CollectionType `db:"collection_type"`
	ObjectID          string                  `db:"object_id"`
	Op                entities.ChangeOp       `db:"op"`
	ModSeq            int64                   `db:"mod_seq"`
	UpdatedProperties pq.StringArray          `db:"updated_properties"`
	CreatedAt         time.Time               `db:"created_at"`
}

type ChangeLogModel struct {
	DB             db.ConnectionPool
	States         *AccountStateModel
	MetricsService metrics.MetricsService
}

// Record bumps the state ledger and appends the matching change log entry as
// one unit inside the caller's transaction. Mutation handlers call this once
// per affected collection type; partial application would desynchronize
// every client, hence the shared transaction.
func (m *ChangeLogModel) Record(ctx context.Context, dbTx db.Transaction, accountID string, collection entities.CollectionType, objectID string, op entities.ChangeOp, updatedProperties []string) (int64, error) {
	modSeq, err := m.States.Bump(ctx, dbTx, accountID, collection)
	if err != nil {
		return 0, fmt.Errorf("bumping ledger before recording change: %w", err)
	}

	const query = `
		INSERT INTO change_log (account_id, collection_type, object_id, op, mod_seq, updated_properties)
		VALUES ($1, $2, $3, $4, $5, $6)`
	var updatedProps interface{}
	if len(updatedProperties) > 0 {
		updatedProps = pq.StringArray(updatedProperties)
	}
	start := time.Now()
	_, err = dbTx.ExecContext(ctx, query, accountID, collection, objectID, op, modSeq, updatedProps)
	observeQuery(m.MetricsService, "Record", "change_log", start, err)
	if err != nil {
		return 0, fmt.Errorf("recording %s of %s/%s for account %s: %w", op, collection, objectID, accountID, err)
	}
	return modSeq, nil
}

// ListSince returns up to limit entries with modSeq > sinceModSeq in
// ascending modSeq order. upToModSeq > 0 bounds the scan from above.
func (m *ChangeLogModel) ListSince(ctx context.Context, accountID string, collection entities.CollectionType, sinceModSeq, upToModSeq int64, limit int) ([]ChangeLogEntry, error) {
	const query = `
		SELECT * FROM change_log
		WHERE account_id = $1 AND collection_type = $2 AND mod_seq > $3 AND ($4 <= 0 OR mod_seq <= $4)
		ORDER BY mod_seq ASC
		LIMIT $5`
	var entries []ChangeLogEntry
	start := time.Now()
	err := m.DB.SelectContext(ctx, &entries, query, accountID, collection, sinceModSeq, upToModSeq, limit)
	observeQuery(m.MetricsService, "ListSince", "change_log", start, err)
	if err != nil {
		return nil, fmt.Errorf("listing changes for account %s collection %s since %d: %w", accountID, collection, sinceModSeq, err)
	}
	return entries, nil
}

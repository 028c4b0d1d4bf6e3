package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/corvidmail/mail-backend/internal/db"
	"github.com/corvidmail/mail-backend/internal/entities"
	"github.com/corvidmail/mail-backend/internal/metrics"
)

// AccountState is one row of the state ledger: the highest modSeq handed out
// for an (account, collection type) pair. Absence of a row means modSeq 0.
type AccountState struct {
	AccountID      string                  `db:"account_id"`
	CollectionType entities.CollectionType `db:"collection_type"`
	ModSeq         int64                   `db:"mod_seq"`
	UpdatedAt      time.Time               `db:"updated_at"`
}

type AccountStateModel struct {
	DB             db.ConnectionPool
	MetricsService metrics.MetricsService
}

// Bump atomically increments the ledger for (accountID, collection) and
// returns the new modSeq. Concurrent callers serialize through the backing
// store's insert-or-increment, never through application locks. sqlExec is
// the caller's transaction when the bump must commit together with other
// writes.
func (m *AccountStateModel) Bump(ctx context.Context, sqlExec db.SQLExecuter, accountID string, collection entities.CollectionType) (int64, error) {
	const query = `
		INSERT INTO account_states (account_id, collection_type, mod_seq)
		VALUES ($1, $2, 1)
		ON CONFLICT (account_id, collection_type)
		DO UPDATE SET mod_seq = account_states.mod_seq + 1, updated_at = NOW()
		RETURNING mod_seq`
	var modSeq int64
	start := time.Now()
	err := sqlExec.GetContext(ctx, &modSeq, query, accountID, collection)
	observeQuery(m.MetricsService, "Bump", "account_states", start, err)
	if err != nil {
		return 0, fmt.Errorf("bumping state for account %s collection %s: %w", accountID, collection, err)
	}
	return modSeq, nil
}

// CurrentState returns the ledger position for (accountID, collection), 0
// when the collection was never mutated.
func (m *AccountStateModel) CurrentState(ctx context.Context, sqlExec db.SQLExecuter, accountID string, collection entities.CollectionType) (int64, error) {
	const query = `SELECT mod_seq FROM account_states WHERE account_id = $1 AND collection_type = $2`
	var modSeq int64
	start := time.Now()
	err := sqlExec.GetContext(ctx, &modSeq, query, accountID, collection)
	if errors.Is(err, sql.ErrNoRows) {
		observeQuery(m.MetricsService, "CurrentState", "account_states", start, nil)
		return 0, nil
	}
	observeQuery(m.MetricsService, "CurrentState", "account_states", start, err)
	if err != nil {
		return 0, fmt.Errorf("reading state for account %s collection %s: %w", accountID, collection, err)
	}
	return modSeq, nil
}

// GlobalState returns the maximum modSeq across all collections of the
// account. Only used as a coarse top-level cursor, never for reconciliation.
func (m *AccountStateModel) GlobalState(ctx context.Context, sqlExec db.SQLExecuter, accountID string) (int64, error) {
	const query = `SELECT COALESCE(MAX(mod_seq), 0) FROM account_states WHERE account_id = $1`
	var modSeq int64
	start := time.Now()
	err := sqlExec.GetContext(ctx, &modSeq, query, accountID)
	observeQuery(m.MetricsService, "GlobalState", "account_states", start, err)
	if err != nil {
		return 0, fmt.Errorf("reading global state for account %s: %w", accountID, err)
	}
	return modSeq, nil
}

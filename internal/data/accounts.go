package data

import (
	"context"
	"fmt"
	"time"

	"github.com/corvidmail/mail-backend/internal/db"
	"github.com/corvidmail/mail-backend/internal/metrics"
)

type Account struct {
	ID        string    `db:"id"`
	CreatedAt time.Time `db:"created_at"`
}

type AccountModel struct {
	DB             db.ConnectionPool
	MetricsService metrics.MetricsService
}

// Ensure creates the account row if it does not exist yet.
func (m *AccountModel) Ensure(ctx context.Context, accountID string) error {
	const query = `INSERT INTO accounts (id) VALUES ($1) ON CONFLICT DO NOTHING`
	start := time.Now()
	_, err := m.DB.ExecContext(ctx, query, accountID)
	observeQuery(m.MetricsService, "Ensure", "accounts", start, err)
	if err != nil {
		return fmt.Errorf("ensuring account %s: %w", accountID, err)
	}
	return nil
}

// Exists reports whether the account is known.
func (m *AccountModel) Exists(ctx context.Context, accountID string) (bool, error) {
	const query = `SELECT EXISTS(SELECT 1 FROM accounts WHERE id = $1)`
	var exists bool
	start := time.Now()
	err := m.DB.GetContext(ctx, &exists, query, accountID)
	observeQuery(m.MetricsService, "Exists", "accounts", start, err)
	if err != nil {
		return false, fmt.Errorf("checking account %s exists: %w", accountID, err)
	}
	return exists, nil
}

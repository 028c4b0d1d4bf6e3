package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/guregu/null"

	"github.com/corvidmail/mail-backend/internal/db"
	"github.com/corvidmail/mail-backend/internal/metrics"
)

// The auxiliary collections synchronize through */changes only; they carry no
// query engine, so their models stay minimal.

type Identity struct {
	ID        string    `db:"id"`
	AccountID string    `db:"account_id"`
	Name      string    `db:"name"`
	Email     string    `db:"email"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

type IdentityModel struct {
	DB             db.ConnectionPool
	MetricsService metrics.MetricsService
}

func (m *IdentityModel) Get(ctx context.Context, accountID, id string) (Identity, error) {
	const query = `SELECT * FROM identities WHERE account_id = $1 AND id = $2`
	var identity Identity
	start := time.Now()
	err := m.DB.GetContext(ctx, &identity, query, accountID, id)
	if errors.Is(err, sql.ErrNoRows) {
		observeQuery(m.MetricsService, "Get", "identities", start, nil)
		return Identity{}, ErrRecordNotFound
	}
	observeQuery(m.MetricsService, "Get", "identities", start, err)
	if err != nil {
		return Identity{}, fmt.Errorf("getting identity %s for account %s: %w", id, accountID, err)
	}
	return identity, nil
}

func (m *IdentityModel) Insert(ctx context.Context, dbTx db.Transaction, identity Identity) error {
	const query = `INSERT INTO identities (id, account_id, name, email) VALUES (:id, :account_id, :name, :email)`
	start := time.Now()
	_, err := dbTx.NamedExecContext(ctx, query, identity)
	observeQuery(m.MetricsService, "Insert", "identities", start, err)
	if err != nil {
		return fmt.Errorf("inserting identity %s: %w", identity.ID, err)
	}
	return nil
}

func (m *IdentityModel) Delete(ctx context.Context, dbTx db.Transaction, accountID, id string) error {
	const query = `DELETE FROM identities WHERE account_id = $1 AND id = $2`
	start := time.Now()
	res, err := dbTx.ExecContext(ctx, query, accountID, id)
	observeQuery(m.MetricsService, "Delete", "identities", start, err)
	if err != nil {
		return fmt.Errorf("deleting identity %s: %w", id, err)
	}
	return oneRowAffected(res, id)
}

type EmailSubmission struct {
	ID         string    `db:"id"`
	AccountID  string    `db:"account_id"`
	EmailID    string    `db:"email_id"`
	IdentityID string    `db:"identity_id"`
	UndoStatus string    `db:"undo_status"`
	SendAt     null.Time `db:"send_at"`
	CreatedAt  time.Time `db:"created_at"`
}

type EmailSubmissionModel struct {
	DB             db.ConnectionPool
	MetricsService metrics.MetricsService
}

func (m *EmailSubmissionModel) Insert(ctx context.Context, dbTx db.Transaction, submission EmailSubmission) error {
	const query = `
		INSERT INTO email_submissions (id, account_id, email_id, identity_id, undo_status, send_at)
		VALUES (:id, :account_id, :email_id, :identity_id, :undo_status, :send_at)`
	start := time.Now()
	_, err := dbTx.NamedExecContext(ctx, query, submission)
	observeQuery(m.MetricsService, "Insert", "email_submissions", start, err)
	if err != nil {
		return fmt.Errorf("inserting email submission %s: %w", submission.ID, err)
	}
	return nil
}

// UpdateUndoStatus moves a submission between pending/canceled/final.
func (m *EmailSubmissionModel) UpdateUndoStatus(ctx context.Context, dbTx db.Transaction, accountID, id, undoStatus string) error {
	const query = `UPDATE email_submissions SET undo_status = $3 WHERE account_id = $1 AND id = $2`
	start := time.Now()
	res, err := dbTx.ExecContext(ctx, query, accountID, id, undoStatus)
	observeQuery(m.MetricsService, "UpdateUndoStatus", "email_submissions", start, err)
	if err != nil {
		return fmt.Errorf("updating email submission %s: %w", id, err)
	}
	return oneRowAffected(res, id)
}

type PushSubscription struct {
	ID             string    `db:"id"`
	AccountID      string    `db:"account_id"`
	DeviceClientID string    `db:"device_client_id"`
	URL            string    `db:"url"`
	ExpiresAt      null.Time `db:"expires_at"`
	CreatedAt      time.Time `db:"created_at"`
}

type PushSubscriptionModel struct {
	DB             db.ConnectionPool
	MetricsService metrics.MetricsService
}

func (m *PushSubscriptionModel) Insert(ctx context.Context, dbTx db.Transaction, subscription PushSubscription) error {
	const query = `
		INSERT INTO push_subscriptions (id, account_id, device_client_id, url, expires_at)
		VALUES (:id, :account_id, :device_client_id, :url, :expires_at)`
	start := time.Now()
	_, err := dbTx.NamedExecContext(ctx, query, subscription)
	observeQuery(m.MetricsService, "Insert", "push_subscriptions", start, err)
	if err != nil {
		return fmt.Errorf("inserting push subscription %s: %w", subscription.ID, err)
	}
	return nil
}

func (m *PushSubscriptionModel) Delete(ctx context.Context, dbTx db.Transaction, accountID, id string) error {
	const query = `DELETE FROM push_subscriptions WHERE account_id = $1 AND id = $2`
	start := time.Now()
	res, err := dbTx.ExecContext(ctx, query, accountID, id)
	observeQuery(m.MetricsService, "Delete", "push_subscriptions", start, err)
	if err != nil {
		return fmt.Errorf("deleting push subscription %s: %w", id, err)
	}
	return oneRowAffected(res, id)
}

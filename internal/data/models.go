// Package data provides the data access models: the per-account state
// ledger, the append-only change log, persisted query-state snapshots and
// the queryable mail collections.
package data

import (
	"errors"

	"github.com/corvidmail/mail-backend/internal/db"
	"github.com/corvidmail/mail-backend/internal/metrics"
)

// ErrRecordNotFound is returned when a row scoped to the requesting account
// does not exist.
var ErrRecordNotFound = errors.New("record not found")

type Models struct {
	Accounts          *AccountModel
	AccountStates     *AccountStateModel
	ChangeLog         *ChangeLogModel
	QueryStates       *QueryStateModel
	Emails            *EmailModel
	Mailboxes         *MailboxModel
	Identities        *IdentityModel
	EmailSubmissions  *EmailSubmissionModel
	PushSubscriptions *PushSubscriptionModel
}

func NewModels(dbConnectionPool db.ConnectionPool, metricsService metrics.MetricsService) (*Models, error) {
	if dbConnectionPool == nil {
		return nil, errors.New("ConnectionPool must be initialized")
	}

	accountStates := &AccountStateModel{DB: dbConnectionPool, MetricsService: metricsService}
	return &Models{
		Accounts:          &AccountModel{DB: dbConnectionPool, MetricsService: metricsService},
		AccountStates:     accountStates,
		ChangeLog:         &ChangeLogModel{DB: dbConnectionPool, States: accountStates, MetricsService: metricsService},
		QueryStates:       &QueryStateModel{DB: dbConnectionPool, MetricsService: metricsService},
		Emails:            &EmailModel{DB: dbConnectionPool, MetricsService: metricsService},
		Mailboxes:         &MailboxModel{DB: dbConnectionPool, MetricsService: metricsService},
		Identities:        &IdentityModel{DB: dbConnectionPool, MetricsService: metricsService},
		EmailSubmissions:  &EmailSubmissionModel{DB: dbConnectionPool, MetricsService: metricsService},
		PushSubscriptions: &PushSubscriptionModel{DB: dbConnectionPool, MetricsService: metricsService},
	}, nil
}

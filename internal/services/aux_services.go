package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/guregu/null"

	"github.com/corvidmail/mail-backend/internal/data"
	"github.com/corvidmail/mail-backend/internal/db"
	"github.com/corvidmail/mail-backend/internal/entities"
)

// AuxService mutates the changes-only collections: identities, email
// submissions and push subscriptions. They have no query engine; clients
// track them through */changes alone.
type AuxService struct {
	models *data.Models
	pool   db.ConnectionPool
}

func NewAuxService(models *data.Models, pool db.ConnectionPool) *AuxService {
	return &AuxService{models: models, pool: pool}
}

func (s *AuxService) CreateIdentity(ctx context.Context, accountID, name, email string) (data.Identity, error) {
	if err := s.models.Accounts.Ensure(ctx, accountID); err != nil {
		return data.Identity{}, err
	}

	identity := data.Identity{
		ID:        uuid.NewString(),
		AccountID: accountID,
		Name:      name,
		Email:     email,
	}
	err := runInTxWithRetry(ctx, s.pool, func(dbTx db.Transaction) error {
		if err := s.models.Identities.Insert(ctx, dbTx, identity); err != nil {
			return err
		}
		_, err := s.models.ChangeLog.Record(ctx, dbTx, accountID, entities.CollectionIdentity, identity.ID, entities.ChangeOpCreate, nil)
		return err
	})
	if err != nil {
		return data.Identity{}, err
	}
	return identity, nil
}

func (s *AuxService) DestroyIdentity(ctx context.Context, accountID, identityID string) error {
	return runInTxWithRetry(ctx, s.pool, func(dbTx db.Transaction) error {
		if err := s.models.Identities.Delete(ctx, dbTx, accountID, identityID); err != nil {
			return err
		}
		_, err := s.models.ChangeLog.Record(ctx, dbTx, accountID, entities.CollectionIdentity, identityID, entities.ChangeOpDestroy, nil)
		return err
	})
}

// CreateSubmission queues an email for sending through an identity.
func (s *AuxService) CreateSubmission(ctx context.Context, accountID, emailID, identityID string, sendAt *time.Time) (data.EmailSubmission, error) {
	// Both referents must belong to the account.
	if _, err := s.models.Emails.Get(ctx, accountID, emailID); err != nil {
		return data.EmailSubmission{}, err
	}
	if _, err := s.models.Identities.Get(ctx, accountID, identityID); err != nil {
		return data.EmailSubmission{}, err
	}

	submission := data.EmailSubmission{
		ID:         uuid.NewString(),
		AccountID:  accountID,
		EmailID:    emailID,
		IdentityID: identityID,
		UndoStatus: "final",
		SendAt:     null.TimeFromPtr(sendAt),
	}
	if sendAt != nil {
		submission.UndoStatus = "pending"
	}
	err := runInTxWithRetry(ctx, s.pool, func(dbTx db.Transaction) error {
		if err := s.models.EmailSubmissions.Insert(ctx, dbTx, submission); err != nil {
			return err
		}
		_, err := s.models.ChangeLog.Record(ctx, dbTx, accountID, entities.CollectionEmailSubmission, submission.ID, entities.ChangeOpCreate, nil)
		return err
	})
	if err != nil {
		return data.EmailSubmission{}, err
	}
	return submission, nil
}

// CancelSubmission undoes a pending submission.
func (s *AuxService) CancelSubmission(ctx context.Context, accountID, submissionID string) error {
	return runInTxWithRetry(ctx, s.pool, func(dbTx db.Transaction) error {
		if err := s.models.EmailSubmissions.UpdateUndoStatus(ctx, dbTx, accountID, submissionID, "canceled"); err != nil {
			return err
		}
		_, err := s.models.ChangeLog.Record(ctx, dbTx, accountID, entities.CollectionEmailSubmission, submissionID, entities.ChangeOpUpdate, []string{"undoStatus"})
		return err
	})
}

func (s *AuxService) CreatePushSubscription(ctx context.Context, accountID, deviceClientID, url string, expiresAt *time.Time) (data.PushSubscription, error) {
	if err := s.models.Accounts.Ensure(ctx, accountID); err != nil {
		return data.PushSubscription{}, err
	}

	subscription := data.PushSubscription{
		ID:             uuid.NewString(),
		AccountID:      accountID,
		DeviceClientID: deviceClientID,
		URL:            url,
		ExpiresAt:      null.TimeFromPtr(expiresAt),
	}
	err := runInTxWithRetry(ctx, s.pool, func(dbTx db.Transaction) error {
		if err := s.models.PushSubscriptions.Insert(ctx, dbTx, subscription); err != nil {
			return err
		}
		_, err := s.models.ChangeLog.Record(ctx, dbTx, accountID, entities.CollectionPushSubscription, subscription.ID, entities.ChangeOpCreate, nil)
		return err
	})
	if err != nil {
		return data.PushSubscription{}, err
	}
	return subscription, nil
}

func (s *AuxService) DestroyPushSubscription(ctx context.Context, accountID, subscriptionID string) error {
	return runInTxWithRetry(ctx, s.pool, func(dbTx db.Transaction) error {
		if err := s.models.PushSubscriptions.Delete(ctx, dbTx, accountID, subscriptionID); err != nil {
			return err
		}
		_, err := s.models.ChangeLog.Record(ctx, dbTx, accountID, entities.CollectionPushSubscription, subscriptionID, entities.ChangeOpDestroy, nil)
		return err
	})
}

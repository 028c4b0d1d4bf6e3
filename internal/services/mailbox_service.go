package services

import (
	"context"

	"github.com/google/uuid"
	"github.com/guregu/null"

	"github.com/corvidmail/mail-backend/internal/data"
	"github.com/corvidmail/mail-backend/internal/db"
	"github.com/corvidmail/mail-backend/internal/entities"
)

type MailboxService struct {
	models *data.Models
	pool   db.ConnectionPool
}

func NewMailboxService(models *data.Models, pool db.ConnectionPool) *MailboxService {
	return &MailboxService{models: models, pool: pool}
}

type CreateMailboxInput struct {
	Name      string
	Role      *string
	ParentID  *string
	SortOrder int
}

func (s *MailboxService) Create(ctx context.Context, accountID string, input CreateMailboxInput) (data.Mailbox, error) {
	if err := s.models.Accounts.Ensure(ctx, accountID); err != nil {
		return data.Mailbox{}, err
	}

	mailbox := data.Mailbox{
		ID:        uuid.NewString(),
		AccountID: accountID,
		Name:      input.Name,
		Role:      null.StringFromPtr(input.Role),
		ParentID:  null.StringFromPtr(input.ParentID),
		SortOrder: input.SortOrder,
	}

	err := runInTxWithRetry(ctx, s.pool, func(dbTx db.Transaction) error {
		if err := s.models.Mailboxes.Insert(ctx, dbTx, mailbox); err != nil {
			return err
		}
		_, err := s.models.ChangeLog.Record(ctx, dbTx, accountID, entities.CollectionMailbox, mailbox.ID, entities.ChangeOpCreate, nil)
		return err
	})
	if err != nil {
		return data.Mailbox{}, err
	}
	return mailbox, nil
}

type UpdateMailboxInput struct {
	Name      *string
	SortOrder *int
}

// Update renames and/or reorders a mailbox and records a property-scoped
// update naming exactly the fields that changed.
func (s *MailboxService) Update(ctx context.Context, accountID, mailboxID string, input UpdateMailboxInput) error {
	var updatedProperties []string
	if input.Name != nil {
		updatedProperties = append(updatedProperties, "name")
	}
	if input.SortOrder != nil {
		updatedProperties = append(updatedProperties, "sortOrder")
	}
	if len(updatedProperties) == 0 {
		return entities.NewMethodError(entities.ErrCodeInvalidArguments, "no mailbox properties to update")
	}

	return runInTxWithRetry(ctx, s.pool, func(dbTx db.Transaction) error {
		if err := s.models.Mailboxes.Update(ctx, dbTx, accountID, mailboxID, input.Name, input.SortOrder); err != nil {
			return err
		}
		_, err := s.models.ChangeLog.Record(ctx, dbTx, accountID, entities.CollectionMailbox, mailboxID, entities.ChangeOpUpdate, updatedProperties)
		return err
	})
}

// Destroy deletes a mailbox. Emails filed in it are refiled by the caller
// beforehand; memberships pointing at the mailbox cascade away.
func (s *MailboxService) Destroy(ctx context.Context, accountID, mailboxID string) error {
	return runInTxWithRetry(ctx, s.pool, func(dbTx db.Transaction) error {
		if err := s.models.Mailboxes.Delete(ctx, dbTx, accountID, mailboxID); err != nil {
			return err
		}
		_, err := s.models.ChangeLog.Record(ctx, dbTx, accountID, entities.CollectionMailbox, mailboxID, entities.ChangeOpDestroy, nil)
		return err
	})
}

package services

import (
	"context"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/corvidmail/mail-backend/internal/data"
	"github.com/corvidmail/mail-backend/internal/db"
	"github.com/corvidmail/mail-backend/internal/entities"
	"github.com/corvidmail/mail-backend/internal/utils"
)

// Mutation services apply writes and record the resulting change log
// entries in the same transaction, one entry per affected collection type.
// Serialization conflicts are retried as a whole transaction.

const txMaxRetries = 3

func runInTxWithRetry(ctx context.Context, pool db.ConnectionPool, fn func(dbTx db.Transaction) error) error {
	return retry.Do(
		func() error { return db.RunInTransaction(ctx, pool, nil, fn) },
		retry.Context(ctx),
		retry.Attempts(txMaxRetries),
		retry.RetryIf(utils.IsRetryableDBError),
		retry.LastErrorOnly(true),
	)
}

type EmailService struct {
	models *data.Models
	pool   db.ConnectionPool
}

func NewEmailService(models *data.Models, pool db.ConnectionPool) *EmailService {
	return &EmailService{models: models, pool: pool}
}

type CreateEmailInput struct {
	Subject    string
	From       string
	To         []string
	Cc         []string
	Bcc        []string
	Keywords   []string
	SizeBytes  int64
	ReceivedAt time.Time
	MailboxIDs []string
	// ThreadID attaches the email to an existing thread; empty starts a new
	// one.
	ThreadID string
}

// Create inserts an email, files it into its mailboxes and records the
// changes: the email is created, its thread is created or updated, and each
// containing mailbox is updated.
func (s *EmailService) Create(ctx context.Context, accountID string, input CreateEmailInput) (data.Email, error) {
	if err := s.models.Accounts.Ensure(ctx, accountID); err != nil {
		return data.Email{}, err
	}

	threadID := input.ThreadID
	newThread := threadID == ""
	if newThread {
		threadID = uuid.NewString()
	}
	email := data.Email{
		ID:         uuid.NewString(),
		AccountID:  accountID,
		ThreadID:   threadID,
		Subject:    input.Subject,
		FromAddr:   input.From,
		ToAddrs:    pq.StringArray(input.To),
		CcAddrs:    pq.StringArray(input.Cc),
		BccAddrs:   pq.StringArray(input.Bcc),
		Keywords:   pq.StringArray(input.Keywords),
		SizeBytes:  input.SizeBytes,
		ReceivedAt: input.ReceivedAt,
	}

	err := runInTxWithRetry(ctx, s.pool, func(dbTx db.Transaction) error {
		if err := s.models.Emails.Insert(ctx, dbTx, email, input.MailboxIDs); err != nil {
			return err
		}
		if _, err := s.models.ChangeLog.Record(ctx, dbTx, accountID, entities.CollectionEmail, email.ID, entities.ChangeOpCreate, nil); err != nil {
			return err
		}
		threadOp := entities.ChangeOpUpdate
		if newThread {
			threadOp = entities.ChangeOpCreate
		}
		if _, err := s.models.ChangeLog.Record(ctx, dbTx, accountID, entities.CollectionThread, threadID, threadOp, nil); err != nil {
			return err
		}
		for _, mailboxID := range input.MailboxIDs {
			if _, err := s.models.ChangeLog.Record(ctx, dbTx, accountID, entities.CollectionMailbox, mailboxID, entities.ChangeOpUpdate, []string{"totalEmails"}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return data.Email{}, err
	}
	return email, nil
}

// UpdateKeywords replaces the keyword set of an email and records a
// property-scoped update.
func (s *EmailService) UpdateKeywords(ctx context.Context, accountID, emailID string, keywords []string) error {
	return runInTxWithRetry(ctx, s.pool, func(dbTx db.Transaction) error {
		if err := s.models.Emails.UpdateKeywords(ctx, dbTx, accountID, emailID, keywords); err != nil {
			return err
		}
		_, err := s.models.ChangeLog.Record(ctx, dbTx, accountID, entities.CollectionEmail, emailID, entities.ChangeOpUpdate, []string{"keywords"})
		return err
	})
}

// Move refiles an email from one mailbox to another. Both mailboxes, the
// email and its thread are recorded as updated.
func (s *EmailService) Move(ctx context.Context, accountID, emailID, fromMailboxID, toMailboxID string) error {
	email, err := s.models.Emails.Get(ctx, accountID, emailID)
	if err != nil {
		return err
	}

	return runInTxWithRetry(ctx, s.pool, func(dbTx db.Transaction) error {
		if err := s.models.Emails.Move(ctx, dbTx, accountID, emailID, fromMailboxID, toMailboxID); err != nil {
			return err
		}
		if _, err := s.models.ChangeLog.Record(ctx, dbTx, accountID, entities.CollectionEmail, emailID, entities.ChangeOpUpdate, []string{"mailboxIds"}); err != nil {
			return err
		}
		for _, mailboxID := range []string{fromMailboxID, toMailboxID} {
			if _, err := s.models.ChangeLog.Record(ctx, dbTx, accountID, entities.CollectionMailbox, mailboxID, entities.ChangeOpUpdate, []string{"totalEmails"}); err != nil {
				return err
			}
		}
		_, err := s.models.ChangeLog.Record(ctx, dbTx, accountID, entities.CollectionThread, email.ThreadID, entities.ChangeOpUpdate, nil)
		return err
	})
}

// Destroy deletes an email, recording the destroy plus updates to its thread
// and every mailbox it was filed in.
func (s *EmailService) Destroy(ctx context.Context, accountID, emailID string) error {
	email, err := s.models.Emails.Get(ctx, accountID, emailID)
	if err != nil {
		return err
	}
	mailboxIDs, err := s.models.Emails.MailboxIDs(ctx, accountID, emailID)
	if err != nil {
		return err
	}

	return runInTxWithRetry(ctx, s.pool, func(dbTx db.Transaction) error {
		if err := s.models.Emails.Delete(ctx, dbTx, accountID, emailID); err != nil {
			return err
		}
		if _, err := s.models.ChangeLog.Record(ctx, dbTx, accountID, entities.CollectionEmail, emailID, entities.ChangeOpDestroy, nil); err != nil {
			return err
		}
		if _, err := s.models.ChangeLog.Record(ctx, dbTx, accountID, entities.CollectionThread, email.ThreadID, entities.ChangeOpUpdate, nil); err != nil {
			return err
		}
		for _, mailboxID := range mailboxIDs {
			if _, err := s.models.ChangeLog.Record(ctx, dbTx, accountID, entities.CollectionMailbox, mailboxID, entities.ChangeOpUpdate, []string{"totalEmails"}); err != nil {
				return err
			}
		}
		return nil
	})
}

package data

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/corvidmail/mail-backend/internal/db"
	"github.com/corvidmail/mail-backend/internal/entities"
	"github.com/corvidmail/mail-backend/internal/metrics"
)

// Email is the queryable projection of a message: envelope fields, keywords
// and mailbox memberships. Raw MIME and body content live in blob storage,
// outside this service.
type Email struct {
	ID         string         `db:"id"`
	AccountID  string         `db:"account_id"`
	ThreadID   string         `db:"thread_id"`
	Subject    string         `db:"subject"`
	FromAddr   string         `db:"from_addr"`
	ToAddrs    pq.StringArray `db:"to_addrs"`
	CcAddrs    pq.StringArray `db:"cc_addrs"`
	BccAddrs   pq.StringArray `db:"bcc_addrs"`
	Keywords   pq.StringArray `db:"keywords"`
	SizeBytes  int64          `db:"size_bytes"`
	ReceivedAt time.Time      `db:"received_at"`
	CreatedAt  time.Time      `db:"created_at"`
	UpdatedAt  time.Time      `db:"updated_at"`
}

type EmailModel struct {
	DB             db.ConnectionPool
	MetricsService metrics.MetricsService
}

// emailSortColumns is the allow-list of sortable Email properties.
var emailSortColumns = map[string]string{
	"receivedAt": "e.received_at",
	"size":       "e.size_bytes",
	"subject":    "e.subject",
	"from":       "e.from_addr",
}

func (m *EmailModel) Get(ctx context.Context, accountID, id string) (Email, error) {
	const query = `SELECT * FROM emails e WHERE e.account_id = $1 AND e.id = $2`
	var email Email
	start := time.Now()
	err := m.DB.GetContext(ctx, &email, query, accountID, id)
	if errors.Is(err, sql.ErrNoRows) {
		observeQuery(m.MetricsService, "Get", "emails", start, nil)
		return Email{}, ErrRecordNotFound
	}
	observeQuery(m.MetricsService, "Get", "emails", start, err)
	if err != nil {
		return Email{}, fmt.Errorf("getting email %s for account %s: %w", id, accountID, err)
	}
	return email, nil
}

// Insert writes the email row and its mailbox memberships inside the
// caller's transaction.
func (m *EmailModel) Insert(ctx context.Context, dbTx db.Transaction, email Email, mailboxIDs []string) error {
	const query = `
		INSERT INTO emails (id, account_id, thread_id, subject, from_addr, to_addrs, cc_addrs, bcc_addrs, keywords, size_bytes, received_at)
		VALUES (:id, :account_id, :thread_id, :subject, :from_addr, :to_addrs, :cc_addrs, :bcc_addrs, :keywords, :size_bytes, :received_at)`
	// nil slices would bind as NULL, the columns are NOT NULL
	for _, arr := range []*pq.StringArray{&email.ToAddrs, &email.CcAddrs, &email.BccAddrs, &email.Keywords} {
		if *arr == nil {
			*arr = pq.StringArray{}
		}
	}
	start := time.Now()
	_, err := dbTx.NamedExecContext(ctx, query, email)
	observeQuery(m.MetricsService, "Insert", "emails", start, err)
	if err != nil {
		return fmt.Errorf("inserting email %s: %w", email.ID, err)
	}

	for _, mailboxID := range mailboxIDs {
		if err := m.addMembership(ctx, dbTx, email.ID, mailboxID); err != nil {
			return err
		}
	}
	return nil
}

// UpdateKeywords replaces the keyword set of an email.
func (m *EmailModel) UpdateKeywords(ctx context.Context, dbTx db.Transaction, accountID, id string, keywords []string) error {
	const query = `UPDATE emails SET keywords = $3, updated_at = NOW() WHERE account_id = $1 AND id = $2`
	start := time.Now()
	res, err := dbTx.ExecContext(ctx, query, accountID, id, pq.StringArray(keywords))
	observeQuery(m.MetricsService, "UpdateKeywords", "emails", start, err)
	if err != nil {
		return fmt.Errorf("updating keywords of email %s: %w", id, err)
	}
	return oneRowAffected(res, id)
}

// Move swaps one mailbox membership for another.
func (m *EmailModel) Move(ctx context.Context, dbTx db.Transaction, accountID, id, fromMailboxID, toMailboxID string) error {
	const del = `
		DELETE FROM email_mailboxes em USING emails e
		WHERE em.email_id = e.id AND e.account_id = $1 AND em.email_id = $2 AND em.mailbox_id = $3`
	start := time.Now()
	res, err := dbTx.ExecContext(ctx, del, accountID, id, fromMailboxID)
	observeQuery(m.MetricsService, "Move", "email_mailboxes", start, err)
	if err != nil {
		return fmt.Errorf("removing email %s from mailbox %s: %w", id, fromMailboxID, err)
	}
	if err := oneRowAffected(res, id); err != nil {
		return err
	}
	if err := m.addMembership(ctx, dbTx, id, toMailboxID); err != nil {
		return err
	}

	const touch = `UPDATE emails SET updated_at = NOW() WHERE account_id = $1 AND id = $2`
	if _, err := dbTx.ExecContext(ctx, touch, accountID, id); err != nil {
		return fmt.Errorf("touching email %s: %w", id, err)
	}
	return nil
}

// Delete removes the email row; memberships cascade.
func (m *EmailModel) Delete(ctx context.Context, dbTx db.Transaction, accountID, id string) error {
	const query = `DELETE FROM emails WHERE account_id = $1 AND id = $2`
	start := time.Now()
	res, err := dbTx.ExecContext(ctx, query, accountID, id)
	observeQuery(m.MetricsService, "Delete", "emails", start, err)
	if err != nil {
		return fmt.Errorf("deleting email %s: %w", id, err)
	}
	return oneRowAffected(res, id)
}

// MailboxIDs lists the mailboxes an email is filed in.
func (m *EmailModel) MailboxIDs(ctx context.Context, accountID, id string) ([]string, error) {
	const query = `
		SELECT em.mailbox_id FROM email_mailboxes em
		JOIN emails e ON e.id = em.email_id
		WHERE e.account_id = $1 AND em.email_id = $2
		ORDER BY em.mailbox_id`
	var ids []string
	start := time.Now()
	err := m.DB.SelectContext(ctx, &ids, query, accountID, id)
	observeQuery(m.MetricsService, "MailboxIDs", "email_mailboxes", start, err)
	if err != nil {
		return nil, fmt.Errorf("listing mailboxes of email %s: %w", id, err)
	}
	return ids, nil
}

func (m *EmailModel) addMembership(ctx context.Context, dbTx db.Transaction, emailID, mailboxID string) error {
	const query = `INSERT INTO email_mailboxes (email_id, mailbox_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`
	if _, err := dbTx.ExecContext(ctx, query, emailID, mailboxID); err != nil {
		return fmt.Errorf("filing email %s into mailbox %s: %w", emailID, mailboxID, err)
	}
	return nil
}

// ValidateQuery checks the filter against the closed Email predicate set and
// the sort against the allow-list, without touching the database.
func (m *EmailModel) ValidateQuery(filter entities.Filter, sort []entities.SortComparator) error {
	err := filter.WalkLeaves(func(raw json.RawMessage) error {
		if _, err := entities.DecodeEmailFilterCondition(raw); err != nil {
			return entities.NewMethodError(entities.ErrCodeUnsupportedFilter, "unsupported Email filter: %v", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	for _, comparator := range sort {
		if _, ok := emailSortColumns[comparator.Property]; !ok {
			return entities.NewMethodError(entities.ErrCodeUnsupportedSort, "cannot sort Email on %q", comparator.Property)
		}
	}
	return nil
}

// QueryIDs returns one page of the ordered, filtered id list.
func (m *EmailModel) QueryIDs(ctx context.Context, accountID string, filter entities.Filter, sort []entities.SortComparator, offset, limit int) ([]string, error) {
	return m.queryIDs(ctx, accountID, filter, sort, offset, limit)
}

// QueryAllIDs returns the complete ordered, filtered id list. Needed when a
// position must be resolved (anchors, queryChanges indexes).
func (m *EmailModel) QueryAllIDs(ctx context.Context, accountID string, filter entities.Filter, sort []entities.SortComparator) ([]string, error) {
	return m.queryIDs(ctx, accountID, filter, sort, 0, -1)
}

func (m *EmailModel) queryIDs(ctx context.Context, accountID string, filter entities.Filter, sort []entities.SortComparator, offset, limit int) ([]string, error) {
	a := &sqlArgs{}
	accountPlaceholder := a.bind(accountID)
	where, err := compileFilter(filter, compileEmailCondition, a)
	if err != nil {
		return nil, err
	}
	orderBy, err := compileSort(sort, emailSortColumns, "e.id")
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`SELECT e.id FROM emails e WHERE e.account_id = %s AND %s ORDER BY %s`, accountPlaceholder, where, orderBy)
	if limit >= 0 {
		query += fmt.Sprintf(` OFFSET %s LIMIT %s`, a.bind(offset), a.bind(limit))
	}

	var ids []string
	start := time.Now()
	err = m.DB.SelectContext(ctx, &ids, query, a.args...)
	observeQuery(m.MetricsService, "QueryIDs", "emails", start, err)
	if err != nil {
		return nil, fmt.Errorf("querying emails for account %s: %w", accountID, err)
	}
	return ids, nil
}

// CountQuery returns the filtered result set size.
func (m *EmailModel) CountQuery(ctx context.Context, accountID string, filter entities.Filter) (int64, error) {
	a := &sqlArgs{}
	accountPlaceholder := a.bind(accountID)
	where, err := compileFilter(filter, compileEmailCondition, a)
	if err != nil {
		return 0, err
	}

	query := fmt.Sprintf(`SELECT COUNT(*) FROM emails e WHERE e.account_id = %s AND %s`, accountPlaceholder, where)
	var total int64
	start := time.Now()
	err = m.DB.GetContext(ctx, &total, query, a.args...)
	observeQuery(m.MetricsService, "CountQuery", "emails", start, err)
	if err != nil {
		return 0, fmt.Errorf("counting emails for account %s: %w", accountID, err)
	}
	return total, nil
}

// MatchesFilter re-evaluates the filter against a single email, without
// scanning the collection.
func (m *EmailModel) MatchesFilter(ctx context.Context, accountID, id string, filter entities.Filter) (bool, error) {
	a := &sqlArgs{}
	accountPlaceholder := a.bind(accountID)
	idPlaceholder := a.bind(id)
	where, err := compileFilter(filter, compileEmailCondition, a)
	if err != nil {
		return false, err
	}

	query := fmt.Sprintf(`SELECT EXISTS(SELECT 1 FROM emails e WHERE e.account_id = %s AND e.id = %s AND %s)`, accountPlaceholder, idPlaceholder, where)
	var matches bool
	start := time.Now()
	err = m.DB.GetContext(ctx, &matches, query, a.args...)
	observeQuery(m.MetricsService, "MatchesFilter", "emails", start, err)
	if err != nil {
		return false, fmt.Errorf("matching email %s against filter: %w", id, err)
	}
	return matches, nil
}

// compileEmailCondition compiles one Email leaf condition. Fields present in
// the condition are conjoined.
func compileEmailCondition(raw json.RawMessage, a *sqlArgs) (string, error) {
	cond, err := entities.DecodeEmailFilterCondition(raw)
	if err != nil {
		return "", entities.NewMethodError(entities.ErrCodeUnsupportedFilter, "unsupported Email filter: %v", err)
	}

	var fragments []string
	if cond.InMailbox != nil {
		fragments = append(fragments, fmt.Sprintf(
			`EXISTS (SELECT 1 FROM email_mailboxes em WHERE em.email_id = e.id AND em.mailbox_id = %s)`, a.bind(*cond.InMailbox)))
	}
	if len(cond.InMailboxOtherThan) > 0 {
		fragments = append(fragments, fmt.Sprintf(
			`EXISTS (SELECT 1 FROM email_mailboxes em WHERE em.email_id = e.id AND NOT (em.mailbox_id = ANY(%s)))`, a.bind(pq.StringArray(cond.InMailboxOtherThan))))
	}
	if cond.Text != nil {
		pattern := likePattern(*cond.Text)
		fragments = append(fragments, fmt.Sprintf(
			`(e.subject ILIKE %s OR e.from_addr ILIKE %s OR EXISTS (SELECT 1 FROM unnest(e.to_addrs || e.cc_addrs || e.bcc_addrs) AS addr WHERE addr ILIKE %s))`,
			a.bind(pattern), a.bind(pattern), a.bind(pattern)))
	}
	if cond.Subject != nil {
		fragments = append(fragments, fmt.Sprintf(`e.subject ILIKE %s`, a.bind(likePattern(*cond.Subject))))
	}
	if cond.From != nil {
		fragments = append(fragments, fmt.Sprintf(`e.from_addr ILIKE %s`, a.bind(likePattern(*cond.From))))
	}
	if cond.To != nil {
		fragments = append(fragments, addrArrayFragment("e.to_addrs", *cond.To, a))
	}
	if cond.Cc != nil {
		fragments = append(fragments, addrArrayFragment("e.cc_addrs", *cond.Cc, a))
	}
	if cond.Bcc != nil {
		fragments = append(fragments, addrArrayFragment("e.bcc_addrs", *cond.Bcc, a))
	}
	if cond.After != nil {
		fragments = append(fragments, fmt.Sprintf(`e.received_at >= %s`, a.bind(*cond.After)))
	}
	if cond.Before != nil {
		fragments = append(fragments, fmt.Sprintf(`e.received_at < %s`, a.bind(*cond.Before)))
	}
	if cond.SizeLarger != nil {
		fragments = append(fragments, fmt.Sprintf(`e.size_bytes > %s`, a.bind(*cond.SizeLarger)))
	}
	if cond.SizeSmaller != nil {
		fragments = append(fragments, fmt.Sprintf(`e.size_bytes < %s`, a.bind(*cond.SizeSmaller)))
	}
	if cond.HasKeyword != nil {
		fragments = append(fragments, fmt.Sprintf(`%s = ANY(e.keywords)`, a.bind(*cond.HasKeyword)))
	}
	if cond.NotKeyword != nil {
		fragments = append(fragments, fmt.Sprintf(`NOT (%s = ANY(e.keywords))`, a.bind(*cond.NotKeyword)))
	}

	if len(fragments) == 0 {
		return "TRUE", nil
	}
	return "(" + strings.Join(fragments, " AND ") + ")", nil
}

func addrArrayFragment(column, needle string, a *sqlArgs) string {
	return fmt.Sprintf(`EXISTS (SELECT 1 FROM unnest(%s) AS addr WHERE addr ILIKE %s)`, column, a.bind(likePattern(needle)))
}

// compileSort builds the ORDER BY clause from the allow-list, appending the
// id column as a stable tiebreaker.
func compileSort(sort []entities.SortComparator, columns map[string]string, tiebreaker string) (string, error) {
	var clauses []string
	for _, comparator := range sort {
		column, ok := columns[comparator.Property]
		if !ok {
			return "", entities.NewMethodError(entities.ErrCodeUnsupportedSort, "cannot sort on %q", comparator.Property)
		}
		direction := "ASC"
		if !comparator.IsAscending {
			direction = "DESC"
		}
		clauses = append(clauses, column+" "+direction)
	}
	clauses = append(clauses, tiebreaker+" ASC")
	return strings.Join(clauses, ", "), nil
}

func oneRowAffected(res sql.Result, id string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("reading rows affected for %s: %w", id, err)
	}
	if affected == 0 {
		return ErrRecordNotFound
	}
	return nil
}

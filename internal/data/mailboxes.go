package data

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/guregu/null"

	"github.com/corvidmail/mail-backend/internal/db"
	"github.com/corvidmail/mail-backend/internal/entities"
	"github.com/corvidmail/mail-backend/internal/metrics"
)

type Mailbox struct {
	ID        string      `db:"id"`
	AccountID string      `db:"account_id"`
	Name      string      `db:"name"`
	Role      null.String `db:"role"`
	ParentID  null.String `db:"parent_id"`
	SortOrder int         `db:"sort_order"`
	CreatedAt time.Time   `db:"created_at"`
	UpdatedAt time.Time   `db:"updated_at"`
}

type MailboxModel struct {
	DB             db.ConnectionPool
	MetricsService metrics.MetricsService
}

var mailboxSortColumns = map[string]string{
	"name":      "mb.name",
	"sortOrder": "mb.sort_order",
	"role":      "mb.role",
}

func (m *MailboxModel) Get(ctx context.Context, accountID, id string) (Mailbox, error) {
	const query = `SELECT * FROM mailboxes mb WHERE mb.account_id = $1 AND mb.id = $2`
	var mailbox Mailbox
	start := time.Now()
	err := m.DB.GetContext(ctx, &mailbox, query, accountID, id)
	if errors.Is(err, sql.ErrNoRows) {
		observeQuery(m.MetricsService, "Get", "mailboxes", start, nil)
		return Mailbox{}, ErrRecordNotFound
	}
	observeQuery(m.MetricsService, "Get", "mailboxes", start, err)
	if err != nil {
		return Mailbox{}, fmt.Errorf("getting mailbox %s for account %s: %w", id, accountID, err)
	}
	return mailbox, nil
}

func (m *MailboxModel) Insert(ctx context.Context, dbTx db.Transaction, mailbox Mailbox) error {
	const query = `
		INSERT INTO mailboxes (id, account_id, name, role, parent_id, sort_order)
		VALUES (:id, :account_id, :name, :role, :parent_id, :sort_order)`
	start := time.Now()
	_, err := dbTx.NamedExecContext(ctx, query, mailbox)
	observeQuery(m.MetricsService, "Insert", "mailboxes", start, err)
	if err != nil {
		return fmt.Errorf("inserting mailbox %s: %w", mailbox.ID, err)
	}
	return nil
}

// Update renames and/or reorders a mailbox. Nil fields are left unchanged.
func (m *MailboxModel) Update(ctx context.Context, dbTx db.Transaction, accountID, id string, name *string, sortOrder *int) error {
	sets := []string{"updated_at = NOW()"}
	args := []interface{}{accountID, id}
	if name != nil {
		args = append(args, *name)
		sets = append(sets, fmt.Sprintf("name = $%d", len(args)))
	}
	if sortOrder != nil {
		args = append(args, *sortOrder)
		sets = append(sets, fmt.Sprintf("sort_order = $%d", len(args)))
	}

	query := fmt.Sprintf(`UPDATE mailboxes SET %s WHERE account_id = $1 AND id = $2`, strings.Join(sets, ", "))
	start := time.Now()
	res, err := dbTx.ExecContext(ctx, query, args...)
	observeQuery(m.MetricsService, "Update", "mailboxes", start, err)
	if err != nil {
		return fmt.Errorf("updating mailbox %s: %w", id, err)
	}
	return oneRowAffected(res, id)
}

func (m *MailboxModel) Delete(ctx context.Context, dbTx db.Transaction, accountID, id string) error {
	const query = `DELETE FROM mailboxes WHERE account_id = $1 AND id = $2`
	start := time.Now()
	res, err := dbTx.ExecContext(ctx, query, accountID, id)
	observeQuery(m.MetricsService, "Delete", "mailboxes", start, err)
	if err != nil {
		return fmt.Errorf("deleting mailbox %s: %w", id, err)
	}
	return oneRowAffected(res, id)
}

func (m *MailboxModel) ValidateQuery(filter entities.Filter, sort []entities.SortComparator) error {
	err := filter.WalkLeaves(func(raw json.RawMessage) error {
		if _, err := entities.DecodeMailboxFilterCondition(raw); err != nil {
			return entities.NewMethodError(entities.ErrCodeUnsupportedFilter, "unsupported Mailbox filter: %v", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	for _, comparator := range sort {
		if _, ok := mailboxSortColumns[comparator.Property]; !ok {
			return entities.NewMethodError(entities.ErrCodeUnsupportedSort, "cannot sort Mailbox on %q", comparator.Property)
		}
	}
	return nil
}

func (m *MailboxModel) QueryIDs(ctx context.Context, accountID string, filter entities.Filter, sort []entities.SortComparator, offset, limit int) ([]string, error) {
	return m.queryIDs(ctx, accountID, filter, sort, offset, limit)
}

func (m *MailboxModel) QueryAllIDs(ctx context.Context, accountID string, filter entities.Filter, sort []entities.SortComparator) ([]string, error) {
	return m.queryIDs(ctx, accountID, filter, sort, 0, -1)
}

func (m *MailboxModel) queryIDs(ctx context.Context, accountID string, filter entities.Filter, sort []entities.SortComparator, offset, limit int) ([]string, error) {
	a := &sqlArgs{}
	accountPlaceholder := a.bind(accountID)
	where, err := compileFilter(filter, compileMailboxCondition, a)
	if err != nil {
		return nil, err
	}
	orderBy, err := compileSort(sort, mailboxSortColumns, "mb.id")
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`SELECT mb.id FROM mailboxes mb WHERE mb.account_id = %s AND %s ORDER BY %s`, accountPlaceholder, where, orderBy)
	if limit >= 0 {
		query += fmt.Sprintf(` OFFSET %s LIMIT %s`, a.bind(offset), a.bind(limit))
	}

	var ids []string
	start := time.Now()
	err = m.DB.SelectContext(ctx, &ids, query, a.args...)
	observeQuery(m.MetricsService, "QueryIDs", "mailboxes", start, err)
	if err != nil {
		return nil, fmt.Errorf("querying mailboxes for account %s: %w", accountID, err)
	}
	return ids, nil
}

func (m *MailboxModel) CountQuery(ctx context.Context, accountID string, filter entities.Filter) (int64, error) {
	a := &sqlArgs{}
	accountPlaceholder := a.bind(accountID)
	where, err := compileFilter(filter, compileMailboxCondition, a)
	if err != nil {
		return 0, err
	}

	query := fmt.Sprintf(`SELECT COUNT(*) FROM mailboxes mb WHERE mb.account_id = %s AND %s`, accountPlaceholder, where)
	var total int64
	start := time.Now()
	err = m.DB.GetContext(ctx, &total, query, a.args...)
	observeQuery(m.MetricsService, "CountQuery", "mailboxes", start, err)
	if err != nil {
		return 0, fmt.Errorf("counting mailboxes for account %s: %w", accountID, err)
	}
	return total, nil
}

func (m *MailboxModel) MatchesFilter(ctx context.Context, accountID, id string, filter entities.Filter) (bool, error) {
	a := &sqlArgs{}
	accountPlaceholder := a.bind(accountID)
	idPlaceholder := a.bind(id)
	where, err := compileFilter(filter, compileMailboxCondition, a)
	if err != nil {
		return false, err
	}

	query := fmt.Sprintf(`SELECT EXISTS(SELECT 1 FROM mailboxes mb WHERE mb.account_id = %s AND mb.id = %s AND %s)`, accountPlaceholder, idPlaceholder, where)
	var matches bool
	start := time.Now()
	err = m.DB.GetContext(ctx, &matches, query, a.args...)
	observeQuery(m.MetricsService, "MatchesFilter", "mailboxes", start, err)
	if err != nil {
		return false, fmt.Errorf("matching mailbox %s against filter: %w", id, err)
	}
	return matches, nil
}

func compileMailboxCondition(raw json.RawMessage, a *sqlArgs) (string, error) {
	cond, err := entities.DecodeMailboxFilterCondition(raw)
	if err != nil {
		return "", entities.NewMethodError(entities.ErrCodeUnsupportedFilter, "unsupported Mailbox filter: %v", err)
	}

	var fragments []string
	if cond.Name != nil {
		fragments = append(fragments, fmt.Sprintf(`mb.name ILIKE %s`, a.bind(likePattern(*cond.Name))))
	}
	if cond.Role != nil {
		fragments = append(fragments, fmt.Sprintf(`mb.role = %s`, a.bind(*cond.Role)))
	}
	if cond.ParentID != nil {
		fragments = append(fragments, fmt.Sprintf(`mb.parent_id = %s`, a.bind(*cond.ParentID)))
	}
	if cond.HasAnyRole != nil {
		if *cond.HasAnyRole {
			fragments = append(fragments, `mb.role IS NOT NULL`)
		} else {
			fragments = append(fragments, `mb.role IS NULL`)
		}
	}

	if len(fragments) == 0 {
		return "TRUE", nil
	}
	return "(" + strings.Join(fragments, " AND ") + ")", nil
}

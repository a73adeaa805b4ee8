package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-bankfeeds/core"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

type StatementLineStore struct {
	db   *bun.DB
	repo repository.Repository[*statementLineRecord]
	now  func() time.Time
}

func NewStatementLineStore(db *bun.DB) (*StatementLineStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*statementLineRecord](db, statementLineHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid statement line repository wiring: %w", err)
		}
	}
	return &StatementLineStore{
		db:   db,
		repo: repo,
		now:  func() time.Time { return time.Now().UTC() },
	}, nil
}

// Create inserts one line. The (account_id, reference) unique index turns a
// replayed line into a PersistenceConflict.
func (s *StatementLineStore) Create(ctx context.Context, line core.StatementLine) (core.StatementLine, error) {
	if s == nil || s.db == nil {
		return core.StatementLine{}, fmt.Errorf("sqlstore: statement line store is not configured")
	}
	line.AccountID = strings.TrimSpace(line.AccountID)
	line.Reference = strings.TrimSpace(line.Reference)
	if line.AccountID == "" || line.Reference == "" {
		return core.StatementLine{}, fmt.Errorf("sqlstore: statement line account id and reference are required")
	}
	if line.TransactionDate.IsZero() {
		return core.StatementLine{}, fmt.Errorf("sqlstore: statement line transaction date is required")
	}
	line.ID = ensureID(line.ID)
	if line.CreatedAt.IsZero() {
		line.CreatedAt = s.now()
	}

	record := newStatementLineRecord(line)
	if _, err := s.db.NewInsert().Model(record).Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			return core.StatementLine{}, core.NewPersistenceConflict(line.AccountID, line.Reference, err)
		}
		return core.StatementLine{}, err
	}
	return record.toDomain(), nil
}

// LatestTransactionDate ignores balance check placeholders so that their
// request timestamps never move the sync window.
func (s *StatementLineStore) LatestTransactionDate(ctx context.Context, accountID string) (time.Time, bool, error) {
	if s == nil || s.db == nil {
		return time.Time{}, false, fmt.Errorf("sqlstore: statement line store is not configured")
	}
	accountID = strings.TrimSpace(accountID)
	if accountID == "" {
		return time.Time{}, false, fmt.Errorf("sqlstore: account id is required")
	}

	record := &statementLineRecord{}
	err := s.db.NewSelect().
		Model(record).
		Column("transaction_date").
		Where("?TableAlias.account_id = ?", accountID).
		Where("?TableAlias.is_balance_check = ?", false).
		OrderExpr("?TableAlias.transaction_date DESC").
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, err
	}
	return record.TransactionDate.UTC(), true, nil
}

// ListByAccount returns the newest lines first. A non-positive limit
// returns every line.
func (s *StatementLineStore) ListByAccount(ctx context.Context, accountID string, limit int) ([]core.StatementLine, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("sqlstore: statement line store is not configured")
	}
	accountID = strings.TrimSpace(accountID)
	if accountID == "" {
		return nil, fmt.Errorf("sqlstore: account id is required")
	}
	selectors := []repository.SelectCriteria{
		repository.SelectBy("account_id", "=", accountID),
		repository.OrderBy("transaction_date DESC"),
		repository.OrderBy("reference ASC"),
	}
	if limit > 0 {
		selectors = append(selectors, repository.SelectPaginate(limit, 0))
	}
	records, _, err := s.repo.List(ctx, selectors...)
	if err != nil {
		return nil, err
	}
	out := make([]core.StatementLine, 0, len(records))
	for _, record := range records {
		out = append(out, record.toDomain())
	}
	return out, nil
}

// MarkMatched flags a line as reconciled against a ledger entry.
func (s *StatementLineStore) MarkMatched(ctx context.Context, accountID, reference string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: statement line store is not configured")
	}
	accountID = strings.TrimSpace(accountID)
	reference = strings.TrimSpace(reference)
	if accountID == "" || reference == "" {
		return fmt.Errorf("sqlstore: account id and reference are required")
	}
	res, err := s.db.NewUpdate().
		Model((*statementLineRecord)(nil)).
		Set("matched = ?", true).
		Where("account_id = ?", accountID).
		Where("reference = ?", reference).
		Exec(ctx)
	if err != nil {
		return err
	}
	if affected, affectedErr := res.RowsAffected(); affectedErr == nil && affected == 0 {
		return core.ErrStatementLineNotFound
	}
	return nil
}

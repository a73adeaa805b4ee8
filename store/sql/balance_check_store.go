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

type BalanceCheckStore struct {
	db   *bun.DB
	repo repository.Repository[*balanceCheckRecord]
	now  func() time.Time
}

func NewBalanceCheckStore(db *bun.DB) (*BalanceCheckStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*balanceCheckRecord](db, balanceCheckHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid balance check repository wiring: %w", err)
		}
	}
	return &BalanceCheckStore{
		db:   db,
		repo: repo,
		now:  func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *BalanceCheckStore) Create(ctx context.Context, check core.BalanceCheck) (core.BalanceCheck, error) {
	if s == nil || s.db == nil {
		return core.BalanceCheck{}, fmt.Errorf("sqlstore: balance check store is not configured")
	}
	check.CorrelationID = strings.TrimSpace(check.CorrelationID)
	if check.CorrelationID == "" {
		return core.BalanceCheck{}, fmt.Errorf("sqlstore: balance check correlation id is required")
	}
	if strings.TrimSpace(check.AccountID) == "" {
		return core.BalanceCheck{}, fmt.Errorf("sqlstore: balance check account id is required")
	}
	check.ID = ensureID(check.ID)
	if check.Status == "" {
		check.Status = core.BalanceCheckStatusPending
	}
	if check.RequestedAt.IsZero() {
		check.RequestedAt = s.now()
	}

	record := newBalanceCheckRecord(check)
	if _, err := s.db.NewInsert().Model(record).Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			return core.BalanceCheck{}, core.NewPersistenceConflict(check.AccountID, check.CorrelationID, err)
		}
		return core.BalanceCheck{}, err
	}
	return record.toDomain(), nil
}

func (s *BalanceCheckStore) GetByCorrelationID(ctx context.Context, correlationID string) (core.BalanceCheck, error) {
	if s == nil || s.db == nil {
		return core.BalanceCheck{}, fmt.Errorf("sqlstore: balance check store is not configured")
	}
	record, err := findBalanceCheck(ctx, s.db, correlationID)
	if err != nil {
		return core.BalanceCheck{}, err
	}
	return record.toDomain(), nil
}

// Resolve moves a check to its terminal state. Resolving a check that is
// already terminal is a no-op returning the stored state.
func (s *BalanceCheckStore) Resolve(
	ctx context.Context,
	correlationID string,
	in core.ResolveBalanceCheckInput,
) (core.BalanceCheck, error) {
	if s == nil || s.db == nil {
		return core.BalanceCheck{}, fmt.Errorf("sqlstore: balance check store is not configured")
	}
	if !in.Status.Terminal() {
		return core.BalanceCheck{}, fmt.Errorf("sqlstore: balance check status %q is not terminal", in.Status)
	}

	var out core.BalanceCheck
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		record, err := findBalanceCheck(ctx, tx, correlationID)
		if err != nil {
			return err
		}
		if core.BalanceCheckStatus(record.Status).Terminal() {
			out = record.toDomain()
			return nil
		}

		resolvedAt := in.ResolvedAt.UTC()
		if in.ResolvedAt.IsZero() {
			resolvedAt = s.now()
		}
		record.Status = string(in.Status)
		record.ResultCode = strings.TrimSpace(in.ResultCode)
		record.ResultDescription = strings.TrimSpace(in.ResultDescription)
		if transactionID := strings.TrimSpace(in.TransactionID); transactionID != "" {
			record.TransactionID = transactionID
		}
		record.Balances = balancesToRecords(in.Balances)
		record.Payload = copyAnyMap(in.Payload)
		record.ResolvedAt = &resolvedAt
		record.UpdatedAt = s.now()

		if _, err := tx.NewUpdate().
			Model(record).
			Column("status", "result_code", "result_description", "transaction_id", "balances", "payload", "resolved_at", "updated_at").
			WherePK().
			Exec(ctx); err != nil {
			return err
		}
		out = record.toDomain()
		return nil
	})
	if err != nil {
		return core.BalanceCheck{}, err
	}
	return out, nil
}

// ListPending returns checks still waiting on a callback that were
// requested before cutoff.
func (s *BalanceCheckStore) ListPending(ctx context.Context, cutoff time.Time) ([]core.BalanceCheck, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("sqlstore: balance check store is not configured")
	}
	records, _, err := s.repo.List(ctx,
		repository.SelectBy("status", "=", string(core.BalanceCheckStatusPending)),
		repository.SelectRawProcessor(func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("?TableAlias.requested_at <= ?", cutoff.UTC())
		}),
		repository.OrderBy("requested_at ASC"),
	)
	if err != nil {
		return nil, err
	}
	out := make([]core.BalanceCheck, 0, len(records))
	for _, record := range records {
		out = append(out, record.toDomain())
	}
	return out, nil
}

func findBalanceCheck(ctx context.Context, db bun.IDB, correlationID string) (*balanceCheckRecord, error) {
	correlationID = strings.TrimSpace(correlationID)
	if correlationID == "" {
		return nil, fmt.Errorf("sqlstore: balance check correlation id is required")
	}
	record := &balanceCheckRecord{}
	err := db.NewSelect().
		Model(record).
		Where("?TableAlias.correlation_id = ?", correlationID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, core.ErrBalanceCheckNotFound
		}
		return nil, err
	}
	return record, nil
}

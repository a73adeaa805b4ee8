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

type AccountStore struct {
	db   *bun.DB
	repo repository.Repository[*accountRecord]
	now  func() time.Time
}

func NewAccountStore(db *bun.DB) (*AccountStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*accountRecord](db, accountHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid account repository wiring: %w", err)
		}
	}
	return &AccountStore{
		db:   db,
		repo: repo,
		now:  func() time.Time { return time.Now().UTC() },
	}, nil
}

// Save inserts a new account or replaces the stored one with the same id.
func (s *AccountStore) Save(ctx context.Context, account core.Account) (core.Account, error) {
	if s == nil || s.db == nil {
		return core.Account{}, fmt.Errorf("sqlstore: account store is not configured")
	}
	account.ID = ensureID(account.ID)
	if err := account.Validate(); err != nil {
		return core.Account{}, err
	}

	now := s.now()
	var out core.Account
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		existing, err := findAccount(ctx, tx, account.ID)
		if err != nil && !errors.Is(err, core.ErrAccountNotFound) {
			return err
		}
		record := newAccountRecord(account)
		record.UpdatedAt = now
		if existing == nil {
			record.CreatedAt = now
			created, createErr := s.repo.CreateTx(ctx, tx, record)
			if createErr != nil {
				return createErr
			}
			out = created.toDomain()
			return nil
		}

		record.CreatedAt = existing.CreatedAt
		if record.LastSyncedAt == nil {
			record.LastSyncedAt = existing.LastSyncedAt
		}
		if _, err := tx.NewUpdate().Model(record).WherePK().Exec(ctx); err != nil {
			return err
		}
		out = record.toDomain()
		return nil
	})
	if err != nil {
		return core.Account{}, err
	}
	return out, nil
}

func (s *AccountStore) Get(ctx context.Context, id string) (core.Account, error) {
	if s == nil || s.db == nil {
		return core.Account{}, fmt.Errorf("sqlstore: account store is not configured")
	}
	record, err := findAccount(ctx, s.db, id)
	if err != nil {
		return core.Account{}, err
	}
	return record.toDomain(), nil
}

// List returns accounts ordered by creation. An empty provider key lists
// every account.
func (s *AccountStore) List(ctx context.Context, providerKey string) ([]core.Account, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("sqlstore: account store is not configured")
	}
	selectors := []repository.SelectCriteria{
		repository.OrderBy("created_at ASC"),
		repository.OrderBy("id ASC"),
	}
	if providerKey = strings.TrimSpace(providerKey); providerKey != "" {
		selectors = append(selectors, repository.SelectBy("provider_key", "=", providerKey))
	}
	records, _, err := s.repo.List(ctx, selectors...)
	if err != nil {
		return nil, err
	}
	out := make([]core.Account, 0, len(records))
	for _, record := range records {
		out = append(out, record.toDomain())
	}
	return out, nil
}

// RecordSynced stores the informational last sync timestamp.
func (s *AccountStore) RecordSynced(ctx context.Context, accountID string, at time.Time) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: account store is not configured")
	}
	accountID = strings.TrimSpace(accountID)
	if accountID == "" {
		return fmt.Errorf("sqlstore: account id is required")
	}
	res, err := s.db.NewUpdate().
		Model((*accountRecord)(nil)).
		Set("last_synced_at = ?", at.UTC()).
		Set("updated_at = ?", s.now()).
		Where("id = ?", accountID).
		Exec(ctx)
	if err != nil {
		return err
	}
	if affected, affectedErr := res.RowsAffected(); affectedErr == nil && affected == 0 {
		return core.ErrAccountNotFound
	}
	return nil
}

func findAccount(ctx context.Context, db bun.IDB, id string) (*accountRecord, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, fmt.Errorf("sqlstore: account id is required")
	}
	record := &accountRecord{}
	err := db.NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, core.ErrAccountNotFound
		}
		return nil, err
	}
	return record, nil
}

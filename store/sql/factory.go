package sqlstore

import (
	"fmt"

	"github.com/goliatone/go-bankfeeds/core"
	persistence "github.com/goliatone/go-persistence-bun"
	"github.com/uptrace/bun"
)

type RepositoryFactory struct {
	db *bun.DB

	statementLineStore *StatementLineStore
	balanceCheckStore  *BalanceCheckStore
	accountStore       *AccountStore
}

func NewRepositoryFactory() *RepositoryFactory {
	return &RepositoryFactory{}
}

func NewRepositoryFactoryFromPersistence(client *persistence.Client) (*RepositoryFactory, error) {
	factory := NewRepositoryFactory()
	if _, err := factory.BuildStores(client); err != nil {
		return nil, err
	}
	return factory, nil
}

func NewRepositoryFactoryFromDB(db *bun.DB) (*RepositoryFactory, error) {
	factory := NewRepositoryFactory()
	if _, err := factory.BuildStores(db); err != nil {
		return nil, err
	}
	return factory, nil
}

// BuildStores accepts a *bun.DB or anything exposing DB() *bun.DB, such as
// a go-persistence-bun client.
func (f *RepositoryFactory) BuildStores(persistenceClient any) (core.StoreProvider, error) {
	if f == nil {
		return nil, fmt.Errorf("sqlstore: repository factory is nil")
	}
	if f.db == nil {
		db, err := resolveBunDB(persistenceClient)
		if err != nil {
			return nil, err
		}
		f.db = db
	}
	if f.statementLineStore != nil && f.balanceCheckStore != nil && f.accountStore != nil {
		return f, nil
	}
	if err := f.initStores(); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *RepositoryFactory) StatementLineStore() core.StatementLineStore {
	if f == nil || f.statementLineStore == nil {
		return nil
	}
	return f.statementLineStore
}

func (f *RepositoryFactory) BalanceCheckStore() core.BalanceCheckStore {
	if f == nil || f.balanceCheckStore == nil {
		return nil
	}
	return f.balanceCheckStore
}

func (f *RepositoryFactory) Lines() *StatementLineStore {
	if f == nil {
		return nil
	}
	return f.statementLineStore
}

func (f *RepositoryFactory) BalanceChecks() *BalanceCheckStore {
	if f == nil {
		return nil
	}
	return f.balanceCheckStore
}

func (f *RepositoryFactory) AccountStore() *AccountStore {
	if f == nil {
		return nil
	}
	return f.accountStore
}

func (f *RepositoryFactory) DB() *bun.DB {
	if f == nil {
		return nil
	}
	return f.db
}

func (f *RepositoryFactory) initStores() error {
	statementLineStore, err := NewStatementLineStore(f.db)
	if err != nil {
		return err
	}
	balanceCheckStore, err := NewBalanceCheckStore(f.db)
	if err != nil {
		return err
	}
	accountStore, err := NewAccountStore(f.db)
	if err != nil {
		return err
	}
	f.statementLineStore = statementLineStore
	f.balanceCheckStore = balanceCheckStore
	f.accountStore = accountStore
	return nil
}

func resolveBunDB(candidate any) (*bun.DB, error) {
	switch typed := candidate.(type) {
	case nil:
		return nil, fmt.Errorf("sqlstore: persistence client is required")
	case *bun.DB:
		return typed, nil
	case interface{ DB() *bun.DB }:
		db := typed.DB()
		if db == nil {
			return nil, fmt.Errorf("sqlstore: persistence client returned nil bun db")
		}
		return db, nil
	default:
		return nil, fmt.Errorf("sqlstore: unsupported persistence client type %T", candidate)
	}
}

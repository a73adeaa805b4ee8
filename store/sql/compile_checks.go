package sqlstore

import "github.com/goliatone/go-bankfeeds/core"

var (
	_ core.StatementLineStore  = (*StatementLineStore)(nil)
	_ core.StatementLineReader = (*StatementLineStore)(nil)
	_ core.BalanceCheckStore   = (*BalanceCheckStore)(nil)
	_ core.AccountStore        = (*AccountStore)(nil)
	_ core.WatermarkRecorder   = (*AccountStore)(nil)
	_ core.StoreProvider       = (*RepositoryFactory)(nil)
)

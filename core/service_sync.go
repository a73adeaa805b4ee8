package core

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// SyncAccount runs one sync pass and returns the number of newly persisted
// statement lines.
func (s *Service) SyncAccount(ctx context.Context, account Account) (int, error) {
	report, err := s.Sync(ctx, account)
	if err != nil {
		return 0, err
	}
	return report.Persisted, nil
}

func (s *Service) Sync(ctx context.Context, account Account) (report SyncReport, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{
		"provider_key": strings.TrimSpace(account.ProviderKey),
		"account_id":   strings.TrimSpace(account.ID),
		"tenant_id":    strings.TrimSpace(account.TenantID),
	}
	report.AccountID = strings.TrimSpace(account.ID)
	report.ProviderKey = strings.TrimSpace(account.ProviderKey)
	defer func() {
		fields["fetched"] = report.Fetched
		fields["persisted"] = report.Persisted
		fields["skipped"] = report.Skipped
		fields["degraded"] = report.Degraded
		s.observeOperation(ctx, startedAt, "sync_account", err, fields)
	}()

	if s == nil {
		err = NewConfigurationError("core: service is nil", nil)
		return report, err
	}
	if err = validateAccount(account); err != nil {
		return report, err
	}
	if s.statementLineStore == nil {
		err = NewConfigurationError("core: statement line store is required", nil)
		return report, err
	}

	adapter, err := s.resolveAdapter(ctx, account)
	if err != nil {
		return report, err
	}
	session, err := s.authenticate(ctx, adapter, account)
	if err != nil {
		return report, err
	}

	startDate, err := s.syncStartDate(ctx, account)
	if err != nil {
		err = s.mapError(err)
		return report, err
	}
	report.StartDate = startDate

	raws, fetchErr := adapter.FetchTransactions(ctx, session, account, startDate)
	if fetchErr != nil {
		if IsErrorKind(fetchErr, ErrorCredentialEnvelope) || IsErrorKind(fetchErr, ErrorConfiguration) {
			err = fetchErr
			return report, err
		}
		if !IsErrorKind(fetchErr, ErrorFetchFailure) {
			fetchErr = NewFetchFailure(adapter.ProviderKey(), 0, "", fetchErr)
		}
		report.Degraded = true
		report.FetchErr = fetchErr
		if s.config.FailurePolicy() == FetchFailureEscalate {
			err = fetchErr
			return report, err
		}
		s.logWarn(ctx, "sync_account fetch failed, continuing with zero progress", map[string]any{
			"provider_key": adapter.ProviderKey(),
			"account_id":   account.ID,
			"error":        fetchErr.Error(),
		})
	}
	report.Fetched = len(raws)

	for _, raw := range raws {
		line, ok := s.normalize(ctx, adapter, raw)
		if !ok {
			report.Skipped++
			continue
		}
		created, persisted, persistErr := s.persistLine(ctx, account, line)
		if persistErr != nil {
			err = s.mapError(persistErr)
			return report, err
		}
		if !persisted {
			report.Skipped++
			continue
		}
		report.Persisted++
		if line.BalanceCheck != nil {
			s.registerPendingBalanceCheck(ctx, account, line, created.TransactionDate)
		}
	}

	if s.watermarkRecorder != nil {
		if recordErr := s.watermarkRecorder.RecordSynced(ctx, account.ID, s.now()); recordErr != nil {
			s.logWarn(ctx, "sync_account watermark record failed", map[string]any{
				"account_id": account.ID,
				"error":      recordErr.Error(),
			})
		}
	}
	return report, nil
}

// normalize guards the adapter call so one malformed row cannot abort the
// pass.
func (s *Service) normalize(ctx context.Context, adapter Adapter, raw RawTransaction) (line NormalizedLine, ok bool) {
	if raw.Normalized != nil {
		line = *raw.Normalized
	} else {
		func() {
			defer func() {
				if recovered := recover(); recovered != nil {
					s.logWarn(ctx, "sync_account normalize panicked", map[string]any{
						"provider_key": adapter.ProviderKey(),
						"panic":        fmt.Sprint(recovered),
					})
					ok = false
				}
			}()
			line = adapter.NormalizeTransaction(raw)
			ok = true
		}()
		if !ok {
			return NormalizedLine{}, false
		}
	}
	if !line.Exclusive() {
		s.logWarn(ctx, "sync_account dropped line with both debit and credit", map[string]any{
			"provider_key": adapter.ProviderKey(),
			"reference":    line.Reference,
		})
		return NormalizedLine{}, false
	}
	if strings.TrimSpace(line.Description) == "" {
		line.Description = DefaultLineDescription
	}
	if line.TransactionDate.IsZero() {
		line.TransactionDate = raw.ObservedAt
	}
	return line, true
}

func (s *Service) persistLine(ctx context.Context, account Account, line NormalizedLine) (StatementLine, bool, error) {
	created, err := s.statementLineStore.Create(ctx, NewStatementLine(account, line))
	if err != nil {
		if IsErrorKind(err, ErrorPersistenceConflict) {
			return StatementLine{}, false, nil
		}
		return StatementLine{}, false, err
	}
	return created, true, nil
}

func (s *Service) registerPendingBalanceCheck(ctx context.Context, account Account, line NormalizedLine, requestedAt time.Time) {
	if s.balanceCheckStore == nil || line.BalanceCheck == nil {
		return
	}
	correlationID := strings.TrimSpace(line.BalanceCheck.CorrelationID)
	if correlationID == "" {
		return
	}
	if requestedAt.IsZero() {
		requestedAt = s.now()
	}
	_, err := s.balanceCheckStore.Create(ctx, BalanceCheck{
		CorrelationID: correlationID,
		TenantID:      account.TenantID,
		AccountID:     account.ID,
		ProviderKey:   account.ProviderKey,
		Kind:          BalanceCheckKindAccountBalance,
		Status:        BalanceCheckStatusPending,
		RequestedAt:   requestedAt,
	})
	if err != nil && !IsErrorKind(err, ErrorPersistenceConflict) {
		s.logWarn(ctx, "sync_account balance check registration failed", map[string]any{
			"account_id":     account.ID,
			"correlation_id": correlationID,
			"error":          err.Error(),
		})
	}
}

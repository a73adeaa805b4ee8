package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

func (s *Service) RequestBalanceCheck(ctx context.Context, account Account) (check BalanceCheck, err error) {
	return s.requestAsync(ctx, account, BalanceCheckKindAccountBalance, "")
}

func (s *Service) RequestTransactionStatus(ctx context.Context, account Account, transactionID string) (BalanceCheck, error) {
	transactionID = strings.TrimSpace(transactionID)
	if transactionID == "" {
		return BalanceCheck{}, NewConfigurationError("core: transaction id is required", nil)
	}
	return s.requestAsync(ctx, account, BalanceCheckKindTransactionStatus, transactionID)
}

func (s *Service) requestAsync(ctx context.Context, account Account, kind BalanceCheckKind, transactionID string) (check BalanceCheck, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{
		"provider_key": strings.TrimSpace(account.ProviderKey),
		"account_id":   strings.TrimSpace(account.ID),
		"kind":         string(kind),
	}
	defer func() {
		if check.CorrelationID != "" {
			fields["correlation_id"] = check.CorrelationID
		}
		s.observeOperation(ctx, startedAt, "request_"+string(kind), err, fields)
	}()

	if s == nil {
		err = NewConfigurationError("core: service is nil", nil)
		return BalanceCheck{}, err
	}
	if err = validateAccount(account); err != nil {
		return BalanceCheck{}, err
	}
	adapter, err := s.resolveAdapter(ctx, account)
	if err != nil {
		return BalanceCheck{}, err
	}
	asyncAdapter, ok := adapter.(BalanceCheckAdapter)
	if !ok {
		err = NewConfigurationError(
			fmt.Sprintf("core: provider %q does not support async balance commands", adapter.ProviderKey()),
			map[string]any{"provider_key": adapter.ProviderKey()},
		)
		return BalanceCheck{}, err
	}
	session, err := s.authenticate(ctx, adapter, account)
	if err != nil {
		return BalanceCheck{}, err
	}

	var request BalanceCheckRequest
	if kind == BalanceCheckKindTransactionStatus {
		request, err = asyncAdapter.RequestTransactionStatus(ctx, session, account, transactionID)
	} else {
		request, err = asyncAdapter.RequestBalanceCheck(ctx, session, account)
	}
	if err != nil {
		err = s.mapError(err)
		return BalanceCheck{}, err
	}
	if !request.Acknowledged || strings.TrimSpace(request.CorrelationID) == "" {
		err = newKindError("provider did not acknowledge the request", goerrors.CategoryExternal, ErrorExternalFailure, map[string]any{
			"provider_key":         adapter.ProviderKey(),
			"response_code":        request.ResponseCode,
			"response_description": request.ResponseDescription,
		})
		return BalanceCheck{}, err
	}

	requestedAt := request.RequestedAt
	if requestedAt.IsZero() {
		requestedAt = s.now()
	}
	check = BalanceCheck{
		CorrelationID:            strings.TrimSpace(request.CorrelationID),
		OriginatorConversationID: strings.TrimSpace(request.OriginatorConversationID),
		TenantID:                 account.TenantID,
		AccountID:                account.ID,
		ProviderKey:              adapter.ProviderKey(),
		Kind:                     kind,
		TransactionID:            transactionID,
		Status:                   BalanceCheckStatusPending,
		RequestedAt:              requestedAt,
	}
	if s.balanceCheckStore == nil {
		return check, nil
	}
	stored, createErr := s.balanceCheckStore.Create(ctx, check)
	if createErr != nil {
		err = s.mapError(createErr)
		return BalanceCheck{}, err
	}
	return stored, nil
}

func (s *Service) ResolveBalanceResult(ctx context.Context, correlationID string, payload []byte) (BalanceCheck, error) {
	return s.resolveCallback(ctx, "resolve_balance_result", BalanceCheckKindAccountBalance, correlationID, payload, false)
}

func (s *Service) ResolveStatusResult(ctx context.Context, correlationID string, payload []byte) (BalanceCheck, error) {
	return s.resolveCallback(ctx, "resolve_status_result", BalanceCheckKindTransactionStatus, correlationID, payload, false)
}

// RecordCallbackTimeout marks a pending check as timed out. The payload is
// optional and only kept when it parses.
func (s *Service) RecordCallbackTimeout(ctx context.Context, correlationID string, payload []byte) (BalanceCheck, error) {
	return s.resolveCallback(ctx, "record_callback_timeout", "", correlationID, payload, true)
}

func (s *Service) resolveCallback(
	ctx context.Context,
	operation string,
	kind BalanceCheckKind,
	correlationID string,
	payload []byte,
	timedOut bool,
) (check BalanceCheck, err error) {
	startedAt := time.Now().UTC()
	correlationID = strings.TrimSpace(correlationID)
	fields := map[string]any{"correlation_id": correlationID}
	defer func() {
		if check.AccountID != "" {
			fields["account_id"] = check.AccountID
			fields["status"] = string(check.Status)
		}
		s.observeOperation(ctx, startedAt, operation, err, fields)
	}()

	if s == nil || s.balanceCheckStore == nil {
		err = NewConfigurationError("core: balance check store is required", nil)
		return BalanceCheck{}, err
	}

	var parsed CallbackResult
	var parseErr error
	if correlationID == "" || len(payload) > 0 {
		parsed, parseErr = s.parseCallbackForAnyProvider(ctx, correlationID, payload)
		if parseErr != nil && !timedOut {
			err = parseErr
			return BalanceCheck{}, err
		}
	}
	if correlationID == "" {
		correlationID = strings.TrimSpace(parsed.CorrelationID)
		fields["correlation_id"] = correlationID
	}
	if correlationID == "" {
		err = NewConfigurationError("core: callback correlation id is required", nil)
		return BalanceCheck{}, err
	}
	if parsed.CorrelationID != "" && parsed.CorrelationID != correlationID {
		err = NewConfigurationError("core: callback correlation id mismatch", map[string]any{
			"correlation_id": correlationID,
			"payload_id":     parsed.CorrelationID,
		})
		return BalanceCheck{}, err
	}

	existing, err := s.balanceCheckStore.GetByCorrelationID(ctx, correlationID)
	if err != nil {
		err = s.mapError(err)
		return BalanceCheck{}, err
	}
	if kind != "" && existing.Kind != kind {
		err = NewConfigurationError(
			fmt.Sprintf("core: callback for %s does not match %s check", kind, existing.Kind),
			map[string]any{"correlation_id": correlationID},
		)
		return BalanceCheck{}, err
	}
	if existing.Status.Terminal() {
		return existing, nil
	}

	in := ResolveBalanceCheckInput{
		ResultCode:        parsed.ResultCode,
		ResultDescription: parsed.ResultDescription,
		TransactionID:     parsed.TransactionID,
		Balances:          parsed.Balances,
		Payload:           RedactSensitiveMap(parsed.Parameters),
		ResolvedAt:        s.now(),
	}
	switch {
	case timedOut:
		in.Status = BalanceCheckStatusTimedOut
	case parsed.Success:
		in.Status = BalanceCheckStatusCompleted
	default:
		in.Status = BalanceCheckStatusFailed
	}
	check, err = s.balanceCheckStore.Resolve(ctx, correlationID, in)
	if err != nil {
		err = s.mapError(err)
		return BalanceCheck{}, err
	}
	return check, nil
}

// parseCallbackForAnyProvider finds the adapter owning the pending check and
// lets it decode the payload.
func (s *Service) parseCallbackForAnyProvider(ctx context.Context, correlationID string, payload []byte) (CallbackResult, error) {
	if len(payload) == 0 {
		return CallbackResult{}, NewConfigurationError("core: callback payload is required", nil)
	}
	providerKeys := []string{}
	if correlationID != "" {
		if existing, err := s.balanceCheckStore.GetByCorrelationID(ctx, correlationID); err == nil {
			providerKeys = append(providerKeys, existing.ProviderKey)
		}
	}
	if len(providerKeys) == 0 && s.adapters != nil {
		providerKeys = s.adapters.Keys()
	}
	var lastErr error
	for _, key := range providerKeys {
		adapter, err := s.resolveAdapter(ctx, Account{ProviderKey: key})
		if err != nil {
			lastErr = err
			continue
		}
		asyncAdapter, ok := adapter.(BalanceCheckAdapter)
		if !ok {
			continue
		}
		result, err := asyncAdapter.ParseCallback(payload)
		if err != nil {
			lastErr = err
			continue
		}
		return result, nil
	}
	if lastErr != nil {
		return CallbackResult{}, NewConfigurationError("core: callback payload could not be parsed", map[string]any{
			"error": lastErr.Error(),
		})
	}
	return CallbackResult{}, NewConfigurationError("core: no provider accepts async callbacks", nil)
}

func (s *Service) GetBalanceCheck(ctx context.Context, correlationID string) (BalanceCheck, error) {
	correlationID = strings.TrimSpace(correlationID)
	if correlationID == "" {
		return BalanceCheck{}, NewConfigurationError("core: correlation id is required", nil)
	}
	if s == nil || s.balanceCheckReader == nil {
		return BalanceCheck{}, NewConfigurationError("core: balance check store is required", nil)
	}
	check, err := s.balanceCheckReader.GetByCorrelationID(ctx, correlationID)
	if err != nil {
		return BalanceCheck{}, s.mapError(err)
	}
	return check, nil
}

package devkit

import (
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-bankfeeds/core"
)

// EdgePayloads are structurally valid payloads every adapter must normalize
// without panicking: empty maps, nulls, wrong types and hostile values.
func EdgePayloads() []map[string]any {
	return []map[string]any{
		{},
		{"amount": nil, "description": nil},
		{"amount": "not-a-number", "transaction_type": 42},
		{"amount": -250.75, "transaction_type": "DEBIT"},
		{"Amount": "-10", "TransactionType": "Debit", "TransactionDate": "garbage"},
		{"amount": map[string]any{"nested": true}, "date": []any{"2024"}},
		{"transaction_date": "2024-02-30", "amount": "1e400"},
		{"TransactionID": "", "Amount": true, "Remarks": 3.5},
		{"id": 12.5, "amount": "0", "transaction_type": "credit"},
	}
}

// ValidateNormalizeConformance runs NormalizeTransaction over raws and the
// edge payloads and checks the canonical line contract.
func ValidateNormalizeConformance(adapter core.Adapter, raws ...core.RawTransaction) (err error) {
	if adapter == nil {
		return fmt.Errorf("devkit: adapter is required")
	}
	if strings.TrimSpace(adapter.ProviderKey()) == "" {
		return fmt.Errorf("devkit: adapter provider key is required")
	}
	observedAt := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	candidates := append([]core.RawTransaction(nil), raws...)
	for _, payload := range EdgePayloads() {
		candidates = append(candidates, core.RawTransaction{
			ProviderKey: adapter.ProviderKey(),
			Payload:     payload,
			ObservedAt:  observedAt,
		})
	}
	candidates = append(candidates, core.RawTransaction{ProviderKey: adapter.ProviderKey(), ObservedAt: observedAt})

	for index, raw := range candidates {
		line, normalizeErr := normalizeSafely(adapter, raw)
		if normalizeErr != nil {
			return fmt.Errorf("devkit: candidate %d: %w", index, normalizeErr)
		}
		if !line.Exclusive() {
			return fmt.Errorf("devkit: candidate %d: debit %s and credit %s are not exclusive", index, line.Debit, line.Credit)
		}
		if strings.TrimSpace(line.Description) == "" {
			return fmt.Errorf("devkit: candidate %d: description is empty", index)
		}
		if strings.TrimSpace(line.Reference) == "" {
			return fmt.Errorf("devkit: candidate %d: reference is empty", index)
		}
		if line.TransactionDate.IsZero() {
			return fmt.Errorf("devkit: candidate %d: transaction date is zero", index)
		}
		again, _ := normalizeSafely(adapter, raw)
		if again.Reference != line.Reference {
			return fmt.Errorf("devkit: candidate %d: reference is not deterministic", index)
		}
	}
	return nil
}

func normalizeSafely(adapter core.Adapter, raw core.RawTransaction) (line core.NormalizedLine, err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			err = fmt.Errorf("normalize panicked: %v", recovered)
		}
	}()
	return adapter.NormalizeTransaction(raw), nil
}

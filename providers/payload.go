package providers

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// String returns the first non-empty field among keys, stringifying
// numbers the way providers send ids.
func String(payload map[string]any, keys ...string) string {
	for _, key := range keys {
		value, ok := payload[key]
		if !ok || value == nil {
			continue
		}
		var text string
		switch typed := value.(type) {
		case string:
			text = typed
		case json.Number:
			text = typed.String()
		case float64:
			if typed == math.Trunc(typed) && math.Abs(typed) < 1e15 {
				text = strconv.FormatInt(int64(typed), 10)
			} else {
				text = strconv.FormatFloat(typed, 'f', -1, 64)
			}
		case int:
			text = strconv.Itoa(typed)
		case int64:
			text = strconv.FormatInt(typed, 10)
		case fmt.Stringer:
			text = typed.String()
		default:
			continue
		}
		if text = strings.TrimSpace(text); text != "" {
			return text
		}
	}
	return ""
}

// Decimal parses the first parseable amount among keys. Unparseable values
// yield zero and false.
func Decimal(payload map[string]any, keys ...string) (decimal.Decimal, bool) {
	for _, key := range keys {
		value, ok := payload[key]
		if !ok || value == nil {
			continue
		}
		switch typed := value.(type) {
		case float64:
			if math.IsNaN(typed) || math.IsInf(typed, 0) {
				continue
			}
			return decimal.NewFromFloat(typed), true
		case int:
			return decimal.NewFromInt(int64(typed)), true
		case int64:
			return decimal.NewFromInt(typed), true
		case json.Number:
			if parsed, err := decimal.NewFromString(typed.String()); err == nil {
				return parsed, true
			}
		case string:
			if parsed, ok := ParseAmount(typed); ok {
				return parsed, true
			}
		}
	}
	return decimal.Zero, false
}

// ParseAmount accepts plain decimals and thousands separators ("1,250.00").
func ParseAmount(raw string) (decimal.Decimal, bool) {
	cleaned := strings.ReplaceAll(strings.TrimSpace(raw), ",", "")
	if cleaned == "" {
		return decimal.Zero, false
	}
	parsed, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, false
	}
	return parsed, true
}

// Time parses the first field among keys using layouts, interpreting
// zone-less values in loc.
func Time(payload map[string]any, loc *time.Location, layouts []string, keys ...string) (time.Time, bool) {
	if loc == nil {
		loc = time.UTC
	}
	for _, key := range keys {
		raw := String(payload, key)
		if raw == "" {
			continue
		}
		for _, layout := range layouts {
			parsed, err := time.ParseInLocation(layout, raw, loc)
			if err == nil {
				return parsed.UTC(), true
			}
		}
	}
	return time.Time{}, false
}

// Reference is a stable fallback reference derived from the payload
// content. encoding/json sorts map keys, so equal payloads hash equally.
func Reference(prefix string, payload map[string]any) string {
	encoded, err := json.Marshal(payload)
	if err != nil {
		encoded = []byte(fmt.Sprintf("%v", payload))
	}
	sum := sha256.Sum256(encoded)
	return strings.TrimSpace(prefix) + ":" + hex.EncodeToString(sum[:12])
}

// Split maps a signed amount and a debit flag onto exclusive debit/credit
// columns.
func Split(amount decimal.Decimal, debit bool) (decimal.Decimal, decimal.Decimal) {
	amount = amount.Abs()
	if debit {
		return amount, decimal.Zero
	}
	return decimal.Zero, amount
}

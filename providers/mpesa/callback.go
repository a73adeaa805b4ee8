package mpesa

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/goliatone/go-bankfeeds/core"
	"github.com/goliatone/go-bankfeeds/providers"
	"github.com/shopspring/decimal"
)

const (
	ParameterAccountBalance = "AccountBalance"
	successResultCode       = "0"
)

// ResultCallback is the decoded Result envelope posted to the result and
// timeout URLs.
type ResultCallback struct {
	ResultType               string
	ResultCode               string
	ResultDesc               string
	ConversationID           string
	OriginatorConversationID string
	TransactionID            string
	Parameters               map[string]any
}

func (r ResultCallback) Success() bool {
	return r.ResultCode == successResultCode
}

type resultEnvelope struct {
	Result *resultBody `json:"Result"`
}

type resultBody struct {
	ResultType               any             `json:"ResultType"`
	ResultCode               any             `json:"ResultCode"`
	ResultDesc               string          `json:"ResultDesc"`
	OriginatorConversationID string          `json:"OriginatorConversationID"`
	ConversationID           string          `json:"ConversationID"`
	TransactionID            string          `json:"TransactionID"`
	ResultParameters         json.RawMessage `json:"ResultParameters"`
}

// ParseResult decodes a Result callback. ResultParameter may be an array
// of Key/Value items, a single Key/Value object or a flat object.
func ParseResult(payload []byte) (ResultCallback, error) {
	payload = bytes.TrimSpace(payload)
	if len(payload) == 0 {
		return ResultCallback{}, fmt.Errorf("mpesa: callback payload is empty")
	}
	decoder := json.NewDecoder(bytes.NewReader(payload))
	decoder.UseNumber()
	envelope := resultEnvelope{}
	if err := decoder.Decode(&envelope); err != nil {
		return ResultCallback{}, fmt.Errorf("mpesa: decode callback: %w", err)
	}
	if envelope.Result == nil {
		return ResultCallback{}, fmt.Errorf("mpesa: callback has no Result")
	}
	body := envelope.Result
	result := ResultCallback{
		ResultType:               scalarString(body.ResultType),
		ResultCode:               scalarString(body.ResultCode),
		ResultDesc:               strings.TrimSpace(body.ResultDesc),
		ConversationID:           strings.TrimSpace(body.ConversationID),
		OriginatorConversationID: strings.TrimSpace(body.OriginatorConversationID),
		TransactionID:            strings.TrimSpace(body.TransactionID),
		Parameters:               map[string]any{},
	}
	if result.ConversationID == "" && result.OriginatorConversationID == "" {
		return ResultCallback{}, fmt.Errorf("mpesa: callback has no conversation id")
	}
	if err := decodeParameters(body.ResultParameters, result.Parameters); err != nil {
		return ResultCallback{}, err
	}
	return result, nil
}

func decodeParameters(raw json.RawMessage, out map[string]any) error {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}
	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.UseNumber()
	wrapper := map[string]any{}
	if err := decoder.Decode(&wrapper); err != nil {
		return fmt.Errorf("mpesa: decode result parameters: %w", err)
	}
	switch typed := wrapper["ResultParameter"].(type) {
	case []any:
		for _, item := range typed {
			if entry, ok := item.(map[string]any); ok {
				collectParameter(entry, out)
			}
		}
	case map[string]any:
		if _, hasKey := typed["Key"]; hasKey {
			collectParameter(typed, out)
			return nil
		}
		for key, value := range typed {
			out[key] = value
		}
	}
	return nil
}

func collectParameter(entry map[string]any, out map[string]any) {
	key := providers.String(entry, "Key")
	if key == "" {
		return
	}
	out[key] = entry["Value"]
}

// ParseCallback is the provider-neutral reading used by the service.
func (a *Adapter) ParseCallback(payload []byte) (core.CallbackResult, error) {
	result, err := ParseResult(payload)
	if err != nil {
		return core.CallbackResult{}, err
	}
	correlationID := result.ConversationID
	if correlationID == "" {
		correlationID = result.OriginatorConversationID
	}
	out := core.CallbackResult{
		CorrelationID:            correlationID,
		OriginatorConversationID: result.OriginatorConversationID,
		TransactionID:            result.TransactionID,
		ResultCode:               result.ResultCode,
		ResultDescription:        result.ResultDesc,
		Success:                  result.Success(),
		Parameters:               result.Parameters,
	}
	if raw := providers.String(result.Parameters, ParameterAccountBalance); raw != "" {
		balances, err := ParseAccountBalances(raw)
		if err != nil {
			return core.CallbackResult{}, err
		}
		out.Balances = balances
	}
	return out, nil
}

// ParseAccountBalances reads the pipe/ampersand encoded balance string:
// "Working Account|KES|100.00|100.00|0.00|0.00&Utility Account|KES|...".
// Columns are name, currency, current, available, reserved, uncleared.
func ParseAccountBalances(raw string) ([]core.AccountBalance, error) {
	out := []core.AccountBalance{}
	for _, segment := range strings.Split(strings.TrimSpace(raw), "&") {
		segment = strings.TrimSpace(segment)
		if segment == "" {
			continue
		}
		columns := strings.Split(segment, "|")
		if len(columns) < 4 {
			return nil, fmt.Errorf("mpesa: balance segment %q has %d columns", segment, len(columns))
		}
		balance := core.AccountBalance{
			Name:     strings.TrimSpace(columns[0]),
			Currency: strings.TrimSpace(columns[1]),
		}
		amounts := []*decimal.Decimal{&balance.Current, &balance.Available, &balance.Reserved, &balance.Uncleared}
		for index, target := range amounts {
			column := index + 2
			if column >= len(columns) {
				break
			}
			value := strings.TrimSpace(columns[column])
			if value == "" {
				continue
			}
			parsed, ok := providers.ParseAmount(value)
			if !ok {
				return nil, fmt.Errorf("mpesa: balance %q column %d is not a number", balance.Name, column)
			}
			*target = parsed
		}
		out = append(out, balance)
	}
	return out, nil
}

func scalarString(value any) string {
	return providers.String(map[string]any{"v": value}, "v")
}

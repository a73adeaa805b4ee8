package sqlstore

import (
	"strings"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
)

func accountHandlers() repository.ModelHandlers[*accountRecord] {
	return repository.ModelHandlers[*accountRecord]{
		NewRecord: func() *accountRecord {
			return &accountRecord{}
		},
		GetID: func(record *accountRecord) uuid.UUID {
			if record == nil {
				return uuid.Nil
			}
			return parseUUID(record.ID)
		},
		SetID: func(record *accountRecord, id uuid.UUID) {
			if record == nil {
				return
			}
			record.ID = id.String()
		},
		GetIdentifier: func() string {
			return "id"
		},
		GetIdentifierValue: func(record *accountRecord) string {
			if record == nil {
				return ""
			}
			return strings.TrimSpace(record.ID)
		},
	}
}

func statementLineHandlers() repository.ModelHandlers[*statementLineRecord] {
	return repository.ModelHandlers[*statementLineRecord]{
		NewRecord: func() *statementLineRecord {
			return &statementLineRecord{}
		},
		GetID: func(record *statementLineRecord) uuid.UUID {
			if record == nil {
				return uuid.Nil
			}
			return parseUUID(record.ID)
		},
		SetID: func(record *statementLineRecord, id uuid.UUID) {
			if record == nil {
				return
			}
			record.ID = id.String()
		},
		GetIdentifier: func() string {
			return "reference"
		},
		GetIdentifierValue: func(record *statementLineRecord) string {
			if record == nil {
				return ""
			}
			return strings.TrimSpace(record.Reference)
		},
	}
}

func balanceCheckHandlers() repository.ModelHandlers[*balanceCheckRecord] {
	return repository.ModelHandlers[*balanceCheckRecord]{
		NewRecord: func() *balanceCheckRecord {
			return &balanceCheckRecord{}
		},
		GetID: func(record *balanceCheckRecord) uuid.UUID {
			if record == nil {
				return uuid.Nil
			}
			return parseUUID(record.ID)
		},
		SetID: func(record *balanceCheckRecord, id uuid.UUID) {
			if record == nil {
				return
			}
			record.ID = id.String()
		},
		GetIdentifier: func() string {
			return "correlation_id"
		},
		GetIdentifierValue: func(record *balanceCheckRecord) string {
			if record == nil {
				return ""
			}
			return strings.TrimSpace(record.CorrelationID)
		},
	}
}

func parseUUID(value string) uuid.UUID {
	parsed, err := uuid.Parse(strings.TrimSpace(value))
	if err != nil {
		return uuid.Nil
	}
	return parsed
}

func ensureID(current string) string {
	if trimmed := strings.TrimSpace(current); trimmed != "" {
		return trimmed
	}
	return uuid.NewString()
}

package core

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	ErrorConfiguration       = "BANKFEEDS_CONFIGURATION"
	ErrorUnsupportedProvider = "BANKFEEDS_UNSUPPORTED_PROVIDER"
	ErrorAuthFailure         = "BANKFEEDS_AUTH_FAILURE"
	ErrorFetchFailure        = "BANKFEEDS_FETCH_FAILURE"
	ErrorPersistenceConflict = "BANKFEEDS_PERSISTENCE_CONFLICT"
	ErrorCredentialEnvelope  = "BANKFEEDS_CREDENTIAL_ENVELOPE"
	ErrorNotFound            = "BANKFEEDS_NOT_FOUND"
	ErrorExternalFailure     = "BANKFEEDS_EXTERNAL_FAILURE"
	ErrorRateLimited         = "BANKFEEDS_RATE_LIMITED"
	ErrorInternal            = "BANKFEEDS_INTERNAL_ERROR"
)

const PublicSyncFailureMessage = "bank sync failed"

func NewConfigurationError(message string, metadata map[string]any) *goerrors.Error {
	return newKindError(message, goerrors.CategoryBadInput, ErrorConfiguration, metadata)
}

func NewUnsupportedProviderError(providerKey string) *goerrors.Error {
	return newKindError(
		fmt.Sprintf("core: provider %q is not registered", strings.TrimSpace(providerKey)),
		goerrors.CategoryNotFound,
		ErrorUnsupportedProvider,
		map[string]any{"provider_key": strings.TrimSpace(providerKey)},
	)
}

// NewAuthFailure reports a rejected or unreachable identity endpoint. The
// response body is kept in metadata and stripped by PublicError in
// production.
func NewAuthFailure(providerKey string, status int, body string, cause error) *goerrors.Error {
	metadata := map[string]any{"provider_key": strings.TrimSpace(providerKey)}
	if status > 0 {
		metadata["status"] = status
	}
	if body = strings.TrimSpace(body); body != "" {
		metadata["response_body"] = body
	}
	message := "authentication failed"
	if status > 0 {
		message = fmt.Sprintf("authentication failed with status %d", status)
	}
	if cause != nil {
		return wrapKindError(cause, message, goerrors.CategoryAuth, ErrorAuthFailure, metadata)
	}
	return newKindError(message, goerrors.CategoryAuth, ErrorAuthFailure, metadata)
}

func NewFetchFailure(providerKey string, status int, body string, cause error) *goerrors.Error {
	metadata := map[string]any{"provider_key": strings.TrimSpace(providerKey)}
	if status > 0 {
		metadata["status"] = status
	}
	if body = strings.TrimSpace(body); body != "" {
		metadata["response_body"] = body
	}
	message := "transaction fetch failed"
	if status > 0 {
		message = fmt.Sprintf("transaction fetch failed with status %d", status)
	}
	if cause != nil {
		return wrapKindError(cause, message, goerrors.CategoryExternal, ErrorFetchFailure, metadata)
	}
	return newKindError(message, goerrors.CategoryExternal, ErrorFetchFailure, metadata)
}

func NewPersistenceConflict(accountID, reference string, cause error) *goerrors.Error {
	metadata := map[string]any{
		"account_id": strings.TrimSpace(accountID),
		"reference":  strings.TrimSpace(reference),
	}
	if cause != nil {
		return wrapKindError(cause, "statement line already exists", goerrors.CategoryConflict, ErrorPersistenceConflict, metadata)
	}
	return newKindError("statement line already exists", goerrors.CategoryConflict, ErrorPersistenceConflict, metadata)
}

func NewCredentialEnvelopeError(message string, cause error, metadata map[string]any) *goerrors.Error {
	if cause != nil {
		return wrapKindError(cause, message, goerrors.CategoryInternal, ErrorCredentialEnvelope, metadata)
	}
	return newKindError(message, goerrors.CategoryInternal, ErrorCredentialEnvelope, metadata)
}

func NewNotFoundError(message string, metadata map[string]any) *goerrors.Error {
	return newKindError(message, goerrors.CategoryNotFound, ErrorNotFound, metadata)
}

// IsErrorKind reports whether any rich error in the chain carries textCode.
func IsErrorKind(err error, textCode string) bool {
	if err == nil {
		return false
	}
	textCode = strings.TrimSpace(textCode)
	for current := err; current != nil; {
		var richErr *goerrors.Error
		if !goerrors.As(current, &richErr) || richErr == nil {
			return false
		}
		if richErr.TextCode == textCode {
			return true
		}
		current = errors.Unwrap(richErr)
	}
	return false
}

// PublicError returns the envelope safe to hand to a caller. Production
// hides diagnostics behind a generic message and the text code.
func PublicError(err error, environment string) *goerrors.Error {
	if err == nil {
		return nil
	}
	mapped := serviceErrorMapper(err)
	if !strings.EqualFold(strings.TrimSpace(environment), EnvironmentProduction) {
		if len(mapped.Metadata) > 0 {
			mapped.Metadata = RedactSensitiveMap(mapped.Metadata)
		}
		return mapped
	}
	return goerrors.New(PublicSyncFailureMessage, mapped.Category).
		WithCode(mapped.Code).
		WithTextCode(mapped.TextCode)
}

func newKindError(message string, category goerrors.Category, textCode string, metadata map[string]any) *goerrors.Error {
	err := goerrors.New(message, category).
		WithCode(serviceHTTPStatus(category, textCode)).
		WithTextCode(textCode)
	if len(metadata) > 0 {
		err = err.WithMetadata(metadata)
	}
	return err
}

func wrapKindError(cause error, message string, category goerrors.Category, textCode string, metadata map[string]any) *goerrors.Error {
	err := goerrors.Wrap(cause, category, message).
		WithCode(serviceHTTPStatus(category, textCode)).
		WithTextCode(textCode)
	if len(metadata) > 0 {
		err = err.WithMetadata(metadata)
	}
	return err
}

func serviceErrorMapper(err error) *goerrors.Error {
	if err == nil {
		return nil
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return ensureServiceErrorEnvelope(richErr)
	}

	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	switch {
	case strings.Contains(msg, "provider") && strings.Contains(msg, "not registered"):
		return newServiceError(err.Error(), goerrors.CategoryNotFound, ErrorUnsupportedProvider)
	case strings.Contains(msg, "not found"):
		return newServiceError(err.Error(), goerrors.CategoryNotFound, ErrorNotFound)
	case strings.Contains(msg, "unique constraint"), strings.Contains(msg, "duplicate key"):
		return newServiceError(err.Error(), goerrors.CategoryConflict, ErrorPersistenceConflict)
	case strings.Contains(msg, "required"), strings.Contains(msg, "invalid"), strings.Contains(msg, "unsupported"):
		return newServiceError(err.Error(), goerrors.CategoryBadInput, ErrorConfiguration)
	}

	mapped := goerrors.MapToError(err, goerrors.DefaultErrorMappers())
	return ensureServiceErrorEnvelope(mapped)
}

func newServiceError(message string, category goerrors.Category, textCode string) *goerrors.Error {
	return ensureServiceErrorEnvelope(
		goerrors.New(message, category).
			WithTextCode(textCode),
	)
}

func ensureServiceErrorEnvelope(err *goerrors.Error) *goerrors.Error {
	if err == nil {
		return nil
	}
	if err.Code == 0 {
		err.Code = serviceHTTPStatus(err.Category, err.TextCode)
	}
	if strings.TrimSpace(err.TextCode) == "" {
		err.TextCode = defaultServiceTextCode(err.Category)
	}
	if err.Category == goerrors.CategoryInternal && strings.TrimSpace(err.Message) == "" {
		err.Message = "An unexpected error occurred"
	}
	return err
}

func defaultServiceTextCode(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return ErrorConfiguration
	case goerrors.CategoryNotFound:
		return ErrorNotFound
	case goerrors.CategoryAuth, goerrors.CategoryAuthz:
		return ErrorAuthFailure
	case goerrors.CategoryConflict:
		return ErrorPersistenceConflict
	case goerrors.CategoryRateLimit:
		return ErrorRateLimited
	case goerrors.CategoryExternal:
		return ErrorExternalFailure
	default:
		return ErrorInternal
	}
}

func serviceHTTPStatus(category goerrors.Category, textCode string) int {
	if textCode == ErrorFetchFailure || textCode == ErrorExternalFailure {
		return http.StatusBadGateway
	}
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return http.StatusBadRequest
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryAuth:
		return http.StatusUnauthorized
	case goerrors.CategoryAuthz:
		return http.StatusForbidden
	case goerrors.CategoryConflict:
		return http.StatusConflict
	case goerrors.CategoryRateLimit:
		return http.StatusTooManyRequests
	case goerrors.CategoryExternal:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

package inbound

import (
	"net/http"

	"github.com/goliatone/go-bankfeeds/core"
	goerrors "github.com/goliatone/go-errors"
)

func inboundError(
	message string,
	category goerrors.Category,
	code int,
	textCode string,
	metadata map[string]any,
) error {
	err := goerrors.New(message, category).
		WithCode(code).
		WithTextCode(textCode)
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}

func inboundWrapError(
	source error,
	category goerrors.Category,
	message string,
	code int,
	textCode string,
	metadata map[string]any,
) error {
	if source == nil {
		return inboundError(message, category, code, textCode, metadata)
	}
	err := goerrors.Wrap(source, category, message).
		WithCode(code).
		WithTextCode(textCode)
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}

func inboundBadInput(message string, metadata map[string]any) error {
	return inboundError(
		message,
		goerrors.CategoryBadInput,
		http.StatusBadRequest,
		core.ErrorConfiguration,
		metadata,
	)
}

func inboundInternal(message string, metadata map[string]any) error {
	return inboundError(
		message,
		goerrors.CategoryInternal,
		http.StatusInternalServerError,
		core.ErrorInternal,
		metadata,
	)
}

// handlerError keeps the envelope a handler already produced so the HTTP
// layer can answer with its status; anything else becomes a 502.
func handlerError(source error, metadata map[string]any) error {
	var rich *goerrors.Error
	if goerrors.As(source, &rich) && rich != nil && rich.Code > 0 {
		return inboundWrapError(source, rich.Category, "inbound: handler execution failed", rich.Code, rich.TextCode, metadata)
	}
	return inboundWrapError(
		source,
		goerrors.CategoryExternal,
		"inbound: handler execution failed",
		http.StatusBadGateway,
		core.ErrorExternalFailure,
		metadata,
	)
}

// StatusCode reads the HTTP status carried by an inbound error envelope.
func StatusCode(err error) int {
	if err == nil {
		return http.StatusOK
	}
	var rich *goerrors.Error
	if goerrors.As(err, &rich) && rich != nil && rich.Code > 0 {
		return rich.Code
	}
	return http.StatusInternalServerError
}

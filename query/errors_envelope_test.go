package query

import (
	"context"
	"net/http"
	"testing"

	"github.com/goliatone/go-bankfeeds/core"
	goerrors "github.com/goliatone/go-errors"
)

func TestGetBalanceCheckMessage_ValidateReturnsRichError(t *testing.T) {
	err := (GetBalanceCheckMessage{}).Validate()
	if err == nil {
		t.Fatalf("expected validation error")
	}

	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		t.Fatalf("expected go-errors envelope, got %T", err)
	}
	if rich.Category != goerrors.CategoryValidation {
		t.Fatalf("expected validation category, got %q", rich.Category)
	}
	if rich.TextCode != core.ErrorConfiguration {
		t.Fatalf("expected %q text code, got %q", core.ErrorConfiguration, rich.TextCode)
	}
	if rich.Code != http.StatusBadRequest {
		t.Fatalf("expected %d code, got %d", http.StatusBadRequest, rich.Code)
	}
}

func TestGetBalanceCheckQuery_NilReaderReturnsRichError(t *testing.T) {
	var qry *GetBalanceCheckQuery
	_, err := qry.Query(context.Background(), GetBalanceCheckMessage{CorrelationID: "AG_1"})
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		t.Fatalf("expected go-errors envelope, got %T", err)
	}
	if rich.Category != goerrors.CategoryInternal {
		t.Fatalf("expected internal category, got %q", rich.Category)
	}
}

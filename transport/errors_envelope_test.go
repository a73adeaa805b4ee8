package transport

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/goliatone/go-bankfeeds/core"
	goerrors "github.com/goliatone/go-errors"
)

func TestRESTAdapter_ResponseLimitReturnsRichError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("12345"))
	}))
	defer server.Close()

	adapter := NewRESTAdapter(server.Client(), time.Second)
	adapter.MaxResponseBodyBytes = 4

	_, err := adapter.Do(context.Background(), Request{Method: http.MethodGet, URL: server.URL})
	if err == nil {
		t.Fatalf("expected response body limit error")
	}

	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		t.Fatalf("expected go-errors envelope, got %T", err)
	}
	if rich.Category != goerrors.CategoryExternal {
		t.Fatalf("expected external category, got %q", rich.Category)
	}
	if rich.TextCode != core.ErrorExternalFailure {
		t.Fatalf("expected %q text code, got %q", core.ErrorExternalFailure, rich.TextCode)
	}
	if rich.Code != http.StatusBadGateway {
		t.Fatalf("expected %d code, got %d", http.StatusBadGateway, rich.Code)
	}
}

func TestRESTAdapter_NilReturnsRichError(t *testing.T) {
	var adapter *RESTAdapter
	_, err := adapter.Do(context.Background(), Request{})
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		t.Fatalf("expected go-errors envelope, got %T", err)
	}
	if rich.TextCode != core.ErrorInternal || rich.Code != http.StatusInternalServerError {
		t.Fatalf("unexpected envelope %q %d", rich.TextCode, rich.Code)
	}
}

func TestRESTAdapter_SendsFormBodyAndQuery(t *testing.T) {
	var gotQuery, gotBody, gotContentType string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("from_date")
		gotContentType = r.Header.Get("Content-Type")
		raw, _ := io.ReadAll(r.Body)
		gotBody = string(raw)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	req := NewFormRequest(server.URL+"/oauth2/token", url.Values{"grant_type": {"client_credentials"}})
	req.Query = map[string]string{"from_date": "2024-03-01"}
	res, err := NewRESTAdapter(server.Client(), time.Second).Do(context.Background(), req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	if !res.OK() {
		t.Fatalf("expected 2xx, got %d", res.StatusCode)
	}
	if gotBody != "grant_type=client_credentials" || gotContentType != "application/x-www-form-urlencoded" {
		t.Fatalf("unexpected form request body=%q content-type=%q", gotBody, gotContentType)
	}
	if gotQuery != "2024-03-01" {
		t.Fatalf("expected query to be forwarded, got %q", gotQuery)
	}
	var decoded map[string]bool
	if err := res.DecodeJSON(&decoded); err != nil || !decoded["ok"] {
		t.Fatalf("expected json decode, got %v %#v", err, decoded)
	}
}

func TestRESTAdapter_TimeoutIsDetectable(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	_, err := NewRESTAdapter(server.Client(), 20*time.Millisecond).Do(context.Background(), Request{URL: server.URL})
	if err == nil {
		t.Fatalf("expected timeout error")
	}
	if !IsTimeout(err) {
		t.Fatalf("expected timeout classification, got %v", err)
	}
}

func TestJoinURL(t *testing.T) {
	joined, err := JoinURL("https://bank.example.test/api/", "v1", "accounts", "ext 1", "transactions")
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	if joined != "https://bank.example.test/api/v1/accounts/ext%201/transactions" {
		t.Fatalf("unexpected url %q", joined)
	}
	if _, err := JoinURL(" "); err == nil {
		t.Fatalf("expected error for empty base")
	}
}

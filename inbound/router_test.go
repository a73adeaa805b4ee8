package inbound

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/goliatone/go-bankfeeds/core"
)

type stubResolver struct {
	balanceCalls  int
	statusCalls   int
	timeoutCalls  int
	lastID        string
	lastPayload   string
	balanceResult core.BalanceCheck
	err           error
}

func (r *stubResolver) ResolveBalanceResult(_ context.Context, correlationID string, payload []byte) (core.BalanceCheck, error) {
	r.balanceCalls++
	r.lastID = correlationID
	r.lastPayload = string(payload)
	return r.balanceResult, r.err
}

func (r *stubResolver) ResolveStatusResult(_ context.Context, correlationID string, payload []byte) (core.BalanceCheck, error) {
	r.statusCalls++
	r.lastID = correlationID
	return core.BalanceCheck{CorrelationID: correlationID, Status: core.BalanceCheckStatusCompleted}, r.err
}

func (r *stubResolver) RecordCallbackTimeout(_ context.Context, correlationID string, _ []byte) (core.BalanceCheck, error) {
	r.timeoutCalls++
	r.lastID = correlationID
	return core.BalanceCheck{CorrelationID: correlationID, Status: core.BalanceCheckStatusTimedOut}, r.err
}

func newTestServer(t *testing.T, resolver *stubResolver, verifier Verifier) *httptest.Server {
	t.Helper()
	dispatcher := NewDispatcher(verifier, NewInMemoryClaimStore())
	if err := RegisterCallbackHandlers(dispatcher, resolver); err != nil {
		t.Fatalf("register handlers: %v", err)
	}
	server := httptest.NewServer(NewRouter(dispatcher))
	t.Cleanup(server.Close)
	return server
}

func postCallback(t *testing.T, url, body string) (int, CallbackAck) {
	t.Helper()
	res, err := http.Post(url, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("post callback: %v", err)
	}
	defer res.Body.Close()
	raw, _ := io.ReadAll(res.Body)
	ack := CallbackAck{}
	if err := json.Unmarshal(raw, &ack); err != nil {
		t.Fatalf("decode ack %q: %v", raw, err)
	}
	return res.StatusCode, ack
}

func TestRouter_BalanceResultCallback(t *testing.T) {
	resolver := &stubResolver{balanceResult: core.BalanceCheck{
		CorrelationID: "AG_20240301_1",
		Status:        core.BalanceCheckStatusCompleted,
	}}
	server := newTestServer(t, resolver, NewSharedTokenVerifier("s3cret"))

	payload := `{"Result":{"ResultCode":0,"ConversationID":"AG_20240301_1"}}`
	status, ack := postCallback(t, server.URL+"/callbacks/mpesa/balance_result?token=s3cret", payload)
	if status != http.StatusOK || ack.ResultCode != "0" || ack.CorrelationID != "AG_20240301_1" {
		t.Fatalf("unexpected ack status=%d ack=%#v", status, ack)
	}
	if resolver.balanceCalls != 1 || resolver.lastID != "" || resolver.lastPayload != payload {
		t.Fatalf("expected payload forwarded without explicit id, calls=%d id=%q", resolver.balanceCalls, resolver.lastID)
	}

	status, ack = postCallback(t, server.URL+"/callbacks/mpesa/balance_result?token=s3cret", payload)
	if status != http.StatusOK || ack.ResultCode != "0" {
		t.Fatalf("expected redelivery to be acknowledged, got %d %#v", status, ack)
	}
	if resolver.balanceCalls != 1 {
		t.Fatalf("expected redelivery to be deduplicated, got %d calls", resolver.balanceCalls)
	}
}

func TestRouter_StatusAndTimeoutSurfaces(t *testing.T) {
	resolver := &stubResolver{}
	server := newTestServer(t, resolver, nil)

	status, _ := postCallback(t, server.URL+"/callbacks/mpesa/status_result?correlation_id=AG_2", `{"Result":{}}`)
	if status != http.StatusOK || resolver.statusCalls != 1 || resolver.lastID != "AG_2" {
		t.Fatalf("expected status result routed with id, status=%d calls=%d id=%q", status, resolver.statusCalls, resolver.lastID)
	}
	status, _ = postCallback(t, server.URL+"/callbacks/mpesa/timeout?correlation_id=AG_3", `{}`)
	if status != http.StatusOK || resolver.timeoutCalls != 1 || resolver.lastID != "AG_3" {
		t.Fatalf("expected timeout routed with id, status=%d calls=%d id=%q", status, resolver.timeoutCalls, resolver.lastID)
	}
}

func TestRouter_RejectsBadTokenAndUnknownSurface(t *testing.T) {
	resolver := &stubResolver{}
	server := newTestServer(t, resolver, NewSharedTokenVerifier("s3cret"))

	status, ack := postCallback(t, server.URL+"/callbacks/mpesa/balance_result?token=nope", `{}`)
	if status != http.StatusUnauthorized || ack.ResultCode != "1" {
		t.Fatalf("expected 401 nack, got %d %#v", status, ack)
	}
	status, _ = postCallback(t, server.URL+"/callbacks/mpesa/webhook?token=s3cret", `{}`)
	if status != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown surface, got %d", status)
	}
	if resolver.balanceCalls != 0 {
		t.Fatalf("expected resolver untouched")
	}
}

func TestRouter_ResolverNotFoundIsRetryable(t *testing.T) {
	resolver := &stubResolver{err: core.NewNotFoundError("core: balance check not found", nil)}
	server := newTestServer(t, resolver, nil)

	status, ack := postCallback(t, server.URL+"/callbacks/mpesa/balance_result", `{"Result":{"ConversationID":"AG_X"}}`)
	if status != http.StatusNotFound || ack.ResultCode != "1" {
		t.Fatalf("expected 404 nack, got %d %#v", status, ack)
	}
	resolver.err = nil
	status, _ = postCallback(t, server.URL+"/callbacks/mpesa/balance_result", `{"Result":{"ConversationID":"AG_X"}}`)
	if status != http.StatusOK || resolver.balanceCalls != 2 {
		t.Fatalf("expected failed callback to be processed on redelivery, status=%d calls=%d", status, resolver.balanceCalls)
	}
}

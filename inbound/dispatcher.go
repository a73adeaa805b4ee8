package inbound

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/goliatone/go-bankfeeds/core"
	goerrors "github.com/goliatone/go-errors"
)

type Verifier interface {
	Verify(ctx context.Context, req core.InboundRequest) error
}

type IdempotencyKeyExtractor func(req core.InboundRequest) (string, error)

type Dispatcher struct {
	Verifier   Verifier
	Store      core.IdempotencyClaimStore
	ExtractKey IdempotencyKeyExtractor
	KeyTTL     time.Duration

	mu       sync.RWMutex
	handlers map[core.CallbackSurface]core.InboundHandler
}

func NewDispatcher(verifier Verifier, store core.IdempotencyClaimStore) *Dispatcher {
	return &Dispatcher{
		Verifier:   verifier,
		Store:      store,
		ExtractKey: DefaultIdempotencyKeyExtractor,
		KeyTTL:     10 * time.Minute,
		handlers:   map[core.CallbackSurface]core.InboundHandler{},
	}
}

func (d *Dispatcher) Register(handler core.InboundHandler) error {
	if d == nil {
		return inboundInternal("inbound: dispatcher is nil", nil)
	}
	if handler == nil {
		return inboundBadInput("inbound: handler is nil", nil)
	}
	surface := normalizeSurface(handler.Surface())
	if !surface.Valid() {
		return inboundBadInput(
			fmt.Sprintf("inbound: unsupported surface %q", surface),
			map[string]any{"surface": string(surface)},
		)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.handlers == nil {
		d.handlers = map[core.CallbackSurface]core.InboundHandler{}
	}
	if _, exists := d.handlers[surface]; exists {
		return inboundError(
			fmt.Sprintf("inbound: handler already registered for surface %q", surface),
			goerrors.CategoryConflict,
			http.StatusConflict,
			core.ErrorPersistenceConflict,
			map[string]any{"surface": string(surface)},
		)
	}
	d.handlers[surface] = handler
	return nil
}

// Dispatch verifies, deduplicates and routes one callback. A handler error
// releases the claim so the provider's retry is processed again.
func (d *Dispatcher) Dispatch(ctx context.Context, req core.InboundRequest) (core.InboundResult, error) {
	if d == nil {
		return core.InboundResult{}, inboundInternal("inbound: dispatcher is nil", nil)
	}
	req.ProviderKey = strings.TrimSpace(req.ProviderKey)
	req.Surface = normalizeSurface(req.Surface)
	fields := map[string]any{"provider_key": req.ProviderKey, "surface": string(req.Surface)}
	if req.ProviderKey == "" {
		return core.InboundResult{}, inboundBadInput("inbound: provider key is required", fields)
	}
	if !req.Surface.Valid() {
		return core.InboundResult{}, inboundBadInput(fmt.Sprintf("inbound: unsupported surface %q", req.Surface), fields)
	}
	if d.Verifier != nil {
		if err := d.Verifier.Verify(ctx, req); err != nil {
			return core.InboundResult{
					Accepted:   false,
					StatusCode: http.StatusUnauthorized,
					Metadata: map[string]any{
						"provider_key": req.ProviderKey,
						"surface":      string(req.Surface),
						"rejected":     true,
					},
				}, inboundWrapError(
					err,
					goerrors.CategoryAuth,
					"inbound: request verification failed",
					http.StatusUnauthorized,
					core.ErrorAuthFailure,
					fields,
				)
		}
	}

	handler := d.handlerFor(req.Surface)
	if handler == nil {
		return core.InboundResult{}, inboundError(
			fmt.Sprintf("inbound: no handler registered for surface %q", req.Surface),
			goerrors.CategoryNotFound,
			http.StatusNotFound,
			core.ErrorNotFound,
			fields,
		)
	}

	claimID := ""
	if d.Store != nil {
		extractor := d.ExtractKey
		if extractor == nil {
			extractor = DefaultIdempotencyKeyExtractor
		}
		key, err := extractor(req)
		if err != nil {
			return core.InboundResult{}, inboundWrapError(
				err,
				goerrors.CategoryBadInput,
				"inbound: resolve idempotency key",
				http.StatusBadRequest,
				core.ErrorConfiguration,
				fields,
			)
		}
		var accepted bool
		claimID, accepted, err = d.Store.Claim(ctx, req.ProviderKey+":"+string(req.Surface)+":"+key, d.keyTTL())
		if err != nil {
			return core.InboundResult{}, inboundWrapError(
				err,
				goerrors.CategoryInternal,
				"inbound: idempotency claim failed",
				http.StatusInternalServerError,
				core.ErrorInternal,
				fields,
			)
		}
		if !accepted {
			return core.InboundResult{
				Accepted:   true,
				StatusCode: http.StatusOK,
				Metadata: map[string]any{
					"provider_key": req.ProviderKey,
					"surface":      string(req.Surface),
					"deduped":      true,
				},
			}, nil
		}
	}

	result, err := handler.Handle(ctx, req)
	if err != nil {
		handlerErr := handlerError(err, fields)
		return core.InboundResult{}, d.release(ctx, claimID, handlerErr, err)
	}
	if !result.Accepted || result.StatusCode >= http.StatusInternalServerError {
		retryErr := inboundError(
			fmt.Sprintf("inbound: handler returned retryable status %d", result.StatusCode),
			goerrors.CategoryExternal,
			http.StatusBadGateway,
			core.ErrorExternalFailure,
			map[string]any{
				"provider_key": req.ProviderKey,
				"surface":      string(req.Surface),
				"status_code":  result.StatusCode,
			},
		)
		return result, d.release(ctx, claimID, retryErr, retryErr)
	}
	if d.Store != nil && claimID != "" {
		if err := d.Store.Complete(ctx, claimID); err != nil {
			return core.InboundResult{}, inboundWrapError(
				err,
				goerrors.CategoryInternal,
				"inbound: complete idempotency claim",
				http.StatusInternalServerError,
				core.ErrorInternal,
				map[string]any{"provider_key": req.ProviderKey, "surface": string(req.Surface), "claim_id": claimID},
			)
		}
	}
	if result.StatusCode == 0 {
		result.StatusCode = http.StatusOK
	}
	result.Metadata = ensureMetadata(result.Metadata)
	result.Metadata["provider_key"] = req.ProviderKey
	result.Metadata["surface"] = string(req.Surface)
	return result, nil
}

func (d *Dispatcher) release(ctx context.Context, claimID string, returned error, cause error) error {
	if d.Store == nil || claimID == "" {
		return returned
	}
	if failErr := d.Store.Fail(ctx, claimID, cause, time.Time{}); failErr != nil {
		return errors.Join(
			returned,
			inboundWrapError(
				failErr,
				goerrors.CategoryInternal,
				"inbound: mark idempotency claim failed",
				http.StatusInternalServerError,
				core.ErrorInternal,
				map[string]any{"claim_id": claimID},
			),
		)
	}
	return returned
}

// DefaultIdempotencyKeyExtractor prefers an explicit key from metadata or
// headers. Providers that send neither are keyed on a digest of the body,
// so an identical redelivery is absorbed.
func DefaultIdempotencyKeyExtractor(req core.InboundRequest) (string, error) {
	if req.Metadata != nil {
		for _, key := range []string{"idempotency_key", "delivery_id", "message_id"} {
			if value := trimAny(req.Metadata[key]); value != "" {
				return value, nil
			}
		}
	}
	if req.Headers != nil {
		for _, key := range []string{"idempotency-key", "x-idempotency-key", "x-message-id"} {
			if value := headerValue(req.Headers, key); value != "" {
				return value, nil
			}
		}
	}
	if len(req.Body) > 0 {
		sum := sha256.Sum256(req.Body)
		return "body:" + hex.EncodeToString(sum[:]), nil
	}
	return "", inboundBadInput("inbound: idempotency key is required", map[string]any{
		"provider_key": req.ProviderKey,
		"surface":      string(req.Surface),
	})
}

func (d *Dispatcher) keyTTL() time.Duration {
	if d != nil && d.KeyTTL > 0 {
		return d.KeyTTL
	}
	return 10 * time.Minute
}

func (d *Dispatcher) handlerFor(surface core.CallbackSurface) core.InboundHandler {
	if d == nil {
		return nil
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.handlers[normalizeSurface(surface)]
}

func normalizeSurface(surface core.CallbackSurface) core.CallbackSurface {
	return core.CallbackSurface(strings.TrimSpace(strings.ToLower(string(surface))))
}

func trimAny(value any) string {
	if value == nil {
		return ""
	}
	return strings.TrimSpace(fmt.Sprint(value))
}

func ensureMetadata(metadata map[string]any) map[string]any {
	if len(metadata) == 0 {
		return map[string]any{}
	}
	return metadata
}

func headerValue(headers map[string]string, key string) string {
	for existing, value := range headers {
		if strings.EqualFold(strings.TrimSpace(existing), strings.TrimSpace(key)) {
			return strings.TrimSpace(value)
		}
	}
	return ""
}

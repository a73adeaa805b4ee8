package inbound

import (
	"context"
	"net/http"
	"strings"

	"github.com/goliatone/go-bankfeeds/core"
)

// CorrelationParam is the optional query parameter naming the check a
// callback belongs to. Without it the id is read from the payload.
const CorrelationParam = "correlation_id"

// CallbackHandler forwards one callback surface to the service.
type CallbackHandler struct {
	surface  core.CallbackSurface
	resolver core.CallbackResolver
}

func NewCallbackHandler(surface core.CallbackSurface, resolver core.CallbackResolver) (*CallbackHandler, error) {
	surface = normalizeSurface(surface)
	if !surface.Valid() {
		return nil, inboundBadInput("inbound: unsupported surface", map[string]any{"surface": string(surface)})
	}
	if resolver == nil {
		return nil, inboundBadInput("inbound: callback resolver is required", nil)
	}
	return &CallbackHandler{surface: surface, resolver: resolver}, nil
}

func (h *CallbackHandler) Surface() core.CallbackSurface {
	return h.surface
}

func (h *CallbackHandler) Handle(ctx context.Context, req core.InboundRequest) (core.InboundResult, error) {
	correlationID := strings.TrimSpace(req.Query[CorrelationParam])

	var (
		check core.BalanceCheck
		err   error
	)
	switch h.surface {
	case core.CallbackSurfaceBalanceResult:
		check, err = h.resolver.ResolveBalanceResult(ctx, correlationID, req.Body)
	case core.CallbackSurfaceStatusResult:
		check, err = h.resolver.ResolveStatusResult(ctx, correlationID, req.Body)
	case core.CallbackSurfaceTimeout:
		check, err = h.resolver.RecordCallbackTimeout(ctx, correlationID, req.Body)
	}
	if err != nil {
		return core.InboundResult{}, err
	}
	return core.InboundResult{
		Accepted:   true,
		StatusCode: http.StatusOK,
		Check:      check,
		Metadata: map[string]any{
			"correlation_id": check.CorrelationID,
			"status":         string(check.Status),
		},
	}, nil
}

// RegisterCallbackHandlers wires every callback surface to resolver.
func RegisterCallbackHandlers(dispatcher *Dispatcher, resolver core.CallbackResolver) error {
	for _, surface := range []core.CallbackSurface{
		core.CallbackSurfaceBalanceResult,
		core.CallbackSurfaceStatusResult,
		core.CallbackSurfaceTimeout,
	} {
		handler, err := NewCallbackHandler(surface, resolver)
		if err != nil {
			return err
		}
		if err := dispatcher.Register(handler); err != nil {
			return err
		}
	}
	return nil
}

var _ core.InboundHandler = (*CallbackHandler)(nil)

package inbound

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/goliatone/go-bankfeeds/core"
	glog "github.com/goliatone/go-logger/glog"
)

const (
	CallbackRoute          = "/callbacks/{provider}/{surface}"
	DefaultMaxCallbackBody = 1 << 20
)

type RouterOption func(*routerConfig)

type routerConfig struct {
	logger      core.Logger
	maxBodySize int64
	now         func() time.Time
}

func WithRouterLogger(logger core.Logger) RouterOption {
	return func(c *routerConfig) {
		c.logger = logger
	}
}

func WithMaxBodySize(size int64) RouterOption {
	return func(c *routerConfig) {
		if size > 0 {
			c.maxBodySize = size
		}
	}
}

// CallbackAck is the body providers expect back from a result URL.
type CallbackAck struct {
	ResultCode    string `json:"ResultCode"`
	ResultDesc    string `json:"ResultDesc"`
	CorrelationID string `json:"CorrelationID,omitempty"`
}

// NewRouter exposes dispatcher as POST /callbacks/{provider}/{surface}.
func NewRouter(dispatcher *Dispatcher, opts ...RouterOption) chi.Router {
	cfg := routerConfig{
		maxBodySize: DefaultMaxCallbackBody,
		now:         func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	cfg.logger = glog.Ensure(cfg.logger)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Post(CallbackRoute, callbackEndpoint(dispatcher, cfg))
	return r
}

func callbackEndpoint(dispatcher *Dispatcher, cfg routerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		provider := chi.URLParam(r, "provider")
		surface := chi.URLParam(r, "surface")
		logger := cfg.logger.WithContext(ctx)

		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, cfg.maxBodySize))
		if err != nil {
			logger.Warn("callback body rejected", "provider_key", provider, "surface", surface, "error", err)
			writeAck(w, http.StatusRequestEntityTooLarge, CallbackAck{ResultCode: "1", ResultDesc: "payload rejected"})
			return
		}

		req := core.InboundRequest{
			ProviderKey: provider,
			Surface:     core.CallbackSurface(surface),
			Body:        body,
			Headers:     flattenHeaders(r.Header),
			Query:       flattenQuery(r),
			Metadata:    map[string]any{"request_id": middleware.GetReqID(ctx)},
			ReceivedAt:  cfg.now(),
		}
		result, err := dispatcher.Dispatch(ctx, req)
		if err != nil {
			status := StatusCode(err)
			logger.Warn("callback not processed", "provider_key", provider, "surface", surface, "status", status, "error", err)
			writeAck(w, status, CallbackAck{ResultCode: "1", ResultDesc: http.StatusText(status)})
			return
		}

		logger.Info("callback processed",
			"provider_key", provider,
			"surface", surface,
			"correlation_id", result.Check.CorrelationID,
			"deduped", result.Metadata["deduped"] == true,
		)
		writeAck(w, result.StatusCode, CallbackAck{
			ResultCode:    "0",
			ResultDesc:    "Accepted",
			CorrelationID: result.Check.CorrelationID,
		})
	}
}

func writeAck(w http.ResponseWriter, status int, ack CallbackAck) {
	if status <= 0 {
		status = http.StatusOK
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ack)
}

func flattenHeaders(header http.Header) map[string]string {
	out := make(map[string]string, len(header))
	for key := range header {
		out[strings.ToLower(key)] = header.Get(key)
	}
	return out
}

func flattenQuery(r *http.Request) map[string]string {
	values := r.URL.Query()
	out := make(map[string]string, len(values))
	for key := range values {
		out[key] = values.Get(key)
	}
	return out
}

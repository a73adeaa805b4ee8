package ratelimit

import (
	"context"
	"errors"
	"net/url"
	"strings"

	"github.com/goliatone/go-bankfeeds/core"
	"github.com/goliatone/go-bankfeeds/transport"
	glog "github.com/goliatone/go-logger/glog"
)

// Client gates a transport.Client behind an AdaptivePolicy. Calls into a
// throttled bucket fail fast with a rate limited error instead of hitting
// the provider.
type Client struct {
	next        transport.Client
	policy      *AdaptivePolicy
	providerKey string
	logger      core.Logger
}

func NewClient(next transport.Client, policy *AdaptivePolicy, providerKey string, logger core.Logger) *Client {
	return &Client{
		next:        next,
		policy:      policy,
		providerKey: strings.ToLower(strings.TrimSpace(providerKey)),
		logger:      glog.Ensure(logger),
	}
}

func (c *Client) Do(ctx context.Context, req transport.Request) (transport.Response, error) {
	if c == nil || c.next == nil {
		return transport.Response{}, core.NewConfigurationError("ratelimit: transport client is required", nil)
	}
	key := Key{ProviderKey: c.providerKey, Bucket: bucketFor(req.URL)}

	if err := c.policy.BeforeCall(ctx, key); err != nil {
		var throttled ThrottledError
		if errors.As(err, &throttled) {
			c.logger.WithContext(ctx).Warn("provider call throttled",
				"provider_key", key.ProviderKey,
				"bucket", key.Bucket,
				"retry_after", throttled.RetryAfter.String(),
			)
			return transport.Response{}, throttled.ToServiceError()
		}
		return transport.Response{}, err
	}

	res, err := c.next.Do(ctx, req)
	if err != nil && res.StatusCode == 0 {
		return res, err
	}
	if afterErr := c.policy.AfterCall(ctx, key, ResponseMeta{
		StatusCode: res.StatusCode,
		Headers:    res.Headers,
		Metadata:   map[string]any{"method": strings.ToUpper(req.Method)},
	}); afterErr != nil {
		c.logger.WithContext(ctx).Warn("rate limit state not recorded",
			"provider_key", key.ProviderKey,
			"bucket", key.Bucket,
			"error", afterErr,
		)
	}
	return res, err
}

func bucketFor(raw string) string {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || parsed.Host == "" {
		return "default"
	}
	return strings.ToLower(parsed.Host)
}

var _ transport.Client = (*Client)(nil)

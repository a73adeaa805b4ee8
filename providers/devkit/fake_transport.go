package devkit

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/goliatone/go-bankfeeds/transport"
)

type TransportScript struct {
	// Match selects the script by substring of the request URL. Empty
	// matches any request.
	Match    string
	Response transport.Response
	Err      error
}

// FakeClient replays scripted responses and records every request. Scripts
// with a Match are consulted first, then unmatched scripts in order; the
// last unmatched script repeats.
type FakeClient struct {
	mu       sync.Mutex
	scripts  []TransportScript
	requests []transport.Request
	cursor   int
}

func NewFakeClient(scripts ...TransportScript) *FakeClient {
	return &FakeClient{scripts: append([]TransportScript(nil), scripts...)}
}

func JSONResponse(status int, body string) transport.Response {
	return transport.Response{
		StatusCode: status,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       []byte(body),
	}
}

func (c *FakeClient) Do(_ context.Context, req transport.Request) (transport.Response, error) {
	if c == nil {
		return transport.Response{}, fmt.Errorf("devkit: fake client is nil")
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	c.requests = append(c.requests, cloneRequest(req))
	for _, script := range c.scripts {
		if script.Match != "" && strings.Contains(req.URL, script.Match) {
			return cloneResponse(script.Response), script.Err
		}
	}
	unmatched := make([]TransportScript, 0, len(c.scripts))
	for _, script := range c.scripts {
		if script.Match == "" {
			unmatched = append(unmatched, script)
		}
	}
	if len(unmatched) == 0 {
		return transport.Response{StatusCode: 200, Headers: map[string]string{}}, nil
	}
	index := c.cursor
	if index >= len(unmatched) {
		index = len(unmatched) - 1
	}
	c.cursor++
	script := unmatched[index]
	return cloneResponse(script.Response), script.Err
}

func (c *FakeClient) Requests() []transport.Request {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]transport.Request, 0, len(c.requests))
	for _, item := range c.requests {
		out = append(out, cloneRequest(item))
	}
	return out
}

// RequestsTo returns recorded requests whose URL contains fragment.
func (c *FakeClient) RequestsTo(fragment string) []transport.Request {
	out := []transport.Request{}
	for _, req := range c.Requests() {
		if strings.Contains(req.URL, fragment) {
			out = append(out, req)
		}
	}
	return out
}

func cloneRequest(in transport.Request) transport.Request {
	out := transport.Request{
		Method:               in.Method,
		URL:                  in.URL,
		Headers:              map[string]string{},
		Query:                map[string]string{},
		Body:                 append([]byte(nil), in.Body...),
		Timeout:              in.Timeout,
		MaxResponseBodyBytes: in.MaxResponseBodyBytes,
	}
	for key, value := range in.Headers {
		out.Headers[key] = value
	}
	for key, value := range in.Query {
		out.Query[key] = value
	}
	return out
}

func cloneResponse(in transport.Response) transport.Response {
	out := transport.Response{
		StatusCode: in.StatusCode,
		Headers:    map[string]string{},
		Body:       append([]byte(nil), in.Body...),
		Duration:   in.Duration,
	}
	for key, value := range in.Headers {
		out.Headers[key] = value
	}
	return out
}

var _ transport.Client = (*FakeClient)(nil)

// Package client talks to the risk-engine backend over HTTP.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"sentinel/pkg/protocol"
)

// DefaultTimeout bounds a single request when Client.Timeout is zero.
// It is shorter than the default poll interval so a hung fetch cannot pile up.
const DefaultTimeout = 900 * time.Millisecond

// maxBody caps how much of a response body is read.
const maxBody = 1 << 20

// bodyExcerpt caps the response text kept in a CommandError.
const bodyExcerpt = 200

// Client is safe for concurrent use.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	Timeout    time.Duration

	tracer trace.Tracer
}

// New returns a Client for baseURL using http.DefaultClient.
func New(baseURL string) *Client {
	return &Client{BaseURL: strings.TrimRight(baseURL, "/")}
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

func (c *Client) timeout() time.Duration {
	if c.Timeout > 0 {
		return c.Timeout
	}
	return DefaultTimeout
}

func (c *Client) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	tr := c.tracer
	if tr == nil {
		tr = otel.Tracer("sentinel/client")
	}
	return tr.Start(ctx, name, trace.WithSpanKind(trace.SpanKindClient), trace.WithAttributes(attrs...))
}

func (c *Client) url(path string) string {
	base := c.BaseURL
	if base == "" {
		base = protocol.DefaultBaseURL
	}
	return strings.TrimRight(base, "/") + path
}

// FetchStatus performs one GET of the status endpoint. Every failure is a
// *protocol.FetchError.
func (c *Client) FetchStatus(ctx context.Context) (snap protocol.Snapshot, err error) {
	url := c.url(protocol.StatusPath)
	ctx, span := c.startSpan(ctx, "sentinel.client.fetch_status", attribute.String("url.full", url))
	defer func() { endSpan(span, err) }()

	ctx, cancel := context.WithTimeout(ctx, c.timeout())
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return protocol.Snapshot{}, &protocol.FetchError{URL: url, Reason: "build request", Err: err}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return protocol.Snapshot{}, &protocol.FetchError{URL: url, Reason: err.Error(), Err: err}
	}
	defer resp.Body.Close()
	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return protocol.Snapshot{}, &protocol.FetchError{URL: url, Code: resp.StatusCode, Reason: "read body", Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return protocol.Snapshot{}, &protocol.FetchError{URL: url, Code: resp.StatusCode, Reason: http.StatusText(resp.StatusCode)}
	}

	snap, err = protocol.ParseSnapshot(body)
	if err != nil {
		return protocol.Snapshot{}, &protocol.FetchError{URL: url, Code: resp.StatusCode, Reason: err.Error(), Err: err}
	}
	span.SetAttributes(attribute.String("sentinel.status", string(snap.Status)))
	return snap, nil
}

// Execute submits req to the execute endpoint. Any non-2xx reply or transport
// failure is a *protocol.CommandError. The response body is decoded on a best
// effort basis: an empty or non-JSON success body yields a zero ExecuteResponse.
func (c *Client) Execute(ctx context.Context, req protocol.ExecuteRequest) (out protocol.ExecuteResponse, err error) {
	url := c.url(protocol.ExecutePath)
	ctx, span := c.startSpan(ctx, "sentinel.client.execute",
		attribute.String("url.full", url),
		attribute.String("sentinel.action", req.Action),
		attribute.String("sentinel.agent_id", req.AgentID),
	)
	defer func() { endSpan(span, err) }()

	if err := req.Validate(); err != nil {
		return out, &protocol.CommandError{Action: req.Action, Err: err}
	}
	if req.Payload == nil {
		req.Payload = map[string]any{}
	}
	data, err := json.Marshal(req)
	if err != nil {
		return out, &protocol.CommandError{Action: req.Action, Err: fmt.Errorf("encode request: %w", err)}
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout())
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return out, &protocol.CommandError{Action: req.Action, Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient().Do(httpReq)
	if err != nil {
		return out, &protocol.CommandError{Action: req.Action, Err: err}
	}
	defer resp.Body.Close()
	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return out, &protocol.CommandError{Action: req.Action, Code: resp.StatusCode, Body: excerpt(body)}
	}

	if len(bytes.TrimSpace(body)) > 0 {
		_ = json.Unmarshal(body, &out)
	}
	return out, nil
}

func excerpt(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > bodyExcerpt {
		s = s[:bodyExcerpt] + "..."
	}
	return s
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"finitefield.org/kmart-web/internal/observability"
)

const (
	defaultTimeout = 8 * time.Second
	maxErrorBody   = 256
	maxBody        = 64 << 20
)

var tracer = otel.Tracer("finitefield.org/kmart-web/internal/backend")

// Client issues requests against the storefront REST backend.
type Client struct {
	baseURL string
	http    *http.Client
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			clone := *c.http
			clone.Timeout = d
			c.http = &clone
		}
	}
}

// NewClient constructs a backend client bound to baseURL.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		http:    &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// BaseURL returns the configured backend root.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Response is a successful backend answer.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// Decode unmarshals the JSON body into v.
func (r *Response) Decode(v any) error {
	if r == nil {
		return decodeError(0, fmt.Errorf("nil response"))
	}
	if err := json.Unmarshal(r.Body, v); err != nil {
		return decodeError(r.Status, err)
	}
	return nil
}

// Request performs a single call. body is JSON encoded when non-nil and token,
// when set, is sent as a bearer credential. Non-2xx answers and transport
// failures are returned as *APIError. No retries are attempted.
func (c *Client) Request(ctx context.Context, method, path string, body any, token string) (*Response, error) {
	return c.do(ctx, path, method, path, body, token)
}

func (c *Client) do(ctx context.Context, route, method, path string, body any, token string) (*Response, error) {
	ctx, span := tracer.Start(ctx, "backend "+method+" "+route, trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(
		attribute.String("http.request.method", method),
		attribute.String("url.template", route),
	)
	logger := observability.FromContext(ctx).With(
		zap.String("backend_method", method),
		zap.String("backend_route", route),
	)

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			span.SetStatus(codes.Error, "encode body")
			return nil, fmt.Errorf("backend: encode body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+"/"+strings.TrimLeft(path, "/"), reader)
	if err != nil {
		span.SetStatus(codes.Error, "build request")
		return nil, fmt.Errorf("backend: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "no response")
		logger.Warn("backend request failed", zap.Error(err))
		return nil, networkError(err)
	}
	defer resp.Body.Close()
	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "read body")
		logger.Warn("backend response read failed", zap.Int("status", resp.StatusCode), zap.Error(err))
		return nil, networkError(err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := serverError(resp.StatusCode, data)
		span.SetStatus(codes.Error, http.StatusText(resp.StatusCode))
		logger.Debug("backend returned error status",
			zap.Int("status", resp.StatusCode),
			zap.String("backend_message", apiErr.Message),
		)
		return nil, apiErr
	}

	span.SetStatus(codes.Ok, "")
	return &Response{Status: resp.StatusCode, Header: resp.Header.Clone(), Body: data}, nil
}

type messagePayload struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

func extractMessage(body []byte) string {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return ""
	}
	var payload messagePayload
	if err := json.Unmarshal(trimmed, &payload); err == nil {
		if msg := strings.TrimSpace(payload.Message); msg != "" {
			return msg
		}
		if msg := strings.TrimSpace(payload.Error); msg != "" {
			return msg
		}
		if trimmed[0] == '{' || trimmed[0] == '[' {
			return ""
		}
	}
	if len(trimmed) > maxErrorBody {
		trimmed = trimmed[:maxErrorBody]
		for len(trimmed) > 0 && !utf8.Valid(trimmed) {
			trimmed = trimmed[:len(trimmed)-1]
		}
	}
	return strings.TrimSpace(string(trimmed))
}

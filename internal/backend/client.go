package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/fjod/go_cart/checkout-client/internal/domain"
	"github.com/google/uuid"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const maxResponseBody = 4 << 20 // 4MB

// TokenSource supplies the bearer token for each request.
type TokenSource interface {
	AccessToken() string
}

// Observer receives one observation per backend call.
type Observer interface {
	ObserveBackendCall(route, outcome string, elapsed time.Duration)
}

type Options struct {
	BaseURL            string
	Timeout            time.Duration
	BreakerMaxFailures uint32
	BreakerOpenTimeout time.Duration

	// HTTPClient overrides the traced default client.
	HTTPClient *http.Client
	Tokens     TokenSource
	Observer   Observer
	// OnUnauthorized runs after any 401, e.g. to drop a stale session.
	OnUnauthorized func(ctx context.Context)
}

type Client struct {
	baseURL        string
	http           *http.Client
	breaker        *gobreaker.CircuitBreaker[[]byte]
	tokens         TokenSource
	observer       Observer
	onUnauthorized func(ctx context.Context)
	log            *slog.Logger
}

func NewClient(opts Options, log *slog.Logger) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
			Timeout:   opts.Timeout,
		}
	}
	maxFailures := opts.BreakerMaxFailures
	if maxFailures == 0 {
		maxFailures = 5
	}

	log = log.With("component", "backend")
	breaker := gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        "shop-backend",
		MaxRequests: 1,
		Timeout:     opts.BreakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		// Client errors mean the backend is up.
		IsSuccessful: func(err error) bool {
			var apiErr *APIError
			if errors.As(err, &apiErr) {
				return apiErr.StatusCode < http.StatusInternalServerError
			}
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		},
	})

	return &Client{
		baseURL:        strings.TrimRight(opts.BaseURL, "/"),
		http:           httpClient,
		breaker:        breaker,
		tokens:         opts.Tokens,
		observer:       opts.Observer,
		onUnauthorized: opts.OnUnauthorized,
		log:            log,
	}
}

type requestOptions struct {
	idempotencyKey string
}

type RequestOption func(*requestOptions)

// WithIdempotencyKey sets the Idempotency-Key header. An empty key generates one.
func WithIdempotencyKey(key string) RequestOption {
	return func(o *requestOptions) {
		if key == "" {
			key = uuid.NewString()
		}
		o.idempotencyKey = key
	}
}

// do sends one request and returns the response body with any {"data": ...}
// envelope removed. route is the templated path used for logs and metrics.
func (c *Client) do(ctx context.Context, method, route, path string, body any, opts ...RequestOption) (json.RawMessage, error) {
	var ro requestOptions
	for _, opt := range opts {
		opt(&ro)
	}

	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return nil, fmt.Errorf("marshal %s request: %w", route, err)
		}
	}

	start := time.Now()
	data, err := c.breaker.Execute(func() ([]byte, error) {
		return c.roundTrip(ctx, method, path, payload, ro)
	})
	c.observe(method+" "+route, err, time.Since(start))

	if err != nil {
		if IsUnauthorized(err) && c.onUnauthorized != nil {
			c.onUnauthorized(ctx)
		}
		return nil, err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}
	return domain.Unwrap(data), nil
}

func (c *Client) roundTrip(ctx context.Context, method, path string, payload []byte, ro requestOptions) ([]byte, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.tokens != nil {
		if token := c.tokens.AccessToken(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}
	requestID := RequestIDFromContext(ctx)
	if requestID == "" {
		requestID = uuid.NewString()
	}
	req.Header.Set("X-Request-ID", requestID)
	if ro.idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", ro.idempotencyKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, fmt.Errorf("read %s %s response: %w", method, path, err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		apiErr := parseErrorBody(resp.StatusCode, data)
		c.log.DebugContext(ctx, "backend error response",
			"method", method, "path", path, "status", resp.StatusCode, "request_id", requestID)
		return nil, apiErr
	}
	return data, nil
}

func (c *Client) observe(route string, err error, elapsed time.Duration) {
	if c.observer == nil {
		return
	}
	outcome := "ok"
	var apiErr *APIError
	switch {
	case err == nil:
	case errors.As(err, &apiErr):
		outcome = fmt.Sprintf("%dxx", apiErr.StatusCode/100)
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		outcome = "breaker_open"
	default:
		outcome = "transport_error"
	}
	c.observer.ObserveBackendCall(route, outcome, elapsed)
}

func decode[T any](raw json.RawMessage, what string) (T, error) {
	var v T
	if len(raw) == 0 {
		return v, fmt.Errorf("empty %s response", what)
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return v, fmt.Errorf("decode %s response: %w", what, err)
	}
	return v, nil
}

type ctxKey struct{}

func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

func RequestIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(ctxKey{}).(string); ok {
		return id
	}
	return ""
}

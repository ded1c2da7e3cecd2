package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog"

	"github.com/openfroyo/zbxsync/pkg/engine"
	"github.com/openfroyo/zbxsync/pkg/telemetry"
)

// AuthMode selects how the session token is attached to requests.
type AuthMode string

const (
	// AuthBody sends the token as the "auth" member of the request body.
	AuthBody AuthMode = "body"

	// AuthHeader sends the token as an "Authorization: Bearer" header.
	AuthHeader AuthMode = "header"
)

// TimeoutClass groups methods by how long a single attempt may take.
type TimeoutClass string

const (
	// ClassDefault covers reads and light writes.
	ClassDefault TimeoutClass = "default"

	// ClassLong covers state-mutating and bulk methods.
	ClassLong TimeoutClass = "long"
)

// LongMethods are the methods that get the long timeout.
var LongMethods = []string{
	"host.create", "host.update",
	"item.create", "item.update",
	"trigger.create", "trigger.update",
	"action.create", "action.update",
	"mediatype.create", "mediatype.update",
	"user.update",
	"hostinterface.create", "hostinterface.update",
}

// Config configures a Client.
type Config struct {
	// URL is the JSON-RPC endpoint.
	URL string `validate:"required,url"`

	// AuthMode is body or header.
	AuthMode AuthMode `validate:"omitempty,oneof=body header"`

	// DefaultTimeout bounds one attempt of a default-class method.
	DefaultTimeout time.Duration `validate:"min=0"`

	// LongTimeout bounds one attempt of a long-class method.
	LongTimeout time.Duration `validate:"min=0"`

	// Retry is the transport retry policy.
	Retry RetryPolicy
}

// DefaultConfig returns the standard client configuration for url.
func DefaultConfig(url string) Config {
	return Config{
		URL:            url,
		AuthMode:       AuthBody,
		DefaultTimeout: 15 * time.Second,
		LongTimeout:    60 * time.Second,
		Retry:          DefaultRetryPolicy(),
	}
}

// Caller issues one JSON-RPC call and decodes its result into out.
type Caller interface {
	Call(ctx context.Context, method string, params, out interface{}) error
}

// Client is a JSON-RPC client without credentials. Use Login to obtain a Session.
type Client struct {
	url      string
	authMode AuthMode
	policy   RetryPolicy
	classes  map[TimeoutClass]*retryablehttp.Client
	long     map[string]bool

	nextID atomic.Int64

	logger  zerolog.Logger
	metrics *telemetry.Metrics
	tracer  *telemetry.Tracer
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the client logger.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) { c.logger = telemetry.Component(l, "rpc") }
}

// WithMetrics attaches a metrics collector.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// WithTracer attaches a tracer.
func WithTracer(t *telemetry.Tracer) Option {
	return func(c *Client) { c.tracer = t }
}

// New creates a client. Zero timeouts and a zero retry policy fall back to defaults.
func New(cfg Config, opts ...Option) *Client {
	def := DefaultConfig(cfg.URL)
	if cfg.AuthMode == "" {
		cfg.AuthMode = def.AuthMode
	}
	if cfg.DefaultTimeout == 0 {
		cfg.DefaultTimeout = def.DefaultTimeout
	}
	if cfg.LongTimeout == 0 {
		cfg.LongTimeout = def.LongTimeout
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = def.Retry
	}

	c := &Client{
		url:      cfg.URL,
		authMode: cfg.AuthMode,
		policy:   cfg.Retry,
		long:     make(map[string]bool, len(LongMethods)),
		logger:   zerolog.Nop(),
	}
	for _, m := range LongMethods {
		c.long[m] = true
	}
	for _, opt := range opts {
		opt(c)
	}

	c.classes = map[TimeoutClass]*retryablehttp.Client{
		ClassDefault: c.newHTTPClient(cfg.DefaultTimeout),
		ClassLong:    c.newHTTPClient(cfg.LongTimeout),
	}
	return c
}

func (c *Client) newHTTPClient(timeout time.Duration) *retryablehttp.Client {
	hc := retryablehttp.NewClient()
	hc.HTTPClient.Timeout = timeout
	hc.Logger = nil
	hc.RetryMax = c.policy.MaxAttempts - 1
	hc.RetryWaitMin = c.policy.Base
	hc.RetryWaitMax = c.policy.Max
	hc.CheckRetry = checkRetry
	hc.Backoff = backoffFor(c.policy)
	hc.ErrorHandler = errorHandler
	hc.RequestLogHook = c.onAttempt
	return hc
}

// onAttempt runs before every attempt; attempt is 0 for the first one.
func (c *Client) onAttempt(_ retryablehttp.Logger, req *http.Request, attempt int) {
	state := callStateFrom(req.Context())
	if state == nil {
		return
	}
	state.Attempts = attempt + 1
	if attempt == 0 {
		return
	}

	delay := c.policy.Delay(attempt - 1)
	state.Delays = append(state.Delays, delay)
	c.metrics.RecordRPCRetry(state.Method)

	c.logger.Warn().
		Err(state.LastErr).
		Str("method", state.Method).
		Int("attempt", attempt+1).
		Int("max_attempts", c.policy.MaxAttempts).
		Dur("after", delay).
		Msg("Retrying API call")
}

// Classify returns the timeout class of a method.
func (c *Client) Classify(method string) TimeoutClass {
	if c.long[method] {
		return ClassLong
	}
	return ClassDefault
}

// Policy returns the retry policy in effect.
func (c *Client) Policy() RetryPolicy {
	return c.policy
}

// Call issues an unauthenticated call.
func (c *Client) Call(ctx context.Context, method string, params, out interface{}) error {
	_, err := c.do(ctx, method, params, "", out)
	return err
}

// CallWithState issues an unauthenticated call and also returns its retry state.
func (c *Client) CallWithState(ctx context.Context, method string, params, out interface{}) (*CallState, error) {
	return c.do(ctx, method, params, "", out)
}

// Login authenticates and returns a session carrying the token.
func (c *Client) Login(ctx context.Context, username, password string) (*Session, error) {
	var token string
	params := map[string]string{"username": username, "password": password}
	if err := c.Call(ctx, "user.login", params, &token); err != nil {
		return nil, err
	}
	if token == "" {
		return nil, engine.NewApplicationError("empty session token", nil).
			WithOperation("user.login").WithCode(engine.ErrCodeBadResponse)
	}
	return &Session{client: c, token: token}, nil
}

// Version returns the remote API version.
func (c *Client) Version(ctx context.Context) (string, error) {
	var v string
	err := c.Call(ctx, "apiinfo.version", EmptyParams, &v)
	return v, err
}

func (c *Client) do(ctx context.Context, method string, params interface{}, token string, out interface{}) (*CallState, error) {
	if params == nil {
		params = EmptyParams
	}

	req := Request{
		JSONRPC: Version,
		Method:  method,
		Params:  params,
		ID:      c.nextID.Add(1),
	}
	if token != "" && c.authMode == AuthBody {
		req.Auth = token
	}
	if err := req.Validate(); err != nil {
		return nil, engine.NewValidationError("invalid request", err).WithOperation(method)
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, engine.NewValidationError("failed to encode params", err).WithOperation(method)
	}

	ctx, span := c.tracer.StartRPCSpan(ctx, method)
	defer span.End()

	state := &CallState{Method: method, Started: time.Now()}
	err = c.roundTrip(withCallState(ctx, state), method, body, token, out)

	span.SetAttributes(telemetry.AttrAttempts.Int(state.Attempts))
	result := "ok"
	if err != nil {
		telemetry.RecordError(span, err)
		result = string(engine.ClassOf(err))
		if result == "" {
			result = "error"
		}
	}
	c.metrics.RecordRPCCall(method, result, time.Since(state.Started))

	c.logger.Debug().
		Str("method", method).
		Int64("id", req.ID).
		Int("attempts", state.Attempts).
		Str("result", result).
		Msg("API call")

	return state, err
}

func (c *Client) roundTrip(ctx context.Context, method string, body []byte, token string, out interface{}) error {
	hreq, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return engine.NewValidationError("failed to build request", err).WithOperation(method)
	}
	hreq.Header.Set("Content-Type", "application/json-rpc")
	hreq.Header.Set("Accept", "application/json")
	if token != "" && c.authMode == AuthHeader {
		hreq.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.classes[c.Classify(method)].Do(hreq)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("%s: %w", method, ctxErr)
		}

		var exhausted *exhaustedError
		if errors.As(err, &exhausted) {
			return engine.NewTransportError("retries exhausted", exhausted.cause).
				WithOperation(method).
				WithCode(engine.ErrCodeRetriesExhausted).
				WithDetail("attempts", exhausted.attempts)
		}
		return engine.NewTransportError("request failed", err).WithOperation(method)
	}
	defer resp.Body.Close()

	var rpcResp Response
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return engine.NewApplicationError("malformed response", err).
			WithOperation(method).WithCode(engine.ErrCodeBadResponse)
	}

	if rpcResp.Error != nil {
		return engine.NewApplicationError("remote error", rpcResp.Error).
			WithOperation(method).
			WithCode(engine.ErrCodeRemote).
			WithDetail("remote_code", rpcResp.Error.Code)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(rpcResp.Result, out); err != nil {
		return engine.NewApplicationError("unexpected result shape", err).
			WithOperation(method).WithCode(engine.ErrCodeBadResponse)
	}
	return nil
}

// Session is an authenticated view of a Client.
type Session struct {
	client *Client
	token  string
}

// NewSession wraps an existing token.
func NewSession(c *Client, token string) *Session {
	return &Session{client: c, token: token}
}

// Call issues an authenticated call.
func (s *Session) Call(ctx context.Context, method string, params, out interface{}) error {
	_, err := s.client.do(ctx, method, params, s.token, out)
	return err
}

// Token returns the session token.
func (s *Session) Token() string {
	return s.token
}

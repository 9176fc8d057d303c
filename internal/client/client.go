package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/searchapi-console/internal/model"
)

const (
	defaultTimeout   = 15 * time.Second
	maxResponseBytes = 4 << 20
	apiKeyHeader     = "X-API-Key"
	requestIDHeader  = "X-Request-ID"
)

// CredentialReader is the read side of a credential store.
type CredentialReader interface {
	Load(ctx context.Context) (model.Credentials, error)
}

type authMode int

const (
	authNone authMode = iota
	authBearer
	authAPIKey
)

// Client calls the remote search-API service. Bearer-authenticated
// operations read the access token from the credential store on every
// request; Search authenticates with a caller-supplied API key only.
type Client struct {
	baseURL    string
	httpClient *http.Client
	creds      CredentialReader
	limiter    *rate.Limiter
	metrics    *Metrics
	userAgent  string

	mu             sync.RWMutex
	onUnauthorized []UnauthorizedFunc
}

// UnauthorizedFunc receives the operation that was rejected and the
// access token it was sent with ("" if none).
type UnauthorizedFunc func(operation, accessToken string)

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithRateLimit throttles all outgoing calls. rps <= 0 disables it.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
		}
	}
}

func WithMetrics(m *Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = ua }
}

// New creates a client for the service rooted at baseURL.
func New(baseURL string, creds CredentialReader, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
		creds:      creds,
		userAgent:  "searchctl",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// OnUnauthorized registers fn to run whenever a bearer-authenticated
// call is rejected with 401. The client never changes session state
// itself.
func (c *Client) OnUnauthorized(fn UnauthorizedFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onUnauthorized = append(c.onUnauthorized, fn)
}

func (c *Client) notifyUnauthorized(operation, accessToken string) {
	c.mu.RLock()
	hooks := append([]UnauthorizedFunc{}, c.onUnauthorized...)
	c.mu.RUnlock()
	for _, fn := range hooks {
		fn(operation, accessToken)
	}
}

type call struct {
	operation string
	method    string
	path      string
	body      any
	auth      authMode
	apiKey    string
}

// do performs one API call and decodes a 2xx JSON body into out.
func (c *Client) do(ctx context.Context, cl call, out any) (err error) {
	started := time.Now()
	defer func() { c.metrics.observe(cl.operation, started, err) }()

	raw, sentToken, err := c.roundTrip(ctx, cl)
	if err != nil {
		var apiErr *Error
		if cl.auth == authBearer && errors.As(err, &apiErr) && apiErr.Kind == KindUnauthorized {
			c.notifyUnauthorized(cl.operation, sentToken)
		}
		return err
	}

	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &Error{Kind: KindServer, Code: "invalid_response", Message: "the service returned an unexpected response", Err: err}
	}
	return nil
}

// roundTrip sends the request and returns the raw 2xx body along with
// the bearer token that was attached, if any.
func (c *Client) roundTrip(ctx context.Context, cl call) (raw []byte, token string, err error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, "", newNetwork(err)
		}
	}

	var body io.Reader
	if cl.body != nil {
		payload, err := json.Marshal(cl.body)
		if err != nil {
			return nil, "", fmt.Errorf("encode %s request: %w", cl.operation, err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, cl.method, c.baseURL+cl.path, body)
	if err != nil {
		return nil, "", fmt.Errorf("build %s request: %w", cl.operation, err)
	}
	requestID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set(requestIDHeader, requestID)
	if cl.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	switch cl.auth {
	case authBearer:
		if c.creds != nil {
			creds, err := c.creds.Load(ctx)
			if err != nil {
				return nil, "", &Error{Kind: KindServer, Code: "credential_store", Message: "could not read the stored session", Err: err}
			}
			if creds.AccessToken != "" {
				token = creds.AccessToken
				req.Header.Set("Authorization", "Bearer "+token)
			}
		}
	case authAPIKey:
		req.Header.Set(apiKeyHeader, cl.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Debug().Err(err).Str("operation", cl.operation).Str("request_id", requestID).Msg("request failed")
		return nil, token, newNetwork(err)
	}
	defer resp.Body.Close()

	raw, err = io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, token, newNetwork(fmt.Errorf("read response: %w", err))
	}

	log.Debug().
		Str("operation", cl.operation).
		Str("request_id", requestID).
		Int("status", resp.StatusCode).
		Msg("api call")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, token, responseError(resp.StatusCode, raw)
	}
	return raw, token, nil
}

// errorBody covers the error shapes the service is known to return:
// {"detail": "..."}, {"detail": [{"msg": "..."}]} and {"error": "...", "message": "..."}.
type errorBody struct {
	Detail  json.RawMessage `json:"detail"`
	Error   string          `json:"error"`
	Message string          `json:"message"`
}

func responseError(status int, raw []byte) *Error {
	kind := kindForStatus(status)
	e := &Error{Kind: kind, Status: status, Code: kind.String(), Message: http.StatusText(status)}

	var body errorBody
	if err := json.Unmarshal(raw, &body); err != nil {
		return e
	}
	if msg := detailMessage(body.Detail); msg != "" {
		e.Message = msg
	} else if body.Message != "" {
		e.Message = body.Message
	} else if body.Error != "" {
		e.Message = body.Error
	}
	if body.Error != "" && body.Message != "" {
		e.Code = body.Error
	}
	return e
}

func detailMessage(detail json.RawMessage) string {
	if len(detail) == 0 {
		return ""
	}

	var s string
	if err := json.Unmarshal(detail, &s); err == nil {
		return s
	}

	var items []struct {
		Msg string `json:"msg"`
	}
	if err := json.Unmarshal(detail, &items); err == nil {
		msgs := make([]string, 0, len(items))
		for _, it := range items {
			if it.Msg != "" {
				msgs = append(msgs, it.Msg)
			}
		}
		return strings.Join(msgs, "; ")
	}
	return ""
}

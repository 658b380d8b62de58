// Package http implements the authenticated transport the resource layer
// runs on: bearer injection, optional retries, GET-response caching, and
// mapping of error responses onto the typed errors of pkg/workbench.
package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	retryablehttp "github.com/hashicorp/go-retryablehttp"

	"github.com/expel-io/workbench-go/internal/auth"
	"github.com/expel-io/workbench-go/internal/constants"
	"github.com/expel-io/workbench-go/pkg/workbench"
)

// Request is one API request before execution.
type Request struct {
	Method  string
	Path    string
	Query   url.Values
	Body    interface{}
	Headers map[string]string
}

// Client is the concrete workbench.Transport. It is safe for concurrent use.
type Client struct {
	baseURL      string
	httpClient   *retryablehttp.Client
	tokenManager auth.TokenManager
	logger       workbench.Logger
	debug        bool
	userAgent    string
	cache        workbench.Cache
	cacheTTL     time.Duration
	interceptors *workbench.InterceptorChain
}

// Option configures a Client.
type Option func(*Client)

// WithLogger attaches a structured logger.
func WithLogger(logger workbench.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithDebug enables request/response logging through the logger.
func WithDebug(debug bool) Option {
	return func(c *Client) { c.debug = debug }
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(userAgent string) Option {
	return func(c *Client) { c.userAgent = userAgent }
}

// WithHTTPTimeout bounds each HTTP exchange.
func WithHTTPTimeout(timeout time.Duration) Option {
	return func(c *Client) { c.httpClient.HTTPClient.Timeout = timeout }
}

// WithRetryConfig enables transport-level retries of connection errors and
// 5xx/429 responses. Retries stay off unless this option is applied with a
// positive max.
func WithRetryConfig(retryMax int, waitMin, waitMax time.Duration) Option {
	return func(c *Client) {
		if retryMax > 0 {
			c.httpClient.RetryMax = retryMax
		}

		if waitMin > 0 {
			c.httpClient.RetryWaitMin = waitMin
		}

		if waitMax > 0 {
			c.httpClient.RetryWaitMax = waitMax
		}
	}
}

// WithCache attaches a cache for GET response bodies.
func WithCache(cache workbench.Cache, ttl time.Duration) Option {
	return func(c *Client) {
		c.cache = cache

		if ttl > 0 {
			c.cacheTTL = ttl
		}
	}
}

// WithInterceptors attaches request/response interceptors.
func WithInterceptors(chain *workbench.InterceptorChain) Option {
	return func(c *Client) { c.interceptors = chain }
}

// NewClient creates a transport against baseURL, authenticating through
// tokenManager. A nil tokenManager sends unauthenticated requests, which is
// only useful in tests.
func NewClient(baseURL string, tokenManager auth.TokenManager, opts ...Option) *Client {
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = 0
	retryClient.RetryWaitMin = constants.DefaultRetryWaitMin
	retryClient.RetryWaitMax = constants.DefaultRetryWaitMax
	retryClient.Logger = nil
	retryClient.HTTPClient.Timeout = constants.DefaultHTTPTimeout

	client := &Client{
		baseURL:      baseURL,
		httpClient:   retryClient,
		tokenManager: tokenManager,
		userAgent:    "workbench-go",
		cacheTTL:     constants.DefaultCacheTTL,
	}

	for _, opt := range opts {
		opt(client)
	}

	return client
}

// Do executes one request and maps failures onto typed errors.
func (c *Client) Do(ctx context.Context, req *Request) (*workbench.Response, error) {
	httpReq, err := c.buildRequest(ctx, req)
	if err != nil {
		return nil, err
	}

	if err := c.interceptors.RunRequest(ctx, req.Method, req.Path, httpReq.Header); err != nil {
		return nil, err
	}

	resp, err := c.send(ctx, httpReq, req)
	if err != nil {
		return nil, err
	}

	if err := c.interceptors.RunResponse(ctx, req.Method, req.Path, resp); err != nil {
		return resp, err
	}

	if resp.StatusCode >= 400 {
		return resp, mapStatusError(resp.StatusCode, resp.Body)
	}

	return resp, nil
}

func (c *Client) buildRequest(ctx context.Context, req *Request) (*retryablehttp.Request, error) {
	fullURL := c.baseURL + req.Path
	if len(req.Query) > 0 {
		fullURL += "?" + req.Query.Encode()
	}

	var rawBody interface{}

	if req.Body != nil {
		if reader, ok := req.Body.(io.Reader); ok {
			rawBody = reader
		} else {
			encoded, err := json.Marshal(req.Body)
			if err != nil {
				return nil, fmt.Errorf("encoding request body: %w", err)
			}

			rawBody = encoded
		}
	}

	httpReq, err := retryablehttp.NewRequestWithContext(ctx, req.Method, fullURL, rawBody)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}

	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", c.userAgent)
	httpReq.Header.Set("X-Request-Id", uuid.NewString())

	if req.Body != nil && httpReq.Header.Get("Content-Type") == "" {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	for key, value := range req.Headers {
		httpReq.Header.Set(key, value)
	}

	if err := c.applyAuth(ctx, httpReq); err != nil {
		return nil, err
	}

	return httpReq, nil
}

func (c *Client) applyAuth(ctx context.Context, httpReq *retryablehttp.Request) error {
	if c.tokenManager == nil {
		return nil
	}

	token, err := c.tokenManager.GetToken(ctx)
	if err != nil {
		return fmt.Errorf("getting token: %w", err)
	}

	httpReq.Header.Set("Authorization", "Bearer "+token)

	return nil
}

// send executes the request, retrying once with a refreshed token on 401.
func (c *Client) send(ctx context.Context, httpReq *retryablehttp.Request, req *Request) (*workbench.Response, error) {
	c.logRequest(req)

	resp, err := c.roundTrip(httpReq)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusUnauthorized && c.tokenManager != nil {
		if refreshErr := c.tokenManager.RefreshToken(ctx); refreshErr == nil {
			if authErr := c.applyAuth(ctx, httpReq); authErr != nil {
				return nil, authErr
			}

			resp, err = c.roundTrip(httpReq)
			if err != nil {
				return nil, err
			}
		}
	}

	c.logResponse(req, resp)

	return resp, nil
}

func (c *Client) roundTrip(httpReq *retryablehttp.Request) (*workbench.Response, error) {
	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &workbench.TransportError{Err: err}
	}
	defer func() { _ = httpResp.Body.Close() }()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, &workbench.TransportError{Err: fmt.Errorf("reading response body: %w", err)}
	}

	return &workbench.Response{
		StatusCode: httpResp.StatusCode,
		Headers:    httpResp.Header,
		Body:       body,
	}, nil
}

func (c *Client) logRequest(req *Request) {
	if !c.debug || c.logger == nil {
		return
	}

	c.logger.Debug("HTTP Request", map[string]interface{}{
		"method": req.Method,
		"path":   req.Path,
		"query":  req.Query.Encode(),
	})
}

func (c *Client) logResponse(req *Request, resp *workbench.Response) {
	if !c.debug || c.logger == nil {
		return
	}

	c.logger.Debug("HTTP Response", map[string]interface{}{
		"method": req.Method,
		"path":   req.Path,
		"status": resp.StatusCode,
		"bytes":  len(resp.Body),
	})
}

func mapStatusError(statusCode int, body []byte) error {
	respErr := workbench.ParseResponseError(statusCode, body)

	switch statusCode {
	case http.StatusNotFound:
		return &workbench.NotFoundError{Response: respErr}
	case http.StatusUnauthorized, http.StatusForbidden:
		return &workbench.AuthorizationError{Response: respErr}
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return &workbench.ValidationError{Response: respErr}
	case http.StatusConflict:
		return &workbench.ConflictError{Response: respErr}
	default:
		return respErr
	}
}

func cacheKey(path string, query url.Values) string {
	return "GET " + path + "?" + query.Encode()
}

// Get issues a GET, answering from the cache when a live entry exists.
func (c *Client) Get(ctx context.Context, path string, query url.Values) (*workbench.Response, error) {
	key := cacheKey(path, query)

	if c.cache != nil {
		if entry, err := c.cache.Get(ctx, key); err == nil {
			if c.debug && c.logger != nil {
				c.logger.Debug("cache hit", map[string]interface{}{"key": key})
			}

			return &workbench.Response{StatusCode: http.StatusOK, Body: entry.Data}, nil
		}
	}

	resp, err := c.Do(ctx, &Request{Method: http.MethodGet, Path: path, Query: query})
	if err != nil {
		return resp, err
	}

	if c.cache != nil && resp.StatusCode == http.StatusOK {
		entry := &workbench.CacheEntry{
			Data:      resp.Body,
			ExpiresAt: time.Now().Add(c.cacheTTL),
			ETag:      resp.Headers.Get("ETag"),
		}
		if cacheErr := c.cache.Set(ctx, key, entry); cacheErr != nil && c.logger != nil {
			c.logger.Warn("cache write failed", map[string]interface{}{
				"key":   key,
				"error": cacheErr.Error(),
			})
		}
	}

	return resp, nil
}

// Post issues a POST with a JSON body.
func (c *Client) Post(ctx context.Context, path string, body interface{}) (*workbench.Response, error) {
	return c.Do(ctx, &Request{Method: http.MethodPost, Path: path, Body: body})
}

// Patch issues a PATCH with a JSON body.
func (c *Client) Patch(ctx context.Context, path string, body interface{}) (*workbench.Response, error) {
	return c.Do(ctx, &Request{Method: http.MethodPatch, Path: path, Body: body})
}

// Delete issues a DELETE.
func (c *Client) Delete(ctx context.Context, path string) (*workbench.Response, error) {
	return c.Do(ctx, &Request{Method: http.MethodDelete, Path: path})
}

// Download streams a raw response body into w without buffering it whole.
func (c *Client) Download(ctx context.Context, path string, query url.Values, w io.Writer) error {
	fullURL := c.baseURL + path
	if len(query) > 0 {
		fullURL += "?" + query.Encode()
	}

	httpReq, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return fmt.Errorf("building download request: %w", err)
	}

	httpReq.Header.Set("Accept", "*/*")
	httpReq.Header.Set("User-Agent", c.userAgent)
	httpReq.Header.Set("X-Request-Id", uuid.NewString())

	if err := c.applyAuth(ctx, httpReq); err != nil {
		return err
	}

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return &workbench.TransportError{Err: err}
	}
	defer func() { _ = httpResp.Body.Close() }()

	if httpResp.StatusCode >= 400 {
		body, readErr := io.ReadAll(httpResp.Body)
		if readErr != nil {
			body = nil
		}

		return mapStatusError(httpResp.StatusCode, body)
	}

	if _, err := io.Copy(w, httpResp.Body); err != nil {
		return &workbench.TransportError{Err: fmt.Errorf("streaming download: %w", err)}
	}

	return nil
}

// Upload sends raw bytes from r as a multipart file field.
func (c *Client) Upload(ctx context.Context, path string, filename string, r io.Reader) (*workbench.Response, error) {
	var buf bytes.Buffer

	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("building multipart body: %w", err)
	}

	if _, err := io.Copy(part, r); err != nil {
		return nil, fmt.Errorf("reading upload body: %w", err)
	}

	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("finalizing multipart body: %w", err)
	}

	return c.Do(ctx, &Request{
		Method: http.MethodPost,
		Path:   path,
		Body:   &buf,
		Headers: map[string]string{
			"Content-Type": writer.FormDataContentType(),
		},
	})
}

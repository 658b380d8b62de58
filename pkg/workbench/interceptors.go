package workbench

import (
	"context"
	"fmt"
	"net/http"
)

// RequestInterceptor is called before a request is sent. It may inspect the
// method and path and add or rewrite headers. Returning an error aborts the
// request before anything goes on the wire.
type RequestInterceptor func(ctx context.Context, method, path string, headers http.Header) error

// ResponseInterceptor is called after a response is received, before status
// codes are mapped onto typed errors. Returning an error fails the call.
type ResponseInterceptor func(ctx context.Context, method, path string, resp *Response) error

// InterceptorChain holds request and response interceptors in registration
// order. Register all interceptors before handing the chain to a client; the
// chain is not safe for concurrent mutation.
type InterceptorChain struct {
	request  []RequestInterceptor
	response []ResponseInterceptor
}

// NewInterceptorChain creates an empty chain.
func NewInterceptorChain() *InterceptorChain {
	return &InterceptorChain{}
}

// AddRequestInterceptor appends a request interceptor.
func (c *InterceptorChain) AddRequestInterceptor(interceptor RequestInterceptor) {
	c.request = append(c.request, interceptor)
}

// AddResponseInterceptor appends a response interceptor.
func (c *InterceptorChain) AddResponseInterceptor(interceptor ResponseInterceptor) {
	c.response = append(c.response, interceptor)
}

// RunRequest executes the request interceptors in order, stopping at the
// first error. A nil chain is a no-op.
func (c *InterceptorChain) RunRequest(ctx context.Context, method, path string, headers http.Header) error {
	if c == nil {
		return nil
	}

	for _, interceptor := range c.request {
		if err := interceptor(ctx, method, path, headers); err != nil {
			return fmt.Errorf("request interceptor: %w", err)
		}
	}

	return nil
}

// RunResponse executes the response interceptors in order, stopping at the
// first error. A nil chain is a no-op.
func (c *InterceptorChain) RunResponse(ctx context.Context, method, path string, resp *Response) error {
	if c == nil {
		return nil
	}

	for _, interceptor := range c.response {
		if err := interceptor(ctx, method, path, resp); err != nil {
			return fmt.Errorf("response interceptor: %w", err)
		}
	}

	return nil
}

// HeaderInterceptor sets fixed headers on every request. Useful for tenant
// or tracing headers the API gateway expects.
func HeaderInterceptor(headers map[string]string) RequestInterceptor {
	return func(_ context.Context, _, _ string, h http.Header) error {
		for key, value := range headers {
			h.Set(key, value)
		}

		return nil
	}
}

// LoggingInterceptor logs every outgoing request at debug level.
func LoggingInterceptor(logger Logger) RequestInterceptor {
	return func(_ context.Context, method, path string, _ http.Header) error {
		logger.Debug("API Request", map[string]interface{}{
			"method": method,
			"path":   path,
		})

		return nil
	}
}

// LoggingResponseInterceptor logs every response. Error-status responses are
// logged at error level, everything else at debug.
func LoggingResponseInterceptor(logger Logger) ResponseInterceptor {
	return func(_ context.Context, method, path string, resp *Response) error {
		fields := map[string]interface{}{
			"method": method,
			"path":   path,
			"status": resp.StatusCode,
		}

		if resp.StatusCode >= 400 {
			logger.Error("API Response Error", fields)
		} else {
			logger.Debug("API Response", fields)
		}

		return nil
	}
}

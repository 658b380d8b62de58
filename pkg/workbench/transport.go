package workbench

import (
	"context"
	"io"
	"net/http"
	"net/url"
)

// Response is a completed HTTP exchange with the body fully read. Errors are
// reported separately by the transport; a Response accompanying an error
// still carries the status code and any body that was received.
type Response struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
}

// Transport issues authenticated HTTP requests against the Workbench API.
// The concrete implementation lives in internal/http; this interface is what
// the resource layer is written against, and what tests mock.
//
// A Transport may be shared by concurrent callers. All calls block until the
// HTTP exchange completes or the context is done. Non-2xx responses are
// returned as the typed errors of this package (NotFoundError,
// AuthorizationError, ValidationError, ConflictError); failures below the
// HTTP layer are returned as TransportError.
type Transport interface {
	Get(ctx context.Context, path string, query url.Values) (*Response, error)
	Post(ctx context.Context, path string, body interface{}) (*Response, error)
	Patch(ctx context.Context, path string, body interface{}) (*Response, error)
	Delete(ctx context.Context, path string) (*Response, error)

	// Download streams a raw (non-JSON:API) response body into w.
	Download(ctx context.Context, path string, query url.Values, w io.Writer) error

	// Upload streams a raw request body from r to a binary endpoint.
	Upload(ctx context.Context, path string, filename string, r io.Reader) (*Response, error)
}

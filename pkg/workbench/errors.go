package workbench

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// APIError is a single JSON:API error object from the Workbench API.
type APIError struct {
	Status string       `json:"status,omitempty" yaml:"status,omitempty"`
	Code   string       `json:"code,omitempty"   yaml:"code,omitempty"`
	Title  string       `json:"title,omitempty"  yaml:"title,omitempty"`
	Detail string       `json:"detail,omitempty" yaml:"detail,omitempty"`
	Source *ErrorSource `json:"source,omitempty" yaml:"source,omitempty"`
}

// ErrorSource points at the part of the request an error refers to.
type ErrorSource struct {
	Pointer   string `json:"pointer,omitempty"   yaml:"pointer,omitempty"`
	Parameter string `json:"parameter,omitempty" yaml:"parameter,omitempty"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Detail == "" {
		return e.Title
	}

	return fmt.Sprintf("%s: %s", e.Title, e.Detail)
}

// Field returns the attribute name an error's source pointer refers to, or
// an empty string when the pointer does not name an attribute.
func (e *APIError) Field() string {
	if e.Source == nil {
		return ""
	}

	const attrPrefix = "/data/attributes/"
	if strings.HasPrefix(e.Source.Pointer, attrPrefix) {
		return strings.TrimPrefix(e.Source.Pointer, attrPrefix)
	}

	return ""
}

// ResponseError is the parsed error document of a failed API call.
type ResponseError struct {
	StatusCode int        `json:"-"      yaml:"-"`
	Errors     []APIError `json:"errors" yaml:"errors"`
}

// Error implements the error interface for ResponseError.
func (e *ResponseError) Error() string {
	switch len(e.Errors) {
	case 0:
		return fmt.Sprintf("API error (status %d)", e.StatusCode)
	case 1:
		return e.Errors[0].Error()
	default:
		return fmt.Sprintf("multiple errors: %v", e.Errors)
	}
}

// FirstError returns the first error object or nil.
func (e *ResponseError) FirstError() *APIError {
	if len(e.Errors) > 0 {
		return &e.Errors[0]
	}

	return nil
}

// ParseResponseError parses an error document body. The raw body is kept as
// a single detail entry when it is not a JSON:API error document.
func ParseResponseError(statusCode int, body []byte) *ResponseError {
	respErr := &ResponseError{StatusCode: statusCode}

	if len(body) > 0 {
		if err := json.Unmarshal(body, respErr); err != nil || len(respErr.Errors) == 0 {
			respErr.Errors = []APIError{{Detail: strings.TrimSpace(string(body))}}
		}
	}

	return respErr
}

// NotFoundError reports that the requested resource does not exist (404).
type NotFoundError struct {
	Response *ResponseError
}

func (e *NotFoundError) Error() string { return "not found: " + e.Response.Error() }

// Unwrap exposes the underlying response error.
func (e *NotFoundError) Unwrap() error { return e.Response }

// AuthorizationError reports that the caller is not authenticated or not
// permitted to perform the operation (401/403).
type AuthorizationError struct {
	Response *ResponseError
}

func (e *AuthorizationError) Error() string { return "not authorized: " + e.Response.Error() }

// Unwrap exposes the underlying response error.
func (e *AuthorizationError) Unwrap() error { return e.Response }

// ValidationError reports a request the server rejected as invalid (400/422).
// Field-level messages are available through Fields.
type ValidationError struct {
	Response *ResponseError
}

func (e *ValidationError) Error() string { return "validation failed: " + e.Response.Error() }

// Unwrap exposes the underlying response error.
func (e *ValidationError) Unwrap() error { return e.Response }

// Fields maps attribute names to their validation messages. Errors whose
// source does not name an attribute are keyed by the empty string.
func (e *ValidationError) Fields() map[string][]string {
	fields := make(map[string][]string, len(e.Response.Errors))
	for _, apiErr := range e.Response.Errors {
		fields[apiErr.Field()] = append(fields[apiErr.Field()], apiErr.Error())
	}

	return fields
}

// ConflictError reports a stale-version update rejected by the server (409).
type ConflictError struct {
	Response *ResponseError
}

func (e *ConflictError) Error() string { return "conflict: " + e.Response.Error() }

// Unwrap exposes the underlying response error.
func (e *ConflictError) Unwrap() error { return e.Response }

// TransportError reports a network or HTTP-layer failure that never produced
// an interpretable API response. It is not unpacked further by this layer.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string { return "transport: " + e.Err.Error() }

// Unwrap exposes the underlying transport failure.
func (e *TransportError) Unwrap() error { return e.Err }

// UnknownResourceTypeError reports a lookup of a resource type the registry
// has no descriptor for. It is a programmer error and fails at call time.
type UnknownResourceTypeError struct {
	Type string
}

func (e *UnknownResourceTypeError) Error() string {
	return fmt.Sprintf("unknown resource type %q", e.Type)
}

// UnknownAttributeError reports use of an attribute name that is not in the
// resource's descriptor.
type UnknownAttributeError struct {
	Type      string
	Attribute string
}

func (e *UnknownAttributeError) Error() string {
	return fmt.Sprintf("resource type %q has no attribute %q", e.Type, e.Attribute)
}

// UnknownRelationshipError reports a relationship path that does not resolve
// against the resource's descriptor.
type UnknownRelationshipError struct {
	Type string
	Path string
}

func (e *UnknownRelationshipError) Error() string {
	return fmt.Sprintf("resource type %q has no relationship %q", e.Type, e.Path)
}

// InvalidFilterOperandError reports a filter constructor called with the
// wrong operand arity or an operand of an unusable kind.
type InvalidFilterOperandError struct {
	Op     string
	Reason string
}

func (e *InvalidFilterOperandError) Error() string {
	return fmt.Sprintf("invalid operand for %s: %s", e.Op, e.Reason)
}

// Sentinel errors.
var (
	// ErrStaleHandle is returned by operations on an instance whose server-side
	// record has been deleted through this handle.
	ErrStaleHandle = errors.New("operation on deleted resource instance")

	// ErrNoMoreItems signals cursor exhaustion.
	ErrNoMoreItems = errors.New("no more items")

	// ErrMultipleResults is returned by ExactlyOne when a query matched more
	// than one record.
	ErrMultipleResults = errors.New("query matched more than one record")

	// ErrMissingID is returned when an operation requires a saved instance.
	ErrMissingID = errors.New("resource instance has no id")
)

// IsNotFound reports whether err is a NotFoundError.
func IsNotFound(err error) bool {
	var e *NotFoundError

	return errors.As(err, &e)
}

// IsAuthorization reports whether err is an AuthorizationError.
func IsAuthorization(err error) bool {
	var e *AuthorizationError

	return errors.As(err, &e)
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var e *ValidationError

	return errors.As(err, &e)
}

// IsConflict reports whether err is a ConflictError.
func IsConflict(err error) bool {
	var e *ConflictError

	return errors.As(err, &e)
}

// IsTransport reports whether err is a TransportError.
func IsTransport(err error) bool {
	var e *TransportError

	return errors.As(err, &e)
}

package workbench

import (
	"context"
	"io"
	"time"
)

// Logger is the structured logging interface used across the client. Any
// logging backend can be adapted to it.
type Logger interface {
	Debug(msg string, fields map[string]interface{})
	Info(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
}

// Config configures a Workbench client session.
//
// # Authentication
//
// Provide exactly one credential form:
//   - APIKey: a static key used directly as the bearer credential.
//   - Username/Password/MFACode: exchanged once at /auth/login for a bearer
//     token; the exchange is re-run when the token expires.
//
// # Retries and timeouts
//
// The resource layer never retries on its own: a failed save or search
// surfaces its error at the call that triggered it. RetryMax below zero or
// zero keeps transport-level retries off too; setting it enables retrying
// of connection errors and 5xx/429 responses inside the transport only.
// Per-request deadlines are the caller's context.
type Config struct {
	// APIEndpoint is the base URL, e.g. "https://workbench.expel.io".
	APIEndpoint string

	// APIKey is a static API key used as the bearer credential.
	APIKey string

	// Username, Password and MFACode drive the login exchange.
	Username string
	Password string
	MFACode  string

	// Registry overrides the default resource descriptor table. Leave nil to
	// use DefaultRegistry. The registry must not be mutated after the client
	// is constructed.
	Registry *Registry

	// HTTPTimeout bounds each HTTP exchange when no context deadline is set.
	HTTPTimeout time.Duration

	// RetryMax enables transport-level retries when greater than zero.
	RetryMax     int
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration

	// Cache configures GET-response caching. Leave nil to disable.
	Cache *CacheConfig

	// Interceptors run around every request the transport issues. Leave nil
	// for none.
	Interceptors *InterceptorChain

	// Debug enables request/response logging through Logger.
	Debug bool

	// Logger receives structured logs from the transport and helpers.
	Logger Logger

	// UserAgent overrides the default User-Agent header.
	UserAgent string
}

// AutoActionRequest describes an automatic (device-tasked) investigative
// action to create.
type AutoActionRequest struct {
	OrganizationID   string
	InvestigationID  string
	SecurityDeviceID string
	CreatedByID      string
	CapabilityName   string
	InputArgs        map[string]interface{}
	Title            string
	Reason           string
}

// ManualActionRequest describes a manual investigative action to create.
type ManualActionRequest struct {
	InvestigationID string
	CreatedByID     string
	Title           string
	Reason          string
	Instructions    string
}

// Client is a session against one Workbench deployment: an authenticated
// transport plus one resource accessor per registered type. A Client may be
// shared by concurrent callers; individual Instances and Cursors may not.
type Client interface {
	// Resource returns the accessor for any registered resource type.
	Resource(resourceType string) (*ResourceClient, error)

	// Typed accessors for the resource types this client ships descriptors
	// for. Each is equivalent to Resource(<type name>).
	Investigations() *ResourceClient
	ExpelAlerts() *ResourceClient
	VendorAlerts() *ResourceClient
	InvestigativeActions() *ResourceClient
	InvestigativeActionHistories() *ResourceClient
	InvestigationHistories() *ResourceClient
	InvestigationFindings() *ResourceClient
	InvestigationFindingHistories() *ResourceClient
	RemediationActions() *ResourceClient
	RemediationActionAssets() *ResourceClient
	Comments() *ResourceClient
	Organizations() *ResourceClient
	Actors() *ResourceClient
	SecurityDevices() *ResourceClient
	CustomerDevices() *ResourceClient
	Files() *ResourceClient

	// Capabilities returns the investigative capabilities available to an
	// organization, keyed by vendor.
	Capabilities(ctx context.Context, organizationID string) (*Capabilities, error)

	// CreateAutoInvAction creates and saves a device-tasked investigative
	// action bound to its investigation and organization.
	CreateAutoInvAction(ctx context.Context, req *AutoActionRequest) (*Instance, error)

	// CreateManualInvAction creates and saves a manual investigative action.
	CreateManualInvAction(ctx context.Context, req *ManualActionRequest) (*Instance, error)

	// DownloadResults streams an investigative action's raw result bytes
	// into w without materializing them as JSON attributes.
	DownloadResults(ctx context.Context, actionID string, w io.Writer) error

	// UploadResults streams raw result bytes from r onto an investigative
	// action.
	UploadResults(ctx context.Context, actionID, filename string, r io.Reader) error
}

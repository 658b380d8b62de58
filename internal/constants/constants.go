package constants

import "time"

// API surface.
const (
	// APIPrefix is the path prefix of every resource endpoint.
	APIPrefix = "/api/v2"

	// AuthLoginPath is the endpoint that exchanges username/password/MFA
	// credentials for a bearer token.
	AuthLoginPath = "/auth/v0/login"

	// DefaultAPIEndpoint is the production Workbench deployment.
	DefaultAPIEndpoint = "https://workbench.expel.io"
)

// HTTP and network timeouts.
const (
	// DefaultHTTPTimeout is the default timeout for HTTP requests.
	DefaultHTTPTimeout = 30 * time.Second

	// ExtendedHTTPTimeout is used for uploads and downloads.
	ExtendedHTTPTimeout = 5 * time.Minute
)

// Retry pacing. Retries are off unless explicitly configured; these only
// shape the backoff once a caller opts in.
const (
	// DefaultRetryWaitMin is the minimum wait time between retries.
	DefaultRetryWaitMin = 1 * time.Second

	// DefaultRetryWaitMax is the maximum wait time between retries.
	DefaultRetryWaitMax = 10 * time.Second
)

// Cache sizing.
const (
	// DefaultCacheTTL bounds how stale a cached GET response may be.
	DefaultCacheTTL = 1 * time.Minute
)

// Token handling.
const (
	// TokenExpiryBuffer treats tokens expiring this soon as already expired,
	// so a request never departs with a token about to lapse mid-flight.
	TokenExpiryBuffer = 30 * time.Second

	// DefaultTokenLifetime is assumed when a login response carries no
	// explicit expiry.
	DefaultTokenLifetime = 4 * time.Hour
)

// File and directory permissions for CLI config handling.
const (
	// ConfigDirPerm is the permission for configuration directories.
	ConfigDirPerm = 0750

	// ConfigFilePerm is the permission for configuration files.
	ConfigFilePerm = 0600
)

// Pagination and display limits.
const (
	// DefaultPageSize is the server's default number of items per page.
	DefaultPageSize = 25

	// CLIPageLimit is the page size the CLI asks for when listing.
	CLIPageLimit = 50
)

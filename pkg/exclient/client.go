// Package exclient provides the main entry point for creating Expel
// Workbench API clients.
package exclient

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/expel-io/workbench-go/internal/client"
	"github.com/expel-io/workbench-go/pkg/workbench"
)

// Static errors.
var (
	ErrConfigRequired      = errors.New("config is required")
	ErrCredentialsRequired = errors.New("config must carry an API key or username/password credentials")
)

// New creates a Workbench client session from config.
//
// Exactly one credential form must be set: APIKey, or Username/Password
// (with MFACode when the account requires it). The endpoint defaults to the
// production deployment when empty. No request is issued here; credential
// problems surface on the first operation.
func New(ctx context.Context, config *workbench.Config) (workbench.Client, error) {
	if config == nil {
		return nil, ErrConfigRequired
	}

	if config.APIKey == "" && config.Username == "" {
		return nil, ErrCredentialsRequired
	}

	if config.APIEndpoint != "" {
		endpoint := strings.TrimSuffix(config.APIEndpoint, "/")
		if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
			endpoint = "https://" + endpoint
		}

		config.APIEndpoint = endpoint
	}

	session, err := client.New(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create new client: %w", err)
	}

	return session, nil
}

// Package client wires the authenticated transport, descriptor registry, and
// resource accessors into one Workbench session.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/expel-io/workbench-go/internal/auth"
	"github.com/expel-io/workbench-go/internal/constants"
	internalhttp "github.com/expel-io/workbench-go/internal/http"
	"github.com/expel-io/workbench-go/pkg/workbench"
)

// Static errors.
var (
	ErrNoCredentials = errors.New("config must carry an API key or username/password credentials")
)

// Client is a Workbench session. It implements workbench.Client.
type Client struct {
	set       *workbench.ResourceSet
	transport workbench.Transport
}

// New creates an authenticated session from config. No request is issued
// until the first operation; credential problems surface there.
func New(_ context.Context, config *workbench.Config) (*Client, error) {
	if config == nil {
		config = &workbench.Config{}
	}

	endpoint := config.APIEndpoint
	if endpoint == "" {
		endpoint = constants.DefaultAPIEndpoint
	}

	tokenManager, err := buildTokenManager(endpoint, config)
	if err != nil {
		return nil, err
	}

	opts := buildTransportOptions(config)

	transport := internalhttp.NewClient(endpoint, tokenManager, opts...)

	registry := config.Registry
	if registry == nil {
		registry = workbench.DefaultRegistry()
	}

	return &Client{
		set:       workbench.NewResourceSet(transport, registry),
		transport: transport,
	}, nil
}

func buildTokenManager(endpoint string, config *workbench.Config) (auth.TokenManager, error) {
	switch {
	case config.APIKey != "":
		return auth.NewStaticTokenManager(config.APIKey), nil
	case config.Username != "":
		login := auth.NewPasswordLogin(endpoint, auth.Credentials{
			Username: config.Username,
			Password: config.Password,
			MFACode:  config.MFACode,
		}, config.HTTPTimeout)

		return auth.NewLoginTokenManager(login), nil
	default:
		return nil, ErrNoCredentials
	}
}

func buildTransportOptions(config *workbench.Config) []internalhttp.Option {
	var opts []internalhttp.Option

	if config.Logger != nil {
		opts = append(opts, internalhttp.WithLogger(config.Logger))
	}

	if config.Debug {
		opts = append(opts, internalhttp.WithDebug(true))
	}

	if config.UserAgent != "" {
		opts = append(opts, internalhttp.WithUserAgent(config.UserAgent))
	}

	if config.HTTPTimeout > 0 {
		opts = append(opts, internalhttp.WithHTTPTimeout(config.HTTPTimeout))
	}

	if config.Interceptors != nil {
		opts = append(opts, internalhttp.WithInterceptors(config.Interceptors))
	}

	if config.RetryMax > 0 {
		opts = append(opts, internalhttp.WithRetryConfig(config.RetryMax, config.RetryWaitMin, config.RetryWaitMax))
	}

	if config.Cache != nil && config.Cache.Type != workbench.CacheTypeNone {
		cache, err := workbench.NewCacheFromConfig(config.Cache)
		if err == nil {
			ttl := config.Cache.TTL
			if ttl <= 0 {
				ttl = constants.DefaultCacheTTL
			}

			opts = append(opts, internalhttp.WithCache(cache, ttl))
		} else if config.Logger != nil {
			config.Logger.Warn("cache disabled", map[string]interface{}{"error": err.Error()})
		}
	}

	return opts
}

// Resource returns the accessor for any registered resource type.
func (c *Client) Resource(resourceType string) (*workbench.ResourceClient, error) {
	return c.set.Resource(resourceType)
}

// resource is the typed-accessor backend. Types absent from a custom
// registry yield nil, matching the accessor contract.
func (c *Client) resource(resourceType string) *workbench.ResourceClient {
	rc, err := c.set.Resource(resourceType)
	if err != nil {
		return nil
	}

	return rc
}

// Investigations returns the investigations accessor.
func (c *Client) Investigations() *workbench.ResourceClient { return c.resource("investigations") }

// ExpelAlerts returns the expel_alerts accessor.
func (c *Client) ExpelAlerts() *workbench.ResourceClient { return c.resource("expel_alerts") }

// VendorAlerts returns the vendor_alerts accessor.
func (c *Client) VendorAlerts() *workbench.ResourceClient { return c.resource("vendor_alerts") }

// InvestigativeActions returns the investigative_actions accessor.
func (c *Client) InvestigativeActions() *workbench.ResourceClient {
	return c.resource("investigative_actions")
}

// InvestigativeActionHistories returns the investigative_action_histories accessor.
func (c *Client) InvestigativeActionHistories() *workbench.ResourceClient {
	return c.resource("investigative_action_histories")
}

// InvestigationHistories returns the investigation_histories accessor.
func (c *Client) InvestigationHistories() *workbench.ResourceClient {
	return c.resource("investigation_histories")
}

// InvestigationFindings returns the investigation_findings accessor.
func (c *Client) InvestigationFindings() *workbench.ResourceClient {
	return c.resource("investigation_findings")
}

// InvestigationFindingHistories returns the investigation_finding_histories accessor.
func (c *Client) InvestigationFindingHistories() *workbench.ResourceClient {
	return c.resource("investigation_finding_histories")
}

// RemediationActions returns the remediation_actions accessor.
func (c *Client) RemediationActions() *workbench.ResourceClient {
	return c.resource("remediation_actions")
}

// RemediationActionAssets returns the remediation_action_assets accessor.
func (c *Client) RemediationActionAssets() *workbench.ResourceClient {
	return c.resource("remediation_action_assets")
}

// Comments returns the comments accessor.
func (c *Client) Comments() *workbench.ResourceClient { return c.resource("comments") }

// Organizations returns the organizations accessor.
func (c *Client) Organizations() *workbench.ResourceClient { return c.resource("organizations") }

// Actors returns the actors accessor.
func (c *Client) Actors() *workbench.ResourceClient { return c.resource("actors") }

// SecurityDevices returns the security_devices accessor.
func (c *Client) SecurityDevices() *workbench.ResourceClient { return c.resource("security_devices") }

// CustomerDevices returns the customer_devices accessor.
func (c *Client) CustomerDevices() *workbench.ResourceClient { return c.resource("customer_devices") }

// Files returns the files accessor.
func (c *Client) Files() *workbench.ResourceClient { return c.resource("files") }

// Capabilities returns the investigative capabilities available to an
// organization, keyed by vendor.
func (c *Client) Capabilities(ctx context.Context, organizationID string) (*workbench.Capabilities, error) {
	if organizationID == "" {
		return nil, workbench.ErrMissingID
	}

	resp, err := c.transport.Get(ctx, "/api/v2/capabilities/"+organizationID, nil)
	if err != nil {
		return nil, fmt.Errorf("fetching capabilities: %w", err)
	}

	var vendors map[string]map[string]interface{}
	if err := json.Unmarshal(resp.Body, &vendors); err != nil {
		return nil, fmt.Errorf("parsing capabilities response: %w", err)
	}

	return &workbench.Capabilities{
		OrganizationID: organizationID,
		Vendors:        vendors,
	}, nil
}

// CreateAutoInvAction creates and saves a device-tasked investigative action.
func (c *Client) CreateAutoInvAction(ctx context.Context, req *workbench.AutoActionRequest) (*workbench.Instance, error) {
	actions, err := c.set.Resource("investigative_actions")
	if err != nil {
		return nil, err
	}

	inst, err := actions.Create(map[string]interface{}{
		"title":           req.Title,
		"reason":          req.Reason,
		"action_type":     "TASKABILITY",
		"capability_name": req.CapabilityName,
		"input_args":      req.InputArgs,
		"status":          "RUNNING",

		"relationship_investigation":   req.InvestigationID,
		"relationship_organization":    req.OrganizationID,
		"relationship_security_device": req.SecurityDeviceID,
		"relationship_created_by":      req.CreatedByID,
	})
	if err != nil {
		return nil, err
	}

	if err := inst.Save(ctx); err != nil {
		return nil, err
	}

	return inst, nil
}

// CreateManualInvAction creates and saves a manual investigative action.
func (c *Client) CreateManualInvAction(ctx context.Context, req *workbench.ManualActionRequest) (*workbench.Instance, error) {
	actions, err := c.set.Resource("investigative_actions")
	if err != nil {
		return nil, err
	}

	inst, err := actions.Create(map[string]interface{}{
		"title":        req.Title,
		"reason":       req.Reason,
		"instructions": req.Instructions,
		"action_type":  "MANUAL",
		"status":       "READY_FOR_ANALYSIS",

		"relationship_investigation": req.InvestigationID,
		"relationship_created_by":    req.CreatedByID,
	})
	if err != nil {
		return nil, err
	}

	if err := inst.Save(ctx); err != nil {
		return nil, err
	}

	return inst, nil
}

// DownloadResults streams an investigative action's raw result bytes into w.
func (c *Client) DownloadResults(ctx context.Context, actionID string, w io.Writer) error {
	if actionID == "" {
		return workbench.ErrMissingID
	}

	return c.transport.Download(ctx, "/api/v2/investigative_actions/"+actionID+"/download", nil, w)
}

// UploadResults streams raw result bytes from r onto an investigative action.
func (c *Client) UploadResults(ctx context.Context, actionID, filename string, r io.Reader) error {
	if actionID == "" {
		return workbench.ErrMissingID
	}

	if _, err := c.transport.Upload(ctx, "/api/v2/investigative_actions/"+actionID+"/upload", filename, r); err != nil {
		return fmt.Errorf("uploading results: %w", err)
	}

	return nil
}

package workbench

import (
	"fmt"
	"io"
	"sort"

	"gopkg.in/yaml.v3"
)

// Cardinality of a relationship. The Workbench schema does not reliably
// declare this, so it is explicit configuration on every descriptor.
type Cardinality string

const (
	// CardinalityOne marks a to-one relationship.
	CardinalityOne Cardinality = "one"

	// CardinalityMany marks a to-many relationship.
	CardinalityMany Cardinality = "many"
)

// RelationshipDescriptor describes one declared relationship.
type RelationshipDescriptor struct {
	Target      string      `json:"target"      yaml:"target"`
	Cardinality Cardinality `json:"cardinality" yaml:"cardinality"`
}

// Descriptor describes one resource type: its attribute names, its declared
// relationships, and which attributes the server treats as read-only.
// Descriptors are immutable once registered.
type Descriptor struct {
	Type          string                            `json:"type"                    yaml:"type"`
	Attributes    []string                          `json:"attributes"              yaml:"attributes"`
	Relationships map[string]RelationshipDescriptor `json:"relationships,omitempty" yaml:"relationships,omitempty"`
	ReadOnly      []string                          `json:"read_only,omitempty"     yaml:"read_only,omitempty"`

	attrSet map[string]struct{}
	roSet   map[string]struct{}
}

func (d *Descriptor) index() {
	d.attrSet = make(map[string]struct{}, len(d.Attributes))
	for _, name := range d.Attributes {
		d.attrSet[name] = struct{}{}
	}

	d.roSet = make(map[string]struct{}, len(d.ReadOnly))
	for _, name := range d.ReadOnly {
		d.roSet[name] = struct{}{}
	}
}

// HasAttribute reports whether name is a declared attribute.
func (d *Descriptor) HasAttribute(name string) bool {
	_, ok := d.attrSet[name]

	return ok
}

// IsReadOnly reports whether name is declared read-only. Read-only attributes
// may still be set locally; the server rejects writes to them on save.
func (d *Descriptor) IsReadOnly(name string) bool {
	_, ok := d.roSet[name]

	return ok
}

// Relationship returns the descriptor for a declared relationship name.
func (d *Descriptor) Relationship(name string) (RelationshipDescriptor, bool) {
	rel, ok := d.Relationships[name]

	return rel, ok
}

// Registry is the process-wide table of resource descriptors. It is populated
// once at session construction and read-only afterwards, so lookups need no
// locking.
type Registry struct {
	descriptors map[string]*Descriptor
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{descriptors: make(map[string]*Descriptor)}
}

// Register adds a descriptor. Registering the same type twice replaces the
// earlier descriptor; callers are expected to register only during setup.
func (r *Registry) Register(d *Descriptor) error {
	if d.Type == "" {
		return fmt.Errorf("descriptor has no resource type name")
	}

	for name, rel := range d.Relationships {
		if rel.Target == "" {
			return fmt.Errorf("relationship %q of %q has no target type", name, d.Type)
		}

		if rel.Cardinality != CardinalityOne && rel.Cardinality != CardinalityMany {
			return fmt.Errorf("relationship %q of %q has invalid cardinality %q", name, d.Type, rel.Cardinality)
		}
	}

	d.index()
	r.descriptors[d.Type] = d

	return nil
}

// Describe returns the descriptor for a resource type.
func (r *Registry) Describe(resourceType string) (*Descriptor, error) {
	d, ok := r.descriptors[resourceType]
	if !ok {
		return nil, &UnknownResourceTypeError{Type: resourceType}
	}

	return d, nil
}

// Types returns the registered resource type names, sorted.
func (r *Registry) Types() []string {
	types := make([]string, 0, len(r.descriptors))
	for name := range r.descriptors {
		types = append(types, name)
	}

	sort.Strings(types)

	return types
}

// LoadSchema reads descriptor definitions from a YAML document of the form:
//
//	resources:
//	  - type: investigations
//	    attributes: [title, ...]
//	    relationships:
//	      organization: {target: organizations, cardinality: one}
//	    read_only: [created_at, ...]
//
// and registers every entry.
func (r *Registry) LoadSchema(reader io.Reader) error {
	var schema struct {
		Resources []*Descriptor `yaml:"resources"`
	}

	if err := yaml.NewDecoder(reader).Decode(&schema); err != nil {
		return fmt.Errorf("decoding descriptor schema: %w", err)
	}

	for _, d := range schema.Resources {
		if err := r.Register(d); err != nil {
			return fmt.Errorf("registering %q: %w", d.Type, err)
		}
	}

	return nil
}

// auditFields are present and server-managed on every resource type.
var auditFields = []string{"created_at", "updated_at", "deleted_at"}

func withAudit(attrs ...string) []string {
	return append(attrs, auditFields...)
}

// DefaultRegistry returns a registry loaded with the Workbench resource types
// this client ships support for. Deployments with additional types register
// them on top or load a schema document.
//
//nolint:funlen // one block per resource type
func DefaultRegistry() *Registry {
	registry := NewRegistry()

	actorRels := map[string]RelationshipDescriptor{
		"organization": {Target: "organizations", Cardinality: CardinalityOne},
	}

	descriptors := []*Descriptor{
		{
			Type: "investigations",
			Attributes: withAudit(
				"title", "short_link", "status_updated_at", "review_requested_at",
				"critical_comment", "lead_description", "analyst_severity", "decision",
				"close_comment", "attack_vector", "attack_timing", "attack_lifecycle",
				"detection_type", "threat_type", "source_reason", "properties",
				"is_surge", "is_downgrade", "is_incident", "is_incident_status_updated_at",
				"has_hunting_status", "last_published_at", "last_published_value",
			),
			Relationships: map[string]RelationshipDescriptor{
				"organization":            {Target: "organizations", Cardinality: CardinalityOne},
				"assigned_to_actor":       {Target: "actors", Cardinality: CardinalityOne},
				"created_by":              {Target: "actors", Cardinality: CardinalityOne},
				"updated_by":              {Target: "actors", Cardinality: CardinalityOne},
				"lead_expel_alert":        {Target: "expel_alerts", Cardinality: CardinalityOne},
				"expel_alerts":            {Target: "expel_alerts", Cardinality: CardinalityMany},
				"comments":                {Target: "comments", Cardinality: CardinalityMany},
				"investigative_actions":   {Target: "investigative_actions", Cardinality: CardinalityMany},
				"investigation_findings":  {Target: "investigation_findings", Cardinality: CardinalityMany},
				"investigation_histories": {Target: "investigation_histories", Cardinality: CardinalityMany},
				"remediation_actions":     {Target: "remediation_actions", Cardinality: CardinalityMany},
				"files":                   {Target: "files", Cardinality: CardinalityMany},
			},
			ReadOnly: withAudit("short_link", "status_updated_at", "is_incident_status_updated_at"),
		},
		{
			Type: "expel_alerts",
			Attributes: withAudit(
				"expel_name", "expel_message", "expel_severity", "expel_signature_id",
				"expel_alias_name", "status", "close_reason", "close_comment",
				"alert_at", "disposition", "tuning_requested",
			),
			Relationships: map[string]RelationshipDescriptor{
				"organization":          {Target: "organizations", Cardinality: CardinalityOne},
				"assigned_to_actor":     {Target: "actors", Cardinality: CardinalityOne},
				"investigation":         {Target: "investigations", Cardinality: CardinalityOne},
				"vendor_alerts":         {Target: "vendor_alerts", Cardinality: CardinalityMany},
				"investigative_actions": {Target: "investigative_actions", Cardinality: CardinalityMany},
			},
			ReadOnly: withAudit("alert_at"),
		},
		{
			Type: "vendor_alerts",
			Attributes: withAudit(
				"vendor_message", "vendor_severity", "vendor_sig_name", "description",
				"evidence_summary", "evidence_activity_first_at", "evidence_activity_last_at",
				"first_seen_at", "original_alert_id", "status",
			),
			Relationships: map[string]RelationshipDescriptor{
				"organization":    {Target: "organizations", Cardinality: CardinalityOne},
				"security_device": {Target: "security_devices", Cardinality: CardinalityOne},
				"expel_alerts":    {Target: "expel_alerts", Cardinality: CardinalityMany},
				"evidences":       {Target: "vendor_alert_evidences", Cardinality: CardinalityMany},
			},
			ReadOnly: withAudit("first_seen_at"),
		},
		{
			Type: "vendor_alert_evidences",
			Attributes: withAudit(
				"evidence", "evidence_type",
			),
			Relationships: map[string]RelationshipDescriptor{
				"vendor_alert":           {Target: "vendor_alerts", Cardinality: CardinalityOne},
				"evidenced_expel_alerts": {Target: "expel_alerts", Cardinality: CardinalityMany},
			},
			ReadOnly: auditFields,
		},
		{
			Type: "investigative_actions",
			Attributes: withAudit(
				"title", "reason", "action_type", "capability_name", "instructions",
				"input_args", "results", "status", "close_reason", "activity_verified_by",
				"activity_authorized", "downgrade_reason", "taskability_action_id",
				"tasking_error", "rank", "deadline_at", "completed_at",
			),
			Relationships: map[string]RelationshipDescriptor{
				"investigation":                  {Target: "investigations", Cardinality: CardinalityOne},
				"organization":                   {Target: "organizations", Cardinality: CardinalityOne},
				"assigned_to_actor":              {Target: "actors", Cardinality: CardinalityOne},
				"created_by":                     {Target: "actors", Cardinality: CardinalityOne},
				"updated_by":                     {Target: "actors", Cardinality: CardinalityOne},
				"security_device":                {Target: "security_devices", Cardinality: CardinalityOne},
				"expel_alert":                    {Target: "expel_alerts", Cardinality: CardinalityOne},
				"investigative_action_histories": {Target: "investigative_action_histories", Cardinality: CardinalityMany},
				"files":                          {Target: "files", Cardinality: CardinalityMany},
			},
			ReadOnly: withAudit("results", "completed_at", "tasking_error"),
		},
		{
			Type:       "investigative_action_histories",
			Attributes: withAudit("action", "value"),
			Relationships: map[string]RelationshipDescriptor{
				"investigative_action": {Target: "investigative_actions", Cardinality: CardinalityOne},
				"investigation":        {Target: "investigations", Cardinality: CardinalityOne},
				"expel_alert":          {Target: "expel_alerts", Cardinality: CardinalityOne},
				"assigned_to_actor":    {Target: "actors", Cardinality: CardinalityOne},
				"created_by":           {Target: "actors", Cardinality: CardinalityOne},
			},
			ReadOnly: withAudit("action", "value"),
		},
		{
			Type:       "investigation_histories",
			Attributes: withAudit("action", "value", "is_incident"),
			Relationships: map[string]RelationshipDescriptor{
				"investigation":     {Target: "investigations", Cardinality: CardinalityOne},
				"organization":      {Target: "organizations", Cardinality: CardinalityOne},
				"assigned_to_actor": {Target: "actors", Cardinality: CardinalityOne},
				"created_by":        {Target: "actors", Cardinality: CardinalityOne},
			},
			ReadOnly: withAudit("action", "value", "is_incident"),
		},
		{
			Type:       "investigation_finding_histories",
			Attributes: withAudit("action", "value"),
			Relationships: map[string]RelationshipDescriptor{
				"investigation":         {Target: "investigations", Cardinality: CardinalityOne},
				"investigation_finding": {Target: "investigation_findings", Cardinality: CardinalityOne},
				"created_by":            {Target: "actors", Cardinality: CardinalityOne},
				"updated_by":            {Target: "actors", Cardinality: CardinalityOne},
			},
			ReadOnly: withAudit("action", "value"),
		},
		{
			Type:       "investigation_findings",
			Attributes: withAudit("title", "finding", "rank"),
			Relationships: map[string]RelationshipDescriptor{
				"investigation": {Target: "investigations", Cardinality: CardinalityOne},
				"created_by":    {Target: "actors", Cardinality: CardinalityOne},
				"updated_by":    {Target: "actors", Cardinality: CardinalityOne},
			},
			ReadOnly: auditFields,
		},
		{
			Type: "remediation_actions",
			Attributes: withAudit(
				"action", "action_type", "status", "status_updated_at", "comment",
				"reason", "detail_markdown", "values", "close_reason", "version",
			),
			Relationships: map[string]RelationshipDescriptor{
				"investigation":             {Target: "investigations", Cardinality: CardinalityOne},
				"organization":              {Target: "organizations", Cardinality: CardinalityOne},
				"assigned_to_actor":         {Target: "actors", Cardinality: CardinalityOne},
				"created_by":                {Target: "actors", Cardinality: CardinalityOne},
				"remediation_action_assets": {Target: "remediation_action_assets", Cardinality: CardinalityMany},
			},
			ReadOnly: withAudit("status_updated_at", "version"),
		},
		{
			Type:       "remediation_action_assets",
			Attributes: withAudit("asset_type", "value", "status", "category_name"),
			Relationships: map[string]RelationshipDescriptor{
				"remediation_action": {Target: "remediation_actions", Cardinality: CardinalityOne},
			},
			ReadOnly: auditFields,
		},
		{
			Type:       "comments",
			Attributes: withAudit("comment"),
			Relationships: map[string]RelationshipDescriptor{
				"investigation": {Target: "investigations", Cardinality: CardinalityOne},
				"organization":  {Target: "organizations", Cardinality: CardinalityOne},
				"created_by":    {Target: "actors", Cardinality: CardinalityOne},
				"updated_by":    {Target: "actors", Cardinality: CardinalityOne},
			},
			ReadOnly: auditFields,
		},
		{
			Type: "organizations",
			Attributes: withAudit(
				"name", "short_name", "industry", "hq_city", "hq_utc_offset",
				"is_surge", "service_renewal_at", "service_start_at", "users_count",
			),
			Relationships: map[string]RelationshipDescriptor{
				"organization_statuses": {Target: "organization_statuses", Cardinality: CardinalityMany},
				"security_devices":      {Target: "security_devices", Cardinality: CardinalityMany},
				"customer_devices":      {Target: "customer_devices", Cardinality: CardinalityMany},
				"investigations":        {Target: "investigations", Cardinality: CardinalityMany},
			},
			ReadOnly: withAudit("users_count"),
		},
		{
			Type:       "organization_statuses",
			Attributes: withAudit("enabled_login_types", "restrictions"),
			Relationships: map[string]RelationshipDescriptor{
				"organization": {Target: "organizations", Cardinality: CardinalityOne},
			},
			ReadOnly: auditFields,
		},
		{
			Type:          "actors",
			Attributes:    withAudit("actor_type", "display_name", "is_expel"),
			Relationships: actorRels,
			ReadOnly:      withAudit("actor_type", "display_name", "is_expel"),
		},
		{
			Type: "security_devices",
			Attributes: withAudit(
				"name", "description", "device_type", "device_spec", "location",
				"status", "status_details", "status_updated_at", "task_source",
				"plugin_slug",
			),
			Relationships: map[string]RelationshipDescriptor{
				"organization":  {Target: "organizations", Cardinality: CardinalityOne},
				"vendor_alerts": {Target: "vendor_alerts", Cardinality: CardinalityMany},
				"parent_security_device": {
					Target: "security_devices", Cardinality: CardinalityOne,
				},
			},
			ReadOnly: withAudit("status", "status_details", "status_updated_at"),
		},
		{
			Type: "customer_devices",
			Attributes: withAudit(
				"name", "device_type", "status", "status_updated_at", "last_seen_at",
				"install_code", "lifecycle_status", "location", "vpn_ip", "serial_number",
			),
			Relationships: map[string]RelationshipDescriptor{
				"organization": {Target: "organizations", Cardinality: CardinalityOne},
			},
			ReadOnly: withAudit("status", "status_updated_at", "last_seen_at"),
		},
		{
			Type:       "files",
			Attributes: withAudit("filename", "file_meta", "result_byte_size", "expel_file_type"),
			Relationships: map[string]RelationshipDescriptor{
				"organization":          {Target: "organizations", Cardinality: CardinalityOne},
				"investigations":        {Target: "investigations", Cardinality: CardinalityMany},
				"investigative_actions": {Target: "investigative_actions", Cardinality: CardinalityMany},
			},
			ReadOnly: withAudit("result_byte_size"),
		},
	}

	for _, d := range descriptors {
		// Registration of the static table cannot fail; descriptors are
		// validated by the package tests.
		_ = registry.Register(d)
	}

	return registry
}

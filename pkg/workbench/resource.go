package workbench

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// apiPrefix is the path prefix of every resource endpoint.
const apiPrefix = "/api/v2"

// RelationshipFieldPrefix marks a create-field as a pending to-one
// relationship link rather than an attribute: Create(map[string]interface{}{
// "title": "...", "relationship_investigation": invID}).
const RelationshipFieldPrefix = "relationship_"

// resourcePath builds an endpoint path. With linkage set, the path addresses
// the relationship linkage itself rather than the related records.
func resourcePath(resourceType, id, relation string, linkage bool) string {
	var b strings.Builder

	b.WriteString(apiPrefix)
	b.WriteString("/")
	b.WriteString(resourceType)

	if id != "" {
		b.WriteString("/")
		b.WriteString(id)
	}

	if relation != "" {
		if linkage {
			b.WriteString("/relationships")
		}

		b.WriteString("/")
		b.WriteString(relation)
	}

	return b.String()
}

// ResourceSet binds a descriptor registry to a transport and hands out one
// ResourceClient per registered resource type. It is read-mostly after
// construction and safe for concurrent use.
type ResourceSet struct {
	transport Transport
	registry  *Registry
}

// NewResourceSet creates a resource set over a transport and registry.
func NewResourceSet(transport Transport, registry *Registry) *ResourceSet {
	return &ResourceSet{transport: transport, registry: registry}
}

// Registry returns the descriptor registry backing this set.
func (s *ResourceSet) Registry() *Registry {
	return s.registry
}

// Resource returns the client for a resource type, failing with
// UnknownResourceTypeError for types the registry has no descriptor for.
func (s *ResourceSet) Resource(resourceType string) (*ResourceClient, error) {
	desc, err := s.registry.Describe(resourceType)
	if err != nil {
		return nil, err
	}

	return &ResourceClient{set: s, desc: desc}, nil
}

// ResourceClient is the typed accessor for one resource type: it dispatches
// get/create/search/delete against the type's endpoints.
type ResourceClient struct {
	set  *ResourceSet
	desc *Descriptor
}

// Type returns the resource type name this client is bound to.
func (c *ResourceClient) Type() string {
	return c.desc.Type
}

// Descriptor returns the immutable descriptor this client validates against.
func (c *ResourceClient) Descriptor() *Descriptor {
	return c.desc
}

// Get fetches one record by id.
func (c *ResourceClient) Get(ctx context.Context, id string) (*Instance, error) {
	if id == "" {
		return nil, ErrMissingID
	}

	resp, err := c.set.transport.Get(ctx, resourcePath(c.desc.Type, id, "", false), nil)
	if err != nil {
		return nil, fmt.Errorf("getting %s/%s: %w", c.desc.Type, id, err)
	}

	var doc Document
	if err := json.Unmarshal(resp.Body, &doc); err != nil {
		return nil, fmt.Errorf("parsing %s response: %w", c.desc.Type, err)
	}

	obj, err := doc.Resource()
	if err != nil {
		return nil, err
	}

	if obj == nil {
		return nil, &NotFoundError{Response: &ResponseError{StatusCode: resp.StatusCode}}
	}

	return newInstanceFromObject(c.set, c.desc, obj)
}

// Create builds an unsaved instance from the given fields. Field names
// carrying the RelationshipFieldPrefix are stored as pending to-one
// relationship links; everything else must be a declared attribute. No
// network call happens until Save.
func (c *ResourceClient) Create(fields map[string]interface{}) (*Instance, error) {
	inst := newInstance(c.set, c.desc)
	inst.isNew = true

	for name, value := range fields {
		if rel, ok := strings.CutPrefix(name, RelationshipFieldPrefix); ok {
			id, isString := value.(string)
			if !isString {
				return nil, fmt.Errorf("relationship field %q of %q wants a string id, got %T",
					name, c.desc.Type, value)
			}

			if err := inst.RelateOne(rel, id); err != nil {
				return nil, err
			}

			continue
		}

		if err := inst.SetAttr(name, value); err != nil {
			return nil, err
		}
	}

	return inst, nil
}

// Search composes server-side filters into a lazy cursor over matching
// records. Building the query is deferred to the first fetch; filter
// construction errors surface there, before any request is sent.
func (c *ResourceClient) Search(filters ...Filter) *Cursor {
	return newCursor(c.set, c.desc, resourcePath(c.desc.Type, "", "", false), filters...)
}

// List is a bare listing: a search with no filters.
func (c *ResourceClient) List() *Cursor {
	return c.Search()
}

// Delete removes a record by id without fetching it first.
func (c *ResourceClient) Delete(ctx context.Context, id string) error {
	if id == "" {
		return ErrMissingID
	}

	if _, err := c.set.transport.Delete(ctx, resourcePath(c.desc.Type, id, "", false)); err != nil {
		return fmt.Errorf("deleting %s/%s: %w", c.desc.Type, id, err)
	}

	return nil
}

// Update is the scoped-acquisition form: it fetches the record, hands it to
// fn for mutation, and saves it when fn returns nil. A non-nil error from fn
// skips the save entirely, so no partial write escapes an error path.
func (c *ResourceClient) Update(ctx context.Context, id string, fn func(*Instance) error) (*Instance, error) {
	inst, err := c.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := fn(inst); err != nil {
		return nil, err
	}

	if err := inst.Save(ctx); err != nil {
		return nil, err
	}

	return inst, nil
}

// OneOrNone runs the search with an effective page limit of one and returns
// the first match, or nil when nothing matched. It never requests a second
// page; callers needing uniqueness enforced use ExactlyOne.
func (c *ResourceClient) OneOrNone(ctx context.Context, filters ...Filter) (*Instance, error) {
	return c.Search(filters...).OneOrNone(ctx)
}

// Count returns the total number of matching records from the server's page
// metadata without iterating them.
func (c *ResourceClient) Count(ctx context.Context, filters ...Filter) (int, error) {
	return c.Search(filters...).Count(ctx)
}

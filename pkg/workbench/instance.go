package workbench

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
)

// Instance is a single mapped Workbench record: identity, attribute values,
// relationship references, and the dirty set of names changed locally since
// load or last save.
//
// An Instance is meant to be owned by one logical caller at a time. Callers
// sharing one instance across goroutines must serialize access themselves.
type Instance struct {
	set  *ResourceSet
	desc *Descriptor

	id    string
	attrs map[string]interface{}
	dirty map[string]struct{}

	relLinks map[string]string
	relIDs   map[string][]ResourceIdentifier
	relDirty map[string]struct{}

	// resolved caches to-one resolution results, including nil misses.
	resolved map[string]*Instance

	isNew   bool
	deleted bool
}

func newInstance(set *ResourceSet, desc *Descriptor) *Instance {
	return &Instance{
		set:      set,
		desc:     desc,
		attrs:    make(map[string]interface{}),
		dirty:    make(map[string]struct{}),
		relLinks: make(map[string]string),
		relIDs:   make(map[string][]ResourceIdentifier),
		relDirty: make(map[string]struct{}),
		resolved: make(map[string]*Instance),
	}
}

// newInstanceFromObject maps a wire resource object onto an Instance.
func newInstanceFromObject(set *ResourceSet, desc *Descriptor, obj *ResourceObject) (*Instance, error) {
	inst := newInstance(set, desc)
	inst.id = obj.ID

	for name, value := range obj.Attributes {
		inst.attrs[name] = value
	}

	for name, rel := range obj.Relationships {
		if related, ok := rel.Links["related"]; ok {
			inst.relLinks[name] = related
		}

		ids, ok, err := rel.Identifiers()
		if err != nil {
			return nil, fmt.Errorf("relationship %q of %s/%s: %w", name, obj.Type, obj.ID, err)
		}

		if ok {
			inst.relIDs[name] = ids
		}
	}

	return inst, nil
}

// Type returns the instance's resource type name.
func (i *Instance) Type() string { return i.desc.Type }

// ID returns the server-assigned identifier, empty until the first save.
func (i *Instance) ID() string { return i.id }

// IsNew reports whether the instance has never been saved.
func (i *Instance) IsNew() bool { return i.isNew }

// Attr returns an attribute value. Unset attributes return nil. Unknown
// names fail with UnknownAttributeError before any network call.
func (i *Instance) Attr(name string) (interface{}, error) {
	if !i.desc.HasAttribute(name) {
		return nil, &UnknownAttributeError{Type: i.desc.Type, Attribute: name}
	}

	return i.attrs[name], nil
}

// AttrString returns an attribute as a string, with the empty string for
// unset or null values.
func (i *Instance) AttrString(name string) (string, error) {
	value, err := i.Attr(name)
	if err != nil || value == nil {
		return "", err
	}

	return fmt.Sprintf("%v", value), nil
}

// SetAttr assigns an attribute locally and marks it dirty. Unknown names fail
// with UnknownAttributeError. Read-only attributes may be set locally; the
// server rejects them on save and the rejection surfaces as ValidationError —
// server-side validation is deliberately not duplicated here.
func (i *Instance) SetAttr(name string, value interface{}) error {
	if !i.desc.HasAttribute(name) {
		return &UnknownAttributeError{Type: i.desc.Type, Attribute: name}
	}

	i.attrs[name] = value
	i.dirty[name] = struct{}{}

	return nil
}

// SetAttrs assigns several attributes; it fails on the first unknown name
// without applying the rest.
func (i *Instance) SetAttrs(values map[string]interface{}) error {
	for name := range values {
		if !i.desc.HasAttribute(name) {
			return &UnknownAttributeError{Type: i.desc.Type, Attribute: name}
		}
	}

	for name, value := range values {
		i.attrs[name] = value
		i.dirty[name] = struct{}{}
	}

	return nil
}

// Attributes returns a copy of the attribute mapping.
func (i *Instance) Attributes() map[string]interface{} {
	out := make(map[string]interface{}, len(i.attrs))
	for name, value := range i.attrs {
		out[name] = value
	}

	return out
}

// Dirty returns the locally changed attribute and relationship names, sorted.
func (i *Instance) Dirty() []string {
	names := make([]string, 0, len(i.dirty)+len(i.relDirty))
	for name := range i.dirty {
		names = append(names, name)
	}

	for name := range i.relDirty {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

// RelateOne points a to-one relationship at the record with the given id and
// marks the relationship dirty.
func (i *Instance) RelateOne(name, id string) error {
	rel, ok := i.desc.Relationship(name)
	if !ok {
		return &UnknownRelationshipError{Type: i.desc.Type, Path: name}
	}

	if rel.Cardinality != CardinalityOne {
		return fmt.Errorf("relationship %q of %q is to-many, use Relate", name, i.desc.Type)
	}

	i.relIDs[name] = []ResourceIdentifier{{Type: rel.Target, ID: id}}
	i.relDirty[name] = struct{}{}
	delete(i.resolved, name)

	return nil
}

// Relate replaces a to-many relationship's membership with the given ids and
// marks the relationship dirty.
func (i *Instance) Relate(name string, ids ...string) error {
	rel, ok := i.desc.Relationship(name)
	if !ok {
		return &UnknownRelationshipError{Type: i.desc.Type, Path: name}
	}

	if rel.Cardinality != CardinalityMany {
		return fmt.Errorf("relationship %q of %q is to-one, use RelateOne", name, i.desc.Type)
	}

	identifiers := make([]ResourceIdentifier, 0, len(ids))
	for _, id := range ids {
		identifiers = append(identifiers, ResourceIdentifier{Type: rel.Target, ID: id})
	}

	i.relIDs[name] = identifiers
	i.relDirty[name] = struct{}{}

	return nil
}

// RelatedIDs returns the identifiers of a relationship from linkage data
// already on hand, without a network call. It returns nil when the server
// supplied no linkage for the relationship.
func (i *Instance) RelatedIDs(name string) ([]string, error) {
	if _, ok := i.desc.Relationship(name); !ok {
		return nil, &UnknownRelationshipError{Type: i.desc.Type, Path: name}
	}

	identifiers, ok := i.relIDs[name]
	if !ok {
		return nil, nil
	}

	ids := make([]string, 0, len(identifiers))
	for _, ident := range identifiers {
		ids = append(ids, ident.ID)
	}

	return ids, nil
}

// One resolves a to-one relationship to the full target instance, lazily on
// first access and cached thereafter. It returns nil when the relationship is
// empty on the server.
func (i *Instance) One(ctx context.Context, name string) (*Instance, error) {
	rel, ok := i.desc.Relationship(name)
	if !ok {
		return nil, &UnknownRelationshipError{Type: i.desc.Type, Path: name}
	}

	if rel.Cardinality != CardinalityOne {
		return nil, fmt.Errorf("relationship %q of %q is to-many, use Many", name, i.desc.Type)
	}

	if cached, ok := i.resolved[name]; ok {
		return cached, nil
	}

	target, err := i.set.Resource(rel.Target)
	if err != nil {
		return nil, err
	}

	// Prefer linkage ids over a related-link fetch: one canonical GET.
	if identifiers, ok := i.relIDs[name]; ok {
		if len(identifiers) == 0 {
			i.resolved[name] = nil

			return nil, nil
		}

		related, err := target.Get(ctx, identifiers[0].ID)
		if err != nil {
			return nil, err
		}

		i.resolved[name] = related

		return related, nil
	}

	resp, err := i.set.transport.Get(ctx, i.relatedPath(name), nil)
	if err != nil {
		return nil, err
	}

	var doc Document
	if err := json.Unmarshal(resp.Body, &doc); err != nil {
		return nil, fmt.Errorf("parsing related %q response: %w", name, err)
	}

	obj, err := doc.Resource()
	if err != nil {
		return nil, err
	}

	if obj == nil {
		i.resolved[name] = nil

		return nil, nil
	}

	related, err := newInstanceFromObject(i.set, target.desc, obj)
	if err != nil {
		return nil, err
	}

	i.resolved[name] = related

	return related, nil
}

// Many returns a cursor over the members of a to-many relationship. Pages are
// fetched lazily as the cursor is consumed, never eagerly.
func (i *Instance) Many(name string, filters ...Filter) (*Cursor, error) {
	rel, ok := i.desc.Relationship(name)
	if !ok {
		return nil, &UnknownRelationshipError{Type: i.desc.Type, Path: name}
	}

	if rel.Cardinality != CardinalityMany {
		return nil, fmt.Errorf("relationship %q of %q is to-one, use One", name, i.desc.Type)
	}

	target, err := i.set.Resource(rel.Target)
	if err != nil {
		return nil, err
	}

	return newCursor(i.set, target.desc, i.relatedPath(name), filters...), nil
}

func (i *Instance) relatedPath(name string) string {
	if link, ok := i.relLinks[name]; ok {
		if u, err := url.Parse(link); err == nil && u.Path != "" {
			return u.Path
		}
	}

	return resourcePath(i.desc.Type, i.id, name, false)
}

// Save writes local changes to the server. An unsaved instance issues a
// create with every set attribute and relationship; a saved one issues a
// partial update carrying only the dirty set, and an empty dirty set issues
// no request at all. On success the server's canonical values are merged back
// and the dirty set is cleared. Save never retries: ValidationError and
// ConflictError surface directly to the caller.
func (i *Instance) Save(ctx context.Context) error {
	if i.deleted {
		return ErrStaleHandle
	}

	if i.isNew {
		return i.saveNew(ctx)
	}

	if len(i.dirty) == 0 && len(i.relDirty) == 0 {
		return nil
	}

	if i.id == "" {
		return ErrMissingID
	}

	payload := ResourceObject{
		Type:       i.desc.Type,
		ID:         i.id,
		Attributes: make(map[string]interface{}, len(i.dirty)),
	}
	for name := range i.dirty {
		payload.Attributes[name] = i.attrs[name]
	}

	i.attachDirtyRelationships(&payload)

	resp, err := i.set.transport.Patch(ctx, resourcePath(i.desc.Type, i.id, "", false), requestDocument(payload))
	if err != nil {
		return fmt.Errorf("updating %s/%s: %w", i.desc.Type, i.id, err)
	}

	return i.merge(resp.Body)
}

func (i *Instance) saveNew(ctx context.Context) error {
	payload := ResourceObject{
		Type:       i.desc.Type,
		Attributes: i.Attributes(),
	}

	relationships := make(map[string]RelationshipObject, len(i.relIDs))

	for name, identifiers := range i.relIDs {
		linkage, err := marshalLinkage(i.desc, name, identifiers)
		if err != nil {
			return err
		}

		relationships[name] = RelationshipObject{Data: linkage}
	}

	if len(relationships) > 0 {
		payload.Relationships = relationships
	}

	resp, err := i.set.transport.Post(ctx, resourcePath(i.desc.Type, "", "", false), requestDocument(payload))
	if err != nil {
		return fmt.Errorf("creating %s: %w", i.desc.Type, err)
	}

	if err := i.merge(resp.Body); err != nil {
		return err
	}

	i.isNew = false

	return nil
}

func (i *Instance) attachDirtyRelationships(payload *ResourceObject) {
	if len(i.relDirty) == 0 {
		return
	}

	payload.Relationships = make(map[string]RelationshipObject, len(i.relDirty))

	for name := range i.relDirty {
		// Dirty relationships always carry valid linkage: RelateOne and
		// Relate validated them on assignment.
		linkage, _ := marshalLinkage(i.desc, name, i.relIDs[name])
		payload.Relationships[name] = RelationshipObject{Data: linkage}
	}
}

func marshalLinkage(desc *Descriptor, name string, identifiers []ResourceIdentifier) (json.RawMessage, error) {
	rel, ok := desc.Relationship(name)
	if !ok {
		return nil, &UnknownRelationshipError{Type: desc.Type, Path: name}
	}

	if rel.Cardinality == CardinalityOne {
		if len(identifiers) == 0 {
			return json.RawMessage("null"), nil
		}

		return json.Marshal(identifiers[0])
	}

	return json.Marshal(identifiers)
}

// merge folds the server's canonical document back into the instance. The
// server may normalize or compute fields, so its values win.
func (i *Instance) merge(body []byte) error {
	var doc Document
	if err := json.Unmarshal(body, &doc); err != nil {
		return fmt.Errorf("parsing %s response: %w", i.desc.Type, err)
	}

	obj, err := doc.Resource()
	if err != nil {
		return err
	}

	if obj != nil {
		if obj.ID != "" {
			i.id = obj.ID
		}

		for name, value := range obj.Attributes {
			i.attrs[name] = value
		}

		for name, rel := range obj.Relationships {
			if related, ok := rel.Links["related"]; ok {
				i.relLinks[name] = related
			}

			if ids, ok, err := rel.Identifiers(); err == nil && ok {
				i.relIDs[name] = ids
			}
		}
	}

	i.dirty = make(map[string]struct{})
	i.relDirty = make(map[string]struct{})

	return nil
}

// Delete removes the record server-side. On success the instance becomes a
// dangling handle: a later Save fails with ErrStaleHandle. Deleting a record
// that is already gone surfaces the server's NotFoundError and the handle
// goes stale the same way.
func (i *Instance) Delete(ctx context.Context) error {
	if i.deleted {
		return ErrStaleHandle
	}

	if i.id == "" {
		return ErrMissingID
	}

	if _, err := i.set.transport.Delete(ctx, resourcePath(i.desc.Type, i.id, "", false)); err != nil {
		if IsNotFound(err) {
			i.deleted = true
		}

		return fmt.Errorf("deleting %s/%s: %w", i.desc.Type, i.id, err)
	}

	i.deleted = true

	return nil
}

// Reload replaces local state with the server's current record, discarding
// local edits.
func (i *Instance) Reload(ctx context.Context) error {
	if i.deleted {
		return ErrStaleHandle
	}

	if i.id == "" {
		return ErrMissingID
	}

	resp, err := i.set.transport.Get(ctx, resourcePath(i.desc.Type, i.id, "", false), nil)
	if err != nil {
		return fmt.Errorf("reloading %s/%s: %w", i.desc.Type, i.id, err)
	}

	i.attrs = make(map[string]interface{})
	i.resolved = make(map[string]*Instance)

	return i.merge(resp.Body)
}

// requestDocument wraps a resource object in a JSON:API request document.
func requestDocument(obj ResourceObject) map[string]interface{} {
	return map[string]interface{}{"data": obj}
}

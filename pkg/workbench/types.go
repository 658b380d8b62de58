package workbench

import (
	"encoding/json"
	"fmt"
)

// Document is a top-level JSON:API document as returned by the Workbench API.
// Data holds either a single resource object or an array of them; use
// Resources or Resource to decode it.
type Document struct {
	Data     json.RawMessage  `json:"data,omitempty"     yaml:"data,omitempty"`
	Included []ResourceObject `json:"included,omitempty" yaml:"included,omitempty"`
	Links    Links            `json:"links,omitempty"    yaml:"links,omitempty"`
	Meta     *DocumentMeta    `json:"meta,omitempty"     yaml:"meta,omitempty"`
	Errors   []APIError       `json:"errors,omitempty"   yaml:"errors,omitempty"`
}

// Links maps link names (self, related, next, prev) to URLs.
type Links map[string]string

// DocumentMeta carries document-level metadata.
type DocumentMeta struct {
	Page *PageMeta `json:"page,omitempty" yaml:"page,omitempty"`
}

// PageMeta is the pagination metadata block of a list document.
type PageMeta struct {
	Total  int `json:"total"  yaml:"total"`
	Limit  int `json:"limit"  yaml:"limit"`
	Offset int `json:"offset" yaml:"offset"`
}

// ResourceObject is a single JSON:API resource object on the wire.
type ResourceObject struct {
	Type          string                        `json:"type"                    yaml:"type"`
	ID            string                        `json:"id,omitempty"            yaml:"id,omitempty"`
	Attributes    map[string]interface{}        `json:"attributes,omitempty"    yaml:"attributes,omitempty"`
	Relationships map[string]RelationshipObject `json:"relationships,omitempty" yaml:"relationships,omitempty"`
	Links         Links                         `json:"links,omitempty"         yaml:"links,omitempty"`
}

// RelationshipObject is the relationship block of a resource object. Data is
// the optional linkage: a single resource identifier, an array of them, or
// absent when the server only supplies links.
type RelationshipObject struct {
	Links Links             `json:"links,omitempty" yaml:"links,omitempty"`
	Data  json.RawMessage   `json:"data,omitempty"  yaml:"data,omitempty"`
	Meta  *RelationshipMeta `json:"meta,omitempty"  yaml:"meta,omitempty"`
}

// RelationshipMeta carries server-declared relationship metadata.
type RelationshipMeta struct {
	Relation string `json:"relation,omitempty" yaml:"relation,omitempty"`
	ReadOnly bool   `json:"readOnly,omitempty" yaml:"readOnly,omitempty"`
}

// ResourceIdentifier is a type/id pair used in relationship linkage.
type ResourceIdentifier struct {
	Type string `json:"type" yaml:"type"`
	ID   string `json:"id"   yaml:"id"`
}

// Resources decodes the document data as a list of resource objects. A
// single-object data member is returned as a one-element slice, matching the
// server's habit of returning bare objects from item endpoints.
func (d *Document) Resources() ([]ResourceObject, error) {
	if len(d.Data) == 0 || string(d.Data) == "null" {
		return nil, nil
	}

	if d.Data[0] == '[' {
		var many []ResourceObject
		if err := json.Unmarshal(d.Data, &many); err != nil {
			return nil, fmt.Errorf("parsing resource list: %w", err)
		}

		return many, nil
	}

	var one ResourceObject
	if err := json.Unmarshal(d.Data, &one); err != nil {
		return nil, fmt.Errorf("parsing resource object: %w", err)
	}

	return []ResourceObject{one}, nil
}

// Resource decodes the document data as a single resource object. It returns
// nil when the data member is absent or empty.
func (d *Document) Resource() (*ResourceObject, error) {
	objs, err := d.Resources()
	if err != nil {
		return nil, err
	}

	if len(objs) == 0 {
		return nil, nil
	}

	return &objs[0], nil
}

// Identifiers decodes the relationship linkage as resource identifiers. A
// to-one linkage is returned as a one-element slice; absent or null linkage
// returns nil with ok=false.
func (r *RelationshipObject) Identifiers() ([]ResourceIdentifier, bool, error) {
	if len(r.Data) == 0 || string(r.Data) == "null" {
		return nil, false, nil
	}

	if r.Data[0] == '[' {
		var many []ResourceIdentifier
		if err := json.Unmarshal(r.Data, &many); err != nil {
			return nil, false, fmt.Errorf("parsing relationship linkage: %w", err)
		}

		return many, true, nil
	}

	var one ResourceIdentifier
	if err := json.Unmarshal(r.Data, &one); err != nil {
		return nil, false, fmt.Errorf("parsing relationship linkage: %w", err)
	}

	return []ResourceIdentifier{one}, true, nil
}

// Capabilities is the decoded capabilities document for an organization,
// keyed by security device vendor, then capability name.
type Capabilities struct {
	OrganizationID string                            `json:"organization_id" yaml:"organization_id"`
	Vendors        map[string]map[string]interface{} `json:"vendors"         yaml:"vendors"`
}

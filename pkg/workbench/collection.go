package workbench

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
)

// Cursor is a lazy, forward-only view over the pages of a search or listing.
// Pages are fetched strictly in order as the cursor is consumed, and a cursor
// never rewinds: re-running the query means calling Search again, which
// re-issues the first-page request.
//
// A Cursor is owned by a single logical iteration; it is not safe for
// concurrent use.
type Cursor struct {
	set     *ResourceSet
	desc    *Descriptor
	path    string
	filters []Filter

	query      url.Values
	queryBuilt bool

	started   bool
	exhausted bool
	nextURL   string

	buf []*Instance
	idx int

	included []*Instance

	total    int
	hasTotal bool
}

func newCursor(set *ResourceSet, desc *Descriptor, path string, filters ...Filter) *Cursor {
	return &Cursor{set: set, desc: desc, path: path, filters: filters}
}

func (c *Cursor) buildQuery() (url.Values, error) {
	if !c.queryBuilt {
		query, err := BuildQuery(c.desc, c.filters...)
		if err != nil {
			return nil, err
		}

		c.query = query
		c.queryBuilt = true
	}

	return c.query, nil
}

// Next returns the next instance, fetching the next page only when the
// current one is drained. It returns ErrNoMoreItems at exhaustion.
func (c *Cursor) Next(ctx context.Context) (*Instance, error) {
	for c.idx >= len(c.buf) {
		if c.exhausted {
			return nil, ErrNoMoreItems
		}

		if err := c.fetchNextPage(ctx); err != nil {
			return nil, err
		}
	}

	inst := c.buf[c.idx]
	c.idx++

	return inst, nil
}

func (c *Cursor) fetchNextPage(ctx context.Context) error {
	var (
		path  string
		query url.Values
		err   error
	)

	switch {
	case !c.started:
		path = c.path

		query, err = c.buildQuery()
		if err != nil {
			return err
		}
	case c.nextURL == "":
		c.exhausted = true

		return nil
	default:
		next, parseErr := url.Parse(c.nextURL)
		if parseErr != nil {
			return fmt.Errorf("parsing next page link %q: %w", c.nextURL, parseErr)
		}

		path = next.Path
		query = next.Query()
	}

	c.started = true
	c.nextURL = ""

	resp, err := c.set.transport.Get(ctx, path, query)
	if err != nil {
		return fmt.Errorf("fetching %s page: %w", c.desc.Type, err)
	}

	return c.consumePage(resp.Body)
}

func (c *Cursor) consumePage(body []byte) error {
	var doc Document
	if err := json.Unmarshal(body, &doc); err != nil {
		return fmt.Errorf("parsing %s page: %w", c.desc.Type, err)
	}

	if doc.Meta != nil && doc.Meta.Page != nil {
		c.total = doc.Meta.Page.Total
		c.hasTotal = true
	}

	objs, err := doc.Resources()
	if err != nil {
		return err
	}

	included, byIdentity, err := c.parseIncluded(doc.Included)
	if err != nil {
		return err
	}

	c.included = append(c.included, included...)

	c.buf = c.buf[:0]
	c.idx = 0

	for idx := range objs {
		inst, err := newInstanceFromObject(c.set, c.desc, &objs[idx])
		if err != nil {
			return err
		}

		preResolve(inst, byIdentity)
		c.buf = append(c.buf, inst)
	}

	// An empty page or a missing next link both end the sequence.
	if next, ok := doc.Links["next"]; ok && next != "" && len(c.buf) > 0 {
		c.nextURL = next
	} else {
		c.exhausted = true
	}

	return nil
}

func (c *Cursor) parseIncluded(objs []ResourceObject) ([]*Instance, map[ResourceIdentifier]*Instance, error) {
	if len(objs) == 0 {
		return nil, nil, nil
	}

	instances := make([]*Instance, 0, len(objs))
	byIdentity := make(map[ResourceIdentifier]*Instance, len(objs))

	for idx := range objs {
		obj := &objs[idx]

		desc, err := c.set.registry.Describe(obj.Type)
		if err != nil {
			// Included resources of unregistered types are skipped rather
			// than failing the page: the caller never asked for them by name.
			continue
		}

		inst, err := newInstanceFromObject(c.set, desc, obj)
		if err != nil {
			return nil, nil, err
		}

		instances = append(instances, inst)
		byIdentity[ResourceIdentifier{Type: obj.Type, ID: obj.ID}] = inst
	}

	return instances, byIdentity, nil
}

// preResolve seeds to-one resolution caches from compound-document includes,
// so One on the yielded instance needs no network call.
func preResolve(inst *Instance, byIdentity map[ResourceIdentifier]*Instance) {
	if len(byIdentity) == 0 {
		return
	}

	for name, identifiers := range inst.relIDs {
		rel, ok := inst.desc.Relationship(name)
		if !ok || rel.Cardinality != CardinalityOne || len(identifiers) == 0 {
			continue
		}

		if related, ok := byIdentity[identifiers[0]]; ok {
			inst.resolved[name] = related
		}
	}
}

// ForEach applies fn to every remaining instance, stopping at the first
// error from fn or from a page fetch.
func (c *Cursor) ForEach(ctx context.Context, fn func(*Instance) error) error {
	for {
		inst, err := c.Next(ctx)
		if errors.Is(err, ErrNoMoreItems) {
			return nil
		}

		if err != nil {
			return err
		}

		if err := fn(inst); err != nil {
			return err
		}
	}
}

// All drains the cursor into a slice. Prefer ForEach or Next for result sets
// of unknown size.
func (c *Cursor) All(ctx context.Context) ([]*Instance, error) {
	var out []*Instance

	err := c.ForEach(ctx, func(inst *Instance) error {
		out = append(out, inst)

		return nil
	})
	if err != nil {
		return nil, err
	}

	return out, nil
}

// Included returns instances from compound-document included blocks seen so
// far, in page order.
func (c *Cursor) Included() []*Instance {
	return c.included
}

// OneOrNone issues a single request with an effective page limit of one and
// returns the first match or nil. It never requests a second page and does
// not disturb the cursor's own pagination state. When more than one record
// matches, the extras are ignored; use ExactlyOne to treat that as an error.
func (c *Cursor) OneOrNone(ctx context.Context) (*Instance, error) {
	page, err := c.oneShot(ctx, 1)
	if err != nil {
		return nil, err
	}

	if len(page) == 0 {
		return nil, nil
	}

	return page[0], nil
}

// ExactlyOne is the strict form of OneOrNone: it fails with
// ErrMultipleResults when the query matches more than one record and with
// ErrNoMoreItems when it matches none.
func (c *Cursor) ExactlyOne(ctx context.Context) (*Instance, error) {
	page, err := c.oneShot(ctx, 2)
	if err != nil {
		return nil, err
	}

	switch len(page) {
	case 0:
		return nil, ErrNoMoreItems
	case 1:
		return page[0], nil
	default:
		return nil, ErrMultipleResults
	}
}

// Count returns the total number of matching records. A cursor that has
// already seen page metadata answers from it; otherwise one limit-one
// request is issued for its metadata alone.
func (c *Cursor) Count(ctx context.Context) (int, error) {
	if c.hasTotal {
		return c.total, nil
	}

	query, err := c.buildQuery()
	if err != nil {
		return 0, err
	}

	resp, err := c.set.transport.Get(ctx, c.path, overrideLimit(query, 1))
	if err != nil {
		return 0, fmt.Errorf("counting %s: %w", c.desc.Type, err)
	}

	var doc Document
	if err := json.Unmarshal(resp.Body, &doc); err != nil {
		return 0, fmt.Errorf("parsing %s count response: %w", c.desc.Type, err)
	}

	if doc.Meta == nil || doc.Meta.Page == nil {
		return 0, fmt.Errorf("%s count response carries no page metadata", c.desc.Type)
	}

	return doc.Meta.Page.Total, nil
}

// oneShot issues one page request with the given limit, independent of the
// cursor's pagination state.
func (c *Cursor) oneShot(ctx context.Context, limit int) ([]*Instance, error) {
	query, err := c.buildQuery()
	if err != nil {
		return nil, err
	}

	resp, err := c.set.transport.Get(ctx, c.path, overrideLimit(query, limit))
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", c.desc.Type, err)
	}

	var doc Document
	if err := json.Unmarshal(resp.Body, &doc); err != nil {
		return nil, fmt.Errorf("parsing %s response: %w", c.desc.Type, err)
	}

	objs, err := doc.Resources()
	if err != nil {
		return nil, err
	}

	instances := make([]*Instance, 0, len(objs))

	for idx := range objs {
		inst, err := newInstanceFromObject(c.set, c.desc, &objs[idx])
		if err != nil {
			return nil, err
		}

		instances = append(instances, inst)
	}

	return instances, nil
}

func overrideLimit(query url.Values, limit int) url.Values {
	out := url.Values{}
	for key, values := range query {
		out[key] = append([]string(nil), values...)
	}

	out.Set("page[limit]", strconv.Itoa(limit))

	return out
}

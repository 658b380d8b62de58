package workbench_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/expel-io/workbench-go/pkg/workbench"
)

const (
	alertsPageOne = `{
		"data": [
			{"type": "expel_alerts", "id": "alert-1", "attributes": {"expel_name": "one"}},
			{"type": "expel_alerts", "id": "alert-2", "attributes": {"expel_name": "two"}}
		],
		"links": {"next": "https://workbench.example/api/v2/expel_alerts?page%5Boffset%5D=2"},
		"meta": {"page": {"total": 3, "limit": 2, "offset": 0}}
	}`

	alertsPageTwo = `{
		"data": [
			{"type": "expel_alerts", "id": "alert-3", "attributes": {"expel_name": "three"}}
		],
		"links": {},
		"meta": {"page": {"total": 3, "limit": 2, "offset": 2}}
	}`
)

func stubAlertPages(transport *fakeTransport) {
	transport.stub("GET", "/api/v2/expel_alerts", alertsPageOne)
	transport.stub("GET", "/api/v2/expel_alerts", alertsPageTwo)
}

func alertsClient(t *testing.T, set *workbench.ResourceSet) *workbench.ResourceClient {
	t.Helper()

	alerts, err := set.Resource("expel_alerts")
	require.NoError(t, err)

	return alerts
}

func TestCursor_SearchIsLazy(t *testing.T) {
	t.Parallel()

	transport, set := newTestSet(t)
	alerts := alertsClient(t, set)

	_ = alerts.Search(workbench.Where("status", "OPEN"))

	assert.Empty(t, transport.requests, "building a cursor must not issue requests")
}

func TestCursor_NextPagesOnDemand(t *testing.T) {
	t.Parallel()

	transport, set := newTestSet(t)
	stubAlertPages(transport)
	alerts := alertsClient(t, set)

	ctx := context.Background()
	cursor := alerts.Search()

	first, err := cursor.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, "alert-1", first.ID())
	assert.Len(t, transport.requests, 1, "page two must not be fetched yet")

	second, err := cursor.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, "alert-2", second.ID())
	assert.Len(t, transport.requests, 1)

	third, err := cursor.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, "alert-3", third.ID())
	assert.Len(t, transport.requests, 2)

	_, err = cursor.Next(ctx)
	require.ErrorIs(t, err, workbench.ErrNoMoreItems)

	// Exhaustion is stable.
	_, err = cursor.Next(ctx)
	require.ErrorIs(t, err, workbench.ErrNoMoreItems)
	assert.Len(t, transport.requests, 2)
}

func TestCursor_FirstPageCarriesFilterQuery(t *testing.T) {
	t.Parallel()

	transport, set := newTestSet(t)
	stubAlertPages(transport)
	alerts := alertsClient(t, set)

	cursor := alerts.Search(
		workbench.Where("status", workbench.Neq("CLOSED")),
		workbench.Limit(2),
	)

	_, err := cursor.Next(context.Background())
	require.NoError(t, err)

	query := transport.requests[0].Query
	assert.Equal(t, []string{"!CLOSED"}, query["filter[status]"])
	assert.Equal(t, "2", query.Get("page[limit]"))
	assert.Equal(t, []string{"+created_at", "+id"}, query["sort"])
}

func TestCursor_NextPageFollowsServerLink(t *testing.T) {
	t.Parallel()

	transport, set := newTestSet(t)
	stubAlertPages(transport)
	alerts := alertsClient(t, set)

	_, err := alerts.Search().All(context.Background())
	require.NoError(t, err)

	require.Len(t, transport.requests, 2)
	assert.Equal(t, "/api/v2/expel_alerts", transport.requests[1].Path)
	assert.Equal(t, "2", transport.requests[1].Query.Get("page[offset]"))
}

func TestCursor_FreshSearchRestartsFromFirstPage(t *testing.T) {
	t.Parallel()

	transport, set := newTestSet(t)
	transport.stub("GET", "/api/v2/expel_alerts", alertsPageTwo)
	alerts := alertsClient(t, set)

	ctx := context.Background()

	first, err := alerts.Search().All(ctx)
	require.NoError(t, err)
	require.Len(t, first, 1)

	second, err := alerts.Search().All(ctx)
	require.NoError(t, err)
	require.Len(t, second, 1)

	assert.Len(t, transport.requests, 2, "each Search re-issues the first page request")
}

func TestCursor_FilterErrorSurfacesBeforeAnyRequest(t *testing.T) {
	t.Parallel()

	transport, set := newTestSet(t)
	alerts := alertsClient(t, set)

	cursor := alerts.Search(workbench.Where("status", workbench.Gt(nil)))

	_, err := cursor.Next(context.Background())
	require.Error(t, err)

	var operandErr *workbench.InvalidFilterOperandError
	require.ErrorAs(t, err, &operandErr)
	assert.Empty(t, transport.requests)
}

func TestCursor_ForEachStopsOnCallbackError(t *testing.T) {
	t.Parallel()

	transport, set := newTestSet(t)
	stubAlertPages(transport)
	alerts := alertsClient(t, set)

	seen := 0
	err := alerts.Search().ForEach(context.Background(), func(*workbench.Instance) error {
		seen++
		if seen == 2 {
			return assert.AnError
		}

		return nil
	})
	require.ErrorIs(t, err, assert.AnError)
	assert.Equal(t, 2, seen)
	assert.Len(t, transport.requests, 1, "iteration stopped before page two")
}

func TestCursor_EmptyFirstPage(t *testing.T) {
	t.Parallel()

	transport, set := newTestSet(t)
	transport.stub("GET", "/api/v2/expel_alerts", `{"data": [], "links": {}}`)
	alerts := alertsClient(t, set)

	all, err := alerts.Search().All(context.Background())
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestCursor_OneOrNone(t *testing.T) {
	t.Parallel()

	transport, set := newTestSet(t)
	transport.stub("GET", "/api/v2/expel_alerts", alertsPageOne)
	alerts := alertsClient(t, set)

	inst, err := alerts.OneOrNone(context.Background(), workbench.Where("status", "OPEN"))
	require.NoError(t, err)
	require.NotNil(t, inst)
	assert.Equal(t, "alert-1", inst.ID())

	// A single request with an effective limit of one; the server link to
	// page two is never followed.
	require.Len(t, transport.requests, 1)
	assert.Equal(t, "1", transport.requests[0].Query.Get("page[limit]"))
}

func TestCursor_OneOrNoneEmpty(t *testing.T) {
	t.Parallel()

	transport, set := newTestSet(t)
	transport.stub("GET", "/api/v2/expel_alerts", `{"data": [], "links": {}}`)
	alerts := alertsClient(t, set)

	inst, err := alerts.OneOrNone(context.Background())
	require.NoError(t, err)
	assert.Nil(t, inst)
}

func TestCursor_ExactlyOne(t *testing.T) {
	t.Parallel()

	transport, set := newTestSet(t)
	transport.stub("GET", "/api/v2/expel_alerts", alertsPageTwo)
	alerts := alertsClient(t, set)

	inst, err := alerts.Search().ExactlyOne(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "alert-3", inst.ID())

	assert.Equal(t, "2", transport.requests[0].Query.Get("page[limit]"))
}

func TestCursor_ExactlyOneRejectsMultiple(t *testing.T) {
	t.Parallel()

	transport, set := newTestSet(t)
	transport.stub("GET", "/api/v2/expel_alerts", alertsPageOne)
	alerts := alertsClient(t, set)

	_, err := alerts.Search().ExactlyOne(context.Background())
	require.ErrorIs(t, err, workbench.ErrMultipleResults)
}

func TestCursor_ExactlyOneRejectsNone(t *testing.T) {
	t.Parallel()

	transport, set := newTestSet(t)
	transport.stub("GET", "/api/v2/expel_alerts", `{"data": [], "links": {}}`)
	alerts := alertsClient(t, set)

	_, err := alerts.Search().ExactlyOne(context.Background())
	require.ErrorIs(t, err, workbench.ErrNoMoreItems)
}

func TestCursor_CountUsesPageMetadata(t *testing.T) {
	t.Parallel()

	transport, set := newTestSet(t)
	transport.stub("GET", "/api/v2/expel_alerts", alertsPageOne)
	alerts := alertsClient(t, set)

	total, err := alerts.Count(context.Background(), workbench.Where("status", "OPEN"))
	require.NoError(t, err)
	assert.Equal(t, 3, total)

	require.Len(t, transport.requests, 1)
	assert.Equal(t, "1", transport.requests[0].Query.Get("page[limit]"))
}

func TestCursor_CountAnswersFromSeenMetadata(t *testing.T) {
	t.Parallel()

	transport, set := newTestSet(t)
	stubAlertPages(transport)
	alerts := alertsClient(t, set)

	ctx := context.Background()
	cursor := alerts.Search()

	_, err := cursor.Next(ctx)
	require.NoError(t, err)

	total, err := cursor.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Len(t, transport.requests, 1, "count reuses metadata already seen")
}

func TestCursor_IncludedPreResolvesToOne(t *testing.T) {
	t.Parallel()

	transport, set := newTestSet(t)
	transport.stub("GET", "/api/v2/investigations", `{
		"data": [{
			"type": "investigations",
			"id": "inv-1",
			"attributes": {"title": "Suspicious login"},
			"relationships": {
				"organization": {"data": {"type": "organizations", "id": "org-1"}}
			}
		}],
		"included": [
			{"type": "organizations", "id": "org-1", "attributes": {"name": "Acme"}},
			{"type": "unregistered_things", "id": "x-1", "attributes": {}}
		],
		"links": {}
	}`)

	investigations, err := set.Resource("investigations")
	require.NoError(t, err)

	ctx := context.Background()
	cursor := investigations.Search(workbench.Include("organization"))

	inv, err := cursor.Next(ctx)
	require.NoError(t, err)

	requestsAfterPage := len(transport.requests)

	org, err := inv.One(ctx, "organization")
	require.NoError(t, err)
	require.NotNil(t, org)

	name, err := org.AttrString("name")
	require.NoError(t, err)
	assert.Equal(t, "Acme", name)

	assert.Len(t, transport.requests, requestsAfterPage, "included resource resolved without a request")

	// Included records of unregistered types are skipped, not fatal.
	assert.Len(t, cursor.Included(), 1)
}

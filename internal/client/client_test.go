package client_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/expel-io/workbench-go/internal/client"
	"github.com/expel-io/workbench-go/pkg/workbench"
)

func newTestClient(t *testing.T, handler http.Handler) workbench.Client {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	session, err := client.New(context.Background(), &workbench.Config{
		APIEndpoint: server.URL,
		APIKey:      "test-key",
	})
	require.NoError(t, err)

	return session
}

func TestNew_RequiresCredentials(t *testing.T) {
	t.Parallel()

	_, err := client.New(context.Background(), &workbench.Config{APIEndpoint: "https://example.test"})
	require.ErrorIs(t, err, client.ErrNoCredentials)
}

func TestClient_SearchEndToEnd(t *testing.T) {
	t.Parallel()

	session := newTestClient(t, http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		assert.Equal(t, "/api/v2/investigations", request.URL.Path)
		assert.Equal(t, "Bearer test-key", request.Header.Get("Authorization"))

		query := request.URL.Query()
		assert.Equal(t, "␀true", query.Get("filter[decision]"))
		assert.Equal(t, []string{"+created_at", "+id"}, query["sort"])

		_, _ = writer.Write([]byte(`{
			"data": [{"type": "investigations", "id": "inv-1", "attributes": {"title": "phish"}}],
			"links": {}
		}`))
	}))

	open, err := session.Investigations().Search(
		workbench.Where("decision", workbench.IsNull()),
	).All(context.Background())
	require.NoError(t, err)

	require.Len(t, open, 1)
	assert.Equal(t, "inv-1", open[0].ID())
}

func TestClient_ResourceForUnknownType(t *testing.T) {
	t.Parallel()

	session := newTestClient(t, http.NewServeMux())

	_, err := session.Resource("no_such_type")
	require.Error(t, err)

	var typeErr *workbench.UnknownResourceTypeError
	require.ErrorAs(t, err, &typeErr)
}

func TestClient_TypedAccessorsShareRegistry(t *testing.T) {
	t.Parallel()

	session := newTestClient(t, http.NewServeMux())

	assert.Equal(t, "investigations", session.Investigations().Type())
	assert.Equal(t, "expel_alerts", session.ExpelAlerts().Type())
	assert.Equal(t, "remediation_actions", session.RemediationActions().Type())
	assert.Equal(t, "actors", session.Actors().Type())
	assert.Equal(t, "files", session.Files().Type())
}

func TestClient_CreateAutoInvAction(t *testing.T) {
	t.Parallel()

	session := newTestClient(t, http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		assert.Equal(t, http.MethodPost, request.Method)
		assert.Equal(t, "/api/v2/investigative_actions", request.URL.Path)

		var doc struct {
			Data workbench.ResourceObject `json:"data"`
		}

		require.NoError(t, json.NewDecoder(request.Body).Decode(&doc))
		assert.Equal(t, "investigative_actions", doc.Data.Type)
		assert.Equal(t, "TASKABILITY", doc.Data.Attributes["action_type"])
		assert.Equal(t, "acquire_file", doc.Data.Attributes["capability_name"])
		assert.Equal(t, "RUNNING", doc.Data.Attributes["status"])

		for _, rel := range []string{"investigation", "organization", "security_device", "created_by"} {
			assert.Contains(t, doc.Data.Relationships, rel)
		}

		investigation := doc.Data.Relationships["investigation"]
		ids, ok, err := investigation.Identifiers()
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, "inv-1", ids[0].ID)

		writer.WriteHeader(http.StatusCreated)
		_, _ = writer.Write([]byte(`{
			"data": {"type": "investigative_actions", "id": "act-1",
			         "attributes": {"status": "RUNNING"}}
		}`))
	}))

	action, err := session.CreateAutoInvAction(context.Background(), &workbench.AutoActionRequest{
		OrganizationID:   "org-1",
		InvestigationID:  "inv-1",
		SecurityDeviceID: "dev-1",
		CreatedByID:      "actor-1",
		CapabilityName:   "acquire_file",
		InputArgs:        map[string]interface{}{"path": "/tmp/a"},
		Title:            "Acquire file",
		Reason:           "Pull the dropped binary",
	})
	require.NoError(t, err)
	assert.Equal(t, "act-1", action.ID())
	assert.False(t, action.IsNew())
}

func TestClient_CreateManualInvAction(t *testing.T) {
	t.Parallel()

	session := newTestClient(t, http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		var doc struct {
			Data workbench.ResourceObject `json:"data"`
		}

		require.NoError(t, json.NewDecoder(request.Body).Decode(&doc))
		assert.Equal(t, "MANUAL", doc.Data.Attributes["action_type"])
		assert.Equal(t, "READY_FOR_ANALYSIS", doc.Data.Attributes["status"])
		assert.Contains(t, doc.Data.Relationships, "investigation")
		assert.NotContains(t, doc.Data.Relationships, "security_device")

		writer.WriteHeader(http.StatusCreated)
		_, _ = writer.Write([]byte(`{"data": {"type": "investigative_actions", "id": "act-2"}}`))
	}))

	action, err := session.CreateManualInvAction(context.Background(), &workbench.ManualActionRequest{
		InvestigationID: "inv-1",
		CreatedByID:     "actor-1",
		Title:           "Interview the user",
		Reason:          "Confirm the travel story",
		Instructions:    "Ask about the login from new geography",
	})
	require.NoError(t, err)
	assert.Equal(t, "act-2", action.ID())
}

func TestClient_Capabilities(t *testing.T) {
	t.Parallel()

	session := newTestClient(t, http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		assert.Equal(t, "/api/v2/capabilities/org-1", request.URL.Path)

		_, _ = writer.Write([]byte(`{
			"crowdstrike": {"acquire_file": {"title": "Acquire File"}},
			"duo": {"disable_user": {"title": "Disable User"}}
		}`))
	}))

	caps, err := session.Capabilities(context.Background(), "org-1")
	require.NoError(t, err)
	assert.Equal(t, "org-1", caps.OrganizationID)
	assert.Contains(t, caps.Vendors, "crowdstrike")
	assert.Contains(t, caps.Vendors["duo"], "disable_user")
}

func TestClient_CapabilitiesRequiresID(t *testing.T) {
	t.Parallel()

	session := newTestClient(t, http.NewServeMux())

	_, err := session.Capabilities(context.Background(), "")
	require.ErrorIs(t, err, workbench.ErrMissingID)
}

func TestClient_DownloadResults(t *testing.T) {
	t.Parallel()

	session := newTestClient(t, http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		assert.Equal(t, "/api/v2/investigative_actions/act-1/download", request.URL.Path)
		_, _ = writer.Write([]byte("raw,result,rows\n1,2,3\n"))
	}))

	var buf bytes.Buffer

	err := session.DownloadResults(context.Background(), "act-1", &buf)
	require.NoError(t, err)
	assert.Equal(t, "raw,result,rows\n1,2,3\n", buf.String())
}

func TestClient_UploadResults(t *testing.T) {
	t.Parallel()

	session := newTestClient(t, http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		assert.Equal(t, "/api/v2/investigative_actions/act-1/upload", request.URL.Path)

		file, header, err := request.FormFile("file")
		require.NoError(t, err)
		defer func() { _ = file.Close() }()

		assert.Equal(t, "results.csv", header.Filename)

		writer.WriteHeader(http.StatusCreated)
	}))

	err := session.UploadResults(context.Background(), "act-1", "results.csv",
		strings.NewReader("raw,result,rows\n"))
	require.NoError(t, err)
}

func TestClient_NotFoundSurfacesTypedError(t *testing.T) {
	t.Parallel()

	session := newTestClient(t, http.HandlerFunc(func(writer http.ResponseWriter, _ *http.Request) {
		writer.WriteHeader(http.StatusNotFound)
		_, _ = writer.Write([]byte(`{"errors": [{"title": "Not Found"}]}`))
	}))

	_, err := session.Investigations().Get(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, workbench.IsNotFound(err))
}

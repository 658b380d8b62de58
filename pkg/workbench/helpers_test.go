package workbench_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"

	"github.com/expel-io/workbench-go/pkg/workbench"
)

// recordedRequest is one call the fake transport saw.
type recordedRequest struct {
	Method string
	Path   string
	Query  url.Values
	Body   interface{}
}

// fakeTransport serves canned responses keyed by "METHOD path" and records
// every call, letting tests assert on request count, order, and payloads.
type fakeTransport struct {
	requests  []recordedRequest
	responses map[string][]*workbench.Response
	errs      map[string]error
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		responses: make(map[string][]*workbench.Response),
		errs:      make(map[string]error),
	}
}

func routeKey(method, path string) string {
	return method + " " + path
}

// stub enqueues a JSON response body for a route. Repeated stubs for one
// route are served in order, with the last one repeating.
func (t *fakeTransport) stub(method, path, body string) {
	key := routeKey(method, path)
	t.responses[key] = append(t.responses[key], &workbench.Response{
		StatusCode: 200,
		Body:       []byte(body),
	})
}

func (t *fakeTransport) stubErr(method, path string, err error) {
	t.errs[routeKey(method, path)] = err
}

func (t *fakeTransport) serve(method, path string, query url.Values, body interface{}) (*workbench.Response, error) {
	t.requests = append(t.requests, recordedRequest{Method: method, Path: path, Query: query, Body: body})

	key := routeKey(method, path)
	if err, ok := t.errs[key]; ok {
		return nil, err
	}

	queue := t.responses[key]
	if len(queue) == 0 {
		return nil, fmt.Errorf("no stub for %s", key)
	}

	resp := queue[0]
	if len(queue) > 1 {
		t.responses[key] = queue[1:]
	}

	return resp, nil
}

func (t *fakeTransport) Get(_ context.Context, path string, query url.Values) (*workbench.Response, error) {
	return t.serve("GET", path, query, nil)
}

func (t *fakeTransport) Post(_ context.Context, path string, body interface{}) (*workbench.Response, error) {
	return t.serve("POST", path, nil, body)
}

func (t *fakeTransport) Patch(_ context.Context, path string, body interface{}) (*workbench.Response, error) {
	return t.serve("PATCH", path, nil, body)
}

func (t *fakeTransport) Delete(_ context.Context, path string) (*workbench.Response, error) {
	return t.serve("DELETE", path, nil, nil)
}

func (t *fakeTransport) Download(_ context.Context, path string, query url.Values, w io.Writer) error {
	resp, err := t.serve("GET", path, query, nil)
	if err != nil {
		return err
	}

	_, err = w.Write(resp.Body)

	return err
}

func (t *fakeTransport) Upload(_ context.Context, path string, _ string, r io.Reader) (*workbench.Response, error) {
	body, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	return t.serve("POST", path, nil, body)
}

// requestBodyJSON re-encodes a recorded request body for assertions.
func requestBodyJSON(req recordedRequest) (map[string]interface{}, error) {
	raw, err := json.Marshal(req.Body)
	if err != nil {
		return nil, err
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, err
	}

	return decoded, nil
}

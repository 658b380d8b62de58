package workbench_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/expel-io/workbench-go/pkg/workbench"
)

func TestParseResponseError_JSONAPIDocument(t *testing.T) {
	t.Parallel()

	body := []byte(`{
		"errors": [
			{"status": "422", "title": "Invalid attribute", "detail": "title must not be blank",
			 "source": {"pointer": "/data/attributes/title"}},
			{"status": "422", "title": "Invalid attribute", "detail": "decision is not a known value",
			 "source": {"pointer": "/data/attributes/decision"}}
		]
	}`)

	respErr := workbench.ParseResponseError(422, body)
	assert.Equal(t, 422, respErr.StatusCode)
	require.Len(t, respErr.Errors, 2)

	first := respErr.FirstError()
	require.NotNil(t, first)
	assert.Equal(t, "title", first.Field())
	assert.Contains(t, first.Error(), "must not be blank")
}

func TestParseResponseError_NonJSONBody(t *testing.T) {
	t.Parallel()

	respErr := workbench.ParseResponseError(502, []byte("Bad Gateway\n"))
	require.Len(t, respErr.Errors, 1)
	assert.Equal(t, "Bad Gateway", respErr.Errors[0].Detail)
}

func TestParseResponseError_EmptyBody(t *testing.T) {
	t.Parallel()

	respErr := workbench.ParseResponseError(500, nil)
	assert.Empty(t, respErr.Errors)
	assert.Contains(t, respErr.Error(), "500")
}

func TestValidationError_Fields(t *testing.T) {
	t.Parallel()

	respErr := workbench.ParseResponseError(422, []byte(`{
		"errors": [
			{"title": "Invalid attribute", "detail": "blank", "source": {"pointer": "/data/attributes/title"}},
			{"title": "Invalid attribute", "detail": "too long", "source": {"pointer": "/data/attributes/title"}},
			{"title": "Bad request", "detail": "malformed document"}
		]
	}`))

	validationErr := &workbench.ValidationError{Response: respErr}
	fields := validationErr.Fields()

	assert.Len(t, fields["title"], 2)
	assert.Len(t, fields[""], 1)
}

func TestTypedErrorHelpers(t *testing.T) {
	t.Parallel()

	respErr := workbench.ParseResponseError(404, nil)

	tests := []struct {
		name    string
		err     error
		matches func(error) bool
		others  []func(error) bool
	}{
		{
			name:    "not found",
			err:     &workbench.NotFoundError{Response: respErr},
			matches: workbench.IsNotFound,
			others:  []func(error) bool{workbench.IsAuthorization, workbench.IsValidation, workbench.IsConflict},
		},
		{
			name:    "authorization",
			err:     &workbench.AuthorizationError{Response: respErr},
			matches: workbench.IsAuthorization,
			others:  []func(error) bool{workbench.IsNotFound, workbench.IsValidation, workbench.IsConflict},
		},
		{
			name:    "validation",
			err:     &workbench.ValidationError{Response: respErr},
			matches: workbench.IsValidation,
			others:  []func(error) bool{workbench.IsNotFound, workbench.IsAuthorization, workbench.IsConflict},
		},
		{
			name:    "conflict",
			err:     &workbench.ConflictError{Response: respErr},
			matches: workbench.IsConflict,
			others:  []func(error) bool{workbench.IsNotFound, workbench.IsAuthorization, workbench.IsValidation},
		},
		{
			name:    "transport",
			err:     &workbench.TransportError{Err: assert.AnError},
			matches: workbench.IsTransport,
			others:  []func(error) bool{workbench.IsNotFound, workbench.IsAuthorization},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			// Helpers must see through wrapping.
			wrapped := fmt.Errorf("saving investigation: %w", tt.err)
			assert.True(t, tt.matches(wrapped))

			for _, other := range tt.others {
				assert.False(t, other(wrapped))
			}
		})
	}
}
